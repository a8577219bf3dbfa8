package notify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigil-ops/vigil-backend-go/internal/core/types"
)

type flakyChannel struct {
	failures int // fail this many times before succeeding
	calls    int
}

func (c *flakyChannel) Send(_ context.Context, _ Summary) error {
	c.calls++
	if c.calls <= c.failures {
		return fmt.Errorf("transport unavailable (call %d)", c.calls)
	}
	return nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func testSummary() Summary {
	return Summary{
		Kind:      "alert",
		ID:        "a1",
		Title:     "Latency Spike Detected",
		Severity:  types.SeverityHigh,
		Component: "api",
		At:        time.Now(),
	}
}

func TestNotifyDeliversFirstAttempt(t *testing.T) {
	m := NewManager(RetryPolicy{MaxRetries: 3, AttemptTimeout: time.Second}, nil, nil, testLogger())
	m.sleep = noSleep
	channel := &flakyChannel{}
	m.Register(types.ChannelSlack, channel)

	record := m.Notify(context.Background(), types.ChannelSlack, testSummary())
	assert.Equal(t, types.DeliverySucceeded, record.Outcome)
	assert.Equal(t, 1, record.Attempts)
	assert.Equal(t, types.ChannelSlack, record.Channel)
	assert.Empty(t, record.Error)
}

func TestNotifyRetriesThenSucceeds(t *testing.T) {
	m := NewManager(RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond, AttemptTimeout: time.Second}, nil, nil, testLogger())
	m.sleep = noSleep
	channel := &flakyChannel{failures: 2}
	m.Register(types.ChannelSlack, channel)

	record := m.Notify(context.Background(), types.ChannelSlack, testSummary())
	assert.Equal(t, types.DeliverySucceeded, record.Outcome)
	assert.Equal(t, 3, record.Attempts)
	assert.Equal(t, 3, channel.calls)
}

func TestNotifyExhaustsRetriesAndRecordsFailure(t *testing.T) {
	m := NewManager(RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, AttemptTimeout: time.Second}, nil, nil, testLogger())
	m.sleep = noSleep
	channel := &flakyChannel{failures: 100}
	m.Register(types.ChannelSlack, channel)

	// A terminal failure comes back as a failed record, never an error.
	record := m.Notify(context.Background(), types.ChannelSlack, testSummary())
	assert.Equal(t, types.DeliveryFailed, record.Outcome)
	assert.Equal(t, 3, record.Attempts, "initial attempt plus two retries")
	assert.Contains(t, record.Error, "transport unavailable")
	assert.Equal(t, 3, channel.calls, "retries are bounded")
}

func TestNotifyUnregisteredChannelUsesFallback(t *testing.T) {
	fallback := &flakyChannel{}
	m := NewManager(RetryPolicy{MaxRetries: 0, AttemptTimeout: time.Second}, fallback, nil, testLogger())
	m.sleep = noSleep

	record := m.Notify(context.Background(), types.ChannelPagerDuty, testSummary())
	assert.Equal(t, types.DeliverySucceeded, record.Outcome)
	assert.Equal(t, 1, fallback.calls)
}

func TestNotifyNoTransportAtAll(t *testing.T) {
	m := NewManager(RetryPolicy{MaxRetries: 0, AttemptTimeout: time.Second}, nil, nil, testLogger())

	record := m.Notify(context.Background(), types.ChannelEmail, testSummary())
	assert.Equal(t, types.DeliveryFailed, record.Outcome)
	assert.Equal(t, "no transport registered for channel", record.Error)
}

func TestNotifyStopsWhenContextCancelled(t *testing.T) {
	m := NewManager(RetryPolicy{MaxRetries: 5, InitialDelay: time.Hour, AttemptTimeout: time.Second}, nil, nil, testLogger())
	channel := &flakyChannel{failures: 100}
	m.Register(types.ChannelSlack, channel)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	record := m.Notify(ctx, types.ChannelSlack, testSummary())
	assert.Equal(t, types.DeliveryFailed, record.Outcome)
	require.LessOrEqual(t, channel.calls, 2, "cancellation must cut the retry loop short")
}
