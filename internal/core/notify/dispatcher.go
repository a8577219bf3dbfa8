package notify

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vigil-ops/vigil-backend-go/internal/core/metrics"
	"github.com/vigil-ops/vigil-backend-go/internal/core/types"
)

// Summary is the channel-agnostic payload delivered for an alert or
// incident event. The core treats every channel uniformly.
type Summary struct {
	Kind            string         `json:"kind"` // "alert" or "incident"
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Severity        types.Severity `json:"severity"`
	Component       string         `json:"component"`
	EscalationLevel int            `json:"escalation_level"`
	At              time.Time      `json:"at"`
}

// Dispatcher delivers a summary over one channel and reports the outcome.
// Implementations must be safe for concurrent use and must not block
// beyond their configured timeout.
type Dispatcher interface {
	Notify(ctx context.Context, channel types.ChannelType, summary Summary) types.NotificationRecord
}

// Channel sends a summary over one concrete transport.
type Channel interface {
	Send(ctx context.Context, summary Summary) error
}

// RetryPolicy bounds redelivery of failed dispatches.
type RetryPolicy struct {
	MaxRetries     int           `json:"max_retries"`
	InitialDelay   time.Duration `json:"initial_delay"`
	MaxDelay       time.Duration `json:"max_delay"`
	BackoffFactor  float64       `json:"backoff_factor"`
	AttemptTimeout time.Duration `json:"attempt_timeout"`
}

// DefaultRetryPolicy returns the default redelivery bounds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     3,
		InitialDelay:   5 * time.Second,
		MaxDelay:       time.Minute,
		BackoffFactor:  2.0,
		AttemptTimeout: 10 * time.Second,
	}
}

// Manager routes summaries to registered channels with bounded retries.
// A terminal failure is returned as a failed NotificationRecord, never as
// an error that could block alert or incident state progression.
type Manager struct {
	channels  map[types.ChannelType]Channel
	fallback  Channel
	policy    RetryPolicy
	collector *metrics.Collector
	logger    *logrus.Logger
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
}

// NewManager creates a dispatcher. The fallback channel serves channel
// types with no registered transport (typically the log channel).
func NewManager(policy RetryPolicy, fallback Channel, collector *metrics.Collector, logger *logrus.Logger) *Manager {
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.BackoffFactor < 1 {
		policy.BackoffFactor = 2.0
	}
	if policy.AttemptTimeout <= 0 {
		policy.AttemptTimeout = 10 * time.Second
	}
	return &Manager{
		channels:  make(map[types.ChannelType]Channel),
		fallback:  fallback,
		policy:    policy,
		collector: collector,
		logger:    logger,
		sleep:     sleepCtx,
		now:       time.Now,
	}
}

// Register binds a transport to a channel type.
func (m *Manager) Register(channel types.ChannelType, c Channel) {
	m.channels[channel] = c
}

// Notify implements Dispatcher.
func (m *Manager) Notify(ctx context.Context, channel types.ChannelType, summary Summary) types.NotificationRecord {
	record := types.NotificationRecord{
		Channel: channel,
		SentAt:  m.now(),
	}

	target, ok := m.channels[channel]
	if !ok {
		target = m.fallback
	}
	if target == nil {
		record.Outcome = types.DeliveryFailed
		record.Error = "no transport registered for channel"
		m.count(channel, record.Outcome)
		return record
	}

	delay := m.policy.InitialDelay
	var lastErr error
	for attempt := 0; attempt <= m.policy.MaxRetries; attempt++ {
		record.Attempts = attempt + 1

		attemptCtx, cancel := context.WithTimeout(ctx, m.policy.AttemptTimeout)
		err := target.Send(attemptCtx, summary)
		cancel()

		if err == nil {
			record.Outcome = types.DeliverySucceeded
			m.count(channel, record.Outcome)
			return record
		}
		lastErr = err

		if attempt == m.policy.MaxRetries {
			break
		}
		m.logger.WithError(err).WithFields(logrus.Fields{
			"channel": channel,
			"attempt": attempt + 1,
		}).Warn("Notification dispatch failed, retrying")

		if err := m.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
		delay = time.Duration(float64(delay) * m.policy.BackoffFactor)
		if m.policy.MaxDelay > 0 && delay > m.policy.MaxDelay {
			delay = m.policy.MaxDelay
		}
	}

	record.Outcome = types.DeliveryFailed
	record.Error = lastErr.Error()
	m.count(channel, record.Outcome)
	m.logger.WithError(lastErr).WithField("channel", channel).Error("Notification dispatch failed after retries")
	return record
}

func (m *Manager) count(channel types.ChannelType, outcome types.DeliveryOutcome) {
	if m.collector != nil {
		m.collector.NotificationsTotal.WithLabelValues(string(channel), string(outcome)).Inc()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
