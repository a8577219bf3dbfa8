package alerting

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigil-ops/vigil-backend-go/internal/core/notify"
	"github.com/vigil-ops/vigil-backend-go/internal/core/types"
	"github.com/vigil-ops/vigil-backend-go/internal/database/repositories"
	"github.com/vigil-ops/vigil-backend-go/pkg/errors"
)

type memAlertRepo struct {
	mu     sync.Mutex
	alerts map[string]*types.Alert
}

func newMemAlertRepo() *memAlertRepo {
	return &memAlertRepo{alerts: make(map[string]*types.Alert)}
}

func (r *memAlertRepo) Create(_ context.Context, alert *types.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *alert
	r.alerts[alert.ID] = &cp
	return nil
}

func (r *memAlertRepo) Update(_ context.Context, alert *types.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.alerts[alert.ID]; !ok {
		return errors.Newf(errors.KindNotFound, "alert %s not found", alert.ID)
	}
	cp := *alert
	r.alerts[alert.ID] = &cp
	return nil
}

func (r *memAlertRepo) GetByID(_ context.Context, id string) (*types.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	alert, ok := r.alerts[id]
	if !ok {
		return nil, errors.Newf(errors.KindNotFound, "alert %s not found", id)
	}
	cp := *alert
	return &cp, nil
}

func (r *memAlertRepo) List(_ context.Context, filter repositories.AlertFilter) ([]*types.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Alert
	for _, alert := range r.alerts {
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, alert.Status) {
			continue
		}
		if len(filter.Severities) > 0 && !containsSeverity(filter.Severities, alert.Severity) {
			continue
		}
		if !filter.Since.IsZero() && alert.TriggeredAt.Before(filter.Since) {
			continue
		}
		cp := *alert
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memAlertRepo) ListActive(ctx context.Context) ([]*types.Alert, error) {
	return r.List(ctx, repositories.AlertFilter{
		Statuses: []types.AlertStatus{types.AlertOpen, types.AlertAcknowledged, types.AlertInvestigating},
	})
}

func (r *memAlertRepo) FindActiveByKey(_ context.Context, component string, metric types.MetricName) (*types.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, alert := range r.alerts {
		if alert.Component == component && alert.Metric == metric && alert.Status.Active() {
			cp := *alert
			return &cp, nil
		}
	}
	return nil, nil
}

func containsStatus(statuses []types.AlertStatus, s types.AlertStatus) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

func containsSeverity(severities []types.Severity, s types.Severity) bool {
	for _, v := range severities {
		if v == s {
			return true
		}
	}
	return false
}

type memFailureRepo struct {
	mu       sync.Mutex
	failures map[string]*types.FailureDetection
	related  map[string][]string
}

func newMemFailureRepo() *memFailureRepo {
	return &memFailureRepo{
		failures: make(map[string]*types.FailureDetection),
		related:  make(map[string][]string),
	}
}

func (r *memFailureRepo) Create(_ context.Context, f *types.FailureDetection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *f
	r.failures[f.ID] = &cp
	return nil
}

func (r *memFailureRepo) GetByID(_ context.Context, id string) (*types.FailureDetection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.failures[id]
	if !ok {
		return nil, errors.Newf(errors.KindNotFound, "failure %s not found", id)
	}
	cp := *f
	return &cp, nil
}

func (r *memFailureRepo) List(_ context.Context, _ repositories.FailureFilter) ([]*types.FailureDetection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.FailureDetection
	for _, f := range r.failures {
		cp := *f
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memFailureRepo) MarkFalsePositive(_ context.Context, id, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.failures[id]
	if !ok {
		return errors.Newf(errors.KindNotFound, "failure %s not found", id)
	}
	f.FalsePositive = true
	f.FalsePositiveReason = reason
	return nil
}

func (r *memFailureRepo) SetRelated(_ context.Context, id string, relatedIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.related[id] = relatedIDs
	return nil
}

func (r *memFailureRepo) Archive(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

// recordingDispatcher captures dispatched summaries synchronously.
type recordingDispatcher struct {
	mu        sync.Mutex
	summaries []notify.Summary
	channels  []types.ChannelType
}

func (d *recordingDispatcher) Notify(_ context.Context, channel types.ChannelType, summary notify.Summary) types.NotificationRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.summaries = append(d.summaries, summary)
	d.channels = append(d.channels, channel)
	return types.NotificationRecord{Channel: channel, SentAt: time.Now(), Outcome: types.DeliverySucceeded, Attempts: 1}
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.summaries)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testManager(t *testing.T) (*Manager, *memAlertRepo, *memFailureRepo, *recordingDispatcher) {
	t.Helper()
	alerts := newMemAlertRepo()
	failures := newMemFailureRepo()
	dispatcher := &recordingDispatcher{}
	m := NewManager(Config{DispatchTimeout: time.Second}, alerts, failures, dispatcher, nil, nil, testLogger())
	return m, alerts, failures, dispatcher
}

func testFailure(id, component string, score float64) *types.FailureDetection {
	return &types.FailureDetection{
		ID:            id,
		FailureType:   types.FailureLatencySpike,
		DetectedAt:    time.Now(),
		Component:     component,
		SeverityScore: score,
		Confidence:    0.9,
		Description:   "Response time increased by 150.0%",
	}
}

func testRule() *types.MonitoringRule {
	return &types.MonitoringRule{
		ID:                  "rule-1",
		Name:                "latency ceiling",
		Enabled:             true,
		Metric:              types.MetricResponseTime,
		Mode:                types.ModeStatic,
		Threshold:           100,
		Operator:            ">",
		FailureType:         types.FailureLatencySpike,
		SuppressionDuration: 10 * time.Minute,
	}
}

func TestHandleFailureCreatesAlert(t *testing.T) {
	m, _, failures, _ := testManager(t)

	alert, err := m.HandleFailure(context.Background(), testFailure("f1", "api", 0.6), testRule())
	require.NoError(t, err)

	assert.Equal(t, types.AlertOpen, alert.Status)
	assert.Equal(t, types.SeverityHigh, alert.Severity)
	assert.Equal(t, "Latency Spike Detected", alert.Title)
	assert.Equal(t, "api", alert.Component)
	assert.Equal(t, types.MetricResponseTime, alert.Metric)
	assert.True(t, alert.AcknowledgmentRequired)
	assert.Equal(t, 1, alert.EvidenceCount)
	assert.Equal(t, []string{"f1"}, alert.RelatedFailureIDs)
	assert.Equal(t, 0, alert.EscalationLevel)

	// The failure was persisted before the alert was raised.
	_, err = failures.GetByID(context.Background(), "f1")
	assert.NoError(t, err)
}

func TestHandleFailureLowSeverityNeedsNoAck(t *testing.T) {
	m, _, _, _ := testManager(t)

	alert, err := m.HandleFailure(context.Background(), testFailure("f1", "api", 0.3), testRule())
	require.NoError(t, err)
	assert.Equal(t, types.SeverityLow, alert.Severity)
	assert.False(t, alert.AcknowledgmentRequired)
}

func TestHandleFailureDeduplicatesWithinWindow(t *testing.T) {
	m, repo, failures, _ := testManager(t)
	ctx := context.Background()
	rule := testRule()

	first, err := m.HandleFailure(ctx, testFailure("f1", "api", 0.6), rule)
	require.NoError(t, err)

	second, err := m.HandleFailure(ctx, testFailure("f2", "api", 0.5), rule)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "same series within the window must merge")
	assert.Equal(t, 2, second.EvidenceCount)
	assert.ElementsMatch(t, []string{"f1", "f2"}, second.RelatedFailureIDs)
	// Lower score never downgrades the alert.
	assert.Equal(t, types.SeverityHigh, second.Severity)

	stored, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.EvidenceCount)

	// The merged failure was back-referenced to its siblings.
	assert.Equal(t, []string{"f1"}, failures.related["f2"])
}

func TestHandleFailureSeverityUpgradeKeepsEscalationLevel(t *testing.T) {
	m, repo, _, _ := testManager(t)
	ctx := context.Background()
	rule := testRule()

	first, err := m.HandleFailure(ctx, testFailure("f1", "api", 0.5), rule)
	require.NoError(t, err)
	assert.Equal(t, types.SeverityMedium, first.Severity)

	// Simulate an escalation having happened in the meantime.
	stored, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	stored.EscalationLevel = 2
	require.NoError(t, repo.Update(ctx, stored))

	merged, err := m.HandleFailure(ctx, testFailure("f2", "api", 0.9), rule)
	require.NoError(t, err)
	assert.Equal(t, first.ID, merged.ID)
	assert.Equal(t, types.SeverityCritical, merged.Severity)
	assert.Equal(t, 2, merged.EscalationLevel, "severity upgrade must not reset escalation")
}

func TestHandleFailureNewAlertAfterWindowExpires(t *testing.T) {
	m, _, _, _ := testManager(t)
	ctx := context.Background()
	rule := testRule()

	start := time.Now()
	m.now = func() time.Time { return start }

	first, err := m.HandleFailure(ctx, testFailure("f1", "api", 0.5), rule)
	require.NoError(t, err)

	// Resolve the first alert so the series has no active alert, then move
	// past the window.
	_, err = m.Resolve(ctx, first.ID, "oncall", "fixed")
	require.NoError(t, err)
	m.now = func() time.Time { return start.Add(rule.SuppressionDuration + time.Minute) }

	second, err := m.HandleFailure(ctx, testFailure("f2", "api", 0.5), rule)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 1, second.EvidenceCount)
}

func TestHandleFailureStaleActiveAlertGetsReplacement(t *testing.T) {
	m, _, _, _ := testManager(t)
	ctx := context.Background()
	rule := testRule()

	start := time.Now()
	m.now = func() time.Time { return start }

	first, err := m.HandleFailure(ctx, testFailure("f1", "api", 0.5), rule)
	require.NoError(t, err)

	// The alert stays open but its last activity falls out of the window:
	// the next failure opens a fresh alert instead of merging.
	m.now = func() time.Time { return start.Add(rule.SuppressionDuration + time.Minute) }
	second, err := m.HandleFailure(ctx, testFailure("f2", "api", 0.5), rule)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestHandleFailureZeroWindowDedupsWholeActiveLife(t *testing.T) {
	m, _, _, _ := testManager(t)
	ctx := context.Background()
	rule := testRule()
	rule.SuppressionDuration = 0

	start := time.Now()
	m.now = func() time.Time { return start }
	first, err := m.HandleFailure(ctx, testFailure("f1", "api", 0.5), rule)
	require.NoError(t, err)

	m.now = func() time.Time { return start.Add(48 * time.Hour) }
	second, err := m.HandleFailure(ctx, testFailure("f2", "api", 0.5), rule)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestSuppressionRuleSilencesNewAlerts(t *testing.T) {
	m, _, _, dispatcher := testManager(t)
	ctx := context.Background()

	now := time.Now()
	m.now = func() time.Time { return now }
	m.SetSuppressionRules([]SuppressionRule{{
		ID:        "maint-1",
		Component: "api",
		StartsAt:  now.Add(-time.Hour),
		EndsAt:    now.Add(time.Hour),
		Reason:    "planned maintenance",
	}})

	alert, err := m.HandleFailure(ctx, testFailure("f1", "api", 0.9), testRule())
	require.NoError(t, err)
	assert.Equal(t, types.AlertSuppressed, alert.Status)
	assert.Equal(t, "maint-1", alert.Metadata["suppressed_by"])
	assert.Equal(t, 0, dispatcher.count(), "suppressed alerts must not notify")

	// Other components are unaffected.
	other, err := m.HandleFailure(ctx, testFailure("f2", "worker", 0.9), testRule())
	require.NoError(t, err)
	assert.Equal(t, types.AlertOpen, other.Status)
}

func TestSetSuppressionRulesRejectsInvalidIndividually(t *testing.T) {
	m, _, _, _ := testManager(t)
	now := time.Now()

	m.SetSuppressionRules([]SuppressionRule{
		{ID: "bad", StartsAt: now, EndsAt: now.Add(-time.Hour)},
		{ID: "good", StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour)},
	})

	m.suppMu.RLock()
	defer m.suppMu.RUnlock()
	require.Len(t, m.suppressions, 1)
	assert.Equal(t, "good", m.suppressions[0].ID)
}

func TestAlertLifecycleTransitions(t *testing.T) {
	m, _, _, _ := testManager(t)
	ctx := context.Background()

	alert, err := m.HandleFailure(ctx, testFailure("f1", "api", 0.9), testRule())
	require.NoError(t, err)

	acked, err := m.Acknowledge(ctx, alert.ID, "oncall")
	require.NoError(t, err)
	assert.Equal(t, types.AlertAcknowledged, acked.Status)
	assert.Equal(t, "oncall", acked.AcknowledgedBy)
	require.NotNil(t, acked.AcknowledgedAt)
	require.NotNil(t, acked.LastEscalatedAt)

	investigating, err := m.StartInvestigation(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, types.AlertInvestigating, investigating.Status)

	resolved, err := m.Resolve(ctx, alert.ID, "oncall", "restarted pods")
	require.NoError(t, err)
	assert.Equal(t, types.AlertResolved, resolved.Status)
	assert.Equal(t, "restarted pods", resolved.ResolutionNotes)
	require.NotNil(t, resolved.ResolvedAt)

	closed, err := m.Close(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, types.AlertClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	// Closed is terminal.
	_, err = m.Acknowledge(ctx, alert.ID, "oncall")
	require.Error(t, err)
	assert.True(t, errors.IsInvalidTransition(err))
}

func TestAcknowledgeRequiresActor(t *testing.T) {
	m, _, _, _ := testManager(t)
	ctx := context.Background()

	alert, err := m.HandleFailure(ctx, testFailure("f1", "api", 0.9), testRule())
	require.NoError(t, err)

	_, err = m.Acknowledge(ctx, alert.ID, "")
	require.Error(t, err)
	assert.True(t, errors.IsInvalidTransition(err))
}

func TestResolveRequiresNotes(t *testing.T) {
	m, _, _, _ := testManager(t)
	ctx := context.Background()

	alert, err := m.HandleFailure(ctx, testFailure("f1", "api", 0.9), testRule())
	require.NoError(t, err)

	_, err = m.Resolve(ctx, alert.ID, "oncall", "")
	require.Error(t, err)
	assert.True(t, errors.IsInvalidTransition(err))
}

func TestInvalidTransitionRejected(t *testing.T) {
	m, _, _, _ := testManager(t)
	ctx := context.Background()

	alert, err := m.HandleFailure(ctx, testFailure("f1", "api", 0.9), testRule())
	require.NoError(t, err)

	// Open cannot close directly.
	_, err = m.Close(ctx, alert.ID)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidTransition(err))

	// Resolved cannot be suppressed.
	_, err = m.Resolve(ctx, alert.ID, "oncall", "done")
	require.NoError(t, err)
	_, err = m.Suppress(ctx, alert.ID, "noise")
	require.Error(t, err)
	assert.True(t, errors.IsInvalidTransition(err))
}

func TestSuppressRecordsReason(t *testing.T) {
	m, _, _, _ := testManager(t)
	ctx := context.Background()

	alert, err := m.HandleFailure(ctx, testFailure("f1", "api", 0.9), testRule())
	require.NoError(t, err)

	suppressed, err := m.Suppress(ctx, alert.ID, "known noisy rule")
	require.NoError(t, err)
	assert.Equal(t, types.AlertSuppressed, suppressed.Status)
	assert.Equal(t, "known noisy rule", suppressed.Metadata["suppression_reason"])
}

func TestRecordNotificationAppendsHistory(t *testing.T) {
	m, repo, _, _ := testManager(t)
	ctx := context.Background()

	alert, err := m.HandleFailure(ctx, testFailure("f1", "api", 0.9), testRule())
	require.NoError(t, err)

	record := types.NotificationRecord{
		Channel:  types.ChannelSlack,
		SentAt:   time.Now(),
		Outcome:  types.DeliveryFailed,
		Attempts: 4,
		Error:    "connection refused",
	}
	require.NoError(t, m.RecordNotification(ctx, alert.ID, record))

	stored, err := repo.GetByID(ctx, alert.ID)
	require.NoError(t, err)
	require.NotEmpty(t, stored.NotificationHistory)
	found := false
	for _, rec := range stored.NotificationHistory {
		if rec.Channel == types.ChannelSlack && rec.Outcome == types.DeliveryFailed && rec.Attempts == 4 {
			found = true
		}
	}
	assert.True(t, found, "recorded outcome must appear in the history")
}
