package incident

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

type memIncidentRepo struct {
	mu        sync.Mutex
	incidents map[string]*types.Incident
}

func newMemIncidentRepo() *memIncidentRepo {
	return &memIncidentRepo{incidents: make(map[string]*types.Incident)}
}

func (r *memIncidentRepo) Create(_ context.Context, incident *types.Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *incident
	r.incidents[incident.ID] = &cp
	return nil
}

func (r *memIncidentRepo) Update(_ context.Context, incident *types.Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *incident
	r.incidents[incident.ID] = &cp
	return nil
}

func (r *memIncidentRepo) GetByID(_ context.Context, id string) (*types.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	incident, ok := r.incidents[id]
	if !ok {
		return nil, errors.Newf(errors.KindNotFound, "incident %s not found", id)
	}
	cp := *incident
	return &cp, nil
}

func (r *memIncidentRepo) List(_ context.Context, _ repositories.IncidentFilter) ([]*types.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Incident
	for _, incident := range r.incidents {
		cp := *incident
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memIncidentRepo) ListOpen(_ context.Context) ([]*types.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Incident
	for _, incident := range r.incidents {
		if incident.Status.Open() {
			cp := *incident
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memAlertRepo struct {
	mu     sync.Mutex
	alerts map[string]*types.Alert
}

func newMemAlertRepo(alerts ...*types.Alert) *memAlertRepo {
	r := &memAlertRepo{alerts: make(map[string]*types.Alert)}
	for _, a := range alerts {
		cp := *a
		r.alerts[a.ID] = &cp
	}
	return r
}

func (r *memAlertRepo) Create(_ context.Context, alert *types.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *alert
	r.alerts[alert.ID] = &cp
	return nil
}

func (r *memAlertRepo) Update(_ context.Context, alert *types.Alert) error {
	return r.Create(context.Background(), alert)
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
		if len(filter.Statuses) > 0 && !hasStatus(filter.Statuses, alert.Status) {
			continue
		}
		if len(filter.Severities) > 0 && !hasSeverity(filter.Severities, alert.Severity) {
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

func (r *memAlertRepo) FindActiveByKey(_ context.Context, _ string, _ types.MetricName) (*types.Alert, error) {
	return nil, nil
}

func hasStatus(statuses []types.AlertStatus, s types.AlertStatus) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

func hasSeverity(severities []types.Severity, s types.Severity) bool {
	for _, v := range severities {
		if v == s {
			return true
		}
	}
	return false
}

type noopDispatcher struct{}

func (noopDispatcher) Notify(_ context.Context, channel types.ChannelType, _ notify.Summary) types.NotificationRecord {
	return types.NotificationRecord{Channel: channel, SentAt: time.Now(), Outcome: types.DeliverySucceeded, Attempts: 1}
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testCoordinator(incidents *memIncidentRepo, alerts *memAlertRepo, at time.Time) *Coordinator {
	c := NewCoordinator(Config{
		CorrelationWindow: 10 * time.Minute,
		MinAlerts:         3,
		DispatchTimeout:   time.Second,
	}, incidents, alerts, noopDispatcher{}, nil, nil, testLogger())
	c.now = func() time.Time { return at }
	return c
}

func criticalAlert(id, component string, triggeredAt time.Time) *types.Alert {
	return &types.Alert{
		ID:                id,
		Title:             "Latency Spike Detected",
		Severity:          types.SeverityCritical,
		Status:            types.AlertOpen,
		Component:         component,
		Metric:            types.MetricResponseTime,
		TriggeredAt:       triggeredAt,
		RelatedFailureIDs: []string{"fail-" + id},
		UpdatedAt:         triggeredAt,
	}
}

func TestObserveOpensIncidentAtThreshold(t *testing.T) {
	now := time.Now()
	alerts := newMemAlertRepo(
		criticalAlert("a1", "api", now.Add(-5*time.Minute)),
		criticalAlert("a2", "database", now.Add(-3*time.Minute)),
		criticalAlert("a3", "worker", now.Add(-time.Minute)),
	)
	incidents := newMemIncidentRepo()
	c := testCoordinator(incidents, alerts, now)

	trigger, err := alerts.GetByID(context.Background(), "a3")
	require.NoError(t, err)
	incident, err := c.Observe(context.Background(), trigger)
	require.NoError(t, err)
	require.NotNil(t, incident)

	assert.Equal(t, types.IncidentDetected, incident.Status)
	assert.Equal(t, types.SeverityCritical, incident.Severity)
	assert.Equal(t, 1, incident.Priority)
	assert.Equal(t, "correlation", incident.CreatedBy)
	assert.ElementsMatch(t, []string{"a1", "a2", "a3"}, incident.RelatedAlerts)
	assert.Equal(t, []string{"api", "database", "worker"}, incident.AffectedServices)
	assert.ElementsMatch(t, []string{"fail-a1", "fail-a2", "fail-a3"}, incident.RelatedFailures)
	require.Len(t, incident.Timeline, 1)
	assert.Equal(t, types.IncidentDetected, incident.Timeline[0].To)
}

func TestObserveBelowThresholdDoesNothing(t *testing.T) {
	now := time.Now()
	alerts := newMemAlertRepo(
		criticalAlert("a1", "api", now.Add(-5*time.Minute)),
		criticalAlert("a2", "database", now.Add(-3*time.Minute)),
	)
	incidents := newMemIncidentRepo()
	c := testCoordinator(incidents, alerts, now)

	trigger, _ := alerts.GetByID(context.Background(), "a2")
	incident, err := c.Observe(context.Background(), trigger)
	require.NoError(t, err)
	assert.Nil(t, incident)
}

func TestObserveIgnoresLowSeverityTrigger(t *testing.T) {
	now := time.Now()
	c := testCoordinator(newMemIncidentRepo(), newMemAlertRepo(), now)

	low := criticalAlert("a1", "api", now)
	low.Severity = types.SeverityMedium
	incident, err := c.Observe(context.Background(), low)
	require.NoError(t, err)
	assert.Nil(t, incident)
}

func TestObserveExcludesAlertsOutsideWindow(t *testing.T) {
	now := time.Now()
	alerts := newMemAlertRepo(
		criticalAlert("a1", "api", now.Add(-30*time.Minute)), // outside the 10m window
		criticalAlert("a2", "database", now.Add(-3*time.Minute)),
		criticalAlert("a3", "worker", now.Add(-time.Minute)),
	)
	c := testCoordinator(newMemIncidentRepo(), alerts, now)

	trigger, _ := alerts.GetByID(context.Background(), "a3")
	incident, err := c.Observe(context.Background(), trigger)
	require.NoError(t, err)
	assert.Nil(t, incident)
}

func TestObserveDoesNotDoubleCountAttachedAlerts(t *testing.T) {
	now := time.Now()
	alerts := newMemAlertRepo(
		criticalAlert("a1", "api", now.Add(-5*time.Minute)),
		criticalAlert("a2", "database", now.Add(-3*time.Minute)),
		criticalAlert("a3", "worker", now.Add(-time.Minute)),
	)
	incidents := newMemIncidentRepo()
	c := testCoordinator(incidents, alerts, now)

	trigger, _ := alerts.GetByID(context.Background(), "a3")
	first, err := c.Observe(context.Background(), trigger)
	require.NoError(t, err)
	require.NotNil(t, first)

	// Observing again over the same cluster must not open a second
	// incident: every alert is already attached.
	second, err := c.Observe(context.Background(), trigger)
	require.NoError(t, err)
	assert.Nil(t, second)

	open, _ := incidents.ListOpen(context.Background())
	assert.Len(t, open, 1)
}

func TestCreateManualIncident(t *testing.T) {
	now := time.Now()
	incidents := newMemIncidentRepo()
	c := testCoordinator(incidents, newMemAlertRepo(), now)

	incident, err := c.Create(context.Background(), CreateParams{
		Title:            "Checkout degraded",
		Description:      "Conversion dropped sharply",
		Severity:         types.SeverityHigh,
		CreatedBy:        "oncall",
		Commander:        "alex",
		AffectedServices: []string{"checkout"},
	})
	require.NoError(t, err)
	assert.Equal(t, types.IncidentDetected, incident.Status)
	assert.Equal(t, 2, incident.Priority)
	assert.Equal(t, "alex", incident.Commander)
	require.Len(t, incident.Timeline, 1)

	_, err = c.Create(context.Background(), CreateParams{Severity: types.SeverityHigh})
	assert.Error(t, err, "title is required")

	_, err = c.Create(context.Background(), CreateParams{Title: "x", Severity: "catastrophic"})
	assert.Error(t, err, "severity must be valid")
}

func TestTransitionLifecycle(t *testing.T) {
	now := time.Now()
	incidents := newMemIncidentRepo()
	c := testCoordinator(incidents, newMemAlertRepo(), now)

	incident, err := c.Create(context.Background(), CreateParams{
		Title: "db outage", Severity: types.SeverityCritical, CreatedBy: "oncall",
	})
	require.NoError(t, err)

	for _, to := range []types.IncidentStatus{
		types.IncidentTriaging, types.IncidentInvestigating,
		types.IncidentMitigating, types.IncidentResolved,
	} {
		incident, err = c.Transition(context.Background(), incident.ID, to, "oncall", "")
		require.NoError(t, err)
		assert.Equal(t, to, incident.Status)
	}
	require.NotNil(t, incident.ActualResolution)
	assert.Len(t, incident.Timeline, 5)

	incident, err = c.Transition(context.Background(), incident.ID, types.IncidentPostMortem, "oncall", "review scheduled")
	require.NoError(t, err)
	incident, err = c.Transition(context.Background(), incident.ID, types.IncidentClosed, "oncall", "")
	require.NoError(t, err)
	assert.Equal(t, types.IncidentClosed, incident.Status)
}

func TestTransitionRejectsBackwardMoves(t *testing.T) {
	now := time.Now()
	c := testCoordinator(newMemIncidentRepo(), newMemAlertRepo(), now)

	incident, err := c.Create(context.Background(), CreateParams{
		Title: "db outage", Severity: types.SeverityCritical,
	})
	require.NoError(t, err)

	_, err = c.Transition(context.Background(), incident.ID, types.IncidentMitigating, "oncall", "")
	require.NoError(t, err)

	_, err = c.Transition(context.Background(), incident.ID, types.IncidentTriaging, "oncall", "")
	require.Error(t, err)
	assert.True(t, errors.IsInvalidTransition(err))

	// Closing before resolution is rejected too.
	_, err = c.Transition(context.Background(), incident.ID, types.IncidentClosed, "oncall", "")
	require.Error(t, err)
	assert.True(t, errors.IsInvalidTransition(err))
}

func TestMergeMovesReferencesAndClosesDuplicate(t *testing.T) {
	now := time.Now()
	incidents := newMemIncidentRepo()
	c := testCoordinator(incidents, newMemAlertRepo(), now)

	survivor, err := c.Create(context.Background(), CreateParams{
		Title: "api outage", Severity: types.SeverityHigh,
		AffectedServices: []string{"api"}, RelatedAlerts: []string{"a1"},
	})
	require.NoError(t, err)
	duplicate, err := c.Create(context.Background(), CreateParams{
		Title: "api outage (dup)", Severity: types.SeverityCritical,
		AffectedServices: []string{"api", "gateway"}, RelatedAlerts: []string{"a1", "a2"},
	})
	require.NoError(t, err)

	merged, err := c.Merge(context.Background(), duplicate.ID, survivor.ID, "oncall")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a1", "a2"}, merged.RelatedAlerts)
	assert.ElementsMatch(t, []string{"api", "gateway"}, merged.AffectedServices)
	// Severity is the max of the two.
	assert.Equal(t, types.SeverityCritical, merged.Severity)
	assert.Equal(t, 1, merged.Priority)

	closed, err := incidents.GetByID(context.Background(), duplicate.ID)
	require.NoError(t, err)
	assert.Equal(t, types.IncidentClosed, closed.Status)
	assert.Equal(t, survivor.ID, closed.MergedInto)
}

func TestMergeRejectsSelfAndClosed(t *testing.T) {
	now := time.Now()
	incidents := newMemIncidentRepo()
	c := testCoordinator(incidents, newMemAlertRepo(), now)

	a, err := c.Create(context.Background(), CreateParams{Title: "one", Severity: types.SeverityHigh})
	require.NoError(t, err)
	b, err := c.Create(context.Background(), CreateParams{Title: "two", Severity: types.SeverityHigh})
	require.NoError(t, err)

	_, err = c.Merge(context.Background(), a.ID, a.ID, "oncall")
	assert.Error(t, err)

	// Close b, then merging into it must fail.
	for _, to := range []types.IncidentStatus{types.IncidentResolved, types.IncidentClosed} {
		_, err = c.Transition(context.Background(), b.ID, to, "oncall", "")
		require.NoError(t, err)
	}
	_, err = c.Merge(context.Background(), a.ID, b.ID, "oncall")
	require.Error(t, err)
	assert.True(t, errors.IsInvalidTransition(err))
}
