package alerting

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vigil-ops/vigil-backend-go/internal/core/metrics"
	"github.com/vigil-ops/vigil-backend-go/internal/core/notify"
	"github.com/vigil-ops/vigil-backend-go/internal/core/types"
	"github.com/vigil-ops/vigil-backend-go/internal/database/repositories"
	"github.com/vigil-ops/vigil-backend-go/pkg/errors"
)

// Config contains alert manager tuning.
type Config struct {
	// DispatchTimeout bounds a full notification dispatch, retries included.
	DispatchTimeout time.Duration `json:"dispatch_timeout"`
	// DefaultChannels are used when the triggering rule names none.
	DefaultChannels []types.ChannelType `json:"default_channels"`
}

// DefaultConfig returns the default alert manager configuration.
func DefaultConfig() Config {
	return Config{
		DispatchTimeout: time.Minute,
		DefaultChannels: []types.ChannelType{types.ChannelDashboard},
	}
}

// Manager owns the alert lifecycle: creation with dedup, the state
// machine, suppression, and notification bookkeeping.
type Manager struct {
	cfg        Config
	alerts     repositories.AlertRepository
	failures   repositories.FailureRepository
	dispatcher notify.Dispatcher
	events     notify.Broadcaster
	collector  *metrics.Collector
	logger     *logrus.Logger

	suppMu       sync.RWMutex
	suppressions []SuppressionRule

	keys *keyedMutex
	now  func() time.Time
}

// NewManager creates an alert manager. events may be nil when no
// dashboard stream is attached.
func NewManager(cfg Config, alerts repositories.AlertRepository, failures repositories.FailureRepository,
	dispatcher notify.Dispatcher, events notify.Broadcaster, collector *metrics.Collector, logger *logrus.Logger) *Manager {

	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = DefaultConfig().DispatchTimeout
	}
	if len(cfg.DefaultChannels) == 0 {
		cfg.DefaultChannels = DefaultConfig().DefaultChannels
	}
	return &Manager{
		cfg:        cfg,
		alerts:     alerts,
		failures:   failures,
		dispatcher: dispatcher,
		events:     events,
		collector:  collector,
		logger:     logger,
		keys:       newKeyedMutex(),
		now:        time.Now,
	}
}

// SetSuppressionRules replaces the active suppression rule set. Invalid
// rules are rejected individually and reported, valid ones are kept.
func (m *Manager) SetSuppressionRules(rules []SuppressionRule) {
	valid := make([]SuppressionRule, 0, len(rules))
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			m.logger.WithError(err).Warn("Rejected suppression rule")
			continue
		}
		valid = append(valid, r)
	}
	m.suppMu.Lock()
	m.suppressions = valid
	m.suppMu.Unlock()
}

// HandleFailure turns a detection into an alert, merging into an existing
// active alert for the same (component, metric) within the rule's
// suppression window instead of creating a duplicate. The check-then-act
// section is atomic per key.
func (m *Manager) HandleFailure(ctx context.Context, failure *types.FailureDetection, rule *types.MonitoringRule) (*types.Alert, error) {
	if err := m.failures.Create(ctx, failure); err != nil {
		return nil, fmt.Errorf("failed to persist failure: %w", err)
	}

	unlock := m.keys.Lock(seriesKey(failure.Component, rule.Metric))
	defer unlock()

	now := m.now()

	existing, err := m.alerts.FindActiveByKey(ctx, failure.Component, rule.Metric)
	if err != nil {
		return nil, err
	}
	if existing != nil && withinSuppressionWindow(existing, rule.SuppressionDuration, now) {
		return m.mergeEvidence(ctx, existing, failure, now)
	}

	return m.createAlert(ctx, failure, rule, now)
}

func withinSuppressionWindow(alert *types.Alert, window time.Duration, now time.Time) bool {
	if window <= 0 {
		// No window configured: dedup for as long as the alert is active.
		return true
	}
	return now.Sub(alert.UpdatedAt) <= window
}

// mergeEvidence attaches a new failure to an existing active alert.
// Severity may only go up; escalation level is never reset.
func (m *Manager) mergeEvidence(ctx context.Context, alert *types.Alert, failure *types.FailureDetection, now time.Time) (*types.Alert, error) {
	// Back-reference the siblings for correlation before attaching.
	if len(alert.RelatedFailureIDs) > 0 {
		failure.RelatedFailures = append([]string{}, alert.RelatedFailureIDs...)
		if err := m.failures.SetRelated(ctx, failure.ID, failure.RelatedFailures); err != nil {
			m.logger.WithError(err).Warn("Failed to record failure back-references")
		}
	}

	alert.EvidenceCount++
	alert.RelatedFailureIDs = append(alert.RelatedFailureIDs, failure.ID)
	alert.UpdatedAt = now

	newSeverity := types.SeverityFromScore(failure.SeverityScore)
	if newSeverity.MoreSevereThan(alert.Severity) {
		m.swapActiveGauge(alert.Severity, newSeverity)
		alert.Severity = newSeverity
	}

	if err := m.alerts.Update(ctx, alert); err != nil {
		return nil, err
	}
	if m.collector != nil {
		m.collector.AlertsDeduplicated.Inc()
	}
	m.broadcast("alert_updated", alert)

	m.logger.WithFields(logrus.Fields{
		"alert_id":  alert.ID,
		"failure":   failure.ID,
		"evidence":  alert.EvidenceCount,
		"severity":  alert.Severity,
		"component": alert.Component,
	}).Info("Merged failure into existing alert")
	return alert, nil
}

func (m *Manager) createAlert(ctx context.Context, failure *types.FailureDetection, rule *types.MonitoringRule, now time.Time) (*types.Alert, error) {
	severity := types.SeverityFromScore(failure.SeverityScore)
	alert := &types.Alert{
		ID:                     uuid.NewString(),
		Title:                  fmt.Sprintf("%s Detected", titleCase(string(failure.FailureType))),
		Description:            fmt.Sprintf("%s\n\nAffected component: %s\nSeverity score: %.2f", failure.Description, failure.Component, failure.SeverityScore),
		Severity:               severity,
		Status:                 types.AlertOpen,
		SourceFailureID:        failure.ID,
		Component:              failure.Component,
		Metric:                 rule.Metric,
		TriggeredAt:            now,
		TriggeredBy:            "system",
		AcknowledgmentRequired: severity == types.SeverityCritical || severity == types.SeverityHigh,
		EscalationHistory:      []types.EscalationStep{},
		NotificationHistory:    []types.NotificationRecord{},
		EvidenceCount:          1,
		RelatedFailureIDs:      []string{failure.ID},
		Tags:                   []string{string(failure.FailureType), failure.Component},
		UpdatedAt:              now,
	}

	suppressed := m.matchSuppression(alert.Component, alert.Metric, now)
	if suppressed != nil {
		alert.Status = types.AlertSuppressed
		alert.Metadata = map[string]interface{}{"suppressed_by": suppressed.ID, "suppression_reason": suppressed.Reason}
	}

	if err := m.alerts.Create(ctx, alert); err != nil {
		return nil, err
	}

	if m.collector != nil {
		m.collector.AlertsCreated.WithLabelValues(string(alert.Severity)).Inc()
		if suppressed != nil {
			m.collector.AlertsSuppressed.Inc()
		} else {
			m.collector.AlertsActive.WithLabelValues(string(alert.Severity)).Inc()
		}
	}

	if suppressed == nil {
		channels := rule.NotificationChannels
		if len(channels) == 0 {
			channels = m.cfg.DefaultChannels
		}
		m.dispatchAsync(alert, channels)
	}
	m.broadcast("alert_created", alert)

	m.logger.WithFields(logrus.Fields{
		"alert_id":   alert.ID,
		"severity":   alert.Severity,
		"component":  alert.Component,
		"metric":     alert.Metric,
		"suppressed": suppressed != nil,
	}).Warn("Alert created")
	return alert, nil
}

func (m *Manager) matchSuppression(component string, metric types.MetricName, now time.Time) *SuppressionRule {
	m.suppMu.RLock()
	defer m.suppMu.RUnlock()
	for i := range m.suppressions {
		if m.suppressions[i].Matches(component, metric, now) {
			return &m.suppressions[i]
		}
	}
	return nil
}

// dispatchAsync fires notifications without blocking the caller. Delivery
// outcomes, including failures, land in the alert's notification history.
func (m *Manager) dispatchAsync(alert *types.Alert, channels []types.ChannelType) {
	summary := notify.Summary{
		Kind:            "alert",
		ID:              alert.ID,
		Title:           alert.Title,
		Description:     alert.Description,
		Severity:        alert.Severity,
		Component:       alert.Component,
		EscalationLevel: alert.EscalationLevel,
		At:              alert.TriggeredAt,
	}
	for _, channel := range channels {
		go func(ch types.ChannelType) {
			ctx, cancel := context.WithTimeout(context.Background(), m.cfg.DispatchTimeout)
			defer cancel()

			record := m.dispatcher.Notify(ctx, ch, summary)
			if err := m.RecordNotification(ctx, alert.ID, record); err != nil {
				m.logger.WithError(err).WithField("alert_id", alert.ID).Warn("Failed to record notification outcome")
			}
		}(channel)
	}
}

// RecordNotification appends a delivery record to an alert's history.
func (m *Manager) RecordNotification(ctx context.Context, alertID string, record types.NotificationRecord) error {
	unlock := m.keys.Lock("alert|" + alertID)
	defer unlock()

	alert, err := m.alerts.GetByID(ctx, alertID)
	if err != nil {
		return err
	}
	alert.NotificationHistory = append(alert.NotificationHistory, record)
	alert.UpdatedAt = m.now()
	return m.alerts.Update(ctx, alert)
}

// Acknowledge moves an alert to Acknowledged. Requires an actor; resets
// the escalation clock reference but not the level.
func (m *Manager) Acknowledge(ctx context.Context, id, actor string) (*types.Alert, error) {
	if actor == "" {
		return nil, errors.New(errors.KindInvalidTransition, "acknowledgment requires an actor")
	}
	return m.transition(ctx, id, types.AlertAcknowledged, func(alert *types.Alert) {
		now := m.now()
		alert.AcknowledgedAt = &now
		alert.AcknowledgedBy = actor
		alert.LastEscalatedAt = &now
	})
}

// StartInvestigation moves an alert to Investigating.
func (m *Manager) StartInvestigation(ctx context.Context, id string) (*types.Alert, error) {
	return m.transition(ctx, id, types.AlertInvestigating, nil)
}

// Resolve moves an alert to Resolved. Resolution notes are required.
func (m *Manager) Resolve(ctx context.Context, id, actor, notes string) (*types.Alert, error) {
	if notes == "" {
		return nil, errors.New(errors.KindInvalidTransition, "resolution requires notes")
	}
	return m.transition(ctx, id, types.AlertResolved, func(alert *types.Alert) {
		now := m.now()
		alert.ResolvedAt = &now
		alert.ResolvedBy = actor
		alert.ResolutionNotes = notes
	})
}

// Close administratively confirms a resolved alert. No further mutation
// is permitted afterward.
func (m *Manager) Close(ctx context.Context, id string) (*types.Alert, error) {
	return m.transition(ctx, id, types.AlertClosed, func(alert *types.Alert) {
		now := m.now()
		alert.ClosedAt = &now
	})
}

// Suppress moves an Open alert to the Suppressed side-state.
func (m *Manager) Suppress(ctx context.Context, id, reason string) (*types.Alert, error) {
	return m.transition(ctx, id, types.AlertSuppressed, func(alert *types.Alert) {
		if alert.Metadata == nil {
			alert.Metadata = map[string]interface{}{}
		}
		alert.Metadata["suppression_reason"] = reason
	})
}

func (m *Manager) transition(ctx context.Context, id string, to types.AlertStatus, mutate func(*types.Alert)) (*types.Alert, error) {
	unlock := m.keys.Lock("alert|" + id)
	defer unlock()

	alert, err := m.alerts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !alert.Status.CanTransitionTo(to) {
		return nil, errors.Newf(errors.KindInvalidTransition, "alert %s cannot move from %s to %s", id, alert.Status, to)
	}

	from := alert.Status
	if mutate != nil {
		mutate(alert)
	}
	alert.Status = to
	alert.UpdatedAt = m.now()

	if err := m.alerts.Update(ctx, alert); err != nil {
		return nil, err
	}

	if m.collector != nil && from.Active() && !to.Active() {
		m.collector.AlertsActive.WithLabelValues(string(alert.Severity)).Dec()
	}
	m.broadcast("alert_updated", alert)

	m.logger.WithFields(logrus.Fields{
		"alert_id": alert.ID,
		"from":     from,
		"to":       to,
	}).Info("Alert transitioned")
	return alert, nil
}

// Get returns an alert by id.
func (m *Manager) Get(ctx context.Context, id string) (*types.Alert, error) {
	return m.alerts.GetByID(ctx, id)
}

// List returns alerts matching the filter.
func (m *Manager) List(ctx context.Context, filter repositories.AlertFilter) ([]*types.Alert, error) {
	return m.alerts.List(ctx, filter)
}

func (m *Manager) broadcast(event string, alert *types.Alert) {
	if m.events == nil {
		return
	}
	if err := m.events.BroadcastEvent(event, alert); err != nil {
		m.logger.WithError(err).Debug("Failed to broadcast alert event")
	}
}

func (m *Manager) swapActiveGauge(from, to types.Severity) {
	if m.collector == nil {
		return
	}
	m.collector.AlertsActive.WithLabelValues(string(from)).Dec()
	m.collector.AlertsActive.WithLabelValues(string(to)).Inc()
}

func seriesKey(component string, metric types.MetricName) string {
	return component + "|" + string(metric)
}

func titleCase(s string) string {
	words := strings.Split(strings.ReplaceAll(s, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
