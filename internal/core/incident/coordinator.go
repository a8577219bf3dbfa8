package incident

import (
	"context"
	"fmt"
	"sort"
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

// Config contains incident correlation tuning.
type Config struct {
	// CorrelationWindow is how far back correlated alerts may reach.
	CorrelationWindow time.Duration `json:"correlation_window"`
	// MinAlerts is how many critical/high alerts must cluster before an
	// incident is opened automatically.
	MinAlerts int `json:"min_alerts"`
	// DispatchTimeout bounds incident notification dispatch.
	DispatchTimeout time.Duration `json:"dispatch_timeout"`
	// NotificationChannels receive incident lifecycle notifications.
	NotificationChannels []types.ChannelType `json:"notification_channels"`
}

// DefaultConfig returns the default correlation configuration.
func DefaultConfig() Config {
	return Config{
		CorrelationWindow:    10 * time.Minute,
		MinAlerts:            3,
		DispatchTimeout:      time.Minute,
		NotificationChannels: []types.ChannelType{types.ChannelDashboard},
	}
}

// Coordinator correlates alerts into incidents and owns the incident
// lifecycle and timeline.
type Coordinator struct {
	cfg        Config
	incidents  repositories.IncidentRepository
	alerts     repositories.AlertRepository
	dispatcher notify.Dispatcher
	events     notify.Broadcaster
	collector  *metrics.Collector
	logger     *logrus.Logger

	// mu serializes correlation so two near-simultaneous alerts cannot
	// each open an incident over the same cluster.
	mu  sync.Mutex
	now func() time.Time
}

// NewCoordinator creates an incident coordinator. events may be nil.
func NewCoordinator(cfg Config, incidents repositories.IncidentRepository, alerts repositories.AlertRepository,
	dispatcher notify.Dispatcher, events notify.Broadcaster, collector *metrics.Collector, logger *logrus.Logger) *Coordinator {

	def := DefaultConfig()
	if cfg.CorrelationWindow <= 0 {
		cfg.CorrelationWindow = def.CorrelationWindow
	}
	if cfg.MinAlerts <= 0 {
		cfg.MinAlerts = def.MinAlerts
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = def.DispatchTimeout
	}
	if len(cfg.NotificationChannels) == 0 {
		cfg.NotificationChannels = def.NotificationChannels
	}
	return &Coordinator{
		cfg:        cfg,
		incidents:  incidents,
		alerts:     alerts,
		dispatcher: dispatcher,
		events:     events,
		collector:  collector,
		logger:     logger,
		now:        time.Now,
	}
}

// Observe runs correlation after an alert is created or upgraded. When at
// least MinAlerts critical/high alerts have fired within the correlation
// window and none of them already belong to an open incident, exactly one
// incident is opened referencing the whole cluster. Returns nil when no
// incident was created.
func (c *Coordinator) Observe(ctx context.Context, alert *types.Alert) (*types.Incident, error) {
	if alert.Severity != types.SeverityCritical && alert.Severity != types.SeverityHigh {
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	cluster, err := c.alerts.List(ctx, repositories.AlertFilter{
		Severities: []types.Severity{types.SeverityCritical, types.SeverityHigh},
		Statuses:   []types.AlertStatus{types.AlertOpen, types.AlertAcknowledged, types.AlertInvestigating},
		Since:      now.Add(-c.cfg.CorrelationWindow),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query correlation window: %w", err)
	}

	attached, err := c.attachedAlertIDs(ctx)
	if err != nil {
		return nil, err
	}

	free := cluster[:0]
	for _, a := range cluster {
		if _, taken := attached[a.ID]; !taken {
			free = append(free, a)
		}
	}
	if len(free) < c.cfg.MinAlerts {
		return nil, nil
	}

	return c.openFromCluster(ctx, free, now)
}

// attachedAlertIDs collects alert ids already referenced by open incidents.
func (c *Coordinator) attachedAlertIDs(ctx context.Context) (map[string]struct{}, error) {
	open, err := c.incidents.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open incidents: %w", err)
	}
	attached := make(map[string]struct{})
	for _, inc := range open {
		for _, id := range inc.RelatedAlerts {
			attached[id] = struct{}{}
		}
	}
	return attached, nil
}

func (c *Coordinator) openFromCluster(ctx context.Context, cluster []*types.Alert, now time.Time) (*types.Incident, error) {
	severity := types.SeverityHigh
	services := make(map[string]struct{})
	alertIDs := make([]string, 0, len(cluster))
	failureIDs := []string{}
	for _, a := range cluster {
		if a.Severity.MoreSevereThan(severity) {
			severity = a.Severity
		}
		services[a.Component] = struct{}{}
		alertIDs = append(alertIDs, a.ID)
		failureIDs = append(failureIDs, a.RelatedFailureIDs...)
	}

	affected := make([]string, 0, len(services))
	for svc := range services {
		affected = append(affected, svc)
	}
	sort.Strings(affected)

	incident := &types.Incident{
		ID:     uuid.NewString(),
		Title:  fmt.Sprintf("Correlated failure across %d component(s)", len(affected)),
		Description: fmt.Sprintf("%d %s-or-higher alerts fired within %s across: %s",
			len(cluster), types.SeverityHigh, c.cfg.CorrelationWindow, joinMax(affected, 5)),
		Status:           types.IncidentDetected,
		Severity:         severity,
		Priority:         priorityFor(severity),
		CreatedAt:        now,
		CreatedBy:        "correlation",
		AffectedServices: affected,
		RelatedAlerts:    alertIDs,
		RelatedFailures:  failureIDs,
		Timeline: []types.TimelineEntry{{
			At:    now,
			Actor: "correlation",
			From:  "",
			To:    types.IncidentDetected,
			Note:  fmt.Sprintf("auto-created from %d correlated alerts", len(cluster)),
		}},
		UpdatedAt: now,
	}

	if err := c.incidents.Create(ctx, incident); err != nil {
		return nil, err
	}
	c.recordCreated(incident, "correlation")
	return incident, nil
}

// CreateParams are the caller-supplied fields for a manual incident.
type CreateParams struct {
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Severity         types.Severity `json:"severity"`
	CreatedBy        string         `json:"created_by"`
	Commander        string         `json:"incident_commander"`
	AffectedServices []string       `json:"affected_services"`
	RelatedAlerts    []string       `json:"related_alerts"`
	BusinessImpact   string         `json:"business_impact"`
}

// Create opens an incident manually.
func (c *Coordinator) Create(ctx context.Context, params CreateParams) (*types.Incident, error) {
	if params.Title == "" {
		return nil, errors.New(errors.KindConfiguration, "incident requires a title")
	}
	if !params.Severity.Valid() {
		return nil, errors.Newf(errors.KindConfiguration, "invalid severity %q", params.Severity)
	}

	now := c.now()
	incident := &types.Incident{
		ID:               uuid.NewString(),
		Title:            params.Title,
		Description:      params.Description,
		Status:           types.IncidentDetected,
		Severity:         params.Severity,
		Priority:         priorityFor(params.Severity),
		CreatedAt:        now,
		CreatedBy:        params.CreatedBy,
		Commander:        params.Commander,
		AffectedServices: params.AffectedServices,
		RelatedAlerts:    params.RelatedAlerts,
		BusinessImpact:   params.BusinessImpact,
		Timeline: []types.TimelineEntry{{
			At:    now,
			Actor: params.CreatedBy,
			From:  "",
			To:    types.IncidentDetected,
			Note:  "manually created",
		}},
		UpdatedAt: now,
	}

	if err := c.incidents.Create(ctx, incident); err != nil {
		return nil, err
	}
	c.recordCreated(incident, "manual")
	return incident, nil
}

func (c *Coordinator) recordCreated(incident *types.Incident, trigger string) {
	if c.collector != nil {
		c.collector.IncidentsCreated.WithLabelValues(trigger).Inc()
		c.collector.IncidentsOpen.Inc()
	}
	c.broadcast("incident_created", incident)
	c.notifyAsync(incident, fmt.Sprintf("[INCIDENT] %s", incident.Title))

	c.logger.WithFields(logrus.Fields{
		"incident_id": incident.ID,
		"severity":    incident.Severity,
		"trigger":     trigger,
		"alerts":      len(incident.RelatedAlerts),
		"services":    incident.AffectedServices,
	}).Error("Incident opened")
}

// Transition moves an incident through its lifecycle and appends a
// timeline entry. Resolved stamps the actual resolution time.
func (c *Coordinator) Transition(ctx context.Context, id string, to types.IncidentStatus, actor, note string) (*types.Incident, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	incident, err := c.incidents.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !incident.Status.CanTransitionTo(to) {
		return nil, errors.Newf(errors.KindInvalidTransition, "incident %s cannot move from %s to %s", id, incident.Status, to)
	}

	now := c.now()
	from := incident.Status
	incident.Status = to
	incident.Timeline = append(incident.Timeline, types.TimelineEntry{
		At: now, Actor: actor, From: from, To: to, Note: note,
	})
	if to == types.IncidentResolved {
		incident.ActualResolution = &now
	}
	incident.UpdatedAt = now

	if err := c.incidents.Update(ctx, incident); err != nil {
		return nil, err
	}

	if c.collector != nil && from.Open() && !to.Open() {
		c.collector.IncidentsOpen.Dec()
	}
	c.broadcast("incident_updated", incident)

	c.logger.WithFields(logrus.Fields{
		"incident_id": id,
		"from":        from,
		"to":          to,
		"actor":       actor,
	}).Info("Incident transitioned")
	return incident, nil
}

// Merge folds a duplicate incident into a surviving one. The duplicate's
// alerts and failures move to the survivor; the duplicate is closed
// administratively with a merge marker. This is the recovery path when
// two incidents were opened over one underlying event.
func (c *Coordinator) Merge(ctx context.Context, duplicateID, survivorID, actor string) (*types.Incident, error) {
	if duplicateID == survivorID {
		return nil, errors.New(errors.KindCorrelationRace, "cannot merge an incident into itself")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	duplicate, err := c.incidents.GetByID(ctx, duplicateID)
	if err != nil {
		return nil, err
	}
	survivor, err := c.incidents.GetByID(ctx, survivorID)
	if err != nil {
		return nil, err
	}
	if duplicate.Status.Terminal() {
		return nil, errors.Newf(errors.KindInvalidTransition, "incident %s is already closed", duplicateID)
	}
	if survivor.Status.Terminal() {
		return nil, errors.Newf(errors.KindInvalidTransition, "cannot merge into closed incident %s", survivorID)
	}

	now := c.now()
	survivor.RelatedAlerts = appendMissing(survivor.RelatedAlerts, duplicate.RelatedAlerts)
	survivor.RelatedFailures = appendMissing(survivor.RelatedFailures, duplicate.RelatedFailures)
	survivor.AffectedServices = appendMissing(survivor.AffectedServices, duplicate.AffectedServices)
	if duplicate.Severity.MoreSevereThan(survivor.Severity) {
		survivor.Severity = duplicate.Severity
		survivor.Priority = priorityFor(survivor.Severity)
	}
	survivor.Timeline = append(survivor.Timeline, types.TimelineEntry{
		At: now, Actor: actor, From: survivor.Status, To: survivor.Status,
		Note: fmt.Sprintf("absorbed incident %s", duplicateID),
	})
	survivor.UpdatedAt = now

	wasOpen := duplicate.Status.Open()
	duplicate.MergedInto = survivorID
	duplicate.Timeline = append(duplicate.Timeline, types.TimelineEntry{
		At: now, Actor: actor, From: duplicate.Status, To: types.IncidentClosed,
		Note: fmt.Sprintf("merged into %s", survivorID),
	})
	// Administrative close: merge bypasses the forward-only lifecycle
	// because the duplicate never had a real lifecycle of its own.
	duplicate.Status = types.IncidentClosed
	duplicate.UpdatedAt = now

	if err := c.incidents.Update(ctx, survivor); err != nil {
		return nil, err
	}
	if err := c.incidents.Update(ctx, duplicate); err != nil {
		return nil, err
	}

	if c.collector != nil && wasOpen {
		c.collector.IncidentsOpen.Dec()
	}
	c.broadcast("incident_updated", survivor)
	c.broadcast("incident_updated", duplicate)

	c.logger.WithFields(logrus.Fields{
		"duplicate": duplicateID,
		"survivor":  survivorID,
		"actor":     actor,
	}).Info("Incidents merged")
	return survivor, nil
}

// Get returns an incident by id.
func (c *Coordinator) Get(ctx context.Context, id string) (*types.Incident, error) {
	return c.incidents.GetByID(ctx, id)
}

// List returns incidents matching the filter.
func (c *Coordinator) List(ctx context.Context, filter repositories.IncidentFilter) ([]*types.Incident, error) {
	return c.incidents.List(ctx, filter)
}

func (c *Coordinator) notifyAsync(incident *types.Incident, title string) {
	summary := notify.Summary{
		Kind:        "incident",
		ID:          incident.ID,
		Title:       title,
		Description: incident.Description,
		Severity:    incident.Severity,
		Component:   joinMax(incident.AffectedServices, 5),
		At:          incident.CreatedAt,
	}
	for _, channel := range c.cfg.NotificationChannels {
		go func(ch types.ChannelType) {
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DispatchTimeout)
			defer cancel()
			c.dispatcher.Notify(ctx, ch, summary)
		}(channel)
	}
}

func (c *Coordinator) broadcast(event string, incident *types.Incident) {
	if c.events == nil {
		return
	}
	if err := c.events.BroadcastEvent(event, incident); err != nil {
		c.logger.WithError(err).Debug("Failed to broadcast incident event")
	}
}

func priorityFor(severity types.Severity) int {
	return severity.Rank() + 1
}

func appendMissing(dst, src []string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, v := range dst {
		seen[v] = struct{}{}
	}
	for _, v := range src {
		if _, ok := seen[v]; !ok {
			dst = append(dst, v)
			seen[v] = struct{}{}
		}
	}
	return dst
}

func joinMax(values []string, max int) string {
	if len(values) <= max {
		return join(values)
	}
	return fmt.Sprintf("%s and %d more", join(values[:max]), len(values)-max)
}

func join(values []string) string {
	out := ""
	for i, v := range values {
		if i > 0 {
			out += ", "
		}
		out += v
	}
	return out
}
