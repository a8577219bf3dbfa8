package health

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/vigil-ops/vigil-backend-go/internal/core/metrics"
	"github.com/vigil-ops/vigil-backend-go/internal/core/notify"
	"github.com/vigil-ops/vigil-backend-go/internal/core/types"
	"github.com/vigil-ops/vigil-backend-go/internal/database/repositories"
)

// Config contains health aggregation tuning.
type Config struct {
	// Interval is how often snapshots are taken.
	Interval time.Duration `json:"interval"`
	// FailureLookback is how far back failures count as recent.
	FailureLookback time.Duration `json:"failure_lookback"`
	// LatencySLA is the mean response time (ms) above which the latency
	// penalty applies.
	LatencySLA float64 `json:"latency_sla_ms"`
	// TrendDepth is how many prior scores feed the trend analysis.
	TrendDepth int `json:"trend_depth"`
	// PerformanceWindow is the rolling window for performance aggregates.
	PerformanceWindow time.Duration `json:"performance_window"`
}

// DefaultConfig returns the default health aggregation configuration.
func DefaultConfig() Config {
	return Config{
		Interval:          time.Minute,
		FailureLookback:   15 * time.Minute,
		LatencySLA:        1000,
		TrendDepth:        10,
		PerformanceWindow: 5 * time.Minute,
	}
}

// Service periodically derives and persists system health snapshots from
// the alert, incident and failure stores plus host resource utilization.
type Service struct {
	cfg       Config
	alerts    repositories.AlertRepository
	incidents repositories.IncidentRepository
	failures  repositories.FailureRepository
	health    repositories.HealthRepository
	tracker   *PerformanceTracker
	resources ResourceSampler
	events    notify.Broadcaster
	collector *metrics.Collector
	logger    *logrus.Logger

	cron *cron.Cron
	now  func() time.Time
}

// NewService creates a health service. events may be nil; a nil resources
// sampler defaults to the host sampler.
func NewService(cfg Config, alerts repositories.AlertRepository, incidents repositories.IncidentRepository,
	failures repositories.FailureRepository, health repositories.HealthRepository,
	tracker *PerformanceTracker, resources ResourceSampler,
	events notify.Broadcaster, collector *metrics.Collector, logger *logrus.Logger) *Service {

	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.FailureLookback <= 0 {
		cfg.FailureLookback = def.FailureLookback
	}
	if cfg.TrendDepth <= 0 {
		cfg.TrendDepth = def.TrendDepth
	}
	if resources == nil {
		resources = NewHostSampler()
	}
	return &Service{
		cfg:       cfg,
		alerts:    alerts,
		incidents: incidents,
		failures:  failures,
		health:    health,
		tracker:   tracker,
		resources: resources,
		events:    events,
		collector: collector,
		logger:    logger,
		cron:      cron.New(),
		now:       time.Now,
	}
}

// Start begins periodic snapshotting.
func (s *Service) Start() error {
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.cfg.Interval), func() {
		if _, err := s.Snapshot(context.Background()); err != nil {
			s.logger.WithError(err).Error("Health snapshot failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule health snapshots: %w", err)
	}
	s.cron.Start()
	s.logger.WithField("interval", s.cfg.Interval).Info("Health aggregation started")
	return nil
}

// Stop halts snapshotting and waits for a running snapshot to finish.
func (s *Service) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot computes one health snapshot from current state, persists it,
// and broadcasts it to the dashboard.
func (s *Service) Snapshot(ctx context.Context) (*types.SystemHealth, error) {
	now := s.now()

	activeAlerts, err := s.alerts.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}
	openIncidents, err := s.incidents.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open incidents: %w", err)
	}
	recentFailures, err := s.failures.List(ctx, repositories.FailureFilter{
		Since: now.Add(-s.cfg.FailureLookback),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list recent failures: %w", err)
	}
	recentScores, err := s.health.RecentScores(ctx, s.cfg.TrendDepth)
	if err != nil {
		return nil, fmt.Errorf("failed to load score history: %w", err)
	}

	utilization, err := s.resources.Sample(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Resource sampling failed")
		utilization = map[string]float64{}
	}

	var performance types.PerformanceMetrics
	if s.tracker != nil {
		performance = s.tracker.Snapshot(now)
	}

	snapshot := Compute(ComputeInput{
		At:                  now,
		ActiveAlerts:        activeAlerts,
		OpenIncidents:       len(openIncidents),
		RecentFailures:      recentFailures,
		Performance:         performance,
		LatencySLA:          s.cfg.LatencySLA,
		ResourceUtilization: utilization,
		RecentScores:        recentScores,
	})
	snapshot.ID = uuid.NewString()

	if err := s.health.Insert(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("failed to persist health snapshot: %w", err)
	}

	if s.collector != nil {
		s.collector.HealthScore.Set(snapshot.OverallScore)
		for component, score := range snapshot.ComponentScores {
			s.collector.ComponentHealth.WithLabelValues(component).Set(score)
		}
	}
	if s.events != nil {
		if err := s.events.BroadcastEvent("health_snapshot", snapshot); err != nil {
			s.logger.WithError(err).Debug("Failed to broadcast health snapshot")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"score":           snapshot.OverallScore,
		"active_alerts":   snapshot.ActiveAlerts,
		"critical_alerts": snapshot.CriticalAlerts,
		"open_incidents":  snapshot.OpenIncidents,
	}).Info("Health snapshot recorded")
	return snapshot, nil
}

// Latest returns the most recent snapshot.
func (s *Service) Latest(ctx context.Context) (*types.SystemHealth, error) {
	return s.health.Latest(ctx)
}

// History returns snapshots since the given time.
func (s *Service) History(ctx context.Context, since time.Time, limit int) ([]*types.SystemHealth, error) {
	return s.health.History(ctx, since, limit)
}
