package escalation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/vigil-ops/vigil-backend-go/internal/core/metrics"
	"github.com/vigil-ops/vigil-backend-go/internal/core/notify"
	"github.com/vigil-ops/vigil-backend-go/internal/core/types"
	"github.com/vigil-ops/vigil-backend-go/internal/database/repositories"
)

// Config contains escalation scheduler tuning.
type Config struct {
	// Tick is how often the scheduler scans for overdue alerts.
	Tick time.Duration `json:"tick"`
	// MaxLevel caps the escalation ladder.
	MaxLevel int `json:"max_level"`
	// Intervals maps severity to the time an alert may sit unacknowledged
	// per escalation level. Severities without an entry never escalate.
	Intervals map[types.Severity]time.Duration `json:"intervals"`
	// ChannelTiers maps escalation level to the channels notified at that
	// level. Levels beyond the last tier reuse it.
	ChannelTiers [][]types.ChannelType `json:"channel_tiers"`
	// DispatchTimeout bounds each notification dispatch within a pass.
	DispatchTimeout time.Duration `json:"dispatch_timeout"`
}

// DefaultConfig returns the default escalation ladder.
func DefaultConfig() Config {
	return Config{
		Tick:     30 * time.Second,
		MaxLevel: 3,
		Intervals: map[types.Severity]time.Duration{
			types.SeverityCritical: 5 * time.Minute,
			types.SeverityHigh:     15 * time.Minute,
			types.SeverityMedium:   time.Hour,
		},
		ChannelTiers: [][]types.ChannelType{
			{types.ChannelDashboard},
			{types.ChannelDashboard, types.ChannelSlack},
			{types.ChannelDashboard, types.ChannelSlack, types.ChannelEmail},
			{types.ChannelDashboard, types.ChannelPagerDuty},
		},
		DispatchTimeout: time.Minute,
	}
}

// Scheduler walks open alerts on a fixed tick and raises the escalation
// level of any alert that has outlived its per-severity interval. Each
// pass raises an alert at most one level, so the ladder advances once per
// elapsed interval regardless of tick frequency.
type Scheduler struct {
	cfg        Config
	alerts     repositories.AlertRepository
	dispatcher notify.Dispatcher
	events     notify.Broadcaster
	collector  *metrics.Collector
	logger     *logrus.Logger

	cron   *cron.Cron
	passMu sync.Mutex
	now    func() time.Time
}

// NewScheduler creates an escalation scheduler. events may be nil.
func NewScheduler(cfg Config, alerts repositories.AlertRepository, dispatcher notify.Dispatcher,
	events notify.Broadcaster, collector *metrics.Collector, logger *logrus.Logger) *Scheduler {

	def := DefaultConfig()
	if cfg.Tick <= 0 {
		cfg.Tick = def.Tick
	}
	if cfg.MaxLevel <= 0 {
		cfg.MaxLevel = def.MaxLevel
	}
	if len(cfg.Intervals) == 0 {
		cfg.Intervals = def.Intervals
	}
	if len(cfg.ChannelTiers) == 0 {
		cfg.ChannelTiers = def.ChannelTiers
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = def.DispatchTimeout
	}
	return &Scheduler{
		cfg:        cfg,
		alerts:     alerts,
		dispatcher: dispatcher,
		events:     events,
		collector:  collector,
		logger:     logger,
		cron:       cron.New(),
		now:        time.Now,
	}
}

// Start begins the periodic escalation passes.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.cfg.Tick), func() {
		if _, err := s.RunPass(context.Background()); err != nil {
			s.logger.WithError(err).Error("Escalation pass failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule escalation pass: %w", err)
	}
	s.cron.Start()
	s.logger.WithField("tick", s.cfg.Tick).Info("Escalation scheduler started")
	return nil
}

// Stop halts the scheduler and waits for a running pass to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunPass performs one escalation sweep and returns the number of alerts
// escalated. Passes never overlap: a tick arriving while one is running
// is skipped.
func (s *Scheduler) RunPass(ctx context.Context) (int, error) {
	if !s.passMu.TryLock() {
		return 0, nil
	}
	defer s.passMu.Unlock()

	alerts, err := s.alerts.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active alerts: %w", err)
	}

	now := s.now()
	escalated := 0
	for _, alert := range alerts {
		// Acknowledged and investigating alerts are being handled;
		// only unattended Open alerts climb the ladder.
		if alert.Status != types.AlertOpen {
			continue
		}
		interval, ok := s.cfg.Intervals[alert.Severity]
		if !ok || interval <= 0 {
			continue
		}

		elapsed := now.Sub(alert.TriggeredAt)
		target := int(elapsed / interval)
		if target > s.cfg.MaxLevel {
			target = s.cfg.MaxLevel
		}
		if alert.EscalationLevel >= target {
			continue
		}

		if err := s.escalate(ctx, alert, elapsed, now); err != nil {
			s.logger.WithError(err).WithField("alert_id", alert.ID).Error("Failed to escalate alert")
			continue
		}
		escalated++
	}
	return escalated, nil
}

func (s *Scheduler) escalate(ctx context.Context, alert *types.Alert, elapsed time.Duration, now time.Time) error {
	level := alert.EscalationLevel + 1
	reason := fmt.Sprintf("unacknowledged for %s", elapsed.Truncate(time.Second))

	summary := notify.Summary{
		Kind:            "escalation",
		ID:              alert.ID,
		Title:           fmt.Sprintf("[ESCALATED L%d] %s", level, alert.Title),
		Description:     alert.Description,
		Severity:        alert.Severity,
		Component:       alert.Component,
		EscalationLevel: level,
		At:              now,
	}

	for _, channel := range s.channelTier(level) {
		dispatchCtx, cancel := context.WithTimeout(ctx, s.cfg.DispatchTimeout)
		record := s.dispatcher.Notify(dispatchCtx, channel, summary)
		cancel()

		alert.NotificationHistory = append(alert.NotificationHistory, record)
		alert.EscalationHistory = append(alert.EscalationHistory, types.EscalationStep{
			Level:   level,
			At:      now,
			Channel: channel,
			Reason:  reason,
		})
	}

	alert.EscalationLevel = level
	alert.LastEscalatedAt = &now
	alert.UpdatedAt = now

	if err := s.alerts.Update(ctx, alert); err != nil {
		return err
	}

	if s.collector != nil {
		s.collector.EscalationsTotal.Inc()
	}
	if s.events != nil {
		if err := s.events.BroadcastEvent("alert_escalated", alert); err != nil {
			s.logger.WithError(err).Debug("Failed to broadcast escalation event")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"alert_id": alert.ID,
		"severity": alert.Severity,
		"level":    level,
		"elapsed":  elapsed.Truncate(time.Second),
	}).Warn("Alert escalated")
	return nil
}

func (s *Scheduler) channelTier(level int) []types.ChannelType {
	if level >= len(s.cfg.ChannelTiers) {
		return s.cfg.ChannelTiers[len(s.cfg.ChannelTiers)-1]
	}
	return s.cfg.ChannelTiers[level]
}
