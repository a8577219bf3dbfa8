package pipeline

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/vigil-ops/vigil-backend-go/internal/core/alerting"
	"github.com/vigil-ops/vigil-backend-go/internal/core/detection"
	"github.com/vigil-ops/vigil-backend-go/internal/core/health"
	"github.com/vigil-ops/vigil-backend-go/internal/core/incident"
	"github.com/vigil-ops/vigil-backend-go/internal/core/metrics"
	"github.com/vigil-ops/vigil-backend-go/internal/core/types"
	"github.com/vigil-ops/vigil-backend-go/internal/database/repositories"
)

// Result is everything one sample produced on its way through the
// pipeline.
type Result struct {
	Failures  []*types.FailureDetection `json:"failures"`
	Alerts    []*types.Alert            `json:"alerts"`
	Incidents []*types.Incident         `json:"incidents"`
}

// Pipeline wires a metric sample through detection, alerting and incident
// correlation in order.
type Pipeline struct {
	engine    *detection.Engine
	rules     repositories.RuleRepository
	alerts    *alerting.Manager
	incidents *incident.Coordinator
	tracker   *health.PerformanceTracker
	collector *metrics.Collector
	logger    *logrus.Logger
}

// New creates the ingestion pipeline. tracker may be nil.
func New(engine *detection.Engine, rules repositories.RuleRepository, alerts *alerting.Manager,
	incidents *incident.Coordinator, tracker *health.PerformanceTracker,
	collector *metrics.Collector, logger *logrus.Logger) *Pipeline {

	return &Pipeline{
		engine:    engine,
		rules:     rules,
		alerts:    alerts,
		incidents: incidents,
		tracker:   tracker,
		collector: collector,
		logger:    logger,
	}
}

// IngestSample runs one sample through the full pipeline. Malformed
// samples fail closed with a detection error; downstream notification
// problems never do.
func (p *Pipeline) IngestSample(ctx context.Context, sample types.MetricSample) (*Result, error) {
	if p.collector != nil {
		p.collector.SamplesIngested.Inc()
	}
	if p.tracker != nil {
		p.tracker.Record(sample)
	}

	rules, err := p.rules.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load monitoring rules: %w", err)
	}

	failures, err := p.engine.Evaluate(sample, rules)
	if err != nil {
		return nil, err
	}

	result := &Result{Failures: failures}
	if len(failures) == 0 {
		return result, nil
	}

	byID := make(map[string]*types.MonitoringRule, len(rules))
	for _, r := range rules {
		byID[r.ID] = r
	}

	for _, failure := range failures {
		rule := p.ruleFor(failure, byID)
		if rule == nil {
			p.logger.WithField("failure_id", failure.ID).Warn("Detection without a resolvable rule")
			continue
		}

		alert, err := p.alerts.HandleFailure(ctx, failure, rule)
		if err != nil {
			p.logger.WithError(err).WithFields(logrus.Fields{
				"failure_id": failure.ID,
				"rule_id":    rule.ID,
			}).Error("Failed to raise alert for detection")
			continue
		}
		result.Alerts = append(result.Alerts, alert)

		if err := p.rules.RecordTrigger(ctx, rule.ID, failure.DetectedAt); err != nil {
			p.logger.WithError(err).WithField("rule_id", rule.ID).Warn("Failed to record rule trigger")
		}

		if alert.Status == types.AlertSuppressed {
			continue
		}
		inc, err := p.incidents.Observe(ctx, alert)
		if err != nil {
			p.logger.WithError(err).WithField("alert_id", alert.ID).Error("Incident correlation failed")
			continue
		}
		if inc != nil {
			result.Incidents = append(result.Incidents, inc)
		}
	}
	return result, nil
}

func (p *Pipeline) ruleFor(failure *types.FailureDetection, byID map[string]*types.MonitoringRule) *types.MonitoringRule {
	for _, id := range failure.RuleIDs {
		if rule, ok := byID[id]; ok {
			return rule
		}
	}
	return nil
}
