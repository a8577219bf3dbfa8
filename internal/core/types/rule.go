package types

import (
	"time"

	"github.com/vigil-ops/vigil-backend-go/pkg/errors"
)

// MonitoringRule describes how one metric is evaluated for failures.
// Rules are created by configuration and mutated only by explicit update;
// the detection path never writes to them.
type MonitoringRule struct {
	ID               string        `json:"id" yaml:"id"`
	Name             string        `json:"name" yaml:"name"`
	Description      string        `json:"description,omitempty" yaml:"description"`
	Enabled          bool          `json:"enabled" yaml:"enabled"`
	Metric           MetricName    `json:"metric" yaml:"metric"`
	Component        string        `json:"component" yaml:"component"` // empty matches all components
	Mode             ThresholdMode `json:"mode" yaml:"mode"`
	Threshold        float64       `json:"threshold" yaml:"threshold"`
	Operator         string        `json:"operator" yaml:"operator"` // ">" breach above, "<" breach below
	BaselinePeriod   time.Duration `json:"baseline_period" yaml:"baseline_period"`
	EvaluationWindow time.Duration `json:"evaluation_window" yaml:"evaluation_window"`
	Sensitivity      float64       `json:"sensitivity" yaml:"sensitivity"` // 0.0 to 1.0
	MinDataPoints    int           `json:"min_data_points" yaml:"min_data_points"`
	ConfidenceFloor  float64       `json:"confidence_floor" yaml:"confidence_floor"`
	FailureType      FailureType   `json:"failure_type" yaml:"failure_type"`

	NotificationChannels []ChannelType `json:"notification_channels" yaml:"notification_channels"`
	SuppressionDuration  time.Duration `json:"suppression_duration" yaml:"suppression_duration"`

	CreatedAt          time.Time              `json:"created_at" yaml:"-"`
	CreatedBy          string                 `json:"created_by" yaml:"-"`
	LastTriggered      *time.Time             `json:"last_triggered,omitempty" yaml:"-"`
	TriggerCount       int64                  `json:"trigger_count" yaml:"-"`
	FalsePositiveCount int64                  `json:"false_positive_count" yaml:"-"`
	Metadata           map[string]interface{} `json:"metadata,omitempty" yaml:"metadata"`
}

// Matches reports whether the rule applies to a sample.
func (r *MonitoringRule) Matches(sample MetricSample) bool {
	if !r.Enabled || r.Metric != sample.Metric {
		return false
	}
	return r.Component == "" || r.Component == sample.Component
}

// Validate rejects malformed rules at configuration time so the
// evaluation path never has to.
func (r *MonitoringRule) Validate() error {
	if r.Name == "" {
		return errors.New(errors.KindConfiguration, "rule name is required")
	}
	if !r.Metric.Valid() {
		return errors.Newf(errors.KindConfiguration, "rule %q: unknown metric %q", r.Name, r.Metric)
	}
	if !r.Mode.Valid() {
		return errors.Newf(errors.KindConfiguration, "rule %q: unknown threshold mode %q", r.Name, r.Mode)
	}
	if !r.FailureType.Valid() {
		return errors.Newf(errors.KindConfiguration, "rule %q: unknown failure type %q", r.Name, r.FailureType)
	}
	if r.Sensitivity < 0 || r.Sensitivity > 1 {
		return errors.Newf(errors.KindConfiguration, "rule %q: sensitivity %v outside [0,1]", r.Name, r.Sensitivity)
	}
	if r.ConfidenceFloor < 0 || r.ConfidenceFloor > 1 {
		return errors.Newf(errors.KindConfiguration, "rule %q: confidence floor %v outside [0,1]", r.Name, r.ConfidenceFloor)
	}
	switch r.Mode {
	case ModeStatic:
		if r.Threshold == 0 {
			return errors.Newf(errors.KindConfiguration, "rule %q: static mode requires a non-zero threshold", r.Name)
		}
		if r.Operator != ">" && r.Operator != "<" {
			return errors.Newf(errors.KindConfiguration, "rule %q: operator must be \">\" or \"<\", got %q", r.Name, r.Operator)
		}
	case ModeDynamicBaseline:
		if r.BaselinePeriod <= 0 {
			return errors.Newf(errors.KindConfiguration, "rule %q: dynamic baseline requires a baseline period", r.Name)
		}
		if r.MinDataPoints < 2 {
			return errors.Newf(errors.KindConfiguration, "rule %q: dynamic baseline requires at least 2 data points", r.Name)
		}
	}
	if r.SuppressionDuration < 0 {
		return errors.Newf(errors.KindConfiguration, "rule %q: suppression duration must not be negative", r.Name)
	}
	return nil
}
