package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vigil-ops/vigil-backend-go/internal/core/alerting"
	"github.com/vigil-ops/vigil-backend-go/internal/core/types"
)

// RulesFile holds the monitoring and suppression rules loaded at startup.
type RulesFile struct {
	Rules        []*types.MonitoringRule
	Suppressions []alerting.SuppressionRule
}

// ruleSpec is the on-disk shape of one monitoring rule. Durations are
// written as strings ("10m", "1h30m") and parsed explicitly.
type ruleSpec struct {
	ID                   string                 `yaml:"id"`
	Name                 string                 `yaml:"name"`
	Description          string                 `yaml:"description"`
	Enabled              bool                   `yaml:"enabled"`
	Metric               string                 `yaml:"metric"`
	Component            string                 `yaml:"component"`
	Mode                 string                 `yaml:"mode"`
	Threshold            float64                `yaml:"threshold"`
	Operator             string                 `yaml:"operator"`
	BaselinePeriod       string                 `yaml:"baseline_period"`
	EvaluationWindow     string                 `yaml:"evaluation_window"`
	Sensitivity          float64                `yaml:"sensitivity"`
	MinDataPoints        int                    `yaml:"min_data_points"`
	ConfidenceFloor      float64                `yaml:"confidence_floor"`
	FailureType          string                 `yaml:"failure_type"`
	NotificationChannels []string               `yaml:"notification_channels"`
	SuppressionDuration  string                 `yaml:"suppression_duration"`
	Metadata             map[string]interface{} `yaml:"metadata"`
}

type rulesFileSpec struct {
	Rules        []ruleSpec                 `yaml:"rules"`
	Suppressions []alerting.SuppressionRule `yaml:"suppressions"`
}

// LoadRules reads and validates the YAML rules file at path. Every rule
// must validate; a single bad rule rejects the whole file so a typo can
// never silently disable monitoring.
func LoadRules(path string) (*RulesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var spec rulesFileSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	file := &RulesFile{Suppressions: spec.Suppressions}
	for i, rs := range spec.Rules {
		rule, err := rs.toRule()
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, rs.Name, err)
		}
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, rs.Name, err)
		}
		file.Rules = append(file.Rules, rule)
	}
	for i, supp := range file.Suppressions {
		if err := supp.Validate(); err != nil {
			return nil, fmt.Errorf("suppression %d: %w", i, err)
		}
	}
	return file, nil
}

func (rs ruleSpec) toRule() (*types.MonitoringRule, error) {
	baseline, err := parseDuration(rs.BaselinePeriod)
	if err != nil {
		return nil, fmt.Errorf("baseline_period: %w", err)
	}
	window, err := parseDuration(rs.EvaluationWindow)
	if err != nil {
		return nil, fmt.Errorf("evaluation_window: %w", err)
	}
	suppression, err := parseDuration(rs.SuppressionDuration)
	if err != nil {
		return nil, fmt.Errorf("suppression_duration: %w", err)
	}

	channels := make([]types.ChannelType, 0, len(rs.NotificationChannels))
	for _, c := range rs.NotificationChannels {
		channels = append(channels, types.ChannelType(c))
	}

	return &types.MonitoringRule{
		ID:                   rs.ID,
		Name:                 rs.Name,
		Description:          rs.Description,
		Enabled:              rs.Enabled,
		Metric:               types.MetricName(rs.Metric),
		Component:            rs.Component,
		Mode:                 types.ThresholdMode(rs.Mode),
		Threshold:            rs.Threshold,
		Operator:             rs.Operator,
		BaselinePeriod:       baseline,
		EvaluationWindow:     window,
		Sensitivity:          rs.Sensitivity,
		MinDataPoints:        rs.MinDataPoints,
		ConfidenceFloor:      rs.ConfidenceFloor,
		FailureType:          types.FailureType(rs.FailureType),
		NotificationChannels: channels,
		SuppressionDuration:  suppression,
		Metadata:             rs.Metadata,
	}, nil
}

func parseDuration(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}
