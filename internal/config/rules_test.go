package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigil-ops/vigil-backend-go/internal/core/types"
)

func writeRulesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRules(t *testing.T) {
	path := writeRulesFile(t, `
rules:
  - id: "rule-latency"
    name: "API response time ceiling"
    enabled: true
    metric: "response_time"
    mode: "static"
    threshold: 1000
    operator: ">"
    failure_type: "latency_spike"
    confidence_floor: 0.5
    notification_channels: ["dashboard", "slack"]
    suppression_duration: "10m"
  - id: "rule-throughput"
    name: "Throughput deviation"
    enabled: true
    metric: "throughput"
    mode: "dynamic_baseline"
    baseline_period: "30m"
    min_data_points: 20
    sensitivity: 0.7
    failure_type: "performance_anomaly"
suppressions:
  - id: "maint-1"
    component: "database"
    starts_at: 2026-09-01T02:00:00Z
    ends_at: 2026-09-01T04:00:00Z
    reason: "scheduled upgrade"
`)

	file, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, file.Rules, 2)
	require.Len(t, file.Suppressions, 1)

	latency := file.Rules[0]
	assert.Equal(t, "rule-latency", latency.ID)
	assert.Equal(t, types.MetricResponseTime, latency.Metric)
	assert.Equal(t, types.ModeStatic, latency.Mode)
	assert.Equal(t, types.FailureLatencySpike, latency.FailureType)
	assert.Equal(t, 10*time.Minute, latency.SuppressionDuration)
	assert.Equal(t, []types.ChannelType{types.ChannelDashboard, types.ChannelSlack}, latency.NotificationChannels)

	throughput := file.Rules[1]
	assert.Equal(t, types.ModeDynamicBaseline, throughput.Mode)
	assert.Equal(t, 30*time.Minute, throughput.BaselinePeriod)
	assert.Equal(t, 20, throughput.MinDataPoints)

	supp := file.Suppressions[0]
	assert.Equal(t, "database", supp.Component)
	assert.True(t, supp.EndsAt.After(supp.StartsAt))
}

func TestLoadRulesOneBadRuleRejectsFile(t *testing.T) {
	path := writeRulesFile(t, `
rules:
  - id: "ok"
    name: "valid rule"
    enabled: true
    metric: "response_time"
    mode: "static"
    threshold: 1000
    operator: ">"
    failure_type: "latency_spike"
  - id: "broken"
    name: "bad metric"
    enabled: true
    metric: "cpu_temperature"
    mode: "static"
    threshold: 1
    operator: ">"
    failure_type: "latency_spike"
`)

	_, err := LoadRules(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad metric")
}

func TestLoadRulesBadDuration(t *testing.T) {
	path := writeRulesFile(t, `
rules:
  - id: "r1"
    name: "rule"
    enabled: true
    metric: "response_time"
    mode: "static"
    threshold: 1000
    operator: ">"
    failure_type: "latency_spike"
    suppression_duration: "ten minutes"
`)

	_, err := LoadRules(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "suppression_duration")
}

func TestLoadRulesInvalidSuppressionWindow(t *testing.T) {
	path := writeRulesFile(t, `
suppressions:
  - id: "bad"
    starts_at: 2026-09-01T04:00:00Z
    ends_at: 2026-09-01T02:00:00Z
`)

	_, err := LoadRules(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "suppression 0")
}

func TestLoadRulesMissingFile(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
