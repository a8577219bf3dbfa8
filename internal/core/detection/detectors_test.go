package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLatencySpikeSeverity(t *testing.T) {
	// 250ms against a 100ms threshold: 1 - 100/250 = 0.6.
	assert.InDelta(t, 0.6, LatencySpikeSeverity(250, 100), 1e-9)

	// At or below the threshold nothing fires.
	assert.Zero(t, LatencySpikeSeverity(100, 100))
	assert.Zero(t, LatencySpikeSeverity(80, 100))
	assert.Zero(t, LatencySpikeSeverity(250, 0))

	// Severity approaches but never exceeds 1.
	assert.InDelta(t, 0.9, LatencySpikeSeverity(1000, 100), 1e-9)
	assert.Less(t, LatencySpikeSeverity(1e9, 100), 1.0)
}

func TestErrorRateIncreaseSeverity(t *testing.T) {
	assert.Zero(t, ErrorRateIncreaseSeverity(0))
	assert.Zero(t, ErrorRateIncreaseSeverity(-0.05))
	assert.InDelta(t, 0.5, ErrorRateIncreaseSeverity(0.10), 1e-9)
	// Saturates at a 20 point increase.
	assert.Equal(t, 1.0, ErrorRateIncreaseSeverity(0.20))
	assert.Equal(t, 1.0, ErrorRateIncreaseSeverity(0.50))
}

func TestBiasDriftSeverity(t *testing.T) {
	current := map[string]float64{"a": 0.90, "b": 0.70, "c": 0.88}
	baseline := map[string]float64{"a": 0.89, "b": 0.85, "c": 0.87}

	severity, affected, maxDrift := BiasDriftSeverity(current, baseline, 0.05)
	assert.InDelta(t, 0.15, maxDrift, 1e-9)
	assert.InDelta(t, 0.5, severity, 1e-9)
	assert.Equal(t, []string{"b"}, affected)

	// Nothing over the threshold yields zero.
	severity, affected, _ = BiasDriftSeverity(current, baseline, 0.20)
	assert.Zero(t, severity)
	assert.Nil(t, affected)

	// Categories without a baseline are ignored.
	severity, _, _ = BiasDriftSeverity(map[string]float64{"new": 0.1}, baseline, 0.01)
	assert.Zero(t, severity)
}

func TestModelDegradationSeverity(t *testing.T) {
	current := map[string]float64{"quality_score": 0.70, "user_satisfaction": 0.80}
	baseline := map[string]float64{"quality_score": 0.90, "user_satisfaction": 0.82}

	severity, affected, total := ModelDegradationSeverity(current, baseline, 0.10)
	assert.InDelta(t, 0.2222, total, 1e-3)
	assert.Equal(t, []string{"quality_score"}, affected)
	assert.Greater(t, severity, 0.0)

	// Improvements never contribute.
	severity, _, _ = ModelDegradationSeverity(
		map[string]float64{"quality_score": 0.95},
		map[string]float64{"quality_score": 0.90}, 0)
	assert.Zero(t, severity)
}

func TestSensitivityScaling(t *testing.T) {
	// Sensitivity 1 trips at one standard deviation, 0 at four.
	assert.InDelta(t, 1.0, zCutoff(1.0), 1e-9)
	assert.InDelta(t, 4.0, zCutoff(0.0), 1e-9)
	assert.InDelta(t, 2.5, zCutoff(0.5), 1e-9)

	// Anomaly trigger floors at 0.05.
	assert.InDelta(t, 0.05, anomalyTrigger(1.0), 1e-9)
	assert.InDelta(t, 1.0, anomalyTrigger(0.0), 1e-9)
	assert.InDelta(t, 0.3, anomalyTrigger(0.7), 1e-9)
}
