package detection

import (
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigil-ops/vigil-backend-go/internal/core/metrics"
	"github.com/vigil-ops/vigil-backend-go/internal/core/types"
	"github.com/vigil-ops/vigil-backend-go/pkg/errors"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	collector := metrics.NewCollector("test", prometheus.NewRegistry())
	return NewEngine(Config{BaselineRetention: time.Hour, MaxPointsPerSeries: 100}, nil, collector, logger)
}

func latencyRule() *types.MonitoringRule {
	return &types.MonitoringRule{
		ID:          "rule-latency",
		Name:        "latency ceiling",
		Enabled:     true,
		Metric:      types.MetricResponseTime,
		Mode:        types.ModeStatic,
		Threshold:   100,
		Operator:    ">",
		FailureType: types.FailureLatencySpike,
	}
}

func sampleAt(value float64, at time.Time) types.MetricSample {
	return types.MetricSample{
		Component: "api-gateway",
		Metric:    types.MetricResponseTime,
		Value:     value,
		Timestamp: at,
	}
}

func TestEvaluateStaticBreach(t *testing.T) {
	engine := testEngine(t)
	rule := latencyRule()
	now := time.Now()

	detections, err := engine.Evaluate(sampleAt(250, now), []*types.MonitoringRule{rule})
	require.NoError(t, err)
	require.Len(t, detections, 1)

	det := detections[0]
	assert.Equal(t, types.FailureLatencySpike, det.FailureType)
	assert.Equal(t, "threshold", det.DetectionMethod)
	assert.Equal(t, "api-gateway", det.Component)
	assert.InDelta(t, 0.6, det.SeverityScore, 1e-9)
	assert.Equal(t, types.SeverityHigh, types.SeverityFromScore(det.SeverityScore))
	assert.InDelta(t, 150, det.DeviationPct, 1e-9)
	assert.Equal(t, []string{rule.ID}, det.RuleIDs)
	assert.NotEmpty(t, det.ID)
	assert.NotEmpty(t, det.Description)
}

func TestEvaluateNoBreachBelowThreshold(t *testing.T) {
	engine := testEngine(t)
	detections, err := engine.Evaluate(sampleAt(90, time.Now()), []*types.MonitoringRule{latencyRule()})
	require.NoError(t, err)
	assert.Empty(t, detections)
}

func TestEvaluateBelowOperator(t *testing.T) {
	engine := testEngine(t)
	rule := &types.MonitoringRule{
		ID:          "rule-quality",
		Name:        "quality floor",
		Enabled:     true,
		Metric:      types.MetricQualityScore,
		Mode:        types.ModeStatic,
		Threshold:   0.8,
		Operator:    "<",
		FailureType: types.FailureQualityDrop,
	}
	sample := types.MetricSample{
		Component: "assistant",
		Metric:    types.MetricQualityScore,
		Value:     0.5,
		Timestamp: time.Now(),
	}

	detections, err := engine.Evaluate(sample, []*types.MonitoringRule{rule})
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.Equal(t, types.FailureQualityDrop, detections[0].FailureType)
}

func TestEvaluateMalformedSampleFailsClosed(t *testing.T) {
	engine := testEngine(t)
	rules := []*types.MonitoringRule{latencyRule()}
	now := time.Now()

	bad := []types.MetricSample{
		{Metric: types.MetricResponseTime, Value: 250, Timestamp: now},                               // no component
		{Component: "api", Metric: "bogus", Value: 250, Timestamp: now},                              // unknown metric
		{Component: "api", Metric: types.MetricResponseTime, Value: math.NaN(), Timestamp: now},      // NaN
		{Component: "api", Metric: types.MetricResponseTime, Value: math.Inf(1), Timestamp: now},     // Inf
		{Component: "api", Metric: types.MetricResponseTime, Value: 250, Timestamp: time.Time{}},     // no timestamp
	}
	for _, sample := range bad {
		detections, err := engine.Evaluate(sample, rules)
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindDetection))
		assert.Empty(t, detections)
	}
}

func TestEvaluateConfidenceFloorDropsDetection(t *testing.T) {
	engine := testEngine(t)
	rule := latencyRule()
	rule.ConfidenceFloor = 0.95 // latency spikes carry 0.90 confidence

	detections, err := engine.Evaluate(sampleAt(250, time.Now()), []*types.MonitoringRule{rule})
	require.NoError(t, err)
	assert.Empty(t, detections)
}

func TestEvaluateDeterministic(t *testing.T) {
	now := time.Now()
	rule := latencyRule()

	a, err := testEngine(t).Evaluate(sampleAt(250, now), []*types.MonitoringRule{rule})
	require.NoError(t, err)
	b, err := testEngine(t).Evaluate(sampleAt(250, now), []*types.MonitoringRule{rule})
	require.NoError(t, err)

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].SeverityScore, b[0].SeverityScore)
	assert.Equal(t, a[0].DeviationPct, b[0].DeviationPct)
	assert.Equal(t, a[0].Description, b[0].Description)
}

func TestEvaluateDynamicBaseline(t *testing.T) {
	engine := testEngine(t)
	rule := &types.MonitoringRule{
		ID:             "rule-throughput",
		Name:           "throughput deviation",
		Enabled:        true,
		Metric:         types.MetricThroughput,
		Mode:           types.ModeDynamicBaseline,
		BaselinePeriod: time.Hour,
		MinDataPoints:  10,
		Sensitivity:    0.5, // cutoff at 2.5 standard deviations
		FailureType:    types.FailurePerformanceAnomaly,
	}
	rules := []*types.MonitoringRule{rule}
	base := time.Now().Add(-30 * time.Minute)

	// Build a stable baseline around 100 with a little spread. Nothing
	// fires while the history is shorter than MinDataPoints.
	values := []float64{98, 102, 99, 101, 100, 97, 103, 100, 99, 101, 100, 102}
	for i, v := range values {
		sample := types.MetricSample{
			Component: "worker",
			Metric:    types.MetricThroughput,
			Value:     v,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		detections, err := engine.Evaluate(sample, rules)
		require.NoError(t, err)
		assert.Empty(t, detections, "baseline fill sample %d", i)
	}

	// A value far outside the learned spread trips the rule.
	outlier := types.MetricSample{
		Component: "worker",
		Metric:    types.MetricThroughput,
		Value:     200,
		Timestamp: base.Add(time.Duration(len(values)) * time.Minute),
	}
	detections, err := engine.Evaluate(outlier, rules)
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.Equal(t, "baseline", detections[0].DetectionMethod)
	assert.Equal(t, types.FailurePerformanceAnomaly, detections[0].FailureType)
}

func TestBaselineExcludesCurrentSample(t *testing.T) {
	engine := testEngine(t)
	now := time.Now()

	// The first sample for a series evaluates against an empty window:
	// dynamic rules stay quiet regardless of the value.
	rule := &types.MonitoringRule{
		ID:             "rule-dyn",
		Name:           "dynamic",
		Enabled:        true,
		Metric:         types.MetricThroughput,
		Mode:           types.ModeDynamicBaseline,
		BaselinePeriod: time.Hour,
		MinDataPoints:  2,
		Sensitivity:    1.0,
		FailureType:    types.FailurePerformanceAnomaly,
	}
	sample := types.MetricSample{Component: "w", Metric: types.MetricThroughput, Value: 1e6, Timestamp: now}
	detections, err := engine.Evaluate(sample, []*types.MonitoringRule{rule})
	require.NoError(t, err)
	assert.Empty(t, detections)

	// But it did join the window for subsequent evaluations.
	n, _, _ := engine.window("w|throughput|").Stats(now)
	assert.Equal(t, 1, n)
}

func TestEvaluateAnomalyMode(t *testing.T) {
	engine := testEngine(t)
	rule := &types.MonitoringRule{
		ID:          "rule-anomaly",
		Name:        "confidence watch",
		Enabled:     true,
		Metric:      types.MetricModelConfidence,
		Mode:        types.ModeAnomaly,
		Sensitivity: 0.8,
		FailureType: types.FailurePerformanceAnomaly,
	}
	rules := []*types.MonitoringRule{rule}
	base := time.Now().Add(-10 * time.Minute)

	for i := 0; i < 10; i++ {
		v := 0.90 + float64(i%3)*0.01
		sample := types.MetricSample{Component: "model", Metric: types.MetricModelConfidence, Value: v, Timestamp: base.Add(time.Duration(i) * time.Second)}
		_, err := engine.Evaluate(sample, rules)
		require.NoError(t, err)
	}

	outlier := types.MetricSample{Component: "model", Metric: types.MetricModelConfidence, Value: 0.2, Timestamp: base.Add(time.Minute)}
	detections, err := engine.Evaluate(outlier, rules)
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.Equal(t, "anomaly", detections[0].DetectionMethod)
}

func TestEvaluateBiasDriftPerCategory(t *testing.T) {
	engine := testEngine(t)
	rule := &types.MonitoringRule{
		ID:          "rule-bias",
		Name:        "bias drift watch",
		Enabled:     true,
		Metric:      types.MetricBiasScore,
		Mode:        types.ModeStatic,
		Threshold:   0.05,
		Operator:    ">",
		FailureType: types.FailureBiasDrift,
	}
	rules := []*types.MonitoringRule{rule}
	base := time.Now().Add(-20 * time.Minute)

	biasSample := func(category string, value float64, at time.Time) types.MetricSample {
		return types.MetricSample{
			Component: "model",
			Metric:    types.MetricBiasScore,
			Value:     value,
			Timestamp: at,
			Labels:    map[string]string{"category": category},
		}
	}

	// Establish stable per-category baselines.
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		_, err := engine.Evaluate(biasSample("group_a", 0.50, at), rules)
		require.NoError(t, err)
		_, err = engine.Evaluate(biasSample("group_b", 0.50, at.Add(time.Second)), rules)
		require.NoError(t, err)
	}

	// One category drifting well past the threshold fires.
	detections, err := engine.Evaluate(biasSample("group_b", 0.75, base.Add(10*time.Minute)), rules)
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.Equal(t, types.FailureBiasDrift, detections[0].FailureType)
	assert.Contains(t, detections[0].AffectedMetrics, "group_b")
}
