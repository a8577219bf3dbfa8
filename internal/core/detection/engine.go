package detection

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vigil-ops/vigil-backend-go/internal/core/metrics"
	"github.com/vigil-ops/vigil-backend-go/internal/core/types"
	"github.com/vigil-ops/vigil-backend-go/pkg/errors"
)

// Config contains detection engine tuning.
type Config struct {
	BaselineRetention  time.Duration `json:"baseline_retention"`
	MaxPointsPerSeries int           `json:"max_points_per_series"`
}

// DefaultConfig returns the default detection configuration.
func DefaultConfig() Config {
	return Config{
		BaselineRetention:  24 * time.Hour,
		MaxPointsPerSeries: 1024,
	}
}

// Engine evaluates metric samples against monitoring rules and emits
// failure detections. Evaluation is stateless per sample apart from the
// rolling baseline windows, so it is safely parallelizable across samples.
type Engine struct {
	cfg       Config
	scorer    AnomalyScorer
	collector *metrics.Collector
	logger    *logrus.Logger

	mu      sync.Mutex
	windows map[string]*baselineWindow
}

// NewEngine creates a detection engine. A nil scorer falls back to the
// variance-based default.
func NewEngine(cfg Config, scorer AnomalyScorer, collector *metrics.Collector, logger *logrus.Logger) *Engine {
	if scorer == nil {
		scorer = &VarianceScorer{}
	}
	if cfg.BaselineRetention <= 0 {
		cfg.BaselineRetention = DefaultConfig().BaselineRetention
	}
	return &Engine{
		cfg:       cfg,
		scorer:    scorer,
		collector: collector,
		logger:    logger,
		windows:   make(map[string]*baselineWindow),
	}
}

// Evaluate checks one sample against the applicable rules. Malformed
// samples fail closed: a DetectionError is logged and returned, and no
// failure is emitted.
func (e *Engine) Evaluate(sample types.MetricSample, rules []*types.MonitoringRule) ([]*types.FailureDetection, error) {
	if err := validateSample(sample); err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"component": sample.Component,
			"metric":    sample.Metric,
		}).Warn("Dropping malformed metric sample")
		if e.collector != nil {
			e.collector.DetectionErrors.Inc()
		}
		return nil, err
	}

	var detections []*types.FailureDetection
	for _, rule := range rules {
		if !rule.Matches(sample) {
			continue
		}

		var det *types.FailureDetection
		if rule.FailureType == types.FailureBiasDrift && sample.Labels["category"] != "" {
			det = e.evaluateBiasDrift(rule, sample)
		} else {
			switch rule.Mode {
			case types.ModeStatic:
				det = e.evaluateStatic(rule, sample)
			case types.ModeDynamicBaseline:
				det = e.evaluateBaseline(rule, sample)
			case types.ModeAnomaly:
				det = e.evaluateAnomaly(rule, sample)
			}
		}
		if det == nil {
			continue
		}
		if det.Confidence < rule.ConfidenceFloor {
			e.logger.WithFields(logrus.Fields{
				"rule":       rule.Name,
				"confidence": det.Confidence,
				"floor":      rule.ConfidenceFloor,
			}).Debug("Detection below confidence floor, dropped")
			continue
		}

		detections = append(detections, det)
		if e.collector != nil {
			e.collector.FailuresDetected.WithLabelValues(string(det.FailureType)).Inc()
		}
	}

	// The sample joins the baseline history only after evaluation so the
	// current value never skews its own baseline.
	e.window(seriesKey(sample)).Add(sample.Value, sample.Timestamp)

	return detections, nil
}

func validateSample(sample types.MetricSample) error {
	switch {
	case sample.Component == "":
		return errors.New(errors.KindDetection, "sample missing component")
	case !sample.Metric.Valid():
		return errors.Newf(errors.KindDetection, "sample has unknown metric %q", sample.Metric)
	case math.IsNaN(sample.Value) || math.IsInf(sample.Value, 0):
		return errors.New(errors.KindDetection, "sample value is not a finite number")
	case sample.Timestamp.IsZero():
		return errors.New(errors.KindDetection, "sample missing timestamp")
	}
	return nil
}

func (e *Engine) evaluateStatic(rule *types.MonitoringRule, sample types.MetricSample) *types.FailureDetection {
	var deviation float64
	switch rule.Operator {
	case "<":
		deviation = (rule.Threshold - sample.Value) / rule.Threshold
	default:
		deviation = (sample.Value - rule.Threshold) / rule.Threshold
	}
	deviation = clamp01(deviation)
	if deviation <= 0 {
		return nil
	}

	severity, deviationPct := e.scoreBreach(rule, sample.Value, rule.Threshold, deviation)
	if severity <= 0 {
		return nil
	}
	return e.buildDetection(rule, sample, "threshold", severity, confidenceFor(rule.FailureType), deviationPct,
		map[string]float64{string(sample.Metric): rule.Threshold},
		map[string]float64{string(sample.Metric): sample.Value},
		[]string{string(sample.Metric)})
}

func (e *Engine) evaluateBaseline(rule *types.MonitoringRule, sample types.MetricSample) *types.FailureDetection {
	n, mean, stddev := e.window(seriesKey(sample)).Stats(sample.Timestamp)
	if n < rule.MinDataPoints || stddev == 0 {
		return nil
	}

	z := (sample.Value - mean) / stddev
	cutoff := zCutoff(rule.Sensitivity)
	if math.Abs(z) <= cutoff {
		return nil
	}

	deviation := clamp01((math.Abs(z) - cutoff) / cutoff)
	severity, deviationPct := e.scoreBreach(rule, sample.Value, mean, deviation)
	if severity <= 0 {
		return nil
	}
	return e.buildDetection(rule, sample, "baseline", severity, confidenceFor(rule.FailureType), deviationPct,
		map[string]float64{string(sample.Metric): mean},
		map[string]float64{string(sample.Metric): sample.Value},
		[]string{string(sample.Metric)})
}

func (e *Engine) evaluateAnomaly(rule *types.MonitoringRule, sample types.MetricSample) *types.FailureDetection {
	history := e.window(seriesKey(sample)).Values(sample.Timestamp)
	score, confidence := e.scorer.Score(history, sample.Value)
	if score <= anomalyTrigger(rule.Sensitivity) {
		return nil
	}

	var baseline float64
	if len(history) > 0 {
		var sum float64
		for _, v := range history {
			sum += v
		}
		baseline = sum / float64(len(history))
	}

	deviationPct := score * 100
	return e.buildDetection(rule, sample, "anomaly", clamp01(score), confidence, deviationPct,
		map[string]float64{string(sample.Metric): baseline},
		map[string]float64{string(sample.Metric): sample.Value},
		[]string{string(sample.Metric)})
}

// evaluateBiasDrift compares per-category scores against their baselines.
// Samples carry the demographic category in the "category" label; each
// category keeps its own baseline window.
func (e *Engine) evaluateBiasDrift(rule *types.MonitoringRule, sample types.MetricSample) *types.FailureDetection {
	category := sample.Labels["category"]
	current := map[string]float64{category: sample.Value}
	baseline := map[string]float64{}

	e.mu.Lock()
	prefix := sample.Component + "|" + string(sample.Metric) + "|"
	for key, w := range e.windows {
		if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
			continue
		}
		cat := key[len(prefix):]
		if n, mean, _ := w.Stats(sample.Timestamp); n > 0 {
			baseline[cat] = mean
			if cat != category {
				if last, ok := w.Last(); ok {
					current[cat] = last
				}
			}
		}
	}
	e.mu.Unlock()

	severity, affected, maxDrift := BiasDriftSeverity(current, baseline, rule.Threshold)
	if severity <= 0 {
		return nil
	}

	det := e.buildDetection(rule, sample, "threshold", severity, confidenceFor(types.FailureBiasDrift), maxDrift*100,
		filterKeys(baseline, affected), filterKeys(current, affected), affected)
	return det
}

// scoreBreach applies the per-failure-type severity formula.
func (e *Engine) scoreBreach(rule *types.MonitoringRule, current, reference, deviation float64) (severity, deviationPct float64) {
	switch rule.FailureType {
	case types.FailureLatencySpike:
		severity = LatencySpikeSeverity(current, reference)
		if reference > 0 {
			deviationPct = (current/reference - 1) * 100
		}
	case types.FailureErrorRateIncrease:
		increase := current - reference
		severity = ErrorRateIncreaseSeverity(increase)
		deviationPct = increase * 100
	case types.FailureModelDegradation:
		severity, _, _ = ModelDegradationSeverity(
			map[string]float64{string(rule.Metric): current},
			map[string]float64{string(rule.Metric): reference},
			0)
		if reference > 0 {
			deviationPct = (reference - current) / reference * 100
		}
	default:
		severity = deviation
		deviationPct = deviation * 100
	}
	return severity, deviationPct
}

func (e *Engine) buildDetection(rule *types.MonitoringRule, sample types.MetricSample, method string,
	severity, confidence, deviationPct float64,
	baselineValues, currentValues map[string]float64, affectedMetrics []string) *types.FailureDetection {

	return &types.FailureDetection{
		ID:                    uuid.NewString(),
		FailureType:           rule.FailureType,
		DetectedAt:            sample.Timestamp,
		DetectionMethod:       method,
		Component:             sample.Component,
		ComponentID:           sample.ComponentID,
		SeverityScore:         clamp01(severity),
		Confidence:            clamp01(confidence),
		Description:           describeFailure(rule.FailureType, deviationPct),
		RootCauseHint:         rootCauseHint(rule.FailureType),
		ImpactAssessment:      impactAssessment(rule.FailureType),
		AffectedMetrics:       affectedMetrics,
		BaselineValues:        baselineValues,
		CurrentValues:         currentValues,
		DeviationPct:          deviationPct,
		RuleIDs:               []string{rule.ID},
		RelatedFailures:       []string{},
		MitigationSuggestions: mitigationSuggestions(rule.FailureType),
	}
}

func (e *Engine) window(key string) *baselineWindow {
	e.mu.Lock()
	defer e.mu.Unlock()

	w, ok := e.windows[key]
	if !ok {
		w = newBaselineWindow(e.cfg.BaselineRetention, e.cfg.MaxPointsPerSeries)
		e.windows[key] = w
	}
	return w
}

func seriesKey(sample types.MetricSample) string {
	return sample.Component + "|" + string(sample.Metric) + "|" + sample.Labels["category"]
}

// zCutoff derives the z-score cutoff from rule sensitivity: sensitivity 1
// trips at one standard deviation, sensitivity 0 at four.
func zCutoff(sensitivity float64) float64 {
	return 4.0 - 3.0*clamp01(sensitivity)
}

// anomalyTrigger derives the anomaly-score trigger from sensitivity: the
// more sensitive the rule, the lower the score needed to fire.
func anomalyTrigger(sensitivity float64) float64 {
	t := 1.0 - clamp01(sensitivity)
	if t < 0.05 {
		t = 0.05
	}
	return t
}

func filterKeys(m map[string]float64, keys []string) map[string]float64 {
	out := make(map[string]float64, len(keys))
	for _, k := range keys {
		if v, ok := m[k]; ok {
			out[k] = v
		}
	}
	return out
}
