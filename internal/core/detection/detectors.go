package detection

import (
	"fmt"
	"sort"

	"github.com/vigil-ops/vigil-backend-go/internal/core/types"
)

// Per-failure-type scoring formulas. All of these are pure functions of
// their inputs so identical samples replay to identical detections.

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// LatencySpikeSeverity scores a response-time breach. With
// ratio = current/threshold the severity is clamp(1 - 1/ratio), so a
// 250ms observation against a 100ms threshold scores 0.6.
func LatencySpikeSeverity(current, threshold float64) float64 {
	if threshold <= 0 || current <= threshold {
		return 0
	}
	return clamp01(1 - threshold/current)
}

// ErrorRateIncreaseSeverity scales severity by the absolute
// percentage-point increase, saturating at 20 points.
func ErrorRateIncreaseSeverity(increase float64) float64 {
	if increase <= 0 {
		return 0
	}
	return clamp01(increase / 0.20)
}

// BiasDriftSeverity takes per-category scores and returns the severity
// derived from the largest absolute drift, plus the categories whose
// drift exceeds the threshold (attached to the detection as evidence).
func BiasDriftSeverity(current, baseline map[string]float64, threshold float64) (severity float64, affected []string, maxDrift float64) {
	for category, cur := range current {
		base, ok := baseline[category]
		if !ok {
			continue
		}
		drift := cur - base
		if drift < 0 {
			drift = -drift
		}
		if drift > threshold {
			affected = append(affected, category)
			if drift > maxDrift {
				maxDrift = drift
			}
		}
	}
	sort.Strings(affected)
	if maxDrift <= threshold {
		return 0, nil, 0
	}
	return clamp01(maxDrift / 0.30), affected, maxDrift
}

// ModelDegradationSeverity sums the relative degradation of quality
// metrics against their baselines. Only degradations beyond the threshold
// contribute.
func ModelDegradationSeverity(current, baseline map[string]float64, threshold float64) (severity float64, affected []string, total float64) {
	for metric, base := range baseline {
		cur, ok := current[metric]
		if !ok || base <= 0 {
			continue
		}
		degradation := (base - cur) / base
		if degradation > threshold {
			total += degradation
			affected = append(affected, metric)
		}
	}
	sort.Strings(affected)
	if total <= threshold {
		return 0, nil, 0
	}
	return clamp01(total), affected, total
}

// confidenceFor returns the fixed detection confidence for a failure type.
func confidenceFor(ft types.FailureType) float64 {
	switch ft {
	case types.FailureLatencySpike:
		return 0.90
	case types.FailureErrorRateIncrease:
		return 0.88
	case types.FailureModelDegradation:
		return 0.85
	case types.FailureBiasDrift:
		return 0.82
	default:
		return 0.80
	}
}

func describeFailure(ft types.FailureType, deviationPct float64) string {
	switch ft {
	case types.FailureLatencySpike:
		return fmt.Sprintf("Response time increased by %.1f%%", deviationPct)
	case types.FailureErrorRateIncrease:
		return fmt.Sprintf("Error rate increased by %.1f percentage points", deviationPct)
	case types.FailureBiasDrift:
		return fmt.Sprintf("Bias drift of %.1f%% detected across demographic categories", deviationPct)
	case types.FailureModelDegradation:
		return fmt.Sprintf("Model performance degraded by %.1f%%", deviationPct)
	default:
		return fmt.Sprintf("Metric deviated %.1f%% from expected range", deviationPct)
	}
}

func rootCauseHint(ft types.FailureType) string {
	switch ft {
	case types.FailureLatencySpike:
		return "Possible resource contention or downstream service issues"
	case types.FailureErrorRateIncrease:
		return "Possible service instability or input validation issues"
	case types.FailureBiasDrift:
		return "Model bias patterns have shifted from baseline"
	case types.FailureModelDegradation:
		return "Potential data drift or model staleness"
	default:
		return "Metric behavior departed from its configured expectation"
	}
}

func impactAssessment(ft types.FailureType) string {
	switch ft {
	case types.FailureLatencySpike:
		return "Users experiencing slower response times"
	case types.FailureErrorRateIncrease:
		return "Increased failure rate affecting user requests"
	case types.FailureBiasDrift:
		return "Potential fairness issues in model outputs"
	case types.FailureModelDegradation:
		return "Reduced model accuracy may affect user experience"
	default:
		return "Service quality may be degraded"
	}
}

func mitigationSuggestions(ft types.FailureType) []string {
	switch ft {
	case types.FailureLatencySpike:
		return []string{
			"Check resource utilization",
			"Investigate downstream dependencies",
			"Review recent deployments",
		}
	case types.FailureErrorRateIncrease:
		return []string{
			"Review error logs for patterns",
			"Check input validation logic",
			"Consider circuit breaker activation",
		}
	case types.FailureBiasDrift:
		return []string{
			"Review training data for bias",
			"Audit recent model changes",
			"Consider bias-aware retraining",
		}
	case types.FailureModelDegradation:
		return []string{
			"Retrain model with recent data",
			"Investigate data quality issues",
			"Consider model rollback if degradation is severe",
		}
	default:
		return []string{"Inspect the affected component and recent changes"}
	}
}
