package health

import (
	"math"
	"time"

	"github.com/vigil-ops/vigil-backend-go/internal/core/types"
)

// Penalty weights applied to a perfect 1.0 score. The result is always
// clamped to [0, 1].
const (
	penaltyCriticalAlert  = 0.20
	penaltyActiveAlert    = 0.05
	penaltyOpenIncident   = 0.15
	penaltyRecentFailure  = 0.03
	penaltyErrorRateScale = 0.50
	penaltyLatencyBreach  = 0.10

	// trendEpsilon is the dead zone around the moving average inside
	// which the trend reads stable.
	trendEpsilon = 0.02
)

// ComputeInput is everything the health score is derived from. The same
// input always yields the same snapshot.
type ComputeInput struct {
	At             time.Time
	ActiveAlerts   []*types.Alert
	OpenIncidents  int
	RecentFailures []*types.FailureDetection
	Performance    types.PerformanceMetrics
	// LatencySLA is the mean response time above which the latency
	// penalty applies. Zero disables the check.
	LatencySLA          float64
	ResourceUtilization map[string]float64
	// RecentScores are prior overall scores, newest first, used for
	// trend analysis.
	RecentScores []float64
}

// Compute derives a health snapshot from the current alert, incident and
// performance state. Pure: no clocks, no IO, no randomness; identical
// inputs yield identical snapshots. The caller assigns the ID before
// persisting.
func Compute(in ComputeInput) *types.SystemHealth {
	score := 1.0
	critical := 0
	for _, alert := range in.ActiveAlerts {
		if alert.Severity == types.SeverityCritical {
			critical++
			score -= penaltyCriticalAlert
		} else {
			score -= penaltyActiveAlert
		}
	}
	score -= penaltyOpenIncident * float64(in.OpenIncidents)
	score -= penaltyRecentFailure * float64(len(in.RecentFailures))
	score -= penaltyErrorRateScale * in.Performance.ErrorRate
	if in.LatencySLA > 0 && in.Performance.MeanResponseTime > in.LatencySLA {
		score -= penaltyLatencyBreach
	}
	score = clamp01(score)

	return &types.SystemHealth{
		Timestamp:           in.At,
		OverallScore:        score,
		ComponentScores:     componentScores(in.ActiveAlerts, in.RecentFailures),
		ActiveAlerts:        len(in.ActiveAlerts),
		CriticalAlerts:      critical,
		OpenIncidents:       in.OpenIncidents,
		RecentFailures:      len(in.RecentFailures),
		AvailabilityPct:     clamp01(1.0-in.Performance.ErrorRate) * 100,
		ErrorRatePct:        in.Performance.ErrorRate * 100,
		MeanResponseTime:    in.Performance.MeanResponseTime,
		P95ResponseTime:     in.Performance.P95ResponseTime,
		ThroughputPerMinute: in.Performance.ThroughputPerMinute,
		ResourceUtilization: in.ResourceUtilization,
		Trends: map[string]types.TrendDirection{
			"overall_health": trend(score, in.RecentScores),
		},
	}
}

// componentScores applies the alert and failure penalties per component.
// Components with no findings are absent, implying a perfect score.
func componentScores(alerts []*types.Alert, failures []*types.FailureDetection) map[string]float64 {
	scores := make(map[string]float64)
	penalize := func(component string, penalty float64) {
		score, ok := scores[component]
		if !ok {
			score = 1.0
		}
		scores[component] = clamp01(score - penalty)
	}
	for _, alert := range alerts {
		if alert.Severity == types.SeverityCritical {
			penalize(alert.Component, penaltyCriticalAlert)
		} else {
			penalize(alert.Component, penaltyActiveAlert)
		}
	}
	for _, failure := range failures {
		penalize(failure.Component, penaltyRecentFailure)
	}
	return scores
}

// trend compares the current score against the moving average of prior
// scores, with a small dead zone to keep noise from flapping the label.
func trend(current float64, recent []float64) types.TrendDirection {
	if len(recent) == 0 {
		return types.TrendStable
	}
	sum := 0.0
	for _, s := range recent {
		sum += s
	}
	avg := sum / float64(len(recent))
	switch {
	case current > avg+trendEpsilon:
		return types.TrendImproving
	case current < avg-trendEpsilon:
		return types.TrendDegrading
	default:
		return types.TrendStable
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
