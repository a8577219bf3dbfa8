package detection

import "math"

// AnomalyScorer is the pluggable statistical strategy behind anomaly-mode
// rules. Score returns an anomaly score and a confidence, both in [0,1].
// Implementations must be deterministic for identical inputs.
type AnomalyScorer interface {
	Score(history []float64, current float64) (score, confidence float64)
}

// VarianceScorer is the default scorer: it measures how far the current
// value sits outside the historical spread, saturating at three standard
// deviations. Confidence grows with the amount of history available.
type VarianceScorer struct {
	// MinHistory is the number of observations required before any score
	// is produced. Defaults to 5 when zero.
	MinHistory int
}

// Score implements AnomalyScorer.
func (s *VarianceScorer) Score(history []float64, current float64) (float64, float64) {
	minHistory := s.MinHistory
	if minHistory <= 0 {
		minHistory = 5
	}
	if len(history) < minHistory {
		return 0, 0
	}

	var sum float64
	for _, v := range history {
		sum += v
	}
	mean := sum / float64(len(history))

	var sq float64
	for _, v := range history {
		d := v - mean
		sq += d * d
	}
	stddev := math.Sqrt(sq / float64(len(history)))

	if stddev == 0 {
		if current == mean {
			return 0, 1
		}
		return 1, 1
	}

	z := math.Abs(current-mean) / stddev
	score := math.Min(z/3.0, 1.0)

	// Confidence saturates once 30 observations back the estimate.
	confidence := math.Min(float64(len(history))/30.0, 1.0)
	if confidence < 0.5 {
		confidence = 0.5
	}
	return score, confidence
}
