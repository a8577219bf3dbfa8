package health

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/vigil-ops/vigil-backend-go/internal/core/types"
)

// PerformanceTracker aggregates raw samples into the rolling performance
// figures the health score consumes. It keeps a bounded window of
// observations and evicts lazily on read.
type PerformanceTracker struct {
	mu        sync.Mutex
	window    time.Duration
	maxPoints int

	responseTimes []timedValue
	errorRates    []timedValue
	requests      []time.Time
}

type timedValue struct {
	at    time.Time
	value float64
}

// NewPerformanceTracker creates a tracker with the given rolling window.
func NewPerformanceTracker(window time.Duration, maxPoints int) *PerformanceTracker {
	if window <= 0 {
		window = 5 * time.Minute
	}
	if maxPoints <= 0 {
		maxPoints = 10000
	}
	return &PerformanceTracker{window: window, maxPoints: maxPoints}
}

// Record feeds one metric sample into the rolling window. Metrics the
// tracker does not aggregate are ignored.
func (t *PerformanceTracker) Record(sample types.MetricSample) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch sample.Metric {
	case types.MetricResponseTime:
		t.responseTimes = appendBounded(t.responseTimes, timedValue{sample.Timestamp, sample.Value}, t.maxPoints)
		t.requests = appendBoundedTimes(t.requests, sample.Timestamp, t.maxPoints)
	case types.MetricErrorRate:
		t.errorRates = appendBounded(t.errorRates, timedValue{sample.Timestamp, sample.Value}, t.maxPoints)
	case types.MetricThroughput:
		t.requests = appendBoundedTimes(t.requests, sample.Timestamp, t.maxPoints)
	}
}

// Snapshot computes the current rolling aggregates as of now.
func (t *PerformanceTracker) Snapshot(now time.Time) types.PerformanceMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := now.Add(-t.window)
	t.responseTimes = evict(t.responseTimes, cutoff)
	t.errorRates = evict(t.errorRates, cutoff)
	t.requests = evictTimes(t.requests, cutoff)

	values := make([]float64, len(t.responseTimes))
	for i, v := range t.responseTimes {
		values[i] = v.value
	}
	sort.Float64s(values)

	return types.PerformanceMetrics{
		ErrorRate:           latest(t.errorRates),
		MeanResponseTime:    mean(values),
		P95ResponseTime:     percentile(values, 0.95),
		P99ResponseTime:     percentile(values, 0.99),
		ThroughputPerMinute: float64(len(t.requests)) / math.Max(t.window.Minutes(), 1),
	}
}

func appendBounded(s []timedValue, v timedValue, max int) []timedValue {
	s = append(s, v)
	if len(s) > max {
		s = s[len(s)-max:]
	}
	return s
}

func appendBoundedTimes(s []time.Time, v time.Time, max int) []time.Time {
	s = append(s, v)
	if len(s) > max {
		s = s[len(s)-max:]
	}
	return s
}

func evict(s []timedValue, cutoff time.Time) []timedValue {
	i := 0
	for i < len(s) && s[i].at.Before(cutoff) {
		i++
	}
	return s[i:]
}

func evictTimes(s []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(s) && s[i].Before(cutoff) {
		i++
	}
	return s[i:]
}

func latest(s []timedValue) float64 {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1].value
}

func mean(sorted []float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	return sum / float64(len(sorted))
}

// percentile expects values sorted ascending.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
