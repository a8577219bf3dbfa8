package detection

import (
	"math"
	"sync"
	"time"
)

// observation is one sample retained for baseline statistics.
type observation struct {
	value float64
	at    time.Time
}

// baselineWindow holds the rolling history for one (component, metric,
// category) series. Observations older than the retention period are
// evicted lazily on read and write.
type baselineWindow struct {
	mu        sync.Mutex
	retention time.Duration
	maxPoints int
	obs       []observation
}

func newBaselineWindow(retention time.Duration, maxPoints int) *baselineWindow {
	if maxPoints <= 0 {
		maxPoints = 1024
	}
	return &baselineWindow{retention: retention, maxPoints: maxPoints}
}

// Add appends an observation and evicts expired ones.
func (w *baselineWindow) Add(value float64, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evict(at)
	w.obs = append(w.obs, observation{value: value, at: at})
	if len(w.obs) > w.maxPoints {
		w.obs = w.obs[len(w.obs)-w.maxPoints:]
	}
}

// Stats returns count, mean and standard deviation of the retained
// observations as of the given time.
func (w *baselineWindow) Stats(now time.Time) (n int, mean, stddev float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evict(now)
	n = len(w.obs)
	if n == 0 {
		return 0, 0, 0
	}

	var sum float64
	for _, o := range w.obs {
		sum += o.value
	}
	mean = sum / float64(n)

	var sq float64
	for _, o := range w.obs {
		d := o.value - mean
		sq += d * d
	}
	stddev = math.Sqrt(sq / float64(n))
	return n, mean, stddev
}

// Values returns a copy of the retained values, oldest first.
func (w *baselineWindow) Values(now time.Time) []float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evict(now)
	out := make([]float64, len(w.obs))
	for i, o := range w.obs {
		out[i] = o.value
	}
	return out
}

// Last returns the most recent value, if any.
func (w *baselineWindow) Last() (float64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.obs) == 0 {
		return 0, false
	}
	return w.obs[len(w.obs)-1].value, true
}

func (w *baselineWindow) evict(now time.Time) {
	if w.retention <= 0 {
		return
	}
	cutoff := now.Add(-w.retention)
	i := 0
	for i < len(w.obs) && w.obs[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		w.obs = w.obs[i:]
	}
}
