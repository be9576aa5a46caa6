package inference

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Timing is the latency breakdown of one prediction.
type Timing struct {
	Preprocess  time.Duration
	Inference   time.Duration
	Postprocess time.Duration
}

// Total returns the end-to-end latency.
func (t Timing) Total() time.Duration {
	return t.Preprocess + t.Inference + t.Postprocess
}

// Summary aggregates one stage across recorded predictions.
type Summary struct {
	Stage string
	Count int
	Mean  time.Duration
	Min   time.Duration
	P50   time.Duration
	P90   time.Duration
	P99   time.Duration
	Max   time.Duration
}

// Metrics collects prediction latencies. It is safe for concurrent use.
type Metrics struct {
	mu      sync.RWMutex
	samples []Timing
}

// NewMetrics creates an empty collector.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Record adds one prediction timing.
func (m *Metrics) Record(t Timing) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, t)
}

// Count returns the number of recorded predictions.
func (m *Metrics) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.samples)
}

// Reset clears all recorded timings.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = nil
}

// Summaries returns per-stage statistics in the order preprocess, inference,
// postprocess, total. It returns nil when nothing was recorded.
func (m *Metrics) Summaries() []Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.samples) == 0 {
		return nil
	}

	stages := []struct {
		name string
		pick func(Timing) time.Duration
	}{
		{"preprocess", func(t Timing) time.Duration { return t.Preprocess }},
		{"inference", func(t Timing) time.Duration { return t.Inference }},
		{"postprocess", func(t Timing) time.Duration { return t.Postprocess }},
		{"total", Timing.Total},
	}

	out := make([]Summary, 0, len(stages))
	for _, s := range stages {
		values := make([]float64, len(m.samples))
		for i, t := range m.samples {
			values[i] = float64(s.pick(t))
		}
		out = append(out, summarize(s.name, values))
	}
	return out
}

func summarize(stage string, values []float64) Summary {
	sort.Float64s(values)
	quantile := func(p float64) time.Duration {
		return time.Duration(stat.Quantile(p, stat.Empirical, values, nil))
	}
	return Summary{
		Stage: stage,
		Count: len(values),
		Mean:  time.Duration(stat.Mean(values, nil)),
		Min:   time.Duration(values[0]),
		P50:   quantile(0.5),
		P90:   quantile(0.9),
		P99:   quantile(0.99),
		Max:   time.Duration(values[len(values)-1]),
	}
}
