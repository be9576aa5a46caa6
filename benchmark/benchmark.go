package benchmark

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/nvr-ai/go-infer/inference"
	"github.com/pkg/errors"
)

// Scenario defines a benchmark run.
type Scenario struct {
	Name       string `json:"name" yaml:"name"`
	Iterations int    `json:"iterations" yaml:"iterations"`
	WarmupRuns int    `json:"warmup_runs" yaml:"warmup_runs"`
	// FailFast stops at the first failed prediction instead of counting it.
	FailFast bool `json:"fail_fast" yaml:"fail_fast"`
}

// Predictor is the part of inference.Predictor a benchmark drives.
type Predictor[I, O any] interface {
	Predict(ctx context.Context, input I) (O, error)
	Metrics() *inference.Metrics
}

// Run predicts inputs round robin for the scenario's iterations after its
// warmup runs. Warmup timings are discarded from the predictor metrics.
//
// Arguments:
//   - ctx: Cancels the run between predictions.
//   - p: The predictor.
//   - inputs: The inputs to cycle through.
//   - s: The scenario.
//   - observe: Called with every successful measured result. May be nil.
//
// Returns:
//   - *Report: Timing, throughput and memory of the measured iterations.
//   - error: The first prediction error with FailFast, or a context error.
func Run[I, O any](ctx context.Context, p Predictor[I, O], inputs []I, s Scenario, observe func(iteration int, out O)) (*Report, error) {
	if len(inputs) == 0 {
		return nil, errors.New("no inputs")
	}
	if s.Iterations < 1 {
		return nil, errors.Errorf("iterations must be at least 1, got %d", s.Iterations)
	}

	for i := 0; i < s.WarmupRuns; i++ {
		if _, err := p.Predict(ctx, inputs[i%len(inputs)]); err != nil {
			slog.Debug("warmup prediction failed", "run", i, "error", err)
		}
	}
	p.Metrics().Reset()

	report := &Report{Scenario: s, Timestamp: time.Now(), NumCPU: runtime.NumCPU()}
	startMem := readMemStats()
	start := time.Now()

	for i := 0; i < s.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := p.Predict(ctx, inputs[i%len(inputs)])
		if err != nil {
			if s.FailFast {
				return nil, errors.Wrapf(err, "iteration %d", i+1)
			}
			report.Errors++
			continue
		}
		if observe != nil {
			observe(i, out)
		}
	}

	report.TotalDuration = time.Since(start)
	report.MemoryStats = memoryDelta(startMem, readMemStats())
	report.FramesPerSecond = float64(s.Iterations-report.Errors) / report.TotalDuration.Seconds()
	report.ErrorRate = float64(report.Errors) / float64(s.Iterations)
	report.Stages = p.Metrics().Summaries()

	slog.Debug("benchmark complete", "scenario", s.Name, "fps", report.FramesPerSecond, "errors", report.Errors)
	return report, nil
}

// Save writes the reports as indented JSON into dir and returns the path.
func Save(dir string, reports ...*Report) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create output directory")
	}
	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal results")
	}

	path := filepath.Join(dir, fmt.Sprintf("benchmark_results_%s.json", time.Now().Format("2006-01-02_15-04-05")))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrap(err, "failed to write results file")
	}
	return path, nil
}

// WriteCSV writes one summary row per report.
func WriteCSV(w io.Writer, reports ...*Report) error {
	cw := csv.NewWriter(w)
	header := []string{"scenario", "iterations", "fps", "total_ms", "p50_ms", "p99_ms", "alloc_mb", "error_rate"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range reports {
		var p50, p99 time.Duration
		for _, s := range r.Stages {
			if s.Stage == "total" {
				p50, p99 = s.P50, s.P99
			}
		}
		row := []string{
			r.Scenario.Name,
			fmt.Sprint(r.Scenario.Iterations),
			fmt.Sprintf("%.2f", r.FramesPerSecond),
			millis(r.TotalDuration),
			millis(p50),
			millis(p99),
			fmt.Sprintf("%.2f", float64(r.MemoryStats.AllocBytes)/(1024*1024)),
			fmt.Sprintf("%.4f", r.ErrorRate),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func millis(d time.Duration) string {
	return fmt.Sprintf("%.2f", float64(d.Nanoseconds())/1e6)
}
