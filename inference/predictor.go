package inference

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type predictorOptions struct {
	metrics   *Metrics
	workers   int
	ownsModel bool
}

// PredictorOption configures a Predictor.
type PredictorOption func(*predictorOptions)

// WithMetrics records latencies into m instead of a private collector.
func WithMetrics(m *Metrics) PredictorOption {
	return func(o *predictorOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithWorkers bounds how many inputs BatchPredict runs at once.
func WithWorkers(n int) PredictorOption {
	return func(o *predictorOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithModelOwnership makes Close also close the model.
func WithModelOwnership() PredictorOption {
	return func(o *predictorOptions) { o.ownsModel = true }
}

// Predictor runs a model through a translator. Predict may be called
// concurrently; Close waits for in-flight calls.
type Predictor[I, O any] struct {
	model      *Model
	translator Translator[I, O]
	opts       predictorOptions

	mu     sync.RWMutex
	closed bool
}

// NewPredictor creates a predictor for model using translator.
//
// Arguments:
//   - model: The loaded model.
//   - translator: Converts inputs to tensors and outputs to results.
//   - opts: Optional metrics, worker and ownership settings.
//
// Returns:
//   - *Predictor[I, O]: The predictor. The caller must Close it.
//
// Example:
//
// ```go
//
//	predictor := inference.NewPredictor(model, translator)
//	defer predictor.Close()
//	objects, err := predictor.Predict(ctx, img)
//
// ```
func NewPredictor[I, O any](model *Model, translator Translator[I, O], opts ...PredictorOption) *Predictor[I, O] {
	o := predictorOptions{metrics: NewMetrics(), workers: runtime.NumCPU()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Predictor[I, O]{model: model, translator: translator, opts: o}
}

// Predict translates input, runs the engine and translates the outputs.
func (p *Predictor[I, O]) Predict(ctx context.Context, input I) (O, error) {
	var zero O

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return zero, ErrPredictorClosed
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	tctx := NewTranslatorContext(p.model)

	start := time.Now()
	inputs, err := p.translator.ProcessInput(tctx, input)
	if err != nil {
		return zero, translateError(StageInput, err)
	}

	preprocessed := time.Now()
	outputs, err := p.model.Engine().Forward(ctx, inputs)
	if err != nil {
		return zero, errors.Wrapf(err, "%s forward", p.model.Engine().Name())
	}

	inferred := time.Now()
	result, err := p.translator.ProcessOutput(tctx, outputs)
	if err != nil {
		return zero, translateError(StageOutput, err)
	}

	timing := Timing{
		Preprocess:  preprocessed.Sub(start),
		Inference:   inferred.Sub(preprocessed),
		Postprocess: time.Since(inferred),
	}
	p.opts.metrics.Record(timing)
	slog.Debug("prediction", "model", p.model.Name, "total", timing.Total(), "inference", timing.Inference)

	return result, nil
}

// BatchPredict runs Predict for every input with bounded concurrency. Results
// keep the input order; the first error cancels the remaining work.
func (p *Predictor[I, O]) BatchPredict(ctx context.Context, inputs []I) ([]O, error) {
	results := make([]O, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.workers)
	for i := range inputs {
		g.Go(func() error {
			out, err := p.Predict(gctx, inputs[i])
			if err != nil {
				return errors.Wrapf(err, "input %d", i)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Metrics returns the latency collector.
func (p *Predictor[I, O]) Metrics() *Metrics { return p.opts.metrics }

// Model returns the model the predictor runs.
func (p *Predictor[I, O]) Model() *Model { return p.model }

// Close marks the predictor closed and, when it owns the model, closes it.
// Subsequent calls are no-ops.
func (p *Predictor[I, O]) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.opts.ownsModel {
		return p.model.Close()
	}
	return nil
}
