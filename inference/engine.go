// Package inference - Inference engine interface and implementations.
package inference

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/nvr-ai/go-infer/ndarray"
	"github.com/pkg/errors"
)

// Engine defines the interface for native inference engines.
type Engine interface {
	// Name identifies the engine in logs and metrics.
	Name() string
	// Forward runs the model on inputs and returns its outputs.
	Forward(ctx context.Context, inputs ndarray.NDList) (ndarray.NDList, error)
	// Close releases native resources.
	Close() error
}

// EngineConfig selects and tunes the engine used to open a model.
type EngineConfig struct {
	// Type is the engine implementation.
	Type EngineType `json:"type" yaml:"type"`
	// Options are engine specific settings (provider, backend, threads...).
	Options map[string]string `json:"options,omitempty" yaml:"options,omitempty"`
}

// Option returns the named option or fallback when it is unset.
func (c EngineConfig) Option(key, fallback string) string {
	if v, ok := c.Options[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Opener opens the model artifact at path with an engine.
type Opener func(ctx context.Context, path string, cfg EngineConfig) (Engine, error)

var (
	openersMu sync.RWMutex
	openers   = map[EngineType]Opener{}
)

// Register makes an engine type available to EngineBuilder and LoadModel.
// Registering the same type twice replaces the previous opener.
func Register(t EngineType, opener Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[t] = opener
}

func lookupOpener(t EngineType) (Opener, error) {
	openersMu.RLock()
	defer openersMu.RUnlock()
	opener, ok := openers[t]
	if !ok {
		return nil, errors.Wrapf(ErrEngineNotRegistered, "engine %q", t)
	}
	return opener, nil
}

// EngineBuilder helps build engines with a fluent API.
type EngineBuilder struct {
	ctx  context.Context
	cfg  EngineConfig
	path string
	err  error
}

// NewEngineBuilder creates a new engine builder.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func NewEngineBuilder() *EngineBuilder {
	return &EngineBuilder{ctx: context.Background(), cfg: EngineConfig{Type: EngineONNX}}
}

// WithContext sets the context used while opening the engine.
func (b *EngineBuilder) WithContext(ctx context.Context) *EngineBuilder {
	if ctx != nil {
		b.ctx = ctx
	}
	return b
}

// WithConfig sets the engine configuration.
//
// Arguments:
//   - cfg: The engine type and its options.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithConfig(cfg EngineConfig) *EngineBuilder {
	if b.HasError() {
		return b
	}
	if cfg.Type == "" {
		b.err = errors.New("engine type is required")
		return b
	}
	b.cfg = cfg
	return b
}

// WithModel sets the model artifact path for the engine.
//
// Arguments:
//   - path: The resolved path of the model file.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithModel(path string) *EngineBuilder {
	if b.HasError() {
		return b
	}
	if path == "" {
		b.err = errors.New("model path is required")
		return b
	}
	b.path = path
	return b
}

// HasError checks if the engine builder has errors.
//
// Returns:
//   - bool: True if there are errors, false otherwise.
func (b *EngineBuilder) HasError() bool {
	return b.err != nil
}

// MustBuild builds the engine and panics if there is an error.
//
// Returns:
//   - Engine: The engine.
func (b *EngineBuilder) MustBuild() Engine {
	e, err := b.Build()
	if err != nil {
		panic(err)
	}
	return e
}

// Build opens the engine.
//
// Returns:
//   - Engine: The engine.
//   - error: The error if any.
func (b *EngineBuilder) Build() (Engine, error) {
	if b.HasError() {
		return nil, b.err
	}
	if b.path == "" {
		return nil, errors.New("model not configured")
	}
	opener, err := lookupOpener(b.cfg.Type)
	if err != nil {
		return nil, err
	}

	slog.Debug("opening engine", "engine", b.cfg.Type, "path", b.path)
	engine, err := opener(b.ctx, b.path, b.cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s engine", b.cfg.Type)
	}
	return engine, nil
}

// ForwardFunc computes outputs from inputs.
type ForwardFunc func(ctx context.Context, inputs ndarray.NDList) (ndarray.NDList, error)

// FuncEngine is an in-process Engine backed by a Go function.
type FuncEngine struct {
	name    string
	forward ForwardFunc
	calls   atomic.Int64
	closed  atomic.Bool
}

// NewFuncEngine wraps fn as an Engine.
func NewFuncEngine(name string, fn ForwardFunc) *FuncEngine {
	return &FuncEngine{name: name, forward: fn}
}

// Name implements Engine.
func (e *FuncEngine) Name() string { return e.name }

// Forward implements Engine.
func (e *FuncEngine) Forward(ctx context.Context, inputs ndarray.NDList) (ndarray.NDList, error) {
	if e.closed.Load() {
		return nil, errors.Errorf("engine %s is closed", e.name)
	}
	e.calls.Add(1)
	return e.forward(ctx, inputs)
}

// Close implements Engine.
func (e *FuncEngine) Close() error {
	e.closed.Store(true)
	return nil
}

// Calls returns how many times Forward ran.
func (e *FuncEngine) Calls() int64 { return e.calls.Load() }

// Closed reports whether Close was called.
func (e *FuncEngine) Closed() bool { return e.closed.Load() }
