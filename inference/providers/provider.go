// Package providers - onnxruntime engine and its execution providers.
package providers

import (
	"strconv"
	"strings"

	"github.com/nvr-ai/go-infer/inference"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ProviderBackend represents different ONNX Runtime execution providers
type ProviderBackend string

const (
	// CPUProviderBackend runs on the default CPU provider.
	CPUProviderBackend ProviderBackend = "cpu"
)

// Backends lists every backend NewSession can attach.
var Backends = []ProviderBackend{
	CPUProviderBackend,
	CUDAProviderBackend,
	CoreMLProviderBackend,
	OpenVINOProviderBackend,
}

// ExecutionProvider attaches itself to a set of session options.
type ExecutionProvider interface {
	Backend() ProviderBackend
	Append(options *ort.SessionOptions) error
}

// Config represents the onnxruntime engine configuration.
type Config struct {
	// Backend specifies the execution provider to use.
	Backend ProviderBackend `json:"backend" yaml:"backend"`
	// LibraryPath points at the onnxruntime shared library. Empty uses
	// GetSharedLibPath.
	LibraryPath string `json:"library_path,omitempty" yaml:"library_path,omitempty"`
	// Optimization holds threading and graph optimization settings.
	Optimization OptimizationConfig `json:"optimization" yaml:"optimization"`
	// Inputs and Outputs name the graph nodes to bind. Empty discovers them
	// from the model.
	Inputs  []string `json:"inputs,omitempty"  yaml:"inputs,omitempty"`
	Outputs []string `json:"outputs,omitempty" yaml:"outputs,omitempty"`

	CUDA     CUDAOptions     `json:"cuda"     yaml:"cuda"`
	CoreML   CoreMLOptions   `json:"coreml"   yaml:"coreml"`
	OpenVINO OpenVINOOptions `json:"openvino" yaml:"openvino"`
}

// DefaultConfig returns a CPU configuration with default optimization.
func DefaultConfig() Config {
	return Config{
		Backend:      CPUProviderBackend,
		Optimization: DefaultOptimizationConfig(),
	}
}

// ConfigFromEngine maps the flat engine options used by model criteria onto a
// Config. Recognized keys: provider, library, threads, inter_threads,
// optimization, device_id, coreml_flags, device_type, inputs, outputs.
func ConfigFromEngine(cfg inference.EngineConfig) (Config, error) {
	c := DefaultConfig()
	c.Backend = ProviderBackend(strings.ToLower(cfg.Option("provider", string(CPUProviderBackend))))
	c.LibraryPath = cfg.Option("library", "")

	var err error
	if c.Optimization.IntraOpNumThreads, err = intOption(cfg, "threads", c.Optimization.IntraOpNumThreads); err != nil {
		return c, err
	}
	if c.Optimization.InterOpNumThreads, err = intOption(cfg, "inter_threads", c.Optimization.InterOpNumThreads); err != nil {
		return c, err
	}
	if level, ok := cfg.Options["optimization"]; ok {
		if c.Optimization.GraphOptimizationLevel, err = ParseGraphOptimizationLevel(level); err != nil {
			return c, err
		}
	}

	deviceID, err := intOption(cfg, "device_id", 0)
	if err != nil {
		return c, err
	}
	c.CUDA.DeviceID = deviceID
	flags, err := intOption(cfg, "coreml_flags", 0)
	if err != nil {
		return c, err
	}
	if flags < 0 {
		return c, errors.Errorf("coreml_flags must not be negative, got %d", flags)
	}
	c.CoreML.Flags = uint32(flags)
	c.OpenVINO.DeviceID = cfg.Option("device_id", "")
	c.OpenVINO.DeviceType = cfg.Option("device_type", "")

	c.Inputs = listOption(cfg, "inputs")
	c.Outputs = listOption(cfg, "outputs")

	return c, c.Validate()
}

// Validate checks that the backend is known and the thread counts are sane.
func (c Config) Validate() error {
	if _, err := NewProvider(c); err != nil {
		return err
	}
	if c.Optimization.IntraOpNumThreads < 0 || c.Optimization.InterOpNumThreads < 0 {
		return errors.New("thread counts must not be negative")
	}
	return nil
}

// NewProvider creates the execution provider selected by the configuration.
//
// Arguments:
//   - c: The engine configuration.
//
// Returns:
//   - ExecutionProvider: The provider.
//   - error: An error if the backend is unsupported.
func NewProvider(c Config) (ExecutionProvider, error) {
	switch c.Backend {
	case CPUProviderBackend, "":
		return cpuProvider{}, nil
	case CUDAProviderBackend:
		return NewCUDAProvider(c.CUDA), nil
	case CoreMLProviderBackend:
		return NewCoreMLProvider(c.CoreML), nil
	case OpenVINOProviderBackend:
		return NewOpenVINOProvider(c.OpenVINO), nil
	default:
		return nil, errors.Errorf("unsupported execution provider %q", c.Backend)
	}
}

// cpuProvider needs no registration; onnxruntime always falls back to CPU.
type cpuProvider struct{}

func (cpuProvider) Backend() ProviderBackend { return CPUProviderBackend }

func (cpuProvider) Append(*ort.SessionOptions) error { return nil }

func intOption(cfg inference.EngineConfig, key string, fallback int) (int, error) {
	v, ok := cfg.Options[key]
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "option %s", key)
	}
	return n, nil
}

func listOption(cfg inference.EngineConfig, key string) []string {
	v := cfg.Option(key, "")
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
