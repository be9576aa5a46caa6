package providers

import (
	"runtime"
	"strings"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// OptimizationConfig contains ONNX Runtime threading and graph settings.
type OptimizationConfig struct {
	// GraphOptimizationLevel controls the level of graph optimization
	GraphOptimizationLevel ort.GraphOptimizationLevel `json:"graph_optimization_level" yaml:"graph_optimization_level"`

	// ExecutionMode controls sequential vs parallel execution
	ExecutionMode ort.ExecutionMode `json:"execution_mode" yaml:"execution_mode"`

	// IntraOpNumThreads sets threads for parallelizing ops, 0 lets the runtime decide
	IntraOpNumThreads int `json:"intra_op_num_threads" yaml:"intra_op_num_threads"`

	// InterOpNumThreads sets threads for parallelizing independent ops
	InterOpNumThreads int `json:"inter_op_num_threads" yaml:"inter_op_num_threads"`
}

// DefaultOptimizationConfig returns extended graph optimization with half the
// cores for intra-op work.
func DefaultOptimizationConfig() OptimizationConfig {
	return OptimizationConfig{
		GraphOptimizationLevel: ort.GraphOptimizationLevelEnableExtended,
		ExecutionMode:          ort.ExecutionModeSequential,
		IntraOpNumThreads:      max(1, runtime.NumCPU()/2),
		InterOpNumThreads:      1,
	}
}

// ParseGraphOptimizationLevel maps disabled, basic, extended or all onto the
// runtime constant.
func ParseGraphOptimizationLevel(level string) (ort.GraphOptimizationLevel, error) {
	switch strings.ToLower(level) {
	case "disabled", "none", "disable_all":
		return ort.GraphOptimizationLevelDisableAll, nil
	case "basic":
		return ort.GraphOptimizationLevelEnableBasic, nil
	case "extended", "":
		return ort.GraphOptimizationLevelEnableExtended, nil
	case "all":
		return ort.GraphOptimizationLevelEnableAll, nil
	default:
		return 0, errors.Errorf("unknown graph optimization level %q", level)
	}
}

// OptimizedSessionOptions builds session options from config and attaches the
// execution provider.
//
// Arguments:
//   - config: Optimization configuration to apply
//   - provider: The execution provider to append
//
// Returns:
//   - *ort.SessionOptions: Configured session options, destroyed by the caller
//   - error: Configuration error if any
func OptimizedSessionOptions(config OptimizationConfig, provider ExecutionProvider) (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session options")
	}

	apply := []func() error{
		func() error { return options.SetGraphOptimizationLevel(config.GraphOptimizationLevel) },
		func() error { return options.SetExecutionMode(config.ExecutionMode) },
		func() error { return options.SetIntraOpNumThreads(config.IntraOpNumThreads) },
		func() error { return options.SetInterOpNumThreads(config.InterOpNumThreads) },
		func() error { return provider.Append(options) },
	}
	for _, fn := range apply {
		if err := fn(); err != nil {
			options.Destroy()
			return nil, errors.Wrapf(err, "failed to configure %s session", provider.Backend())
		}
	}
	return options, nil
}
