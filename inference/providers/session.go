package providers

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/nvr-ai/go-infer/inference"
	"github.com/nvr-ai/go-infer/ndarray"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

var (
	environmentOnce sync.Once
	environmentErr  error
)

// InitializeEnvironment loads the onnxruntime library once per process.
// Later calls return the result of the first one.
func InitializeEnvironment(libPath string) error {
	environmentOnce.Do(func() {
		if libPath == "" {
			libPath = GetSharedLibPath()
		}
		if _, err := os.Stat(libPath); err != nil {
			environmentErr = errors.Wrapf(err, "ONNX Runtime library not found at %s, set %s", libPath, LibraryEnv)
			return
		}
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			environmentErr = errors.Wrap(err, "error initializing ORT environment")
			return
		}
		slog.Debug("onnxruntime initialized", "library", libPath)
	})
	return environmentErr
}

// TensorInfo describes one graph input or output.
type TensorInfo struct {
	Name  string
	Shape ndarray.Shape
}

// Session is an onnxruntime model session. It implements inference.Engine.
type Session struct {
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
	backend ProviderBackend
	inputs  []TensorInfo
	outputs []TensorInfo
}

// NewSessionArgs represents the arguments for creating a new session.
type NewSessionArgs struct {
	// The path to the ONNX model file.
	ModelPath string
	// Input node names; empty binds every graph input.
	Inputs []string
	// Output node names; empty binds every graph output.
	Outputs []string
}

// NewSession creates a new ONNX Runtime session.
//
// Order of operations:
//  1. Environment setup: loads the native runtime once per process.
//  2. Graph inspection: discovers input and output names and shapes.
//  3. Session options: threading, optimization level and the execution provider.
//  4. Session creation: output tensors are allocated by the runtime per call
//     so models with dynamic output shapes work.
//
// Arguments:
//   - config: The provider and optimization configuration.
//   - args: The arguments for the session.
//
// Returns:
//   - *Session: The session. The caller must Close it.
//   - error: An error if the session creation fails.
func NewSession(config Config, args NewSessionArgs) (*Session, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}
	if err := InitializeEnvironment(config.LibraryPath); err != nil {
		return nil, err
	}

	inputInfo, outputInfo, err := ort.GetInputOutputInfo(args.ModelPath)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading model info from %s", args.ModelPath)
	}
	inputs, err := selectTensors(inputInfo, args.Inputs)
	if err != nil {
		return nil, errors.Wrap(err, "inputs")
	}
	outputs, err := selectTensors(outputInfo, args.Outputs)
	if err != nil {
		return nil, errors.Wrap(err, "outputs")
	}

	options, err := OptimizedSessionOptions(config.Optimization, provider)
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(args.ModelPath, names(inputs), names(outputs), options)
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session")
	}

	slog.Debug("onnxruntime session created",
		"model", args.ModelPath,
		"backend", provider.Backend(),
		"inputs", names(inputs),
		"outputs", names(outputs),
	)

	return &Session{
		session: session,
		backend: provider.Backend(),
		inputs:  inputs,
		outputs: outputs,
	}, nil
}

// Open adapts NewSession to inference.Opener.
func Open(_ context.Context, path string, cfg inference.EngineConfig) (inference.Engine, error) {
	config, err := ConfigFromEngine(cfg)
	if err != nil {
		return nil, err
	}
	return NewSession(config, NewSessionArgs{
		ModelPath: path,
		Inputs:    config.Inputs,
		Outputs:   config.Outputs,
	})
}

func init() {
	inference.Register(inference.EngineONNX, Open)
}

// Name implements inference.Engine.
func (s *Session) Name() string { return "onnxruntime/" + string(s.backend) }

// Inputs returns the bound graph inputs.
func (s *Session) Inputs() []TensorInfo { return s.inputs }

// Outputs returns the bound graph outputs.
func (s *Session) Outputs() []TensorInfo { return s.outputs }

// Forward runs the model. Inputs are matched to graph inputs by name when
// every array is named, otherwise by position.
func (s *Session) Forward(ctx context.Context, inputs ndarray.NDList) (ndarray.NDList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if inputs.Len() != len(s.inputs) {
		return nil, errors.Errorf("model expects %d inputs, got %d", len(s.inputs), inputs.Len())
	}

	values := make([]ort.Value, len(s.inputs))
	defer destroyAll(values)
	for i, info := range s.inputs {
		arr := inputs.Get(i)
		if named, ok := inputs.ByName(info.Name); ok {
			arr = named
		}
		tensor, err := ort.NewTensor(toShape(arr.Shape()), arr.Float32s())
		if err != nil {
			return nil, errors.Wrapf(err, "error creating input tensor %s", info.Name)
		}
		values[i] = tensor
	}

	results := make([]ort.Value, len(s.outputs))
	defer destroyAll(results)

	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return nil, errors.New("session is closed")
	}
	err := s.session.Run(values, results)
	s.mu.Unlock()
	if err != nil {
		return nil, errors.Wrap(err, "error running ORT session")
	}

	out := make(ndarray.NDList, len(results))
	for i, value := range results {
		tensor, ok := value.(*ort.Tensor[float32])
		if !ok {
			return nil, errors.Errorf("output %s is %T, only float32 tensors are supported", s.outputs[i].Name, value)
		}
		arr, err := ndarray.New(fromShape(tensor.GetShape()), tensor.GetData())
		if err != nil {
			return nil, errors.Wrapf(err, "output %s", s.outputs[i].Name)
		}
		out[i] = arr.SetName(s.outputs[i].Name)
	}
	return out, nil
}

// Close releases the native session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	if err != nil {
		return errors.Wrap(err, "error destroying ORT session")
	}
	return nil
}

func selectTensors(info []ort.InputOutputInfo, wanted []string) ([]TensorInfo, error) {
	all := make([]TensorInfo, len(info))
	byName := make(map[string]TensorInfo, len(info))
	for i, in := range info {
		t := TensorInfo{Name: in.Name, Shape: fromShape(in.Dimensions)}
		all[i] = t
		byName[in.Name] = t
	}
	if len(wanted) == 0 {
		return all, nil
	}

	selected := make([]TensorInfo, 0, len(wanted))
	for _, name := range wanted {
		t, ok := byName[name]
		if !ok {
			return nil, errors.Errorf("model has no tensor named %q", name)
		}
		selected = append(selected, t)
	}
	return selected, nil
}

func names(infos []TensorInfo) []string {
	out := make([]string, len(infos))
	for i, info := range infos {
		out[i] = info.Name
	}
	return out
}

func toShape(s ndarray.Shape) ort.Shape {
	out := make(ort.Shape, len(s))
	for i, d := range s {
		out[i] = int64(d)
	}
	return out
}

// fromShape converts a runtime shape; dynamic dimensions (-1) are kept as is.
func fromShape(s ort.Shape) ndarray.Shape {
	out := make(ndarray.Shape, len(s))
	for i, d := range s {
		out[i] = int(d)
	}
	return out
}

func destroyAll(values []ort.Value) {
	for _, v := range values {
		if v != nil {
			v.Destroy()
		}
	}
}
