// Package dnn - OpenCV DNN inference engine built on gocv.
package dnn

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"unsafe"

	"github.com/nvr-ai/go-infer/inference"
	"github.com/nvr-ai/go-infer/ndarray"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Config for an OpenCV DNN network.
type Config struct {
	// ModelPath is the weights file (.onnx, .pb, .caffemodel, .t7).
	ModelPath string `json:"model_path" yaml:"model_path"`
	// ConfigPath is the optional graph description (.pbtxt, .prototxt).
	ConfigPath string `json:"config_path,omitempty" yaml:"config_path,omitempty"`
	// Backend is one of default, opencv, cuda, openvino, vulkan, halide.
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`
	// Target is one of cpu, fp32, fp16, cuda, cuda_fp16, vulkan, fpga.
	Target string `json:"target,omitempty" yaml:"target,omitempty"`
	// Outputs names the layers to fetch; empty uses the unconnected outputs.
	Outputs []string `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

// configFromEngine reads backend, target, config and outputs from the engine
// options. A graph description next to the weights (same base name with
// .pbtxt or .prototxt) is picked up automatically.
func configFromEngine(path string, cfg inference.EngineConfig) Config {
	c := Config{
		ModelPath:  path,
		ConfigPath: cfg.Option("config", ""),
		Backend:    cfg.Option("backend", "opencv"),
		Target:     cfg.Option("target", "cpu"),
	}
	if outputs := cfg.Option("outputs", ""); outputs != "" {
		for _, name := range strings.Split(outputs, ",") {
			if name = strings.TrimSpace(name); name != "" {
				c.Outputs = append(c.Outputs, name)
			}
		}
	}
	if c.ConfigPath == "" {
		base := strings.TrimSuffix(path, filepath.Ext(path))
		for _, ext := range []string{".pbtxt", ".prototxt"} {
			if _, err := os.Stat(base + ext); err == nil {
				c.ConfigPath = base + ext
				break
			}
		}
	}
	return c
}

// Net is a loaded OpenCV DNN network. It implements inference.Engine.
type Net struct {
	mu      sync.Mutex
	net     gocv.Net
	outputs []string
	closed  bool
}

// Open loads the network described by cfg.
//
// Arguments:
//   - cfg: Model paths, backend and target.
//
// Returns:
//   - *Net: The network. The caller must Close it.
//   - error: An error if the file is missing or OpenCV cannot parse it.
func Open(cfg Config) (n *Net, err error) {
	info, err := os.Stat(cfg.ModelPath)
	if err != nil {
		return nil, errors.Wrap(err, "model file not found")
	}
	if info.Size() == 0 {
		return nil, errors.Errorf("model file is empty: %s", cfg.ModelPath)
	}

	defer func() {
		if r := recover(); r != nil {
			n, err = nil, fmt.Errorf("panic during model loading: %v", r)
		}
	}()

	net := gocv.ReadNet(cfg.ModelPath, cfg.ConfigPath)
	if net.Empty() {
		return nil, errors.Errorf("failed to load model %s (model may be incompatible with OpenCV DNN)", cfg.ModelPath)
	}

	net.SetPreferableBackend(gocv.ParseNetBackend(cfg.Backend))
	net.SetPreferableTarget(gocv.ParseNetTarget(cfg.Target))

	outputs := cfg.Outputs
	if len(outputs) == 0 {
		outputs = unconnectedOutputs(&net)
	}
	if len(outputs) == 0 {
		net.Close()
		return nil, errors.Errorf("no output layers found in %s", cfg.ModelPath)
	}

	slog.Debug("opencv network loaded",
		"model", cfg.ModelPath,
		"config", cfg.ConfigPath,
		"backend", cfg.Backend,
		"target", cfg.Target,
		"outputs", outputs,
	)

	return &Net{net: net, outputs: outputs}, nil
}

func open(_ context.Context, path string, cfg inference.EngineConfig) (inference.Engine, error) {
	return Open(configFromEngine(path, cfg))
}

func init() {
	inference.Register(inference.EngineOpenCV, open)
}

func unconnectedOutputs(net *gocv.Net) []string {
	ids := net.GetUnconnectedOutLayers()
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		layer := net.GetLayer(id)
		names = append(names, layer.GetName())
		layer.Close()
	}
	return names
}

// Name implements inference.Engine.
func (n *Net) Name() string { return "opencv" }

// Outputs returns the layer names Forward fetches.
func (n *Net) Outputs() []string { return n.outputs }

// Forward sets every input array as a blob and runs the network. Arrays with
// a name are bound to the input layer of that name.
func (n *Net) Forward(ctx context.Context, inputs ndarray.NDList) (out ndarray.NDList, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if inputs.Len() == 0 {
		return nil, errors.New("no inputs")
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, errors.New("network is closed")
	}

	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("panic during inference: %v", r)
		}
	}()

	for _, arr := range inputs {
		blob, err := ToBlob(arr)
		if err != nil {
			return nil, err
		}
		n.net.SetInput(blob, arr.Name())
		blob.Close()
	}

	mats := n.net.ForwardLayers(n.outputs)
	defer func() {
		for _, m := range mats {
			m.Close()
		}
	}()

	out = make(ndarray.NDList, len(mats))
	for i, m := range mats {
		arr, err := FromBlob(m)
		if err != nil {
			return nil, errors.Wrapf(err, "output %s", n.outputs[i])
		}
		out[i] = arr.SetName(n.outputs[i])
	}
	return out, nil
}

// Close releases the network.
func (n *Net) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	return n.net.Close()
}

// ToBlob copies an array into an n-dimensional CV_32F Mat. The returned Mat
// owns its memory.
func ToBlob(arr *ndarray.NDArray) (gocv.Mat, error) {
	data := arr.Float32s()
	if len(data) == 0 {
		return gocv.NewMat(), errors.New("cannot convert an empty array to a blob")
	}
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*4)
	mat, err := gocv.NewMatWithSizesFromBytes(arr.Shape(), gocv.MatTypeCV32F, raw)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "failed to create blob")
	}
	defer mat.Close()
	blob := mat.Clone()
	runtime.KeepAlive(data)
	return blob, nil
}

// FromBlob copies a CV_32F Mat into an array with the Mat's dimensions.
func FromBlob(m gocv.Mat) (*ndarray.NDArray, error) {
	if m.Empty() {
		return nil, errors.New("empty output")
	}
	if m.Type() != gocv.MatTypeCV32F {
		return nil, errors.Errorf("unsupported mat type %v", m.Type())
	}
	data, err := m.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read mat data")
	}
	return ndarray.New(ndarray.Shape(m.Size()), data)
}
