// Package inference - Inference engine interface and implementations
package inference

import (
	"strings"

	"github.com/pkg/errors"
)

// EngineType is the type of the engine
type EngineType string

const (
	// EngineONNX is the ONNX engine that uses the onnxruntime library
	EngineONNX EngineType = "onnx"
	// EngineOpenCV is the OpenCV DNN engine that uses the gocv bindings
	EngineOpenCV EngineType = "opencv"
	// EngineFunc is an in-process engine backed by a Go function. It is
	// registered from code and cannot be selected by name.
	EngineFunc EngineType = "func"
)

// Engines is a list of all supported native engines
var Engines = []EngineType{EngineONNX, EngineOpenCV}

// Extensions returns the model artifact extensions the engine can load, in
// lookup order.
func (t EngineType) Extensions() []string {
	switch t {
	case EngineONNX:
		return []string{".onnx", ".ort"}
	case EngineOpenCV:
		return []string{".onnx", ".pb", ".caffemodel", ".t7"}
	default:
		return nil
	}
}

// ParseEngineType maps a user supplied name onto one of Engines.
func ParseEngineType(name string) (EngineType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "onnx", "onnxruntime", "ort":
		return EngineONNX, nil
	case "opencv", "dnn", "gocv":
		return EngineOpenCV, nil
	default:
		return "", errors.Errorf("unsupported engine %q", name)
	}
}
