// Package ndarray - n-dimensional float32 arrays and lists of arrays.
//
// NDArray values are immutable from the caller's point of view: every operation
// returns a new array and never mutates its receiver or arguments. Storage is
// row-major and the heavier shape operations (reshape validation, concat, stack,
// slicing and transposition) are delegated to gorgonia dense tensors.
package ndarray

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

var (
	// ErrShapeMismatch is returned when an operation receives incompatible shapes.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrAxis is returned when an axis is outside of the valid range for an array.
	ErrAxis = errors.New("axis out of range")
)

// NDArray is a dense float32 array with shape metadata.
type NDArray struct {
	name  string
	shape Shape
	data  []float32
}

// New creates an array with the given shape, copying data.
//
// Arguments:
//   - shape: The shape of the array. Every dimension must be >= 0.
//   - data: Row-major values. len(data) must equal shape.Size().
//
// Returns:
//   - *NDArray: The new array.
//   - error: ErrShapeMismatch if the data length does not match the shape.
func New(shape Shape, data []float32) (*NDArray, error) {
	if err := shape.validate(); err != nil {
		return nil, err
	}
	if len(data) != shape.Size() {
		return nil, errors.Wrapf(ErrShapeMismatch, "%d values cannot fill shape %v", len(data), shape)
	}
	buf := make([]float32, len(data))
	copy(buf, data)
	return &NDArray{shape: shape.Clone(), data: buf}, nil
}

// MustNew is like New but panics on error. Intended for tests and constants.
func MustNew(shape Shape, data []float32) *NDArray {
	a, err := New(shape, data)
	if err != nil {
		panic(err)
	}
	return a
}

// Zeros creates a zero filled array.
func Zeros(shape Shape) (*NDArray, error) {
	if err := shape.validate(); err != nil {
		return nil, err
	}
	return &NDArray{shape: shape.Clone(), data: make([]float32, shape.Size())}, nil
}

// Arange creates the 1-D array [0, 1, ..., n-1].
func Arange(n int) *NDArray {
	data := make([]float32, n)
	for i := range data {
		data[i] = float32(i)
	}
	return &NDArray{shape: Shape{n}, data: data}
}

// FromTensor copies a float32 gorgonia dense tensor into a new array.
func FromTensor(t *tensor.Dense) (*NDArray, error) {
	if t.Dtype() != tensor.Float32 {
		return nil, errors.Errorf("unsupported dtype %v, expected float32", t.Dtype())
	}
	shape := Shape(t.Shape().Clone())
	data := float32Data(t)
	if len(shape) == 0 {
		shape = Shape{len(data)}
	}
	return New(shape, data)
}

// wrap builds an array that takes ownership of data.
func wrap(shape Shape, data []float32) *NDArray {
	return &NDArray{shape: shape, data: data}
}

// Name returns the optional name of the array.
func (a *NDArray) Name() string { return a.name }

// SetName sets the name of the array and returns the array.
func (a *NDArray) SetName(name string) *NDArray {
	a.name = name
	return a
}

// Shape returns a copy of the array shape.
func (a *NDArray) Shape() Shape { return a.shape.Clone() }

// Dims returns the number of dimensions.
func (a *NDArray) Dims() int { return len(a.shape) }

// Size returns the total number of elements.
func (a *NDArray) Size() int { return len(a.data) }

// Float32s returns a copy of the row-major values.
func (a *NDArray) Float32s() []float32 {
	out := make([]float32, len(a.data))
	copy(out, a.data)
	return out
}

// At returns the element at the given index.
func (a *NDArray) At(idx ...int) (float32, error) {
	if len(idx) != len(a.shape) {
		return 0, errors.Wrapf(ErrShapeMismatch, "index %v has %d dims, array has %d", idx, len(idx), len(a.shape))
	}
	strides := a.shape.Strides()
	off := 0
	for i, v := range idx {
		if v < 0 || v >= a.shape[i] {
			return 0, errors.Errorf("index %d out of range for axis %d of size %d", v, i, a.shape[i])
		}
		off += v * strides[i]
	}
	return a.data[off], nil
}

// Tensor returns a gorgonia dense tensor holding a copy of the array data.
func (a *NDArray) Tensor() *tensor.Dense {
	return a.dense()
}

func (a *NDArray) dense() *tensor.Dense {
	buf := make([]float32, len(a.data))
	copy(buf, a.data)
	return tensor.New(tensor.WithShape(a.shape...), tensor.WithBacking(buf))
}

// Equal reports whether both arrays have the same shape and identical values.
func (a *NDArray) Equal(other *NDArray) bool {
	return a.AllClose(other, 0)
}

// AllClose reports whether both arrays have the same shape and every element
// differs by at most tol.
func (a *NDArray) AllClose(other *NDArray, tol float64) bool {
	if other == nil || !a.shape.Equal(other.shape) {
		return false
	}
	for i, v := range a.data {
		if math.Abs(float64(v-other.data[i])) > tol {
			return false
		}
	}
	return true
}

// String renders the shape and, for small arrays, the values.
func (a *NDArray) String() string {
	var sb strings.Builder
	if a.name != "" {
		sb.WriteString(a.name)
		sb.WriteString(": ")
	}
	sb.WriteString(fmt.Sprintf("ND: %v float32", a.shape))
	if len(a.data) <= 16 {
		sb.WriteString(fmt.Sprintf(" %v", a.data))
	}
	return sb.String()
}

// normalizeAxis maps a possibly negative axis into [0, dims).
func normalizeAxis(axis, dims int) (int, error) {
	if axis < 0 {
		axis += dims
	}
	if axis < 0 || axis >= dims {
		return 0, errors.Wrapf(ErrAxis, "axis %d for %d dims", axis, dims)
	}
	return axis, nil
}

// float32Data extracts values from a gorgonia tensor, including scalar results.
func float32Data(t tensor.Tensor) []float32 {
	switch v := t.Data().(type) {
	case []float32:
		out := make([]float32, len(v))
		copy(out, v)
		return out
	case float32:
		return []float32{v}
	default:
		return nil
	}
}
