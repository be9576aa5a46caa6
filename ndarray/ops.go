package ndarray

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
)

// Scale multiplies every element by f.
func (a *NDArray) Scale(f float32) *NDArray {
	out := make([]float32, len(a.data))
	for i, v := range a.data {
		out[i] = v * f
	}
	return wrap(a.shape.Clone(), out)
}

// Normalize applies (x - mean[c]) / std[c] where c is the index along axis.
//
// Arguments:
//   - mean: Per-channel means. Its length must equal the axis size.
//   - std: Per-channel standard deviations, same length as mean.
//   - axis: The channel axis, usually 0 for CHW images.
//
// Returns:
//   - *NDArray: The normalized array.
//   - error: An error if the channel counts do not match.
func (a *NDArray) Normalize(mean, std []float32, axis int) (*NDArray, error) {
	ax, err := normalizeAxis(axis, len(a.shape))
	if err != nil {
		return nil, err
	}
	channels := a.shape[ax]
	if len(mean) != channels || len(std) != channels {
		return nil, errors.Wrapf(ErrShapeMismatch, "normalize %d channels with %d means and %d stds",
			channels, len(mean), len(std))
	}
	for c, s := range std {
		if s == 0 {
			return nil, errors.Errorf("std for channel %d is zero", c)
		}
	}
	inner := a.shape.Strides()[ax]
	out := make([]float32, len(a.data))
	for i, v := range a.data {
		c := (i / inner) % channels
		out[i] = (v - mean[c]) / std[c]
	}
	return wrap(a.shape.Clone(), out), nil
}

// Sigmoid applies the logistic function element-wise.
func (a *NDArray) Sigmoid() *NDArray {
	out := make([]float32, len(a.data))
	for i, v := range a.data {
		out[i] = 1 / (1 + math32.Exp(-v))
	}
	return wrap(a.shape.Clone(), out)
}

// Softmax normalizes the last axis into probabilities.
func (a *NDArray) Softmax() *NDArray {
	out := make([]float32, len(a.data))
	if len(a.data) == 0 {
		return wrap(a.shape.Clone(), out)
	}
	width := a.shape[len(a.shape)-1]
	for start := 0; start+width <= len(a.data); start += width {
		row := a.data[start : start+width]
		peak := math32.Inf(-1)
		for _, v := range row {
			peak = math32.Max(peak, v)
		}
		var sum float32
		for i, v := range row {
			e := math32.Exp(v - peak)
			out[start+i] = e
			sum += e
		}
		for i := range row {
			out[start+i] /= sum
		}
	}
	return wrap(a.shape.Clone(), out)
}

// ArgMax returns the flat index of the largest element, or -1 when empty.
func (a *NDArray) ArgMax() int {
	best := -1
	for i, v := range a.data {
		if best < 0 || v > a.data[best] {
			best = i
		}
	}
	return best
}
