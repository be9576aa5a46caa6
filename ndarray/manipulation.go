package ndarray

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Reshape returns a copy of the array with a new shape.
//
// Exactly one dimension may be -1, in which case it is inferred from the total
// number of elements. The element count must be preserved.
//
// Arguments:
//   - dims: The target dimensions.
//
// Returns:
//   - *NDArray: The reshaped array.
//   - error: ErrShapeMismatch when the shape cannot hold the array elements.
func (a *NDArray) Reshape(dims ...int) (*NDArray, error) {
	if len(dims) == 0 {
		return nil, errors.Wrap(ErrShapeMismatch, "reshape requires at least one dimension")
	}
	target, err := Shape(dims).infer(a.Size())
	if err != nil {
		return nil, err
	}
	if a.Size() == 0 {
		return wrap(target, []float32{}), nil
	}
	d := a.dense()
	if err := d.Reshape(target...); err != nil {
		return nil, errors.Wrapf(ErrShapeMismatch, "reshape %v to %v: %v", a.shape, target, err)
	}
	return wrap(target, float32Data(d)), nil
}

// Flatten collapses all dimensions into one, preserving row-major order.
func (a *NDArray) Flatten() *NDArray {
	return wrap(Shape{a.Size()}, a.Float32s())
}

// ExpandDims inserts a dimension of size 1 at axis. Negative axes count from
// the end, so -1 appends a trailing dimension.
func (a *NDArray) ExpandDims(axis int) (*NDArray, error) {
	dims := len(a.shape)
	if axis < 0 {
		axis += dims + 1
	}
	if axis < 0 || axis > dims {
		return nil, errors.Wrapf(ErrAxis, "expand axis %d for %d dims", axis, dims)
	}
	target := make(Shape, 0, dims+1)
	target = append(target, a.shape[:axis]...)
	target = append(target, 1)
	target = append(target, a.shape[axis:]...)
	return a.Reshape(target...)
}

// Squeeze removes size-1 dimensions. With no axes every size-1 dimension is
// removed; otherwise only the listed axes, which must have size 1.
func (a *NDArray) Squeeze(axes ...int) (*NDArray, error) {
	drop := make(map[int]bool, len(a.shape))
	if len(axes) == 0 {
		for i, d := range a.shape {
			if d == 1 {
				drop[i] = true
			}
		}
	}
	for _, axis := range axes {
		ax, err := normalizeAxis(axis, len(a.shape))
		if err != nil {
			return nil, err
		}
		if a.shape[ax] != 1 {
			return nil, errors.Wrapf(ErrShapeMismatch, "cannot squeeze axis %d of size %d", ax, a.shape[ax])
		}
		drop[ax] = true
	}
	target := make(Shape, 0, len(a.shape))
	for i, d := range a.shape {
		if !drop[i] {
			target = append(target, d)
		}
	}
	if len(target) == 0 {
		target = Shape{1}
	}
	return wrap(target, a.Float32s()), nil
}

// Split partitions the array into sections equal parts along axis. The parts
// keep the split axis, so [2, 2] split into 2 along axis 0 gives two [1, 2]
// arrays. Use Unstack to drop it.
//
// Arguments:
//   - sections: The number of parts. The axis length must be divisible by it.
//   - axis: The axis to split along. Negative values count from the end.
//
// Returns:
//   - NDList: The parts, in order.
//   - error: ErrShapeMismatch when the axis cannot be divided evenly.
func (a *NDArray) Split(sections, axis int) (NDList, error) {
	ax, err := normalizeAxis(axis, len(a.shape))
	if err != nil {
		return nil, err
	}
	if sections <= 0 {
		return nil, errors.Errorf("sections must be positive, got %d", sections)
	}
	if a.shape[ax]%sections != 0 {
		return nil, errors.Wrapf(ErrShapeMismatch, "axis %d of size %d cannot be split into %d equal parts",
			ax, a.shape[ax], sections)
	}
	step := a.shape[ax] / sections
	indices := make([]int, 0, sections-1)
	for i := 1; i < sections; i++ {
		indices = append(indices, i*step)
	}
	return a.SplitAt(indices, ax)
}

// Unstack splits the array into shape[axis] parts and removes axis from
// each, so [2, 2] unstacks into two [2] arrays. It is the inverse of Stack.
// A 1-D array unstacks into [1] arrays.
func (a *NDArray) Unstack(axis int) (NDList, error) {
	ax, err := normalizeAxis(axis, len(a.shape))
	if err != nil {
		return nil, err
	}
	if a.shape[ax] == 0 {
		return NDList{}, nil
	}
	parts, err := a.Split(a.shape[ax], ax)
	if err != nil {
		return nil, err
	}
	for i, part := range parts {
		if parts[i], err = part.Squeeze(ax); err != nil {
			return nil, err
		}
	}
	return parts, nil
}

// SplitAt splits the array along axis at the given ascending indices. Indices
// [2, 5] on an axis of length 7 yield the ranges [0,2), [2,5) and [5,7).
func (a *NDArray) SplitAt(indices []int, axis int) (NDList, error) {
	ax, err := normalizeAxis(axis, len(a.shape))
	if err != nil {
		return nil, err
	}
	bounds := make([]int, 0, len(indices)+2)
	bounds = append(bounds, 0)
	for _, idx := range indices {
		if idx < bounds[len(bounds)-1] || idx > a.shape[ax] {
			return nil, errors.Errorf("split indices %v are not ascending within [0, %d]", indices, a.shape[ax])
		}
		bounds = append(bounds, idx)
	}
	bounds = append(bounds, a.shape[ax])

	out := make(NDList, 0, len(bounds)-1)
	for i := 0; i+1 < len(bounds); i++ {
		part, err := a.sliceAxis(ax, bounds[i], bounds[i+1])
		if err != nil {
			return nil, err
		}
		out = append(out, part)
	}
	return out, nil
}

// sliceAxis copies the range [start, end) of axis into a new array.
func (a *NDArray) sliceAxis(axis, start, end int) (*NDArray, error) {
	target := a.shape.Clone()
	target[axis] = end - start
	if target.Size() == 0 {
		return wrap(target, []float32{}), nil
	}

	slices := make([]tensor.Slice, len(a.shape))
	slices[axis] = tensor.S(start, end)
	view, err := a.dense().Slice(slices...)
	if err != nil {
		return nil, errors.Wrapf(err, "slice axis %d [%d:%d]", axis, start, end)
	}
	data := float32Data(view.Materialize())
	if len(data) != target.Size() {
		return nil, errors.Wrapf(ErrShapeMismatch, "slice produced %d values for shape %v", len(data), target)
	}
	return wrap(target, data), nil
}

// Stack joins arrays of identical shape along a new axis.
//
// Arguments:
//   - axis: Position of the new axis in the result, in [-dims-1, dims].
//   - arrays: The arrays to stack. At least one is required.
//
// Returns:
//   - *NDArray: An array whose shape is the input shape with len(arrays)
//     inserted at axis.
//   - error: ErrShapeMismatch if the shapes differ.
func Stack(axis int, arrays ...*NDArray) (*NDArray, error) {
	if len(arrays) == 0 {
		return nil, errors.New("stack requires at least one array")
	}
	first := arrays[0]
	for _, arr := range arrays[1:] {
		if !arr.shape.Equal(first.shape) {
			return nil, errors.Wrapf(ErrShapeMismatch, "cannot stack %v with %v", first.shape, arr.shape)
		}
	}
	dims := len(first.shape)
	if axis < 0 {
		axis += dims + 1
	}
	if axis < 0 || axis > dims {
		return nil, errors.Wrapf(ErrAxis, "stack axis %d for %d dims", axis, dims)
	}

	target := make(Shape, 0, dims+1)
	target = append(target, first.shape[:axis]...)
	target = append(target, len(arrays))
	target = append(target, first.shape[axis:]...)

	if len(arrays) == 1 {
		return first.ExpandDims(axis)
	}
	if target.Size() == 0 {
		return wrap(target, []float32{}), nil
	}

	others := make([]*tensor.Dense, 0, len(arrays)-1)
	for _, arr := range arrays[1:] {
		others = append(others, arr.dense())
	}
	stacked, err := first.dense().Stack(axis, others...)
	if err != nil {
		return nil, errors.Wrapf(err, "stack %d arrays of %v", len(arrays), first.shape)
	}
	return wrap(target, float32Data(stacked)), nil
}

// Concat joins arrays along an existing axis. All shapes must match except
// along axis.
func Concat(axis int, arrays ...*NDArray) (*NDArray, error) {
	if len(arrays) == 0 {
		return nil, errors.New("concat requires at least one array")
	}
	first := arrays[0]
	ax, err := normalizeAxis(axis, len(first.shape))
	if err != nil {
		return nil, err
	}

	target := first.shape.Clone()
	target[ax] = 0
	nonEmpty := make([]*NDArray, 0, len(arrays))
	for _, arr := range arrays {
		if len(arr.shape) != len(first.shape) {
			return nil, errors.Wrapf(ErrShapeMismatch, "cannot concat %v with %v", first.shape, arr.shape)
		}
		for i := range arr.shape {
			if i != ax && arr.shape[i] != first.shape[i] {
				return nil, errors.Wrapf(ErrShapeMismatch, "cannot concat %v with %v on axis %d",
					first.shape, arr.shape, ax)
			}
		}
		target[ax] += arr.shape[ax]
		if arr.Size() > 0 {
			nonEmpty = append(nonEmpty, arr)
		}
	}

	switch len(nonEmpty) {
	case 0:
		return wrap(target, []float32{}), nil
	case 1:
		return wrap(target, nonEmpty[0].Float32s()), nil
	}

	others := make([]*tensor.Dense, 0, len(nonEmpty)-1)
	for _, arr := range nonEmpty[1:] {
		others = append(others, arr.dense())
	}
	joined, err := nonEmpty[0].dense().Concat(ax, others...)
	if err != nil {
		return nil, errors.Wrapf(err, "concat %d arrays on axis %d", len(nonEmpty), ax)
	}
	return wrap(target, float32Data(joined)), nil
}

// Transpose permutes the axes of the array. With no axes the order is
// reversed.
func (a *NDArray) Transpose(axes ...int) (*NDArray, error) {
	dims := len(a.shape)
	if len(axes) == 0 {
		axes = make([]int, dims)
		for i := range axes {
			axes[i] = dims - 1 - i
		}
	}
	if len(axes) != dims {
		return nil, errors.Wrapf(ErrShapeMismatch, "permutation %v for %d dims", axes, dims)
	}
	seen := make([]bool, dims)
	target := make(Shape, dims)
	identity := true
	for i, ax := range axes {
		if ax < 0 || ax >= dims || seen[ax] {
			return nil, errors.Wrapf(ErrAxis, "invalid permutation %v", axes)
		}
		seen[ax] = true
		target[i] = a.shape[ax]
		identity = identity && ax == i
	}
	// gorgonia rejects no-op permutations
	if identity || dims < 2 || a.Size() == 0 {
		return wrap(target, a.Float32s()), nil
	}

	t, err := tensor.Transpose(a.dense(), axes...)
	if err != nil {
		return nil, errors.Wrapf(err, "transpose %v by %v", a.shape, axes)
	}
	return wrap(target, float32Data(t)), nil
}
