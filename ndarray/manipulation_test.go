package ndarray

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	array := MustNew(Shape{4}, []float32{1, 2, 3, 4})
	parts, err := array.Split(2, 0)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.True(t, parts[0].Equal(MustNew(Shape{2}, []float32{1, 2})))
	assert.True(t, parts[1].Equal(MustNew(Shape{2}, []float32{3, 4})))

	array = Arange(6)
	matrix, err := array.Reshape(3, 2)
	require.NoError(t, err)
	rows, err := matrix.Split(3, 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i, row := range rows {
		assert.Equal(t, Shape{1, 2}, row.Shape())
		assert.Equal(t, []float32{float32(2 * i), float32(2*i + 1)}, row.Float32s())
	}

	cols, err := matrix.Split(2, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 2, 4}, cols[0].Float32s())
	assert.Equal(t, []float32{1, 3, 5}, cols[1].Float32s())
	assert.Equal(t, Shape{3, 1}, cols[1].Shape())

	_, err = array.Split(4, 0)
	assert.True(t, errors.Is(err, ErrShapeMismatch))

	_, err = array.Split(2, 3)
	assert.True(t, errors.Is(err, ErrAxis))
}

func TestUnstack(t *testing.T) {
	square := MustNew(Shape{2, 2}, []float32{1, 2, 3, 4})

	tests := []struct {
		name  string
		array *NDArray
		axis  int
		want  []*NDArray
	}{
		{
			name:  "rows",
			array: square,
			axis:  0,
			want:  []*NDArray{MustNew(Shape{2}, []float32{1, 2}), MustNew(Shape{2}, []float32{3, 4})},
		},
		{
			name:  "columns",
			array: square,
			axis:  -1,
			want:  []*NDArray{MustNew(Shape{2}, []float32{1, 3}), MustNew(Shape{2}, []float32{2, 4})},
		},
		{
			name:  "vector",
			array: MustNew(Shape{2}, []float32{5, 6}),
			axis:  0,
			want:  []*NDArray{MustNew(Shape{1}, []float32{5}), MustNew(Shape{1}, []float32{6})},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts, err := tt.array.Unstack(tt.axis)
			require.NoError(t, err)
			require.Len(t, parts, len(tt.want))
			for i := range tt.want {
				assert.True(t, parts[i].Equal(tt.want[i]), "part %d: %v", i, parts[i])
			}
		})
	}

	// Split keeps the axis where Unstack drops it.
	kept, err := square.Split(2, 0)
	require.NoError(t, err)
	assert.Equal(t, []Shape{{1, 2}, {1, 2}}, kept.Shapes())

	parts, err := square.Unstack(0)
	require.NoError(t, err)
	restacked, err := Stack(0, parts...)
	require.NoError(t, err)
	assert.True(t, restacked.Equal(square))

	_, err = square.Unstack(2)
	assert.True(t, errors.Is(err, ErrAxis))
}

func TestSplitAt(t *testing.T) {
	array := Arange(7)
	parts, err := array.SplitAt([]int{2, 5}, 0)
	require.NoError(t, err)
	require.Len(t, parts, 3)
	assert.Equal(t, []float32{0, 1}, parts[0].Float32s())
	assert.Equal(t, []float32{2, 3, 4}, parts[1].Float32s())
	assert.Equal(t, []float32{5, 6}, parts[2].Float32s())

	_, err = array.SplitAt([]int{5, 2}, 0)
	assert.Error(t, err)
}

func TestFlatten(t *testing.T) {
	array := MustNew(Shape{2, 2, 2}, []float32{1, 2, 3, 4, 5, 6, 7, 8})
	flat := array.Flatten()
	assert.Equal(t, Shape{8}, flat.Shape())
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, flat.Float32s())

	// the source is left untouched
	assert.Equal(t, Shape{2, 2, 2}, array.Shape())
}

func TestReshape(t *testing.T) {
	array := Arange(6)

	tests := []struct {
		name    string
		dims    []int
		want    Shape
		wantErr bool
	}{
		{name: "matrix", dims: []int{2, 3}, want: Shape{2, 3}},
		{name: "inferred leading", dims: []int{-1, 2}, want: Shape{3, 2}},
		{name: "inferred trailing", dims: []int{1, 3, -1}, want: Shape{1, 3, 2}},
		{name: "size mismatch", dims: []int{4, 2}, wantErr: true},
		{name: "two inferred", dims: []int{-1, -1}, wantErr: true},
		{name: "not divisible", dims: []int{-1, 4}, wantErr: true},
		{name: "negative", dims: []int{-2, 3}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := array.Reshape(tt.dims...)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrShapeMismatch), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Shape())
			assert.Equal(t, array.Size(), got.Size())
			assert.Equal(t, array.Float32s(), got.Float32s())
		})
	}
}

func TestExpandDims(t *testing.T) {
	array := MustNew(Shape{2}, []float32{1, 2})

	tests := []struct {
		axis int
		want Shape
	}{
		{0, Shape{1, 2}},
		{1, Shape{2, 1}},
		{-1, Shape{2, 1}},
		{-2, Shape{1, 2}},
	}
	for _, tt := range tests {
		got, err := array.ExpandDims(tt.axis)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got.Shape(), "axis %d", tt.axis)
		assert.Equal(t, []float32{1, 2}, got.Float32s())
	}

	_, err := array.ExpandDims(2)
	assert.True(t, errors.Is(err, ErrAxis))
}

func TestSqueeze(t *testing.T) {
	array := MustNew(Shape{1, 3, 1}, []float32{1, 2, 3})

	all, err := array.Squeeze()
	require.NoError(t, err)
	assert.Equal(t, Shape{3}, all.Shape())

	first, err := array.Squeeze(0)
	require.NoError(t, err)
	assert.Equal(t, Shape{3, 1}, first.Shape())

	_, err = array.Squeeze(1)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestStack(t *testing.T) {
	a := MustNew(Shape{2}, []float32{1, 2})
	b := MustNew(Shape{2}, []float32{3, 4})

	rows, err := Stack(0, a, b)
	require.NoError(t, err)
	assert.True(t, rows.Equal(MustNew(Shape{2, 2}, []float32{1, 2, 3, 4})))

	cols, err := Stack(1, a, b)
	require.NoError(t, err)
	assert.True(t, cols.Equal(MustNew(Shape{2, 2}, []float32{1, 3, 2, 4})))

	single, err := Stack(0, a)
	require.NoError(t, err)
	assert.Equal(t, Shape{1, 2}, single.Shape())

	_, err = Stack(0, a, Arange(3))
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestConcat(t *testing.T) {
	a := MustNew(Shape{2}, []float32{1, 2})
	b := MustNew(Shape{2}, []float32{3, 4})

	joined, err := Concat(0, a, b)
	require.NoError(t, err)
	assert.True(t, joined.Equal(MustNew(Shape{4}, []float32{1, 2, 3, 4})))

	m1 := MustNew(Shape{2, 2}, []float32{1, 2, 3, 4})
	m2 := MustNew(Shape{2, 1}, []float32{5, 6})
	wide, err := Concat(1, m1, m2)
	require.NoError(t, err)
	assert.True(t, wide.Equal(MustNew(Shape{2, 3}, []float32{1, 2, 5, 3, 4, 6})))

	empty := MustNew(Shape{0, 2}, nil)
	tall, err := Concat(0, empty, m1)
	require.NoError(t, err)
	assert.True(t, tall.Equal(m1))

	_, err = Concat(0, m1, m2)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestSplitConcatRoundTrip(t *testing.T) {
	array, err := Arange(24).Reshape(2, 3, 4)
	require.NoError(t, err)

	for axis, sections := range []int{2, 3, 2} {
		parts, err := array.Split(sections, axis)
		require.NoError(t, err)
		joined, err := Concat(axis, parts...)
		require.NoError(t, err)
		assert.True(t, joined.Equal(array), "axis %d", axis)
	}
}

func TestTranspose(t *testing.T) {
	m := MustNew(Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	tr, err := m.Transpose()
	require.NoError(t, err)
	assert.Equal(t, Shape{3, 2}, tr.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, tr.Float32s())

	same, err := m.Transpose(0, 1)
	require.NoError(t, err)
	assert.True(t, same.Equal(m))

	_, err = m.Transpose(0, 0)
	assert.True(t, errors.Is(err, ErrAxis))
}
