package ndarray

import "strings"

// NDList is an ordered list of arrays, as passed into and out of an engine.
type NDList []*NDArray

// NewList returns a list holding the given arrays.
func NewList(arrays ...*NDArray) NDList {
	return NDList(arrays)
}

// Len returns the number of arrays.
func (l NDList) Len() int { return len(l) }

// Get returns the array at index i, or nil when out of range.
func (l NDList) Get(i int) *NDArray {
	if i < 0 || i >= len(l) {
		return nil
	}
	return l[i]
}

// ByName returns the first array with the given name.
func (l NDList) ByName(name string) (*NDArray, bool) {
	for _, a := range l {
		if a.Name() == name {
			return a, true
		}
	}
	return nil, false
}

// Shapes returns the shape of every array in order.
func (l NDList) Shapes() []Shape {
	out := make([]Shape, len(l))
	for i, a := range l {
		out[i] = a.Shape()
	}
	return out
}

func (l NDList) String() string {
	parts := make([]string, len(l))
	for i, a := range l {
		parts[i] = a.String()
	}
	return "NDList[" + strings.Join(parts, "; ") + "]"
}
