package ndarray

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Shape is the list of dimension sizes of an array, outermost first.
type Shape []int

// Size returns the number of elements described by the shape.
func (s Shape) Size() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

// Equal reports whether both shapes have the same dimensions.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Strides returns row-major element strides.
func (s Shape) Strides() []int {
	strides := make([]int, len(s))
	acc := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= s[i]
	}
	return strides
}

// String formats the shape as (d0, d1, ...).
func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = fmt.Sprint(d)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (s Shape) validate() error {
	if len(s) == 0 {
		return errors.Wrap(ErrShapeMismatch, "shape must have at least one dimension")
	}
	for _, d := range s {
		if d < 0 {
			return errors.Wrapf(ErrShapeMismatch, "negative dimension in %v", s)
		}
	}
	return nil
}

// infer resolves a single -1 dimension against total.
func (s Shape) infer(total int) (Shape, error) {
	out := s.Clone()
	unknown := -1
	known := 1
	for i, d := range out {
		switch {
		case d == -1:
			if unknown >= 0 {
				return nil, errors.Wrapf(ErrShapeMismatch, "only one dimension can be inferred, got %v", s)
			}
			unknown = i
		case d < 0:
			return nil, errors.Wrapf(ErrShapeMismatch, "invalid dimension %d in %v", d, s)
		default:
			known *= d
		}
	}
	if unknown >= 0 {
		if known == 0 || total%known != 0 {
			return nil, errors.Wrapf(ErrShapeMismatch, "cannot infer dimension of %v for %d elements", s, total)
		}
		out[unknown] = total / known
	}
	if out.Size() != total {
		return nil, errors.Wrapf(ErrShapeMismatch, "shape %v does not hold %d elements", out, total)
	}
	return out, nil
}
