package tensor

import (
	"fmt"
	"math"
)

// MaxElements bounds the element count of a single layout.
const MaxElements = math.MaxInt32

// Shape represents the dimensions of a layout, outermost first.
// Four-dimensional shapes are read as [batch, feature, y, x].
type Shape []int

// NumElements returns the total number of elements.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks that every dimension is positive and that the element count does
// not exceed MaxElements.
func (s Shape) Validate() error {
	n := 1
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
		if n > MaxElements/dim {
			return fmt.Errorf("shape %v has more than %d elements", []int(s), MaxElements)
		}
		n *= dim
	}
	return nil
}

// Equal checks if two shapes are equal.
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

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// Strides calculates row-major strides for the shape.
func (s Shape) Strides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// BroadcastShapes applies NumPy-style broadcasting to two shapes.
//
// Shapes are compared right to left; two dimensions are compatible when they are equal
// or one of them is 1, and missing dimensions count as 1. The returned flag reports
// whether any broadcasting was needed.
//
//	(3, 1) + (3, 5) → (3, 5), true, nil
//	(3, 5) + (3, 5) → (3, 5), false, nil
//	(3, 4) + (3, 5) → nil, false, error
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	rank := max(len(a), len(b))
	result := make(Shape, rank)
	broadcast := false

	for i := 0; i < rank; i++ {
		aDim, bDim := 1, 1
		if j := len(a) - 1 - i; j >= 0 {
			aDim = a[j]
		}
		if j := len(b) - 1 - i; j >= 0 {
			bDim = b[j]
		}

		switch {
		case aDim == bDim:
			result[rank-1-i] = aDim
		case aDim == 1:
			result[rank-1-i] = bDim
			broadcast = true
		case bDim == 1:
			result[rank-1-i] = aDim
			broadcast = true
		default:
			return nil, false, fmt.Errorf("shapes not compatible for broadcasting: %v vs %v (dimension %d: %d vs %d)",
				a, b, rank-1-i, aDim, bDim)
		}
	}
	if len(a) != len(b) {
		broadcast = true
	}

	return result, broadcast, nil
}

// BroadcastIndex maps a flat index into the broadcast output shape back to the flat
// index of an input with shape in.
func BroadcastIndex(idx int, out, in Shape) int {
	outStrides := out.Strides()
	inStrides := in.Strides()
	offset := len(out) - len(in)

	src := 0
	for d := range out {
		coord := (idx / outStrides[d]) % out[d]
		k := d - offset
		if k < 0 || in[k] == 1 {
			continue
		}
		src += coord * inStrides[k]
	}
	return src
}
