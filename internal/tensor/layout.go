package tensor

import (
	"fmt"
	"strings"
)

// Layout is the element type, logical shape and memory format of a buffer.
//
// The shape is always logical ([b, f, y, x] for 4D layouts); Format only decides how
// the elements are ordered in memory.
type Layout struct {
	DType  DataType
	Shape  Shape
	Format Format
}

// NewLayout creates a layout.
func NewLayout(dtype DataType, format Format, shape ...int) Layout {
	return Layout{DType: dtype, Shape: Shape(shape).Clone(), Format: format}
}

// NumElements returns the number of elements described by the layout.
func (l Layout) NumElements() int {
	return l.Shape.NumElements()
}

// ByteSize returns the number of bytes a buffer of this layout occupies.
func (l Layout) ByteSize() int {
	return l.NumElements() * l.DType.Size()
}

// Validate checks the shape and that non-planar formats are used with 4D shapes.
func (l Layout) Validate() error {
	if err := l.Shape.Validate(); err != nil {
		return err
	}
	if l.Format == FormatBYXF && len(l.Shape) != 4 {
		return fmt.Errorf("format %s requires a 4D shape, got %v", l.Format, l.Shape)
	}
	return nil
}

// Equal reports whether two layouts describe identical buffers.
func (l Layout) Equal(other Layout) bool {
	return l.DType == other.DType && l.Format == other.Format && l.Shape.Equal(other.Shape)
}

// Compatible reports whether a buffer of layout other can be accumulated into a buffer
// of layout l in place: same element type and shape.
func (l Layout) Compatible(other Layout) bool {
	return l.DType == other.DType && l.Shape.Equal(other.Shape)
}

// Clone returns a deep copy of the layout.
func (l Layout) Clone() Layout {
	l.Shape = l.Shape.Clone()
	return l
}

// String renders the layout as "f32:bfyx[1,1,2,2]". It is stable and used as part of
// kernel cache keys.
func (l Layout) String() string {
	dims := make([]string, len(l.Shape))
	for i, d := range l.Shape {
		dims[i] = fmt.Sprint(d)
	}
	return fmt.Sprintf("%s:%s[%s]", l.DType, l.Format, strings.Join(dims, ","))
}
