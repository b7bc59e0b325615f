package ops

import (
	"fmt"

	"github.com/born-ml/graphc/internal/tensor"
)

// Reorder converts its input to another element type and/or memory format. The
// logical values are preserved up to the precision of the target type.
type Reorder struct {
	DType  tensor.DataType
	Format tensor.Format
}

// NewReorder creates a reorder to the given element type and format.
func NewReorder(dtype tensor.DataType, format tensor.Format) *Reorder {
	return &Reorder{DType: dtype, Format: format}
}

func (r *Reorder) Kind() Kind { return KindReorder }

func (r *Reorder) Arity() (int, int) { return 1, 1 }

func (r *Reorder) InferLayout(inputs []tensor.Layout) (tensor.Layout, error) {
	out := tensor.Layout{DType: r.DType, Shape: inputs[0].Shape.Clone(), Format: r.Format}
	if err := out.Validate(); err != nil {
		return tensor.Layout{}, fmt.Errorf("reorder: %w", err)
	}
	return out, nil
}

func (r *Reorder) Evaluate(inputs []*tensor.Memory) (*tensor.Memory, error) {
	out, err := r.InferLayout([]tensor.Layout{inputs[0].Layout()})
	if err != nil {
		return nil, err
	}
	return newOutput(out, inputs[0].Planar())
}

func (r *Reorder) VisitAttributes(v AttributeVisitor) error {
	dtype, format := r.DType.String(), r.Format.String()
	v.OnString("dtype", &dtype)
	v.OnString("format", &format)

	dt, err := tensor.ParseDataType(dtype)
	if err != nil {
		v.Fail("dtype", err)
		return v.Err()
	}
	f, err := tensor.ParseFormat(format)
	if err != nil {
		v.Fail("format", err)
		return v.Err()
	}
	r.DType, r.Format = dt, f
	return v.Err()
}

func (r *Reorder) Clone() Operation {
	cp := *r
	return &cp
}
