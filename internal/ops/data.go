package ops

import (
	"errors"
	"fmt"
	"slices"

	"github.com/born-ml/graphc/internal/tensor"
)

// Data is a constant whose memory is owned by the topology and copied onto the
// engine when a network is created. It is immutable for the program's lifetime.
type Data struct {
	Memory *tensor.Memory
}

// NewData wraps mem as a constant.
func NewData(mem *tensor.Memory) *Data {
	return &Data{Memory: mem}
}

func (d *Data) Kind() Kind { return KindData }

func (d *Data) Arity() (int, int) { return 0, 0 }

func (d *Data) InferLayout([]tensor.Layout) (tensor.Layout, error) {
	if d.Memory == nil {
		return tensor.Layout{}, errors.New("data: no memory attached")
	}
	return d.Memory.Layout().Clone(), nil
}

// Evaluate returns a copy of the constant.
func (d *Data) Evaluate([]*tensor.Memory) (*tensor.Memory, error) {
	if d.Memory == nil {
		return nil, errors.New("data: no memory attached")
	}
	return tensor.FromBytes(d.Memory.Layout(), d.Memory.Bytes())
}

// VisitAttributes stores the layout and the element values in physical order.
// Integer constants are stored as ints so that every value survives a round trip.
func (d *Data) VisitAttributes(v AttributeVisitor) error {
	var layout tensor.Layout
	if d.Memory != nil {
		layout = d.Memory.Layout().Clone()
	}
	visitLayout(v, "", &layout)
	if v.Err() != nil {
		return v.Err()
	}
	if layout.DType.IsFloat() {
		return d.visitFloats(v, layout)
	}
	return d.visitInts(v, layout)
}

func (d *Data) visitFloats(v AttributeVisitor, layout tensor.Layout) error {
	var values []float32
	if d.Memory != nil && d.Memory.Layout().DType.IsFloat() {
		values = d.Memory.Float32s()
	}
	v.OnFloats("values", &values)
	if v.Err() != nil {
		return v.Err()
	}
	if d.Memory != nil && d.Memory.Layout().Equal(layout) && slices.Equal(values, d.Memory.Float32s()) {
		return nil
	}
	mem, err := tensor.FromFloat32(layout, values)
	if err != nil {
		v.Fail("values", fmt.Errorf("data: %w", err))
		return v.Err()
	}
	d.Memory = mem
	return nil
}

func (d *Data) visitInts(v AttributeVisitor, layout tensor.Layout) error {
	var current, values []int
	if d.Memory != nil {
		current, _ = d.Memory.Ints()
		values = slices.Clone(current)
	}
	v.OnInts("values", &values)
	if v.Err() != nil {
		return v.Err()
	}
	if d.Memory != nil && d.Memory.Layout().Equal(layout) && current != nil && slices.Equal(values, current) {
		return nil
	}
	if n := layout.NumElements(); len(values) != n {
		v.Fail("values", fmt.Errorf("data: got %d values for layout %s with %d elements", len(values), layout, n))
		return v.Err()
	}
	mem, err := tensor.NewMemory(layout)
	if err == nil {
		err = mem.SetInts(values)
	}
	if err != nil {
		v.Fail("values", fmt.Errorf("data: %w", err))
		return v.Err()
	}
	d.Memory = mem
	return nil
}

// Clone shares the immutable constant memory.
func (d *Data) Clone() Operation {
	return &Data{Memory: d.Memory}
}
