package ops

import (
	"fmt"
	"math"

	"github.com/born-ml/graphc/internal/tensor"
)

// EltwiseMode selects the elementwise combination.
type EltwiseMode int

// Elementwise modes.
const (
	EltwiseSum EltwiseMode = iota
	EltwiseSub
	EltwiseProd
	EltwiseMax
	EltwiseMin
	EltwiseDiv
)

var eltwiseModeNames = map[EltwiseMode]string{
	EltwiseSum:  "sum",
	EltwiseSub:  "sub",
	EltwiseProd: "prod",
	EltwiseMax:  "max",
	EltwiseMin:  "min",
	EltwiseDiv:  "div",
}

func (m EltwiseMode) String() string {
	if s, ok := eltwiseModeNames[m]; ok {
		return s
	}
	return "unknown"
}

// ParseEltwiseMode parses a mode name.
func ParseEltwiseMode(s string) (EltwiseMode, error) {
	for m, name := range eltwiseModeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown eltwise mode %q", s)
}

// Apply combines two operands.
func (m EltwiseMode) Apply(a, b float32) float32 {
	switch m {
	case EltwiseSum:
		return a + b
	case EltwiseSub:
		return a - b
	case EltwiseProd:
		return a * b
	case EltwiseMax:
		return max(a, b)
	case EltwiseMin:
		return min(a, b)
	case EltwiseDiv:
		return a / b
	default:
		return float32(math.NaN())
	}
}

// Eltwise combines two or more inputs element by element, left to right.
// Input shapes must be equal or broadcastable.
type Eltwise struct {
	Mode EltwiseMode
}

// NewEltwise creates an elementwise operation.
func NewEltwise(mode EltwiseMode) *Eltwise {
	return &Eltwise{Mode: mode}
}

func (e *Eltwise) Kind() Kind { return KindEltwise }

func (e *Eltwise) Arity() (int, int) { return 2, Unbounded }

func (e *Eltwise) InferLayout(inputs []tensor.Layout) (tensor.Layout, error) {
	out := inputs[0].Clone()
	for i, in := range inputs[1:] {
		if in.DType != out.DType {
			return tensor.Layout{}, fmt.Errorf("eltwise: input %d has type %s, expected %s", i+1, in.DType, out.DType)
		}
		shape, _, err := tensor.BroadcastShapes(out.Shape, in.Shape)
		if err != nil {
			return tensor.Layout{}, fmt.Errorf("eltwise: %w", err)
		}
		out.Shape = shape
	}
	if err := out.Validate(); err != nil {
		return tensor.Layout{}, fmt.Errorf("eltwise: %w", err)
	}
	return out, nil
}

func (e *Eltwise) Evaluate(inputs []*tensor.Memory) (*tensor.Memory, error) {
	layouts := make([]tensor.Layout, len(inputs))
	for i, in := range inputs {
		layouts[i] = in.Layout()
	}
	outLayout, err := e.InferLayout(layouts)
	if err != nil {
		return nil, err
	}

	n := outLayout.NumElements()
	acc := make([]float32, n)
	first := inputs[0].Planar()
	for i := range acc {
		acc[i] = first[tensor.BroadcastIndex(i, outLayout.Shape, layouts[0].Shape)]
	}
	for k, in := range inputs[1:] {
		vals := in.Planar()
		shape := layouts[k+1].Shape
		for i := range acc {
			acc[i] = e.Mode.Apply(acc[i], vals[tensor.BroadcastIndex(i, outLayout.Shape, shape)])
		}
	}
	return newOutput(outLayout, acc)
}

func (e *Eltwise) VisitAttributes(v AttributeVisitor) error {
	mode := e.Mode.String()
	v.OnString("mode", &mode)
	m, err := ParseEltwiseMode(mode)
	if err != nil {
		v.Fail("mode", err)
	} else {
		e.Mode = m
	}
	return v.Err()
}

func (e *Eltwise) Clone() Operation {
	c := *e
	return &c
}
