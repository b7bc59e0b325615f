package ops

import (
	"fmt"
	"math"

	"github.com/born-ml/graphc/internal/tensor"
)

// ActivationFunc selects the activation function.
type ActivationFunc int

// Activation functions.
const (
	ActivationReLU ActivationFunc = iota
	ActivationLeakyReLU
	ActivationSigmoid
	ActivationTanh
	ActivationClamp
	ActivationAbs
	ActivationLinear
)

var activationNames = map[ActivationFunc]string{
	ActivationReLU:      "relu",
	ActivationLeakyReLU: "leaky_relu",
	ActivationSigmoid:   "sigmoid",
	ActivationTanh:      "tanh",
	ActivationClamp:     "clamp",
	ActivationAbs:       "abs",
	ActivationLinear:    "linear",
}

func (f ActivationFunc) String() string {
	if s, ok := activationNames[f]; ok {
		return s
	}
	return "unknown"
}

// ParseActivationFunc parses a function name.
func ParseActivationFunc(s string) (ActivationFunc, error) {
	for f, name := range activationNames {
		if name == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown activation function %q", s)
}

// ActivationParams carries the function's scalar parameters:
// leaky_relu uses A as the negative slope, clamp uses [A, B] as bounds and linear
// computes A*x + B.
type ActivationParams struct {
	A, B float32
}

// Apply evaluates the function at x.
func (f ActivationFunc) Apply(x float32, p ActivationParams) float32 {
	switch f {
	case ActivationReLU:
		return max(x, 0)
	case ActivationLeakyReLU:
		if x > 0 {
			return x
		}
		return p.A * x
	case ActivationSigmoid:
		return float32(1 / (1 + math.Exp(-float64(x))))
	case ActivationTanh:
		return float32(math.Tanh(float64(x)))
	case ActivationClamp:
		return min(max(x, p.A), p.B)
	case ActivationAbs:
		return float32(math.Abs(float64(x)))
	case ActivationLinear:
		return p.A*x + p.B
	default:
		return float32(math.NaN())
	}
}

// Activation applies a function to every element of its single input.
type Activation struct {
	Func   ActivationFunc
	Params ActivationParams
}

// NewActivation creates an activation operation.
func NewActivation(fn ActivationFunc, params ActivationParams) *Activation {
	return &Activation{Func: fn, Params: params}
}

func (a *Activation) Kind() Kind { return KindActivation }

func (a *Activation) Arity() (int, int) { return 1, 1 }

func (a *Activation) InferLayout(inputs []tensor.Layout) (tensor.Layout, error) {
	if !inputs[0].DType.IsFloat() {
		return tensor.Layout{}, fmt.Errorf("activation %s: input type %s is not floating point", a.Func, inputs[0].DType)
	}
	return inputs[0].Clone(), nil
}

func (a *Activation) Evaluate(inputs []*tensor.Memory) (*tensor.Memory, error) {
	vals := inputs[0].Float32s()
	for i, x := range vals {
		vals[i] = a.Func.Apply(x, a.Params)
	}
	out, err := tensor.NewMemory(inputs[0].Layout())
	if err != nil {
		return nil, err
	}
	if err := out.SetFloat32s(vals); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Activation) VisitAttributes(v AttributeVisitor) error {
	fn := a.Func.String()
	v.OnString("func", &fn)
	v.OnFloat("a", &a.Params.A)
	v.OnFloat("b", &a.Params.B)
	f, err := ParseActivationFunc(fn)
	if err != nil {
		v.Fail("func", err)
	} else {
		a.Func = f
	}
	return v.Err()
}

func (a *Activation) Clone() Operation {
	c := *a
	return &c
}
