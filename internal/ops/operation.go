package ops

import (
	"fmt"
	"sort"

	"github.com/born-ml/graphc/internal/tensor"
)

// Kind tags an operation from the fixed catalog.
type Kind string

// Operation kinds.
const (
	KindInputLayout Kind = "input_layout"
	KindData        Kind = "data"
	KindConvolution Kind = "convolution"
	KindEltwise     Kind = "eltwise"
	KindActivation  Kind = "activation"
	KindReorder     Kind = "reorder"
	KindResult      Kind = "result"
)

// Unbounded is returned as the maximum arity by kinds accepting any number of inputs.
const Unbounded = -1

// Operation is the behavior behind one node kind.
type Operation interface {
	Kind() Kind

	// Arity returns the accepted number of inputs. max is Unbounded for variadic kinds.
	Arity() (min, max int)

	// InferLayout computes the output layout from the input layouts.
	InferLayout(inputs []tensor.Layout) (tensor.Layout, error)

	// Evaluate runs the operation on host memory and returns a freshly allocated output.
	Evaluate(inputs []*tensor.Memory) (*tensor.Memory, error)

	// VisitAttributes enumerates the serializable state.
	VisitAttributes(v AttributeVisitor) error

	// Clone returns an independent copy.
	Clone() Operation
}

// Aliasing is implemented by passthrough kinds whose output is the same buffer as one
// of their inputs.
type Aliasing interface {
	AliasedInput() int
}

// AliasedInput returns the input index op aliases, or -1.
func AliasedInput(op Operation) int {
	if a, ok := op.(Aliasing); ok {
		return a.AliasedInput()
	}
	return -1
}

// CheckArity verifies n inputs satisfy op's signature.
func CheckArity(op Operation, n int) error {
	lo, hi := op.Arity()
	if n < lo || (hi != Unbounded && n > hi) {
		if lo == hi {
			return fmt.Errorf("%s requires %d input(s), got %d", op.Kind(), lo, n)
		}
		if hi == Unbounded {
			return fmt.Errorf("%s requires at least %d inputs, got %d", op.Kind(), lo, n)
		}
		return fmt.Errorf("%s requires %d to %d inputs, got %d", op.Kind(), lo, hi, n)
	}
	return nil
}

var factories = map[Kind]func() Operation{
	KindInputLayout: func() Operation { return &InputLayout{} },
	KindData:        func() Operation { return &Data{} },
	KindConvolution: func() Operation { return &Convolution{Stride: 1} },
	KindEltwise:     func() Operation { return &Eltwise{} },
	KindActivation:  func() Operation { return &Activation{} },
	KindReorder:     func() Operation { return &Reorder{} },
	KindResult:      func() Operation { return &Result{} },
}

// New returns a zero-valued operation of the given kind, ready to be populated by
// VisitAttributes.
func New(kind Kind) (Operation, error) {
	f, ok := factories[kind]
	if !ok {
		return nil, fmt.Errorf("unknown operation kind %q", kind)
	}
	return f(), nil
}

// Kinds returns every registered kind, sorted.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// newOutput allocates host memory for layout and stores planar values into it.
func newOutput(layout tensor.Layout, planar []float32) (*tensor.Memory, error) {
	out, err := tensor.NewMemory(layout)
	if err != nil {
		return nil, err
	}
	if err := out.SetPlanar(planar); err != nil {
		return nil, err
	}
	return out, nil
}
