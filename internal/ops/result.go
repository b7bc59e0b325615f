package ops

import (
	"github.com/born-ml/graphc/internal/tensor"
)

// Result marks a graph output. It is a passthrough: the output layout is the input's
// layout and, at run time, the output buffer is the producer's buffer.
type Result struct{}

// NewResult creates a result node operation.
func NewResult() *Result {
	return &Result{}
}

func (r *Result) Kind() Kind { return KindResult }

func (r *Result) Arity() (int, int) { return 1, 1 }

// AliasedInput reports that the output shares the buffer of input 0.
func (r *Result) AliasedInput() int { return 0 }

func (r *Result) InferLayout(inputs []tensor.Layout) (tensor.Layout, error) {
	return inputs[0].Clone(), nil
}

// Evaluate copies the input byte for byte into a freshly sized output.
func (r *Result) Evaluate(inputs []*tensor.Memory) (*tensor.Memory, error) {
	return tensor.FromBytes(inputs[0].Layout(), inputs[0].Bytes())
}

func (r *Result) VisitAttributes(v AttributeVisitor) error {
	return v.Err()
}

func (r *Result) Clone() Operation {
	return &Result{}
}
