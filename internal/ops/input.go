package ops

import (
	"errors"

	"github.com/born-ml/graphc/internal/tensor"
)

// InputLayout declares a caller-bound input. Its memory is supplied at run time.
type InputLayout struct {
	Layout tensor.Layout
}

// NewInputLayout declares an input of the given layout.
func NewInputLayout(layout tensor.Layout) *InputLayout {
	return &InputLayout{Layout: layout.Clone()}
}

func (i *InputLayout) Kind() Kind { return KindInputLayout }

func (i *InputLayout) Arity() (int, int) { return 0, 0 }

func (i *InputLayout) InferLayout([]tensor.Layout) (tensor.Layout, error) {
	if err := i.Layout.Validate(); err != nil {
		return tensor.Layout{}, err
	}
	return i.Layout.Clone(), nil
}

// Evaluate always fails: inputs have no value until bound.
func (i *InputLayout) Evaluate([]*tensor.Memory) (*tensor.Memory, error) {
	return nil, errors.New("input_layout has no value until bound")
}

func (i *InputLayout) VisitAttributes(v AttributeVisitor) error {
	visitLayout(v, "", &i.Layout)
	return v.Err()
}

func (i *InputLayout) Clone() Operation {
	return &InputLayout{Layout: i.Layout.Clone()}
}
