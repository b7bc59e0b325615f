package ops

import (
	"fmt"
	"strings"

	"github.com/born-ml/graphc/internal/tensor"
)

// PostOpKind identifies what a fused post-operation does.
type PostOpKind string

// Post-operation kinds.
const (
	PostOpEltwise    PostOpKind = "eltwise"
	PostOpActivation PostOpKind = "activation"
)

// PostOp is one operation folded into a producing node by a fusion pass. Post-ops run
// in order on the producer's output before it is stored.
type PostOp struct {
	Kind PostOpKind

	// Eltwise post-ops combine the output with the node input at index Input.
	Mode  EltwiseMode
	Input int

	// Activation post-ops.
	Func   ActivationFunc
	Params ActivationParams

	// Origin names the node the post-op replaced.
	Origin string
}

// Signature is the part of a post-op that selects a kernel. Operand indices and
// origins do not participate.
func (p PostOp) Signature() string {
	switch p.Kind {
	case PostOpEltwise:
		return "eltwise:" + p.Mode.String()
	case PostOpActivation:
		return fmt.Sprintf("activation:%s(%g,%g)", p.Func, p.Params.A, p.Params.B)
	default:
		return string(p.Kind)
	}
}

// FusedSignature joins the signatures of ops, or returns "" when there are none.
func FusedSignature(postOps []PostOp) string {
	if len(postOps) == 0 {
		return ""
	}
	parts := make([]string, len(postOps))
	for i, p := range postOps {
		parts[i] = p.Signature()
	}
	return strings.Join(parts, "+")
}

// OperandCount returns how many trailing node inputs belong to post-ops.
func OperandCount(postOps []PostOp) int {
	n := 0
	for _, p := range postOps {
		if p.Kind == PostOpEltwise {
			n++
		}
	}
	return n
}

// ApplyPostOps runs postOps over values, given in planar order for layout. inputs are
// all node inputs, including the fused operands.
func ApplyPostOps(values []float32, layout tensor.Layout, postOps []PostOp, inputs []*tensor.Memory) error {
	for _, p := range postOps {
		switch p.Kind {
		case PostOpEltwise:
			if p.Input < 0 || p.Input >= len(inputs) {
				return fmt.Errorf("post-op %s: operand index %d out of range", p.Signature(), p.Input)
			}
			operand := inputs[p.Input]
			if !operand.Layout().Shape.Equal(layout.Shape) {
				return fmt.Errorf("post-op %s: operand shape %v != output shape %v",
					p.Signature(), operand.Layout().Shape, layout.Shape)
			}
			other := operand.Planar()
			for i := range values {
				values[i] = p.Mode.Apply(values[i], other[i])
			}
		case PostOpActivation:
			for i := range values {
				values[i] = p.Func.Apply(values[i], p.Params)
			}
		default:
			return fmt.Errorf("unknown post-op kind %q", p.Kind)
		}
	}
	return nil
}

// EvaluateFused evaluates op over the primary inputs and applies postOps. Fused
// operands are the trailing inputs.
func EvaluateFused(op Operation, inputs []*tensor.Memory, postOps []PostOp) (*tensor.Memory, error) {
	if len(postOps) == 0 {
		return op.Evaluate(inputs)
	}
	primary := len(inputs) - OperandCount(postOps)
	if primary < 0 {
		return nil, fmt.Errorf("%s: %d inputs cannot carry %d fused operands", op.Kind(), len(inputs), OperandCount(postOps))
	}
	out, err := op.Evaluate(inputs[:primary])
	if err != nil {
		return nil, err
	}
	values := out.Planar()
	if err := ApplyPostOps(values, out.Layout(), postOps, inputs); err != nil {
		return nil, err
	}
	if err := out.SetPlanar(values); err != nil {
		return nil, err
	}
	return out, nil
}
