package passes

import (
	"github.com/sirupsen/logrus"

	"github.com/born-ml/graphc/internal/graph"
	"github.com/born-ml/graphc/internal/ops"
)

// fusableActivations lists the activation functions convolution kernels can apply as
// a post-op.
var fusableActivations = map[ops.ActivationFunc]bool{
	ops.ActivationReLU:      true,
	ops.ActivationLeakyReLU: true,
	ops.ActivationSigmoid:   true,
	ops.ActivationTanh:      true,
	ops.ActivationClamp:     true,
	ops.ActivationAbs:       true,
	ops.ActivationLinear:    true,
}

// ConvEltwiseFusion merges an elementwise sum, optionally followed by an activation,
// into the convolution producing one of the sum's two inputs. The other input becomes
// a trailing operand of the convolution and every consumer of the eliminated nodes
// reads the convolution instead.
//
// A convolution is a candidate when:
//   - the sum is its only consumer, so no other reader observes the changed output
//   - the sum has exactly two inputs with compatible layouts (no broadcasting)
//   - the sum's output layout equals the convolution's, memory format included
//   - the other input does not depend on the convolution, so the rewrite stays acyclic
//   - it has no fused post-ops yet
//
// The activation is folded when it is the sum's only consumer, its function is
// supported, and the sum itself is not a requested output.
type ConvEltwiseFusion struct{}

func (ConvEltwiseFusion) Name() string { return "prepare_conv_eltw_fusing" }

func (f ConvEltwiseFusion) Run(p *graph.Program, ctx *Context) {
	for _, id := range p.Order() {
		conv := p.Node(id)
		if conv == nil || conv.Kind() != ops.KindConvolution || conv.IsFused() {
			continue
		}
		sum, operand, ok := eltwiseCandidate(p, conv)
		if !ok {
			continue
		}
		act := activationCandidate(p, sum)

		log := ctx.Log.WithFields(logrus.Fields{"conv": conv.Name, "eltwise": sum.Name})
		post := ops.PostOp{Kind: ops.PostOpEltwise, Mode: ops.EltwiseSum, Origin: sum.Name}
		if err := p.Fuse(conv.ID, post, &operand); err != nil {
			log.WithError(err).Debug("fusion skipped")
			continue
		}

		if act != nil {
			post := ops.PostOp{
				Kind:   ops.PostOpActivation,
				Func:   act.Op.(*ops.Activation).Func,
				Params: act.Op.(*ops.Activation).Params,
				Origin: act.Name,
			}
			if err := p.Fuse(conv.ID, post, nil); err != nil {
				log.WithError(err).Debug("activation not folded")
				act = nil
			} else if eliminate(p, act.ID, conv.ID) {
				ctx.Eliminated(1)
				log = log.WithField("activation", act.Name)
			}
		}
		if eliminate(p, sum.ID, conv.ID) {
			ctx.Eliminated(1)
		}
		log.WithField("operand", p.Node(operand.Node).Name).Debug("fused convolution")
	}
}

// eltwiseCandidate returns the sum consuming conv and the other input, if the pair
// can be fused.
func eltwiseCandidate(p *graph.Program, conv *graph.Node) (*graph.Node, graph.InputRef, bool) {
	consumers := p.Consumers(conv.ID)
	if len(consumers) != 1 {
		return nil, graph.InputRef{}, false
	}
	sum := p.Node(consumers[0])
	if sum.Kind() != ops.KindEltwise || sum.IsFused() || len(sum.Inputs) != 2 {
		return nil, graph.InputRef{}, false
	}
	if sum.Op.(*ops.Eltwise).Mode != ops.EltwiseSum {
		return nil, graph.InputRef{}, false
	}

	var other graph.InputRef
	switch conv.ID {
	case sum.Inputs[0].Node:
		other = sum.Inputs[1]
	case sum.Inputs[1].Node:
		other = sum.Inputs[0]
	}
	if other.Node == conv.ID || p.Reachable(conv.ID, other.Node) {
		return nil, graph.InputRef{}, false
	}

	otherLayout := p.Node(other.Node).Output
	if !otherLayout.Compatible(conv.Output) || !sum.Output.Equal(conv.Output) {
		return nil, graph.InputRef{}, false
	}
	return sum, other, true
}

// activationCandidate returns the activation that can be folded after sum, or nil.
func activationCandidate(p *graph.Program, sum *graph.Node) *graph.Node {
	consumers := p.Consumers(sum.ID)
	if len(consumers) != 1 || p.IsOutput(sum.ID) {
		return nil
	}
	act := p.Node(consumers[0])
	if act.Kind() != ops.KindActivation || act.IsFused() || !act.Output.Equal(sum.Output) {
		return nil
	}
	if !fusableActivations[act.Op.(*ops.Activation).Func] {
		return nil
	}
	return act
}

// eliminate rewires the consumers and output names of id onto replacement and
// removes id.
func eliminate(p *graph.Program, id, replacement graph.NodeID) bool {
	if err := p.Replace(id, replacement); err != nil {
		return false
	}
	return p.Remove(id) == nil
}

// ActivationFusion folds a standalone activation into the convolution it reads, when
// it is the convolution's only consumer.
type ActivationFusion struct{}

func (ActivationFusion) Name() string { return "prepare_activation_fusing" }

func (ActivationFusion) Run(p *graph.Program, ctx *Context) {
	for _, id := range p.Order() {
		conv := p.Node(id)
		if conv == nil || conv.Kind() != ops.KindConvolution {
			continue
		}
		for {
			consumers := p.Consumers(conv.ID)
			if len(consumers) != 1 || p.IsOutput(conv.ID) {
				break
			}
			act := p.Node(consumers[0])
			if act.Kind() != ops.KindActivation || act.IsFused() || !fusableActivations[act.Op.(*ops.Activation).Func] {
				break
			}
			if !act.Output.Equal(conv.Output) {
				break
			}
			op := act.Op.(*ops.Activation)
			post := ops.PostOp{Kind: ops.PostOpActivation, Func: op.Func, Params: op.Params, Origin: act.Name}
			if err := p.Fuse(conv.ID, post, nil); err != nil {
				ctx.Log.WithError(err).WithField("conv", conv.Name).Debug("activation not folded")
				break
			}
			if !eliminate(p, act.ID, conv.ID) {
				break
			}
			ctx.Eliminated(1)
			ctx.Log.WithFields(logrus.Fields{"conv": conv.Name, "activation": act.Name}).Debug("fused activation")
		}
	}
}
