package passes

import (
	"fmt"

	"github.com/born-ml/graphc/internal/graph"
	"github.com/born-ml/graphc/internal/ops"
	"github.com/born-ml/graphc/internal/tensor"
)

// PropagateConstants folds nodes whose inputs are all constants into a single data
// node, using reference evaluation. Constants left without consumers are dropped.
type PropagateConstants struct{}

func (PropagateConstants) Name() string { return "propagate_constants" }

func (PropagateConstants) Run(p *graph.Program, ctx *Context) {
	for _, id := range p.Order() {
		n := p.Node(id)
		if n == nil || !foldable(p, n) {
			continue
		}

		args := make([]*tensor.Memory, len(n.Inputs))
		for i, in := range n.Inputs {
			args[i] = p.Node(in.Node).Op.(*ops.Data).Memory
		}
		value, err := ops.EvaluateFused(n.Op, args, n.FusedOps)
		if err != nil {
			ctx.Log.WithError(err).WithField("node", n.Name).Debug("cannot fold node")
			continue
		}

		folded, err := p.AddNode(uniqueName(p, n.Name+"_const"), ops.NewData(value))
		if err != nil {
			ctx.Log.WithError(err).WithField("node", n.Name).Debug("cannot fold node")
			continue
		}
		if err := p.Replace(id, folded); err != nil {
			ctx.Log.WithError(err).WithField("node", n.Name).Debug("cannot fold node")
			_ = p.Remove(folded)
			continue
		}

		producers := p.Producers(id)
		if err := p.Remove(id); err != nil {
			continue
		}
		ctx.Eliminated(1)
		ctx.Log.WithField("node", n.Name).Debug("folded constant")

		for _, prod := range producers {
			if len(p.Consumers(prod)) == 0 && !p.IsOutput(prod) && p.Remove(prod) == nil {
				ctx.Eliminated(1)
			}
		}
	}
}

// foldable reports whether every input of n is a constant. Results are kept so that
// outputs stay distinct nodes.
func foldable(p *graph.Program, n *graph.Node) bool {
	switch n.Kind() {
	case ops.KindInputLayout, ops.KindData, ops.KindResult:
		return false
	}
	if len(n.Inputs) == 0 {
		return false
	}
	for _, in := range n.Inputs {
		if p.Node(in.Node).Kind() != ops.KindData {
			return false
		}
	}
	return true
}

func uniqueName(p *graph.Program, base string) string {
	name := base
	for i := 1; ; i++ {
		if _, taken := p.Lookup(name); !taken {
			return name
		}
		name = fmt.Sprintf("%s_%d", base, i)
	}
}
