package passes

import (
	"slices"

	"github.com/born-ml/graphc/internal/graph"
	"github.com/born-ml/graphc/internal/ops"
)

// TrimToOutputs removes nodes that do not contribute to any requested output. Caller
// inputs are kept so that binding them stays valid.
type TrimToOutputs struct{}

func (TrimToOutputs) Name() string { return "trim_to_outputs" }

func (TrimToOutputs) Run(p *graph.Program, ctx *Context) {
	live := make(map[graph.NodeID]bool)
	for _, name := range p.Outputs() {
		id, ok := p.OutputNode(name)
		if !ok {
			continue
		}
		live[id] = true
		for a := range p.Ancestors(id) {
			live[a] = true
		}
	}

	order := p.Order()
	slices.Reverse(order)
	for _, id := range order {
		n := p.Node(id)
		if live[id] || n.Kind() == ops.KindInputLayout {
			continue
		}
		if err := p.Remove(id); err != nil {
			ctx.Log.WithError(err).WithField("node", n.Name).Debug("cannot trim node")
			continue
		}
		ctx.Log.WithField("node", n.Name).Trace("trimmed")
		ctx.Eliminated(1)
	}
}
