package graph

import (
	"fmt"

	"github.com/born-ml/graphc/internal/errs"
	"github.com/born-ml/graphc/internal/ops"
	"github.com/born-ml/graphc/internal/tensor"
)

// Evaluate runs the whole program with each operation's reference implementation,
// independently of kernels and memory planning. inputs maps input node names to
// values. The result maps every output name to a freshly allocated memory.
func Evaluate(p *Program, inputs map[string]*tensor.Memory) (map[string]*tensor.Memory, error) {
	for name := range inputs {
		n, ok := p.Lookup(name)
		if !ok || n.Kind() != ops.KindInputLayout {
			return nil, fmt.Errorf("evaluate %q: %w", name, errs.ErrUnknownInput)
		}
	}

	values := make(map[NodeID]*tensor.Memory, p.Len())
	for _, n := range p.Nodes() {
		if n.Kind() == ops.KindInputLayout {
			in, ok := inputs[n.Name]
			if !ok {
				return nil, &errs.ExecutionError{Node: n.Name, Err: errs.ErrInputNotBound}
			}
			if !in.Layout().Equal(n.Output) {
				return nil, &errs.ExecutionError{
					Node: n.Name,
					Err:  fmt.Errorf("%w: bound %s, declared %s", errs.ErrLayoutMismatch, in.Layout(), n.Output),
				}
			}
			values[n.ID] = in
			continue
		}

		args := make([]*tensor.Memory, len(n.Inputs))
		for i, ref := range n.Inputs {
			args[i] = values[ref.Node]
		}
		out, err := ops.EvaluateFused(n.Op, args, n.FusedOps)
		if err != nil {
			return nil, &errs.ExecutionError{Node: n.Name, Err: err}
		}
		values[n.ID] = out
	}

	outputs := make(map[string]*tensor.Memory, len(p.outputs))
	for _, name := range p.outputs {
		id := p.aliases[name]
		out, err := tensor.FromBytes(values[id].Layout(), values[id].Bytes())
		if err != nil {
			return nil, &errs.ExecutionError{Node: name, Err: err}
		}
		outputs[name] = out
	}
	return outputs, nil
}
