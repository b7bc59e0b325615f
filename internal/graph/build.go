package graph

import (
	"fmt"

	"github.com/born-ml/graphc/internal/errs"
	"github.com/born-ml/graphc/internal/topology"
)

// Build creates a program from a topology: one node per definition, named inputs
// resolved to node ids, and layouts inferred in dependency order. The topology is
// frozen. No optimization is performed. Any inconsistency is a ValidationError and no
// program is returned. A non-empty outputs list replaces the topology's own selection.
func Build(topo *topology.Topology, outputs ...string) (*Program, error) {
	topo.Freeze()
	p := newProgram()
	defs := topo.Definitions()

	for _, def := range defs {
		if _, dup := p.byName[def.Name]; dup {
			return nil, errs.Validationf(def.Name, "duplicate node name")
		}
		n := &Node{
			ID:   NodeID(len(p.nodes)),
			Name: def.Name,
			Op:   def.Op.Clone(),
		}
		if def.LayoutTag != "" {
			n.SetLayoutTag(def.LayoutTag)
		}
		p.nodes = append(p.nodes, n)
		p.consumers = append(p.consumers, nil)
		p.byName[n.Name] = n.ID
	}

	for i, def := range defs {
		n := p.nodes[i]
		for j, name := range def.Inputs {
			id, ok := p.byName[name]
			if !ok {
				return nil, errs.Validationf(def.Name, "input %d references unknown node %q", j, name)
			}
			n.Inputs = append(n.Inputs, InputRef{Node: id})
			p.addConsumer(id, n.ID)
		}
	}

	order, err := p.topologicalOrder()
	if err != nil {
		return nil, &errs.ValidationError{Reason: "graph is not acyclic", Err: err}
	}
	p.order, p.orderValid = order, true

	for _, id := range order {
		if err := p.Infer(id); err != nil {
			return nil, err
		}
	}

	if len(outputs) == 0 {
		outputs = topo.Outputs()
	}
	for _, name := range outputs {
		id, ok := p.byName[name]
		if !ok {
			return nil, errs.Validationf(name, "requested output does not exist")
		}
		p.outputs = append(p.outputs, name)
		p.aliases[name] = id
	}
	if len(p.outputs) == 0 {
		return nil, &errs.ValidationError{Reason: fmt.Sprintf("topology with %d nodes has no outputs", len(defs))}
	}
	return p, nil
}
