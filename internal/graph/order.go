package graph

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/emirpasic/gods/v2/queues/priorityqueue"

	"github.com/born-ml/graphc/internal/errs"
)

// Order returns the live nodes in dependency order. Among ready nodes the smallest id
// goes first, so the order is deterministic for a given program.
func (p *Program) Order() []NodeID {
	if !p.orderValid {
		order, err := p.topologicalOrder()
		if err != nil {
			// Every mutator keeps the graph acyclic.
			panic(err)
		}
		p.order, p.orderValid = order, true
	}
	return slices.Clone(p.order)
}

// Nodes returns the live nodes in dependency order.
func (p *Program) Nodes() []*Node {
	order := p.Order()
	out := make([]*Node, len(order))
	for i, id := range order {
		out[i] = p.nodes[id]
	}
	return out
}

// topologicalOrder runs Kahn's algorithm over the arena.
func (p *Program) topologicalOrder() ([]NodeID, error) {
	indegree := make(map[NodeID]int, len(p.byName))
	ready := priorityqueue.NewWith[NodeID](cmp.Compare[NodeID])

	for _, n := range p.nodes {
		if n == nil {
			continue
		}
		indegree[n.ID] = len(p.Producers(n.ID))
		if indegree[n.ID] == 0 {
			ready.Enqueue(n.ID)
		}
	}

	order := make([]NodeID, 0, len(indegree))
	for !ready.Empty() {
		id, _ := ready.Dequeue()
		order = append(order, id)
		for _, c := range p.consumers[id] {
			indegree[c]--
			if indegree[c] == 0 {
				ready.Enqueue(c)
			}
		}
	}

	if len(order) != len(indegree) {
		var stuck []string
		for id, d := range indegree {
			if d > 0 {
				stuck = append(stuck, p.nodes[id].Name)
			}
		}
		slices.Sort(stuck)
		return nil, fmt.Errorf("%w: %v", errs.ErrCycle, stuck)
	}
	return order, nil
}

// Ancestors returns the set of nodes id transitively depends on.
func (p *Program) Ancestors(id NodeID) map[NodeID]bool {
	seen := make(map[NodeID]bool)
	stack := p.Producers(id)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, p.Producers(n)...)
	}
	return seen
}
