// Package memdeps decides which node outputs may share a physical buffer.
//
// Node j may reuse the buffer of node i when both outputs have the same element type
// and byte size and every consumer of i is an ancestor of j. The second condition
// means the value of i is dead before j can start under any dependency-respecting
// schedule, including concurrent dispatch. Buffers bound to caller inputs, constants,
// requested outputs and anything read through a passthrough alias never take part.
package memdeps

import (
	"github.com/sirupsen/logrus"

	"github.com/born-ml/graphc/internal/graph"
	"github.com/born-ml/graphc/internal/ops"
)

// Plan is the result of the analysis.
type Plan struct {
	// Deps maps a node to every earlier node whose buffer it may reuse.
	Deps map[graph.NodeID][]graph.NodeID

	// Reuse maps a node to the owner of the buffer it was assigned. Nodes missing
	// from the map own a buffer of their own.
	Reuse map[graph.NodeID]graph.NodeID

	// Buffers is the number of distinct buffers after reuse.
	Buffers int
}

// slot is one physical buffer shared by a sequence of holders.
type slot struct {
	owner graph.NodeID
	last  graph.NodeID
}

// Analyze computes the memory-dependency plan of p.
func Analyze(p *graph.Program) *Plan {
	order := p.Order()
	maxID := 0
	for _, id := range order {
		maxID = max(maxID, int(id)+1)
	}

	ancestors := make(map[graph.NodeID]bitset, len(order))
	for _, id := range order {
		anc := newBitset(maxID)
		for _, prod := range p.Producers(id) {
			anc.set(int(prod))
			anc.union(ancestors[prod])
		}
		ancestors[id] = anc
	}

	pinned := pinnedNodes(p)
	deadBefore := func(i, j graph.NodeID) bool {
		consumers := p.Consumers(i)
		if len(consumers) == 0 {
			return false
		}
		for _, c := range consumers {
			if !ancestors[j].has(int(c)) {
				return false
			}
		}
		return true
	}
	sameShape := func(i, j graph.NodeID) bool {
		a, b := p.Node(i).Output, p.Node(j).Output
		return a.DType == b.DType && a.ByteSize() == b.ByteSize()
	}

	plan := &Plan{
		Deps:  make(map[graph.NodeID][]graph.NodeID),
		Reuse: make(map[graph.NodeID]graph.NodeID),
	}
	var slots []*slot
	var candidates []graph.NodeID
	for _, j := range order {
		if pinned[j] || ops.AliasedInput(p.Node(j).Op) >= 0 {
			continue
		}

		for _, i := range candidates {
			if ancestors[j].has(int(i)) && sameShape(i, j) && deadBefore(i, j) {
				plan.Deps[j] = append(plan.Deps[j], i)
			}
		}
		candidates = append(candidates, j)

		var chosen *slot
		for _, s := range slots {
			if ancestors[j].has(int(s.last)) && sameShape(s.last, j) && deadBefore(s.last, j) {
				chosen = s
				break
			}
		}
		if chosen == nil {
			slots = append(slots, &slot{owner: j, last: j})
			continue
		}
		chosen.last = j
		plan.Reuse[j] = chosen.owner
	}

	plan.Buffers = len(slots)
	for _, n := range p.Nodes() {
		if pinned[n.ID] && ops.AliasedInput(n.Op) < 0 {
			plan.Buffers++
		}
	}
	return plan
}

// Apply analyzes p and attaches the plan to it.
func Apply(p *graph.Program, log *logrus.Entry) (*Plan, error) {
	plan := Analyze(p)
	if err := p.SetMemoryDeps(plan.Deps, plan.Reuse); err != nil {
		return nil, err
	}
	if log != nil {
		log.WithFields(logrus.Fields{
			"nodes":   p.Len(),
			"buffers": plan.Buffers,
			"reused":  len(plan.Reuse),
		}).Debug("memory dependencies analyzed")
	}
	return plan, nil
}

// pinnedNodes returns the nodes whose buffers must never be shared: caller inputs,
// constants, requested outputs, and producers read through a passthrough alias.
func pinnedNodes(p *graph.Program) map[graph.NodeID]bool {
	pinned := make(map[graph.NodeID]bool)
	for _, n := range p.Nodes() {
		switch n.Kind() {
		case ops.KindInputLayout, ops.KindData:
			pinned[n.ID] = true
		}
		if p.IsOutput(n.ID) {
			pinned[n.ID] = true
		}
		if idx := ops.AliasedInput(n.Op); idx >= 0 {
			pinned[n.ID] = true
			pinned[Root(p, n.Inputs[idx].Node)] = true
		}
	}
	return pinned
}

// Root returns the node owning the buffer id's output lives in, following passthrough
// aliases.
func Root(p *graph.Program, id graph.NodeID) graph.NodeID {
	for {
		n := p.Node(id)
		idx := ops.AliasedInput(n.Op)
		if idx < 0 {
			return id
		}
		id = n.Inputs[idx].Node
	}
}
