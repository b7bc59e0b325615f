package graph

import (
	"fmt"

	"github.com/born-ml/graphc/internal/ops"
	"github.com/born-ml/graphc/internal/tensor"
)

// NodeID is a stable index into a program's node arena.
type NodeID int

// InvalidNode is the id of a node not attached to any program.
const InvalidNode NodeID = -1

// InputRef names a producer output.
type InputRef struct {
	Node NodeID
	Port int
}

func (r InputRef) String() string {
	return fmt.Sprintf("%d:%d", r.Node, r.Port)
}

// Node is one typed unit of computation inside a program.
type Node struct {
	ID     NodeID
	Name   string
	Op     ops.Operation
	Inputs []InputRef

	// Output is the inferred output layout.
	Output tensor.Layout

	// FusedOps are post-operations folded into this node. Eltwise post-ops read the
	// trailing inputs.
	FusedOps []ops.PostOp

	rt rtInfo
}

// Kind returns the node's operation kind.
func (n *Node) Kind() ops.Kind {
	return n.Op.Kind()
}

// PrimaryInputs returns the inputs consumed by the operation itself, without fused
// operands.
func (n *Node) PrimaryInputs() []InputRef {
	return n.Inputs[:len(n.Inputs)-ops.OperandCount(n.FusedOps)]
}

// IsFused reports whether any post-operation was folded into the node.
func (n *Node) IsFused() bool {
	return len(n.FusedOps) > 0
}

// CloneWithNewInputs returns a detached copy of n, with the same operation, attributes,
// fused post-ops and run-time info, bound to inputs instead. The input count must match.
func (n *Node) CloneWithNewInputs(inputs []InputRef) (*Node, error) {
	if len(inputs) != len(n.Inputs) {
		return nil, fmt.Errorf("clone %q: got %d inputs, node has %d", n.Name, len(inputs), len(n.Inputs))
	}
	return &Node{
		ID:       InvalidNode,
		Name:     n.Name,
		Op:       n.Op.Clone(),
		Inputs:   append([]InputRef(nil), inputs...),
		Output:   n.Output.Clone(),
		FusedOps: append([]ops.PostOp(nil), n.FusedOps...),
		rt:       n.rt.clone(),
	}, nil
}

func (n *Node) String() string {
	return fmt.Sprintf("%s(%s)", n.Name, n.Kind())
}
