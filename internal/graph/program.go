package graph

import (
	"fmt"
	"slices"

	"github.com/born-ml/graphc/internal/errs"
	"github.com/born-ml/graphc/internal/ops"
	"github.com/born-ml/graphc/internal/tensor"
)

// Kernel is an executable implementation bound to one node.
type Kernel interface {
	// Name identifies the implementation, e.g. "conv_im2col_f32+eltwise:sum".
	Name() string

	// Run computes the node's output into out. inputs follow the node's input order.
	Run(inputs []*tensor.Memory, out *tensor.Memory) error
}

// Program is the compiled, mutable graph for one compilation. Nodes live in an arena
// indexed by NodeID; removed slots stay nil so ids remain stable.
type Program struct {
	nodes     []*Node
	byName    map[string]NodeID
	consumers [][]NodeID

	outputs []string
	aliases map[string]NodeID

	order      []NodeID
	orderValid bool

	memDeps map[NodeID][]NodeID
	reuse   map[NodeID]NodeID
	kernels map[NodeID]Kernel

	frozen bool
}

func newProgram() *Program {
	return &Program{
		byName:  make(map[string]NodeID),
		aliases: make(map[string]NodeID),
	}
}

// Node returns the node with the given id, or nil if it was removed.
func (p *Program) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(p.nodes) {
		return nil
	}
	return p.nodes[id]
}

// Lookup returns the node with the given name.
func (p *Program) Lookup(name string) (*Node, bool) {
	id, ok := p.byName[name]
	if !ok {
		return nil, false
	}
	return p.nodes[id], true
}

// Len returns the number of live nodes.
func (p *Program) Len() int {
	return len(p.byName)
}

// Consumers returns the distinct nodes reading id's output, in ascending id order.
func (p *Program) Consumers(id NodeID) []NodeID {
	if id < 0 || int(id) >= len(p.consumers) {
		return nil
	}
	return slices.Clone(p.consumers[id])
}

// Producers returns the distinct nodes id reads from.
func (p *Program) Producers(id NodeID) []NodeID {
	n := p.Node(id)
	if n == nil {
		return nil
	}
	var out []NodeID
	for _, in := range n.Inputs {
		if !slices.Contains(out, in.Node) {
			out = append(out, in.Node)
		}
	}
	return out
}

// InputLayouts returns the output layouts of n's producers, in input order.
func (p *Program) InputLayouts(n *Node) []tensor.Layout {
	layouts := make([]tensor.Layout, len(n.Inputs))
	for i, in := range n.Inputs {
		layouts[i] = p.nodes[in.Node].Output
	}
	return layouts
}

// Outputs returns the requested output names.
func (p *Program) Outputs() []string {
	return slices.Clone(p.outputs)
}

// OutputNode returns the node currently holding the value of the named output.
func (p *Program) OutputNode(name string) (NodeID, bool) {
	id, ok := p.aliases[name]
	return id, ok
}

// IsOutput reports whether any output name resolves to id.
func (p *Program) IsOutput(id NodeID) bool {
	for _, target := range p.aliases {
		if target == id {
			return true
		}
	}
	return false
}

// Inputs returns the caller-bound input nodes in id order.
func (p *Program) Inputs() []NodeID {
	var ids []NodeID
	for _, n := range p.nodes {
		if n != nil && n.Kind() == ops.KindInputLayout {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// Frozen reports whether the program accepts no further mutation.
func (p *Program) Frozen() bool {
	return p.frozen
}

// Freeze forbids further mutation. Networks are only created from frozen programs.
func (p *Program) Freeze() {
	p.frozen = true
}

func (p *Program) mutable() error {
	if p.frozen {
		return errs.ErrFrozen
	}
	return nil
}

// AddNode appends a node. Its output layout is inferred from the inputs.
func (p *Program) AddNode(name string, op ops.Operation, inputs ...InputRef) (NodeID, error) {
	if err := p.mutable(); err != nil {
		return InvalidNode, err
	}
	if _, exists := p.byName[name]; exists {
		return InvalidNode, errs.Validationf(name, "duplicate node name")
	}
	n := &Node{ID: NodeID(len(p.nodes)), Name: name, Op: op, Inputs: slices.Clone(inputs)}
	if err := p.attach(n); err != nil {
		return InvalidNode, err
	}
	if err := p.Infer(n.ID); err != nil {
		p.detach(n.ID)
		return InvalidNode, err
	}
	return n.ID, nil
}

// attach inserts n into the arena without inference.
func (p *Program) attach(n *Node) error {
	for i, in := range n.Inputs {
		if p.Node(in.Node) == nil {
			return errs.Validationf(n.Name, "input %d references missing node %d", i, in.Node)
		}
		if in.Port != 0 {
			return errs.Validationf(n.Name, "input %d references port %d; nodes have a single output", i, in.Port)
		}
	}
	n.ID = NodeID(len(p.nodes))
	p.nodes = append(p.nodes, n)
	p.consumers = append(p.consumers, nil)
	p.byName[n.Name] = n.ID
	for _, in := range n.Inputs {
		p.addConsumer(in.Node, n.ID)
	}
	p.orderValid = false
	return nil
}

func (p *Program) detach(id NodeID) {
	n := p.nodes[id]
	p.nodes[id] = nil
	for _, in := range n.Inputs {
		p.dropConsumer(in.Node, id)
	}
	delete(p.byName, n.Name)
	p.consumers[id] = nil
	p.orderValid = false
}

func (p *Program) addConsumer(producer, consumer NodeID) {
	list := p.consumers[producer]
	i, found := slices.BinarySearch(list, consumer)
	if !found {
		p.consumers[producer] = slices.Insert(list, i, consumer)
	}
}

// dropConsumer removes consumer from producer's list once no input of consumer
// refers to producer anymore.
func (p *Program) dropConsumer(producer, consumer NodeID) {
	if c := p.nodes[consumer]; c != nil {
		for _, in := range c.Inputs {
			if in.Node == producer {
				return
			}
		}
	}
	list := p.consumers[producer]
	if i, found := slices.BinarySearch(list, consumer); found {
		p.consumers[producer] = slices.Delete(list, i, i+1)
	}
}

// Infer re-runs arity checks and layout inference for id.
func (p *Program) Infer(id NodeID) error {
	n := p.nodes[id]
	primary := n.PrimaryInputs()
	if err := ops.CheckArity(n.Op, len(primary)); err != nil {
		return &errs.ValidationError{Node: n.Name, Reason: "arity", Err: err}
	}
	layouts := p.InputLayouts(n)
	out, err := n.Op.InferLayout(layouts[:len(primary)])
	if err != nil {
		return &errs.ValidationError{Node: n.Name, Reason: "layout inference", Err: err}
	}
	for _, post := range n.FusedOps {
		if post.Kind != ops.PostOpEltwise {
			continue
		}
		if post.Input < len(primary) || post.Input >= len(layouts) {
			return errs.Validationf(n.Name, "fused %s reads input %d outside the operand range", post.Signature(), post.Input)
		}
		if !layouts[post.Input].Compatible(out) {
			return &errs.ValidationError{Node: n.Name, Reason: "fused operand " + layouts[post.Input].String(), Err: errs.ErrLayoutMismatch}
		}
	}
	n.Output = out
	return nil
}

// SetInput rebinds input idx of consumer to ref and re-infers the consumer's layout.
// The change is rolled back if inference fails.
func (p *Program) SetInput(consumer NodeID, idx int, ref InputRef) error {
	if err := p.mutable(); err != nil {
		return err
	}
	n := p.nodes[consumer]
	if idx < 0 || idx >= len(n.Inputs) {
		return fmt.Errorf("node %q has no input %d", n.Name, idx)
	}
	if p.Node(ref.Node) == nil {
		return fmt.Errorf("node %q: input references missing node %d", n.Name, ref.Node)
	}

	old := n.Inputs[idx]
	n.Inputs[idx] = ref
	if err := p.Infer(consumer); err != nil {
		n.Inputs[idx] = old
		return err
	}
	p.dropConsumer(old.Node, consumer)
	p.addConsumer(ref.Node, consumer)
	p.orderValid = false
	return nil
}

// Fuse folds postOp into id. operand, if not nil, is appended as a trailing input and
// becomes the post-op's operand.
func (p *Program) Fuse(id NodeID, postOp ops.PostOp, operand *InputRef) error {
	if err := p.mutable(); err != nil {
		return err
	}
	n := p.nodes[id]
	if operand != nil {
		postOp.Input = len(n.Inputs)
		n.Inputs = append(n.Inputs, *operand)
	}
	n.FusedOps = append(n.FusedOps, postOp)
	if err := p.Infer(id); err != nil {
		n.FusedOps = n.FusedOps[:len(n.FusedOps)-1]
		if operand != nil {
			n.Inputs = n.Inputs[:len(n.Inputs)-1]
		}
		return err
	}
	if operand != nil {
		p.addConsumer(operand.Node, id)
	}
	p.orderValid = false
	return nil
}

// Replace rewires every consumer of old to read replacement instead and moves output
// names resolving to old onto replacement. Both layouts must be equal, format included,
// so consumers keep the layout they were inferred against.
func (p *Program) Replace(old, replacement NodeID) error {
	if err := p.mutable(); err != nil {
		return err
	}
	if !p.nodes[old].Output.Equal(p.nodes[replacement].Output) {
		return fmt.Errorf("replace %s with %s: %w", p.nodes[old], p.nodes[replacement], errs.ErrLayoutMismatch)
	}
	for _, c := range p.Consumers(old) {
		if c == replacement {
			continue
		}
		n := p.nodes[c]
		for i, in := range n.Inputs {
			if in.Node == old {
				n.Inputs[i] = InputRef{Node: replacement, Port: in.Port}
			}
		}
		p.dropConsumer(old, c)
		p.addConsumer(replacement, c)
	}
	for name, target := range p.aliases {
		if target == old {
			p.aliases[name] = replacement
		}
	}
	p.orderValid = false
	return nil
}

// Remove deletes a node nothing consumes. Output names resolving to it must have
// been moved first.
func (p *Program) Remove(id NodeID) error {
	if err := p.mutable(); err != nil {
		return err
	}
	if len(p.consumers[id]) > 0 {
		return fmt.Errorf("remove %s: still consumed by %d node(s)", p.nodes[id], len(p.consumers[id]))
	}
	if p.IsOutput(id) {
		return fmt.Errorf("remove %s: node holds a requested output", p.nodes[id])
	}
	p.detach(id)
	return nil
}

// Reachable reports whether to depends, directly or transitively, on from.
func (p *Program) Reachable(from, to NodeID) bool {
	if from == to {
		return true
	}
	seen := make(map[NodeID]bool)
	stack := []NodeID{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range p.consumers[id] {
			if c == to {
				return true
			}
			if !seen[c] {
				seen[c] = true
				stack = append(stack, c)
			}
		}
	}
	return false
}

// SetMemoryDeps attaches the memory-dependency map: for every node, the earlier nodes
// whose buffer it may reuse, and the donor chosen for it.
func (p *Program) SetMemoryDeps(deps map[NodeID][]NodeID, reuse map[NodeID]NodeID) error {
	if err := p.mutable(); err != nil {
		return err
	}
	p.memDeps, p.reuse = deps, reuse
	return nil
}

// MemoryDeps returns the nodes whose buffer id may reuse.
func (p *Program) MemoryDeps(id NodeID) []NodeID {
	return slices.Clone(p.memDeps[id])
}

// ReusedBuffer returns the node whose buffer id was assigned, if any.
func (p *Program) ReusedBuffer(id NodeID) (NodeID, bool) {
	donor, ok := p.reuse[id]
	return donor, ok
}

// SetKernel binds an executable kernel to id.
func (p *Program) SetKernel(id NodeID, k Kernel) error {
	if err := p.mutable(); err != nil {
		return err
	}
	if p.kernels == nil {
		p.kernels = make(map[NodeID]Kernel)
	}
	p.kernels[id] = k
	return nil
}

// Kernel returns the kernel bound to id.
func (p *Program) Kernel(id NodeID) (Kernel, bool) {
	k, ok := p.kernels[id]
	return k, ok
}
