// Package network runs compiled programs. A Network owns the buffers of one program
// instance: it is constructed from a frozen program, has its inputs bound, and is
// executed any number of times.
package network

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/born-ml/graphc/internal/config"
	"github.com/born-ml/graphc/internal/engine"
	"github.com/born-ml/graphc/internal/errs"
	"github.com/born-ml/graphc/internal/graph"
	"github.com/born-ml/graphc/internal/memdeps"
	"github.com/born-ml/graphc/internal/ops"
	"github.com/born-ml/graphc/internal/tensor"
)

// State is the lifecycle stage of a network.
type State int

// Network states.
const (
	Constructed State = iota
	InputsBound
	Executed
	Closed
)

func (s State) String() string {
	switch s {
	case Constructed:
		return "constructed"
	case InputsBound:
		return "inputs-bound"
	case Executed:
		return "executed"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options configures a network.
type Options struct {
	// Workers bounds how many kernels run at once.
	Workers int

	Log *logrus.Entry
}

// DefaultOptions takes the worker count from the environment.
func DefaultOptions() Options {
	return Options{Workers: config.ExecWorkers()}
}

// Network is one executable instance of a program.
type Network struct {
	id      uuid.UUID
	program *graph.Program
	engine  *engine.Engine
	workers int
	log     *logrus.Entry

	nodes   []*graph.Node
	kernels map[graph.NodeID]graph.Kernel
	buffers map[graph.NodeID]*tensor.Memory // by buffer root
	owned   []*tensor.Memory
	inputs  map[string]graph.NodeID

	mu    sync.Mutex
	state State
}

// New allocates the buffers of p on e following the program's memory-dependency
// plan and binds its kernels. p must be frozen with a kernel on every node. When the
// engine runs out of memory the error is an AllocationError and everything allocated
// so far is returned to the engine.
func New(p *graph.Program, e *engine.Engine, opts Options) (*Network, error) {
	if !p.Frozen() {
		return nil, fmt.Errorf("network: %w", errs.ErrNotCompiled)
	}
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	n := &Network{
		id:      uuid.New(),
		program: p,
		engine:  e,
		workers: max(opts.Workers, 1),
		nodes:   p.Nodes(),
		kernels: make(map[graph.NodeID]graph.Kernel),
		buffers: make(map[graph.NodeID]*tensor.Memory),
		inputs:  make(map[string]graph.NodeID),
	}
	n.log = log.WithField("network", n.id.String())

	for _, node := range n.nodes {
		k, ok := p.Kernel(node.ID)
		if !ok {
			return nil, fmt.Errorf("network: node %q: %w", node.Name, errs.ErrNotCompiled)
		}
		n.kernels[node.ID] = k
	}

	if err := n.allocate(); err != nil {
		n.release()
		return nil, err
	}

	stats := e.Stats()
	n.log.WithFields(logrus.Fields{
		"nodes":   len(n.nodes),
		"buffers": len(n.owned),
		"bytes":   stats.InUse,
	}).Info("network allocated")
	return n, nil
}

func (n *Network) allocate() error {
	for _, node := range n.nodes {
		switch {
		case node.Kind() == ops.KindInputLayout:
			n.inputs[node.Name] = node.ID

		case ops.AliasedInput(node.Op) >= 0:
			// Shares the buffer of its root.

		case node.Kind() == ops.KindData:
			m, err := n.engine.Copy(node.Op.(*ops.Data).Memory)
			if err != nil {
				return &errs.AllocationError{Node: node.Name, Bytes: node.Output.ByteSize(), Err: err}
			}
			n.own(node.ID, m)

		default:
			if donor, ok := n.program.ReusedBuffer(node.ID); ok {
				view, err := n.buffers[donor].View(node.Output)
				if err != nil {
					return &errs.AllocationError{Node: node.Name, Bytes: node.Output.ByteSize(), Err: err}
				}
				n.own(node.ID, view)
				continue
			}
			m, err := n.engine.Allocate(node.Output)
			if err != nil {
				return &errs.AllocationError{Node: node.Name, Bytes: node.Output.ByteSize(), Err: err}
			}
			n.own(node.ID, m)
		}
	}
	return nil
}

func (n *Network) own(id graph.NodeID, m *tensor.Memory) {
	n.buffers[id] = m
	n.owned = append(n.owned, m)
}

func (n *Network) release() {
	for _, m := range n.owned {
		n.engine.Free(m)
	}
	n.owned = nil
	n.buffers = make(map[graph.NodeID]*tensor.Memory)
}

// ID identifies the network in logs.
func (n *Network) ID() uuid.UUID {
	return n.id
}

// Program returns the program the network runs.
func (n *Network) Program() *graph.Program {
	return n.program
}

// State returns the lifecycle stage.
func (n *Network) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Inputs returns the names of the input nodes.
func (n *Network) Inputs() []string {
	names := make([]string, 0, len(n.inputs))
	for _, node := range n.nodes {
		if _, ok := n.inputs[node.Name]; ok {
			names = append(names, node.Name)
		}
	}
	return names
}

// SetInput binds m to the input node name. The network reads m directly on every
// execution; the caller keeps ownership.
func (n *Network) SetInput(name string, m *tensor.Memory) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state == Closed {
		return fmt.Errorf("set input %q: %w", name, errs.ErrNetworkClosed)
	}
	id, ok := n.inputs[name]
	if !ok {
		return fmt.Errorf("set input %q: %w", name, errs.ErrUnknownInput)
	}
	want := n.program.Node(id).Output
	if !m.Layout().Equal(want) {
		return fmt.Errorf("set input %q: %w: got %s, declared %s", name, errs.ErrLayoutMismatch, m.Layout(), want)
	}
	n.buffers[id] = m

	if n.state == Constructed && n.allBound() {
		n.state = InputsBound
	}
	return nil
}

func (n *Network) allBound() bool {
	for _, id := range n.inputs {
		if n.buffers[id] == nil {
			return false
		}
	}
	return true
}

// memory returns the buffer holding id's output.
func (n *Network) memory(id graph.NodeID) *tensor.Memory {
	return n.buffers[memdeps.Root(n.program, id)]
}

// Close returns every buffer to the engine. Bound inputs are not touched.
func (n *Network) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state == Closed {
		return nil
	}
	n.release()
	n.state = Closed
	n.log.Debug("network closed")
	return nil
}
