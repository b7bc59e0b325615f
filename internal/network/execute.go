package network

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/born-ml/graphc/internal/errs"
	"github.com/born-ml/graphc/internal/graph"
	"github.com/born-ml/graphc/internal/metrics"
	"github.com/born-ml/graphc/internal/tensor"
)

// Execute runs every node once and returns the outputs by name. A node starts only
// after all its producers finished; at most Options.Workers independent nodes run at
// once. The returned memories belong to the network and are overwritten by the next
// call.
func (n *Network) Execute(ctx context.Context) (map[string]*tensor.Memory, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	start := time.Now()
	outputs, err := n.execute(ctx)
	elapsed := time.Since(start)
	metrics.ObserveExecute(elapsed, err)
	if err != nil {
		n.log.WithError(err).Debug("execution failed")
		return nil, err
	}

	n.state = Executed
	n.log.WithField("duration", elapsed).Debug("network executed")
	return outputs, nil
}

func (n *Network) execute(ctx context.Context) (map[string]*tensor.Memory, error) {
	if n.state == Closed {
		return nil, &errs.ExecutionError{Err: errs.ErrNetworkClosed}
	}
	for _, node := range n.nodes {
		if id, ok := n.inputs[node.Name]; ok && n.buffers[id] == nil {
			return nil, &errs.ExecutionError{Node: node.Name, Err: errs.ErrInputNotBound}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, &errs.ExecutionError{Err: err}
	}

	if err := n.walk(ctx); err != nil {
		return nil, err
	}

	outputs := make(map[string]*tensor.Memory)
	for _, name := range n.program.Outputs() {
		id, ok := n.program.OutputNode(name)
		if !ok {
			return nil, &errs.ExecutionError{Node: name, Err: fmt.Errorf("output has no node")}
		}
		outputs[name] = n.memory(id)
	}
	return outputs, nil
}

// walk dispatches nodes as their producers complete. Each ready node runs on its own
// goroutine once it holds one of the workers semaphore permits.
func (n *Network) walk(ctx context.Context) error {
	pending := make(map[graph.NodeID]*atomic.Int32, len(n.nodes))
	for _, node := range n.nodes {
		c := new(atomic.Int32)
		c.Store(int32(len(n.program.Producers(node.ID))))
		pending[node.ID] = c
	}

	// Every node is sent exactly once, so sends never block.
	ready := make(chan *graph.Node, len(n.nodes))
	for _, node := range n.nodes {
		if pending[node.ID].Load() == 0 {
			ready <- node
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(n.workers))
dispatch:
	for range len(n.nodes) {
		var node *graph.Node
		select {
		case <-gctx.Done():
			break dispatch
		case node = <-ready:
		}
		if err := sem.Acquire(gctx, 1); err != nil {
			break dispatch
		}
		g.Go(func() error {
			defer sem.Release(1)
			if err := n.run(node); err != nil {
				return err
			}
			for _, c := range n.program.Consumers(node.ID) {
				if pending[c].Add(-1) == 0 {
					ready <- n.program.Node(c)
				}
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err == nil || errs.IsExecution(err) {
		return err
	}
	return &errs.ExecutionError{Err: err}
}

func (n *Network) run(node *graph.Node) error {
	args := make([]*tensor.Memory, len(node.Inputs))
	for i, ref := range node.Inputs {
		args[i] = n.memory(ref.Node)
	}
	out := n.memory(node.ID)

	start := time.Now()
	k := n.kernels[node.ID]
	if err := k.Run(args, out); err != nil {
		return &errs.ExecutionError{Node: node.Name, Err: err}
	}
	n.log.WithFields(logrus.Fields{
		"node":     node.Name,
		"kernel":   k.Name(),
		"duration": time.Since(start),
	}).Trace("node executed")
	return nil
}
