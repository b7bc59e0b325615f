// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package inference

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/born-ml/graphc/internal/compiler"
	"github.com/born-ml/graphc/internal/config"
	"github.com/born-ml/graphc/internal/engine"
	"github.com/born-ml/graphc/internal/graph"
	"github.com/born-ml/graphc/internal/network"
	"github.com/born-ml/graphc/internal/ops"
	"github.com/born-ml/graphc/internal/tensor"
)

// Options configures compilation and network construction.
type Options struct {
	// OptimizeData runs the optimization pipeline.
	OptimizeData bool

	// Passes names the pipeline in order. Empty selects the standard pipeline.
	Passes []string

	// DisabledPasses names passes to skip.
	DisabledPasses []string

	// Outputs overrides the topology's output selection.
	Outputs []string

	// MemoryReuse lets intermediate values share buffers once they are dead.
	MemoryReuse bool

	// CompileWorkers bounds concurrent kernel compilation.
	CompileWorkers int

	// ExecWorkers bounds how many kernels a network runs at once.
	ExecWorkers int

	// Engine provides network memory. Nil creates one engine per network limited
	// by GRAPHC_MEMORY_LIMIT.
	Engine *Engine

	// Log receives structured logs. Nil uses the standard logrus logger.
	Log *logrus.Entry
}

// DefaultOptions returns the default configuration:
//   - the standard optimization pipeline, minus passes in GRAPHC_DISABLE_PASSES
//   - memory reuse enabled
//   - worker counts from GRAPHC_COMPILE_WORKERS and GRAPHC_EXEC_WORKERS
func DefaultOptions() Options {
	return Options{
		OptimizeData:   true,
		DisabledPasses: config.DisabledPasses(),
		MemoryReuse:    true,
		CompileWorkers: config.CompileWorkers(),
		ExecWorkers:    config.ExecWorkers(),
	}
}

func options(opts []Options) Options {
	if len(opts) > 0 {
		return opts[0]
	}
	return DefaultOptions()
}

// Engine is the host memory service networks allocate from.
type Engine = engine.Engine

// NewEngine creates an engine limited to limit bytes, 0 for unlimited.
func NewEngine(limit int64) *Engine {
	return engine.New(limit)
}

// Program is a compiled, frozen topology.
type Program struct {
	compiled *compiler.Compiled
	opts     Options
}

// Compile builds, optimizes and compiles topo. The topology is frozen.
//
// Example:
//
//	opts := inference.DefaultOptions()
//	opts.DisabledPasses = []string{"prepare_conv_eltw_fusing"}
//	program, err := inference.Compile(topo, opts)
func Compile(topo *Topology, opts ...Options) (*Program, error) {
	o := options(opts)
	c, err := compiler.Compile(context.Background(), topo, compiler.Options{
		Optimize:    o.OptimizeData,
		Passes:      o.Passes,
		Disabled:    o.DisabledPasses,
		Outputs:     o.Outputs,
		MemoryReuse: o.MemoryReuse,
		Workers:     o.CompileWorkers,
		Log:         o.Log,
	})
	if err != nil {
		return nil, err
	}
	return &Program{compiled: c, opts: o}, nil
}

// Outputs returns the output names.
func (p *Program) Outputs() []string {
	return p.compiled.Program.Outputs()
}

// Inputs returns the names of the nodes that must be bound before execution.
func (p *Program) Inputs() []string {
	var names []string
	for _, id := range p.compiled.Program.Inputs() {
		names = append(names, p.compiled.Program.Node(id).Name)
	}
	return names
}

// InputLayout returns the layout the named input must be bound with.
func (p *Program) InputLayout(name string) (tensor.Layout, bool) {
	n, ok := p.compiled.Program.Lookup(name)
	if !ok || n.Kind() != ops.KindInputLayout {
		return tensor.Layout{}, false
	}
	return n.Output, true
}

// Nodes returns the node names in execution order, after optimization.
func (p *Program) Nodes() []string {
	var names []string
	for _, n := range p.compiled.Program.Nodes() {
		names = append(names, n.Name)
	}
	return names
}

// Kernel returns the name of the kernel selected for node.
func (p *Program) Kernel(node string) (string, bool) {
	n, ok := p.compiled.Program.Lookup(node)
	if !ok {
		return "", false
	}
	k, ok := p.compiled.Program.Kernel(n.ID)
	if !ok {
		return "", false
	}
	return k.Name(), true
}

func (p *Program) graph() *graph.Program {
	return p.compiled.Program
}

// Network is an executable instance of a program.
type Network = network.Network

// AllocateNetwork instantiates p: buffers are allocated and kernels bound. An engine
// running out of memory yields an allocation error and no network.
func AllocateNetwork(p *Program) (*Network, error) {
	e := p.opts.Engine
	if e == nil {
		e = engine.New(config.MemoryLimit())
	}
	return network.New(p.graph(), e, network.Options{
		Workers: p.opts.ExecWorkers,
		Log:     p.opts.Log,
	})
}
