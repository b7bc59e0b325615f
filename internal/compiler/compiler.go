// Package compiler turns a topology into a frozen, executable program: construction,
// the optimization pipeline, memory-dependency analysis and kernel selection.
package compiler

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/born-ml/graphc/internal/config"
	"github.com/born-ml/graphc/internal/graph"
	"github.com/born-ml/graphc/internal/kernels"
	"github.com/born-ml/graphc/internal/memdeps"
	"github.com/born-ml/graphc/internal/metrics"
	"github.com/born-ml/graphc/internal/parallel"
	"github.com/born-ml/graphc/internal/passes"
	"github.com/born-ml/graphc/internal/topology"
)

// Options configures one compilation.
type Options struct {
	// Optimize runs the pass pipeline. Without it the program keeps one kernel per
	// topology node.
	Optimize bool

	// Passes names the pipeline in order. Empty selects passes.Default().
	Passes []string

	// Disabled names passes to skip.
	Disabled []string

	// Outputs overrides the topology's output selection.
	Outputs []string

	// MemoryReuse lets nodes share buffers according to the memory-dependency plan.
	MemoryReuse bool

	// Workers bounds concurrent kernel compilation.
	Workers int

	// Selector compiles kernels. Nil uses a private selector over the host catalog.
	Selector *Selector

	Log *logrus.Entry
}

// DefaultOptions returns options with every optimization enabled and worker counts
// and disabled passes taken from the environment.
func DefaultOptions() Options {
	return Options{
		Optimize:    true,
		Disabled:    config.DisabledPasses(),
		MemoryReuse: true,
		Workers:     config.CompileWorkers(),
	}
}

// Compiled is a frozen program together with what compilation learned about it.
type Compiled struct {
	Program  *graph.Program
	Passes   []passes.Result
	Memory   *memdeps.Plan
	Duration time.Duration
}

// Compile builds, optimizes, plans and compiles topo. Malformed topologies fail with
// a ValidationError and nodes without a matching kernel with a CompilationError; in
// both cases no program is returned.
func Compile(ctx context.Context, topo *topology.Topology, opts Options) (*Compiled, error) {
	start := time.Now()
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	p, err := graph.Build(topo, opts.Outputs...)
	if err != nil {
		return nil, err
	}
	out := &Compiled{Program: p}

	if opts.Optimize {
		manager, err := pipeline(opts.Passes)
		if err != nil {
			return nil, err
		}
		manager.Disable(opts.Disabled...)
		out.Passes = manager.Run(p, log)
	}

	if opts.MemoryReuse {
		if out.Memory, err = memdeps.Apply(p, log); err != nil {
			return nil, err
		}
	}

	sel := opts.Selector
	if sel == nil {
		sel = NewSelector(kernels.NewCatalog(parallel.DefaultConfig()), nil, log)
	}
	if err := sel.Assign(ctx, p, opts.Workers); err != nil {
		return nil, err
	}
	p.Freeze()

	out.Duration = time.Since(start)
	metrics.ObserveCompile(out.Duration)
	log.WithFields(logrus.Fields{
		"nodes":    p.Len(),
		"outputs":  p.Outputs(),
		"passes":   len(out.Passes),
		"duration": out.Duration,
	}).Debug("program compiled")
	return out, nil
}

func pipeline(names []string) (*passes.Manager, error) {
	if len(names) == 0 {
		return passes.NewManager(passes.Default()...), nil
	}
	list := make([]passes.Pass, 0, len(names))
	for _, name := range names {
		pass, err := passes.Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("compile: %w", err)
		}
		list = append(list, pass)
	}
	return passes.NewManager(list...), nil
}
