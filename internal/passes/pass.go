// Package passes implements the optimization pipeline: ordered, composable rewrites
// of a program. A pass mutates the program in place, leaves it acyclic with every
// input reference resolvable, and never fails a compilation: an ineligible rewrite is
// simply skipped.
package passes

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/born-ml/graphc/internal/graph"
	"github.com/born-ml/graphc/internal/metrics"
)

// Pass is one graph-to-graph rewrite.
type Pass interface {
	Name() string
	Run(p *graph.Program, ctx *Context)
}

// Context is handed to every pass of one pipeline run.
type Context struct {
	Log *logrus.Entry

	eliminated int
}

// Eliminated records n nodes removed by the running pass.
func (c *Context) Eliminated(n int) {
	c.eliminated += n
}

// Result summarizes one pass execution.
type Result struct {
	Pass       string
	Eliminated int
	Duration   time.Duration
}

// Default returns the standard pipeline in order.
func Default() []Pass {
	return []Pass{
		TrimToOutputs{},
		PropagateConstants{},
		ConvEltwiseFusion{},
		ActivationFusion{},
	}
}

// Names returns the names of the standard pipeline.
func Names() []string {
	var names []string
	for _, p := range Default() {
		names = append(names, p.Name())
	}
	return names
}

// Lookup returns the standard pass with the given name.
func Lookup(name string) (Pass, error) {
	for _, p := range Default() {
		if p.Name() == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("unknown pass %q (known: %v)", name, Names())
}

// Manager runs passes in a fixed order. Later passes observe the effects of earlier
// ones.
type Manager struct {
	passes   []Pass
	disabled map[string]bool
}

// NewManager creates a manager running passes in the given order.
func NewManager(passes ...Pass) *Manager {
	return &Manager{passes: passes, disabled: make(map[string]bool)}
}

// Disable skips the named passes.
func (m *Manager) Disable(names ...string) {
	for _, name := range names {
		m.disabled[name] = true
	}
}

// Enabled returns the names of the passes that will run.
func (m *Manager) Enabled() []string {
	var names []string
	for _, p := range m.passes {
		if !m.disabled[p.Name()] {
			names = append(names, p.Name())
		}
	}
	return names
}

// Run applies every enabled pass to p.
func (m *Manager) Run(p *graph.Program, log *logrus.Entry) []Result {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	var results []Result
	for _, pass := range m.passes {
		if m.disabled[pass.Name()] {
			log.WithField("pass", pass.Name()).Debug("pass disabled")
			continue
		}

		ctx := &Context{Log: log.WithField("pass", pass.Name())}
		before := p.Len()
		start := time.Now()
		pass.Run(p, ctx)
		elapsed := time.Since(start)

		metrics.RecordRewrites(pass.Name(), ctx.eliminated)
		ctx.Log.WithFields(logrus.Fields{
			"eliminated": ctx.eliminated,
			"nodes":      p.Len(),
			"rewrote":    p.Len() != before,
			"duration":   elapsed,
		}).Debug("pass finished")
		results = append(results, Result{Pass: pass.Name(), Eliminated: ctx.eliminated, Duration: elapsed})
	}
	return results
}
