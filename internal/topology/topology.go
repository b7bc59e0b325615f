// Package topology is the user-facing graph description: an ordered, append-only set
// of named node definitions plus the list of requested outputs. A topology owns no
// runtime resources and becomes immutable once a program is built from it.
package topology

import (
	"fmt"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/born-ml/graphc/internal/errs"
	"github.com/born-ml/graphc/internal/ops"
	"github.com/born-ml/graphc/internal/tensor"
)

// Definition describes one node before graph construction.
type Definition struct {
	Name   string
	Op     ops.Operation
	Inputs []string // Producer names, in input order

	// LayoutTag is an optional LAYOUT annotation (for example "NCHW") carried onto the
	// program node. It does not take part in shape inference.
	LayoutTag string
}

// Kind returns the operation kind of the definition.
func (d *Definition) Kind() ops.Kind {
	return d.Op.Kind()
}

// Topology is an ordered collection of node definitions.
type Topology struct {
	mu      sync.RWMutex
	defs    *orderedmap.OrderedMap[string, *Definition]
	outputs []string
	frozen  bool
}

// New creates an empty topology.
func New() *Topology {
	return &Topology{defs: orderedmap.New[string, *Definition]()}
}

// Add appends a definition. Names are unique; inputs may name nodes added later and
// are only resolved when a program is built.
func (t *Topology) Add(name string, op ops.Operation, inputs ...string) error {
	return t.AddDefinition(&Definition{Name: name, Op: op, Inputs: inputs})
}

// AddDefinition appends a fully populated definition.
func (t *Topology) AddDefinition(def *Definition) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen {
		return fmt.Errorf("add %q: %w", def.Name, errs.ErrFrozen)
	}
	if def.Name == "" {
		return errs.Validationf("", "node name must not be empty")
	}
	if def.Op == nil {
		return errs.Validationf(def.Name, "no operation")
	}
	if _, exists := t.defs.Get(def.Name); exists {
		return errs.Validationf(def.Name, "duplicate node name")
	}

	cp := *def
	cp.Inputs = append([]string(nil), def.Inputs...)
	t.defs.Set(def.Name, &cp)
	return nil
}

// AddInput declares a caller-bound input.
func (t *Topology) AddInput(name string, layout tensor.Layout) error {
	return t.Add(name, ops.NewInputLayout(layout))
}

// AddData declares a constant.
func (t *Topology) AddData(name string, mem *tensor.Memory) error {
	return t.Add(name, ops.NewData(mem))
}

// AddConvolution declares a convolution. bias may be empty.
func (t *Topology) AddConvolution(name, input, weights, bias string, stride, padding int) error {
	inputs := []string{input, weights}
	if bias != "" {
		inputs = append(inputs, bias)
	}
	return t.Add(name, ops.NewConvolution(stride, padding), inputs...)
}

// AddEltwise declares an elementwise combination of two or more inputs.
func (t *Topology) AddEltwise(name string, mode ops.EltwiseMode, inputs ...string) error {
	return t.Add(name, ops.NewEltwise(mode), inputs...)
}

// AddActivation declares an activation.
func (t *Topology) AddActivation(name, input string, fn ops.ActivationFunc, params ops.ActivationParams) error {
	return t.Add(name, ops.NewActivation(fn, params), input)
}

// AddReorder declares an element type and/or format conversion.
func (t *Topology) AddReorder(name, input string, dtype tensor.DataType, format tensor.Format) error {
	return t.Add(name, ops.NewReorder(dtype, format), input)
}

// AddResult declares a passthrough output marker.
func (t *Topology) AddResult(name, input string) error {
	return t.Add(name, ops.NewResult(), input)
}

// SetOutputs selects the nodes whose values are returned by execution. Without an
// explicit selection, every node without consumers is an output.
func (t *Topology) SetOutputs(names ...string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen {
		return fmt.Errorf("set outputs: %w", errs.ErrFrozen)
	}
	t.outputs = append([]string(nil), names...)
	return nil
}

// Outputs returns the explicitly selected outputs, or the sinks (nodes nothing
// consumes) in definition order.
func (t *Topology) Outputs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.outputs) > 0 {
		return append([]string(nil), t.outputs...)
	}

	consumed := make(map[string]bool)
	for pair := t.defs.Oldest(); pair != nil; pair = pair.Next() {
		for _, in := range pair.Value.Inputs {
			consumed[in] = true
		}
	}
	var sinks []string
	for pair := t.defs.Oldest(); pair != nil; pair = pair.Next() {
		if !consumed[pair.Key] {
			sinks = append(sinks, pair.Key)
		}
	}
	return sinks
}

// Get returns the definition with the given name.
func (t *Topology) Get(name string) (*Definition, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.defs.Get(name)
}

// Len returns the number of definitions.
func (t *Topology) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.defs.Len()
}

// Definitions returns every definition in insertion order.
func (t *Topology) Definitions() []*Definition {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*Definition, 0, t.defs.Len())
	for pair := t.defs.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Freeze makes the topology immutable. It is called when a program is built.
func (t *Topology) Freeze() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frozen = true
}

// Frozen reports whether Freeze has been called.
func (t *Topology) Frozen() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frozen
}
