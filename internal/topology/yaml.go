package topology

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/graphc/internal/errs"
	"github.com/born-ml/graphc/internal/ops"
)

type document struct {
	Nodes   []nodeDocument `yaml:"nodes"`
	Outputs ops.Attributes `yaml:"outputs,omitempty"`
}

type nodeDocument struct {
	Name       string         `yaml:"name"`
	Kind       string         `yaml:"kind"`
	Inputs     []string       `yaml:"inputs,omitempty,flow"`
	Attributes ops.Attributes `yaml:"attributes,omitempty"`
	Layout     string         `yaml:"layout,omitempty"`
}

// Marshal encodes the topology as YAML. Node attributes are enumerated through each
// operation's attribute visitor; outputs are written as node references.
func Marshal(t *Topology) ([]byte, error) {
	doc := document{}
	for _, def := range t.Definitions() {
		attrs := ops.Attributes{}
		if err := def.Op.VisitAttributes(ops.NewSaver(attrs)); err != nil {
			return nil, fmt.Errorf("node %q: %w", def.Name, err)
		}
		doc.Nodes = append(doc.Nodes, nodeDocument{
			Name:       def.Name,
			Kind:       string(def.Kind()),
			Inputs:     def.Inputs,
			Attributes: attrs,
			Layout:     def.LayoutTag,
		})
	}

	t.mu.RLock()
	if len(t.outputs) > 0 {
		doc.Outputs = SaveOutputs(t.outputs)
	}
	t.mu.RUnlock()

	return yaml.Marshal(&doc)
}

// Unmarshal decodes a YAML topology in two phases: every node is materialized first,
// then input and output references are resolved against the full set of names. An
// unresolved reference is a ReferenceError.
func Unmarshal(data []byte) (*Topology, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("topology: %w", err)
	}

	// Phase 1: materialize.
	t := New()
	for i, nd := range doc.Nodes {
		op, err := ops.New(ops.Kind(nd.Kind))
		if err != nil {
			return nil, fmt.Errorf("topology: nodes[%d] %q: %w", i, nd.Name, err)
		}
		if err := op.VisitAttributes(ops.NewLoader(nd.Attributes)); err != nil {
			return nil, fmt.Errorf("topology: node %q: %w", nd.Name, err)
		}
		def := &Definition{Name: nd.Name, Op: op, Inputs: nd.Inputs, LayoutTag: nd.Layout}
		if err := t.AddDefinition(def); err != nil {
			return nil, fmt.Errorf("topology: %w", err)
		}
	}

	// Phase 2: resolve references.
	registered := func(name string) bool {
		_, ok := t.defs.Get(name)
		return ok
	}
	for _, def := range t.Definitions() {
		for i, in := range def.Inputs {
			if !registered(in) {
				return nil, &errs.ReferenceError{
					Field: fmt.Sprintf("nodes.%s.inputs.%d", def.Name, i),
					Ref:   in,
				}
			}
		}
	}
	if doc.Outputs != nil {
		outputs, err := LoadOutputs(doc.Outputs, registered)
		if err != nil {
			return nil, err
		}
		t.outputs = outputs
	}
	return t, nil
}

// Read decodes a YAML topology from r.
func Read(r io.Reader) (*Topology, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("topology: %w", err)
	}
	return Unmarshal(data)
}

// Load reads a YAML topology file.
func Load(path string) (*Topology, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("topology: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Save writes the topology to a YAML file.
func Save(t *Topology, path string) error {
	data, err := Marshal(t)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("topology: %w", err)
	}
	return nil
}
