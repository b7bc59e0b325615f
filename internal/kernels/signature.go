package kernels

import (
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/graphc/internal/graph"
	"github.com/born-ml/graphc/internal/ops"
	"github.com/born-ml/graphc/internal/tensor"
)

// Signature is everything kernel selection depends on for one node.
type Signature struct {
	Kind    ops.Kind
	Attrs   string
	Inputs  []tensor.Layout
	Output  tensor.Layout
	PostOps []ops.PostOp
}

// SignatureOf builds the signature of n inside p.
func SignatureOf(p *graph.Program, n *graph.Node) Signature {
	return Signature{
		Kind:    n.Kind(),
		Attrs:   attrSignature(n.Op),
		Inputs:  p.InputLayouts(n),
		Output:  n.Output.Clone(),
		PostOps: n.FusedOps,
	}
}

// Primary returns the input layouts consumed by the operation itself.
func (s Signature) Primary() []tensor.Layout {
	return s.Inputs[:len(s.Inputs)-ops.OperandCount(s.PostOps)]
}

// Layouts renders the input and output layouts, e.g. "f32:bfyx[1,1,2,2],f32:bfyx[1,1,1,1]->f32:bfyx[1,1,2,2]".
func (s Signature) Layouts() string {
	parts := make([]string, len(s.Inputs))
	for i, l := range s.Inputs {
		parts[i] = l.String()
	}
	return strings.Join(parts, ",") + "->" + s.Output.String()
}

// Fused renders the post-ops with their operand slots.
func (s Signature) Fused() string {
	parts := make([]string, len(s.PostOps))
	for i, p := range s.PostOps {
		parts[i] = p.Signature()
		if p.Kind == ops.PostOpEltwise {
			parts[i] += fmt.Sprintf("@%d", p.Input)
		}
	}
	return strings.Join(parts, "+")
}

// Key identifies interchangeable kernels: equal keys may share one compiled kernel.
func (s Signature) Key() string {
	return fmt.Sprintf("%s{%s}|%s|%s", s.Kind, s.Attrs, s.Layouts(), s.Fused())
}

func (s Signature) String() string {
	if len(s.PostOps) == 0 {
		return fmt.Sprintf("%s %s", s.Kind, s.Layouts())
	}
	return fmt.Sprintf("%s %s with %s", s.Kind, s.Layouts(), ops.FusedSignature(s.PostOps))
}

// attrSignature renders the attributes that change what a kernel computes. Constant
// and input nodes have none: their values are bound at allocation time.
func attrSignature(op ops.Operation) string {
	switch op.Kind() {
	case ops.KindData, ops.KindInputLayout:
		return ""
	}
	attrs := ops.Attributes{}
	if err := op.VisitAttributes(ops.NewSaver(attrs)); err != nil {
		return "invalid"
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, attrs[k])
	}
	return strings.Join(parts, ",")
}
