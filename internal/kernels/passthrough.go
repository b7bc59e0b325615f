package kernels

import (
	"github.com/born-ml/graphc/internal/graph"
	"github.com/born-ml/graphc/internal/ops"
	"github.com/born-ml/graphc/internal/tensor"
)

// registerPassthrough registers kernels for kinds that compute nothing at execution
// time. Input and constant memory is bound by the network; results share their
// producer's buffer and only copy when a caller gave them a separate one.
func (c *Catalog) registerPassthrough() {
	noop := func(name string) Implementation {
		return Implementation{
			Name:     name,
			Supports: noPostOps,
			Build: func(ops.Operation, Signature) (graph.Kernel, error) {
				return &kernel{
					name: name,
					run:  func([]*tensor.Memory, *tensor.Memory) error { return nil },
				}, nil
			},
		}
	}
	c.Register(ops.KindInputLayout, noop("input"))
	c.Register(ops.KindData, noop("constant"))

	c.Register(ops.KindResult, Implementation{
		Name:     "passthrough",
		Supports: noPostOps,
		Build: func(_ ops.Operation, sig Signature) (graph.Kernel, error) {
			return &kernel{
				name: "passthrough",
				run: func(inputs []*tensor.Memory, out *tensor.Memory) error {
					if err := checkRun(sig, inputs, out); err != nil {
						return err
					}
					if out.SameBuffer(inputs[0]) {
						return nil
					}
					return out.CopyFrom(inputs[0])
				},
			}, nil
		},
	})
}
