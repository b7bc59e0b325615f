package kernels

import (
	"fmt"

	"github.com/born-ml/graphc/internal/graph"
	"github.com/born-ml/graphc/internal/ops"
	"github.com/born-ml/graphc/internal/parallel"
	"github.com/born-ml/graphc/internal/tensor"
)

func (c *Catalog) registerActivation() {
	c.Register(ops.KindActivation, Implementation{
		Name: "activation_ref",
		Supports: func(sig Signature) error {
			if err := noPostOps(sig); err != nil {
				return err
			}
			return floatTypes(sig.Output)
		},
		Build: func(op ops.Operation, sig Signature) (graph.Kernel, error) {
			a, ok := op.(*ops.Activation)
			if !ok {
				return nil, fmt.Errorf("activation_ref: unexpected operation %T", op)
			}
			fn, params, cfg := a.Func, a.Params, c.cfg
			return &kernel{
				name: fmt.Sprintf("activation_%s_%s", fn, sig.Output.DType),
				run: func(inputs []*tensor.Memory, out *tensor.Memory) error {
					if err := checkRun(sig, inputs, out); err != nil {
						return err
					}
					// Same layout in and out, so physical order can be kept.
					vals := inputs[0].Float32s()
					parallel.ForRange(len(vals), func(start, end int) {
						for i := start; i < end; i++ {
							vals[i] = fn.Apply(vals[i], params)
						}
					}, cfg)
					return out.SetFloat32s(vals)
				},
			}, nil
		},
	})
}
