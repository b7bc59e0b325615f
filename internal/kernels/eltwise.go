package kernels

import (
	"fmt"

	"github.com/born-ml/graphc/internal/graph"
	"github.com/born-ml/graphc/internal/ops"
	"github.com/born-ml/graphc/internal/parallel"
	"github.com/born-ml/graphc/internal/tensor"
)

func (c *Catalog) registerEltwise() {
	c.Register(ops.KindEltwise, Implementation{
		Name:     "eltwise_ref",
		Supports: noPostOps,
		Build: func(op ops.Operation, sig Signature) (graph.Kernel, error) {
			e, ok := op.(*ops.Eltwise)
			if !ok {
				return nil, fmt.Errorf("eltwise_ref: unexpected operation %T", op)
			}
			mode, cfg := e.Mode, c.cfg
			return &kernel{
				name: fmt.Sprintf("eltwise_%s_%s", mode, sig.Output.DType),
				run: func(inputs []*tensor.Memory, out *tensor.Memory) error {
					if err := checkRun(sig, inputs, out); err != nil {
						return err
					}
					return eltwise(mode, inputs, out, cfg)
				},
			}, nil
		},
	})
}

func eltwise(mode ops.EltwiseMode, inputs []*tensor.Memory, out *tensor.Memory, cfg parallel.Config) error {
	outShape := out.Layout().Shape
	values := make([][]float32, len(inputs))
	for i, in := range inputs {
		values[i] = in.Planar()
	}

	dst := make([]float32, out.Layout().NumElements())
	parallel.ForRange(len(dst), func(start, end int) {
		for i := start; i < end; i++ {
			acc := values[0][tensor.BroadcastIndex(i, outShape, inputs[0].Layout().Shape)]
			for k := 1; k < len(inputs); k++ {
				acc = mode.Apply(acc, values[k][tensor.BroadcastIndex(i, outShape, inputs[k].Layout().Shape)])
			}
			dst[i] = acc
		}
	}, cfg)
	return out.SetPlanar(dst)
}
