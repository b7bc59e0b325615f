package kernels

import (
	"fmt"

	"github.com/born-ml/graphc/internal/graph"
	"github.com/born-ml/graphc/internal/ops"
	"github.com/born-ml/graphc/internal/tensor"
)

func (c *Catalog) registerReorder() {
	c.Register(ops.KindReorder, Implementation{
		Name:     "reorder_ref",
		Supports: noPostOps,
		Build: func(_ ops.Operation, sig Signature) (graph.Kernel, error) {
			in := sig.Inputs[0]
			return &kernel{
				name: fmt.Sprintf("reorder_%s_%s_to_%s_%s", in.DType, in.Format, sig.Output.DType, sig.Output.Format),
				run: func(inputs []*tensor.Memory, out *tensor.Memory) error {
					if err := checkRun(sig, inputs, out); err != nil {
						return err
					}
					if inputs[0].Layout().Equal(out.Layout()) {
						return out.CopyFrom(inputs[0])
					}
					return out.SetPlanar(inputs[0].Planar())
				},
			}, nil
		},
	})
}
