package kernels

import (
	"fmt"

	"github.com/born-ml/graphc/internal/ops"
	"github.com/born-ml/graphc/internal/tensor"
)

func noPostOps(sig Signature) error {
	if len(sig.PostOps) > 0 {
		return fmt.Errorf("fused post-ops %s not supported", ops.FusedSignature(sig.PostOps))
	}
	return nil
}

func floatTypes(layouts ...tensor.Layout) error {
	for _, l := range layouts {
		if l.DType != tensor.Float32 && l.DType != tensor.Float16 {
			return fmt.Errorf("type %s not supported", l.DType)
		}
	}
	return nil
}

func format(f tensor.Format, layouts ...tensor.Layout) error {
	for _, l := range layouts {
		if l.Format != f {
			return fmt.Errorf("format %s not supported", l.Format)
		}
	}
	return nil
}

// checkRun verifies the runtime arguments against the signature a kernel was built
// for.
func checkRun(sig Signature, inputs []*tensor.Memory, out *tensor.Memory) error {
	if len(inputs) != len(sig.Inputs) {
		return fmt.Errorf("got %d inputs, kernel was built for %d", len(inputs), len(sig.Inputs))
	}
	for i, in := range inputs {
		if !in.Layout().Equal(sig.Inputs[i]) {
			return fmt.Errorf("input %d: layout %s, kernel was built for %s", i, in.Layout(), sig.Inputs[i])
		}
	}
	if !out.Layout().Equal(sig.Output) {
		return fmt.Errorf("output layout %s, kernel was built for %s", out.Layout(), sig.Output)
	}
	return nil
}
