package kernels

import (
	"fmt"
	"slices"

	"github.com/born-ml/graphc/internal/graph"
	"github.com/born-ml/graphc/internal/ops"
	"github.com/born-ml/graphc/internal/parallel"
	"github.com/born-ml/graphc/internal/tensor"
)

func (c *Catalog) registerConvolution() {
	c.Register(ops.KindConvolution, Implementation{
		Name: "conv_im2col",
		Supports: func(sig Signature) error {
			layouts := append(slices.Clone(sig.Primary()), sig.Output)
			if err := floatTypes(layouts...); err != nil {
				return err
			}
			if err := format(tensor.FormatBFYX, layouts...); err != nil {
				return err
			}
			for _, p := range sig.PostOps {
				if p.Kind == ops.PostOpEltwise && p.Mode != ops.EltwiseSum {
					return fmt.Errorf("fused eltwise %s not supported", p.Mode)
				}
			}
			return nil
		},
		Build: func(op ops.Operation, sig Signature) (graph.Kernel, error) {
			conv, ok := op.(*ops.Convolution)
			if !ok {
				return nil, fmt.Errorf("conv_im2col: unexpected operation %T", op)
			}
			k := &convKernel{
				stride:  conv.Stride,
				padding: conv.Padding,
				sig:     sig,
				cfg:     c.cfg,
			}
			return &kernel{
				name: kernelName("conv_im2col_"+sig.Output.DType.String(), sig),
				run:  k.run,
			}, nil
		},
	})
}

type convKernel struct {
	stride, padding int
	sig             Signature
	cfg             parallel.Config
}

// run computes the convolution with im2col followed by a matrix product, then applies
// bias and fused post-ops before the single store into out.
func (k *convKernel) run(inputs []*tensor.Memory, out *tensor.Memory) error {
	if err := checkRun(k.sig, inputs, out); err != nil {
		return err
	}
	primary := len(inputs) - ops.OperandCount(k.sig.PostOps)
	in, w := inputs[0].Layout().Shape, inputs[1].Layout().Shape
	n, cIn, h, wd := in[0], in[1], in[2], in[3]
	cOut, kh, kw := w[0], w[2], w[3]
	hOut, wOut := out.Layout().Shape[2], out.Layout().Shape[3]

	src := inputs[0].Planar()
	weights := inputs[1].Planar()
	var bias []float32
	if primary == 3 {
		bias = inputs[2].Float32s()
	}

	colWidth := cIn * kh * kw
	spatial := hOut * wOut
	dst := make([]float32, out.Layout().NumElements())

	for b := 0; b < n; b++ {
		col := make([]float32, spatial*colWidth)
		im2col(col, src[b*cIn*h*wd:(b+1)*cIn*h*wd], cIn, h, wd, kh, kw, hOut, wOut, k.stride, k.padding)

		base := b * cOut * spatial
		parallel.For(cOut, func(co int) {
			row := weights[co*colWidth : (co+1)*colWidth]
			var b0 float32
			if bias != nil {
				b0 = bias[co]
			}
			for j := 0; j < spatial; j++ {
				patch := col[j*colWidth : (j+1)*colWidth]
				sum := b0
				for i, v := range row {
					sum += v * patch[i]
				}
				dst[base+co*spatial+j] = sum
			}
		}, k.cfg)
	}

	if err := ops.ApplyPostOps(dst, out.Layout(), k.sig.PostOps, inputs); err != nil {
		return err
	}
	return out.SetPlanar(dst)
}

// im2col unfolds one [c, h, w] image into rows of patches: row j holds the
// c*kh*kw values under output position j, with zeros for padding.
func im2col(col, src []float32, c, h, w, kh, kw, hOut, wOut, stride, padding int) {
	idx := 0
	for oy := 0; oy < hOut; oy++ {
		for ox := 0; ox < wOut; ox++ {
			y0 := oy*stride - padding
			x0 := ox*stride - padding
			for ch := 0; ch < c; ch++ {
				for ky := 0; ky < kh; ky++ {
					y := y0 + ky
					for kx := 0; kx < kw; kx++ {
						x := x0 + kx
						if y >= 0 && y < h && x >= 0 && x < w {
							col[idx] = src[(ch*h+y)*w+x]
						} else {
							col[idx] = 0
						}
						idx++
					}
				}
			}
		}
	}
}
