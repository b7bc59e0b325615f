package ops

import (
	"fmt"

	"github.com/born-ml/graphc/internal/tensor"
)

// Convolution is a 2D convolution over [b, f, y, x] input with [f_out, f_in, k_y, k_x]
// weights and an optional per-output-feature bias (third input).
//
//	out_y = (y + 2*padding - k_y) / stride + 1
//	out_x = (x + 2*padding - k_x) / stride + 1
type Convolution struct {
	Stride  int
	Padding int
}

// NewConvolution creates a convolution with the given stride and symmetric padding.
func NewConvolution(stride, padding int) *Convolution {
	return &Convolution{Stride: stride, Padding: padding}
}

func (c *Convolution) Kind() Kind { return KindConvolution }

func (c *Convolution) Arity() (int, int) { return 2, 3 }

func (c *Convolution) InferLayout(inputs []tensor.Layout) (tensor.Layout, error) {
	in, w := inputs[0], inputs[1]
	if len(in.Shape) != 4 {
		return tensor.Layout{}, fmt.Errorf("convolution: input must be 4D [b,f,y,x], got %dD", len(in.Shape))
	}
	if len(w.Shape) != 4 {
		return tensor.Layout{}, fmt.Errorf("convolution: weights must be 4D [f_out,f_in,k_y,k_x], got %dD", len(w.Shape))
	}
	if in.DType != w.DType {
		return tensor.Layout{}, fmt.Errorf("convolution: weights type %s differs from input type %s", w.DType, in.DType)
	}
	if in.Shape[1] != w.Shape[1] {
		return tensor.Layout{}, fmt.Errorf("convolution: input features %d != weight input features %d", in.Shape[1], w.Shape[1])
	}
	if c.Stride <= 0 || c.Padding < 0 {
		return tensor.Layout{}, fmt.Errorf("convolution: invalid stride %d / padding %d", c.Stride, c.Padding)
	}

	outY := (in.Shape[2]+2*c.Padding-w.Shape[2])/c.Stride + 1
	outX := (in.Shape[3]+2*c.Padding-w.Shape[3])/c.Stride + 1
	if outY <= 0 || outX <= 0 {
		return tensor.Layout{}, fmt.Errorf("convolution: invalid output size %dx%d (check stride/padding)", outY, outX)
	}

	if len(inputs) == 3 {
		bias := inputs[2]
		if bias.DType != in.DType {
			return tensor.Layout{}, fmt.Errorf("convolution: bias type %s differs from input type %s", bias.DType, in.DType)
		}
		if bias.NumElements() != w.Shape[0] {
			return tensor.Layout{}, fmt.Errorf("convolution: bias has %d elements, expected %d", bias.NumElements(), w.Shape[0])
		}
	}

	return tensor.NewLayout(in.DType, in.Format, in.Shape[0], w.Shape[0], outY, outX), nil
}

// Evaluate computes the convolution directly (no im2col), in planar order.
func (c *Convolution) Evaluate(inputs []*tensor.Memory) (*tensor.Memory, error) {
	layouts := make([]tensor.Layout, len(inputs))
	for i, in := range inputs {
		layouts[i] = in.Layout()
	}
	outLayout, err := c.InferLayout(layouts)
	if err != nil {
		return nil, err
	}

	src := inputs[0].Planar()
	weights := inputs[1].Planar()
	var bias []float32
	if len(inputs) == 3 {
		bias = inputs[2].Float32s()
	}

	n, fIn, h, w := layouts[0].Shape[0], layouts[0].Shape[1], layouts[0].Shape[2], layouts[0].Shape[3]
	fOut, kh, kw := layouts[1].Shape[0], layouts[1].Shape[2], layouts[1].Shape[3]
	outH, outW := outLayout.Shape[2], outLayout.Shape[3]

	dst := make([]float32, outLayout.NumElements())
	for b := 0; b < n; b++ {
		for co := 0; co < fOut; co++ {
			for oy := 0; oy < outH; oy++ {
				for ox := 0; ox < outW; ox++ {
					var sum float32
					if bias != nil {
						sum = bias[co]
					}
					for ci := 0; ci < fIn; ci++ {
						for ky := 0; ky < kh; ky++ {
							iy := oy*c.Stride - c.Padding + ky
							if iy < 0 || iy >= h {
								continue
							}
							for kx := 0; kx < kw; kx++ {
								ix := ox*c.Stride - c.Padding + kx
								if ix < 0 || ix >= w {
									continue
								}
								sum += src[((b*fIn+ci)*h+iy)*w+ix] * weights[((co*fIn+ci)*kh+ky)*kw+kx]
							}
						}
					}
					dst[((b*fOut+co)*outH+oy)*outW+ox] = sum
				}
			}
		}
	}
	return newOutput(outLayout, dst)
}

func (c *Convolution) VisitAttributes(v AttributeVisitor) error {
	v.OnInt("stride", &c.Stride)
	v.OnInt("padding", &c.Padding)
	return v.Err()
}

func (c *Convolution) Clone() Operation {
	cp := *c
	return &cp
}
