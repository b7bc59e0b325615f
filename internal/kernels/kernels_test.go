package kernels

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/graphc/internal/graph"
	"github.com/born-ml/graphc/internal/ops"
	"github.com/born-ml/graphc/internal/parallel"
	"github.com/born-ml/graphc/internal/tensor"
)

var threaded = parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}

func mem(t *testing.T, l tensor.Layout, values []float32) *tensor.Memory {
	t.Helper()
	m, err := tensor.FromFloat32(l, values)
	require.NoError(t, err)
	return m
}

func ramp(n int, scale float32) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = float32(i%7-3) * scale
	}
	return v
}

func layouts(inputs []*tensor.Memory) []tensor.Layout {
	out := make([]tensor.Layout, len(inputs))
	for i, in := range inputs {
		out[i] = in.Layout()
	}
	return out
}

// build selects and builds the kernel for op over inputs and returns it with a fresh
// output buffer.
func build(t *testing.T, c *Catalog, op ops.Operation, inputs []*tensor.Memory, postOps []ops.PostOp) (graph.Kernel, *tensor.Memory) {
	t.Helper()
	primary := layouts(inputs)[:len(inputs)-ops.OperandCount(postOps)]
	outLayout, err := op.InferLayout(primary)
	require.NoError(t, err)

	sig := Signature{Kind: op.Kind(), Attrs: attrSignature(op), Inputs: layouts(inputs), Output: outLayout, PostOps: postOps}
	impl, err := c.Lookup(sig)
	require.NoError(t, err)
	k, err := impl.Build(op, sig)
	require.NoError(t, err)

	out, err := tensor.NewMemory(outLayout)
	require.NoError(t, err)
	return k, out
}

func TestConvolutionMatchesDirect(t *testing.T) {
	tests := []struct {
		name            string
		stride, padding int
		bias            bool
	}{
		{"unit stride", 1, 0, false},
		{"padded", 1, 1, true},
		{"strided", 2, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inputs := []*tensor.Memory{
				mem(t, tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 2, 3, 5, 5), ramp(150, 0.5)),
				mem(t, tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 4, 3, 3, 3), ramp(108, 0.25)),
			}
			if tt.bias {
				inputs = append(inputs, mem(t, tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 1, 4, 1, 1), []float32{0.1, -0.2, 0.3, -0.4}))
			}
			op := ops.NewConvolution(tt.stride, tt.padding)
			want, err := op.Evaluate(inputs)
			require.NoError(t, err)

			k, out := build(t, NewCatalog(threaded), op, inputs, nil)
			require.NoError(t, k.Run(inputs, out))
			assert.Equal(t, "conv_im2col_f32", k.Name())
			assert.InDeltaSlice(t, want.AsFloat32(), out.AsFloat32(), 1e-4)
		})
	}
}

func TestConvolutionFusedPostOps(t *testing.T) {
	l := tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 1, 1, 2, 2)
	inputs := []*tensor.Memory{
		mem(t, l, []float32{1.1, 1.2, 1.3, 1.4}),
		mem(t, tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 1, 1, 1, 1), []float32{-1.5}),
		mem(t, l, []float32{1, 1, 3, 3}),
	}
	postOps := []ops.PostOp{
		{Kind: ops.PostOpEltwise, Mode: ops.EltwiseSum, Input: 2},
		{Kind: ops.PostOpActivation, Func: ops.ActivationReLU},
	}
	op := ops.NewConvolution(1, 0)

	k, out := build(t, NewCatalog(parallel.Sequential()), op, inputs, postOps)
	require.NoError(t, k.Run(inputs, out))
	assert.Equal(t, "conv_im2col_f32+eltwise:sum+activation:relu(0,0)", k.Name())
	assert.InDeltaSlice(t, []float32{0, 0, 1.05, 0.9}, out.AsFloat32(), 1e-5)

	want, err := ops.EvaluateFused(op, inputs, postOps)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want.AsFloat32(), out.AsFloat32(), 1e-5)
}

func TestConvolutionHalfPrecision(t *testing.T) {
	in := mem(t, tensor.NewLayout(tensor.Float16, tensor.FormatBFYX, 1, 1, 2, 2), []float32{1, 2, 3, 4})
	w := mem(t, tensor.NewLayout(tensor.Float16, tensor.FormatBFYX, 1, 1, 1, 1), []float32{0.5})
	inputs := []*tensor.Memory{in, w}

	k, out := build(t, NewCatalog(parallel.Sequential()), ops.NewConvolution(1, 0), inputs, nil)
	require.NoError(t, k.Run(inputs, out))
	assert.Equal(t, "conv_im2col_f16", k.Name())
	assert.InDeltaSlice(t, []float32{0.5, 1, 1.5, 2}, out.Float32s(), 1e-3)
}

func TestConvolutionUnsupportedFormat(t *testing.T) {
	c := NewCatalog(parallel.Sequential())
	in := tensor.NewLayout(tensor.Float32, tensor.FormatBYXF, 1, 2, 2, 2)
	w := tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 1, 2, 1, 1)
	out, err := ops.NewConvolution(1, 0).InferLayout([]tensor.Layout{in, w})
	require.NoError(t, err)

	_, err = c.Lookup(Signature{Kind: ops.KindConvolution, Inputs: []tensor.Layout{in, w}, Output: out})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "byxf")
}

func TestEltwiseBroadcast(t *testing.T) {
	inputs := []*tensor.Memory{
		mem(t, tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 1, 2, 1, 2), []float32{1, 2, 3, 4}),
		mem(t, tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 1, 2, 1, 1), []float32{10, 100}),
		mem(t, tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 1, 2, 1, 2), []float32{1, 1, 1, 1}),
	}
	k, out := build(t, NewCatalog(threaded), ops.NewEltwise(ops.EltwiseProd), inputs, nil)
	require.NoError(t, k.Run(inputs, out))
	assert.Equal(t, "eltwise_prod_f32", k.Name())
	assert.Equal(t, []float32{10, 20, 300, 400}, out.AsFloat32())
}

func TestEltwiseRejectsPostOps(t *testing.T) {
	l := tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 1, 1, 1, 2)
	_, err := NewCatalog(parallel.Sequential()).Lookup(Signature{
		Kind:    ops.KindEltwise,
		Inputs:  []tensor.Layout{l, l},
		Output:  l,
		PostOps: []ops.PostOp{{Kind: ops.PostOpActivation, Func: ops.ActivationReLU}},
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActivation(t *testing.T) {
	inputs := []*tensor.Memory{mem(t, tensor.NewLayout(tensor.Float32, tensor.FormatBYXF, 1, 2, 1, 2), []float32{-1, 2, -3, 4})}
	op := ops.NewActivation(ops.ActivationLeakyReLU, ops.ActivationParams{A: 0.5})
	k, out := build(t, NewCatalog(threaded), op, inputs, nil)
	require.NoError(t, k.Run(inputs, out))
	assert.Equal(t, []float32{-0.5, 2, -1.5, 4}, out.AsFloat32())

	i32 := tensor.NewLayout(tensor.Int32, tensor.FormatBFYX, 1, 1, 1, 2)
	_, err := NewCatalog(parallel.Sequential()).Lookup(Signature{Kind: ops.KindActivation, Inputs: []tensor.Layout{i32}, Output: i32})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReorder(t *testing.T) {
	inputs := []*tensor.Memory{mem(t, tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 1, 2, 1, 2), []float32{1, 2, 3, 4})}
	k, out := build(t, NewCatalog(parallel.Sequential()), ops.NewReorder(tensor.Float16, tensor.FormatBYXF), inputs, nil)
	require.NoError(t, k.Run(inputs, out))
	assert.Equal(t, "reorder_f32_bfyx_to_f16_byxf", k.Name())
	assert.Equal(t, []float32{1, 3, 2, 4}, out.Float32s())
	assert.Equal(t, []float32{1, 2, 3, 4}, out.Planar())
}

func TestPassthrough(t *testing.T) {
	l := tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 1, 1, 1, 2)
	in := mem(t, l, []float32{7, 8})
	inputs := []*tensor.Memory{in}
	k, out := build(t, NewCatalog(parallel.Sequential()), ops.NewResult(), inputs, nil)

	require.NoError(t, k.Run(inputs, out))
	assert.Equal(t, in.Bytes(), out.Bytes())

	require.NoError(t, k.Run(inputs, in))
	assert.Equal(t, []float32{7, 8}, in.AsFloat32())
}

func TestRunChecksLayouts(t *testing.T) {
	l := tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 1, 1, 1, 2)
	inputs := []*tensor.Memory{mem(t, l, []float32{1, 2})}
	k, _ := build(t, NewCatalog(parallel.Sequential()), ops.NewActivation(ops.ActivationReLU, ops.ActivationParams{}), inputs, nil)

	wrong, err := tensor.NewMemory(tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 1, 1, 2, 1))
	require.NoError(t, err)
	assert.Error(t, k.Run(inputs, wrong))
}

func TestSignatureKey(t *testing.T) {
	in := tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 1, 1, 4, 4)
	w := tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 1, 1, 1, 1)
	out := tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 1, 1, 4, 4)
	a := Signature{Kind: ops.KindConvolution, Attrs: attrSignature(ops.NewConvolution(1, 0)), Inputs: []tensor.Layout{in, w}, Output: out}
	b := a
	b.Attrs = attrSignature(ops.NewConvolution(2, 2))
	assert.NotEqual(t, a.Key(), b.Key())

	x := a
	x.Inputs = []tensor.Layout{in, w, out, out}
	x.PostOps = []ops.PostOp{{Kind: ops.PostOpEltwise, Input: 2}}
	y := x
	y.PostOps = []ops.PostOp{{Kind: ops.PostOpEltwise, Input: 3}}
	assert.NotEqual(t, x.Key(), y.Key())

	assert.Equal(t, a.Key(), Signature{Kind: ops.KindConvolution, Attrs: attrSignature(ops.NewConvolution(1, 0)), Inputs: []tensor.Layout{in, w}, Output: out}.Key())
}

func TestCatalogKinds(t *testing.T) {
	c := NewCatalog(parallel.Sequential())
	assert.ElementsMatch(t, ops.Kinds(), c.Kinds())

	_, err := c.Lookup(Signature{Kind: "pooling"})
	assert.ErrorIs(t, err, ErrNotFound)
}
