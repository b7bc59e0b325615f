// Package topologytest builds small topologies shared by tests across packages.
package topologytest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/graphc/internal/ops"
	"github.com/born-ml/graphc/internal/tensor"
	"github.com/born-ml/graphc/internal/topology"
)

// DiamondInput is the value bound to the diamond's "input" node.
var DiamondInput = []float32{1.1, 1.2, 1.3, 1.4}

// DiamondLayout is the layout of the diamond's input and of every intermediate value.
var DiamondLayout = tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 1, 1, 2, 2)

// Diamond builds two 1x1 convolutions over one input (weights 2.1 and -1.5) feeding up
// to two elementwise-sum+relu branches, eltw1 = relu(conv1+conv2) and
// eltw2 = relu(conv2+conv1), combined by eltw3:
//
//	both branches:  eltw3 = eltw1 * eltw2
//	only eltw1:     eltw3 = eltw1 * conv2
//	only eltw2:     eltw3 = eltw2 * conv2
//	neither:        eltw3 = conv1 + conv2
//
// The single output is "out", a result over eltw3.
func Diamond(t testing.TB, withEltw1, withEltw2 bool) *topology.Topology {
	t.Helper()
	weightsLayout := tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 1, 1, 1, 1)
	w1, err := tensor.FromFloat32(weightsLayout, []float32{2.1})
	require.NoError(t, err)
	w2, err := tensor.FromFloat32(weightsLayout, []float32{-1.5})
	require.NoError(t, err)

	topo := topology.New()
	require.NoError(t, topo.AddInput("input", DiamondLayout))
	require.NoError(t, topo.AddData("weights1", w1))
	require.NoError(t, topo.AddData("weights2", w2))
	require.NoError(t, topo.AddConvolution("conv1", "input", "weights1", "", 1, 0))
	require.NoError(t, topo.AddConvolution("conv2", "input", "weights2", "", 1, 0))

	relu := ops.ActivationParams{}
	if withEltw1 {
		require.NoError(t, topo.AddEltwise("eltw1_sum", ops.EltwiseSum, "conv1", "conv2"))
		require.NoError(t, topo.AddActivation("eltw1", "eltw1_sum", ops.ActivationReLU, relu))
	}
	if withEltw2 {
		require.NoError(t, topo.AddEltwise("eltw2_sum", ops.EltwiseSum, "conv2", "conv1"))
		require.NoError(t, topo.AddActivation("eltw2", "eltw2_sum", ops.ActivationReLU, relu))
	}

	switch {
	case withEltw1 && withEltw2:
		require.NoError(t, topo.AddEltwise("eltw3", ops.EltwiseProd, "eltw1", "eltw2"))
	case withEltw1:
		require.NoError(t, topo.AddEltwise("eltw3", ops.EltwiseProd, "eltw1", "conv2"))
	case withEltw2:
		require.NoError(t, topo.AddEltwise("eltw3", ops.EltwiseProd, "eltw2", "conv2"))
	default:
		require.NoError(t, topo.AddEltwise("eltw3", ops.EltwiseSum, "conv1", "conv2"))
	}
	require.NoError(t, topo.AddResult("out", "eltw3"))
	require.NoError(t, topo.SetOutputs("out"))
	return topo
}

// DiamondExpected returns the expected "out" values for a diamond variant.
func DiamondExpected(withEltw1, withEltw2 bool) []float32 {
	out := make([]float32, len(DiamondInput))
	for i, x := range DiamondInput {
		c1, c2 := 2.1*x, -1.5*x
		e := max(c1+c2, 0)
		switch {
		case withEltw1 && withEltw2:
			out[i] = e * e
		case withEltw1, withEltw2:
			out[i] = e * c2
		default:
			out[i] = c1 + c2
		}
	}
	return out
}

// Input returns the diamond input as memory.
func Input(t testing.TB) *tensor.Memory {
	t.Helper()
	m, err := tensor.FromFloat32(DiamondLayout, DiamondInput)
	require.NoError(t, err)
	return m
}

// MixedInput is the value bound to MixedFormatSum's "input" node, planar order.
var MixedInput = []float32{1, 2, 3, 4, 5, 6, 7, 8}

// MixedLayout is MixedFormatSum's input layout.
var MixedLayout = tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 1, 2, 2, 2)

// MixedFormatSum adds an identity 1x1 convolution of the input to a byxf reorder of
// the same input. With reorderFirst the sum takes its format (byxf) from the reorder,
// otherwise from the convolution (bfyx). The single output is "out", a result over
// the sum, and always equals twice the input.
func MixedFormatSum(t testing.TB, reorderFirst bool) *topology.Topology {
	t.Helper()
	w, err := tensor.FromFloat32(tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 2, 2, 1, 1), []float32{1, 0, 0, 1})
	require.NoError(t, err)

	topo := topology.New()
	require.NoError(t, topo.AddInput("input", MixedLayout))
	require.NoError(t, topo.AddData("weights", w))
	require.NoError(t, topo.AddConvolution("conv", "input", "weights", "", 1, 0))
	require.NoError(t, topo.AddReorder("reo", "input", tensor.Float32, tensor.FormatBYXF))
	if reorderFirst {
		require.NoError(t, topo.AddEltwise("sum", ops.EltwiseSum, "reo", "conv"))
	} else {
		require.NoError(t, topo.AddEltwise("sum", ops.EltwiseSum, "conv", "reo"))
	}
	require.NoError(t, topo.AddResult("out", "sum"))
	require.NoError(t, topo.SetOutputs("out"))
	return topo
}

// MixedMemory returns MixedFormatSum's input as memory.
func MixedMemory(t testing.TB) *tensor.Memory {
	t.Helper()
	m, err := tensor.FromFloat32(MixedLayout, MixedInput)
	require.NoError(t, err)
	return m
}
