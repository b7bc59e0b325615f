package passes

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/graphc/internal/graph"
	"github.com/born-ml/graphc/internal/ops"
	"github.com/born-ml/graphc/internal/tensor"
	"github.com/born-ml/graphc/internal/topology"
	"github.com/born-ml/graphc/internal/topology/topologytest"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func build(t *testing.T, topo *topology.Topology) *graph.Program {
	t.Helper()
	p, err := graph.Build(topo)
	require.NoError(t, err)
	return p
}

func evaluate(t *testing.T, p *graph.Program) []float32 {
	t.Helper()
	out, err := graph.Evaluate(p, map[string]*tensor.Memory{"input": topologytest.Input(t)})
	require.NoError(t, err)
	return out["out"].AsFloat32()
}

func has(p *graph.Program, name string) bool {
	_, ok := p.Lookup(name)
	return ok
}

func TestConvEltwiseFusionDiamond(t *testing.T) {
	tests := []struct {
		name       string
		e1, e2     bool
		eliminated []string
		fusedInto  string
	}{
		{"both branches", true, true, nil, ""},
		{"only first", true, false, []string{"eltw1_sum", "eltw1"}, "conv1"},
		{"only second", false, true, []string{"eltw2_sum", "eltw2"}, "conv1"},
		{"neither", false, false, []string{"eltw3"}, "conv1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reference := evaluate(t, build(t, topologytest.Diamond(t, tt.e1, tt.e2)))

			p := build(t, topologytest.Diamond(t, tt.e1, tt.e2))
			before := p.Len()
			ctx := &Context{Log: quietLog()}
			ConvEltwiseFusion{}.Run(p, ctx)

			assert.Equal(t, len(tt.eliminated), ctx.eliminated)
			assert.Equal(t, before-len(tt.eliminated), p.Len())
			for _, name := range tt.eliminated {
				assert.False(t, has(p, name), "%s should be fused away", name)
			}
			if tt.fusedInto != "" {
				conv, _ := p.Lookup(tt.fusedInto)
				assert.True(t, conv.IsFused())
				assert.Equal(t, ops.PostOpEltwise, conv.FusedOps[0].Kind)
			}

			assert.InDeltaSlice(t, reference, evaluate(t, p), 1e-3)
			assert.InDeltaSlice(t, topologytest.DiamondExpected(tt.e1, tt.e2), evaluate(t, p), 1e-3)
		})
	}
}

func TestConvEltwiseFusionFoldsActivation(t *testing.T) {
	p := build(t, topologytest.Diamond(t, true, false))
	ConvEltwiseFusion{}.Run(p, &Context{Log: quietLog()})

	conv1, _ := p.Lookup("conv1")
	require.Len(t, conv1.FusedOps, 2)
	assert.Equal(t, "eltw1_sum", conv1.FusedOps[0].Origin)
	assert.Equal(t, ops.PostOpActivation, conv1.FusedOps[1].Kind)
	assert.Equal(t, ops.ActivationReLU, conv1.FusedOps[1].Func)

	eltw3, _ := p.Lookup("eltw3")
	assert.Equal(t, conv1.ID, eltw3.Inputs[0].Node)
}

func TestConvEltwiseFusionKeepsOutputs(t *testing.T) {
	topo := topologytest.Diamond(t, false, false)
	topo2 := topology.New()
	for _, def := range topo.Definitions() {
		if def.Name == "out" {
			continue
		}
		require.NoError(t, topo2.AddDefinition(def))
	}
	require.NoError(t, topo2.SetOutputs("eltw3"))

	p := build(t, topo2)
	ConvEltwiseFusion{}.Run(p, &Context{Log: quietLog()})

	assert.False(t, has(p, "eltw3"))
	id, ok := p.OutputNode("eltw3")
	require.True(t, ok)
	assert.Equal(t, "conv1", p.Node(id).Name)
}

func TestConvEltwiseFusionRejectsBroadcast(t *testing.T) {
	layout := tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 1, 1, 2, 2)
	w, err := tensor.FromFloat32(tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 1, 1, 1, 1), []float32{1})
	require.NoError(t, err)
	bias, err := tensor.FromFloat32(tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 1), []float32{1})
	require.NoError(t, err)

	topo := topology.New()
	require.NoError(t, topo.AddInput("input", layout))
	require.NoError(t, topo.AddData("w", w))
	require.NoError(t, topo.AddData("b", bias))
	require.NoError(t, topo.AddConvolution("conv", "input", "w", "", 1, 0))
	require.NoError(t, topo.AddEltwise("sum", ops.EltwiseSum, "conv", "b"))
	require.NoError(t, topo.SetOutputs("sum"))

	p := build(t, topo)
	ConvEltwiseFusion{}.Run(p, &Context{Log: quietLog()})
	assert.True(t, has(p, "sum"))
}

func TestConvEltwiseFusionRejectsCycle(t *testing.T) {
	// sum(conv, relu(conv)): the other branch depends on conv.
	layout := tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 1, 1, 2, 2)
	w, err := tensor.FromFloat32(tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 1, 1, 1, 1), []float32{1})
	require.NoError(t, err)

	topo := topology.New()
	require.NoError(t, topo.AddInput("input", layout))
	require.NoError(t, topo.AddData("w", w))
	require.NoError(t, topo.AddConvolution("conv", "input", "w", "", 1, 0))
	require.NoError(t, topo.AddActivation("act", "conv", ops.ActivationReLU, ops.ActivationParams{}))
	require.NoError(t, topo.AddEltwise("sum", ops.EltwiseSum, "conv", "act"))

	p := build(t, topo)
	ConvEltwiseFusion{}.Run(p, &Context{Log: quietLog()})
	assert.True(t, has(p, "sum"))
	assert.NotPanics(t, func() { p.Order() })
}

func TestConvEltwiseFusionKeepsOutputFormat(t *testing.T) {
	tests := []struct {
		name         string
		reorderFirst bool
		fused        bool
		format       tensor.Format
	}{
		{"sum takes byxf from operand", true, false, tensor.FormatBYXF},
		{"sum takes bfyx from conv", false, true, tensor.FormatBFYX},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := build(t, topologytest.MixedFormatSum(t, tt.reorderFirst))
			ConvEltwiseFusion{}.Run(p, &Context{Log: quietLog()})

			assert.Equal(t, !tt.fused, has(p, "sum"))
			conv, _ := p.Lookup("conv")
			assert.Equal(t, tt.fused, conv.IsFused())

			out, _ := p.Lookup("out")
			assert.Equal(t, tt.format, out.Output.Format)
			producer := p.Node(out.Inputs[0].Node)
			assert.True(t, producer.Output.Equal(out.Output), "result layout must match its producer")

			values, err := graph.Evaluate(p, map[string]*tensor.Memory{"input": topologytest.MixedMemory(t)})
			require.NoError(t, err)
			assert.Equal(t, []float32{2, 4, 6, 8, 10, 12, 14, 16}, values["out"].Planar())
		})
	}
}

func TestTrimToOutputs(t *testing.T) {
	p := build(t, topologytest.Diamond(t, false, false))
	conv1, _ := p.Lookup("conv1")
	_, err := p.AddNode("dangling", ops.NewActivation(ops.ActivationTanh, ops.ActivationParams{}), graph.InputRef{Node: conv1.ID})
	require.NoError(t, err)

	ctx := &Context{Log: quietLog()}
	TrimToOutputs{}.Run(p, ctx)
	assert.False(t, has(p, "dangling"))
	assert.Equal(t, 1, ctx.eliminated)
	assert.True(t, has(p, "input"))
}

func TestTrimKeepsInputs(t *testing.T) {
	layout := tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 1, 4)
	topo := topology.New()
	require.NoError(t, topo.AddInput("a", layout))
	require.NoError(t, topo.AddInput("unused", layout))
	require.NoError(t, topo.AddResult("out", "a"))
	require.NoError(t, topo.SetOutputs("out"))

	p := build(t, topo)
	TrimToOutputs{}.Run(p, &Context{Log: quietLog()})
	assert.True(t, has(p, "unused"))
}

func TestPropagateConstants(t *testing.T) {
	layout := tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 1, 2)
	c1, err := tensor.FromFloat32(layout, []float32{1, -2})
	require.NoError(t, err)
	c2, err := tensor.FromFloat32(layout, []float32{3, 4})
	require.NoError(t, err)

	topo := topology.New()
	require.NoError(t, topo.AddInput("x", layout))
	require.NoError(t, topo.AddData("c1", c1))
	require.NoError(t, topo.AddData("c2", c2))
	require.NoError(t, topo.AddEltwise("csum", ops.EltwiseSum, "c1", "c2"))
	require.NoError(t, topo.AddActivation("crelu", "csum", ops.ActivationReLU, ops.ActivationParams{}))
	require.NoError(t, topo.AddEltwise("out", ops.EltwiseProd, "x", "crelu"))
	require.NoError(t, topo.SetOutputs("out"))

	p := build(t, topo)
	ctx := &Context{Log: quietLog()}
	PropagateConstants{}.Run(p, ctx)

	for _, name := range []string{"c1", "c2", "csum", "crelu"} {
		assert.False(t, has(p, name), name)
	}
	folded, ok := p.Lookup("crelu_const")
	require.True(t, ok)
	assert.Equal(t, ops.KindData, folded.Kind())
	assert.Equal(t, []float32{4, 2}, folded.Op.(*ops.Data).Memory.Float32s())

	x, err := tensor.FromFloat32(layout, []float32{2, 3})
	require.NoError(t, err)
	out, err := graph.Evaluate(p, map[string]*tensor.Memory{"x": x})
	require.NoError(t, err)
	assert.Equal(t, []float32{8, 6}, out["out"].AsFloat32())
}

func TestActivationFusion(t *testing.T) {
	layout := tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 1, 1, 2, 2)
	w, err := tensor.FromFloat32(tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 1, 1, 1, 1), []float32{-1})
	require.NoError(t, err)

	topo := topology.New()
	require.NoError(t, topo.AddInput("input", layout))
	require.NoError(t, topo.AddData("w", w))
	require.NoError(t, topo.AddConvolution("conv", "input", "w", "", 1, 0))
	require.NoError(t, topo.AddActivation("clamp", "conv", ops.ActivationClamp, ops.ActivationParams{A: -1.2, B: 0}))
	require.NoError(t, topo.AddActivation("abs", "clamp", ops.ActivationAbs, ops.ActivationParams{}))
	require.NoError(t, topo.AddResult("out", "abs"))
	require.NoError(t, topo.SetOutputs("out"))

	reference := evaluate(t, build(t, topo))

	topo2 := topology.New()
	for _, def := range topo.Definitions() {
		require.NoError(t, topo2.AddDefinition(def))
	}
	require.NoError(t, topo2.SetOutputs("out"))
	p := build(t, topo2)
	ctx := &Context{Log: quietLog()}
	ActivationFusion{}.Run(p, ctx)

	assert.Equal(t, 2, ctx.eliminated)
	conv, _ := p.Lookup("conv")
	assert.Len(t, conv.FusedOps, 2)
	assert.InDeltaSlice(t, reference, evaluate(t, p), 1e-6)
	assert.InDeltaSlice(t, []float32{1.1, 1.2, 1.2, 1.2}, reference, 1e-6)
}

func TestManager(t *testing.T) {
	m := NewManager(Default()...)
	m.Disable("propagate_constants")
	assert.Equal(t, []string{"trim_to_outputs", "prepare_conv_eltw_fusing", "prepare_activation_fusing"}, m.Enabled())

	p := build(t, topologytest.Diamond(t, false, false))
	results := m.Run(p, quietLog())
	require.Len(t, results, 3)
	assert.Equal(t, "prepare_conv_eltw_fusing", results[1].Pass)
	assert.Equal(t, 1, results[1].Eliminated)
	assert.InDeltaSlice(t, topologytest.DiamondExpected(false, false), evaluate(t, p), 1e-3)
}

func TestLookup(t *testing.T) {
	pass, err := Lookup("trim_to_outputs")
	require.NoError(t, err)
	assert.Equal(t, "trim_to_outputs", pass.Name())

	_, err = Lookup("loop_unrolling")
	assert.Error(t, err)
	assert.Len(t, Names(), 4)
}
