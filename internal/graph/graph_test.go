package graph

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/graphc/internal/errs"
	"github.com/born-ml/graphc/internal/ops"
	"github.com/born-ml/graphc/internal/tensor"
	"github.com/born-ml/graphc/internal/topology"
	"github.com/born-ml/graphc/internal/topology/topologytest"
)

func names(p *Program) []string {
	var out []string
	for _, n := range p.Nodes() {
		out = append(out, n.Name)
	}
	return out
}

func mustLookup(t *testing.T, p *Program, name string) *Node {
	t.Helper()
	n, ok := p.Lookup(name)
	require.True(t, ok, "node %q", name)
	return n
}

func TestBuildDiamond(t *testing.T) {
	p, err := Build(topologytest.Diamond(t, true, true))
	require.NoError(t, err)

	want := []string{
		"input", "weights1", "weights2", "conv1", "conv2",
		"eltw1_sum", "eltw1", "eltw2_sum", "eltw2", "eltw3", "out",
	}
	if diff := cmp.Diff(want, names(p)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	conv1 := mustLookup(t, p, "conv1")
	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, conv1.Output.Shape)
	assert.Equal(t, []NodeID{mustLookup(t, p, "eltw1_sum").ID, mustLookup(t, p, "eltw2_sum").ID}, p.Consumers(conv1.ID))

	id, ok := p.OutputNode("out")
	require.True(t, ok)
	assert.Equal(t, "out", p.Node(id).Name)
	assert.Equal(t, []NodeID{mustLookup(t, p, "input").ID}, p.Inputs())
}

func TestBuildValidationErrors(t *testing.T) {
	layout := tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 1, 1, 2, 2)

	tests := []struct {
		name  string
		build func(topo *topology.Topology)
	}{
		{"unknown input", func(topo *topology.Topology) {
			_ = topo.AddResult("out", "nowhere")
		}},
		{"wrong arity", func(topo *topology.Topology) {
			_ = topo.AddInput("in", layout)
			_ = topo.AddEltwise("sum", ops.EltwiseSum, "in")
		}},
		{"incompatible types", func(topo *topology.Topology) {
			_ = topo.AddInput("a", layout)
			_ = topo.AddInput("b", tensor.NewLayout(tensor.Int32, tensor.FormatBFYX, 1, 1, 2, 2))
			_ = topo.AddEltwise("sum", ops.EltwiseSum, "a", "b")
		}},
		{"cycle", func(topo *topology.Topology) {
			_ = topo.AddInput("in", layout)
			_ = topo.AddEltwise("a", ops.EltwiseSum, "in", "b")
			_ = topo.AddEltwise("b", ops.EltwiseSum, "in", "a")
		}},
		{"unknown output", func(topo *topology.Topology) {
			_ = topo.AddInput("in", layout)
			_ = topo.SetOutputs("missing")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topo := topology.New()
			tt.build(topo)
			p, err := Build(topo)
			require.Error(t, err)
			assert.Nil(t, p)
			assert.True(t, errs.IsValidation(err), "got %v", err)
		})
	}
}

func TestBuildFreezesTopology(t *testing.T) {
	topo := topologytest.Diamond(t, false, false)
	_, err := Build(topo)
	require.NoError(t, err)
	assert.True(t, errors.Is(topo.AddResult("late", "conv1"), errs.ErrFrozen))
}

func TestCloneWithNewInputs(t *testing.T) {
	p, err := Build(topologytest.Diamond(t, true, false))
	require.NoError(t, err)
	sum := mustLookup(t, p, "eltw1_sum")
	sum.SetLayoutTag("NCHW")

	swapped := []InputRef{sum.Inputs[1], sum.Inputs[0]}
	clone, err := sum.CloneWithNewInputs(swapped)
	require.NoError(t, err)
	assert.Equal(t, InvalidNode, clone.ID)
	assert.Equal(t, swapped, clone.Inputs)
	assert.Equal(t, ops.KindEltwise, clone.Kind())
	tag, ok := clone.LayoutTag()
	assert.True(t, ok)
	assert.Equal(t, "NCHW", tag)

	clone.Op.(*ops.Eltwise).Mode = ops.EltwiseMax
	assert.Equal(t, ops.EltwiseSum, sum.Op.(*ops.Eltwise).Mode)

	_, err = sum.CloneWithNewInputs(swapped[:1])
	assert.Error(t, err)
}

func TestLayoutTag(t *testing.T) {
	n := &Node{Name: "result"}
	_, ok := n.LayoutTag()
	assert.False(t, ok, "unset by default")

	n.SetLayoutTag("NHWC")
	tag, ok := n.LayoutTag()
	assert.True(t, ok)
	assert.Equal(t, "NHWC", tag)

	n.SetRTInfo(RTLayout, 42)
	assert.Panics(t, func() { n.LayoutTag() })

	n.ClearRTInfo(RTLayout)
	_, ok = n.LayoutTag()
	assert.False(t, ok)
}

func TestReplaceMovesConsumersAndOutputs(t *testing.T) {
	p, err := Build(topologytest.Diamond(t, false, false))
	require.NoError(t, err)
	conv1 := mustLookup(t, p, "conv1")
	conv2 := mustLookup(t, p, "conv2")
	eltw3 := mustLookup(t, p, "eltw3")
	out := mustLookup(t, p, "out")

	require.NoError(t, p.Replace(eltw3.ID, conv1.ID))
	assert.Equal(t, conv1.ID, out.Inputs[0].Node)
	assert.Empty(t, p.Consumers(eltw3.ID))

	require.NoError(t, p.Remove(eltw3.ID))
	assert.Nil(t, p.Node(eltw3.ID))
	assert.NotContains(t, p.Consumers(conv2.ID), eltw3.ID)

	err = p.Remove(conv1.ID)
	assert.Error(t, err, "conv1 is still consumed")
}

func TestReplaceRejectsFormatMismatch(t *testing.T) {
	p, err := Build(topologytest.MixedFormatSum(t, true))
	require.NoError(t, err)
	conv := mustLookup(t, p, "conv")
	sum := mustLookup(t, p, "sum")
	out := mustLookup(t, p, "out")

	err = p.Replace(sum.ID, conv.ID)
	require.ErrorIs(t, err, errs.ErrLayoutMismatch)
	assert.Equal(t, sum.ID, out.Inputs[0].Node)
	id, ok := p.OutputNode("out")
	require.True(t, ok)
	assert.Equal(t, out.ID, id)
}

func TestFuseAppendsOperand(t *testing.T) {
	p, err := Build(topologytest.Diamond(t, false, false))
	require.NoError(t, err)
	conv1 := mustLookup(t, p, "conv1")
	conv2 := mustLookup(t, p, "conv2")

	operand := InputRef{Node: conv2.ID}
	require.NoError(t, p.Fuse(conv1.ID, ops.PostOp{Kind: ops.PostOpEltwise, Mode: ops.EltwiseSum}, &operand))
	assert.Len(t, conv1.Inputs, 3)
	assert.Equal(t, 2, conv1.FusedOps[0].Input)
	assert.Len(t, conv1.PrimaryInputs(), 2)
	assert.Contains(t, p.Consumers(conv2.ID), conv1.ID)
	assert.True(t, p.Reachable(conv2.ID, conv1.ID))
	assert.False(t, p.Reachable(conv1.ID, conv2.ID))

	order := p.Order()
	assert.Less(t, indexOf(order, conv2.ID), indexOf(order, conv1.ID))

	// An operand with another shape is rejected and rolled back.
	in := mustLookup(t, p, "weights1")
	bad := InputRef{Node: in.ID}
	err = p.Fuse(conv1.ID, ops.PostOp{Kind: ops.PostOpEltwise, Mode: ops.EltwiseSum}, &bad)
	assert.True(t, errs.IsValidation(err))
	assert.Len(t, conv1.Inputs, 3)
	assert.Len(t, conv1.FusedOps, 1)
}

func TestFrozenProgramRejectsMutation(t *testing.T) {
	p, err := Build(topologytest.Diamond(t, false, false))
	require.NoError(t, err)
	p.Freeze()

	conv1 := mustLookup(t, p, "conv1")
	assert.ErrorIs(t, p.Remove(conv1.ID), errs.ErrFrozen)
	assert.ErrorIs(t, p.SetInput(conv1.ID, 0, InputRef{}), errs.ErrFrozen)
	_, err = p.AddNode("x", ops.NewResult(), InputRef{Node: conv1.ID})
	assert.ErrorIs(t, err, errs.ErrFrozen)
}

func TestAddNodeInfersLayout(t *testing.T) {
	p, err := Build(topologytest.Diamond(t, false, false))
	require.NoError(t, err)
	conv1 := mustLookup(t, p, "conv1")

	id, err := p.AddNode("to_f16", ops.NewReorder(tensor.Float16, tensor.FormatBYXF), InputRef{Node: conv1.ID})
	require.NoError(t, err)
	assert.Equal(t, tensor.Float16, p.Node(id).Output.DType)

	_, err = p.AddNode("bad", ops.NewResult(), InputRef{Node: conv1.ID}, InputRef{Node: conv1.ID})
	assert.True(t, errs.IsValidation(err))
	_, ok := p.Lookup("bad")
	assert.False(t, ok)
}

func TestEvaluateDiamond(t *testing.T) {
	for _, tc := range []struct{ e1, e2 bool }{{true, true}, {true, false}, {false, true}, {false, false}} {
		p, err := Build(topologytest.Diamond(t, tc.e1, tc.e2))
		require.NoError(t, err)

		out, err := Evaluate(p, map[string]*tensor.Memory{"input": topologytest.Input(t)})
		require.NoError(t, err)
		assert.InDeltaSlice(t, topologytest.DiamondExpected(tc.e1, tc.e2), out["out"].AsFloat32(), 1e-3)
	}
}

func TestEvaluateConcreteValues(t *testing.T) {
	p, err := Build(topologytest.Diamond(t, true, true))
	require.NoError(t, err)
	out, err := Evaluate(p, map[string]*tensor.Memory{"input": topologytest.Input(t)})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.4356, 0.5184, 0.6084, 0.7056}, out["out"].AsFloat32(), 1e-3)

	p, err = Build(topologytest.Diamond(t, false, true))
	require.NoError(t, err)
	out, err = Evaluate(p, map[string]*tensor.Memory{"input": topologytest.Input(t)})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{-1.089, -1.296, -1.521, -1.764}, out["out"].AsFloat32(), 1e-3)
}

func TestEvaluateInputErrors(t *testing.T) {
	p, err := Build(topologytest.Diamond(t, false, false))
	require.NoError(t, err)

	_, err = Evaluate(p, nil)
	assert.ErrorIs(t, err, errs.ErrInputNotBound)

	_, err = Evaluate(p, map[string]*tensor.Memory{"conv1": topologytest.Input(t)})
	assert.ErrorIs(t, err, errs.ErrUnknownInput)

	wrong, err := tensor.FromFloat32(tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 4), topologytest.DiamondInput)
	require.NoError(t, err)
	_, err = Evaluate(p, map[string]*tensor.Memory{"input": wrong})
	assert.ErrorIs(t, err, errs.ErrLayoutMismatch)
}

func indexOf(order []NodeID, id NodeID) int {
	for i, v := range order {
		if v == id {
			return i
		}
	}
	return -1
}

func TestBuildOutputsOverride(t *testing.T) {
	p, err := Build(topologytest.Diamond(t, true, true), "conv1", "eltw2")
	require.NoError(t, err)
	assert.Equal(t, []string{"conv1", "eltw2"}, p.Outputs())

	_, err = Build(topologytest.Diamond(t, true, true), "nope")
	assert.True(t, errs.IsValidation(err))
}
