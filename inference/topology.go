// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package inference

import (
	"io"

	"github.com/born-ml/graphc/internal/ops"
	"github.com/born-ml/graphc/internal/topology"
)

// Topology is the user-facing graph description: an ordered, append-only set of
// named operation definitions.
type Topology = topology.Topology

// NewTopology creates an empty topology.
func NewTopology() *Topology {
	return topology.New()
}

// LoadTopology reads a topology from a YAML file.
func LoadTopology(path string) (*Topology, error) {
	return topology.Load(path)
}

// ReadTopology reads a YAML topology.
func ReadTopology(r io.Reader) (*Topology, error) {
	return topology.Read(r)
}

// SaveTopology writes topo to a YAML file.
func SaveTopology(topo *Topology, path string) error {
	return topology.Save(topo, path)
}

// EltwiseMode selects how an eltwise node combines its inputs.
type EltwiseMode = ops.EltwiseMode

// Eltwise modes.
const (
	Sum  EltwiseMode = ops.EltwiseSum
	Sub  EltwiseMode = ops.EltwiseSub
	Prod EltwiseMode = ops.EltwiseProd
	Max  EltwiseMode = ops.EltwiseMax
	Min  EltwiseMode = ops.EltwiseMin
	Div  EltwiseMode = ops.EltwiseDiv
)

// ActivationFunc selects an activation function.
type ActivationFunc = ops.ActivationFunc

// ActivationParams holds the A and B parameters of parameterized activations.
type ActivationParams = ops.ActivationParams

// Activation functions.
const (
	ReLU      ActivationFunc = ops.ActivationReLU
	LeakyReLU ActivationFunc = ops.ActivationLeakyReLU
	Sigmoid   ActivationFunc = ops.ActivationSigmoid
	Tanh      ActivationFunc = ops.ActivationTanh
	Clamp     ActivationFunc = ops.ActivationClamp
	Abs       ActivationFunc = ops.ActivationAbs
	Linear    ActivationFunc = ops.ActivationLinear
)
