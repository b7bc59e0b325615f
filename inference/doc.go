// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package inference compiles inference graphs and runs them on the host.
//
// A Topology names every operation and the operations it reads from. Compile turns
// it into a Program: layouts are inferred, the optimization pipeline fuses
// elementwise sums and activations into the convolutions producing them, buffers
// are planned for reuse and a kernel is selected for every node. AllocateNetwork
// instantiates a Program; a Network is bound to inputs and executed any number of
// times.
//
// # Example Usage
//
//	topo := inference.NewTopology()
//	layout := tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 1, 1, 2, 2)
//	_ = topo.AddInput("input", layout)
//	_ = topo.AddData("weights", weights)
//	_ = topo.AddConvolution("conv", "input", "weights", "", 1, 0)
//	_ = topo.AddActivation("relu", "conv", inference.ReLU, inference.ActivationParams{})
//	_ = topo.AddResult("out", "relu")
//
//	program, err := inference.Compile(topo)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	net, err := inference.AllocateNetwork(program)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer net.Close()
//
//	_ = net.SetInput("input", input)
//	outputs, err := net.Execute(ctx)
//
// # Errors
//
// Malformed topologies fail Compile with a validation error and nodes without a
// kernel with a compilation error. AllocateNetwork reports an allocation error when
// the engine runs out of memory and Execute an execution error. Use [IsValidation],
// [IsCompilation], [IsAllocation] and [IsExecution] to tell them apart.
package inference
