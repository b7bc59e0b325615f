// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the memory types exchanged with compiled networks.
//
// # Overview
//
// A Layout describes one value: element type, shape and memory format. Memory is a
// reference-counted host region with a fixed layout. Networks read caller inputs
// directly from Memory and return their outputs the same way.
//
// # Basic Usage
//
//	import "github.com/born-ml/graphc/tensor"
//
//	layout := tensor.NewLayout(tensor.Float32, tensor.FormatBFYX, 1, 1, 2, 2)
//	input, err := tensor.FromFloat32(layout, []float32{1.1, 1.2, 1.3, 1.4})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Formats
//
// Shapes are always given in logical [b, f, y, x] order. FormatBFYX stores features
// planar, FormatBYXF stores them interleaved per spatial position. Planar and
// SetPlanar convert between logical and physical order.
package tensor
