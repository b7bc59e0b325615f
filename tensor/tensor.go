// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/graphc/internal/tensor"
)

// DataType is the element type of a layout.
type DataType = tensor.DataType

// Element types.
const (
	Float32 DataType = tensor.Float32
	Float16 DataType = tensor.Float16
	Int32   DataType = tensor.Int32
	Int64   DataType = tensor.Int64
	Uint8   DataType = tensor.Uint8
)

// Shape lists dimensions in logical order.
type Shape = tensor.Shape

// Format is the physical arrangement of a 4D value.
type Format = tensor.Format

// Memory formats.
const (
	FormatBFYX Format = tensor.FormatBFYX
	FormatBYXF Format = tensor.FormatBYXF
)

// Layout is element type, shape and memory format.
type Layout = tensor.Layout

// Memory is a reference-counted host region with a fixed layout.
type Memory = tensor.Memory

// NewLayout creates a layout.
func NewLayout(dtype DataType, format Format, shape ...int) Layout {
	return tensor.NewLayout(dtype, format, shape...)
}

// NewMemory allocates zeroed memory for layout.
func NewMemory(layout Layout) (*Memory, error) {
	return tensor.NewMemory(layout)
}

// FromFloat32 allocates memory for layout holding values, given in physical order
// and converted to the layout's element type.
func FromFloat32(layout Layout, values []float32) (*Memory, error) {
	return tensor.FromFloat32(layout, values)
}

// FromBytes allocates memory for layout holding a copy of data.
func FromBytes(layout Layout, data []byte) (*Memory, error) {
	return tensor.FromBytes(layout, data)
}

// ParseDataType parses "f32", "f16", "i32", "i64" or "u8".
func ParseDataType(s string) (DataType, error) {
	return tensor.ParseDataType(s)
}

// ParseFormat parses "bfyx" or "byxf".
func ParseFormat(s string) (Format, error) {
	return tensor.ParseFormat(s)
}
