// Package tensor provides the layout descriptors and reference-counted device memory
// shared by every stage of the graph compiler.
package tensor

import (
	"fmt"
	"strings"
)

// DataType represents runtime element type information for a layout.
type DataType int

// Supported element types.
const (
	Float32 DataType = iota
	Float16
	Int32
	Int64
	Uint8
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Int64:
		return 8
	case Float16:
		return 2
	case Uint8:
		return 1
	default:
		panic("unknown data type")
	}
}

// IsFloat reports whether the type holds floating-point values.
func (dt DataType) IsFloat() bool {
	return dt == Float32 || dt == Float16
}

// String returns a short name for the data type, as used in layout signatures.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "f32"
	case Float16:
		return "f16"
	case Int32:
		return "i32"
	case Int64:
		return "i64"
	case Uint8:
		return "u8"
	default:
		return "unknown"
	}
}

// ParseDataType parses a short type name ("f32", "f16", ...). Long forms such as
// "float32" are accepted as well.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "f32", "float32", "":
		return Float32, nil
	case "f16", "float16":
		return Float16, nil
	case "i32", "int32":
		return Int32, nil
	case "i64", "int64":
		return Int64, nil
	case "u8", "uint8":
		return Uint8, nil
	default:
		return 0, fmt.Errorf("unknown data type %q", s)
	}
}
