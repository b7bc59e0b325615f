package tensor

import (
	"fmt"
	"strings"
)

// Format describes the physical order of a layout's dimensions in memory.
type Format int

// Supported memory formats.
const (
	// FormatBFYX is planar batch, feature, y, x (NCHW).
	FormatBFYX Format = iota
	// FormatBYXF is interleaved batch, y, x, feature (NHWC).
	FormatBYXF
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatBFYX:
		return "bfyx"
	case FormatBYXF:
		return "byxf"
	default:
		return "unknown"
	}
}

// ParseFormat parses a format name. The empty string selects bfyx.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bfyx", "nchw", "":
		return FormatBFYX, nil
	case "byxf", "nhwc":
		return FormatBYXF, nil
	default:
		return 0, fmt.Errorf("unknown memory format %q", s)
	}
}
