package topology

import (
	"fmt"
	"strconv"

	"github.com/born-ml/graphc/internal/errs"
	"github.com/born-ml/graphc/internal/ops"
)

// SaveOutputs encodes a list of node references as attributes: "size" followed by one
// "<index>" entry per reference.
func SaveOutputs(names []string) ops.Attributes {
	attrs := ops.Attributes{"size": len(names)}
	for i, name := range names {
		attrs[strconv.Itoa(i)] = name
	}
	return attrs
}

// LoadOutputs decodes a list of node references written by SaveOutputs, resolving
// each through registry. A reference the registry does not know is a ReferenceError.
func LoadOutputs(attrs ops.Attributes, registry func(name string) bool) ([]string, error) {
	size := 0
	loader := ops.NewLoader(attrs)
	loader.OnInt("size", &size)
	if err := loader.Err(); err != nil {
		return nil, fmt.Errorf("outputs: %w", err)
	}
	if size < 0 {
		return nil, fmt.Errorf("outputs: negative size %d", size)
	}

	// size is untrusted; a missing index ends the loop with a ReferenceError.
	names := make([]string, 0, min(size, len(attrs)))
	for i := range size {
		key := strconv.Itoa(i)
		var name string
		loader.OnString(key, &name)
		if err := loader.Err(); err != nil {
			return nil, fmt.Errorf("outputs: %w", err)
		}
		if !registry(name) {
			return nil, &errs.ReferenceError{Field: "outputs." + key, Ref: name}
		}
		names = append(names, name)
	}
	return names, nil
}
