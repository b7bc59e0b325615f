// Package kernels holds the host kernel catalog: executable implementations of every
// operation kind, selected by operation kind, input and output layouts, and fused
// post-operations.
package kernels

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/graphc/internal/graph"
	"github.com/born-ml/graphc/internal/ops"
	"github.com/born-ml/graphc/internal/parallel"
	"github.com/born-ml/graphc/internal/tensor"
)

// ErrNotFound is returned by Lookup when no implementation matches a signature.
var ErrNotFound = errors.New("kernel not found")

// Implementation is one entry in the catalog.
type Implementation struct {
	Name string

	// Supports returns nil when the implementation can run sig, or the reason it
	// cannot.
	Supports func(sig Signature) error

	// Build creates the kernel for a node matching sig.
	Build func(op ops.Operation, sig Signature) (graph.Kernel, error)
}

// Catalog maps operation kinds to candidate implementations, tried in registration
// order.
type Catalog struct {
	impls map[ops.Kind][]Implementation
	cfg   parallel.Config
}

// NewCatalog creates a catalog with every host implementation registered.
func NewCatalog(cfg parallel.Config) *Catalog {
	c := &Catalog{
		impls: make(map[ops.Kind][]Implementation),
		cfg:   cfg,
	}
	c.registerPassthrough()
	c.registerConvolution()
	c.registerEltwise()
	c.registerActivation()
	c.registerReorder()
	return c
}

// Register appends an implementation for kind. Custom implementations registered
// later are only chosen when earlier ones do not support a signature.
func (c *Catalog) Register(kind ops.Kind, impl Implementation) {
	c.impls[kind] = append(c.impls[kind], impl)
}

// Lookup returns the first implementation supporting sig.
func (c *Catalog) Lookup(sig Signature) (Implementation, error) {
	candidates, ok := c.impls[sig.Kind]
	if !ok {
		return Implementation{}, fmt.Errorf("%w: no implementations for %s", ErrNotFound, sig.Kind)
	}
	var reasons []string
	for _, impl := range candidates {
		err := impl.Supports(sig)
		if err == nil {
			return impl, nil
		}
		reasons = append(reasons, fmt.Sprintf("%s: %v", impl.Name, err))
	}
	return Implementation{}, fmt.Errorf("%w (%s)", ErrNotFound, strings.Join(reasons, "; "))
}

// Kinds returns every kind with at least one implementation.
func (c *Catalog) Kinds() []ops.Kind {
	kinds := make([]ops.Kind, 0, len(c.impls))
	for k := range c.impls {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// kernel adapts a run function to graph.Kernel.
type kernel struct {
	name string
	run  func(inputs []*tensor.Memory, out *tensor.Memory) error
}

func (k *kernel) Name() string { return k.name }

func (k *kernel) Run(inputs []*tensor.Memory, out *tensor.Memory) error {
	return k.run(inputs, out)
}

// kernelName decorates base with the fused post-ops.
func kernelName(base string, sig Signature) string {
	if f := ops.FusedSignature(sig.PostOps); f != "" {
		return base + "+" + f
	}
	return base
}
