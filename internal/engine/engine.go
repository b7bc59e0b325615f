// Package engine is the host memory service networks allocate from.
package engine

import (
	"fmt"
	"sync"

	"github.com/born-ml/graphc/internal/errs"
	"github.com/born-ml/graphc/internal/metrics"
	"github.com/born-ml/graphc/internal/tensor"
)

// Stats summarizes engine usage.
type Stats struct {
	Allocations uint64
	Releases    uint64
	InUse       int64 // bytes currently allocated
	Peak        int64 // highest InUse seen
}

// Engine allocates host memory up to an optional byte limit.
type Engine struct {
	limit int64

	mu    sync.Mutex
	stats Stats
}

// New creates an engine. A limit of 0 means unlimited.
func New(limit int64) *Engine {
	return &Engine{limit: limit}
}

// Limit returns the byte limit, 0 if unlimited.
func (e *Engine) Limit() int64 {
	return e.limit
}

func (e *Engine) reserve(size int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.limit > 0 && e.stats.InUse+size > e.limit {
		return fmt.Errorf("%w: %d bytes requested, %d of %d in use", errs.ErrOutOfMemory, size, e.stats.InUse, e.limit)
	}
	e.stats.InUse += size
	e.stats.Peak = max(e.stats.Peak, e.stats.InUse)
	e.stats.Allocations++
	metrics.AllocatedBytes.Add(float64(size))
	return nil
}

func (e *Engine) unreserve(size int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stats.InUse -= size
	e.stats.Releases++
	metrics.AllocatedBytes.Sub(float64(size))
}

// Allocate returns zeroed memory for layout. Exceeding the limit fails with an error
// wrapping errs.ErrOutOfMemory.
func (e *Engine) Allocate(layout tensor.Layout) (*tensor.Memory, error) {
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("allocate: %w", err)
	}
	size := int64(layout.ByteSize())
	if err := e.reserve(size); err != nil {
		return nil, err
	}
	m, err := tensor.NewMemory(layout)
	if err != nil {
		e.unreserve(size)
		return nil, err
	}
	return m, nil
}

// Copy allocates memory for src's layout and copies its contents.
func (e *Engine) Copy(src *tensor.Memory) (*tensor.Memory, error) {
	m, err := e.Allocate(src.Layout())
	if err != nil {
		return nil, err
	}
	if err := m.CopyFrom(src); err != nil {
		e.Free(m)
		return nil, err
	}
	return m, nil
}

// Free drops one reference to m. The bytes return to the engine when the last
// holder of the region lets go.
func (e *Engine) Free(m *tensor.Memory) {
	if m.Release() {
		e.unreserve(int64(m.ByteSize()))
	}
}

// Stats returns a snapshot of the usage counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}
