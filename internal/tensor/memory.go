package tensor

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"
)

// buffer is a reference-counted byte region. The engine hands out one buffer per
// allocation; every Memory sharing it holds a reference.
type buffer struct {
	data     []byte
	refCount atomic.Int32
	mu       sync.Mutex // For safe deallocation
}

func newBuffer(size int) *buffer {
	buf := &buffer{
		data: make([]byte, size),
	}
	buf.refCount.Store(1)
	return buf
}

func (b *buffer) addRef() {
	b.refCount.Add(1)
}

// release drops one reference and frees the bytes when none are left.
// It reports whether the buffer was freed.
func (b *buffer) release() bool {
	if b.refCount.Add(-1) == 0 {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.data = nil
		return true
	}
	return false
}

// Memory is an opaque region with a fixed layout. It is shared by the node that
// produces it and every consumer reading it; its lifetime is that of the longest holder.
type Memory struct {
	buf    *buffer
	layout Layout
}

// NewMemory allocates zeroed host memory for the layout.
func NewMemory(layout Layout) (*Memory, error) {
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("invalid layout: %w", err)
	}
	return &Memory{
		buf:    newBuffer(layout.ByteSize()),
		layout: layout.Clone(),
	}, nil
}

// FromBytes allocates memory for the layout and copies data into it.
func FromBytes(layout Layout, data []byte) (*Memory, error) {
	if len(data) != layout.ByteSize() {
		return nil, fmt.Errorf("data has %d bytes, layout %s needs %d", len(data), layout, layout.ByteSize())
	}
	m, err := NewMemory(layout)
	if err != nil {
		return nil, err
	}
	copy(m.buf.data, data)
	return m, nil
}

// FromFloat32 allocates memory for the layout and stores values (in physical order),
// converting them to the layout's element type.
func FromFloat32(layout Layout, values []float32) (*Memory, error) {
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("invalid layout: %w", err)
	}
	if n := layout.NumElements(); len(values) != n {
		return nil, fmt.Errorf("got %d values for layout %s with %d elements", len(values), layout, n)
	}
	m, err := NewMemory(layout)
	if err != nil {
		return nil, err
	}
	if err := m.SetFloat32s(values); err != nil {
		return nil, err
	}
	return m, nil
}

// Layout returns the memory's layout.
func (m *Memory) Layout() Layout {
	return m.layout
}

// ByteSize returns the size of the region in bytes.
func (m *Memory) ByteSize() int {
	return m.layout.ByteSize()
}

// Bytes returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (m *Memory) Bytes() []byte {
	return m.buf.data
}

// AsFloat32 interprets the data as []float32 without copying.
// Panics if the element type is not f32.
func (m *Memory) AsFloat32() []float32 {
	if m.layout.DType != Float32 {
		panic(fmt.Sprintf("memory dtype is %s, not f32", m.layout.DType))
	}
	data := m.buf.data
	if len(data) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), m.layout.NumElements())
}

// Retain adds a reference and returns the same memory, for holders that outlive the
// original owner.
func (m *Memory) Retain() *Memory {
	m.buf.addRef()
	return m
}

// Release drops a reference. It reports whether the region was freed.
func (m *Memory) Release() bool {
	return m.buf.release()
}

// RefCount returns the current number of holders.
func (m *Memory) RefCount() int {
	return int(m.buf.refCount.Load())
}

// Released reports whether the region has already been freed.
func (m *Memory) Released() bool {
	m.buf.mu.Lock()
	defer m.buf.mu.Unlock()
	return m.buf.data == nil
}

// View returns memory over the same region interpreted with another layout of equal
// element type and byte size. The view holds its own reference.
func (m *Memory) View(layout Layout) (*Memory, error) {
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("invalid layout: %w", err)
	}
	if layout.DType != m.layout.DType || layout.ByteSize() != m.ByteSize() {
		return nil, fmt.Errorf("view %s does not fit memory %s", layout, m.layout)
	}
	m.buf.addRef()
	return &Memory{buf: m.buf, layout: layout.Clone()}, nil
}

// SameBuffer reports whether two memories share one physical region.
func (m *Memory) SameBuffer(other *Memory) bool {
	return other != nil && m.buf == other.buf
}

// CopyFrom copies the bytes of src into m. Layouts must have equal byte sizes.
func (m *Memory) CopyFrom(src *Memory) error {
	if src.ByteSize() != m.ByteSize() {
		return fmt.Errorf("copy: size mismatch %d != %d", src.ByteSize(), m.ByteSize())
	}
	copy(m.buf.data, src.buf.data)
	return nil
}
