package tensor

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"
)

// Float32s returns a copy of the elements in physical order, converted to float32.
func (m *Memory) Float32s() []float32 {
	n := m.layout.NumElements()
	out := make([]float32, n)
	data := m.buf.data

	switch m.layout.DType {
	case Float32:
		copy(out, m.AsFloat32())
	case Float16:
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(data[2*i:])).Float32()
		}
	case Int32:
		for i := range out {
			out[i] = float32(int32(binary.LittleEndian.Uint32(data[4*i:])))
		}
	case Int64:
		for i := range out {
			out[i] = float32(int64(binary.LittleEndian.Uint64(data[8*i:])))
		}
	case Uint8:
		for i := range out {
			out[i] = float32(data[i])
		}
	}
	return out
}

// SetFloat32s stores values in physical order, converting to the element type.
func (m *Memory) SetFloat32s(values []float32) error {
	n := m.layout.NumElements()
	if len(values) != n {
		return fmt.Errorf("got %d values for layout %s with %d elements", len(values), m.layout, n)
	}
	data := m.buf.data

	switch m.layout.DType {
	case Float32:
		copy(m.AsFloat32(), values)
	case Float16:
		for i, v := range values {
			binary.LittleEndian.PutUint16(data[2*i:], float16.Fromfloat32(v).Bits())
		}
	case Int32:
		for i, v := range values {
			binary.LittleEndian.PutUint32(data[4*i:], uint32(int32(math.Round(float64(v)))))
		}
	case Int64:
		for i, v := range values {
			binary.LittleEndian.PutUint64(data[8*i:], uint64(int64(math.Round(float64(v)))))
		}
	case Uint8:
		for i, v := range values {
			data[i] = uint8(min(max(math.Round(float64(v)), 0), 255))
		}
	}
	return nil
}

// Ints returns a copy of the elements of an integer layout in physical order.
func (m *Memory) Ints() ([]int, error) {
	n := m.layout.NumElements()
	out := make([]int, n)
	data := m.buf.data

	switch m.layout.DType {
	case Int32:
		for i := range out {
			out[i] = int(int32(binary.LittleEndian.Uint32(data[4*i:])))
		}
	case Int64:
		for i := range out {
			out[i] = int(int64(binary.LittleEndian.Uint64(data[8*i:])))
		}
	case Uint8:
		for i := range out {
			out[i] = int(data[i])
		}
	default:
		return nil, fmt.Errorf("layout %s does not hold integers", m.layout)
	}
	return out, nil
}

// SetInts stores integer values in physical order. Values must fit the element type.
func (m *Memory) SetInts(values []int) error {
	n := m.layout.NumElements()
	if len(values) != n {
		return fmt.Errorf("got %d values for layout %s with %d elements", len(values), m.layout, n)
	}
	data := m.buf.data

	switch m.layout.DType {
	case Int32:
		for i, v := range values {
			if v < math.MinInt32 || v > math.MaxInt32 {
				return fmt.Errorf("value %d at index %d overflows %s", v, i, m.layout.DType)
			}
			binary.LittleEndian.PutUint32(data[4*i:], uint32(int32(v)))
		}
	case Int64:
		for i, v := range values {
			binary.LittleEndian.PutUint64(data[8*i:], uint64(int64(v)))
		}
	case Uint8:
		for i, v := range values {
			if v < 0 || v > math.MaxUint8 {
				return fmt.Errorf("value %d at index %d overflows %s", v, i, m.layout.DType)
			}
			data[i] = uint8(v)
		}
	default:
		return fmt.Errorf("layout %s does not hold integers", m.layout)
	}
	return nil
}

// Planar returns the elements in logical bfyx order regardless of the memory format.
func (m *Memory) Planar() []float32 {
	values := m.Float32s()
	if m.layout.Format == FormatBYXF {
		return ByxfToBfyx(values, m.layout.Shape)
	}
	return values
}

// SetPlanar stores values given in logical bfyx order.
func (m *Memory) SetPlanar(values []float32) error {
	if m.layout.Format == FormatBYXF {
		if len(values) != m.layout.NumElements() {
			return fmt.Errorf("got %d values for layout %s", len(values), m.layout)
		}
		values = BfyxToByxf(values, m.layout.Shape)
	}
	return m.SetFloat32s(values)
}

// BfyxToByxf reorders planar [b,f,y,x] values into interleaved [b,y,x,f] order.
func BfyxToByxf(src []float32, shape Shape) []float32 {
	b, f, y, x := shape[0], shape[1], shape[2], shape[3]
	dst := make([]float32, len(src))
	for n := 0; n < b; n++ {
		for c := 0; c < f; c++ {
			for h := 0; h < y; h++ {
				for w := 0; w < x; w++ {
					dst[((n*y+h)*x+w)*f+c] = src[((n*f+c)*y+h)*x+w]
				}
			}
		}
	}
	return dst
}

// ByxfToBfyx reorders interleaved [b,y,x,f] values into planar [b,f,y,x] order.
func ByxfToBfyx(src []float32, shape Shape) []float32 {
	b, f, y, x := shape[0], shape[1], shape[2], shape[3]
	dst := make([]float32, len(src))
	for n := 0; n < b; n++ {
		for c := 0; c < f; c++ {
			for h := 0; h < y; h++ {
				for w := 0; w < x; w++ {
					dst[((n*f+c)*y+h)*x+w] = src[((n*y+h)*x+w)*f+c]
				}
			}
		}
	}
	return dst
}
