package ops

import (
	"fmt"

	"github.com/born-ml/graphc/internal/tensor"
)

// AttributeVisitor receives every serializable field of an operation. A saving visitor
// reads through the pointers; a loading visitor writes through them. Operations call
// the same sequence for both directions.
type AttributeVisitor interface {
	OnInt(name string, v *int)
	OnFloat(name string, v *float32)
	OnString(name string, v *string)
	OnInts(name string, v *[]int)
	OnFloats(name string, v *[]float32)

	// Fail records a field that could not be converted.
	Fail(name string, err error)

	// Err returns the first error recorded while visiting.
	Err() error
}

// Attributes holds field name → value pairs produced by a Saver or consumed by a Loader.
// Values are ints, float32s, strings, []int and []float32 after saving; a Loader also
// accepts the looser numeric types produced by YAML and JSON decoders.
type Attributes map[string]any

// Saver copies visited fields into an Attributes map.
type Saver struct {
	attrs Attributes
	err   error
}

// NewSaver returns a visitor that writes into attrs.
func NewSaver(attrs Attributes) *Saver {
	return &Saver{attrs: attrs}
}

func (s *Saver) OnInt(name string, v *int)       { s.attrs[name] = *v }
func (s *Saver) OnFloat(name string, v *float32) { s.attrs[name] = *v }
func (s *Saver) OnString(name string, v *string) { s.attrs[name] = *v }
func (s *Saver) OnInts(name string, v *[]int)    { s.attrs[name] = append([]int(nil), (*v)...) }
func (s *Saver) OnFloats(name string, v *[]float32) {
	s.attrs[name] = append([]float32(nil), (*v)...)
}
func (s *Saver) Fail(name string, err error) {
	if s.err == nil {
		s.err = fmt.Errorf("attribute %q: %w", name, err)
	}
}
func (s *Saver) Err() error { return s.err }

// Loader populates visited fields from an Attributes map. Fields missing from the map
// keep their current value.
type Loader struct {
	attrs Attributes
	err   error
}

// NewLoader returns a visitor that reads from attrs.
func NewLoader(attrs Attributes) *Loader {
	return &Loader{attrs: attrs}
}

// Fail records the first conversion error.
func (l *Loader) Fail(name string, err error) {
	if l.err == nil {
		l.err = fmt.Errorf("attribute %q: %w", name, err)
	}
}

func (l *Loader) OnInt(name string, v *int) {
	raw, ok := l.attrs[name]
	if !ok {
		return
	}
	n, err := toInt(raw)
	if err != nil {
		l.Fail(name, err)
		return
	}
	*v = n
}

func (l *Loader) OnFloat(name string, v *float32) {
	raw, ok := l.attrs[name]
	if !ok {
		return
	}
	f, err := toFloat(raw)
	if err != nil {
		l.Fail(name, err)
		return
	}
	*v = f
}

func (l *Loader) OnString(name string, v *string) {
	raw, ok := l.attrs[name]
	if !ok {
		return
	}
	s, ok := raw.(string)
	if !ok {
		l.Fail(name, fmt.Errorf("expected string, got %T", raw))
		return
	}
	*v = s
}

func (l *Loader) OnInts(name string, v *[]int) {
	raw, ok := l.attrs[name]
	if !ok {
		return
	}
	switch list := raw.(type) {
	case []int:
		*v = append([]int(nil), list...)
	case []any:
		out := make([]int, len(list))
		for i, item := range list {
			n, err := toInt(item)
			if err != nil {
				l.Fail(name, err)
				return
			}
			out[i] = n
		}
		*v = out
	default:
		l.Fail(name, fmt.Errorf("expected list of ints, got %T", raw))
	}
}

func (l *Loader) OnFloats(name string, v *[]float32) {
	raw, ok := l.attrs[name]
	if !ok {
		return
	}
	switch list := raw.(type) {
	case []float32:
		*v = append([]float32(nil), list...)
	case []any:
		out := make([]float32, len(list))
		for i, item := range list {
			f, err := toFloat(item)
			if err != nil {
				l.Fail(name, err)
				return
			}
			out[i] = f
		}
		*v = out
	default:
		l.Fail(name, fmt.Errorf("expected list of floats, got %T", raw))
	}
}

func (l *Loader) Err() error { return l.err }

func toInt(raw any) (int, error) {
	switch n := raw.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("expected integer, got %v", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", raw)
	}
}

func toFloat(raw any) (float32, error) {
	switch f := raw.(type) {
	case float32:
		return f, nil
	case float64:
		return float32(f), nil
	case int:
		return float32(f), nil
	case int64:
		return float32(f), nil
	default:
		return 0, fmt.Errorf("expected number, got %T", raw)
	}
}

// visitLayout visits a layout as three fields: <prefix>dtype, <prefix>format and
// <prefix>shape.
func visitLayout(v AttributeVisitor, prefix string, layout *tensor.Layout) {
	dtype := layout.DType.String()
	format := layout.Format.String()
	shape := []int(layout.Shape)

	v.OnString(prefix+"dtype", &dtype)
	v.OnString(prefix+"format", &format)
	v.OnInts(prefix+"shape", &shape)

	dt, err := tensor.ParseDataType(dtype)
	if err != nil {
		v.Fail(prefix+"dtype", err)
		return
	}
	f, err := tensor.ParseFormat(format)
	if err != nil {
		v.Fail(prefix+"format", err)
		return
	}
	if err := tensor.Shape(shape).Validate(); err != nil {
		v.Fail(prefix+"shape", err)
		return
	}
	layout.DType, layout.Format, layout.Shape = dt, f, tensor.Shape(shape)
}
