package graph

import "fmt"

// RTKey names a run-time-info entry. Only the keys declared here are recognized.
type RTKey string

// Recognized run-time-info keys.
const (
	// RTLayout is a layout annotation such as "NCHW". It does not take part in shape
	// inference.
	RTLayout RTKey = "LAYOUT"
)

type rtInfo map[RTKey]any

func (r rtInfo) clone() rtInfo {
	if r == nil {
		return nil
	}
	out := make(rtInfo, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// SetRTInfo stores a run-time-info value.
func (n *Node) SetRTInfo(key RTKey, value any) {
	if n.rt == nil {
		n.rt = make(rtInfo)
	}
	n.rt[key] = value
}

// RTInfo returns a run-time-info value.
func (n *Node) RTInfo(key RTKey) (any, bool) {
	v, ok := n.rt[key]
	return v, ok
}

// ClearRTInfo removes a run-time-info value.
func (n *Node) ClearRTInfo(key RTKey) {
	delete(n.rt, key)
}

// LayoutTag returns the LAYOUT annotation, or false when unset. It panics if the
// stored value is not a string.
func (n *Node) LayoutTag() (string, bool) {
	v, ok := n.rt[RTLayout]
	if !ok {
		return "", false
	}
	tag, ok := v.(string)
	if !ok {
		panic(fmt.Sprintf("node %q: %s holds %T, not string", n.Name, RTLayout, v))
	}
	return tag, true
}

// SetLayoutTag sets the LAYOUT annotation.
func (n *Node) SetLayoutTag(tag string) {
	n.SetRTInfo(RTLayout, tag)
}
