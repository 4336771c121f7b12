// Package msg defines the ForwardMsg envelope streamed to connected clients,
// the delta-path tree addressing scheme, and the session-scoped outbox queue.
package msg

import (
	"strconv"
	"strings"
)

// RootContainer identifies the top-level layout region a delta belongs to.
type RootContainer uint8

const (
	RootMain RootContainer = iota
	RootSidebar
	RootEvent
)

// DeltaPath is the hierarchical address of a node in the element tree.
// It is the join key for queue coalescing and fragment scoping: two deltas
// with equal paths address the same client-side slot.
type DeltaPath struct {
	Root    RootContainer
	Indices []uint32
}

// MakeDeltaPath builds the path of the element at sibling position index
// inside the container addressed by parent.
func MakeDeltaPath(root RootContainer, parent []uint32, index uint32) DeltaPath {
	indices := make([]uint32, 0, len(parent)+1)
	indices = append(indices, parent...)
	indices = append(indices, index)
	return DeltaPath{Root: root, Indices: indices}
}

// Key returns a compact string form usable as a map key.
func (p DeltaPath) Key() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(int(p.Root)))
	for _, i := range p.Indices {
		b.WriteByte('.')
		b.WriteString(strconv.FormatUint(uint64(i), 10))
	}
	return b.String()
}

// Equal reports whether two paths address the same tree slot.
func (p DeltaPath) Equal(o DeltaPath) bool {
	if p.Root != o.Root || len(p.Indices) != len(o.Indices) {
		return false
	}
	for i, v := range p.Indices {
		if o.Indices[i] != v {
			return false
		}
	}
	return true
}
