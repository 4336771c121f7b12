// Package cursor tracks write positions in the element tree. Each container
// has its own cursor; appending an element claims the cursor's current index
// and advances it, so elements written on consecutive calls land at
// consecutive sibling paths.
package cursor

import (
	"sync"

	"github.com/freshet/freshet/internal/domain/msg"
)

// Cursor is the write position inside one container. It is safe for use from
// a single producer goroutine; snapshots taken with Snapshot are immutable
// and may be restored into any later run.
type Cursor struct {
	mu         sync.Mutex
	root       msg.RootContainer
	parentPath []uint32
	index      uint32
}

// New returns a cursor positioned at the first slot of the given root
// container.
func New(root msg.RootContainer) *Cursor {
	return &Cursor{root: root}
}

// Root reports which root container this cursor writes into.
func (c *Cursor) Root() msg.RootContainer { return c.root }

// PeekPath returns the path the next element will be written to, without
// advancing the cursor. Widget IDs are derived from this path so that an
// element's identity is stable across reruns that produce the same layout.
func (c *Cursor) PeekPath() msg.DeltaPath {
	c.mu.Lock()
	defer c.mu.Unlock()
	return msg.MakeDeltaPath(c.root, c.parentPath, c.index)
}

// NextPath claims the current slot and advances the cursor to the next
// sibling position.
func (c *Cursor) NextPath() msg.DeltaPath {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := msg.MakeDeltaPath(c.root, c.parentPath, c.index)
	c.index++
	return p
}

// Child claims the current slot for a block element and returns a fresh
// cursor addressing the inside of that block. The returned cursor starts at
// child index zero; the receiver advances past the block.
func (c *Cursor) Child() (msg.DeltaPath, *Cursor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	blockPath := msg.MakeDeltaPath(c.root, c.parentPath, c.index)
	child := &Cursor{
		root:       c.root,
		parentPath: append(append([]uint32(nil), c.parentPath...), c.index),
	}
	c.index++
	return blockPath, child
}

// Snapshot captures the cursor's position. Fragments store a snapshot at
// declaration time so later fragment-only reruns write to the same paths the
// original full run used.
type Snapshot struct {
	Root       msg.RootContainer
	ParentPath []uint32
	Index      uint32
}

// Snapshot returns an immutable copy of the current position.
func (c *Cursor) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Root:       c.root,
		ParentPath: append([]uint32(nil), c.parentPath...),
		Index:      c.index,
	}
}

// Restore returns a new cursor positioned exactly where the snapshot was
// taken. The snapshot itself is never mutated, so a fragment can be rerun
// any number of times from the same starting position.
func (s Snapshot) Restore() *Cursor {
	return &Cursor{
		root:       s.Root,
		parentPath: append([]uint32(nil), s.ParentPath...),
		index:      s.Index,
	}
}
