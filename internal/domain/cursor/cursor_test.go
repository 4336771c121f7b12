package cursor_test

import (
	"testing"

	"github.com/freshet/freshet/internal/domain/cursor"
	"github.com/freshet/freshet/internal/domain/msg"
)

func TestCursor_SequentialPaths(t *testing.T) {
	c := cursor.New(msg.RootMain)

	for i := uint32(0); i < 3; i++ {
		p := c.NextPath()
		if len(p.Indices) != 1 || p.Indices[0] != i {
			t.Fatalf("path %d = %v, want [main %d]", i, p.Indices, i)
		}
		if p.Root != msg.RootMain {
			t.Fatalf("path root = %v, want main", p.Root)
		}
	}
}

func TestCursor_PeekDoesNotAdvance(t *testing.T) {
	c := cursor.New(msg.RootSidebar)

	peeked := c.PeekPath()
	claimed := c.NextPath()
	if !peeked.Equal(claimed) {
		t.Fatalf("peeked %v but claimed %v", peeked, claimed)
	}
	if next := c.NextPath(); next.Equal(claimed) {
		t.Fatal("NextPath should advance past the claimed slot")
	}
}

func TestCursor_ChildPaths(t *testing.T) {
	c := cursor.New(msg.RootMain)

	c.NextPath() // index 0
	blockPath, child := c.Child()
	if len(blockPath.Indices) != 1 || blockPath.Indices[0] != 1 {
		t.Fatalf("block path = %v, want [main 1]", blockPath.Indices)
	}

	inner := child.NextPath()
	want := []uint32{1, 0}
	if len(inner.Indices) != 2 || inner.Indices[0] != want[0] || inner.Indices[1] != want[1] {
		t.Fatalf("child path = %v, want %v", inner.Indices, want)
	}

	// Parent continues past the block.
	after := c.NextPath()
	if len(after.Indices) != 1 || after.Indices[0] != 2 {
		t.Fatalf("parent path after block = %v, want [main 2]", after.Indices)
	}
}

func TestCursor_SnapshotRestore(t *testing.T) {
	c := cursor.New(msg.RootMain)
	c.NextPath()
	c.NextPath()

	snap := c.Snapshot()

	// The original cursor keeps moving.
	c.NextPath()

	// A restored cursor starts where the snapshot was taken.
	r1 := snap.Restore()
	p1 := r1.NextPath()
	if len(p1.Indices) != 1 || p1.Indices[0] != 2 {
		t.Fatalf("restored path = %v, want [main 2]", p1.Indices)
	}

	// Restoring again yields the same starting position: the snapshot is
	// immutable.
	r2 := snap.Restore()
	p2 := r2.NextPath()
	if !p1.Equal(p2) {
		t.Fatalf("second restore diverged: %v vs %v", p1.Indices, p2.Indices)
	}
}

func TestCursor_SnapshotInsideChild(t *testing.T) {
	c := cursor.New(msg.RootMain)
	_, child := c.Child()
	child.NextPath()

	snap := child.Snapshot()
	r := snap.Restore()
	p := r.NextPath()
	if len(p.Indices) != 2 || p.Indices[0] != 0 || p.Indices[1] != 1 {
		t.Fatalf("restored child path = %v, want [main 0 1]", p.Indices)
	}
}
