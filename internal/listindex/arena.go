// Package listindex implements loop-position identity tracking. A ListIndex
// stands for one position of one (possibly nested) loop; the list diff reuses
// these identities across reorders so the renderer can move DOM fragments
// instead of rebuilding them.
//
// Instead of relying on garbage-collector cooperation, indexes live in an
// arena and are addressed by (id, generation) handles. Releasing a slot bumps
// its generation, so a handle held past its lifetime is detected
// deterministically rather than silently resolving to a recycled index.
package listindex

import (
	"fmt"
	"sync"
)

// ListIndex is a handle to one loop-position identity inside an Arena.
// The zero value means "no index". Handles are comparable; two handles are
// equal exactly when they address the same identity.
type ListIndex struct {
	arena *Arena
	id    uint32
	gen   uint32
}

// Arena owns list-index slots for one component instance.
type Arena struct {
	mu      sync.Mutex
	nodes   []slot
	free    []uint32
	version uint64
}

type slot struct {
	gen    uint32
	live   bool
	parent ListIndex
	// position is the depth in the parent chain, 0 for a top-level loop.
	position int
	index    int
	// version is the global stamp of the last index assignment.
	version uint64
	// indexesAt is the stamp at which the cumulative indexes slice was
	// last rebuilt; any ancestor stamped later forces a rebuild.
	indexesAt uint64
	indexes   []int
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// New allocates a list index at the given numeric position, chained under
// parent (which may be the zero ListIndex for a top-level loop).
func (a *Arena) New(parent ListIndex, index int) ListIndex {
	a.mu.Lock()
	defer a.mu.Unlock()
	position := 0
	if !parent.IsZero() {
		position = a.slotOf(parent).position + 1
	}
	a.version++
	s := slot{
		live:     true,
		parent:   parent,
		position: position,
		index:    index,
		version:  a.version,
	}
	var id uint32
	if n := len(a.free); n > 0 {
		id = a.free[n-1]
		a.free = a.free[:n-1]
		s.gen = a.nodes[id-1].gen
		a.nodes[id-1] = s
	} else {
		a.nodes = append(a.nodes, s)
		id = uint32(len(a.nodes))
	}
	return ListIndex{arena: a, id: id, gen: s.gen}
}

// Release retires the slot behind li. Any handle still addressing it becomes
// stale and fails validity checks from then on. Releasing the zero handle or
// an already stale handle is a no-op.
func (a *Arena) Release(li ListIndex) {
	if li.IsZero() || li.arena != a {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	s := &a.nodes[li.id-1]
	if !s.live || s.gen != li.gen {
		return
	}
	s.live = false
	s.gen++
	s.indexes = nil
	a.free = append(a.free, li.id)
}

// Version returns the current global version stamp.
func (a *Arena) Version() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.version
}

// slotOf resolves a handle to its slot. Callers hold a.mu. A stale handle is
// a lifecycle bug in the caller and panics; use Valid to probe first.
func (a *Arena) slotOf(li ListIndex) *slot {
	if li.id == 0 || int(li.id) > len(a.nodes) {
		panic(fmt.Sprintf("listindex: invalid handle id=%d", li.id))
	}
	s := &a.nodes[li.id-1]
	if !s.live || s.gen != li.gen {
		panic(fmt.Sprintf("listindex: handle id=%d used after release", li.id))
	}
	return s
}

// IsZero reports whether li is the "no index" handle.
func (li ListIndex) IsZero() bool { return li.arena == nil }

// Valid reports whether li still addresses a live slot.
func (li ListIndex) Valid() bool {
	if li.IsZero() {
		return false
	}
	a := li.arena
	a.mu.Lock()
	defer a.mu.Unlock()
	if li.id == 0 || int(li.id) > len(a.nodes) {
		return false
	}
	s := &a.nodes[li.id-1]
	return s.live && s.gen == li.gen
}

// Index returns the current numeric position of li within its loop.
func (li ListIndex) Index() int {
	a := li.arena
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.slotOf(li).index
}

// SetIndex moves li to a new numeric position, bumping the global version so
// dependent cumulative-index caches notice the move.
func (li ListIndex) SetIndex(index int) {
	a := li.arena
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.slotOf(li)
	a.version++
	s.index = index
	s.version = a.version
}

// Parent returns the parent handle, or the zero handle for a top-level loop.
func (li ListIndex) Parent() ListIndex {
	a := li.arena
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.slotOf(li).parent
}

// Position returns the depth of li in its parent chain (0 = outermost loop).
func (li ListIndex) Position() int {
	a := li.arena
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.slotOf(li).position
}

// Version returns the stamp of the last index assignment.
func (li ListIndex) Version() uint64 {
	a := li.arena
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.slotOf(li).version
}

// At walks the parent chain to the handle at the given depth. Requesting a
// depth below zero or beyond li's own position returns the zero handle.
func (li ListIndex) At(position int) ListIndex {
	if li.IsZero() || position < 0 {
		return ListIndex{}
	}
	a := li.arena
	a.mu.Lock()
	defer a.mu.Unlock()
	cur := li
	for {
		s := a.slotOf(cur)
		if s.position == position {
			return cur
		}
		if s.position < position || s.parent.IsZero() {
			return ListIndex{}
		}
		cur = s.parent
	}
}

// Indexes returns the cumulative numeric indexes from the outermost loop down
// to li. The slice is rebuilt lazily when li or any ancestor moved since the
// last call, and callers must not mutate it.
func (li ListIndex) Indexes() []int {
	a := li.arena
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.indexesLocked(li)
}

func (a *Arena) indexesLocked(li ListIndex) []int {
	s := a.slotOf(li)

	// Find the newest version stamp along the chain.
	newest := s.version
	for cur := s.parent; !cur.IsZero(); {
		ps := a.slotOf(cur)
		if ps.version > newest {
			newest = ps.version
		}
		cur = ps.parent
	}
	if s.indexes != nil && s.indexesAt >= newest {
		return s.indexes
	}

	indexes := make([]int, s.position+1)
	indexes[s.position] = s.index
	for cur := s.parent; !cur.IsZero(); {
		ps := a.slotOf(cur)
		indexes[ps.position] = ps.index
		cur = ps.parent
	}
	s.indexes = indexes
	s.indexesAt = newest
	return indexes
}
