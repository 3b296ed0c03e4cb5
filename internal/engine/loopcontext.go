package engine

import (
	"github.com/structive/structive-go/internal/listindex"
	"github.com/structive/structive-go/internal/stateref"
)

// LoopContext pins one loop iteration: the element pattern ("items.*") and
// the concrete ref addressing the current item. Contexts chain through
// nested loops; resolution of a wildcard path walks the chain outward until
// the owning loop is found.
type LoopContext struct {
	ref    *stateref.Ref
	parent *LoopContext
}

// NewLoopContext creates a context for one loop item under parent (nil for a
// top-level loop).
func NewLoopContext(ref *stateref.Ref, parent *LoopContext) *LoopContext {
	return &LoopContext{ref: ref, parent: parent}
}

// Ref returns the element ref of this iteration.
func (lc *LoopContext) Ref() *stateref.Ref { return lc.ref }

// Parent returns the enclosing loop context, or nil.
func (lc *LoopContext) Parent() *LoopContext { return lc.parent }

// Pattern returns the element pattern this context serves.
func (lc *LoopContext) Pattern() string { return lc.ref.Info.Pattern }

// Find walks the chain outward for the context whose pattern equals
// wildcardPath, returning nil when no enclosing loop owns it.
func (lc *LoopContext) Find(wildcardPath string) *LoopContext {
	for cur := lc; cur != nil; cur = cur.parent {
		if cur.Pattern() == wildcardPath {
			return cur
		}
	}
	return nil
}

// ListIndex returns the index handle of this iteration.
func (lc *LoopContext) ListIndex() (listindex.ListIndex, error) {
	return lc.ref.ListIndex()
}
