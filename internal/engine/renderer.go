package engine

import (
	"golang.org/x/net/html"

	"github.com/structive/structive-go/internal/listindex"
	"github.com/structive/structive-go/internal/path"
	"github.com/structive/structive-go/internal/stateref"
)

// renderer executes one render pass: it expands the batch's written refs
// into the concrete refs whose bindings must re-apply, then drains them in
// phases. Appliers are idempotent, so a ref reached through two dependency
// routes is applied once and unchanged values cost nothing.
type renderer struct {
	e       *Engine
	h       *handler
	applied map[*stateref.Ref]struct{}
	queue   []*stateref.Ref
	// fresh holds the identities minted by list diffs during this pass;
	// dependents of a changed list fan out over these only, since surviving
	// identities carry their values with them.
	fresh map[listindex.ListIndex]struct{}
}

func newRenderer(e *Engine) *renderer {
	return &renderer{
		e:       e,
		h:       e.newHandler(false, nil),
		applied: make(map[*stateref.Ref]struct{}),
		fresh:   make(map[listindex.ListIndex]struct{}),
	}
}

// render reconciles the DOM for one batch. Callers hold e.mu.
func (r *renderer) render(batch []*stateref.Ref) error {
	r.e.freshPass = r.fresh
	defer func() { r.e.freshPass = nil }()

	if err := r.reconcileSwaps(); err != nil {
		return err
	}

	// Element refs whose list is in the same batch are subsumed by the list
	// pass: the list binding moves, rebuilds and applies its elements.
	lists := make(map[*stateref.Ref]struct{})
	for _, ref := range batch {
		if r.e.pm.IsList(ref.Info.Pattern) {
			lists[ref] = struct{}{}
		}
	}
	for _, ref := range batch {
		if r.subsumed(ref, lists) {
			continue
		}
		if err := r.expand(ref); err != nil {
			return err
		}
	}
	return r.flushPhases()
}

// reconcileSwaps runs the deferred list diff for every list snapshotted by
// an element overwrite this batch. Diffing the final value against the
// pre-batch baseline renumbers surviving identities in place, so a
// value-for-value swap moves DOM rows instead of rebuilding them.
func (r *renderer) reconcileSwaps() error {
	for ref := range r.e.swapBase {
		if _, _, err := r.e.refreshListIndexes(r.h, ref); err != nil {
			return err
		}
	}
	return nil
}

// subsumed reports whether ref is an element ref whose parent list ref is
// also queued in this batch.
func (r *renderer) subsumed(ref *stateref.Ref, lists map[*stateref.Ref]struct{}) bool {
	if len(lists) == 0 || !r.e.pm.IsElement(ref.Info.Pattern) {
		return false
	}
	parent, err := r.e.refs.Parent(ref)
	if err != nil {
		return false
	}
	_, ok := lists[parent]
	return ok
}

// expand queues the written ref plus every dependent pattern's concrete
// refs. Dependent wildcard levels shared with the written ref stay pinned to
// its indexes; deeper levels fan out over the current list elements — over
// the newly-appeared ones only when the written ref is the list itself.
func (r *renderer) expand(ref *stateref.Ref) error {
	r.enqueue(ref)
	written := ref.Info
	var writtenIndexes []int
	if ref.HasIndex() {
		li, err := ref.ListIndex()
		if err != nil {
			return err
		}
		writtenIndexes = li.Indexes()
	}
	isList := r.e.pm.IsList(written.Pattern)
	for _, pattern := range r.e.pm.AffectedClosure(written.Pattern) {
		if pattern == written.Pattern {
			continue
		}
		info := path.Get(pattern)
		shared := sharedWildcardLevels(written, info)
		given := writtenIndexes[:min(shared, len(writtenIndexes))]
		freshLevel := -1
		if isList {
			for level, parent := range info.WildcardParentPaths {
				if parent == written.Pattern {
					freshLevel = level
					break
				}
			}
		}
		err := r.h.eachRef(info, given, 0, listindex.ListIndex{}, func(dep *stateref.Ref) error {
			if freshLevel >= 0 {
				li, err := dep.ListIndex()
				if err != nil {
					return err
				}
				if _, ok := r.fresh[li.At(freshLevel)]; !ok {
					return nil
				}
			}
			r.enqueue(dep)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) enqueue(ref *stateref.Ref) {
	if _, done := r.applied[ref]; done {
		return
	}
	r.queue = append(r.queue, ref)
}

// flushPhases drains the queued refs in the order the DOM needs them:
// structural appliers first so conditional and loop content exists, scalar
// appliers next, select values last so the options they pick among are
// already mounted.
func (r *renderer) flushPhases() error {
	var scalars, selects []*Binding
	for len(r.queue) > 0 {
		ref := r.queue[0]
		r.queue = r.queue[1:]
		if _, done := r.applied[ref]; done {
			continue
		}
		r.applied[ref] = struct{}{}
		// Copy: structural appliers mutate the registry while we iterate.
		bindings := append([]*Binding(nil), r.e.bindingsFor(ref)...)
		for _, b := range bindings {
			switch {
			case isStructural(b.applier):
				if err := b.apply(r.h); err != nil {
					return err
				}
			case isSelectValue(b):
				selects = append(selects, b)
			default:
				scalars = append(scalars, b)
			}
		}
	}
	for _, b := range scalars {
		// A structural applier above may have torn this binding down.
		if !b.active {
			continue
		}
		if err := b.apply(r.h); err != nil {
			return err
		}
	}
	for _, b := range selects {
		if !b.active {
			continue
		}
		if err := b.apply(r.h); err != nil {
			return err
		}
	}
	return nil
}

// applyContent applies every binding of a freshly mounted fragment once.
func (r *renderer) applyContent(c *BindContent) error {
	return c.applyAll(r.h)
}

func isStructural(a NodeApplier) bool {
	switch a.(type) {
	case *forApplier, *ifApplier, componentApplier:
		return true
	}
	return false
}

// isSelectValue reports a value binding on a <select>, whose apply must wait
// for its option subtree.
func isSelectValue(b *Binding) bool {
	if _, ok := b.applier.(propertyApplier); !ok {
		return false
	}
	return b.node.Type == html.ElementNode && b.node.Data == "select"
}

// sharedWildcardLevels counts the leading wildcard levels two patterns
// resolve through the same lists.
func sharedWildcardLevels(a, b *path.Info) int {
	n := min(len(a.WildcardParentPaths), len(b.WildcardParentPaths))
	shared := 0
	for i := 0; i < n; i++ {
		if a.WildcardParentPaths[i] != b.WildcardParentPaths[i] {
			break
		}
		shared++
	}
	return shared
}
