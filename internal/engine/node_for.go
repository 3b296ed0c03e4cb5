package engine

import (
	"golang.org/x/net/html"

	"github.com/structive/structive-go/internal/listindex"
	"github.com/structive/structive-go/internal/path"
)

// forApplier renders one nested template instance per list element. Contents
// are keyed by the element's index identity, so reorders move existing DOM
// instead of rebuilding it; identities that leave the list release their
// content into a pool and free their arena slot.
type forApplier struct {
	contents map[listindex.ListIndex]*BindContent
	// pool keeps inactivated contents for reuse. A pooled fragment only
	// needs a fresh loop context; its bindings re-resolve on Activate.
	pool []*BindContent
}

func newForApplier() *forApplier {
	return &forApplier{contents: make(map[listindex.ListIndex]*BindContent)}
}

func (a *forApplier) Apply(b *Binding, value any) error {
	e := b.Engine()
	h := e.newHandler(false, b.LoopContext())

	cur, err := e.listIndexes(h, b.state.ref)
	if err != nil {
		return err
	}

	if len(cur) == 0 {
		a.dropAll(e)
		return nil
	}

	// Drop instances whose identity left the list. Compared against our own
	// content map, not the list cache: the render pass may have reconciled
	// the cache already while expanding dependents.
	current := make(map[listindex.ListIndex]struct{}, len(cur))
	for _, li := range cur {
		current[li] = struct{}{}
	}
	for li, content := range a.contents {
		if _, ok := current[li]; ok {
			continue
		}
		a.drop(e, li, content)
	}

	if len(a.contents) == 0 {
		return a.mountAll(b, h, cur)
	}

	elemInfo := path.Get(b.state.info.Pattern + ".*")

	// Build missing contents, then place everything in order. Walking
	// backwards keeps each mount a single insert-before against the next
	// item (or the anchor comment for the last one).
	fresh := make([]*BindContent, 0, len(cur))
	before := b.node
	for i := len(cur) - 1; i >= 0; i-- {
		li := cur[i]
		content, ok := a.contents[li]
		if !ok {
			content, err = a.take(e, b, li, elemInfo)
			if err != nil {
				return err
			}
			fresh = append(fresh, content)
		}
		if content.parent == nil || content.FirstNode() == nil || nextMounted(content) != before {
			content.Mount(b.node.Parent, before)
		}
		if first := content.FirstNode(); first != nil {
			before = first
		}
	}

	for i := len(fresh) - 1; i >= 0; i-- {
		if err := fresh[i].Activate(); err != nil {
			return err
		}
		if err := fresh[i].applyAll(h); err != nil {
			return err
		}
	}
	return nil
}

// mountAll is the all-new fast path: with nothing to diff against, the
// fragments mount in a single forward sweep ahead of the anchor.
func (a *forApplier) mountAll(b *Binding, h *handler, cur []listindex.ListIndex) error {
	e := b.Engine()
	elemInfo := path.Get(b.state.info.Pattern + ".*")
	for _, li := range cur {
		content, err := a.take(e, b, li, elemInfo)
		if err != nil {
			return err
		}
		content.Mount(b.node.Parent, b.node)
		if err := content.Activate(); err != nil {
			return err
		}
		if err := content.applyAll(h); err != nil {
			return err
		}
	}
	return nil
}

// take produces the content for a fresh identity, reusing a pooled fragment
// when one is available.
func (a *forApplier) take(e *Engine, b *Binding, li listindex.ListIndex, elemInfo *path.Info) (*BindContent, error) {
	elemRef := e.refs.Intern(elemInfo, li)
	lc := NewLoopContext(elemRef, b.LoopContext())
	if n := len(a.pool); n > 0 {
		content := a.pool[n-1]
		a.pool = a.pool[:n-1]
		content.lc = lc
		a.contents[li] = content
		return content, nil
	}
	content, err := newBindContent(e, b.expr.SubTemplateID, lc)
	if err != nil {
		return nil, err
	}
	a.contents[li] = content
	return content, nil
}

// drop retires one instance: bindings unregister, the fragment detaches into
// the pool and the identity's arena slot is released.
func (a *forApplier) drop(e *Engine, li listindex.ListIndex, content *BindContent) {
	content.Inactivate()
	content.Unmount()
	delete(a.contents, li)
	e.arena.Release(li)
	a.pool = append(a.pool, content)
}

// dropAll clears every instance, the empty-list fast path.
func (a *forApplier) dropAll(e *Engine) {
	for li, content := range a.contents {
		a.drop(e, li, content)
	}
}

// nextMounted returns the sibling right after the content's last node, used
// to detect that an instance already sits in place.
func nextMounted(c *BindContent) *html.Node {
	if len(c.nodes) == 0 || !c.mounted {
		return nil
	}
	return c.nodes[len(c.nodes)-1].NextSibling
}

func (a *forApplier) Inactivate(b *Binding) {
	a.dropAll(b.Engine())
}
