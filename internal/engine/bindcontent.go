package engine

import (
	"golang.org/x/net/html"

	"github.com/structive/structive-go/internal/dom"
)

// BindContent is one instantiated template fragment: a cloned DOM subtree
// plus the bindings resolved against it. Root content is mounted once at
// connect; nested content is created and pooled by the structural appliers.
type BindContent struct {
	e        *Engine
	template *Template
	lc       *LoopContext

	// nodes are the fragment's top-level nodes in template order. They
	// live under the detached clone container until mounted.
	nodes    []*html.Node
	bindings []*Binding

	mounted bool
	parent  *html.Node
}

// newBindContent clones the template prototype, swaps text-marker comments
// for live text nodes, and builds the bindings of every node record.
func newBindContent(e *Engine, templateID int, lc *LoopContext) (*BindContent, error) {
	t, err := e.template(templateID)
	if err != nil {
		return nil, err
	}
	container := dom.CloneTree(t.Content)
	content := &BindContent{e: e, template: t, lc: lc}

	for _, record := range t.Records {
		node, err := dom.ResolveNodePath(container, record.NodePath)
		if err != nil {
			return nil, err
		}
		if _, ok := dom.CommentMarker(node, dom.TextMarkerPrefix); ok {
			text := dom.NewText("")
			node.Parent.InsertBefore(text, node)
			node.Parent.RemoveChild(node)
			node = text
		}
		for i := range record.Exprs {
			b, err := newBinding(content, node, &record.Exprs[i])
			if err != nil {
				return nil, err
			}
			content.bindings = append(content.bindings, b)
		}
	}

	for child := container.FirstChild; child != nil; child = child.NextSibling {
		content.nodes = append(content.nodes, child)
	}
	return content, nil
}

// Bindings returns the content's bindings in template order.
func (c *BindContent) Bindings() []*Binding { return c.bindings }

// FirstNode returns the first top-level node, nil for an empty fragment.
func (c *BindContent) FirstNode() *html.Node {
	if len(c.nodes) == 0 {
		return nil
	}
	return c.nodes[0]
}

// Mount inserts the fragment under parent ahead of before (nil appends).
// Remounting pooled content is allowed; a mounted fragment moves, streamed
// to sinks as remove plus insert.
func (c *BindContent) Mount(parent, before *html.Node) {
	moving := c.mounted
	for _, n := range c.nodes {
		if c.e.sink != nil && moving {
			c.e.emitRemove(n)
		}
		dom.Detach(n)
		if c.e.sink != nil {
			c.e.emitInsert(parent, n, before)
		}
		dom.InsertBefore(parent, n, before)
	}
	c.parent = parent
	c.mounted = true
}

// Unmount detaches the fragment, leaving bindings intact for reuse.
func (c *BindContent) Unmount() {
	if !c.mounted {
		return
	}
	for _, n := range c.nodes {
		if c.e.sink != nil {
			c.e.emitRemove(n)
		}
		dom.Detach(n)
		c.e.events.RemoveNode(n)
	}
	c.parent = nil
	c.mounted = false
}

// Activate resolves and registers every binding. Nested content is activated
// by the structural appliers when they mount it.
func (c *BindContent) Activate() error {
	for _, b := range c.bindings {
		if err := b.Activate(); err != nil {
			return err
		}
	}
	return nil
}

// Inactivate unregisters bindings in reverse order.
func (c *BindContent) Inactivate() {
	for i := len(c.bindings) - 1; i >= 0; i-- {
		c.bindings[i].Inactivate()
	}
}

// applyAll applies every binding once, in template order. Callers hold e.mu.
func (c *BindContent) applyAll(h *handler) error {
	for _, b := range c.bindings {
		if err := b.apply(h); err != nil {
			return err
		}
	}
	return nil
}
