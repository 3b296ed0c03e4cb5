package engine

import (
	"golang.org/x/net/html"

	"github.com/structive/structive-go/internal/dom"
)

// Patch describes one DOM mutation the renderer applied, addressed by the
// childNodes index path of the affected node relative to the mount root.
// Sessions stream these to connected clients.
type Patch struct {
	// Op is one of "text", "attr", "removeAttr", "class", "style",
	// "insert", "remove" or "move".
	Op   string `json:"op"`
	Path []int  `json:"path"`
	// Name is the attribute/class/style name for the attr-family ops.
	Name string `json:"name,omitempty"`
	// Value is the new text, attribute value or serialized markup.
	Value string `json:"value,omitempty"`
	// Index is the target child position for insert/move.
	Index int `json:"index,omitempty"`
}

// PatchSink receives the renderer's mutations in application order.
type PatchSink interface {
	Emit(Patch)
}

// emitPatch records one mutation against the mount tree. A nil sink or an
// unmounted node (possible while content is built detached) is skipped;
// detached builds are covered by the single insert patch of their mount.
func (e *Engine) emitPatch(op string, node *html.Node, name, value string, index int) {
	if e.sink == nil || e.mountRoot == nil {
		return
	}
	nodePath := dom.NodePathOf(e.mountRoot, node)
	if nodePath == nil {
		return
	}
	e.sink.Emit(Patch{Op: op, Path: nodePath, Name: name, Value: value, Index: index})
	e.collector.IncrementPatchEmitted()
}

// emitInsert records a fragment insertion: addressed by the parent's path,
// carrying the serialized markup and the target child index.
func (e *Engine) emitInsert(parent, node, before *html.Node) {
	if e.sink == nil || e.mountRoot == nil {
		return
	}
	parentPath := dom.NodePathOf(e.mountRoot, parent)
	if parentPath == nil {
		return
	}
	index := 0
	for sib := parent.FirstChild; sib != nil && sib != before; sib = sib.NextSibling {
		index++
	}
	e.sink.Emit(Patch{Op: "insert", Path: parentPath, Value: dom.Serialize(node), Index: index})
	e.collector.IncrementPatchEmitted()
}

// emitRemove records a node removal. Must run before the node is detached,
// while its path is still computable.
func (e *Engine) emitRemove(node *html.Node) {
	if e.sink == nil || e.mountRoot == nil {
		return
	}
	nodePath := dom.NodePathOf(e.mountRoot, node)
	if nodePath == nil {
		return
	}
	e.sink.Emit(Patch{Op: "remove", Path: nodePath})
	e.collector.IncrementPatchEmitted()
}
