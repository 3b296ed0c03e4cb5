package engine

import (
	"strings"

	"github.com/structive/structive-go/internal/listindex"
	"github.com/structive/structive-go/internal/path"
	"github.com/structive/structive-go/internal/serr"
	"github.com/structive/structive-go/internal/stateref"
)

// parentBridge serves a child engine's parent-owned slots by translating
// child patterns through a route table and delegating to the parent engine.
// Calls arrive with the child's lock held, so everything here goes through
// the parent's external API; the parent never calls into a child in-line,
// keeping the lock order one-way.
type parentBridge struct {
	parent *Engine
	// routes maps a child pattern prefix to the parent pattern it is bound
	// to, one entry per "state.<child>: <parent>" binding.
	routes map[string]string
}

// NewParentBridge builds the Bridge a nested component reads its
// parent-owned state through.
func NewParentBridge(parent *Engine, routes map[string]string) Bridge {
	return &parentBridge{parent: parent, routes: routes}
}

func (b *parentBridge) StartsWith(pattern string) bool {
	_, ok := b.translate(pattern)
	return ok
}

func (b *parentBridge) translate(pattern string) (string, bool) {
	for child, parent := range b.routes {
		if pattern == child {
			return parent, true
		}
		if strings.HasPrefix(pattern, child+".") {
			return parent + pattern[len(child):], true
		}
	}
	return "", false
}

func (b *parentBridge) target(ref *stateref.Ref) (string, []int, error) {
	pattern, ok := b.translate(ref.Info.Pattern)
	if !ok {
		return "", nil, serr.New("BND-501", "bridge", "pattern is not bridged",
			serr.WithContext("pattern", ref.Info.Pattern))
	}
	li, err := ref.ListIndex()
	if err != nil {
		return "", nil, err
	}
	var indexes []int
	if !li.IsZero() {
		indexes = li.Indexes()
	}
	return pattern, indexes, nil
}

func (b *parentBridge) Get(ref *stateref.Ref) (any, error) {
	pattern, indexes, err := b.target(ref)
	if err != nil {
		return nil, err
	}
	return b.parent.ReadAPI().GetAt(pattern, indexes...)
}

func (b *parentBridge) Set(ref *stateref.Ref, value any) error {
	pattern, indexes, err := b.target(ref)
	if err != nil {
		return err
	}
	return b.parent.Update(func(api *StateAPI) error {
		return api.SetAt(pattern, value, indexes...)
	})
}

func (b *parentBridge) ListIndexes(ref *stateref.Ref) ([]listindex.ListIndex, error) {
	pattern, indexes, err := b.target(ref)
	if err != nil {
		return nil, err
	}
	info, err := path.GetChecked(pattern)
	if err != nil {
		return nil, err
	}
	parent := b.parent
	parent.mu.Lock()
	defer parent.mu.Unlock()
	h := parent.newHandler(false, nil)
	target, err := h.refWithIndexes(info, indexes)
	if err != nil {
		return nil, err
	}
	return parent.listIndexes(h, target)
}
