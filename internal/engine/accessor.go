package engine

import (
	"github.com/structive/structive-go/internal/listindex"
	"github.com/structive/structive-go/internal/path"
	"github.com/structive/structive-go/internal/serr"
	"github.com/structive/structive-go/internal/stateref"
)

// handler is the state accessor for one scope: a writable mutation scope, a
// read-only render pass, or an external read view. It owns the reentrant
// ref stack that getter invocations push onto, which is what makes wildcard
// context and dynamic-dependency discovery work inside computed properties.
//
// handler methods assume e.mu is held; the public StateAPI wrapper takes the
// lock for external callers.
type handler struct {
	e        *Engine
	writable bool
	// external marks handlers whose StateAPI entry points must acquire
	// e.mu themselves (views handed out by ReadAPI).
	external bool
	lc       *LoopContext
	refStack []*stateref.Ref
}

func (e *Engine) newHandler(writable bool, lc *LoopContext) *handler {
	return &handler{e: e, writable: writable, lc: lc}
}

// invokeScoped runs fn against a non-external view of this handler. Getter,
// setter and handler bodies execute under the engine lock their entry point
// already took, so the nested reads they make must not re-acquire it.
func (h *handler) invokeScoped(fn func(api *StateAPI) error) error {
	ext := h.external
	h.external = false
	defer func() { h.external = ext }()
	return fn(&StateAPI{h: h})
}

// currentRef returns the innermost ref being evaluated, nil outside getter
// or setter execution.
func (h *handler) currentRef() *stateref.Ref {
	if len(h.refStack) == 0 {
		return nil
	}
	return h.refStack[len(h.refStack)-1]
}

// withRef pushes ref for the duration of fn so nested reads resolve their
// wildcard context against it. The stack is bounded; blowing past the bound
// means a computed-property cycle.
func (h *handler) withRef(ref *stateref.Ref, fn func() error) error {
	if len(h.refStack) >= h.e.config.RefStackDepth {
		return serr.New("STC-006", "state", "ref stack overflow, computed property cycle suspected",
			serr.WithContext("pattern", ref.Info.Pattern),
			serr.WithContext("depth", len(h.refStack)))
	}
	h.refStack = append(h.refStack, ref)
	defer func() {
		h.refStack = h.refStack[:len(h.refStack)-1]
	}()
	return fn()
}

// contextListIndex finds the list index a context-mode path needs, searching
// the ambient loop context first and the ref stack second.
func (h *handler) contextListIndex(info *path.Info) (listindex.ListIndex, error) {
	wildcardPath := info.LastWildcardPath
	if h.lc != nil {
		if lc := h.lc.Find(wildcardPath); lc != nil {
			li, err := lc.ListIndex()
			if err != nil {
				return listindex.ListIndex{}, err
			}
			return li, nil
		}
	}
	if top := h.currentRef(); top != nil && top.HasIndex() {
		if _, ok := top.Info.WildcardPathSet[wildcardPath]; ok {
			li, err := top.ListIndex()
			if err != nil {
				return listindex.ListIndex{}, err
			}
			level := top.Info.IndexByWildcardPath[wildcardPath]
			if resolved := li.At(level); !resolved.IsZero() {
				return resolved, nil
			}
		}
	}
	return listindex.ListIndex{}, serr.New("LIST-201", "state",
		"no list index in scope for wildcard path",
		serr.WithContext("pattern", info.Pattern),
		serr.WithContext("wildcard", wildcardPath))
}

// resolveRef turns an access string into an interned ref, deriving the list
// index chain from the ambient context (context mode) or by hierarchical
// traversal of literal indexes (all mode).
func (h *handler) resolveRef(accessPath string) (*stateref.Ref, error) {
	resolved, err := path.Resolve(accessPath)
	if err != nil {
		return nil, err
	}
	info := resolved.Info
	switch resolved.Mode {
	case path.ModeNone:
		return h.e.refs.Intern(info, listindex.ListIndex{}), nil

	case path.ModeContext:
		li, err := h.contextListIndex(info)
		if err != nil {
			return nil, err
		}
		return h.e.refs.Intern(info, li), nil

	case path.ModeAll:
		li := listindex.ListIndex{}
		for level, idx := range resolved.WildcardIndexes {
			parentPattern := info.WildcardParentPaths[level]
			listRef := h.e.refs.Intern(path.Get(parentPattern), li)
			indexes, err := h.e.listIndexes(h, listRef)
			if err != nil {
				return nil, err
			}
			if idx < 0 || idx >= len(indexes) {
				return nil, serr.New("LIST-203", "state", "list index out of range",
					serr.WithContext("pattern", info.Pattern),
					serr.WithContext("list", parentPattern),
					serr.WithContext("index", idx),
					serr.WithContext("length", len(indexes)))
			}
			li = indexes[idx]
		}
		return h.e.refs.Intern(info, li), nil
	}
	return nil, serr.New("PTH-102", "state", "unsupported wildcard resolution mode",
		serr.WithContext("path", accessPath))
}

// getByRef reads one concrete state slot: dependency recording, cache
// lookup, bridge delegation, getter invocation or the raw walk, in that
// order.
func (h *handler) getByRef(ref *stateref.Ref) (any, error) {
	pattern := ref.Info.Pattern
	e := h.e

	// A getter currently on the stack depends on whatever it reads.
	if top := h.currentRef(); top != nil && e.pm.IsGetter(top.Info.Pattern) {
		e.pm.AddDynamicDependency(top.Info.Pattern, pattern)
	}

	cacheable := ref.Info.WildcardCount > 0 || e.pm.IsGetter(pattern)
	if cacheable {
		if v, ok := e.cacheGet(ref); ok {
			return v, nil
		}
	}

	if e.bridge != nil && e.bridge.StartsWith(pattern) && !e.pm.IsGetter(pattern) {
		return e.bridge.Get(ref)
	}

	if getter, ok := e.class.Getters[pattern]; ok {
		var value any
		err := h.withRef(ref, func() error {
			return h.invokeScoped(func(api *StateAPI) error {
				var gerr error
				value, gerr = getter(api)
				return gerr
			})
		})
		if err != nil {
			return nil, err
		}
		if cacheable {
			e.cacheStore(ref, value)
		}
		return value, nil
	}

	value, err := h.rawGet(ref)
	if err != nil {
		return nil, err
	}
	if cacheable {
		e.cacheStore(ref, value)
	}
	return value, nil
}

// rawGet walks the state tree for paths not served by a getter or bridge.
func (h *handler) rawGet(ref *stateref.Ref) (any, error) {
	indexes, err := h.refIndexes(ref)
	if err != nil {
		return nil, err
	}
	if acc, ok := h.e.accessors[ref.Info.Pattern]; ok {
		if v, ok := acc.get(h.e.state, indexes); ok {
			return v, nil
		}
	} else if v, ok := walkGet(h.e.state, ref.Info.Segments, indexes); ok {
		return v, nil
	}
	return nil, serr.New("STC-001", "state", "property not present on state target",
		serr.WithContext("pattern", ref.Info.Pattern),
		serr.WithContext("ref", ref.String()))
}

// refIndexes extracts the cumulative numeric indexes the ref's wildcard
// levels need.
func (h *handler) refIndexes(ref *stateref.Ref) ([]int, error) {
	if ref.Info.WildcardCount == 0 {
		return nil, nil
	}
	li, err := ref.ListIndex()
	if err != nil {
		return nil, err
	}
	if li.IsZero() {
		return nil, serr.New("LIST-201", "state",
			"ref carries no list index for its wildcard levels",
			serr.WithContext("pattern", ref.Info.Pattern))
	}
	return li.Indexes(), nil
}

// setByRef writes one concrete state slot and enqueues the ref for the next
// render batch. The enqueue happens only on the success path.
func (h *handler) setByRef(ref *stateref.Ref, value any) error {
	if !h.writable {
		return serr.New("STC-002", "state", "write attempted through a read-only state view",
			serr.WithContext("pattern", ref.Info.Pattern))
	}
	e := h.e
	pattern := ref.Info.Pattern

	switch {
	case e.bridge != nil && e.bridge.StartsWith(pattern) && !e.pm.IsSetter(pattern):
		if err := e.bridge.Set(ref, value); err != nil {
			return err
		}

	case e.pm.IsSetter(pattern):
		setter := e.class.Setters[pattern]
		if err := h.withRef(ref, func() error {
			return h.invokeScoped(func(api *StateAPI) error {
				return setter(api, value)
			})
		}); err != nil {
			return err
		}

	case e.pm.IsGetter(pattern):
		return serr.New("STC-004", "state", "path is getter-only and cannot be written",
			serr.WithContext("pattern", pattern))

	default:
		var parentRef *stateref.Ref
		if ref.Info.LastSegment == "*" {
			// Snapshot the parent list before a list-element write so the
			// renderer can tell swaps from replacements.
			var err error
			parentRef, err = e.refs.Parent(ref)
			if err != nil {
				return err
			}
			e.snapshotSwap(h, parentRef)
		}
		if err := h.rawSet(ref, value); err != nil {
			return err
		}
		if parentRef != nil {
			// The list binding reconciles element order and identity once
			// the batch renders.
			e.ensureUpdater().enqueueRef(parentRef)
		}
	}

	e.ensureUpdater().enqueueRef(ref)
	return nil
}

// rawSet performs the structural write: through the generated accessor when
// one exists, otherwise recursing to the parent container and assigning the
// final segment.
func (h *handler) rawSet(ref *stateref.Ref, value any) error {
	indexes, err := h.refIndexes(ref)
	if err != nil {
		return err
	}
	if acc, ok := h.e.accessors[ref.Info.Pattern]; ok {
		if acc.set(h.e.state, indexes, value) {
			return nil
		}
	} else if walkSet(h.e.state, ref.Info.Segments, indexes, value) {
		return nil
	}
	return serr.New("STC-001", "state", "property not present on state target",
		serr.WithContext("pattern", ref.Info.Pattern),
		serr.WithContext("ref", ref.String()))
}
