package engine

import (
	"strconv"
	"strings"

	"github.com/structive/structive-go/internal/dom"
	"github.com/structive/structive-go/internal/listindex"
	"github.com/structive/structive-go/internal/path"
	"github.com/structive/structive-go/internal/serr"
	"github.com/structive/structive-go/internal/stateref"
)

// StateAPI is the state surface handed to update callbacks, getters, setters,
// event handlers and the OnUpdated hook. A writable API is only valid inside
// the callback it was handed to; read views from Engine.ReadAPI lock the
// engine per call and stay valid for the engine's lifetime.
type StateAPI struct {
	h *handler
}

// enter takes the engine lock for externally held views. Scoped APIs run
// under the lock of their enclosing update or render already.
func (api *StateAPI) enter() func() {
	if api.h.external {
		api.h.e.mu.Lock()
		return api.h.e.mu.Unlock
	}
	return func() {}
}

// Get reads the value at an access path. Wildcards resolve against the
// ambient loop context; "$1".."$n" aliases read the loop index itself.
func (api *StateAPI) Get(accessPath string) (any, error) {
	defer api.enter()()
	if level, ok := parseIndexAlias(accessPath); ok {
		return api.indexAt(level)
	}
	ref, err := api.h.resolveRef(accessPath)
	if err != nil {
		return nil, err
	}
	return api.h.getByRef(ref)
}

// Set writes the value at an access path and schedules the affected bindings
// for the next batch.
func (api *StateAPI) Set(accessPath string, value any) error {
	defer api.enter()()
	if _, ok := parseIndexAlias(accessPath); ok {
		return serr.New("STC-005", "state", "loop index aliases are read-only",
			serr.WithContext("path", accessPath))
	}
	ref, err := api.h.resolveRef(accessPath)
	if err != nil {
		return err
	}
	return api.h.setByRef(ref, value)
}

// Index returns the loop index at the given nesting level, 1 being the
// outermost enclosing loop.
func (api *StateAPI) Index(level int) (int, error) {
	defer api.enter()()
	return api.indexAt(level)
}

func (api *StateAPI) indexAt(level int) (int, error) {
	if level < 1 || level > api.h.e.config.MaxLoopDepth {
		return 0, serr.New("LIST-201", "state", "loop index level out of range",
			serr.WithContext("level", level))
	}
	var chain []*LoopContext
	for lc := api.h.lc; lc != nil; lc = lc.Parent() {
		chain = append(chain, lc)
	}
	if level > len(chain) {
		return 0, serr.New("LIST-201", "state", "no enclosing loop at requested level",
			serr.WithContext("level", level),
			serr.WithContext("depth", len(chain)))
	}
	// chain is innermost-first.
	li, err := chain[len(chain)-level].ListIndex()
	if err != nil {
		return 0, err
	}
	return li.Index(), nil
}

// GetAt reads a wildcard pattern at explicit indexes, one per wildcard level.
func (api *StateAPI) GetAt(pattern string, indexes ...int) (any, error) {
	defer api.enter()()
	info, err := path.GetChecked(pattern)
	if err != nil {
		return nil, err
	}
	ref, err := api.h.refWithIndexes(info, indexes)
	if err != nil {
		return nil, err
	}
	return api.h.getByRef(ref)
}

// SetAt writes a wildcard pattern at explicit indexes.
func (api *StateAPI) SetAt(pattern string, value any, indexes ...int) error {
	defer api.enter()()
	info, err := path.GetChecked(pattern)
	if err != nil {
		return err
	}
	ref, err := api.h.refWithIndexes(info, indexes)
	if err != nil {
		return err
	}
	return api.h.setByRef(ref, value)
}

// GetAll reads every concrete slot a wildcard pattern covers. Leading
// indexes, when given, pin the outer wildcard levels; the remaining levels
// expand over every element.
func (api *StateAPI) GetAll(pattern string, indexes ...int) ([]any, error) {
	defer api.enter()()
	info, err := path.GetChecked(pattern)
	if err != nil {
		return nil, err
	}
	if len(indexes) > info.WildcardCount {
		return nil, serr.New("LIST-203", "state", "more indexes than wildcard levels",
			serr.WithContext("pattern", pattern),
			serr.WithContext("indexes", len(indexes)),
			serr.WithContext("wildcards", info.WildcardCount))
	}
	out := []any{}
	err = api.h.eachRef(info, indexes, 0, listindex.ListIndex{}, func(ref *stateref.Ref) error {
		v, err := api.h.getByRef(ref)
		if err != nil {
			return err
		}
		out = append(out, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Resolve canonicalizes an access path, with explicit indexes when given,
// into its concrete "pattern#i.j" form. Useful for logging and for keys into
// application-side maps.
func (api *StateAPI) Resolve(accessPath string, indexes ...int) (string, error) {
	defer api.enter()()
	if len(indexes) > 0 {
		info, err := path.GetChecked(accessPath)
		if err != nil {
			return "", err
		}
		ref, err := api.h.refWithIndexes(info, indexes)
		if err != nil {
			return "", err
		}
		return ref.String(), nil
	}
	ref, err := api.h.resolveRef(accessPath)
	if err != nil {
		return "", err
	}
	return ref.String(), nil
}

// Invoke reads the handler stored at an access path and calls it. Loop
// indexes of the ambient context are forwarded, matching event dispatch.
func (api *StateAPI) Invoke(accessPath string, ev *dom.Event) error {
	defer api.enter()()
	ref, err := api.h.resolveRef(accessPath)
	if err != nil {
		return err
	}
	value, err := api.h.getByRef(ref)
	if err != nil {
		return err
	}
	fn, err := asEventHandler(value, ref.Info.Pattern)
	if err != nil {
		return err
	}
	indexes, err := loopIndexes(api.h.lc)
	if err != nil {
		return err
	}
	return api.h.invokeScoped(func(inner *StateAPI) error {
		return fn(inner, ev, indexes...)
	})
}

// Wrap binds fn to a fresh writable update scope carrying the current loop
// context, for use from goroutines and timers the callback spawns.
func (api *StateAPI) Wrap(fn func(api *StateAPI) error) func() error {
	e := api.h.e
	lc := api.h.lc
	return func() error {
		return e.updateInContext(lc, fn)
	}
}

// TrackDependency records an explicit dynamic dependency from the getter
// currently executing to pattern. Outside a getter it is a no-op.
func (api *StateAPI) TrackDependency(pattern string) error {
	defer api.enter()()
	if _, err := path.GetChecked(pattern); err != nil {
		return err
	}
	if top := api.h.currentRef(); top != nil && api.h.e.pm.IsGetter(top.Info.Pattern) {
		api.h.e.pm.AddDynamicDependency(top.Info.Pattern, pattern)
	}
	return nil
}

// Navigate invokes the configured navigator.
func (api *StateAPI) Navigate(to string) error {
	e := api.h.e
	if e.navigator == nil {
		return serr.New("CFG-002", "engine", "no navigator configured",
			serr.WithContext("to", to))
	}
	return e.navigator(to)
}

// Component returns the host object of the component instance, nil when none
// was configured.
func (api *StateAPI) Component() any { return api.h.e.host }

// UpdateComplete returns the engine's settle channel for the current batch
// session.
func (api *StateAPI) UpdateComplete() <-chan struct{} {
	return api.h.e.UpdateComplete()
}

// refWithIndexes builds a ref for a wildcard pattern from explicit indexes,
// traversing list levels outermost-in so each index handle carries its full
// ancestry.
func (h *handler) refWithIndexes(info *path.Info, indexes []int) (*stateref.Ref, error) {
	if len(indexes) < info.WildcardCount {
		return nil, serr.New("LIST-201", "state", "missing indexes for wildcard levels",
			serr.WithContext("pattern", info.Pattern),
			serr.WithContext("indexes", len(indexes)),
			serr.WithContext("wildcards", info.WildcardCount))
	}
	li := listindex.ListIndex{}
	for level := 0; level < info.WildcardCount; level++ {
		parentPattern := info.WildcardParentPaths[level]
		listRef := h.e.refs.Intern(path.Get(parentPattern), li)
		all, err := h.e.listIndexes(h, listRef)
		if err != nil {
			return nil, err
		}
		idx := indexes[level]
		if idx < 0 || idx >= len(all) {
			return nil, serr.New("LIST-203", "state", "list index out of range",
				serr.WithContext("pattern", info.Pattern),
				serr.WithContext("list", parentPattern),
				serr.WithContext("index", idx),
				serr.WithContext("length", len(all)))
		}
		li = all[idx]
	}
	return h.e.refs.Intern(info, li), nil
}

// eachRef visits every concrete ref a pattern covers, pinning levels that
// have a given index and fanning out over the rest.
func (h *handler) eachRef(info *path.Info, given []int, level int, li listindex.ListIndex, visit func(*stateref.Ref) error) error {
	if level == info.WildcardCount {
		return visit(h.e.refs.Intern(info, li))
	}
	parentPattern := info.WildcardParentPaths[level]
	listRef := h.e.refs.Intern(path.Get(parentPattern), li)
	all, err := h.e.listIndexes(h, listRef)
	if err != nil {
		return err
	}
	if level < len(given) {
		idx := given[level]
		if idx < 0 || idx >= len(all) {
			return serr.New("LIST-203", "state", "list index out of range",
				serr.WithContext("pattern", info.Pattern),
				serr.WithContext("list", parentPattern),
				serr.WithContext("index", idx),
				serr.WithContext("length", len(all)))
		}
		return h.eachRef(info, given, level+1, all[idx], visit)
	}
	for _, next := range all {
		if err := h.eachRef(info, given, level+1, next, visit); err != nil {
			return err
		}
	}
	return nil
}

// parseIndexAlias recognizes the "$1".."$n" loop index aliases.
func parseIndexAlias(accessPath string) (int, bool) {
	rest, ok := strings.CutPrefix(accessPath, "$")
	if !ok || rest == "" {
		return 0, false
	}
	level, err := strconv.Atoi(rest)
	if err != nil || level < 1 {
		return 0, false
	}
	return level, true
}
