// Package pathman maintains the path registry of one component instance:
// which patterns exist, which address lists or list elements, which are
// served by computed getters/setters, the static parent→child dependency
// edges implied by path structure, and the dynamic getter→path edges
// discovered while getters execute. The registry only ever grows.
package pathman

import (
	"sort"
	"sync"

	"github.com/structive/structive-go/internal/path"
)

// Manager is the per-component path registry.
type Manager struct {
	mu       sync.RWMutex
	paths    map[string]struct{}
	lists    map[string]struct{}
	elements map[string]struct{}
	getters  map[string]struct{}
	setters  map[string]struct{}
	// optimized marks patterns that were rewritten onto generated fast
	// accessors at class-analysis time.
	optimized   map[string]struct{}
	staticDeps  map[string]map[string]struct{}
	dynamicDeps map[string]map[string]struct{}
	tree        *path.Tree
}

// New creates an empty manager.
func New() *Manager {
	return &Manager{
		paths:       make(map[string]struct{}),
		lists:       make(map[string]struct{}),
		elements:    make(map[string]struct{}),
		getters:     make(map[string]struct{}),
		setters:     make(map[string]struct{}),
		optimized:   make(map[string]struct{}),
		staticDeps:  make(map[string]map[string]struct{}),
		dynamicDeps: make(map[string]map[string]struct{}),
		tree:        path.NewTree(),
	}
}

// Tree returns the path trie.
func (m *Manager) Tree() *path.Tree { return m.tree }

// AddPath registers pattern, every prefix of it, and the static parent→child
// edges along the chain. Re-adding a known pattern is cheap. The reserved
// word guard applies to the whole pattern only.
func (m *Manager) AddPath(pattern string) error {
	info, err := path.GetChecked(pattern)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addLocked(info)
	return nil
}

func (m *Manager) addLocked(info *path.Info) {
	if _, ok := m.paths[info.Pattern]; ok {
		return
	}
	var parent string
	for _, cumulative := range info.CumulativePaths {
		if _, ok := m.paths[cumulative]; !ok {
			m.paths[cumulative] = struct{}{}
			m.tree.Add(cumulative)
		}
		if parent != "" {
			children, ok := m.staticDeps[parent]
			if !ok {
				children = make(map[string]struct{})
				m.staticDeps[parent] = children
			}
			children[cumulative] = struct{}{}
		}
		ci := path.Get(cumulative)
		if ci.LastSegment == "*" {
			m.elements[cumulative] = struct{}{}
			m.lists[parent] = struct{}{}
		}
		parent = cumulative
	}
}

// AddList marks pattern as a list container, registering it (and its element
// pattern) if needed.
func (m *Manager) AddList(pattern string) error {
	if err := m.AddPath(pattern + ".*"); err != nil {
		return err
	}
	return nil
}

// AddGetter registers a computed-getter pattern.
func (m *Manager) AddGetter(pattern string) error {
	if err := m.AddPath(pattern); err != nil {
		return err
	}
	m.mu.Lock()
	m.getters[pattern] = struct{}{}
	m.mu.Unlock()
	return nil
}

// AddSetter registers a computed-setter pattern.
func (m *Manager) AddSetter(pattern string) error {
	if err := m.AddPath(pattern); err != nil {
		return err
	}
	m.mu.Lock()
	m.setters[pattern] = struct{}{}
	m.mu.Unlock()
	return nil
}

// MarkOptimized records that pattern runs through a generated accessor.
func (m *Manager) MarkOptimized(pattern string) {
	m.mu.Lock()
	m.optimized[pattern] = struct{}{}
	m.mu.Unlock()
}

// AddDynamicDependency records that reading source (a getter) touched
// target, so a change to target may change source. Self edges are dropped.
func (m *Manager) AddDynamicDependency(source, target string) {
	if source == target {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	deps, ok := m.dynamicDeps[target]
	if !ok {
		deps = make(map[string]struct{})
		m.dynamicDeps[target] = deps
	}
	deps[source] = struct{}{}
}

// Has reports whether pattern is registered.
func (m *Manager) Has(pattern string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.paths[pattern]
	return ok
}

// IsList reports whether pattern is a list container.
func (m *Manager) IsList(pattern string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.lists[pattern]
	return ok
}

// IsElement reports whether pattern addresses list elements ("items.*").
func (m *Manager) IsElement(pattern string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.elements[pattern]
	return ok
}

// IsGetter reports whether pattern is served by a computed getter.
func (m *Manager) IsGetter(pattern string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.getters[pattern]
	return ok
}

// IsSetter reports whether pattern accepts writes through a computed setter.
func (m *Manager) IsSetter(pattern string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.setters[pattern]
	return ok
}

// IsOptimized reports whether pattern runs through a generated accessor.
func (m *Manager) IsOptimized(pattern string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.optimized[pattern]
	return ok
}

// StaticChildren returns the direct structural children of pattern, sorted.
func (m *Manager) StaticChildren(pattern string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.staticDeps[pattern])
}

// DynamicDependents returns the getter patterns that were observed reading
// pattern, sorted.
func (m *Manager) DynamicDependents(pattern string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.dynamicDeps[pattern])
}

// Paths returns every registered pattern, sorted.
func (m *Manager) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.paths)
}

// Lists returns every list-container pattern, sorted.
func (m *Manager) Lists() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.lists)
}

// AffectedClosure returns pattern plus every path transitively reachable
// from it through static children and dynamic dependents, in discovery
// order. The updater stamps cache invalidation for exactly this set.
func (m *Manager) AffectedClosure(pattern string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := map[string]struct{}{pattern: {}}
	order := []string{pattern}
	queue := []string{pattern}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range sortedKeys(m.staticDeps[current]) {
			if _, ok := seen[next]; !ok {
				seen[next] = struct{}{}
				order = append(order, next)
				queue = append(queue, next)
			}
		}
		for _, next := range sortedKeys(m.dynamicDeps[current]) {
			if _, ok := seen[next]; !ok {
				seen[next] = struct{}{}
				order = append(order, next)
				queue = append(queue, next)
			}
		}
	}
	return order
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
