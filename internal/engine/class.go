package engine

import (
	"github.com/structive/structive-go/internal/dom"
	"github.com/structive/structive-go/internal/listindex"
	"github.com/structive/structive-go/internal/pathman"
)

// Getter computes a derived value. Reads made through the api are recorded
// as dynamic dependencies of the getter's own path.
type Getter func(api *StateAPI) (any, error)

// Setter accepts a write to a computed path.
type Setter func(api *StateAPI, value any) error

// EventHandler is the value type stored in state for event-bound paths.
// Loop indexes of the binding's ambient context are forwarded as extra
// arguments.
type EventHandler func(api *StateAPI, ev *dom.Event, indexes ...int) error

// Change describes one state slot that changed during a batch, as handed to
// the OnUpdated hook.
type Change struct {
	Pattern string
	Indexes []int
}

// StateClass describes one component type: its initial state shape, its
// computed properties and its update hook. Instances of the class are
// engines; the class itself is never mutated after registration.
type StateClass struct {
	Name string
	// Init is the initial state tree. It is deep-copied per instance.
	Init map[string]any
	// Getters maps path patterns to computed getters. Patterns may
	// contain wildcards ("items.*.total").
	Getters map[string]Getter
	// Setters maps path patterns to computed setters.
	Setters map[string]Setter
	// Lists declares list-container paths that cannot be discovered from
	// Init (typically getter-backed lists).
	Lists []string
	// OnUpdated, when set, runs after each batch settles with the set of
	// changed paths and their loop indexes.
	OnUpdated func(api *StateAPI, changes []Change) error
}

// analyzeClass reflects over the class and builds the per-instance path
// registry: every path reachable in Init, the declared lists, and the
// getter/setter patterns.
func analyzeClass(class *StateClass) (*pathman.Manager, error) {
	pm := pathman.New()
	if err := registerValuePaths(pm, "", class.Init); err != nil {
		return nil, err
	}
	for _, pattern := range class.Lists {
		if err := pm.AddList(pattern); err != nil {
			return nil, err
		}
	}
	for pattern := range class.Getters {
		if err := pm.AddGetter(pattern); err != nil {
			return nil, err
		}
	}
	for pattern := range class.Setters {
		if err := pm.AddSetter(pattern); err != nil {
			return nil, err
		}
	}
	return pm, nil
}

// registerValuePaths walks a state value and registers the paths it implies.
// Lists register their element pattern and are probed through their first
// element, mirroring how the original reflects over a state prototype.
func registerValuePaths(pm *pathman.Manager, prefix string, value any) error {
	switch v := value.(type) {
	case map[string]any:
		for key, child := range v {
			pattern := key
			if prefix != "" {
				pattern = prefix + "." + key
			}
			if err := pm.AddPath(pattern); err != nil {
				return err
			}
			if err := registerValuePaths(pm, pattern, child); err != nil {
				return err
			}
		}
	default:
		if list := listindex.Normalize(value); list != nil {
			if prefix == "" {
				return nil
			}
			if err := pm.AddList(prefix); err != nil {
				return err
			}
			if len(list) > 0 {
				if err := registerValuePaths(pm, prefix+".*", list[0]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// deepCopyState copies the initial state tree so instances never share
// mutable containers with the class.
func deepCopyState(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = deepCopyState(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = deepCopyState(child)
		}
		return out
	default:
		return v
	}
}
