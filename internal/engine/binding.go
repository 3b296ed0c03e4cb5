package engine

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/structive/structive-go/internal/path"
	"github.com/structive/structive-go/internal/serr"
	"github.com/structive/structive-go/internal/stateref"
)

// Binding ties one DOM slot to one state slot: the node side knows how to
// apply a value (text, attribute, class, structural template), the state side
// knows how to produce and accept one through its filter chains.
type Binding struct {
	content *BindContent
	node    *html.Node
	expr    *BindingExpr
	state   *StateBinding
	applier NodeApplier
	active  bool
}

// NodeApplier writes one resolved value into the DOM. Structural appliers
// (if, for, component) mount and unmount nested content from Apply.
type NodeApplier interface {
	Apply(b *Binding, value any) error
}

// nodeActivator is implemented by appliers that need lifecycle work beyond
// value application, such as attaching event listeners or tearing down
// nested content.
type nodeActivator interface {
	Activate(b *Binding) error
}

type nodeInactivator interface {
	Inactivate(b *Binding)
}

// newBinding builds the binding for one expression on one resolved node.
func newBinding(content *BindContent, node *html.Node, expr *BindingExpr) (*Binding, error) {
	b := &Binding{content: content, node: node, expr: expr}
	state, err := newStateBinding(b)
	if err != nil {
		return nil, err
	}
	b.state = state
	applier, err := applierFor(b)
	if err != nil {
		return nil, err
	}
	b.applier = applier
	return b, nil
}

// Engine returns the owning engine.
func (b *Binding) Engine() *Engine { return b.content.e }

// LoopContext returns the loop context the binding was instantiated under.
func (b *Binding) LoopContext() *LoopContext { return b.content.lc }

// Activate resolves the state side against the ambient loop context and
// registers the binding for change delivery.
func (b *Binding) Activate() error {
	if b.active {
		return nil
	}
	if err := b.state.resolve(); err != nil {
		return err
	}
	b.content.e.registerBinding(b)
	b.content.e.collector.IncrementBindingActivated()
	if act, ok := b.applier.(nodeActivator); ok {
		if err := act.Activate(b); err != nil {
			return err
		}
	}
	b.active = true
	return nil
}

// Inactivate unregisters the binding and tears down applier state.
func (b *Binding) Inactivate() {
	if !b.active {
		return
	}
	if inact, ok := b.applier.(nodeInactivator); ok {
		inact.Inactivate(b)
	}
	b.content.e.unregisterBinding(b)
	b.active = false
}

// apply reads the current state value through the output filters and hands
// it to the node applier. Callers hold e.mu.
func (b *Binding) apply(h *handler) error {
	value, err := b.state.value(h)
	if err != nil {
		return err
	}
	return b.applier.Apply(b, value)
}

// StateBinding is the state side of a binding: a path pattern resolved
// against the binding's loop context, or a "$n" loop index alias.
type StateBinding struct {
	b          *Binding
	info       *path.Info
	indexLevel int
	ref        *stateref.Ref
	// toNode are the input filters (state to DOM), toState the output
	// filters (DOM back to state).
	toNode  []FilterFn
	toState []FilterFn
}

func newStateBinding(b *Binding) (*StateBinding, error) {
	sb := &StateBinding{b: b, indexLevel: -1}
	prop := b.expr.StateProperty
	if level, ok := parseIndexAlias(prop); ok {
		sb.indexLevel = level
	} else {
		info, err := path.GetChecked(prop)
		if err != nil {
			return nil, err
		}
		sb.info = info
	}
	e := b.content.e
	toNode, err := e.filterChain(b.expr.InputFilters)
	if err != nil {
		return nil, err
	}
	toState, err := e.filterChain(b.expr.OutputFilters)
	if err != nil {
		return nil, err
	}
	sb.toNode, sb.toState = toNode, toState
	return sb, nil
}

// Ref returns the resolved state ref, nil for index-alias bindings or before
// activation.
func (sb *StateBinding) Ref() *stateref.Ref { return sb.ref }

// Pattern returns the bound state pattern, empty for index aliases.
func (sb *StateBinding) Pattern() string {
	if sb.info == nil {
		return ""
	}
	return sb.info.Pattern
}

// resolve interns the concrete ref for the binding's loop context. Index
// handles are stable across list reorders, so a resolved ref survives until
// its element is removed.
func (sb *StateBinding) resolve() error {
	if sb.indexLevel > 0 {
		return nil
	}
	h := sb.b.content.e.newHandler(false, sb.b.content.lc)
	ref, err := h.resolveRef(sb.info.Pattern)
	if err != nil {
		return err
	}
	sb.ref = ref
	return nil
}

// value produces the node-facing value: the state read (or loop index) piped
// through the output filters.
func (sb *StateBinding) value(h *handler) (any, error) {
	var raw any
	if sb.indexLevel > 0 {
		api := &StateAPI{h: sb.b.content.e.newHandler(false, sb.b.content.lc)}
		idx, err := api.indexAt(sb.indexLevel)
		if err != nil {
			return nil, err
		}
		raw = idx
	} else {
		v, err := h.getByRef(sb.ref)
		if err != nil {
			return nil, err
		}
		raw = v
	}
	return applyFilters(sb.toNode, raw)
}

// acceptInput pushes a node-originated value back into state through the
// input filters. Callers run inside a writable update scope.
func (sb *StateBinding) acceptInput(api *StateAPI, raw any) error {
	if sb.indexLevel > 0 {
		return serr.New("BND-501", "binding", "loop index aliases cannot accept input",
			serr.WithContext("property", sb.b.expr.StateProperty))
	}
	value, err := applyFilters(sb.toState, raw)
	if err != nil {
		return err
	}
	return api.h.setByRef(sb.ref, value)
}

// applierFor dispatches the node property name to its applier.
func applierFor(b *Binding) (NodeApplier, error) {
	prop := b.expr.NodeProperty
	switch {
	case prop == "textContent":
		return textApplier{}, nil
	case prop == "if":
		return newIfApplier(), nil
	case prop == "for":
		return newForApplier(), nil
	case prop == "checked":
		return checkboxApplier{}, nil
	case prop == "radio":
		return radioApplier{}, nil
	case prop == "class":
		return classListApplier{}, nil
	case strings.HasPrefix(prop, "class."):
		return classToggleApplier{name: prop[len("class."):]}, nil
	case strings.HasPrefix(prop, "style."):
		return styleApplier{name: prop[len("style."):]}, nil
	case strings.HasPrefix(prop, "attr."):
		return attributeApplier{name: prop[len("attr."):]}, nil
	case strings.HasPrefix(prop, "on"):
		return newEventApplier(prop[len("on"):]), nil
	case strings.HasPrefix(prop, "state."):
		return componentApplier{prop: prop[len("state."):]}, nil
	case prop == "value":
		return propertyApplier{name: "value"}, nil
	default:
		return nil, serr.New("BND-501", "binding", "unknown node property",
			serr.WithContext("property", prop))
	}
}
