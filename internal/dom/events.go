package dom

import (
	"sync"

	"golang.org/x/net/html"
)

// Event is an in-process DOM event. Two-way bindings and event bindings
// receive it when test code or transport adapters dispatch against a node.
type Event struct {
	Type   string
	Target *html.Node
	// Value carries the input payload for value/checked style events.
	Value any

	defaultPrevented   bool
	propagationStopped bool
}

// PreventDefault marks the event's default action as suppressed.
func (e *Event) PreventDefault() { e.defaultPrevented = true }

// DefaultPrevented reports whether PreventDefault was called.
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

// StopPropagation stops the event from bubbling to ancestor nodes.
func (e *Event) StopPropagation() { e.propagationStopped = true }

// PropagationStopped reports whether StopPropagation was called.
func (e *Event) PropagationStopped() bool { return e.propagationStopped }

// Handler consumes one event. Returned errors surface to the dispatcher.
type Handler func(*Event) error

// EventRegistry tracks listeners per (node, event type). One registry exists
// per mounted component tree.
type EventRegistry struct {
	mu        sync.Mutex
	listeners map[*html.Node]map[string][]Handler
}

// NewEventRegistry creates an empty registry.
func NewEventRegistry() *EventRegistry {
	return &EventRegistry{listeners: make(map[*html.Node]map[string][]Handler)}
}

// AddListener registers a handler for an event type on node.
func (r *EventRegistry) AddListener(node *html.Node, eventType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byType, ok := r.listeners[node]
	if !ok {
		byType = make(map[string][]Handler)
		r.listeners[node] = byType
	}
	byType[eventType] = append(byType[eventType], h)
}

// RemoveNode drops every listener registered on node.
func (r *EventRegistry) RemoveNode(node *html.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.listeners, node)
}

// Dispatch delivers an event to the target node and bubbles it through the
// ancestor chain until stopped. The first handler error aborts dispatch.
func (r *EventRegistry) Dispatch(ev *Event) error {
	for node := ev.Target; node != nil; node = node.Parent {
		r.mu.Lock()
		handlers := append([]Handler(nil), r.listeners[node][ev.Type]...)
		r.mu.Unlock()
		for _, h := range handlers {
			if err := h(ev); err != nil {
				return err
			}
			if ev.PropagationStopped() {
				return nil
			}
		}
		if ev.PropagationStopped() {
			return nil
		}
	}
	return nil
}
