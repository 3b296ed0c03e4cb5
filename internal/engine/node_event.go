package engine

import (
	"github.com/structive/structive-go/internal/dom"
	"github.com/structive/structive-go/internal/serr"
)

// eventApplier wires a DOM event to a handler held in state. The handler is
// looked up at dispatch time so replacing it in state needs no re-binding,
// and the loop indexes of the ambient context are forwarded as arguments.
type eventApplier struct {
	eventType string
}

func newEventApplier(eventType string) *eventApplier {
	return &eventApplier{eventType: eventType}
}

// Apply is a no-op: the handler is read from state when the event fires.
func (a *eventApplier) Apply(b *Binding, value any) error { return nil }

func (a *eventApplier) Activate(b *Binding) error {
	e := b.Engine()
	prevent := hasDecorator(b.expr.Decorators, "prevent")
	stop := hasDecorator(b.expr.Decorators, "stop")
	e.events.AddListener(b.node, a.eventType, func(ev *dom.Event) error {
		if prevent {
			ev.PreventDefault()
		}
		if stop {
			ev.StopPropagation()
		}
		return e.updateInContext(b.LoopContext(), func(api *StateAPI) error {
			raw, err := api.h.getByRef(b.state.ref)
			if err != nil {
				return err
			}
			handler, err := asEventHandler(raw, b.expr.StateProperty)
			if err != nil {
				return err
			}
			indexes, err := loopIndexes(b.LoopContext())
			if err != nil {
				return err
			}
			return handler(api, ev, indexes...)
		})
	})
	return nil
}

func (a *eventApplier) Inactivate(b *Binding) {
	b.Engine().events.RemoveNode(b.node)
}

func asEventHandler(raw any, property string) (EventHandler, error) {
	switch fn := raw.(type) {
	case EventHandler:
		return fn, nil
	case func(*StateAPI, *dom.Event, ...int) error:
		return fn, nil
	}
	return nil, serr.New("BND-501", "binding", "event binding target is not a handler",
		serr.WithContext("property", property))
}

// loopIndexes collects the concrete indexes of the context chain, outermost
// first.
func loopIndexes(lc *LoopContext) ([]int, error) {
	var chain []*LoopContext
	for cur := lc; cur != nil; cur = cur.Parent() {
		chain = append(chain, cur)
	}
	indexes := make([]int, 0, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		li, err := chain[i].ListIndex()
		if err != nil {
			return nil, err
		}
		indexes = append(indexes, li.Index())
	}
	return indexes, nil
}

func hasDecorator(decorators []string, name string) bool {
	for _, d := range decorators {
		if d == name {
			return true
		}
	}
	return false
}
