package engine

import (
	"fmt"

	"github.com/structive/structive-go/internal/serr"
)

// ifApplier mounts or unmounts a nested template on its bound boolean. The
// content is built once and pooled across toggles; its bindings re-resolve on
// every activation. Non-boolean values are a binding contract violation, not
// a truthiness question.
type ifApplier struct {
	content *BindContent
	shown   bool
}

func newIfApplier() *ifApplier { return &ifApplier{} }

func (a *ifApplier) Apply(b *Binding, value any) error {
	show, ok := value.(bool)
	if !ok {
		return serr.New("BND-504", "binding", "conditional binding requires a boolean",
			serr.WithContext("property", b.expr.StateProperty),
			serr.WithContext("got", fmt.Sprintf("%T", value)))
	}
	if show == a.shown {
		return nil
	}
	e := b.Engine()
	if !show {
		a.content.Inactivate()
		a.content.Unmount()
		a.shown = false
		return nil
	}
	if a.content == nil {
		content, err := newBindContent(e, b.expr.SubTemplateID, b.LoopContext())
		if err != nil {
			return err
		}
		a.content = content
	}
	// The anchor comment stays in place; content mounts just before it.
	a.content.Mount(b.node.Parent, b.node)
	if err := a.content.Activate(); err != nil {
		return err
	}
	a.shown = true
	h := e.newHandler(false, b.LoopContext())
	return a.content.applyAll(h)
}

func (a *ifApplier) Inactivate(b *Binding) {
	if a.content == nil || !a.shown {
		return
	}
	a.content.Inactivate()
	a.content.Unmount()
	a.shown = false
}
