package engine

import (
	"fmt"

	"github.com/structive/structive-go/internal/dom"
	"github.com/structive/structive-go/internal/serr"
)

// checkboxApplier binds a checkbox group to a list value: the box is checked
// when its value attribute is a member of the bound list, and toggling it
// adds or removes the membership. A non-list value is a binding contract
// violation.
type checkboxApplier struct{}

// checkboxList rejects anything that is not a []any list.
func checkboxList(b *Binding, value any) ([]any, error) {
	list, ok := value.([]any)
	if !ok {
		return nil, serr.New("BND-504", "binding", "checkbox binding requires a list",
			serr.WithContext("property", b.expr.StateProperty),
			serr.WithContext("got", fmt.Sprintf("%T", value)))
	}
	return list, nil
}

func (checkboxApplier) Apply(b *Binding, value any) error {
	list, err := checkboxList(b, value)
	if err != nil {
		return err
	}
	own, _ := dom.Attr(b.node, "value")
	checked := false
	for _, item := range list {
		if toDOMString(item) == own {
			checked = true
			break
		}
	}
	return setChecked(b, checked)
}

func (checkboxApplier) Activate(b *Binding) error {
	e := b.Engine()
	e.events.AddListener(b.node, "change", func(ev *dom.Event) error {
		return e.updateInContext(b.LoopContext(), func(api *StateAPI) error {
			current, err := api.h.getByRef(b.state.ref)
			if err != nil {
				return err
			}
			list, err := checkboxList(b, current)
			if err != nil {
				return err
			}
			own, _ := dom.Attr(b.node, "value")
			next := make([]any, 0, 4)
			found := false
			for _, item := range list {
				if toDOMString(item) == own {
					found = true
					continue
				}
				next = append(next, item)
			}
			if !found {
				next = append(next, own)
			}
			return b.state.acceptInput(api, next)
		})
	})
	return nil
}

func (checkboxApplier) Inactivate(b *Binding) {
	b.Engine().events.RemoveNode(b.node)
}

// radioApplier binds a radio button to a scalar: checked when the state value
// equals the value attribute, and selecting it writes that value back.
type radioApplier struct{}

func (radioApplier) Apply(b *Binding, value any) error {
	own, _ := dom.Attr(b.node, "value")
	return setChecked(b, toDOMString(value) == own)
}

func (radioApplier) Activate(b *Binding) error {
	e := b.Engine()
	e.events.AddListener(b.node, "change", func(ev *dom.Event) error {
		return e.updateInContext(b.LoopContext(), func(api *StateAPI) error {
			own, _ := dom.Attr(b.node, "value")
			return b.state.acceptInput(api, own)
		})
	})
	return nil
}

func (radioApplier) Inactivate(b *Binding) {
	b.Engine().events.RemoveNode(b.node)
}

func setChecked(b *Binding, on bool) error {
	_, has := dom.Attr(b.node, "checked")
	if has == on {
		return nil
	}
	if on {
		dom.SetAttr(b.node, "checked", "")
		b.Engine().emitPatch("attr", b.node, "checked", "", 0)
		return nil
	}
	dom.RemoveAttr(b.node, "checked")
	b.Engine().emitPatch("removeAttr", b.node, "checked", "", 0)
	return nil
}
