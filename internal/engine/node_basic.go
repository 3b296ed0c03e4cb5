package engine

import (
	"fmt"
	"reflect"

	"golang.org/x/net/html"

	"github.com/structive/structive-go/internal/dom"
)

// toDOMString renders a binding value as DOM text. nil renders empty rather
// than "<nil>".
func toDOMString(value any) string {
	if value == nil {
		return ""
	}
	return fmt.Sprint(value)
}

// truthy mirrors conditional-binding semantics: nil, false, zero numbers and
// empty strings/containers are false, everything else true.
func truthy(value any) bool {
	if value == nil {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v != ""
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() != 0
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// textApplier writes the value into a text node or an element's text
// content. Unchanged values are skipped so patches only carry real changes.
type textApplier struct{}

func (textApplier) Apply(b *Binding, value any) error {
	text := toDOMString(value)
	e := b.Engine()
	if b.node.Type == html.TextNode {
		if b.node.Data == text {
			return nil
		}
		b.node.Data = text
		e.emitPatch("text", b.node, "", text, 0)
		return nil
	}
	if dom.TextContent(b.node) == text {
		return nil
	}
	dom.SetText(b.node, text)
	e.emitPatch("text", b.node, "", text, 0)
	return nil
}

// attributeApplier sets or removes one attribute. nil and false remove it.
type attributeApplier struct {
	name string
}

func (a attributeApplier) Apply(b *Binding, value any) error {
	e := b.Engine()
	if value == nil || value == false {
		if _, ok := dom.Attr(b.node, a.name); ok {
			dom.RemoveAttr(b.node, a.name)
			e.emitPatch("removeAttr", b.node, a.name, "", 0)
		}
		return nil
	}
	text := toDOMString(value)
	if cur, ok := dom.Attr(b.node, a.name); ok && cur == text {
		return nil
	}
	dom.SetAttr(b.node, a.name, text)
	e.emitPatch("attr", b.node, a.name, text, 0)
	return nil
}

// propertyApplier handles two-way form properties ("value"): state drives
// the attribute, and "input" events push the node value back through the
// output filters.
type propertyApplier struct {
	name string
}

func (p propertyApplier) Apply(b *Binding, value any) error {
	return attributeApplier{name: p.name}.Apply(b, value)
}

func (p propertyApplier) Activate(b *Binding) error {
	e := b.Engine()
	e.events.AddListener(b.node, "input", func(ev *dom.Event) error {
		return e.updateInContext(b.LoopContext(), func(api *StateAPI) error {
			return b.state.acceptInput(api, ev.Value)
		})
	})
	return nil
}

func (p propertyApplier) Inactivate(b *Binding) {
	b.Engine().events.RemoveNode(b.node)
}
