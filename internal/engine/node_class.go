package engine

import (
	"fmt"
	"strings"

	"github.com/structive/structive-go/internal/dom"
	"github.com/structive/structive-go/internal/serr"
)

// classToggleApplier adds or removes a single class by truthiness
// ("class.done: items.*.completed").
type classToggleApplier struct {
	name string
}

func (a classToggleApplier) Apply(b *Binding, value any) error {
	on := truthy(value)
	classes := dom.Classes(b.node)
	has := false
	for _, c := range classes {
		if c == a.name {
			has = true
			break
		}
	}
	if has == on {
		return nil
	}
	dom.ToggleClass(b.node, a.name, on)
	cls, _ := dom.Attr(b.node, "class")
	b.Engine().emitPatch("attr", b.node, "class", cls, 0)
	return nil
}

// classListApplier replaces the whole class attribute from a list or a
// space-separated string value. Anything else is a binding contract
// violation.
type classListApplier struct{}

func (classListApplier) Apply(b *Binding, value any) error {
	var classes []string
	switch v := value.(type) {
	case []any:
		for _, item := range v {
			classes = append(classes, toDOMString(item))
		}
	case string:
		classes = strings.Fields(v)
	default:
		return serr.New("BND-504", "binding", "class binding requires a list or string",
			serr.WithContext("property", b.expr.StateProperty),
			serr.WithContext("got", fmt.Sprintf("%T", value)))
	}
	next := strings.Join(classes, " ")
	cur, _ := dom.Attr(b.node, "class")
	if cur == next {
		return nil
	}
	dom.SetClasses(b.node, classes)
	b.Engine().emitPatch("attr", b.node, "class", next, 0)
	return nil
}

// styleApplier sets one style declaration; empty values remove it.
type styleApplier struct {
	name string
}

func (a styleApplier) Apply(b *Binding, value any) error {
	next := toDOMString(value)
	if dom.StyleProperty(b.node, a.name) == next {
		return nil
	}
	dom.SetStyleProperty(b.node, a.name, next)
	style, _ := dom.Attr(b.node, "style")
	b.Engine().emitPatch("attr", b.node, "style", style, 0)
	return nil
}
