package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Classes returns the class attribute as a list.
func Classes(n *html.Node) []string {
	raw, _ := Attr(n, "class")
	return strings.Fields(raw)
}

// SetClasses replaces the class attribute with the given list.
func SetClasses(n *html.Node, classes []string) {
	if len(classes) == 0 {
		RemoveAttr(n, "class")
		return
	}
	SetAttr(n, "class", strings.Join(classes, " "))
}

// ToggleClass adds or removes one class name.
func ToggleClass(n *html.Node, name string, on bool) {
	classes := Classes(n)
	idx := -1
	for i, c := range classes {
		if c == name {
			idx = i
			break
		}
	}
	switch {
	case on && idx < 0:
		classes = append(classes, name)
	case !on && idx >= 0:
		classes = append(classes[:idx], classes[idx+1:]...)
	default:
		return
	}
	SetClasses(n, classes)
}

// StyleProperty returns one property from the style attribute.
func StyleProperty(n *html.Node, prop string) string {
	raw, _ := Attr(n, "style")
	for _, decl := range strings.Split(raw, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if ok && strings.TrimSpace(name) == prop {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// SetStyleProperty sets one property in the style attribute, preserving the
// order of the other declarations. An empty value removes the property.
func SetStyleProperty(n *html.Node, prop, value string) {
	raw, _ := Attr(n, "style")
	var decls []string
	replaced := false
	for _, decl := range strings.Split(raw, ";") {
		name, _, ok := strings.Cut(decl, ":")
		if !ok || strings.TrimSpace(name) == "" {
			continue
		}
		if strings.TrimSpace(name) == prop {
			if value != "" && !replaced {
				decls = append(decls, prop+": "+value)
			}
			replaced = true
			continue
		}
		decls = append(decls, strings.TrimSpace(decl))
	}
	if !replaced && value != "" {
		decls = append(decls, prop+": "+value)
	}
	if len(decls) == 0 {
		RemoveAttr(n, "style")
		return
	}
	SetAttr(n, "style", strings.Join(decls, "; "))
}
