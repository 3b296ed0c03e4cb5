// Package structive is a fine-grained reactive data-binding runtime. It
// compiles HTML templates into binding records, tracks structured state paths
// with stable list-index identity, and applies minimal DOM mutations when
// state changes. The reactive core lives under internal/; this package is the
// template compiler, the filter library, configuration and the component and
// mount surfaces.
package structive

import (
	"strconv"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/structive/structive-go/internal/dom"
	"github.com/structive/structive-go/internal/engine"
	"github.com/structive/structive-go/internal/serr"
)

// Registry holds compiled templates and hands them to engines by id.
type Registry struct {
	mu        sync.RWMutex
	templates map[int]*engine.Template
	nextID    int
}

// NewRegistry creates an empty template registry.
func NewRegistry() *Registry {
	return &Registry{templates: make(map[int]*engine.Template)}
}

// Template implements the engine's template store.
func (r *Registry) Template(id int) (*engine.Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[id]
	return t, ok
}

func (r *Registry) add(t *engine.Template) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	t.ID = r.nextID
	r.templates[t.ID] = t
	return t.ID
}

// Compile parses component markup into binding records and registers the
// resulting templates, returning the root template id.
//
// Three directive forms are rewritten:
//
//	{{path|filter,...}}              text interpolation, becomes an "@@:" comment
//	data-bind="prop:path;..."        bindings on the carrying element
//	<template data-bind="for:path">  nested template, becomes an "@@|id" comment
//
// Nested templates compile depth-first, so a sub template's id is already
// assigned when its placeholder record is written.
func (r *Registry) Compile(markup string) (int, error) {
	nodes, err := dom.ParseFragment(markup)
	if err != nil {
		return 0, serr.New("BND-502", "template", "markup does not parse",
			serr.WithCause(err))
	}
	container := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	for _, n := range nodes {
		container.AppendChild(n)
	}
	return r.compileContainer(container)
}

type pendingRecord struct {
	node  *html.Node
	exprs []engine.BindingExpr
}

func (r *Registry) compileContainer(container *html.Node) (int, error) {
	var pending []pendingRecord
	if err := r.transform(container, &pending); err != nil {
		return 0, err
	}
	t := &engine.Template{Content: container}
	for _, p := range pending {
		nodePath := dom.NodePathOf(container, p.node)
		if nodePath == nil {
			return 0, serr.New("BND-502", "template", "record node detached during compile")
		}
		t.Records = append(t.Records, engine.NodeRecord{NodePath: nodePath, Exprs: p.exprs})
	}
	return r.add(t), nil
}

func (r *Registry) transform(parent *html.Node, pending *[]pendingRecord) error {
	for child := parent.FirstChild; child != nil; {
		next := child.NextSibling
		switch {
		case dom.IsElement(child, "template"):
			if err := r.compileNested(parent, child, pending); err != nil {
				return err
			}

		case child.Type == html.ElementNode:
			if src, ok := dom.Attr(child, "data-bind"); ok {
				exprs, err := ParseBindings(src)
				if err != nil {
					return err
				}
				dom.RemoveAttr(child, "data-bind")
				*pending = append(*pending, pendingRecord{node: child, exprs: exprs})
			}
			if err := r.transform(child, pending); err != nil {
				return err
			}

		case child.Type == html.TextNode && strings.Contains(child.Data, "{{"):
			if err := expandMustaches(parent, child, pending); err != nil {
				return err
			}
		}
		child = next
	}
	return nil
}

// compileNested lifts a <template data-bind="..."> element out of the tree:
// its children become a sub template and the element itself is replaced by a
// placeholder comment carrying the sub template id.
func (r *Registry) compileNested(parent, tmpl *html.Node, pending *[]pendingRecord) error {
	src, ok := dom.Attr(tmpl, "data-bind")
	if !ok {
		return serr.New("BND-503", "template", "nested template carries no data-bind")
	}
	exprs, err := ParseBindings(src)
	if err != nil {
		return err
	}

	sub := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	for tmpl.FirstChild != nil {
		inner := tmpl.FirstChild
		tmpl.RemoveChild(inner)
		sub.AppendChild(inner)
	}
	subID, err := r.compileContainer(sub)
	if err != nil {
		return err
	}
	for i := range exprs {
		exprs[i].SubTemplateID = subID
	}

	marker := dom.NewComment(dom.TemplateMarkerPrefix + strconv.Itoa(subID))
	parent.InsertBefore(marker, tmpl)
	parent.RemoveChild(tmpl)
	*pending = append(*pending, pendingRecord{node: marker, exprs: exprs})
	return nil
}

// expandMustaches splits a text node around its {{...}} directives. Plain
// runs stay text; each directive becomes a marker comment bound to
// textContent.
func expandMustaches(parent, text *html.Node, pending *[]pendingRecord) error {
	rest := text.Data
	replaced := false
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			break
		}
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			return serr.New("BND-503", "template", "unterminated {{ directive",
				serr.WithContext("text", text.Data))
		}
		end += start

		if start > 0 {
			parent.InsertBefore(dom.NewText(rest[:start]), text)
		}
		inner := strings.TrimSpace(rest[start+2 : end])
		prop, filters, err := parseSide(inner, inner)
		if err != nil {
			return err
		}
		marker := dom.NewComment(dom.TextMarkerPrefix + inner)
		parent.InsertBefore(marker, text)
		*pending = append(*pending, pendingRecord{
			node: marker,
			exprs: []engine.BindingExpr{{
				NodeProperty:  "textContent",
				StateProperty: prop,
				InputFilters:  filters,
			}},
		})
		rest = rest[end+2:]
		replaced = true
	}
	if !replaced {
		return nil
	}
	if rest != "" {
		parent.InsertBefore(dom.NewText(rest), text)
	}
	parent.RemoveChild(text)
	return nil
}
