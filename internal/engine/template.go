// Package engine implements the reactive core of the binding runtime: the
// state accessor with dependency tracking and caching, the batching updater
// with its render loop, the incremental renderer, and the binding layer that
// applies minimal mutations to an in-process DOM tree.
//
// The template compiler, filter library and component factory live outside
// this package; engine consumes them through the narrow contracts below.
package engine

import (
	"golang.org/x/net/html"
)

// Template is the compiled form of one template fragment as supplied by the
// (external) template compiler. Content holds the prototype DOM under a
// container node; NodePath entries in Records index into its child nodes.
type Template struct {
	ID int
	// Content is a container element whose children are the fragment.
	// It is never mounted itself; instantiation clones it.
	Content *html.Node
	Records []NodeRecord
}

// NodeRecord associates one node of the template with its parsed binding
// expressions. NodePath is a childNodes index descent from the content
// container; elements, text and comment nodes all count.
type NodeRecord struct {
	NodePath []int
	Exprs    []BindingExpr
}

// BindingExpr is the parsed shape of one binding:
// nodeProp[|filter,opt...]:stateProp[|filter,opt...]@decorator,...
type BindingExpr struct {
	// NodeProperty names the DOM-side target: "textContent", "value",
	// "checked", "attr.title", "class", "class.done", "style.color",
	// "onclick", "if", "for", or "state.child.path" for component
	// bridges.
	NodeProperty string
	// StateProperty is the state-side path pattern, or a loop-index
	// alias ("$1".."$32").
	StateProperty string
	// InputFilters transform state values on the way to the DOM.
	InputFilters []FilterCall
	// OutputFilters transform DOM values on the way back to state.
	OutputFilters []FilterCall
	// Decorators modify event bindings ("prevent", "stop") or mark
	// required semantics.
	Decorators []string
	// SubTemplateID is the nested template for "if"/"for" bindings,
	// 0 when absent.
	SubTemplateID int
}

// FilterCall names one filter invocation with its options.
type FilterCall struct {
	Name    string
	Options []string
}

// FilterFn transforms a single value.
type FilterFn func(any) (any, error)

// FilterFactory builds a FilterFn from its option list.
type FilterFactory func(options []string) (FilterFn, error)

// FilterRegistry resolves filter names. The filter library itself is an
// external collaborator.
type FilterRegistry interface {
	Lookup(name string) (FilterFactory, bool)
}

// TemplateStore resolves template ids, including the nested templates that
// "if"/"for" bindings instantiate.
type TemplateStore interface {
	Template(id int) (*Template, bool)
}
