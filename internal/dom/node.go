// Package dom provides the node-level operations the binding runtime needs
// on top of golang.org/x/net/html: fragment parsing and cloning, index-path
// node resolution, attribute/class/style/text mutation, comment markers and
// an in-process event dispatch so two-way bindings are exercisable without a
// browser.
package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/structive/structive-go/internal/serr"
)

// TextMarkerPrefix prefixes comment placeholders that stand for a bound text
// node ("@@:expr").
const TextMarkerPrefix = "@@:"

// TemplateMarkerPrefix prefixes comment placeholders that stand for a nested
// template instantiation point ("@@|id").
const TemplateMarkerPrefix = "@@|"

// ParseFragment parses markup in body context and returns its top-level
// nodes, detached from any document.
func ParseFragment(markup string) ([]*html.Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), body)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		n.Parent = nil
		n.PrevSibling = nil
		n.NextSibling = nil
	}
	return nodes, nil
}

// CloneTree deep-copies a node and its subtree.
func CloneTree(n *html.Node) *html.Node {
	clone := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		clone.Attr = make([]html.Attribute, len(n.Attr))
		copy(clone.Attr, n.Attr)
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		clone.AppendChild(CloneTree(child))
	}
	return clone
}

// ChildAt returns the index-th child node (elements, text and comments all
// count), or nil.
func ChildAt(n *html.Node, index int) *html.Node {
	child := n.FirstChild
	for i := 0; child != nil && i < index; i++ {
		child = child.NextSibling
	}
	return child
}

// ResolveNodePath descends from root through childNodes[i] steps. A path
// that leads off the tree is a structural error in the compiled template.
func ResolveNodePath(root *html.Node, nodePath []int) (*html.Node, error) {
	n := root
	for depth, idx := range nodePath {
		n = ChildAt(n, idx)
		if n == nil {
			return nil, serr.New("BND-502", "dom",
				"template node path does not resolve to a node",
				serr.WithContext("path", nodePath),
				serr.WithContext("depth", depth))
		}
	}
	return n, nil
}

// NodePathOf computes the childNodes index path from root down to n, or nil
// if n is not under root.
func NodePathOf(root, n *html.Node) []int {
	if n == root {
		return []int{}
	}
	var rpath []int
	for cur := n; cur != root; cur = cur.Parent {
		if cur.Parent == nil {
			return nil
		}
		idx := 0
		for sib := cur.Parent.FirstChild; sib != cur; sib = sib.NextSibling {
			idx++
		}
		rpath = append(rpath, idx)
	}
	out := make([]int, len(rpath))
	for i := range rpath {
		out[i] = rpath[len(rpath)-1-i]
	}
	return out
}

// InsertBefore inserts node under parent ahead of ref; a nil ref appends.
// The node is detached from any previous parent first.
func InsertBefore(parent, node, ref *html.Node) {
	Detach(node)
	if ref == nil {
		parent.AppendChild(node)
		return
	}
	parent.InsertBefore(node, ref)
}

// Detach removes node from its parent, if any.
func Detach(node *html.Node) {
	if node.Parent != nil {
		node.Parent.RemoveChild(node)
	}
}

// CommentMarker reports whether n is a comment whose text starts with
// prefix, returning the remainder.
func CommentMarker(n *html.Node, prefix string) (string, bool) {
	if n == nil || n.Type != html.CommentNode {
		return "", false
	}
	text := strings.TrimSpace(n.Data)
	if !strings.HasPrefix(text, prefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(text, prefix)), true
}

// NewComment creates a detached comment node.
func NewComment(text string) *html.Node {
	return &html.Node{Type: html.CommentNode, Data: text}
}

// NewText creates a detached text node.
func NewText(text string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: text}
}

// SetText replaces every child of n with a single text node.
func SetText(n *html.Node, text string) {
	for n.FirstChild != nil {
		n.RemoveChild(n.FirstChild)
	}
	n.AppendChild(NewText(text))
}

// TextContent concatenates the text descendants of n.
func TextContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.TextNode {
			b.WriteString(cur.Data)
		}
		for child := cur.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return b.String()
}

// Attr returns the value of the named attribute and whether it is present.
func Attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or replaces the named attribute.
func SetAttr(n *html.Node, name, value string) {
	for i := range n.Attr {
		if n.Attr[i].Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

// RemoveAttr deletes the named attribute if present.
func RemoveAttr(n *html.Node, name string) {
	for i := range n.Attr {
		if n.Attr[i].Key == name {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// IsElement reports whether n is an element with the given tag name.
func IsElement(n *html.Node, tag string) bool {
	return n != nil && n.Type == html.ElementNode && strings.EqualFold(n.Data, tag)
}
