package path

import "sync"

// Node is one entry of the per-component path trie. The trie mirrors the
// dotted structure of all registered patterns so the renderer can enumerate
// the static children of a changed path without rescanning every pattern.
type Node struct {
	// ParentPath is the full path of the parent node, "" at the root.
	ParentPath string
	// Name is this node's own segment ("*" for wildcard levels).
	Name string
	// CurrentPath is ParentPath + "." + Name ("" at the root).
	CurrentPath string
	// Level is the depth below the root, 0 for the root itself.
	Level int
	// Children maps segment names to child nodes.
	Children map[string]*Node
}

func newNode(parentPath, name string, level int) *Node {
	current := name
	if parentPath != "" {
		current = parentPath + "." + name
	}
	return &Node{
		ParentPath:  parentPath,
		Name:        name,
		CurrentPath: current,
		Level:       level,
		Children:    make(map[string]*Node),
	}
}

// Child returns the named child, or nil.
func (n *Node) Child(name string) *Node {
	return n.Children[name]
}

// Tree is a lazily grown path trie with cached dotted-path lookup.
// Each component instance owns one.
type Tree struct {
	mu    sync.RWMutex
	root  *Node
	byPat map[string]*Node
}

// NewTree creates an empty path tree.
func NewTree() *Tree {
	root := newNode("", "", 0)
	return &Tree{root: root, byPat: map[string]*Node{"": root}}
}

// Root returns the root node.
func (t *Tree) Root() *Node { return t.root }

// Add registers pattern and every prefix of it, returning the leaf node.
// Adding an already known pattern is a cheap cache hit.
func (t *Tree) Add(pattern string) *Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n, ok := t.byPat[pattern]; ok {
		return n
	}
	info := Get(pattern)
	n := t.root
	for _, seg := range info.Segments {
		child, ok := n.Children[seg]
		if !ok {
			child = newNode(n.CurrentPath, seg, n.Level+1)
			n.Children[seg] = child
			t.byPat[child.CurrentPath] = child
		}
		n = child
	}
	return n
}

// Find returns the node for pattern, or nil if it was never registered.
func (t *Tree) Find(pattern string) *Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byPat[pattern]
}
