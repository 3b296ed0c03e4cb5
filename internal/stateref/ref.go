// Package stateref implements interned state property references: the pairing
// of one path pattern with one concrete list-index chain. A Ref is the unit
// of change notification, dependency bookkeeping and caching, so identical
// (pattern, index) pairs must share one *Ref — the runtime keys maps and sets
// by the pointer.
package stateref

import (
	"fmt"
	"strings"
	"sync"

	"github.com/structive/structive-go/internal/listindex"
	"github.com/structive/structive-go/internal/path"
	"github.com/structive/structive-go/internal/serr"
)

// Ref addresses one concrete state slot: a pattern plus the list-index chain
// that pins its wildcard levels. Obtain instances through Table.Intern only.
type Ref struct {
	// Info is the interned pattern descriptor.
	Info *path.Info
	// li is the innermost list index, the zero handle for wildcard-free
	// patterns. Access goes through ListIndex so staleness is surfaced as
	// a structured error instead of a recycled position.
	li listindex.ListIndex
}

// HasIndex reports whether the ref carries a list-index chain.
func (r *Ref) HasIndex() bool { return !r.li.IsZero() }

// ListIndex returns the index chain handle. A stale handle — the identity
// was released while something still addresses it — is a lifecycle bug in
// dependency tracking and is reported as LIST-202.
func (r *Ref) ListIndex() (listindex.ListIndex, error) {
	if r.li.IsZero() {
		return listindex.ListIndex{}, nil
	}
	if !r.li.Valid() {
		return listindex.ListIndex{}, serr.New("LIST-202", "stateref",
			"list index was released while still referenced",
			serr.WithContext("pattern", r.Info.Pattern),
			serr.WithHint("a binding or cache entry outlived its loop item"))
	}
	return r.li, nil
}

// String renders the ref for logs and error context.
func (r *Ref) String() string {
	if r.li.IsZero() {
		return r.Info.Pattern
	}
	if !r.li.Valid() {
		return r.Info.Pattern + "#stale"
	}
	parts := make([]string, 0, 4)
	for _, n := range r.li.Indexes() {
		parts = append(parts, fmt.Sprintf("%d", n))
	}
	return r.Info.Pattern + "#" + strings.Join(parts, ".")
}

type key struct {
	info *path.Info
	li   listindex.ListIndex
}

// Table interns refs for one component instance.
type Table struct {
	mu   sync.Mutex
	refs map[key]*Ref
}

// NewTable creates an empty intern table.
func NewTable() *Table {
	return &Table{refs: make(map[key]*Ref)}
}

// Intern returns the canonical *Ref for (info, li), creating it on first use.
func (t *Table) Intern(info *path.Info, li listindex.ListIndex) *Ref {
	k := key{info: info, li: li}
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.refs[k]; ok {
		return r
	}
	r := &Ref{Info: info, li: li}
	t.refs[k] = r
	return r
}

// Parent derives the ref one path segment up, trimming the index chain when
// the parent pattern has fewer wildcard levels. Top-level patterns have no
// parent and return nil.
func (t *Table) Parent(r *Ref) (*Ref, error) {
	parentInfo := r.Info.Parent()
	if parentInfo == nil {
		return nil, nil
	}
	li := r.li
	if parentInfo.WildcardCount < r.Info.WildcardCount {
		idx, err := r.ListIndex()
		if err != nil {
			return nil, err
		}
		li = idx.At(parentInfo.WildcardCount - 1)
	}
	return t.Intern(parentInfo, li), nil
}
