package stateref

import (
	"testing"

	"github.com/structive/structive-go/internal/listindex"
	"github.com/structive/structive-go/internal/path"
	"github.com/structive/structive-go/internal/serr"
)

func TestTable_InternsByPair(t *testing.T) {
	table := NewTable()
	arena := listindex.NewArena()
	info := path.Get("items.*.name")
	li := arena.New(listindex.ListIndex{}, 0)

	a := table.Intern(info, li)
	b := table.Intern(info, li)
	if a != b {
		t.Fatalf("identical (info, index) pairs must intern to one ref")
	}

	other := arena.New(listindex.ListIndex{}, 1)
	if table.Intern(info, other) == a {
		t.Fatalf("distinct indexes must not collide")
	}
	if table.Intern(path.Get("items.*.id"), li) == a {
		t.Fatalf("distinct patterns must not collide")
	}
}

func TestRef_NoIndex(t *testing.T) {
	table := NewTable()
	r := table.Intern(path.Get("user.name"), listindex.ListIndex{})
	if r.HasIndex() {
		t.Errorf("wildcard-free ref should not carry an index")
	}
	li, err := r.ListIndex()
	if err != nil || !li.IsZero() {
		t.Errorf("zero index access should succeed: %v", err)
	}
	if r.String() != "user.name" {
		t.Errorf("String() = %q", r.String())
	}
}

func TestRef_StaleIndexError(t *testing.T) {
	table := NewTable()
	arena := listindex.NewArena()
	li := arena.New(listindex.ListIndex{}, 2)
	r := table.Intern(path.Get("items.*"), li)

	arena.Release(li)
	_, err := r.ListIndex()
	if serr.CodeOf(err) != "LIST-202" {
		t.Fatalf("expected LIST-202 for a released index, got %v", err)
	}
}

func TestTable_Parent(t *testing.T) {
	table := NewTable()
	arena := listindex.NewArena()
	outer := arena.New(listindex.ListIndex{}, 1)
	inner := arena.New(outer, 3)

	leaf := table.Intern(path.Get("items.*.tags.*"), inner)

	// Same wildcard count: "items.*.tags" keeps only the outer index.
	parent, err := table.Parent(leaf)
	if err != nil {
		t.Fatalf("Parent: %v", err)
	}
	if parent.Info.Pattern != "items.*.tags" {
		t.Fatalf("parent pattern = %q", parent.Info.Pattern)
	}
	pli, err := parent.ListIndex()
	if err != nil {
		t.Fatalf("parent index: %v", err)
	}
	if pli != outer {
		t.Errorf("parent should trim the chain to the outer index")
	}

	// Walking further up drops the index entirely.
	grand, err := table.Parent(parent)
	if err != nil {
		t.Fatalf("grandparent: %v", err)
	}
	if grand.Info.Pattern != "items.*" {
		t.Fatalf("grandparent pattern = %q", grand.Info.Pattern)
	}
	gli, _ := grand.ListIndex()
	if gli != outer {
		t.Errorf("items.* still has one wildcard and keeps the outer index")
	}

	top, err := table.Parent(grand)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if top.Info.Pattern != "items" {
		t.Fatalf("top pattern = %q", top.Info.Pattern)
	}
	tli, _ := top.ListIndex()
	if !tli.IsZero() {
		t.Errorf("wildcard-free parent must carry no index")
	}

	end, err := table.Parent(top)
	if err != nil || end != nil {
		t.Errorf("top-level pattern should have no parent, got %v, %v", end, err)
	}
}
