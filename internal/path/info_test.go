package path

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/structive/structive-go/internal/serr"
)

func TestGet_InternsByString(t *testing.T) {
	a := Get("items.*.name")
	b := Get("items.*.name")
	if a != b {
		t.Fatalf("expected identical *Info for equal patterns, got %p and %p", a, b)
	}
	if a == Get("items.*.id") {
		t.Fatalf("distinct patterns must not share an Info")
	}
}

func TestGet_Analysis(t *testing.T) {
	info := Get("items.*.tags.*")

	wantSegments := []string{"items", "*", "tags", "*"}
	if diff := cmp.Diff(wantSegments, info.Segments); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
	wantCumulative := []string{"items", "items.*", "items.*.tags", "items.*.tags.*"}
	if diff := cmp.Diff(wantCumulative, info.CumulativePaths); diff != "" {
		t.Errorf("cumulative paths mismatch (-want +got):\n%s", diff)
	}
	wantWildcards := []string{"items.*", "items.*.tags.*"}
	if diff := cmp.Diff(wantWildcards, info.WildcardPaths); diff != "" {
		t.Errorf("wildcard paths mismatch (-want +got):\n%s", diff)
	}
	wantParents := []string{"items", "items.*.tags"}
	if diff := cmp.Diff(wantParents, info.WildcardParentPaths); diff != "" {
		t.Errorf("wildcard parent paths mismatch (-want +got):\n%s", diff)
	}
	if info.WildcardCount != 2 {
		t.Errorf("wildcard count = %d, want 2", info.WildcardCount)
	}
	if info.LastWildcardPath != "items.*.tags.*" {
		t.Errorf("last wildcard path = %q", info.LastWildcardPath)
	}
	if info.ParentPath != "items.*.tags" {
		t.Errorf("parent path = %q", info.ParentPath)
	}
	if info.LastSegment != "*" {
		t.Errorf("last segment = %q", info.LastSegment)
	}
	if got := info.IndexByWildcardPath["items.*.tags.*"]; got != 1 {
		t.Errorf("wildcard level = %d, want 1", got)
	}
}

func TestGet_SingleSegment(t *testing.T) {
	info := Get("count")
	if info.ParentPath != "" {
		t.Errorf("single segment parent path = %q, want empty", info.ParentPath)
	}
	if info.Parent() != nil {
		t.Errorf("single segment Parent() should be nil")
	}
	if info.WildcardCount != 0 {
		t.Errorf("wildcard count = %d, want 0", info.WildcardCount)
	}
}

func TestGetChecked_ReservedWords(t *testing.T) {
	if _, err := GetChecked("constructor"); serr.CodeOf(err) != "PTH-101" {
		t.Fatalf("expected PTH-101 for reserved word, got %v", err)
	}
	// Only an exact whole-pattern match is rejected.
	if _, err := GetChecked("items.constructor"); err != nil {
		t.Fatalf("dotted path containing a reserved leaf should pass, got %v", err)
	}
	if _, err := GetChecked("user.name"); err != nil {
		t.Fatalf("ordinary path rejected: %v", err)
	}
}

func TestResolve_Modes(t *testing.T) {
	tests := []struct {
		path    string
		pattern string
		mode    WildcardMode
		indexes []int
	}{
		{"user.name", "user.name", ModeNone, nil},
		{"items.*.name", "items.*.name", ModeContext, []int{-1}},
		{"items.0.name", "items.*.name", ModeAll, []int{0}},
		{"items.2.tags.7", "items.*.tags.*", ModeAll, []int{2, 7}},
	}
	for _, tt := range tests {
		r, err := Resolve(tt.path)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", tt.path, err)
		}
		if r.Info != Get(tt.pattern) {
			t.Errorf("Resolve(%q).Info = %q, want %q", tt.path, r.Info.Pattern, tt.pattern)
		}
		if r.Mode != tt.mode {
			t.Errorf("Resolve(%q).Mode = %v, want %v", tt.path, r.Mode, tt.mode)
		}
		if diff := cmp.Diff(tt.indexes, r.WildcardIndexes); diff != "" {
			t.Errorf("Resolve(%q) indexes mismatch (-want +got):\n%s", tt.path, diff)
		}
	}
}

func TestResolve_PartialUnsupported(t *testing.T) {
	_, err := Resolve("items.0.tags.*")
	if serr.CodeOf(err) != "PTH-102" {
		t.Fatalf("expected PTH-102 for partial resolution, got %v", err)
	}
	// Cached entries must keep failing the same way.
	_, err = Resolve("items.0.tags.*")
	if serr.CodeOf(err) != "PTH-102" {
		t.Fatalf("expected PTH-102 on cached partial path, got %v", err)
	}
}

func TestTree_AddAndFind(t *testing.T) {
	tree := NewTree()
	leaf := tree.Add("items.*.name")
	if leaf.CurrentPath != "items.*.name" || leaf.Level != 3 {
		t.Fatalf("leaf = %q level %d", leaf.CurrentPath, leaf.Level)
	}
	if tree.Add("items.*.name") != leaf {
		t.Errorf("re-adding a pattern should return the cached node")
	}
	items := tree.Find("items")
	if items == nil {
		t.Fatalf("prefix node not registered")
	}
	star := items.Child("*")
	if star == nil || star.CurrentPath != "items.*" {
		t.Fatalf("wildcard child missing")
	}
	if star.Child("name") != leaf {
		t.Errorf("trie does not connect to the leaf")
	}
	if tree.Find("missing") != nil {
		t.Errorf("unknown pattern should return nil")
	}

	tree.Add("items.*.id")
	if len(star.Children) != 2 {
		t.Errorf("expected 2 children under items.*, got %d", len(star.Children))
	}
}
