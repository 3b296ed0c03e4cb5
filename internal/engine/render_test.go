package engine

import (
	"sync"
	"sync/atomic"
	"testing"

	"golang.org/x/net/html"

	"github.com/structive/structive-go/internal/dom"
	"github.com/structive/structive-go/internal/serr"
)

func listTemplates(t *testing.T) mapStore {
	t.Helper()
	return mapStore{
		1: {
			ID:      1,
			Content: containerOf(t, "<ul><!--@@|2--></ul>"),
			Records: []NodeRecord{{
				NodePath: []int{0, 0},
				Exprs:    []BindingExpr{{NodeProperty: "for", StateProperty: "items", SubTemplateID: 2}},
			}},
		},
		2: {
			ID:      2,
			Content: containerOf(t, "<li><!--@@:items.*.name--></li>"),
			Records: []NodeRecord{{
				NodePath: []int{0, 0},
				Exprs:    []BindingExpr{{NodeProperty: "textContent", StateProperty: "items.*.name"}},
			}},
		},
	}
}

func itemNames(mount *html.Node) []string {
	ul := mount.FirstChild
	var names []string
	for _, li := range elementChildren(ul) {
		names = append(names, dom.TextContent(li))
	}
	return names
}

func TestLoopInitialRender(t *testing.T) {
	store := listTemplates(t)
	class := &StateClass{
		Name: "list",
		Init: map[string]any{"items": []any{
			map[string]any{"name": "alpha"},
			map[string]any{"name": "beta"},
			map[string]any{"name": "gamma"},
		}},
	}
	e, err := New(class, store, mapFilters{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mount := mustConnect(t, e, 1)

	got := itemNames(mount)
	want := []string{"alpha", "beta", "gamma"}
	if len(got) != len(want) {
		t.Fatalf("rendered %d items, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("item %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLoopReverseReusesNodes(t *testing.T) {
	first := map[string]any{"name": "alpha"}
	second := map[string]any{"name": "beta"}
	third := map[string]any{"name": "gamma"}
	store := listTemplates(t)
	class := &StateClass{
		Name: "list",
		Init: map[string]any{"items": []any{first, second, third}},
	}
	e, err := New(class, store, mapFilters{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mount := mustConnect(t, e, 1)

	before := elementChildren(mount.FirstChild)
	if len(before) != 3 {
		t.Fatalf("expected 3 items, got %d", len(before))
	}

	mustUpdate(t, e, func(api *StateAPI) error {
		return api.Set("items", []any{third, second, first})
	})

	after := elementChildren(mount.FirstChild)
	if len(after) != 3 {
		t.Fatalf("expected 3 items after reverse, got %d", len(after))
	}
	got := itemNames(mount)
	want := []string{"gamma", "beta", "alpha"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("item %d = %q, want %q", i, got[i], want[i])
		}
	}
	// Same element values keep their DOM nodes; the fragment is moved, not
	// rebuilt.
	if after[0] != before[2] || after[1] != before[1] || after[2] != before[0] {
		t.Error("reverse rebuilt item nodes instead of moving them")
	}
}

func TestLoopInsertRemove(t *testing.T) {
	first := map[string]any{"name": "alpha"}
	second := map[string]any{"name": "beta"}
	store := listTemplates(t)
	class := &StateClass{
		Name: "list",
		Init: map[string]any{"items": []any{first, second}},
	}
	e, err := New(class, store, mapFilters{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mount := mustConnect(t, e, 1)

	kept := elementChildren(mount.FirstChild)

	mustUpdate(t, e, func(api *StateAPI) error {
		return api.Set("items", []any{first, map[string]any{"name": "inserted"}, second})
	})
	got := itemNames(mount)
	want := []string{"alpha", "inserted", "beta"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("item %d = %q, want %q", i, got[i], want[i])
		}
	}
	after := elementChildren(mount.FirstChild)
	if after[0] != kept[0] || after[2] != kept[1] {
		t.Error("insert rebuilt surviving item nodes")
	}

	mustUpdate(t, e, func(api *StateAPI) error {
		return api.Set("items", []any{second})
	})
	got = itemNames(mount)
	if len(got) != 1 || got[0] != "beta" {
		t.Errorf("after removal items = %v, want [beta]", got)
	}
}

func TestLoopClearAll(t *testing.T) {
	store := listTemplates(t)
	class := &StateClass{
		Name: "list",
		Init: map[string]any{"items": []any{map[string]any{"name": "only"}}},
	}
	e, err := New(class, store, mapFilters{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mount := mustConnect(t, e, 1)

	mustUpdate(t, e, func(api *StateAPI) error {
		return api.Set("items", []any{})
	})
	if items := elementChildren(mount.FirstChild); len(items) != 0 {
		t.Errorf("expected empty list, got %d items", len(items))
	}
}

func TestIfToggle(t *testing.T) {
	store := mapStore{
		1: {
			ID:      1,
			Content: containerOf(t, "<div><!--@@|2--></div>"),
			Records: []NodeRecord{{
				NodePath: []int{0, 0},
				Exprs:    []BindingExpr{{NodeProperty: "if", StateProperty: "visible", SubTemplateID: 2}},
			}},
		},
		2: {ID: 2, Content: containerOf(t, "<span>shown</span>")},
	}
	class := &StateClass{Name: "toggler", Init: map[string]any{"visible": false}}
	e, err := New(class, store, mapFilters{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mount := mustConnect(t, e, 1)
	inner := mount.FirstChild

	if n := len(elementChildren(inner)); n != 0 {
		t.Fatalf("expected hidden content initially, got %d elements", n)
	}

	mustUpdate(t, e, func(api *StateAPI) error {
		return api.Set("visible", true)
	})
	if dom.TextContent(inner) != "shown" {
		t.Errorf("expected content after toggle on, got %q", dom.TextContent(inner))
	}

	mustUpdate(t, e, func(api *StateAPI) error {
		return api.Set("visible", false)
	})
	if n := len(elementChildren(inner)); n != 0 {
		t.Errorf("expected hidden content after toggle off, got %d elements", n)
	}

	// Toggle back on: pooled content remounts and re-renders.
	mustUpdate(t, e, func(api *StateAPI) error {
		return api.Set("visible", true)
	})
	if dom.TextContent(inner) != "shown" {
		t.Errorf("expected content after second toggle, got %q", dom.TextContent(inner))
	}
}

func TestLoopElementSwapMovesNodes(t *testing.T) {
	first := map[string]any{"name": "alpha"}
	second := map[string]any{"name": "beta"}
	third := map[string]any{"name": "gamma"}
	store := listTemplates(t)
	class := &StateClass{
		Name: "list",
		Init: map[string]any{"items": []any{first, second, third}},
	}
	e, err := New(class, store, mapFilters{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mount := mustConnect(t, e, 1)

	before := elementChildren(mount.FirstChild)
	if len(before) != 3 {
		t.Fatalf("expected 3 items, got %d", len(before))
	}

	// Swap the first two elements in place. The list itself is never
	// reassigned, so the diff runs against the pre-batch order.
	mustUpdate(t, e, func(api *StateAPI) error {
		if err := api.SetAt("items.*", second, 0); err != nil {
			return err
		}
		return api.SetAt("items.*", first, 1)
	})

	got := itemNames(mount)
	want := []string{"beta", "alpha", "gamma"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("item %d = %q, want %q", i, got[i], want[i])
		}
	}
	after := elementChildren(mount.FirstChild)
	if after[0] != before[1] || after[1] != before[0] || after[2] != before[2] {
		t.Error("element swap rebuilt item nodes instead of moving them")
	}
}

func TestLoopRefillReusesPooledNodes(t *testing.T) {
	store := listTemplates(t)
	class := &StateClass{
		Name: "list",
		Init: map[string]any{"items": []any{map[string]any{"name": "solo"}}},
	}
	e, err := New(class, store, mapFilters{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mount := mustConnect(t, e, 1)

	before := elementChildren(mount.FirstChild)
	if len(before) != 1 {
		t.Fatalf("expected 1 item, got %d", len(before))
	}

	mustUpdate(t, e, func(api *StateAPI) error {
		return api.Set("items", []any{})
	})
	if n := len(elementChildren(mount.FirstChild)); n != 0 {
		t.Fatalf("expected empty list, got %d items", n)
	}

	mustUpdate(t, e, func(api *StateAPI) error {
		return api.Set("items", []any{map[string]any{"name": "redo"}})
	})
	after := elementChildren(mount.FirstChild)
	if len(after) != 1 {
		t.Fatalf("expected 1 item after refill, got %d", len(after))
	}
	if after[0] != before[0] {
		t.Error("refill built a new fragment instead of reusing the pooled one")
	}
	if got := dom.TextContent(after[0]); got != "redo" {
		t.Errorf("refilled item text = %q, want %q", got, "redo")
	}
}

func TestListAppendRecomputesOnlyNewElements(t *testing.T) {
	var calls atomic.Int64
	store := listTemplates(t)
	store[2] = &Template{
		ID:      2,
		Content: containerOf(t, "<li><!--@@:items.*.label--></li>"),
		Records: []NodeRecord{{
			NodePath: []int{0, 0},
			Exprs:    []BindingExpr{{NodeProperty: "textContent", StateProperty: "items.*.label"}},
		}},
	}
	first := map[string]any{"name": "a"}
	second := map[string]any{"name": "b"}
	class := &StateClass{
		Name: "labels",
		Init: map[string]any{"items": []any{first, second}},
		Getters: map[string]Getter{
			"items.*.label": func(api *StateAPI) (any, error) {
				calls.Add(1)
				v, err := api.Get("items.*.name")
				if err != nil {
					return nil, err
				}
				return "#" + v.(string), nil
			},
		},
	}
	e, err := New(class, store, mapFilters{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mount := mustConnect(t, e, 1)

	got := itemNames(mount)
	want := []string{"#a", "#b"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("item %d = %q, want %q", i, got[i], want[i])
		}
	}
	if calls.Load() != 2 {
		t.Fatalf("initial render ran the getter %d times, want 2", calls.Load())
	}

	// Appending fans the list's dependents over the new element only; the
	// surviving elements keep their nodes and never recompute.
	mustUpdate(t, e, func(api *StateAPI) error {
		return api.Set("items", []any{first, second, map[string]any{"name": "c"}})
	})
	got = itemNames(mount)
	want = []string{"#a", "#b", "#c"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("after append item %d = %q, want %q", i, got[i], want[i])
		}
	}
	if calls.Load() != 3 {
		t.Errorf("append ran the getter %d times total, want 3", calls.Load())
	}
}

func TestSelectValueAppliesAfterOptions(t *testing.T) {
	store := mapStore{
		1: {
			ID:      1,
			Content: containerOf(t, "<select><!--@@|2--></select>"),
			Records: []NodeRecord{
				{
					NodePath: []int{0},
					Exprs:    []BindingExpr{{NodeProperty: "value", StateProperty: "choice"}},
				},
				{
					NodePath: []int{0, 0},
					Exprs:    []BindingExpr{{NodeProperty: "for", StateProperty: "opts", SubTemplateID: 2}},
				},
			},
		},
		2: {
			ID:      2,
			Content: containerOf(t, "<option><!--@@:opts.*--></option>"),
			Records: []NodeRecord{{
				NodePath: []int{0, 0},
				Exprs:    []BindingExpr{{NodeProperty: "textContent", StateProperty: "opts.*"}},
			}},
		},
	}
	class := &StateClass{
		Name: "picker",
		Init: map[string]any{"opts": []any{"a", "b"}, "choice": "b"},
	}
	sink := &recordingSink{}
	e, err := New(class, store, mapFilters{}, WithPatchSink(sink))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mount := mustConnect(t, e, 1)
	sink.take()

	// Add an option and select it in one batch: the value write must land
	// after the new option is mounted.
	mustUpdate(t, e, func(api *StateAPI) error {
		if err := api.Set("opts", []any{"a", "b", "c"}); err != nil {
			return err
		}
		return api.Set("choice", "c")
	})

	sel := mount.FirstChild
	if v, _ := dom.Attr(sel, "value"); v != "c" {
		t.Errorf("select value = %q, want %q", v, "c")
	}
	patches := sink.take()
	if len(patches) < 2 {
		t.Fatalf("expected option and value patches, got %+v", patches)
	}
	last := patches[len(patches)-1]
	if last.Op != "attr" || last.Name != "value" || last.Value != "c" {
		t.Errorf("last patch = %+v, want the select value write", last)
	}
	sawInsert := false
	for _, p := range patches[:len(patches)-1] {
		if p.Op == "insert" {
			sawInsert = true
		}
	}
	if !sawInsert {
		t.Errorf("no option insert ahead of the value write: %+v", patches)
	}
}

func TestBindingValueTypeViolations(t *testing.T) {
	cases := []struct {
		name  string
		store mapStore
		init  map[string]any
	}{
		{
			name: "conditional bound to a string",
			store: mapStore{
				1: {
					ID:      1,
					Content: containerOf(t, "<div><!--@@|2--></div>"),
					Records: []NodeRecord{{
						NodePath: []int{0, 0},
						Exprs:    []BindingExpr{{NodeProperty: "if", StateProperty: "visible", SubTemplateID: 2}},
					}},
				},
				2: {ID: 2, Content: containerOf(t, "<span>x</span>")},
			},
			init: map[string]any{"visible": "yes"},
		},
		{
			name: "checkbox bound to a scalar",
			store: mapStore{
				1: {
					ID:      1,
					Content: containerOf(t, `<input type="checkbox" value="a">`),
					Records: []NodeRecord{{
						NodePath: []int{0},
						Exprs:    []BindingExpr{{NodeProperty: "checked", StateProperty: "picked"}},
					}},
				},
			},
			init: map[string]any{"picked": "a"},
		},
		{
			name: "class list bound to a number",
			store: mapStore{
				1: {
					ID:      1,
					Content: containerOf(t, "<p>x</p>"),
					Records: []NodeRecord{{
						NodePath: []int{0},
						Exprs:    []BindingExpr{{NodeProperty: "class", StateProperty: "classes"}},
					}},
				},
			},
			init: map[string]any{"classes": 7},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			class := &StateClass{Name: "strict", Init: tc.init}
			e, err := New(class, tc.store, mapFilters{})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			err = e.ConnectedCallback(newElement("div"), 1, "")
			if serr.CodeOf(err) != "BND-504" {
				t.Errorf("expected BND-504 contract violation, got %v", err)
			}
		})
	}
}

func TestNestedLoopLeafOverwriteRebuildsRow(t *testing.T) {
	store := mapStore{
		1: {
			ID:      1,
			Content: containerOf(t, "<div><!--@@|2--></div>"),
			Records: []NodeRecord{{
				NodePath: []int{0, 0},
				Exprs:    []BindingExpr{{NodeProperty: "for", StateProperty: "groups", SubTemplateID: 2}},
			}},
		},
		2: {
			ID:      2,
			Content: containerOf(t, "<section><!--@@|3--></section>"),
			Records: []NodeRecord{{
				NodePath: []int{0, 0},
				Exprs:    []BindingExpr{{NodeProperty: "for", StateProperty: "groups.*.tags", SubTemplateID: 3}},
			}},
		},
		3: {
			ID:      3,
			Content: containerOf(t, "<em><!--@@:groups.*.tags.*--></em>"),
			Records: []NodeRecord{{
				NodePath: []int{0, 0},
				Exprs:    []BindingExpr{{NodeProperty: "textContent", StateProperty: "groups.*.tags.*"}},
			}},
		},
	}
	class := &StateClass{
		Name: "nested",
		Init: map[string]any{"groups": []any{
			map[string]any{"tags": []any{"go", "html"}},
			map[string]any{"tags": []any{"diff"}},
		}},
	}
	sink := &recordingSink{}
	e, err := New(class, store, mapFilters{}, WithPatchSink(sink))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mount := mustConnect(t, e, 1)
	sink.take()

	sections := elementChildren(mount.FirstChild)
	keep := elementChildren(sections[0])[0]

	// Overwriting a leaf element is an identity change: the list diff
	// replaces that row and leaves its siblings alone.
	mustUpdate(t, e, func(api *StateAPI) error {
		return api.SetAt("groups.*.tags.*", "css", 0, 1)
	})

	sections = elementChildren(mount.FirstChild)
	tags := elementChildren(sections[0])
	if got := dom.TextContent(tags[1]); got != "css" {
		t.Errorf("leaf text = %q, want %q", got, "css")
	}
	if tags[0] != keep {
		t.Error("untouched sibling row was rebuilt")
	}
	patches := sink.take()
	ops := make([]string, len(patches))
	for i, p := range patches {
		ops[i] = p.Op
	}
	want := []string{"remove", "insert", "text"}
	if len(ops) != len(want) {
		t.Fatalf("patch ops = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("patch %d op = %q, want %q", i, ops[i], want[i])
		}
	}
	if patches[2].Value != "css" {
		t.Errorf("text patch value = %q, want %q", patches[2].Value, "css")
	}
}

func TestLoopIndexAlias(t *testing.T) {
	store := listTemplates(t)
	store[2] = &Template{
		ID:      2,
		Content: containerOf(t, "<li><!--@@:$1--></li>"),
		Records: []NodeRecord{{
			NodePath: []int{0, 0},
			Exprs:    []BindingExpr{{NodeProperty: "textContent", StateProperty: "$1"}},
		}},
	}
	class := &StateClass{
		Name: "indexes",
		Init: map[string]any{"items": []any{
			map[string]any{"name": "a"},
			map[string]any{"name": "b"},
		}},
	}
	e, err := New(class, store, mapFilters{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mount := mustConnect(t, e, 1)

	got := itemNames(mount)
	want := []string{"0", "1"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d rendered %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTwoWayInputBinding(t *testing.T) {
	store := mapStore{
		1: {
			ID:      1,
			Content: containerOf(t, `<input value="">`),
			Records: []NodeRecord{{
				NodePath: []int{0},
				Exprs:    []BindingExpr{{NodeProperty: "value", StateProperty: "draft"}},
			}},
		},
	}
	class := &StateClass{Name: "form", Init: map[string]any{"draft": "start"}}
	e, err := New(class, store, mapFilters{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mount := mustConnect(t, e, 1)
	input := mount.FirstChild

	if v, _ := dom.Attr(input, "value"); v != "start" {
		t.Errorf("initial value = %q, want %q", v, "start")
	}

	if err := e.Events().Dispatch(&dom.Event{Type: "input", Target: input, Value: "typed"}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := e.Settle(); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	if got, err := e.ReadAPI().Get("draft"); err != nil || got != "typed" {
		t.Errorf("draft = %v, %v; want typed", got, err)
	}
	if v, _ := dom.Attr(input, "value"); v != "typed" {
		t.Errorf("value after input = %q, want %q", v, "typed")
	}
}

func TestEventHandlerReceivesLoopIndexes(t *testing.T) {
	var (
		mu       sync.Mutex
		received []int
	)
	store := listTemplates(t)
	store[2] = &Template{
		ID:      2,
		Content: containerOf(t, "<li><button>x</button></li>"),
		Records: []NodeRecord{{
			NodePath: []int{0, 0},
			Exprs:    []BindingExpr{{NodeProperty: "onclick", StateProperty: "press"}},
		}},
	}
	class := &StateClass{
		Name: "clicker",
		Init: map[string]any{
			"items": []any{
				map[string]any{"name": "a"},
				map[string]any{"name": "b"},
			},
			"press": EventHandler(func(api *StateAPI, ev *dom.Event, indexes ...int) error {
				mu.Lock()
				received = append(received, indexes...)
				mu.Unlock()
				return nil
			}),
		},
	}
	e, err := New(class, store, mapFilters{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mount := mustConnect(t, e, 1)

	items := elementChildren(mount.FirstChild)
	button := items[1].FirstChild
	if err := e.Events().Dispatch(&dom.Event{Type: "click", Target: button}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := e.Settle(); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 || received[0] != 1 {
		t.Errorf("handler indexes = %v, want [1]", received)
	}
}

func TestClassToggleBinding(t *testing.T) {
	store := mapStore{
		1: {
			ID:      1,
			Content: containerOf(t, `<p class="note">x</p>`),
			Records: []NodeRecord{{
				NodePath: []int{0},
				Exprs:    []BindingExpr{{NodeProperty: "class.done", StateProperty: "done"}},
			}},
		},
	}
	class := &StateClass{Name: "classes", Init: map[string]any{"done": false}}
	e, err := New(class, store, mapFilters{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mount := mustConnect(t, e, 1)
	p := mount.FirstChild

	if cls, _ := dom.Attr(p, "class"); cls != "note" {
		t.Errorf("initial class = %q, want %q", cls, "note")
	}
	mustUpdate(t, e, func(api *StateAPI) error {
		return api.Set("done", true)
	})
	if cls, _ := dom.Attr(p, "class"); cls != "note done" {
		t.Errorf("class after toggle = %q, want %q", cls, "note done")
	}
}

func TestStyleBinding(t *testing.T) {
	store := mapStore{
		1: {
			ID:      1,
			Content: containerOf(t, "<p>x</p>"),
			Records: []NodeRecord{{
				NodePath: []int{0},
				Exprs:    []BindingExpr{{NodeProperty: "style.color", StateProperty: "color"}},
			}},
		},
	}
	class := &StateClass{Name: "styles", Init: map[string]any{"color": "red"}}
	e, err := New(class, store, mapFilters{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mount := mustConnect(t, e, 1)
	p := mount.FirstChild

	if got := dom.StyleProperty(p, "color"); got != "red" {
		t.Errorf("initial color = %q, want %q", got, "red")
	}
	mustUpdate(t, e, func(api *StateAPI) error {
		return api.Set("color", "")
	})
	if style, ok := dom.Attr(p, "style"); ok {
		t.Errorf("expected style attribute removed, got %q", style)
	}
}
