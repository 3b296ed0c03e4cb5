package engine

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/structive/structive-go/internal/dom"
	"github.com/structive/structive-go/internal/serr"
)

func TestGetterDependencyInvalidation(t *testing.T) {
	var calls atomic.Int64
	store := mapStore{
		1: {
			ID:      1,
			Content: containerOf(t, "<p><!--@@:total--></p>"),
			Records: []NodeRecord{{
				NodePath: []int{0, 0},
				Exprs:    []BindingExpr{{NodeProperty: "textContent", StateProperty: "total"}},
			}},
		},
	}
	class := &StateClass{
		Name: "summer",
		Init: map[string]any{"nums": []any{1, 2, 3}},
		Getters: map[string]Getter{
			"total": func(api *StateAPI) (any, error) {
				calls.Add(1)
				values, err := api.GetAll("nums.*")
				if err != nil {
					return nil, err
				}
				sum := 0
				for _, v := range values {
					sum += v.(int)
				}
				return sum, nil
			},
		},
	}
	e, err := New(class, store, mapFilters{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mount := mustConnect(t, e, 1)

	if got := dom.TextContent(mount); got != "6" {
		t.Errorf("initial total = %q, want %q", got, "6")
	}
	initial := calls.Load()
	if initial == 0 {
		t.Fatal("getter never ran")
	}

	// A cached getter does not recompute for a read.
	if got, err := e.ReadAPI().Get("total"); err != nil || got != 6 {
		t.Errorf("Get(total) = %v, %v; want 6", got, err)
	}
	if calls.Load() != initial {
		t.Errorf("getter recomputed on cached read: %d calls", calls.Load())
	}

	// Writing a dependency invalidates the cache and re-renders.
	mustUpdate(t, e, func(api *StateAPI) error {
		return api.Set("nums", []any{10, 20})
	})
	if got := dom.TextContent(mount); got != "30" {
		t.Errorf("total after update = %q, want %q", got, "30")
	}
	if calls.Load() <= initial {
		t.Error("getter did not recompute after dependency change")
	}
}

func TestGetterReadsStateThroughReadAPI(t *testing.T) {
	store := mapStore{1: {ID: 1, Content: containerOf(t, "<p>x</p>")}}
	class := &StateClass{
		Name: "derived",
		Init: map[string]any{"base": 21},
		Getters: map[string]Getter{
			"double": func(api *StateAPI) (any, error) {
				v, err := api.Get("base")
				if err != nil {
					return nil, err
				}
				return v.(int) * 2, nil
			},
		},
	}
	e, err := New(class, store, mapFilters{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mustConnect(t, e, 1)

	// The getter's nested read must not re-acquire the lock the external
	// entry point holds; a regression here blocks forever, so the read runs
	// off the test goroutine.
	type result struct {
		value any
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := e.ReadAPI().Get("double")
		done <- result{v, err}
	}()
	select {
	case res := <-done:
		if res.err != nil || res.value != 42 {
			t.Errorf("Get(double) = %v, %v; want 42", res.value, res.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("getter read through the external view never returned")
	}
}

func TestGetterCycleGuard(t *testing.T) {
	store := mapStore{
		1: {
			ID:      1,
			Content: containerOf(t, "<p>x</p>"),
		},
	}
	class := &StateClass{
		Name: "cyclic",
		Init: map[string]any{},
		Getters: map[string]Getter{
			"a": func(api *StateAPI) (any, error) { return api.Get("b") },
			"b": func(api *StateAPI) (any, error) { return api.Get("a") },
		},
	}
	e, err := New(class, store, mapFilters{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mustConnect(t, e, 1)

	_, err = e.ReadAPI().Get("a")
	if serr.CodeOf(err) != "STC-006" {
		t.Errorf("expected STC-006 for getter cycle, got %v", err)
	}
}

func TestGetAllPartialIndexes(t *testing.T) {
	store := mapStore{1: {ID: 1, Content: containerOf(t, "<p>x</p>")}}
	class := &StateClass{
		Name: "matrix",
		Init: map[string]any{"rows": []any{
			map[string]any{"cells": []any{"a", "b"}},
			map[string]any{"cells": []any{"c"}},
		}},
	}
	e, err := New(class, store, mapFilters{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mustConnect(t, e, 1)
	api := e.ReadAPI()

	all, err := api.GetAll("rows.*.cells.*")
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if diff := cmp.Diff([]any{"a", "b", "c"}, all); diff != "" {
		t.Errorf("full expansion mismatch (-want +got):\n%s", diff)
	}

	pinned, err := api.GetAll("rows.*.cells.*", 0)
	if err != nil {
		t.Fatalf("GetAll pinned: %v", err)
	}
	if diff := cmp.Diff([]any{"a", "b"}, pinned); diff != "" {
		t.Errorf("pinned expansion mismatch (-want +got):\n%s", diff)
	}

	_, err = api.GetAll("rows.*.cells.*", 5)
	if serr.CodeOf(err) != "LIST-203" {
		t.Errorf("expected LIST-203 for out-of-range pin, got %v", err)
	}
}

func TestGetAtSetAt(t *testing.T) {
	store := mapStore{1: {ID: 1, Content: containerOf(t, "<p>x</p>")}}
	class := &StateClass{
		Name: "direct",
		Init: map[string]any{"items": []any{
			map[string]any{"name": "a"},
			map[string]any{"name": "b"},
		}},
	}
	e, err := New(class, store, mapFilters{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mustConnect(t, e, 1)

	if got, err := e.ReadAPI().GetAt("items.*.name", 1); err != nil || got != "b" {
		t.Errorf("GetAt = %v, %v; want b", got, err)
	}

	mustUpdate(t, e, func(api *StateAPI) error {
		return api.SetAt("items.*.name", "renamed", 0)
	})
	if got, _ := e.ReadAPI().GetAt("items.*.name", 0); got != "renamed" {
		t.Errorf("after SetAt, name = %v, want renamed", got)
	}

	_, err = e.ReadAPI().GetAt("items.*.name")
	if serr.CodeOf(err) != "LIST-201" {
		t.Errorf("expected LIST-201 with missing index, got %v", err)
	}
}

func TestIndexAliasOutsideLoop(t *testing.T) {
	store := mapStore{1: {ID: 1, Content: containerOf(t, "<p>x</p>")}}
	class := &StateClass{Name: "plain", Init: map[string]any{"x": 1}}
	e, err := New(class, store, mapFilters{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mustConnect(t, e, 1)

	_, err = e.ReadAPI().Get("$1")
	if serr.CodeOf(err) != "LIST-201" {
		t.Errorf("expected LIST-201 outside a loop, got %v", err)
	}
	err = e.Update(func(api *StateAPI) error {
		return api.Set("$1", 5)
	})
	if serr.CodeOf(err) != "UPD-301" {
		t.Errorf("expected wrapped rejection, got %v", err)
	}
	if err := e.Settle(); err != nil {
		t.Fatalf("Settle: %v", err)
	}
}

func TestComputedSetter(t *testing.T) {
	store := mapStore{
		1: {
			ID:      1,
			Content: containerOf(t, "<p><!--@@:celsius--></p>"),
			Records: []NodeRecord{{
				NodePath: []int{0, 0},
				Exprs:    []BindingExpr{{NodeProperty: "textContent", StateProperty: "celsius"}},
			}},
		},
	}
	class := &StateClass{
		Name: "thermo",
		Init: map[string]any{"celsius": 0},
		Setters: map[string]Setter{
			"fahrenheit": func(api *StateAPI, value any) error {
				f := value.(int)
				return api.Set("celsius", (f-32)*5/9)
			},
		},
	}
	e, err := New(class, store, mapFilters{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mount := mustConnect(t, e, 1)

	mustUpdate(t, e, func(api *StateAPI) error {
		return api.Set("fahrenheit", 212)
	})
	if got := dom.TextContent(mount); got != "100" {
		t.Errorf("celsius = %q, want %q", got, "100")
	}
}

func TestWalkAccessors(t *testing.T) {
	state := map[string]any{
		"user": map[string]any{"name": "ada"},
		"rows": []any{
			map[string]any{"cells": []any{"x", "y"}},
		},
	}
	cases := []struct {
		name     string
		segments []string
		indexes  []int
		want     any
		ok       bool
	}{
		{"top level", []string{"user"}, nil, state["user"], true},
		{"nested map", []string{"user", "name"}, nil, "ada", true},
		{"list element", []string{"rows", "*", "cells", "*"}, []int{0, 1}, "y", true},
		{"missing key", []string{"user", "missing"}, nil, nil, false},
		{"index out of range", []string{"rows", "*"}, []int{4}, nil, false},
		{"missing index", []string{"rows", "*"}, nil, nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := walkGet(state, tc.segments, tc.indexes)
			if ok != tc.ok {
				t.Fatalf("walkGet ok = %v, want %v", ok, tc.ok)
			}
			if ok && !cmp.Equal(tc.want, got) {
				t.Errorf("walkGet = %v, want %v", got, tc.want)
			}
		})
	}

	if !walkSet(state, []string{"rows", "*", "cells", "*"}, []int{0, 0}, "z") {
		t.Fatal("walkSet failed")
	}
	if got, _ := walkGet(state, []string{"rows", "*", "cells", "*"}, []int{0, 0}); got != "z" {
		t.Errorf("after walkSet got %v, want z", got)
	}
}
