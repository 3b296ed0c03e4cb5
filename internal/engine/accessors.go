package engine

import (
	"github.com/structive/structive-go/internal/path"
)

// accessorPair is one generated fast get/set pair. The original runtime
// rewrote hot paths onto synthesized accessors instead of trapping every
// property read; this is the equivalent step, run once at class analysis.
// Wildcard levels consume entries of indexes in order.
type accessorPair struct {
	get func(state map[string]any, indexes []int) (any, bool)
	set func(state map[string]any, indexes []int, value any) bool
}

// generateAccessors synthesizes accessor pairs for every known plain data
// path. Getter/setter paths stay on their computed functions, and paths
// discovered later at runtime fall back to the dynamic segment walk.
func (e *Engine) generateAccessors() {
	e.accessors = make(map[string]accessorPair)
	for _, pattern := range e.pm.Paths() {
		if e.pm.IsGetter(pattern) || e.pm.IsSetter(pattern) {
			continue
		}
		e.accessors[pattern] = makeAccessor(path.Get(pattern).Segments)
		e.pm.MarkOptimized(pattern)
	}
}

// makeAccessor compiles a segment walk into a closure pair.
func makeAccessor(segments []string) accessorPair {
	return accessorPair{
		get: func(state map[string]any, indexes []int) (any, bool) {
			return walkGet(state, segments, indexes)
		},
		set: func(state map[string]any, indexes []int, value any) bool {
			return walkSet(state, segments, indexes, value)
		},
	}
}

// walkGet resolves a segment chain against a state tree. Wildcards consume
// indexes front to back.
func walkGet(state map[string]any, segments []string, indexes []int) (any, bool) {
	var current any = state
	idxPos := 0
	for _, seg := range segments {
		if seg == "*" {
			list, ok := current.([]any)
			if !ok {
				return nil, false
			}
			if idxPos >= len(indexes) {
				return nil, false
			}
			i := indexes[idxPos]
			idxPos++
			if i < 0 || i >= len(list) {
				return nil, false
			}
			current = list[i]
			continue
		}
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// walkSet assigns the final segment of a chain, navigating like walkGet.
func walkSet(state map[string]any, segments []string, indexes []int, value any) bool {
	if len(segments) == 0 {
		return false
	}
	parent, ok := walkGet(state, segments[:len(segments)-1], indexes)
	if !ok {
		return false
	}
	last := segments[len(segments)-1]
	if last == "*" {
		list, ok := parent.([]any)
		if !ok {
			return false
		}
		wildcards := 0
		for _, seg := range segments[:len(segments)-1] {
			if seg == "*" {
				wildcards++
			}
		}
		if wildcards >= len(indexes) {
			return false
		}
		i := indexes[wildcards]
		if i < 0 || i >= len(list) {
			return false
		}
		list[i] = value
		return true
	}
	m, ok := parent.(map[string]any)
	if !ok {
		return false
	}
	m[last] = value
	return true
}
