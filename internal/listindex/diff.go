package listindex

import "reflect"

// Normalize converts an arbitrary state value into a []any list. Non-list
// values (including nil) normalize to nil, matching the diff's "treat
// anything that is not an array as empty" rule.
func Normalize(v any) []any {
	if v == nil {
		return nil
	}
	if l, ok := v.([]any); ok {
		return l
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// CreateListIndexes reconciles the index identities of one list binding.
// Existing ListIndex values are reused for values that survived from oldList
// (moving them in place when their position changed); genuinely new values
// get fresh identities. When newList is element-wise identical to oldList the
// exact oldIndexes slice is returned, which callers use as a no-op signal.
//
// Values are matched by strict identity (pointer identity for reference
// kinds). Duplicate values map last-index-wins, so duplicated primitives
// reuse ambiguously but deterministically; that mirrors the documented
// behavior of the original engine and is intentionally not "fixed".
func CreateListIndexes(arena *Arena, parent ListIndex, oldList, newList []any, oldIndexes []ListIndex) []ListIndex {
	if len(newList) == 0 {
		return nil
	}

	if len(oldList) == 0 || len(oldIndexes) == 0 {
		indexes := make([]ListIndex, len(newList))
		for i := range newList {
			indexes[i] = arena.New(parent, i)
		}
		return indexes
	}

	if sameElements(oldList, newList) {
		return oldIndexes
	}

	// Map each old value to its last position; last-write-wins on
	// duplicates.
	oldPos := make(map[any]int, len(oldList))
	for i, v := range oldList {
		oldPos[identityKey(v)] = i
	}

	indexes := make([]ListIndex, len(newList))
	used := make(map[int]struct{}, len(oldList))
	for i, v := range newList {
		if pos, ok := oldPos[identityKey(v)]; ok && pos < len(oldIndexes) {
			if _, taken := used[pos]; !taken {
				used[pos] = struct{}{}
				li := oldIndexes[pos]
				if li.Index() != i {
					li.SetIndex(i)
				}
				indexes[i] = li
				continue
			}
		}
		indexes[i] = arena.New(parent, i)
	}
	return indexes
}

// sameElements reports element-wise identity of two lists.
func sameElements(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if identityKey(a[i]) != identityKey(b[i]) {
			return false
		}
	}
	return true
}

// identityKey reduces a value to a comparable key with reference-identity
// semantics: maps, slices, channels and funcs compare by their underlying
// pointer, comparable values by themselves. Uncomparable value types (e.g. a
// struct containing a slice, passed by value) have no usable identity and
// yield a key that never matches.
func identityKey(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return rv.Pointer()
	}
	if !rv.Type().Comparable() {
		return new(struct{})
	}
	return v
}
