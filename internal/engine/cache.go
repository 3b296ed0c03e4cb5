package engine

import (
	"github.com/structive/structive-go/internal/listindex"
	"github.com/structive/structive-go/internal/stateref"
)

// verRev is a cache invalidation stamp: the batch-session version plus the
// per-enqueue revision within it.
type verRev struct {
	version  uint64
	revision uint64
}

// cacheEntry is one cached read, stamped with the session state at store
// time.
type cacheEntry struct {
	value any
	verRev
}

// listEntry tracks the last seen value and index identities of one list
// slot, the anchor for stable list-index diffing.
type listEntry struct {
	value   []any
	indexes []listindex.ListIndex
}

// currentVerRev returns the stamp an entry written right now should carry.
// Callers hold e.mu.
func (e *Engine) currentVerRev() verRev {
	if e.updater == nil {
		return verRev{}
	}
	return verRev{version: e.updater.version, revision: e.updater.currentRevision()}
}

// cacheGet returns a cached value if no newer invalidation stamp exists for
// the path. An entry stamped by the update currently in flight stays valid
// for reentrant reads within that same update. Callers hold e.mu.
func (e *Engine) cacheGet(ref *stateref.Ref) (any, bool) {
	entry, ok := e.cache[ref]
	if !ok {
		return nil, false
	}
	vr, stamped := e.vrByPath[ref.Info.Pattern]
	if !stamped {
		e.collector.IncrementCacheHit()
		return entry.value, true
	}
	if entry.version > vr.version ||
		(entry.version == vr.version && entry.revision >= vr.revision) {
		e.collector.IncrementCacheHit()
		return entry.value, true
	}
	e.collector.IncrementCacheMiss()
	return nil, false
}

// cacheStore records a fresh read. Callers hold e.mu.
func (e *Engine) cacheStore(ref *stateref.Ref, value any) {
	e.cache[ref] = cacheEntry{value: value, verRev: e.currentVerRev()}
}

// refreshListIndexes re-reads the list behind ref and reconciles its index
// identities, returning the previous and current index slices. The diff runs
// at most once per distinct value; an unchanged list returns the identical
// slice twice. While an update with a pending element overwrite is open the
// pre-batch identities are returned as-is, so positions resolve against the
// committed baseline and the diff waits for the batch to render. Callers
// hold e.mu.
func (e *Engine) refreshListIndexes(h *handler, ref *stateref.Ref) (old, cur []listindex.ListIndex, err error) {
	if base, ok := e.swapBase[ref]; ok && e.inUpdate {
		return base.indexes, base.indexes, nil
	}
	raw, err := h.getByRef(ref)
	if err != nil {
		return nil, nil, err
	}
	newList := listindex.Normalize(raw)
	entry := e.listCache[ref]
	if base, ok := e.swapBase[ref]; ok {
		entry = base
		delete(e.swapBase, ref)
	}
	parentIndex, err := ref.ListIndex()
	if err != nil {
		return nil, nil, err
	}
	cur = listindex.CreateListIndexes(e.arena, parentIndex, entry.value, newList, entry.indexes)
	fresh := freshIdentities(entry.indexes, cur)
	e.collector.AddListDiff(len(fresh))
	if e.freshPass != nil {
		for _, li := range fresh {
			e.freshPass[li] = struct{}{}
		}
	}
	e.listCache[ref] = listEntry{value: newList, indexes: cur}
	return entry.indexes, cur, nil
}

// listIndexes returns the current index identities for a list ref,
// refreshing the diff when the underlying value changed. Callers hold e.mu.
func (e *Engine) listIndexes(h *handler, ref *stateref.Ref) ([]listindex.ListIndex, error) {
	if e.bridge != nil && e.bridge.StartsWith(ref.Info.Pattern) && !e.pm.IsGetter(ref.Info.Pattern) {
		return e.bridge.ListIndexes(ref)
	}
	_, cur, err := e.refreshListIndexes(h, ref)
	return cur, err
}

// snapshotSwap captures the list's committed value and index identities
// before the first element overwrite of an update. The batch's final value
// diffs against this baseline exactly once, at render, so a value-for-value
// swap renumbers the surviving identities in place instead of rebuilding
// them through the intermediate write states. Callers hold e.mu.
func (e *Engine) snapshotSwap(h *handler, ref *stateref.Ref) {
	if _, ok := e.swapBase[ref]; ok {
		return
	}
	// Sync the cache to the pre-write value first; earlier writes in the
	// same batch may not have been reconciled yet.
	_, _, _ = e.refreshListIndexes(h, ref)
	entry := e.listCache[ref]
	e.swapBase[ref] = listEntry{
		value:   append([]any(nil), entry.value...),
		indexes: append([]listindex.ListIndex(nil), entry.indexes...),
	}
}

// freshIdentities returns the identities in cur that were not present in old.
func freshIdentities(old, cur []listindex.ListIndex) []listindex.ListIndex {
	if len(old) == 0 {
		return cur
	}
	prev := make(map[listindex.ListIndex]struct{}, len(old))
	for _, li := range old {
		prev[li] = struct{}{}
	}
	var fresh []listindex.ListIndex
	for _, li := range cur {
		if _, ok := prev[li]; !ok {
			fresh = append(fresh, li)
		}
	}
	return fresh
}
