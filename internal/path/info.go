// Package path implements structured analysis of dotted, optionally
// wildcarded state paths ("items.*.name"), the concrete-access resolver and
// the per-component path trie. Pattern descriptors are interned process-wide:
// two lookups with the same string return the identical *Info, and the rest
// of the runtime relies on that reference identity for map keys.
package path

import (
	"strings"
	"sync"

	"github.com/structive/structive-go/internal/serr"
)

// Info is the immutable analysis of one path pattern.
type Info struct {
	// Pattern is the original dotted pattern, e.g. "items.*.name".
	Pattern string
	// Segments are the dot-separated parts of Pattern.
	Segments []string
	// LastSegment is the final segment, "" for the empty pattern.
	LastSegment string
	// CumulativePaths holds every prefix of Pattern, shortest first,
	// ending with Pattern itself.
	CumulativePaths []string
	// CumulativePathSet is CumulativePaths as a membership set.
	CumulativePathSet map[string]struct{}
	// WildcardPaths holds the cumulative path at each wildcard segment,
	// outermost first ("items.*" before "items.*.tags.*").
	WildcardPaths []string
	// WildcardPathSet is WildcardPaths as a membership set.
	WildcardPathSet map[string]struct{}
	// IndexByWildcardPath maps each wildcard path to its level, 0-based
	// from the outermost wildcard.
	IndexByWildcardPath map[string]int
	// WildcardParentPaths holds the path one segment above each wildcard
	// ("items" for "items.*").
	WildcardParentPaths []string
	// LastWildcardPath is the innermost wildcard path, "" if none.
	LastWildcardPath string
	// ParentPath is Pattern minus its last segment, "" for single-segment
	// patterns.
	ParentPath string
	// WildcardCount is the number of "*" segments.
	WildcardCount int
}

// Parent returns the interned Info for ParentPath, or nil for top-level
// patterns.
func (i *Info) Parent() *Info {
	if i.ParentPath == "" {
		return nil
	}
	return Get(i.ParentPath)
}

// reservedWords are identifiers that would collide with object internals of
// the original runtime if used as state keys. The guard applies to the whole
// pattern only: "constructor" is rejected, "items.constructor" is not.
var reservedWords = map[string]struct{}{
	"constructor": {}, "prototype": {}, "__proto__": {},
	"toString": {}, "valueOf": {}, "hasOwnProperty": {},
	"isPrototypeOf": {}, "propertyIsEnumerable": {}, "toLocaleString": {},
	"if": {}, "else": {}, "for": {}, "while": {}, "do": {}, "switch": {},
	"case": {}, "default": {}, "break": {}, "continue": {}, "return": {},
	"function": {}, "var": {}, "let": {}, "const": {}, "new": {},
	"delete": {}, "typeof": {}, "instanceof": {}, "in": {}, "of": {},
	"class": {}, "extends": {}, "super": {}, "this": {}, "null": {},
	"undefined": {}, "true": {}, "false": {}, "void": {}, "with": {},
	"yield": {}, "await": {}, "import": {}, "export": {}, "static": {},
}

// IsReserved reports whether pattern exactly matches a reserved identifier.
func IsReserved(pattern string) bool {
	_, ok := reservedWords[pattern]
	return ok
}

var (
	infoMu    sync.Mutex
	infoCache = make(map[string]*Info)
)

// Get returns the interned Info for pattern, building it on first use. Every
// string is analyzed as-is; the reserved-word guard lives in GetChecked.
func Get(pattern string) *Info {
	infoMu.Lock()
	defer infoMu.Unlock()
	if info, ok := infoCache[pattern]; ok {
		return info
	}
	info := analyze(pattern)
	infoCache[pattern] = info
	return info
}

// GetChecked is Get plus the reserved-word guard, for paths that arrive from
// user configuration rather than from internal derivation.
func GetChecked(pattern string) (*Info, error) {
	if IsReserved(pattern) {
		return nil, serr.New("PTH-101", "path",
			"reserved word cannot be used as a state path",
			serr.WithContext("pattern", pattern),
			serr.WithHint("rename the state property"))
	}
	return Get(pattern), nil
}

// analyze builds the full descriptor for pattern. Callers hold infoMu.
func analyze(pattern string) *Info {
	info := &Info{
		Pattern:             pattern,
		CumulativePathSet:   make(map[string]struct{}),
		WildcardPathSet:     make(map[string]struct{}),
		IndexByWildcardPath: make(map[string]int),
	}
	if pattern == "" {
		return info
	}
	info.Segments = strings.Split(pattern, ".")
	info.LastSegment = info.Segments[len(info.Segments)-1]

	var cumulative string
	for _, seg := range info.Segments {
		if cumulative == "" {
			cumulative = seg
		} else {
			cumulative = cumulative + "." + seg
		}
		info.CumulativePaths = append(info.CumulativePaths, cumulative)
		info.CumulativePathSet[cumulative] = struct{}{}
		if seg == "*" {
			level := len(info.WildcardPaths)
			info.WildcardPaths = append(info.WildcardPaths, cumulative)
			info.WildcardPathSet[cumulative] = struct{}{}
			info.IndexByWildcardPath[cumulative] = level
			parent := strings.TrimSuffix(cumulative, ".*")
			info.WildcardParentPaths = append(info.WildcardParentPaths, parent)
		}
	}
	info.WildcardCount = len(info.WildcardPaths)
	if info.WildcardCount > 0 {
		info.LastWildcardPath = info.WildcardPaths[info.WildcardCount-1]
	}
	if len(info.Segments) > 1 {
		info.ParentPath = strings.Join(info.Segments[:len(info.Segments)-1], ".")
	}
	return info
}
