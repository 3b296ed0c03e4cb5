package path

import (
	"strconv"
	"strings"
	"sync"

	"github.com/structive/structive-go/internal/serr"
)

// WildcardMode classifies how a concrete access string supplies its loop
// positions.
type WildcardMode int

const (
	// ModeNone means the path contains no wildcard segments at all.
	ModeNone WildcardMode = iota
	// ModeContext means every wildcard is unresolved and must come from
	// the ambient loop context ("items.*.name").
	ModeContext
	// ModeAll means every wildcard position is a literal number
	// ("items.0.name").
	ModeAll
	// ModePartial means literal numbers and bare wildcards are mixed,
	// which the resolver does not support.
	ModePartial
)

// String returns the mode name.
func (m WildcardMode) String() string {
	switch m {
	case ModeContext:
		return "context"
	case ModeAll:
		return "all"
	case ModePartial:
		return "partial"
	default:
		return "none"
	}
}

// Resolved is the analysis of one concrete access string. Numeric segments
// are canonicalized to wildcards so that Info interning still collapses
// "items.0.name" and "items.1.name" onto the same pattern descriptor.
type Resolved struct {
	// Path is the access string as written.
	Path string
	// Info is the canonical pattern descriptor ("items.*.name").
	Info *Info
	// WildcardIndexes holds one entry per wildcard level: the literal
	// number from the access string, or -1 when the level is unresolved.
	WildcardIndexes []int
	// Mode classifies the wildcard usage.
	Mode WildcardMode
}

var (
	resolvedMu    sync.Mutex
	resolvedCache = make(map[string]*Resolved)
)

// Resolve parses a concrete access string. Mixing literal indexes with bare
// wildcards is unsupported and reported as PTH-102.
func Resolve(accessPath string) (*Resolved, error) {
	resolvedMu.Lock()
	r, ok := resolvedCache[accessPath]
	resolvedMu.Unlock()
	if ok {
		if r.Mode == ModePartial {
			return nil, partialError(accessPath)
		}
		return r, nil
	}

	segments := strings.Split(accessPath, ".")
	canonical := make([]string, len(segments))
	var indexes []int
	literals, blanks := 0, 0
	for i, seg := range segments {
		switch {
		case seg == "*":
			canonical[i] = "*"
			indexes = append(indexes, -1)
			blanks++
		case isAllDigits(seg):
			n, _ := strconv.Atoi(seg)
			canonical[i] = "*"
			indexes = append(indexes, n)
			literals++
		default:
			canonical[i] = seg
		}
	}

	mode := ModeNone
	switch {
	case literals == 0 && blanks > 0:
		mode = ModeContext
	case literals > 0 && blanks == 0:
		mode = ModeAll
	case literals > 0 && blanks > 0:
		mode = ModePartial
	}

	r = &Resolved{
		Path:            accessPath,
		Info:            Get(strings.Join(canonical, ".")),
		WildcardIndexes: indexes,
		Mode:            mode,
	}
	resolvedMu.Lock()
	resolvedCache[accessPath] = r
	resolvedMu.Unlock()

	if mode == ModePartial {
		return nil, partialError(accessPath)
	}
	return r, nil
}

func partialError(accessPath string) error {
	return serr.New("PTH-102", "path",
		"partially resolved wildcard paths are not supported",
		serr.WithContext("path", accessPath),
		serr.WithHint("use either all literal indexes or all wildcards"))
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
