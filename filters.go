package structive

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/structive/structive-go/internal/engine"
	"github.com/structive/structive-go/internal/serr"
)

// Filters resolves filter names for binding expressions. It ships with the
// built-in library and accepts per-application registrations.
type Filters struct {
	mu        sync.RWMutex
	factories map[string]engine.FilterFactory
}

// NewFilters returns a registry preloaded with the built-in filters.
func NewFilters() *Filters {
	f := &Filters{factories: make(map[string]engine.FilterFactory)}
	for name, factory := range builtinFilters {
		f.factories[name] = factory
	}
	return f
}

// Register adds or replaces a named filter factory.
func (f *Filters) Register(name string, factory engine.FilterFactory) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.factories[name] = factory
}

// Lookup implements the engine's filter registry.
func (f *Filters) Lookup(name string) (engine.FilterFactory, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	factory, ok := f.factories[name]
	return factory, ok
}

// simple wraps an option-less transform as a factory.
func simple(name string, fn engine.FilterFn) engine.FilterFactory {
	return func(options []string) (engine.FilterFn, error) {
		if len(options) != 0 {
			return nil, serr.Newf("CFG-004", "filters", "filter %q takes no options", name)
		}
		return fn, nil
	}
}

// oneOption wraps a single-option transform as a factory.
func oneOption(name string, build func(opt string) (engine.FilterFn, error)) engine.FilterFactory {
	return func(options []string) (engine.FilterFn, error) {
		if len(options) != 1 {
			return nil, serr.Newf("CFG-004", "filters", "filter %q needs exactly one option", name)
		}
		return build(options[0])
	}
}

var titleCaser = cases.Title(language.English)

var builtinFilters = map[string]engine.FilterFactory{
	"upper": simple("upper", func(v any) (any, error) {
		return strings.ToUpper(filterString(v)), nil
	}),
	"lower": simple("lower", func(v any) (any, error) {
		return strings.ToLower(filterString(v)), nil
	}),
	"title": simple("title", func(v any) (any, error) {
		return titleCaser.String(filterString(v)), nil
	}),
	"trim": simple("trim", func(v any) (any, error) {
		return strings.TrimSpace(filterString(v)), nil
	}),

	"number": simple("number", func(v any) (any, error) {
		return filterFloat(v)
	}),
	"int": simple("int", func(v any) (any, error) {
		f, err := filterFloat(v)
		if err != nil {
			return nil, err
		}
		return int(f), nil
	}),
	"string": simple("string", func(v any) (any, error) {
		return filterString(v), nil
	}),
	"boolean": simple("boolean", func(v any) (any, error) {
		return filterBool(v), nil
	}),
	"not": simple("not", func(v any) (any, error) {
		return !filterBool(v), nil
	}),
	"json": simple("json", func(v any) (any, error) {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, serr.New("CFG-004", "filters", "value is not JSON-encodable",
				serr.WithCause(err))
		}
		return string(raw), nil
	}),

	"fixed": oneOption("fixed", func(opt string) (engine.FilterFn, error) {
		digits, err := strconv.Atoi(opt)
		if err != nil || digits < 0 {
			return nil, serr.Newf("CFG-004", "filters", "fixed wants a digit count, got %q", opt)
		}
		return func(v any) (any, error) {
			f, err := filterFloat(v)
			if err != nil {
				return nil, err
			}
			return strconv.FormatFloat(f, 'f', digits, 64), nil
		}, nil
	}),
	"fallback": oneOption("fallback", func(opt string) (engine.FilterFn, error) {
		return func(v any) (any, error) {
			if v == nil || v == "" {
				return opt, nil
			}
			return v, nil
		}, nil
	}),

	"eq": comparison("eq", func(cmp int) bool { return cmp == 0 }),
	"ne": comparison("ne", func(cmp int) bool { return cmp != 0 }),
	"lt": comparison("lt", func(cmp int) bool { return cmp < 0 }),
	"le": comparison("le", func(cmp int) bool { return cmp <= 0 }),
	"gt": comparison("gt", func(cmp int) bool { return cmp > 0 }),
	"ge": comparison("ge", func(cmp int) bool { return cmp >= 0 }),

	"inc": arithmetic("inc", func(v, operand float64) float64 { return v + operand }),
	"dec": arithmetic("dec", func(v, operand float64) float64 { return v - operand }),
	"mul": arithmetic("mul", func(v, operand float64) float64 { return v * operand }),
	"div": arithmetic("div", func(v, operand float64) float64 { return v / operand }),
}

// comparison builds eq/ne/lt/le/gt/ge: numeric when both sides parse as
// numbers, string comparison otherwise.
func comparison(name string, accept func(cmp int) bool) engine.FilterFactory {
	return oneOption(name, func(opt string) (engine.FilterFn, error) {
		return func(v any) (any, error) {
			if lhs, err := filterFloat(v); err == nil {
				if rhs, err := strconv.ParseFloat(opt, 64); err == nil {
					switch {
					case lhs < rhs:
						return accept(-1), nil
					case lhs > rhs:
						return accept(1), nil
					default:
						return accept(0), nil
					}
				}
			}
			return accept(strings.Compare(filterString(v), opt)), nil
		}, nil
	})
}

func arithmetic(name string, apply func(v, operand float64) float64) engine.FilterFactory {
	return oneOption(name, func(opt string) (engine.FilterFn, error) {
		operand, err := strconv.ParseFloat(opt, 64)
		if err != nil {
			return nil, serr.Newf("CFG-004", "filters", "filter %q wants a numeric option, got %q", name, opt)
		}
		return func(v any) (any, error) {
			f, err := filterFloat(v)
			if err != nil {
				return nil, err
			}
			result := apply(f, operand)
			if result == float64(int(result)) {
				return int(result), nil
			}
			return result, nil
		}, nil
	})
}

func filterString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(v)
	}
}

func filterFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, serr.Newf("CFG-004", "filters", "value %q is not numeric", n)
		}
		return f, nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case nil:
		return 0, nil
	default:
		return 0, serr.Newf("CFG-004", "filters", "value of type %T is not numeric", v)
	}
}

func filterBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case nil:
		return false
	case string:
		return b != "" && b != "false" && b != "0"
	case int:
		return b != 0
	case int64:
		return b != 0
	case float64:
		return b != 0
	default:
		return true
	}
}
