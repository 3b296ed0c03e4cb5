package structive

import (
	"strings"

	"github.com/structive/structive-go/internal/engine"
	"github.com/structive/structive-go/internal/serr"
)

// ParseBindings parses a data-bind attribute into binding expressions.
//
// The grammar is one statement per semicolon:
//
//	nodeProp[|filter,opt...]:stateProp[|filter,opt...][@decorator,...]
//
// Filters on the state side transform values on the way into the DOM;
// filters on the node side transform DOM input on the way back to state.
func ParseBindings(src string) ([]engine.BindingExpr, error) {
	var exprs []engine.BindingExpr
	for _, stmt := range strings.Split(src, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		expr, err := parseStatement(stmt)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
	}
	if len(exprs) == 0 {
		return nil, serr.New("BND-503", "bindexpr", "empty binding expression",
			serr.WithContext("source", src))
	}
	return exprs, nil
}

func parseStatement(stmt string) (engine.BindingExpr, error) {
	var expr engine.BindingExpr

	body := stmt
	if at := strings.LastIndex(stmt, "@"); at >= 0 {
		body = stmt[:at]
		for _, dec := range strings.Split(stmt[at+1:], ",") {
			dec = strings.TrimSpace(dec)
			if dec != "" {
				expr.Decorators = append(expr.Decorators, dec)
			}
		}
	}

	nodeSide, stateSide, ok := strings.Cut(body, ":")
	if !ok {
		return expr, serr.New("BND-503", "bindexpr", "binding statement needs nodeProp:stateProp",
			serr.WithContext("statement", stmt))
	}

	nodeProp, outFilters, err := parseSide(nodeSide, stmt)
	if err != nil {
		return expr, err
	}
	stateProp, inFilters, err := parseSide(stateSide, stmt)
	if err != nil {
		return expr, err
	}

	expr.NodeProperty = nodeProp
	expr.StateProperty = stateProp
	expr.InputFilters = inFilters
	expr.OutputFilters = outFilters
	return expr, nil
}

// parseSide splits "prop|filter,opt|filter" into the property name and its
// filter calls.
func parseSide(side, stmt string) (string, []engine.FilterCall, error) {
	parts := strings.Split(side, "|")
	prop := strings.TrimSpace(parts[0])
	if prop == "" {
		return "", nil, serr.New("BND-503", "bindexpr", "binding side has no property",
			serr.WithContext("statement", stmt))
	}
	var calls []engine.FilterCall
	for _, raw := range parts[1:] {
		fields := strings.Split(raw, ",")
		name := strings.TrimSpace(fields[0])
		if name == "" {
			return "", nil, serr.New("BND-503", "bindexpr", "filter call has no name",
				serr.WithContext("statement", stmt))
		}
		call := engine.FilterCall{Name: name}
		for _, opt := range fields[1:] {
			call.Options = append(call.Options, strings.TrimSpace(opt))
		}
		calls = append(calls, call)
	}
	return prop, calls, nil
}
