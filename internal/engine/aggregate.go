package engine

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/tinydb-go/tinydb/internal/sqlast"
)

// aggGroup is one GROUP BY bucket (or the single implicit group of an
// aggregate query with no GROUP BY).
type aggGroup struct {
	chains [][]row
}

// runAggregate groups matched per sel.GroupBy, evaluates each projected
// aggregate/plain column per group, and applies HAVING (spec §4.8.7).
func (e *Engine) runAggregate(tables tableMap, sel *sqlast.Select, matched [][]row, outer []row) ([]*ResultRow, error) {
	var order []string
	groups := map[string]*aggGroup{}

	if len(sel.GroupBy) == 0 {
		groups[""] = &aggGroup{chains: matched}
		order = []string{""}
	} else {
		for _, chain := range matched {
			parts := make([]string, len(sel.GroupBy))
			for i, col := range sel.GroupBy {
				v, _ := resolveColumn(chain, col)
				parts[i] = fmt.Sprint(v)
			}
			key := strings.Join(parts, "\x1f")
			g, ok := groups[key]
			if !ok {
				g = &aggGroup{}
				groups[key] = g
				order = append(order, key)
			}
			g.chains = append(g.chains, chain)
		}
	}

	var out []*ResultRow
	for _, key := range order {
		g := groups[key]
		ok, err := e.evalHaving(tables, g, sel.Having, outer)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		rr, err := e.projectAggregate(g, sel.Columns)
		if err != nil {
			return nil, err
		}
		out = append(out, rr)
	}

	if len(sel.OrderBy) > 0 {
		sortResults(out, sel.OrderBy)
	}
	return out, nil
}

func (e *Engine) projectAggregate(g *aggGroup, items []sqlast.SelectItem) (*ResultRow, error) {
	rr := newResultRow(len(items))
	for _, item := range items {
		if item.Func == "" {
			var v any
			if len(g.chains) > 0 {
				v, _ = resolveColumn(g.chains[0], item.Expr)
			}
			name := item.Expr
			if item.Alias != "" {
				name = item.Alias
			}
			rr.set(name, v)
			continue
		}

		var val any
		var err error
		if strings.EqualFold(item.Func, "ROUND") {
			val, err = e.evalRound(g, item)
		} else {
			val, err = e.evalAggCall(item.Func, argTextFor(item), item.Distinct, item.ArgStar, g.chains)
		}
		if err != nil {
			return nil, err
		}
		name := item.Alias
		if name == "" {
			name = renderFuncName(item)
		}
		rr.set(name, val)
	}
	return rr, nil
}

func (e *Engine) evalRound(g *aggGroup, item sqlast.SelectItem) (any, error) {
	if len(item.Args) < 2 {
		return nil, newError(KindType, "ROUND requires an expression and a digit count")
	}
	digits, err := strconv.Atoi(strings.TrimSpace(item.Args[1]))
	if err != nil {
		return nil, newError(KindType, "ROUND digit count must be an integer: %q", item.Args[1])
	}

	inner := item.Args[0]
	var val any
	if fn, arg, ok := parseNestedAggCall(inner); ok {
		val, err = e.evalAggCall(fn, arg, false, arg == "*", g.chains)
		if err != nil {
			return nil, err
		}
	} else if len(g.chains) > 0 {
		flat := chainVals(g.chains[0])
		val, err = evalExprValue(inner, flat)
		if err != nil {
			return nil, err
		}
	}
	return roundValue(val, digits), nil
}

func roundValue(v any, digits int) any {
	f, ok := asFloat(v)
	if !ok {
		return v
	}
	mult := math.Pow(10, float64(digits))
	return math.Round(f*mult) / mult
}

func argTextFor(item sqlast.SelectItem) string {
	if item.ArgStar {
		return "*"
	}
	if len(item.Args) > 0 {
		return item.Args[0]
	}
	return ""
}

func renderFuncName(item sqlast.SelectItem) string {
	return fmt.Sprintf("%s(%s)", item.Func, argTextFor(item))
}

// parseNestedAggCall recognizes text of the form "AVG(score)" or
// "COUNT(*)" produced by the parser's nested-call capture, used by
// ROUND's argument and by HAVING predicates over an aggregate.
func parseNestedAggCall(text string) (fn, arg string, ok bool) {
	idx := strings.IndexByte(text, '(')
	if idx < 0 || !strings.HasSuffix(text, ")") {
		return "", "", false
	}
	name := strings.ToUpper(strings.TrimSpace(text[:idx]))
	switch name {
	case "COUNT", "SUM", "AVG", "MIN", "MAX":
		return name, text[idx+1 : len(text)-1], true
	default:
		return "", "", false
	}
}

// chainVals flattens a join chain into one column-name-keyed map, later
// rows in the chain taking precedence on name collision.
func chainVals(chain []row) map[string]any {
	m := make(map[string]any)
	for _, r := range chain {
		for k, v := range r.Values {
			m[k] = v
		}
	}
	return m
}

// evalAggCall computes one aggregate function's value over group.
func (e *Engine) evalAggCall(fn, argText string, distinct, argStar bool, group [][]row) (any, error) {
	fn = strings.ToUpper(fn)
	if fn == "COUNT" && argStar {
		return int64(len(group)), nil
	}

	var vals []any
	seen := map[string]bool{}
	for _, chain := range group {
		v, err := evalExprValue(argText, chainVals(chain))
		if err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}
		if distinct {
			key := fmt.Sprint(v)
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		vals = append(vals, v)
	}

	switch fn {
	case "COUNT":
		return int64(len(vals)), nil
	case "SUM":
		var sum float64
		for _, v := range vals {
			f, _ := asFloat(v)
			sum += f
		}
		return sum, nil
	case "AVG":
		if len(vals) == 0 {
			return nil, nil
		}
		var sum float64
		for _, v := range vals {
			f, _ := asFloat(v)
			sum += f
		}
		return sum / float64(len(vals)), nil
	case "MIN":
		if len(vals) == 0 {
			return nil, nil
		}
		m := vals[0]
		for _, v := range vals[1:] {
			if compareValues(v, m) < 0 {
				m = v
			}
		}
		return m, nil
	case "MAX":
		if len(vals) == 0 {
			return nil, nil
		}
		m := vals[0]
		for _, v := range vals[1:] {
			if compareValues(v, m) > 0 {
				m = v
			}
		}
		return m, nil
	default:
		return nil, newError(KindType, "unsupported aggregate function %q", fn)
	}
}

// evalHaving applies having's outer-OR-of-inner-AND predicates to group g,
// with outer appended to the resolution chain used by correlated
// subqueries (spec §4.8.7).
func (e *Engine) evalHaving(tables tableMap, g *aggGroup, having *sqlast.WhereClause, outer []row) (bool, error) {
	if having == nil {
		return true, nil
	}
	for _, grp := range having.Groups {
		all := true
		for _, pred := range grp {
			ok, err := e.evalHavingPredicate(tables, g, pred, outer)
			if err != nil {
				return false, err
			}
			if !ok {
				all = false
				break
			}
		}
		if all {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) resolveHavingExpr(g *aggGroup, expr string) (any, bool, error) {
	if fn, arg, ok := parseNestedAggCall(expr); ok {
		v, err := e.evalAggCall(fn, arg, false, arg == "*", g.chains)
		return v, err == nil, err
	}
	if len(g.chains) > 0 {
		v, ok := resolveColumn(g.chains[0], expr)
		return v, ok, nil
	}
	return nil, false, nil
}

func (e *Engine) evalHavingPredicate(tables tableMap, g *aggGroup, pred sqlast.Predicate, outer []row) (bool, error) {
	switch pred.Op {
	case sqlast.OpIsNull:
		v, _, err := e.resolveHavingExpr(g, pred.Column)
		return v == nil, err
	case sqlast.OpIsNotNull:
		v, _, err := e.resolveHavingExpr(g, pred.Column)
		return v != nil, err
	case sqlast.OpInSubquery, sqlast.OpNotInSubquery, sqlast.OpEqSubquery:
		v, ok, err := e.resolveHavingExpr(g, pred.Column)
		if err != nil || !ok || v == nil {
			return false, err
		}
		var correlation []row
		if len(g.chains) > 0 {
			correlation = append(correlation, g.chains[0]...)
		}
		correlation = append(correlation, outer...)
		items, err := e.execScalarListSubquery(tables, pred.Subquery, correlation)
		if err != nil {
			return false, err
		}
		found := false
		for _, item := range items {
			if compareValues(v, item) == 0 {
				found = true
				break
			}
		}
		switch pred.Op {
		case sqlast.OpInSubquery:
			return found, nil
		case sqlast.OpNotInSubquery:
			return !found, nil
		default:
			if len(items) == 0 {
				return false, nil
			}
			return compareValues(v, items[0]) == 0, nil
		}
	default:
		v, ok, err := e.resolveHavingExpr(g, pred.Column)
		if err != nil || !ok || v == nil {
			return false, err
		}
		return compareForOp(v, pred.Value, pred.Op), nil
	}
}

// sortResults stably sorts already-projected rows, NULLs last.
func sortResults(results []*ResultRow, order []sqlast.OrderItem) {
	sort.SliceStable(results, func(i, j int) bool {
		for _, item := range order {
			vi, oki := lookupResultCol(results[i], item.Column)
			vj, okj := lookupResultCol(results[j], item.Column)
			ni, nj := !oki || vi == nil, !okj || vj == nil
			if ni && nj {
				continue
			}
			if ni != nj {
				return nj
			}
			c := compareValues(vi, vj)
			if c == 0 {
				continue
			}
			if item.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func lookupResultCol(r *ResultRow, col string) (any, bool) {
	if v, ok := r.Vals[col]; ok {
		return v, true
	}
	for _, c := range r.Cols {
		if strings.EqualFold(c, col) {
			return r.Vals[c], true
		}
	}
	return nil, false
}
