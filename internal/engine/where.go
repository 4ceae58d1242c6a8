package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tinydb-go/tinydb/internal/sqlast"
	"github.com/tinydb-go/tinydb/internal/values"
)

// evalWhere reports whether rows satisfies wc (outer OR of inner AND,
// spec §6.2). rows is the resolution chain for column lookups: joined
// table rows, optionally followed by an outer row for correlated
// subquery predicates (spec §4.8.7's HAVING correlation).
func (e *Engine) evalWhere(tables tableMap, rows []row, wc *sqlast.WhereClause) (bool, error) {
	if wc == nil {
		return true, nil
	}
	for _, group := range wc.Groups {
		all := true
		for _, pred := range group {
			ok, err := e.evalPredicate(tables, rows, pred)
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

func (e *Engine) evalPredicate(tables tableMap, rows []row, pred sqlast.Predicate) (bool, error) {
	switch pred.Op {
	case sqlast.OpIsNull:
		v, _ := resolveColumn(rows, pred.Column)
		return v == nil, nil
	case sqlast.OpIsNotNull:
		v, _ := resolveColumn(rows, pred.Column)
		return v != nil, nil
	case sqlast.OpBetween:
		v, ok := resolveColumn(rows, pred.Column)
		if !ok || v == nil {
			return false, nil
		}
		bounds := pred.Value.([2]any)
		return compareValues(v, bounds[0]) >= 0 && compareValues(v, bounds[1]) <= 0, nil
	case sqlast.OpLike:
		v, ok := resolveColumn(rows, pred.Column)
		if !ok || v == nil {
			return false, nil
		}
		s, ok := v.(string)
		if !ok {
			return false, nil
		}
		pat, _ := pred.Value.(string)
		return matchLike(s, pat), nil
	case sqlast.OpIn, sqlast.OpNotIn:
		v, ok := resolveColumn(rows, pred.Column)
		found := false
		if ok && v != nil {
			for _, item := range pred.Value.([]any) {
				if compareValues(v, item) == 0 {
					found = true
					break
				}
			}
		}
		if pred.Op == sqlast.OpIn {
			return found, nil
		}
		return ok && v != nil && !found, nil
	case sqlast.OpInSubquery, sqlast.OpNotInSubquery:
		v, ok := resolveColumn(rows, pred.Column)
		if !ok || v == nil {
			return false, nil
		}
		items, err := e.execScalarListSubquery(tables, pred.Subquery, rows)
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
		if pred.Op == sqlast.OpInSubquery {
			return found, nil
		}
		return !found, nil
	case sqlast.OpEqSubquery:
		v, ok := resolveColumn(rows, pred.Column)
		if !ok || v == nil {
			return false, nil
		}
		items, err := e.execScalarListSubquery(tables, pred.Subquery, rows)
		if err != nil {
			return false, err
		}
		if len(items) == 0 {
			return false, nil
		}
		return compareValues(v, items[0]) == 0, nil
	default:
		v, ok := resolveColumn(rows, pred.Column)
		if !ok || v == nil {
			return false, nil
		}
		return compareForOp(v, pred.Value, pred.Op), nil
	}
}

func compareForOp(a, b any, op sqlast.Op) bool {
	c := compareValues(a, b)
	switch op {
	case sqlast.OpEq:
		return c == 0
	case sqlast.OpNeq:
		return c != 0
	case sqlast.OpLt:
		return c < 0
	case sqlast.OpLte:
		return c <= 0
	case sqlast.OpGt:
		return c > 0
	case sqlast.OpGte:
		return c >= 0
	default:
		return false
	}
}

// compareValues orders two scalar values, treating decimals/numbers
// numerically and everything else via fmt.Sprint string comparison.
func compareValues(a, b any) int {
	if ra, ok := values.AsBigRat(a); ok {
		if rb, ok2 := values.DecimalFromAny(b); ok2 {
			return ra.Cmp(rb)
		}
	}
	if rb, ok := values.AsBigRat(b); ok {
		if ra, ok2 := values.DecimalFromAny(a); ok2 {
			return ra.Cmp(rb)
		}
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok2 := b.(bool); ok2 {
			if ab == bb {
				return 0
			}
			if !ab {
				return -1
			}
			return 1
		}
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	return strings.Compare(as, bs)
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}

// matchLike implements SQL LIKE with % and _ wildcards (no escape char).
func matchLike(s, pattern string) bool {
	return likeMatch([]rune(s), []rune(pattern))
}

func likeMatch(s, p []rune) bool {
	if len(p) == 0 {
		return len(s) == 0
	}
	switch p[0] {
	case '%':
		if likeMatch(s, p[1:]) {
			return true
		}
		for i := 0; i < len(s); i++ {
			if likeMatch(s[i+1:], p[1:]) {
				return true
			}
		}
		return false
	case '_':
		if len(s) == 0 {
			return false
		}
		return likeMatch(s[1:], p[1:])
	default:
		if len(s) == 0 || s[0] != p[0] {
			return false
		}
		return likeMatch(s[1:], p[1:])
	}
}

// sortRows stably sorts rows by order, NULLs last (spec §4.8.3).
func sortRows(rows [][]row, order []sqlast.OrderItem) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, item := range order {
			vi, oki := resolveColumn(rows[i], item.Column)
			vj, okj := resolveColumn(rows[j], item.Column)
			ni, nj := !oki || vi == nil, !okj || vj == nil
			if ni && nj {
				continue
			}
			if ni != nj {
				// NULLs last regardless of ASC/DESC.
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
