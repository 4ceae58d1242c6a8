package engine

import (
	"fmt"
	"strings"

	"github.com/tinydb-go/tinydb/internal/btreeindex"
	"github.com/tinydb-go/tinydb/internal/schema"
	"github.com/tinydb-go/tinydb/internal/sqlast"
)

// plan labels (spec §4.8.9).
const (
	planPKLookup     = "PK INDEX LOOKUP"
	planSecondary    = "SECONDARY INDEX LOOKUP"
	planIndexOrder   = "INDEX ORDER SCAN"
	planFullScan     = "FULL TABLE SCAN"
	planNestedLoop   = "NESTED LOOP JOIN"
)

// ResultRow is one output row of a SELECT, keyed by the projection's column
// expression or its AS alias, in projection order.
type ResultRow struct {
	Cols []string
	Vals map[string]any
}

func newResultRow(n int) *ResultRow {
	return &ResultRow{Cols: make([]string, 0, n), Vals: make(map[string]any, n)}
}

func (r *ResultRow) set(col string, v any) {
	if _, exists := r.Vals[col]; !exists {
		r.Cols = append(r.Cols, col)
	}
	r.Vals[col] = v
}

// runSelect executes sel and returns its plan label and result rows. outer
// is an optional correlation context appended to every row's resolution
// chain (used by HAVING's correlated scalar subquery, spec §4.8.7).
func (e *Engine) runSelect(tables tableMap, sel *sqlast.Select, outer []row) (string, []*ResultRow, error) {
	t, err := e.mustTable(tables, sel.Table)
	if err != nil {
		return "", nil, err
	}

	var joined [][]row
	var plan string
	if len(sel.Joins) > 0 {
		plan = planNestedLoop
		base, err := e.scanTable(t)
		if err != nil {
			return "", nil, err
		}
		joined = make([][]row, len(base))
		for i, r := range base {
			joined[i] = []row{r}
		}
		for _, jc := range sel.Joins {
			joined, err = e.applyJoin(tables, joined, jc)
			if err != nil {
				return "", nil, err
			}
		}
	} else {
		plan, joined, err = e.planScan(t, sel)
		if err != nil {
			return "", nil, err
		}
	}

	var matched [][]row
	for _, chain := range joined {
		resolveChain := chain
		if len(outer) > 0 {
			resolveChain = append(append([]row{}, chain...), outer...)
		}
		ok, err := e.evalWhere(tables, resolveChain, sel.Where)
		if err != nil {
			return "", nil, err
		}
		if ok {
			matched = append(matched, chain)
		}
	}

	hasAgg := sel.GroupBy != nil
	for _, item := range sel.Columns {
		if item.Func != "" {
			hasAgg = true
		}
	}

	var results []*ResultRow
	if hasAgg {
		results, err = e.runAggregate(tables, sel, matched, outer)
		if err != nil {
			return "", nil, err
		}
	} else {
		if len(sel.OrderBy) > 0 {
			sortRows(matched, sel.OrderBy)
		}
		for _, chain := range matched {
			results = append(results, e.project(chain, sel.Columns))
		}
	}

	if sel.Distinct {
		results = dedupeResults(results)
	}

	if sel.Limit != nil || sel.Offset != nil {
		start := 0
		if sel.Offset != nil {
			start = *sel.Offset
		}
		if start > len(results) {
			start = len(results)
		}
		end := len(results)
		if sel.Limit != nil && start+*sel.Limit < end {
			end = start + *sel.Limit
		}
		results = results[start:end]
	}

	return plan, results, nil
}

// planScan chooses a single-table access path (spec §4.8.3) and returns
// its matching rows, each wrapped as a one-element join chain.
func (e *Engine) planScan(t *schema.Table, sel *sqlast.Select) (string, [][]row, error) {
	if label, rows, ok, err := e.tryPKLookup(t, sel); err != nil {
		return "", nil, err
	} else if ok {
		return label, rows, nil
	}
	if label, rows, ok, err := e.trySecondaryLookup(t, sel); err != nil {
		return "", nil, err
	} else if ok {
		return label, rows, nil
	}
	if label, rows, ok, err := e.tryIndexOrderScan(t, sel); err != nil {
		return "", nil, err
	} else if ok {
		return label, rows, nil
	}
	all, err := e.scanTable(t)
	if err != nil {
		return "", nil, err
	}
	return planFullScan, wrapChains(all), nil
}

func wrapChains(rows []row) [][]row {
	out := make([][]row, len(rows))
	for i, r := range rows {
		out[i] = []row{r}
	}
	return out
}

// singleEqGroup returns the lone AND-group's predicates if sel.Where is
// exactly one group (no OR) and every predicate in it is "=", else false.
func singleEqGroup(sel *sqlast.Select) ([]sqlast.Predicate, bool) {
	if sel.Where == nil || len(sel.Where.Groups) != 1 {
		return nil, false
	}
	group := sel.Where.Groups[0]
	for _, p := range group {
		if p.Op != sqlast.OpEq {
			return nil, false
		}
	}
	return group, true
}

func (e *Engine) tryPKLookup(t *schema.Table, sel *sqlast.Select) (string, [][]row, bool, error) {
	if len(sel.OrderBy) > 0 {
		return "", nil, false, nil
	}
	pkCols := t.PKColumnNames()
	if len(pkCols) == 0 {
		return "", nil, false, nil
	}
	group, ok := singleEqGroup(sel)
	if !ok || len(group) != len(pkCols) {
		return "", nil, false, nil
	}
	byCol := make(map[string]any, len(group))
	for _, p := range group {
		byCol[strings.ToLower(p.Column)] = p.Value
	}
	var key any
	if len(pkCols) == 1 {
		v, ok := byCol[strings.ToLower(pkCols[0])]
		if !ok {
			return "", nil, false, nil
		}
		key = v
	} else {
		tuple := make([]any, len(pkCols))
		for i, c := range pkCols {
			v, ok := byCol[strings.ToLower(c)]
			if !ok {
				return "", nil, false, nil
			}
			tuple[i] = v
		}
		key = tuple
	}
	idx, ok := e.pkIndex(t)
	if !ok {
		return "", nil, false, nil
	}
	loc, found, err := idx.Find(key)
	if err != nil {
		return "", nil, false, err
	}
	if !found {
		return planPKLookup, nil, true, nil
	}
	r, err := e.readRow(t, loc)
	if err != nil {
		return "", nil, false, err
	}
	return planPKLookup, [][]row{{r}}, true, nil
}

func (e *Engine) trySecondaryLookup(t *schema.Table, sel *sqlast.Select) (string, [][]row, bool, error) {
	for i := range t.SecondaryIndexes {
		idx := &t.SecondaryIndexes[i]
		if locs, ok, err := e.matchSecondaryEq(t, idx, sel); err != nil {
			return "", nil, false, err
		} else if ok {
			rows, err := e.locsToRows(t, dedupeLocations(locs))
			return planSecondary, wrapChains(rows), true, err
		}
		if locs, ok, err := e.matchSecondaryIn(t, idx, sel); err != nil {
			return "", nil, false, err
		} else if ok {
			rows, err := e.locsToRows(t, dedupeLocations(locs))
			return planSecondary, wrapChains(rows), true, err
		}
	}
	return "", nil, false, nil
}

func (e *Engine) matchSecondaryEq(t *schema.Table, idx *schema.SecondaryIndex, sel *sqlast.Select) ([]btreeindex.Location, bool, error) {
	group, ok := singleEqGroup(sel)
	if !ok || len(group) != len(idx.Columns) {
		return nil, false, nil
	}
	byCol := make(map[string]any, len(group))
	for _, p := range group {
		byCol[strings.ToLower(p.Column)] = p.Value
	}
	var key any
	if len(idx.Columns) == 1 {
		v, ok := byCol[strings.ToLower(idx.Columns[0])]
		if !ok {
			return nil, false, nil
		}
		key = v
	} else {
		tuple := make([]any, len(idx.Columns))
		for i, c := range idx.Columns {
			v, ok := byCol[strings.ToLower(c)]
			if !ok {
				return nil, false, nil
			}
			tuple[i] = v
		}
		key = tuple
	}
	tree := e.secondaryIndex(idx)
	locs, err := tree.FindAll(key)
	return locs, true, err
}

func (e *Engine) matchSecondaryIn(t *schema.Table, idx *schema.SecondaryIndex, sel *sqlast.Select) ([]btreeindex.Location, bool, error) {
	if len(idx.Columns) != 1 || sel.Where == nil || len(sel.Where.Groups) != 1 || len(sel.Where.Groups[0]) != 1 {
		return nil, false, nil
	}
	p := sel.Where.Groups[0][0]
	if p.Op != sqlast.OpIn || !strings.EqualFold(p.Column, idx.Columns[0]) {
		return nil, false, nil
	}
	tree := e.secondaryIndex(idx)
	var all []btreeindex.Location
	for _, v := range p.Value.([]any) {
		locs, err := tree.FindAll(v)
		if err != nil {
			return nil, false, err
		}
		all = append(all, locs...)
	}
	return all, true, nil
}

func (e *Engine) tryIndexOrderScan(t *schema.Table, sel *sqlast.Select) (string, [][]row, bool, error) {
	if len(sel.OrderBy) != 1 {
		return "", nil, false, nil
	}
	col := sel.OrderBy[0].Column
	var tree *btreeindex.Tree
	if pkCols := t.PKColumnNames(); len(pkCols) == 1 && strings.EqualFold(pkCols[0], col) {
		tree, _ = e.pkIndex(t)
	} else {
		for i := range t.SecondaryIndexes {
			idx := &t.SecondaryIndexes[i]
			if len(idx.Columns) == 1 && strings.EqualFold(idx.Columns[0], col) {
				tree = e.secondaryIndex(idx)
				break
			}
		}
	}
	if tree == nil {
		return "", nil, false, nil
	}
	items, err := tree.ScanItems()
	if err != nil {
		return "", nil, false, err
	}
	if sel.OrderBy[0].Desc {
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
	}
	rows := make([]row, len(items))
	for i, it := range items {
		r, err := e.readRow(t, it.Location)
		if err != nil {
			return "", nil, false, err
		}
		rows[i] = r
	}
	return planIndexOrder, wrapChains(rows), true, nil
}

func (e *Engine) locsToRows(t *schema.Table, locs []btreeindex.Location) ([]row, error) {
	out := make([]row, 0, len(locs))
	for _, loc := range locs {
		r, err := e.readRow(t, loc)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func dedupeLocations(locs []btreeindex.Location) []btreeindex.Location {
	seen := make(map[btreeindex.Location]bool, len(locs))
	out := locs[:0]
	for _, l := range locs {
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

// applyJoin extends each left-side chain with matching rows of jc.Table,
// probing a single-column secondary index on the ON column when one
// exists, else falling back to a full scan of the right table.
func (e *Engine) applyJoin(tables tableMap, left [][]row, jc sqlast.JoinClause) ([][]row, error) {
	rt, err := e.mustTable(tables, jc.Table)
	if err != nil {
		return nil, err
	}
	rightCol := unqualify(jc.RightColumn)

	var tree *btreeindex.Tree
	if pkCols := rt.PKColumnNames(); len(pkCols) == 1 && strings.EqualFold(pkCols[0], rightCol) {
		tree, _ = e.pkIndex(rt)
	} else {
		for i := range rt.SecondaryIndexes {
			idx := &rt.SecondaryIndexes[i]
			if len(idx.Columns) == 1 && strings.EqualFold(idx.Columns[0], rightCol) {
				tree = e.secondaryIndex(idx)
				break
			}
		}
	}

	var rightRows []row
	if tree == nil {
		rightRows, err = e.scanTable(rt)
		if err != nil {
			return nil, err
		}
	}

	var out [][]row
	for _, chain := range left {
		leftVal, _ := resolveColumn(chain, jc.LeftColumn)
		var matches []row
		if tree != nil {
			locs, err := tree.FindAll(leftVal)
			if err != nil {
				return nil, err
			}
			matches, err = e.locsToRows(rt, locs)
			if err != nil {
				return nil, err
			}
		} else {
			for _, r := range rightRows {
				if rv, ok := r.get(rightCol); ok && compareValues(rv, leftVal) == 0 {
					matches = append(matches, r)
				}
			}
		}
		if len(matches) == 0 {
			if jc.Type == sqlast.JoinLeft {
				out = append(out, append(append([]row{}, chain...), nullRow(rt)))
			}
			continue
		}
		for _, m := range matches {
			out = append(out, append(append([]row{}, chain...), m))
		}
	}
	return out, nil
}

func unqualify(col string) string {
	if dot := strings.IndexByte(col, '.'); dot >= 0 {
		return col[dot+1:]
	}
	return col
}

func nullRow(t *schema.Table) row {
	vals := make(map[string]any, len(t.Columns))
	for _, c := range t.Columns {
		vals[c.Name] = nil
	}
	return row{Table: t.Name, Values: vals}
}

// project evaluates sel's non-aggregate SelectItems against chain.
func (e *Engine) project(chain []row, items []sqlast.SelectItem) *ResultRow {
	out := newResultRow(len(items))
	for _, item := range items {
		if item.Expr == "*" {
			for _, r := range chain {
				for k, v := range r.Values {
					out.set(k, v)
				}
			}
			continue
		}
		v, _ := resolveColumn(chain, item.Expr)
		name := item.Expr
		if item.Alias != "" {
			name = item.Alias
		}
		out.set(name, v)
	}
	return out
}

func dedupeResults(rows []*ResultRow) []*ResultRow {
	seen := make(map[string]bool, len(rows))
	out := rows[:0]
	for _, r := range rows {
		key := resultKey(r)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

func resultKey(r *ResultRow) string {
	var b strings.Builder
	for _, c := range r.Cols {
		b.WriteString(c)
		b.WriteByte('=')
		b.WriteString(toKeyString(r.Vals[c]))
		b.WriteByte('\x1f')
	}
	return b.String()
}

func toKeyString(v any) string {
	if v == nil {
		return "\x00"
	}
	return fmt.Sprint(v)
}

// execScalarListSubquery runs sub (correlated against outer) and returns
// the values of its first projected column, for IN/NOT IN/= subqueries.
func (e *Engine) execScalarListSubquery(tables tableMap, sub *sqlast.Select, outer []row) ([]any, error) {
	_, results, err := e.runSelect(tables, sub, outer)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(results))
	for _, r := range results {
		if len(r.Cols) == 0 {
			continue
		}
		out = append(out, r.Vals[r.Cols[0]])
	}
	return out, nil
}
