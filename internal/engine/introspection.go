package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tinydb-go/tinydb/internal/btreeindex"
	"github.com/tinydb-go/tinydb/internal/schema"
	"github.com/tinydb-go/tinydb/internal/sqlast"
)

// execExplain runs sel in full through runSelect, discards its rows, and
// returns the plan label that run used (spec §4.8.9).
func (e *Engine) execExplain(tables tableMap, ex *sqlast.Explain) ([]map[string]any, error) {
	plan, _, err := e.runSelect(tables, ex.Inner, nil)
	if err != nil {
		return nil, err
	}
	return []map[string]any{{"plan": plan}}, nil
}

// execProfile runs the wrapped statement and reports timing/shape
// alongside its plan (spec §4.8.9). Non-SELECT statements have no access
// path, so their plan is the fixed "FULL EXECUTION (<StmtName>)" label.
func (e *Engine) execProfile(tables tableMap, pr *sqlast.Profile) (map[string]any, error) {
	start := time.Now()

	var plan string
	var rowCount int

	switch inner := pr.Inner.(type) {
	case *sqlast.Select:
		var rows []*ResultRow
		var err error
		plan, rows, err = e.runSelect(tables, inner, nil)
		if err != nil {
			return nil, err
		}
		rowCount = len(rows)
	case *sqlast.Insert:
		n, err := e.execInsert(tables, toInsertStmt(inner))
		if err != nil {
			return nil, err
		}
		plan = fullExecutionPlan(inner)
		rowCount = n
	case *sqlast.Update:
		n, err := e.execUpdate(tables, inner)
		if err != nil {
			return nil, err
		}
		plan = fullExecutionPlan(inner)
		rowCount = n
	case *sqlast.Delete:
		n, err := e.execDelete(tables, inner)
		if err != nil {
			return nil, err
		}
		plan = fullExecutionPlan(inner)
		rowCount = n
	default:
		if _, err := e.Execute(inner); err != nil {
			return nil, err
		}
		plan = fullExecutionPlan(inner)
		rowCount = 0
	}

	elapsed := time.Since(start)
	return map[string]any{
		"elapsed_ms": float64(elapsed.Microseconds()) / 1000.0,
		"row_count":  rowCount,
		"plan":       plan,
	}, nil
}

func fullExecutionPlan(stmt sqlast.Statement) string {
	return fmt.Sprintf("FULL EXECUTION (%s)", stmtName(stmt))
}

func stmtName(stmt sqlast.Statement) string {
	name := fmt.Sprintf("%T", stmt)
	return strings.TrimPrefix(name, "*sqlast.")
}

// execShowTables lists every table name, sorted for deterministic output.
func (e *Engine) execShowTables(tables tableMap) []map[string]any {
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		names = append(names, t.Name)
	}
	sort.Slice(names, func(i, j int) bool { return strings.ToLower(names[i]) < strings.ToLower(names[j]) })

	out := make([]map[string]any, len(names))
	for i, n := range names {
		out[i] = map[string]any{"name": n}
	}
	return out
}

// execShowIndexes lists every secondary index, optionally restricted to
// one table.
func (e *Engine) execShowIndexes(tables tableMap, si *sqlast.ShowIndexes) ([]map[string]any, error) {
	var out []map[string]any
	addRows := func(tableName string, indexes []schema.SecondaryIndex) {
		for _, idx := range indexes {
			out = append(out, map[string]any{
				"table":   tableName,
				"name":    idx.Name,
				"columns": strings.Join(idx.Columns, ","),
				"unique":  idx.Unique,
			})
		}
	}

	if si.Table != "" {
		t, err := e.mustTable(tables, si.Table)
		if err != nil {
			return nil, err
		}
		addRows(t.Name, t.SecondaryIndexes)
		return out, nil
	}

	names := make([]string, 0, len(tables))
	for k := range tables {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		t := tables[k]
		addRows(t.Name, t.SecondaryIndexes)
	}
	return out, nil
}

// execShowStats summarizes the open database: table/page counts and the
// file's random instance tag (spec §4.8.9, SHOW STATS).
func (e *Engine) execShowStats(tables tableMap) []map[string]any {
	rowCount := 0
	for _, t := range tables {
		rows, err := e.scanTable(t)
		if err == nil {
			rowCount += len(rows)
		}
	}
	return []map[string]any{{
		"tables":      len(tables),
		"rows":        rowCount,
		"pages":       e.pager.PageCount(),
		"instance_id": e.pager.InstanceID(),
	}}
}

// execDescribe lists every column of table, one row each.
func (e *Engine) execDescribe(tables tableMap, d *sqlast.Describe) ([]map[string]any, error) {
	t, err := e.mustTable(tables, d.Table)
	if err != nil {
		return nil, err
	}
	pkCols := map[string]bool{}
	for _, c := range t.PKColumnNames() {
		pkCols[strings.ToLower(c)] = true
	}
	out := make([]map[string]any, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = map[string]any{
			"name":           c.Name,
			"type":           string(c.DataType),
			"primary_key":    c.PrimaryKey || pkCols[strings.ToLower(c.Name)],
			"not_null":       c.NotNull,
			"unique":         c.Unique,
			"default":        c.Default,
			"auto_increment": c.AutoIncrement,
		}
	}
	return out, nil
}

// execReindex drops and rebuilds every secondary index of table from
// scratch, backfilling from the live rows. Old node pages are leaked, same
// as DROP INDEX (spec §9 Open Question 3).
func (e *Engine) execReindex(tables tableMap, ri *sqlast.Reindex) error {
	t, err := e.mustTable(tables, ri.Table)
	if err != nil {
		return err
	}
	rows, err := e.scanTable(t)
	if err != nil {
		return err
	}
	for i := range t.SecondaryIndexes {
		idx := &t.SecondaryIndexes[i]
		tree, err := btreeindex.Create(e.pager)
		if err != nil {
			return err
		}
		idx.RootPage = tree.RootPage()
		for _, r := range rows {
			key, ok := secondaryKey(idx, r.Values)
			if !ok {
				continue
			}
			if idx.Unique {
				if err := tree.Insert(key, r.Loc); err != nil {
					return err
				}
			} else {
				if err := tree.InsertNonUnique(key, r.Loc); err != nil {
					return err
				}
			}
		}
	}
	return e.saveTables(tables)
}
