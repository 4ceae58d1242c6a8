package engine

import (
	"fmt"

	"github.com/tinydb-go/tinydb/internal/sqlast"
)

// Execute dispatches one parsed statement (spec §4.8.1), returning "OK", an
// affected-row count, or a list of row maps per §6.3's result shapes.
func (e *Engine) Execute(stmt sqlast.Statement) (any, error) {
	tables, err := e.loadTables()
	if err != nil {
		return nil, err
	}

	switch s := stmt.(type) {
	case *sqlast.CreateTable:
		if err := e.execCreateTable(tables, s); err != nil {
			return nil, err
		}
		return "OK", nil

	case *sqlast.DropTable:
		if err := e.execDropTable(tables, s); err != nil {
			return nil, err
		}
		return "OK", nil

	case *sqlast.CreateIndex:
		if err := e.execCreateIndex(tables, s); err != nil {
			return nil, err
		}
		return "OK", nil

	case *sqlast.DropIndex:
		if err := e.execDropIndex(tables, s); err != nil {
			return nil, err
		}
		return "OK", nil

	case *sqlast.AlterTable:
		if err := e.execAlterTable(tables, s); err != nil {
			return nil, err
		}
		return "OK", nil

	case *sqlast.Insert:
		n, err := e.execInsert(tables, toInsertStmt(s))
		if err != nil {
			return nil, err
		}
		return n, nil

	case *sqlast.Select:
		_, rows, err := e.runSelect(tables, s, nil)
		if err != nil {
			return nil, err
		}
		return resultMaps(rows), nil

	case *sqlast.Update:
		n, err := e.execUpdate(tables, s)
		if err != nil {
			return nil, err
		}
		return n, nil

	case *sqlast.Delete:
		n, err := e.execDelete(tables, s)
		if err != nil {
			return nil, err
		}
		return n, nil

	case *sqlast.Reindex:
		if err := e.execReindex(tables, s); err != nil {
			return nil, err
		}
		return "OK", nil

	case *sqlast.Explain:
		rows, err := e.execExplain(tables, s)
		if err != nil {
			return nil, err
		}
		return rows, nil

	case *sqlast.Profile:
		return e.execProfile(tables, s)

	case *sqlast.ShowTables:
		return e.execShowTables(tables), nil

	case *sqlast.ShowIndexes:
		return e.execShowIndexes(tables, s)

	case *sqlast.ShowStats:
		return e.execShowStats(tables), nil

	case *sqlast.Describe:
		return e.execDescribe(tables, s)

	default:
		return nil, fmt.Errorf("engine: transaction-control statement %T must be handled by the facade", stmt)
	}
}

func toInsertStmt(ins *sqlast.Insert) *insertStmt {
	return &insertStmt{Table: ins.Table, Columns: ins.Columns, Values: ins.Values, OrReplace: ins.OrReplace}
}

// resultMaps flattens ResultRows into the plain column->value maps the
// public API returns.
func resultMaps(rows []*ResultRow) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		m := make(map[string]any, len(r.Cols))
		for _, c := range r.Cols {
			m[c] = r.Vals[c]
		}
		out[i] = m
	}
	return out
}
