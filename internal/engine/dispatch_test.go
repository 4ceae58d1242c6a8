package engine

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tinydb-go/tinydb/internal/pager"
	"github.com/tinydb-go/tinydb/internal/sqlast"
	"github.com/tinydb-go/tinydb/internal/sqlparser"
)

func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	p, err := pager.Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("pager.Open: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return New(p, zerolog.Nop())
}

// mustExec parses and runs sql inside its own auto-begin/commit transaction,
// mirroring how the facade wraps a single-statement call.
func mustExec(t *testing.T, e *Engine, sql string) any {
	t.Helper()
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		t.Fatalf("Parse(%q): %v", sql, err)
	}
	if err := e.pager.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	out, err := e.Execute(stmt)
	if err != nil {
		e.pager.Rollback()
		t.Fatalf("Execute(%q): %v", sql, err)
	}
	if err := e.pager.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return out
}

func execErr(t *testing.T, e *Engine, sql string) error {
	t.Helper()
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		t.Fatalf("Parse(%q): %v", sql, err)
	}
	if err := e.pager.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	_, execErr := e.Execute(stmt)
	e.pager.Rollback()
	return execErr
}

func TestExecute_CreateInsertSelect(t *testing.T) {
	e := openTestEngine(t)

	if out := mustExec(t, e, `CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`); out != "OK" {
		t.Fatalf("CreateTable = %v, want OK", out)
	}
	if out := mustExec(t, e, `INSERT INTO users (id, name) VALUES (1, 'Ada'), (2, 'Grace')`); out != 2 {
		t.Fatalf("Insert rows = %v, want 2", out)
	}

	rows := mustExec(t, e, `SELECT id, name FROM users WHERE id = 1`).([]map[string]any)
	if len(rows) != 1 || rows[0]["name"] != "Ada" {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestExecute_UpdateDelete(t *testing.T) {
	e := openTestEngine(t)
	mustExec(t, e, `CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)`)
	mustExec(t, e, `INSERT INTO users (id, name) VALUES (1, 'Ada'), (2, 'Grace')`)

	if n := mustExec(t, e, `UPDATE users SET name = 'Lovelace' WHERE id = 1`); n != 1 {
		t.Fatalf("Update count = %v, want 1", n)
	}
	rows := mustExec(t, e, `SELECT name FROM users WHERE id = 1`).([]map[string]any)
	if rows[0]["name"] != "Lovelace" {
		t.Fatalf("after update: %+v", rows)
	}

	if n := mustExec(t, e, `DELETE FROM users WHERE id = 2`); n != 1 {
		t.Fatalf("Delete count = %v, want 1", n)
	}
	rows = mustExec(t, e, `SELECT id FROM users`).([]map[string]any)
	if len(rows) != 1 {
		t.Fatalf("after delete: %+v", rows)
	}
}

func TestExecute_TransactionControlIsFacadeOwned(t *testing.T) {
	e := openTestEngine(t)
	for _, sql := range []string{"BEGIN", "COMMIT", "ROLLBACK"} {
		stmt, err := sqlparser.Parse(sql)
		if err != nil {
			t.Fatalf("Parse(%q): %v", sql, err)
		}
		if _, err := e.Execute(stmt); err == nil {
			t.Errorf("Execute(%T) should fail: transaction control is facade-owned", stmt)
		}
	}
}

func TestExecute_UnknownTable(t *testing.T) {
	e := openTestEngine(t)
	err := execErr(t, e, `SELECT * FROM ghosts`)
	if err == nil {
		t.Fatalf("expected an error")
	}
	ee, ok := err.(*Error)
	if !ok {
		t.Fatalf("error is not *engine.Error: %v", err)
	}
	if ee.Kind != KindSchema {
		t.Errorf("Kind = %v, want %v", ee.Kind, KindSchema)
	}
}

func TestResultMaps_PreservesValues(t *testing.T) {
	rows := []*ResultRow{
		{Cols: []string{"id", "name"}, Vals: map[string]any{"id": int64(1), "name": "Ada"}},
	}
	got := resultMaps(rows)
	if len(got) != 1 || got[0]["id"] != int64(1) || got[0]["name"] != "Ada" {
		t.Fatalf("resultMaps = %+v", got)
	}
}

func TestToInsertStmt(t *testing.T) {
	ins := &sqlast.Insert{Table: "t", Columns: []string{"a"}, Values: [][]any{{1}}, OrReplace: true}
	got := toInsertStmt(ins)
	if got.Table != "t" || !got.OrReplace || len(got.Values) != 1 {
		t.Fatalf("toInsertStmt = %+v", got)
	}
}
