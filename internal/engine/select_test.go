package engine

import (
	"testing"

	"github.com/tinydb-go/tinydb/internal/sqlast"
	"github.com/tinydb-go/tinydb/internal/sqlparser"
)

func setupUsersOrders(t *testing.T, e *Engine) {
	t.Helper()
	mustExec(t, e, `CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)`)
	mustExec(t, e, `CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER, amount INTEGER)`)
	mustExec(t, e, `INSERT INTO users (id, name) VALUES (1, 'Ada'), (2, 'Grace')`)
	mustExec(t, e, `INSERT INTO orders (id, user_id, amount) VALUES (1, 1, 100), (2, 1, 50), (3, 2, 75)`)
}

func TestSelect_FullTableScanPlan(t *testing.T) {
	e := openTestEngine(t)
	mustExec(t, e, `CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT)`)
	mustExec(t, e, `INSERT INTO t (id, v) VALUES (1, 'a'), (2, 'b')`)

	plan, rows, err := e.runSelect(mustTables(t, e), selectStmt(t, `SELECT * FROM t`), nil)
	if err != nil {
		t.Fatalf("runSelect: %v", err)
	}
	if plan != planFullScan {
		t.Errorf("plan = %q, want %q", plan, planFullScan)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestSelect_InnerAndLeftJoin(t *testing.T) {
	e := openTestEngine(t)
	setupUsersOrders(t, e)

	rows := mustExec(t, e, `SELECT u.name, o.amount FROM users u JOIN orders o ON u.id = o.user_id WHERE u.name = 'Ada'`).([]map[string]any)
	if len(rows) != 2 {
		t.Fatalf("inner join rows = %+v", rows)
	}

	mustExec(t, e, `INSERT INTO users (id, name) VALUES (3, 'Edith')`)
	left := mustExec(t, e, `SELECT u.name, o.amount FROM users u LEFT JOIN orders o ON u.id = o.user_id WHERE u.name = 'Edith'`).([]map[string]any)
	if len(left) != 1 || left[0]["amount"] != nil {
		t.Fatalf("left join with no match = %+v", left)
	}
}

func TestSelect_DistinctOrderLimitOffset(t *testing.T) {
	e := openTestEngine(t)
	mustExec(t, e, `CREATE TABLE t (id INTEGER PRIMARY KEY, v INTEGER)`)
	mustExec(t, e, `INSERT INTO t (id, v) VALUES (1, 3), (2, 1), (3, 2), (4, 1)`)

	rows := mustExec(t, e, `SELECT v FROM t ORDER BY v ASC LIMIT 2 OFFSET 1`).([]map[string]any)
	if len(rows) != 2 || rows[0]["v"] != int64(1) || rows[1]["v"] != int64(2) {
		t.Fatalf("order/limit/offset = %+v", rows)
	}

	dup := mustExec(t, e, `SELECT DISTINCT v FROM t`).([]map[string]any)
	if len(dup) != 3 {
		t.Fatalf("distinct = %+v", dup)
	}
}

func TestSelect_WhereInAndLike(t *testing.T) {
	e := openTestEngine(t)
	mustExec(t, e, `CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)`)
	mustExec(t, e, `INSERT INTO t (id, name) VALUES (1, 'Ada'), (2, 'Alan'), (3, 'Grace')`)

	in := mustExec(t, e, `SELECT id FROM t WHERE id IN (1, 3)`).([]map[string]any)
	if len(in) != 2 {
		t.Fatalf("IN = %+v", in)
	}

	like := mustExec(t, e, `SELECT id FROM t WHERE name LIKE 'A%'`).([]map[string]any)
	if len(like) != 2 {
		t.Fatalf("LIKE = %+v", like)
	}
}

func TestSelect_ScalarAndInSubquery(t *testing.T) {
	e := openTestEngine(t)
	setupUsersOrders(t, e)

	rows := mustExec(t, e, `SELECT id FROM users WHERE id IN (SELECT user_id FROM orders WHERE amount > 60)`).([]map[string]any)
	if len(rows) != 1 || rows[0]["id"] != int64(1) {
		t.Fatalf("IN subquery = %+v", rows)
	}
}

// mustTables and selectStmt are small helpers for exercising runSelect
// directly, bypassing the top-level Execute dispatch.
func mustTables(t *testing.T, e *Engine) tableMap {
	t.Helper()
	tables, err := e.loadTables()
	if err != nil {
		t.Fatalf("loadTables: %v", err)
	}
	return tables
}

func selectStmt(t *testing.T, sql string) *sqlast.Select {
	t.Helper()
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		t.Fatalf("Parse(%q): %v", sql, err)
	}
	sel, ok := stmt.(*sqlast.Select)
	if !ok {
		t.Fatalf("Parse(%q) = %T, want *sqlast.Select", sql, stmt)
	}
	return sel
}
