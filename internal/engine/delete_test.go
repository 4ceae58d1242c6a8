package engine

import "testing"

func TestDelete_MatchingRowsOnly(t *testing.T) {
	e := openTestEngine(t)
	mustExec(t, e, `CREATE TABLE t (id INTEGER PRIMARY KEY, status TEXT)`)
	mustExec(t, e, `INSERT INTO t (id, status) VALUES (1, 'open'), (2, 'closed'), (3, 'open')`)

	n := mustExec(t, e, `DELETE FROM t WHERE status = 'open'`)
	if n != 2 {
		t.Fatalf("delete count = %v, want 2", n)
	}
	rows := mustExec(t, e, `SELECT id FROM t`).([]map[string]any)
	if len(rows) != 1 || rows[0]["id"] != int64(2) {
		t.Fatalf("remaining rows = %+v", rows)
	}
}

func TestDelete_RestrictBlocksWhenChildrenExist(t *testing.T) {
	e := openTestEngine(t)
	mustExec(t, e, `CREATE TABLE users (id INTEGER PRIMARY KEY)`)
	mustExec(t, e, `CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER, FOREIGN KEY (user_id) REFERENCES users (id))`)
	mustExec(t, e, `INSERT INTO users (id) VALUES (1)`)
	mustExec(t, e, `INSERT INTO orders (id, user_id) VALUES (1, 1)`)

	err := execErr(t, e, `DELETE FROM users WHERE id = 1`)
	if err == nil {
		t.Fatalf("expected RESTRICT to block the delete")
	}
	ee, ok := err.(*Error)
	if !ok || ee.Kind != KindConstraintFK {
		t.Fatalf("err = %v, want KindConstraintFK", err)
	}
}

func TestDelete_CascadeRemovesDependents(t *testing.T) {
	e := openTestEngine(t)
	mustExec(t, e, `CREATE TABLE users (id INTEGER PRIMARY KEY)`)
	mustExec(t, e, `CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER, FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE)`)
	mustExec(t, e, `INSERT INTO users (id) VALUES (1)`)
	mustExec(t, e, `INSERT INTO orders (id, user_id) VALUES (1, 1), (2, 1)`)

	mustExec(t, e, `DELETE FROM users WHERE id = 1`)

	rows := mustExec(t, e, `SELECT id FROM orders`).([]map[string]any)
	if len(rows) != 0 {
		t.Fatalf("cascade should have removed dependent orders: %+v", rows)
	}
}
