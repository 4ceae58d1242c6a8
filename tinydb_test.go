package tinydb

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustExec(t *testing.T, db *DB, sql string, params ...any) any {
	t.Helper()
	out, err := db.Execute(sql, params...)
	if err != nil {
		t.Fatalf("Execute(%q): %v", sql, err)
	}
	return out
}

func TestExecute_BasicCRUD(t *testing.T) {
	db := openTestDB(t)

	if out := mustExec(t, db, `CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`); out != "OK" {
		t.Fatalf("CreateTable = %v, want OK", out)
	}
	if out := mustExec(t, db, `INSERT INTO users (id, name) VALUES (1, 'Ada'), (2, 'Grace')`); out != 2 {
		t.Fatalf("Insert = %v, want 2", out)
	}
	rows := mustExec(t, db, `SELECT id, name FROM users ORDER BY id`).([]map[string]any)
	if len(rows) != 2 || rows[0]["name"] != "Ada" || rows[1]["name"] != "Grace" {
		t.Fatalf("rows = %+v", rows)
	}
	if n := mustExec(t, db, `UPDATE users SET name = 'Lovelace' WHERE id = 1`); n != 1 {
		t.Fatalf("Update = %v, want 1", n)
	}
	if n := mustExec(t, db, `DELETE FROM users WHERE id = 2`); n != 1 {
		t.Fatalf("Delete = %v, want 1", n)
	}
	rows = mustExec(t, db, `SELECT name FROM users`).([]map[string]any)
	if len(rows) != 1 || rows[0]["name"] != "Lovelace" {
		t.Fatalf("final rows = %+v", rows)
	}
}

func TestExecute_ConstraintViolations(t *testing.T) {
	db := openTestDB(t)
	mustExec(t, db, `CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT UNIQUE, name TEXT NOT NULL)`)
	mustExec(t, db, `INSERT INTO users (id, email, name) VALUES (1, 'a@x.com', 'Ada')`)

	if _, err := db.Execute(`INSERT INTO users (id, email, name) VALUES (1, 'b@x.com', 'Grace')`); err == nil {
		t.Fatalf("expected duplicate PK error")
	} else if ee, ok := err.(*Error); !ok || ee.Kind != KindDuplicateKey {
		t.Fatalf("err = %v, want KindDuplicateKey", err)
	}

	if _, err := db.Execute(`INSERT INTO users (id, email, name) VALUES (2, 'a@x.com', 'Grace')`); err == nil {
		t.Fatalf("expected UNIQUE violation")
	} else if ee, ok := err.(*Error); !ok || ee.Kind != KindConstraintUnique {
		t.Fatalf("err = %v, want KindConstraintUnique", err)
	}

	if _, err := db.Execute(`INSERT INTO users (id, email) VALUES (3, 'c@x.com')`); err == nil {
		t.Fatalf("expected NOT NULL violation")
	} else if ee, ok := err.(*Error); !ok || ee.Kind != KindConstraintNull {
		t.Fatalf("err = %v, want KindConstraintNull", err)
	}
}

func TestExecute_ForeignKeyCascade(t *testing.T) {
	db := openTestDB(t)
	mustExec(t, db, `CREATE TABLE users (id INTEGER PRIMARY KEY)`)
	mustExec(t, db, `CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER, FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE)`)
	mustExec(t, db, `INSERT INTO users (id) VALUES (1)`)
	mustExec(t, db, `INSERT INTO orders (id, user_id) VALUES (1, 1), (2, 1)`)

	mustExec(t, db, `DELETE FROM users WHERE id = 1`)

	rows := mustExec(t, db, `SELECT id FROM orders`).([]map[string]any)
	if len(rows) != 0 {
		t.Fatalf("cascade should have removed dependent orders: %+v", rows)
	}
}

func TestExecute_IndexAndExplain(t *testing.T) {
	db := openTestDB(t)
	mustExec(t, db, `CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT)`)
	mustExec(t, db, `INSERT INTO users (id, email) VALUES (1, 'a@x.com'), (2, 'b@x.com')`)
	mustExec(t, db, `CREATE INDEX idx_email ON users (email)`)

	rows := mustExec(t, db, `EXPLAIN SELECT id FROM users WHERE email = 'b@x.com'`).([]map[string]any)
	if len(rows) != 1 {
		t.Fatalf("EXPLAIN rows = %+v", rows)
	}
	if rows[0]["plan"] != "SECONDARY INDEX LOOKUP" {
		t.Fatalf("plan = %v, want SECONDARY INDEX LOOKUP", rows[0]["plan"])
	}
}

func TestOpen_RecoversAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	mustExec(t, db, `CREATE TABLE t (id INTEGER PRIMARY KEY)`)
	mustExec(t, db, `INSERT INTO t (id) VALUES (1)`)
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { reopened.Close() })

	tables := mustExec(t, reopened, `SHOW TABLES`).([]map[string]any)
	if len(tables) != 1 || tables[0]["name"] != "t" {
		t.Fatalf("SHOW TABLES after reopen = %+v", tables)
	}
	rows := mustExec(t, reopened, `SELECT id FROM t`).([]map[string]any)
	if len(rows) != 1 || rows[0]["id"] != int64(1) {
		t.Fatalf("rows after reopen = %+v", rows)
	}
}

func TestExecute_ExplicitTransactionCommit(t *testing.T) {
	db := openTestDB(t)
	mustExec(t, db, `CREATE TABLE t (id INTEGER PRIMARY KEY)`)

	mustExec(t, db, `BEGIN`)
	mustExec(t, db, `INSERT INTO t (id) VALUES (1)`)
	mustExec(t, db, `INSERT INTO t (id) VALUES (2)`)
	mustExec(t, db, `COMMIT`)

	rows := mustExec(t, db, `SELECT id FROM t`).([]map[string]any)
	if len(rows) != 2 {
		t.Fatalf("rows after commit = %+v", rows)
	}
}

func TestExecute_ExplicitTransactionRollback(t *testing.T) {
	db := openTestDB(t)
	mustExec(t, db, `CREATE TABLE t (id INTEGER PRIMARY KEY)`)
	mustExec(t, db, `INSERT INTO t (id) VALUES (1)`)

	mustExec(t, db, `BEGIN`)
	mustExec(t, db, `INSERT INTO t (id) VALUES (2)`)
	mustExec(t, db, `ROLLBACK`)

	rows := mustExec(t, db, `SELECT id FROM t`).([]map[string]any)
	if len(rows) != 1 || rows[0]["id"] != int64(1) {
		t.Fatalf("rows after rollback = %+v", rows)
	}
}

func TestExecute_TransactionStateMachineErrors(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.Execute(`COMMIT`); err == nil {
		t.Fatalf("expected error committing with no active transaction")
	} else if ee, ok := err.(*Error); !ok || ee.Kind != KindTransaction {
		t.Fatalf("err = %v, want KindTransaction", err)
	}

	if _, err := db.Execute(`ROLLBACK`); err == nil {
		t.Fatalf("expected error rolling back with no active transaction")
	}

	mustExec(t, db, `BEGIN`)
	if _, err := db.Execute(`BEGIN`); err == nil {
		t.Fatalf("expected error beginning while already active")
	} else if ee, ok := err.(*Error); !ok || ee.Kind != KindTransaction {
		t.Fatalf("err = %v, want KindTransaction", err)
	}
	mustExec(t, db, `ROLLBACK`)
}

func TestExecute_AutoCommitRollsBackOnFailure(t *testing.T) {
	db := openTestDB(t)
	mustExec(t, db, `CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`)
	mustExec(t, db, `INSERT INTO t (id, name) VALUES (1, 'Ada')`)

	if _, err := db.Execute(`INSERT INTO t (id) VALUES (2)`); err == nil {
		t.Fatalf("expected NOT NULL violation")
	}

	// The failed auto-commit statement must not leave a half-applied row.
	rows := mustExec(t, db, `SELECT id FROM t`).([]map[string]any)
	if len(rows) != 1 {
		t.Fatalf("rows after failed auto-commit = %+v", rows)
	}
}

func TestExecute_ParameterSubstitution(t *testing.T) {
	db := openTestDB(t)
	mustExec(t, db, `CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)`)

	mustExec(t, db, `INSERT INTO t (id, name) VALUES (?, ?)`, 1, "Ada's Cat")

	rows := mustExec(t, db, `SELECT name FROM t WHERE id = ?`, 1).([]map[string]any)
	if len(rows) != 1 || rows[0]["name"] != "Ada's Cat" {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestExecute_ParameterCountMismatch(t *testing.T) {
	db := openTestDB(t)
	mustExec(t, db, `CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)`)

	if _, err := db.Execute(`INSERT INTO t (id, name) VALUES (?, ?)`, 1); err == nil {
		t.Fatalf("expected too-few-parameters error")
	} else if ee, ok := err.(*Error); !ok || ee.Kind != KindParse {
		t.Fatalf("err = %v, want KindParse", err)
	}

	if _, err := db.Execute(`SELECT id FROM t WHERE id = ?`, 1, 2); err == nil {
		t.Fatalf("expected too-many-parameters error")
	}
}
