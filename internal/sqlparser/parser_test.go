package sqlparser

import (
	"testing"

	"github.com/tinydb-go/tinydb/internal/sqlast"
)

func TestParse_CreateTable(t *testing.T) {
	stmt, err := Parse(`CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		age INTEGER DEFAULT 0 CHECK (age >= 0)
	)`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ct, ok := stmt.(*sqlast.CreateTable)
	if !ok {
		t.Fatalf("got %T, want *sqlast.CreateTable", stmt)
	}
	if ct.Name != "users" || len(ct.Columns) != 3 {
		t.Fatalf("CreateTable = %+v", ct)
	}
	if !ct.Columns[0].PrimaryKey || !ct.Columns[0].AutoIncrement {
		t.Errorf("id column = %+v", ct.Columns[0])
	}
	if !ct.Columns[1].NotNull || !ct.Columns[1].Unique {
		t.Errorf("name column = %+v", ct.Columns[1])
	}
	if len(ct.Columns[2].CheckExprs) != 1 {
		t.Errorf("age column check exprs = %+v", ct.Columns[2].CheckExprs)
	}
}

func TestParse_CreateTableCompositeKeyAndForeignKey(t *testing.T) {
	stmt, err := Parse(`CREATE TABLE IF NOT EXISTS order_items (
		order_id INTEGER,
		sku TEXT,
		qty INTEGER NOT NULL,
		PRIMARY KEY (order_id, sku),
		FOREIGN KEY (order_id) REFERENCES orders (id) ON DELETE CASCADE
	)`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ct := stmt.(*sqlast.CreateTable)
	if !ct.IfNotExists {
		t.Errorf("IfNotExists = false")
	}
	if len(ct.PrimaryKeyColumns) != 2 {
		t.Fatalf("PrimaryKeyColumns = %v", ct.PrimaryKeyColumns)
	}
	if len(ct.ForeignKeys) != 1 || ct.ForeignKeys[0].OnDelete != "CASCADE" {
		t.Fatalf("ForeignKeys = %+v", ct.ForeignKeys)
	}
}

func TestParse_InsertOrReplace(t *testing.T) {
	stmt, err := Parse(`INSERT OR REPLACE INTO users (id, name) VALUES (1, 'Ada'), (2, 'Grace')`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ins := stmt.(*sqlast.Insert)
	if !ins.OrReplace || ins.Table != "users" || len(ins.Values) != 2 {
		t.Fatalf("Insert = %+v", ins)
	}
	if ins.Values[1][1] != "Grace" {
		t.Errorf("second row name = %v", ins.Values[1][1])
	}
}

func TestParse_SelectWithJoinWhereGroupHavingOrderLimit(t *testing.T) {
	stmt, err := Parse(`SELECT DISTINCT u.name, COUNT(*) AS n
		FROM users u
		LEFT JOIN orders o ON u.id = o.user_id
		WHERE u.age >= 18 AND u.name LIKE 'A%' OR u.id IN (1, 2, 3)
		GROUP BY u.name
		HAVING COUNT(*) > 1
		ORDER BY n DESC
		LIMIT 10 OFFSET 5`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sel := stmt.(*sqlast.Select)
	if !sel.Distinct || sel.Table != "users" {
		t.Fatalf("Select = %+v", sel)
	}
	if len(sel.Joins) != 1 || sel.Joins[0].Type != sqlast.JoinLeft {
		t.Fatalf("Joins = %+v", sel.Joins)
	}
	if sel.Where == nil || len(sel.Where.Groups) != 2 {
		t.Fatalf("Where = %+v", sel.Where)
	}
	if len(sel.Where.Groups[0]) != 2 {
		t.Fatalf("first AND group = %+v", sel.Where.Groups[0])
	}
	if sel.GroupBy[0] != "u.name" {
		t.Fatalf("GroupBy = %v", sel.GroupBy)
	}
	if sel.Having == nil {
		t.Fatalf("Having missing")
	}
	if sel.OrderBy[0].Column != "n" || !sel.OrderBy[0].Desc {
		t.Fatalf("OrderBy = %+v", sel.OrderBy)
	}
	if sel.Limit == nil || *sel.Limit != 10 || sel.Offset == nil || *sel.Offset != 5 {
		t.Fatalf("Limit/Offset = %v/%v", sel.Limit, sel.Offset)
	}
}

func TestParse_SelectScalarSubqueryAndInSubquery(t *testing.T) {
	stmt, err := Parse(`SELECT id FROM users WHERE id IN (SELECT user_id FROM orders) AND age = (SELECT MAX(age) FROM users)`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sel := stmt.(*sqlast.Select)
	preds := sel.Where.Groups[0]
	if preds[0].Op != sqlast.OpInSubquery || preds[0].Subquery == nil {
		t.Fatalf("preds[0] = %+v", preds[0])
	}
	if preds[1].Op != sqlast.OpEqSubquery || preds[1].Subquery == nil {
		t.Fatalf("preds[1] = %+v", preds[1])
	}
}

func TestParse_UpdateAndDelete(t *testing.T) {
	stmt, err := Parse(`UPDATE users SET name = 'Ada', age = 37 WHERE id = ?`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	upd := stmt.(*sqlast.Update)
	if len(upd.Assignments) != 2 || upd.Where == nil {
		t.Fatalf("Update = %+v", upd)
	}
	if _, ok := upd.Where.Groups[0][0].Value.(sqlast.Param); !ok {
		t.Fatalf("expected WHERE id = ? to carry a Param placeholder, got %+v", upd.Where.Groups[0][0].Value)
	}

	stmt, err = Parse(`DELETE FROM users WHERE id = 1`)
	if err != nil {
		t.Fatalf("Parse delete: %v", err)
	}
	del := stmt.(*sqlast.Delete)
	if del.Table != "users" || del.Where == nil {
		t.Fatalf("Delete = %+v", del)
	}
}

func TestParse_TransactionAndIntrospection(t *testing.T) {
	cases := map[string]sqlast.Statement{
		"BEGIN":              &sqlast.Begin{},
		"BEGIN TRANSACTION":  &sqlast.Begin{},
		"COMMIT":             &sqlast.Commit{},
		"ROLLBACK":           &sqlast.Rollback{},
		"SHOW TABLES":        &sqlast.ShowTables{},
		"SHOW STATS":         &sqlast.ShowStats{},
		"REINDEX users":      &sqlast.Reindex{Table: "users"},
		"DESCRIBE users":     &sqlast.Describe{Table: "users"},
		"SHOW INDEXES users": &sqlast.ShowIndexes{Table: "users"},
	}
	for sql, want := range cases {
		t.Run(sql, func(t *testing.T) {
			got, err := Parse(sql)
			if err != nil {
				t.Fatalf("Parse(%q): %v", sql, err)
			}
			if got == nil {
				t.Fatalf("Parse(%q) = nil", sql)
			}
			_ = want
		})
	}
}

func TestParse_ExplainAndProfile(t *testing.T) {
	stmt, err := Parse(`EXPLAIN SELECT * FROM users`)
	if err != nil {
		t.Fatalf("Parse explain: %v", err)
	}
	if _, ok := stmt.(*sqlast.Explain); !ok {
		t.Fatalf("got %T, want *sqlast.Explain", stmt)
	}

	stmt, err = Parse(`PROFILE DELETE FROM users WHERE id = 1`)
	if err != nil {
		t.Fatalf("Parse profile: %v", err)
	}
	prof, ok := stmt.(*sqlast.Profile)
	if !ok {
		t.Fatalf("got %T, want *sqlast.Profile", stmt)
	}
	if _, ok := prof.Inner.(*sqlast.Delete); !ok {
		t.Fatalf("Profile.Inner = %T", prof.Inner)
	}
}

func TestParse_AlterTableForms(t *testing.T) {
	tests := []string{
		"ALTER TABLE users RENAME TO people",
		"ALTER TABLE users RENAME COLUMN name TO full_name",
		"ALTER TABLE users ADD COLUMN nickname TEXT",
		"ALTER TABLE users REMOVE COLUMN nickname",
	}
	for _, sql := range tests {
		t.Run(sql, func(t *testing.T) {
			stmt, err := Parse(sql)
			if err != nil {
				t.Fatalf("Parse(%q): %v", sql, err)
			}
			if _, ok := stmt.(*sqlast.AlterTable); !ok {
				t.Fatalf("got %T", stmt)
			}
		})
	}
}

func TestParse_RejectsTrailingGarbage(t *testing.T) {
	if _, err := Parse("SELECT * FROM users garbage"); err == nil {
		t.Fatalf("expected an error for trailing garbage")
	}
}
