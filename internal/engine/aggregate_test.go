package engine

import "testing"

func setupOrders(t *testing.T, e *Engine) {
	t.Helper()
	mustExec(t, e, `CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER, amount INTEGER)`)
	mustExec(t, e, `INSERT INTO orders (id, user_id, amount) VALUES (1, 1, 100), (2, 1, 50), (3, 2, 75), (4, 2, 25)`)
}

func TestAggregate_CountSumAvgNoGroupBy(t *testing.T) {
	e := openTestEngine(t)
	setupOrders(t, e)

	rows := mustExec(t, e, `SELECT COUNT(*) AS n, SUM(amount) AS total, AVG(amount) AS avg FROM orders`).([]map[string]any)
	if len(rows) != 1 {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0]["n"] != int64(4) {
		t.Errorf("n = %v, want 4", rows[0]["n"])
	}
	if rows[0]["total"] != float64(250) {
		t.Errorf("total = %v, want 250", rows[0]["total"])
	}
	if rows[0]["avg"] != float64(62.5) {
		t.Errorf("avg = %v, want 62.5", rows[0]["avg"])
	}
}

func TestAggregate_GroupByWithHaving(t *testing.T) {
	e := openTestEngine(t)
	setupOrders(t, e)

	rows := mustExec(t, e, `SELECT user_id, SUM(amount) AS total FROM orders GROUP BY user_id HAVING SUM(amount) > 100 ORDER BY user_id`).([]map[string]any)
	if len(rows) != 1 || rows[0]["user_id"] != int64(1) || rows[0]["total"] != float64(150) {
		t.Fatalf("grouped having = %+v", rows)
	}
}

func TestAggregate_MinMax(t *testing.T) {
	e := openTestEngine(t)
	setupOrders(t, e)

	rows := mustExec(t, e, `SELECT MIN(amount) AS lo, MAX(amount) AS hi FROM orders`).([]map[string]any)
	if rows[0]["lo"] != int64(25) || rows[0]["hi"] != int64(100) {
		t.Fatalf("min/max = %+v", rows)
	}
}

func TestAggregate_Round(t *testing.T) {
	e := openTestEngine(t)
	setupOrders(t, e)

	rows := mustExec(t, e, `SELECT ROUND(AVG(amount), 1) AS avg FROM orders`).([]map[string]any)
	if rows[0]["avg"] != 62.5 {
		t.Fatalf("round(avg) = %+v", rows)
	}
}
