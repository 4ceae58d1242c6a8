package engine

import (
	"strings"

	"github.com/tinydb-go/tinydb/internal/btreeindex"
	"github.com/tinydb-go/tinydb/internal/schema"
)

// execInsert runs the 8-step pipeline of spec §4.8.2 for every row of
// ins.Values, returning the number of rows inserted.
func (e *Engine) execInsert(tables tableMap, ins *insertStmt) (int, error) {
	t, err := e.mustTable(tables, ins.Table)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, tuple := range ins.Values {
		vals, err := e.materializeInsertRow(t, ins.Columns, tuple)
		if err != nil {
			return count, err
		}
		if err := e.insertOne(tables, t, vals, ins.OrReplace); err != nil {
			return count, err
		}
		count++
	}

	if err := e.saveTables(tables); err != nil {
		return count, err
	}
	return count, nil
}

// insertStmt is the engine's normalized view of sqlast.Insert (kept
// package-local so dispatch.go can shape it from the parsed statement).
type insertStmt struct {
	Table     string
	Columns   []string
	Values    [][]any
	OrReplace bool
}

// materializeInsertRow builds the full column-name-keyed value set for one
// VALUES tuple: explicit columns first, then defaults/auto-increment for
// everything omitted (step 1), then per-column type coercion (step 2).
func (e *Engine) materializeInsertRow(t *schema.Table, cols []string, tuple []any) (map[string]any, error) {
	vals := make(map[string]any, len(t.Columns))
	for _, c := range t.Columns {
		vals[c.Name] = c.Default
	}

	if cols == nil {
		if len(tuple) != len(t.Columns) {
			return nil, newError(KindSchema, "column count mismatch for table %s", t.Name)
		}
		for i, c := range t.Columns {
			vals[c.Name] = tuple[i]
		}
	} else {
		if len(cols) != len(tuple) {
			return nil, newError(KindSchema, "column count mismatch for table %s", t.Name)
		}
		for i, col := range cols {
			if _, ok := t.Column(col); !ok {
				return nil, errUnknownColumn(t.Name, col)
			}
			vals[canonicalColumnName(t, col)] = tuple[i]
		}
	}

	if ac, ok := t.AutoIncrementColumn(); ok {
		if vals[ac.Name] == nil {
			next, err := e.nextAutoIncrement(t)
			if err != nil {
				return nil, err
			}
			vals[ac.Name] = next
		}
	}

	for _, c := range t.Columns {
		coerced, err := schema.Coerce(vals[c.Name], c.DataType)
		if err != nil {
			return nil, newError(KindType, "column %q: %v", c.Name, err)
		}
		vals[c.Name] = coerced
	}
	return vals, nil
}

func canonicalColumnName(t *schema.Table, name string) string {
	if c, ok := t.Column(name); ok {
		return c.Name
	}
	return name
}

func (e *Engine) nextAutoIncrement(t *schema.Table) (int64, error) {
	tree, ok := e.pkIndex(t)
	if !ok {
		return 1, nil
	}
	items, err := tree.ScanItems()
	if err != nil {
		return 0, err
	}
	// it.Key round-trips through the B-tree node's JSON encoding, so an
	// INTEGER key always comes back as float64, never int64 (see
	// btreeindex/keys.go's compareKeys).
	var max float64
	for _, it := range items {
		if n, ok := asFloat(it.Key); ok && n > max {
			max = n
		}
	}
	return int64(max) + 1, nil
}

// insertOne performs steps 3-8 of spec §4.8.2 for one materialized,
// coerced row.
func (e *Engine) insertOne(tables tableMap, t *schema.Table, vals map[string]any, orReplace bool) error {
	for _, c := range t.Columns {
		if c.NotNull && vals[c.Name] == nil {
			return errNotNull(c.Name)
		}
	}

	pk := pkKey(t, vals)
	if idx, ok := e.pkIndex(t); ok && pk != nil {
		loc, found, err := idx.Find(pk)
		if err != nil {
			return err
		}
		if found {
			if !orReplace {
				return errDuplicatePK(t.Name, pk)
			}
			old, err := e.readRow(t, loc)
			if err != nil {
				return err
			}
			if err := idx.Delete(pk); err != nil {
				return err
			}
			e.removeFromSecondaryIndexes(t, old.Values, loc)
			if err := e.tombstoneRow(loc); err != nil {
				return err
			}
		}
	}

	if err := e.checkForeignKeys(tables, t, vals); err != nil {
		return err
	}
	if err := e.checkExprs(t, vals); err != nil {
		return err
	}
	if err := e.checkUnique(t, vals, nil); err != nil {
		return err
	}

	loc, err := e.writeRow(t, vals)
	if err != nil {
		return err
	}

	if idx, ok := e.pkIndex(t); ok && pk != nil {
		if err := idx.Insert(pk, loc); err != nil {
			return err
		}
	}
	e.addToSecondaryIndexes(t, vals, loc)
	return nil
}

func (e *Engine) checkExprs(t *schema.Table, vals map[string]any) error {
	for _, expr := range t.CheckExprs {
		ok, err := evalCheck(expr, vals)
		if err != nil {
			return err
		}
		if !ok {
			return errCheck(expr)
		}
	}
	for _, c := range t.Columns {
		for _, expr := range c.CheckExprs {
			ok, err := evalCheck(expr, vals)
			if err != nil {
				return err
			}
			if !ok {
				return errCheck(expr)
			}
		}
	}
	return nil
}

// checkUnique enforces per-column UNIQUE and unique SecondaryIndexes,
// skipping excludeLoc (the row being updated, if any).
func (e *Engine) checkUnique(t *schema.Table, vals map[string]any, excludeLoc *btreeindex.Location) error {
	for _, c := range t.Columns {
		if !c.Unique || vals[c.Name] == nil {
			continue
		}
		if dup, err := e.valueExistsElsewhere(t, c.Name, vals[c.Name], excludeLoc); err != nil {
			return err
		} else if dup {
			return errUnique(c.Name, vals[c.Name])
		}
	}
	for i := range t.SecondaryIndexes {
		idx := &t.SecondaryIndexes[i]
		if !idx.Unique {
			continue
		}
		key, ok := secondaryKey(idx, vals)
		if !ok {
			continue
		}
		tree := e.secondaryIndex(idx)
		locs, err := tree.FindAll(key)
		if err != nil {
			return err
		}
		for _, l := range locs {
			if excludeLoc != nil && l.PageID == excludeLoc.PageID && l.SlotID == excludeLoc.SlotID {
				continue
			}
			return errUnique(strings.Join(idx.Columns, ","), key)
		}
	}
	return nil
}

func (e *Engine) valueExistsElsewhere(t *schema.Table, col string, val any, exclude *btreeindex.Location) (bool, error) {
	rows, err := e.scanTable(t)
	if err != nil {
		return false, err
	}
	for _, r := range rows {
		if exclude != nil && r.Loc == *exclude {
			continue
		}
		if v, ok := r.get(col); ok && compareValues(v, val) == 0 {
			return true, nil
		}
	}
	return false, nil
}

// checkForeignKeys validates every FK of t against its referenced table's
// rows.
func (e *Engine) checkForeignKeys(tables tableMap, t *schema.Table, vals map[string]any) error {
	for _, fk := range t.ForeignKeys {
		v := vals[fk.Column]
		if v == nil {
			continue
		}
		refTable, ok := tables[strings.ToLower(fk.RefTable)]
		if !ok {
			return errForeignKey(fk.Column, fk.RefTable)
		}
		rows, err := e.scanTable(refTable)
		if err != nil {
			return err
		}
		found := false
		for _, r := range rows {
			if rv, ok := r.get(fk.RefColumn); ok && compareValues(rv, v) == 0 {
				found = true
				break
			}
		}
		if !found {
			return errForeignKey(fk.Column, fk.RefTable)
		}
	}
	return nil
}

func (e *Engine) addToSecondaryIndexes(t *schema.Table, vals map[string]any, loc btreeindex.Location) {
	for i := range t.SecondaryIndexes {
		idx := &t.SecondaryIndexes[i]
		key, ok := secondaryKey(idx, vals)
		if !ok {
			continue
		}
		tree := e.secondaryIndex(idx)
		if idx.Unique {
			_ = tree.Insert(key, loc)
		} else {
			_ = tree.InsertNonUnique(key, loc)
		}
	}
}

// removeFromSecondaryIndexes removes loc's entry from every index of t,
// using the non-unique posting-list removal for shared-key indexes.
func (e *Engine) removeFromSecondaryIndexes(t *schema.Table, vals map[string]any, loc btreeindex.Location) {
	for i := range t.SecondaryIndexes {
		idx := &t.SecondaryIndexes[i]
		key, ok := secondaryKey(idx, vals)
		if !ok {
			continue
		}
		tree := e.secondaryIndex(idx)
		if idx.Unique {
			_ = tree.Delete(key)
		} else {
			_ = tree.DeleteNonUnique(key, loc)
		}
	}
}
