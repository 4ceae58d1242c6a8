package engine

import (
	"strings"

	"github.com/tinydb-go/tinydb/internal/btreeindex"
	"github.com/tinydb-go/tinydb/internal/schema"
	"github.com/tinydb-go/tinydb/internal/sqlast"
)

// execCreateTable builds a new schema.Table and its PK B-tree, validating
// at-most-one PRIMARY KEY / AUTOINCREMENT (spec §4.8.6).
func (e *Engine) execCreateTable(tables tableMap, ct *sqlast.CreateTable) error {
	key := strings.ToLower(ct.Name)
	if _, exists := tables[key]; exists {
		if ct.IfNotExists {
			return nil
		}
		return newError(KindSchema, "table %q already exists", ct.Name)
	}

	pkCount := 0
	autoIncCount := 0
	cols := make([]schema.Column, len(ct.Columns))
	for i, cd := range ct.Columns {
		dt, err := schema.NormalizeType(cd.DataType)
		if err != nil {
			return newError(KindType, "%v", err)
		}
		if cd.PrimaryKey {
			pkCount++
		}
		if cd.AutoIncrement {
			autoIncCount++
			if dt != schema.Integer || !cd.PrimaryKey {
				return newError(KindSchema, "AUTOINCREMENT requires an INTEGER PRIMARY KEY column: %s", cd.Name)
			}
		}
		var def any
		if cd.HasDefault {
			def, err = schema.Coerce(cd.Default, dt)
			if err != nil {
				return newError(KindType, "column %q default: %v", cd.Name, err)
			}
		}
		cols[i] = schema.Column{
			Name: cd.Name, DataType: dt, PrimaryKey: cd.PrimaryKey,
			NotNull: cd.NotNull, Unique: cd.Unique, Default: def,
			AutoIncrement: cd.AutoIncrement, CheckExprs: cd.CheckExprs,
		}
	}
	if len(ct.PrimaryKeyColumns) > 0 {
		pkCount++
	}
	if pkCount > 1 {
		return newError(KindSchema, "table %q: at most one PRIMARY KEY is allowed", ct.Name)
	}
	if autoIncCount > 1 {
		return newError(KindSchema, "table %q: at most one AUTOINCREMENT column is allowed", ct.Name)
	}

	fks := make([]schema.ForeignKey, len(ct.ForeignKeys))
	for i, fk := range ct.ForeignKeys {
		onDelete := fk.OnDelete
		if onDelete == "" {
			onDelete = "RESTRICT"
		}
		fks[i] = schema.ForeignKey{Column: fk.Column, RefTable: fk.RefTable, RefColumn: fk.RefColumn, OnDelete: onDelete}
	}

	t := &schema.Table{
		Name: ct.Name, Columns: cols, PKColumns: ct.PrimaryKeyColumns,
		ForeignKeys: fks, CheckExprs: ct.CheckExprs,
	}

	if pkCount > 0 {
		tree, err := btreeindex.Create(e.pager)
		if err != nil {
			return err
		}
		t.PKIndexRootPage = tree.RootPage()
	}

	tables[key] = t
	return e.saveTables(tables)
}

func (e *Engine) execDropTable(tables tableMap, dt *sqlast.DropTable) error {
	key := strings.ToLower(dt.Name)
	if _, ok := tables[key]; !ok {
		if dt.IfExists {
			return nil
		}
		return errUnknownTable(dt.Name)
	}
	delete(tables, key)
	return e.saveTables(tables)
}

// execCreateIndex allocates a new B-tree and backfills it from every
// existing row of the target table.
func (e *Engine) execCreateIndex(tables tableMap, ci *sqlast.CreateIndex) error {
	t, err := e.mustTable(tables, ci.Table)
	if err != nil {
		return err
	}
	for _, idx := range t.SecondaryIndexes {
		if strings.EqualFold(idx.Name, ci.Name) {
			return newError(KindSchema, "index %q already exists", ci.Name)
		}
	}
	for _, col := range ci.Columns {
		if _, ok := t.Column(col); !ok {
			return errUnknownColumn(t.Name, col)
		}
	}

	tree, err := btreeindex.Create(e.pager)
	if err != nil {
		return err
	}
	idx := schema.SecondaryIndex{Name: ci.Name, Columns: ci.Columns, RootPage: tree.RootPage(), Unique: ci.Unique}

	rows, err := e.scanTable(t)
	if err != nil {
		return err
	}
	for _, r := range rows {
		key, ok := secondaryKey(&idx, r.Values)
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

	t.SecondaryIndexes = append(t.SecondaryIndexes, idx)
	return e.saveTables(tables)
}

// execDropIndex unlinks the named index's metadata; its B-tree node pages
// are not reclaimed (no free list, spec §9 Open Question 3).
func (e *Engine) execDropIndex(tables tableMap, di *sqlast.DropIndex) error {
	for _, t := range tables {
		for i, idx := range t.SecondaryIndexes {
			if strings.EqualFold(idx.Name, di.Name) {
				t.SecondaryIndexes = append(t.SecondaryIndexes[:i], t.SecondaryIndexes[i+1:]...)
				return e.saveTables(tables)
			}
		}
	}
	return newError(KindSchema, "index %q does not exist", di.Name)
}

// execAlterTable implements spec §4.8.6's four sub-forms.
func (e *Engine) execAlterTable(tables tableMap, at *sqlast.AlterTable) error {
	t, err := e.mustTable(tables, at.Table)
	if err != nil {
		return err
	}

	switch at.Kind {
	case sqlast.AlterRenameTable:
		key := strings.ToLower(at.Table)
		newKey := strings.ToLower(at.NewTableName)
		if _, exists := tables[newKey]; exists {
			return newError(KindSchema, "table %q already exists", at.NewTableName)
		}
		delete(tables, key)
		t.Name = at.NewTableName
		tables[newKey] = t

	case sqlast.AlterRenameColumn:
		c, ok := t.Column(at.OldColumnName)
		if !ok {
			return errUnknownColumn(t.Name, at.OldColumnName)
		}
		c.Name = at.NewColumnName
		for i, col := range t.PKColumns {
			if strings.EqualFold(col, at.OldColumnName) {
				t.PKColumns[i] = at.NewColumnName
			}
		}
		for i := range t.SecondaryIndexes {
			for j, col := range t.SecondaryIndexes[i].Columns {
				if strings.EqualFold(col, at.OldColumnName) {
					t.SecondaryIndexes[i].Columns[j] = at.NewColumnName
				}
			}
		}

	case sqlast.AlterAddColumn:
		if at.AddColumn.PrimaryKey {
			return newError(KindSchema, "ADD COLUMN cannot declare a PRIMARY KEY")
		}
		if at.AddColumn.NotNull && !at.AddColumn.HasDefault {
			return newError(KindSchema, "ADD COLUMN %q must be nullable or have a DEFAULT", at.AddColumn.Name)
		}
		dt, err := schema.NormalizeType(at.AddColumn.DataType)
		if err != nil {
			return newError(KindType, "%v", err)
		}
		var def any
		if at.AddColumn.HasDefault {
			def, err = schema.Coerce(at.AddColumn.Default, dt)
			if err != nil {
				return newError(KindType, "column %q default: %v", at.AddColumn.Name, err)
			}
		}
		t.Columns = append(t.Columns, schema.Column{
			Name: at.AddColumn.Name, DataType: dt, NotNull: at.AddColumn.NotNull,
			Unique: at.AddColumn.Unique, Default: def, CheckExprs: at.AddColumn.CheckExprs,
		})
		if err := e.backfillAddedColumn(t, at.AddColumn.Name, def); err != nil {
			return err
		}

	case sqlast.AlterRemoveColumn:
		i := t.ColumnIndex(at.RemoveColumnName)
		if i < 0 {
			return errUnknownColumn(t.Name, at.RemoveColumnName)
		}
		if i != len(t.Columns)-1 {
			return newError(KindSchema, "REMOVE COLUMN only supports the last column (%s is not last)", at.RemoveColumnName)
		}
		if t.Columns[i].PrimaryKey {
			return newError(KindSchema, "cannot remove primary key column %q", at.RemoveColumnName)
		}
		for _, idx := range t.SecondaryIndexes {
			for _, col := range idx.Columns {
				if strings.EqualFold(col, at.RemoveColumnName) {
					return newError(KindSchema, "column %q is used by index %q", at.RemoveColumnName, idx.Name)
				}
			}
		}
		t.Columns = t.Columns[:i]
	}

	return e.saveTables(tables)
}

// backfillAddedColumn rewrites every existing row of t to store the new
// column's default value explicitly. UnmarshalRow already pads a short row
// with the column default on read; the rewrite writes that value out.
func (e *Engine) backfillAddedColumn(t *schema.Table, name string, def any) error {
	rows, err := e.scanTable(t)
	if err != nil {
		return err
	}
	for _, r := range rows {
		r.Values[name] = def
		if err := e.tombstoneRow(r.Loc); err != nil {
			return err
		}
		newLoc, err := e.writeRow(t, r.Values)
		if err != nil {
			return err
		}
		if newLoc != r.Loc {
			if err := e.relocateIndexEntries(t, r.Values, r.Loc, newLoc); err != nil {
				return err
			}
		}
	}
	return nil
}

// relocateIndexEntries updates every index entry pointing at oldLoc to
// point at newLoc, used when a row is rewritten in place (e.g. ADD
// COLUMN's backfill).
func (e *Engine) relocateIndexEntries(t *schema.Table, vals map[string]any, oldLoc, newLoc btreeindex.Location) error {
	if pk := pkKey(t, vals); pk != nil {
		if idx, ok := e.pkIndex(t); ok {
			_ = idx.Delete(pk)
			if err := idx.Insert(pk, newLoc); err != nil {
				return err
			}
		}
	}
	for i := range t.SecondaryIndexes {
		idx := &t.SecondaryIndexes[i]
		key, ok := secondaryKey(idx, vals)
		if !ok {
			continue
		}
		tree := e.secondaryIndex(idx)
		if idx.Unique {
			_ = tree.Delete(key)
			if err := tree.Insert(key, newLoc); err != nil {
				return err
			}
		} else {
			_ = tree.DeleteNonUnique(key, oldLoc)
			if err := tree.InsertNonUnique(key, newLoc); err != nil {
				return err
			}
		}
	}
	return nil
}
