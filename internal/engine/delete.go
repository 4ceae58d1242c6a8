package engine

import (
	"strings"

	"github.com/tinydb-go/tinydb/internal/schema"
	"github.com/tinydb-go/tinydb/internal/sqlast"
)

// execDelete runs spec §4.8.5: FK cascade-or-restrict against every child
// table, then tombstone + index removal for each matched row.
func (e *Engine) execDelete(tables tableMap, del *sqlast.Delete) (int, error) {
	t, err := e.mustTable(tables, del.Table)
	if err != nil {
		return 0, err
	}

	rows, err := e.scanTable(t)
	if err != nil {
		return 0, err
	}

	var toDelete []row
	for _, r := range rows {
		ok, err := e.evalWhere(tables, []row{r}, del.Where)
		if err != nil {
			return 0, err
		}
		if ok {
			toDelete = append(toDelete, r)
		}
	}

	for _, r := range toDelete {
		if err := e.enforceDeleteFKs(tables, t, r); err != nil {
			return 0, err
		}
	}

	count := 0
	for _, r := range toDelete {
		e.removeFromSecondaryIndexes(t, r.Values, r.Loc)
		if pk := pkKey(t, r.Values); pk != nil {
			if idx, ok := e.pkIndex(t); ok {
				_ = idx.Delete(pk)
			}
		}
		if err := e.tombstoneRow(r.Loc); err != nil {
			return count, err
		}
		count++
	}

	if err := e.saveTables(tables); err != nil {
		return count, err
	}
	return count, nil
}

// enforceDeleteFKs checks every other table's FKs that reference t: CASCADE
// deletes the dependent rows first, RESTRICT fails if any exist.
func (e *Engine) enforceDeleteFKs(tables tableMap, t *schema.Table, victim row) error {
	for _, child := range tables {
		for _, fk := range child.ForeignKeys {
			if !strings.EqualFold(fk.RefTable, t.Name) {
				continue
			}
			refVal, ok := victim.get(fk.RefColumn)
			if !ok || refVal == nil {
				continue
			}
			childRows, err := e.scanTable(child)
			if err != nil {
				return err
			}
			var dependents []row
			for _, cr := range childRows {
				if v, ok := cr.get(fk.Column); ok && compareValues(v, refVal) == 0 {
					dependents = append(dependents, cr)
				}
			}
			if len(dependents) == 0 {
				continue
			}
			if fk.OnDelete != "CASCADE" {
				return newError(KindConstraintFK, "FOREIGN KEY constraint failed: %s.%s references %s", child.Name, fk.Column, t.Name)
			}
			for _, dep := range dependents {
				if err := e.enforceDeleteFKs(tables, child, dep); err != nil {
					return err
				}
				e.removeFromSecondaryIndexes(child, dep.Values, dep.Loc)
				if pk := pkKey(child, dep.Values); pk != nil {
					if idx, ok := e.pkIndex(child); ok {
						_ = idx.Delete(pk)
					}
				}
				if err := e.tombstoneRow(dep.Loc); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
