package engine

import (
	"github.com/tinydb-go/tinydb/internal/schema"
	"github.com/tinydb-go/tinydb/internal/sqlast"
)

// execUpdate runs the 4-step pipeline of spec §4.8.4, returning the number
// of rows affected.
func (e *Engine) execUpdate(tables tableMap, upd *sqlast.Update) (int, error) {
	t, err := e.mustTable(tables, upd.Table)
	if err != nil {
		return 0, err
	}

	rows, err := e.scanTable(t)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, r := range rows {
		chain := []row{r}
		ok, err := e.evalWhere(tables, chain, upd.Where)
		if err != nil {
			return count, err
		}
		if !ok {
			continue
		}
		if err := e.updateOne(tables, t, r, upd.Assignments); err != nil {
			return count, err
		}
		count++
	}

	if err := e.saveTables(tables); err != nil {
		return count, err
	}
	return count, nil
}

func (e *Engine) updateOne(tables tableMap, t *schema.Table, old row, assigns []sqlast.Assignment) error {
	candidate := make(map[string]any, len(old.Values))
	for k, v := range old.Values {
		candidate[k] = v
	}
	for _, a := range assigns {
		if _, ok := t.Column(a.Column); !ok {
			return errUnknownColumn(t.Name, a.Column)
		}
		coerced, err := coerceAssignment(t, a)
		if err != nil {
			return err
		}
		candidate[canonicalColumnName(t, a.Column)] = coerced
	}

	for _, c := range t.Columns {
		if c.NotNull && candidate[c.Name] == nil {
			return errNotNull(c.Name)
		}
	}

	oldPK := pkKey(t, old.Values)
	newPK := pkKey(t, candidate)
	pkChanged := compareValues(oldPK, newPK) != 0
	if pkChanged {
		if idx, ok := e.pkIndex(t); ok && newPK != nil {
			if _, found, err := idx.Find(newPK); err != nil {
				return err
			} else if found {
				return errDuplicatePK(t.Name, newPK)
			}
		}
	}

	if err := e.checkForeignKeys(tables, t, candidate); err != nil {
		return err
	}
	if err := e.checkExprs(t, candidate); err != nil {
		return err
	}
	if err := e.checkUnique(t, candidate, &old.Loc); err != nil {
		return err
	}

	e.removeFromSecondaryIndexes(t, old.Values, old.Loc)
	if idx, ok := e.pkIndex(t); ok && oldPK != nil {
		_ = idx.Delete(oldPK)
	}
	if err := e.tombstoneRow(old.Loc); err != nil {
		return err
	}

	newLoc, err := e.writeRow(t, candidate)
	if err != nil {
		return err
	}
	if idx, ok := e.pkIndex(t); ok && newPK != nil {
		if err := idx.Insert(newPK, newLoc); err != nil {
			return err
		}
	}
	e.addToSecondaryIndexes(t, candidate, newLoc)
	return nil
}

func coerceAssignment(t *schema.Table, a sqlast.Assignment) (any, error) {
	c, _ := t.Column(a.Column)
	v, err := schema.Coerce(a.Value, c.DataType)
	if err != nil {
		return nil, newError(KindType, "column %q: %v", a.Column, err)
	}
	return v, nil
}
