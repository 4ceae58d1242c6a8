// Package engine is the statement executor: dispatch, constraint
// enforcement, plan selection, joins, grouping/aggregates, and the CHECK
// expression evaluator (spec §4.8).
package engine

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tinydb-go/tinydb/internal/btreeindex"
	"github.com/tinydb-go/tinydb/internal/catalog"
	"github.com/tinydb-go/tinydb/internal/pager"
	"github.com/tinydb-go/tinydb/internal/schema"
)

// tableMap is the schema catalog loaded once per statement.
type tableMap = map[string]*schema.Table

// Engine executes parsed statements against one pager-backed database.
type Engine struct {
	pager *pager.Pager
	cat   *catalog.Catalog
	log   zerolog.Logger
}

// New wraps p; log defaults to zerolog.Nop() if the zero value is passed.
func New(p *pager.Pager, log zerolog.Logger) *Engine {
	return &Engine{pager: p, cat: catalog.New(p), log: log}
}

func (e *Engine) loadTables() (map[string]*schema.Table, error) {
	return e.cat.Load()
}

func (e *Engine) saveTables(tables map[string]*schema.Table) error {
	return e.cat.Save(tables)
}

func (e *Engine) mustTable(tables map[string]*schema.Table, name string) (*schema.Table, error) {
	t, ok := tables[strings.ToLower(name)]
	if !ok {
		return nil, errUnknownTable(name)
	}
	return t, nil
}

// row is one materialized row, tagged with its physical location (zero
// Location for a row not yet written, e.g. a NULL-extended LEFT JOIN row).
type row struct {
	Table  string
	Loc    btreeindex.Location
	Values map[string]any // keyed by the table's declared column names
}

func (r row) get(col string) (any, bool) {
	for k, v := range r.Values {
		if strings.EqualFold(k, col) {
			return v, true
		}
	}
	return nil, false
}

// resolveColumn looks up colExpr ("col" or "table.col") against rows, a
// left-to-right join chain, returning the first match.
func resolveColumn(rows []row, colExpr string) (any, bool) {
	if dot := strings.IndexByte(colExpr, '.'); dot >= 0 {
		table, col := colExpr[:dot], colExpr[dot+1:]
		for _, r := range rows {
			if strings.EqualFold(r.Table, table) {
				return r.get(col)
			}
		}
		return nil, false
	}
	for _, r := range rows {
		if v, ok := r.get(colExpr); ok {
			return v, true
		}
	}
	return nil, false
}

// scanTable returns every live row of t, in data-page/slot order.
func (e *Engine) scanTable(t *schema.Table) ([]row, error) {
	var out []row
	for _, pageID := range t.DataPageIDs {
		buf, err := e.pager.ReadPage(pageID)
		if err != nil {
			return nil, err
		}
		sp := pager.WrapSlottedPage(buf)
		for _, live := range sp.IterLive() {
			vals, err := pager.UnmarshalRow(live.Blob, t.Columns)
			if err != nil {
				return nil, fmt.Errorf("engine: decode row %d/%d of %s: %w", pageID, live.SlotID, t.Name, err)
			}
			out = append(out, row{Table: t.Name, Loc: btreeindex.Location{PageID: pageID, SlotID: live.SlotID}, Values: valuesMap(t, vals)})
		}
	}
	return out, nil
}

// valuesMap keys vals (already padded/truncated/coerced to t.Columns by
// pager.UnmarshalRow) by column name.
func valuesMap(t *schema.Table, vals []any) map[string]any {
	m := make(map[string]any, len(t.Columns))
	for i, c := range t.Columns {
		m[c.Name] = vals[i]
	}
	return m
}

// readRow fetches and decodes a single row at loc.
func (e *Engine) readRow(t *schema.Table, loc btreeindex.Location) (row, error) {
	buf, err := e.pager.ReadPage(loc.PageID)
	if err != nil {
		return row{}, err
	}
	sp := pager.WrapSlottedPage(buf)
	blob, ok := sp.Get(loc.SlotID)
	if !ok {
		return row{}, fmt.Errorf("engine: row %d/%d of %s is not live", loc.PageID, loc.SlotID, t.Name)
	}
	vals, err := pager.UnmarshalRow(blob, t.Columns)
	if err != nil {
		return row{}, err
	}
	return row{Table: t.Name, Loc: loc, Values: valuesMap(t, vals)}, nil
}

// orderedValues renders vals (keyed by column name) in t's column order.
func orderedValues(t *schema.Table, vals map[string]any) []any {
	out := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = vals[c.Name]
	}
	return out
}

// writeRow appends vals as a new row of t, growing DataPageIDs if no
// existing page fits, and returns the new row's location. t.DataPageIDs is
// mutated in place; the caller must persist the catalog afterward.
func (e *Engine) writeRow(t *schema.Table, vals map[string]any) (btreeindex.Location, error) {
	blob, err := pager.MarshalRow(orderedValues(t, vals))
	if err != nil {
		return btreeindex.Location{}, err
	}

	for _, pageID := range t.DataPageIDs {
		buf, err := e.pager.ReadPage(pageID)
		if err != nil {
			return btreeindex.Location{}, err
		}
		sp := pager.WrapSlottedPage(buf)
		if !sp.Fits(len(blob)) {
			continue
		}
		slotID, err := sp.Add(blob)
		if err != nil {
			return btreeindex.Location{}, err
		}
		if err := e.pager.WritePage(pageID, sp.Bytes()); err != nil {
			return btreeindex.Location{}, err
		}
		return btreeindex.Location{PageID: pageID, SlotID: slotID}, nil
	}

	newPageID, err := e.pager.AllocatePage()
	if err != nil {
		return btreeindex.Location{}, err
	}
	sp := pager.NewSlottedPage(make([]byte, pager.PageSize))
	slotID, err := sp.Add(blob)
	if err != nil {
		return btreeindex.Location{}, err
	}
	if err := e.pager.WritePage(newPageID, sp.Bytes()); err != nil {
		return btreeindex.Location{}, err
	}
	t.DataPageIDs = append(t.DataPageIDs, newPageID)
	return btreeindex.Location{PageID: newPageID, SlotID: slotID}, nil
}

// tombstoneRow marks loc deleted.
func (e *Engine) tombstoneRow(loc btreeindex.Location) error {
	buf, err := e.pager.ReadPage(loc.PageID)
	if err != nil {
		return err
	}
	sp := pager.WrapSlottedPage(buf)
	if err := sp.Tombstone(loc.SlotID); err != nil {
		return err
	}
	return e.pager.WritePage(loc.PageID, sp.Bytes())
}

// pkIndex opens t's primary-key B-tree, or (nil, false) if t has no PK.
func (e *Engine) pkIndex(t *schema.Table) (*btreeindex.Tree, bool) {
	if len(t.PKColumnNames()) == 0 {
		return nil, false
	}
	return btreeindex.Open(e.pager, t.PKIndexRootPage), true
}

func (e *Engine) secondaryIndex(idx *schema.SecondaryIndex) *btreeindex.Tree {
	return btreeindex.Open(e.pager, idx.RootPage)
}

// pkKey builds the PK B-tree key for vals: a scalar for a single-column PK,
// a []any tuple for a composite one.
func pkKey(t *schema.Table, vals map[string]any) any {
	cols := t.PKColumnNames()
	if len(cols) == 1 {
		return vals[cols[0]]
	}
	key := make([]any, len(cols))
	for i, c := range cols {
		key[i] = vals[c]
	}
	return key
}

// secondaryKey builds idx's key for vals, or (nil, false) if any component
// is NULL (such rows are omitted from the index, spec §4.8.2 step 8).
func secondaryKey(idx *schema.SecondaryIndex, vals map[string]any) (any, bool) {
	if len(idx.Columns) == 1 {
		v, ok := vals[idx.Columns[0]]
		if !ok || v == nil {
			return nil, false
		}
		return v, true
	}
	key := make([]any, len(idx.Columns))
	for i, c := range idx.Columns {
		v, ok := vals[c]
		if !ok || v == nil {
			return nil, false
		}
		key[i] = v
	}
	return key, true
}
