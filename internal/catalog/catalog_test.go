package catalog

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tinydb-go/tinydb/internal/pager"
	"github.com/tinydb-go/tinydb/internal/schema"
)

func openTestCatalog(t *testing.T) (*pager.Pager, *Catalog) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	p, err := pager.Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("pager.Open: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p, New(p)
}

func TestCatalog_LoadEmpty(t *testing.T) {
	_, cat := openTestCatalog(t)
	tables, err := cat.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(tables) != 0 {
		t.Fatalf("Load() on a fresh db = %v, want empty", tables)
	}
}

func TestCatalog_SaveLoadRoundTrip(t *testing.T) {
	p, cat := openTestCatalog(t)
	tbl := &schema.Table{
		Name: "Users",
		Columns: []schema.Column{
			{Name: "id", DataType: schema.Integer, PrimaryKey: true},
			{Name: "name", DataType: schema.Text, NotNull: true},
		},
		PKIndexRootPage: 3,
		DataPageIDs:     []uint32{1, 2},
	}

	if err := p.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := cat.Save(map[string]*schema.Table{"users": tbl}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := p.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	tables, err := cat.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, ok := tables["users"]
	if !ok {
		t.Fatalf("Load() missing case-insensitive key %q: %v", "users", tables)
	}
	if got.Name != "Users" {
		t.Errorf("Name = %q, want original case %q", got.Name, "Users")
	}
	if len(got.Columns) != 2 || got.Columns[0].Name != "id" {
		t.Errorf("Columns round-trip mismatch: %+v", got.Columns)
	}
	if got.PKIndexRootPage != 3 {
		t.Errorf("PKIndexRootPage = %d, want 3", got.PKIndexRootPage)
	}
}

func TestCatalog_DurableAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "durable.db")
	p, err := pager.Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("pager.Open: %v", err)
	}
	cat := New(p)
	if err := p.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := cat.Save(map[string]*schema.Table{"t": {Name: "t"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := p.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	p2, err := pager.Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer p2.Close()
	tables, err := New(p2).Load()
	if err != nil {
		t.Fatalf("Load after reopen: %v", err)
	}
	if _, ok := tables["t"]; !ok {
		t.Fatalf("table %q missing after reopen: %v", "t", tables)
	}
}
