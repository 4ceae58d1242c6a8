package pager

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func openTestPager(t *testing.T) *Pager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	p, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestOpen_CreatesHeaderPage(t *testing.T) {
	p := openTestPager(t)
	if p.header.Magic != Magic {
		t.Errorf("magic = %q, want %q", p.header.Magic, Magic)
	}
	if p.header.NextPageID != 1 {
		t.Errorf("NextPageID = %d, want 1", p.header.NextPageID)
	}
}

func TestAllocatePage_IncrementsNextPageID(t *testing.T) {
	p := openTestPager(t)
	if err := p.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	id1, err := p.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	id2, err := p.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	if id1 != 1 || id2 != 2 {
		t.Fatalf("AllocatePage ids = %d, %d; want 1, 2", id1, id2)
	}
	if err := p.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func TestWriteReadPage_WithinTransaction(t *testing.T) {
	p := openTestPager(t)
	if err := p.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	id, err := p.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	buf := make([]byte, PageSize)
	buf[10] = 0xAB
	if err := p.WritePage(id, buf); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	got, err := p.ReadPage(id)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if got[10] != 0xAB {
		t.Fatalf("ReadPage did not see own transaction's pending write")
	}
	if err := p.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func TestCommit_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	p, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := p.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	id, err := p.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	buf := make([]byte, PageSize)
	buf[0] = 0x7F
	if err := p.WritePage(id, buf); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if err := p.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	p2, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer p2.Close()
	got, err := p2.ReadPage(id)
	if err != nil {
		t.Fatalf("ReadPage after reopen: %v", err)
	}
	if got[0] != 0x7F {
		t.Fatalf("committed write did not survive reopen")
	}
}

func TestRollback_DiscardsDirtyBuffer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rollback.db")
	p, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := p.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	id, err := p.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	buf := make([]byte, PageSize)
	buf[0] = 0xFF
	if err := p.WritePage(id, buf); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if err := p.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if p.InTransaction() {
		t.Fatal("InTransaction true after Rollback")
	}
	if err := p.Begin(); err != nil {
		t.Fatalf("Begin after rollback: %v", err)
	}
	if err := p.Commit(); err != nil {
		t.Fatalf("Commit no-op transaction: %v", err)
	}
}

func TestMetadata_RoundTripsThroughHeader(t *testing.T) {
	p := openTestPager(t)
	if err := p.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := p.SetMetadata(map[string]any{"schemas": map[string]any{"users": "x"}}); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	if err := p.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	m := p.Metadata()
	if _, ok := m["schemas"]; !ok {
		t.Fatalf("Metadata() = %v, missing schemas key", m)
	}
}

func TestBegin_FailsWhenAlreadyActive(t *testing.T) {
	p := openTestPager(t)
	if err := p.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := p.Begin(); err == nil {
		t.Fatal("expected error on nested Begin")
	}
	p.Rollback()
}
