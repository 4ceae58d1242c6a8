package pager

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tinydb-go/tinydb/internal/wal"
)

// ─────────────────────────────────────────────────────────────────────────
// Pager
// ─────────────────────────────────────────────────────────────────────────
//
// What: page-addressed I/O over one file, with a per-transaction dirty-page
// buffer and a recovery driver built on internal/wal.
// How: reads consult the dirty buffer first, then the file; writes inside a
// transaction are held in the dirty buffer and logged to the WAL; commit
// flushes the buffer to the file and fsyncs. Outside a transaction, writes
// go straight to the file (used only during initialization and recovery).
// Why: the spec's single-writer, cooperative-scheduling model (§5) needs no
// buffer pool or page cache beyond this: the whole dirty set of one
// transaction fits comfortably in memory.
type Pager struct {
	mu sync.Mutex

	file *os.File
	wal  *wal.WAL
	log  zerolog.Logger

	header *Header

	activeTxnID uint64 // 0 if no transaction is active
	dirty       map[uint32][]byte
}

// Open opens (creating if necessary) the database file at path and its
// companion WAL, replaying any committed-but-unflushed transactions before
// returning.
func Open(path string, logger zerolog.Logger) (*Pager, error) {
	isNew := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		isNew = true
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pager: open %s: %w", path, err)
	}

	p := &Pager{file: f, log: logger}

	w, err := wal.Open(path, logger)
	if err != nil {
		f.Close()
		return nil, err
	}
	p.wal = w

	if isNew {
		h := newHeader()
		buf, err := marshalHeader(h)
		if err != nil {
			f.Close()
			return nil, err
		}
		if _, err := f.WriteAt(buf, 0); err != nil {
			f.Close()
			return nil, fmt.Errorf("pager: write header page: %w", err)
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return nil, err
		}
		p.header = h
	} else {
		h, err := p.readHeaderFromFile()
		if err != nil {
			f.Close()
			return nil, err
		}
		p.header = h
	}

	if err := p.recover(); err != nil {
		w.Close()
		f.Close()
		return nil, fmt.Errorf("pager: recovery: %w", err)
	}

	return p, nil
}

func (p *Pager) readHeaderFromFile() (*Header, error) {
	buf := make([]byte, PageSize)
	if _, err := p.file.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("pager: read header page: %w", err)
	}
	return unmarshalHeader(buf)
}

// recover replays committed transactions from the WAL into the data file,
// fsyncs, then truncates the WAL (spec §4.2 open, §8.1 crash consistency).
func (p *Pager) recover() error {
	replay, err := p.wal.Recover()
	if err != nil {
		return err
	}
	if len(replay) == 0 {
		return nil
	}
	for _, txn := range replay {
		for _, w := range txn.Writes {
			if _, err := p.file.WriteAt(w.AfterImage, int64(w.PageID)*PageSize); err != nil {
				return fmt.Errorf("pager: replay page %d: %w", w.PageID, err)
			}
		}
	}
	if err := p.file.Sync(); err != nil {
		return err
	}
	if err := p.wal.Reset(); err != nil {
		return err
	}
	h, err := p.readHeaderFromFile()
	if err != nil {
		return err
	}
	p.header = h
	p.log.Debug().Int("txns", len(replay)).Msg("pager: recovered committed transactions")
	return nil
}

// Begin starts a transaction with an empty dirty-page buffer. Fails if one
// is already active on this handle.
func (p *Pager) Begin() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.activeTxnID != 0 {
		return fmt.Errorf("pager: transaction already active")
	}
	txnID, err := p.wal.Begin()
	if err != nil {
		return err
	}
	p.activeTxnID = txnID
	p.dirty = make(map[uint32][]byte)
	return nil
}

// InTransaction reports whether a transaction is currently active.
func (p *Pager) InTransaction() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeTxnID != 0
}

// ReadPage returns page id's current contents: the dirty buffer's copy if
// this transaction has written it, otherwise the on-disk image.
func (p *Pager) ReadPage(id uint32) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if id == 0 {
		buf, err := marshalHeader(p.header)
		if err != nil {
			return nil, err
		}
		return buf, nil
	}
	if p.dirty != nil {
		if buf, ok := p.dirty[id]; ok {
			out := make([]byte, len(buf))
			copy(out, buf)
			return out, nil
		}
	}
	buf := make([]byte, PageSize)
	if _, err := p.file.ReadAt(buf, int64(id)*PageSize); err != nil {
		return nil, fmt.Errorf("pager: read page %d: %w", id, err)
	}
	return buf, nil
}

// WritePage stores data (which must be PageSize bytes) for page id. Inside
// a transaction it is buffered and logged to the WAL; outside one it is
// written directly to the file (used only by initialization and recovery).
func (p *Pager) WritePage(id uint32, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writePageLocked(id, data)
}

func (p *Pager) writePageLocked(id uint32, data []byte) error {
	if len(data) != PageSize {
		return fmt.Errorf("pager: page write of %d bytes, want %d", len(data), PageSize)
	}
	if id == 0 {
		var h Header
		if err := unmarshalJSONPage(data, &h); err != nil {
			return err
		}
		if p.activeTxnID == 0 {
			p.header = &h
			_, err := p.file.WriteAt(data, 0)
			return err
		}
		p.header = &h
	}
	if p.activeTxnID == 0 {
		_, err := p.file.WriteAt(data, int64(id)*PageSize)
		return err
	}
	buf := make([]byte, PageSize)
	copy(buf, data)
	if p.dirty == nil {
		p.dirty = make(map[uint32][]byte)
	}
	p.dirty[id] = buf
	return p.wal.LogPageWrite(id, buf)
}

// AllocatePage bumps next_page_id and zero-initializes the new page
// through WritePage. Pages are never freed (spec §3.2).
func (p *Pager) AllocatePage() (uint32, error) {
	p.mu.Lock()
	id := p.header.NextPageID
	p.header.NextPageID++
	hdr := *p.header
	p.mu.Unlock()

	hdrBuf, err := marshalHeader(&hdr)
	if err != nil {
		return 0, err
	}
	if err := p.WritePage(0, hdrBuf); err != nil {
		return 0, err
	}
	if err := p.WritePage(id, make([]byte, PageSize)); err != nil {
		return 0, err
	}
	return id, nil
}

// InstanceID returns the header's diagnostic instance id (SHOW STATS): the
// random tag stamped at creation time, unless SetInstanceID replaced it.
func (p *Pager) InstanceID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.header.InstanceID
}

// SetInstanceID overrides the header's diagnostic instance id and writes
// page 0, same durability semantics as SetMetadata. Used by config.Options
// to pin a reproducible id instead of the random one newHeader stamps.
func (p *Pager) SetInstanceID(id string) error {
	p.mu.Lock()
	hdr := *p.header
	hdr.InstanceID = id
	p.mu.Unlock()

	buf, err := marshalHeader(&hdr)
	if err != nil {
		return err
	}
	return p.WritePage(0, buf)
}

// PageCount returns next_page_id, the number of pages ever allocated.
func (p *Pager) PageCount() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.header.NextPageID
}

// Metadata returns a copy of the header's metadata sub-object (spec §4.2).
func (p *Pager) Metadata() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]any, len(p.header.Metadata))
	for k, v := range p.header.Metadata {
		out[k] = v
	}
	return out
}

// SetMetadata replaces the header's metadata sub-object and writes page 0
// through WritePage, so the change participates in the active transaction
// (or is written straight to the file, without an fsync, if none is active).
func (p *Pager) SetMetadata(m map[string]any) error {
	p.mu.Lock()
	hdr := *p.header
	hdr.Metadata = m
	p.mu.Unlock()

	buf, err := marshalHeader(&hdr)
	if err != nil {
		return err
	}
	return p.WritePage(0, buf)
}

// Commit writes COMMIT to the WAL, flushes every buffered dirty page to
// the file, fsyncs, and clears the buffer.
func (p *Pager) Commit() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.activeTxnID == 0 {
		return fmt.Errorf("pager: no active transaction to commit")
	}
	if err := p.wal.Commit(); err != nil {
		return err
	}
	for id, buf := range p.dirty {
		if _, err := p.file.WriteAt(buf, int64(id)*PageSize); err != nil {
			return fmt.Errorf("pager: flush page %d: %w", id, err)
		}
	}
	if err := p.file.Sync(); err != nil {
		return err
	}
	p.activeTxnID = 0
	p.dirty = nil
	return nil
}

// Rollback discards the dirty buffer and aborts the WAL transaction.
func (p *Pager) Rollback() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.activeTxnID == 0 {
		return fmt.Errorf("pager: no active transaction to roll back")
	}
	p.wal.Abort()
	p.activeTxnID = 0
	p.dirty = nil
	h, err := p.readHeaderFromFile()
	if err != nil {
		return err
	}
	p.header = h
	return nil
}

// Close closes the WAL and data file handles.
func (p *Pager) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.wal.Close(); err != nil {
		p.file.Close()
		return err
	}
	return p.file.Close()
}
