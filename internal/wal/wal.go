// Package wal implements the append-only write-ahead log used for
// redo-only crash recovery.
//
// What: a newline-delimited JSON record stream of BEGIN, PAGE_WRITE, and
// COMMIT entries, one record per line, fsynced on every append.
// How: a single append-mode file handle guarded by a mutex; recovery scans
// the file from the start and replays only transactions that have a
// trailing COMMIT record.
// Why: physical (whole page) redo logging keeps recovery a single linear
// pass with no undo bookkeeping, at the cost of leaving a transaction's
// writes in the log forever if it is never committed (they are simply
// skipped on replay).
package wal

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// recordType identifies the kind of WAL record on the wire.
type recordType string

const (
	recordBegin     recordType = "BEGIN"
	recordPageWrite recordType = "PAGE_WRITE"
	recordCommit    recordType = "COMMIT"
)

// record is the on-disk (NDJSON) shape of one WAL entry.
type record struct {
	Type       recordType `json:"type"`
	TxnID      uint64     `json:"txn_id"`
	PageID     uint32     `json:"page_id,omitempty"`
	AfterImage string     `json:"after_image,omitempty"`
}

// PageWrite is one replayable (page_id, after_image) pair produced by Recover.
type PageWrite struct {
	PageID     uint32
	AfterImage []byte
}

// TxnReplay is one committed transaction's page writes, in the order they
// were logged.
type TxnReplay struct {
	TxnID  uint64
	Writes []PageWrite
}

// WAL is the append-only transaction log for a single database file. It is
// not safe for concurrent use by multiple goroutines without external
// synchronization beyond what its own mutex provides for individual calls.
type WAL struct {
	mu          sync.Mutex
	path        string
	f           *os.File
	activeTxnID uint64 // 0 means no active transaction
	nextTxnID   uint64
	log         zerolog.Logger
}

// Open opens (or creates) the WAL file at <dbPath>.wal. The returned WAL
// has no active transaction and a next-txn-id of 1 until Recover is called.
func Open(dbPath string, logger zerolog.Logger) (*WAL, error) {
	path := dbPath + ".wal"
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}
	return &WAL{path: path, f: f, nextTxnID: 1, log: logger}, nil
}

// Path returns the WAL file's path.
func (w *WAL) Path() string { return w.path }

// Begin starts a new transaction and appends a BEGIN record. It fails if a
// transaction is already active on this handle.
func (w *WAL) Begin() (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.activeTxnID != 0 {
		return 0, fmt.Errorf("wal: transaction already active")
	}
	txnID := w.nextTxnID
	w.nextTxnID++
	if err := w.append(record{Type: recordBegin, TxnID: txnID}); err != nil {
		return 0, err
	}
	w.activeTxnID = txnID
	w.log.Debug().Uint64("txn_id", txnID).Msg("wal: begin")
	return txnID, nil
}

// LogPageWrite appends a PAGE_WRITE record for the active transaction.
func (w *WAL) LogPageWrite(pageID uint32, afterImage []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.activeTxnID == 0 {
		return fmt.Errorf("wal: no active transaction")
	}
	rec := record{
		Type:       recordPageWrite,
		TxnID:      w.activeTxnID,
		PageID:     pageID,
		AfterImage: base64.StdEncoding.EncodeToString(afterImage),
	}
	return w.append(rec)
}

// Commit appends a COMMIT record for the active transaction, fsyncs, and
// clears the active transaction. The COMMIT record is durable by the time
// this call returns.
func (w *WAL) Commit() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.activeTxnID == 0 {
		return nil
	}
	txnID := w.activeTxnID
	if err := w.append(record{Type: recordCommit, TxnID: txnID}); err != nil {
		return err
	}
	w.activeTxnID = 0
	w.log.Debug().Uint64("txn_id", txnID).Msg("wal: commit")
	return nil
}

// Abort clears the active transaction without writing a marker. Its
// records remain in the log; lacking a COMMIT they are never replayed.
func (w *WAL) Abort() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.activeTxnID != 0 {
		w.log.Debug().Uint64("txn_id", w.activeTxnID).Msg("wal: abort")
	}
	w.activeTxnID = 0
}

// Reset truncates the log; no prior records remain afterward.
func (w *WAL) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.f.Truncate(0); err != nil {
		return fmt.Errorf("wal: truncate: %w", err)
	}
	if _, err := w.f.Seek(0, 0); err != nil {
		return fmt.Errorf("wal: seek: %w", err)
	}
	return nil
}

// Close closes the underlying file handle.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

// Recover scans the log and returns the page writes of every transaction
// that has a COMMIT record, in ascending txn-id order, and also advances
// the in-memory next-txn-id counter past the highest txn id observed in
// the log (committed or not). It does not truncate the log; callers that
// have applied the replay should call Reset once the data file reflects it.
func (w *WAL) Recover() ([]TxnReplay, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.Open(w.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("wal: open for recovery: %w", err)
	}
	defer f.Close()

	txns := map[uint64][]PageWrite{}
	committed := map[uint64]bool{}
	var maxTxnID uint64

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("wal: corrupt record: %w", err)
		}
		if rec.TxnID > maxTxnID {
			maxTxnID = rec.TxnID
		}
		switch rec.Type {
		case recordBegin:
			if _, ok := txns[rec.TxnID]; !ok {
				txns[rec.TxnID] = nil
			}
		case recordPageWrite:
			after, err := base64.StdEncoding.DecodeString(rec.AfterImage)
			if err != nil {
				return nil, fmt.Errorf("wal: bad after-image: %w", err)
			}
			txns[rec.TxnID] = append(txns[rec.TxnID], PageWrite{PageID: rec.PageID, AfterImage: after})
		case recordCommit:
			committed[rec.TxnID] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("wal: scan: %w", err)
	}

	committedIDs := make([]uint64, 0, len(committed))
	for id := range committed {
		committedIDs = append(committedIDs, id)
	}
	sort.Slice(committedIDs, func(i, j int) bool { return committedIDs[i] < committedIDs[j] })

	replay := make([]TxnReplay, 0, len(committedIDs))
	for _, id := range committedIDs {
		replay = append(replay, TxnReplay{TxnID: id, Writes: txns[id]})
	}

	if maxTxnID+1 > w.nextTxnID {
		w.nextTxnID = maxTxnID + 1
	}
	w.log.Debug().Int("committed_txns", len(committedIDs)).Msg("wal: recover")
	return replay, nil
}

func (w *WAL) append(rec record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("wal: marshal record: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.f.Write(data); err != nil {
		return fmt.Errorf("wal: append: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("wal: fsync: %w", err)
	}
	return nil
}
