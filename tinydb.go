// Package tinydb is an embedded, single-file relational SQL engine: WAL,
// paged storage, B-tree indexes, a schema catalog, and a small SQL
// executor with constraints, joins, aggregates, and introspection.
//
// What: DB wraps one pager-backed file and its statement executor behind
// a single Execute entry point, managing the auto-commit/explicit
// transaction state machine.
// How: every statement not itself BEGIN/COMMIT/ROLLBACK runs inside a
// transaction — either the caller's explicit one, or a single-statement
// one opened and closed around it.
// Why: mirrors the single-threaded, cooperative-scheduling model the
// storage layer assumes (no statement may straddle two transactions).
package tinydb

import (
	"github.com/rs/zerolog"

	"github.com/tinydb-go/tinydb/internal/config"
	"github.com/tinydb-go/tinydb/internal/engine"
	"github.com/tinydb-go/tinydb/internal/pager"
	"github.com/tinydb-go/tinydb/internal/sqlast"
	"github.com/tinydb-go/tinydb/internal/sqlparser"
)

// DB is a handle to one open database file.
type DB struct {
	pager *pager.Pager
	eng   *engine.Engine
	log   zerolog.Logger

	explicitTxn bool
}

// Option configures Open.
type Option func(*openConfig)

type openConfig struct {
	opts *config.Options
	log  *zerolog.Logger
}

// WithOptions applies a loaded config.Options (log level, pinned instance
// id) to the DB being opened.
func WithOptions(o *config.Options) Option {
	return func(c *openConfig) { c.opts = o }
}

// WithLogger overrides the logger config.Options would otherwise build,
// letting a caller plug in its own zerolog.Logger (e.g. one already wired
// to its own output/format).
func WithLogger(log zerolog.Logger) Option {
	return func(c *openConfig) { c.log = &log }
}

// Open opens (creating if necessary) the database file at path, replaying
// any committed-but-unflushed WAL entries before returning.
func Open(path string, opts ...Option) (*DB, error) {
	cfg := &openConfig{}
	for _, o := range opts {
		o(cfg)
	}

	log := zerolog.Nop()
	if cfg.log != nil {
		log = *cfg.log
	} else if cfg.opts != nil {
		log = cfg.opts.Logger()
	}

	p, err := pager.Open(path, log)
	if err != nil {
		return nil, err
	}
	if cfg.opts != nil && cfg.opts.InstanceID != "" {
		if err := p.SetInstanceID(cfg.opts.InstanceID); err != nil {
			p.Close()
			return nil, err
		}
	}

	return &DB{
		pager: p,
		eng:   engine.New(p, log),
		log:   log,
	}, nil
}

// Execute substitutes params into sql's `?` placeholders, parses it, and
// runs it under the transaction state machine (spec §4.9):
//   - BEGIN/COMMIT/ROLLBACK mutate the explicit-transaction flag directly.
//   - Inside an explicit transaction, the statement runs without opening
//     a new one.
//   - Otherwise, a single-statement transaction wraps it: commit on
//     success, rollback (re-raising the original error) on failure.
func (db *DB) Execute(sql string, params ...any) (any, error) {
	bound, err := bindParams(sql, params)
	if err != nil {
		return nil, err
	}

	stmt, err := sqlparser.Parse(bound)
	if err != nil {
		return nil, newError(KindParse, "%v", err)
	}

	switch stmt.(type) {
	case *sqlast.Begin:
		if db.explicitTxn {
			return nil, errTransactionAlreadyActive()
		}
		if err := db.pager.Begin(); err != nil {
			return nil, wrapTxnError(err)
		}
		db.explicitTxn = true
		return "OK", nil

	case *sqlast.Commit:
		if !db.explicitTxn {
			return nil, errNoActiveTransaction("COMMIT")
		}
		if err := db.pager.Commit(); err != nil {
			return nil, wrapTxnError(err)
		}
		db.explicitTxn = false
		return "OK", nil

	case *sqlast.Rollback:
		if !db.explicitTxn {
			return nil, errNoActiveTransaction("ROLLBACK")
		}
		if err := db.pager.Rollback(); err != nil {
			return nil, wrapTxnError(err)
		}
		db.explicitTxn = false
		return "OK", nil
	}

	if db.explicitTxn {
		out, err := db.eng.Execute(stmt)
		return out, wrapEngineError(err)
	}

	if err := db.pager.Begin(); err != nil {
		return nil, wrapTxnError(err)
	}
	out, err := db.eng.Execute(stmt)
	if err != nil {
		db.pager.Rollback()
		return nil, wrapEngineError(err)
	}
	if err := db.pager.Commit(); err != nil {
		return nil, wrapTxnError(err)
	}
	return out, nil
}

// Close flushes and closes the underlying file handles. A DB with an
// explicit transaction still open is rolled back first.
func (db *DB) Close() error {
	if db.explicitTxn {
		db.pager.Rollback()
		db.explicitTxn = false
	}
	return db.pager.Close()
}

// wrapTxnError turns the pager's plain transaction-state errors into the
// facade's typed Error, preserving spec §7's required substrings.
func wrapTxnError(err error) error {
	switch {
	case err == nil:
		return nil
	case err.Error() == "pager: transaction already active":
		return errTransactionAlreadyActive()
	case err.Error() == "pager: no active transaction to commit":
		return errNoActiveTransaction("COMMIT")
	case err.Error() == "pager: no active transaction to roll back":
		return errNoActiveTransaction("ROLLBACK")
	default:
		return newError(KindIO, "%v", err)
	}
}
