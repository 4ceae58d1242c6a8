package tinydb

import (
	"fmt"

	"github.com/tinydb-go/tinydb/internal/engine"
)

// Kind classifies an Error the way spec §7's abstract error taxonomy does.
// It mirrors engine.Kind plus the facade-owned Transaction/Parse kinds the
// executor never raises itself.
type Kind string

const (
	KindParse            Kind = "Parse"
	KindSchema           Kind = "Schema"
	KindType             Kind = "Type"
	KindConstraintNull   Kind = "ConstraintNotNull"
	KindConstraintUnique Kind = "ConstraintUnique"
	KindConstraintCheck  Kind = "ConstraintCheck"
	KindConstraintFK     Kind = "ConstraintForeignKey"
	KindDuplicateKey     Kind = "DuplicateKey"
	KindTransaction      Kind = "Transaction"
	KindCorruption       Kind = "Corruption"
	KindIO               Kind = "IO"
)

// Error is the facade's typed error. Kind lets callers branch on failure
// category without string matching; Error() still renders the exact
// substrings spec §7 requires.
type Error struct {
	Kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// wrapEngineError maps an internal/engine.Error onto the facade's own Kind
// set, preserving its message verbatim (the constraint-kind/name substrings
// spec §7 requires are already baked into it).
func wrapEngineError(err error) error {
	if err == nil {
		return nil
	}
	ee, ok := err.(*engine.Error)
	if !ok {
		return err
	}
	return &Error{Kind: Kind(ee.Kind), msg: ee.Error()}
}

func errTooFewParams() error {
	return newError(KindParse, "Not enough parameters supplied for the placeholders in this statement")
}

func errTooManyParams() error {
	return newError(KindParse, "Too many parameters supplied for the placeholders in this statement")
}

func errNoActiveTransaction(op string) error {
	return newError(KindTransaction, "No active transaction to %s", op)
}

func errTransactionAlreadyActive() error {
	return newError(KindTransaction, "Transaction already active")
}
