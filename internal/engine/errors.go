package engine

import "fmt"

// Kind classifies an executor error (spec §7's abstract error taxonomy).
type Kind string

const (
	KindSchema           Kind = "Schema"
	KindType             Kind = "Type"
	KindConstraintNull   Kind = "ConstraintNotNull"
	KindConstraintUnique Kind = "ConstraintUnique"
	KindConstraintCheck  Kind = "ConstraintCheck"
	KindConstraintFK     Kind = "ConstraintForeignKey"
	KindDuplicateKey     Kind = "DuplicateKey"
	KindCorruption       Kind = "Corruption"
)

// Error is the executor's typed error, carrying the Kind so the facade can
// classify it without string matching while still rendering the exact
// substrings spec §7 requires in Error().
type Error struct {
	Kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

func errUnknownTable(name string) error {
	return newError(KindSchema, "Unknown table: %s", name)
}

func errUnknownColumn(table, col string) error {
	return newError(KindSchema, "Unknown column %q in table %q", col, table)
}

func errDuplicatePK(table string, key any) error {
	return newError(KindDuplicateKey, "Duplicate primary key %v in table %s", key, table)
}

func errNotNull(col string) error {
	return newError(KindConstraintNull, "column %q cannot be NULL", col)
}

func errUnique(col string, val any) error {
	return newError(KindConstraintUnique, "UNIQUE constraint failed: %s with value %v", col, val)
}

func errForeignKey(col, refTable string) error {
	return newError(KindConstraintFK, "FOREIGN KEY constraint failed: %s references %s", col, refTable)
}

func errCheck(expr string) error {
	return newError(KindConstraintCheck, "CHECK constraint failed: %s", expr)
}
