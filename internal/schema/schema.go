// Package schema implements the table/column metadata model: type
// normalization, value coercion, and column lookup (spec §4.7, §3.1).
package schema

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/tinydb-go/tinydb/internal/values"
)

// DataType is one of the supported column types. NUMERIC is accepted as an
// alias for DECIMAL by NormalizeType but never appears as a DataType value.
type DataType string

const (
	Integer   DataType = "INTEGER"
	Text      DataType = "TEXT"
	Real      DataType = "REAL"
	Boolean   DataType = "BOOLEAN"
	Timestamp DataType = "TIMESTAMP"
	Blob      DataType = "BLOB"
	Decimal   DataType = "DECIMAL"
)

var supportedTypes = map[DataType]bool{
	Integer: true, Text: true, Real: true, Boolean: true,
	Timestamp: true, Blob: true, Decimal: true,
}

// NormalizeType upper-cases a type name and maps NUMERIC -> DECIMAL.
func NormalizeType(name string) (DataType, error) {
	n := DataType(strings.ToUpper(strings.TrimSpace(name)))
	if n == "NUMERIC" {
		n = Decimal
	}
	if !supportedTypes[n] {
		return "", fmt.Errorf("unsupported type: %s", name)
	}
	return n, nil
}

// Column describes one column of a table (spec §3.1 "Column schema").
type Column struct {
	Name          string   `json:"name"`
	DataType      DataType `json:"data_type"`
	PrimaryKey    bool     `json:"primary_key"`
	NotNull       bool     `json:"not_null"`
	Unique        bool     `json:"unique"`
	Default       any      `json:"default,omitempty"`
	AutoIncrement bool     `json:"auto_increment"`
	CheckExprs    []string `json:"check_exprs,omitempty"`
}

// ForeignKey describes a FOREIGN KEY constraint (spec §3.1).
type ForeignKey struct {
	Column    string `json:"column"`
	RefTable  string `json:"ref_table"`
	RefColumn string `json:"ref_column"`
	OnDelete  string `json:"on_delete"` // "RESTRICT" or "CASCADE"
}

// SecondaryIndex describes a non-PK B-tree index (spec §3.1).
type SecondaryIndex struct {
	Name     string   `json:"name"`
	Columns  []string `json:"columns"`
	RootPage uint32   `json:"root_page"`
	Unique   bool     `json:"unique"`
}

// Table is the full schema + physical layout of one table (spec §3.1).
type Table struct {
	Name             string           `json:"name"`
	Columns          []Column         `json:"columns"`
	DataPageIDs      []uint32         `json:"data_page_ids"`
	PKIndexRootPage  uint32           `json:"pk_index_root_page"`
	PKColumns        []string         `json:"pk_columns,omitempty"` // composite PK; empty if single-column PK flagged on a Column
	ForeignKeys      []ForeignKey     `json:"foreign_keys,omitempty"`
	SecondaryIndexes []SecondaryIndex `json:"secondary_indexes,omitempty"`
	CheckExprs       []string         `json:"check_exprs,omitempty"`
}

// ColumnIndex returns the index of the named column (case-insensitive), or
// -1 if it does not exist.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// Column looks up a column by name (case-insensitive).
func (t *Table) Column(name string) (*Column, bool) {
	i := t.ColumnIndex(name)
	if i < 0 {
		return nil, false
	}
	return &t.Columns[i], true
}

// PKColumnNames returns the ordered list of primary-key column names,
// whether declared as a single-column PrimaryKey flag or as a composite
// PKColumns set.
func (t *Table) PKColumnNames() []string {
	if len(t.PKColumns) > 0 {
		return t.PKColumns
	}
	for _, c := range t.Columns {
		if c.PrimaryKey {
			return []string{c.Name}
		}
	}
	return nil
}

// AutoIncrementColumn returns the single INTEGER PRIMARY KEY AUTOINCREMENT
// column, if any.
func (t *Table) AutoIncrementColumn() (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].AutoIncrement {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// Coerce converts v to the Go representation used internally for dataType,
// per spec §4.7. NULL always passes through unchanged.
func Coerce(v any, dataType DataType) (any, error) {
	if v == nil {
		return nil, nil
	}
	// Unwrap tagged wire values (decimal/bytes) before coercing.
	if tag, payload, ok := values.TaggedValue(v); ok {
		switch {
		case values.IsDecimalTag(tag):
			r := new(big.Rat)
			if _, ok := r.SetString(payload); !ok {
				return nil, fmt.Errorf("invalid decimal literal: %q", payload)
			}
			v = r
		case values.IsBytesTag(tag):
			b, err := values.DecodeBytesTag(payload)
			if err != nil {
				return nil, err
			}
			v = b
		default:
			return nil, fmt.Errorf("unknown tagged type: %q", tag)
		}
	}

	switch dataType {
	case Integer:
		return coerceInteger(v)
	case Real:
		return coerceReal(v)
	case Text, Timestamp:
		return coerceText(v)
	case Boolean:
		return coerceBoolean(v)
	case Blob:
		return coerceBlob(v)
	case Decimal:
		return coerceDecimal(v)
	default:
		return nil, fmt.Errorf("unsupported type: %s", dataType)
	}
}

func coerceInteger(v any) (any, error) {
	switch t := v.(type) {
	case bool:
		if t {
			return int64(1), nil
		}
		return int64(0), nil
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case float64:
		return int64(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("cannot coerce %v to INTEGER", v)
		}
		return int64(f), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil, fmt.Errorf("cannot coerce %q to INTEGER", t)
		}
		return int64(f), nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to INTEGER", v)
	}
}

func coerceReal(v any) (any, error) {
	switch t := v.(type) {
	case bool:
		if t {
			return float64(1), nil
		}
		return float64(0), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case float64:
		return t, nil
	case json.Number:
		return t.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil, fmt.Errorf("cannot coerce %q to REAL", t)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to REAL", v)
	}
}

func coerceText(v any) (any, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case bool, int, int64, float64, json.Number:
		return fmt.Sprint(t), nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to TEXT", v)
	}
}

func coerceBoolean(v any) (any, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case int:
		return t != 0, nil
	case int64:
		return t != 0, nil
	case float64:
		return t != 0, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("cannot coerce %v to BOOLEAN", v)
		}
		return f != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		default:
			return nil, fmt.Errorf("cannot coerce %q to BOOLEAN", t)
		}
	default:
		return nil, fmt.Errorf("cannot coerce %T to BOOLEAN", v)
	}
}

func coerceBlob(v any) (any, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case string:
		return []byte(t), nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to BLOB", v)
	}
}

func coerceDecimal(v any) (any, error) {
	switch t := v.(type) {
	case *big.Rat:
		return t, nil
	case big.Rat:
		return &t, nil
	case string:
		r := new(big.Rat)
		if _, ok := r.SetString(strings.TrimSpace(t)); !ok {
			return nil, fmt.Errorf("invalid decimal literal: %q", t)
		}
		return r, nil
	case int:
		return new(big.Rat).SetInt64(int64(t)), nil
	case int64:
		return new(big.Rat).SetInt64(t), nil
	case float64, json.Number:
		return nil, fmt.Errorf("DECIMAL does not accept float literals, use a string")
	default:
		return nil, fmt.Errorf("cannot coerce %T to DECIMAL", v)
	}
}
