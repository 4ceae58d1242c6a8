package pager

import (
	"fmt"
	"math/big"

	"github.com/tinydb-go/tinydb/internal/schema"
	"github.com/tinydb-go/tinydb/internal/values"
)

// ─────────────────────────────────────────────────────────────────────────
// Row codec
// ─────────────────────────────────────────────────────────────────────────
//
// A row is encoded as a length-prefixed JSON array of column values, in
// column order. DECIMAL and BLOB values do not survive a plain JSON
// round-trip (big.Rat has no native JSON form, and JSON strings are UTF-8
// only) so they are wrapped in the values package's tagged-object form
// before marshaling and unwrapped on decode.

// MarshalRow encodes row (one value per column, in column order) into a
// length-prefixed JSON row blob.
func MarshalRow(row []any) ([]byte, error) {
	wire := make([]any, len(row))
	for i, v := range row {
		w, err := encodeRowValue(v)
		if err != nil {
			return nil, fmt.Errorf("pager: encode column %d: %w", i, err)
		}
		wire[i] = w
	}
	return encodeJSONBlob(wire)
}

// UnmarshalRow decodes a row blob produced by MarshalRow. If cols is
// non-nil, the result is padded (with each column's default) or truncated
// to len(cols), so that ALTER TABLE ADD/REMOVE COLUMN does not require
// rewriting existing rows (spec §4.4). If cols is nil, the row is returned
// exactly as decoded.
func UnmarshalRow(blob []byte, cols []schema.Column) ([]any, error) {
	var wire []any
	if err := decodeJSONBlob(blob, &wire); err != nil {
		return nil, err
	}
	row := make([]any, len(wire))
	for i, w := range wire {
		v, err := decodeRowValue(w)
		if err != nil {
			return nil, fmt.Errorf("pager: decode column %d: %w", i, err)
		}
		row[i] = v
	}
	if cols == nil {
		return row, nil
	}
	return fitToColumns(row, cols)
}

// fitToColumns pads/truncates row to len(cols), then re-coerces every
// value against its column's declared type. JSON decoding alone cannot
// distinguish INTEGER from REAL (both arrive as float64) or tell apart
// any other JSON-native type from the column's intent, so every value
// read from storage passes back through schema.Coerce (the same
// function INSERT/UPDATE input already goes through) before a row is
// handed to a caller.
func fitToColumns(row []any, cols []schema.Column) ([]any, error) {
	out := make([]any, len(cols))
	for i, c := range cols {
		var v any = c.Default
		if i < len(row) {
			v = row[i]
		}
		coerced, err := schema.Coerce(v, c.DataType)
		if err != nil {
			return nil, fmt.Errorf("pager: coerce column %q: %w", c.Name, err)
		}
		out[i] = coerced
	}
	return out, nil
}

func encodeRowValue(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return values.EncodeBytesTag(t), nil
	case *big.Rat:
		if t == nil {
			return nil, nil
		}
		return values.EncodeDecimalTag(t.RatString()), nil
	case big.Rat:
		return values.EncodeDecimalTag(t.RatString()), nil
	case bool, int64, float64, string:
		return t, nil
	case int:
		return int64(t), nil
	default:
		return nil, fmt.Errorf("unsupported row value type %T", v)
	}
}

func decodeRowValue(w any) (any, error) {
	if w == nil {
		return nil, nil
	}
	if tag, payload, ok := values.TaggedValue(w); ok {
		switch {
		case values.IsDecimalTag(tag):
			r := new(big.Rat)
			if _, ok := r.SetString(payload); !ok {
				return nil, fmt.Errorf("invalid decimal literal: %q", payload)
			}
			return r, nil
		case values.IsBytesTag(tag):
			b, err := values.DecodeBytesTag(payload)
			if err != nil {
				return nil, err
			}
			return b, nil
		default:
			return nil, fmt.Errorf("unknown tagged type %q", tag)
		}
	}
	// Every other JSON-native type (bool, float64, string) survives the
	// round-trip as-is; fitToColumns re-coerces it against the column's
	// declared type to recover INTEGER vs REAL.
	return w, nil
}
