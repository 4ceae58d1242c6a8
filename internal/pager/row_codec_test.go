package pager

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/tinydb-go/tinydb/internal/schema"
)

func TestRowCodec_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		row  []any
		cols []schema.Column
	}{
		{"all native types", []any{int64(42), "hello", 3.5, true, nil}, []schema.Column{
			{Name: "i", DataType: schema.Integer},
			{Name: "s", DataType: schema.Text},
			{Name: "f", DataType: schema.Real},
			{Name: "b", DataType: schema.Boolean},
			{Name: "n", DataType: schema.Text},
		}},
		{"blob preserves exact bytes", []any{[]byte{0x00, 0xFF, 0x01, 0x80}}, nil},
		{"decimal preserves exactly", []any{mustRat(t, "12.340")}, nil},
		{"empty row", []any{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := MarshalRow(tt.row)
			if err != nil {
				t.Fatalf("MarshalRow: %v", err)
			}
			got, err := UnmarshalRow(blob, tt.cols)
			if err != nil {
				t.Fatalf("UnmarshalRow: %v", err)
			}
			if len(got) != len(tt.row) {
				t.Fatalf("UnmarshalRow returned %d columns, want %d", len(got), len(tt.row))
			}
			for i := range tt.row {
				assertRowValueEqual(t, i, tt.row[i], got[i])
			}
		})
	}
}

func assertRowValueEqual(t *testing.T, i int, want, got any) {
	t.Helper()
	switch w := want.(type) {
	case []byte:
		g, ok := got.([]byte)
		if !ok || !bytes.Equal(w, g) {
			t.Errorf("column %d: got %v, want %v", i, got, want)
		}
	case *big.Rat:
		g, ok := got.(*big.Rat)
		if !ok || w.Cmp(g) != 0 {
			t.Errorf("column %d: got %v, want %v", i, got, want)
		}
	default:
		if got != want {
			t.Errorf("column %d: got %v (%T), want %v (%T)", i, got, got, want, want)
		}
	}
}

func mustRat(t *testing.T, s string) *big.Rat {
	t.Helper()
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		t.Fatalf("bad decimal literal %q", s)
	}
	return r
}

func TestUnmarshalRow_PadsShortRowsWithColumnDefaults(t *testing.T) {
	blob, err := MarshalRow([]any{int64(1)})
	if err != nil {
		t.Fatalf("MarshalRow: %v", err)
	}
	cols := []schema.Column{
		{Name: "id", DataType: schema.Integer},
		{Name: "note", DataType: schema.Text, Default: "n/a"},
	}
	got, err := UnmarshalRow(blob, cols)
	if err != nil {
		t.Fatalf("UnmarshalRow: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("UnmarshalRow returned %d columns, want 2", len(got))
	}
	if got[1] != "n/a" {
		t.Errorf("padded column = %v, want default %q", got[1], "n/a")
	}
}

func TestUnmarshalRow_TruncatesOverLongRows(t *testing.T) {
	blob, err := MarshalRow([]any{int64(1), "extra", "too many"})
	if err != nil {
		t.Fatalf("MarshalRow: %v", err)
	}
	cols := []schema.Column{{Name: "id", DataType: schema.Integer}}
	got, err := UnmarshalRow(blob, cols)
	if err != nil {
		t.Fatalf("UnmarshalRow: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("UnmarshalRow returned %d columns, want 1", len(got))
	}
}
