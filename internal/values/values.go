// Package values holds the handful of non-native scalar representations
// (arbitrary-precision decimal, raw bytes) used across the row codec and
// schema coercion, plus their tagged-JSON wire form.
//
// What: conversions between Go's native scalar types, *big.Rat (DECIMAL),
// and the `{"__type__": "...", "value": "..."}` tagged objects the on-disk
// row format (spec §4.4/§6.1) uses to keep those two types distinguishable
// once they have been through encoding/json, which otherwise only knows
// nil/bool/float64/string/map/slice.
// How: small, allocation-light encode/decode helpers with no I/O.
package values

import (
	"encoding/base64"
	"fmt"
)

const (
	// TypeTagKey is the field name carrying the tagged-type discriminator.
	TypeTagKey = "__type__"
	// TypeTagValueKey is the field name carrying the tagged payload.
	TypeTagValueKey = "value"

	tagDecimal = "decimal"
	tagBytes   = "bytes"
)

// TaggedValue returns true and the tag name if v is a tagged-object wire
// representation, i.e. decoded from JSON as map[string]any with a
// "__type__" key.
func TaggedValue(v any) (tag string, payload string, ok bool) {
	m, isMap := v.(map[string]any)
	if !isMap {
		return "", "", false
	}
	t, hasTag := m[TypeTagKey].(string)
	if !hasTag {
		return "", "", false
	}
	p, _ := m[TypeTagValueKey].(string)
	return t, p, true
}

// EncodeDecimalTag wraps a decimal string in its tagged wire form.
func EncodeDecimalTag(decimal string) map[string]any {
	return map[string]any{TypeTagKey: tagDecimal, TypeTagValueKey: decimal}
}

// EncodeBytesTag wraps raw bytes in their tagged, base64-encoded wire form.
func EncodeBytesTag(b []byte) map[string]any {
	return map[string]any{TypeTagKey: tagBytes, TypeTagValueKey: base64.StdEncoding.EncodeToString(b)}
}

// IsDecimalTag reports whether tag is the decimal discriminator.
func IsDecimalTag(tag string) bool { return tag == tagDecimal }

// IsBytesTag reports whether tag is the bytes discriminator.
func IsBytesTag(tag string) bool { return tag == tagBytes }

// DecodeBytesTag base64-decodes a bytes-tagged payload.
func DecodeBytesTag(payload string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("values: bad bytes tag: %w", err)
	}
	return b, nil
}
