// Package pager implements page-addressed file I/O: the fixed-size page
// format, the page-0 header/catalog-metadata page, the slotted data-page
// layout, the row codec, and the transaction-buffering Pager that sits on
// top of the WAL.
package pager

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// PageSize is the fixed size of every page in the database file.
const PageSize = 4096

// lengthPrefixSize is the size of the u32 payload-length prefix that
// precedes the JSON payload on page 0, B-tree node pages, and row blobs.
const lengthPrefixSize = 4

// MarshalPageJSON encodes v as `[u32 payload_len][JSON payload][zero pad]`
// into a fresh PageSize buffer. It is exported for use by other
// page-per-node formats (the B-tree index) that share page 0's framing.
// It fails loudly if the payload does not fit, rather than silently
// truncating or spilling to another page.
func MarshalPageJSON(v any) ([]byte, error) { return marshalJSONPage(v) }

// UnmarshalPageJSON decodes the length-prefixed JSON payload out of buf.
func UnmarshalPageJSON(buf []byte, v any) error { return unmarshalJSONPage(buf, v) }

// marshalJSONPage encodes v as `[u32 payload_len][JSON payload][zero pad]`
// into a fresh PageSize buffer. It fails loudly if the payload does not
// fit, rather than silently truncating or spilling to another page.
func marshalJSONPage(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("pager: marshal page payload: %w", err)
	}
	if lengthPrefixSize+len(payload) > PageSize {
		return nil, fmt.Errorf("pager: payload of %d bytes does not fit in a %d-byte page", len(payload), PageSize)
	}
	buf := make([]byte, PageSize)
	binary.LittleEndian.PutUint32(buf[:lengthPrefixSize], uint32(len(payload)))
	copy(buf[lengthPrefixSize:], payload)
	return buf, nil
}

// unmarshalJSONPage reads the length-prefixed JSON payload out of buf and
// decodes it into v.
func unmarshalJSONPage(buf []byte, v any) error {
	if len(buf) < lengthPrefixSize {
		return fmt.Errorf("pager: page too small (%d bytes)", len(buf))
	}
	n := binary.LittleEndian.Uint32(buf[:lengthPrefixSize])
	if int(n) > len(buf)-lengthPrefixSize {
		return fmt.Errorf("pager: corrupt page: payload length %d exceeds page", n)
	}
	payload := buf[lengthPrefixSize : lengthPrefixSize+int(n)]
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("pager: corrupt page payload: %w", err)
	}
	return nil
}

// encodeJSONBlob encodes v as a length-prefixed JSON payload with no
// trailing zero padding, suitable for row blobs that live inside a slot
// rather than occupying a whole page.
func encodeJSONBlob(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("pager: marshal blob: %w", err)
	}
	buf := make([]byte, lengthPrefixSize+len(payload))
	binary.LittleEndian.PutUint32(buf[:lengthPrefixSize], uint32(len(payload)))
	copy(buf[lengthPrefixSize:], payload)
	return buf, nil
}

// decodeJSONBlob decodes a length-prefixed JSON payload produced by
// encodeJSONBlob.
func decodeJSONBlob(buf []byte, v any) error {
	if len(buf) < lengthPrefixSize {
		return fmt.Errorf("pager: blob too small (%d bytes)", len(buf))
	}
	n := binary.LittleEndian.Uint32(buf[:lengthPrefixSize])
	if int(n) > len(buf)-lengthPrefixSize {
		return fmt.Errorf("pager: corrupt blob: payload length %d exceeds buffer", n)
	}
	payload := buf[lengthPrefixSize : lengthPrefixSize+int(n)]
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("pager: corrupt blob payload: %w", err)
	}
	return nil
}
