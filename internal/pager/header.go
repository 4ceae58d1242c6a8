package pager

import (
	"fmt"

	"github.com/google/uuid"
)

// Magic identifies a valid database file. CurrentVersion is the only
// header version this build understands.
const (
	Magic          = "TINYDB01"
	CurrentVersion = 1
)

// Header is the decoded contents of page 0 (spec §3.1/§6.1). Metadata
// carries the schema catalog at Metadata["schemas"]; the Catalog package
// owns that sub-object's shape, the Pager only round-trips it as a map.
type Header struct {
	Magic      string         `json:"magic"`
	Version    int            `json:"version"`
	PageSize   int            `json:"page_size"`
	NextPageID uint32         `json:"next_page_id"`
	InstanceID string         `json:"instance_id"`
	Metadata   map[string]any `json:"metadata"`
}

// newHeader returns the header for a freshly-created database file. Page 0
// itself counts as allocated, so the first allocate_page call hands out
// page 1. InstanceID is a random tag stamped once at file creation, useful
// for telling copies of the same database apart across restarts (surfaced
// via SHOW STATS).
func newHeader() *Header {
	return &Header{
		Magic:      Magic,
		Version:    CurrentVersion,
		PageSize:   PageSize,
		NextPageID: 1,
		InstanceID: uuid.NewString(),
		Metadata:   map[string]any{},
	}
}

// marshalHeader encodes h into a full page-0 buffer.
func marshalHeader(h *Header) ([]byte, error) {
	return marshalJSONPage(h)
}

// unmarshalHeader decodes page 0's buffer into a Header, validating magic,
// version, and page size.
func unmarshalHeader(buf []byte) (*Header, error) {
	var h Header
	if err := unmarshalJSONPage(buf, &h); err != nil {
		return nil, err
	}
	if h.Magic != Magic {
		return nil, fmt.Errorf("pager: bad magic %q, expected %q", h.Magic, Magic)
	}
	if h.Version != CurrentVersion {
		return nil, fmt.Errorf("pager: unsupported format version %d", h.Version)
	}
	if h.PageSize != PageSize {
		return nil, fmt.Errorf("pager: page size %d does not match build's %d", h.PageSize, PageSize)
	}
	if h.Metadata == nil {
		h.Metadata = map[string]any{}
	}
	return &h, nil
}
