// Package catalog serializes the schema map into the pager's page-0
// metadata (spec §4.3). Table lookup is case-insensitive; the original
// casing is preserved in the schema's Name field.
package catalog

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tinydb-go/tinydb/internal/pager"
	"github.com/tinydb-go/tinydb/internal/schema"
)

const schemasKey = "schemas"

// Catalog is a thin façade over Pager.Metadata/SetMetadata that knows the
// "schemas" sub-key and the case-insensitive name map shape.
type Catalog struct {
	pager *pager.Pager
}

// New wraps p.
func New(p *pager.Pager) *Catalog { return &Catalog{pager: p} }

// Load decodes the current schema map, keyed by lower-cased table name.
func (c *Catalog) Load() (map[string]*schema.Table, error) {
	meta := c.pager.Metadata()
	raw, ok := meta[schemasKey]
	if !ok {
		return map[string]*schema.Table{}, nil
	}

	// raw came back from a JSON round trip as map[string]any; re-marshal
	// and unmarshal into the typed shape rather than hand-walking it.
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("catalog: re-marshal schemas: %w", err)
	}
	var byOriginalName map[string]*schema.Table
	if err := json.Unmarshal(buf, &byOriginalName); err != nil {
		return nil, fmt.Errorf("catalog: decode schemas: %w", err)
	}

	out := make(map[string]*schema.Table, len(byOriginalName))
	for _, t := range byOriginalName {
		out[strings.ToLower(t.Name)] = t
	}
	return out, nil
}

// Save replaces the schema map with tables (keyed however the caller
// likes; only t.Name is consulted for casing).
func (c *Catalog) Save(tables map[string]*schema.Table) error {
	byOriginalName := make(map[string]*schema.Table, len(tables))
	for _, t := range tables {
		byOriginalName[t.Name] = t
	}
	buf, err := json.Marshal(byOriginalName)
	if err != nil {
		return fmt.Errorf("catalog: encode schemas: %w", err)
	}
	var asAny map[string]any
	if err := json.Unmarshal(buf, &asAny); err != nil {
		return fmt.Errorf("catalog: re-decode schemas: %w", err)
	}

	meta := c.pager.Metadata()
	meta[schemasKey] = asAny
	return c.pager.SetMetadata(meta)
}
