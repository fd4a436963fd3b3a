package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/bookmerge/internal/catalog"
)

// JSON writes the catalog as indented JSON. Configs keep insertion order.
func JSON(w io.Writer, c *catalog.Catalog) error {
	out := *c
	if out.Groups == nil {
		out.Groups = []catalog.Group{}
	}
	if out.Sites == nil {
		out.Sites = []catalog.Site{}
	}
	if out.Configs == nil {
		out.Configs = catalog.Configs{}
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&out); err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	return nil
}

// ReadJSON reads a catalog written by JSON and checks its invariants.
func ReadJSON(r io.Reader) (*catalog.Catalog, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var c catalog.Catalog
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if errs := c.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("catalog is inconsistent: %w", errors.Join(errs...))
	}
	return &c, nil
}
