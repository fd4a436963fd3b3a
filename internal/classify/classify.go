package classify

import (
	"context"
	"fmt"

	"github.com/roach88/bookmerge/internal/catalog"
)

// Labeler labels a single record. ok is false when the strategy has no
// opinion about rec.
type Labeler interface {
	Label(rec catalog.Record) (label string, ok bool)
}

// Classifier labels every record in a list. The result has one entry per
// input record, in input order.
type Classifier interface {
	Classify(ctx context.Context, records []catalog.Record) ([]catalog.Classified, error)
}

// Override is a Labeler whose hits are tagged with Via.
type Override struct {
	Labeler Labeler
	Via     catalog.Via
}

// Composite applies overrides first, in order, and hands the remaining
// records to Base. Base only ever sees records no override claimed.
type Composite struct {
	Overrides []Override
	Base      Classifier
}

// Classify implements Classifier.
func (c *Composite) Classify(ctx context.Context, records []catalog.Record) ([]catalog.Classified, error) {
	out := make([]catalog.Classified, len(records))
	var rest []catalog.Record
	var restIdx []int

	for i, rec := range records {
		claimed := false
		for _, o := range c.Overrides {
			if label, ok := o.Labeler.Label(rec); ok {
				out[i] = catalog.Classified{Record: rec, Group: label, Via: o.Via}
				claimed = true
				break
			}
		}
		if !claimed {
			rest = append(rest, rec)
			restIdx = append(restIdx, i)
		}
	}

	if len(rest) == 0 {
		return out, nil
	}
	if c.Base == nil {
		for j, i := range restIdx {
			out[i] = catalog.Classified{Record: rest[j], Group: catalog.DefaultLabel, Via: catalog.ViaDefault}
		}
		return out, nil
	}

	classified, err := c.Base.Classify(ctx, rest)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	if len(classified) != len(rest) {
		return nil, fmt.Errorf("classify: base returned %d result(s) for %d record(s)", len(classified), len(rest))
	}
	for j, i := range restIdx {
		out[i] = classified[j]
	}
	return out, nil
}

// PerRecord adapts a Labeler into a Classifier. Records without an opinion
// get defaultLabel.
type PerRecord struct {
	Labeler      Labeler
	Via          catalog.Via
	DefaultLabel string
}

// Classify implements Classifier.
func (p *PerRecord) Classify(ctx context.Context, records []catalog.Record) ([]catalog.Classified, error) {
	def := p.DefaultLabel
	if def == "" {
		def = catalog.DefaultLabel
	}
	out := make([]catalog.Classified, len(records))
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if label, ok := p.Labeler.Label(rec); ok {
			out[i] = catalog.Classified{Record: rec, Group: label, Via: p.Via}
			continue
		}
		out[i] = catalog.Classified{Record: rec, Group: def, Via: catalog.ViaDefault}
	}
	return out, nil
}
