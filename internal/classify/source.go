package classify

import "github.com/roach88/bookmerge/internal/catalog"

// SourceGroup keeps the group a record had in its snapshot.
type SourceGroup struct{}

// Label implements Labeler.
func (SourceGroup) Label(rec catalog.Record) (string, bool) {
	if rec.SourceGroup == "" {
		return "", false
	}
	return rec.SourceGroup, true
}
