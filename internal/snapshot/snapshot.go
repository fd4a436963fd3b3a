package snapshot

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cuejson "cuelang.org/go/encoding/json"

	"github.com/roach88/bookmerge/internal/catalog"
)

//go:embed schema.cue
var schemaCUE string

// Snapshot is one loaded export.
type Snapshot struct {
	// Name identifies the source in precedence lists and provenance.
	Name string
	Path string

	Records []catalog.Record
	Groups  []catalog.GroupMeta
	Configs catalog.Configs
	Version string
}

// Source names a snapshot file to load.
type Source struct {
	Name string
	Path string
}

// ParseSource parses "name=path" or a bare path. A bare path is named after
// its file stem.
func ParseSource(arg string) Source {
	if name, path, ok := strings.Cut(arg, "="); ok && name != "" && path != "" {
		return Source{Name: name, Path: path}
	}
	base := filepath.Base(arg)
	return Source{Name: strings.TrimSuffix(base, filepath.Ext(base)), Path: arg}
}

// Load reads and parses the snapshot file at path.
func Load(name, path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &Error{Kind: KindNotFound, Source: name, Message: fmt.Sprintf("snapshot file not found: %s", path), Err: err}
	}
	if err != nil {
		return nil, &Error{Kind: KindRead, Source: name, Message: fmt.Sprintf("reading %s: %v", path, err), Err: err}
	}

	snap, err := Parse(name, path, data)
	if err != nil {
		return nil, err
	}
	snap.Path = path
	return snap, nil
}

// LoadAll loads sources in the given order. The order is preserved in the
// result and is the precedence order used by the merger. Stops at the first
// failure.
func LoadAll(sources []Source) ([]*Snapshot, error) {
	seen := make(map[string]bool, len(sources))
	out := make([]*Snapshot, 0, len(sources))
	for _, src := range sources {
		if seen[src.Name] {
			return nil, &Error{Kind: KindRead, Source: src.Name, Message: fmt.Sprintf("source name %q given twice", src.Name)}
		}
		seen[src.Name] = true

		snap, err := Load(src.Name, src.Path)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// Parse decodes snapshot JSON. filename is used for error positions only.
func Parse(name, filename string, data []byte) (*Snapshot, error) {
	value, err := Validate(name, filename, data)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Name: name}

	groupNames := make(map[string]string)
	groupsVal := value.LookupPath(cue.ParsePath("groups"))
	var nested []cue.Value
	if groupsVal.Exists() {
		iter, err := groupsVal.List()
		if err != nil {
			return nil, schemaError(name, err)
		}
		for iter.Next() {
			g := iter.Value()
			gname := stringField(g, "name")
			snap.Groups = append(snap.Groups, catalog.GroupMeta{
				Name:     gname,
				IsPublic: visibilityField(g, "is_public"),
			})
			if id := idField(g, "id"); id != "" {
				groupNames[id] = gname
			}
			if sites := g.LookupPath(cue.ParsePath("sites")); sites.Exists() {
				nested = append(nested, g)
			}
		}
	}

	sitesVal := value.LookupPath(cue.ParsePath("sites"))
	if sitesVal.Exists() {
		iter, err := sitesVal.List()
		if err != nil {
			return nil, schemaError(name, err)
		}
		for iter.Next() {
			rec := recordFrom(iter.Value(), name)
			rec.SourceGroup = groupNames[idField(iter.Value(), "group_id")]
			snap.Records = append(snap.Records, rec)
		}
	}

	for _, g := range nested {
		gname := stringField(g, "name")
		iter, err := g.LookupPath(cue.ParsePath("sites")).List()
		if err != nil {
			return nil, schemaError(name, err)
		}
		for iter.Next() {
			rec := recordFrom(iter.Value(), name)
			rec.SourceGroup = gname
			snap.Records = append(snap.Records, rec)
		}
	}

	configsVal := value.LookupPath(cue.ParsePath("configs"))
	if configsVal.Exists() {
		iter, err := configsVal.Fields()
		if err != nil {
			return nil, schemaError(name, err)
		}
		for iter.Next() {
			snap.Configs.Add(iter.Label(), scalarString(iter.Value()))
		}
	}

	if v := value.LookupPath(cue.ParsePath("version")); v.Exists() {
		snap.Version = scalarString(v)
	}

	return snap, nil
}

// Validate parses data as JSON and checks it against the #Snapshot schema,
// returning the unified value. It never reads individual fields.
func Validate(name, filename string, data []byte) (cue.Value, error) {
	expr, err := cuejson.Extract(filename, data)
	if err != nil {
		return cue.Value{}, &Error{Kind: KindSyntax, Source: name, Message: firstMessage(err), Pos: firstPos(err), Err: err}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("snapshot schema: %w", err)
	}

	doc := ctx.BuildExpr(expr)
	if err := doc.Err(); err != nil {
		return cue.Value{}, &Error{Kind: KindSyntax, Source: name, Message: firstMessage(err), Pos: firstPos(err), Err: err}
	}

	unified := schema.LookupPath(cue.ParsePath("#Snapshot")).Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return cue.Value{}, schemaError(name, err)
	}
	return unified, nil
}

func schemaError(name string, err error) *Error {
	return &Error{Kind: KindSchema, Source: name, Message: firstMessage(err), Pos: firstPos(err), Err: err}
}

func firstMessage(err error) string {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}
	return errs[0].Error()
}

func firstPos(err error) (pos token.Pos) {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return pos
	}
	if positions := cueerrors.Positions(errs[0]); len(positions) > 0 {
		return positions[0]
	}
	return pos
}

func recordFrom(v cue.Value, source string) catalog.Record {
	return catalog.Record{
		Name:        stringField(v, "name"),
		URL:         stringField(v, "url"),
		Icon:        stringField(v, "icon"),
		Description: stringField(v, "description"),
		Notes:       stringField(v, "notes"),
		IsPublic:    visibilityField(v, "is_public"),
		Source:      source,
	}
}

// stringField returns the string at field, or "" when absent or null.
func stringField(v cue.Value, field string) string {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() || f.Kind() != cue.StringKind {
		return ""
	}
	s, _ := f.String()
	return s
}

// visibilityField reads a boolean-as-int flag. Absent means public.
func visibilityField(v cue.Value, field string) int {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return 1
	}
	switch f.Kind() {
	case cue.BoolKind:
		if b, _ := f.Bool(); !b {
			return 0
		}
		return 1
	case cue.IntKind:
		if n, _ := f.Int64(); n == 0 {
			return 0
		}
		return 1
	default:
		return 1
	}
}

// idField normalizes an int or string id to a lookup key.
func idField(v cue.Value, field string) string {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return ""
	}
	switch f.Kind() {
	case cue.IntKind:
		n, _ := f.Int64()
		return strconv.FormatInt(n, 10)
	case cue.StringKind:
		s, _ := f.String()
		return s
	default:
		return ""
	}
}

// scalarString renders a scalar as text: strings verbatim, null as "",
// numbers and booleans as their JSON text.
func scalarString(v cue.Value) string {
	switch v.Kind() {
	case cue.StringKind:
		s, _ := v.String()
		return s
	case cue.NullKind:
		return ""
	default:
		b, err := v.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(b)
	}
}
