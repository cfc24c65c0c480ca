// Package export writes an archived record and everything it contains to a
// directory based destination.
//
// A record is written as {id}.json in its export directory. A record with
// children also gets {id}/.objects, a CSV listing of its exported children
// (id,kind), and each child is written below {id}/ in turn.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path"
	"slices"

	"mercator-hq/strata/pkg/record"
	"mercator-hq/strata/pkg/store"
)

// Content types of exported files.
const (
	ContentTypeJSON = "application/json"
	ContentTypeCSV  = "text/comma-separated-values"
)

// CanExport decides whether an object is written. Objects refused are
// skipped together with their children.
type CanExport func(rec *record.Record) bool

// SkipTypes returns a CanExport refusing the given kinds, unless the object
// is being archived.
func SkipTypes(kinds []string) CanExport {
	skip := slices.Clone(kinds)
	return func(rec *record.Record) bool {
		if rec == nil {
			return false
		}
		if rec.ForArchiving {
			return true
		}
		return !slices.Contains(skip, string(rec.Kind))
	}
}

// Config configures a Writer.
type Config struct {
	// Pretty indents the JSON files.
	Pretty bool

	// CanExport filters the objects written. Nil exports everything.
	CanExport CanExport
}

// Writer exports record hierarchies to a Destination.
type Writer struct {
	dest      Destination
	pretty    bool
	canExport CanExport
}

// NewWriter creates a Writer.
func NewWriter(dest Destination, cfg Config) *Writer {
	can := cfg.CanExport
	if can == nil {
		can = func(rec *record.Record) bool { return rec != nil }
	}
	return &Writer{dest: dest, pretty: cfg.Pretty, canExport: can}
}

// Export writes rec and its contained hierarchy and returns the directory,
// relative to the destination root, the record was exported to.
func (w *Writer) Export(ctx context.Context, r store.Reader, rec *record.Record) (string, error) {
	parentPath, err := parentPath(ctx, r, rec)
	if err != nil {
		return "", err
	}
	dir := RelativePath(rec.Created, parentPath)
	if err := w.write(ctx, r, rec, dir); err != nil {
		return "", err
	}
	return dir, nil
}

func parentPath(ctx context.Context, r store.Reader, rec *record.Record) (string, error) {
	if rec.IsRoot() {
		dir := path.Dir(rec.Path)
		if dir == "/" || dir == "." {
			return "", nil
		}
		return dir, nil
	}
	parent, err := r.Get(ctx, rec.ParentUID)
	if err != nil {
		return "", fmt.Errorf("resolve parent of %s: %w", rec.UID, err)
	}
	return parent.Path, nil
}

func (w *Writer) write(ctx context.Context, r store.Reader, rec *record.Record, dir string) error {
	if !w.canExport(rec) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := w.encode(rec)
	if err != nil {
		return NewExportError(dir+rec.ID+".json", err)
	}
	if err := w.dest.WriteFile(ctx, dir+rec.ID+".json", data, ContentTypeJSON); err != nil {
		return err
	}

	children, err := r.Children(ctx, rec.UID)
	if err != nil {
		return err
	}
	var exported []*record.Record
	for _, child := range children {
		if w.canExport(child) {
			exported = append(exported, child)
		}
	}
	if len(exported) == 0 {
		return nil
	}

	sub := dir + rec.ID + "/"
	listing, err := objectsListing(exported)
	if err != nil {
		return NewExportError(sub+".objects", err)
	}
	if err := w.dest.WriteFile(ctx, sub+".objects", listing, ContentTypeCSV); err != nil {
		return err
	}
	for _, child := range exported {
		if err := w.write(ctx, r, child, sub); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) encode(rec *record.Record) ([]byte, error) {
	if w.pretty {
		return json.MarshalIndent(rec, "", "  ")
	}
	return json.Marshal(rec)
}

func objectsListing(children []*record.Record) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	for _, child := range children {
		if err := cw.Write([]string{child.ID, string(child.Kind)}); err != nil {
			return nil, err
		}
	}
	cw.Flush()
	return buf.Bytes(), cw.Error()
}
