// Package decode turns microdata byte streams into typed row batches
// under the direction of a parsed codebook.
package decode

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"

	"github.com/microdatatools/goddi/codebook"
)

// inspectWindow is how many rows the type-inspection pass examines. It
// is independent of the chunk size so that every chunk size resolves the
// same schema.
const inspectWindow = 1024

// Options configures a decode call.
type Options struct {
	// Subset restricts decoding to the named variables. Nil decodes
	// everything.
	Subset []string

	// ChunkSize bounds the rows per batch for chunked reads. Zero or
	// negative means unbounded.
	ChunkSize int

	// RowErrors selects the malformed-row policy.
	RowErrors codebook.RowErrorPolicy

	// Encoding overrides the codebook's declared character encoding.
	Encoding string

	// DeclaredTypes disables data inspection and trusts the declared
	// variable types as-is.
	DeclaredTypes bool

	Logger *slog.Logger
}

// Decoder decodes one physical format for one codebook. A Decoder holds
// no per-call state and may be reused across sources.
type Decoder struct {
	cb     *codebook.Codebook
	format codebook.Format
	opts   Options
	plan   *plan
}

// New builds a Decoder, validating the column subset against the
// codebook before any data is read.
func New(cb *codebook.Codebook, format codebook.Format, opts Options) (*Decoder, error) {
	p, err := buildPlan(cb, opts)
	if err != nil {
		return nil, err
	}
	return &Decoder{cb: cb, format: format, opts: opts, plan: p}, nil
}

// plan is the per-decoder column selection and (for hierarchical
// extracts) record-type ownership.
type plan struct {
	vars []codebook.VariableDescription // selected, in codebook order
	hier *hierarchy                     // nil for rectangular extracts
}

func buildPlan(cb *codebook.Codebook, opts Options) (*plan, error) {
	hierarchical := cb.FileDescription.Structure == codebook.StructureHierarchical

	vars := cb.Variables
	if opts.Subset != nil {
		want := make(map[string]bool, len(opts.Subset))
		for _, name := range opts.Subset {
			want[name] = true
		}
		if hierarchical && !want[cb.FileDescription.RecordTypeVar] {
			return nil, fmt.Errorf("%w: %s must be included in the subset for hierarchical extracts",
				codebook.ErrConfiguration, cb.FileDescription.RecordTypeVar)
		}
		vars = nil
		for _, vd := range cb.Variables {
			if want[vd.Name] {
				vars = append(vars, vd)
				delete(want, vd.Name)
			}
		}
		for name := range want {
			return nil, fmt.Errorf("%w: subset names unknown variable %s", codebook.ErrConfiguration, name)
		}
	}

	p := &plan{vars: vars}
	if hierarchical {
		h, err := buildHierarchy(cb, vars)
		if err != nil {
			return nil, err
		}
		p.hier = h
	}
	return p, nil
}

// chunkSource produces successive row batches sharing one resolved
// schema. next returns io.EOF when the source is exhausted.
type chunkSource interface {
	next(n int) (*codebook.Table, error)
	empty() *codebook.Table
}

func (d *Decoder) open(ctx context.Context, r io.Reader) (chunkSource, error) {
	if d.format == codebook.FormatColumnar {
		return newColumnarChunker(ctx, d, r)
	}

	enc, err := d.newEncodingReader(r)
	if err != nil {
		return nil, err
	}
	var rows rowReader
	switch d.format {
	case codebook.FormatFixedWidth:
		rows = newFixedRowReader(d, enc)
	case codebook.FormatDelimited:
		rows = newDelimitedRowReader(d, enc)
	default:
		return nil, fmt.Errorf("%w: unsupported format %s", codebook.ErrConfiguration, d.format)
	}
	return newTextChunker(ctx, d, rows), nil
}

// Chunks decodes r into successive row batches. Fatal errors surface on
// the batch they belong to; earlier batches are unaffected. Abandoning
// the iteration early has no side effects.
func (d *Decoder) Chunks(ctx context.Context, r io.Reader) iter.Seq2[*codebook.Table, error] {
	return func(yield func(*codebook.Table, error) bool) {
		cs, err := d.open(ctx, r)
		if err != nil {
			yield(nil, err)
			return
		}
		n := d.opts.ChunkSize
		if n <= 0 {
			n = -1
		}
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			t, err := cs.next(n)
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(t, nil) {
				return
			}
		}
	}
}

// ReadAll decodes r in one unbounded batch.
func (d *Decoder) ReadAll(ctx context.Context, r io.Reader) (*codebook.Table, error) {
	cs, err := d.open(ctx, r)
	if err != nil {
		return nil, err
	}
	var out *codebook.Table
	for {
		t, err := cs.next(-1)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = t
		} else {
			out = concatTables(out, t)
		}
	}
	if out == nil {
		out = cs.empty()
	}
	return out, nil
}

// ReadUnified decodes a hierarchical extract into a single table whose
// non-owning cells are nulled per row.
func (d *Decoder) ReadUnified(ctx context.Context, r io.Reader) (*codebook.Table, error) {
	if d.plan.hier == nil {
		return nil, fmt.Errorf("%w: structure must be hierarchical", codebook.ErrConfiguration)
	}
	return d.ReadAll(ctx, r)
}

// ReadPartitioned decodes a hierarchical extract into one table per
// record type. Record types with no matching rows yield empty tables.
func (d *Decoder) ReadPartitioned(ctx context.Context, r io.Reader) (map[string]*codebook.Table, error) {
	h := d.plan.hier
	if h == nil {
		return nil, fmt.Errorf("%w: structure must be hierarchical", codebook.ErrConfiguration)
	}
	cs, err := d.open(ctx, r)
	if err != nil {
		return nil, err
	}

	parts := make(map[string]*partition, len(h.recordTypes))
	var warns []codebook.Diagnostic
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := cs.next(-1)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		for _, rt := range h.recordTypes {
			if parts[rt] == nil {
				parts[rt] = newPartition(rt, h, t)
			}
		}
		warns = append(warns, t.Warnings()...)
		h.split(t, parts)
	}
	if len(parts) == 0 {
		schema := cs.empty()
		warns = append(warns, schema.Warnings()...)
		for _, rt := range h.recordTypes {
			parts[rt] = newPartition(rt, h, schema)
		}
	}
	out := make(map[string]*codebook.Table, len(h.recordTypes))
	for _, rt := range h.recordTypes {
		out[rt] = parts[rt].table()
		out[rt].AddWarnings(warns...)
	}
	return out, nil
}

// resolveKinds fixes one column kind per planned variable. sample holds
// raw field values from the lookahead window, in plan order per row;
// inspection only reconsiders shift-free numeric columns, since those
// are the ones the codebook cannot distinguish from floats.
func (d *Decoder) resolveKinds(sample [][]string) ([]codebook.Kind, []codebook.Diagnostic) {
	kinds := make([]codebook.Kind, len(d.plan.vars))
	var warns []codebook.Diagnostic
	for i := range d.plan.vars {
		vd := &d.plan.vars[i]
		kinds[i] = vd.Kind()
		if d.opts.DeclaredTypes || kinds[i] != codebook.KindInt {
			continue
		}
		switch inspectColumn(sample, i) {
		case codebook.KindFloat:
			kinds[i] = codebook.KindFloat
		case codebook.KindString:
			kinds[i] = codebook.KindString
			warns = append(warns, codebook.Diagnostic{
				Severity: codebook.SeverityWarning,
				Code:     codebook.DiagTypeResolution,
				Message:  "declared numeric but holds non-numeric data; decoding as string",
				Variable: vd.Name,
				Row:      -1,
			})
		}
	}
	if logEnabled(d.opts.Logger, slog.LevelDebug) {
		d.opts.Logger.LogAttrs(context.Background(), slog.LevelDebug, "schema resolved",
			slog.Int("columns", len(kinds)), slog.Int("sample_rows", len(sample)))
	}
	return kinds, warns
}

// inspectColumn decides the narrowest kind that losslessly holds every
// sampled value of column i: int, else float, else string.
func inspectColumn(sample [][]string, i int) codebook.Kind {
	kind := codebook.KindInt
	for _, row := range sample {
		v := strings.TrimSpace(row[i])
		if v == "" {
			continue
		}
		if _, err := strconv.ParseInt(v, 10, 64); err == nil {
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			kind = codebook.KindFloat
			continue
		}
		return codebook.KindString
	}
	return kind
}

// appendCell decodes one trimmed raw field into col. Blank fields are
// null under every kind, and numeric garbage in a declared-numeric
// field decodes as null rather than failing the batch.
func (d *Decoder) appendCell(col *codebook.Column, vd *codebook.VariableDescription, raw string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		col.AppendNull()
		return
	}
	switch col.Kind() {
	case codebook.KindString:
		col.AppendString(raw)
	case codebook.KindInt:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			col.AppendNull()
			return
		}
		col.AppendInt(v)
	case codebook.KindFloat:
		// Fixed-width fields with an implied decimal store scaled
		// integers; delimited exports already carry the true value.
		if d.format == codebook.FormatFixedWidth && vd.DecimalShift > 0 && !strings.ContainsAny(raw, ".eE") {
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				col.AppendNull()
				return
			}
			col.AppendFloat(float64(v) / pow10(vd.DecimalShift))
			return
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			col.AppendNull()
			return
		}
		col.AppendFloat(v)
	}
}

func pow10(n int) float64 {
	v := 1.0
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}

// newEncodingReader wraps r with a decoder for the extract's declared
// character encoding. UTF-8 and unknown-but-empty names pass through.
func (d *Decoder) newEncodingReader(r io.Reader) (io.Reader, error) {
	name := d.opts.Encoding
	if name == "" {
		name = d.cb.FileDescription.Encoding
	}
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8", "us-ascii", "ascii":
		return r, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown character encoding %q", codebook.ErrConfiguration, name)
	}
	if enc == nil {
		return r, nil
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

func concatTables(a, b *codebook.Table) *codebook.Table {
	cols := make([]*codebook.Column, 0, a.NumCols())
	for _, ac := range a.Columns() {
		bc := b.Column(ac.Name())
		merged := codebook.NewColumn(ac.Name(), ac.Kind())
		for i := 0; i < ac.Len(); i++ {
			copyCell(merged, ac, i)
		}
		for i := 0; i < bc.Len(); i++ {
			copyCell(merged, bc, i)
		}
		cols = append(cols, merged)
	}
	t := codebook.NewTable(cols)
	t.AddWarnings(a.Warnings()...)
	t.AddWarnings(b.Warnings()...)
	return t
}

// copyCell appends row i of src onto dst. The columns must share a kind.
func copyCell(dst, src *codebook.Column, i int) {
	if src.IsNull(i) {
		dst.AppendNull()
		return
	}
	switch src.Kind() {
	case codebook.KindInt:
		v, _ := src.Int(i)
		dst.AppendInt(v)
	case codebook.KindFloat:
		v, _ := src.Float(i)
		dst.AppendFloat(v)
	case codebook.KindString:
		v, _ := src.Str(i)
		dst.AppendString(v)
	}
}

// logEnabled returns true if logging is enabled at the given level.
func logEnabled(logger *slog.Logger, level slog.Level) bool {
	return logger != nil && logger.Enabled(context.Background(), level)
}
