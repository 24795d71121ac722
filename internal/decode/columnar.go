package decode

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	pqfile "github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/microdatatools/goddi/codebook"
)

// columnarChunker reads parquet extracts. Stored types are trusted:
// decimal shifts and type inspection are no-ops because the values were
// materialized correctly upstream.
type columnarChunker struct {
	d   *Decoder
	ctx context.Context

	tbl    arrow.Table
	pq     *pqfile.Reader
	fields []int // arrow column index per planned variable
	kinds  []codebook.Kind

	schemaWarns []codebook.Diagnostic
	firstEmit   bool

	tr   *array.TableReader
	done bool
}

func newColumnarChunker(ctx context.Context, d *Decoder, r io.Reader) (*columnarChunker, error) {
	// Parquet needs random access, so the stream is buffered whole.
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading parquet data: %w", err)
	}

	pq, err := pqfile.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening parquet data: %w", err)
	}
	ar, err := pqarrow.NewFileReader(pq, pqarrow.ArrowReadProperties{}, nil)
	if err != nil {
		pq.Close()
		return nil, fmt.Errorf("opening parquet data: %w", err)
	}
	tbl, err := ar.ReadTable(ctx)
	if err != nil {
		pq.Close()
		return nil, fmt.Errorf("reading parquet table: %w", err)
	}

	c := &columnarChunker{d: d, ctx: ctx, tbl: tbl, pq: pq, firstEmit: true}

	schema := tbl.Schema()
	c.fields = make([]int, len(d.plan.vars))
	c.kinds = make([]codebook.Kind, len(d.plan.vars))
	for i := range d.plan.vars {
		name := d.plan.vars[i].Name
		idx := schema.FieldIndices(name)
		if len(idx) == 0 {
			c.close()
			return nil, fmt.Errorf("%w: parquet file has no column %s", codebook.ErrConfiguration, name)
		}
		c.fields[i] = idx[0]
		c.kinds[i] = arrowKind(schema.Field(idx[0]).Type)
	}
	if h := d.plan.hier; h != nil {
		c.schemaWarns = append(c.schemaWarns, h.warnings...)
	}
	return c, nil
}

func (c *columnarChunker) close() {
	if c.tr != nil {
		c.tr.Release()
		c.tr = nil
	}
	if c.tbl != nil {
		c.tbl.Release()
		c.tbl = nil
	}
	if c.pq != nil {
		c.pq.Close()
		c.pq = nil
	}
}

func (c *columnarChunker) next(n int) (*codebook.Table, error) {
	if c.done {
		return nil, io.EOF
	}
	if c.tr == nil {
		size := int64(n)
		if n < 0 {
			size = 0 // a single batch
		}
		c.tr = array.NewTableReader(c.tbl, size)
	}
	if !c.tr.Next() {
		err := c.tr.Err()
		c.done = true
		c.close()
		if err != nil {
			return nil, fmt.Errorf("reading parquet batches: %w", err)
		}
		return nil, io.EOF
	}
	rec := c.tr.Record()

	t := c.materialize(rec)
	if c.firstEmit {
		t.AddWarnings(c.schemaWarns...)
		c.firstEmit = false
	}
	return t, nil
}

func (c *columnarChunker) empty() *codebook.Table {
	t := codebook.NewTable(c.newColumns())
	if c.firstEmit {
		t.AddWarnings(c.schemaWarns...)
	}
	return t
}

func (c *columnarChunker) newColumns() []*codebook.Column {
	cols := make([]*codebook.Column, len(c.d.plan.vars))
	for i := range c.d.plan.vars {
		cols[i] = codebook.NewColumn(c.d.plan.vars[i].Name, c.kinds[i])
	}
	return cols
}

func (c *columnarChunker) materialize(rec arrow.Record) *codebook.Table {
	cols := c.newColumns()
	rows := int(rec.NumRows())

	// Resolve each row's record type first so non-owning cells can be
	// nulled while the columns are built.
	var rts []string
	h := c.d.plan.hier
	if h != nil {
		rtArr := rec.Column(c.fields[h.rtIndex])
		rts = make([]string, rows)
		for r := 0; r < rows; r++ {
			if !rtArr.IsNull(r) {
				rts[r] = rtArr.ValueStr(r)
			}
		}
	}

	for i := range cols {
		arr := rec.Column(c.fields[i])
		owners := ownerSet(h, i)
		for r := 0; r < rows; r++ {
			if owners != nil && !owners[rts[r]] {
				cols[i].AppendNull()
				continue
			}
			appendArrowCell(cols[i], arr, r)
		}
	}
	return codebook.NewTable(cols)
}

func ownerSet(h *hierarchy, i int) map[string]bool {
	if h == nil {
		return nil
	}
	return h.owners[i]
}

// arrowKind maps a stored arrow type onto a column kind. Anything
// without a numeric mapping decodes as a string.
func arrowKind(dt arrow.DataType) codebook.Kind {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return codebook.KindInt
	case arrow.FLOAT32, arrow.FLOAT64:
		return codebook.KindFloat
	default:
		return codebook.KindString
	}
}

func appendArrowCell(col *codebook.Column, arr arrow.Array, i int) {
	if arr.IsNull(i) {
		col.AppendNull()
		return
	}
	switch a := arr.(type) {
	case *array.Int8:
		col.AppendInt(int64(a.Value(i)))
	case *array.Int16:
		col.AppendInt(int64(a.Value(i)))
	case *array.Int32:
		col.AppendInt(int64(a.Value(i)))
	case *array.Int64:
		col.AppendInt(a.Value(i))
	case *array.Uint8:
		col.AppendInt(int64(a.Value(i)))
	case *array.Uint16:
		col.AppendInt(int64(a.Value(i)))
	case *array.Uint32:
		col.AppendInt(int64(a.Value(i)))
	case *array.Uint64:
		col.AppendInt(int64(a.Value(i)))
	case *array.Float32:
		col.AppendFloat(float64(a.Value(i)))
	case *array.Float64:
		col.AppendFloat(a.Value(i))
	case *array.String:
		col.AppendString(a.Value(i))
	case *array.LargeString:
		col.AppendString(a.Value(i))
	default:
		if col.Kind() == codebook.KindString {
			col.AppendString(arr.ValueStr(i))
			return
		}
		col.AppendNull()
	}
}
