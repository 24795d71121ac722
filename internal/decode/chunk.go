package decode

import (
	"context"
	"io"

	"github.com/microdatatools/goddi/codebook"
)

// rowReader produces raw field values for the planned columns, one row
// at a time. next returns io.EOF at end of input. Readers apply the
// malformed-row policy themselves: under RowErrorSkip they consume the
// bad row, record a row-skipped diagnostic, and move on.
type rowReader interface {
	next() ([]string, error)
	takeWarnings() []codebook.Diagnostic
}

// textChunker drives a rowReader and materializes typed batches. The
// schema is resolved once, from a lookahead window buffered before the
// first batch is produced, so every batch of a call shares one schema.
type textChunker struct {
	d    *Decoder
	rows rowReader

	kinds       []codebook.Kind
	schemaWarns []codebook.Diagnostic

	buffer [][]string
	bufErr error // fatal error hit while filling the lookahead
	srcEOF bool

	initialized bool
	firstEmit   bool
	done        bool
}

func newTextChunker(_ context.Context, d *Decoder, rows rowReader) *textChunker {
	return &textChunker{d: d, rows: rows, firstEmit: true}
}

func (c *textChunker) init() {
	if c.initialized {
		return
	}
	c.initialized = true

	for len(c.buffer) < inspectWindow {
		vals, err := c.rows.next()
		if err == io.EOF {
			c.srcEOF = true
			break
		}
		if err != nil {
			// Surface it when the batch containing this row is
			// consumed, not before.
			c.bufErr = err
			break
		}
		c.nullify(vals)
		c.buffer = append(c.buffer, vals)
	}

	var warns []codebook.Diagnostic
	c.kinds, warns = c.d.resolveKinds(c.buffer)
	if h := c.d.plan.hier; h != nil {
		c.schemaWarns = append(c.schemaWarns, h.warnings...)
	}
	c.schemaWarns = append(c.schemaWarns, warns...)
}

// nullify blanks the cells a hierarchical row does not own, before the
// row is inspected or typed.
func (c *textChunker) nullify(vals []string) {
	if h := c.d.plan.hier; h != nil {
		h.nullify(vals)
	}
}

func (c *textChunker) next(n int) (*codebook.Table, error) {
	c.init()
	if c.done {
		return nil, io.EOF
	}

	cols := c.newColumns()
	rows := 0
	for n < 0 || rows < n {
		var vals []string
		switch {
		case len(c.buffer) > 0:
			vals = c.buffer[0]
			c.buffer = c.buffer[1:]
		case c.bufErr != nil:
			err := c.bufErr
			c.bufErr = nil
			c.done = true
			return nil, err
		case c.srcEOF:
			c.done = true
		default:
			var err error
			vals, err = c.rows.next()
			if err == io.EOF {
				c.done = true
			} else if err != nil {
				c.done = true
				return nil, err
			} else {
				c.nullify(vals)
			}
		}
		if vals == nil {
			break
		}
		for i := range cols {
			c.d.appendCell(cols[i], &c.d.plan.vars[i], vals[i])
		}
		rows++
	}
	if rows == 0 && c.done {
		return nil, io.EOF
	}

	t := codebook.NewTable(cols)
	if c.firstEmit {
		t.AddWarnings(c.schemaWarns...)
		c.firstEmit = false
	}
	t.AddWarnings(c.rows.takeWarnings()...)
	return t, nil
}

func (c *textChunker) empty() *codebook.Table {
	c.init()
	t := codebook.NewTable(c.newColumns())
	if c.firstEmit {
		t.AddWarnings(c.schemaWarns...)
	}
	t.AddWarnings(c.rows.takeWarnings()...)
	return t
}

func (c *textChunker) newColumns() []*codebook.Column {
	cols := make([]*codebook.Column, len(c.d.plan.vars))
	for i := range c.d.plan.vars {
		cols[i] = codebook.NewColumn(c.d.plan.vars[i].Name, c.kinds[i])
	}
	return cols
}
