package decode

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/microdatatools/goddi/codebook"
)

// delimitedRowReader decodes CSV exports. The header row maps variable
// names to field positions; decimal shifts are a no-op because
// delimited exports already carry true decimal values.
type delimitedRowReader struct {
	d      *Decoder
	cr     *csv.Reader
	fields []int // field position per planned variable
	row    int
	warns  []codebook.Diagnostic
}

func newDelimitedRowReader(d *Decoder, r io.Reader) *delimitedRowReader {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	return &delimitedRowReader{d: d, cr: cr}
}

func (c *delimitedRowReader) readHeader() error {
	header, err := c.cr.Read()
	if err == io.EOF {
		return io.EOF
	}
	if err != nil {
		return fmt.Errorf("%w: cannot read delimited header: %v", codebook.ErrMalformedCodebook, err)
	}
	pos := make(map[string]int, len(header))
	for i, name := range header {
		pos[name] = i
	}
	c.fields = make([]int, len(c.d.plan.vars))
	for i := range c.d.plan.vars {
		name := c.d.plan.vars[i].Name
		p, ok := pos[name]
		if !ok {
			return fmt.Errorf("%w: data file has no column %s", codebook.ErrConfiguration, name)
		}
		c.fields[i] = p
	}
	return nil
}

func (c *delimitedRowReader) next() ([]string, error) {
	if c.fields == nil {
		if err := c.readHeader(); err != nil {
			return nil, err
		}
	}
	for {
		rec, err := c.cr.Read()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			row := c.row
			c.row++
			rerr := &codebook.RowDecodeError{Row: row, Reason: err.Error()}
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return nil, err
			}
			if c.d.opts.RowErrors == codebook.RowErrorSkip {
				c.warns = append(c.warns, codebook.Diagnostic{
					Severity: codebook.SeverityWarning,
					Code:     codebook.DiagRowSkipped,
					Message:  rerr.Reason,
					Row:      row,
				})
				continue
			}
			return nil, rerr
		}
		c.row++

		vals := make([]string, len(c.fields))
		for i, p := range c.fields {
			if p < len(rec) {
				vals[i] = rec[p]
			}
		}
		return vals, nil
	}
}

func (c *delimitedRowReader) takeWarnings() []codebook.Diagnostic {
	w := c.warns
	c.warns = nil
	return w
}
