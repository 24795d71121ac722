package decode

import (
	"bufio"
	"fmt"
	"io"

	"github.com/microdatatools/goddi/codebook"
)

// fixedRowReader decodes fixed-width text lines by slicing each line at
// the codebook's column offsets.
type fixedRowReader struct {
	d      *Decoder
	sc     *bufio.Scanner
	row    int
	maxEnd int
	warns  []codebook.Diagnostic
}

func newFixedRowReader(d *Decoder, r io.Reader) *fixedRowReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	maxEnd := 0
	for i := range d.plan.vars {
		if end := d.plan.vars[i].End; end > maxEnd {
			maxEnd = end
		}
	}
	return &fixedRowReader{d: d, sc: sc, maxEnd: maxEnd}
}

func (f *fixedRowReader) next() ([]string, error) {
	for f.sc.Scan() {
		row := f.row
		f.row++

		// Offsets address characters, not bytes; the transform
		// reader has already decoded the extract's encoding.
		runes := []rune(f.sc.Text())
		if len(runes) < f.maxEnd {
			rerr := &codebook.RowDecodeError{
				Row:    row,
				Reason: fmt.Sprintf("line has %d characters, want at least %d", len(runes), f.maxEnd),
			}
			if f.d.opts.RowErrors == codebook.RowErrorSkip {
				f.warns = append(f.warns, codebook.Diagnostic{
					Severity: codebook.SeverityWarning,
					Code:     codebook.DiagRowSkipped,
					Message:  rerr.Reason,
					Row:      row,
				})
				continue
			}
			return nil, rerr
		}

		vals := make([]string, len(f.d.plan.vars))
		for i := range f.d.plan.vars {
			vd := &f.d.plan.vars[i]
			vals[i] = string(runes[vd.Start:vd.End])
		}
		return vals, nil
	}
	if err := f.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (f *fixedRowReader) takeWarnings() []codebook.Diagnostic {
	w := f.warns
	f.warns = nil
	return w
}
