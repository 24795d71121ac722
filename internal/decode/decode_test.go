package decode

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/microdatatools/goddi/codebook"
	"github.com/microdatatools/goddi/internal/testutil"
)

// rectCodebook describes a 15-character fixed-width row:
// YEAR [0,4) int, INCTOT [4,10) float via dcml=2, SEX [10,11) int,
// NAME [11,15) string.
func rectCodebook() *codebook.Codebook {
	return &codebook.Codebook{
		FileDescription: codebook.FileDescription{
			Filename:  "extract.dat",
			Structure: codebook.StructureRectangular,
			Encoding:  "iso-8859-1",
		},
		Variables: []codebook.VariableDescription{
			{ID: "YEAR", Name: "YEAR", Start: 0, End: 4, Type: codebook.DeclaredNumeric},
			{ID: "INCTOT", Name: "INCTOT", Start: 4, End: 10, Type: codebook.DeclaredNumeric, DecimalShift: 2},
			{ID: "SEX", Name: "SEX", Start: 10, End: 11, Type: codebook.DeclaredNumeric},
			{ID: "NAME", Name: "NAME", Start: 11, End: 15, Type: codebook.DeclaredCharacter},
		},
	}
}

const rectData = "" +
	"20230012341ANNA\n" +
	"20230050002BOBY\n" +
	"2024      1CARL\n"

func mustDecoder(t *testing.T, cb *codebook.Codebook, format codebook.Format, opts Options) *Decoder {
	t.Helper()
	d, err := New(cb, format, opts)
	testutil.NoError(t, err, "New")
	return d
}

func TestFixedWidthDecode(t *testing.T) {
	d := mustDecoder(t, rectCodebook(), codebook.FormatFixedWidth, Options{})
	tbl, err := d.ReadAll(context.Background(), strings.NewReader(rectData))
	testutil.NoError(t, err, "ReadAll")

	testutil.Equal(t, 3, tbl.NumRows(), "rows")
	testutil.Equal(t, 4, tbl.NumCols(), "cols")

	year := tbl.Column("YEAR")
	testutil.Equal(t, codebook.KindInt, year.Kind(), "YEAR kind")
	v, ok := year.Int(0)
	testutil.True(t, ok, "YEAR[0] present")
	testutil.Equal(t, int64(2023), v, "YEAR[0]")

	// Scaled-integer storage with two implied decimal places.
	inctot := tbl.Column("INCTOT")
	testutil.Equal(t, codebook.KindFloat, inctot.Kind(), "INCTOT kind")
	f, ok := inctot.Float(0)
	testutil.True(t, ok, "INCTOT[0] present")
	testutil.InDelta(t, 12.34, f, 1e-9, "INCTOT[0]")
	f, ok = inctot.Float(1)
	testutil.True(t, ok, "INCTOT[1] present")
	testutil.InDelta(t, 50.0, f, 1e-9, "INCTOT[1]")
	testutil.True(t, inctot.IsNull(2), "blank INCTOT is null")

	name := tbl.Column("NAME")
	s, ok := name.Str(2)
	testutil.True(t, ok, "NAME[2] present")
	testutil.Equal(t, "CARL", s, "NAME[2]")
}

func TestTypeInspectionFloat(t *testing.T) {
	cb := &codebook.Codebook{
		Variables: []codebook.VariableDescription{
			{ID: "RATE", Name: "RATE", Start: 0, End: 4, Type: codebook.DeclaredNumeric},
		},
	}
	d := mustDecoder(t, cb, codebook.FormatFixedWidth, Options{})
	tbl, err := d.ReadAll(context.Background(), strings.NewReader("   1\n 3.5\n   2\n"))
	testutil.NoError(t, err, "ReadAll")

	rate := tbl.Column("RATE")
	testutil.Equal(t, codebook.KindFloat, rate.Kind(), "RATE downgraded to float")
	f, ok := rate.Float(0)
	testutil.True(t, ok, "RATE[0] present")
	testutil.InDelta(t, 1.0, f, 1e-9, "RATE[0]")
	f, ok = rate.Float(1)
	testutil.True(t, ok, "RATE[1] present")
	testutil.InDelta(t, 3.5, f, 1e-9, "RATE[1]")
	testutil.Len(t, tbl.Warnings(), 0, "float downgrade carries no warning")
}

func TestTypeInspectionString(t *testing.T) {
	cb := &codebook.Codebook{
		Variables: []codebook.VariableDescription{
			{ID: "CODE", Name: "CODE", Start: 0, End: 4, Type: codebook.DeclaredNumeric},
		},
	}
	d := mustDecoder(t, cb, codebook.FormatFixedWidth, Options{})
	tbl, err := d.ReadAll(context.Background(), strings.NewReader("   1\nN/A \n   2\n"))
	testutil.NoError(t, err, "ReadAll")

	code := tbl.Column("CODE")
	testutil.Equal(t, codebook.KindString, code.Kind(), "CODE downgraded to string")
	s, ok := code.Str(1)
	testutil.True(t, ok, "CODE[1] present")
	testutil.Equal(t, "N/A", s, "CODE[1]")

	testutil.Len(t, tbl.Warnings(), 1, "one warning")
	w := tbl.Warnings()[0]
	testutil.Equal(t, codebook.DiagTypeResolution, w.Code, "warning code")
	testutil.Equal(t, "CODE", w.Variable, "warning variable")
}

func TestDeclaredTypesDisableInspection(t *testing.T) {
	cb := &codebook.Codebook{
		Variables: []codebook.VariableDescription{
			{ID: "CODE", Name: "CODE", Start: 0, End: 4, Type: codebook.DeclaredNumeric},
		},
	}
	d := mustDecoder(t, cb, codebook.FormatFixedWidth, Options{DeclaredTypes: true})
	tbl, err := d.ReadAll(context.Background(), strings.NewReader("   1\nN/A \n   2\n"))
	testutil.NoError(t, err, "ReadAll")

	code := tbl.Column("CODE")
	testutil.Equal(t, codebook.KindInt, code.Kind(), "declared kind kept")
	testutil.True(t, code.IsNull(1), "unparseable value decodes as null")
	v, ok := code.Int(2)
	testutil.True(t, ok, "CODE[2] present")
	testutil.Equal(t, int64(2), v, "CODE[2]")
}

func TestChunkInvariance(t *testing.T) {
	cb := rectCodebook()
	whole, err := mustDecoder(t, cb, codebook.FormatFixedWidth, Options{}).
		ReadAll(context.Background(), strings.NewReader(rectData))
	testutil.NoError(t, err, "ReadAll")

	for _, size := range []int{1, 2, 3, 1000} {
		d := mustDecoder(t, cb, codebook.FormatFixedWidth, Options{ChunkSize: size})
		var got *codebook.Table
		for t2, err := range d.Chunks(context.Background(), strings.NewReader(rectData)) {
			testutil.NoError(t, err, "chunk (size %d)", size)
			if size > 0 && t2.NumRows() > size {
				t.Fatalf("chunk of %d rows exceeds size %d", t2.NumRows(), size)
			}
			if got == nil {
				got = t2
			} else {
				got = concatTables(got, t2)
			}
		}
		testutil.NotNil(t, got, "no chunks at size %d", size)
		testutil.Equal(t, whole.NumRows(), got.NumRows(), "rows at size %d", size)
		for _, col := range whole.Columns() {
			g := got.Column(col.Name())
			testutil.Equal(t, col.Kind(), g.Kind(), "%s kind at size %d", col.Name(), size)
			for r := 0; r < whole.NumRows(); r++ {
				testutil.Equal(t, col.Value(r), g.Value(r), "%s[%d] at size %d", col.Name(), r, size)
			}
		}
	}
}

func TestSubset(t *testing.T) {
	d := mustDecoder(t, rectCodebook(), codebook.FormatFixedWidth,
		Options{Subset: []string{"NAME", "YEAR"}})
	tbl, err := d.ReadAll(context.Background(), strings.NewReader(rectData))
	testutil.NoError(t, err, "ReadAll")

	testutil.Equal(t, 2, tbl.NumCols(), "cols")
	// Selection keeps codebook column order, not request order.
	testutil.Equal(t, "YEAR", tbl.ColumnNames()[0], "first column")
	testutil.Equal(t, "NAME", tbl.ColumnNames()[1], "second column")
}

func TestSubsetUnknownVariable(t *testing.T) {
	_, err := New(rectCodebook(), codebook.FormatFixedWidth, Options{Subset: []string{"YEAR", "NOPE"}})
	testutil.ErrorIs(t, err, codebook.ErrConfiguration, "unknown subset name")
}

func TestRowErrorFail(t *testing.T) {
	d := mustDecoder(t, rectCodebook(), codebook.FormatFixedWidth, Options{})
	_, err := d.ReadAll(context.Background(), strings.NewReader("20230012341ANNA\nshort\n"))
	var rerr *codebook.RowDecodeError
	testutil.True(t, errors.As(err, &rerr), "want RowDecodeError, got %v", err)
	testutil.Equal(t, 1, rerr.Row, "failing row")
}

func TestRowErrorSkip(t *testing.T) {
	d := mustDecoder(t, rectCodebook(), codebook.FormatFixedWidth,
		Options{RowErrors: codebook.RowErrorSkip})
	tbl, err := d.ReadAll(context.Background(),
		strings.NewReader("20230012341ANNA\nshort\n20230050002BOBY\n"))
	testutil.NoError(t, err, "ReadAll")

	testutil.Equal(t, 2, tbl.NumRows(), "bad row dropped")
	testutil.Len(t, tbl.Warnings(), 1, "one warning")
	w := tbl.Warnings()[0]
	testutil.Equal(t, codebook.DiagRowSkipped, w.Code, "warning code")
	testutil.Equal(t, 1, w.Row, "skipped row index")
}

func TestDelimitedDecode(t *testing.T) {
	// Header order differs from codebook order; positions come from the
	// header. Decimal shifts do not reapply to delimited values.
	data := "NAME,SEX,YEAR,INCTOT\nANNA,1,2023,12.34\nBOBY,2,2023,50\nCARL,1,2024,\n"
	d := mustDecoder(t, rectCodebook(), codebook.FormatDelimited, Options{})
	tbl, err := d.ReadAll(context.Background(), strings.NewReader(data))
	testutil.NoError(t, err, "ReadAll")

	testutil.Equal(t, 3, tbl.NumRows(), "rows")
	testutil.Equal(t, "YEAR", tbl.ColumnNames()[0], "codebook order kept")

	inctot := tbl.Column("INCTOT")
	f, ok := inctot.Float(0)
	testutil.True(t, ok, "INCTOT[0] present")
	testutil.InDelta(t, 12.34, f, 1e-9, "INCTOT[0] taken at face value")
	f, ok = inctot.Float(1)
	testutil.True(t, ok, "INCTOT[1] present")
	testutil.InDelta(t, 50.0, f, 1e-9, "INCTOT[1]")
	testutil.True(t, inctot.IsNull(2), "empty field is null")
}

func TestDelimitedMissingColumn(t *testing.T) {
	data := "NAME,YEAR\nANNA,2023\n"
	d := mustDecoder(t, rectCodebook(), codebook.FormatDelimited, Options{})
	_, err := d.ReadAll(context.Background(), strings.NewReader(data))
	testutil.ErrorIs(t, err, codebook.ErrConfiguration, "header lacks a codebook column")
}

func TestEncodedInput(t *testing.T) {
	cb := &codebook.Codebook{
		FileDescription: codebook.FileDescription{Encoding: "iso-8859-1"},
		Variables: []codebook.VariableDescription{
			{ID: "NAME", Name: "NAME", Start: 0, End: 4, Type: codebook.DeclaredCharacter},
		},
	}
	d := mustDecoder(t, cb, codebook.FormatFixedWidth, Options{})
	raw := []byte{'R', 0xC9, 'N', 0xC9, '\n'} // RÉNÉ in latin-1
	tbl, err := d.ReadAll(context.Background(), bytes.NewReader(raw))
	testutil.NoError(t, err, "ReadAll")
	s, ok := tbl.Column("NAME").Str(0)
	testutil.True(t, ok, "NAME[0] present")
	testutil.Equal(t, "RÉNÉ", s, "latin-1 bytes decoded")
}

func TestUnknownEncoding(t *testing.T) {
	cb := rectCodebook()
	d := mustDecoder(t, cb, codebook.FormatFixedWidth, Options{Encoding: "no-such-charset"})
	_, err := d.ReadAll(context.Background(), strings.NewReader(rectData))
	testutil.ErrorIs(t, err, codebook.ErrConfiguration, "unknown encoding")
}

func TestEmptyInput(t *testing.T) {
	d := mustDecoder(t, rectCodebook(), codebook.FormatFixedWidth, Options{})
	tbl, err := d.ReadAll(context.Background(), strings.NewReader(""))
	testutil.NoError(t, err, "ReadAll")
	testutil.Equal(t, 0, tbl.NumRows(), "rows")
	testutil.Equal(t, 4, tbl.NumCols(), "schema columns present")
	testutil.Equal(t, codebook.KindFloat, tbl.Column("INCTOT").Kind(), "declared kinds kept")
}

func TestChunksStopEarly(t *testing.T) {
	d := mustDecoder(t, rectCodebook(), codebook.FormatFixedWidth, Options{ChunkSize: 1})
	seen := 0
	for _, err := range d.Chunks(context.Background(), strings.NewReader(rectData)) {
		testutil.NoError(t, err, "chunk")
		seen++
		break
	}
	testutil.Equal(t, 1, seen, "iteration stopped after one chunk")
}

func TestChunksContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := mustDecoder(t, rectCodebook(), codebook.FormatFixedWidth, Options{ChunkSize: 1})
	var got error
	for _, err := range d.Chunks(ctx, strings.NewReader(rectData)) {
		got = err
	}
	testutil.ErrorIs(t, got, context.Canceled, "cancelled context surfaces")
}
