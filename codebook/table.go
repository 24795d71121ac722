package codebook

import "fmt"

// Column is a typed, nullable column of decoded values. A column's kind
// is fixed at construction; every cell is either a value of that kind or
// null. Columns are append-only while a batch is being built and are not
// mutated afterwards.
type Column struct {
	name string
	kind Kind

	ints   []int64
	floats []float64
	strs   []string
	valid  []bool
}

// NewColumn creates an empty column of the given kind.
func NewColumn(name string, kind Kind) *Column {
	return &Column{name: name, kind: kind}
}

// Name returns the column name.
func (c *Column) Name() string { return c.name }

// Kind returns the column's resolved kind.
func (c *Column) Kind() Kind { return c.kind }

// Len returns the number of rows in the column.
func (c *Column) Len() int { return len(c.valid) }

// AppendInt appends an integer cell. Panics if the kind is not KindInt.
func (c *Column) AppendInt(v int64) {
	if c.kind != KindInt {
		panic(fmt.Sprintf("codebook: AppendInt on %s column %s", c.kind, c.name))
	}
	c.ints = append(c.ints, v)
	c.valid = append(c.valid, true)
}

// AppendFloat appends a float cell. Panics if the kind is not KindFloat.
func (c *Column) AppendFloat(v float64) {
	if c.kind != KindFloat {
		panic(fmt.Sprintf("codebook: AppendFloat on %s column %s", c.kind, c.name))
	}
	c.floats = append(c.floats, v)
	c.valid = append(c.valid, true)
}

// AppendString appends a string cell. Panics if the kind is not KindString.
func (c *Column) AppendString(v string) {
	if c.kind != KindString {
		panic(fmt.Sprintf("codebook: AppendString on %s column %s", c.kind, c.name))
	}
	c.strs = append(c.strs, v)
	c.valid = append(c.valid, true)
}

// AppendNull appends a null cell of the column's kind.
func (c *Column) AppendNull() {
	switch c.kind {
	case KindInt:
		c.ints = append(c.ints, 0)
	case KindFloat:
		c.floats = append(c.floats, 0)
	case KindString:
		c.strs = append(c.strs, "")
	}
	c.valid = append(c.valid, false)
}

// IsNull reports whether the cell at row i is null.
func (c *Column) IsNull(i int) bool { return !c.valid[i] }

// Int returns the integer at row i. ok is false for nulls and for
// non-integer columns.
func (c *Column) Int(i int) (v int64, ok bool) {
	if c.kind != KindInt || !c.valid[i] {
		return 0, false
	}
	return c.ints[i], true
}

// Float returns the float at row i. ok is false for nulls and for
// non-float columns.
func (c *Column) Float(i int) (v float64, ok bool) {
	if c.kind != KindFloat || !c.valid[i] {
		return 0, false
	}
	return c.floats[i], true
}

// Str returns the string at row i. ok is false for nulls and for
// non-string columns.
func (c *Column) Str(i int) (v string, ok bool) {
	if c.kind != KindString || !c.valid[i] {
		return "", false
	}
	return c.strs[i], true
}

// Value returns the cell at row i as int64, float64, or string, or nil
// for nulls.
func (c *Column) Value(i int) any {
	if !c.valid[i] {
		return nil
	}
	switch c.kind {
	case KindInt:
		return c.ints[i]
	case KindFloat:
		return c.floats[i]
	default:
		return c.strs[i]
	}
}

// Table is one batch of decoded rows: an ordered set of equal-length
// columns. Tables are owned by the caller of the decode and are never
// retained or reused by the decoder.
type Table struct {
	cols     []*Column
	index    map[string]int
	rows     int
	warnings []Diagnostic
}

// NewTable assembles columns into a table. All columns must have equal
// length.
func NewTable(cols []*Column) *Table {
	t := &Table{cols: cols, index: make(map[string]int, len(cols))}
	for i, c := range cols {
		t.index[c.name] = i
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			panic(fmt.Sprintf("codebook: column %s has %d rows, want %d", c.name, c.Len(), t.rows))
		}
	}
	return t
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return t.rows }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.cols) }

// Columns returns the table's columns in order.
func (t *Table) Columns() []*Column { return t.cols }

// Column returns the named column, or nil if absent.
func (t *Table) Column(name string) *Column {
	i, ok := t.index[name]
	if !ok {
		return nil
	}
	return t.cols[i]
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.name
	}
	return names
}

// Value returns the cell at (row, column name), or nil when the cell is
// null or the column absent.
func (t *Table) Value(row int, name string) any {
	c := t.Column(name)
	if c == nil {
		return nil
	}
	return c.Value(row)
}

// Row returns row i as a name-to-value map. Null cells map to nil.
func (t *Table) Row(i int) map[string]any {
	row := make(map[string]any, len(t.cols))
	for _, c := range t.cols {
		row[c.name] = c.Value(i)
	}
	return row
}

// Warnings returns the diagnostics accumulated while decoding this batch.
func (t *Table) Warnings() []Diagnostic { return t.warnings }

// AddWarnings appends diagnostics to the table.
func (t *Table) AddWarnings(ds ...Diagnostic) {
	t.warnings = append(t.warnings, ds...)
}
