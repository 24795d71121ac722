package codebook

import (
	"fmt"
	"sort"
)

// TabulationRow is one line of a single-variable frequency table.
type TabulationRow struct {
	Value any    // decoded value, nil for nulls
	Label string // value label when the codebook declares one
	Count int
	Pct   float64 // share of all rows, in [0, 1]
}

// Tabulate builds a frequency table for one variable over a decoded
// table, ordered by value. Value labels from the codebook are attached
// when present.
func Tabulate(vd *VariableDescription, t *Table) ([]TabulationRow, error) {
	col := t.Column(vd.Name)
	if col == nil {
		return nil, fmt.Errorf("variable %s is not present in the table", vd.Name)
	}

	counts := make(map[any]int)
	for i := 0; i < col.Len(); i++ {
		counts[col.Value(i)]++
	}

	labels := make(map[any]string, len(vd.ValueLabels))
	for _, vl := range vd.ValueLabels {
		labels[vl.Value] = vl.Label
	}

	rows := make([]TabulationRow, 0, len(counts))
	total := col.Len()
	for v, n := range counts {
		rows = append(rows, TabulationRow{
			Value: v,
			Label: labels[v],
			Count: n,
			Pct:   float64(n) / float64(total),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		return lessValue(rows[i].Value, rows[j].Value)
	})
	return rows, nil
}

// lessValue orders tabulation values: nulls first, then numerically or
// lexically within a kind.
func lessValue(a, b any) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	switch av := a.(type) {
	case int64:
		if bv, ok := b.(int64); ok {
			return av < bv
		}
	case float64:
		if bv, ok := b.(float64); ok {
			return av < bv
		}
	case string:
		if bv, ok := b.(string); ok {
			return av < bv
		}
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}
