package decode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/microdatatools/goddi/codebook"
)

// hierarchy carries record-type ownership for a hierarchical decode:
// which record types exist, which planned column holds the discriminator,
// and which record types own each non-common column.
type hierarchy struct {
	recordTypes []string
	rtName      string
	rtIndex     int

	// owners[i] is nil for common columns; otherwise the set of record
	// types whose rows own column i. An empty non-nil set means the
	// column's tags drifted from the declared record types and it is
	// owned by no row.
	owners []map[string]bool

	warnings []codebook.Diagnostic
}

func buildHierarchy(cb *codebook.Codebook, vars []codebook.VariableDescription) (*hierarchy, error) {
	h := &hierarchy{rtName: cb.FileDescription.RecordTypeVar, rtIndex: -1}

	for i := range vars {
		if vars[i].Name == h.rtName {
			h.rtIndex = i
		}
	}
	if h.rtIndex < 0 {
		return nil, fmt.Errorf("%w: record-type variable %s is not among the decoded columns",
			codebook.ErrConfiguration, h.rtName)
	}

	// Some collections ship DDIs whose file-level record-type list has
	// drifted from the tags on the discriminator variable itself. The
	// discriminator's own tags win, since they describe the data.
	declared := cb.FileDescription.RecordTypes
	if rtVD, err := cb.VariableInfo(h.rtName); err == nil && len(rtVD.RecordTypes) > 0 {
		if !sameSet(rtVD.RecordTypes, declared) && len(declared) > 0 {
			h.warnings = append(h.warnings, codebook.Diagnostic{
				Severity: codebook.SeverityWarning,
				Code:     codebook.DiagSchemaDrift,
				Message: fmt.Sprintf("file-level record types %v disagree with %s tags %v; using the %s tags",
					declared, h.rtName, rtVD.RecordTypes, h.rtName),
				Variable: h.rtName,
				Row:      -1,
			})
		}
		h.recordTypes = rtVD.RecordTypes
	} else {
		h.recordTypes = declared
	}
	if len(h.recordTypes) == 0 {
		return nil, fmt.Errorf("%w: hierarchical extract declares no record types", codebook.ErrMalformedCodebook)
	}

	h.owners = make([]map[string]bool, len(vars))
	for i := range vars {
		vd := &vars[i]
		if vd.Common(h.recordTypes) {
			continue
		}
		known, unknown := lo.FilterReject(vd.RecordTypes, func(rt string, _ int) bool {
			return lo.Contains(h.recordTypes, rt)
		})
		for _, rt := range unknown {
			h.warnings = append(h.warnings, codebook.Diagnostic{
				Severity: codebook.SeverityWarning,
				Code:     codebook.DiagSchemaDrift,
				Message:  fmt.Sprintf("record type %q is not declared by the file", rt),
				Variable: vd.Name,
				Row:      -1,
			})
		}
		h.owners[i] = make(map[string]bool, len(known))
		for _, rt := range known {
			h.owners[i][rt] = true
		}
		if len(known) == 0 {
			h.warnings = append(h.warnings, codebook.Diagnostic{
				Severity: codebook.SeverityWarning,
				Code:     codebook.DiagSchemaDrift,
				Message:  "variable belongs to no declared record type; it decodes as null everywhere",
				Variable: vd.Name,
				Row:      -1,
			})
		}
	}
	return h, nil
}

func sameSet(a, b []string) bool {
	return len(a) == len(b) && lo.Every(a, b) && lo.Every(b, a)
}

// nullify blanks the raw cells of columns the row's record type does
// not own, so every column keeps one consistent type across the table.
func (h *hierarchy) nullify(vals []string) {
	rt := strings.TrimSpace(vals[h.rtIndex])
	for i, owners := range h.owners {
		if owners != nil && !owners[rt] {
			vals[i] = ""
		}
	}
}

// partition accumulates the rows of one record type, restricted to the
// columns that record type owns plus the common columns.
type partition struct {
	rt   string
	keep []int // column indexes retained from the source schema
	cols []*codebook.Column
}

func newPartition(rt string, h *hierarchy, schema *codebook.Table) *partition {
	p := &partition{rt: rt}
	for i, col := range schema.Columns() {
		if h.owners[i] != nil && !h.owners[i][rt] {
			continue
		}
		p.keep = append(p.keep, i)
		p.cols = append(p.cols, codebook.NewColumn(col.Name(), col.Kind()))
	}
	return p
}

func (p *partition) appendRow(t *codebook.Table, row int) {
	src := t.Columns()
	for j, i := range p.keep {
		copyCell(p.cols[j], src[i], row)
	}
}

func (p *partition) table() *codebook.Table {
	return codebook.NewTable(p.cols)
}

// split routes each row of a decoded batch to its record type's
// partition. Rows with an undeclared record type have no partition and
// are dropped.
func (h *hierarchy) split(t *codebook.Table, parts map[string]*partition) {
	rtCol := t.Column(h.rtName)
	for r := 0; r < t.NumRows(); r++ {
		if p, ok := parts[cellString(rtCol, r)]; ok {
			p.appendRow(t, r)
		}
	}
}

// cellString renders a cell as a record-type token.
func cellString(col *codebook.Column, i int) string {
	switch col.Kind() {
	case codebook.KindString:
		v, _ := col.Str(i)
		return v
	case codebook.KindInt:
		if v, ok := col.Int(i); ok {
			return strconv.FormatInt(v, 10)
		}
	case codebook.KindFloat:
		if v, ok := col.Float(i); ok {
			return strconv.FormatFloat(v, 'g', -1, 64)
		}
	}
	return ""
}
