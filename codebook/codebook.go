// Package codebook defines the parsed model of a DDI codebook and the
// typed tables produced by decoding the microdata it describes.
package codebook

import (
	"fmt"
	"strings"
)

// Structure identifies the record layout of an extract data file.
type Structure int

const (
	StructureRectangular Structure = iota // one record type per row
	StructureHierarchical                 // interleaved record types linked by a key
	StructureHouseholdOnly                // household records only
)

// String returns the structure name as it appears in the DDI.
func (s Structure) String() string {
	switch s {
	case StructureRectangular:
		return "rectangular"
	case StructureHierarchical:
		return "hierarchical"
	case StructureHouseholdOnly:
		return "household-only"
	}
	return fmt.Sprintf("Structure(%d)", int(s))
}

// ParseStructure maps a DDI fileStrc type attribute to a Structure.
func ParseStructure(s string) (Structure, error) {
	switch strings.ToLower(s) {
	case "rectangular":
		return StructureRectangular, nil
	case "hierarchical":
		return StructureHierarchical, nil
	case "household-only", "householdonly":
		return StructureHouseholdOnly, nil
	}
	return 0, fmt.Errorf("%w: unknown file structure %q", ErrMalformedCodebook, s)
}

// DeclaredType is the variable type as declared in the DDI varFormat element.
type DeclaredType int

const (
	DeclaredNumeric DeclaredType = iota
	DeclaredCharacter
)

func (t DeclaredType) String() string {
	if t == DeclaredCharacter {
		return "character"
	}
	return "numeric"
}

// ValueLabel pairs a human-readable label with a raw coded value.
// Value is int64 for numeric variables and string otherwise.
type ValueLabel struct {
	Label string
	Value any
}

// VariableDescription describes a single column of the extract data file.
type VariableDescription struct {
	ID   string // canonical identifier, upper case in IPUMS extracts
	Name string

	// RecordTypes lists the record types this variable belongs to.
	// Empty means the variable is common to every record type.
	RecordTypes []string

	// ValueLabels maps labels to coded values, in document order.
	ValueLabels []ValueLabel

	// Start and End delimit the variable's field within a fixed-width
	// row as a 0-based half-open range.
	Start, End int

	Label       string
	Description string
	Concept     string
	Notes       string

	Type DeclaredType

	// DecimalShift is the count of implied decimal places. A raw field
	// of "01234" with shift 2 decodes to 12.34. Zero means none.
	DecimalShift int
}

// Width returns the field width in characters.
func (v *VariableDescription) Width() int { return v.End - v.Start }

// Kind returns the column kind under declared-type resolution: character
// variables are strings, numeric variables are integers unless an implied
// decimal shift forces them to floats.
func (v *VariableDescription) Kind() Kind {
	if v.Type == DeclaredCharacter {
		return KindString
	}
	if v.DecimalShift > 0 {
		return KindFloat
	}
	return KindInt
}

// Common reports whether the variable applies to every record type in rts.
// A variable with no record-type restriction is always common.
func (v *VariableDescription) Common(rts []string) bool {
	if len(v.RecordTypes) == 0 {
		return true
	}
	if len(v.RecordTypes) != len(rts) {
		return false
	}
	set := make(map[string]bool, len(rts))
	for _, rt := range rts {
		set[rt] = true
	}
	for _, rt := range v.RecordTypes {
		if !set[rt] {
			return false
		}
	}
	return true
}

// FileDescription describes the physical layout of the extract data file.
type FileDescription struct {
	Filename    string
	Description string
	Structure   Structure

	// RecordTypes lists the record types present in a hierarchical
	// extract, in declaration order. Empty for rectangular extracts.
	RecordTypes []string

	// RecordTypeVar names the variable holding each row's record type.
	// Empty for rectangular extracts.
	RecordTypeVar string

	// RecordTypeKeyVar names the variable linking related records
	// across record types, e.g. a household serial number.
	RecordTypeKeyVar string

	// Encoding is the character encoding of the data file,
	// lower-cased. IPUMS extracts default to iso-8859-1.
	Encoding string

	// Format is the free-text format description from the DDI,
	// e.g. "fixed length fields".
	Format string

	Place string
}

// Codebook is a parsed DDI codebook. It is immutable after construction
// and safe for use by any number of concurrent decode calls.
type Codebook struct {
	FileDescription FileDescription

	// Variables holds one description per column, in the column order
	// of the data file.
	Variables []VariableDescription

	SampleDescriptions []string
	Citation           string
	Conditions         string
	Collection         string
	DOI                string
}

// VariableInfo retrieves the description of a variable by id.
// The lookup is case-insensitive.
func (c *Codebook) VariableInfo(name string) (*VariableDescription, error) {
	id := strings.ToUpper(name)
	for i := range c.Variables {
		if strings.ToUpper(c.Variables[i].ID) == id {
			return &c.Variables[i], nil
		}
	}
	return nil, fmt.Errorf("no description found for %s", name)
}

// ColumnKinds returns the declared-type column kind for every variable,
// keyed by variable name.
func (c *Codebook) ColumnKinds() map[string]Kind {
	kinds := make(map[string]Kind, len(c.Variables))
	for i := range c.Variables {
		kinds[c.Variables[i].Name] = c.Variables[i].Kind()
	}
	return kinds
}
