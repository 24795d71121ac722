package goddi

import "github.com/microdatatools/goddi/codebook"

// Type aliases for the public API - the model lives in the codebook
// subpackage.

// Codebook is a parsed DDI codebook.
type Codebook = codebook.Codebook

// FileDescription describes the physical layout of the extract data file.
type FileDescription = codebook.FileDescription

// VariableDescription describes a single column of the extract data file.
type VariableDescription = codebook.VariableDescription

// ValueLabel pairs a human-readable label with a raw coded value.
type ValueLabel = codebook.ValueLabel

// Table is one batch of decoded rows.
type Table = codebook.Table

// Column is a typed, nullable column of decoded values.
type Column = codebook.Column

// Kind identifies the resolved Go type of a decoded column.
type Kind = codebook.Kind

// Format identifies the physical encoding of a data file.
type Format = codebook.Format

// Structure identifies the record layout of an extract data file.
type Structure = codebook.Structure

// DeclaredType is the variable type as declared in the DDI.
type DeclaredType = codebook.DeclaredType

// Diagnostic represents a non-fatal issue found while decoding.
type Diagnostic = codebook.Diagnostic

// Severity of a diagnostic.
type Severity = codebook.Severity

// RowErrorPolicy selects how malformed rows are handled.
type RowErrorPolicy = codebook.RowErrorPolicy

// RowDecodeError reports a row whose bytes do not match the declared layout.
type RowDecodeError = codebook.RowDecodeError

// TabulationRow is one line of a single-variable frequency table.
type TabulationRow = codebook.TabulationRow

// Column kind constants.
const (
	KindInt    = codebook.KindInt
	KindFloat  = codebook.KindFloat
	KindString = codebook.KindString
)

// Physical format constants.
const (
	FormatFixedWidth = codebook.FormatFixedWidth
	FormatDelimited  = codebook.FormatDelimited
	FormatColumnar   = codebook.FormatColumnar
)

// Structure constants.
const (
	StructureRectangular   = codebook.StructureRectangular
	StructureHierarchical  = codebook.StructureHierarchical
	StructureHouseholdOnly = codebook.StructureHouseholdOnly
)

// Declared type constants.
const (
	DeclaredNumeric   = codebook.DeclaredNumeric
	DeclaredCharacter = codebook.DeclaredCharacter
)

// Malformed-row policy constants.
const (
	RowErrorFail = codebook.RowErrorFail
	RowErrorSkip = codebook.RowErrorSkip
)

// Diagnostic codes.
const (
	DiagTypeResolution = codebook.DiagTypeResolution
	DiagSchemaDrift    = codebook.DiagSchemaDrift
	DiagRowSkipped     = codebook.DiagRowSkipped
)

// Sentinel errors.
var (
	ErrMalformedCodebook = codebook.ErrMalformedCodebook
	ErrConfiguration     = codebook.ErrConfiguration
)

// Tabulate builds a frequency table for one variable over a decoded table.
func Tabulate(vd *VariableDescription, t *Table) ([]TabulationRow, error) {
	return codebook.Tabulate(vd, t)
}

// DetectFormat determines the physical format from a data file name.
func DetectFormat(name string) (Format, error) {
	return codebook.DetectFormat(name)
}
