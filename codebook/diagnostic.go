package codebook

import (
	"fmt"
	"strings"
)

// Diagnostic codes emitted during decoding. Centralizing these prevents
// silent breakage from typos in string literals.
const (
	// DiagTypeResolution: a declared-numeric column held values that
	// fit no numeric type; the column fell back to strings.
	DiagTypeResolution = "type-resolution"

	// DiagSchemaDrift: a variable's record-type tags disagree with the
	// record types the file declares.
	DiagSchemaDrift = "schema-drift"

	// DiagRowSkipped: a malformed row was dropped under RowErrorSkip.
	DiagRowSkipped = "row-skipped"
)

// Severity of a diagnostic.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Diagnostic represents a non-fatal issue found while decoding.
// Diagnostics accumulate on the output table rather than interrupting
// the decode.
type Diagnostic struct {
	Severity Severity
	Code     string // e.g. "type-resolution", "schema-drift"
	Message  string
	Variable string // variable name, empty if not applicable
	Row      int    // 0-based row, -1 if not applicable
}

// String returns "[severity] code variable:row: message" with location
// parts omitted when absent.
func (d Diagnostic) String() string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(d.Severity.String())
	b.WriteString("] ")
	b.WriteString(d.Code)
	if d.Variable != "" {
		b.WriteByte(' ')
		b.WriteString(d.Variable)
		if d.Row >= 0 {
			fmt.Fprintf(&b, ":%d", d.Row)
		}
	} else if d.Row >= 0 {
		fmt.Fprintf(&b, " row %d", d.Row)
	}
	b.WriteString(": ")
	b.WriteString(d.Message)
	return b.String()
}
