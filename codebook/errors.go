package codebook

import (
	"errors"
	"fmt"
)

// ErrMalformedCodebook indicates a structural problem in the codebook
// document. It is fatal; no partial Codebook is produced.
var ErrMalformedCodebook = errors.New("malformed codebook")

// ErrConfiguration indicates a decode request that is inconsistent with
// the codebook, e.g. a column subset for a hierarchical extract that
// omits the record-type variable.
var ErrConfiguration = errors.New("invalid decode configuration")

// RowDecodeError reports a row whose bytes do not match the layout the
// codebook declares. Row is 0-based over the whole file, independent of
// chunk boundaries.
type RowDecodeError struct {
	Row    int
	Column string // variable name, empty when the whole row is bad
	Reason string
}

func (e *RowDecodeError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d, column %s: %s", e.Row, e.Column, e.Reason)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// RowErrorPolicy selects how malformed rows are handled.
type RowErrorPolicy int

const (
	// RowErrorFail aborts the decode on the first malformed row.
	RowErrorFail RowErrorPolicy = iota
	// RowErrorSkip drops malformed rows and records a row-skipped
	// warning on the batch.
	RowErrorSkip
)
