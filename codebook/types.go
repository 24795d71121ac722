package codebook

import (
	"fmt"
	"path"
	"strings"
)

// Kind identifies the resolved Go type of a decoded column.
type Kind int

const (
	KindInt    Kind = iota // nullable int64
	KindFloat              // nullable float64
	KindString             // nullable string
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Format identifies the physical encoding of a data file.
type Format int

const (
	FormatFixedWidth Format = iota // .dat, offset-addressed text lines
	FormatDelimited                // .csv with a header row
	FormatColumnar                 // .parquet
)

func (f Format) String() string {
	switch f {
	case FormatFixedWidth:
		return "fixed-width"
	case FormatDelimited:
		return "delimited"
	case FormatColumnar:
		return "columnar"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// compressExts are stripped before format detection.
var compressExts = map[string]bool{".gz": true, ".xz": true, ".zst": true}

// DetectFormat determines the physical format from a data file name,
// ignoring any trailing compression suffix.
func DetectFormat(name string) (Format, error) {
	ext := strings.ToLower(path.Ext(name))
	if compressExts[ext] {
		ext = strings.ToLower(path.Ext(strings.TrimSuffix(name, ext)))
	}
	switch ext {
	case ".dat":
		return FormatFixedWidth, nil
	case ".csv":
		return FormatDelimited, nil
	case ".parquet":
		return FormatColumnar, nil
	}
	return 0, fmt.Errorf("%w: cannot determine data format from %q (expected .dat, .csv, or .parquet)", ErrConfiguration, name)
}
