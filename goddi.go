// Package goddi reads IPUMS-style DDI codebooks and decodes the
// microdata extracts they describe into typed, column-oriented tables.
package goddi

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/microdatatools/goddi/codebook"
	"github.com/microdatatools/goddi/internal/ddixml"
	"github.com/microdatatools/goddi/internal/decode"
)

// Option configures codebook and microdata reads.
type Option func(*config)

type config struct {
	logger        *slog.Logger
	subset        []string
	chunkSize     int
	rowErrors     codebook.RowErrorPolicy
	encoding      string
	declaredTypes bool
	format        codebook.Format
	formatSet     bool
}

// WithLogger sets the logger for debug output.
// If not set, no logging occurs.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithSubset restricts a microdata read to the named variables. For
// hierarchical extracts the record-type variable must be included.
func WithSubset(names ...string) Option {
	return func(c *config) { c.subset = names }
}

// WithChunkSize bounds the rows per batch for chunked reads.
func WithChunkSize(n int) Option {
	return func(c *config) { c.chunkSize = n }
}

// WithRowErrorPolicy selects how malformed rows are handled. The
// default fails the decode on the first malformed row.
func WithRowErrorPolicy(p codebook.RowErrorPolicy) Option {
	return func(c *config) { c.rowErrors = p }
}

// WithEncoding overrides the character encoding the codebook declares.
func WithEncoding(name string) Option {
	return func(c *config) { c.encoding = name }
}

// WithDeclaredTypes disables the data-inspection pass and trusts the
// declared variable types as-is.
func WithDeclaredTypes() Option {
	return func(c *config) { c.declaredTypes = true }
}

// WithFormat forces the physical data format instead of detecting it
// from the data file name.
func WithFormat(f codebook.Format) Option {
	return func(c *config) { c.format = f; c.formatSet = true }
}

func newConfig(opts []Option) config {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func componentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(slog.String("component", component))
}

// logEnabled returns true if logging is enabled at the given level.
func logEnabled(logger *slog.Logger, level slog.Level) bool {
	return logger != nil && logger.Enabled(context.Background(), level)
}

// ReadCodebook parses a DDI codebook. The source may be a bare .xml
// file, an .xml.gz file, a directory containing exactly one XML file,
// or a ZIP archive containing exactly one XML file.
func ReadCodebook(src Source, opts ...Option) (*Codebook, error) {
	cfg := newConfig(opts)

	rc, name, err := src.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	r, err := codebookStream(rc, name)
	if err != nil {
		return nil, err
	}

	cb, err := ddixml.Parse(r)
	if err != nil {
		return nil, err
	}
	if logEnabled(cfg.logger, slog.LevelDebug) {
		cfg.logger.LogAttrs(context.Background(), slog.LevelDebug, "codebook parsed",
			slog.String("source", name),
			slog.Int("variables", len(cb.Variables)),
			slog.String("structure", cb.FileDescription.Structure.String()))
	}
	return cb, nil
}

// codebookStream unwraps archive and compression containers around a
// codebook document.
func codebookStream(rc io.ReadCloser, name string) (io.Reader, error) {
	switch {
	case strings.HasSuffix(name, ".zip"):
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, err
		}
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, err
		}
		var found *zip.File
		for _, f := range zr.File {
			if strings.HasSuffix(f.Name, ".xml") {
				if found != nil {
					return nil, fmt.Errorf("%s contains more than one XML file", name)
				}
				found = f
			}
		}
		if found == nil {
			return nil, fmt.Errorf("%s contains no XML files", name)
		}
		inner, err := found.Open()
		if err != nil {
			return nil, err
		}
		content, err := io.ReadAll(inner)
		inner.Close()
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(content), nil

	case strings.HasSuffix(name, ".gz"):
		if !strings.HasSuffix(name, ".xml.gz") {
			return nil, fmt.Errorf("%s ends with .gz but not .xml.gz", name)
		}
		return gzip.NewReader(rc)

	default:
		return rc, nil
	}
}

// newDecoder builds the decode pipeline shared by the microdata read
// entry points.
func newDecoder(cb *Codebook, format codebook.Format, cfg config) (*decode.Decoder, error) {
	return decode.New(cb, format, decode.Options{
		Subset:        cfg.subset,
		ChunkSize:     cfg.chunkSize,
		RowErrors:     cfg.rowErrors,
		Encoding:      cfg.encoding,
		DeclaredTypes: cfg.declaredTypes,
		Logger:        componentLogger(cfg.logger, "decode"),
	})
}
