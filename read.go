package goddi

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/microdatatools/goddi/codebook"
	"github.com/microdatatools/goddi/internal/decode"
)

// ReadMicrodata decodes a rectangular extract in one batch.
//
// The data source may be nil, in which case the file the codebook names
// is read relative to the current working directory. Hierarchical
// extracts must use ReadHierarchicalMicrodata or ReadUnifiedMicrodata.
func ReadMicrodata(ctx context.Context, cb *Codebook, src Source, opts ...Option) (*Table, error) {
	if cb.FileDescription.Structure == codebook.StructureHierarchical {
		return nil, fmt.Errorf("%w: structure must be rectangular; use ReadHierarchicalMicrodata for hierarchical extracts",
			codebook.ErrConfiguration)
	}
	cfg := newConfig(opts)
	d, rc, err := openData(cb, src, cfg)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return d.ReadAll(ctx, rc)
}

// ReadHierarchicalMicrodata decodes a hierarchical extract into one
// table per record type. Each table holds the columns common to all
// record types plus the columns that record type owns; record types
// with no rows in the file yield empty tables.
func ReadHierarchicalMicrodata(ctx context.Context, cb *Codebook, src Source, opts ...Option) (map[string]*Table, error) {
	cfg := newConfig(opts)
	d, rc, err := openData(cb, src, cfg)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return d.ReadPartitioned(ctx, rc)
}

// ReadUnifiedMicrodata decodes a hierarchical extract into a single
// table. Cells of columns a row's record type does not own are null;
// every column keeps one consistent type across the whole table.
func ReadUnifiedMicrodata(ctx context.Context, cb *Codebook, src Source, opts ...Option) (*Table, error) {
	cfg := newConfig(opts)
	d, rc, err := openData(cb, src, cfg)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return d.ReadUnified(ctx, rc)
}

// ReadMicrodataChunked decodes an extract lazily, yielding one table
// per chunk of WithChunkSize rows (the last chunk may be shorter).
// Concatenating the chunks reproduces the single-shot decode row for
// row, whatever the chunk size. A fatal error is yielded in place of
// the chunk it belongs to; earlier chunks are unaffected. For
// hierarchical extracts each chunk carries unified-mode nulls, so rows
// can be filtered by record type as they stream.
func ReadMicrodataChunked(ctx context.Context, cb *Codebook, src Source, opts ...Option) iter.Seq2[*Table, error] {
	cfg := newConfig(opts)
	return func(yield func(*Table, error) bool) {
		d, rc, err := openData(cb, src, cfg)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rc.Close()
		for t, err := range d.Chunks(ctx, rc) {
			if !yield(t, err) {
				return
			}
		}
	}
}

// openData opens the data stream, unwraps compression, and builds the
// decoder for the detected (or forced) physical format.
func openData(cb *Codebook, src Source, cfg config) (*decode.Decoder, io.ReadCloser, error) {
	if src == nil {
		src = File(cb.FileDescription.Filename)
	}
	rc, name, err := src.Open()
	if err != nil {
		return nil, nil, err
	}
	rc, name, err = decompressed(rc, name)
	if err != nil {
		return nil, nil, err
	}

	format := cfg.format
	if !cfg.formatSet {
		format, err = codebook.DetectFormat(name)
		if err != nil {
			rc.Close()
			return nil, nil, err
		}
	}

	d, err := newDecoder(cb, format, cfg)
	if err != nil {
		rc.Close()
		return nil, nil, err
	}
	if logEnabled(cfg.logger, slog.LevelDebug) {
		cfg.logger.LogAttrs(context.Background(), slog.LevelDebug, "data source opened",
			slog.String("source", name),
			slog.String("format", format.String()))
	}
	return d, rc, nil
}
