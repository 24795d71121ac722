package goddi

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Source supplies one named byte stream, either a codebook document or a data
// file. The name drives format and compression detection.
type Source interface {
	// Open returns the stream and a name for diagnostics. The caller
	// owns the stream and must close it.
	Open() (io.ReadCloser, string, error)
}

// --- File source ---

type fileSource struct {
	path string
}

// File creates a Source for a path. A directory is searched for exactly
// one XML file. A missing path is retried with a .gz suffix toggled on
// or off, matching how extracts are commonly stored.
func File(path string) Source {
	return &fileSource{path: path}
}

func (s *fileSource) Open() (io.ReadCloser, string, error) {
	path := s.path

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		path, err = toggleGz(path)
		if err != nil {
			return nil, "", err
		}
		info, err = os.Stat(path)
	}
	if err != nil {
		return nil, "", err
	}

	if info.IsDir() {
		found, err := uniqueXML(path)
		if err != nil {
			return nil, "", err
		}
		path = found
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	return f, path, nil
}

// toggleGz maps a missing path to its compressed or uncompressed twin.
func toggleGz(path string) (string, error) {
	var try string
	if strings.HasSuffix(path, ".gz") {
		try = strings.TrimSuffix(path, ".gz")
	} else {
		try = path + ".gz"
	}
	if _, err := os.Stat(try); err != nil {
		return "", fmt.Errorf("file %s does not exist", path)
	}
	return try, nil
}

func uniqueXML(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var found string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".xml") {
			continue
		}
		if found != "" {
			return "", fmt.Errorf("%s contains more than one XML file", dir)
		}
		found = filepath.Join(dir, e.Name())
	}
	if found == "" {
		return "", fmt.Errorf("%s contains no XML files", dir)
	}
	return found, nil
}

// --- Reader source ---

type readerSource struct {
	name string
	r    io.Reader
}

// Reader creates a single-use Source from an open stream. The name is
// used for format detection and diagnostics.
func Reader(name string, r io.Reader) Source {
	return &readerSource{name: name, r: r}
}

func (s *readerSource) Open() (io.ReadCloser, string, error) {
	if rc, ok := s.r.(io.ReadCloser); ok {
		return rc, s.name, nil
	}
	return io.NopCloser(s.r), s.name, nil
}

// --- Bytes source ---

type bytesSource struct {
	name string
	data []byte
}

// Bytes creates a Source over an in-memory document.
func Bytes(name string, data []byte) Source {
	return &bytesSource{name: name, data: data}
}

func (s *bytesSource) Open() (io.ReadCloser, string, error) {
	return io.NopCloser(bytes.NewReader(s.data)), s.name, nil
}

// --- FS source (for embed.FS, testing) ---

type fsSource struct {
	fsys fs.FS
	path string
}

// FS creates a Source backed by an fs.FS (e.g., embed.FS).
func FS(fsys fs.FS, path string) Source {
	return &fsSource{fsys: fsys, path: path}
}

func (s *fsSource) Open() (io.ReadCloser, string, error) {
	f, err := s.fsys.Open(s.path)
	if err != nil {
		return nil, s.path, err
	}
	return f, s.path, nil
}

// --- Decompression ---

// decompressed wraps rc with the decompressor its name suffix calls
// for, returning the wrapped stream and the name with the suffix
// stripped. Unsuffixed streams pass through.
func decompressed(rc io.ReadCloser, name string) (io.ReadCloser, string, error) {
	switch {
	case strings.HasSuffix(name, ".gz"):
		zr, err := gzip.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, name, fmt.Errorf("opening gzip stream %s: %w", name, err)
		}
		return &wrappedCloser{Reader: zr, closers: []io.Closer{zr, rc}}, strings.TrimSuffix(name, ".gz"), nil

	case strings.HasSuffix(name, ".xz"):
		xr, err := xz.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, name, fmt.Errorf("opening xz stream %s: %w", name, err)
		}
		return &wrappedCloser{Reader: xr, closers: []io.Closer{rc}}, strings.TrimSuffix(name, ".xz"), nil

	case strings.HasSuffix(name, ".zst"):
		zr, err := zstd.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, name, fmt.Errorf("opening zstd stream %s: %w", name, err)
		}
		return &wrappedCloser{Reader: zr.IOReadCloser(), closers: []io.Closer{rc}}, strings.TrimSuffix(name, ".zst"), nil

	default:
		return rc, name, nil
	}
}

type wrappedCloser struct {
	io.Reader
	closers []io.Closer
}

func (w *wrappedCloser) Close() error {
	var first error
	for _, c := range w.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
