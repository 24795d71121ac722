package goddi

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/microdatatools/goddi/internal/testutil"
)

func TestBytesSource(t *testing.T) {
	rc, name, err := Bytes("a.dat", []byte("hello")).Open()
	testutil.NoError(t, err, "Open")
	defer rc.Close()
	testutil.Equal(t, "a.dat", name, "name")
	data, err := io.ReadAll(rc)
	testutil.NoError(t, err, "ReadAll")
	testutil.Equal(t, "hello", string(data), "content")
}

func TestReaderSource(t *testing.T) {
	rc, name, err := Reader("a.csv", strings.NewReader("x")).Open()
	testutil.NoError(t, err, "Open")
	defer rc.Close()
	testutil.Equal(t, "a.csv", name, "name")
}

func TestFSSource(t *testing.T) {
	fsys := fstest.MapFS{"sub/a.xml": &fstest.MapFile{Data: []byte("<codeBook/>")}}
	rc, name, err := FS(fsys, "sub/a.xml").Open()
	testutil.NoError(t, err, "Open")
	defer rc.Close()
	testutil.Equal(t, "sub/a.xml", name, "name")
}

func TestFileSourceDirectory(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "codebook.xml"), []byte("<codeBook/>"), 0o644)
	testutil.NoError(t, err, "WriteFile")
	err = os.WriteFile(filepath.Join(dir, "extract.dat"), []byte("x"), 0o644)
	testutil.NoError(t, err, "WriteFile")

	rc, name, err := File(dir).Open()
	testutil.NoError(t, err, "Open")
	defer rc.Close()
	testutil.Contains(t, name, "codebook.xml", "directory resolves to its XML file")
}

func TestFileSourceDirectoryAmbiguous(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.xml", "b.xml"} {
		err := os.WriteFile(filepath.Join(dir, name), []byte("<codeBook/>"), 0o644)
		testutil.NoError(t, err, "WriteFile")
	}
	_, _, err := File(dir).Open()
	testutil.True(t, err != nil, "two XML files should fail")
}

func TestFileSourceMissing(t *testing.T) {
	_, _, err := File(filepath.Join(t.TempDir(), "nope.xml")).Open()
	testutil.True(t, err != nil, "missing file")
}

func TestDecompressedPassthrough(t *testing.T) {
	rc, name, err := decompressed(io.NopCloser(strings.NewReader("plain")), "a.dat")
	testutil.NoError(t, err, "decompressed")
	defer rc.Close()
	testutil.Equal(t, "a.dat", name, "name unchanged")
	data, _ := io.ReadAll(rc)
	testutil.Equal(t, "plain", string(data), "content")
}

func TestDecompressedGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte("2023\n"))
	testutil.NoError(t, err, "write")
	testutil.NoError(t, zw.Close(), "close")

	rc, name, err := decompressed(io.NopCloser(&buf), "a.dat.gz")
	testutil.NoError(t, err, "decompressed")
	defer rc.Close()
	testutil.Equal(t, "a.dat", name, "suffix stripped")
	data, err := io.ReadAll(rc)
	testutil.NoError(t, err, "ReadAll")
	testutil.Equal(t, "2023\n", string(data), "content")
}

func TestDecompressedXz(t *testing.T) {
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	testutil.NoError(t, err, "NewWriter")
	_, err = xw.Write([]byte("2023\n"))
	testutil.NoError(t, err, "write")
	testutil.NoError(t, xw.Close(), "close")

	rc, name, err := decompressed(io.NopCloser(&buf), "a.csv.xz")
	testutil.NoError(t, err, "decompressed")
	defer rc.Close()
	testutil.Equal(t, "a.csv", name, "suffix stripped")
	data, err := io.ReadAll(rc)
	testutil.NoError(t, err, "ReadAll")
	testutil.Equal(t, "2023\n", string(data), "content")
}

func TestDecompressedZstd(t *testing.T) {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	testutil.NoError(t, err, "NewWriter")
	_, err = zw.Write([]byte("2023\n"))
	testutil.NoError(t, err, "write")
	testutil.NoError(t, zw.Close(), "close")

	rc, name, err := decompressed(io.NopCloser(&buf), "a.dat.zst")
	testutil.NoError(t, err, "decompressed")
	defer rc.Close()
	testutil.Equal(t, "a.dat", name, "suffix stripped")
	data, err := io.ReadAll(rc)
	testutil.NoError(t, err, "ReadAll")
	testutil.Equal(t, "2023\n", string(data), "content")
}

func TestReadMicrodataCompressedData(t *testing.T) {
	raw, err := os.ReadFile("testdata/cps_mini.dat")
	testutil.NoError(t, err, "ReadFile")
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err = zw.Write(raw)
	testutil.NoError(t, err, "write")
	testutil.NoError(t, zw.Close(), "close")

	cb := readFixtureCodebook(t, "testdata/cps_mini.xml")
	tbl, err := ReadMicrodata(t.Context(), cb, Bytes("cps_mini.dat.gz", buf.Bytes()))
	testutil.NoError(t, err, "ReadMicrodata on gzipped data")
	testutil.Equal(t, 3, tbl.NumRows(), "rows")
}
