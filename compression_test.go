package qcsv

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectCompressionType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want CompressionType
	}{
		{path: "data.csv", want: CompressionNone},
		{path: "data.csv.gz", want: CompressionGZ},
		{path: "DATA.CSV.GZ", want: CompressionGZ},
		{path: "data.tsv.bz2", want: CompressionBZ2},
		{path: "data.ltsv.xz", want: CompressionXZ},
		{path: "data.csv.zst", want: CompressionZSTD},
		{path: "data.gzip", want: CompressionNone},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, DetectCompressionType(tt.path))
		})
	}
}

func TestCompressionType_StringAndExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		c    CompressionType
		name string
		ext  string
	}{
		{c: CompressionNone, name: "none", ext: ""},
		{c: CompressionGZ, name: "gzip", ext: ".gz"},
		{c: CompressionBZ2, name: "bzip2", ext: ".bz2"},
		{c: CompressionXZ, name: "xz", ext: ".xz"},
		{c: CompressionZSTD, name: "zstd", ext: ".zst"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.name, tt.c.String())
			assert.Equal(t, tt.ext, tt.c.Extension())
		})
	}
}

func TestRemoveCompressionExtension(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a/b.csv", RemoveCompressionExtension("a/b.csv.gz"))
	assert.Equal(t, "b.csv", RemoveCompressionExtension("b.csv"))
	assert.Equal(t, "b.TSV", RemoveCompressionExtension("b.TSV.ZST"))
}

func TestCreateWriterOpenReader_RoundTrip(t *testing.T) {
	t.Parallel()

	content := generateCSV(50)
	for _, name := range []string{"plain.csv", "data.csv.gz", "data.csv.xz", "data.csv.zst"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), name)
			writeCompressedFile(t, path, content)

			if DetectCompressionType(name) != CompressionNone {
				raw, err := os.ReadFile(path) //nolint:gosec // test file in a temp dir
				require.NoError(t, err)
				assert.NotEqual(t, []byte(content), raw)
			}

			r, cleanup, err := OpenReader(path)
			require.NoError(t, err)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			require.NoError(t, cleanup())
			assert.Equal(t, content, string(got))
		})
	}
}

func TestOpenReader_Bzip2(t *testing.T) {
	t.Parallel()

	want, err := os.ReadFile(playersCSV)
	require.NoError(t, err)

	r, cleanup, err := OpenReader("testdata/players.csv.bz2")
	require.NoError(t, err)
	defer func() { assert.NoError(t, cleanup()) }()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(want, got))
}

func TestOpenReader_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, _, err := OpenReader(filepath.Join(dir, "missing.csv"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("corrupt gzip", func(t *testing.T) {
		t.Parallel()
		path := writeTestFile(t, dir, "corrupt.csv.gz", "not gzip at all")
		_, _, err := OpenReader(path)
		assert.ErrorContains(t, err, "gzip")
	})
}

func TestCreateWriter_Bzip2Unsupported(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv.bz2")
	_, _, err := CreateWriter(path)
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, statErr := os.Stat(path)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}
