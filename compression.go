package qcsv

import (
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// CompressionType is the compression of a file, taken from its extension.
type CompressionType int

const (
	// CompressionNone is an uncompressed file
	CompressionNone CompressionType = iota
	// CompressionGZ is a .gz file
	CompressionGZ
	// CompressionBZ2 is a .bz2 file, readable only
	CompressionBZ2
	// CompressionXZ is a .xz file
	CompressionXZ
	// CompressionZSTD is a .zst file
	CompressionZSTD
)

// nopClose is the cleanup of codecs without resources
func nopClose() error { return nil }

// codec opens and creates the streams of one compression type.
// A nil create means the type cannot be written.
type codec struct {
	name   string
	ext    string
	open   func(r io.Reader) (io.Reader, func() error, error)
	create func(w io.Writer) (io.WriteCloser, error)
}

var codecs = map[CompressionType]codec{
	CompressionNone: {
		name: "none",
		open: func(r io.Reader) (io.Reader, func() error, error) { return r, nopClose, nil },
	},
	CompressionGZ: {
		name: "gzip",
		ext:  extGZ,
		open: func(r io.Reader) (io.Reader, func() error, error) {
			zr, err := gzip.NewReader(r)
			if err != nil {
				return nil, nil, err
			}
			return zr, zr.Close, nil
		},
		create: func(w io.Writer) (io.WriteCloser, error) { return gzip.NewWriter(w), nil },
	},
	CompressionBZ2: {
		name: "bzip2",
		ext:  extBZ2,
		open: func(r io.Reader) (io.Reader, func() error, error) { return bzip2.NewReader(r), nopClose, nil },
	},
	CompressionXZ: {
		name: "xz",
		ext:  extXZ,
		open: func(r io.Reader) (io.Reader, func() error, error) {
			zr, err := xz.NewReader(r)
			if err != nil {
				return nil, nil, err
			}
			return zr, nopClose, nil
		},
		create: func(w io.Writer) (io.WriteCloser, error) { return xz.NewWriter(w) },
	},
	CompressionZSTD: {
		name: "zstd",
		ext:  extZSTD,
		open: func(r io.Reader) (io.Reader, func() error, error) {
			dec, err := zstd.NewReader(r)
			if err != nil {
				return nil, nil, err
			}
			return dec, func() error { dec.Close(); return nil }, nil
		},
		create: func(w io.Writer) (io.WriteCloser, error) { return zstd.NewWriter(w) },
	},
}

// String returns the codec name, such as "gzip".
func (c CompressionType) String() string {
	if cd, ok := codecs[c]; ok {
		return cd.name
	}
	return fmt.Sprintf("compression(%d)", int(c))
}

// Extension returns the file extension including the dot, or "" for CompressionNone.
func (c CompressionType) Extension() string {
	return codecs[c].ext
}

// DetectCompressionType returns the compression named by the extension of path.
// Matching ignores case.
func DetectCompressionType(path string) CompressionType {
	lower := strings.ToLower(path)
	for _, c := range []CompressionType{CompressionGZ, CompressionBZ2, CompressionXZ, CompressionZSTD} {
		if strings.HasSuffix(lower, codecs[c].ext) {
			return c
		}
	}
	return CompressionNone
}

// RemoveCompressionExtension strips a trailing compression extension from path.
func RemoveCompressionExtension(path string) string {
	return path[:len(path)-len(DetectCompressionType(path).Extension())]
}

// OpenReader opens path and decompresses it according to its extension.
// The returned cleanup closes the decompressor and the file and must always be called.
func OpenReader(path string) (io.Reader, func() error, error) {
	c := DetectCompressionType(path)

	file, err := os.Open(path) //nolint:gosec // User-provided path is necessary for file operations
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}

	r, closeCodec, err := codecs[c].open(file)
	if err != nil {
		_ = file.Close()
		return nil, nil, fmt.Errorf("failed to create %s reader: %w", c, err)
	}

	return r, func() error {
		err := closeCodec()
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
		return err
	}, nil
}

// CreateWriter creates path and compresses what is written according to its
// extension. The returned cleanup flushes the compressor and syncs and closes
// the file. Its error must be checked. Nothing is created for a type that
// cannot be written.
func CreateWriter(path string) (io.Writer, func() error, error) {
	c := DetectCompressionType(path)
	cd := codecs[c]
	if c != CompressionNone && cd.create == nil {
		return nil, nil, fmt.Errorf("%w: %s compression is not supported for writing", ErrUnsupportedFormat, c)
	}

	file, err := os.Create(path) //nolint:gosec // User-provided path is necessary for file operations
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create file: %w", err)
	}

	finish := func(closeCodec func() error) func() error {
		return func() error {
			err := closeCodec()
			if syncErr := file.Sync(); err == nil {
				err = syncErr
			}
			if closeErr := file.Close(); err == nil {
				err = closeErr
			}
			return err
		}
	}

	if c == CompressionNone {
		return file, finish(nopClose), nil
	}
	w, err := cd.create(file)
	if err != nil {
		_ = file.Close()
		return nil, nil, fmt.Errorf("failed to create %s writer: %w", c, err)
	}
	return w, finish(w.Close), nil
}
