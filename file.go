package qcsv

import (
	"path/filepath"
	"strings"

	"github.com/nao1215/qcsv/domain/model"
)

// FileFormat is the base format of an input file, ignoring compression.
type FileFormat int

const (
	// FormatDelimited is CSV, TSV or any other delimiter separated text
	FormatDelimited FileFormat = iota
	// FormatLTSV is labeled tab-separated values
	FormatLTSV
	// FormatParquet is Apache Parquet
	FormatParquet
	// FormatXLSX is an Excel workbook
	FormatXLSX
	// FormatUnsupported is anything else
	FormatUnsupported
)

// String returns the format name.
func (f FileFormat) String() string {
	switch f {
	case FormatDelimited:
		return "delimited"
	case FormatLTSV:
		return "ltsv"
	case FormatParquet:
		return "parquet"
	case FormatXLSX:
		return "xlsx"
	default:
		return "unsupported"
	}
}

// File extensions
const (
	// extCSV is the CSV file extension
	extCSV = ".csv"
	// extTSV is the TSV file extension
	extTSV = ".tsv"
	// extTXT is treated as delimited text with a sniffed delimiter
	extTXT = ".txt"
	// extLTSV is the LTSV file extension
	extLTSV = ".ltsv"
	// extParquet is the Parquet file extension
	extParquet = ".parquet"
	// extXLSX is the Excel XLSX file extension
	extXLSX = ".xlsx"
	// extGZ is the gzip compression extension
	extGZ = ".gz"
	// extBZ2 is the bzip2 compression extension
	extBZ2 = ".bz2"
	// extXZ is the xz compression extension
	extXZ = ".xz"
	// extZSTD is the zstd compression extension
	extZSTD = ".zst"
)

// baseExtension returns the lowercased extension of path after removing a compression extension.
func baseExtension(path string) string {
	return strings.ToLower(filepath.Ext(RemoveCompressionExtension(path)))
}

// DetectFormat returns the file format implied by the extension of path.
func DetectFormat(path string) FileFormat {
	switch baseExtension(path) {
	case extCSV, extTSV, extTXT:
		return FormatDelimited
	case extLTSV:
		return FormatLTSV
	case extParquet:
		return FormatParquet
	case extXLSX:
		return FormatXLSX
	default:
		return FormatUnsupported
	}
}

// isSupportedFile reports whether path has an extension that can be loaded.
func isSupportedFile(path string) bool {
	return DetectFormat(path) != FormatUnsupported
}

// tableBaseName derives a bare table name from the file name, e.g. "players" for "/data/Players.csv.gz".
func tableBaseName(path string) string {
	base := filepath.Base(RemoveCompressionExtension(path))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return model.SanitizeIdentifier(base)
}
