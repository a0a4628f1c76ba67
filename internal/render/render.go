// Package render prints query results in the output formats supported by qcsv.
package render

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/qcsv"
	"github.com/nao1215/qcsv/domain/model"
)

// ErrUnknownFormat is returned for a format name or extension that cannot be rendered.
var ErrUnknownFormat = errors.New("render: unknown output format")

// Format represents the output format
type Format int

const (
	// FormatTable is a fixed-width text table
	FormatTable Format = iota
	// FormatCSV is comma-separated values
	FormatCSV
	// FormatTSV is tab-separated values
	FormatTSV
	// FormatLTSV is labeled tab-separated values
	FormatLTSV
	// FormatJSON is an array of objects
	FormatJSON
	// FormatYAML is a sequence of mappings
	FormatYAML
	// FormatMarkdown is a GitHub flavored markdown table
	FormatMarkdown
)

// Formats lists every format in flag help order.
var Formats = []Format{FormatTable, FormatCSV, FormatTSV, FormatLTSV, FormatJSON, FormatYAML, FormatMarkdown}

// String returns the string representation of Format
func (f Format) String() string {
	switch f {
	case FormatTable:
		return "table"
	case FormatCSV:
		return "csv"
	case FormatTSV:
		return "tsv"
	case FormatLTSV:
		return "ltsv"
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	case FormatMarkdown:
		return "markdown"
	default:
		return "format(" + strconv.Itoa(int(f)) + ")"
	}
}

// Extension returns the file extension for the format
func (f Format) Extension() string {
	switch f {
	case FormatCSV:
		return ".csv"
	case FormatTSV:
		return ".tsv"
	case FormatLTSV:
		return ".ltsv"
	case FormatJSON:
		return ".json"
	case FormatYAML:
		return ".yaml"
	case FormatMarkdown:
		return ".md"
	default:
		return ".txt"
	}
}

// ParseFormat returns the format named s. "md" and "yml" are accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table", "":
		return FormatTable, nil
	case "csv":
		return FormatCSV, nil
	case "tsv":
		return FormatTSV, nil
	case "ltsv":
		return FormatLTSV, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return FormatTable, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// FormatFromPath picks the format implied by the extension of an output
// file, ignoring a compression extension. It reports false when the
// extension does not name a format.
func FormatFromPath(path string) (Format, bool) {
	ext := strings.ToLower(filepath.Ext(qcsv.RemoveCompressionExtension(path)))
	switch ext {
	case ".csv":
		return FormatCSV, true
	case ".tsv":
		return FormatTSV, true
	case ".ltsv":
		return FormatLTSV, true
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".md", ".markdown":
		return FormatMarkdown, true
	case ".txt":
		return FormatTable, true
	default:
		return FormatTable, false
	}
}

// Options controls how values are printed.
type Options struct {
	// NullText is printed for NULL in the table and markdown formats.
	// Delimited formats print NULL as an empty field, JSON and YAML as null.
	NullText string
}

// Write renders rs to w in the given format.
func Write(w io.Writer, rs *model.ResultSet, format Format, opts Options) error {
	if rs == nil {
		rs = &model.ResultSet{}
	}

	switch format {
	case FormatTable:
		return writeTable(w, rs, opts)
	case FormatCSV:
		return writeDelimited(w, rs, ',')
	case FormatTSV:
		return writeDelimited(w, rs, '\t')
	case FormatLTSV:
		return writeLTSV(w, rs)
	case FormatJSON:
		return writeJSON(w, rs)
	case FormatYAML:
		return writeYAML(w, rs)
	case FormatMarkdown:
		return writeMarkdown(w, rs, opts)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// formatValue converts a value scanned from the engine into text.
func formatValue(v any, null string) string {
	switch v := v.(type) {
	case nil:
		return null
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eEnN") {
			s += ".0"
		}
		return s
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return formatTime(v)
	default:
		return fmt.Sprint(v)
	}
}

// formatTime prints a DATETIME value: the date alone at midnight, otherwise
// date and time, with the zone offset only when it is not UTC.
func formatTime(t time.Time) string {
	_, offset := t.Zone()
	h, m, sec := t.Clock()
	switch {
	case offset != 0:
		return t.Format("2006-01-02 15:04:05.999999999-07:00")
	case h == 0 && m == 0 && sec == 0 && t.Nanosecond() == 0:
		return t.Format(time.DateOnly)
	default:
		return t.Format("2006-01-02 15:04:05.999999999")
	}
}

// isNumericColumn reports whether column i holds numbers: its declared type
// is INTEGER or REAL, or every non-NULL value is an int64 or float64.
func isNumericColumn(rs *model.ResultSet, i int) bool {
	switch rs.Columns[i].DatabaseType {
	case "INTEGER", "REAL":
		return true
	case "":
	default:
		return false
	}

	seen := false
	for _, row := range rs.Rows {
		if i >= len(row) || row[i] == nil {
			continue
		}
		switch row[i].(type) {
		case int64, float64:
			seen = true
		default:
			return false
		}
	}
	return seen
}
