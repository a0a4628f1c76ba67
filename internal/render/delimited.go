package render

import (
	"bufio"
	"encoding/csv"
	"io"
	"strings"

	"github.com/nao1215/qcsv/domain/model"
)

// writeDelimited writes the header and the rows with encoding/csv. NULL is an empty field.
func writeDelimited(w io.Writer, rs *model.ResultSet, comma rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = comma

	if err := cw.Write(rs.ColumnNames()); err != nil {
		return err
	}
	record := make([]string, len(rs.Columns))
	for _, row := range rs.Rows {
		for c := range record {
			record[c] = ""
			if c < len(row) {
				record[c] = formatValue(row[c], "")
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ltsvReplacer removes the characters LTSV cannot carry inside a value
var ltsvReplacer = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ")

// writeLTSV writes one label:value line per row
func writeLTSV(w io.Writer, rs *model.ResultSet) error {
	labels := make([]string, len(rs.Columns))
	for c, col := range rs.Columns {
		labels[c] = strings.ReplaceAll(ltsvReplacer.Replace(col.Name), ":", "_")
	}

	bw := bufio.NewWriter(w)
	for _, row := range rs.Rows {
		for c, label := range labels {
			if c > 0 {
				_ = bw.WriteByte('\t')
			}
			var v any
			if c < len(row) {
				v = row[c]
			}
			_, _ = bw.WriteString(label + ":" + ltsvReplacer.Replace(formatValue(v, "")))
		}
		_ = bw.WriteByte('\n')
	}
	return bw.Flush()
}
