package render

import (
	"bufio"
	"io"
	"strings"

	"github.com/nao1215/qcsv/domain/model"
	"golang.org/x/text/width"
)

const gutter = "  "

// controlReplacer keeps every table row on one line
var controlReplacer = strings.NewReplacer("\r\n", `\n`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

// displayWidth returns the number of terminal cells s occupies
func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

// pad fills s with spaces up to w cells, on the left when right is true
func pad(s string, w int, right bool) string {
	gap := w - displayWidth(s)
	if gap <= 0 {
		return s
	}
	if right {
		return strings.Repeat(" ", gap) + s
	}
	return s + strings.Repeat(" ", gap)
}

// writeTable prints a header line, a dashed rule and one line per row.
// Numeric columns are right-aligned.
func writeTable(w io.Writer, rs *model.ResultSet, opts Options) error {
	if len(rs.Columns) == 0 {
		return nil
	}

	cells := make([][]string, len(rs.Rows))
	for r, row := range rs.Rows {
		cells[r] = make([]string, len(rs.Columns))
		for c := range rs.Columns {
			var v any
			if c < len(row) {
				v = row[c]
			}
			cells[r][c] = controlReplacer.Replace(formatValue(v, opts.NullText))
		}
	}

	widths := make([]int, len(rs.Columns))
	numeric := make([]bool, len(rs.Columns))
	header := make([]string, len(rs.Columns))
	rule := make([]string, len(rs.Columns))
	for c, col := range rs.Columns {
		header[c] = controlReplacer.Replace(col.Name)
		widths[c] = displayWidth(header[c])
		numeric[c] = isNumericColumn(rs, c)
		for r := range cells {
			widths[c] = max(widths[c], displayWidth(cells[r][c]))
		}
		rule[c] = strings.Repeat("-", widths[c])
	}

	bw := bufio.NewWriter(w)
	writeLine := func(fields []string) {
		parts := make([]string, len(fields))
		for c, f := range fields {
			parts[c] = pad(f, widths[c], numeric[c])
		}
		_, _ = bw.WriteString(strings.TrimRight(strings.Join(parts, gutter), " "))
		_ = bw.WriteByte('\n')
	}

	writeLine(header)
	writeLine(rule)
	for _, row := range cells {
		writeLine(row)
	}
	return bw.Flush()
}

// markdownReplacer escapes text for a markdown table cell
var markdownReplacer = strings.NewReplacer("|", `\|`, "\r\n", "<br>", "\n", "<br>", "\r", "<br>")

func writeMarkdown(w io.Writer, rs *model.ResultSet, opts Options) error {
	if len(rs.Columns) == 0 {
		return nil
	}

	bw := bufio.NewWriter(w)
	writeLine := func(fields []string) {
		_, _ = bw.WriteString("| " + strings.Join(fields, " | ") + " |\n")
	}

	header := make([]string, len(rs.Columns))
	align := make([]string, len(rs.Columns))
	for c, col := range rs.Columns {
		header[c] = markdownReplacer.Replace(col.Name)
		align[c] = "---"
		if isNumericColumn(rs, c) {
			align[c] = "---:"
		}
	}
	writeLine(header)
	writeLine(align)

	for _, row := range rs.Rows {
		fields := make([]string, len(rs.Columns))
		for c := range rs.Columns {
			var v any
			if c < len(row) {
				v = row[c]
			}
			fields[c] = markdownReplacer.Replace(formatValue(v, opts.NullText))
		}
		writeLine(fields)
	}
	return bw.Flush()
}
