package qcsv

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	pqfile "github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/nao1215/qcsv/domain/model"
	"github.com/xuri/excelize/v2"
)

const (
	// sniffBytes is how much of a delimited file is inspected to pick the delimiter
	sniffBytes = 64 * 1024
	// maxLineBytes is the longest LTSV line accepted
	maxLineBytes = 16 * 1024 * 1024
)

// utf8BOM is stripped from the start of text input
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// delimiterCandidates are tried in order; the first one wins ties
var delimiterCandidates = []rune{',', '\t', ';', '|'}

// parseInto parses the decompressed file according to spec and feeds the records to w
func parseInto(ctx context.Context, r io.Reader, spec loadSpec, w *chunkWriter) error {
	switch spec.format {
	case FormatDelimited:
		return parseDelimited(r, spec, w)
	case FormatLTSV:
		return parseLTSV(r, spec, w)
	case FormatParquet:
		return parseParquet(ctx, r, spec, w)
	case FormatXLSX:
		return parseXLSX(r, spec, w)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, spec.path)
	}
}

// newTextReader buffers r and drops a leading UTF-8 BOM
func newTextReader(r io.Reader) *bufio.Reader {
	br := bufio.NewReaderSize(r, sniffBytes)
	if b, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(b, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// parseDelimited parses CSV, TSV or other delimiter separated text
func parseDelimited(r io.Reader, spec loadSpec, w *chunkWriter) error {
	br := newTextReader(r)

	delimiter := spec.delimiter
	if delimiter == 0 {
		if baseExtension(spec.path) == extTSV {
			delimiter = '\t'
		} else {
			delimiter = sniffDelimiter(br)
		}
	}

	csvReader := csv.NewReader(br)
	csvReader.Comma = delimiter
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1

	first, err := csvReader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyData
		}
		return fmt.Errorf("%w: failed to read header: %w", ErrInvalidData, err)
	}

	if spec.header {
		w.setHeader(model.NewHeader(first))
	} else {
		w.setHeader(model.GeneratedHeader(len(first)))
		if err := w.write(first); err != nil {
			return err
		}
	}

	for {
		record, err := csvReader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%w: failed to read record: %w", ErrInvalidData, err)
		}
		if err := w.write(record); err != nil {
			return err
		}
	}
}

// sniffDelimiter picks the candidate occurring most often outside quotes on the first line
func sniffDelimiter(br *bufio.Reader) rune {
	buf, _ := br.Peek(sniffBytes) //nolint:errcheck // a short peek still holds the first line
	if i := bytes.IndexByte(buf, '\n'); i >= 0 {
		buf = buf[:i]
	}

	counts := make(map[rune]int, len(delimiterCandidates))
	inQuotes := false
	for _, r := range string(buf) {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[r]++
		}
	}

	best := delimiterCandidates[0]
	for _, c := range delimiterCandidates[1:] {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

// parseLTSV parses labeled tab-separated values. Columns appear in the order
// their labels are first seen and missing labels are empty.
func parseLTSV(r io.Reader, _ loadSpec, w *chunkWriter) error {
	scanner := bufio.NewScanner(newTextReader(r))
	scanner.Buffer(make([]byte, 0, sniffBytes), maxLineBytes)

	var (
		labels  []string
		index   = make(map[string]int)
		records [][]string
	)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var record []string
		for field := range strings.SplitSeq(line, "\t") {
			label, value, ok := strings.Cut(field, ":")
			if !ok {
				continue
			}
			label = strings.TrimSpace(label)
			i, seen := index[label]
			if !seen {
				i = len(labels)
				index[label] = i
				labels = append(labels, label)
			}
			for len(record) <= i {
				record = append(record, "")
			}
			record[i] = strings.TrimSpace(value)
		}
		if record != nil {
			records = append(records, record)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: failed to read LTSV: %w", ErrInvalidData, err)
	}
	if len(labels) == 0 {
		return ErrEmptyData
	}

	w.setHeader(model.NewHeader(labels))
	for _, record := range records {
		if err := w.write(record); err != nil {
			return err
		}
	}
	return nil
}

// parseParquet reads a Parquet file through Arrow. Integer, floating point and
// temporal columns keep their types, everything else is TEXT.
func parseParquet(ctx context.Context, r io.Reader, spec loadSpec, w *chunkWriter) error {
	// Parquet requires random access
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read parquet data: %w", err)
	}
	if len(data) == 0 {
		return ErrEmptyData
	}

	pqReader, err := pqfile.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: failed to create parquet reader: %w", ErrInvalidData, err)
	}
	defer pqReader.Close()

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return fmt.Errorf("%w: failed to create arrow reader: %w", ErrInvalidData, err)
	}

	table, err := arrowReader.ReadTable(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to read table: %w", ErrInvalidData, err)
	}
	defer table.Release()

	fields := table.Schema().Fields()
	names := make([]string, len(fields))
	types := make([]model.ColumnType, len(fields))
	for i, field := range fields {
		names[i] = field.Name
		types[i] = arrowColumnType(field.Type)
	}
	w.setHeader(model.NewHeader(names))
	if !spec.allVarchar {
		w.setColumnTypes(types)
	}

	tableReader := array.NewTableReader(table, int64(w.chunkSize))
	defer tableReader.Release()

	for tableReader.Next() {
		batch := tableReader.Record()
		numRows := int(batch.NumRows())
		numCols := int(batch.NumCols())
		for i := 0; i < numRows; i++ {
			row := make([]string, numCols)
			for j := 0; j < numCols; j++ {
				col := batch.Column(j)
				if col.IsNull(i) {
					continue
				}
				row[j] = col.ValueStr(i)
			}
			if err := w.write(row); err != nil {
				return err
			}
		}
	}
	if err := tableReader.Err(); err != nil {
		return fmt.Errorf("%w: error reading table records: %w", ErrInvalidData, err)
	}
	return nil
}

// arrowColumnType maps an Arrow type to the column type used in SQLite
func arrowColumnType(dt arrow.DataType) model.ColumnType {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return model.ColumnTypeInteger
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		return model.ColumnTypeReal
	case arrow.DATE32, arrow.DATE64, arrow.TIMESTAMP, arrow.TIME32, arrow.TIME64:
		return model.ColumnTypeDatetime
	default:
		return model.ColumnTypeText
	}
}

// parseXLSX reads one sheet of a workbook: the sheet named in spec or the first one.
// Leading empty rows are skipped, as are empty rows between records.
func parseXLSX(r io.Reader, spec loadSpec, w *chunkWriter) error {
	xlsxFile, err := excelize.OpenReader(r)
	if err != nil {
		return fmt.Errorf("%w: failed to open XLSX file: %w", ErrInvalidData, err)
	}
	defer func() {
		_ = xlsxFile.Close() // Ignore close error
	}()

	sheetNames := xlsxFile.GetSheetList()
	if len(sheetNames) == 0 {
		return ErrEmptyData
	}
	sheetName := sheetNames[0]
	if spec.sheet != "" {
		if !slices.Contains(sheetNames, spec.sheet) {
			return fmt.Errorf("%w: sheet %q not found", ErrInvalidData, spec.sheet)
		}
		sheetName = spec.sheet
	}

	iter, err := xlsxFile.Rows(sheetName)
	if err != nil {
		return fmt.Errorf("failed to open rows iterator for sheet %s: %w", sheetName, err)
	}
	defer func() {
		_ = iter.Close() // Ignore close error
	}()

	first := true
	for iter.Next() {
		row, err := iter.Columns()
		if err != nil {
			return fmt.Errorf("%w: failed to read row in sheet %s: %w", ErrInvalidData, sheetName, err)
		}
		if len(row) == 0 {
			continue
		}
		if first {
			first = false
			if spec.header {
				w.setHeader(model.NewHeader(row))
				continue
			}
			w.setHeader(model.GeneratedHeader(len(row)))
		}
		if err := w.write(row); err != nil {
			return err
		}
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("%w: failed to iterate sheet %s: %w", ErrInvalidData, sheetName, err)
	}
	if first {
		return ErrEmptyData
	}
	return nil
}
