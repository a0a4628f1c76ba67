package qcsv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"strconv"
	"strings"

	"github.com/nao1215/qcsv/domain/model"
	"github.com/nao1215/qcsv/internal/sqlscan"
	"go.uber.org/zap"
)

// tableChunk represents a chunk of table data for streaming processing
type tableChunk struct {
	tableName string
	header    model.Header
	records   []model.Record
	columns   []model.ColumnInfo
}

// chunkProcessor receives each chunk in file order. The first chunk of a
// file is always delivered, even when it holds no records.
type chunkProcessor func(chunk *tableChunk) error

// chunkWriter groups parsed records into chunks. The first chunk holds the
// records sampled for type inference, later chunks hold chunkSize records.
type chunkWriter struct {
	tableName  string
	header     model.Header
	columns    []model.ColumnInfo
	allVarchar bool
	sampleRows int
	chunkSize  int
	processor  chunkProcessor

	records []model.Record
	emitted bool
	rows    int
}

// setHeader normalizes and stores the header. It must be called before write.
func (w *chunkWriter) setHeader(h model.Header) {
	w.header = h.Normalize()
}

// setColumnTypes fixes the column types instead of inferring them.
func (w *chunkWriter) setColumnTypes(types []model.ColumnType) {
	w.columns = make([]model.ColumnInfo, len(w.header))
	for i, name := range w.header {
		w.columns[i] = model.ColumnInfo{Name: name, Type: types[i]}
	}
}

// write adds one record. Short records are padded with empty values.
func (w *chunkWriter) write(record []string) error {
	if len(record) > len(w.header) {
		return fmt.Errorf("%w: row %d has %d fields but the header has %d",
			ErrInvalidData, w.rows+1, len(record), len(w.header))
	}
	if len(record) < len(w.header) {
		padded := make([]string, len(w.header))
		copy(padded, record)
		record = padded
	}

	w.records = append(w.records, model.NewRecord(record))
	w.rows++
	if len(w.records) >= w.threshold() {
		return w.flush()
	}
	return nil
}

func (w *chunkWriter) threshold() int {
	if w.emitted {
		return w.chunkSize
	}
	if w.sampleRows < 0 {
		return math.MaxInt
	}
	return max(w.sampleRows, 1)
}

func (w *chunkWriter) flush() error {
	if w.columns == nil {
		if w.allVarchar {
			w.columns = model.TextColumnsInfo(w.header)
		} else {
			w.columns = model.InferColumnsInfo(w.header, w.records)
		}
	}

	chunk := &tableChunk{
		tableName: w.tableName,
		header:    w.header,
		records:   w.records,
		columns:   w.columns,
	}
	if err := w.processor(chunk); err != nil {
		return err
	}

	w.records = nil
	w.emitted = true
	return nil
}

// close delivers the remaining records. A file with a header and no records
// still produces one empty chunk so the table gets created.
func (w *chunkWriter) close() error {
	if w.header == nil {
		return ErrEmptyData
	}
	if len(w.records) > 0 || !w.emitted {
		return w.flush()
	}
	return nil
}

// tableLoader loads one file into one table
type tableLoader struct {
	db        *sql.DB
	logger    *zap.Logger
	chunkSize int
}

// load streams the file described by spec into a new table inside one transaction.
func (l *tableLoader) load(ctx context.Context, spec loadSpec, tableName string) error {
	ec := newErrorContext("load", spec.path).withTable(tableName)

	reader, cleanup, err := OpenReader(spec.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, spec.path)
		}
		return ec.wrap(err)
	}
	defer func() {
		if closeErr := cleanup(); closeErr != nil {
			l.logger.Debug("failed to close file", zap.String("file", spec.path), zap.Error(closeErr))
		}
	}()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return ec.wrap(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback() // Ignore rollback error, the load error is returned
		}
	}()

	var insertStmt *sql.Stmt
	defer func() {
		if insertStmt != nil {
			_ = insertStmt.Close() // Ignore close error during statement cleanup
		}
	}()

	w := &chunkWriter{
		tableName:  tableName,
		allVarchar: spec.allVarchar,
		sampleRows: spec.sampleRows,
		chunkSize:  l.chunkSize,
	}
	w.processor = func(chunk *tableChunk) error {
		if insertStmt == nil {
			if err := createTableFromChunk(ctx, tx, chunk); err != nil {
				return fmt.Errorf("failed to create table: %w", err)
			}
			stmt, err := prepareInsertStatement(ctx, tx, chunk) //nolint:sqlclosecheck // Statement is closed after processing
			if err != nil {
				return fmt.Errorf("failed to prepare insert statement: %w", err)
			}
			insertStmt = stmt
		}
		if err := insertChunkData(ctx, insertStmt, chunk); err != nil {
			return fmt.Errorf("failed to insert chunk data: %w", err)
		}
		return nil
	}

	if err := parseInto(ctx, reader, spec, w); err != nil {
		return ec.withDetails(spec.format.String()).wrap(err)
	}
	if err := w.close(); err != nil {
		return ec.wrap(err)
	}
	if err := tx.Commit(); err != nil {
		return ec.wrap(err)
	}
	committed = true

	l.logger.Debug("loaded file",
		zap.String("file", spec.path),
		zap.String("table", tableName),
		zap.String("format", spec.format.String()),
		zap.String("compression", DetectCompressionType(spec.path).String()),
		zap.Int("rows", w.rows),
		zap.Int("columns", len(w.header)),
	)
	return nil
}

// createTableFromChunk creates a SQLite table from a tableChunk
func createTableFromChunk(ctx context.Context, tx *sql.Tx, chunk *tableChunk) error {
	columns := make([]string, 0, len(chunk.columns))
	for _, col := range chunk.columns {
		columns = append(columns, sqlscan.QuoteIdent(col.Name)+" "+col.Type.String())
	}

	query := fmt.Sprintf(
		`CREATE TABLE %s (%s)`,
		sqlscan.QuoteIdent(chunk.tableName),
		strings.Join(columns, ", "),
	)

	_, err := tx.ExecContext(ctx, query)
	return err
}

// prepareInsertStatement prepares an insert statement for the table
func prepareInsertStatement(ctx context.Context, tx *sql.Tx, chunk *tableChunk) (*sql.Stmt, error) {
	placeholders := make([]string, len(chunk.header))
	for i := range placeholders {
		placeholders[i] = "?"
	}

	query := fmt.Sprintf(
		`INSERT INTO %s VALUES (%s)`,
		sqlscan.QuoteIdent(chunk.tableName),
		strings.Join(placeholders, ", "),
	)

	return tx.PrepareContext(ctx, query)
}

// insertChunkData inserts a chunk's worth of data using a prepared statement
func insertChunkData(ctx context.Context, stmt *sql.Stmt, chunk *tableChunk) error {
	values := make([]any, len(chunk.header))
	for _, record := range chunk.records {
		for i, value := range record {
			values[i] = convertValue(value, chunk.columns[i].Type)
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}
	return nil
}

// convertValue turns a field into the value bound for its column. Empty fields are NULL.
// Values that do not parse as the column type are stored as text.
func convertValue(value string, columnType model.ColumnType) any {
	if value == "" {
		return nil
	}
	switch columnType {
	case model.ColumnTypeInteger:
		if v, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return v
		}
	case model.ColumnTypeReal:
		if v, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return v
		}
	}
	return value
}
