package qcsv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/nao1215/qcsv/domain/model"
	"go.uber.org/zap"

	// Registers the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"
)

const (
	// driverName is the database/sql name of the embedded engine
	driverName = "sqlite"
	// DefaultChunkSize is the number of rows inserted per chunk while loading a file
	DefaultChunkSize = 1000
)

// Engine is an in-memory SQLite database that loads files referenced by queries.
// An Engine is not safe for concurrent use.
type Engine struct {
	db         *sql.DB
	logger     *zap.Logger
	chunkSize  int
	sampleRows int

	// loaded maps a load key to the table holding that file
	loaded map[string]string
	// tables holds every table name in use, lowercased
	tables map[string]bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSampleRows sets how many leading rows are used for type inference.
// Zero keeps model.DefaultSampleRows and a negative value samples every row.
func WithSampleRows(n int) Option {
	return func(e *Engine) {
		if n != 0 {
			e.sampleRows = n
		}
	}
}

// WithChunkSize sets the number of rows inserted per chunk. Values below 1 keep DefaultChunkSize.
func WithChunkSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// Open creates an engine backed by a private in-memory database.
func Open(ctx context.Context, opts ...Option) (*Engine, error) {
	e := &Engine{
		logger:     zap.NewNop(),
		chunkSize:  DefaultChunkSize,
		sampleRows: model.DefaultSampleRows,
		loaded:     make(map[string]string),
		tables:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}

	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		closeErr := db.Close()
		if closeErr != nil {
			return nil, errors.Join(err, fmt.Errorf("failed to close database: %w", closeErr))
		}
		return nil, err
	}

	e.db = db
	return e, nil
}

// Close releases the database.
func (e *Engine) Close() error {
	if e.db == nil {
		return nil
	}
	return e.db.Close()
}

// Tables returns the sorted names of the tables loaded so far.
func (e *Engine) Tables() []string {
	names := make([]string, 0, len(e.loaded))
	for _, name := range e.loaded {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

type queryConfig struct {
	maxRows int
}

// QueryOption configures a single query.
type QueryOption func(*queryConfig)

// WithMaxRows keeps at most n rows of the result and marks the result as
// truncated when more exist. Zero or less keeps every row.
func WithMaxRows(n int) QueryOption {
	return func(c *queryConfig) {
		c.maxRows = n
	}
}

// Query expands the table functions in query, loads the files they reference
// and runs the statement. Every error is a *QueryError.
func (e *Engine) Query(ctx context.Context, query string, opts ...QueryOption) (*model.ResultSet, error) {
	var cfg queryConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	expanded, err := e.expand(ctx, query)
	if err != nil {
		return nil, &QueryError{Query: query, Err: err}
	}
	e.logger.Debug("executing query", zap.String("query", expanded))

	rs, err := e.run(ctx, expanded, cfg)
	if err != nil {
		return nil, &QueryError{Query: query, Err: err}
	}
	return rs, nil
}

func (e *Engine) run(ctx context.Context, query string, cfg queryConfig) (*model.ResultSet, error) {
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	rs := &model.ResultSet{Columns: make([]model.Column, len(columnTypes))}
	for i, ct := range columnTypes {
		rs.Columns[i] = model.Column{
			Name:         ct.Name(),
			DatabaseType: strings.ToUpper(ct.DatabaseTypeName()),
		}
	}

	for rows.Next() {
		if cfg.maxRows > 0 && len(rs.Rows) == cfg.maxRows {
			rs.Truncated = true
			break
		}

		values := make([]any, len(columnTypes))
		scanArgs := make([]any, len(columnTypes))
		for i := range values {
			scanArgs[i] = &values[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, err
		}
		rs.Rows = append(rs.Rows, model.Row(values))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

// uniqueTableName returns base, or base with the smallest free "_N" suffix.
func (e *Engine) uniqueTableName(base string) string {
	name := base
	for n := 2; e.tables[strings.ToLower(name)]; n++ {
		name = fmt.Sprintf("%s_%d", base, n)
	}
	e.tables[strings.ToLower(name)] = true
	return name
}
