package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nao1215/qcsv"
	"github.com/nao1215/qcsv/domain/model"
	"github.com/nao1215/qcsv/internal/config"
	"github.com/nao1215/qcsv/internal/logger"
	"github.com/nao1215/qcsv/internal/render"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Output headings and messages
const (
	headingColumns   = "Columns / Schema:"
	headingMapping   = "Column name mapping (original -> safe SQL identifier):"
	headingExample   = "Example sanitized SQL and usage:"
	msgNoRows        = "No rows returned or unable to read file; check your query and CSV path."
	msgTruncatedRows = "showing the first %d rows; use --max-rows 0 to print every row"
)

// errNoColumns is reported when a file yields no columns to describe
var errNoColumns = errors.New("no columns: empty file or unable to read columns")

// report writes the output of a successful run
type report func(w io.Writer) error

// runner executes one request
type runner struct {
	engine Engine
	logger *zap.Logger
	stderr io.Writer
	format render.Format
	cfg    config.Config
}

func (a *App) run(cmd *cobra.Command, opts *options) error {
	ctx := cmd.Context()

	cfg, err := a.loadConfig(cmd, opts)
	if err != nil {
		return usageError(err)
	}
	format, err := outputFormat(cmd, opts, cfg)
	if err != nil {
		return usageError(err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return usageError(err)
	}
	log := logger.New(level, a.Stderr)
	defer func() { _ = log.Sync() }()

	req, err := model.NewRequest(opts.csv, requestMode(cmd, opts), opts.query, opts.sanitize)
	if err != nil {
		return usageError(err)
	}
	if _, err := qcsv.Resolve(req.Path()); err != nil {
		return newExitError(err)
	}
	if req.Mode() == model.ModeCustomQuery {
		// Template errors are reported before any file is loaded.
		var precheck model.ColumnMapping
		if req.Sanitize() {
			precheck = model.ColumnMapping{}
		}
		if _, err := qcsv.Substitute(req.Query(), req.Path(), precheck); err != nil {
			return newExitError(err)
		}
	}

	engine, err := a.OpenEngine(ctx, qcsv.WithLogger(log), qcsv.WithSampleRows(cfg.SampleRows))
	if err != nil {
		return newExitError(err)
	}
	defer func() {
		if closeErr := engine.Close(); closeErr != nil {
			log.Debug("failed to close engine", zap.Error(closeErr))
		}
	}()

	r := &runner{engine: engine, logger: log, stderr: a.Stderr, format: format, cfg: cfg}
	log.Debug("running request", zap.Stringer("mode", req.Mode()), zap.String("file", req.Path()), zap.Stringer("format", format))

	rep, err := r.execute(ctx, req)
	if err != nil {
		return newExitError(err)
	}
	if err := a.writeReport(opts.output, rep); err != nil {
		return newExitError(err)
	}
	return nil
}

// loadConfig applies the YAML file, the env file, the process environment and the flags over the defaults.
func (a *App) loadConfig(cmd *cobra.Command, opts *options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, err
	}

	values, err := config.ReadEnvFile(opts.envFile, cmd.Flags().Changed("env-file"))
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(config.NewEnv(values, a.LookupEnv)); err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Format = opts.format
	}
	if flags.Changed("limit") {
		cfg.PreviewRows = opts.limit
	}
	if flags.Changed("max-rows") {
		cfg.MaxRows = opts.maxRows
	}
	if opts.verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, cfg.Validate()
}

// outputFormat prefers --format, then the extension of --output, then the configured format.
func outputFormat(cmd *cobra.Command, opts *options, cfg config.Config) (render.Format, error) {
	if !cmd.Flags().Changed("format") && opts.output != "" {
		if f, ok := render.FormatFromPath(opts.output); ok {
			return f, nil
		}
	}
	return render.ParseFormat(cfg.Format)
}

func requestMode(cmd *cobra.Command, opts *options) model.Mode {
	switch {
	case cmd.Flags().Changed("query"):
		return model.ModeCustomQuery
	case opts.count:
		return model.ModeCount
	case opts.showColumns:
		return model.ModeShowColumns
	case opts.showSafe:
		return model.ModeShowSafe
	default:
		return model.ModePreview
	}
}

// writeReport writes rep to stdout, or to path through a compressing writer.
func (a *App) writeReport(path string, rep report) error {
	if path == "" {
		return rep(a.Stdout)
	}

	w, cleanup, err := qcsv.CreateWriter(path)
	if err != nil {
		return err
	}
	if err := rep(w); err != nil {
		_ = cleanup()
		return err
	}
	return cleanup()
}

func (r *runner) execute(ctx context.Context, req model.Request) (report, error) {
	switch req.Mode() {
	case model.ModeShowColumns:
		return r.showColumns(ctx, req)
	case model.ModeShowSafe:
		return r.showSafe(ctx, req)
	case model.ModeCustomQuery:
		return r.customQuery(ctx, req)
	default:
		return r.query(ctx, req)
	}
}

// query runs the preview and count modes
func (r *runner) query(ctx context.Context, req model.Request) (report, error) {
	query, err := qcsv.BuildQuery(req, nil, r.cfg.PreviewRows)
	if err != nil {
		return nil, err
	}
	rs, err := r.engine.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.resultReport(rs), nil
}

// schema runs a schema query and returns its columns. A file without columns is errNoColumns.
func (r *runner) schema(ctx context.Context, query string) (*model.ResultSet, error) {
	rs, err := r.engine.Query(ctx, query)
	if err != nil {
		if errors.Is(err, qcsv.ErrEmptyData) {
			return nil, fmt.Errorf("%w: %w", errNoColumns, err)
		}
		return nil, err
	}
	if len(rs.Columns) == 0 {
		return nil, errNoColumns
	}
	return rs, nil
}

// columnMapping sanitizes the columns returned by a schema query and logs every renamed collision.
func (r *runner) columnMapping(ctx context.Context, query string) (model.ColumnMapping, error) {
	rs, err := r.schema(ctx, query)
	if err != nil {
		return nil, err
	}
	mapping := model.SanitizeIdentifiers(rs.ColumnNames())
	for _, p := range mapping.Disambiguated() {
		r.logger.Warn("column name collides after sanitizing",
			zap.String("original", p.Original),
			zap.String("safe", p.Safe),
		)
	}
	return mapping, nil
}

func (r *runner) showColumns(ctx context.Context, req model.Request) (report, error) {
	rs, err := r.schema(ctx, qcsv.SchemaQuery(req.Path()))
	if err != nil {
		return nil, err
	}

	schema := &model.ResultSet{Columns: []model.Column{
		{Name: "column", DatabaseType: "TEXT"},
		{Name: "type", DatabaseType: "TEXT"},
	}}
	for _, col := range rs.Columns {
		schema.Rows = append(schema.Rows, model.Row{col.Name, col.DatabaseType})
	}

	return func(w io.Writer) error {
		if r.format == render.FormatTable {
			if _, err := fmt.Fprintln(w, headingColumns); err != nil {
				return err
			}
		}
		return r.render(w, schema)
	}, nil
}

func (r *runner) showSafe(ctx context.Context, req model.Request) (report, error) {
	mapping, err := r.columnMapping(ctx, qcsv.SchemaQuery(req.Path()))
	if err != nil {
		return nil, err
	}

	rs := &model.ResultSet{Columns: []model.Column{
		{Name: "original", DatabaseType: "TEXT"},
		{Name: "safe", DatabaseType: "TEXT"},
	}}
	for _, p := range mapping {
		rs.Rows = append(rs.Rows, model.Row{p.Original, p.Safe})
	}

	return func(w io.Writer) error {
		if r.format != render.FormatTable {
			return r.render(w, rs)
		}

		if _, err := fmt.Fprintln(w, headingMapping); err != nil {
			return err
		}
		if err := r.render(w, rs); err != nil {
			return err
		}
		snippet := qcsv.SanitizedSubquery(req.Path(), mapping, qcsv.MaxSubqueryColumns)
		_, err := fmt.Fprintf(w, "\n%s\nUse this subquery in queries: %s\nThen run: SELECT data.%s FROM %s LIMIT 5\n",
			headingExample, snippet, mapping[0].Safe, snippet)
		return err
	}, nil
}

func (r *runner) customQuery(ctx context.Context, req model.Request) (report, error) {
	query, err := r.customSQL(ctx, req)
	if err != nil {
		return nil, err
	}
	rs, err := r.engine.Query(ctx, query, qcsv.WithMaxRows(r.cfg.MaxRows))
	if err != nil {
		return nil, err
	}

	if rs.Truncated {
		_, _ = fmt.Fprintf(r.stderr, msgTruncatedRows+"\n", r.cfg.MaxRows)
	}
	if rs.Len() == 0 && r.format == render.FormatTable {
		return func(w io.Writer) error {
			_, err := fmt.Fprintln(w, msgNoRows)
			return err
		}, nil
	}
	return r.resultReport(rs), nil
}

// customSQL builds the statement of a custom query. With sanitize every file
// reference gets the mapping of its own columns, so options such as
// header=false or sheet= are honored.
func (r *runner) customSQL(ctx context.Context, req model.Request) (string, error) {
	if !req.Sanitize() {
		return qcsv.BuildQuery(req, nil, r.cfg.PreviewRows)
	}

	mappings := make(map[string]model.ColumnMapping)
	return qcsv.SubstituteSanitized(req.Query(), req.Path(), func(reference string) (model.ColumnMapping, error) {
		if m, ok := mappings[reference]; ok {
			return m, nil
		}
		m, err := r.columnMapping(ctx, qcsv.ReferenceSchemaQuery(reference))
		if err != nil {
			return nil, err
		}
		mappings[reference] = m
		return m, nil
	})
}

func (r *runner) resultReport(rs *model.ResultSet) report {
	return func(w io.Writer) error {
		return r.render(w, rs)
	}
}

func (r *runner) render(w io.Writer, rs *model.ResultSet) error {
	return render.Write(w, rs, r.format, render.Options{NullText: r.cfg.NullText})
}
