// Package cli implements the qcsv command.
package cli

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/nao1215/qcsv"
	"github.com/nao1215/qcsv/domain/model"
	"github.com/nao1215/qcsv/internal/config"
	"github.com/spf13/cobra"
)

// Engine runs queries for one invocation. *qcsv.Engine implements it.
type Engine interface {
	Query(ctx context.Context, query string, opts ...qcsv.QueryOption) (*model.ResultSet, error)
	Close() error
}

// EngineFactory opens an Engine.
type EngineFactory func(ctx context.Context, opts ...qcsv.Option) (Engine, error)

func openEngine(ctx context.Context, opts ...qcsv.Option) (Engine, error) {
	engine, err := qcsv.Open(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return engine, nil
}

// App holds the collaborators of the command.
type App struct {
	Stdout io.Writer
	Stderr io.Writer
	// LookupEnv reads the process environment.
	LookupEnv func(string) (string, bool)
	// OpenEngine is called once per run, after the input file is resolved.
	OpenEngine EngineFactory
}

// New returns an App writing to stdout and stderr and reading the process environment.
func New(stdout, stderr io.Writer) *App {
	return &App{
		Stdout:     stdout,
		Stderr:     stderr,
		LookupEnv:  os.LookupEnv,
		OpenEngine: openEngine,
	}
}

// Run executes qcsv with args and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return New(stdout, stderr).Run(ctx, args)
}

// options holds the parsed flags
type options struct {
	csv         string
	query       string
	count       bool
	showColumns bool
	showSafe    bool
	sanitize    bool
	format      string
	output      string
	limit       int
	maxRows     int
	configPath  string
	envFile     string
	verbose     bool
}

// Run executes qcsv with args and returns the process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	cmd := a.newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(a.Stdout)
	cmd.SetErr(a.Stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	// Errors cobra reports itself are flag and argument problems.
	code := ExitUsage
	var ec exitCoder
	if errors.As(err, &ec) {
		code = ec.ExitCode()
	}
	printError(a.Stderr, err, code)
	return code
}

func (a *App) newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "qcsv --csv FILE [--query SQL [--sanitize] | --count | --show-columns | --show-safe]",
		Short: "Run SQL queries against a CSV file",
		Long: `qcsv runs SQL against a CSV file without importing it into a database first.

The query refers to the file through the {csv} placeholder, usually as
read_csv_auto('{csv}'). The file is loaded with column type inference into an
in-memory SQLite database and the result is printed.

Without a mode flag the first 10 rows are printed.`,
		Example: `  qcsv --csv players.csv
  qcsv --csv players.csv --show-columns
  qcsv --csv players.csv --count
  qcsv --csv players.csv --query "SELECT * FROM read_csv_auto('{csv}') LIMIT 5"
  qcsv --csv players.csv --sanitize --query "SELECT player_name FROM read_csv_auto('{csv}')"
  qcsv --csv players.csv.gz --query "SELECT * FROM {csv}" --output result.json`,
		Args:          cobra.NoArgs,
		Version:       Summary(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, opts)
		},
	}
	cmd.SetVersionTemplate("qcsv {{.Version}}\n")

	flags := cmd.Flags()
	flags.StringVar(&opts.csv, "csv", "", "path to the CSV file (required)")
	flags.StringVarP(&opts.query, "query", "q", "", "SQL query; {csv} is replaced with the quoted file path")
	flags.BoolVar(&opts.count, "count", false, "print the number of rows")
	flags.BoolVar(&opts.showColumns, "show-columns", false, "print column names and inferred types")
	flags.BoolVar(&opts.showSafe, "show-safe", false, "print the mapping from column names to SQL-safe identifiers")
	flags.BoolVar(&opts.sanitize, "sanitize", false, "with --query, expose the columns under their SQL-safe names")
	flags.StringVarP(&opts.format, "format", "f", "", "output format: table, csv, tsv, ltsv, json, yaml, markdown")
	flags.StringVarP(&opts.output, "output", "o", "", "write the result to a file; format and compression follow the extension")
	flags.IntVar(&opts.limit, "limit", qcsv.DefaultPreviewRows, "rows printed without a mode flag")
	flags.IntVar(&opts.maxRows, "max-rows", config.DefaultMaxRows, "rows printed for --query, 0 prints every row")
	flags.StringVar(&opts.configPath, "config", "", "YAML config file (default "+config.DefaultFile+" when present)")
	flags.StringVar(&opts.envFile, "env-file", config.DefaultEnvFile, "env file read before the process environment")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log debug messages to stderr")

	_ = cmd.MarkFlagRequired("csv")
	cmd.MarkFlagsMutuallyExclusive("query", "count", "show-columns", "show-safe")

	return cmd
}
