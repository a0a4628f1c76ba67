package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/qcsv"
	"github.com/nao1215/qcsv/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const (
	playersCSV = "../../testdata/players.csv"
	collideCSV = "../../testdata/collide.csv"
)

// newTestApp returns an App with an empty process environment
func newTestApp(env map[string]string) (*App, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)
	app.LookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	return app, &stdout, &stderr
}

func runApp(t *testing.T, env map[string]string, args ...string) (int, string, string) {
	t.Helper()

	app, stdout, stderr := newTestApp(env)
	code := app.Run(context.Background(), args)
	return code, stdout.String(), stderr.String()
}

func lines(s string) []string {
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func writeCSV(t *testing.T, rows int) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("id,value\n")
	for i := 1; i <= rows; i++ {
		fmt.Fprintf(&b, "%d,v%d\n", i, i)
	}
	path := filepath.Join(t.TempDir(), "rows.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0600))
	return path
}

func TestRun_ExitCodes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0600))

	tests := []struct {
		name       string
		args       []string
		env        map[string]string
		wantCode   int
		wantStderr string
	}{
		{name: "missing csv flag", args: []string{"--count"}, wantCode: ExitUsage, wantStderr: "required flag"},
		{name: "unknown flag", args: []string{"--csv", playersCSV, "--nope"}, wantCode: ExitUsage, wantStderr: "unknown flag"},
		{name: "positional argument", args: []string{"--csv", playersCSV, "extra"}, wantCode: ExitUsage},
		{name: "two modes", args: []string{"--csv", playersCSV, "--count", "--show-columns"}, wantCode: ExitUsage},
		{name: "sanitize without query", args: []string{"--csv", playersCSV, "--sanitize"}, wantCode: ExitUsage, wantStderr: "invalid request"},
		{name: "blank query", args: []string{"--csv", playersCSV, "--query", " "}, wantCode: ExitUsage},
		{name: "unknown format", args: []string{"--csv", playersCSV, "--format", "xml"}, wantCode: ExitUsage, wantStderr: "unknown output format"},
		{name: "bad env value", args: []string{"--csv", playersCSV}, env: map[string]string{"QCSV_MAX_ROWS": "lots"}, wantCode: ExitUsage},
		{name: "missing env file", args: []string{"--csv", playersCSV, "--env-file", filepath.Join(dir, "missing.env")}, wantCode: ExitUsage},
		{name: "missing config file", args: []string{"--csv", playersCSV, "--config", filepath.Join(dir, "missing.yaml")}, wantCode: ExitUsage},
		{name: "file not found", args: []string{"--csv", filepath.Join(dir, "missing.csv")}, wantCode: ExitFileNotFound, wantStderr: "Error: qcsv: file not found"},
		{name: "directory", args: []string{"--csv", dir, "--count"}, wantCode: ExitFileNotFound},
		{name: "missing placeholder", args: []string{"--csv", playersCSV, "--query", "SELECT 1"}, wantCode: ExitTemplate, wantStderr: "{csv}"},
		{name: "placeholder only in a comment", args: []string{"--csv", playersCSV, "--query", "SELECT 1 -- {csv}"}, wantCode: ExitTemplate},
		{name: "other file missing", args: []string{"--csv", playersCSV, "--query", "SELECT * FROM read_csv_auto('" + filepath.Join(dir, "other.csv") + "'), read_csv_auto('{csv}')"}, wantCode: ExitFileNotFound},
		{name: "engine error", args: []string{"--csv", playersCSV, "--query", "SELECT nope FROM read_csv_auto('{csv}')"}, wantCode: ExitError, wantStderr: "no such column: nope"},
		{name: "syntax error", args: []string{"--csv", playersCSV, "--query", "SELEC * FROM read_csv_auto('{csv}')"}, wantCode: ExitError, wantStderr: "syntax error"},
		{name: "unclosed bracket", args: []string{"--csv", playersCSV, "--query", "SELECT [Kills FROM read_csv_auto('{csv}')"}, wantCode: ExitError, wantStderr: "unrecognized token"},
		{name: "sanitize without a file reference", args: []string{"--csv", playersCSV, "--sanitize", "--query", "SELECT '{csv}' AS path"}, wantCode: ExitTemplate},
		{name: "empty file", args: []string{"--csv", empty, "--show-columns"}, wantCode: ExitError, wantStderr: "no columns"},
		{name: "help", args: []string{"--help"}, wantCode: ExitOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			code, _, stderr := runApp(t, tt.env, tt.args...)
			assert.Equal(t, tt.wantCode, code, stderr)
			if tt.wantStderr != "" {
				assert.Contains(t, stderr, tt.wantStderr)
			}
			if tt.wantCode != ExitOK {
				assert.True(t, strings.HasPrefix(stderr, "Error: "), stderr)
			}
		})
	}
}

func TestRun_EngineNotOpenedBeforeValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     []string
		wantCode int
	}{
		{name: "nonexistent path", args: []string{"--csv", "does/not/exist.csv"}, wantCode: ExitFileNotFound},
		{name: "template without placeholder", args: []string{"--csv", playersCSV, "--query", "SELECT * FROM t"}, wantCode: ExitTemplate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app, _, stderr := newTestApp(nil)
			opened := 0
			app.OpenEngine = func(context.Context, ...qcsv.Option) (Engine, error) {
				opened++
				return nil, errors.New("engine must not be opened")
			}

			code := app.Run(context.Background(), tt.args)
			assert.Equal(t, tt.wantCode, code)
			assert.Zero(t, opened)
			assert.NotContains(t, stderr.String(), "engine must not be opened")
		})
	}
}

func TestRun_Preview(t *testing.T) {
	t.Parallel()

	code, stdout, stderr := runApp(t, nil, "--csv", playersCSV)
	require.Equal(t, ExitOK, code, stderr)
	assert.Empty(t, stderr)

	got := lines(stdout)
	require.Len(t, got, 12)
	assert.True(t, strings.HasPrefix(got[0], "Game ID"))
	assert.True(t, strings.HasPrefix(got[2], "G001"))
	assert.Contains(t, got[2], "Faker")
	assert.Contains(t, got[11], "Peyz")

	code, stdout, _ = runApp(t, nil, "--csv", playersCSV, "--limit", "3", "--format", "csv")
	require.Equal(t, ExitOK, code)
	assert.Len(t, lines(stdout), 4)
}

func TestRun_Count(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, 500)
	code, stdout, stderr := runApp(t, nil, "--csv", path, "--count")
	require.Equal(t, ExitOK, code, stderr)
	assert.Equal(t, "row_count\n---------\n      500\n", stdout)

	gz := filepath.Join(t.TempDir(), "rows.csv.gz")
	raw, err := os.ReadFile(path) //nolint:gosec // test file in a temp dir
	require.NoError(t, err)
	w, cleanup, err := qcsv.CreateWriter(gz)
	require.NoError(t, err)
	_, err = w.Write(raw)
	require.NoError(t, err)
	require.NoError(t, cleanup())

	code, stdout, _ = runApp(t, nil, "--csv", gz, "--count", "--format", "csv")
	require.Equal(t, ExitOK, code)
	assert.Equal(t, "row_count\n500\n", stdout)
}

func TestRun_CustomQuery(t *testing.T) {
	t.Parallel()

	t.Run("first rows in file order", func(t *testing.T) {
		t.Parallel()

		code, stdout, stderr := runApp(t, nil, "--csv", playersCSV, "--format", "csv",
			"--query", "SELECT * FROM read_csv_auto('{csv}') LIMIT 5")
		require.Equal(t, ExitOK, code, stderr)

		got := lines(stdout)
		require.Len(t, got, 6)
		assert.Equal(t, "Game ID,Player Name,Team Name,Kills,Win Rate", got[0])
		assert.Equal(t, "G001,Faker,T1,7,0.65", got[1])
		assert.Equal(t, "G003,Zeus,T1,3,0.65", got[5])
	})

	t.Run("rows beyond max-rows are cut with a notice", func(t *testing.T) {
		t.Parallel()

		code, stdout, stderr := runApp(t, nil, "--csv", playersCSV, "--format", "csv", "--max-rows", "3",
			"--query", "SELECT * FROM {csv}")
		require.Equal(t, ExitOK, code)
		assert.Len(t, lines(stdout), 4)
		assert.Contains(t, stderr, "showing the first 3 rows")
	})

	t.Run("empty result in table format", func(t *testing.T) {
		t.Parallel()

		code, stdout, _ := runApp(t, nil, "--csv", playersCSV,
			"--query", "SELECT * FROM read_csv_auto('{csv}') WHERE Kills > 100")
		require.Equal(t, ExitOK, code)
		assert.Equal(t, msgNoRows+"\n", stdout)
	})

	t.Run("empty result in csv keeps the header", func(t *testing.T) {
		t.Parallel()

		code, stdout, _ := runApp(t, nil, "--csv", playersCSV, "--format", "csv",
			"--query", `SELECT "Player Name" FROM read_csv_auto('{csv}') WHERE Kills > 100`)
		require.Equal(t, ExitOK, code)
		assert.Equal(t, "Player Name\n", stdout)
	})

	t.Run("sanitized names", func(t *testing.T) {
		t.Parallel()

		code, stdout, stderr := runApp(t, nil, "--csv", playersCSV, "--format", "csv", "--sanitize",
			"--query", "SELECT data.player_name, data.win_rate FROM read_csv_auto('{csv}') AS data WHERE data.kills > 8")
		require.Equal(t, ExitOK, code, stderr)
		assert.Equal(t, "player_name,win_rate\nCaps,0.58\nPeyz,0.71\n", stdout)
	})

	t.Run("sanitized collisions are logged", func(t *testing.T) {
		t.Parallel()

		code, stdout, stderr := runApp(t, nil, "--csv", collideCSV, "--format", "csv", "--sanitize",
			"--query", "SELECT team_name, team_name_2 FROM {csv}")
		require.Equal(t, ExitOK, code, stderr)
		assert.Equal(t, "team_name,team_name_2\nT1,t1\nG2,g2\n", stdout)
		assert.Contains(t, stderr, "WARN")
		assert.Contains(t, stderr, "team_name_2")
	})
}

func TestRun_ShowColumns(t *testing.T) {
	t.Parallel()

	code, stdout, stderr := runApp(t, nil, "--csv", playersCSV, "--show-columns")
	require.Equal(t, ExitOK, code, stderr)

	got := lines(stdout)
	require.Len(t, got, 8)
	assert.Equal(t, headingColumns, got[0])
	assert.Equal(t, "column       type", got[1])
	assert.Equal(t, "Kills        INTEGER", got[6])
	assert.Equal(t, "Win Rate     REAL", got[7])

	code, stdout, _ = runApp(t, nil, "--csv", playersCSV, "--show-columns", "--format", "csv")
	require.Equal(t, ExitOK, code)
	assert.Equal(t, "column,type\nGame ID,TEXT\nPlayer Name,TEXT\nTeam Name,TEXT\nKills,INTEGER\nWin Rate,REAL\n", stdout)
}

func TestRun_ShowSafe(t *testing.T) {
	t.Parallel()

	code, stdout, stderr := runApp(t, nil, "--csv", collideCSV, "--show-safe")
	require.Equal(t, ExitOK, code, stderr)

	assert.True(t, strings.HasPrefix(stdout, headingMapping+"\n"), stdout)
	assert.Contains(t, stdout, "team-name    team_name_2")
	assert.Contains(t, stdout, "2024 Season  c_2024_season")
	assert.Contains(t, stdout, "Order        order_col")
	assert.Contains(t, stdout, headingExample)

	snippet := `(SELECT "Team Name" AS team_name, "team-name" AS team_name_2, "2024 Season" AS c_2024_season, ` +
		`"Order" AS order_col, "column4" AS column4 FROM read_csv_auto('../../testdata/collide.csv')) AS data`
	assert.Contains(t, stdout, "Use this subquery in queries: "+snippet+"\n")
	assert.Contains(t, stdout, "Then run: SELECT data.team_name FROM "+snippet+" LIMIT 5\n")
	assert.Contains(t, stderr, "column name collides after sanitizing")

	code, stdout, _ = runApp(t, nil, "--csv", playersCSV, "--show-safe", "--format", "tsv")
	require.Equal(t, ExitOK, code)
	assert.Equal(t, "original\tsafe\nGame ID\tgame_id\nPlayer Name\tplayer_name\nTeam Name\tteam_name\nKills\tkills\nWin Rate\twin_rate\n", stdout)
}

func TestRun_Output(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	t.Run("compressed csv", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(dir, "out.csv.gz")
		code, stdout, stderr := runApp(t, nil, "--csv", playersCSV, "--output", path,
			"--query", "SELECT * FROM read_csv_auto('{csv}') LIMIT 2")
		require.Equal(t, ExitOK, code, stderr)
		assert.Empty(t, stdout)

		r, cleanup, err := qcsv.OpenReader(path)
		require.NoError(t, err)
		defer func() { assert.NoError(t, cleanup()) }()
		got, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, "Game ID,Player Name,Team Name,Kills,Win Rate\nG001,Faker,T1,7,0.65\nG001,Chovy,Gen.G,5,0.71\n", string(got))
	})

	t.Run("format flag wins over extension", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(dir, "out.json")
		code, _, stderr := runApp(t, nil, "--csv", playersCSV, "--count", "--output", path, "--format", "yaml")
		require.Equal(t, ExitOK, code, stderr)

		got, err := os.ReadFile(path) //nolint:gosec // test file in a temp dir
		require.NoError(t, err)
		assert.Equal(t, "- row_count: 10\n", string(got))
	})

	t.Run("json by extension", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(dir, "count.json")
		code, _, stderr := runApp(t, nil, "--csv", playersCSV, "--count", "--output", path)
		require.Equal(t, ExitOK, code, stderr)

		got, err := os.ReadFile(path) //nolint:gosec // test file in a temp dir
		require.NoError(t, err)
		assert.Equal(t, "[\n  {\"row_count\":10}\n]\n", string(got))
	})

	t.Run("bzip2 output is rejected", func(t *testing.T) {
		t.Parallel()

		code, _, stderr := runApp(t, nil, "--csv", playersCSV, "--count", "--output", filepath.Join(dir, "out.csv.bz2"))
		assert.Equal(t, ExitError, code)
		assert.Contains(t, stderr, "bzip2")
	})
}

func TestRun_ConfigPrecedence(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	configPath := filepath.Join(dir, "qcsv.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("format: csv\nmax_rows: 6\n"), 0600))
	envPath := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("QCSV_MAX_ROWS=5\n"), 0600))

	query := []string{"--csv", playersCSV, "--query", "SELECT \"Player Name\" FROM {csv}", "--config", configPath}
	rowCount := func(env map[string]string, extra ...string) int {
		t.Helper()
		code, stdout, stderr := runApp(t, env, append(append([]string{}, query...), extra...)...)
		require.Equal(t, ExitOK, code, stderr)
		return len(lines(stdout)) - 1
	}

	assert.Equal(t, 6, rowCount(nil), "config file")
	assert.Equal(t, 5, rowCount(nil, "--env-file", envPath), "env file over config file")
	assert.Equal(t, 4, rowCount(map[string]string{"QCSV_MAX_ROWS": "4"}, "--env-file", envPath), "process env over env file")
	assert.Equal(t, 3, rowCount(map[string]string{"QCSV_MAX_ROWS": "4"}, "--env-file", envPath, "--max-rows", "3"), "flag over env")
	assert.Equal(t, 10, rowCount(nil, "--max-rows", "0"), "zero prints every row")
}

func TestRun_Verbose(t *testing.T) {
	t.Parallel()

	code, _, stderr := runApp(t, nil, "--csv", playersCSV, "--count", "-v")
	require.Equal(t, ExitOK, code)
	assert.Contains(t, stderr, "DEBUG")
	assert.Contains(t, stderr, "loaded file")
	assert.Contains(t, stderr, "running request")
}

func TestRun_Version(t *testing.T) {
	t.Parallel()

	code, stdout, _ := runApp(t, nil, "--version")
	assert.Equal(t, ExitOK, code)
	assert.Equal(t, "qcsv "+Summary()+"\n", stdout)
}

type fakeEngine struct {
	rs      *model.ResultSet
	queries []string
	closed  bool
}

func (f *fakeEngine) Query(_ context.Context, query string, _ ...qcsv.QueryOption) (*model.ResultSet, error) {
	f.queries = append(f.queries, query)
	return f.rs, nil
}

func (f *fakeEngine) Close() error {
	f.closed = true
	return nil
}

func TestRun_FakeEngine(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{rs: &model.ResultSet{
		Columns: []model.Column{{Name: "row_count"}},
		Rows:    []model.Row{{int64(500)}},
	}}
	app, stdout, stderr := newTestApp(nil)
	app.OpenEngine = func(context.Context, ...qcsv.Option) (Engine, error) {
		return engine, nil
	}

	code := app.Run(context.Background(), []string{"--csv", playersCSV, "--count", "--format", "csv"})
	require.Equal(t, ExitOK, code, stderr.String())
	assert.Equal(t, "row_count\n500\n", stdout.String())
	assert.Equal(t, []string{"SELECT COUNT(*) AS row_count FROM read_csv_auto('../../testdata/players.csv')"}, engine.queries)
	assert.True(t, engine.closed)
}

func TestRun_SanitizeHonorsReferenceOptions(t *testing.T) {
	t.Parallel()

	book := filepath.Join(t.TempDir(), "league.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Game ID", "Kills"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"G001", 7}))
	_, err := f.NewSheet("Teams")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Teams", "A1", &[]any{"Team Name", "Region"}))
	require.NoError(t, f.SetSheetRow("Teams", "A2", &[]any{"T1", "LCK"}))
	require.NoError(t, f.SaveAs(book))
	require.NoError(t, f.Close())

	tests := []struct {
		name  string
		path  string
		query string
		want  string
	}{
		{
			name:  "header=false",
			path:  collideCSV,
			query: "SELECT column0, column1 FROM read_csv_auto('{csv}', header=false) LIMIT 2",
			want:  "column0,column1\nTeam Name,team-name\nT1,t1\n",
		},
		{
			name:  "sheet",
			path:  book,
			query: "SELECT team_name, region FROM read_xlsx('{csv}', sheet='Teams')",
			want:  "team_name,region\nT1,LCK\n",
		},
		{
			name: "two references with different options",
			path: collideCSV,
			query: "SELECT a.team_name, b.column0 FROM read_csv_auto('{csv}') AS a " +
				"JOIN read_csv_auto('{csv}', header=false) AS b ON a.team_name_2 = b.column1 ORDER BY a.order_col",
			want: "team_name,column0\nT1,T1\nG2,G2\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			code, stdout, stderr := runApp(t, nil, "--csv", tt.path, "--format", "csv", "--sanitize", "--query", tt.query)
			require.Equal(t, ExitOK, code, stderr)
			assert.Equal(t, tt.want, stdout)
		})
	}
}

func TestRun_Datetimes(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "matches.csv")
	require.NoError(t, os.WriteFile(path, []byte("date,winner\n2024-01-15,T1\n2024-02-01,Gen.G\n"), 0600))

	code, stdout, stderr := runApp(t, nil, "--csv", path, "--show-columns", "--format", "csv")
	require.Equal(t, ExitOK, code, stderr)
	assert.Equal(t, "column,type\ndate,DATETIME\nwinner,TEXT\n", stdout)

	code, stdout, stderr = runApp(t, nil, "--csv", path, "--format", "csv",
		"--query", "SELECT date, winner FROM read_csv_auto('{csv}') WHERE date >= '2024-02-01'")
	require.Equal(t, ExitOK, code, stderr)
	assert.Equal(t, "date,winner\n2024-02-01,Gen.G\n", stdout)
}

func TestRun_JSONNonFinite(t *testing.T) {
	t.Parallel()

	code, stdout, stderr := runApp(t, nil, "--csv", playersCSV, "--format", "json",
		"--query", "SELECT 1e999 AS big FROM read_csv_auto('{csv}') LIMIT 1")
	require.Equal(t, ExitOK, code, stderr)
	assert.Equal(t, "[\n  {\"big\":\"+Inf\"}\n]\n", stdout)
}
