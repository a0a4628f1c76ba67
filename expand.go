package qcsv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/nao1215/qcsv/internal/sqlscan"
)

// tableFunction describes a table function accepted in queries.
type tableFunction struct {
	format FileFormat
	// detect picks the format from the file extension when it names a non-delimited format
	detect bool
}

var tableFunctions = map[string]tableFunction{
	"read_csv_auto": {format: FormatDelimited, detect: true},
	"read_csv":      {format: FormatDelimited},
	"read_ltsv":     {format: FormatLTSV},
	"read_parquet":  {format: FormatParquet},
	"parquet_scan":  {format: FormatParquet},
	"read_xlsx":     {format: FormatXLSX},
}

func lookupTableFunction(name string) (tableFunction, bool) {
	fn, ok := tableFunctions[strings.ToLower(name)]
	return fn, ok
}

// loadSpec identifies one file load. Two references with the same spec share a table.
type loadSpec struct {
	path       string
	format     FileFormat
	delimiter  rune
	header     bool
	allVarchar bool
	// sampleRows of 0 uses the engine default, a negative value samples every row
	sampleRows int
	sheet      string
}

func newLoadSpec(path string, format FileFormat) loadSpec {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return loadSpec{path: path, format: format, header: true}
}

func (s loadSpec) key() string {
	return fmt.Sprintf("%s\x00%s\x00%q\x00%t\x00%t\x00%d\x00%s",
		s.path, s.format, s.delimiter, s.header, s.allVarchar, s.sampleRows, s.sheet)
}

// expand replaces every table function call and every quoted file name after
// FROM or JOIN with the name of a table holding the file, loading it first.
// A query that cannot be tokenized is returned unchanged for the engine to reject.
func (e *Engine) expand(ctx context.Context, query string) (string, error) {
	tokens, err := sqlscan.Scan(query)
	if err != nil {
		return query, nil //nolint:nilerr // the engine reports the syntax error
	}

	var b strings.Builder
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]

		switch {
		case tok.Kind == sqlscan.Word && isTableFunctionCall(tokens, i):
			spec, end, err := parseTableFunction(tokens, i)
			if err != nil {
				return "", err
			}
			name, err := e.ensureLoaded(ctx, spec)
			if err != nil {
				return "", err
			}
			b.WriteString(sqlscan.QuoteIdent(name))
			i = end

		case tok.Kind == sqlscan.String && isReplacementScan(tokens, i):
			path := sqlscan.Unquote(tok)
			format := DetectFormat(path)
			if format == FormatUnsupported {
				format = FormatDelimited
			}
			name, err := e.ensureLoaded(ctx, newLoadSpec(path, format))
			if err != nil {
				return "", err
			}
			b.WriteString(sqlscan.QuoteIdent(name))

		default:
			b.WriteString(tok.Text)
		}
	}
	return b.String(), nil
}

// isTableFunctionCall reports whether tokens[i] names a table function followed by "(".
// Qualified names such as main.read_csv are left alone.
func isTableFunctionCall(tokens []sqlscan.Token, i int) bool {
	if _, ok := lookupTableFunction(tokens[i].Text); !ok {
		return false
	}
	if prev := sqlscan.PrevSignificant(tokens, i); prev >= 0 && tokens[prev].IsSymbol(".") {
		return false
	}
	next := sqlscan.NextSignificant(tokens, i)
	return next >= 0 && tokens[next].IsSymbol("(")
}

// isReplacementScan reports whether the string literal tokens[i] directly
// follows FROM or JOIN and names a file with a supported extension or an
// existing regular file, which is then read as delimited text.
func isReplacementScan(tokens []sqlscan.Token, i int) bool {
	prev := sqlscan.PrevSignificant(tokens, i)
	if prev < 0 || !(tokens[prev].IsWord("FROM") || tokens[prev].IsWord("JOIN")) {
		return false
	}
	path := sqlscan.Unquote(tokens[i])
	if isSupportedFile(path) {
		return true
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// parseTableFunction parses the call starting at tokens[i] and returns its
// load spec and the index of the closing parenthesis.
func parseTableFunction(tokens []sqlscan.Token, i int) (loadSpec, int, error) {
	name := strings.ToLower(tokens[i].Text)
	fn, _ := lookupTableFunction(name)

	open := sqlscan.NextSignificant(tokens, i)
	end := sqlscan.MatchParen(tokens, open)
	if end < 0 {
		return loadSpec{}, 0, fmt.Errorf("%w: %s: missing closing parenthesis", ErrInvalidTableFunction, name)
	}

	args := splitArguments(tokens[open+1 : end])
	if len(args) == 0 || len(args[0]) != 1 || args[0][0].Kind != sqlscan.String {
		if len(args) > 0 && len(args[0]) == 1 && args[0][0].Kind == sqlscan.Placeholder {
			return loadSpec{}, 0, fmt.Errorf("%w: %s: unsubstituted placeholder %s", ErrInvalidTableFunction, name, args[0][0].Text)
		}
		return loadSpec{}, 0, fmt.Errorf("%w: %s: first argument must be a quoted file path", ErrInvalidTableFunction, name)
	}

	path := sqlscan.Unquote(args[0][0])
	format := fn.format
	if fn.detect {
		if detected := DetectFormat(path); detected != FormatUnsupported {
			format = detected
		}
	}
	spec := newLoadSpec(path, format)

	for _, arg := range args[1:] {
		if err := applyOption(&spec, name, arg); err != nil {
			return loadSpec{}, 0, err
		}
	}
	return spec, end, nil
}

// splitArguments splits the significant tokens between a call's parentheses on top-level commas.
func splitArguments(tokens []sqlscan.Token) [][]sqlscan.Token {
	var (
		args    [][]sqlscan.Token
		current []sqlscan.Token
		depth   int
		seen    bool
	)
	for _, tok := range tokens {
		if tok.IsTrivia() {
			continue
		}
		seen = true
		switch {
		case tok.IsSymbol("("):
			depth++
		case tok.IsSymbol(")"):
			depth--
		case tok.IsSymbol(",") && depth == 0:
			args = append(args, current)
			current = nil
			continue
		}
		current = append(current, tok)
	}
	if seen {
		args = append(args, current)
	}
	return args
}

// applyOption applies one name = value argument to spec.
func applyOption(spec *loadSpec, fn string, arg []sqlscan.Token) error {
	if len(arg) < 3 || arg[0].Kind != sqlscan.Word || !arg[1].IsSymbol("=") {
		return fmt.Errorf("%w: %s: options must be written as name = value, got %q", ErrInvalidTableFunction, fn, sqlscan.Join(arg))
	}
	option := strings.ToLower(arg[0].Text)
	value, err := optionValue(arg[2:])
	if err != nil {
		return fmt.Errorf("%w: %s: option %s: %w", ErrInvalidTableFunction, fn, option, err)
	}

	switch option {
	case "delim", "sep", "delimiter":
		if spec.format != FormatDelimited {
			return fmt.Errorf("%w: %s: option %s applies to delimited files only", ErrInvalidTableFunction, fn, option)
		}
		r, err := parseDelimiter(value)
		if err != nil {
			return fmt.Errorf("%w: %s: option %s: %w", ErrInvalidTableFunction, fn, option, err)
		}
		spec.delimiter = r
	case "header":
		b, err := strconv.ParseBool(strings.ToLower(value))
		if err != nil {
			return fmt.Errorf("%w: %s: option header: %q is not a boolean", ErrInvalidTableFunction, fn, value)
		}
		spec.header = b
	case "all_varchar":
		b, err := strconv.ParseBool(strings.ToLower(value))
		if err != nil {
			return fmt.Errorf("%w: %s: option all_varchar: %q is not a boolean", ErrInvalidTableFunction, fn, value)
		}
		spec.allVarchar = b
	case "sample_size":
		n, err := strconv.Atoi(value)
		if err != nil || n == 0 || n < -1 {
			return fmt.Errorf("%w: %s: option sample_size: %q must be a positive integer or -1", ErrInvalidTableFunction, fn, value)
		}
		spec.sampleRows = n
	case "sheet":
		if spec.format != FormatXLSX {
			return fmt.Errorf("%w: %s: option sheet applies to xlsx files only", ErrInvalidTableFunction, fn)
		}
		spec.sheet = value
	default:
		return fmt.Errorf("%w: %s: unknown option %s", ErrInvalidTableFunction, fn, option)
	}
	return nil
}

// optionValue returns the value of an option from its tokens: a quoted
// string, a number with an optional sign or a bare word such as true.
func optionValue(tokens []sqlscan.Token) (string, error) {
	switch {
	case len(tokens) == 1 && tokens[0].Kind == sqlscan.String:
		return sqlscan.Unquote(tokens[0]), nil
	case len(tokens) == 1 && (tokens[0].Kind == sqlscan.Number || tokens[0].Kind == sqlscan.Word):
		return tokens[0].Text, nil
	case len(tokens) == 2 && (tokens[0].IsSymbol("-") || tokens[0].IsSymbol("+")) && tokens[1].Kind == sqlscan.Number:
		return tokens[0].Text + tokens[1].Text, nil
	default:
		return "", fmt.Errorf("unsupported value %q", sqlscan.Join(tokens))
	}
}

// parseDelimiter accepts a single character or the escape \t.
func parseDelimiter(value string) (rune, error) {
	if value == `\t` {
		return '\t', nil
	}
	if utf8.RuneCountInString(value) != 1 {
		return 0, fmt.Errorf("delimiter %q must be a single character", value)
	}
	r, _ := utf8.DecodeRuneInString(value)
	if r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, fmt.Errorf("delimiter %q is not allowed", value)
	}
	return r, nil
}

// ensureLoaded returns the table holding spec, loading the file on first use.
func (e *Engine) ensureLoaded(ctx context.Context, spec loadSpec) (string, error) {
	key := spec.key()
	if name, ok := e.loaded[key]; ok {
		return name, nil
	}
	if spec.format == FormatUnsupported {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, spec.path)
	}
	if spec.sampleRows == 0 {
		spec.sampleRows = e.sampleRows
	}

	name := e.uniqueTableName(tableBaseName(spec.path))
	l := &tableLoader{db: e.db, logger: e.logger, chunkSize: e.chunkSize}
	if err := l.load(ctx, spec, name); err != nil {
		delete(e.tables, strings.ToLower(name))
		return "", err
	}
	e.loaded[key] = name
	return name, nil
}
