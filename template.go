package qcsv

import (
	"fmt"
	"strings"

	"github.com/nao1215/qcsv/domain/model"
	"github.com/nao1215/qcsv/internal/sqlscan"
)

// Placeholder is replaced with a reference to the input file.
const Placeholder = "{csv}"

// Query templates for the fixed modes.
const (
	previewTemplate = "SELECT * FROM read_csv_auto('" + Placeholder + "') LIMIT %d"
	countTemplate   = "SELECT COUNT(*) AS row_count FROM read_csv_auto('" + Placeholder + "')"
	schemaTemplate  = "SELECT * FROM read_csv_auto('" + Placeholder + "') LIMIT 0"
)

// DefaultPreviewRows is the number of rows printed by the preview mode.
const DefaultPreviewRows = 10

// MaxSubqueryColumns is the number of columns shown in the example subquery of SanitizedSubquery.
const MaxSubqueryColumns = 20

// Substitute replaces every {csv} placeholder outside comments with a reference to path.
//
// Inside a string literal the placeholder is replaced in place, so
// 'data/{csv}' keeps being one literal. A bare {csv} or a quoted identifier
// consisting of exactly "{csv}" becomes the literal 'path'. A placeholder
// inside a longer quoted identifier is replaced inside the identifier.
//
// When mapping is not nil, every file reference (a table function call whose
// first argument is the file, or the quoted file directly after FROM or JOIN)
// is wrapped in a subquery that aliases each original column to its safe name.
//
// Errors wrap ErrQueryTemplate.
func Substitute(tmpl, path string, mapping model.ColumnMapping) (string, error) {
	if mapping == nil {
		tokens, _, err := substituteTokens(tmpl, path)
		if err != nil {
			return "", err
		}
		return sqlscan.Join(tokens), nil
	}
	return SubstituteSanitized(tmpl, path, func(string) (model.ColumnMapping, error) {
		return mapping, nil
	})
}

// MappingFunc returns the column mapping of one file reference, given as its
// SQL text such as read_csv_auto('data.csv', header=false).
type MappingFunc func(reference string) (model.ColumnMapping, error)

// SubstituteSanitized substitutes path like Substitute and wraps every file
// reference in a subquery aliasing the columns mappingFor returns for that
// reference. References differing in their options can have different columns.
// Errors from mappingFor are returned unchanged.
func SubstituteSanitized(tmpl, path string, mappingFor MappingFunc) (string, error) {
	tokens, substituted, err := substituteTokens(tmpl, path)
	if err != nil {
		return "", err
	}
	return wrapFileReferences(tokens, substituted, mappingFor)
}

// substituteTokens scans tmpl and replaces each placeholder. substituted marks the replaced tokens.
func substituteTokens(tmpl, path string) ([]sqlscan.Token, []bool, error) {
	tokens, err := sqlscan.Scan(tmpl)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrQueryTemplate, err)
	}

	substituted := make([]bool, len(tokens))
	found := 0
	for i, tok := range tokens {
		switch tok.Kind {
		case sqlscan.Placeholder:
			if tok.Text != Placeholder {
				continue
			}
			tokens[i] = sqlscan.Token{Kind: sqlscan.String, Text: sqlscan.QuoteString(path), Pos: tok.Pos}
		case sqlscan.String:
			value := sqlscan.Unquote(tok)
			if !strings.Contains(value, Placeholder) {
				continue
			}
			tokens[i].Text = sqlscan.QuoteString(strings.ReplaceAll(value, Placeholder, path))
		case sqlscan.QuotedIdent:
			value := sqlscan.Unquote(tok)
			switch {
			case value == Placeholder:
				tokens[i] = sqlscan.Token{Kind: sqlscan.String, Text: sqlscan.QuoteString(path), Pos: tok.Pos}
			case strings.Contains(value, Placeholder):
				tokens[i].Text = sqlscan.QuoteIdent(strings.ReplaceAll(value, Placeholder, path))
			default:
				continue
			}
		default:
			continue
		}
		substituted[i] = true
		found++
	}

	if found == 0 {
		return nil, nil, ErrMissingPlaceholder
	}
	return tokens, substituted, nil
}

// wrapFileReferences rewrites each file reference into a subquery with sanitized aliases.
func wrapFileReferences(tokens []sqlscan.Token, substituted []bool, mappingFor MappingFunc) (string, error) {
	var b strings.Builder
	wrapped := 0
	for i := 0; i < len(tokens); i++ {
		end := fileReferenceEnd(tokens, substituted, i)
		if end < 0 {
			b.WriteString(tokens[i].Text)
			continue
		}
		reference := sqlscan.Join(tokens[i : end+1])
		mapping, err := mappingFor(reference)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "(SELECT %s FROM %s)", aliasList(mapping), reference)
		wrapped++
		i = end
	}

	if wrapped == 0 {
		return "", fmt.Errorf("%w: no table function or FROM clause reads the file", ErrMissingPlaceholder)
	}
	return b.String(), nil
}

// fileReferenceEnd returns the index of the last token of the file reference
// starting at i, or -1 when no file reference starts there.
func fileReferenceEnd(tokens []sqlscan.Token, substituted []bool, i int) int {
	tok := tokens[i]

	if tok.Kind == sqlscan.Word {
		if _, ok := lookupTableFunction(tok.Text); !ok {
			return -1
		}
		open := sqlscan.NextSignificant(tokens, i)
		if open < 0 || !tokens[open].IsSymbol("(") {
			return -1
		}
		arg := sqlscan.NextSignificant(tokens, open)
		if arg < 0 || !substituted[arg] {
			return -1
		}
		return sqlscan.MatchParen(tokens, open)
	}

	if tok.Kind == sqlscan.String && substituted[i] {
		prev := sqlscan.PrevSignificant(tokens, i)
		if prev >= 0 && (tokens[prev].IsWord("FROM") || tokens[prev].IsWord("JOIN")) {
			return i
		}
	}
	return -1
}

// aliasList renders `"Original" AS safe, ...` for the mapping.
func aliasList(mapping model.ColumnMapping) string {
	items := make([]string, len(mapping))
	for i, p := range mapping {
		items[i] = sqlscan.QuoteIdent(p.Original) + " AS " + p.Safe
	}
	return strings.Join(items, ", ")
}

// BuildQuery returns the statement that serves req.
// previewRows below 1 selects DefaultPreviewRows. The mapping is only used for
// a sanitized custom query, where it must not be nil.
func BuildQuery(req model.Request, mapping model.ColumnMapping, previewRows int) (string, error) {
	if previewRows < 1 {
		previewRows = DefaultPreviewRows
	}

	switch req.Mode() {
	case model.ModePreview:
		return Substitute(fmt.Sprintf(previewTemplate, previewRows), req.Path(), nil)
	case model.ModeCount:
		return Substitute(countTemplate, req.Path(), nil)
	case model.ModeShowColumns, model.ModeShowSafe:
		return Substitute(schemaTemplate, req.Path(), nil)
	case model.ModeCustomQuery:
		if !req.Sanitize() {
			return Substitute(req.Query(), req.Path(), nil)
		}
		if mapping == nil {
			return "", fmt.Errorf("%w: sanitize requires a column mapping", ErrQueryTemplate)
		}
		return Substitute(req.Query(), req.Path(), mapping)
	default:
		return "", fmt.Errorf("%w: unknown mode %s", ErrQueryTemplate, req.Mode())
	}
}

// SchemaQuery returns the statement that yields the columns of path without rows.
func SchemaQuery(path string) string {
	return strings.ReplaceAll(schemaTemplate, "'"+Placeholder+"'", sqlscan.QuoteString(path))
}

// ReferenceSchemaQuery returns the statement that yields the columns of a
// file reference, such as read_xlsx('book.xlsx', sheet='B'), without rows.
func ReferenceSchemaQuery(reference string) string {
	return "SELECT * FROM " + reference + " LIMIT 0"
}

// SanitizedSubquery renders a subquery over path that aliases the first
// limit columns of mapping to their safe names, followed by "AS data".
// limit below 1 shows every column.
func SanitizedSubquery(path string, mapping model.ColumnMapping, limit int) string {
	if limit > 0 && len(mapping) > limit {
		mapping = mapping[:limit]
	}
	return fmt.Sprintf("(SELECT %s FROM read_csv_auto(%s)) AS data", aliasList(mapping), sqlscan.QuoteString(path))
}
