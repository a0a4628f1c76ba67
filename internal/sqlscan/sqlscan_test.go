package sqlscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(tokens []Token) []Kind {
	out := make([]Kind, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, t.Kind)
	}
	return out
}

func significant(tokens []Token) []Token {
	var out []Token
	for _, t := range tokens {
		if !t.IsTrivia() {
			out = append(out, t)
		}
	}
	return out
}

func TestScan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		src   string
		kinds []Kind
		texts []string
	}{
		{
			name:  "simple select",
			src:   "SELECT * FROM t",
			kinds: []Kind{Word, Space, Symbol, Space, Word, Space, Word},
			texts: []string{"SELECT", " ", "*", " ", "FROM", " ", "t"},
		},
		{
			name:  "table function with placeholder literal",
			src:   "read_csv_auto('{csv}')",
			kinds: []Kind{Word, Symbol, String, Symbol},
			texts: []string{"read_csv_auto", "(", "'{csv}'", ")"},
		},
		{
			name:  "bare placeholder",
			src:   "FROM {csv}",
			kinds: []Kind{Word, Space, Placeholder},
			texts: []string{"FROM", " ", "{csv}"},
		},
		{
			name:  "escaped quote in literal",
			src:   "'it''s'",
			kinds: []Kind{String},
			texts: []string{"'it''s'"},
		},
		{
			name:  "quoted identifiers",
			src:   "\"Game ID\" `x` [y z]",
			kinds: []Kind{QuotedIdent, Space, QuotedIdent, Space, QuotedIdent},
			texts: []string{"\"Game ID\"", " ", "`x`", " ", "[y z]"},
		},
		{
			name:  "comments",
			src:   "-- {csv}\n/* '{csv}' */x",
			kinds: []Kind{Comment, Space, Comment, Word},
			texts: []string{"-- {csv}", "\n", "/* '{csv}' */", "x"},
		},
		{
			name:  "numbers and operators",
			src:   "a>=1.5e+3<>.5",
			kinds: []Kind{Word, Symbol, Number, Symbol, Number},
			texts: []string{"a", ">=", "1.5e+3", "<>", ".5"},
		},
		{
			name:  "brace that is not a placeholder",
			src:   "{ }",
			kinds: []Kind{Symbol, Space, Symbol},
			texts: []string{"{", " ", "}"},
		},
		{
			name:  "unicode word",
			src:   "größe",
			kinds: []Kind{Word},
			texts: []string{"größe"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tokens, err := Scan(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.kinds, kinds(tokens))
			texts := make([]string, len(tokens))
			for i, tok := range tokens {
				texts[i] = tok.Text
			}
			assert.Equal(t, tt.texts, texts)
			assert.Equal(t, tt.src, Join(tokens))
		})
	}
}

func TestScan_Unterminated(t *testing.T) {
	t.Parallel()

	for _, src := range []string{"'abc", "\"abc", "`abc", "/* abc", "SELECT 'it''s"} {
		t.Run(src, func(t *testing.T) {
			t.Parallel()

			_, err := Scan(src)
			assert.ErrorIs(t, err, ErrUnterminated)
		})
	}
}

func TestScan_UnclosedBracket(t *testing.T) {
	t.Parallel()

	src := "SELECT [a FROM t]x WHERE [b"
	tokens, err := Scan(src)
	require.NoError(t, err)
	assert.Equal(t, src, Join(tokens))

	sig := significant(tokens)
	assert.Equal(t, QuotedIdent, sig[1].Kind)
	assert.Equal(t, "[a FROM t]", sig[1].Text)
	last := sig[len(sig)-2]
	assert.True(t, last.IsSymbol("["), "got %+v", last)
	assert.Equal(t, "b", sig[len(sig)-1].Text)
}

func TestScan_Positions(t *testing.T) {
	t.Parallel()

	src := "SELECT x FROM 'a.csv'"
	tokens, err := Scan(src)
	require.NoError(t, err)
	for _, tok := range tokens {
		assert.Equal(t, tok.Text, src[tok.Pos:tok.Pos+len(tok.Text)])
	}
}

func TestToken_Helpers(t *testing.T) {
	t.Parallel()

	tokens, err := Scan("select x from t -- c")
	require.NoError(t, err)
	sig := significant(tokens)
	require.Len(t, sig, 4)
	assert.True(t, sig[0].IsWord("SELECT"))
	assert.True(t, sig[2].IsWord("From"))
	assert.False(t, sig[1].IsWord("y"))
	assert.True(t, tokens[len(tokens)-1].IsTrivia())

	tokens, err = Scan("f(a)")
	require.NoError(t, err)
	assert.True(t, tokens[1].IsSymbol("("))
	assert.False(t, tokens[0].IsSymbol("f"))
}

func TestUnquote(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text     string
		kind     Kind
		expected string
	}{
		{"'it''s'", String, "it's"},
		{"'{csv}'", String, "{csv}"},
		{"\"a\"\"b\"", QuotedIdent, "a\"b"},
		{"`a``b`", QuotedIdent, "a`b"},
		{"[a b]", QuotedIdent, "a b"},
		{"word", Word, "word"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, Unquote(Token{Kind: tt.kind, Text: tt.text}), tt.text)
	}
}

func TestQuote(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "'C:\\data\\o''brien.csv'", QuoteString(`C:\data\o'brien.csv`))
	assert.Equal(t, `"Game ""ID"""`, QuoteIdent(`Game "ID"`))
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "placeholder", Placeholder.String())
	assert.Equal(t, "quoted identifier", QuotedIdent.String())
	assert.Equal(t, "kind(42)", Kind(42).String())
}

func FuzzScan(f *testing.F) {
	for _, seed := range []string{
		"SELECT * FROM read_csv_auto('{csv}') LIMIT 10",
		"select \"a\"\"b\" from {csv} -- x",
		"/* c */ 'x''y' [z] `w`",
		"{", "'", "1e+",
	} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, src string) {
		tokens, err := Scan(src)
		if err != nil {
			return
		}
		if got := Join(tokens); got != src {
			t.Fatalf("Join(Scan(%q)) = %q", src, got)
		}
		for _, tok := range tokens {
			if tok.Text == "" {
				t.Fatalf("empty token in %q", src)
			}
		}
	})
}
