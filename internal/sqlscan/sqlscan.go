// Package sqlscan splits SQL text into lossless tokens.
//
// Concatenating the Text of every token returned by Scan reproduces the input
// exactly, so callers can rewrite single tokens and render the statement back
// without disturbing literals, quoted identifiers or comments.
package sqlscan

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrUnterminated is returned when a literal, quoted identifier or block comment is not closed
var ErrUnterminated = errors.New("unterminated token")

// Kind is the lexical class of a token.
type Kind int

const (
	// Space is a run of whitespace
	Space Kind = iota
	// Comment is a -- line comment or a /* */ block comment
	Comment
	// String is a single-quoted literal
	String
	// QuotedIdent is a "double-quoted", `backquoted` or [bracketed] identifier
	QuotedIdent
	// Word is a bare identifier or keyword
	Word
	// Number is a numeric literal
	Number
	// Placeholder is a {name} template placeholder
	Placeholder
	// Symbol is any other character or operator
	Symbol
)

var kindNames = [...]string{
	Space:       "space",
	Comment:     "comment",
	String:      "string",
	QuotedIdent: "quoted identifier",
	Word:        "word",
	Number:      "number",
	Placeholder: "placeholder",
	Symbol:      "symbol",
}

// String returns the kind name.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Token is one lexical unit. Text is the raw source text including quotes.
type Token struct {
	Kind Kind
	Text string
	Pos  int
}

// IsTrivia reports whether the token carries no meaning for the statement.
func (t Token) IsTrivia() bool {
	return t.Kind == Space || t.Kind == Comment
}

// IsWord reports whether the token is the bare word w, ignoring case.
func (t Token) IsWord(w string) bool {
	return t.Kind == Word && strings.EqualFold(t.Text, w)
}

// IsSymbol reports whether the token is the symbol s.
func (t Token) IsSymbol(s string) bool {
	return t.Kind == Symbol && t.Text == s
}

type scanner struct {
	src string
	pos int
}

// Scan splits src into tokens.
func Scan(src string) ([]Token, error) {
	sc := &scanner{src: src}
	var tokens []Token
	for sc.pos < len(sc.src) {
		tok, err := sc.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

// Join concatenates token texts.
func Join(tokens []Token) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t.Text)
	}
	return b.String()
}

func (sc *scanner) peekByte(n int) byte {
	if sc.pos+n >= len(sc.src) {
		return 0
	}
	return sc.src[sc.pos+n]
}

func (sc *scanner) emit(kind Kind, start int) Token {
	return Token{Kind: kind, Text: sc.src[start:sc.pos], Pos: start}
}

func (sc *scanner) next() (Token, error) {
	start := sc.pos
	r, size := utf8.DecodeRuneInString(sc.src[sc.pos:])

	switch {
	case unicode.IsSpace(r):
		for sc.pos < len(sc.src) {
			r, size := utf8.DecodeRuneInString(sc.src[sc.pos:])
			if !unicode.IsSpace(r) {
				break
			}
			sc.pos += size
		}
		return sc.emit(Space, start), nil
	case r == '-' && sc.peekByte(1) == '-':
		if i := strings.IndexByte(sc.src[sc.pos:], '\n'); i >= 0 {
			sc.pos += i
		} else {
			sc.pos = len(sc.src)
		}
		return sc.emit(Comment, start), nil
	case r == '/' && sc.peekByte(1) == '*':
		i := strings.Index(sc.src[sc.pos+2:], "*/")
		if i < 0 {
			return Token{}, fmt.Errorf("%w: block comment at offset %d", ErrUnterminated, start)
		}
		sc.pos += 2 + i + 2
		return sc.emit(Comment, start), nil
	case r == '\'':
		return sc.quoted(String, '\'', start)
	case r == '"':
		return sc.quoted(QuotedIdent, '"', start)
	case r == '`':
		return sc.quoted(QuotedIdent, '`', start)
	case r == '[':
		// An unclosed [ is left for the engine to reject.
		i := strings.IndexByte(sc.src[sc.pos:], ']')
		if i < 0 {
			sc.pos += size
			return sc.emit(Symbol, start), nil
		}
		sc.pos += i + 1
		return sc.emit(QuotedIdent, start), nil
	case r == '{':
		if n := placeholderLen(sc.src[sc.pos:]); n > 0 {
			sc.pos += n
			return sc.emit(Placeholder, start), nil
		}
		sc.pos += size
		return sc.emit(Symbol, start), nil
	case isDigit(r) || (r == '.' && isDigit(rune(sc.peekByte(1)))):
		sc.number()
		return sc.emit(Number, start), nil
	case isWordStart(r):
		for sc.pos < len(sc.src) {
			r, size := utf8.DecodeRuneInString(sc.src[sc.pos:])
			if !isWordPart(r) {
				break
			}
			sc.pos += size
		}
		return sc.emit(Word, start), nil
	default:
		sc.pos += size
		if sc.pos < len(sc.src) && isTwoCharOperator(sc.src[start:sc.pos+1]) {
			sc.pos++
		}
		return sc.emit(Symbol, start), nil
	}
}

// quoted consumes a token delimited by q where a doubled q is an escaped q.
func (sc *scanner) quoted(kind Kind, q byte, start int) (Token, error) {
	sc.pos++
	for sc.pos < len(sc.src) {
		if sc.src[sc.pos] == q {
			if sc.peekByte(1) == q {
				sc.pos += 2
				continue
			}
			sc.pos++
			return sc.emit(kind, start), nil
		}
		sc.pos++
	}
	return Token{}, fmt.Errorf("%w: %s at offset %d", ErrUnterminated, kind, start)
}

func (sc *scanner) number() {
	for sc.pos < len(sc.src) {
		c := sc.src[sc.pos]
		switch {
		case c >= '0' && c <= '9', c == '.', c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
			sc.pos++
			if (c == 'e' || c == 'E') && (sc.peekByte(0) == '+' || sc.peekByte(0) == '-') {
				sc.pos++
			}
		default:
			return
		}
	}
}

// placeholderLen returns the length of a {name} placeholder at the start of s, or 0.
func placeholderLen(s string) int {
	end := strings.IndexByte(s, '}')
	if end < 2 {
		return 0
	}
	for _, r := range s[1:end] {
		if !isWordPart(r) {
			return 0
		}
	}
	return end + 1
}

func isTwoCharOperator(s string) bool {
	switch s {
	case "<=", ">=", "<>", "!=", "==", "||", "<<", ">>", "->":
		return true
	}
	return false
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isWordStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isWordPart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Unquote returns the value of a String or QuotedIdent token with quotes removed
// and doubled quote characters collapsed. Other tokens are returned as is.
func Unquote(t Token) string {
	if (t.Kind != String && t.Kind != QuotedIdent) || len(t.Text) < 2 {
		return t.Text
	}
	open := t.Text[0]
	inner := t.Text[1 : len(t.Text)-1]
	switch open {
	case '[':
		return inner
	case '\'':
		return strings.ReplaceAll(inner, "''", "'")
	default:
		q := string(open)
		return strings.ReplaceAll(inner, q+q, q)
	}
}

// QuoteString renders s as a single-quoted SQL literal.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// QuoteIdent renders s as a double-quoted SQL identifier.
func QuoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
