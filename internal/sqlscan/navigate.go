package sqlscan

// NextSignificant returns the index of the first non-trivia token after i, or -1.
func NextSignificant(tokens []Token, i int) int {
	for j := i + 1; j < len(tokens); j++ {
		if !tokens[j].IsTrivia() {
			return j
		}
	}
	return -1
}

// PrevSignificant returns the index of the last non-trivia token before i, or -1.
func PrevSignificant(tokens []Token, i int) int {
	for j := i - 1; j >= 0; j-- {
		if !tokens[j].IsTrivia() {
			return j
		}
	}
	return -1
}

// MatchParen returns the index of the ")" closing the "(" at open, or -1
// when open is not a "(" or the parenthesis is never closed.
func MatchParen(tokens []Token, open int) int {
	if open < 0 || open >= len(tokens) || !tokens[open].IsSymbol("(") {
		return -1
	}
	depth := 0
	for j := open; j < len(tokens); j++ {
		switch {
		case tokens[j].IsSymbol("("):
			depth++
		case tokens[j].IsSymbol(")"):
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}
