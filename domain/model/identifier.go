package model

import (
	"fmt"
	"strings"
)

const (
	// fallbackIdentifier is used when nothing of the original name survives sanitizing
	fallbackIdentifier = "col"
	// digitPrefix is prepended to names that would start with a digit
	digitPrefix = "c_"
	// keywordSuffix is appended to names that collide with an SQLite keyword
	keywordSuffix = "_col"
)

// ColumnPair maps one original column name to its SQL-safe identifier.
type ColumnPair struct {
	// Original is the column name as the engine reports it.
	Original string
	// Safe is a bare identifier that can be used without quoting.
	Safe string
	// Disambiguated is true when Safe received a numeric suffix because
	// an earlier column sanitized to the same name.
	Disambiguated bool
}

// ColumnMapping is an ordered list of column pairs, one per header column.
type ColumnMapping []ColumnPair

// SafeNames returns the sanitized identifiers in column order.
func (m ColumnMapping) SafeNames() []string {
	names := make([]string, len(m))
	for i, p := range m {
		names[i] = p.Safe
	}
	return names
}

// Disambiguated returns the pairs whose identifier had to be suffixed.
func (m ColumnMapping) Disambiguated() []ColumnPair {
	var pairs []ColumnPair
	for _, p := range m {
		if p.Disambiguated {
			pairs = append(pairs, p)
		}
	}
	return pairs
}

// SanitizeIdentifier rewrites a single column name into a bare SQL identifier.
//
// The name is trimmed, every run of characters outside [0-9A-Za-z] becomes "_",
// leading and trailing underscores are removed and the result is lowercased.
// An empty result becomes "col", a leading digit gets a "c_" prefix and an
// SQLite keyword gets a "_col" suffix. Sanitizing an already sanitized name
// returns it unchanged.
func SanitizeIdentifier(name string) string {
	var b strings.Builder
	pendingUnderscore := false
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingUnderscore && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingUnderscore = false
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			if pendingUnderscore && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingUnderscore = false
			b.WriteRune(r + ('a' - 'A'))
		default:
			pendingUnderscore = true
		}
	}

	s := b.String()
	if s == "" {
		return fallbackIdentifier
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = digitPrefix + s
	}
	if IsKeyword(s) {
		s += keywordSuffix
	}
	return s
}

// SanitizeIdentifiers builds the column mapping for a header.
//
// The first column to produce a given identifier keeps it. Every later column
// producing the same identifier gets the smallest "_N" suffix (N >= 2) that no
// other column claims, so "Team Name" and "team-name" become "team_name" and
// "team_name_2". The result depends only on the header order.
func SanitizeIdentifiers(header []string) ColumnMapping {
	mapping := make(ColumnMapping, len(header))
	claimed := make(map[string]bool, len(header))
	first := make([]bool, len(header))

	for i, name := range header {
		safe := SanitizeIdentifier(name)
		mapping[i] = ColumnPair{Original: name, Safe: safe}
		if !claimed[safe] {
			claimed[safe] = true
			first[i] = true
		}
	}

	for i := range mapping {
		if first[i] {
			continue
		}
		base := mapping[i].Safe
		for n := 2; ; n++ {
			candidate := fmt.Sprintf("%s_%d", base, n)
			if !claimed[candidate] {
				claimed[candidate] = true
				mapping[i].Safe = candidate
				mapping[i].Disambiguated = true
				break
			}
		}
	}
	return mapping
}

// IsValidIdentifier reports whether s can be used as a bare identifier:
// a lowercase letter followed by lowercase letters, digits or single
// underscores, not ending in an underscore and not an SQLite keyword.
func IsValidIdentifier(s string) bool {
	if s == "" || s[0] < 'a' || s[0] > 'z' || s[len(s)-1] == '_' {
		return false
	}
	prev := byte(0)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '_':
			if prev == '_' {
				return false
			}
		default:
			return false
		}
		prev = c
	}
	return !IsKeyword(s)
}
