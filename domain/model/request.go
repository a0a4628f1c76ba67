package model

import (
	"fmt"
	"strings"
)

// Mode is the kind of work one invocation performs.
type Mode int

const (
	// ModePreview prints the first rows of the file
	ModePreview Mode = iota
	// ModeShowColumns prints column names and types
	ModeShowColumns
	// ModeCount prints the number of rows
	ModeCount
	// ModeShowSafe prints the original to SQL-safe column mapping
	ModeShowSafe
	// ModeCustomQuery runs a user supplied query template
	ModeCustomQuery
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModePreview:
		return "preview"
	case ModeShowColumns:
		return "show-columns"
	case ModeCount:
		return "count"
	case ModeShowSafe:
		return "show-safe"
	case ModeCustomQuery:
		return "custom-query"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Request is one query invocation. It is built once and never modified.
type Request struct {
	path     string
	mode     Mode
	query    string
	sanitize bool
}

// NewRequest validates the combination of mode, query and sanitize.
// A custom query needs a non-blank query text and sanitize is only
// allowed together with a custom query.
func NewRequest(path string, mode Mode, query string, sanitize bool) (Request, error) {
	if mode < ModePreview || mode > ModeCustomQuery {
		return Request{}, fmt.Errorf("%w: unknown mode %s", ErrInvalidRequest, mode)
	}
	if mode == ModeCustomQuery && strings.TrimSpace(query) == "" {
		return Request{}, fmt.Errorf("%w: query must not be empty", ErrInvalidRequest)
	}
	if mode != ModeCustomQuery && query != "" {
		return Request{}, fmt.Errorf("%w: query cannot be combined with %s", ErrInvalidRequest, mode)
	}
	if sanitize && mode != ModeCustomQuery {
		return Request{}, fmt.Errorf("%w: sanitize requires a query", ErrInvalidRequest)
	}
	return Request{path: path, mode: mode, query: query, sanitize: sanitize}, nil
}

// Path returns the input file path.
func (r Request) Path() string { return r.path }

// Mode returns the request mode.
func (r Request) Mode() Mode { return r.mode }

// Query returns the query template. It is empty unless the mode is ModeCustomQuery.
func (r Request) Query() string { return r.query }

// Sanitize reports whether the query runs against sanitized column names.
func (r Request) Sanitize() bool { return r.sanitize }
