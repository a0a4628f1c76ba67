// Package model provides domain model for qcsv
package model

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Header holds the column names of a file in order.
type Header []string

// NewHeader returns h as a Header.
func NewHeader(h []string) Header {
	return Header(h)
}

// Equal reports whether both headers hold the same names in the same order.
func (h Header) Equal(h2 Header) bool {
	return slices.Equal(h, h2)
}

// Normalize returns a copy of the header that can be used as SQLite column names.
// A leading UTF-8 BOM is removed, empty names become "column<i>" and repeated
// names get "_1", "_2", ... suffixes in order of appearance.
func (h Header) Normalize() Header {
	out := make(Header, len(h))
	for i, name := range h {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		name = strings.TrimSpace(name)
		if name == "" {
			name = "column" + strconv.Itoa(i)
		}
		out[i] = name
	}

	// SQLite compares column names case-insensitively.
	claimed := make(map[string]bool, len(out))
	first := make([]bool, len(out))
	for i, name := range out {
		key := strings.ToLower(name)
		if !claimed[key] {
			claimed[key] = true
			first[i] = true
		}
	}
	for i, name := range out {
		if first[i] {
			continue
		}
		for n := 1; ; n++ {
			candidate := fmt.Sprintf("%s_%d", name, n)
			if !claimed[strings.ToLower(candidate)] {
				claimed[strings.ToLower(candidate)] = true
				out[i] = candidate
				break
			}
		}
	}
	return out
}

// GeneratedHeader returns "column0".."column<n-1>" for files read without a header row.
func GeneratedHeader(n int) Header {
	h := make(Header, n)
	for i := range h {
		h[i] = "column" + strconv.Itoa(i)
	}
	return h
}

// Record holds the fields of one row.
type Record []string

// NewRecord returns r as a Record.
func NewRecord(r []string) Record {
	return Record(r)
}

// Equal reports whether both records hold the same fields.
func (r Record) Equal(r2 Record) bool {
	return slices.Equal(r, r2)
}

// ColumnType represents the SQL column type
type ColumnType int

const (
	// ColumnTypeText represents TEXT column type
	ColumnTypeText ColumnType = iota
	// ColumnTypeInteger represents INTEGER column type
	ColumnTypeInteger
	// ColumnTypeReal represents REAL column type
	ColumnTypeReal
	// ColumnTypeDatetime represents DATETIME column type. Values are stored as written.
	ColumnTypeDatetime
)

const (
	sqlTypeText     = "TEXT"
	sqlTypeInteger  = "INTEGER"
	sqlTypeReal     = "REAL"
	sqlTypeDatetime = "DATETIME"
)

// String returns the SQL column type string
func (ct ColumnType) String() string {
	switch ct {
	case ColumnTypeInteger:
		return sqlTypeInteger
	case ColumnTypeReal:
		return sqlTypeReal
	case ColumnTypeDatetime:
		return sqlTypeDatetime
	default:
		return sqlTypeText
	}
}

// ColumnInfo represents column information with name and inferred type
type ColumnInfo struct {
	Name string
	Type ColumnType
}
