package model

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultSampleRows is the number of leading records used for type inference.
const DefaultSampleRows = 1000

// InferColumnsInfo infers column information from header and the sampled records.
// Columns without any non-empty value are TEXT.
func InferColumnsInfo(header Header, records []Record) []ColumnInfo {
	columns := make([]ColumnInfo, len(header))
	for i, name := range header {
		values := make([]string, 0, len(records))
		for _, record := range records {
			if i < len(record) {
				values = append(values, record[i])
			}
		}
		columns[i] = ColumnInfo{Name: name, Type: InferColumnType(values)}
	}
	return columns
}

// TextColumnsInfo returns column information with every column typed as TEXT.
func TextColumnsInfo(header Header) []ColumnInfo {
	columns := make([]ColumnInfo, len(header))
	for i, name := range header {
		columns[i] = ColumnInfo{Name: name, Type: ColumnTypeText}
	}
	return columns
}

// InferColumnType infers the SQL column type from a slice of string values.
// Empty values are ignored. A single value that is neither a number nor a
// date or time makes the column TEXT. Otherwise the priority is
// DATETIME > REAL > INTEGER.
func InferColumnType(values []string) ColumnType {
	hasInteger := false
	hasReal := false
	hasDatetime := false

	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		switch classifyValue(value) {
		case ColumnTypeInteger:
			hasInteger = true
		case ColumnTypeReal:
			hasReal = true
		case ColumnTypeDatetime:
			hasDatetime = true
		default:
			return ColumnTypeText
		}
	}

	if hasDatetime {
		return ColumnTypeDatetime
	}
	if hasReal {
		return ColumnTypeReal
	}
	if hasInteger {
		return ColumnTypeInteger
	}
	return ColumnTypeText
}

// classifyValue determines the type of a single non-empty value
func classifyValue(value string) ColumnType {
	if isDatetime(value) {
		return ColumnTypeDatetime
	}
	if hasLeadingZero(value) {
		// Identifiers such as zip codes lose their zeros as numbers.
		return ColumnTypeText
	}
	if isInteger(value) {
		return ColumnTypeInteger
	}
	if isFloat(value) {
		return ColumnTypeReal
	}
	return ColumnTypeText
}

// hasLeadingZero reports values like "007" or "-01" but not "0" or "0.5".
func hasLeadingZero(value string) bool {
	digits := strings.TrimLeft(value, "+-")
	return len(digits) > 1 && digits[0] == '0' && digits[1] >= '0' && digits[1] <= '9'
}

// isInteger checks if a value is an integer
func isInteger(value string) bool {
	first := value[0]
	if first != '+' && first != '-' && (first < '0' || first > '9') {
		return false
	}
	_, err := strconv.ParseInt(value, 10, 64)
	return err == nil
}

// isFloat checks if a value is a finite decimal number.
// strconv.ParseFloat also accepts "inf", "nan" and hex floats, which stay TEXT here.
func isFloat(value string) bool {
	hasDigit := false
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r == '.' || r == 'e' || r == 'E' || r == '+' || r == '-':
		default:
			return false
		}
	}
	if !hasDigit {
		return false
	}
	_, err := strconv.ParseFloat(value, 64)
	return err == nil
}

// datetimeLayouts lists the accepted date and time shapes with the layouts tried for each
var datetimeLayouts = []struct {
	pattern *regexp.Regexp
	layouts []string
}{
	// ISO8601 with a zone
	{regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})$`), []string{time.RFC3339Nano}},
	// ISO8601 without a zone, T or space separated
	{regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}(:\d{2}(\.\d+)?)?$`), []string{
		"2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999", "2006-01-02T15:04", "2006-01-02 15:04",
	}},
	{regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`), []string{time.DateOnly}},
	// US
	{regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4} \d{1,2}:\d{2}:\d{2}( (AM|PM))?$`), []string{"1/2/2006 15:04:05", "1/2/2006 3:04:05 PM"}},
	{regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`), []string{"1/2/2006"}},
	// European
	{regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4} \d{1,2}:\d{2}:\d{2}$`), []string{"2.1.2006 15:04:05"}},
	{regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4}$`), []string{"2.1.2006"}},
	// time of day
	{regexp.MustCompile(`^\d{1,2}:\d{2}:\d{2}(\.\d+)?$`), []string{"15:04:05.999999999"}},
	{regexp.MustCompile(`^\d{1,2}:\d{2}$`), []string{"15:04"}},
}

// isDatetime reports whether value is a valid date, time or timestamp in one of the accepted shapes.
// Shapes match first so that "2024-02-30" is rejected by time.Parse.
func isDatetime(value string) bool {
	for _, dl := range datetimeLayouts {
		if !dl.pattern.MatchString(value) {
			continue
		}
		for _, layout := range dl.layouts {
			if _, err := time.Parse(layout, value); err == nil {
				return true
			}
		}
	}
	return false
}
