package qcsv

import (
	"errors"
	"fmt"
	"strings"
)

// Standard error values. Callers test them with errors.Is.
var (
	// ErrFileNotFound indicates the input path does not name a readable file
	ErrFileNotFound = errors.New("qcsv: file not found")

	// ErrQueryTemplate indicates a query template that cannot be turned into a query
	ErrQueryTemplate = errors.New("qcsv: invalid query template")

	// ErrMissingPlaceholder indicates a template without a usable {csv} placeholder
	ErrMissingPlaceholder = fmt.Errorf("%w: missing %s placeholder", ErrQueryTemplate, Placeholder)

	// ErrInvalidTableFunction indicates a malformed table function call such as read_csv_auto
	ErrInvalidTableFunction = errors.New("qcsv: invalid table function call")

	// ErrUnsupportedFormat indicates an unsupported file format
	ErrUnsupportedFormat = errors.New("qcsv: unsupported file format")

	// ErrEmptyData indicates that the data source contains no header and no records
	ErrEmptyData = errors.New("qcsv: empty data source")

	// ErrInvalidData indicates malformed or invalid data
	ErrInvalidData = errors.New("qcsv: invalid data format")
)

// QueryError is returned by Engine.Query for every failure reported while
// preparing or running a statement. Its message is the underlying message
// without any prefix so it can be shown to the user as is.
type QueryError struct {
	// Query is the statement after placeholder substitution.
	Query string
	// Err is the underlying error.
	Err error
}

// Error returns the underlying error message.
func (e *QueryError) Error() string {
	if e.Err == nil {
		return "query failed"
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// ErrorContext provides context for where a load error occurred
type ErrorContext struct {
	Operation string
	FilePath  string
	TableName string
	Details   string
}

// newErrorContext creates a new error context
func newErrorContext(operation, filePath string) *ErrorContext {
	return &ErrorContext{
		Operation: operation,
		FilePath:  filePath,
	}
}

// withTable adds table context to the error
func (ec *ErrorContext) withTable(tableName string) *ErrorContext {
	ec.TableName = tableName
	return ec
}

// withDetails adds details to the error context
func (ec *ErrorContext) withDetails(details string) *ErrorContext {
	ec.Details = details
	return ec
}

// wrap creates a formatted error with context
func (ec *ErrorContext) wrap(baseErr error) error {
	parts := []string{ec.Operation + " failed"}
	if ec.FilePath != "" {
		parts = append(parts, "file: "+ec.FilePath)
	}
	if ec.TableName != "" {
		parts = append(parts, "table: "+ec.TableName)
	}
	if ec.Details != "" {
		parts = append(parts, "details: "+ec.Details)
	}

	context := strings.Join(parts, ", ")
	if baseErr != nil {
		return fmt.Errorf("%s: %w", context, baseErr)
	}
	return errors.New(context)
}
