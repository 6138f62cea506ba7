package errors

import (
	"fmt"
	"strings"
)

// RecordError ties an AppError to the record (batch or seed row) it came from.
type RecordError struct {
	*AppError
	RecordID string `json:"record_id"`
	Source   string `json:"source,omitempty"`
	Line     int    `json:"line,omitempty"`
}

// Error prefixes the underlying message with the record location
func (e *RecordError) Error() string {
	location := e.RecordID
	if e.Source != "" {
		location = e.Source
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
		}
		if e.RecordID != "" {
			location += fmt.Sprintf(" (%s)", e.RecordID)
		}
	}
	if location == "" {
		return e.AppError.Error()
	}
	return fmt.Sprintf("%s: %s", location, e.AppError.Error())
}

// Unwrap exposes the AppError so Kind and errors.As see its code
func (e *RecordError) Unwrap() error {
	return e.AppError
}

// NewRecordError attaches record identity to err, wrapping it if needed
func NewRecordError(recordID string, err error) *RecordError {
	if err == nil {
		return nil
	}
	appErr := WrapIfNeeded(err, CategoryInternal, CodeUnexpectedError, err.Error())
	return &RecordError{AppError: appErr, RecordID: recordID}
}

// AtLine sets the seed file location of the error
func (e *RecordError) AtLine(source string, line int) *RecordError {
	e.Source = source
	e.Line = line
	return e
}

// RecordErrorCollector gathers per-record failures during bulk operations
// that continue past individual errors.
type RecordErrorCollector struct {
	errors    []*RecordError
	maxErrors int
}

// NewRecordErrorCollector creates a collector. maxErrors <= 0 means unbounded.
func NewRecordErrorCollector(maxErrors int) *RecordErrorCollector {
	return &RecordErrorCollector{
		errors:    make([]*RecordError, 0),
		maxErrors: maxErrors,
	}
}

// Add records err and reports whether processing may continue
func (c *RecordErrorCollector) Add(err *RecordError) bool {
	if err == nil {
		return true
	}

	c.errors = append(c.errors, err)

	return c.maxErrors <= 0 || len(c.errors) < c.maxErrors
}

// HasErrors returns true if any errors have been collected
func (c *RecordErrorCollector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all collected errors
func (c *RecordErrorCollector) Errors() []*RecordError {
	return c.errors
}

// AppErrors converts all errors to the base AppError type
func (c *RecordErrorCollector) AppErrors() []*AppError {
	result := make([]*AppError, len(c.errors))
	for i, err := range c.errors {
		result[i] = err.AppError
	}
	return result
}

// Summary returns an error summary for all collected errors
func (c *RecordErrorCollector) Summary() *ErrorSummary {
	return NewErrorSummary(c.AppErrors())
}

// FormatRecordErrors renders collected failures for terminal output
func FormatRecordErrors(errs []*RecordError) string {
	if len(errs) == 0 {
		return "No record errors"
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("Found %d record errors:", len(errs)))

	maxDetailed := 10
	for i, err := range errs {
		if i == maxDetailed {
			lines = append(lines, fmt.Sprintf("  ... and %d more", len(errs)-maxDetailed))
			break
		}
		lines = append(lines, "  - "+err.Error())
	}

	return strings.Join(lines, "\n")
}
