package errors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory groups error codes by the part of the system that failed
type ErrorCategory string

const (
	CategoryStore         ErrorCategory = "store"
	CategoryNotFound      ErrorCategory = "not_found"
	CategoryConflict      ErrorCategory = "conflict"
	CategoryValidation    ErrorCategory = "validation"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryParse         ErrorCategory = "parse"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode identifies an error kind for programmatic handling
type ErrorCode string

const (
	// Store errors
	CodeStoreUnavailable ErrorCode = "store_unavailable"
	CodeUpdateFailed     ErrorCode = "update_failed"

	// Lookup / identity errors
	CodeBatchNotFound       ErrorCode = "batch_not_found"
	CodeDuplicateIdentifier ErrorCode = "duplicate_identifier"

	// Validation errors
	CodeInvalidFilter   ErrorCode = "invalid_filter"
	CodeInvalidStatus   ErrorCode = "invalid_status"
	CodeInvalidAssignee ErrorCode = "invalid_assignee"
	CodeInvalidDate     ErrorCode = "invalid_date"
	CodeMissingField    ErrorCode = "missing_field"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Seed file errors
	CodeSeedFormat ErrorCode = "seed_format"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// AppError is the base error type for all application errors
type AppError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *AppError) GetExitCode() int {
	switch e.Category {
	case CategoryNotFound, CategoryConflict:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryInternal:
		return 5
	case CategoryStore:
		return 6
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *AppError) WithSuggestion(suggestion string) *AppError {
	e.Suggestion = suggestion
	return e
}

// New creates a new AppError
func New(category ErrorCategory, code ErrorCode, message string) *AppError {
	return &AppError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with AppError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	return &AppError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func build(err error, category ErrorCategory, code ErrorCode, message string) *AppError {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// StoreUnavailable reports that one of the logical stores could not be reached
func StoreUnavailable(store string, err error) *AppError {
	message := fmt.Sprintf("%s store unavailable", store)
	if err != nil {
		message = fmt.Sprintf("%s store unavailable: %v", store, err)
	}
	return build(err, CategoryStore, CodeStoreUnavailable, message).
		WithSuggestion("check that the database is running and the connection settings are correct").
		WithContext("store", store)
}

// UpdateFailed reports a failed write to a single batch record
func UpdateFailed(batchID string, err error) *AppError {
	return build(err, CategoryStore, CodeUpdateFailed, fmt.Sprintf("failed to update batch %s", batchID)).
		WithContext("batch_id", batchID)
}

// BatchNotFound reports an operation referencing a nonexistent batch
func BatchNotFound(batchID string) *AppError {
	return New(CategoryNotFound, CodeBatchNotFound, fmt.Sprintf("batch %s not found", batchID)).
		WithSuggestion("list batches to check the identifier").
		WithContext("batch_id", batchID)
}

// DuplicateIdentifier reports a create or rename targeting an ID already in use
func DuplicateIdentifier(id string) *AppError {
	return New(CategoryConflict, CodeDuplicateIdentifier, fmt.Sprintf("identifier %s already exists", id)).
		WithSuggestion("choose a different identifier").
		WithContext("id", id)
}

// InvalidFilter reports a malformed date range or assignee filter
func InvalidFilter(field string, value interface{}, err error) *AppError {
	return build(err, CategoryValidation, CodeInvalidFilter, fmt.Sprintf("invalid filter '%s': %v", field, value)).
		WithSuggestion("use YYYY-MM-DD dates with from <= to and a non-empty assignee list").
		WithContext("field", field).
		WithContext("value", value)
}

// ValidationError creates a validation-related error
func ValidationError(code ErrorCode, field string, value interface{}, err error) *AppError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidStatus:
		message = fmt.Sprintf("invalid status in field '%s': %v", field, value)
		suggestion = "use one of NS, FS or S"
	case CodeInvalidAssignee:
		message = fmt.Sprintf("assignee %v is not a roster member", value)
		suggestion = "add the member to the roster first or leave the batch unassigned"
	case CodeInvalidDate:
		message = fmt.Sprintf("invalid date in field '%s': %v", field, value)
		suggestion = "use date format YYYY-MM-DD"
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	return build(err, CategoryValidation, code, message).
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *AppError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this configuration setting or use a config file"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	return build(err, CategoryConfiguration, code, message).
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// SeedError reports an unreadable or malformed seed file
func SeedError(path string, err error) *AppError {
	return build(err, CategoryParse, CodeSeedFormat, fmt.Sprintf("cannot read seed file %s", path)).
		WithSuggestion("seed files must be JSON ({\"batches\": [...]}), YAML or CSV").
		WithContext("file", path)
}

// InternalError creates an internal error
func InternalError(operation string, err error) *AppError {
	return build(err, CategoryInternal, CodeUnexpectedError, fmt.Sprintf("unexpected error during %s", operation)).
		WithSuggestion("this is likely a bug - please report it with the error details").
		WithContext("operation", operation)
}

// ErrorSummary provides a summary of multiple errors
type ErrorSummary struct {
	Total        int                   `json:"total"`
	ByCategory   map[ErrorCategory]int `json:"by_category"`
	ByCode       map[ErrorCode]int     `json:"by_code"`
	Errors       []*AppError           `json:"errors"`
	SampleErrors []*AppError           `json:"sample_errors,omitempty"`
}

// NewErrorSummary creates a new error summary
func NewErrorSummary(errs []*AppError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}
	if len(errs) == 0 {
		summary.Errors = []*AppError{}
		return summary
	}

	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	maxSamples := 5
	if len(errs) > maxSamples {
		summary.SampleErrors = errs[:maxSamples]
	} else {
		summary.SampleErrors = errs
	}

	return summary
}

// Error returns a formatted error message for the summary
func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}

	if es.Total == 1 {
		return es.Errors[0].Error()
	}

	var categories []string
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}
	sort.Strings(categories)

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// HasCode checks if the summary contains errors with the given code
func (es *ErrorSummary) HasCode(code ErrorCode) bool {
	return es.ByCode[code] > 0
}

// GetExitCode returns the highest priority exit code from all errors
func (es *ErrorSummary) GetExitCode() int {
	if es.Total == 0 {
		return 0
	}

	maxCode := 1
	for _, err := range es.Errors {
		if code := err.GetExitCode(); code > maxCode {
			maxCode = code
		}
	}

	return maxCode
}

// AsAppError extracts an AppError from an error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Kind returns the error code carried by err, or CodeUnexpectedError for
// errors that did not originate in this package.
func Kind(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return CodeUnexpectedError
}

// IsKind reports whether err carries the given code
func IsKind(err error, code ErrorCode) bool {
	return err != nil && Kind(err) == code
}

// WrapIfNeeded wraps an error if it's not already an AppError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := AsAppError(err); ok {
		return appErr
	}

	return Wrap(err, category, code, message)
}
