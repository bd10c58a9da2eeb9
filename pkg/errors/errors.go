package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryIngest      ErrorCategory = "ingest"
	CategoryValidation  ErrorCategory = "validation"
	CategoryConfig      ErrorCategory = "config"
	CategoryMatching    ErrorCategory = "matching"
	CategoryPolicy      ErrorCategory = "policy"
	CategoryPersistence ErrorCategory = "persistence"
	CategoryInternal    ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// Ingest errors
	CodeFileNotFound  ErrorCode = "file_not_found"
	CodeInvalidFormat ErrorCode = "invalid_format"
	CodeInvalidRecord ErrorCode = "invalid_record"
	CodeEncodingError ErrorCode = "encoding_error"

	// Validation errors
	CodeInvalidAmount ErrorCode = "invalid_amount"
	CodeInvalidDate   ErrorCode = "invalid_date"
	CodeMissingField  ErrorCode = "missing_field"
	CodeBadCurrency   ErrorCode = "bad_currency"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Matching errors
	CodeMatchingFailed   ErrorCode = "matching_failed"
	CodeDataInconsistent ErrorCode = "data_inconsistent"

	// Policy errors
	CodeNotPersistable  ErrorCode = "not_persistable"
	CodeEmptyDecision   ErrorCode = "empty_decision"
	CodeRelationBarred  ErrorCode = "relation_barred"

	// Persistence errors
	CodeApplyFailed ErrorCode = "apply_failed"
	CodeAuditFailed ErrorCode = "audit_failed"
	CodeTenantScope ErrorCode = "tenant_scope"

	// Internal errors
	CodeUnexpectedError   ErrorCode = "unexpected_error"
	CodeResourceExhausted ErrorCode = "resource_exhausted"
)

// MatchError is the base error type for all application errors
type MatchError struct {
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
func (e *MatchError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *MatchError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *MatchError) GetExitCode() int {
	switch e.Category {
	case CategoryIngest:
		return 2
	case CategoryValidation:
		return 3
	case CategoryConfig:
		return 4
	case CategoryMatching, CategoryPolicy, CategoryInternal:
		return 5
	case CategoryPersistence:
		return 6
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *MatchError) WithContext(key string, value interface{}) *MatchError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *MatchError) WithSuggestion(suggestion string) *MatchError {
	e.Suggestion = suggestion
	return e
}

// New creates a new MatchError
func New(category ErrorCategory, code ErrorCode, message string) *MatchError {
	return &MatchError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with MatchError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *MatchError {
	if err == nil {
		return nil
	}

	return &MatchError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// stackTracer interface for extracting stack traces
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Specific error constructors

// IngestError creates an ingestion-related error
func IngestError(code ErrorCode, source string, err error) *MatchError {
	var message string
	var suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("input not found: %s", source)
		suggestion = "check if the path is correct and the file exists"
	case CodeInvalidFormat:
		message = fmt.Sprintf("invalid format in input: %s", source)
		suggestion = "ensure the input is valid JSON with the documented field names"
	case CodeInvalidRecord:
		message = fmt.Sprintf("invalid record in input: %s", source)
		suggestion = "correct the record or remove it from the input"
	case CodeEncodingError:
		message = fmt.Sprintf("encoding error in input: %s", source)
		suggestion = "ensure the file is saved in UTF-8 encoding"
	default:
		message = fmt.Sprintf("ingest error: %s", source)
		suggestion = "check the input and try again"
	}

	var result *MatchError
	if err != nil {
		result = Wrap(err, CategoryIngest, code, message)
	} else {
		result = New(CategoryIngest, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("source", source)
}

// ValidationError creates a validation-related error
func ValidationError(code ErrorCode, field string, value interface{}, err error) *MatchError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidAmount:
		message = fmt.Sprintf("invalid amount in field '%s': %v", field, value)
		suggestion = "ensure amounts are valid decimal numbers (e.g., '12.34')"
	case CodeInvalidDate:
		message = fmt.Sprintf("invalid date in field '%s': %v", field, value)
		suggestion = "use date format YYYY-MM-DD or an ISO timestamp"
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	case CodeBadCurrency:
		message = fmt.Sprintf("invalid currency in field '%s': %v", field, value)
		suggestion = "use a three-letter ISO 4217 currency code"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	var result *MatchError
	if err != nil {
		result = Wrap(err, CategoryValidation, code, message)
	} else {
		result = New(CategoryValidation, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// ConfigError creates a configuration-related error
func ConfigError(code ErrorCode, setting string, value interface{}, err error) *MatchError {
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

	var result *MatchError
	if err != nil {
		result = Wrap(err, CategoryConfig, code, message)
	} else {
		result = New(CategoryConfig, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// MatchingError creates a matching-related error
func MatchingError(code ErrorCode, operation string, err error) *MatchError {
	var message string
	var suggestion string

	switch code {
	case CodeMatchingFailed:
		message = fmt.Sprintf("matching failed during %s", operation)
		suggestion = "try adjusting tolerances or check data quality"
	case CodeDataInconsistent:
		message = fmt.Sprintf("data inconsistency detected during %s", operation)
		suggestion = "verify data integrity and resolve inconsistencies"
	default:
		message = fmt.Sprintf("matching error during %s", operation)
		suggestion = "review the data and configuration"
	}

	var result *MatchError
	if err != nil {
		result = Wrap(err, CategoryMatching, code, message)
	} else {
		result = New(CategoryMatching, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// PolicyError creates a persistability-policy error
func PolicyError(code ErrorCode, detail string) *MatchError {
	var message string
	var suggestion string

	switch code {
	case CodeNotPersistable:
		message = fmt.Sprintf("decision is not persistable: %s", detail)
		suggestion = "final and partial decisions must reference at least one document and one transaction"
	case CodeEmptyDecision:
		message = fmt.Sprintf("decision references no entities: %s", detail)
		suggestion = "this is likely a bug in a decision rule - report it"
	case CodeRelationBarred:
		message = fmt.Sprintf("relation type cannot be persisted in this state: %s", detail)
		suggestion = "many-to-many clusters produce group records only, never entity updates"
	default:
		message = fmt.Sprintf("policy violation: %s", detail)
		suggestion = "review the decision before persisting it"
	}

	return New(CategoryPolicy, code, message).
		WithSuggestion(suggestion).
		WithContext("detail", detail)
}

// PersistenceError creates a storage-related error
func PersistenceError(code ErrorCode, operation string, err error) *MatchError {
	var message string
	var suggestion string

	switch code {
	case CodeApplyFailed:
		message = fmt.Sprintf("applying match operations failed during %s", operation)
		suggestion = "check storage availability and retry the run"
	case CodeAuditFailed:
		message = fmt.Sprintf("writing audit records failed during %s", operation)
		suggestion = "check storage availability; decisions were not applied"
	case CodeTenantScope:
		message = fmt.Sprintf("tenant scope violation during %s", operation)
		suggestion = "entities from different tenants can never be linked"
	default:
		message = fmt.Sprintf("persistence error during %s", operation)
		suggestion = "check the storage backend and try again"
	}

	var result *MatchError
	if err != nil {
		result = Wrap(err, CategoryPersistence, code, message)
	} else {
		result = New(CategoryPersistence, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// InternalError creates an internal error
func InternalError(code ErrorCode, operation string, err error) *MatchError {
	var message string
	var suggestion string

	switch code {
	case CodeUnexpectedError:
		message = fmt.Sprintf("unexpected error during %s", operation)
		suggestion = "this is likely a bug - please report it with the error details"
	case CodeResourceExhausted:
		message = fmt.Sprintf("resource exhausted during %s", operation)
		suggestion = "try reducing batch size or increasing system resources"
	default:
		message = fmt.Sprintf("internal error during %s", operation)
		suggestion = "try again or contact support if the problem persists"
	}

	var result *MatchError
	if err != nil {
		result = Wrap(err, CategoryInternal, code, message)
	} else {
		result = New(CategoryInternal, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// ErrorSummary provides a summary of multiple errors
type ErrorSummary struct {
	Total        int                   `json:"total"`
	ByCategory   map[ErrorCategory]int `json:"by_category"`
	ByCode       map[ErrorCode]int     `json:"by_code"`
	Errors       []*MatchError         `json:"errors"`
	SampleErrors []*MatchError         `json:"sample_errors,omitempty"`
}

// NewErrorSummary creates a new error summary
func NewErrorSummary(errs []*MatchError) *ErrorSummary {
	if len(errs) == 0 {
		return &ErrorSummary{
			Total:      0,
			ByCategory: make(map[ErrorCategory]int),
			ByCode:     make(map[ErrorCode]int),
			Errors:     []*MatchError{},
		}
	}

	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}

	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	// Include sample errors (max 5)
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

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// HasCategory checks if the summary contains errors of the given category
func (es *ErrorSummary) HasCategory(category ErrorCategory) bool {
	count, exists := es.ByCategory[category]
	return exists && count > 0
}

// HasCode checks if the summary contains errors with the given code
func (es *ErrorSummary) HasCode(code ErrorCode) bool {
	count, exists := es.ByCode[code]
	return exists && count > 0
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

// Utility functions

// IsMatchError checks if an error is a MatchError
func IsMatchError(err error) bool {
	_, ok := err.(*MatchError)
	return ok
}

// AsMatchError extracts a MatchError from an error chain
func AsMatchError(err error) (*MatchError, bool) {
	var matchErr *MatchError
	if errors.As(err, &matchErr) {
		return matchErr, true
	}
	return nil, false
}

// WrapIfNeeded wraps an error if it's not already a MatchError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *MatchError {
	if err == nil {
		return nil
	}

	if matchErr, ok := AsMatchError(err); ok {
		return matchErr
	}

	return Wrap(err, category, code, message)
}
