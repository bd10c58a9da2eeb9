package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(CategoryValidation, CodeInvalidAmount, "test message")

	if err.Category != CategoryValidation {
		t.Errorf("Expected category %s, got %s", CategoryValidation, err.Category)
	}
	if err.Code != CodeInvalidAmount {
		t.Errorf("Expected code %s, got %s", CodeInvalidAmount, err.Code)
	}
	if err.Message != "test message" {
		t.Errorf("Expected message 'test message', got '%s'", err.Message)
	}
	if err.StackTrace == nil {
		t.Error("Expected stack trace to be captured")
	}
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := Wrap(cause, CategoryPersistence, CodeApplyFailed, "wrapped message")

	if err.Cause != cause {
		t.Error("Expected cause to be preserved")
	}
	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to find the cause through Unwrap")
	}

	if Wrap(nil, CategoryPersistence, CodeApplyFailed, "ignored") != nil {
		t.Error("Wrapping nil should return nil")
	}
}

func TestErrorWithSuggestion(t *testing.T) {
	err := New(CategoryConfig, CodeInvalidConfig, "bad setting").
		WithSuggestion("use a positive value")

	msg := err.Error()
	if !strings.Contains(msg, "bad setting") {
		t.Errorf("Expected message in error string, got '%s'", msg)
	}
	if !strings.Contains(msg, "use a positive value") {
		t.Errorf("Expected suggestion in error string, got '%s'", msg)
	}
}

func TestWithContext(t *testing.T) {
	err := New(CategoryIngest, CodeInvalidRecord, "bad record").
		WithContext("source", "docs.json").
		WithContext("index", 7)

	if err.Context["source"] != "docs.json" {
		t.Errorf("Expected context source 'docs.json', got %v", err.Context["source"])
	}
	if err.Context["index"] != 7 {
		t.Errorf("Expected context index 7, got %v", err.Context["index"])
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		expected int
	}{
		{CategoryIngest, 2},
		{CategoryValidation, 3},
		{CategoryConfig, 4},
		{CategoryMatching, 5},
		{CategoryPolicy, 5},
		{CategoryInternal, 5},
		{CategoryPersistence, 6},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			err := New(tt.category, CodeUnexpectedError, "test")
			if code := err.GetExitCode(); code != tt.expected {
				t.Errorf("Expected exit code %d for %s, got %d", tt.expected, tt.category, code)
			}
		})
	}
}

func TestPolicyError(t *testing.T) {
	err := PolicyError(CodeRelationBarred, "many_to_many marked final")

	if err.Category != CategoryPolicy {
		t.Errorf("Expected policy category, got %s", err.Category)
	}
	if err.Code != CodeRelationBarred {
		t.Errorf("Expected code %s, got %s", CodeRelationBarred, err.Code)
	}
	if !strings.Contains(err.Message, "many_to_many marked final") {
		t.Errorf("Expected detail in message, got '%s'", err.Message)
	}
	if err.Suggestion == "" {
		t.Error("Expected a suggestion to be attached")
	}
}

func TestValidationError(t *testing.T) {
	err := ValidationError(CodeInvalidDate, "invoice_date", "31.02.2024", nil)

	if err.Category != CategoryValidation {
		t.Errorf("Expected validation category, got %s", err.Category)
	}
	if err.Context["field"] != "invoice_date" {
		t.Errorf("Expected field context, got %v", err.Context["field"])
	}
	if !strings.Contains(err.Message, "invoice_date") {
		t.Errorf("Expected field name in message, got '%s'", err.Message)
	}
}

func TestErrorSummary(t *testing.T) {
	errs := []*MatchError{
		New(CategoryIngest, CodeInvalidRecord, "one"),
		New(CategoryIngest, CodeInvalidRecord, "two"),
		New(CategoryPersistence, CodeApplyFailed, "three"),
	}

	summary := NewErrorSummary(errs)

	if summary.Total != 3 {
		t.Errorf("Expected total 3, got %d", summary.Total)
	}
	if summary.ByCategory[CategoryIngest] != 2 {
		t.Errorf("Expected 2 ingest errors, got %d", summary.ByCategory[CategoryIngest])
	}
	if !summary.HasCode(CodeApplyFailed) {
		t.Error("Expected summary to report apply_failed code")
	}
	if summary.GetExitCode() != 6 {
		t.Errorf("Expected worst exit code 6, got %d", summary.GetExitCode())
	}
}

func TestErrorSummaryEmpty(t *testing.T) {
	summary := NewErrorSummary(nil)

	if summary.Total != 0 {
		t.Errorf("Expected total 0, got %d", summary.Total)
	}
	if summary.GetExitCode() != 0 {
		t.Errorf("Expected exit code 0 for empty summary, got %d", summary.GetExitCode())
	}
	if summary.Error() != "no errors" {
		t.Errorf("Expected 'no errors', got '%s'", summary.Error())
	}
}

func TestAsMatchError(t *testing.T) {
	inner := New(CategoryMatching, CodeMatchingFailed, "inner")
	wrapped := fmt.Errorf("outer: %w", inner)

	extracted, ok := AsMatchError(wrapped)
	if !ok {
		t.Fatal("Expected to extract MatchError from chain")
	}
	if extracted != inner {
		t.Error("Expected the original error instance")
	}

	if _, ok := AsMatchError(fmt.Errorf("plain")); ok {
		t.Error("Expected plain error not to extract")
	}
}

func TestWrapIfNeeded(t *testing.T) {
	already := New(CategoryConfig, CodeMissingConfig, "already typed")
	if got := WrapIfNeeded(already, CategoryInternal, CodeUnexpectedError, "ignored"); got != already {
		t.Error("Expected typed errors to pass through unchanged")
	}

	plain := fmt.Errorf("plain")
	got := WrapIfNeeded(plain, CategoryInternal, CodeUnexpectedError, "wrapped")
	if got.Category != CategoryInternal {
		t.Errorf("Expected internal category, got %s", got.Category)
	}
	if got.Cause != plain {
		t.Error("Expected cause to be preserved")
	}
}
