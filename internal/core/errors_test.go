package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	err := ErrValidation(CodeInvalidInput, "name is required")
	want := "[validation] INVALID_INPUT: name is required"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}

	cause := errors.New("disk full")
	err = ErrInternal("saving template", cause)
	if got := err.Error(); got != "[internal] INTERNAL: saving template (disk full)" {
		t.Fatalf("Error() with cause = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the cause")
	}
}

func TestDomainError_Is(t *testing.T) {
	a := ErrValidation(CodeTemplateArchived, "archived")
	b := ErrValidation(CodeTemplateArchived, "another message")
	c := ErrValidation(CodeCriterionInUse, "in use")

	if !errors.Is(a, b) {
		t.Error("errors with same category and code should match")
	}
	if errors.Is(a, c) {
		t.Error("errors with different codes should not match")
	}

	wrapped := fmt.Errorf("publishing: %w", a)
	if !errors.Is(wrapped, b) {
		t.Error("wrapped error should match")
	}
}

func TestDomainError_WithDetail(t *testing.T) {
	err := ErrValidation(CodeNotPublishable, "weights").WithDetail("total_weight", 95.0)
	if err.Details["total_weight"] != 95.0 {
		t.Fatalf("Details = %v", err.Details)
	}
}

func TestConflictIsRetryable(t *testing.T) {
	if !IsRetryable(ErrConflict(CodeVersionConflict, "collision")) {
		t.Error("conflict should be retryable")
	}
	if IsRetryable(ErrValidation(CodeInvalidInput, "bad")) {
		t.Error("validation should not be retryable")
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("plain errors are not retryable")
	}
}

func TestGetCategory(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"validation", ErrValidation("X", "x"), ErrCatValidation},
		{"not found", ErrNotFound("template", "t1"), ErrCatNotFound},
		{"forbidden", ErrForbidden("nope"), ErrCatForbidden},
		{"auth", ErrAuth("who"), ErrCatAuth},
		{"conflict", ErrConflict("X", "x"), ErrCatConflict},
		{"wrapped", fmt.Errorf("ctx: %w", ErrNotFound("group", "g1")), ErrCatNotFound},
		{"plain", errors.New("boom"), ErrCatInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCategory(tt.err); got != tt.want {
				t.Errorf("GetCategory() = %s, want %s", got, tt.want)
			}
			if !IsCategory(tt.err, tt.want) {
				t.Errorf("IsCategory(%s) = false", tt.want)
			}
		})
	}
}

func TestErrNotFound_Message(t *testing.T) {
	err := ErrNotFound("template", "abc")
	if err.Message != "template not found: abc" {
		t.Fatalf("Message = %q", err.Message)
	}
}
