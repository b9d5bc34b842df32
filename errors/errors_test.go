package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *AppError
		wantSub string
	}{
		{
			name:    "without wrapped error",
			err:     New(CodeBadRequest, "invalid input"),
			wantSub: "BAD_REQUEST: invalid input",
		},
		{
			name:    "with wrapped error",
			err:     Wrap(errors.New("disk full"), CodeInternal, "could not save user"),
			wantSub: "INTERNAL_ERROR: could not save user: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantSub {
				t.Errorf("Error() = %v, want %v", got, tt.wantSub)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	appErr := InternalWrap(underlying, "wrapped")

	if !errors.Is(appErr, underlying) {
		t.Error("errors.Is should find the wrapped error")
	}
}

func TestAppError_Is(t *testing.T) {
	err := Conflict("email already registered")

	if !errors.Is(err, New(CodeConflict, "")) {
		t.Error("errors with the same code should match")
	}
	if errors.Is(err, New(CodeNotFound, "")) {
		t.Error("errors with different codes should not match")
	}
}

func TestInvalidCoordinate(t *testing.T) {
	err := InvalidCoordinate("latitude", 91.5)

	if err.Code != CodeInvalidCoordinate {
		t.Errorf("Code = %s, want %s", err.Code, CodeInvalidCoordinate)
	}
	if err.Message != "latitude out of range" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Details["latitude"] != "91.5" {
		t.Errorf("Details[latitude] = %q, want 91.5", err.Details["latitude"])
	}
	if !IsInvalidCoordinate(fmt.Errorf("estimate: %w", err)) {
		t.Error("IsInvalidCoordinate should see through wrapping")
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		wantCode string
	}{
		{"Internal", Internal("boom"), CodeInternal},
		{"NotFound", NotFound("user"), CodeNotFound},
		{"BadRequest", BadRequest("bad"), CodeBadRequest},
		{"Validation", Validation("invalid"), CodeValidation},
		{"Unauthorized", Unauthorized(""), CodeUnauthorized},
		{"Forbidden", Forbidden(""), CodeForbidden},
		{"Conflict", Conflict("dup"), CodeConflict},
		{"Timeout", Timeout("slow"), CodeTimeout},
		{"Unavailable", Unavailable("down"), CodeUnavailable},
		{"RateLimited", RateLimited("slow down"), CodeRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %s, want %s", tt.err.Code, tt.wantCode)
			}
			if tt.err.Message == "" {
				t.Error("Message should not be empty")
			}
		})
	}
}

func TestNotFound_Message(t *testing.T) {
	if got := NotFound("user").Message; got != "user not found" {
		t.Errorf("Message = %q, want %q", got, "user not found")
	}
}

func TestValidationWithDetails(t *testing.T) {
	details := map[string]string{"email": "must be a valid email"}
	err := ValidationWithDetails("validation failed", details)

	if err.Details["email"] != "must be a valid email" {
		t.Errorf("Details = %v", err.Details)
	}
}

func TestCodePredicates(t *testing.T) {
	plain := errors.New("plain")

	if IsNotFound(plain) || IsValidation(plain) || IsUnauthorized(plain) || IsConflict(plain) {
		t.Error("plain errors should not match any code predicate")
	}
	if !IsNotFound(NotFound("user")) {
		t.Error("IsNotFound should match")
	}
	if !IsValidation(Validation("x")) {
		t.Error("IsValidation should match")
	}
	if !IsUnauthorized(fmt.Errorf("wrapped: %w", Unauthorized(""))) {
		t.Error("IsUnauthorized should match wrapped errors")
	}
	if !IsConflict(Conflict("dup")) {
		t.Error("IsConflict should match")
	}
}

func TestCode(t *testing.T) {
	if got := Code(Conflict("dup")); got != CodeConflict {
		t.Errorf("Code() = %q, want %q", got, CodeConflict)
	}
	if got := Code(errors.New("plain")); got != "" {
		t.Errorf("Code() = %q, want empty", got)
	}
}
