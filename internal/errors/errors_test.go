package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("connection refused")
	err := New(ProviderUnavailable, "embedding provider unreachable", cause)

	if err.Code != ProviderUnavailable {
		t.Errorf("Code = %v, want %v", err.Code, ProviderUnavailable)
	}
	if err.Message != "embedding provider unreachable" {
		t.Errorf("Message = %q, want %q", err.Message, "embedding provider unreachable")
	}
	if len(err.SuggestedFixes) != len(ErrorActions[ProviderUnavailable]) {
		t.Errorf("len(SuggestedFixes) = %d, want %d", len(err.SuggestedFixes), len(ErrorActions[ProviderUnavailable]))
	}
}

func TestCtxError_Error(t *testing.T) {
	tests := []struct {
		name      string
		code      ErrorCode
		message   string
		cause     error
		wantParts []string
	}{
		{
			name:      "with cause",
			code:      IndexUnavailable,
			message:   "vector search failed",
			cause:     errors.New("database is locked"),
			wantParts: []string{"INDEX_UNAVAILABLE", "vector search failed", "database is locked"},
		},
		{
			name:      "without cause",
			code:      InvalidInput,
			message:   "budget must be positive",
			wantParts: []string{"INVALID_INPUT", "budget must be positive"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.code, tt.message, tt.cause).Error()
			for _, part := range tt.wantParts {
				if !strings.Contains(got, part) {
					t.Errorf("Error() = %q, missing %q", got, part)
				}
			}
		})
	}
}

func TestCtxError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := New(InternalError, "wrapped", cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, ""},
		{"plain", errors.New("x"), InternalError},
		{"direct", New(RateLimited, "slow down", nil), RateLimited},
		{"wrapped", fmt.Errorf("batch 2: %w", New(Timeout, "deadline", nil)), Timeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIs(t *testing.T) {
	inner := New(RateLimited, "429", nil)
	outer := New(ProviderUnavailable, "retry exhausted", inner)

	if !Is(outer, ProviderUnavailable) {
		t.Error("Is(outer, ProviderUnavailable) = false, want true")
	}
	if !Is(outer, RateLimited) {
		t.Error("Is(outer, RateLimited) = false, want true")
	}
	if Is(outer, IndexUnavailable) {
		t.Error("Is(outer, IndexUnavailable) = true, want false")
	}
	if Is(errors.New("plain"), InternalError) {
		t.Error("plain errors carry no code")
	}
}

func TestWithDetail(t *testing.T) {
	err := New(InvalidInput, "bad path", nil).WithDetail("path", "../etc/passwd")
	if err.Details["path"] != "../etc/passwd" {
		t.Errorf("Details[path] = %v, want ../etc/passwd", err.Details["path"])
	}
}

func TestGetSuggestedFixes(t *testing.T) {
	if fixes := GetSuggestedFixes(IndexUnavailable); len(fixes) == 0 {
		t.Error("expected fixes for IndexUnavailable")
	}
	if fixes := GetSuggestedFixes(BudgetExhausted); fixes != nil {
		t.Errorf("GetSuggestedFixes(BudgetExhausted) = %v, want nil", fixes)
	}
}
