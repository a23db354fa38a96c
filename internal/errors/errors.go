package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ProviderUnavailable indicates the embedding provider could not be reached or failed
	ProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	// RateLimited indicates the embedding provider rejected a request for rate reasons
	RateLimited ErrorCode = "RATE_LIMITED"
	// IndexUnavailable indicates the vector index backend is unreachable or failed
	IndexUnavailable ErrorCode = "INDEX_UNAVAILABLE"
	// InvalidInput indicates malformed request parameters or file content
	InvalidInput ErrorCode = "INVALID_INPUT"
	// Timeout indicates an operation exceeded its deadline
	Timeout ErrorCode = "TIMEOUT"
	// BudgetExhausted marks a degraded allocation. It is recorded in stats, never returned.
	BudgetExhausted ErrorCode = "BUDGET_EXHAUSTED"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// OpenDocs suggests opening documentation
	OpenDocs FixActionType = "open-docs"
	// ChangeConfig suggests editing a configuration value
	ChangeConfig FixActionType = "change-config"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Key         string        `json:"key,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
}

// CtxError represents an engine error with code, message, and suggestions
type CtxError struct {
	Code           ErrorCode              `json:"code"`
	Message        string                 `json:"message"`
	Details        map[string]interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction            `json:"suggestedFixes,omitempty"`
	cause          error                  // Underlying error (not exported to JSON)
}

// New creates a CtxError carrying the default suggested fixes for its code.
func New(code ErrorCode, message string, cause error) *CtxError {
	return NewWithFixes(code, message, cause, GetSuggestedFixes(code))
}

// NewWithFixes creates a CtxError with explicit suggested fixes
func NewWithFixes(code ErrorCode, message string, cause error, suggestedFixes []FixAction) *CtxError {
	return &CtxError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: suggestedFixes,
	}
}

// Error implements the error interface
func (e *CtxError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *CtxError) Unwrap() error {
	return e.cause
}

// WithDetail adds a single detail entry to the error
func (e *CtxError) WithDetail(key string, value interface{}) *CtxError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// CodeOf returns the code of the first CtxError in err's chain.
// Errors without a code report InternalError; nil reports "".
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var ce *CtxError
	if stderrors.As(err, &ce) {
		return ce.Code
	}
	return InternalError
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code ErrorCode) bool {
	for err != nil {
		var ce *CtxError
		if !stderrors.As(err, &ce) {
			return false
		}
		if ce.Code == code {
			return true
		}
		err = ce.cause
	}
	return false
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	ProviderUnavailable: {
		{
			Type:        ChangeConfig,
			Key:         "embedding.baseUrl",
			Description: "Check the embedding provider endpoint and credentials",
		},
		{
			Type:        ChangeConfig,
			Key:         "embedding.provider",
			Description: "Switch to the offline hash provider",
		},
	},
	RateLimited: {
		{
			Type:        ChangeConfig,
			Key:         "embedding.batchDelayMs",
			Description: "Increase the delay between embedding batches",
		},
	},
	IndexUnavailable: {
		{
			Type:        RunCommand,
			Command:     "ctxasm index",
			Safe:        true,
			Description: "Rebuild the vector index for the project",
		},
	},
	Timeout: {
		{
			Type:        ChangeConfig,
			Key:         "search.semanticDeadlineMs",
			Description: "Raise the semantic search deadline",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
