// Package embedding turns file contents and prompts into vectors. It wraps
// the configured provider with batching, rate limiting, retry on rate
// limits and write-through caching.
package embedding

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ctxasm/internal/errors"
)

// Vector is one embedding and the provider's token count for its input.
type Vector struct {
	Values []float32
	Tokens int
}

// Provider generates embeddings for a batch of texts. The returned slice is
// aligned with texts.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([]Vector, error)
	Model() string
	Dimensions() int
}

// maxErrorBody bounds how much of an error response is kept in messages.
const maxErrorBody = 512

// formatErrorBody reads and formats the response body for error messages.
func formatErrorBody(body io.Reader) string {
	respBody, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil {
		return fmt.Sprintf("(failed to read response body: %v)", err)
	}
	return strings.TrimSpace(string(respBody))
}

// statusError maps a non-2xx provider response to a coded error.
func statusError(provider string, resp *http.Response) error {
	msg := fmt.Sprintf("%s returned status %d: %s", provider, resp.StatusCode, formatErrorBody(resp.Body))
	var code errors.ErrorCode
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		code = errors.RateLimited
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
		code = errors.InvalidInput
	default:
		code = errors.ProviderUnavailable
	}
	return errors.New(code, msg, nil).WithDetail("status", resp.StatusCode)
}

// transportError maps a failed round trip to Timeout or ProviderUnavailable.
func transportError(ctx context.Context, provider string, err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.New(errors.Timeout, provider+" request timed out", err)
	}
	return errors.New(errors.ProviderUnavailable, provider+" request failed", err)
}

// checkCount verifies the provider returned one vector per input.
func checkCount(provider string, got, want int) error {
	if got != want {
		return errors.New(errors.ProviderUnavailable,
			fmt.Sprintf("%s returned %d embeddings for %d inputs", provider, got, want), nil)
	}
	return nil
}
