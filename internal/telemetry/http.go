package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPClientOptions configures NewHTTPClient.
type HTTPClientOptions struct {
	Timeout  time.Duration
	RetryMax int
	Logger   *slog.Logger
}

// NewHTTPClient returns an http.Client that retries transport errors and 5xx
// responses with backoff and is instrumented with OpenTelemetry. 429 and
// other 4xx responses are returned to the caller unretried.
func NewHTTPClient(opts HTTPClientOptions) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.RetryWaitMin = 250 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.CheckRetry = noRetryOnClientErrors(retryablehttp.ErrorPropagatedRetryPolicy)
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if opts.Logger != nil {
		retryClient.Logger = opts.Logger
	} else {
		retryClient.Logger = nil
	}

	stdClient := retryClient.StandardClient()
	stdClient.Timeout = opts.Timeout
	stdClient.Transport = otelhttp.NewTransport(
		stdClient.Transport,
		otelhttp.WithSpanNameFormatter(SpanNameFormatter),
	)
	return stdClient
}

// SpanNameFormatter formats span names for HTTP requests.
func SpanNameFormatter(_ string, r *http.Request) string {
	return fmt.Sprintf("%s %s", r.Method, r.URL.Path)
}

// noRetryOnClientErrors wraps a policy so that 4xx responses, including 429,
// are never retried by the transport.
func noRetryOnClientErrors(policy retryablehttp.CheckRetry) retryablehttp.CheckRetry {
	return func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return false, nil
		}
		return policy(ctx, resp, err)
	}
}
