package telemetry

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewHTTPClient_RetryPolicy(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int32
	}{
		{"ok", http.StatusOK, 1},
		{"rate limited is surfaced", http.StatusTooManyRequests, 1},
		{"bad request is surfaced", http.StatusBadRequest, 1},
		{"server error is retried", http.StatusBadGateway, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			client := NewHTTPClient(HTTPClientOptions{Timeout: 10 * time.Second, RetryMax: 2})
			resp, err := client.Get(srv.URL)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			resp.Body.Close()

			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestSpanNameFormatter(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "http://localhost/api/embed?x=1", nil)
	if got := SpanNameFormatter("", req); got != "POST /api/embed" {
		t.Errorf("SpanNameFormatter() = %q", got)
	}
}
