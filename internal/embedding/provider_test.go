package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"ctxasm/internal/errors"
)

func TestOllamaProvider_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		resp := ollamaEmbedResponse{PromptEvalCount: 10}
		for range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{0.1, 0.2, 0.3})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := NewOllamaProvider(WithBaseURL(srv.URL), WithModel("test"), WithDimensions(3))
	vectors, err := p.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vectors) != 2 || len(vectors[0].Values) != 3 {
		t.Fatalf("vectors = %+v", vectors)
	}
	if vectors[0].Tokens != 5 {
		t.Errorf("tokens = %d, want 5", vectors[0].Tokens)
	}
}

func TestOpenAIProvider_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		// Out-of-order indices must be realigned with the input.
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}],"usage":{"prompt_tokens":4}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(WithOpenAIBaseURL(srv.URL), WithAPIKey("sk-test"), WithOpenAIModel("m", 2))
	vectors, err := p.Embed(context.Background(), []string{"xx", "yy"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if vectors[0].Values[0] != 1 || vectors[1].Values[1] != 1 {
		t.Errorf("vectors not realigned: %+v", vectors)
	}
}

func TestProviderStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   errors.ErrorCode
	}{
		{http.StatusTooManyRequests, errors.RateLimited},
		{http.StatusBadRequest, errors.InvalidInput},
		{http.StatusRequestEntityTooLarge, errors.InvalidInput},
		{http.StatusUnprocessableEntity, errors.InvalidInput},
		{http.StatusUnauthorized, errors.ProviderUnavailable},
		{http.StatusServiceUnavailable, errors.ProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			p := NewOllamaProvider(WithBaseURL(srv.URL))
			_, err := p.Embed(context.Background(), []string{"x"})
			if got := errors.CodeOf(err); got != tt.want {
				t.Errorf("CodeOf = %s, want %s (err %v)", got, tt.want, err)
			}
		})
	}
}

func TestProviderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewOllamaProvider(WithBaseURL(url)).Embed(context.Background(), []string{"x"})
	if !errors.Is(err, errors.ProviderUnavailable) {
		t.Errorf("err = %v, want PROVIDER_UNAVAILABLE", err)
	}
}

func TestHashProvider(t *testing.T) {
	p := NewHashProvider(0)
	if p.Dimensions() != DefaultHashDimensions || p.Model() != "hash-256" {
		t.Fatalf("model = %s dims = %d", p.Model(), p.Dimensions())
	}

	vectors, err := p.Embed(context.Background(), []string{
		"func LoginHandler validates the user password",
		"login handler password check",
		"render a bar chart of sales",
	})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	related := cosine(vectors[0].Values, vectors[1].Values)
	unrelated := cosine(vectors[0].Values, vectors[2].Values)
	if related <= unrelated {
		t.Errorf("related %.3f <= unrelated %.3f", related, unrelated)
	}

	again, _ := p.Embed(context.Background(), []string{"login handler password check"})
	for i := range again[0].Values {
		if again[0].Values[i] != vectors[1].Values[i] {
			t.Fatal("hash embedding is not deterministic")
		}
	}
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
