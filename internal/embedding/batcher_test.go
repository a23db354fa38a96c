package embedding

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"ctxasm/internal/embedcache"
	"ctxasm/internal/errors"
	"ctxasm/internal/slogutil"
)

// countingProvider records every batch and can fail the first N calls.
type countingProvider struct {
	mu       sync.Mutex
	batches  [][]string
	failWith error
	failN    int
}

func (p *countingProvider) Embed(_ context.Context, texts []string) ([]Vector, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, append([]string(nil), texts...))
	if p.failN > 0 {
		p.failN--
		return nil, p.failWith
	}
	out := make([]Vector, len(texts))
	for i := range texts {
		out[i] = Vector{Values: []float32{float32(len(texts[i])), 1}, Tokens: 7}
	}
	return out, nil
}

func (p *countingProvider) Model() string   { return "counting" }
func (p *countingProvider) Dimensions() int { return 2 }

func (p *countingProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.batches)
}

func fastOptions() Options {
	return Options{BatchSize: 2, BatchDelay: time.Millisecond, BatchTimeout: time.Second, RetryBackoff: time.Millisecond, MaxChars: 100}
}

func TestEmbedFiles_SkipsBinaryAndBatches(t *testing.T) {
	provider := &countingProvider{}
	b := NewBatcher(provider, nil, fastOptions(), slogutil.NewDiscardLogger())

	files := []File{
		{Path: "src/a.ts", Content: "export const a = 1"},
		{Path: "public/logo.png", Content: "", Size: 4096},
		{Path: "src/b.ts", Content: "export const b = 2"},
		{Path: "src/c.ts", Content: "export const c = 3"},
	}

	results, err := b.EmbedFiles(context.Background(), files)
	if err != nil {
		t.Fatalf("EmbedFiles: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("got %d results, want 4", len(results))
	}
	if provider.calls() != 2 {
		t.Errorf("provider calls = %d, want 2", provider.calls())
	}
	for _, batch := range provider.batches {
		for _, text := range batch {
			if strings.Contains(text, "logo.png") {
				t.Error("binary file reached the provider")
			}
		}
	}
	if !results[1].IsBinary || results[1].Embedding != nil {
		t.Errorf("logo.png result = %+v, want binary with nil embedding", results[1])
	}
	if results[0].Embedding == nil || results[0].TokenCount != 7 {
		t.Errorf("a.ts result = %+v", results[0])
	}
}

func TestEmbedFiles_Idempotent(t *testing.T) {
	provider := &countingProvider{}
	cache := embedcache.NewMemory(time.Minute)
	b := NewBatcher(provider, cache, fastOptions(), nil)

	files := []File{
		{Path: "src/a.ts", Content: "alpha"},
		{Path: "src/b.ts", Content: "beta"},
	}
	if _, err := b.EmbedFiles(context.Background(), files); err != nil {
		t.Fatalf("first EmbedFiles: %v", err)
	}
	first := provider.calls()

	results, err := b.EmbedFiles(context.Background(), files)
	if err != nil {
		t.Fatalf("second EmbedFiles: %v", err)
	}
	if provider.calls() != first {
		t.Errorf("provider called again: %d -> %d", first, provider.calls())
	}
	for _, r := range results {
		if !r.Cached {
			t.Errorf("%s not served from cache", r.Path)
		}
	}
}

func TestEmbedFiles_RateLimitRetry(t *testing.T) {
	tests := []struct {
		name      string
		failN     int
		wantErr   bool
		wantCalls int
	}{
		{"retry succeeds", 1, false, 2},
		{"second failure surfaces", 2, true, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &countingProvider{
				failN:    tt.failN,
				failWith: errors.New(errors.RateLimited, "slow down", nil),
			}
			b := NewBatcher(provider, nil, fastOptions(), nil)

			_, err := b.EmbedFiles(context.Background(), []File{{Path: "a.go", Content: "package a"}})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, errors.RateLimited) {
				t.Errorf("code = %s, want RATE_LIMITED", errors.CodeOf(err))
			}
			if provider.calls() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", provider.calls(), tt.wantCalls)
			}
		})
	}
}

func TestEmbedFiles_PartialResultsOnFailure(t *testing.T) {
	provider := &countingProvider{}
	b := NewBatcher(provider, nil, Options{BatchSize: 1, BatchDelay: time.Millisecond, RetryBackoff: time.Millisecond}, nil)

	files := []File{
		{Path: "a.go", Content: "package a"},
		{Path: "b.go", Content: "package b"},
	}
	// Let the first batch through, then fail everything.
	failing := &failAfter{inner: provider, after: 1}
	b.provider = failing

	results, err := b.EmbedFiles(context.Background(), files)
	if !errors.Is(err, errors.ProviderUnavailable) {
		t.Fatalf("err = %v, want PROVIDER_UNAVAILABLE", err)
	}
	if len(results) != 1 || results[0].Path != "a.go" {
		t.Errorf("results = %+v, want only a.go", results)
	}
}

type failAfter struct {
	inner Provider
	after int
	n     int
}

func (f *failAfter) Embed(ctx context.Context, texts []string) ([]Vector, error) {
	f.n++
	if f.n > f.after {
		return nil, errors.New(errors.ProviderUnavailable, "down", nil)
	}
	return f.inner.Embed(ctx, texts)
}

func (f *failAfter) Model() string   { return f.inner.Model() }
func (f *failAfter) Dimensions() int { return f.inner.Dimensions() }

func TestFormatText(t *testing.T) {
	got := FormatText("src/a.ts", "typescript", "héllo world", 5)
	want := "// File: src/a.ts (typescript)\nhéllo"
	if got != want {
		t.Errorf("FormatText() = %q, want %q", got, want)
	}
	if got := FormatText("x", "", "abc", 10); got != "// File: x (text)\nabc" {
		t.Errorf("FormatText() = %q", got)
	}
}

func TestHashContent(t *testing.T) {
	a := HashContent("same")
	if a != HashContent("same") {
		t.Error("hash is not deterministic")
	}
	if a == HashContent("other") {
		t.Error("different content hashed equal")
	}
	if len(a) != 64 {
		t.Errorf("len = %d, want 64 hex chars", len(a))
	}
}

func TestChunkSlice(t *testing.T) {
	tests := []struct {
		n, size int
		want    []int
	}{
		{0, 50, nil},
		{5, 2, []int{2, 2, 1}},
		{4, 2, []int{2, 2}},
		{3, 0, []int{3}},
	}
	for _, tt := range tests {
		items := make([]int, tt.n)
		chunks := ChunkSlice(items, tt.size)
		if len(chunks) != len(tt.want) {
			t.Errorf("ChunkSlice(%d, %d) = %d chunks, want %d", tt.n, tt.size, len(chunks), len(tt.want))
			continue
		}
		for i, c := range chunks {
			if len(c) != tt.want[i] {
				t.Errorf("chunk %d len = %d, want %d", i, len(c), tt.want[i])
			}
		}
	}
}
