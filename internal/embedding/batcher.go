package embedding

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/time/rate"

	"ctxasm/internal/classify"
	"ctxasm/internal/embedcache"
	"ctxasm/internal/errors"
	"ctxasm/internal/model"
	"ctxasm/internal/slogutil"
)

// File is one input to EmbedFiles.
type File struct {
	Path    string
	Content string
	// Size is used for binary detection when Content is a placeholder.
	Size int64
}

// Result describes one embedded (or skipped) file.
type Result struct {
	Path        string
	ContentHash string
	Language    string
	Category    model.Category
	IsBinary    bool
	Embedding   []float32
	TokenCount  int
	SizeBytes   int64
	Cached      bool
}

// Options tunes batching.
type Options struct {
	BatchSize    int
	BatchDelay   time.Duration
	BatchTimeout time.Duration
	RetryBackoff time.Duration
	MaxChars     int
}

// DefaultOptions returns the standard batching parameters.
func DefaultOptions() Options {
	return Options{
		BatchSize:    50,
		BatchDelay:   200 * time.Millisecond,
		BatchTimeout: 30 * time.Second,
		RetryBackoff: 2 * time.Second,
		MaxChars:     8000,
	}
}

// Batcher embeds file sets through a Provider with caching.
type Batcher struct {
	provider Provider
	cache    embedcache.Cache
	opts     Options
	logger   *slog.Logger
}

// NewBatcher creates a batcher. cache may be nil. Zero option fields take
// their DefaultOptions value.
func NewBatcher(provider Provider, cache embedcache.Cache, opts Options, logger *slog.Logger) *Batcher {
	def := DefaultOptions()
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.BatchDelay < 0 {
		opts.BatchDelay = 0
	}
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = def.BatchTimeout
	}
	if opts.RetryBackoff < 0 {
		opts.RetryBackoff = 0
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = def.MaxChars
	}
	return &Batcher{
		provider: provider,
		cache:    cache,
		opts:     opts,
		logger:   slogutil.OrDiscard(logger),
	}
}

// Provider returns the underlying provider.
func (b *Batcher) Provider() Provider { return b.provider }

// EmbedFiles embeds every non-binary file not already cached. Results are
// in input order. On error the results completed so far are returned with
// the error.
func (b *Batcher) EmbedFiles(ctx context.Context, files []File) ([]Result, error) {
	results := make([]Result, len(files))
	done := make([]bool, len(files))
	var pending []int

	for i, f := range files {
		size := f.Size
		if size == 0 {
			size = int64(len(f.Content))
		}
		cls := classify.Classify(f.Path, size)
		results[i] = Result{
			Path:        f.Path,
			ContentHash: HashContent(f.Content),
			Language:    cls.Language,
			Category:    cls.Category,
			IsBinary:    cls.IsBinary,
			SizeBytes:   size,
		}
		if cls.IsBinary {
			done[i] = true
			continue
		}
		if b.cache != nil {
			entry, ok, err := b.cache.Get(ctx, results[i].ContentHash)
			if err != nil {
				b.logger.Warn("Embedding cache lookup failed", "path", f.Path, "error", err)
			}
			if ok {
				results[i].Embedding = entry.Vector
				results[i].TokenCount = entry.TokenCount
				results[i].Cached = true
				done[i] = true
				continue
			}
		}
		pending = append(pending, i)
	}

	var err error
	if len(pending) > 0 {
		err = b.embedPending(ctx, files, results, done, pending)
	}

	out := make([]Result, 0, len(files))
	for i := range results {
		if done[i] {
			out = append(out, results[i])
		}
	}
	return out, err
}

func (b *Batcher) embedPending(ctx context.Context, files []File, results []Result, done []bool, pending []int) error {
	limit := rate.Inf
	if b.opts.BatchDelay > 0 {
		limit = rate.Every(b.opts.BatchDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	batches := ChunkSlice(pending, b.opts.BatchSize)
	for n, batch := range batches {
		if err := limiter.Wait(ctx); err != nil {
			return errors.New(errors.Timeout, "waiting for embedding batch slot", err)
		}

		texts := make([]string, len(batch))
		for j, idx := range batch {
			texts[j] = FormatText(files[idx].Path, results[idx].Language, files[idx].Content, b.opts.MaxChars)
		}

		vectors, err := b.embedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding batch %d/%d: %w", n+1, len(batches), err)
		}

		for j, idx := range batch {
			r := &results[idx]
			r.Embedding = vectors[j].Values
			r.TokenCount = vectors[j].Tokens
			if r.TokenCount <= 0 {
				r.TokenCount = estimateTokens(files[idx].Content)
			}
			done[idx] = true

			if b.cache == nil {
				continue
			}
			entry := embedcache.Entry{Vector: r.Embedding, TokenCount: r.TokenCount}
			if err := b.cache.Put(ctx, r.Path, r.ContentHash, entry); err != nil {
				b.logger.Warn("Embedding cache write failed", "path", r.Path, "error", err)
			}
		}
		b.logger.Debug("Embedded batch", "batch", n+1, "of", len(batches), "files", len(batch))
	}
	return nil
}

// embedBatch runs one provider call under the batch timeout, retrying once
// after RetryBackoff when the provider reports a rate limit.
func (b *Batcher) embedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	vectors, err := b.callProvider(ctx, texts)
	if err == nil || !errors.Is(err, errors.RateLimited) {
		return vectors, err
	}

	b.logger.Warn("Embedding provider rate limited, retrying once", "backoff", b.opts.RetryBackoff)
	timer := time.NewTimer(b.opts.RetryBackoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, errors.New(errors.Timeout, "cancelled during rate limit backoff", ctx.Err())
	case <-timer.C:
	}
	return b.callProvider(ctx, texts)
}

func (b *Batcher) callProvider(ctx context.Context, texts []string) ([]Vector, error) {
	batchCtx, cancel := context.WithTimeout(ctx, b.opts.BatchTimeout)
	defer cancel()

	vectors, err := b.provider.Embed(batchCtx, texts)
	if err != nil {
		if errors.CodeOf(err) == errors.InternalError && batchCtx.Err() != nil {
			return nil, errors.New(errors.Timeout, "embedding batch timed out", err)
		}
		return nil, err
	}
	if err := checkCount(b.provider.Model(), len(vectors), len(texts)); err != nil {
		return nil, err
	}
	return vectors, nil
}

// EmbedQuery embeds a prompt without header or caching.
func (b *Batcher) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := b.provider.Embed(ctx, []string{truncateRunes(text, b.opts.MaxChars)})
	if err != nil {
		return nil, err
	}
	if err := checkCount(b.provider.Model(), len(vectors), 1); err != nil {
		return nil, err
	}
	return vectors[0].Values, nil
}

// FormatText builds the provider input for a file: a header naming the path
// and language followed by the content truncated to maxChars runes.
func FormatText(path, language, content string, maxChars int) string {
	if language == "" {
		language = "text"
	}
	return fmt.Sprintf("// File: %s (%s)\n", path, language) + truncateRunes(content, maxChars)
}

func truncateRunes(s string, maxChars int) string {
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}
	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i]
		}
		n++
	}
	return s
}

// HashContent returns the hex BLAKE2b-256 digest of content.
func HashContent(content string) string {
	sum := blake2b.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// ChunkSlice splits items into consecutive batches of at most size.
func ChunkSlice[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultOptions().BatchSize
	}
	var chunks [][]T
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[i:end])
	}
	return chunks
}
