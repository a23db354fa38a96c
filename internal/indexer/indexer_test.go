package indexer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"ctxasm/internal/embedcache"
	"ctxasm/internal/embedding"
	"ctxasm/internal/errors"
	"ctxasm/internal/extract"
	"ctxasm/internal/filestore"
	"ctxasm/internal/model"
	"ctxasm/internal/slogutil"
	"ctxasm/internal/vectorindex"
)

type countingProvider struct {
	inner *embedding.HashProvider
	calls atomic.Int32
	fail  bool
}

func (p *countingProvider) Embed(ctx context.Context, texts []string) ([]embedding.Vector, error) {
	p.calls.Add(1)
	if p.fail {
		return nil, errors.New(errors.ProviderUnavailable, "down", nil)
	}
	return p.inner.Embed(ctx, texts)
}

func (p *countingProvider) Model() string   { return p.inner.Model() }
func (p *countingProvider) Dimensions() int { return p.inner.Dimensions() }

type failingIndex struct{ vectorindex.Index }

func (failingIndex) Upsert(context.Context, string, string, *model.FileRecord) error {
	return errors.New(errors.IndexUnavailable, "index down", nil)
}

func setup() (*filestore.MemoryStore, *countingProvider, *embedding.Batcher) {
	store := filestore.NewMemoryStore()
	store.Put("p", "", map[string]string{
		"src/a.ts": "import { b } from './b'\nexport const a = b\n",
		"src/b.ts": "export const b = 1\n",
	})
	store.PutSized("p", "", "public/logo.png", "", 2<<20)

	provider := &countingProvider{inner: embedding.NewHashProvider(32)}
	opts := embedding.Options{BatchSize: 10, BatchDelay: time.Millisecond, RetryBackoff: time.Millisecond}
	batcher := embedding.NewBatcher(provider, embedcache.NewMemory(time.Minute), opts, nil)
	return store, provider, batcher
}

func TestIndexProject(t *testing.T) {
	store, provider, batcher := setup()
	index := vectorindex.NewMemory()
	ix := New(store, batcher, index, extract.New(nil), slogutil.NewDiscardLogger())

	sum, err := ix.IndexProject(context.Background(), "p", "")
	if err != nil {
		t.Fatalf("IndexProject: %v", err)
	}
	if sum.Files != 3 || sum.Embedded != 2 || sum.Binary != 1 || sum.Cached != 0 {
		t.Errorf("summary = %+v", sum)
	}

	recs, _ := index.Lookup(context.Background(), "p", "", []string{"src/a.ts", "public/logo.png"})
	if got := recs["src/a.ts"]; got == nil || len(got.Imports) != 1 || got.Imports[0] != "./b" {
		t.Errorf("a.ts record = %+v", got)
	}
	if logo := recs["public/logo.png"]; logo == nil || logo.Embedding != nil || logo.SizeBytes != 2<<20 {
		t.Errorf("logo record = %+v", logo)
	}

	// Second run is served from the cache.
	before := provider.calls.Load()
	sum, err = ix.IndexProject(context.Background(), "p", "")
	if err != nil {
		t.Fatalf("second IndexProject: %v", err)
	}
	if provider.calls.Load() != before || sum.Cached != 2 {
		t.Errorf("second run: calls %d -> %d, summary %+v", before, provider.calls.Load(), sum)
	}
}

func TestIndexProject_Errors(t *testing.T) {
	t.Run("provider failure", func(t *testing.T) {
		store, provider, batcher := setup()
		provider.fail = true
		index := vectorindex.NewMemory()

		sum, err := New(store, batcher, index, nil, nil).IndexProject(context.Background(), "p", "")
		if !errors.Is(err, errors.ProviderUnavailable) {
			t.Fatalf("err = %v, want PROVIDER_UNAVAILABLE", err)
		}
		// The binary record is still written.
		if sum.Failed != 2 || index.Len("p", "") != 1 {
			t.Errorf("summary %+v, index len %d", sum, index.Len("p", ""))
		}
	})

	t.Run("index failure", func(t *testing.T) {
		store, _, batcher := setup()
		_, err := New(store, batcher, failingIndex{}, nil, nil).IndexProject(context.Background(), "p", "")
		if !errors.Is(err, errors.IndexUnavailable) {
			t.Errorf("err = %v, want INDEX_UNAVAILABLE", err)
		}
	})

	t.Run("unknown project", func(t *testing.T) {
		_, _, batcher := setup()
		_, err := New(filestore.NewMemoryStore(), batcher, vectorindex.NewMemory(), nil, nil).IndexProject(context.Background(), "nope", "")
		if !errors.Is(err, errors.InvalidInput) {
			t.Errorf("err = %v, want INVALID_INPUT", err)
		}
	})
}
