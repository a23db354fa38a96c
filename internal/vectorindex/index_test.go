package vectorindex

import (
	"context"
	"math"
	"testing"

	"ctxasm/internal/errors"
	"ctxasm/internal/model"
	"ctxasm/internal/slogutil"
)

func seedRecords() []*model.FileRecord {
	return []*model.FileRecord{
		{Path: "src/auth/login.ts", ContentHash: "h1", Embedding: []float32{1, 0, 0}, Category: model.CategoryOther},
		{Path: "src/auth/session.ts", ContentHash: "h2", Embedding: []float32{0.9, 0.1, 0}, Category: model.CategoryOther},
		{Path: "src/components/Button.tsx", ContentHash: "h3", Embedding: []float32{0, 1, 0}, Category: model.CategoryComponent},
		{Path: "b.ts", ContentHash: "h4", Embedding: []float32{1, 0, 0}, Category: model.CategoryOther},
		{Path: "public/logo.png", ContentHash: "h5", Category: model.CategoryBinary},
	}
}

func backends(t *testing.T) map[string]Index {
	t.Helper()
	sqlite, err := OpenSQLite(t.TempDir(), slogutil.NewDiscardLogger())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })
	return map[string]Index{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func TestIndex_Search(t *testing.T) {
	ctx := context.Background()
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, rec := range seedRecords() {
				if err := idx.Upsert(ctx, "p1", "", rec); err != nil {
					t.Fatalf("Upsert: %v", err)
				}
			}
			// Same path in another version must not leak.
			if err := idx.Upsert(ctx, "p1", "v2", &model.FileRecord{Path: "other.ts", Embedding: []float32{1, 0, 0}}); err != nil {
				t.Fatalf("Upsert: %v", err)
			}

			got, err := idx.Search(ctx, Query{Vector: []float32{1, 0, 0}, ProjectID: "p1", Threshold: 0.5})
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			want := []string{"b.ts", "src/auth/login.ts", "src/auth/session.ts"}
			if len(got) != len(want) {
				t.Fatalf("got %d results %+v, want %v", len(got), got, want)
			}
			for i, c := range got {
				if c.Path != want[i] {
					t.Errorf("result[%d] = %s, want %s", i, c.Path, want[i])
				}
				if !c.HasSource(model.SourceSemantic) {
					t.Errorf("%s missing semantic source", c.Path)
				}
			}
		})
	}
}

func TestIndex_SearchFilters(t *testing.T) {
	ctx := context.Background()
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, rec := range seedRecords() {
				_ = idx.Upsert(ctx, "p1", "", rec)
			}

			got, _ := idx.Search(ctx, Query{Vector: []float32{1, 0, 0}, ProjectID: "p1", Limit: 1})
			if len(got) != 1 || got[0].Path != "b.ts" {
				t.Errorf("limit 1 = %+v, want [b.ts]", got)
			}

			got, _ = idx.Search(ctx, Query{
				Vector:     []float32{1, 1, 0},
				ProjectID:  "p1",
				Categories: []model.Category{model.CategoryComponent},
			})
			if len(got) != 1 || got[0].Path != "src/components/Button.tsx" {
				t.Errorf("category filter = %+v", got)
			}

			// Exactly-equal similarity is not strictly greater than threshold.
			got, _ = idx.Search(ctx, Query{Vector: []float32{0, 1, 0}, ProjectID: "p1", Threshold: 1})
			if len(got) != 0 {
				t.Errorf("threshold 1 = %+v, want none", got)
			}
		})
	}
}

func TestIndex_Lookup(t *testing.T) {
	ctx := context.Background()
	for name, idx := range backends(t) {
		t.Run(name, func(t *testing.T) {
			rec := &model.FileRecord{Path: "a.ts", ContentHash: "h", Imports: []string{"./b"}, Category: model.CategoryOther}
			_ = idx.Upsert(ctx, "p1", "", rec)
			rec.ContentHash = "h2"
			_ = idx.Upsert(ctx, "p1", "", rec)

			got, err := idx.Lookup(ctx, "p1", "", []string{"a.ts", "missing.ts"})
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("got %d records, want 1", len(got))
			}
			if got["a.ts"].ContentHash != "h2" || len(got["a.ts"].Imports) != 1 {
				t.Errorf("record = %+v", got["a.ts"])
			}
		})
	}
}

func TestIndex_InvalidQuery(t *testing.T) {
	_, err := NewMemory().Search(context.Background(), Query{ProjectID: "p1"})
	if !errors.Is(err, errors.InvalidInput) {
		t.Errorf("err = %v, want INVALID_INPUT", err)
	}
}

func TestSQLite_ClosedIsUnavailable(t *testing.T) {
	idx, err := OpenSQLite(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	idx.Close()

	_, err = idx.Search(context.Background(), Query{Vector: []float32{1}, ProjectID: "p1"})
	if !errors.Is(err, errors.IndexUnavailable) {
		t.Errorf("err = %v, want INDEX_UNAVAILABLE", err)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		a, b []float32
		want float64
	}{
		{[]float32{1, 0}, []float32{1, 0}, 1},
		{[]float32{1, 0}, []float32{0, 1}, 0},
		{[]float32{1, 0}, []float32{-1, 0}, -1},
		{[]float32{0, 0}, []float32{1, 0}, 0},
		{[]float32{1}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Cosine(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
