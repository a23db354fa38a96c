package vectorindex

import (
	"context"
	"os"
	"strings"
	"testing"

	"ctxasm/internal/model"
	"ctxasm/internal/slogutil"
)

func TestBuildSearchSQL(t *testing.T) {
	tests := []struct {
		name     string
		q        Query
		contains []string
		absent   []string
		nargs    int
	}{
		{
			name:     "plain",
			q:        Query{Vector: []float32{1}, ProjectID: "p"},
			contains: []string{"1 - (embedding <=> $1) AS similarity", "ORDER BY embedding <=> $1", "> $4"},
			absent:   []string{"LIMIT", "ANY("},
			nargs:    4,
		},
		{
			name:     "categories and limit",
			q:        Query{Vector: []float32{1}, ProjectID: "p", Categories: []model.Category{model.CategoryAPI}, Limit: 5},
			contains: []string{"category = ANY($5)", "LIMIT $6"},
			nargs:    6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := buildSearchSQL(tt.q)
			for _, s := range tt.contains {
				if !strings.Contains(sql, s) {
					t.Errorf("SQL missing %q:\n%s", s, sql)
				}
			}
			for _, s := range tt.absent {
				if strings.Contains(sql, s) {
					t.Errorf("SQL unexpectedly contains %q", s)
				}
			}
			if len(args) != tt.nargs {
				t.Errorf("got %d args, want %d", len(args), tt.nargs)
			}
			if tt.q.Limit > 0 && args[len(args)-1] != tt.q.Limit+1 {
				t.Errorf("limit arg = %v, want %d", args[len(args)-1], tt.q.Limit+1)
			}
		})
	}
}

func TestFinalizeTieBreak(t *testing.T) {
	cs := []model.Candidate{
		{Path: "src/zz.ts", Similarity: 0.9},
		{Path: "src/a.ts", Similarity: 0.9},
		{Path: "src/bb.ts", Similarity: 0.95},
		{Path: "src/b.ts", Similarity: 0.9},
	}
	got := finalize(cs, 3)
	want := []string{"src/bb.ts", "src/a.ts", "src/b.ts"}
	for i := range want {
		if got[i].Path != want[i] {
			t.Errorf("got[%d] = %s, want %s", i, got[i].Path, want[i])
		}
	}
}

func TestPGVector_Live(t *testing.T) {
	dsn := os.Getenv("CTXASM_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("CTXASM_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	idx, err := OpenPGVector(ctx, dsn, slogutil.NewDiscardLogger())
	if err != nil {
		t.Fatalf("OpenPGVector: %v", err)
	}
	defer idx.Close()
	defer idx.DeleteProject(ctx, "ctxasm-test")

	for _, rec := range seedRecords() {
		if err := idx.Upsert(ctx, "ctxasm-test", "", rec); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	got, err := idx.Search(ctx, Query{Vector: []float32{1, 0, 0}, ProjectID: "ctxasm-test", Threshold: 0.5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 3 || got[0].Path != "b.ts" {
		t.Errorf("Search = %+v", got)
	}

	recs, err := idx.Lookup(ctx, "ctxasm-test", "", []string{"public/logo.png"})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if rec := recs["public/logo.png"]; rec == nil || rec.Embedding != nil {
		t.Errorf("binary record = %+v", rec)
	}
}
