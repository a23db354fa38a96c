// Package vectorindex stores file embeddings per project version and answers
// nearest-neighbour queries by cosine similarity.
package vectorindex

import (
	"context"
	"math"
	"sort"

	"ctxasm/internal/errors"
	"ctxasm/internal/model"
)

// Query is a similarity search request.
type Query struct {
	Vector    []float32
	ProjectID string
	VersionID string
	// Categories restricts results when non-empty.
	Categories []model.Category
	// Only results with similarity strictly greater than Threshold are returned.
	Threshold float64
	// Limit caps the result count; zero or negative means unlimited.
	Limit int
}

// Index is implemented by every backend. Implementations are safe for
// concurrent use and report backend failures as IndexUnavailable.
type Index interface {
	Upsert(ctx context.Context, projectID, versionID string, rec *model.FileRecord) error
	Search(ctx context.Context, q Query) ([]model.Candidate, error)
	Lookup(ctx context.Context, projectID, versionID string, paths []string) (map[string]*model.FileRecord, error)
	Close() error
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// ranker accumulates scored records for brute-force backends.
type ranker struct {
	q       Query
	allowed map[model.Category]bool
	out     []model.Candidate
}

func newRanker(q Query) *ranker {
	r := &ranker{q: q}
	if len(q.Categories) > 0 {
		r.allowed = make(map[model.Category]bool, len(q.Categories))
		for _, c := range q.Categories {
			r.allowed[c] = true
		}
	}
	return r
}

func (r *ranker) add(rec *model.FileRecord) {
	if rec.Embedding == nil {
		return
	}
	if r.allowed != nil && !r.allowed[rec.Category] {
		return
	}
	sim := Cosine(r.q.Vector, rec.Embedding)
	if sim <= r.q.Threshold {
		return
	}
	r.out = append(r.out, model.Candidate{
		Path:       rec.Path,
		Similarity: sim,
		Sources:    []model.Source{model.SourceSemantic},
		Category:   rec.Category,
	})
}

func (r *ranker) results() []model.Candidate {
	return finalize(r.out, r.q.Limit)
}

// finalize applies the deterministic order and the limit.
func finalize(cs []model.Candidate, limit int) []model.Candidate {
	sort.SliceStable(cs, func(i, j int) bool {
		return model.CandidateLess(cs[i].Similarity, cs[i].Path, cs[j].Similarity, cs[j].Path)
	})
	if limit > 0 && len(cs) > limit {
		cs = cs[:limit]
	}
	return cs
}

func validateQuery(q Query) error {
	if len(q.Vector) == 0 {
		return errors.New(errors.InvalidInput, "search vector is empty", nil)
	}
	if q.ProjectID == "" {
		return errors.New(errors.InvalidInput, "project id is required", nil)
	}
	return nil
}

func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.CodeOf(err) == errors.InvalidInput {
		return err
	}
	return errors.New(errors.IndexUnavailable, "vector index "+op+" failed", err)
}
