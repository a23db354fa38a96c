// Package model holds the data types shared by the retrieval, allocation and
// assembly packages.
package model

import (
	"sort"
	"time"
)

// Category is the coarse role of a file within a project.
type Category string

const (
	CategoryConfig    Category = "config"
	CategoryTest      Category = "test"
	CategoryTypes     Category = "type-definition"
	CategoryComponent Category = "component"
	CategoryUtility   Category = "utility"
	CategoryAPI       Category = "api"
	CategoryBinary    Category = "binary-asset"
	CategoryOther     Category = "other"
)

// AllCategories lists every category in display order.
var AllCategories = []Category{
	CategoryConfig, CategoryTest, CategoryTypes, CategoryComponent,
	CategoryUtility, CategoryAPI, CategoryBinary, CategoryOther,
}

func (c Category) String() string { return string(c) }

// ParseCategory maps a string to a Category. ok is false for unknown names.
func ParseCategory(s string) (Category, bool) {
	for _, c := range AllCategories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// Source identifies which retrieval path produced a candidate.
type Source string

const (
	SourceLexical  Source = "lexical"
	SourceSemantic Source = "semantic"
)

// FileRecord is the indexed representation of one file in one project version.
// Embedding is nil for binary and asset files.
type FileRecord struct {
	Path        string    `json:"path"`
	ContentHash string    `json:"contentHash"`
	Embedding   []float32 `json:"embedding,omitempty"`
	TokenCount  int       `json:"tokenCount"`
	Language    string    `json:"language"`
	Category    Category  `json:"category"`
	Imports     []string  `json:"imports,omitempty"`
	Exports     []string  `json:"exports,omitempty"`
	SizeBytes   int64     `json:"sizeBytes"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Candidate is a file proposed for the relevant set by one or more retrieval paths.
type Candidate struct {
	Path       string   `json:"path"`
	Similarity float64  `json:"similarity"`
	Sources    []Source `json:"sources"`
	Category   Category `json:"category"`
	// Mentioned is set when the prompt names the file explicitly.
	Mentioned  bool     `json:"mentioned,omitempty"`
}

// HasSource reports whether s contributed to the candidate.
func (c Candidate) HasSource(s Source) bool {
	for _, src := range c.Sources {
		if src == s {
			return true
		}
	}
	return false
}

// MergeCandidates deduplicates by path keeping the highest similarity and
// the union of sources. The result is sorted with SortCandidates.
func MergeCandidates(lists ...[]Candidate) []Candidate {
	byPath := make(map[string]*Candidate)
	for _, list := range lists {
		for _, c := range list {
			existing, ok := byPath[c.Path]
			if !ok {
				cp := c
				cp.Sources = append([]Source(nil), c.Sources...)
				byPath[c.Path] = &cp
				continue
			}
			if c.Similarity > existing.Similarity {
				existing.Similarity = c.Similarity
			}
			existing.Mentioned = existing.Mentioned || c.Mentioned
			if existing.Category == "" {
				existing.Category = c.Category
			}
			for _, s := range c.Sources {
				if !existing.HasSource(s) {
					existing.Sources = append(existing.Sources, s)
				}
			}
		}
	}

	merged := make([]Candidate, 0, len(byPath))
	for _, c := range byPath {
		sort.Slice(c.Sources, func(i, j int) bool { return c.Sources[i] < c.Sources[j] })
		merged = append(merged, *c)
	}
	SortCandidates(merged)
	return merged
}

// SortCandidates orders explicitly mentioned files first, then by
// similarity descending, shorter path and path.
func SortCandidates(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool { return RankLess(cs[i], cs[j]) })
}

// RankLess is the order of the relevant set. A mention outranks any score.
func RankLess(a, b Candidate) bool {
	if a.Mentioned != b.Mentioned {
		return a.Mentioned
	}
	return CandidateLess(a.Similarity, a.Path, b.Similarity, b.Path)
}

// CandidateLess is the ranking order shared by the index backends and the allocator.
func CandidateLess(simA float64, pathA string, simB float64, pathB string) bool {
	if simA != simB {
		return simA > simB
	}
	if len(pathA) != len(pathB) {
		return len(pathA) < len(pathB)
	}
	return pathA < pathB
}

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}
