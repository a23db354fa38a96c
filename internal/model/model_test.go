package model

import (
	"reflect"
	"testing"
)

func TestMergeCandidates(t *testing.T) {
	lexical := []Candidate{
		{Path: "auth/login.ts", Similarity: 1.0, Sources: []Source{SourceLexical}},
		{Path: "auth/session.ts", Similarity: 1.0, Sources: []Source{SourceLexical}},
	}
	semantic := []Candidate{
		{Path: "auth/login.ts", Similarity: 0.72, Sources: []Source{SourceSemantic}, Category: CategoryAPI},
		{Path: "lib/jwt.ts", Similarity: 0.64, Sources: []Source{SourceSemantic}, Category: CategoryUtility},
	}

	merged := MergeCandidates(lexical, semantic)
	if len(merged) != 3 {
		t.Fatalf("len(merged) = %d, want 3", len(merged))
	}

	var login *Candidate
	count := 0
	for i := range merged {
		if merged[i].Path == "auth/login.ts" {
			login = &merged[i]
			count++
		}
	}
	if count != 1 {
		t.Fatalf("auth/login.ts appears %d times, want 1", count)
	}
	if login.Similarity != 1.0 {
		t.Errorf("Similarity = %v, want 1.0", login.Similarity)
	}
	want := []Source{SourceLexical, SourceSemantic}
	if !reflect.DeepEqual(login.Sources, want) {
		t.Errorf("Sources = %v, want %v", login.Sources, want)
	}
	if login.Category != CategoryAPI {
		t.Errorf("Category = %v, want %v", login.Category, CategoryAPI)
	}
	if merged[len(merged)-1].Path != "lib/jwt.ts" {
		t.Errorf("lowest similarity should sort last, got %s", merged[len(merged)-1].Path)
	}
}

func TestMergeCandidates_DoesNotAliasInput(t *testing.T) {
	in := []Candidate{{Path: "a.ts", Similarity: 0.5, Sources: []Source{SourceSemantic}}}
	other := []Candidate{{Path: "a.ts", Similarity: 0.4, Sources: []Source{SourceLexical}}}
	MergeCandidates(in, other)
	if len(in[0].Sources) != 1 {
		t.Errorf("input Sources mutated: %v", in[0].Sources)
	}
}

func TestSortCandidates_TieBreak(t *testing.T) {
	cs := []Candidate{
		{Path: "src/components/long.tsx", Similarity: 0.9},
		{Path: "b.ts", Similarity: 0.9},
		{Path: "a.ts", Similarity: 0.9},
		{Path: "top.ts", Similarity: 0.95},
	}
	SortCandidates(cs)

	var got []string
	for _, c := range cs {
		got = append(got, c.Path)
	}
	want := []string{"top.ts", "a.ts", "b.ts", "src/components/long.tsx"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestSortCandidates_MentionFirst(t *testing.T) {
	cs := []Candidate{
		{Path: "a.ts", Similarity: 1.0},
		{Path: "src/features/auth/login.ts", Similarity: 0.4, Mentioned: true},
		{Path: "b.ts", Similarity: 0.9},
	}
	merged := MergeCandidates(cs[:1], cs[1:])

	var got []string
	for _, c := range merged {
		got = append(got, c.Path)
	}
	want := []string{"src/features/auth/login.ts", "a.ts", "b.ts"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}

	files := map[string]RelevantFile{
		"a.ts":                       {Relevance: 1.0},
		"src/features/auth/login.ts": {Relevance: 0.4, Mentioned: true},
	}
	if ps := RankedPaths(files); ps[0] != "src/features/auth/login.ts" {
		t.Errorf("RankedPaths = %v", ps)
	}
}

func TestParseCategory(t *testing.T) {
	if c, ok := ParseCategory("component"); !ok || c != CategoryComponent {
		t.Errorf("ParseCategory(component) = %v, %v", c, ok)
	}
	if _, ok := ParseCategory("nope"); ok {
		t.Error("ParseCategory(nope) should fail")
	}
}
