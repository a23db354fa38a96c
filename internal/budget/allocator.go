package budget

import (
	"sort"
	"unicode/utf8"

	"ctxasm/internal/model"
)

// TruncationMarker is appended to truncated content. It is formatting
// overhead and is not charged against the budget.
const TruncationMarker = "\n… [truncated]"

// Section names used in TokensByCategory.
const (
	SectionHistory      = "history"
	SectionConfig       = "config"
	SectionRelevant     = "relevant"
	SectionDependencies = "dependencies"
)

// Candidate is a ranked file with its content.
type Candidate struct {
	Path       string
	Content    string
	Similarity float64
	Category   model.Category
	Sources    []model.Source
	Mentioned  bool
}

// Input is everything competing for the budget.
type Input struct {
	Budget       int
	History      []model.Message
	Config       map[string]string
	Relevant     []Candidate
	Dependencies map[string]string
	// Mentioned holds paths named in the prompt. They are packed ahead of
	// the path order in the config and dependency sections.
	Mentioned    map[string]bool
}

// Result is the packed bundle content.
type Result struct {
	History          []model.Message
	Config           map[string]string
	Relevant         map[string]model.RelevantFile
	Dependencies     map[string]string
	TokensUsed       int
	TokensByCategory map[string]int
	// Truncated lists truncated file paths, sorted.
	Truncated []string
	// Exhausted is set when any section truncated or omitted content.
	Exhausted bool
}

// Allocator packs sections in the order history, config, relevant,
// dependencies.
type Allocator struct {
	split    Split
	rollover bool
}

// NewAllocator validates split and returns an allocator. With rollover,
// tokens a section leaves unused are offered to the next section.
func NewAllocator(split Split, rollover bool) (*Allocator, error) {
	if err := split.Validate(); err != nil {
		return nil, err
	}
	return &Allocator{split: split, rollover: rollover}, nil
}

// Split returns the configured split.
func (a *Allocator) Split() Split { return a.split }

// Allocate packs in into at most in.Budget tokens minus slack.
func (a *Allocator) Allocate(in Input) Result {
	res := Result{
		Config:           make(map[string]string),
		Relevant:         make(map[string]model.RelevantFile),
		Dependencies:     make(map[string]string),
		TokensByCategory: make(map[string]int),
	}
	sb := a.split.Divide(in.Budget)
	carry := 0
	settle := func(share, used int) {
		res.TokensUsed += used
		carry = 0
		if a.rollover {
			carry = share - used
		}
	}

	share := sb.History
	res.History, res.TokensByCategory[SectionHistory] = packHistory(in.History, share, &res)
	settle(share, res.TokensByCategory[SectionHistory])

	share = sb.Config + carry
	res.TokensByCategory[SectionConfig] = packFiles(sortedFiles(in.Config, in.Mentioned), share, &res, func(f fileItem, content string) {
		res.Config[f.path] = content
	})
	settle(share, res.TokensByCategory[SectionConfig])

	share = sb.Relevant + carry
	res.TokensByCategory[SectionRelevant] = packRelevant(in.Relevant, share, &res)
	settle(share, res.TokensByCategory[SectionRelevant])

	share = sb.Dependencies + carry
	res.TokensByCategory[SectionDependencies] = packFiles(sortedFiles(in.Dependencies, in.Mentioned), share, &res, func(f fileItem, content string) {
		res.Dependencies[f.path] = content
	})
	res.TokensUsed += res.TokensByCategory[SectionDependencies]

	sort.Strings(res.Truncated)
	return res
}

// packHistory keeps whole messages, newest first, and stops at the first
// message that does not fit. The kept messages are returned oldest first.
func packHistory(msgs []model.Message, budget int, res *Result) ([]model.Message, int) {
	used := 0
	start := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		cost := EstimateTokens(msgs[i].Content)
		if used+cost > budget {
			res.Exhausted = true
			break
		}
		used += cost
		start = i
	}
	kept := make([]model.Message, len(msgs)-start)
	copy(kept, msgs[start:])
	return kept, used
}

type fileItem struct {
	path    string
	content string
	tokens  int
}

func sortedFiles(files map[string]string, mentioned map[string]bool) []fileItem {
	items := make([]fileItem, 0, len(files))
	for p, c := range files {
		items = append(items, fileItem{path: p, content: c, tokens: EstimateTokens(c)})
	}
	sort.Slice(items, func(i, j int) bool {
		mi, mj := mentioned[items[i].path], mentioned[items[j].path]
		if mi != mj {
			return mi
		}
		return items[i].path < items[j].path
	})
	return items
}

// packFiles is first-fit in the given order. When budget remains after the
// pass, or nothing fit at all, the first skipped file is included truncated
// to whatever is left.
func packFiles(items []fileItem, budget int, res *Result, put func(fileItem, string)) int {
	used := 0
	var skipped []fileItem
	for _, f := range items {
		if used+f.tokens <= budget {
			put(f, f.content)
			used += f.tokens
			continue
		}
		skipped = append(skipped, f)
	}
	if len(skipped) == 0 {
		return used
	}

	res.Exhausted = true
	included := len(items) - len(skipped)
	if remaining := budget - used; remaining > 0 || included == 0 {
		f := skipped[0]
		content, cost := truncateToTokens(f.content, remaining)
		put(f, content+TruncationMarker)
		used += cost
		res.Truncated = append(res.Truncated, f.path)
	}
	return used
}

func (c Candidate) rank() model.Candidate {
	return model.Candidate{Path: c.Path, Similarity: c.Similarity, Mentioned: c.Mentioned}
}

// packRelevant ranks candidates, mentioned files first, and packs greedily. The top candidate is
// always included, truncated if needed.
func packRelevant(cands []Candidate, budget int, res *Result) int {
	ranked := append([]Candidate(nil), cands...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return model.RankLess(ranked[i].rank(), ranked[j].rank())
	})

	used := 0
	var skipped []Candidate
	put := func(c Candidate, content string, tokens int, truncated bool) {
		if truncated {
			content += TruncationMarker
			res.Truncated = append(res.Truncated, c.Path)
		}
		res.Relevant[c.Path] = model.RelevantFile{
			Content:   content,
			Relevance: c.Similarity,
			Reason:    Reason(c.Similarity, c.Category),
			Category:  c.Category,
			Sources:   c.Sources,
			Tokens:    tokens,
			Truncated: truncated,
			Mentioned: c.Mentioned,
		}
		used += tokens
	}

	for i, c := range ranked {
		if _, dup := res.Relevant[c.Path]; dup {
			continue
		}
		cost := EstimateTokens(c.Content)
		if used+cost <= budget {
			put(c, c.Content, cost, false)
			continue
		}
		if i == 0 {
			content, n := truncateToTokens(c.Content, budget)
			put(c, content, n, true)
			res.Exhausted = true
			continue
		}
		skipped = append(skipped, c)
	}

	if len(skipped) > 0 {
		res.Exhausted = true
		if remaining := budget - used; remaining > 0 {
			c := skipped[0]
			content, n := truncateToTokens(c.Content, remaining)
			put(c, content, n, true)
		}
	}
	return used
}

// truncateToTokens cuts s to at most tokens estimated tokens without
// splitting a UTF-8 sequence, returning the cut content and its cost.
func truncateToTokens(s string, tokens int) (string, int) {
	if tokens <= 0 {
		return "", 0
	}
	limit := tokens * 4
	if len(s) <= limit {
		return s, EstimateTokens(s)
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	cut := s[:limit]
	return cut, EstimateTokens(cut)
}
