package model

import "sort"

// RelevantFile is a ranked file selected for the bundle.
type RelevantFile struct {
	Content   string   `json:"content"`
	Relevance float64  `json:"relevance"`
	Reason    string   `json:"reason"`
	Category  Category `json:"category"`
	Sources   []Source `json:"sources"`
	Tokens    int      `json:"tokens"`
	Truncated bool     `json:"truncated,omitempty"`
	Mentioned bool     `json:"mentioned,omitempty"`
}

// Bundle is the budget-bounded context handed to a downstream generator.
type Bundle struct {
	ConversationHistory []Message               `json:"conversationHistory"`
	RelevantFiles       map[string]RelevantFile `json:"relevantFiles"`
	DependencyFiles     map[string]string       `json:"dependencyFiles"`
	ConfigFiles         map[string]string       `json:"configFiles"`
	Stats               Stats                   `json:"stats"`
}

// Stats describes how a bundle was produced, including degraded conditions.
type Stats struct {
	RequestID string `json:"requestId"`

	TotalFiles         int `json:"totalFiles"`
	LexicalCandidates  int `json:"lexicalCandidates"`
	SemanticCandidates int `json:"semanticCandidates"`
	MergedCandidates   int `json:"mergedCandidates"`

	RelevantCount   int `json:"relevantCount"`
	DependencyCount int `json:"dependencyCount"`
	ConfigCount     int `json:"configCount"`
	HistoryCount    int `json:"historyCount"`

	BudgetTokens     int            `json:"budgetTokens"`
	TokensUsed       int            `json:"tokensUsed"`
	TokensByCategory map[string]int `json:"tokensByCategory"`
	TruncatedFiles   []string       `json:"truncatedFiles,omitempty"`
	BudgetExhausted  bool           `json:"budgetExhausted"`

	SemanticSearchFailed bool   `json:"semanticSearchFailed"`
	SemanticTimedOut     bool   `json:"semanticTimedOut"`
	SemanticError        string `json:"semanticError,omitempty"`
	HistoryUnavailable   bool   `json:"historyUnavailable"`

	FastPathLatencyMs int64 `json:"fastPathLatencyMs"`
	SearchLatencyMs   int64 `json:"searchLatencyMs"`
	TotalLatencyMs    int64 `json:"totalLatencyMs"`

	States []string `json:"states"`
}

// Degraded reports whether semantic retrieval did not contribute normally.
func (s Stats) Degraded() bool {
	return s.SemanticSearchFailed || s.SemanticTimedOut
}

// RankedPaths returns the relevant file paths in bundle order: mentioned
// files first, then relevance descending with the shared path tie-break.
func RankedPaths(files map[string]RelevantFile) []string {
	ps := make([]string, 0, len(files))
	for p := range files {
		ps = append(ps, p)
	}
	sort.Slice(ps, func(i, j int) bool {
		a, b := files[ps[i]], files[ps[j]]
		return RankLess(
			Candidate{Path: ps[i], Similarity: a.Relevance, Mentioned: a.Mentioned},
			Candidate{Path: ps[j], Similarity: b.Relevance, Mentioned: b.Mentioned},
		)
	})
	return ps
}
