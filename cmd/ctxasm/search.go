package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"ctxasm/internal/lexical"
	"ctxasm/internal/model"
	"ctxasm/internal/output"
	"ctxasm/internal/vectorindex"
)

var (
	searchVersion    string
	searchLimit      int
	searchThreshold  float64
	searchCategories string
	searchFormat     string
)

var searchCmd = &cobra.Command{
	Use:   "search <project> <query...>",
	Short: "Show lexical and semantic matches for a query",
	Long: `Run both retrieval paths for a query without allocating a budget.

Lexical matches list the mentions and keyword groups that selected them.
Semantic matches come from the vector index and need a prior "ctxasm index".

Examples:
  ctxasm search webapp where is the session cookie set
  ctxasm search webapp --categories component,api login form
  ctxasm search webapp --threshold 0.5 --limit 5 auth middleware`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchVersion, "version", "", "Project version")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "Maximum semantic results (default: index.limit)")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", -1, "Similarity threshold (default: index.threshold)")
	searchCmd.Flags().StringVar(&searchCategories, "categories", "", "Restrict semantic results to categories (comma-separated)")
	searchCmd.Flags().StringVar(&searchFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(searchCmd)
}

// SearchResponseCLI is the search command output.
type SearchResponseCLI struct {
	Query         string            `json:"query"`
	Lexical       []LexicalMatchCLI `json:"lexical"`
	Semantic      []model.Candidate `json:"semantic"`
	SemanticError string            `json:"semanticError,omitempty"`
}

// LexicalMatchCLI is one lexical match with its explanation.
type LexicalMatchCLI struct {
	Path      string   `json:"path"`
	MatchedBy []string `json:"matchedBy"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(searchFormat, FormatJSON, FormatHuman)
	if err != nil {
		return err
	}
	categories, err := parseCategories(searchCategories)
	if err != nil {
		return err
	}
	projectID := args[0]
	queryStr := strings.Join(args[1:], " ")

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	files, err := a.files.GetFiles(ctx, projectID, searchVersion)
	if err != nil {
		return err
	}
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}

	matcher := lexical.New(a.cfg.Search.LexicalMaxCandidates)
	explained := matcher.Explain(queryStr, paths)
	resp := &SearchResponseCLI{Query: queryStr, Semantic: []model.Candidate{}}
	for _, c := range matcher.Match(queryStr, paths) {
		resp.Lexical = append(resp.Lexical, LexicalMatchCLI{Path: c.Path, MatchedBy: explained[c.Path]})
	}

	threshold := a.cfg.Index.Threshold
	if searchThreshold >= 0 {
		threshold = searchThreshold
	}
	limit := a.cfg.Index.Limit
	if searchLimit > 0 {
		limit = searchLimit
	}
	vec, err := a.batcher(projectID).EmbedQuery(ctx, queryStr)
	if err == nil {
		var cands []model.Candidate
		cands, err = a.index.Search(ctx, vectorindex.Query{
			Vector:     vec,
			ProjectID:  projectID,
			VersionID:  searchVersion,
			Categories: categories,
			Threshold:  threshold,
			Limit:      limit,
		})
		if err == nil {
			resp.Semantic = cands
		}
	}
	if err != nil {
		resp.SemanticError = err.Error()
		a.logger.Warn("Semantic search failed", "error", err)
	}

	if format == FormatJSON {
		return writeJSON(cmd.OutOrStdout(), resp)
	}
	printSearchHuman(cmd.OutOrStdout(), resp)
	return nil
}

func parseCategories(s string) ([]model.Category, error) {
	if s == "" {
		return nil, nil
	}
	var out []model.Category
	for _, name := range strings.Split(s, ",") {
		c, ok := model.ParseCategory(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("unknown category: %s", name)
		}
		out = append(out, c)
	}
	return out, nil
}

func printSearchHuman(w io.Writer, resp *SearchResponseCLI) {
	fmt.Fprintf(w, "Lexical matches (%d):\n", len(resp.Lexical))
	for _, m := range resp.Lexical {
		fmt.Fprintf(w, "  %-50s %s\n", m.Path, strings.Join(m.MatchedBy, ", "))
	}
	if resp.SemanticError != "" {
		fmt.Fprintf(w, "\nSemantic search unavailable: %s\n", resp.SemanticError)
		return
	}
	fmt.Fprintf(w, "\nSemantic matches (%d):\n", len(resp.Semantic))
	for _, c := range resp.Semantic {
		fmt.Fprintf(w, "  %-50s %s  %s\n", c.Path, output.FormatRelevance(c.Similarity), c.Category)
	}
}
