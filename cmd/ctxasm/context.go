package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"ctxasm/internal/assembler"
	"ctxasm/internal/model"
	"ctxasm/internal/output"
	"ctxasm/internal/progress"
)

var (
	ctxBudget       int
	ctxMaxFiles     int
	ctxMessages     int
	ctxIncludeTests bool
	ctxVersion      string
	ctxFormat       string
	ctxReindex      bool
	ctxProgress     bool
)

var contextCmd = &cobra.Command{
	Use:   "context <project> <prompt...>",
	Short: "Assemble the context bundle for a prompt",
	Long: `Run the lexical fast path and semantic search for a prompt, pull in
dependencies, configuration and recent conversation, and pack the result
into a token budget.

Formats:
  prompt  the text block handed to a generator (default)
  json    the bundle with stats
  human   a short summary of what was selected

Examples:
  ctxasm context webapp "update the login handler in auth/login.ts"
  ctxasm context webapp --budget 4000 --format json fix the navbar
  ctxasm context webapp --reindex --include-tests add tests for utils/date.ts`,
	Args: cobra.MinimumNArgs(2),
	RunE: runContext,
}

func init() {
	contextCmd.Flags().IntVar(&ctxBudget, "budget", 0, "Token budget (default: budget.defaultTokens)")
	contextCmd.Flags().IntVar(&ctxMaxFiles, "max-files", 0, "Maximum relevant files (default: search.maxFiles)")
	contextCmd.Flags().IntVar(&ctxMessages, "messages", 0, "Conversation messages to include (default: search.messageLimit)")
	contextCmd.Flags().BoolVar(&ctxIncludeTests, "include-tests", false, "Allow test files in the relevant set")
	contextCmd.Flags().StringVar(&ctxVersion, "version", "", "Project version")
	contextCmd.Flags().StringVar(&ctxFormat, "format", "prompt", "Output format (prompt, json, human)")
	contextCmd.Flags().BoolVar(&ctxReindex, "reindex", false, "Index the project before assembling")
	contextCmd.Flags().BoolVar(&ctxProgress, "progress", false, "Log progress events to stderr")
	rootCmd.AddCommand(contextCmd)
}

func runContext(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(ctxFormat, FormatPrompt, FormatJSON, FormatHuman)
	if err != nil {
		return err
	}
	projectID := args[0]
	prompt := strings.Join(args[1:], " ")

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if ctxReindex {
		if _, err := a.indexer(projectID).IndexProject(ctx, projectID, ctxVersion); err != nil {
			a.logger.Warn("Indexing failed, continuing with the existing index", "error", err)
		}
	}

	var sink progress.Sink = progress.Discard
	if ctxProgress {
		async := progress.NewAsync(progress.LogSink{Logger: a.logger}, 0, a.logger)
		defer async.Close()
		sink = async
	}

	engine, err := a.engine(projectID, sink)
	if err != nil {
		return err
	}

	budgetTokens := ctxBudget
	if budgetTokens == 0 {
		budgetTokens = a.cfg.Budget.DefaultTokens
	}
	bundle, err := engine.BuildContext(ctx, projectID, prompt, assembler.Options{
		MessageLimit: ctxMessages,
		MaxFiles:     ctxMaxFiles,
		IncludeTests: ctxIncludeTests,
		BudgetTokens: budgetTokens,
		VersionID:    ctxVersion,
	})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	switch format {
	case FormatJSON:
		data, err := output.EncodeBundle(bundle, "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
	case FormatHuman:
		printBundleSummary(w, bundle)
	default:
		fmt.Fprint(w, assembler.FormatForPrompt(bundle, prompt))
	}
	return nil
}

func printBundleSummary(w io.Writer, b *model.Bundle) {
	s := b.Stats
	fmt.Fprintf(w, "Request %s: %d of %d tokens\n", s.RequestID, s.TokensUsed, s.BudgetTokens)
	if s.Degraded() {
		fmt.Fprintf(w, "Degraded: semantic search %s\n", degradedReason(s))
	}

	paths := model.RankedPaths(b.RelevantFiles)
	fmt.Fprintf(w, "\nRelevant files (%d):\n", len(paths))
	for _, p := range paths {
		f := b.RelevantFiles[p]
		fmt.Fprintf(w, "  %-50s %s  %s\n", p, output.FormatRelevance(f.Relevance), f.Reason)
	}
	printPaths(w, "Dependencies", b.DependencyFiles)
	printPaths(w, "Configuration files", b.ConfigFiles)
	if len(s.TruncatedFiles) > 0 {
		fmt.Fprintf(w, "\nTruncated: %s\n", strings.Join(s.TruncatedFiles, ", "))
	}
}

func degradedReason(s model.Stats) string {
	if s.SemanticTimedOut {
		return "timed out"
	}
	if s.SemanticError != "" {
		return "failed: " + s.SemanticError
	}
	return "failed"
}

func printPaths(w io.Writer, title string, files map[string]string) {
	if len(files) == 0 {
		return
	}
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	fmt.Fprintf(w, "\n%s (%d):\n", title, len(paths))
	for _, p := range paths {
		fmt.Fprintf(w, "  %s\n", p)
	}
}
