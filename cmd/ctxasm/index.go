package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"ctxasm/internal/indexer"
)

var (
	indexVersion string
	indexFormat  string
)

var indexCmd = &cobra.Command{
	Use:   "index <project>",
	Short: "Embed and index a project's files",
	Long: `Classify, extract and embed every file of a project and write the records
to the configured vector index. Unchanged files are served from the
embedding cache and are not sent to the provider again.

Examples:
  ctxasm index webapp
  ctxasm index webapp --version v2 --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexVersion, "version", "", "Project version to index")
	indexCmd.Flags().StringVar(&indexFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(indexFormat, FormatJSON, FormatHuman)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sum, err := a.indexer(args[0]).IndexProject(ctx, args[0], indexVersion)
	if err != nil {
		return err
	}
	if format == FormatJSON {
		return writeJSON(cmd.OutOrStdout(), sum)
	}
	printIndexSummary(cmd.OutOrStdout(), args[0], sum)
	return nil
}

func printIndexSummary(w io.Writer, project string, sum indexer.Summary) {
	fmt.Fprintf(w, "Indexed %s: %d files\n", project, sum.Files)
	fmt.Fprintf(w, "  embedded: %d\n", sum.Embedded)
	fmt.Fprintf(w, "  cached:   %d\n", sum.Cached)
	fmt.Fprintf(w, "  binary:   %d\n", sum.Binary)
	if sum.Failed > 0 {
		fmt.Fprintf(w, "  failed:   %d\n", sum.Failed)
	}
	fmt.Fprintf(w, "  took:     %s\n", sum.Duration.Round(time.Millisecond))
}
