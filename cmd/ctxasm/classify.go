package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"ctxasm/internal/classify"
	"ctxasm/internal/extract"
)

var (
	classifyImports bool
	classifyFormat  string
)

var classifyCmd = &cobra.Command{
	Use:   "classify <path>...",
	Short: "Show how files are categorized",
	Long: `Print the category, language and binary flag assigned to each path.
Paths that exist on disk are sized; with --imports their imports and
exports are extracted too.

Examples:
  ctxasm classify src/components/Button.tsx public/logo.png
  ctxasm classify --imports src/auth/login.ts`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyImports, "imports", false, "Extract imports and exports of existing files")
	classifyCmd.Flags().StringVar(&classifyFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(classifyCmd)
}

// ClassifyResultCLI is one classified path.
type ClassifyResultCLI struct {
	Path string `json:"path"`
	classify.Result
	Imports []string `json:"imports,omitempty"`
	Exports []string `json:"exports,omitempty"`
}

func runClassify(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(classifyFormat, FormatJSON, FormatHuman)
	if err != nil {
		return err
	}
	extractor := extract.New(nil)

	results := make([]ClassifyResultCLI, 0, len(args))
	for _, p := range args {
		var size int64
		var content []byte
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			size = info.Size()
			if classifyImports && !classify.IsBinary(p) {
				content, _ = os.ReadFile(p)
			}
		}
		r := ClassifyResultCLI{Path: filepath.ToSlash(p), Result: classify.Classify(p, size)}
		if content != nil {
			edges := extractor.Extract(cmd.Context(), p, string(content))
			r.Imports, r.Exports = edges.Imports, edges.Exports
		}
		results = append(results, r)
	}

	if format == FormatJSON {
		return writeJSON(cmd.OutOrStdout(), results)
	}
	printClassifyHuman(cmd.OutOrStdout(), results)
	return nil
}

func printClassifyHuman(w io.Writer, results []ClassifyResultCLI) {
	for _, r := range results {
		lang := r.Language
		if lang == "" {
			lang = "-"
		}
		fmt.Fprintf(w, "%-50s %-16s %-12s", r.Path, r.Category, lang)
		if r.IsBinary {
			fmt.Fprintf(w, " binary (%d bytes)", r.Size)
		}
		fmt.Fprintln(w)
		if len(r.Imports) > 0 {
			fmt.Fprintf(w, "  imports: %s\n", strings.Join(r.Imports, ", "))
		}
		if len(r.Exports) > 0 {
			fmt.Fprintf(w, "  exports: %s\n", strings.Join(r.Exports, ", "))
		}
	}
}
