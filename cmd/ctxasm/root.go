package main

import (
	"github.com/spf13/cobra"

	"ctxasm/internal/version"
)

var (
	// rootDir is the workspace holding .ctxasm/ and, by default, the projects.
	rootDir   string
	verbosity int
	quiet     bool
	logFile   string
)

var rootCmd = &cobra.Command{
	Use:   "ctxasm",
	Short: "ctxasm - context assembly for code generation",
	Long: `ctxasm selects the files, dependencies, configuration and conversation
history a code generator needs for a prompt, and packs them into a token budget.

Projects live under the store root (default: the workspace root), one
directory per project id. Run "ctxasm index <project>" before asking for
context so semantic search has embeddings to work with.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("ctxasm version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", ".", "Workspace root containing .ctxasm/")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress all log output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write debug logs to this file")
}
