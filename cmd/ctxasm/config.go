package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"ctxasm/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect ctxasm configuration",
	Long:  "View the configuration loaded from .ctxasm/config.{json,yaml,toml} and CTXASM_* variables",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration as JSON",
	RunE:  runConfigShow,
}

var configEnvCmd = &cobra.Command{
	Use:   "env",
	Short: "List supported environment variables",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range config.GetSupportedEnvVars() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEnvCmd)
	rootCmd.AddCommand(configCmd)
}

// ConfigShowResponse is the output of config show.
type ConfigShowResponse struct {
	EnvOverrides []config.EnvOverride `json:"envOverrides,omitempty"`
	Valid        bool                 `json:"valid"`
	Error        string               `json:"error,omitempty"`
	Config       *config.Config       `json:"config"`
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(rootDir)
	if err != nil {
		return err
	}
	cfg, overrides, err := config.LoadConfigWithDetails(root)
	if err != nil {
		return err
	}

	resp := ConfigShowResponse{EnvOverrides: overrides, Valid: true, Config: cfg}
	if err := cfg.Validate(); err != nil {
		resp.Valid = false
		resp.Error = err.Error()
	}
	if cfg.Embedding.APIKey != "" {
		redacted := *cfg
		redacted.Embedding.APIKey = "***"
		resp.Config = &redacted
	}
	return writeJSON(cmd.OutOrStdout(), resp)
}
