package main

import (
	"fmt"
	"io"

	"ctxasm/internal/output"
)

// OutputFormat selects how a command prints its result.
type OutputFormat string

const (
	FormatJSON   OutputFormat = "json"
	FormatHuman  OutputFormat = "human"
	FormatPrompt OutputFormat = "prompt"
)

func parseFormat(s string, allowed ...OutputFormat) (OutputFormat, error) {
	for _, f := range allowed {
		if OutputFormat(s) == f {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported format: %s", s)
}

// writeJSON prints v as deterministic, indented JSON.
func writeJSON(w io.Writer, v interface{}) error {
	data, err := output.EncodeIndent(v, "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
