package assembler

import (
	"fmt"
	"sort"
	"strings"

	"ctxasm/internal/classify"
	"ctxasm/internal/model"
	"ctxasm/internal/output"
)

// FormatForPrompt renders a bundle and the new request as one text block.
// The output depends only on its inputs. Empty sections are omitted, except
// the summary and the new request.
func FormatForPrompt(b *model.Bundle, newPrompt string) string {
	if b == nil {
		b = &model.Bundle{}
	}
	var sb strings.Builder

	writeSummary(&sb, b)

	if len(b.ConversationHistory) > 0 {
		sb.WriteString("\n## Conversation History\n\n")
		for _, m := range b.ConversationHistory {
			fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
		}
	}

	if len(b.ConfigFiles) > 0 {
		sb.WriteString("\n## Configuration Files\n")
		for _, p := range sortedKeys(b.ConfigFiles) {
			writeFile(&sb, p, "", b.ConfigFiles[p])
		}
	}

	if len(b.RelevantFiles) > 0 {
		sb.WriteString("\n## Relevant Files\n")
		for _, p := range model.RankedPaths(b.RelevantFiles) {
			f := b.RelevantFiles[p]
			note := fmt.Sprintf(" (%s, relevance %s)", f.Reason, output.FormatRelevance(f.Relevance))
			writeFile(&sb, p, note, f.Content)
		}
	}

	if len(b.DependencyFiles) > 0 {
		sb.WriteString("\n## Dependencies\n")
		for _, p := range sortedKeys(b.DependencyFiles) {
			writeFile(&sb, p, "", b.DependencyFiles[p])
		}
	}

	sb.WriteString("\n## New Request\n\n")
	sb.WriteString(strings.TrimSpace(newPrompt))
	sb.WriteString("\n")
	return sb.String()
}

func writeSummary(sb *strings.Builder, b *model.Bundle) {
	s := b.Stats
	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(sb, "Relevant files: %d | Dependencies: %d | Configuration files: %d | History messages: %d\n",
		len(b.RelevantFiles), len(b.DependencyFiles), len(b.ConfigFiles), len(b.ConversationHistory))
	fmt.Fprintf(sb, "Tokens used: %d of %d\n", s.TokensUsed, s.BudgetTokens)

	switch {
	case s.SemanticTimedOut:
		sb.WriteString("Note: semantic search timed out; lexical matches only.\n")
	case s.SemanticSearchFailed:
		sb.WriteString("Note: semantic search unavailable; lexical matches only.\n")
	}
	if s.HistoryUnavailable {
		sb.WriteString("Note: conversation history unavailable.\n")
	}
	if len(s.TruncatedFiles) > 0 {
		fmt.Fprintf(sb, "Note: truncated to fit the budget: %s.\n", strings.Join(s.TruncatedFiles, ", "))
	} else if s.BudgetExhausted {
		sb.WriteString("Note: some content was omitted to fit the budget.\n")
	}
}

func writeFile(sb *strings.Builder, p, note, content string) {
	fmt.Fprintf(sb, "\n### %s%s\n\n```%s\n", p, note, classify.Language(p))
	sb.WriteString(content)
	if !strings.HasSuffix(content, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("```\n")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
