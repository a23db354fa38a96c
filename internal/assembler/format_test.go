package assembler

import (
	"strings"
	"testing"

	"ctxasm/internal/model"
)

func TestFormatForPrompt(t *testing.T) {
	b := &model.Bundle{
		ConversationHistory: []model.Message{
			{Role: "user", Content: "add login"},
			{Role: "assistant", Content: "done"},
		},
		ConfigFiles: map[string]string{"package.json": `{"name":"app"}`},
		RelevantFiles: map[string]model.RelevantFile{
			"auth/x.ts":     {Content: "x", Relevance: 0.5, Reason: "related other"},
			"auth/login.ts": {Content: "export const a = 1\n", Relevance: 0.866, Reason: "highly relevant other"},
		},
		DependencyFiles: map[string]string{"auth/session.ts": "s\n"},
		Stats: model.Stats{
			TokensUsed:           40,
			BudgetTokens:         100,
			SemanticSearchFailed: true,
		},
	}

	want := strings.ReplaceAll(`## Summary

Relevant files: 2 | Dependencies: 1 | Configuration files: 1 | History messages: 2
Tokens used: 40 of 100
Note: semantic search unavailable; lexical matches only.

## Conversation History

user: add login
assistant: done

## Configuration Files

### package.json

~~~json
{"name":"app"}
~~~

## Relevant Files

### auth/login.ts (highly relevant other, relevance 0.87)

~~~typescript
export const a = 1
~~~

### auth/x.ts (related other, relevance 0.50)

~~~typescript
x
~~~

## Dependencies

### auth/session.ts

~~~typescript
s
~~~

## New Request

add logout
`, "~~~", "```")

	got := FormatForPrompt(b, "  add logout\n")
	if got != want {
		t.Errorf("FormatForPrompt mismatch\n--- got ---\n%s\n--- want ---\n%s", got, want)
	}
}

func TestFormatForPrompt_EmptySections(t *testing.T) {
	got := FormatForPrompt(&model.Bundle{Stats: model.Stats{BudgetTokens: 10, SemanticTimedOut: true, HistoryUnavailable: true}}, "go")
	for _, absent := range []string{"## Conversation History", "## Configuration Files", "## Relevant Files", "## Dependencies"} {
		if strings.Contains(got, absent) {
			t.Errorf("empty section %q rendered", absent)
		}
	}
	for _, present := range []string{"## Summary", "## New Request", "semantic search timed out", "history unavailable"} {
		if !strings.Contains(got, present) {
			t.Errorf("missing %q in:\n%s", present, got)
		}
	}
	if FormatForPrompt(nil, "go") == "" {
		t.Error("nil bundle should still render")
	}
}
