package output

import (
	"strings"
	"testing"

	"ctxasm/internal/model"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  string
	}{
		{
			name: "floats rounded",
			input: struct {
				Name  string  `json:"name"`
				Score float64 `json:"score"`
				Count int     `json:"count"`
			}{"test", 0.123456789, 42},
			want: `{"count":42,"name":"test","score":0.123457}`,
		},
		{
			name: "omitempty honoured",
			input: struct {
				Name  string   `json:"name"`
				Score *float64 `json:"score,omitempty"`
			}{Name: "test"},
			want: `{"name":"test"}`,
		},
		{
			name:  "map keys sorted",
			input: map[string]int{"zebra": 3, "alpha": 1, "beta": 2},
			want:  `{"alpha":1,"beta":2,"zebra":3}`,
		},
		{
			name:  "html not escaped",
			input: map[string]string{"src/a.tsx": "<div>&</div>"},
			want:  `{"src/a.tsx":"<div>&</div>"}`,
		},
		{
			name:  "large integers kept exact",
			input: map[string]int64{"size": 9007199254740993},
			want:  `{"size":9007199254740993}`,
		},
		{
			name:  "empty collections kept",
			input: map[string]interface{}{"files": map[string]string{}, "list": []string{}},
			want:  `{"files":{},"list":[]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.input)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Encode = %s, want %s", got, tt.want)
			}
		})
	}
}

func testBundle(requestID string, latency int64) *model.Bundle {
	return &model.Bundle{
		ConversationHistory: []model.Message{{Role: "user", Content: "hi"}},
		RelevantFiles: map[string]model.RelevantFile{
			"src/b.ts": {Content: "b", Relevance: 0.5, Reason: "lexical match", Category: model.CategoryUtility},
			"src/a.ts": {Content: "a", Relevance: 0.91234567, Reason: "semantic match", Category: model.CategoryUtility},
		},
		DependencyFiles: map[string]string{},
		ConfigFiles:     map[string]string{"package.json": "{}"},
		Stats: model.Stats{
			RequestID:      requestID,
			TotalLatencyMs: latency,
			States:         []string{"idle", "done"},
		},
	}
}

func TestEncodeBundle(t *testing.T) {
	a, err := EncodeBundle(testBundle("r1", 5), "  ")
	if err != nil {
		t.Fatalf("EncodeBundle: %v", err)
	}
	b, err := EncodeBundle(testBundle("r1", 5), "  ")
	if err != nil {
		t.Fatalf("EncodeBundle: %v", err)
	}
	if string(a) != string(b) {
		t.Error("encoding is not deterministic")
	}
	s := string(a)
	if strings.Index(s, `"src/a.ts"`) > strings.Index(s, `"src/b.ts"`) {
		t.Error("relevant files not in key order")
	}
	if !strings.Contains(s, `"relevance": 0.912346`) {
		t.Errorf("relevance not rounded:\n%s", s)
	}
	if !strings.Contains(s, `"dependencyFiles": {}`) {
		t.Errorf("empty dependency map dropped:\n%s", s)
	}

	if _, err := EncodeBundle(nil, ""); err == nil {
		t.Error("EncodeBundle(nil) should fail")
	}
}

func TestSnapshotEqual(t *testing.T) {
	if !SnapshotEqual(testBundle("r1", 5), testBundle("r2", 900)) {
		t.Error("bundles differing only in volatile fields should be equal")
	}
	other := testBundle("r1", 5)
	other.ConfigFiles["tsconfig.json"] = "{}"
	if SnapshotEqual(testBundle("r1", 5), other) {
		t.Error("bundles with different config files should differ")
	}
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1.5, "1.5"},
		{2, "2"},
		{0.1234567, "0.123457"},
	}
	for _, tt := range tests {
		if got := FormatFloat(tt.in); got != tt.want {
			t.Errorf("FormatFloat(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := FormatRelevance(0.8666); got != "0.87" {
		t.Errorf("FormatRelevance = %q, want 0.87", got)
	}
	if got := FormatRelevance(1); got != "1.00" {
		t.Errorf("FormatRelevance(1) = %q, want 1.00", got)
	}
}
