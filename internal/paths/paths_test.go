package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"src/app.ts", "src/app.ts"},
		{"./src/app.ts", "src/app.ts"},
		{"src\\lib\\util.ts", "src/lib/util.ts"},
		{"src//lib/../app.ts", "src/app.ts"},
		{".", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizePath(tt.in); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolveRelative(t *testing.T) {
	tests := []struct {
		importer string
		spec     string
		want     string
		wantOK   bool
	}{
		{"a.ts", "./b.ts", "b.ts", true},
		{"src/components/Button.tsx", "../lib/util", "src/lib/util", true},
		{"src/app.ts", "./hooks/useAuth", "src/hooks/useAuth", true},
		{"a.ts", "../outside", "", false},
	}
	for _, tt := range tests {
		got, ok := ResolveRelative(tt.importer, tt.spec)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ResolveRelative(%q, %q) = %q, %v, want %q, %v",
				tt.importer, tt.spec, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestCanonicalizePath(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "src", "main.go")
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(file, []byte("package main"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := CanonicalizePath(file, root)
	if err != nil {
		t.Fatalf("CanonicalizePath() error = %v", err)
	}
	if got != "src/main.go" {
		t.Errorf("CanonicalizePath() = %q, want src/main.go", got)
	}
	if !IsWithinRoot(file, root) {
		t.Error("IsWithinRoot() = false, want true")
	}
	if IsWithinRoot(filepath.Dir(root), root) {
		t.Error("parent of root should not be within root")
	}
}

func TestJoinRootPath(t *testing.T) {
	got := JoinRootPath("/repo", "src/lib/util.ts")
	want := filepath.Join("/repo", "src", "lib", "util.ts")
	if got != want {
		t.Errorf("JoinRootPath() = %q, want %q", got, want)
	}
}

func TestEnsureLogsDir(t *testing.T) {
	root := t.TempDir()
	dir, err := EnsureLogsDir(root)
	if err != nil {
		t.Fatalf("EnsureLogsDir() error = %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("logs dir %q not created", dir)
	}
	if IndexLogPath(dir) != filepath.Join(root, ".ctxasm", "logs", "index.log") {
		t.Errorf("IndexLogPath() = %q", IndexLogPath(dir))
	}
}
