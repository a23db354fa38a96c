package paths

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

// StateDirName is the per-project directory holding the database and logs.
const StateDirName = ".ctxasm"

// CanonicalizePath converts an absolute path to a root-relative canonical path
// - Resolves symlinks to real paths
// - Makes path relative to the project root
// - Returns the relative path with forward slashes
func CanonicalizePath(absolutePath string, root string) (string, error) {
	resolved, err := filepath.EvalSymlinks(absolutePath)
	if err != nil {
		if os.IsNotExist(err) {
			resolved = absolutePath
		} else {
			return "", err
		}
	}

	rootResolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		if os.IsNotExist(err) {
			rootResolved = root
		} else {
			return "", err
		}
	}

	relativePath, err := filepath.Rel(rootResolved, resolved)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(relativePath), nil
}

// IsWithinRoot checks if a path is within the project root
func IsWithinRoot(p string, root string) bool {
	canonical, err := CanonicalizePath(p, root)
	if err != nil {
		return false
	}
	return canonical != ".." && !strings.HasPrefix(canonical, "../")
}

// NormalizePath converts backslashes to forward slashes, cleans the result
// and strips a leading "./". The root itself normalizes to "".
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if p == "" {
		return ""
	}
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "./")
	if p == "." {
		return ""
	}
	return p
}

// JoinRootPath joins a root directory with a canonical path
func JoinRootPath(root string, canonicalPath string) string {
	normalizedPath := strings.ReplaceAll(canonicalPath, "\\", "/")
	parts := strings.Split(normalizedPath, "/")
	return filepath.Join(append([]string{root}, parts...)...)
}

// ResolveRelative resolves spec against the directory of importer. Both are
// canonical project paths. ok is false when the result escapes the root.
func ResolveRelative(importer, spec string) (string, bool) {
	dir := path.Dir(NormalizePath(importer))
	joined := path.Join(dir, spec)
	if joined == ".." || strings.HasPrefix(joined, "../") {
		return "", false
	}
	return NormalizePath(joined), true
}

// Ext returns the lowercased extension of p including the dot.
func Ext(p string) string {
	return strings.ToLower(path.Ext(p))
}

// StateDir returns <root>/.ctxasm
func StateDir(root string) string {
	return filepath.Join(root, StateDirName)
}

// DBPath returns the path of the SQLite database for root.
func DBPath(root string) string {
	return filepath.Join(StateDir(root), "ctxasm.db")
}

// EnsureLogsDir creates <root>/.ctxasm/logs and returns it.
func EnsureLogsDir(root string) (string, error) {
	dir := filepath.Join(StateDir(root), "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// IndexLogPath returns the index log file within a logs directory.
func IndexLogPath(logsDir string) string {
	return filepath.Join(logsDir, "index.log")
}
