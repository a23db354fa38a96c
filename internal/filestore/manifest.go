package filestore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ManifestFileName is the optional per-project manifest.
const ManifestFileName = "ctxasm.toml"

// Manifest tunes how a project directory is read:
//
//	ignore = ["dist/**", "*.generated.ts"]
//	max_file_bytes = 524288
type Manifest struct {
	Ignore       []string `toml:"ignore"`
	MaxFileBytes int64    `toml:"max_file_bytes"`
}

// LoadManifest reads <dir>/ctxasm.toml. A missing file yields an empty manifest.
func LoadManifest(dir string) (*Manifest, error) {
	m := &Manifest{}
	data, err := os.ReadFile(filepath.Join(dir, ManifestFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if _, err := toml.Decode(string(data), m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	for _, pattern := range m.Ignore {
		if _, err := path.Match(strings.TrimSuffix(pattern, "/**"), ""); err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
	}
	return m, nil
}

// Ignored reports whether a project-relative path matches an ignore pattern.
// "dir/**" ignores everything under dir; other patterns match either the
// whole path or its base name.
func (m *Manifest) Ignored(rel string) bool {
	if m == nil {
		return false
	}
	for _, pattern := range m.Ignore {
		if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
			if rel == prefix || strings.HasPrefix(rel, prefix+"/") {
				return true
			}
			continue
		}
		if ok, _ := path.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := path.Match(pattern, path.Base(rel)); ok {
			return true
		}
	}
	return false
}
