// Package filestore provides the project file and conversation sources the
// assembler reads from: a directory-backed store for the CLI and in-memory
// stores for tests and embedding callers.
package filestore

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"ctxasm/internal/classify"
	"ctxasm/internal/errors"
	"ctxasm/internal/paths"
	"ctxasm/internal/slogutil"
)

// FileStore returns the files of a project version keyed by project-relative
// path. An empty versionID means the current version.
type FileStore interface {
	GetFiles(ctx context.Context, projectID, versionID string) (map[string]string, error)
}

// SizedStore also reports on-disk sizes, which matter for binary files
// whose content is not loaded.
type SizedStore interface {
	FileStore
	Sizes(ctx context.Context, projectID, versionID string) (map[string]int64, error)
}

// DefaultMaxFileBytes skips text files larger than 1 MiB.
const DefaultMaxFileBytes = 1 << 20

// VersionsDirName holds snapshot directories of a project.
const VersionsDirName = ".versions"

var skipDirs = map[string]bool{
	".git":             true,
	"node_modules":     true,
	paths.StateDirName: true,
	VersionsDirName:    true,
}

// DirStore reads projects from <root>/<project>, or from
// <root>/<project>/.versions/<version> for a named version.
type DirStore struct {
	root         string
	maxFileBytes int64
	logger       *slog.Logger
}

// NewDirStore creates a store. A non-positive maxFileBytes uses
// DefaultMaxFileBytes.
func NewDirStore(root string, maxFileBytes int64, logger *slog.Logger) *DirStore {
	if maxFileBytes <= 0 {
		maxFileBytes = DefaultMaxFileBytes
	}
	return &DirStore{root: root, maxFileBytes: maxFileBytes, logger: slogutil.OrDiscard(logger)}
}

// ProjectDir returns the directory backing a project version.
func (s *DirStore) ProjectDir(projectID, versionID string) (string, error) {
	if err := validateID("project id", projectID); err != nil {
		return "", err
	}
	dir := filepath.Join(s.root, projectID)
	if versionID != "" {
		if err := validateID("version id", versionID); err != nil {
			return "", err
		}
		dir = filepath.Join(dir, VersionsDirName, versionID)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", errors.New(errors.InvalidInput, fmt.Sprintf("project %q version %q not found", projectID, versionID), err)
	}
	return dir, nil
}

func validateID(what, id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return errors.New(errors.InvalidInput, fmt.Sprintf("invalid %s %q", what, id), nil)
	}
	return nil
}

// GetFiles loads text files. Binary files are present with empty content so
// the classifier still sees them.
func (s *DirStore) GetFiles(ctx context.Context, projectID, versionID string) (map[string]string, error) {
	files := make(map[string]string)
	err := s.walk(ctx, projectID, versionID, func(rel, abs string, size int64, binary bool) error {
		if binary {
			files[rel] = ""
			return nil
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}
		files[rel] = string(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Sizes returns the size of every file GetFiles would return.
func (s *DirStore) Sizes(ctx context.Context, projectID, versionID string) (map[string]int64, error) {
	sizes := make(map[string]int64)
	err := s.walk(ctx, projectID, versionID, func(rel, _ string, size int64, _ bool) error {
		sizes[rel] = size
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sizes, nil
}

type visitFunc func(rel, abs string, size int64, binary bool) error

func (s *DirStore) walk(ctx context.Context, projectID, versionID string, visit visitFunc) error {
	dir, err := s.ProjectDir(projectID, versionID)
	if err != nil {
		return err
	}
	manifest, err := LoadManifest(dir)
	if err != nil {
		return err
	}
	maxBytes := s.maxFileBytes
	if manifest.MaxFileBytes > 0 {
		maxBytes = manifest.MaxFileBytes
	}

	return filepath.WalkDir(dir, func(abs string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, abs)
		if err != nil {
			return err
		}
		rel = paths.NormalizePath(filepath.ToSlash(rel))
		if d.IsDir() {
			if abs != dir && (skipDirs[d.Name()] || manifest.Ignored(rel)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || rel == ManifestFileName || manifest.Ignored(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		binary := classify.IsBinary(rel)
		if !binary && info.Size() > maxBytes {
			s.logger.Debug("Skipping large file", "path", rel, "size", info.Size())
			return nil
		}
		return visit(rel, abs, info.Size(), binary)
	})
}

// MemoryStore is an in-memory FileStore.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string]map[string]string
	sizes map[string]map[string]int64
	// Err, when set, is returned by every call.
	Err error
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files: make(map[string]map[string]string),
		sizes: make(map[string]map[string]int64),
	}
}

func memKey(projectID, versionID string) string {
	return projectID + "\x00" + versionID
}

// Put adds files to a project version.
func (m *MemoryStore) Put(projectID, versionID string, files map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memKey(projectID, versionID)
	if m.files[key] == nil {
		m.files[key] = make(map[string]string)
	}
	for p, c := range files {
		m.files[key][p] = c
	}
}

// PutSized adds a file with an explicit size, e.g. a binary placeholder.
func (m *MemoryStore) PutSized(projectID, versionID, path, content string, size int64) {
	m.Put(projectID, versionID, map[string]string{path: content})
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memKey(projectID, versionID)
	if m.sizes[key] == nil {
		m.sizes[key] = make(map[string]int64)
	}
	m.sizes[key][path] = size
}

// GetFiles returns a copy of the version's files.
func (m *MemoryStore) GetFiles(_ context.Context, projectID, versionID string) (map[string]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	files, ok := m.files[memKey(projectID, versionID)]
	if !ok {
		return nil, errors.New(errors.InvalidInput, fmt.Sprintf("project %q version %q not found", projectID, versionID), nil)
	}
	out := make(map[string]string, len(files))
	for p, c := range files {
		out[p] = c
	}
	return out, nil
}

// Sizes returns explicit sizes, falling back to content length.
func (m *MemoryStore) Sizes(ctx context.Context, projectID, versionID string) (map[string]int64, error) {
	files, err := m.GetFiles(ctx, projectID, versionID)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	explicit := m.sizes[memKey(projectID, versionID)]
	out := make(map[string]int64, len(files))
	for p, c := range files {
		if n, ok := explicit[p]; ok {
			out[p] = n
		} else {
			out[p] = int64(len(c))
		}
	}
	return out, nil
}
