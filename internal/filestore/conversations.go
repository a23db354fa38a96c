package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"ctxasm/internal/model"
	"ctxasm/internal/paths"
)

// ConversationStore returns the last limit messages of a project in
// chronological order.
type ConversationStore interface {
	GetRecentMessages(ctx context.Context, projectID string, limit int) ([]model.Message, error)
}

// ConversationFileName lives in the project's state directory.
const ConversationFileName = "conversation.yaml"

type conversationFile struct {
	Messages []model.Message `yaml:"messages"`
}

// YAMLStore reads <root>/<project>/.ctxasm/conversation.yaml.
type YAMLStore struct {
	root string
	mu   sync.Mutex
}

// NewYAMLStore creates a store rooted at root.
func NewYAMLStore(root string) *YAMLStore {
	return &YAMLStore{root: root}
}

func (s *YAMLStore) filePath(projectID string) (string, error) {
	if err := validateID("project id", projectID); err != nil {
		return "", err
	}
	return filepath.Join(paths.StateDir(filepath.Join(s.root, projectID)), ConversationFileName), nil
}

// GetRecentMessages returns the tail of the conversation file. A missing
// file has no messages.
func (s *YAMLStore) GetRecentMessages(_ context.Context, projectID string, limit int) ([]model.Message, error) {
	p, err := s.filePath(projectID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs, err := readConversation(p)
	if err != nil {
		return nil, err
	}
	return tail(msgs, limit), nil
}

// Append adds messages to the end of the conversation file.
func (s *YAMLStore) Append(_ context.Context, projectID string, msgs ...model.Message) error {
	p, err := s.filePath(projectID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := readConversation(p)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(conversationFile{Messages: append(existing, msgs...)})
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	return os.WriteFile(p, data, 0644)
}

func readConversation(p string) ([]model.Message, error) {
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read conversation: %w", err)
	}
	var f conversationFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse conversation: %w", err)
	}
	return f.Messages, nil
}

func tail(msgs []model.Message, limit int) []model.Message {
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]model.Message(nil), msgs...)
}

// MemoryConversations is an in-memory ConversationStore.
type MemoryConversations struct {
	mu        sync.RWMutex
	byProject map[string][]model.Message
	// Err, when set, is returned by GetRecentMessages.
	Err error
}

// NewMemoryConversations creates an empty store.
func NewMemoryConversations() *MemoryConversations {
	return &MemoryConversations{byProject: make(map[string][]model.Message)}
}

// Add appends messages to a project.
func (m *MemoryConversations) Add(projectID string, msgs ...model.Message) {
	m.mu.Lock()
	m.byProject[projectID] = append(m.byProject[projectID], msgs...)
	m.mu.Unlock()
}

func (m *MemoryConversations) GetRecentMessages(_ context.Context, projectID string, limit int) ([]model.Message, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return tail(m.byProject[projectID], limit), nil
}
