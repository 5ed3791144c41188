package portal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

// DraftStore persists in-progress answers between page loads. It is a
// resilience shim against lost connectivity, never a source of truth: the
// reconciler merges it against the server record on load, and it is cleared
// on submit or when no server-side session exists.
type DraftStore interface {
	Load() (map[string]int64, error)
	Put(questionID string, value int64) error
	Delete(questionID string) error
	Clear() error
}

// MemoryDraftStore keeps drafts in process memory.
type MemoryDraftStore struct {
	mu     sync.Mutex
	drafts map[string]int64
}

func NewMemoryDraftStore() *MemoryDraftStore {
	return &MemoryDraftStore{drafts: make(map[string]int64)}
}

func (s *MemoryDraftStore) Load() (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.drafts))
	for k, v := range s.drafts {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryDraftStore) Put(questionID string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[questionID] = value
	return nil
}

func (s *MemoryDraftStore) Delete(questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, questionID)
	return nil
}

func (s *MemoryDraftStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts = make(map[string]int64)
	return nil
}

// FileDraftStore persists the draft mapping as one JSON blob on disk, the
// way the browser build kept it under a single localStorage key.
type FileDraftStore struct {
	path string
	mu   sync.Mutex
}

func NewFileDraftStore(path string) *FileDraftStore {
	return &FileDraftStore{path: path}
}

func (s *FileDraftStore) Load() (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileDraftStore) Put(questionID string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	drafts, err := s.read()
	if err != nil {
		return err
	}
	drafts[questionID] = value
	return s.write(drafts)
}

func (s *FileDraftStore) Delete(questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	drafts, err := s.read()
	if err != nil {
		return err
	}
	delete(drafts, questionID)
	return s.write(drafts)
}

func (s *FileDraftStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear drafts: %w", err)
	}
	return nil
}

func (s *FileDraftStore) read() (map[string]int64, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]int64), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read drafts: %w", err)
	}
	drafts := make(map[string]int64)
	if err := json.Unmarshal(data, &drafts); err != nil {
		return nil, fmt.Errorf("decode drafts: %w", err)
	}
	return drafts, nil
}

func (s *FileDraftStore) write(drafts map[string]int64) error {
	data, err := json.Marshal(drafts)
	if err != nil {
		return fmt.Errorf("encode drafts: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write drafts: %w", err)
	}
	return nil
}
