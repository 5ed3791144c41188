package memory

import (
	"context"
	"sort"
	"sync"

	"imb-test-portal/internal/domain"
)

// SubmissionStore is an in-memory implementation of app.SubmissionStore,
// the default when no Postgres URL is configured.
type SubmissionStore struct {
	mu          sync.RWMutex
	submissions map[string]domain.Submission
	identities  map[string]domain.Identity
}

func NewSubmissionStore() *SubmissionStore {
	return &SubmissionStore{
		submissions: make(map[string]domain.Submission),
		identities:  make(map[string]domain.Identity),
	}
}

func (s *SubmissionStore) Upsert(_ context.Context, username string, patch domain.SubmissionPatch) (domain.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := domain.MergePatch(s.submissions[username], patch)
	s.submissions[username] = merged
	return merged, nil
}

func (s *SubmissionStore) List(_ context.Context) (map[string][]domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]domain.Submission, len(s.submissions))
	for username, sub := range s.submissions {
		out[username] = []domain.Submission{sub}
	}
	return out, nil
}

func (s *SubmissionStore) RecordIdentity(_ context.Context, identity domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[identity.Email] = identity
	return nil
}

func (s *SubmissionStore) ListEmails(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	emails := make([]string, 0, len(s.identities))
	for email := range s.identities {
		emails = append(emails, email)
	}
	sort.Strings(emails)
	return emails, nil
}
