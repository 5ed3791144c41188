package app

import (
	"context"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"imb-test-portal/internal/domain"
)

// SubmissionStore abstracts how submission and identity records are stored
// (in-memory, Postgres, etc).
type SubmissionStore interface {
	// Upsert merge-writes a record under the participant's username.
	// Fields absent from the patch must be preserved; last writer wins on
	// fields present in the call.
	Upsert(ctx context.Context, username string, patch domain.SubmissionPatch) (domain.Submission, error)
	// List returns all submissions across all keys, tagged by owning key.
	List(ctx context.Context) (map[string][]domain.Submission, error)
	RecordIdentity(ctx context.Context, identity domain.Identity) error
	ListEmails(ctx context.Context) ([]string, error)
}

// ScoredLister produces the scored listing consumed by the reconciler and
// the admin leaderboard. Infrastructure may wrap it with a cache.
type ScoredLister interface {
	ListScored(ctx context.Context) (map[string][]domain.ScoredSubmission, error)
}

// Invalidator is implemented by listers whose results must be dropped after
// a write.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// PortalService contains the portal use cases: merge-upserting submissions,
// scoring listings, the admin allow-list check, and leaderboard fan-out.
type PortalService struct {
	store  SubmissionStore
	lister ScoredLister
	key    []int64
	admins map[string]struct{}
	clock  func() time.Time

	mu          sync.RWMutex
	subscribers map[chan domain.Leaderboard]struct{}
}

func NewPortalService(store SubmissionStore, lister ScoredLister, answerKey []int64, adminEmails []string) *PortalService {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		admins[email] = struct{}{}
	}
	s := &PortalService{
		store:       store,
		lister:      lister,
		key:         answerKey,
		admins:      admins,
		clock:       time.Now,
		subscribers: make(map[chan domain.Leaderboard]struct{}),
	}
	if s.lister == nil {
		s.lister = NewScoringLister(store, answerKey)
	}
	return s
}

// NewPortalServiceWithClock is test-only for deterministic timestamps.
func NewPortalServiceWithClock(store SubmissionStore, lister ScoredLister, answerKey []int64, adminEmails []string, now func() time.Time) *PortalService {
	s := NewPortalService(store, lister, answerKey, adminEmails)
	s.clock = now
	return s
}

// QuestionCount reports N, the size of the fixed question-id set.
func (s *PortalService) QuestionCount() int {
	return len(s.key)
}

// Submit merge-writes a submission, records the identity for email
// enumeration, and fans a fresh leaderboard out to subscribers.
func (s *PortalService) Submit(ctx context.Context, patch domain.SubmissionPatch) (domain.Submission, error) {
	if strings.TrimSpace(patch.Username) == "" || patch.Email == nil || strings.TrimSpace(*patch.Email) == "" {
		return domain.Submission{}, domain.ErrMissingIdentity
	}
	if patch.TeamName != nil && len([]rune(*patch.TeamName)) > domain.MaxTeamNameLength {
		truncated := string([]rune(*patch.TeamName)[:domain.MaxTeamNameLength])
		patch.TeamName = &truncated
	}
	s.dropUnknownAnswers(&patch)

	record, err := s.store.Upsert(ctx, patch.Username, patch)
	if err != nil {
		return domain.Submission{}, err
	}

	identity := domain.Identity{Email: record.Email, Username: record.Username, Image: record.Image}
	if err := s.store.RecordIdentity(ctx, identity); err != nil {
		log.Printf("record identity for %q: %v", record.Email, err)
	}

	if inv, ok := s.lister.(Invalidator); ok {
		if err := inv.Invalidate(ctx); err != nil {
			log.Printf("invalidate listing cache: %v", err)
		}
	}
	s.broadcast(ctx)
	return record, nil
}

// dropUnknownAnswers enforces that answer keys stay a subset of "1".."N".
func (s *PortalService) dropUnknownAnswers(patch *domain.SubmissionPatch) {
	for qid := range patch.Answers {
		n, err := strconv.Atoi(qid)
		if err != nil || n < 1 || n > len(s.key) {
			log.Printf("dropping answer for unknown question id %q from %q", qid, patch.Username)
			delete(patch.Answers, qid)
		}
	}
}

// ListScored returns all submissions keyed by owner, each annotated with a
// server-computed score.
func (s *PortalService) ListScored(ctx context.Context) (map[string][]domain.ScoredSubmission, error) {
	return s.lister.ListScored(ctx)
}

// scoringLister scores the raw store listing on every read; the answer key
// stays inside this package's trust boundary.
type scoringLister struct {
	store SubmissionStore
	key   []int64
}

// NewScoringLister builds the uncached scoring path. Infrastructure may
// wrap it with a cache and hand the wrapper to NewPortalService.
func NewScoringLister(store SubmissionStore, answerKey []int64) ScoredLister {
	return scoringLister{store: store, key: answerKey}
}

func (l scoringLister) ListScored(ctx context.Context) (map[string][]domain.ScoredSubmission, error) {
	raw, err := l.store.List(ctx)
	if err != nil {
		return nil, err
	}
	scored := make(map[string][]domain.ScoredSubmission, len(raw))
	for owner, subs := range raw {
		rows := make([]domain.ScoredSubmission, 0, len(subs))
		for _, sub := range subs {
			rows = append(rows, domain.ScoredSubmission{
				Submission: sub,
				Score:      Score(l.key, sub.Answers),
			})
		}
		scored[owner] = rows
	}
	return scored, nil
}

// Emails returns all registered identities' emails, space-joined.
func (s *PortalService) Emails(ctx context.Context) (string, error) {
	emails, err := s.store.ListEmails(ctx)
	if err != nil {
		return "", err
	}
	return strings.Join(emails, " "), nil
}

// IsAdmin reports allow-list membership. Privilege checks fail closed:
// callers must treat any upstream error as "not admin".
func (s *PortalService) IsAdmin(email string) bool {
	_, ok := s.admins[email]
	return ok
}

// Leaderboard assembles the ranked snapshot for the admin view.
func (s *PortalService) Leaderboard(ctx context.Context) (domain.Leaderboard, error) {
	listing, err := s.lister.ListScored(ctx)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	emails, err := s.store.ListEmails(ctx)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return Rank(listing, emails, s.clock()), nil
}

// Subscribe returns a channel seeded with the current leaderboard that then
// receives a snapshot after every accepted submission. The caller must
// invoke the returned cancel function to avoid leaks; cancel is safe to
// call more than once.
func (s *PortalService) Subscribe(ctx context.Context) (<-chan domain.Leaderboard, func(), error) {
	initial, err := s.Leaderboard(ctx)
	if err != nil {
		return nil, nil, err
	}

	// Seed before registering: once the channel is visible to broadcast,
	// concurrent writes could fill the buffer and make this send block.
	ch := make(chan domain.Leaderboard, 8)
	ch <- initial
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

func (s *PortalService) broadcast(ctx context.Context) {
	s.mu.RLock()
	subscriberCount := len(s.subscribers)
	s.mu.RUnlock()
	if subscriberCount == 0 {
		return
	}

	lb, err := s.Leaderboard(ctx)
	if err != nil {
		log.Printf("leaderboard broadcast skipped: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- lb:
		default:
			// Drop the stale snapshot so slow readers never block a write.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
