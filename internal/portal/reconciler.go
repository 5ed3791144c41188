package portal

import (
	"context"
	"log"
	"strconv"
	"strings"
	"sync"

	"imb-test-portal/internal/domain"
)

// State is the presentation state the reconciler resolves to on load.
type State int

const (
	// StateNoSession means no server-side record exists: show team setup.
	StateNoSession State = iota
	// StateInProgress means a started, unsubmitted record exists.
	StateInProgress
	// StateSubmitted means the record is finalized and read-only.
	StateSubmitted
)

// SessionState is the merged, authoritative in-memory view of one
// participant's test session.
type SessionState struct {
	State          State
	TeamName       string
	Members        []domain.TeamMember
	Answers        map[string]int64
	StartTimestamp int64
	Submitted      bool
}

// Reconciler establishes, on sign-in or reload, whether the current
// identity already has a submission, merging the server record with the
// local draft cache. It runs at most once per identity so a re-render never
// clobbers in-progress local edits; a genuine identity change resets it.
type Reconciler struct {
	gateway Gateway
	drafts  DraftStore

	mu        sync.Mutex
	loadedFor string
	last      SessionState
}

func NewReconciler(gateway Gateway, drafts DraftStore) *Reconciler {
	return &Reconciler{gateway: gateway, drafts: drafts}
}

// Load resolves the session state for email. Repeat calls for the same
// identity return the previously reconciled state without refetching.
func (r *Reconciler) Load(ctx context.Context, email string) (SessionState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loadedFor == email && email != "" {
		return r.last, nil
	}

	listing, err := r.gateway.ListSubmissions(ctx)
	if err != nil {
		// Fail open to team setup. This silently discards a possibly-real
		// server-side session; the trade-off is deliberate (a participant
		// can re-register, and their record merges back on the next load)
		// but it is logged so organizers can spot it.
		log.Printf("reconcile for %q failed, treating as no session: %v", email, err)
		r.remember(email, r.clearedState())
		return r.last, nil
	}

	record, found := findByEmail(listing, email)
	if !found || record.StartTimestamp == 0 {
		r.remember(email, r.clearedState())
		return r.last, nil
	}

	members, err := domain.ParseTeamMembers(record.TeamMembers)
	if err != nil {
		log.Printf("reconcile for %q: %v", email, err)
	}

	state := SessionState{
		State:          StateInProgress,
		TeamName:       strings.Trim(record.TeamName, `"`),
		Members:        members,
		Answers:        r.mergedAnswers(record.Answers),
		StartTimestamp: record.StartTimestamp,
		Submitted:      record.Submitted,
	}
	if record.Submitted {
		state.State = StateSubmitted
	}
	r.remember(email, state)
	return state, nil
}

// Reset forgets the loaded identity so the next Load refetches. Call it on
// sign-out.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadedFor = ""
	r.last = SessionState{}
}

func (r *Reconciler) remember(email string, state SessionState) {
	r.loadedFor = email
	r.last = state
}

// clearedState wipes the draft cache and returns the no-session state.
func (r *Reconciler) clearedState() SessionState {
	if err := r.drafts.Clear(); err != nil {
		log.Printf("clear draft cache: %v", err)
	}
	return SessionState{State: StateNoSession, Answers: make(map[string]int64)}
}

// mergedAnswers merges server answers with the local draft cache. Local
// entries override server entries for matching keys, since the server copy
// may be stale relative to unflushed local edits; server-only keys are
// preserved.
func (r *Reconciler) mergedAnswers(server map[string]any) map[string]int64 {
	merged := make(map[string]int64, len(server))
	for qid, raw := range server {
		if value, ok := answerToInt(raw); ok {
			merged[qid] = value
		}
	}
	drafts, err := r.drafts.Load()
	if err != nil {
		log.Printf("load draft cache: %v", err)
		return merged
	}
	for qid, value := range drafts {
		merged[qid] = value
	}
	return merged
}

// findByEmail scans all submissions for the first record owned by email.
// This is a linear scan over the full listing; fine at competition scale,
// an indexed lookup would be needed for anything larger.
func findByEmail(listing map[string][]domain.ScoredSubmission, email string) (domain.ScoredSubmission, bool) {
	for _, subs := range listing {
		for _, sub := range subs {
			if sub.Email == email {
				return sub, true
			}
		}
	}
	return domain.ScoredSubmission{}, false
}

// answerToInt normalizes JSON-decoded server answer values to the client's
// integer form, dropping anything non-numeric.
func answerToInt(raw any) (int64, bool) {
	f, ok := coerce(raw)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

func coerce(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
