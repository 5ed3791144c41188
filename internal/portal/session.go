package portal

import (
	"context"
	"log"
	"sync"
	"time"

	"imb-test-portal/internal/domain"
)

// Session owns one participant's test-taking flow: team setup, answer
// edits (mirrored into the draft cache), the countdown, and the terminal
// submit. It is created at session start and discarded at sign-out; the
// identity and draft cache are passed in explicitly rather than read from
// ambient state.
type Session struct {
	identity domain.Identity
	gateway  Gateway
	drafts   DraftStore
	duration time.Duration
	clock    func() time.Time
	newTimer func(startMs int64, finalized bool, onExpire func()) *Timer

	mu    sync.Mutex
	state SessionState
	timer *Timer
}

func NewSession(identity domain.Identity, gateway Gateway, drafts DraftStore, duration time.Duration) *Session {
	s := &Session{
		identity: identity,
		gateway:  gateway,
		drafts:   drafts,
		duration: duration,
		clock:    time.Now,
	}
	s.newTimer = func(startMs int64, finalized bool, onExpire func()) *Timer {
		return NewTimer(startMs, duration, finalized, onExpire)
	}
	return s
}

// NewSessionWithClock is test-only: it injects the clock and timer factory
// so tests run without wall-clock sleeps.
func NewSessionWithClock(identity domain.Identity, gateway Gateway, drafts DraftStore, duration time.Duration, clock func() time.Time, interval time.Duration) *Session {
	s := NewSession(identity, gateway, drafts, duration)
	s.clock = clock
	s.newTimer = func(startMs int64, finalized bool, onExpire func()) *Timer {
		return NewTimerWithClock(startMs, duration, finalized, onExpire, clock, interval)
	}
	return s
}

// Load reconciles server and draft state and arms the countdown for an
// in-progress session. The timer auto-submits when it reaches zero.
func (s *Session) Load(ctx context.Context) (SessionState, error) {
	state, err := NewReconciler(s.gateway, s.drafts).Load(ctx, s.identity.Email)
	if err != nil {
		return SessionState{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.armTimerLocked()
	return state, nil
}

// Start submits the team-setup form, creating the server record with a
// fresh start timestamp. It refuses to re-issue a timestamp for a session
// that already has one.
func (s *Session) Start(ctx context.Context, teamName string, members []domain.TeamMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.StartTimestamp != 0 {
		return domain.ErrAlreadyStarted
	}
	if len(members) == 0 {
		return domain.ErrNoTeam
	}
	if len(members) > domain.MaxTeamMembers {
		return domain.ErrTeamTooLarge
	}
	if len([]rune(teamName)) > domain.MaxTeamNameLength {
		return domain.ErrTeamNameTooLong
	}

	serialized, err := domain.SerializeTeamMembers(members)
	if err != nil {
		return err
	}

	timestamp := s.clock().UnixMilli()
	started := "true"
	submitted := false
	patch := domain.SubmissionPatch{
		Username:       s.identity.Username,
		Email:          &s.identity.Email,
		Image:          &s.identity.Image,
		TeamName:       &teamName,
		TeamMembers:    &serialized,
		Started:        &started,
		StartTimestamp: &timestamp,
		Answers:        map[string]any{},
		Submitted:      &submitted,
	}
	if err := s.gateway.Submit(ctx, patch); err != nil {
		return err
	}

	s.state = SessionState{
		State:          StateInProgress,
		TeamName:       teamName,
		Members:        members,
		Answers:        make(map[string]int64),
		StartTimestamp: timestamp,
	}
	s.armTimerLocked()
	return nil
}

// SetAnswer records an answer locally and in the draft cache. Edits are
// refused once the session is finalized.
func (s *Session) SetAnswer(questionID string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Submitted {
		return domain.ErrSessionFinalized
	}
	if s.state.Answers == nil {
		s.state.Answers = make(map[string]int64)
	}
	s.state.Answers[questionID] = value
	return s.drafts.Put(questionID, value)
}

// ClearAnswer removes an answer locally and from the draft cache.
func (s *Session) ClearAnswer(questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Submitted {
		return domain.ErrSessionFinalized
	}
	delete(s.state.Answers, questionID)
	return s.drafts.Delete(questionID)
}

// Flush pushes the current answers to the server without finalizing.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	patch := s.answerPatchLocked(false)
	finalized := s.state.Submitted
	s.mu.Unlock()
	if finalized {
		return domain.ErrSessionFinalized
	}
	return s.gateway.Submit(ctx, patch)
}

// Submit finalizes the session: answers are written with submitted=true,
// the draft cache is cleared, and the countdown stops. Terminal; repeat
// calls return ErrSessionFinalized.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Submitted {
		s.mu.Unlock()
		return domain.ErrSessionFinalized
	}
	patch := s.answerPatchLocked(true)
	s.state.Submitted = true
	s.state.State = StateSubmitted
	timer := s.timer
	s.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if err := s.drafts.Clear(); err != nil {
		log.Printf("clear draft cache on submit: %v", err)
	}
	return s.gateway.Submit(ctx, patch)
}

// Remaining reports the countdown; zero when unstarted or finalized.
func (s *Session) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		return 0
	}
	return s.timer.Remaining()
}

// State returns a copy of the current session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.state
	answers := make(map[string]int64, len(state.Answers))
	for k, v := range state.Answers {
		answers[k] = v
	}
	state.Answers = answers
	return state
}

// Close stops the countdown. Safe to call multiple times.
func (s *Session) Close() {
	s.mu.Lock()
	timer := s.timer
	s.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
}

func (s *Session) armTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = s.newTimer(s.state.StartTimestamp, s.state.Submitted, s.autoSubmit)
	s.timer.Start()
}

// autoSubmit is the timer expiry callback: time is up, finalize whatever
// answers exist.
func (s *Session) autoSubmit() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Submit(ctx); err != nil && err != domain.ErrSessionFinalized {
		log.Printf("auto-submit for %q failed: %v", s.identity.Email, err)
	}
}

func (s *Session) answerPatchLocked(final bool) domain.SubmissionPatch {
	answers := make(map[string]any, len(s.state.Answers))
	for qid, value := range s.state.Answers {
		answers[qid] = value
	}
	started := "true"
	patch := domain.SubmissionPatch{
		Username: s.identity.Username,
		Email:    &s.identity.Email,
		Image:    &s.identity.Image,
		Started:  &started,
		Answers:  answers,
	}
	if final {
		submitted := true
		patch.Submitted = &submitted
	}
	return patch
}
