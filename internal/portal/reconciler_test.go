package portal

import (
	"context"
	"errors"
	"testing"

	"imb-test-portal/internal/domain"
)

type fakeGateway struct {
	listing   map[string][]domain.ScoredSubmission
	listErr   error
	listCalls int
	submitted []domain.SubmissionPatch
}

func (g *fakeGateway) ListSubmissions(context.Context) (map[string][]domain.ScoredSubmission, error) {
	g.listCalls++
	if g.listErr != nil {
		return nil, g.listErr
	}
	return g.listing, nil
}

func (g *fakeGateway) Submit(_ context.Context, patch domain.SubmissionPatch) error {
	g.submitted = append(g.submitted, patch)
	return nil
}

func (g *fakeGateway) IsAdmin(context.Context, string) (bool, error) {
	return false, nil
}

func startedRecord(email string, answers map[string]any, submitted bool) domain.ScoredSubmission {
	return domain.ScoredSubmission{
		Submission: domain.Submission{
			Username:       "alice",
			Email:          email,
			TeamName:       `"Alpha"`,
			TeamMembers:    `[{"name":"Ada","age":"16","grade":"10","school":"X High"}]`,
			Answers:        answers,
			Started:        "true",
			StartTimestamp: 1_700_000_000_000,
			Submitted:      submitted,
		},
	}
}

func TestReconcilerMergesServerAndDrafts(t *testing.T) {
	gateway := &fakeGateway{listing: map[string][]domain.ScoredSubmission{
		"alice": {startedRecord("alice@x.org", map[string]any{"1": float64(5)}, false)},
	}}
	drafts := NewMemoryDraftStore()
	_ = drafts.Put("2", 7)

	state, err := NewReconciler(gateway, drafts).Load(context.Background(), "alice@x.org")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if state.State != StateInProgress {
		t.Fatalf("expected in-progress, got %v", state.State)
	}
	if state.Answers["1"] != 5 || state.Answers["2"] != 7 {
		t.Fatalf("expected merged answers {1:5 2:7}, got %v", state.Answers)
	}
	if state.TeamName != "Alpha" {
		t.Fatalf("expected quotes stripped from team name, got %q", state.TeamName)
	}
	if len(state.Members) != 1 || state.Members[0].Name != "Ada" {
		t.Fatalf("expected parsed members, got %+v", state.Members)
	}
	if state.StartTimestamp != 1_700_000_000_000 {
		t.Fatalf("expected timer origin restored, got %d", state.StartTimestamp)
	}
}

func TestReconcilerLocalWinsOnCollision(t *testing.T) {
	gateway := &fakeGateway{listing: map[string][]domain.ScoredSubmission{
		"alice": {startedRecord("alice@x.org", map[string]any{"1": float64(5)}, false)},
	}}
	drafts := NewMemoryDraftStore()
	_ = drafts.Put("1", 9)

	state, err := NewReconciler(gateway, drafts).Load(context.Background(), "alice@x.org")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if state.Answers["1"] != 9 {
		t.Fatalf("expected local draft to win, got %v", state.Answers)
	}
}

func TestReconcilerNotFoundClearsDrafts(t *testing.T) {
	gateway := &fakeGateway{listing: map[string][]domain.ScoredSubmission{}}
	drafts := NewMemoryDraftStore()
	_ = drafts.Put("1", 9)

	state, err := NewReconciler(gateway, drafts).Load(context.Background(), "alice@x.org")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if state.State != StateNoSession {
		t.Fatalf("expected no-session, got %v", state.State)
	}
	remaining, _ := drafts.Load()
	if len(remaining) != 0 {
		t.Fatalf("expected drafts cleared, got %v", remaining)
	}
}

func TestReconcilerRecordWithoutStartIsNoSession(t *testing.T) {
	record := startedRecord("alice@x.org", nil, false)
	record.StartTimestamp = 0
	gateway := &fakeGateway{listing: map[string][]domain.ScoredSubmission{"alice": {record}}}

	state, err := NewReconciler(gateway, NewMemoryDraftStore()).Load(context.Background(), "alice@x.org")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if state.State != StateNoSession {
		t.Fatalf("expected no-session for unstarted record, got %v", state.State)
	}
}

func TestReconcilerSubmittedRecord(t *testing.T) {
	gateway := &fakeGateway{listing: map[string][]domain.ScoredSubmission{
		"alice": {startedRecord("alice@x.org", map[string]any{"1": float64(5)}, true)},
	}}

	state, err := NewReconciler(gateway, NewMemoryDraftStore()).Load(context.Background(), "alice@x.org")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if state.State != StateSubmitted || !state.Submitted {
		t.Fatalf("expected submitted state, got %+v", state)
	}
}

func TestReconcilerRunsOncePerIdentity(t *testing.T) {
	gateway := &fakeGateway{listing: map[string][]domain.ScoredSubmission{
		"alice": {startedRecord("alice@x.org", map[string]any{"1": float64(5)}, false)},
	}}
	reconciler := NewReconciler(gateway, NewMemoryDraftStore())

	if _, err := reconciler.Load(context.Background(), "alice@x.org"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := reconciler.Load(context.Background(), "alice@x.org"); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if gateway.listCalls != 1 {
		t.Fatalf("expected a single fetch per identity, got %d", gateway.listCalls)
	}

	// A genuine identity change refetches.
	if _, err := reconciler.Load(context.Background(), "bob@x.org"); err != nil {
		t.Fatalf("load other: %v", err)
	}
	if gateway.listCalls != 2 {
		t.Fatalf("expected refetch on identity change, got %d", gateway.listCalls)
	}

	reconciler.Reset()
	if _, err := reconciler.Load(context.Background(), "bob@x.org"); err != nil {
		t.Fatalf("load after reset: %v", err)
	}
	if gateway.listCalls != 3 {
		t.Fatalf("expected refetch after reset, got %d", gateway.listCalls)
	}
}

func TestReconcilerFetchFailureFailsOpen(t *testing.T) {
	gateway := &fakeGateway{listErr: errors.New("gateway down")}
	drafts := NewMemoryDraftStore()
	_ = drafts.Put("1", 9)

	state, err := NewReconciler(gateway, drafts).Load(context.Background(), "alice@x.org")
	if err != nil {
		t.Fatalf("expected fail-open, got %v", err)
	}
	if state.State != StateNoSession {
		t.Fatalf("expected no-session on fetch failure, got %v", state.State)
	}
	remaining, _ := drafts.Load()
	if len(remaining) != 0 {
		t.Fatalf("expected drafts cleared on failure, got %v", remaining)
	}
}
