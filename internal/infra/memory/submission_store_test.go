package memory

import (
	"context"
	"testing"

	"imb-test-portal/internal/domain"
)

func TestUpsertMergesInsteadOfReplacing(t *testing.T) {
	ctx := context.Background()
	store := NewSubmissionStore()

	teamName := "Alpha"
	ts := int64(1000)
	if _, err := store.Upsert(ctx, "alice", domain.SubmissionPatch{
		Username:       "alice",
		TeamName:       &teamName,
		StartTimestamp: &ts,
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Second call omits the team name; it must survive.
	record, err := store.Upsert(ctx, "alice", domain.SubmissionPatch{
		Username: "alice",
		Answers:  map[string]any{"1": float64(5)},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if record.TeamName != "Alpha" {
		t.Fatalf("team name lost on merge: %+v", record)
	}
	if record.StartTimestamp != 1000 {
		t.Fatalf("start timestamp lost on merge: %+v", record)
	}
	if record.Answers["1"] != float64(5) {
		t.Fatalf("answers not written: %+v", record)
	}
}

func TestListTagsRecordsByOwner(t *testing.T) {
	ctx := context.Background()
	store := NewSubmissionStore()

	for _, username := range []string{"alice", "bob"} {
		if _, err := store.Upsert(ctx, username, domain.SubmissionPatch{Username: username}); err != nil {
			t.Fatalf("upsert %s: %v", username, err)
		}
	}

	listing, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listing) != 2 {
		t.Fatalf("expected 2 owners, got %d", len(listing))
	}
	if len(listing["alice"]) != 1 || listing["alice"][0].Username != "alice" {
		t.Fatalf("unexpected listing for alice: %+v", listing["alice"])
	}
}

func TestIdentitiesDeduplicateByEmail(t *testing.T) {
	ctx := context.Background()
	store := NewSubmissionStore()

	_ = store.RecordIdentity(ctx, domain.Identity{Email: "b@x.org", Username: "bob"})
	_ = store.RecordIdentity(ctx, domain.Identity{Email: "a@x.org", Username: "alice"})
	_ = store.RecordIdentity(ctx, domain.Identity{Email: "a@x.org", Username: "alice2"})

	emails, err := store.ListEmails(ctx)
	if err != nil {
		t.Fatalf("list emails: %v", err)
	}
	if len(emails) != 2 || emails[0] != "a@x.org" || emails[1] != "b@x.org" {
		t.Fatalf("unexpected emails: %v", emails)
	}
}
