package app

import (
	"testing"
	"time"

	"imb-test-portal/internal/domain"
)

func TestRankOrdersByScoreDescending(t *testing.T) {
	listing := map[string][]domain.ScoredSubmission{
		"alice": {scoredSub("alice", "alice@x.org", 1)},
		"bob":   {scoredSub("bob", "bob@x.org", 3)},
		"carol": {scoredSub("carol", "carol@x.org", 2)},
	}

	lb := Rank(listing, []string{"alice@x.org", "bob@x.org"}, time.Now())

	if len(lb.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(lb.Entries))
	}
	for i := 1; i < len(lb.Entries); i++ {
		if lb.Entries[i-1].Score < lb.Entries[i].Score {
			t.Fatalf("entries not non-increasing: %+v", lb.Entries)
		}
	}
	if lb.Entries[0].Username != "bob" {
		t.Fatalf("expected bob first, got %s", lb.Entries[0].Username)
	}
}

func TestRankStableOnTies(t *testing.T) {
	listing := map[string][]domain.ScoredSubmission{
		"alice": {scoredSub("alice", "alice@x.org", 2)},
		"bob":   {scoredSub("bob", "bob@x.org", 2)},
		"carol": {scoredSub("carol", "carol@x.org", 2)},
	}

	lb := Rank(listing, nil, time.Now())

	// Enumeration order is owners sorted by key; equal scores must keep it.
	want := []string{"alice", "bob", "carol"}
	for i, entry := range lb.Entries {
		if entry.Username != want[i] {
			t.Fatalf("tie order broken: got %v", usernames(lb.Entries))
		}
	}
}

func TestRankAggregates(t *testing.T) {
	members, err := domain.SerializeTeamMembers([]domain.TeamMember{
		{Name: "Ada", Age: "16", Grade: "10", School: "X High"},
		{Name: "Grace", Age: "17", Grade: "11", School: "X High"},
	})
	if err != nil {
		t.Fatalf("serialize members: %v", err)
	}

	sub := scoredSub("alice", "alice@x.org", 1)
	sub.TeamMembers = members
	listing := map[string][]domain.ScoredSubmission{"alice": {sub}}

	lb := Rank(listing, []string{"alice@x.org", "bob@x.org", "carol@x.org"}, time.Now())

	if lb.Teams != 1 {
		t.Fatalf("expected 1 team, got %d", lb.Teams)
	}
	if lb.TotalMembers != 2 {
		t.Fatalf("expected 2 members, got %d", lb.TotalMembers)
	}
	if lb.Accounts != 3 {
		t.Fatalf("expected 3 accounts, got %d", lb.Accounts)
	}
	if len(lb.Entries[0].Members) != 2 {
		t.Fatalf("expected parsed members on the entry, got %+v", lb.Entries[0].Members)
	}
}

func scoredSub(username, email string, score int) domain.ScoredSubmission {
	return domain.ScoredSubmission{
		Submission: domain.Submission{
			Username: username,
			Email:    email,
			TeamName: "Team " + username,
		},
		Score: score,
	}
}

func usernames(entries []domain.LeaderboardEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Username
	}
	return out
}
