package app

import (
	"log"
	"sort"
	"time"

	"imb-test-portal/internal/domain"
)

// Rank flattens a scored listing into a leaderboard ordered by score
// descending. The sort is stable: submissions with equal scores keep their
// enumeration order (owners sorted by key, records in listing order).
func Rank(listing map[string][]domain.ScoredSubmission, emails []string, now time.Time) domain.Leaderboard {
	owners := make([]string, 0, len(listing))
	for owner := range listing {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	entries := make([]domain.LeaderboardEntry, 0, len(listing))
	totalMembers := 0
	for _, owner := range owners {
		for _, sub := range listing[owner] {
			members, err := domain.ParseTeamMembers(sub.TeamMembers)
			if err != nil {
				log.Printf("leaderboard: unparseable team members for %q: %v", owner, err)
			}
			totalMembers += len(members)
			entries = append(entries, domain.LeaderboardEntry{
				Username:  sub.Username,
				Email:     sub.Email,
				Image:     sub.Image,
				TeamName:  sub.TeamName,
				Members:   members,
				Score:     sub.Score,
				Submitted: sub.Submitted,
				Answers:   sub.Answers,
			})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})

	return domain.Leaderboard{
		Entries:      entries,
		Teams:        len(listing),
		TotalMembers: totalMembers,
		Accounts:     len(emails),
		UpdatedAt:    now,
	}
}
