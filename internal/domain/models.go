package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// TeamMember is one registered member of a team.
type TeamMember struct {
	Name   string `json:"name"`
	Age    string `json:"age"`
	Grade  string `json:"grade"`
	School string `json:"school"`
}

// MaxTeamMembers is the largest team the portal accepts.
const MaxTeamMembers = 4

// MaxTeamNameLength bounds the free-text team name.
const MaxTeamNameLength = 30

// Submission is the persisted record of one participant's team registration,
// timing, and answers. Answers values keep their decoded JSON form (numbers
// or numeric strings); scoring does the coercion.
type Submission struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Image    string `json:"image"`
	TeamName string `json:"teamName"`
	// TeamMembers is stored as a JSON-serialized []TeamMember, parsed back
	// on read. Kept opaque here to match the storage layout.
	TeamMembers string         `json:"teamMembers"`
	Answers     map[string]any `json:"answers"`
	Started     string         `json:"started"`
	// StartTimestamp is milliseconds since epoch; zero means not started.
	StartTimestamp int64 `json:"startTimestamp"`
	Submitted      bool  `json:"submitted"`
}

// ScoredSubmission is a submission annotated with its server-computed score.
// The score is derived on read and never persisted.
type ScoredSubmission struct {
	Submission
	Score int `json:"_score"`
}

// Identity is a registered account, recorded for email enumeration.
type Identity struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Image    string `json:"image"`
}

// SubmissionPatch is a partial write against a submission record. Nil fields
// are left untouched by the merge; Answers merges per key.
type SubmissionPatch struct {
	Username       string
	Email          *string
	Image          *string
	TeamName       *string
	TeamMembers    *string
	Answers        map[string]any
	Started        *string
	StartTimestamp *int64
	Submitted      *bool
}

// MergePatch applies a partial write on top of an existing record.
// Invariants enforced here so every store gets them:
//   - StartTimestamp is write-once; a patch cannot overwrite a set value.
//   - Submitted is monotonic: once true it never flips back.
//   - Answers merge per key; keys absent from the patch are preserved.
func MergePatch(existing Submission, patch SubmissionPatch) Submission {
	merged := existing
	merged.Username = patch.Username
	if patch.Email != nil {
		merged.Email = *patch.Email
	}
	if patch.Image != nil {
		merged.Image = *patch.Image
	}
	if patch.TeamName != nil {
		merged.TeamName = *patch.TeamName
	}
	if patch.TeamMembers != nil {
		merged.TeamMembers = *patch.TeamMembers
	}
	if patch.Started != nil {
		merged.Started = *patch.Started
	}
	if patch.StartTimestamp != nil && existing.StartTimestamp == 0 {
		merged.StartTimestamp = *patch.StartTimestamp
	}
	if patch.Submitted != nil && *patch.Submitted {
		merged.Submitted = true
	}
	if len(patch.Answers) > 0 {
		answers := make(map[string]any, len(existing.Answers)+len(patch.Answers))
		for k, v := range existing.Answers {
			answers[k] = v
		}
		for k, v := range patch.Answers {
			answers[k] = v
		}
		merged.Answers = answers
	}
	return merged
}

// ParseTeamMembers decodes the serialized member list. An empty string
// decodes to nil rather than an error.
func ParseTeamMembers(raw string) ([]TeamMember, error) {
	if raw == "" {
		return nil, nil
	}
	var members []TeamMember
	if err := json.Unmarshal([]byte(raw), &members); err != nil {
		return nil, fmt.Errorf("parse team members: %w", err)
	}
	return members, nil
}

// SerializeTeamMembers encodes members into the storage form.
func SerializeTeamMembers(members []TeamMember) (string, error) {
	data, err := json.Marshal(members)
	if err != nil {
		return "", fmt.Errorf("serialize team members: %w", err)
	}
	return string(data), nil
}

// LeaderboardEntry is one ranked row of the admin leaderboard.
type LeaderboardEntry struct {
	Username  string         `json:"username"`
	Email     string         `json:"email"`
	Image     string         `json:"image"`
	TeamName  string         `json:"teamName"`
	Members   []TeamMember   `json:"members"`
	Score     int            `json:"score"`
	Submitted bool           `json:"submitted"`
	Answers   map[string]any `json:"answers"`
}

// Leaderboard is the ranked snapshot of all submissions plus aggregates.
type Leaderboard struct {
	Entries      []LeaderboardEntry `json:"entries"`
	Teams        int                `json:"teams"`
	TotalMembers int                `json:"totalMembers"`
	Accounts     int                `json:"accounts"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}
