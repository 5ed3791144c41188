package domain

import "errors"

var (
	// ErrSubmissionNotFound is returned when no record exists for a key.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrMissingIdentity is returned when a write lacks username or email.
	ErrMissingIdentity = errors.New("username and email are required")
	// ErrAlreadyStarted is returned when a session start would re-issue a
	// start timestamp.
	ErrAlreadyStarted = errors.New("test already started")
	// ErrSessionFinalized is returned on edits after the terminal submit.
	ErrSessionFinalized = errors.New("test already submitted")
	// ErrNoTeam is returned when a session start carries no team members.
	ErrNoTeam = errors.New("at least one team member is required")
	// ErrTeamTooLarge is returned when a team exceeds MaxTeamMembers.
	ErrTeamTooLarge = errors.New("team has too many members")
	// ErrTeamNameTooLong is returned when a team name exceeds MaxTeamNameLength.
	ErrTeamNameTooLong = errors.New("team name too long")
)
