package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"imb-test-portal/internal/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// SubmissionStore persists submissions and identities in Postgres.
// Upserts are read-merge-write: concurrent writers to the same key race
// with last-write-wins, which is acceptable because each key is written by
// exactly one authenticated identity in normal operation.
type SubmissionStore struct {
	pool *pgxpool.Pool
}

func NewSubmissionStore(pool *pgxpool.Pool) *SubmissionStore {
	return &SubmissionStore{pool: pool}
}

func (s *SubmissionStore) Upsert(ctx context.Context, username string, patch domain.SubmissionPatch) (domain.Submission, error) {
	existing, err := s.get(ctx, username)
	if err != nil && !errors.Is(err, domain.ErrSubmissionNotFound) {
		return domain.Submission{}, err
	}

	merged := domain.MergePatch(existing, patch)
	answers, err := json.Marshal(merged.Answers)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("marshal answers: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO submissions (username, email, image, team_name, team_members, answers, started, start_timestamp, submitted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (username) DO UPDATE SET
			email=EXCLUDED.email,
			image=EXCLUDED.image,
			team_name=EXCLUDED.team_name,
			team_members=EXCLUDED.team_members,
			answers=EXCLUDED.answers,
			started=EXCLUDED.started,
			start_timestamp=EXCLUDED.start_timestamp,
			submitted=EXCLUDED.submitted`,
		merged.Username, merged.Email, merged.Image, merged.TeamName, merged.TeamMembers,
		answers, merged.Started, merged.StartTimestamp, merged.Submitted)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("upsert submission: %w", err)
	}
	return merged, nil
}

func (s *SubmissionStore) get(ctx context.Context, username string) (domain.Submission, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT username, email, image, team_name, team_members, answers, started, start_timestamp, submitted
		FROM submissions WHERE username=$1`, username)
	sub, err := scanSubmission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	if err != nil {
		return domain.Submission{}, fmt.Errorf("load submission: %w", err)
	}
	return sub, nil
}

func (s *SubmissionStore) List(ctx context.Context) (map[string][]domain.Submission, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT username, email, image, team_name, team_members, answers, started, start_timestamp, submitted
		FROM submissions`)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.Submission)
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out[sub.Username] = append(out[sub.Username], sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return out, nil
}

func (s *SubmissionStore) RecordIdentity(ctx context.Context, identity domain.Identity) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO identities (email, username, image)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET username=EXCLUDED.username, image=EXCLUDED.image`,
		identity.Email, identity.Username, identity.Image)
	if err != nil {
		return fmt.Errorf("record identity: %w", err)
	}
	return nil
}

func (s *SubmissionStore) ListEmails(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT email FROM identities ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list emails: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan email: %w", err)
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list emails: %w", err)
	}
	return emails, nil
}

func scanSubmission(row pgx.Row) (domain.Submission, error) {
	var sub domain.Submission
	var answers []byte
	if err := row.Scan(&sub.Username, &sub.Email, &sub.Image, &sub.TeamName, &sub.TeamMembers,
		&answers, &sub.Started, &sub.StartTimestamp, &sub.Submitted); err != nil {
		return domain.Submission{}, err
	}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &sub.Answers); err != nil {
			return domain.Submission{}, fmt.Errorf("unmarshal answers: %w", err)
		}
	}
	return sub, nil
}
