package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"imb-test-portal/internal/domain"
)

// Gateway is the three-operation interface to the backing submission store,
// injected so it can be swapped for a test double.
type Gateway interface {
	ListSubmissions(ctx context.Context) (map[string][]domain.ScoredSubmission, error)
	Submit(ctx context.Context, patch domain.SubmissionPatch) error
	IsAdmin(ctx context.Context, email string) (bool, error)
}

// Client talks to the portal HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// wireSubmission is the POST /api/submit body. Nil pointers are omitted so
// the server's merge-write leaves those fields untouched.
type wireSubmission struct {
	TeamMember     *string        `json:"teamMember,omitempty"`
	TeamName       *string        `json:"teamName,omitempty"`
	Started        *string        `json:"started,omitempty"`
	StartTimestamp *int64         `json:"startTimestamp,omitempty"`
	Answers        map[string]any `json:"answers,omitempty"`
	Username       string         `json:"username"`
	Email          string         `json:"email,omitempty"`
	Image          string         `json:"image,omitempty"`
	Submitted      *bool          `json:"submitted,omitempty"`
}

func (c *Client) ListSubmissions(ctx context.Context) (map[string][]domain.ScoredSubmission, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/submissions", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list submissions: unexpected status %d", resp.StatusCode)
	}
	var listing map[string][]domain.ScoredSubmission
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode submissions: %w", err)
	}
	return listing, nil
}

func (c *Client) Submit(ctx context.Context, patch domain.SubmissionPatch) error {
	body := wireSubmission{
		TeamMember:     patch.TeamMembers,
		TeamName:       patch.TeamName,
		Started:        patch.Started,
		StartTimestamp: patch.StartTimestamp,
		Answers:        patch.Answers,
		Username:       patch.Username,
		Submitted:      patch.Submitted,
	}
	if patch.Email != nil {
		body.Email = *patch.Email
	}
	if patch.Image != nil {
		body.Image = *patch.Image
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/submit", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("submit: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) IsAdmin(ctx context.Context, email string) (bool, error) {
	u := c.baseURL + "/api/check-admin?email=" + url.QueryEscape(email)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("check admin: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("check admin: unexpected status %d", resp.StatusCode)
	}
	var body struct {
		IsAdmin bool `json:"isAdmin"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("decode admin response: %w", err)
	}
	return body.IsAdmin, nil
}
