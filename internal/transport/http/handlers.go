package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"imb-test-portal/internal/app"
	"imb-test-portal/internal/domain"
)

// Handler exposes the portal API over plain HTTP JSON.
type Handler struct {
	service *app.PortalService
}

func NewHandler(service *app.PortalService) *Handler {
	return &Handler{service: service}
}

// Register attaches the portal routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/check-admin", h.CheckAdmin)
	mux.HandleFunc("/api/emails", h.Emails)
	mux.HandleFunc("/api/submissions", h.Submissions)
	mux.HandleFunc("/api/submit", h.Submit)
}

type messageResponse struct {
	Message string `json:"message"`
}

type adminResponse struct {
	IsAdmin bool `json:"isAdmin"`
}

type emailsResponse struct {
	TestEmails string `json:"Test_Emails"`
}

// submitRequest mirrors the wire body of POST /api/submit. Pointer fields
// distinguish "absent" from "zero" so the merge-write never clobbers fields
// the caller did not send.
type submitRequest struct {
	TeamMember     *string        `json:"teamMember"`
	TeamName       *string        `json:"teamName"`
	Started        *string        `json:"started"`
	StartTimestamp *int64         `json:"startTimestamp"`
	Answers        map[string]any `json:"answers"`
	Username       string         `json:"username"`
	Email          string         `json:"email"`
	Image          string         `json:"image"`
	Submitted      *bool          `json:"submitted"`
}

// CheckAdmin tests allow-list membership. A missing email is a 400 with a
// safe default body rather than an error payload.
func (h *Handler) CheckAdmin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	email := r.URL.Query().Get("email")
	if email == "" {
		writeJSON(w, http.StatusBadRequest, adminResponse{IsAdmin: false})
		return
	}
	writeJSON(w, http.StatusOK, adminResponse{IsAdmin: h.service.IsAdmin(email)})
}

// Emails lists all registered identities' emails, space-joined.
func (h *Handler) Emails(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	emails, err := h.service.Emails(r.Context())
	if err != nil {
		log.Printf("list emails: %v", err)
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Failed to get data"})
		return
	}
	writeJSON(w, http.StatusOK, emailsResponse{TestEmails: emails})
}

// Submissions lists all submissions keyed by owner, each annotated with its
// server-computed score.
func (h *Handler) Submissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	listing, err := h.service.ListScored(r.Context())
	if err != nil {
		log.Printf("list submissions: %v", err)
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Failed to get data"})
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// Submit merge-writes a submission for the given username.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "invalid request body"})
		return
	}

	patch := domain.SubmissionPatch{
		Username:       req.Username,
		TeamName:       req.TeamName,
		TeamMembers:    req.TeamMember,
		Started:        req.Started,
		StartTimestamp: req.StartTimestamp,
		Answers:        req.Answers,
		Submitted:      req.Submitted,
	}
	if req.Email != "" {
		patch.Email = &req.Email
	}
	if req.Image != "" {
		patch.Image = &req.Image
	}

	if _, err := h.service.Submit(r.Context(), patch); err != nil {
		if errors.Is(err, domain.ErrMissingIdentity) {
			writeJSON(w, http.StatusBadRequest, messageResponse{Message: err.Error()})
			return
		}
		log.Printf("submit for %q: %v", req.Username, err)
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Failed to submit data"})
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Data submitted successfully"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}
