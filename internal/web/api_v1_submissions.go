package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spindex/spindex/internal/guard"
	"github.com/spindex/spindex/internal/moderation"
	"github.com/spindex/spindex/internal/store"
	"github.com/spindex/spindex/internal/submission"
)

// maxListLimit caps a single list page.
const maxListLimit = 100

// announceTimeout bounds the detached new-submission announcement.
const announceTimeout = 15 * time.Second

// submissionJSON is the API shape of a submission record.
type submissionJSON struct {
	ID                string            `json:"id"`
	Type              string            `json:"type"`
	Payload           map[string]string `json:"payload"`
	Status            string            `json:"status"`
	Approvers         []string          `json:"approvers"`
	ApprovalCount     int               `json:"approvalCount"`
	RejectionCategory string            `json:"rejectionCategory,omitempty"`
	RejectionReason   string            `json:"rejectionReason,omitempty"`
	ModeratorNotes    string            `json:"moderatorNotes,omitempty"`
	CreatedAt         string            `json:"createdAt"`
	UpdatedAt         string            `json:"updatedAt"`
}

func toSubmissionJSON(rec submission.Record) submissionJSON {
	return submissionJSON{
		ID:                rec.ID,
		Type:              string(rec.Type),
		Payload:           rec.Payload,
		Status:            string(rec.Status),
		Approvers:         rec.Approvers,
		ApprovalCount:     rec.ApprovalCount(),
		RejectionCategory: rec.RejectionCategory,
		RejectionReason:   rec.RejectionReason,
		ModeratorNotes:    rec.ModeratorNotes,
		CreatedAt:         rec.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         rec.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// handleSubmissions handles /api/v1/submissions: GET lists the queue,
// POST takes a new submission from the site backend.
func (s *Server) handleSubmissions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listSubmissions(w, r)
	case http.MethodPost:
		s.createSubmission(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed,
			codeMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) listSubmissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := store.ListFilter{Limit: 50}

	if v := q.Get("status"); v != "" {
		filter.Status = submission.Status(v)
	}
	if v := q.Get("type"); v != "" {
		subType, err := submission.ParseType(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest,
				codeInvalidRequest, err.Error())
			return
		}
		filter.Type = subType
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest,
				codeInvalidRequest, "limit must be a positive "+
					"integer")
			return
		}
		filter.Limit = n
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest,
				codeInvalidRequest, "offset must be a "+
					"non-negative integer")
			return
		}
		filter.Offset = n
	}

	recs, err := s.storage.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("List submissions failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, codeInternal,
			"Failed to list submissions")
		return
	}

	out := make([]submissionJSON, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toSubmissionJSON(rec))
	}

	s.writeJSON(w, http.StatusOK, APIResponse{
		Data: out,
		Meta: &APIMeta{
			Limit:  filter.Limit,
			Offset: filter.Offset,
			Count:  len(out),
		},
	})
}

// createRequest is the intake payload posted by the site backend when a
// community member submits new content.
type createRequest struct {
	Type    string            `json:"type"`
	Payload map[string]string `json:"payload"`
}

func (s *Server) createSubmission(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, codeInvalidRequest,
			"Malformed request body")
		return
	}

	subType, err := submission.ParseType(req.Type)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, codeInvalidRequest,
			err.Error())
		return
	}
	if len(req.Payload) == 0 {
		s.writeError(w, http.StatusBadRequest, codeInvalidRequest,
			"payload must not be empty")
		return
	}

	now := time.Now().UTC()
	rec := submission.Record{
		Type:      subType,
		Payload:   req.Payload,
		Status:    submission.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	id, err := s.storage.Create(r.Context(), rec)
	if err != nil {
		s.logger.Error("Create submission failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, codeInternal,
			"Failed to create submission")
		return
	}
	rec.ID = id

	// Announce with moderation buttons, off the request path.
	if s.cfg.Announcer != nil {
		announceRec := rec.Clone()
		go func() {
			ctx, cancel := context.WithTimeout(
				context.Background(), announceTimeout,
			)
			defer cancel()

			s.cfg.Announcer.NotifySubmission(ctx, announceRec)
		}()
	}

	s.writeJSON(w, http.StatusCreated, APIResponse{
		Data: toSubmissionJSON(rec),
	})
}

// handleSubmissionByID routes /api/v1/submissions/{id} and its
// /moderate, /note and /audit sub-resources.
func (s *Server) handleSubmissionByID(w http.ResponseWriter,
	r *http.Request) {

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/submissions/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		s.writeError(w, http.StatusNotFound, codeNotFound,
			"Submission id missing")
		return
	}

	switch sub {
	case "":
		s.getSubmission(w, r, id)
	case "audit":
		s.getAudit(w, r, id)
	case "moderate":
		s.moderateSubmission(w, r, id)
	case "note":
		s.noteSubmission(w, r, id)
	default:
		s.writeError(w, http.StatusNotFound, codeNotFound,
			"Unknown resource")
	}
}

func (s *Server) getSubmission(w http.ResponseWriter, r *http.Request,
	id string) {

	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed,
			codeMethodNotAllowed, "Method not allowed")
		return
	}

	rec, _, err := s.storage.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, codeNotFound,
				"Submission not found")
			return
		}
		s.logger.Error("Get submission failed", "id", id,
			"error", err)
		s.writeError(w, http.StatusInternalServerError, codeInternal,
			"Failed to fetch submission")
		return
	}

	s.writeJSON(w, http.StatusOK, APIResponse{
		Data: toSubmissionJSON(rec),
	})
}

// auditJSON is the API shape of one audit line.
type auditJSON struct {
	ID           string `json:"id"`
	SubmissionID string `json:"submissionId"`
	Actor        string `json:"actor"`
	Action       string `json:"action"`
	Detail       string `json:"detail,omitempty"`
	CreatedAt    string `json:"createdAt"`
}

func (s *Server) getAudit(w http.ResponseWriter, r *http.Request,
	id string) {

	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed,
			codeMethodNotAllowed, "Method not allowed")
		return
	}

	entries, err := s.storage.ListAudit(r.Context(), id)
	if err != nil {
		s.logger.Error("List audit failed", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, codeInternal,
			"Failed to fetch audit trail")
		return
	}

	out := make([]auditJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditJSON{
			ID:           e.ID,
			SubmissionID: e.SubmissionID,
			Actor:        e.Actor,
			Action:       e.Action,
			Detail:       e.Detail,
			CreatedAt:    e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	s.writeJSON(w, http.StatusOK, APIResponse{Data: out})
}

// moderateRequest is the body of POST /api/v1/submissions/{id}/moderate.
type moderateRequest struct {
	Action      string `json:"action"`
	ModeratorID string `json:"moderatorId"`
	Category    string `json:"category"`
	Reason      string `json:"reason"`
	SessionID   string `json:"sessionId"`
	CSRFToken   string `json:"csrfToken"`
}

func (s *Server) moderateSubmission(w http.ResponseWriter, r *http.Request,
	id string) {

	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed,
			codeMethodNotAllowed, "Method not allowed")
		return
	}

	var req moderateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, codeInvalidRequest,
			"Malformed request body")
		return
	}

	if !s.guardModeration(w, req.ModeratorID, req.SessionID,
		req.CSRFToken) {

		return
	}

	var (
		result *moderation.Result
		err    error
	)
	switch req.Action {
	case string(submission.StatusApproved), "approve":
		result, err = s.engine.Approve(r.Context(), id,
			req.ModeratorID)

	case string(submission.StatusRejected), "reject":
		result, err = s.engine.Reject(r.Context(), id,
			req.ModeratorID, req.Category, req.Reason)

	default:
		s.writeError(w, http.StatusBadRequest, codeInvalidRequest,
			"action must be approved or rejected")
		return
	}

	if err != nil {
		s.writeModerationError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, APIResponse{
		Data: map[string]any{
			"outcome":    string(result.Outcome),
			"submission": toSubmissionJSON(result.Submission),
		},
	})
}

// noteRequest is the body of POST /api/v1/submissions/{id}/note.
type noteRequest struct {
	ModeratorID string `json:"moderatorId"`
	Note        string `json:"note"`
	SessionID   string `json:"sessionId"`
	CSRFToken   string `json:"csrfToken"`
}

func (s *Server) noteSubmission(w http.ResponseWriter, r *http.Request,
	id string) {

	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed,
			codeMethodNotAllowed, "Method not allowed")
		return
	}

	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, codeInvalidRequest,
			"Malformed request body")
		return
	}

	if !s.guardModeration(w, req.ModeratorID, req.SessionID,
		req.CSRFToken) {

		return
	}

	note := strings.TrimSpace(req.Note)
	if note != "" {
		note = req.ModeratorID + ": " + note
	}

	result, err := s.engine.AddNote(r.Context(), id, note)
	if err != nil {
		s.writeModerationError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, APIResponse{
		Data: toSubmissionJSON(result.Submission),
	})
}

// guardModeration runs the rate limiter and CSRF check shared by the
// state-changing endpoints. It writes the rejection itself and reports
// whether the request may proceed.
func (s *Server) guardModeration(w http.ResponseWriter, moderatorID,
	sessionID, csrfToken string) bool {

	if moderatorID == "" {
		s.writeError(w, http.StatusBadRequest, codeInvalidRequest,
			"moderatorId is required")
		return false
	}

	if ok, resetAt := s.cfg.Limiter.Allow(moderatorID); !ok {
		s.writeRateLimited(w, resetAt)
		return false
	}

	err := s.cfg.CSRF.Verify(csrfToken, sessionID, moderatorID)
	if err != nil {
		s.writeError(w, http.StatusForbidden, codeCSRFFailure,
			"CSRF token invalid or expired")
		return false
	}

	return true
}

// writeModerationError maps engine errors onto API statuses.
func (s *Server) writeModerationError(w http.ResponseWriter, err error) {
	var validationErr *moderation.ValidationError

	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, codeNotFound,
			"Submission not found")

	case errors.As(err, &validationErr):
		s.writeError(w, http.StatusBadRequest, codeInvalidRequest,
			validationErr.Error())

	case errors.Is(err, moderation.ErrConcurrentModification):
		s.writeError(w, http.StatusConflict, codeConflict,
			"Submission is being modified concurrently, retry")

	case errors.Is(err, guard.ErrCSRFInvalid):
		s.writeError(w, http.StatusForbidden, codeCSRFFailure,
			"CSRF token invalid or expired")

	default:
		s.logger.Error("Moderation request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, codeInternal,
			"Moderation failed")
	}
}

// handleStats handles GET /api/v1/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed,
			codeMethodNotAllowed, "Method not allowed")
		return
	}

	stats, err := s.storage.Stats(r.Context())
	if err != nil {
		s.logger.Error("Stats query failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, codeInternal,
			"Failed to fetch stats")
		return
	}

	s.writeJSON(w, http.StatusOK, APIResponse{
		Data: map[string]int64{
			"total":                  stats.Total,
			"pending":                stats.Pending,
			"underReview":            stats.UnderReview,
			"awaitingSecondApproval": stats.AwaitingSecondApproval,
			"approved":               stats.Approved,
			"rejected":               stats.Rejected,
		},
	})
}
