package web

import (
	"encoding/json"
	"net/http"
	"time"
)

// APIResponse wraps successful API payloads.
type APIResponse struct {
	Data any      `json:"data"`
	Meta *APIMeta `json:"meta,omitempty"`
}

// APIMeta carries list pagination hints.
type APIMeta struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

// APIError is the JSON error envelope.
type APIError struct {
	Error APIErrorDetail `json:"error"`
}

// APIErrorDetail names the failure. ResetAt is only set on rate-limit
// rejections.
type APIErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	ResetAt string `json:"reset_at,omitempty"`
}

// Error codes the API emits. CSRF failures get a dedicated code so
// clients can distinguish "refresh your token" from "you may not do
// this".
const (
	codeInvalidRequest   = "invalid_request"
	codeNotFound         = "not_found"
	codeConflict         = "conflict"
	codeCSRFFailure      = "csrf_failure"
	codeRateLimited      = "rate_limited"
	codeMethodNotAllowed = "method_not_allowed"
	codeInternal         = "internal_error"
)

// registerAPIV1Routes mounts the JSON API.
func (s *Server) registerAPIV1Routes() {
	api := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type",
				"application/json; charset=utf-8")
			next(w, r)
		}
	}

	s.mux.HandleFunc("/api/v1/health", api(s.handleHealth))
	s.mux.HandleFunc("/api/v1/csrf", api(s.handleCSRFToken))
	s.mux.HandleFunc("/api/v1/stats", api(s.handleStats))
	s.mux.HandleFunc("/api/v1/submissions", api(s.handleSubmissions))
	s.mux.HandleFunc("/api/v1/submissions/", api(s.handleSubmissionByID))
}

// writeJSON writes a JSON response body.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode API response", "error", err)
	}
}

// writeError writes the error envelope.
func (s *Server) writeError(w http.ResponseWriter, status int, code,
	message string) {

	s.writeJSON(w, status, APIError{
		Error: APIErrorDetail{Code: code, Message: message},
	})
}

// writeRateLimited writes a 429 carrying the retry point.
func (s *Server) writeRateLimited(w http.ResponseWriter, resetAt time.Time) {
	s.writeJSON(w, http.StatusTooManyRequests, APIError{
		Error: APIErrorDetail{
			Code:    codeRateLimited,
			Message: "Too many moderation requests",
			ResetAt: resetAt.UTC().Format(time.RFC3339),
		},
	})
}

// handleHealth handles GET /api/v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed,
			codeMethodNotAllowed, "Method not allowed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleCSRFToken handles GET /api/v1/csrf. The moderation UI calls this
// with its session and moderator ids and presents the returned token on
// every state-changing call.
func (s *Server) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed,
			codeMethodNotAllowed, "Method not allowed")
		return
	}

	sessionID := r.URL.Query().Get("sessionId")
	moderatorID := r.URL.Query().Get("moderatorId")
	if sessionID == "" || moderatorID == "" {
		s.writeError(w, http.StatusBadRequest, codeInvalidRequest,
			"sessionId and moderatorId are required")
		return
	}

	s.writeJSON(w, http.StatusOK, APIResponse{
		Data: map[string]string{
			"csrfToken": s.cfg.CSRF.Issue(sessionID, moderatorID),
		},
	})
}
