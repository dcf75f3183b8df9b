package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spindex/spindex/internal/guard"
	"github.com/spindex/spindex/internal/moderation"
	"github.com/spindex/spindex/internal/store"
	"github.com/spindex/spindex/internal/submission"
)

const (
	testSecret  = "0123456789abcdef0123456789abcdef"
	testSession = "session-1"
	testMod     = "mod-a"
)

// spyAnnouncer records announced submissions and signals arrivals.
type spyAnnouncer struct {
	arrived chan submission.Record
}

func (s *spyAnnouncer) NotifySubmission(_ context.Context,
	rec submission.Record) {

	s.arrived <- rec
}

type apiHarness struct {
	server    *Server
	storage   *store.MemoryStore
	csrf      *guard.CSRFGuard
	announcer *spyAnnouncer
}

func newAPIHarness(t *testing.T, rateLimit int64) *apiHarness {
	t.Helper()

	storage := store.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	engine := moderation.NewEngine(moderation.EngineConfig{
		Store:  storage,
		Audit:  storage,
		Policy: moderation.DefaultApprovalPolicy(),
		Logger: logger,
	})

	csrf, err := guard.NewCSRFGuard(testSecret)
	require.NoError(t, err)

	announcer := &spyAnnouncer{
		arrived: make(chan submission.Record, 4),
	}

	server := NewServer(Config{
		Addr:      "127.0.0.1:0",
		Storage:   storage,
		Engine:    engine,
		Announcer: announcer,
		CSRF:      csrf,
		Limiter:   guard.NewRateLimiter(rateLimit, time.Minute),
		Logger:    logger,
	})

	return &apiHarness{
		server:    server,
		storage:   storage,
		csrf:      csrf,
		announcer: announcer,
	}
}

func (h *apiHarness) do(t *testing.T, method, path string,
	body any) *httptest.ResponseRecorder {

	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)

	return rec
}

func (h *apiHarness) seed(t *testing.T) string {
	t.Helper()

	id, err := h.storage.Create(context.Background(),
		submission.Record{
			Type:    submission.TypeEquipment,
			Payload: map[string]string{"name": "Viscaria"},
			Status:  submission.StatusPending,
		})
	require.NoError(t, err)

	return id
}

func (h *apiHarness) token() string {
	return h.csrf.Issue(testSession, testMod)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()

	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))

	return apiErr
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t, 100)

	rec := h.do(t, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestCreateSubmissionAnnounces(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t, 100)

	rec := h.do(t, http.MethodPost, "/api/v1/submissions",
		createRequest{
			Type:    "equipment",
			Payload: map[string]string{"name": "Hurricane 3"},
		})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Data submissionJSON `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.ID)
	require.Equal(t, "pending", resp.Data.Status)

	select {
	case announced := <-h.announcer.arrived:
		require.Equal(t, resp.Data.ID, announced.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("announcement never dispatched")
	}
}

func TestCreateSubmissionValidation(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t, 100)

	rec := h.do(t, http.MethodPost, "/api/v1/submissions",
		createRequest{Type: "blog_post",
			Payload: map[string]string{"a": "b"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/v1/submissions",
		createRequest{Type: "equipment"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestModerateRequiresCSRF(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t, 100)
	id := h.seed(t)

	rec := h.do(t, http.MethodPost,
		"/api/v1/submissions/"+id+"/moderate",
		moderateRequest{
			Action:      "approved",
			ModeratorID: testMod,
			SessionID:   testSession,
			CSRFToken:   "forged",
		})

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, codeCSRFFailure, decodeError(t, rec).Error.Code)

	// The forged request did not move the record.
	stored, _, err := h.storage.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, submission.StatusPending, stored.Status)
}

func TestModerateApprovesWithValidToken(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t, 100)
	id := h.seed(t)

	rec := h.do(t, http.MethodPost,
		"/api/v1/submissions/"+id+"/moderate",
		moderateRequest{
			Action:      "approved",
			ModeratorID: testMod,
			SessionID:   testSession,
			CSRFToken:   h.token(),
		})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Outcome    string         `json:"outcome"`
			Submission submissionJSON `json:"submission"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "changed", resp.Data.Outcome)
	require.Equal(t, "under_review", resp.Data.Submission.Status)
	require.Equal(t, []string{testMod},
		resp.Data.Submission.Approvers)
}

func TestModerateRejectNeedsCategoryAndReason(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t, 100)
	id := h.seed(t)

	rec := h.do(t, http.MethodPost,
		"/api/v1/submissions/"+id+"/moderate",
		moderateRequest{
			Action:      "rejected",
			ModeratorID: testMod,
			SessionID:   testSession,
			CSRFToken:   h.token(),
		})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost,
		"/api/v1/submissions/"+id+"/moderate",
		moderateRequest{
			Action:      "rejected",
			ModeratorID: testMod,
			Category:    "spam",
			Reason:      "obvious ad",
			SessionID:   testSession,
			CSRFToken:   h.token(),
		})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestModerateUnknownSubmissionIs404(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t, 100)

	rec := h.do(t, http.MethodPost,
		"/api/v1/submissions/missing/moderate",
		moderateRequest{
			Action:      "approved",
			ModeratorID: testMod,
			SessionID:   testSession,
			CSRFToken:   h.token(),
		})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimitReturns429WithReset(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t, 2)
	id := h.seed(t)

	moderate := func() *httptest.ResponseRecorder {
		return h.do(t, http.MethodPost,
			"/api/v1/submissions/"+id+"/moderate",
			moderateRequest{
				Action:      "approved",
				ModeratorID: testMod,
				SessionID:   testSession,
				CSRFToken:   h.token(),
			})
	}

	require.Equal(t, http.StatusOK, moderate().Code)
	require.Equal(t, http.StatusOK, moderate().Code)

	rec := moderate()
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	apiErr := decodeError(t, rec)
	require.Equal(t, codeRateLimited, apiErr.Error.Code)
	require.NotEmpty(t, apiErr.Error.ResetAt)

	resetAt, err := time.Parse(time.RFC3339, apiErr.Error.ResetAt)
	require.NoError(t, err)
	require.True(t, resetAt.After(time.Now().Add(-time.Second)))
}

func TestListAndStatsEndpoints(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t, 100)
	h.seed(t)
	h.seed(t)

	rec := h.do(t, http.MethodGet,
		"/api/v1/submissions?status=pending&type=equipment", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listResp struct {
		Data []submissionJSON `json:"data"`
		Meta APIMeta          `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Len(t, listResp.Data, 2)
	require.Equal(t, 2, listResp.Meta.Count)

	rec = h.do(t, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"pending":2`)
}

func TestNoteAndAuditEndpoints(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t, 100)
	id := h.seed(t)

	rec := h.do(t, http.MethodPost,
		"/api/v1/submissions/"+id+"/note",
		noteRequest{
			ModeratorID: testMod,
			Note:        "needs a source link",
			SessionID:   testSession,
			CSRFToken:   h.token(),
		})
	require.Equal(t, http.StatusOK, rec.Code)

	var noteResp struct {
		Data submissionJSON `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &noteResp))
	require.Equal(t, fmt.Sprintf("%s: needs a source link", testMod),
		noteResp.Data.ModeratorNotes)

	rec = h.do(t, http.MethodGet,
		"/api/v1/submissions/"+id+"/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var auditResp struct {
		Data []auditJSON `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &auditResp))
	require.Len(t, auditResp.Data, 1)
	require.Equal(t, "note", auditResp.Data[0].Action)
}

func TestCSRFTokenEndpoint(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t, 100)

	rec := h.do(t, http.MethodGet,
		"/api/v1/csrf?sessionId="+testSession+
			"&moderatorId="+testMod, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, h.token(), resp.Data["csrfToken"])

	rec = h.do(t, http.MethodGet, "/api/v1/csrf", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
