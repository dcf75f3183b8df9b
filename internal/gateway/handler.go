package gateway

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/spindex/spindex/internal/moderation"
	"github.com/spindex/spindex/internal/store"
	"github.com/spindex/spindex/internal/submission"
)

// maxBodyBytes caps how much of an interaction callback the gateway reads
// before verifying it. Real payloads are a few KB.
const maxBodyBytes = 1 << 20

// ModerationEngine is the slice of the engine the gateway drives.
type ModerationEngine interface {
	Approve(ctx context.Context, submissionID,
		moderatorID string) (*moderation.Result, error)

	Reject(ctx context.Context, submissionID, moderatorID, category,
		reason string) (*moderation.Result, error)
}

// HandlerConfig wires a Handler's dependencies.
type HandlerConfig struct {
	// PublicKey verifies inbound interaction signatures.
	PublicKey ed25519.PublicKey

	// Engine executes moderation actions.
	Engine ModerationEngine

	// Reader answers read-only query commands.
	Reader QueryReader

	// ModeratorRoleIDs is the role allow-list for moderation actions.
	ModeratorRoleIDs []string

	// Logger is the structured logger for the gateway. Required.
	Logger *slog.Logger
}

// Handler is the HTTP endpoint the platform posts interaction callbacks
// to. Every request is signature-verified before any byte of it is
// interpreted.
type Handler struct {
	publicKey ed25519.PublicKey
	engine    ModerationEngine
	reader    QueryReader
	roles     *RoleChecker
	logger    *slog.Logger
}

// NewHandler builds the interaction endpoint.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		publicKey: cfg.PublicKey,
		engine:    cfg.Engine,
		reader:    cfg.Reader,
		roles:     NewRoleChecker(cfg.ModeratorRoleIDs),
		logger:    cfg.Logger,
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed",
			http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "unable to read body",
			http.StatusBadRequest)
		return
	}

	err = VerifySignature(
		h.publicKey, r.Header.Get(HeaderSignature),
		r.Header.Get(HeaderTimestamp), body,
	)
	if err != nil {
		h.logger.WarnContext(r.Context(),
			"rejected unsigned interaction",
			"remote", r.RemoteAddr, "err", err)
		http.Error(w, "invalid request signature",
			http.StatusUnauthorized)
		return
	}

	var in Interaction
	if err := json.Unmarshal(body, &in); err != nil {
		http.Error(w, "malformed interaction",
			http.StatusBadRequest)
		return
	}

	resp, err := h.dispatch(r.Context(), &in)
	if err != nil {
		if errors.Is(err, ErrUnknownInteraction) {
			http.Error(w, "unknown interaction",
				http.StatusBadRequest)
			return
		}

		h.logger.ErrorContext(r.Context(),
			"interaction handling failed",
			"interaction_id", in.ID, "err", err)
		http.Error(w, "internal error",
			http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.ErrorContext(r.Context(),
			"unable to write interaction response", "err", err)
	}
}

// dispatch routes a verified interaction to its handler.
func (h *Handler) dispatch(ctx context.Context,
	in *Interaction) (*Response, error) {

	switch in.Type {
	case InteractionPing:
		return Pong(), nil

	case InteractionCommand:
		if in.Data == nil {
			return nil, fmt.Errorf("%w: command without data",
				ErrUnknownInteraction)
		}
		return h.handleCommand(ctx, in), nil

	case InteractionComponent:
		if in.Data == nil || in.Data.CustomID == "" {
			return nil, fmt.Errorf("%w: component without "+
				"custom id", ErrUnknownInteraction)
		}
		return h.handleComponent(ctx, in)

	default:
		return nil, fmt.Errorf("%w: type %d", ErrUnknownInteraction,
			in.Type)
	}
}

// handleComponent executes a moderation button press. Authorization runs
// first; an unauthorized member gets an ephemeral denial and the engine
// is never invoked.
func (h *Handler) handleComponent(ctx context.Context,
	in *Interaction) (*Response, error) {

	token, err := ParseActionToken(in.Data.CustomID)
	if err != nil {
		return nil, err
	}

	if !h.roles.Allowed(in.Member) {
		h.logger.WarnContext(ctx, "unauthorized moderation attempt",
			"user_id", memberID(in.Member),
			"custom_id", in.Data.CustomID)
		return EphemeralMessage(
			"You don't have permission to moderate submissions.",
		), nil
	}

	moderator := in.Member.User

	var result *moderation.Result
	switch token.Verb {
	case VerbApprove:
		result, err = h.engine.Approve(ctx, token.SubmissionID,
			moderator.ID)

	case VerbReject:
		// Button presses carry no free-form input, so rejections
		// taken from chat get a fixed category and a reason that
		// names the moderator. Detailed rejections go through the
		// web API.
		result, err = h.engine.Reject(ctx, token.SubmissionID,
			moderator.ID, "other", fmt.Sprintf(
				"Rejected via chat by %s (%s)",
				moderator.Username, moderator.ID,
			))
	}

	if err != nil {
		return h.actionFailure(ctx, token, err)
	}

	return h.actionResponse(token, result, moderator), nil
}

// actionFailure maps engine errors to user-facing replies. Only truly
// unexpected errors propagate to a 500.
func (h *Handler) actionFailure(ctx context.Context, token ActionToken,
	err error) (*Response, error) {

	switch {
	case errors.Is(err, store.ErrNotFound):
		return EphemeralMessage(
			"That submission no longer exists.",
		), nil

	case errors.Is(err, moderation.ErrConcurrentModification):
		return EphemeralMessage(
			"Someone else is moderating this submission right " +
				"now, try again in a moment.",
		), nil

	default:
		h.logger.ErrorContext(ctx, "moderation action failed",
			"submission_id", token.SubmissionID,
			"verb", token.Verb, "err", err)
		return nil, err
	}
}

// actionResponse renders the outcome of a moderation action. Persisted
// transitions update the original message in place; idempotent replays
// and already-final records get an ephemeral note instead.
func (h *Handler) actionResponse(token ActionToken,
	result *moderation.Result, moderator User) *Response {

	rec := result.Submission

	switch result.Outcome {
	case moderation.OutcomeChanged:
		return UpdateMessage(h.statusLine(rec, moderator))

	case moderation.OutcomeAlreadyFinalized:
		return EphemeralMessage(fmt.Sprintf(
			"This submission was already finalized as %s.",
			rec.Status,
		))

	default:
		return EphemeralMessage(
			"Your approval was already counted.",
		)
	}
}

// statusLine summarizes a freshly transitioned record for the updated
// message body.
func (h *Handler) statusLine(rec submission.Record,
	moderator User) string {

	switch rec.Status {
	case submission.StatusApproved:
		return fmt.Sprintf("✅ **%s** (%s) approved — final "+
			"approval by %s (%d approvals).",
			rec.Title(), rec.Type, moderator.Username,
			rec.ApprovalCount())

	case submission.StatusRejected:
		return fmt.Sprintf("❌ **%s** (%s) rejected by %s: %s",
			rec.Title(), rec.Type, moderator.Username,
			rec.RejectionReason)

	default:
		return fmt.Sprintf("🕑 **%s** (%s) — %s approved "+
			"(%d so far), waiting for more.",
			rec.Title(), rec.Type, moderator.Username,
			rec.ApprovalCount())
	}
}

func memberID(m *Member) string {
	if m == nil {
		return ""
	}
	return m.User.ID
}
