package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/spindex/spindex/internal/store"
	"github.com/spindex/spindex/internal/submission"
)

// Slash command names the gateway answers. All of them are read-only.
const (
	CommandEquipment = "equipment"
	CommandPlayer    = "player"
	CommandQueue     = "queue"
)

// queryLimit caps how many approved entries a search command scans, and
// resultLimit how many lines a reply lists. Replies are ephemeral chat
// messages, not a paging API.
const (
	queryLimit  = 200
	resultLimit = 10
)

// QueryReader is the read-only slice of the store the command handlers
// need.
type QueryReader interface {
	List(ctx context.Context,
		filter store.ListFilter) ([]submission.Record, error)
	Stats(ctx context.Context) (store.Stats, error)
}

// handleCommand answers a slash command. Unknown commands get an
// ephemeral shrug rather than an error status, so a stale command
// registration never surfaces as a broken integration.
func (h *Handler) handleCommand(ctx context.Context,
	in *Interaction) *Response {

	switch in.Data.Name {
	case CommandEquipment:
		return h.searchApproved(ctx, submission.TypeEquipment,
			in.Data.Option("query"))

	case CommandPlayer:
		return h.searchApproved(ctx, submission.TypePlayer,
			in.Data.Option("query"))

	case CommandQueue:
		if !h.roles.Allowed(in.Member) {
			return EphemeralMessage(
				"You need a moderator role to view the queue.",
			)
		}
		return h.queueSummary(ctx)

	default:
		return EphemeralMessage(fmt.Sprintf(
			"Unknown command %q.", in.Data.Name,
		))
	}
}

// searchApproved looks up approved submissions of the given type whose
// title contains the query, case-insensitively.
func (h *Handler) searchApproved(ctx context.Context,
	subType submission.Type, query string) *Response {

	query = strings.TrimSpace(query)
	if query == "" {
		return EphemeralMessage("Tell me what to search for.")
	}

	recs, err := h.reader.List(ctx, store.ListFilter{
		Status: submission.StatusApproved,
		Type:   subType,
		Limit:  queryLimit,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "search query failed",
			"type", subType, "err", err)
		return EphemeralMessage(
			"Search is unavailable right now, try again shortly.",
		)
	}

	needle := strings.ToLower(query)

	var lines []string
	for _, rec := range recs {
		title := rec.Title()
		if !strings.Contains(strings.ToLower(title), needle) {
			continue
		}
		lines = append(lines, "• "+title)
		if len(lines) == resultLimit {
			break
		}
	}

	if len(lines) == 0 {
		return EphemeralMessage(fmt.Sprintf(
			"No %s entries matching %q.", subType, query,
		))
	}

	return EphemeralMessage(fmt.Sprintf(
		"Found %d %s entr(ies) matching %q:\n%s",
		len(lines), subType, query, strings.Join(lines, "\n"),
	))
}

// queueSummary reports per-status counts of the moderation queue.
func (h *Handler) queueSummary(ctx context.Context) *Response {
	stats, err := h.reader.Stats(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "queue stats failed", "err", err)
		return EphemeralMessage(
			"Queue stats are unavailable right now.",
		)
	}

	return EphemeralMessage(fmt.Sprintf(
		"Moderation queue: %d pending, %d under review, %d awaiting "+
			"second approval (%d approved, %d rejected all time).",
		stats.Pending, stats.UnderReview,
		stats.AwaitingSecondApproval, stats.Approved, stats.Rejected,
	))
}
