package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/spindex/spindex/internal/submission"
)

// Dispatcher turns submission events into channel messages. It satisfies
// the engine's StatusNotifier seam and is also called directly when a new
// submission arrives. All sends are best-effort: failures are logged at
// the dispatcher and never propagate.
type Dispatcher struct {
	client    *Client
	channelID string
	adminBase fn.Option[string]
	logger    *slog.Logger
}

// DispatcherConfig wires the dispatcher's collaborators.
type DispatcherConfig struct {
	// Client is the bot REST client. Required.
	Client *Client

	// ChannelID is the moderation channel announcements go to.
	ChannelID string

	// AdminBaseURL, when set, adds a "Details" link button pointing at
	// the admin UI for the submission.
	AdminBaseURL fn.Option[string]

	// Logger defaults to slog.Default when nil.
	Logger *slog.Logger
}

// NewDispatcher creates the chat dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{
		client:    cfg.Client,
		channelID: cfg.ChannelID,
		adminBase: cfg.AdminBaseURL,
		logger:    log,
	}
}

// NotifySubmission announces a newly created submission with its
// moderation buttons attached.
func (d *Dispatcher) NotifySubmission(ctx context.Context,
	rec submission.Record) {

	embed := FormatSubmission(rec)

	detailsURL := fn.MapOptionZ(d.adminBase, func(base string) string {
		return base + "/submissions/" + rec.ID
	})

	msg := &Message{
		Embeds:     []Embed{embed},
		Components: []ActionRow{moderationRow(rec, detailsURL)},
	}

	d.send(ctx, rec, "submission announcement", msg)
}

// NotifyStatusChange implements moderation.StatusNotifier. The follow-up
// message carries no buttons; terminal records are not actionable.
func (d *Dispatcher) NotifyStatusChange(ctx context.Context,
	rec submission.Record) {

	embed := FormatStatusChange(rec)
	msg := &Message{Embeds: []Embed{embed}}

	d.send(ctx, rec, "status update", msg)
}

func (d *Dispatcher) send(ctx context.Context, rec submission.Record,
	kind string, msg *Message) {

	err := d.client.CreateMessage(ctx, d.channelID, msg)
	switch {
	case err == nil:
		d.logger.DebugContext(ctx, "posted chat message",
			"kind", kind, "submission_id", rec.ID)

	case errors.Is(err, ErrNotConfigured):
		d.logger.DebugContext(ctx, "chat notifications disabled, "+
			"dropping message",
			"kind", kind, "submission_id", rec.ID)

	default:
		d.logger.ErrorContext(ctx, "chat message send failed",
			"kind", kind, "submission_id", rec.ID, "err", err)
	}
}
