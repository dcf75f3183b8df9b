// Package notify posts moderation messages to the community chat server:
// rich embeds announcing new submissions with approve/reject buttons, and
// follow-up notes when a submission changes status. Delivery is strictly
// best-effort; a chat outage never blocks or fails moderation itself.
package notify

import (
	"github.com/spindex/spindex/internal/gateway"
	"github.com/spindex/spindex/internal/submission"
)

// Embed colors, in the chat platform's 0xRRGGBB integer form.
const (
	colorPending  = 0xF1C40F
	colorApproved = 0x2ECC71
	colorRejected = 0xE74C3C
	colorNeutral  = 0x3498DB
)

// Button styles.
const (
	styleSuccess = 3
	styleDanger  = 4
	styleLink    = 5
)

// Component type discriminators.
const (
	componentActionRow = 1
	componentButton    = 2
)

// maxRowButtons is the platform limit on buttons per action row.
const maxRowButtons = 5

// Embed is the rich message body attached to a channel message.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
}

// EmbedField is one name/value pair inside an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter is the small trailing line of an embed.
type EmbedFooter struct {
	Text string `json:"text"`
}

// ActionRow groups up to five buttons under a message.
type ActionRow struct {
	Type       int      `json:"type"`
	Components []Button `json:"components"`
}

// Button is a single interactive component. Link buttons carry a URL and
// no custom id; the other styles carry a custom id and no URL.
type Button struct {
	Type     int    `json:"type"`
	Style    int    `json:"style"`
	Label    string `json:"label"`
	CustomID string `json:"custom_id,omitempty"`
	URL      string `json:"url,omitempty"`
}

// moderationRow builds the approve/reject/details row for a pending
// submission. The custom ids round-trip through the interaction gateway's
// token format.
func moderationRow(rec submission.Record, detailsURL string) ActionRow {
	approve := gateway.ActionToken{
		Verb:         gateway.VerbApprove,
		Type:         rec.Type,
		SubmissionID: rec.ID,
	}
	reject := gateway.ActionToken{
		Verb:         gateway.VerbReject,
		Type:         rec.Type,
		SubmissionID: rec.ID,
	}

	buttons := []Button{
		{
			Type:     componentButton,
			Style:    styleSuccess,
			Label:    "Approve",
			CustomID: approve.String(),
		},
		{
			Type:     componentButton,
			Style:    styleDanger,
			Label:    "Reject",
			CustomID: reject.String(),
		},
	}

	if detailsURL != "" {
		buttons = append(buttons, Button{
			Type:  componentButton,
			Style: styleLink,
			Label: "Details",
			URL:   detailsURL,
		})
	}

	if len(buttons) > maxRowButtons {
		buttons = buttons[:maxRowButtons]
	}

	return ActionRow{
		Type:       componentActionRow,
		Components: buttons,
	}
}

// statusColor maps a submission status to its embed color.
func statusColor(status submission.Status) int {
	switch status {
	case submission.StatusApproved:
		return colorApproved
	case submission.StatusRejected:
		return colorRejected
	case submission.StatusPending:
		return colorPending
	default:
		return colorNeutral
	}
}
