package notify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spindex/spindex/internal/submission"
)

// Formatter renders one submission type into its announcement embed.
type Formatter func(rec submission.Record) Embed

// formatters maps each submission type to its renderer. Types without an
// entry fall back to the generic formatter, so a newly added type is
// announced (plainly) rather than silently dropped.
var formatters = map[submission.Type]Formatter{
	submission.TypeEquipment:            formatEquipment,
	submission.TypePlayer:               formatPlayer,
	submission.TypePlayerEdit:           formatPlayerEdit,
	submission.TypeReview:               formatReview,
	submission.TypeVideo:                formatVideo,
	submission.TypePlayerEquipmentSetup: formatSetup,
}

// FormatSubmission renders a submission announcement embed.
func FormatSubmission(rec submission.Record) Embed {
	if f, ok := formatters[rec.Type]; ok {
		return f(rec)
	}

	return formatGeneric(rec)
}

func baseEmbed(rec submission.Record, title string) Embed {
	return Embed{
		Title: title,
		Color: statusColor(rec.Status),
		Footer: &EmbedFooter{
			Text: fmt.Sprintf("%s • %s", rec.Type, rec.ID),
		},
	}
}

func payloadField(rec submission.Record, key, label string,
	inline bool) []EmbedField {

	val := strings.TrimSpace(rec.Payload[key])
	if val == "" {
		return nil
	}

	return []EmbedField{{Name: label, Value: val, Inline: inline}}
}

func formatEquipment(rec submission.Record) Embed {
	e := baseEmbed(rec, "New equipment: "+rec.Title())
	e.Fields = append(e.Fields,
		payloadField(rec, "brand", "Brand", true)...)
	e.Fields = append(e.Fields,
		payloadField(rec, "category", "Category", true)...)
	e.Fields = append(e.Fields,
		payloadField(rec, "description", "Description", false)...)

	return e
}

func formatPlayer(rec submission.Record) Embed {
	e := baseEmbed(rec, "New player: "+rec.Title())
	e.Fields = append(e.Fields,
		payloadField(rec, "country", "Country", true)...)
	e.Fields = append(e.Fields,
		payloadField(rec, "plays", "Plays", true)...)
	e.Fields = append(e.Fields,
		payloadField(rec, "grip", "Grip", true)...)

	return e
}

func formatPlayerEdit(rec submission.Record) Embed {
	e := baseEmbed(rec, "Player edit: "+rec.Title())
	e.Description = strings.TrimSpace(rec.Payload["edit_summary"])
	e.Fields = append(e.Fields,
		payloadField(rec, "field", "Field", true)...)
	e.Fields = append(e.Fields,
		payloadField(rec, "old_value", "Old value", true)...)
	e.Fields = append(e.Fields,
		payloadField(rec, "new_value", "New value", true)...)

	return e
}

func formatReview(rec submission.Record) Embed {
	e := baseEmbed(rec, "New review: "+rec.Title())
	e.Fields = append(e.Fields,
		payloadField(rec, "equipment", "Equipment", true)...)
	e.Fields = append(e.Fields,
		payloadField(rec, "rating", "Rating", true)...)

	body := strings.TrimSpace(rec.Payload["body"])
	if body != "" {
		// Long reviews get truncated so the embed stays readable in
		// the channel.
		if len(body) > 400 {
			body = body[:400] + "…"
		}
		e.Fields = append(e.Fields, EmbedField{
			Name:  "Review",
			Value: body,
		})
	}

	return e
}

func formatVideo(rec submission.Record) Embed {
	e := baseEmbed(rec, "New video: "+rec.Title())
	e.URL = strings.TrimSpace(rec.Payload["url"])
	e.Fields = append(e.Fields,
		payloadField(rec, "player", "Player", true)...)
	e.Fields = append(e.Fields,
		payloadField(rec, "event", "Event", true)...)

	return e
}

func formatSetup(rec submission.Record) Embed {
	e := baseEmbed(rec, "Setup update: "+rec.Title())
	e.Fields = append(e.Fields,
		payloadField(rec, "blade", "Blade", true)...)
	e.Fields = append(e.Fields,
		payloadField(rec, "forehand_rubber", "Forehand", true)...)
	e.Fields = append(e.Fields,
		payloadField(rec, "backhand_rubber", "Backhand", true)...)

	return e
}

// formatGeneric dumps the payload as sorted fields. Used for types with
// no dedicated formatter.
func formatGeneric(rec submission.Record) Embed {
	e := baseEmbed(rec, "New submission: "+rec.Title())

	keys := make([]string, 0, len(rec.Payload))
	for k := range rec.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		val := strings.TrimSpace(rec.Payload[k])
		if val == "" {
			continue
		}
		e.Fields = append(e.Fields, EmbedField{
			Name:   k,
			Value:  val,
			Inline: true,
		})
	}

	return e
}

// FormatStatusChange renders the follow-up embed posted after a
// submission reaches a new status.
func FormatStatusChange(rec submission.Record) Embed {
	var title string
	switch rec.Status {
	case submission.StatusApproved:
		title = fmt.Sprintf("Approved: %s", rec.Title())
	case submission.StatusRejected:
		title = fmt.Sprintf("Rejected: %s", rec.Title())
	default:
		title = fmt.Sprintf("Status update: %s", rec.Title())
	}

	e := baseEmbed(rec, title)
	e.Fields = append(e.Fields, EmbedField{
		Name:   "Status",
		Value:  string(rec.Status),
		Inline: true,
	})
	e.Fields = append(e.Fields, EmbedField{
		Name:   "Approvals",
		Value:  fmt.Sprintf("%d", rec.ApprovalCount()),
		Inline: true,
	})

	if rec.Status == submission.StatusRejected {
		e.Fields = append(e.Fields, EmbedField{
			Name: "Reason",
			Value: fmt.Sprintf("[%s] %s", rec.RejectionCategory,
				rec.RejectionReason),
		})
	}

	return e
}
