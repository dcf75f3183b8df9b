package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spindex/spindex/internal/submission"
)

func recordOf(subType submission.Type,
	payload map[string]string) submission.Record {

	return submission.Record{
		ID:      "rec-1",
		Type:    subType,
		Payload: payload,
		Status:  submission.StatusPending,
	}
}

// TestEveryTypeHasAFormatter pins the formatter registry to the closed
// type set, so adding a type without a renderer shows up here.
func TestEveryTypeHasAFormatter(t *testing.T) {
	t.Parallel()

	for _, subType := range submission.AllTypes {
		_, ok := formatters[subType]
		require.True(t, ok, "no formatter for %s", subType)
	}
}

func TestFormatSubmissionPerType(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		rec       submission.Record
		wantTitle string
		wantField string
	}{
		{
			name: "equipment",
			rec: recordOf(submission.TypeEquipment,
				map[string]string{
					"name":  "Viscaria",
					"brand": "Butterfly",
				}),
			wantTitle: "New equipment: Viscaria",
			wantField: "Butterfly",
		},
		{
			name: "player",
			rec: recordOf(submission.TypePlayer,
				map[string]string{
					"name":    "Ma Long",
					"country": "China",
				}),
			wantTitle: "New player: Ma Long",
			wantField: "China",
		},
		{
			name: "player edit",
			rec: recordOf(submission.TypePlayerEdit,
				map[string]string{
					"player_name": "Ma Long",
					"field":       "grip",
					"new_value":   "shakehand",
				}),
			wantTitle: "Player edit: Ma Long",
			wantField: "shakehand",
		},
		{
			name: "review",
			rec: recordOf(submission.TypeReview,
				map[string]string{
					"title":  "Great control",
					"rating": "9",
				}),
			wantTitle: "New review: Great control",
			wantField: "9",
		},
		{
			name: "video",
			rec: recordOf(submission.TypeVideo,
				map[string]string{
					"title": "WTTF final",
					"event": "WTTF 2025",
				}),
			wantTitle: "New video: WTTF final",
			wantField: "WTTF 2025",
		},
		{
			name: "setup",
			rec: recordOf(submission.TypePlayerEquipmentSetup,
				map[string]string{
					"player_name": "Ma Long",
					"blade":       "Viscaria",
				}),
			wantTitle: "Setup update: Ma Long",
			wantField: "Viscaria",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			embed := FormatSubmission(tc.rec)
			require.Equal(t, tc.wantTitle, embed.Title)
			require.Equal(t, colorPending, embed.Color)
			require.NotNil(t, embed.Footer)

			var values []string
			for _, f := range embed.Fields {
				values = append(values, f.Value)
			}
			require.Contains(t, values, tc.wantField)
		})
	}
}

func TestFormatReviewTruncatesLongBodies(t *testing.T) {
	t.Parallel()

	rec := recordOf(submission.TypeReview, map[string]string{
		"title": "Endless essay",
		"body":  strings.Repeat("spin ", 200),
	})

	embed := FormatSubmission(rec)
	for _, f := range embed.Fields {
		if f.Name == "Review" {
			require.LessOrEqual(t, len(f.Value), 410)
			require.True(t,
				strings.HasSuffix(f.Value, "…"))
			return
		}
	}
	t.Fatal("review body field missing")
}

func TestFormatStatusChangeCarriesRejectionReason(t *testing.T) {
	t.Parallel()

	rec := recordOf(submission.TypeEquipment,
		map[string]string{"name": "Viscaria"})
	rec.Status = submission.StatusRejected
	rec.RejectionCategory = "duplicate"
	rec.RejectionReason = "already listed"

	embed := FormatStatusChange(rec)
	require.Equal(t, "Rejected: Viscaria", embed.Title)
	require.Equal(t, colorRejected, embed.Color)

	var reasons []string
	for _, f := range embed.Fields {
		reasons = append(reasons, f.Value)
	}
	require.Contains(t, reasons, "[duplicate] already listed")
}

func TestModerationRowCapsButtons(t *testing.T) {
	t.Parallel()

	rec := recordOf(submission.TypeEquipment,
		map[string]string{"name": "Viscaria"})

	row := moderationRow(rec, "https://admin.example.org/x")
	require.Equal(t, componentActionRow, row.Type)
	require.LessOrEqual(t, len(row.Components), maxRowButtons)
}
