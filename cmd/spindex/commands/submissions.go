package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spindex/spindex/internal/moderation"
	"github.com/spindex/spindex/internal/store"
	"github.com/spindex/spindex/internal/submission"
)

var (
	listStatus string
	listType   string
	listLimit  int

	rejectCategory string
	rejectReason   string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List submissions in the moderation queue",
	RunE:  runList,
}

var showCmd = &cobra.Command{
	Use:   "show <submission-id>",
	Short: "Show one submission with its audit trail",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var approveCmd = &cobra.Command{
	Use:   "approve <submission-id>",
	Short: "Register an approval",
	Args:  cobra.ExactArgs(1),
	RunE:  runApprove,
}

var rejectCmd = &cobra.Command{
	Use:   "reject <submission-id>",
	Short: "Reject a submission",
	Args:  cobra.ExactArgs(1),
	RunE:  runReject,
}

var noteCmd = &cobra.Command{
	Use:   "note <submission-id> <text>",
	Short: "Attach a moderator note",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runNote,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue counts per status",
	RunE:  runStats,
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "",
		"Filter by status (pending, under_review, ...)")
	listCmd.Flags().StringVar(&listType, "type", "",
		"Filter by submission type")
	listCmd.Flags().IntVar(&listLimit, "limit", 50,
		"Maximum rows to print")

	approveCmd.Flags().StringVar(&moderatorID, "moderator", "",
		"Moderator id to record the action under (required)")
	rejectCmd.Flags().StringVar(&moderatorID, "moderator", "",
		"Moderator id to record the action under (required)")
	rejectCmd.Flags().StringVar(&rejectCategory, "category", "",
		"Rejection category (required)")
	rejectCmd.Flags().StringVar(&rejectReason, "reason", "",
		"Rejection reason (required)")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	storage, err := openStorage()
	if err != nil {
		return err
	}
	defer storage.Close()

	filter := store.ListFilter{
		Status: submission.Status(listStatus),
		Limit:  listLimit,
	}
	if listType != "" {
		subType, err := submission.ParseType(listType)
		if err != nil {
			return err
		}
		filter.Type = subType
	}

	recs, err := storage.List(ctx, filter)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return printJSON(recs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tAPPROVALS\tTITLE")
	for _, rec := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			rec.ID, rec.Type, rec.Status, rec.ApprovalCount(),
			rec.Title())
	}

	return w.Flush()
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	storage, err := openStorage()
	if err != nil {
		return err
	}
	defer storage.Close()

	rec, version, err := storage.Get(ctx, args[0])
	if err != nil {
		return err
	}

	audit, err := storage.ListAudit(ctx, args[0])
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return printJSON(map[string]any{
			"submission": rec,
			"version":    version,
			"audit":      audit,
		})
	}

	fmt.Printf("ID:        %s\n", rec.ID)
	fmt.Printf("Type:      %s\n", rec.Type)
	fmt.Printf("Status:    %s\n", rec.Status)
	fmt.Printf("Approvers: %s\n", strings.Join(rec.Approvers, ", "))
	fmt.Printf("Created:   %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Updated:   %s\n", rec.UpdatedAt.Format("2006-01-02 15:04:05"))

	if rec.Status == submission.StatusRejected {
		fmt.Printf("Rejected:  [%s] %s\n",
			rec.RejectionCategory, rec.RejectionReason)
	}
	if rec.ModeratorNotes != "" {
		fmt.Printf("Notes:\n%s\n", indent(rec.ModeratorNotes))
	}

	fmt.Println("\nPayload:")
	for k, v := range rec.Payload {
		fmt.Printf("  %s: %s\n", k, v)
	}

	if len(audit) > 0 {
		fmt.Println("\nAudit trail:")
		for _, e := range audit {
			fmt.Printf("  %s  %-8s %-10s %s\n",
				e.CreatedAt.Format("2006-01-02 15:04:05"),
				e.Action, e.Actor, e.Detail)
		}
	}

	return nil
}

func runApprove(cmd *cobra.Command, args []string) error {
	if moderatorID == "" {
		return fmt.Errorf("--moderator is required")
	}

	storage, err := openStorage()
	if err != nil {
		return err
	}
	defer storage.Close()

	result, err := newEngine(storage).Approve(
		context.Background(), args[0], moderatorID,
	)
	if err != nil {
		return err
	}

	return printOutcome(result)
}

func runReject(cmd *cobra.Command, args []string) error {
	if moderatorID == "" {
		return fmt.Errorf("--moderator is required")
	}

	storage, err := openStorage()
	if err != nil {
		return err
	}
	defer storage.Close()

	result, err := newEngine(storage).Reject(
		context.Background(), args[0], moderatorID,
		rejectCategory, rejectReason,
	)
	if err != nil {
		return err
	}

	return printOutcome(result)
}

func runNote(cmd *cobra.Command, args []string) error {
	storage, err := openStorage()
	if err != nil {
		return err
	}
	defer storage.Close()

	result, err := newEngine(storage).AddNote(
		context.Background(), args[0], strings.Join(args[1:], " "),
	)
	if err != nil {
		return err
	}

	return printOutcome(result)
}

func runStats(cmd *cobra.Command, args []string) error {
	storage, err := openStorage()
	if err != nil {
		return err
	}
	defer storage.Close()

	stats, err := storage.Stats(context.Background())
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return printJSON(stats)
	}

	fmt.Printf("Total:                    %d\n", stats.Total)
	fmt.Printf("Pending:                  %d\n", stats.Pending)
	fmt.Printf("Under review:             %d\n", stats.UnderReview)
	fmt.Printf("Awaiting second approval: %d\n",
		stats.AwaitingSecondApproval)
	fmt.Printf("Approved:                 %d\n", stats.Approved)
	fmt.Printf("Rejected:                 %d\n", stats.Rejected)

	return nil
}

func printOutcome(result *moderation.Result) error {
	if outputFormat == "json" {
		return printJSON(result)
	}

	switch result.Outcome {
	case moderation.OutcomeChanged:
		fmt.Printf("%s: %s -> %s\n", result.Submission.ID,
			result.PrevStatus, result.NewStatus)
	case moderation.OutcomeAlreadyFinalized:
		fmt.Printf("%s is already %s, nothing to do\n",
			result.Submission.ID, result.Submission.Status)
	default:
		fmt.Printf("%s unchanged (%s)\n", result.Submission.ID,
			result.Submission.Status)
	}

	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}

	return strings.Join(lines, "\n")
}
