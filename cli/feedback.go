// ABOUTME: feedback command recording feedback on a recommendation and listing past feedback
// ABOUTME: Recording appends a dated learning to the company context, which invalidates cached recommendations
package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/harperreed/engage/db"
	"github.com/harperreed/engage/feedback"
	"github.com/harperreed/engage/models"
	"github.com/spf13/cobra"
)

func feedbackCmd(a *app) *cobra.Command {
	var in feedback.Input
	var priority, channel, feedbackType string

	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Record feedback on a recommendation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.RecommendationID == "" {
				return fmt.Errorf("--recommendation is required")
			}
			if in.FeedbackText == "" {
				return fmt.Errorf("--text is required")
			}
			in.ActionPriority = models.Priority(priority)
			in.ActionChannel = models.Channel(channel)
			in.FeedbackType = models.FeedbackType(feedbackType)

			return a.withRuntime(cmd.Context(), func(rt *Runtime) error {
				res, err := rt.Feedback.Process(cmd.Context(), in)
				if err != nil {
					if res != nil {
						fmt.Fprintf(cmd.OutOrStdout(), "Feedback #%d logged, company context not updated\n", res.FeedbackID)
					}
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s #%d\n", paint(okStyle, "✓ Feedback recorded"), res.FeedbackID)
				fmt.Fprintf(out, "Learning: %s\n", res.Learning)
				fmt.Fprintf(out, "Added to: %s (context v%s)\n", res.Section, res.NewVersion)
				fmt.Fprintln(out, paint(mutedStyle, res.WillApplyTo))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.RecommendationID, "recommendation", "", "Recommendation id (required)")
	cmd.Flags().StringVar(&in.DealID, "deal", "", "Deal id")
	cmd.Flags().StringVar(&priority, "priority", "", "Action priority (P0, P1, P2)")
	cmd.Flags().StringVar(&channel, "channel", "", "Action channel (email, phone, linkedin, whatsapp)")
	cmd.Flags().StringVar(&feedbackType, "type", string(models.FeedbackNeutral), "Feedback type (positive, negative, neutral)")
	cmd.Flags().StringVar(&in.FeedbackText, "text", "", "Feedback text (required)")
	cmd.Flags().StringVar(&in.WhatWorked, "worked", "", "What worked")
	cmd.Flags().StringVar(&in.WhatDidntWork, "didnt-work", "", "What did not work")
	cmd.Flags().StringVar(&in.SuggestedImprovement, "suggest", "", "Suggested improvement")

	cmd.AddCommand(feedbackListCmd(a))
	return cmd
}

func feedbackListCmd(a *app) *cobra.Command {
	var dealID string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent feedback",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd.Context(), func(rt *Runtime) error {
				entries, err := db.ListFeedback(rt.DB, dealID, limit)
				if err != nil {
					return fmt.Errorf("failed to list feedback: %w", err)
				}
				stats, err := db.FeedbackStats(rt.DB)
				if err != nil {
					return fmt.Errorf("failed to read feedback stats: %w", err)
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tDATE\tDEAL\tRECOMMENDATION\tTYPE\tCHANNEL\tFEEDBACK")
				for _, e := range entries {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
						e.ID, e.RecordedAt.Format("2006-01-02"), e.DealID, e.RecommendationID,
						e.FeedbackType, e.ActionChannel, truncate(e.FeedbackText, 50))
				}
				if err := w.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\n%d total, %d context updates\n", stats.Total, stats.ContextUpdates)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&dealID, "deal", "", "Only feedback for this deal")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries")
	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
