package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/claims-cli/internal/model"
	"github.com/sells-group/claims-cli/internal/store"
)

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Inspect and override recorded claim decisions",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return cfg.Validate("store")
	},
}

// -- decisions list --

var decisionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded decisions, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		recs, err := st.ListDecisions(ctx, store.ListFilter{Limit: limit, Offset: offset})
		if err != nil {
			return eris.Wrap(err, "decisions list")
		}
		if len(recs) == 0 {
			fmt.Fprintln(os.Stderr, "No decisions found.")
			return nil
		}

		formatDecisionsList(os.Stdout, recs)
		return nil
	},
}

// -- decisions get --

var decisionsGetCmd = &cobra.Command{
	Use:   "get <claim-number>",
	Short: "Show a recorded decision with its override history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rec, err := st.GetDecision(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "decisions get %s", args[0])
		}
		audits, err := st.ListOverrides(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "decisions get %s overrides", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			*model.DecisionRecord
			History []model.OverrideAudit `json:"override_history,omitempty"`
		}{rec, audits})
	},
}

// -- decisions override --

var decisionsOverrideCmd = &cobra.Command{
	Use:   "override <claim-number>",
	Short: "Replace a decision's coverage and payout and record the adjuster's reason",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		o := model.Override{}
		o.Covered, _ = cmd.Flags().GetBool("covered")
		o.RecommendedPayout, _ = cmd.Flags().GetFloat64("payout")
		o.Reason, _ = cmd.Flags().GetString("reason")
		o.Adjuster, _ = cmd.Flags().GetString("adjuster")
		if err := o.Validate(); err != nil {
			return eris.Wrap(err, "decisions override")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rec, err := st.OverrideDecision(ctx, args[0], o)
		if err != nil {
			return eris.Wrapf(err, "decisions override %s", args[0])
		}

		fmt.Fprintf(os.Stdout, "Claim %s overridden: covered=%t payout=%.2f (was covered=%t payout=%.2f)\n",
			rec.ClaimNumber, rec.Bundle.Decision.Covered, rec.Bundle.Decision.RecommendedPayout,
			rec.Override.OriginalCovered, rec.Override.OriginalPayout)
		return nil
	},
}

func init() {
	decisionsListCmd.Flags().Int("limit", 50, "max number of decisions to display")
	decisionsListCmd.Flags().Int("offset", 0, "number of decisions to skip")

	decisionsOverrideCmd.Flags().Bool("covered", false, "whether the claim is covered")
	decisionsOverrideCmd.Flags().Float64("payout", 0, "replacement recommended payout")
	decisionsOverrideCmd.Flags().String("reason", "", "reason for the override")
	decisionsOverrideCmd.Flags().String("adjuster", "", "adjuster making the override")
	_ = decisionsOverrideCmd.MarkFlagRequired("reason")

	decisionsCmd.AddCommand(decisionsListCmd)
	decisionsCmd.AddCommand(decisionsGetCmd)
	decisionsCmd.AddCommand(decisionsOverrideCmd)
	rootCmd.AddCommand(decisionsCmd)
}

// formatDecisionsList writes a tabular list of decisions to out.
func formatDecisionsList(out io.Writer, recs []model.DecisionRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CLAIM\tCOVERED\tPAYOUT\tPRIORITY\tRISK\tOVERRIDDEN\tCREATED\tDURATION")
	for _, r := range recs {
		priority, risk := "-", "-"
		if r.Bundle.Triage != nil {
			priority = string(r.Bundle.Triage.Priority)
		}
		if r.Bundle.FraudSignal != nil {
			risk = fmt.Sprintf("%.2f", r.Bundle.FraudSignal.RiskScore)
		}
		_, _ = fmt.Fprintf(w, "%s\t%t\t%.2f\t%s\t%s\t%t\t%s\t%dms\n",
			r.ClaimNumber,
			r.Bundle.Decision.Covered,
			r.Bundle.Decision.RecommendedPayout,
			priority,
			risk,
			r.Overridden,
			r.CreatedAt.Format("2006-01-02 15:04"),
			r.ProcessingTimeMs,
		)
	}
	_ = w.Flush()
}
