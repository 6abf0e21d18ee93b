package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/claims-cli/internal/intake"
	"github.com/sells-group/claims-cli/internal/pipeline"
)

var (
	batchJSON   bool
	batchNoSave bool
	batchStrict bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Run the decision pipeline for every claim in a file",
	Long:  "Reads claims from a JSON array, YAML sequence, CSV or XLSX sheet and processes them concurrently. A failed claim never stops the rest of the batch.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		raws, err := intake.LoadBatchFile(args[0])
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx, "batch", !batchNoSave)
		if err != nil {
			return err
		}
		defer env.Close()

		items := env.Pipeline.RunBatch(ctx, raws)
		if batchJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(items); err != nil {
				return eris.Wrap(err, "batch: encode results")
			}
		} else {
			formatBatchResults(os.Stdout, items)
		}

		if _, failed := pipeline.Summarize(items); failed > 0 && batchStrict {
			return eris.Errorf("batch: %d of %d claims failed", failed, len(items))
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().BoolVar(&batchJSON, "json", false, "print full results as JSON")
	batchCmd.Flags().BoolVar(&batchNoSave, "no-save", false, "do not record decisions in the store")
	batchCmd.Flags().BoolVar(&batchStrict, "strict", false, "exit non-zero when any claim fails")
	rootCmd.AddCommand(batchCmd)
}

// formatBatchResults writes a tabular summary of batch items to out.
func formatBatchResults(out io.Writer, items []pipeline.BatchItem) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tCLAIM\tSTATUS\tCOVERED\tPAYOUT\tPRIORITY\tRISK\tERROR")
	for _, it := range items {
		if it.Status == pipeline.StatusOK {
			b := it.Bundle
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%.2f\t%s\t%.2f\t\n",
				it.Index+1, it.ClaimNumber, it.Status,
				b.Decision.Covered, b.Decision.RecommendedPayout,
				b.Triage.Priority, b.FraudSignal.RiskScore,
			)
			continue
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t-\t-\t-\t-\t%s\n",
			it.Index+1, it.ClaimNumber, it.Status, it.ErrorKind)
	}
	_ = w.Flush()

	ok, failed := pipeline.Summarize(items)
	_, _ = fmt.Fprintf(out, "\n%d processed, %d failed, %d total\n", ok, failed, len(items))
}
