package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/claims-cli/internal/intake"
)

var samplesCmd = &cobra.Command{
	Use:   "samples",
	Short: "List sample claims available to run --sample",
	RunE: func(cmd *cobra.Command, _ []string) error {
		names, err := intake.Samples{Dir: cfg.Intake.SampleDir}.List()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Fprintf(os.Stderr, "No samples in %s.\n", cfg.Intake.SampleDir)
			return nil
		}
		for _, n := range names {
			fmt.Fprintln(os.Stdout, n)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(samplesCmd)
}
