package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/claims-cli/internal/intake"
	"github.com/sells-group/claims-cli/internal/model"
	"github.com/sells-group/claims-cli/internal/pipeline"
)

var (
	runFile   string
	runSample string
	runNoSave bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the decision pipeline for a single claim",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		raw, err := loadRunInput(runFile, runSample)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx, "run", !runNoSave)
		if err != nil {
			return err
		}
		defer env.Close()

		return runClaim(ctx, os.Stdout, env.Pipeline, raw)
	},
}

func init() {
	runCmd.Flags().StringVar(&runFile, "file", "", "claim file (.json, .yaml)")
	runCmd.Flags().StringVar(&runSample, "sample", "", "name of a claim in the samples directory")
	runCmd.Flags().BoolVar(&runNoSave, "no-save", false, "do not record the decision in the store")
	runCmd.MarkFlagsMutuallyExclusive("file", "sample")
	runCmd.MarkFlagsOneRequired("file", "sample")
	rootCmd.AddCommand(runCmd)
}

// loadRunInput reads the claim named by exactly one of file or sample.
func loadRunInput(file, sample string) (map[string]any, error) {
	switch {
	case file != "" && sample != "":
		return nil, eris.New("run: --file and --sample are mutually exclusive")
	case file != "":
		return intake.LoadClaimFile(file)
	case sample != "":
		return intake.Samples{Dir: cfg.Intake.SampleDir}.Load(sample)
	default:
		return nil, eris.New("run: one of --file or --sample is required")
	}
}

// runClaim runs raw through p and writes the bundle as indented JSON.
func runClaim(ctx context.Context, out io.Writer, p *pipeline.Pipeline, raw map[string]any) error {
	bundle, err := p.RunRaw(ctx, raw)
	if err != nil {
		zap.L().Error("claim run failed",
			zap.String("claim", model.ClaimNumberOf(err)),
			zap.String("kind", string(model.KindOf(err))),
			zap.Error(err),
		)
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(bundle)
}
