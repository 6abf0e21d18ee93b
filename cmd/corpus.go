package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/claims-cli/internal/retrieval"
)

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Manage the policy document index used for retrieval",
}

var corpusLoadCmd = &cobra.Command{
	Use:   "load <policy.md>...",
	Short: "Index markdown policy documents",
	Long:  "Splits each markdown document into headed sections and stores them in the full-text index at retrieval.corpus_path. Reloading a document replaces its sections.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("corpus"); err != nil {
			return err
		}

		idx, err := retrieval.CreateIndex(cfg.Retrieval.CorpusPath)
		if err != nil {
			return err
		}
		defer idx.Close() //nolint:errcheck

		total, err := loadCorpus(cmd.Context(), idx, args)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Indexed %d documents, %d sections in index\n", len(args), total)
		return nil
	},
}

func init() {
	corpusCmd.AddCommand(corpusLoadCmd)
	rootCmd.AddCommand(corpusCmd)
}

// loadCorpus indexes every file in paths and returns the total section count.
func loadCorpus(ctx context.Context, idx *retrieval.Index, paths []string) (int, error) {
	for _, path := range paths {
		n, err := loadCorpusFile(ctx, idx, path)
		if err != nil {
			return 0, err
		}
		zap.L().Info("corpus: document indexed",
			zap.String("source", filepath.Base(path)),
			zap.Int("sections", n),
		)
	}
	return idx.Count(ctx)
}

func loadCorpusFile(ctx context.Context, idx *retrieval.Index, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, eris.Wrapf(err, "corpus: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	return idx.Load(ctx, filepath.Base(path), f)
}
