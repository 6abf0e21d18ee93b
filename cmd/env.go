package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/claims-cli/internal/pipeline"
	"github.com/sells-group/claims-cli/internal/predict"
	"github.com/sells-group/claims-cli/internal/retrieval"
	"github.com/sells-group/claims-cli/internal/store"
)

// claimsEnv holds the store, retrieval backend and pipeline needed by the
// run, batch and serve commands.
type claimsEnv struct {
	Store    store.Store // nil when decisions are not recorded
	Pipeline *pipeline.Pipeline

	closeRetrieval func() error
}

// Close releases resources held by the environment.
func (e *claimsEnv) Close() {
	if e.closeRetrieval != nil {
		if err := e.closeRetrieval(); err != nil {
			zap.L().Warn("close retrieval", zap.Error(err))
		}
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured decision store and applies migrations.
func initStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store)
}

// initPipeline validates cfg for mode and builds the pipeline. When record is
// set, successful runs are saved to the decision store. Callers should defer
// env.Close().
func initPipeline(ctx context.Context, mode string, record bool) (*claimsEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	env := &claimsEnv{}
	retriever, closeRetrieval := retrieval.New(cfg.Retrieval)
	env.closeRetrieval = closeRetrieval

	p := pipeline.New(predict.New(cfg.Provider), retriever, pipeline.OptionsFromConfig(cfg))
	if record {
		st, err := initStore(ctx)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.Store = st
		p.WithRecorder(store.Recorder{Store: st})
	}
	env.Pipeline = p

	zap.L().Debug("pipeline initialized",
		zap.String("mode", mode),
		zap.Bool("provider", p.ProviderAvailable()),
		zap.Bool("record", record),
	)
	return env, nil
}
