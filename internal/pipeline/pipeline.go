package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/claims-cli/internal/config"
	"github.com/sells-group/claims-cli/internal/intake"
	"github.com/sells-group/claims-cli/internal/model"
	"github.com/sells-group/claims-cli/internal/predict"
	"github.com/sells-group/claims-cli/internal/retrieval"
)

// Recorder persists completed runs. Recording failures are logged and never
// fail the run.
type Recorder interface {
	SaveDecision(ctx context.Context, rec model.DecisionRecord) error
}

// BatchRecorder is a Recorder that can persist a whole batch in one call.
// RunBatch prefers it over per-claim saves.
type BatchRecorder interface {
	Recorder
	SaveDecisions(ctx context.Context, recs []model.DecisionRecord) (int, error)
}

// Options tunes a Pipeline.
type Options struct {
	// TopK is the number of documents requested per retrieval query.
	TopK int
	// RunTimeout caps a whole claim run. Zero disables the cap.
	RunTimeout time.Duration
	// MaxConcurrent bounds parallel runs in RunBatch.
	MaxConcurrent int
}

// OptionsFromConfig maps configuration onto pipeline options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TopK:          cfg.Retrieval.TopK,
		RunTimeout:    time.Duration(cfg.Pipeline.RunTimeoutSecs) * time.Second,
		MaxConcurrent: cfg.Batch.MaxConcurrentClaims,
	}
}

// Pipeline threads claims through intake, triage, fraud, policy retrieval,
// recommendation and decision. The predictor and retriever are shared by
// concurrent runs; each run owns its RunContext.
type Pipeline struct {
	predictor predict.Predictor
	retriever retrieval.Service
	recorder  Recorder
	opts      Options
}

// New creates a Pipeline. A nil predictor behaves as unavailable and a nil
// retriever uses the keyword corpus.
func New(predictor predict.Predictor, retriever retrieval.Service, opts Options) *Pipeline {
	if predictor == nil {
		predictor = predict.Unavailable{}
	}
	if retriever == nil {
		retriever = retrieval.Keyword{}
	}
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	return &Pipeline{predictor: predictor, retriever: retriever, opts: opts}
}

// WithRecorder sets the recorder used for successful runs.
func (p *Pipeline) WithRecorder(r Recorder) *Pipeline {
	p.recorder = r
	return p
}

// ProviderAvailable reports whether stages will try the reasoning provider.
func (p *Pipeline) ProviderAvailable() bool {
	return p.predictor.Available()
}

// RunFile loads a claim file and runs it.
func (p *Pipeline) RunFile(ctx context.Context, path string) (*model.Bundle, error) {
	raw, err := intake.LoadClaimFile(path)
	if err != nil {
		return nil, err
	}
	return p.RunRaw(ctx, raw)
}

// RunRaw parses raw claim data and runs it.
func (p *Pipeline) RunRaw(ctx context.Context, raw map[string]any) (*model.Bundle, error) {
	claim, err := model.ParseClaim(raw)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, claim)
}

// Run executes every stage for claim in order and records the result. A
// failed run never returns a partial bundle.
func (p *Pipeline) Run(ctx context.Context, claim model.Claim) (*model.Bundle, error) {
	rec, err := p.execute(ctx, claim)
	if err != nil {
		return nil, err
	}
	if p.recorder != nil {
		if saveErr := p.recorder.SaveDecision(ctx, rec); saveErr != nil {
			zap.L().Warn("pipeline: failed to record decision",
				zap.String("claim", claim.ClaimNumber),
				zap.Error(saveErr),
			)
		}
	}
	return &rec.Bundle, nil
}

// execute runs the stages under the run timeout without recording.
func (p *Pipeline) execute(ctx context.Context, claim model.Claim) (model.DecisionRecord, error) {
	if p.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.RunTimeout)
		defer cancel()
	}

	log := zap.L().With(zap.String("claim", claim.ClaimNumber))
	log.Info("pipeline: starting claim run", zap.Bool("provider", p.predictor.Available()))
	runStart := time.Now()

	rc := NewRunContext(claim)

	// trackStage times fn, advances the run to next and records the trace.
	trackStage := func(name string, next State, fn func() (model.StagePath, error)) error {
		if ctx.Err() != nil {
			return p.timeoutError(ctx, claim.ClaimNumber, name)
		}

		start := time.Now()
		path, err := fn()
		duration := time.Since(start).Milliseconds()

		if err == nil && ctx.Err() != nil {
			err = p.timeoutError(ctx, claim.ClaimNumber, name)
		}
		if err != nil {
			log.Error("pipeline: stage failed",
				zap.String("stage", name),
				zap.Int64("duration_ms", duration),
				zap.Error(err),
			)
			return err
		}

		if advErr := rc.advance(next); advErr != nil {
			return model.NewError(model.KindFatalStage, claim.ClaimNumber, advErr)
		}
		rc.record(model.StageResult{Name: name, Path: path, Duration: duration})
		log.Info("pipeline: stage complete",
			zap.String("stage", name),
			zap.String("path", string(path)),
			zap.Int64("duration_ms", duration),
		)
		return nil
	}

	steps := []struct {
		name string
		next State
		fn   func() (model.StagePath, error)
	}{
		{StageIntake, StateIntakeSummarized, func() (model.StagePath, error) {
			v, path, err := Execute(ctx, p.predictor, intakeStage, rc)
			rc.Intake = v
			return path, err
		}},
		{StageTriage, StateTriaged, func() (model.StagePath, error) {
			v, path, err := Execute(ctx, p.predictor, triageStage, rc)
			rc.Triage = v
			return path, err
		}},
		{StageFraud, StateFraudScored, func() (model.StagePath, error) {
			v, path, err := Execute(ctx, p.predictor, fraudStage, rc)
			rc.Fraud = v
			return path, err
		}},
		{StageQueries, StateQueriesGenerated, func() (model.StagePath, error) {
			v, path, err := Execute(ctx, p.predictor, queriesStage, rc)
			rc.Queries = v
			return path, err
		}},
		{StageRetrieval, StatePolicyRetrieved, func() (model.StagePath, error) {
			rc.PolicyText = p.retrievePolicy(ctx, rc)
			return model.PathInternal, nil
		}},
		{StageRecommendation, StateRecommendationGenerated, func() (model.StagePath, error) {
			v, path, err := Execute(ctx, p.predictor, recommendationStage, rc)
			if v != nil {
				v.RecommendationSummary = model.NormalizeSummary(v.RecommendationSummary)
			}
			rc.Recommendation = v
			return path, err
		}},
		{StageDecision, StateDecided, func() (model.StagePath, error) {
			rc.Decision = decide(rc)
			return model.PathInternal, nil
		}},
	}

	for _, s := range steps {
		if err := trackStage(s.name, s.next, s.fn); err != nil {
			return model.DecisionRecord{}, err
		}
	}

	if err := rc.advance(StateCompleted); err != nil {
		return model.DecisionRecord{}, model.NewError(model.KindFatalStage, claim.ClaimNumber, err)
	}
	bundle, err := rc.Bundle()
	if err != nil {
		return model.DecisionRecord{}, model.NewError(model.KindFatalStage, claim.ClaimNumber, err)
	}

	elapsed := time.Since(runStart)
	log.Info("pipeline: claim run complete",
		zap.Bool("covered", bundle.Decision.Covered),
		zap.Float64("payout", bundle.Decision.RecommendedPayout),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	)

	return model.DecisionRecord{
		ClaimNumber:      claim.ClaimNumber,
		Bundle:           *bundle,
		ProcessingTimeMs: elapsed.Milliseconds(),
	}, nil
}
