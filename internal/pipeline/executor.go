package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/claims-cli/internal/model"
	"github.com/sells-group/claims-cli/internal/predict"
)

// Stage describes one dual-path step: a provider prompt and the deterministic
// rule that replaces it when the provider is unavailable or fails.
type Stage[T any] struct {
	Name     string
	Template string
	Vars     func(rc *RunContext) map[string]string
	// Fallback must be a total function of the run context.
	Fallback func(rc *RunContext) *T
}

// outputPtr constrains *T to a validating stage output.
type outputPtr[T any] interface {
	*T
	predict.Output
}

// Execute runs st against the provider when it is available and falls back to
// the stage rule on any provider error. A context that ends during the call
// is a timeout, not a fallback. The only other failure is a fallback that
// produces no valid value, reported as model.KindFatalStage.
func Execute[T any, PT outputPtr[T]](ctx context.Context, p predict.Predictor, st Stage[T], rc *RunContext) (*T, model.StagePath, error) {
	claimNumber := rc.Claim.ClaimNumber
	log := zap.L().With(zap.String("claim", claimNumber), zap.String("stage", st.Name))

	if p != nil && p.Available() {
		var vars map[string]string
		if st.Vars != nil {
			vars = st.Vars(rc)
		}
		out := PT(new(T))
		err := p.Predict(ctx, predict.Request{
			Stage:       st.Name,
			ClaimNumber: claimNumber,
			Template:    st.Template,
			Vars:        vars,
		}, out)
		if err == nil {
			return (*T)(out), model.PathProvider, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", model.NewError(model.KindTimeoutExceeded, claimNumber,
				eris.Wrapf(ctxErr, "pipeline: %s", st.Name))
		}
		log.Warn("pipeline: provider failed, using fallback", zap.Error(err))
	}

	v := st.Fallback(rc)
	if v == nil {
		return nil, "", model.NewError(model.KindFatalStage, claimNumber,
			eris.Errorf("pipeline: %s fallback returned nothing", st.Name))
	}
	if err := PT(v).Validate(); err != nil {
		return nil, "", model.NewError(model.KindFatalStage, claimNumber,
			eris.Wrapf(err, "pipeline: %s fallback produced invalid output", st.Name))
	}
	return v, model.PathFallback, nil
}
