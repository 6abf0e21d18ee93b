// Package predict asks a reasoning provider for structured, validated stage
// outputs. A Predictor never decides about fallbacks; callers do.
package predict

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/claims-cli/internal/model"
)

// Output is a stage result that can check its own invariants.
type Output interface {
	Validate() error
}

// Request describes one structured prediction.
type Request struct {
	Stage       string
	ClaimNumber string
	// Template uses {name} placeholders filled from Vars.
	Template string
	Vars     map[string]string
}

// Predictor produces structured stage outputs from a reasoning provider.
type Predictor interface {
	// Available reports whether the provider was configured at construction.
	Available() bool
	// Predict fills out from the provider's answer. Every failure, including
	// unavailability, is a model.KindProviderError.
	Predict(ctx context.Context, req Request, out Output) error
}

// Render substitutes {name} placeholders in tmpl. Unknown placeholders are
// left as-is.
func Render(tmpl string, vars map[string]string) string {
	if len(vars) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// Unavailable is the Predictor used when no provider is configured.
type Unavailable struct{}

// Available always reports false.
func (Unavailable) Available() bool { return false }

// Predict always fails with a provider error.
func (Unavailable) Predict(_ context.Context, req Request, _ Output) error {
	return model.NewError(model.KindProviderError, req.ClaimNumber,
		eris.Errorf("predict: %s: provider unavailable", req.Stage))
}
