package predict

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/claims-cli/internal/model"
	"github.com/sells-group/claims-cli/internal/resilience"
)

const systemPrompt = `You are an experienced auto insurance claims professional.
Answer with a single JSON object using exactly the keys requested. Do not add commentary, markdown or extra keys.`

// Prompt is a rendered provider request.
type Prompt struct {
	Stage  string
	System string
	User   string
}

// Completer sends a rendered prompt to a provider backend and returns its
// raw text answer.
type Completer interface {
	Name() string
	Complete(ctx context.Context, p Prompt) (string, error)
}

// Options tune an LLMPredictor.
type Options struct {
	// Timeout bounds a single provider call including retries.
	Timeout time.Duration
	// RatePerSec limits provider calls across all concurrent runs. Zero
	// disables the limit.
	RatePerSec float64
	Backoff    resilience.Backoff
	Breaker    resilience.BreakerConfig
}

// LLMPredictor is a Predictor backed by a provider Completer. It is safe for
// concurrent use.
type LLMPredictor struct {
	backend Completer
	guard   *resilience.Guard
	limiter *rate.Limiter
	timeout time.Duration
}

// NewLLM creates a predictor around backend.
func NewLLM(backend Completer, opts Options) *LLMPredictor {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}
	return &LLMPredictor{
		backend: backend,
		guard:   resilience.NewGuard(backend.Name(), opts.Backoff, opts.Breaker),
		limiter: rate.NewLimiter(limit, 1),
		timeout: opts.Timeout,
	}
}

// Available reports true; an LLMPredictor is only built with a configured backend.
func (p *LLMPredictor) Available() bool { return true }

// Predict renders the request, calls the backend and decodes the answer into out.
func (p *LLMPredictor) Predict(ctx context.Context, req Request, out Output) error {
	prompt := Prompt{
		Stage:  req.Stage,
		System: systemPrompt,
		User:   Render(req.Template, req.Vars),
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return p.fail(req, eris.Wrap(err, "predict: rate limit wait"))
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	text, err := resilience.Call(callCtx, p.guard, func(ctx context.Context) (string, error) {
		return p.backend.Complete(ctx, prompt)
	})
	if err != nil {
		return p.fail(req, eris.Wrapf(err, "predict: %s call", p.backend.Name()))
	}

	if err := Decode(text, out); err != nil {
		return p.fail(req, err)
	}

	zap.L().Debug("predict: structured answer accepted",
		zap.String("stage", req.Stage),
		zap.String("claim", req.ClaimNumber),
		zap.String("provider", p.backend.Name()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (p *LLMPredictor) fail(req Request, err error) error {
	return model.NewError(model.KindProviderError, req.ClaimNumber,
		eris.Wrapf(err, "predict: stage %s", req.Stage))
}
