package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/claims-cli/internal/model"
	"github.com/sells-group/claims-cli/internal/predict"
	"github.com/sells-group/claims-cli/internal/retrieval"
)

func rawClaim(number string, cost float64, description string) map[string]any {
	return map[string]any{
		"claim_number":          number,
		"policy_number":         "POL-778",
		"claimant_name":         "Dana Reyes",
		"date_of_loss":          "2025-03-14",
		"loss_description":      description,
		"estimated_repair_cost": cost,
		"vehicle_details":       "2019 Toyota Camry",
	}
}

func testClaim(t *testing.T, cost float64, description string) model.Claim {
	t.Helper()
	c, err := model.ParseClaim(rawClaim("CLM-1001", cost, description))
	require.NoError(t, err)
	return c
}

// scriptedPredictor answers each stage with canned provider text. Stages
// without an answer fail with a provider error. Requests are recorded.
type scriptedPredictor struct {
	answers map[string]string

	mu       sync.Mutex
	requests []predict.Request
}

func (s *scriptedPredictor) Available() bool { return true }

func (s *scriptedPredictor) Predict(_ context.Context, req predict.Request, out predict.Output) error {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	text, ok := s.answers[req.Stage]
	if !ok {
		return model.NewError(model.KindProviderError, req.ClaimNumber, errors.New("no scripted answer"))
	}
	if err := predict.Decode(text, out); err != nil {
		return model.NewError(model.KindProviderError, req.ClaimNumber, err)
	}
	return nil
}

func (s *scriptedPredictor) request(stage string) (predict.Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.requests {
		if r.Stage == stage {
			return r, true
		}
	}
	return predict.Request{}, false
}

// blockingPredictor waits for the context to end.
type blockingPredictor struct{}

func (blockingPredictor) Available() bool { return true }

func (blockingPredictor) Predict(ctx context.Context, req predict.Request, _ predict.Output) error {
	<-ctx.Done()
	return model.NewError(model.KindProviderError, req.ClaimNumber, ctx.Err())
}

// staticRetriever returns the same documents for every query.
type staticRetriever struct {
	docs []retrieval.Document

	mu      sync.Mutex
	queries []string
}

func (s *staticRetriever) Retrieve(_ context.Context, query string, _ int) retrieval.Result {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	return retrieval.Result{Documents: s.docs}
}
