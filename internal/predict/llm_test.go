package predict

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/claims-cli/internal/model"
	"github.com/sells-group/claims-cli/internal/resilience"
)

// mockCompleter implements Completer for testing.
type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Name() string { return "mock" }

func (m *mockCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

func testOptions() Options {
	return Options{
		Timeout: 2 * time.Second,
		Backoff: resilience.Backoff{Attempts: 2, Initial: time.Millisecond, Max: time.Millisecond},
		Breaker: resilience.BreakerConfig{Threshold: 2, Cooldown: time.Hour},
	}
}

func triageRequest() Request {
	return Request{
		Stage:       "triage",
		ClaimNumber: "CLM-7",
		Template:    "Route claim {claim_info}",
		Vars:        map[string]string{"claim_info": "C7"},
	}
}

func TestLLMPredictor_Success(t *testing.T) {
	mc := new(mockCompleter)
	mc.On("Complete", mock.Anything, mock.MatchedBy(func(p Prompt) bool {
		return p.Stage == "triage" && p.User == "Route claim C7" && p.System != ""
	})).Return(`{"priority":"Standard","assignment":"Desk adjuster","rationale":"ok","target_sla_hours":24}`, nil)

	p := NewLLM(mc, testOptions())
	assert.True(t, p.Available())

	var out model.TriageDecision
	require.NoError(t, p.Predict(context.Background(), triageRequest(), &out))
	assert.Equal(t, model.PriorityStandard, out.Priority)
	mc.AssertExpectations(t)
}

func TestLLMPredictor_BackendErrorIsProviderError(t *testing.T) {
	mc := new(mockCompleter)
	mc.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("invalid x-api-key")).Once()

	p := NewLLM(mc, testOptions())

	var out model.TriageDecision
	err := p.Predict(context.Background(), triageRequest(), &out)
	require.Error(t, err)
	assert.Equal(t, model.KindProviderError, model.KindOf(err))
	assert.Equal(t, "CLM-7", model.ClaimNumberOf(err))
	mc.AssertNumberOfCalls(t, "Complete", 1)
}

func TestLLMPredictor_TransientRetried(t *testing.T) {
	mc := new(mockCompleter)
	mc.On("Complete", mock.Anything, mock.Anything).
		Return("", resilience.NewTransientError(errors.New("overloaded"), 529)).Once()
	mc.On("Complete", mock.Anything, mock.Anything).
		Return(`{"priority":"Low","assignment":"Express lane","rationale":"minor","target_sla_hours":48}`, nil).Once()

	p := NewLLM(mc, testOptions())

	var out model.TriageDecision
	require.NoError(t, p.Predict(context.Background(), triageRequest(), &out))
	assert.Equal(t, model.PriorityLow, out.Priority)
	mc.AssertNumberOfCalls(t, "Complete", 2)
}

func TestLLMPredictor_InvalidAnswerIsProviderError(t *testing.T) {
	mc := new(mockCompleter)
	mc.On("Complete", mock.Anything, mock.Anything).Return(`{"priority":"Whenever"}`, nil)

	p := NewLLM(mc, testOptions())

	var out model.TriageDecision
	err := p.Predict(context.Background(), triageRequest(), &out)
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindProviderError))
}

func TestLLMPredictor_OpenCircuitSkipsBackend(t *testing.T) {
	mc := new(mockCompleter)
	mc.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("down"))

	p := NewLLM(mc, testOptions())
	var out model.TriageDecision
	for i := 0; i < 2; i++ {
		require.Error(t, p.Predict(context.Background(), triageRequest(), &out))
	}
	mc.AssertNumberOfCalls(t, "Complete", 2)

	err := p.Predict(context.Background(), triageRequest(), &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.True(t, model.IsKind(err, model.KindProviderError))
	mc.AssertNumberOfCalls(t, "Complete", 2)
}

func TestLLMPredictor_PerCallTimeout(t *testing.T) {
	mc := new(mockCompleter)
	mc.On("Complete", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return("", context.DeadlineExceeded)

	opts := testOptions()
	opts.Timeout = 20 * time.Millisecond
	opts.Backoff.Attempts = 1
	p := NewLLM(mc, opts)

	var out model.TriageDecision
	err := p.Predict(context.Background(), triageRequest(), &out)
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindProviderError))
}

func TestUnavailable(t *testing.T) {
	var p Predictor = Unavailable{}
	assert.False(t, p.Available())

	var out model.TriageDecision
	err := p.Predict(context.Background(), triageRequest(), &out)
	require.Error(t, err)
	assert.Equal(t, model.KindProviderError, model.KindOf(err))
}
