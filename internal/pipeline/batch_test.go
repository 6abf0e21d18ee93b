package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/claims-cli/internal/model"
	"github.com/sells-group/claims-cli/internal/predict"
)

func TestRunBatch_IsolatesFailures(t *testing.T) {
	t.Parallel()

	bad := rawClaim("CLM-2", 100, "x")
	bad["estimated_repair_cost"] = "lots"

	raws := []map[string]any{
		rawClaim("CLM-1", 4000, "Rear-ended"),
		bad,
		rawClaim("CLM-3", 20000, "Delivery truck rollover"),
	}

	items := New(nil, nil, Options{MaxConcurrent: 3}).RunBatch(context.Background(), raws)
	require.Len(t, items, 3)

	assert.Equal(t, StatusOK, items[0].Status)
	assert.Equal(t, "CLM-1", items[0].ClaimNumber)
	require.NotNil(t, items[0].Bundle)
	assert.True(t, items[0].Bundle.Decision.Covered)

	assert.Equal(t, 1, items[1].Index)
	assert.Equal(t, StatusFailed, items[1].Status)
	assert.Equal(t, "CLM-2", items[1].ClaimNumber)
	assert.Equal(t, model.KindMalformedClaim, items[1].ErrorKind)
	assert.Contains(t, items[1].Error, model.FieldEstimatedRepairCost)
	assert.Nil(t, items[1].Bundle)
	assert.Error(t, items[1].Err)

	assert.Equal(t, StatusOK, items[2].Status)
	assert.False(t, items[2].Bundle.Decision.Covered)

	ok, failed := Summarize(items)
	assert.Equal(t, 2, ok)
	assert.Equal(t, 1, failed)
}

func TestRunBatch_UnknownClaimNumber(t *testing.T) {
	t.Parallel()

	items := New(nil, nil, Options{}).RunBatch(context.Background(), []map[string]any{nil, {"policy_number": "P"}})
	require.Len(t, items, 2)
	for _, it := range items {
		assert.Equal(t, StatusFailed, it.Status)
		assert.Equal(t, model.UnknownClaimNumber, it.ClaimNumber)
	}
}

func TestRunBatch_Empty(t *testing.T) {
	t.Parallel()

	items := New(nil, nil, Options{}).RunBatch(context.Background(), nil)
	assert.Empty(t, items)
}

// countingPredictor tracks how many predictions are in flight at once.
type countingPredictor struct {
	inFlight atomic.Int64
	peak     atomic.Int64
}

func (c *countingPredictor) Available() bool { return true }

func (c *countingPredictor) Predict(_ context.Context, req predict.Request, _ predict.Output) error {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		peak := c.peak.Load()
		if n <= peak || c.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	return model.NewError(model.KindProviderError, req.ClaimNumber, context.Canceled)
}

func TestRunBatch_BoundedConcurrency(t *testing.T) {
	t.Parallel()

	pred := &countingPredictor{}
	raws := make([]map[string]any, 6)
	for i := range raws {
		raws[i] = rawClaim("CLM-"+string(rune('A'+i)), 1000, "x")
	}

	items := New(pred, nil, Options{MaxConcurrent: 2}).RunBatch(context.Background(), raws)
	ok, failed := Summarize(items)
	assert.Equal(t, 6, ok)
	assert.Zero(t, failed)
	assert.LessOrEqual(t, pred.peak.Load(), int64(2))
	assert.Positive(t, pred.peak.Load())
}

// memRecorder saves one decision per call.
type memRecorder struct {
	mu    sync.Mutex
	saved []string
}

func (m *memRecorder) SaveDecision(_ context.Context, rec model.DecisionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, rec.ClaimNumber)
	return nil
}

// bulkRecorder also accepts whole batches.
type bulkRecorder struct {
	memRecorder
	batches [][]model.DecisionRecord
	err     error
}

func (b *bulkRecorder) SaveDecisions(_ context.Context, recs []model.DecisionRecord) (int, error) {
	b.batches = append(b.batches, recs)
	if b.err != nil {
		return 0, b.err
	}
	return len(recs), nil
}

func batchWithOneFailure() []map[string]any {
	bad := rawClaim("CLM-2", 100, "x")
	delete(bad, "policy_number")
	return []map[string]any{
		rawClaim("CLM-1", 4000, "Rear-ended"),
		bad,
		rawClaim("CLM-3", 12500, "Hail"),
	}
}

func TestRunBatch_BulkRecorderSavesOnce(t *testing.T) {
	t.Parallel()

	rec := &bulkRecorder{}
	items := New(nil, nil, Options{MaxConcurrent: 3}).WithRecorder(rec).RunBatch(context.Background(), batchWithOneFailure())

	ok, failed := Summarize(items)
	assert.Equal(t, 2, ok)
	assert.Equal(t, 1, failed)

	assert.Empty(t, rec.saved, "bulk recorder should not receive per-claim saves")
	require.Len(t, rec.batches, 1)
	require.Len(t, rec.batches[0], 2)
	assert.Equal(t, "CLM-1", rec.batches[0][0].ClaimNumber)
	assert.Equal(t, "CLM-3", rec.batches[0][1].ClaimNumber)
	assert.Equal(t, 12000.0, rec.batches[0][1].Bundle.Decision.RecommendedPayout)
	assert.Equal(t, items[2].Bundle.Decision, rec.batches[0][1].Bundle.Decision)
}

func TestRunBatch_BulkRecorderFailureKeepsResults(t *testing.T) {
	t.Parallel()

	rec := &bulkRecorder{err: errors.New("disk full")}
	items := New(nil, nil, Options{MaxConcurrent: 2}).WithRecorder(rec).RunBatch(context.Background(), batchWithOneFailure())

	ok, _ := Summarize(items)
	assert.Equal(t, 2, ok)
	assert.Len(t, rec.batches, 1)
}

func TestRunBatch_BulkRecorderSkipsEmptyBatch(t *testing.T) {
	t.Parallel()

	rec := &bulkRecorder{}
	items := New(nil, nil, Options{}).WithRecorder(rec).RunBatch(context.Background(), []map[string]any{{"policy_number": "P"}})
	require.Len(t, items, 1)
	assert.Empty(t, rec.batches)
}

func TestRunBatch_PlainRecorderSavesEachClaim(t *testing.T) {
	t.Parallel()

	rec := &memRecorder{}
	New(nil, nil, Options{MaxConcurrent: 3}).WithRecorder(rec).RunBatch(context.Background(), batchWithOneFailure())

	assert.ElementsMatch(t, []string{"CLM-1", "CLM-3"}, rec.saved)
}
