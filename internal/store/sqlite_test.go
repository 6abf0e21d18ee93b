package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/claims-cli/internal/config"
	"github.com/sells-group/claims-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func sampleRecord(claimNumber string, covered bool, payout, risk float64) model.DecisionRecord {
	return model.DecisionRecord{
		ClaimNumber: claimNumber,
		Bundle: model.Bundle{
			Decision: &model.ClaimDecision{
				ClaimNumber:       claimNumber,
				Covered:           covered,
				Deductible:        500,
				RecommendedPayout: payout,
				Notes:             "Policy POL-1 · PART D - COLLISION COVERAGE",
			},
			FNOLSummary: &model.IntakeSummary{
				IncidentSummary:    "Rear-ended at a stop light",
				SeverityLevel:      model.SeverityMedium,
				RecommendedActions: []string{"Collect photos"},
			},
			Triage: &model.TriageDecision{
				Priority:       model.PriorityStandard,
				Assignment:     "standard_adjuster",
				Rationale:      "routine",
				TargetSLAHours: 48,
			},
			FraudSignal: &model.FraudSignal{
				RiskScore:      risk,
				Flags:          []string{},
				Recommendation: "standard processing",
			},
		},
		ProcessingTimeMs: 42,
	}
}

func TestSQLite_SaveAndGetDecision(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveDecision(ctx, sampleRecord("CLM-1", true, 1500, 0.2)))

	got, err := st.GetDecision(ctx, "CLM-1")
	require.NoError(t, err)
	assert.Equal(t, "CLM-1", got.ClaimNumber)
	assert.Equal(t, int64(42), got.ProcessingTimeMs)
	assert.False(t, got.Overridden)
	assert.Nil(t, got.Override)
	require.NotNil(t, got.Bundle.Decision)
	assert.Equal(t, 1500.0, got.Bundle.Decision.RecommendedPayout)
	assert.Equal(t, model.PriorityStandard, got.Bundle.Triage.Priority)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSQLite_GetDecision_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetDecision(context.Background(), "CLM-404")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestSQLite_SaveDecision_Replaces(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveDecision(ctx, sampleRecord("CLM-1", true, 1500, 0.2)))
	require.NoError(t, st.SaveDecision(ctx, sampleRecord("CLM-1", false, 0, 0.7)))

	got, err := st.GetDecision(ctx, "CLM-1")
	require.NoError(t, err)
	assert.False(t, got.Bundle.Decision.Covered)

	n, err := st.CountDecisions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLite_SaveDecision_RequiresClaimNumber(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.SaveDecision(context.Background(), sampleRecord("", true, 1, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no claim number")
}

func TestSQLite_SaveDecisions_ListAndCount(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	var recs []model.DecisionRecord
	for i := 1; i <= 5; i++ {
		recs = append(recs, sampleRecord(fmt.Sprintf("CLM-%d", i), true, float64(i*100), 0.2))
	}
	n, err := st.SaveDecisions(ctx, recs)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	count, err := st.CountDecisions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	page, err := st.ListDecisions(ctx, ListFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	all, err := st.ListDecisions(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	n, err = st.SaveDecisions(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSQLite_SaveDecisions_RollsBackOnInvalid(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.SaveDecisions(ctx, []model.DecisionRecord{
		sampleRecord("CLM-1", true, 100, 0.1),
		sampleRecord("", true, 100, 0.1),
	})
	require.Error(t, err)

	count, err := st.CountDecisions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSQLite_OverrideDecision(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, st.SaveDecision(ctx, sampleRecord("CLM-1", true, 1500, 0.2)))

	rec, err := st.OverrideDecision(ctx, "CLM-1", model.Override{
		Covered:           true,
		RecommendedPayout: 900,
		Reason:            "repair estimate revised",
		Adjuster:          "jdoe",
	})
	require.NoError(t, err)
	assert.True(t, rec.Overridden)
	assert.Equal(t, 900.0, rec.Bundle.Decision.RecommendedPayout)

	got, err := st.GetDecision(ctx, "CLM-1")
	require.NoError(t, err)
	assert.True(t, got.Overridden)
	assert.Equal(t, 900.0, got.Bundle.Decision.RecommendedPayout)
	require.NotNil(t, got.Override)
	assert.Equal(t, 1500.0, got.Override.OriginalPayout)
	assert.Equal(t, "jdoe", got.Override.Adjuster)

	_, err = st.OverrideDecision(ctx, "CLM-1", model.Override{Covered: false, Reason: "coverage lapsed"})
	require.NoError(t, err)

	audits, err := st.ListOverrides(ctx, "CLM-1")
	require.NoError(t, err)
	require.Len(t, audits, 2)
	assert.Equal(t, "repair estimate revised", audits[0].Reason)
	assert.Equal(t, 900.0, audits[1].OriginalPayout)
	assert.False(t, audits[1].OverrideCovered)
}

func TestSQLite_OverrideDecision_Errors(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.OverrideDecision(ctx, "CLM-404", model.Override{Covered: true, Reason: "review"})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	require.NoError(t, st.SaveDecision(ctx, sampleRecord("CLM-1", true, 1500, 0.2)))
	_, err = st.OverrideDecision(ctx, "CLM-1", model.Override{Covered: true, RecommendedPayout: 100})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reason is required")

	audits, err := st.ListOverrides(ctx, "CLM-1")
	require.NoError(t, err)
	assert.Empty(t, audits)
}

func TestSQLite_ResaveClearsOverride(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, st.SaveDecision(ctx, sampleRecord("CLM-1", true, 1500, 0.2)))
	_, err := st.OverrideDecision(ctx, "CLM-1", model.Override{Covered: true, RecommendedPayout: 100, Reason: "agreed"})
	require.NoError(t, err)

	require.NoError(t, st.SaveDecision(ctx, sampleRecord("CLM-1", true, 1500, 0.2)))

	got, err := st.GetDecision(ctx, "CLM-1")
	require.NoError(t, err)
	assert.False(t, got.Overridden)
	assert.Nil(t, got.Override)

	audits, err := st.ListOverrides(ctx, "CLM-1")
	require.NoError(t, err)
	assert.Len(t, audits, 1)
}

func TestOpen_SQLite(t *testing.T) {
	st, err := Open(context.Background(), config.StoreConfig{
		Driver:      "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "open.db"),
	})
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	n, err := st.CountDecisions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestListFilter_Normalized(t *testing.T) {
	assert.Equal(t, ListFilter{Limit: defaultListLimit}, ListFilter{}.normalized())
	assert.Equal(t, ListFilter{Limit: maxListLimit, Offset: 0}, ListFilter{Limit: 5000, Offset: -3}.normalized())
	assert.Equal(t, ListFilter{Limit: 10, Offset: 20}, ListFilter{Limit: 10, Offset: 20}.normalized())
}

func TestRecorder_SavesThroughStore(t *testing.T) {
	st := newTestSQLiteStore(t)
	r := Recorder{Store: st}

	require.NoError(t, r.SaveDecision(context.Background(), sampleRecord("CLM-9", true, 10, 0)))
	_, err := st.GetDecision(context.Background(), "CLM-9")
	assert.NoError(t, err)
}

func TestRecorder_SavesBatchThroughStore(t *testing.T) {
	st := newTestSQLiteStore(t)
	r := Recorder{Store: st}

	n, err := r.SaveDecisions(context.Background(), []model.DecisionRecord{
		sampleRecord("CLM-10", true, 10, 0.2),
		sampleRecord("CLM-11", false, 0, 0.6),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := st.CountDecisions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
