// Package store persists claim decisions and adjuster overrides in SQLite or
// PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/claims-cli/internal/config"
	"github.com/sells-group/claims-cli/internal/model"
	"github.com/sells-group/claims-cli/internal/resilience"
)

// ErrNotFound is returned when no decision exists for a claim number.
var ErrNotFound = errors.New("store: decision not found")

// IsNotFound reports whether err means the decision does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ListFilter pages through decisions, newest first.
type ListFilter struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

func (f ListFilter) normalized() ListFilter {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Store defines the decision repository.
type Store interface {
	// SaveDecision inserts or replaces the decision for rec.ClaimNumber.
	// Replacing clears the overridden flag; the override audit trail is kept.
	SaveDecision(ctx context.Context, rec model.DecisionRecord) error
	// SaveDecisions saves many decisions at once and returns how many were written.
	SaveDecisions(ctx context.Context, recs []model.DecisionRecord) (int, error)
	GetDecision(ctx context.Context, claimNumber string) (*model.DecisionRecord, error)
	ListDecisions(ctx context.Context, filter ListFilter) ([]model.DecisionRecord, error)
	CountDecisions(ctx context.Context) (int, error)
	// OverrideDecision replaces coverage and payout and appends an audit entry.
	OverrideDecision(ctx context.Context, claimNumber string, o model.Override) (*model.DecisionRecord, error)
	ListOverrides(ctx context.Context, claimNumber string) ([]model.OverrideAudit, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the configured backend and applies migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case "postgres":
		st, err = resilience.Retry(ctx, resilience.DefaultBackoff(), "postgres connect", func(ctx context.Context) (Store, error) {
			return NewPostgres(ctx, cfg.DatabaseURL, nil)
		})
	case "sqlite", "":
		st, err = NewSQLite(cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	zap.L().Debug("store: opened", zap.String("driver", cfg.Driver))
	return st, nil
}

// Recorder adapts a Store to the pipeline's recorder hook.
type Recorder struct {
	Store Store
}

// SaveDecision forwards to the store.
func (r Recorder) SaveDecision(ctx context.Context, rec model.DecisionRecord) error {
	return r.Store.SaveDecision(ctx, rec)
}

// SaveDecisions forwards a whole batch to the store.
func (r Recorder) SaveDecisions(ctx context.Context, recs []model.DecisionRecord) (int, error) {
	return r.Store.SaveDecisions(ctx, recs)
}

// decisionColumns are the denormalized values stored beside the bundle JSON.
type decisionColumns struct {
	bundle    []byte
	covered   bool
	payout    float64
	riskScore *float64
}

func columnsOf(rec model.DecisionRecord) (decisionColumns, error) {
	if rec.ClaimNumber == "" {
		return decisionColumns{}, eris.New("store: decision has no claim number")
	}
	if rec.Bundle.Decision == nil {
		return decisionColumns{}, eris.Errorf("store: decision %s has no decision payload", rec.ClaimNumber)
	}
	b, err := json.Marshal(rec.Bundle)
	if err != nil {
		return decisionColumns{}, eris.Wrap(err, "store: marshal bundle")
	}
	cols := decisionColumns{
		bundle:  b,
		covered: rec.Bundle.Decision.Covered,
		payout:  rec.Bundle.Decision.RecommendedPayout,
	}
	if f := rec.Bundle.FraudSignal; f != nil {
		cols.riskScore = model.Float(f.RiskScore)
	}
	return cols, nil
}

// applyOverride rewrites rec's decision and returns the audit entry.
func applyOverride(rec *model.DecisionRecord, o model.Override, now time.Time) model.OverrideAudit {
	d := rec.Bundle.Decision
	audit := model.OverrideAudit{
		ID:              uuid.New().String(),
		ClaimNumber:     rec.ClaimNumber,
		OriginalCovered: d.Covered,
		OriginalPayout:  d.RecommendedPayout,
		OverrideCovered: o.Covered,
		OverridePayout:  o.RecommendedPayout,
		Reason:          o.Reason,
		Adjuster:        o.Adjuster,
		CreatedAt:       now,
	}
	d.Covered = o.Covered
	d.RecommendedPayout = o.RecommendedPayout
	rec.Overridden = true
	rec.Override = &audit
	rec.UpdatedAt = now
	return audit
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}

func unmarshalBundle(data []byte, rec *model.DecisionRecord) error {
	if err := json.Unmarshal(data, &rec.Bundle); err != nil {
		return eris.Wrapf(err, "store: unmarshal bundle %s", rec.ClaimNumber)
	}
	if rec.Bundle.Decision == nil {
		return eris.Errorf("store: bundle %s has no decision", rec.ClaimNumber)
	}
	return nil
}
