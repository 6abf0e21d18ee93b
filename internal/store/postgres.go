package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/claims-cli/internal/db"
	"github.com/sells-group/claims-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS claim_decisions (
	claim_number       TEXT PRIMARY KEY,
	bundle             JSONB NOT NULL,
	covered            BOOLEAN NOT NULL,
	recommended_payout DOUBLE PRECISION NOT NULL,
	risk_score         DOUBLE PRECISION,
	processing_time_ms BIGINT NOT NULL DEFAULT 0,
	overridden         BOOLEAN NOT NULL DEFAULT false,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS decision_overrides (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	claim_number     TEXT NOT NULL REFERENCES claim_decisions(claim_number),
	original_covered BOOLEAN NOT NULL,
	original_payout  DOUBLE PRECISION NOT NULL,
	override_covered BOOLEAN NOT NULL,
	override_payout  DOUBLE PRECISION NOT NULL,
	reason           TEXT NOT NULL,
	adjuster         TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_claim_decisions_created_at ON claim_decisions(created_at);
CREATE INDEX IF NOT EXISTS idx_decision_overrides_claim ON decision_overrides(claim_number);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveDecision(ctx context.Context, rec model.DecisionRecord) error {
	cols, err := columnsOf(rec)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO claim_decisions
			(claim_number, bundle, covered, recommended_payout, risk_score, processing_time_ms, overridden, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, $7, $7)
		ON CONFLICT (claim_number) DO UPDATE SET
			bundle = EXCLUDED.bundle,
			covered = EXCLUDED.covered,
			recommended_payout = EXCLUDED.recommended_payout,
			risk_score = EXCLUDED.risk_score,
			processing_time_ms = EXCLUDED.processing_time_ms,
			overridden = false,
			updated_at = EXCLUDED.updated_at`,
		rec.ClaimNumber, cols.bundle, cols.covered, cols.payout, cols.riskScore, rec.ProcessingTimeMs, now,
	)
	return eris.Wrapf(err, "postgres: save decision %s", rec.ClaimNumber)
}

var decisionUpsert = db.UpsertConfig{
	Table: "claim_decisions",
	Columns: []string{
		"claim_number", "bundle", "covered", "recommended_payout", "risk_score",
		"processing_time_ms", "overridden", "created_at", "updated_at",
	},
	ConflictKeys: []string{"claim_number"},
	UpdateCols: []string{
		"bundle", "covered", "recommended_payout", "risk_score",
		"processing_time_ms", "overridden", "updated_at",
	},
}

// SaveDecisions writes a batch through COPY and a single merge.
func (s *PostgresStore) SaveDecisions(ctx context.Context, recs []model.DecisionRecord) (int, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(recs))
	for _, rec := range recs {
		cols, err := columnsOf(rec)
		if err != nil {
			return 0, err
		}
		rows = append(rows, []any{
			rec.ClaimNumber, cols.bundle, cols.covered, cols.payout, cols.riskScore,
			rec.ProcessingTimeMs, false, now, now,
		})
	}
	n, err := db.BulkUpsert(ctx, s.pool, decisionUpsert, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: save decisions")
	}
	return int(n), nil
}

const pgSelectDecision = `SELECT claim_number, bundle, processing_time_ms, overridden, created_at, updated_at FROM claim_decisions`

func (s *PostgresStore) GetDecision(ctx context.Context, claimNumber string) (*model.DecisionRecord, error) {
	rec, err := scanPGDecision(s.pool.QueryRow(ctx, pgSelectDecision+` WHERE claim_number = $1`, claimNumber))
	if err != nil {
		return nil, err
	}
	if rec.Overridden {
		row := s.pool.QueryRow(ctx, pgSelectOverride+` WHERE claim_number = $1 ORDER BY created_at DESC LIMIT 1`, claimNumber)
		audit, err := scanOverride(row)
		if err != nil && !isNoRows(err) {
			return nil, err
		}
		rec.Override = audit
	}
	return rec, nil
}

func (s *PostgresStore) ListDecisions(ctx context.Context, filter ListFilter) ([]model.DecisionRecord, error) {
	filter = filter.normalized()
	rows, err := s.pool.Query(ctx,
		pgSelectDecision+` ORDER BY created_at DESC, claim_number LIMIT $1 OFFSET $2`,
		filter.Limit, filter.Offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list decisions")
	}
	defer rows.Close()

	var recs []model.DecisionRecord
	for rows.Next() {
		rec, err := scanPGDecision(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list decisions iterate")
}

func (s *PostgresStore) CountDecisions(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM claim_decisions`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count decisions")
}

func (s *PostgresStore) OverrideDecision(ctx context.Context, claimNumber string, o model.Override) (*model.DecisionRecord, error) {
	if err := o.Validate(); err != nil {
		return nil, eris.Wrap(err, "postgres: invalid override")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin override")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	rec, err := scanPGDecision(tx.QueryRow(ctx, pgSelectDecision+` WHERE claim_number = $1 FOR UPDATE`, claimNumber))
	if err != nil {
		return nil, err
	}

	audit := applyOverride(rec, o, time.Now().UTC())
	cols, err := columnsOf(*rec)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE claim_decisions SET bundle = $1, covered = $2, recommended_payout = $3, overridden = true, updated_at = $4 WHERE claim_number = $5`,
		cols.bundle, cols.covered, cols.payout, rec.UpdatedAt, claimNumber,
	); err != nil {
		return nil, eris.Wrapf(err, "postgres: update overridden decision %s", claimNumber)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO decision_overrides (id, claim_number, original_covered, original_payout, override_covered, override_payout, reason, adjuster, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		audit.ID, claimNumber, audit.OriginalCovered, audit.OriginalPayout,
		audit.OverrideCovered, audit.OverridePayout, audit.Reason, audit.Adjuster, audit.CreatedAt,
	); err != nil {
		return nil, eris.Wrapf(err, "postgres: insert override %s", claimNumber)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit override")
	}
	return rec, nil
}

const pgSelectOverride = `SELECT id, claim_number, original_covered, original_payout, override_covered, override_payout, reason, adjuster, created_at FROM decision_overrides`

func (s *PostgresStore) ListOverrides(ctx context.Context, claimNumber string) ([]model.OverrideAudit, error) {
	rows, err := s.pool.Query(ctx, pgSelectOverride+` WHERE claim_number = $1 ORDER BY created_at`, claimNumber)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list overrides")
	}
	defer rows.Close()

	var out []model.OverrideAudit
	for rows.Next() {
		a, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list overrides iterate")
}

func scanPGDecision(row scannable) (*model.DecisionRecord, error) {
	var rec model.DecisionRecord
	var bundle []byte
	err := row.Scan(&rec.ClaimNumber, &bundle, &rec.ProcessingTimeMs, &rec.Overridden, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan decision")
	}
	if err := unmarshalBundle(bundle, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
