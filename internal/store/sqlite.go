package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/claims-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS claim_decisions (
	claim_number       TEXT PRIMARY KEY,
	bundle             TEXT NOT NULL,
	covered            INTEGER NOT NULL,
	recommended_payout REAL NOT NULL,
	risk_score         REAL,
	processing_time_ms INTEGER NOT NULL DEFAULT 0,
	overridden         INTEGER NOT NULL DEFAULT 0,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS decision_overrides (
	id               TEXT PRIMARY KEY,
	claim_number     TEXT NOT NULL REFERENCES claim_decisions(claim_number),
	original_covered INTEGER NOT NULL,
	original_payout  REAL NOT NULL,
	override_covered INTEGER NOT NULL,
	override_payout  REAL NOT NULL,
	reason           TEXT NOT NULL,
	adjuster         TEXT NOT NULL DEFAULT '',
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_claim_decisions_created_at ON claim_decisions(created_at);
CREATE INDEX IF NOT EXISTS idx_decision_overrides_claim ON decision_overrides(claim_number);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteUpsertDecision = `
INSERT INTO claim_decisions
	(claim_number, bundle, covered, recommended_payout, risk_score, processing_time_ms, overridden, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
ON CONFLICT(claim_number) DO UPDATE SET
	bundle = excluded.bundle,
	covered = excluded.covered,
	recommended_payout = excluded.recommended_payout,
	risk_score = excluded.risk_score,
	processing_time_ms = excluded.processing_time_ms,
	overridden = 0,
	updated_at = excluded.updated_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveSQLite(ctx context.Context, ex execer, rec model.DecisionRecord) error {
	cols, err := columnsOf(rec)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = ex.ExecContext(ctx, sqliteUpsertDecision,
		rec.ClaimNumber, string(cols.bundle), cols.covered, cols.payout, cols.riskScore,
		rec.ProcessingTimeMs, now, now,
	)
	return eris.Wrapf(err, "sqlite: save decision %s", rec.ClaimNumber)
}

func (s *SQLiteStore) SaveDecision(ctx context.Context, rec model.DecisionRecord) error {
	return saveSQLite(ctx, s.db, rec)
}

func (s *SQLiteStore) SaveDecisions(ctx context.Context, recs []model.DecisionRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin save decisions")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, rec := range recs {
		if err := saveSQLite(ctx, tx, rec); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit save decisions")
	}
	return len(recs), nil
}

const sqliteSelectDecision = `SELECT claim_number, bundle, processing_time_ms, overridden, created_at, updated_at FROM claim_decisions`

func (s *SQLiteStore) GetDecision(ctx context.Context, claimNumber string) (*model.DecisionRecord, error) {
	row := s.db.QueryRowContext(ctx, sqliteSelectDecision+` WHERE claim_number = ?`, claimNumber)
	rec, err := scanSQLiteDecision(row)
	if err != nil {
		return nil, err
	}
	if rec.Overridden {
		audit, err := s.latestOverride(ctx, claimNumber)
		if err != nil {
			return nil, err
		}
		rec.Override = audit
	}
	return rec, nil
}

func (s *SQLiteStore) ListDecisions(ctx context.Context, filter ListFilter) ([]model.DecisionRecord, error) {
	filter = filter.normalized()
	rows, err := s.db.QueryContext(ctx,
		sqliteSelectDecision+` ORDER BY created_at DESC, claim_number LIMIT ? OFFSET ?`,
		filter.Limit, filter.Offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list decisions")
	}
	defer rows.Close() //nolint:errcheck

	var recs []model.DecisionRecord
	for rows.Next() {
		rec, err := scanSQLiteDecision(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list decisions iterate")
}

func (s *SQLiteStore) CountDecisions(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM claim_decisions`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count decisions")
}

func (s *SQLiteStore) OverrideDecision(ctx context.Context, claimNumber string, o model.Override) (*model.DecisionRecord, error) {
	if err := o.Validate(); err != nil {
		return nil, eris.Wrap(err, "sqlite: invalid override")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin override")
	}
	defer tx.Rollback() //nolint:errcheck

	rec, err := scanSQLiteDecision(tx.QueryRowContext(ctx, sqliteSelectDecision+` WHERE claim_number = ?`, claimNumber))
	if err != nil {
		return nil, err
	}

	audit := applyOverride(rec, o, time.Now().UTC())
	cols, err := columnsOf(*rec)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE claim_decisions SET bundle = ?, covered = ?, recommended_payout = ?, overridden = 1, updated_at = ? WHERE claim_number = ?`,
		string(cols.bundle), cols.covered, cols.payout, rec.UpdatedAt, claimNumber,
	); err != nil {
		return nil, eris.Wrapf(err, "sqlite: update overridden decision %s", claimNumber)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO decision_overrides (id, claim_number, original_covered, original_payout, override_covered, override_payout, reason, adjuster, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		audit.ID, claimNumber, audit.OriginalCovered, audit.OriginalPayout,
		audit.OverrideCovered, audit.OverridePayout, audit.Reason, audit.Adjuster, audit.CreatedAt,
	); err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert override %s", claimNumber)
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit override")
	}
	return rec, nil
}

const sqliteSelectOverride = `SELECT id, claim_number, original_covered, original_payout, override_covered, override_payout, reason, adjuster, created_at FROM decision_overrides`

func (s *SQLiteStore) ListOverrides(ctx context.Context, claimNumber string) ([]model.OverrideAudit, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelectOverride+` WHERE claim_number = ? ORDER BY created_at, rowid`, claimNumber)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list overrides")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.OverrideAudit
	for rows.Next() {
		a, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list overrides iterate")
}

func (s *SQLiteStore) latestOverride(ctx context.Context, claimNumber string) (*model.OverrideAudit, error) {
	row := s.db.QueryRowContext(ctx, sqliteSelectOverride+` WHERE claim_number = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, claimNumber)
	a, err := scanOverride(row)
	if isNoRows(err) {
		return nil, nil
	}
	return a, err
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteDecision(row scannable) (*model.DecisionRecord, error) {
	var rec model.DecisionRecord
	var bundle string
	err := row.Scan(&rec.ClaimNumber, &bundle, &rec.ProcessingTimeMs, &rec.Overridden, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan decision")
	}
	if err := unmarshalBundle([]byte(bundle), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func scanOverride(row scannable) (*model.OverrideAudit, error) {
	var a model.OverrideAudit
	err := row.Scan(&a.ID, &a.ClaimNumber, &a.OriginalCovered, &a.OriginalPayout,
		&a.OverrideCovered, &a.OverridePayout, &a.Reason, &a.Adjuster, &a.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, err
		}
		return nil, eris.Wrap(err, "store: scan override")
	}
	return &a, nil
}
