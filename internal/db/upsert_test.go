package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var decisionsUpsert = UpsertConfig{
	Table:        "claim_decisions",
	Columns:      []string{"claim_number", "bundle", "processing_time_ms"},
	ConflictKeys: []string{"claim_number"},
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, decisionsUpsert, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_InvalidConfig(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "claim_decisions",
		ConflictKeys: []string{"claim_number"},
	}, [][]any{{"CLM-1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")

	_, err = BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:   "claim_decisions",
		Columns: []string{"claim_number"},
	}, [][]any{{"CLM-1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_stage_claim_decisions"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_claim_decisions"}, decisionsUpsert.Columns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "claim_decisions"`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows := [][]any{{"CLM-1", "{}", int64(5)}, {"CLM-2", "{}", int64(7)}}
	n, err := BulkUpsert(context.Background(), mock, decisionsUpsert, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_claim_decisions"}, decisionsUpsert.Columns).WillReturnError(errors.New("copy failed"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, decisionsUpsert, [][]any{{"CLM-1", "{}", int64(1)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy into staging")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMergeSQL(t *testing.T) {
	assert.Equal(t,
		`INSERT INTO "claim_decisions" ("claim_number", "bundle", "processing_time_ms") SELECT "claim_number", "bundle", "processing_time_ms" FROM "_stage_claim_decisions" ON CONFLICT ("claim_number") DO UPDATE SET "bundle" = EXCLUDED."bundle", "processing_time_ms" = EXCLUDED."processing_time_ms"`,
		decisionsUpsert.mergeSQL())

	keysOnly := UpsertConfig{Table: "claims.seen", Columns: []string{"id"}, ConflictKeys: []string{"id"}}
	assert.Equal(t,
		`INSERT INTO "claims"."seen" ("id") SELECT "id" FROM "_stage_claims_seen" ON CONFLICT ("id") DO NOTHING`,
		keysOnly.mergeSQL())
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"claim_decisions", `"claim_decisions"`},
		{"claims.decisions", `"claims"."decisions"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}
