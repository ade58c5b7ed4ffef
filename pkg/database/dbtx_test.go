package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInTx_CommitsOnSuccess(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE tools").WithArgs(int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err = InTx(context.Background(), mock, func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(), "UPDATE tools SET is_featured = true WHERE id = $1", int64(1))
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_RollsBackOnError(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = InTx(context.Background(), mock, func(tx pgx.Tx) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_BeginFailure(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errors.New("pool closed"))

	called := false
	err = InTx(context.Background(), mock, func(tx pgx.Tx) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin transaction")
	assert.False(t, called)
}

func TestPostgresConfig_DSN(t *testing.T) {
	cfg := &PostgresConfig{
		Host: "db", Port: 5432, User: "toolhub", Password: "secret",
		DBName: "scoring", SSLMode: "disable",
	}
	assert.Equal(t, "postgres://toolhub:secret@db:5432/scoring?sslmode=disable", cfg.DSN())
}

func TestRetryBackoff_StaysWithinJitter(t *testing.T) {
	for attempt, base := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		for i := 0; i < 20; i++ {
			got := retryBackoff(attempt)
			assert.GreaterOrEqual(t, got, time.Duration(float64(base)*0.75))
			assert.LessOrEqual(t, got, time.Duration(float64(base)*1.25))
		}
	}
}

func TestTraceQuery_EndsWithoutSlowLogger(t *testing.T) {
	SetSlowQueryLogging(0, nil)
	ctx, end := TraceQuery(context.Background(), "GetTool", "SELECT 1")
	assert.NotNil(t, ctx)
	assert.NotPanics(t, func() { end(errors.New("failed")) })
}
