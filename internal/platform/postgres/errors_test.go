package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskledger/taskledger/internal/store"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	t.Run("nil error maps to nil", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, MapError(nil))
	})

	t.Run("sql.ErrNoRows maps to ErrNotFound", func(t *testing.T) {
		t.Parallel()
		err := MapError(sql.ErrNoRows)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("wrapped sql.ErrNoRows maps to ErrNotFound", func(t *testing.T) {
		t.Parallel()
		err := MapError(fmt.Errorf("query failed: %w", sql.ErrNoRows))
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("unique violation maps to ErrDuplicate", func(t *testing.T) {
		t.Parallel()
		pgErr := &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "task_registry_pkey"}
		err := MapError(pgErr)
		assert.ErrorIs(t, err, store.ErrDuplicate)
	})

	t.Run("foreign key violation maps to ErrInvalidEntity", func(t *testing.T) {
		t.Parallel()
		pgErr := &pgconn.PgError{Code: foreignKeyViolationCode, ConstraintName: "fk_task"}
		err := MapError(pgErr)
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
		assert.Contains(t, err.Error(), "fk_task")
	})

	t.Run("check violation maps to ErrInvalidEntity", func(t *testing.T) {
		t.Parallel()
		pgErr := &pgconn.PgError{Code: checkViolationCode, ConstraintName: "chk_state"}
		err := MapError(pgErr)
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
	})

	t.Run("not null violation maps to ErrInvalidEntity", func(t *testing.T) {
		t.Parallel()
		pgErr := &pgconn.PgError{Code: notNullViolationCode, ColumnName: "topology_name"}
		err := MapError(pgErr)
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
		assert.Contains(t, err.Error(), "topology_name")
	})

	t.Run("unrecognized error passes through unchanged", func(t *testing.T) {
		t.Parallel()
		original := errors.New("connection refused")
		assert.Equal(t, original, MapError(original))
	})
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: uniqueViolationCode}))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: uniqueViolationCode})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: foreignKeyViolationCode}))
	assert.False(t, IsUniqueViolation(errors.New("plain error")))
	assert.False(t, IsUniqueViolation(nil))
}

type fakeResult struct {
	rows int64
	err  error
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.rows, r.err }

func TestCheckRowsAffected(t *testing.T) {
	t.Parallel()

	t.Run("nil result is an error", func(t *testing.T) {
		t.Parallel()
		err := CheckRowsAffected(nil, store.ErrTaskNotFound)
		require.Error(t, err)
		assert.NotErrorIs(t, err, store.ErrTaskNotFound)
	})

	t.Run("zero rows maps to the not-found error", func(t *testing.T) {
		t.Parallel()
		err := CheckRowsAffected(fakeResult{rows: 0}, store.ErrTaskNotFound)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})

	t.Run("affected rows pass", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, CheckRowsAffected(fakeResult{rows: 1}, store.ErrTaskNotFound))
	})

	t.Run("rows affected failure propagates", func(t *testing.T) {
		t.Parallel()
		err := CheckRowsAffected(fakeResult{err: errors.New("driver gone")}, store.ErrTaskNotFound)
		require.Error(t, err)
		assert.NotErrorIs(t, err, store.ErrTaskNotFound)
	})
}
