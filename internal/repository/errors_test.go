package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestClassifyPostgres(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		duplicate bool
		transient bool
	}{
		{"nil", nil, false, false},
		{"unique violation", &pgconn.PgError{Code: "23505", ConstraintName: "structured_document_pkey"}, true, false},
		{"lock not available", &pgconn.PgError{Code: "55P03"}, false, true},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, false, true},
		{"deadlock detected", &pgconn.PgError{Code: "40P01"}, false, true},
		{"connection exception class", &pgconn.PgError{Code: "08006"}, false, true},
		{"deadline exceeded", context.DeadlineExceeded, false, true},
		{"wrapped deadline", fmt.Errorf("exec: %w", context.DeadlineExceeded), false, true},
		{"check violation is permanent", &pgconn.PgError{Code: "23514"}, false, false},
		{"plain error is permanent", errors.New("syntax error"), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyPostgres(tt.err)
			if tt.err == nil {
				assert.NoError(t, got)
				return
			}
			assert.Equal(t, tt.duplicate, errors.Is(got, ErrDuplicateJob))
			assert.Equal(t, tt.transient, IsTransient(got))
		})
	}
}

func TestClassifySQLite_DeadlineIsTransient(t *testing.T) {
	got := classifySQLite(fmt.Errorf("exec: %w", context.DeadlineExceeded))
	assert.True(t, IsTransient(got))
}

func TestClassifySQLite_PlainErrorIsPermanent(t *testing.T) {
	err := errors.New("no such table")
	got := classifySQLite(err)
	assert.False(t, IsTransient(got))
	assert.False(t, errors.Is(got, ErrDuplicateJob))
}

func TestIsTransient_WrappedTransient(t *testing.T) {
	err := fmt.Errorf("insert: %w", &TransientError{Err: errors.New("busy")})
	assert.True(t, IsTransient(err))
}
