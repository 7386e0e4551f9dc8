package repository

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	sqlite "modernc.org/sqlite"
)

// ErrDuplicateJob signals a uniqueness-constraint violation on job_id:
// the row already exists, which callers treat as success-equivalent.
var ErrDuplicateJob = errors.New("document row already exists for job")

// TransientError marks faults worth another attempt: lock contention,
// timeouts, connectivity.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient storage fault: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// classifyPostgres maps a pgx error onto the repository failure taxonomy.
func classifyPostgres(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransientError{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransientError{Err: err}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", ErrDuplicateJob, pgErr.ConstraintName)
		case "55P03", "40001", "40P01": // lock_not_available, serialization_failure, deadlock_detected
			return &TransientError{Err: err}
		}
		if len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08" { // connection_exception class
			return &TransientError{Err: err}
		}
		return err
	}
	if pgconn.Timeout(err) {
		return &TransientError{Err: err}
	}
	return err
}

// SQLite result codes, see https://sqlite.org/rescode.html.
const (
	sqliteBusy             = 5
	sqliteLocked           = 6
	sqliteConstraintPK     = 1555
	sqliteConstraintUnique = 2067
)

// classifySQLite maps a modernc.org/sqlite error onto the same taxonomy.
func classifySQLite(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransientError{Err: err}
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqliteConstraintPK, sqliteConstraintUnique:
			return fmt.Errorf("%w: %v", ErrDuplicateJob, err)
		case sqliteBusy, sqliteLocked:
			return &TransientError{Err: err}
		}
	}
	return err
}
