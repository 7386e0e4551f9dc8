package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/seojun-park/sheetwise/constants"
	"github.com/seojun-park/sheetwise/internal/common"
	"github.com/seojun-park/sheetwise/internal/entity"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS structured_document (
	job_id         TEXT PRIMARY KEY,
	status         TEXT NOT NULL,
	payload        BLOB,
	question_count INTEGER NOT NULL DEFAULT 0,
	created_at     TIMESTAMP NOT NULL
);`

type sqliteDocumentRepo struct {
	db  *sql.DB
	log *slog.Logger
}

// NewSQLiteDocumentRepository opens (creating if needed) a SQLite-backed
// document store. Used for local runs and CI; same contract as Postgres.
func NewSQLiteDocumentRepository(path string, log *slog.Logger) (DocumentRepository, func() error, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	log.Info("sqlite document store ready", "path", path)
	return &sqliteDocumentRepo{db: db, log: log}, db.Close, nil
}

func (r *sqliteDocumentRepo) Insert(ctx context.Context, row *entity.DocumentRow) error {
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO structured_document (job_id, status, payload, question_count, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		row.JobID.String(), string(row.Status), []byte(row.Payload), row.QuestionCount, row.CreatedAt,
	)
	if err != nil {
		err = classifySQLite(err)
		if !errors.Is(err, ErrDuplicateJob) {
			r.log.Error("document insert failed", "job_id", row.JobID, "err", err)
		}
		return err
	}
	r.log.Info("document inserted", "job_id", row.JobID, "status", string(row.Status), "questions", row.QuestionCount)
	return nil
}

func (r *sqliteDocumentRepo) GetByJobID(ctx context.Context, jobID uuid.UUID) (*entity.DocumentRow, error) {
	var (
		row    entity.DocumentRow
		id     string
		status string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT job_id, status, payload, question_count, created_at
		 FROM structured_document WHERE job_id = ?`,
		jobID.String(),
	).Scan(&id, &status, &row.Payload, &row.QuestionCount, &row.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, classifySQLite(err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("corrupt job_id in store: %w", err)
	}
	row.JobID = parsed
	row.Status = statusFromString(status)
	return &row, nil
}

func (r *sqliteDocumentRepo) Delete(ctx context.Context, jobID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM structured_document WHERE job_id = ?`, jobID.String())
	if err != nil {
		return classifySQLite(err)
	}
	r.log.Info("document deleted for reprocessing", "job_id", jobID)
	return nil
}

func statusFromString(s string) constants.GenerationStatus {
	switch constants.GenerationStatus(s) {
	case constants.StatusPending, constants.StatusCompleted, constants.StatusFailed:
		return constants.GenerationStatus(s)
	default:
		return constants.StatusFailed
	}
}
