package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seojun-park/sheetwise/internal/common"
	"github.com/seojun-park/sheetwise/internal/entity"
)

// DocumentRepository persists structured documents, one row per job id.
// Insert returns ErrDuplicateJob when the job id is already present and a
// *TransientError for faults worth retrying.
type DocumentRepository interface {
	Insert(ctx context.Context, row *entity.DocumentRow) error
	GetByJobID(ctx context.Context, jobID uuid.UUID) (*entity.DocumentRow, error)
	Delete(ctx context.Context, jobID uuid.UUID) error
}

type postgresDocumentRepo struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewPostgresDocumentRepository creates the primary-storage repository.
func NewPostgresDocumentRepository(pool *pgxpool.Pool, log *slog.Logger) DocumentRepository {
	if log == nil {
		log = slog.Default()
	}
	return &postgresDocumentRepo{pool: pool, log: log}
}

func (r *postgresDocumentRepo) Insert(ctx context.Context, row *entity.DocumentRow) error {
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO structured_document (job_id, status, payload, question_count, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		row.JobID, string(row.Status), []byte(row.Payload), row.QuestionCount, row.CreatedAt,
	)
	if err != nil {
		err = classifyPostgres(err)
		if !errors.Is(err, ErrDuplicateJob) {
			r.log.Error("document insert failed", "job_id", row.JobID, "err", err)
		}
		return err
	}
	r.log.Info("document inserted", "job_id", row.JobID, "status", string(row.Status), "questions", row.QuestionCount)
	return nil
}

func (r *postgresDocumentRepo) GetByJobID(ctx context.Context, jobID uuid.UUID) (*entity.DocumentRow, error) {
	var row entity.DocumentRow
	var status string
	err := r.pool.QueryRow(ctx,
		`SELECT job_id, status, payload, question_count, created_at
		 FROM structured_document WHERE job_id = $1`,
		jobID,
	).Scan(&row.JobID, &status, &row.Payload, &row.QuestionCount, &row.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, classifyPostgres(err)
	}
	row.Status = statusFromString(status)
	return &row, nil
}

func (r *postgresDocumentRepo) Delete(ctx context.Context, jobID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM structured_document WHERE job_id = $1`, jobID)
	if err != nil {
		return classifyPostgres(err)
	}
	r.log.Info("document deleted for reprocessing", "job_id", jobID)
	return nil
}
