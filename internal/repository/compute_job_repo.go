package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zenithcode/backend/internal/models"
)

type ComputeJobRepo struct {
	pool *pgxpool.Pool
}

func NewComputeJobRepo(pool *pgxpool.Pool) *ComputeJobRepo {
	return &ComputeJobRepo{pool: pool}
}

const jobColumns = `id, user_id, type, status, cost, parameters, result, fail_reason, created_at, updated_at, completed_at`

func scanJob(row pgx.Row) (*models.ComputeJob, error) {
	var j models.ComputeJob
	err := row.Scan(&j.ID, &j.UserID, &j.Type, &j.Status, &j.Cost, &j.Parameters, &j.Result, &j.FailReason, &j.CreatedAt, &j.UpdatedAt, &j.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *ComputeJobRepo) CreateTx(ctx context.Context, tx pgx.Tx, j *models.ComputeJob) error {
	return tx.QueryRow(ctx, `
		INSERT INTO compute_jobs (id, user_id, type, status, cost, parameters)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, j.ID, j.UserID, j.Type, j.Status, j.Cost, j.Parameters).Scan(&j.CreatedAt, &j.UpdatedAt)
}

func (r *ComputeJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ComputeJob, error) {
	return scanJob(r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM compute_jobs WHERE id = $1`, id))
}

// StartTx moves PENDING -> RUNNING. Returns false when the job was not in
// PENDING (already started, cancelled, or unknown id).
func (r *ComputeJobRepo) StartTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE compute_jobs SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
	`, id, models.JobStatusRunning, models.JobStatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CompleteTx moves RUNNING -> COMPLETED, attaching the result payload.
func (r *ComputeJobRepo) CompleteTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, result json.RawMessage) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE compute_jobs SET status = $2, result = $3, completed_at = now(), updated_at = now()
		WHERE id = $1 AND status = $4
	`, id, models.JobStatusCompleted, result, models.JobStatusRunning)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// FailTx moves RUNNING -> FAILED.
func (r *ComputeJobRepo) FailTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, reason string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE compute_jobs SET status = $2, fail_reason = $3, completed_at = now(), updated_at = now()
		WHERE id = $1 AND status = $4
	`, id, models.JobStatusFailed, reason, models.JobStatusRunning)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CancelTx moves PENDING or RUNNING -> CANCELLED.
func (r *ComputeJobRepo) CancelTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE compute_jobs SET status = $2, completed_at = now(), updated_at = now()
		WHERE id = $1 AND status = ANY($3)
	`, id, models.JobStatusCancelled, []string{models.JobStatusPending, models.JobStatusRunning})
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ComputeJobRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.ComputeJob, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM compute_jobs WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.ComputeJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, j)
	}
	return list, rows.Err()
}
