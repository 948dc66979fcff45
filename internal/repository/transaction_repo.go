package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/zenithcode/backend/internal/models"
)

type TransactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// CreateTx appends a ledger entry inside the given transaction. Entries are
// append-only: there is no Update or Delete.
func (r *TransactionRepo) CreateTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error {
	return tx.QueryRow(ctx, `
		INSERT INTO transactions (id, user_id, kind, reason, description, amount, balance_after, transfer_id, job_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, t.ID, t.UserID, t.Kind, t.Reason, t.Description, t.Amount, t.BalanceAfter, t.TransferID, t.JobID).Scan(&t.CreatedAt)
}

func (r *TransactionRepo) ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, kind, reason, description, amount, balance_after, transfer_id, job_id, created_at
		FROM transactions WHERE user_id = $1 ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Kind, &t.Reason, &t.Description, &t.Amount, &t.BalanceAfter, &t.TransferID, &t.JobID, &t.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}

// SumReservationsSince totals job reservation debits for the user since the
// given time, as a positive amount. Used by the spend-limit middleware.
func (r *TransactionRepo) SumReservationsSince(ctx context.Context, userID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(-SUM(amount), 0)
		FROM transactions
		WHERE user_id = $1 AND reason = $2 AND created_at >= $3
	`, userID, models.TxReasonJobReservation, since).Scan(&total)
	return total, err
}
