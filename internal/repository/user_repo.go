package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/zenithcode/backend/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `id, username, email, password_hash, wallet_address, balance, total_earned, total_contributions, max_cost_per_job, max_spend_per_day, preferences, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.WalletAddress, &u.Balance, &u.TotalEarned, &u.TotalContributions, &u.MaxCostPerJob, &u.MaxSpendPerDay, &u.Preferences, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO users (id, username, email, password_hash, wallet_address, preferences, balance, total_earned, total_contributions, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, 0, 0, 0, TRUE)
		RETURNING created_at, updated_at
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.WalletAddress, u.Preferences).Scan(&u.CreatedAt, &u.UpdatedAt)
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// GetByIDForUpdate locks the user row for update. Call within a transaction.
func (r *UserRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error) {
	return scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
}

// AddBalance adds amount to the user's balance and returns the new balance.
func (r *UserRepo) AddBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	var newBalance decimal.Decimal
	err := tx.QueryRow(ctx, `
		UPDATE users SET balance = balance + $1, updated_at = now()
		WHERE id = $2
		RETURNING balance
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}

// DeductBalance atomically deducts amount if balance >= amount. The caller
// checks the balance under the row lock first; the WHERE condition is the
// backstop that keeps balances non-negative.
func (r *UserRepo) DeductBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	var newBalance decimal.Decimal
	err := tx.QueryRow(ctx, `
		UPDATE users SET balance = balance - $1, updated_at = now()
		WHERE id = $2 AND balance >= $1
		RETURNING balance
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}

// IncrementEarned bumps the lifetime total_earned counter.
func (r *UserRepo) IncrementEarned(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) error {
	_, err := tx.Exec(ctx, `
		UPDATE users SET total_earned = total_earned + $1, updated_at = now() WHERE id = $2
	`, amount, id)
	return err
}

// IncrementContributions bumps the lifetime contribution counter.
func (r *UserRepo) IncrementContributions(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE users SET total_contributions = total_contributions + 1, updated_at = now() WHERE id = $1
	`, id)
	return err
}

// Deactivate soft-deletes the user. Accounts referenced by transactions are
// never removed.
func (r *UserRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET is_active = FALSE, updated_at = now() WHERE id = $1`, id)
	return err
}

// UpdatePreferences replaces the stored preferences blob.
func (r *UserRepo) UpdatePreferences(ctx context.Context, id uuid.UUID, p models.Preferences) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET preferences = $2, updated_at = now() WHERE id = $1
	`, id, p)
	return err
}

// UpdateSpendLimits sets the optional per-job and per-day spend limits.
func (r *UserRepo) UpdateSpendLimits(ctx context.Context, id uuid.UUID, maxPerJob, maxPerDay *decimal.Decimal) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET max_cost_per_job = $2, max_spend_per_day = $3, updated_at = now() WHERE id = $1
	`, id, maxPerJob, maxPerDay)
	return err
}
