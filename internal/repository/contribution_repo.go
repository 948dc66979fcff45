package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zenithcode/backend/internal/models"
)

type ContributionRepo struct {
	pool *pgxpool.Pool
}

func NewContributionRepo(pool *pgxpool.Pool) *ContributionRepo {
	return &ContributionRepo{pool: pool}
}

const contributionColumns = `id, user_id, pattern_id, pattern_hash, language, domain, complexity, reward, claimed, created_at`

func scanContribution(row pgx.Row) (*models.Contribution, error) {
	var c models.Contribution
	err := row.Scan(&c.ID, &c.UserID, &c.PatternID, &c.PatternHash, &c.Language, &c.Domain, &c.Complexity, &c.Reward, &c.Claimed, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ContributionRepo) CreateTx(ctx context.Context, tx pgx.Tx, c *models.Contribution) error {
	return tx.QueryRow(ctx, `
		INSERT INTO contributions (id, user_id, pattern_id, pattern_hash, language, domain, complexity, reward, claimed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE)
		RETURNING created_at
	`, c.ID, c.UserID, c.PatternID, c.PatternHash, c.Language, c.Domain, c.Complexity, c.Reward).Scan(&c.CreatedAt)
}

func (r *ContributionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Contribution, error) {
	return scanContribution(r.pool.QueryRow(ctx, `SELECT `+contributionColumns+` FROM contributions WHERE id = $1`, id))
}

// ClaimTx flips claimed false -> true. The conditional update is the
// compare-and-set that makes a claim at-most-once: a second caller matches
// zero rows and gets false.
func (r *ContributionRepo) ClaimTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE contributions SET claimed = TRUE WHERE id = $1 AND claimed = FALSE
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ContributionRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Contribution, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+contributionColumns+` FROM contributions WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Contribution
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}
