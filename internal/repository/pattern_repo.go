package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zenithcode/backend/internal/models"
)

type PatternRepo struct {
	pool *pgxpool.Pool
}

func NewPatternRepo(pool *pgxpool.Pool) *PatternRepo {
	return &PatternRepo{pool: pool}
}

const patternColumns = `id, hash, language, domain, complexity, usage_count, average_rating, rating_count, tags, created_at, updated_at`

func scanPattern(row pgx.Row) (*models.Pattern, error) {
	var p models.Pattern
	err := row.Scan(&p.ID, &p.Hash, &p.Language, &p.Domain, &p.Complexity, &p.UsageCount, &p.AverageRating, &p.RatingCount, &p.Tags, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PatternRepo) CreateTx(ctx context.Context, tx pgx.Tx, p *models.Pattern) error {
	return tx.QueryRow(ctx, `
		INSERT INTO patterns (id, hash, language, domain, complexity, usage_count, average_rating, rating_count, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, p.ID, p.Hash, p.Language, p.Domain, p.Complexity, p.UsageCount, p.AverageRating, p.RatingCount, p.Tags).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *PatternRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Pattern, error) {
	return scanPattern(r.pool.QueryRow(ctx, `SELECT `+patternColumns+` FROM patterns WHERE id = $1`, id))
}

// GetByHashForUpdate locks the pattern row by content hash. Returns
// pgx.ErrNoRows for a first-seen pattern. Call within a transaction.
func (r *PatternRepo) GetByHashForUpdate(ctx context.Context, tx pgx.Tx, hash string) (*models.Pattern, error) {
	return scanPattern(tx.QueryRow(ctx, `SELECT `+patternColumns+` FROM patterns WHERE hash = $1 FOR UPDATE`, hash))
}

// IncrementUsageTx bumps usage_count and returns the new count.
func (r *PatternRepo) IncrementUsageTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (int64, error) {
	var count int64
	err := tx.QueryRow(ctx, `
		UPDATE patterns SET usage_count = usage_count + 1, updated_at = now()
		WHERE id = $1
		RETURNING usage_count
	`, id).Scan(&count)
	return count, err
}

// ApplyRating folds one rating into the running mean in a single statement,
// so concurrent raters cannot lose updates.
func (r *PatternRepo) ApplyRating(ctx context.Context, id uuid.UUID, rating int) (float64, error) {
	var newAvg float64
	err := r.pool.QueryRow(ctx, `
		UPDATE patterns
		SET average_rating = (average_rating * rating_count + $2) / (rating_count + 1),
		    rating_count = rating_count + 1,
		    updated_at = now()
		WHERE id = $1
		RETURNING average_rating
	`, id, rating).Scan(&newAvg)
	return newAvg, err
}

func (r *PatternRepo) List(ctx context.Context, language, domain string, limit, offset int) ([]*models.Pattern, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+patternColumns+`
		FROM patterns
		WHERE ($1 = '' OR language = $1) AND ($2 = '' OR domain = $2)
		ORDER BY usage_count DESC, created_at DESC
		LIMIT $3 OFFSET $4
	`, language, domain, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}
