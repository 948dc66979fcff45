package rewards

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/zenithcode/backend/internal/models"
)

// ErrNotOwner is returned when a user claims a contribution they do not own.
var ErrNotOwner = errors.New("contribution belongs to another user")

// ErrAlreadyClaimed is returned on the second and later claims. The first
// caller's credit stands.
var ErrAlreadyClaimed = errors.New("contribution already claimed")

// ErrNotFound is returned when the contribution or pattern id is unknown.
var ErrNotFound = errors.New("not found")

// ErrInvalidRating is returned for ratings outside 1-5.
var ErrInvalidRating = errors.New("rating must be between 1 and 5")

// ErrEmptyCode is returned when a submission has no code.
var ErrEmptyCode = errors.New("code is required")

// PatternStore is the pattern repository interface for the reward pipeline.
type PatternStore interface {
	GetByHashForUpdate(ctx context.Context, tx pgx.Tx, hash string) (*models.Pattern, error)
	CreateTx(ctx context.Context, tx pgx.Tx, p *models.Pattern) error
	IncrementUsageTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (int64, error)
	ApplyRating(ctx context.Context, id uuid.UUID, rating int) (float64, error)
}

// ContributionStore is the contribution repository interface.
type ContributionStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, c *models.Contribution) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contribution, error)
	ClaimTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error)
}

// ContributorStore bumps the per-user contribution counter.
type ContributorStore interface {
	IncrementContributions(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// Ledger is the balance-mutation chokepoint. The reward pipeline never
// touches a balance except through it.
type Ledger interface {
	CreditTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, kind, reason, description string, transferID, jobID *uuid.UUID) (*models.Transaction, error)
}

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service turns accepted pattern submissions into pending rewards and
// credits them exactly once on claim.
type Service struct {
	db            TxBeginner
	patterns      PatternStore
	contributions ContributionStore
	users         ContributorStore
	ledger        Ledger
	policy        Policy
}

func NewService(db TxBeginner, patterns PatternStore, contributions ContributionStore, users ContributorStore, ledger Ledger, policy Policy) *Service {
	if policy == nil {
		policy = DefaultPolicy
	}
	return &Service{db: db, patterns: patterns, contributions: contributions, users: users, ledger: ledger, policy: policy}
}

// SubmitContribution hashes the code, upserts the pattern by hash, computes
// the reward from complexity and prior usage, and records an unclaimed
// contribution. The reward is not credited until Claim.
func (s *Service) SubmitContribution(ctx context.Context, userID uuid.UUID, code, language, domain string, tags []string) (*models.Contribution, error) {
	if code == "" {
		return nil, ErrEmptyCode
	}
	sum := sha256.Sum256([]byte(code))
	hash := hex.EncodeToString(sum[:])
	complexity := ScoreComplexity(code)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var patternID uuid.UUID
	var priorUsage int64
	pattern, err := s.patterns.GetByHashForUpdate(ctx, tx, hash)
	switch {
	case err == nil:
		patternID = pattern.ID
		priorUsage = pattern.UsageCount
		complexity = pattern.Complexity
		if _, err := s.patterns.IncrementUsageTx(ctx, tx, pattern.ID); err != nil {
			return nil, err
		}
	case errors.Is(err, pgx.ErrNoRows):
		if tags == nil {
			tags = []string{}
		}
		p := &models.Pattern{
			ID:         uuid.New(),
			Hash:       hash,
			Language:   language,
			Domain:     domain,
			Complexity: complexity,
			UsageCount: 1,
			Tags:       tags,
		}
		if err := s.patterns.CreateTx(ctx, tx, p); err != nil {
			return nil, err
		}
		patternID = p.ID
	default:
		return nil, err
	}

	c := &models.Contribution{
		ID:          uuid.New(),
		UserID:      userID,
		PatternID:   patternID,
		PatternHash: hash,
		Language:    language,
		Domain:      domain,
		Complexity:  complexity,
		Reward:      s.policy(complexity, priorUsage),
	}
	if err := s.contributions.CreateTx(ctx, tx, c); err != nil {
		return nil, err
	}
	if err := s.users.IncrementContributions(ctx, tx, userID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Claim credits the contribution's reward to its owner at most once. The
// claimed flag flips by compare-and-set before the balance credit, and both
// commit atomically; a losing racer gets ErrAlreadyClaimed and no funds move.
func (s *Service) Claim(ctx context.Context, contributionID, userID uuid.UUID) error {
	c, err := s.contributions.GetByID(ctx, contributionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if c.UserID != userID {
		return ErrNotOwner
	}
	if c.Claimed {
		return ErrAlreadyClaimed
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	won, err := s.contributions.ClaimTx(ctx, tx, contributionID)
	if err != nil {
		return err
	}
	if !won {
		return ErrAlreadyClaimed
	}
	desc := fmt.Sprintf("reward for pattern %s", shortHash(c.PatternHash))
	if _, err := s.ledger.CreditTx(ctx, tx, userID, c.Reward, models.TxKindEarned, models.TxReasonPatternReward, desc, nil, nil); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// RatePattern folds one rating into the pattern's running average. Ratings
// never touch balances and are not deduplicated per rater.
func (s *Service) RatePattern(ctx context.Context, patternID uuid.UUID, rating int) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}
	if _, err := s.patterns.ApplyRating(ctx, patternID, rating); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
