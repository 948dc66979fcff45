package ledger

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/zenithcode/backend/internal/models"
)

// ErrInsufficientBalance is returned when a debit would drive a balance
// below zero. No funds move.
var ErrInsufficientBalance = errors.New("insufficient balance")

// ErrInvalidAmount is returned for zero or negative amounts.
var ErrInvalidAmount = errors.New("amount must be positive")

// ErrSelfTransfer is returned when a transfer names the same account twice.
var ErrSelfTransfer = errors.New("cannot transfer to the same account")

// ErrAccountNotFound is returned when the referenced account does not exist.
var ErrAccountNotFound = errors.New("account not found")

// AccountStore is the minimal user repository interface for balance
// mutation. All writes happen under the row lock taken by GetByIDForUpdate.
type AccountStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error)
	AddBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
	DeductBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
	IncrementEarned(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) error
}

// TransactionLog is the append-only audit log interface.
type TransactionLog interface {
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error
}

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service is the single chokepoint through which every balance mutation
// passes. Each credit/debit locks its account row, so operations on one
// account are totally ordered and the log order matches the apply order.
type Service struct {
	db       TxBeginner
	accounts AccountStore
	log      TransactionLog
}

func NewService(db TxBeginner, accounts AccountStore, log TransactionLog) *Service {
	return &Service{db: db, accounts: accounts, log: log}
}

// CreditTx increases the account balance inside the caller's transaction.
// Kind EARNED also bumps total_earned; TRANSFERRED does not.
func (s *Service) CreditTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, kind, reason, description string, transferID, jobID *uuid.UUID) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if _, err := s.accounts.GetByIDForUpdate(ctx, tx, userID); err != nil {
		return nil, mapNoRows(err)
	}
	newBalance, err := s.accounts.AddBalance(ctx, tx, userID, amount)
	if err != nil {
		return nil, err
	}
	if kind == models.TxKindEarned {
		if err := s.accounts.IncrementEarned(ctx, tx, userID, amount); err != nil {
			return nil, err
		}
	}
	rec := &models.Transaction{
		ID:           uuid.New(),
		UserID:       userID,
		Kind:         kind,
		Reason:       reason,
		Description:  description,
		Amount:       amount,
		BalanceAfter: newBalance,
		TransferID:   transferID,
		JobID:        jobID,
	}
	if err := s.log.CreateTx(ctx, tx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// DebitTx decreases the account balance inside the caller's transaction.
// Fails with ErrInsufficientBalance before any mutation when funds are short.
func (s *Service) DebitTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, kind, reason, description string, transferID, jobID *uuid.UUID) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	acc, err := s.accounts.GetByIDForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, mapNoRows(err)
	}
	if acc.Balance.LessThan(amount) {
		return nil, ErrInsufficientBalance
	}
	newBalance, err := s.accounts.DeductBalance(ctx, tx, userID, amount)
	if err != nil {
		return nil, err
	}
	rec := &models.Transaction{
		ID:           uuid.New(),
		UserID:       userID,
		Kind:         kind,
		Reason:       reason,
		Description:  description,
		Amount:       amount.Neg(),
		BalanceAfter: newBalance,
		TransferID:   transferID,
		JobID:        jobID,
	}
	if err := s.log.CreateTx(ctx, tx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Credit runs a standalone EARNED credit in its own transaction.
func (s *Service) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reason, description string) (*models.Transaction, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)
	rec, err := s.CreditTx(ctx, tx, userID, amount, models.TxKindEarned, reason, description, nil, nil)
	if err != nil {
		return nil, err
	}
	return rec, tx.Commit(ctx)
}

// Debit runs a standalone SPENT debit in its own transaction.
func (s *Service) Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reason, description string) (*models.Transaction, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)
	rec, err := s.DebitTx(ctx, tx, userID, amount, models.TxKindSpent, reason, description, nil, nil)
	if err != nil {
		return nil, err
	}
	return rec, tx.Commit(ctx)
}

// Transfer moves amount between two accounts as one atomic unit. Both rows
// are locked in UUID-string order so opposing transfers cannot deadlock.
// The two records share a transfer id for audit correlation.
func (s *Service) Transfer(ctx context.Context, fromID, toID uuid.UUID, amount decimal.Decimal) (*models.Transaction, *models.Transaction, error) {
	if fromID == toID {
		return nil, nil, ErrSelfTransfer
	}
	if !amount.IsPositive() {
		return nil, nil, ErrInvalidAmount
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	ids := []uuid.UUID{fromID, toID}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	for _, id := range ids {
		if _, err := s.accounts.GetByIDForUpdate(ctx, tx, id); err != nil {
			return nil, nil, mapNoRows(err)
		}
	}

	transferID := uuid.New()
	debitRec, err := s.DebitTx(ctx, tx, fromID, amount, models.TxKindTransferred, models.TxReasonTransfer, "transfer to "+toID.String(), &transferID, nil)
	if err != nil {
		return nil, nil, err
	}
	creditRec, err := s.CreditTx(ctx, tx, toID, amount, models.TxKindTransferred, models.TxReasonTransfer, "transfer from "+fromID.String(), &transferID, nil)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return debitRec, creditRec, nil
}

// BalanceOf is a point-in-time balance read.
func (s *Service) BalanceOf(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	u, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return decimal.Zero, mapNoRows(err)
	}
	return u.Balance, nil
}

func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAccountNotFound
	}
	return err
}
