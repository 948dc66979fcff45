package compute

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/zenithcode/backend/internal/models"
)

// ErrInvalidTransition is returned when a transition is requested from a
// state that does not permit it. The job is left unchanged.
var ErrInvalidTransition = errors.New("invalid job state transition")

// ErrNotFound is returned for unknown job ids.
var ErrNotFound = errors.New("job not found")

// ErrNotOwner is returned when a job operation names a non-owning user.
var ErrNotOwner = errors.New("job belongs to another user")

// ErrInvalidJobType is returned for unknown job types.
var ErrInvalidJobType = errors.New("invalid job type")

// JobStore is the compute job repository interface. The *Tx transition
// methods are compare-and-set: they report false from a wrong source state.
type JobStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, j *models.ComputeJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ComputeJob, error)
	StartTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error)
	CompleteTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, result json.RawMessage) (bool, error)
	FailTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, reason string) (bool, error)
	CancelTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error)
}

// Ledger is the balance-mutation chokepoint: the reservation debit at
// creation and the refund credit on non-success terminal states.
type Ledger interface {
	DebitTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, kind, reason, description string, transferID, jobID *uuid.UUID) (*models.Transaction, error)
	CreditTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, kind, reason, description string, transferID, jobID *uuid.UUID) (*models.Transaction, error)
}

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// InsertExecuteJobTxFunc enqueues an ExecuteJob river job within the given
// transaction. Provided by main using river.Client.InsertTx.
type InsertExecuteJobTxFunc func(ctx context.Context, tx pgx.Tx, args ExecuteJobArgs) error

// Service owns the compute job lifecycle. Cost is reserved at creation and
// either consumed (COMPLETED) or refunded (FAILED, CANCELLED).
type Service struct {
	db               TxBeginner
	jobs             JobStore
	ledger           Ledger
	insertExecuteJob InsertExecuteJobTxFunc
}

// NewService creates a compute service. insertExecuteJob is typically a
// closure over river.Client.InsertTx; pass nil to skip enqueueing (tests).
func NewService(db TxBeginner, jobs JobStore, ledger Ledger, insertExecuteJob InsertExecuteJobTxFunc) *Service {
	return &Service{db: db, jobs: jobs, ledger: ledger, insertExecuteJob: insertExecuteJob}
}

// CreateJob reserves cost from the user's balance and creates the job in
// PENDING, as one transaction. An insufficient balance aborts the whole
// operation: no job row, no debit.
func (s *Service) CreateJob(ctx context.Context, userID uuid.UUID, jobType string, parameters json.RawMessage, cost decimal.Decimal) (*models.ComputeJob, error) {
	if !models.ValidJobType(jobType) {
		return nil, ErrInvalidJobType
	}
	job := &models.ComputeJob{
		ID:         uuid.New(),
		UserID:     userID,
		Type:       jobType,
		Status:     models.JobStatusPending,
		Cost:       cost,
		Parameters: parameters,
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	desc := fmt.Sprintf("reservation for %s job %s", jobType, job.ID)
	if _, err := s.ledger.DebitTx(ctx, tx, userID, cost, models.TxKindSpent, models.TxReasonJobReservation, desc, nil, &job.ID); err != nil {
		return nil, err
	}
	if err := s.jobs.CreateTx(ctx, tx, job); err != nil {
		return nil, err
	}
	if s.insertExecuteJob != nil {
		if err := s.insertExecuteJob(ctx, tx, ExecuteJobArgs{JobID: job.ID}); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return job, nil
}

// StartJob moves PENDING -> RUNNING.
func (s *Service) StartJob(ctx context.Context, jobID uuid.UUID) (*models.ComputeJob, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ok, err := s.jobs.StartTx(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.transitionError(ctx, jobID)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.jobs.GetByID(ctx, jobID)
}

// CompleteJob moves RUNNING -> COMPLETED and attaches the result. The
// reserved cost is consumed: no refund.
func (s *Service) CompleteJob(ctx context.Context, jobID uuid.UUID, result json.RawMessage) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ok, err := s.jobs.CompleteTx(ctx, tx, jobID, result)
	if err != nil {
		return err
	}
	if !ok {
		return s.transitionError(ctx, jobID)
	}
	return tx.Commit(ctx)
}

// FailJob moves RUNNING -> FAILED and refunds the reserved cost. The status
// compare-and-set and the refund credit commit atomically, so the refund is
// issued at most once.
func (s *Service) FailJob(ctx context.Context, jobID uuid.UUID, reason string) error {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return mapNoRows(err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ok, err := s.jobs.FailTx(ctx, tx, jobID, reason)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidTransition
	}
	if err := s.refundTx(ctx, tx, job); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CancelJob moves PENDING or RUNNING -> CANCELLED and refunds. Pass
// uuid.Nil as userID to skip the ownership check (internal callers).
func (s *Service) CancelJob(ctx context.Context, jobID, userID uuid.UUID) error {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return mapNoRows(err)
	}
	if userID != uuid.Nil && job.UserID != userID {
		return ErrNotOwner
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ok, err := s.jobs.CancelTx(ctx, tx, jobID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidTransition
	}
	if err := s.refundTx(ctx, tx, job); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetJob returns the job, mapping unknown ids to ErrNotFound.
func (s *Service) GetJob(ctx context.Context, jobID uuid.UUID) (*models.ComputeJob, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return job, nil
}

func (s *Service) refundTx(ctx context.Context, tx pgx.Tx, job *models.ComputeJob) error {
	desc := fmt.Sprintf("refund for %s job %s", job.Type, job.ID)
	_, err := s.ledger.CreditTx(ctx, tx, job.UserID, job.Cost, models.TxKindEarned, models.TxReasonJobRefund, desc, nil, &job.ID)
	return err
}

// transitionError distinguishes an unknown job from a wrong-state one after
// a compare-and-set matched zero rows.
func (s *Service) transitionError(ctx context.Context, jobID uuid.UUID) error {
	if _, err := s.jobs.GetByID(ctx, jobID); err != nil {
		return mapNoRows(err)
	}
	return ErrInvalidTransition
}

func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
