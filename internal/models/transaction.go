package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction kind enums exposed through the API.
const (
	TxKindEarned      = "EARNED"
	TxKindSpent       = "SPENT"
	TxKindTransferred = "TRANSFERRED"
)

// Transaction reason enums. A reason refines the kind for audit purposes:
// a job refund is an EARNED entry with reason job_refund, distinct from a
// pattern reward.
const (
	TxReasonPatternReward  = "pattern_reward"
	TxReasonJobReservation = "job_reservation"
	TxReasonJobRefund      = "job_refund"
	TxReasonTransfer       = "transfer"
)

// Transaction is one append-only ledger entry. Amount is signed: positive
// for credits, negative for debits. Entries are never updated or deleted.
type Transaction struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Kind         string          `json:"kind"`
	Reason       string          `json:"reason"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	// TransferID correlates the debit and credit halves of one transfer.
	TransferID *uuid.UUID `json:"transfer_id,omitempty"`
	// JobID links reservation and refund entries to a compute job.
	JobID     *uuid.UUID `json:"job_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
