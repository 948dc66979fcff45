package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Compute job type enums.
const (
	JobTypeTraining  = "TRAINING"
	JobTypeInference = "INFERENCE"
	JobTypeTesting   = "TESTING"
	JobTypeAnalysis  = "ANALYSIS"
)

// Compute job status enums. COMPLETED, FAILED and CANCELLED are terminal.
const (
	JobStatusPending   = "PENDING"
	JobStatusRunning   = "RUNNING"
	JobStatusCompleted = "COMPLETED"
	JobStatusFailed    = "FAILED"
	JobStatusCancelled = "CANCELLED"
)

// ValidJobType reports whether t is a known job type.
func ValidJobType(t string) bool {
	switch t {
	case JobTypeTraining, JobTypeInference, JobTypeTesting, JobTypeAnalysis:
		return true
	}
	return false
}

// ComputeJob holds a reserved cost from creation until a terminal state
// consumes (COMPLETED) or refunds (FAILED, CANCELLED) it.
type ComputeJob struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	Cost        decimal.Decimal `json:"cost"`
	Parameters  json.RawMessage `json:"parameters"`
	Result      json.RawMessage `json:"result,omitempty"`
	FailReason  *string         `json:"fail_reason,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}
