package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Contribution records an accepted pattern submission and its pending reward.
// Claimed flips false -> true exactly once and never reverts.
type Contribution struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	PatternID   uuid.UUID       `json:"pattern_id"`
	PatternHash string          `json:"pattern_hash"`
	Language    string          `json:"language"`
	Domain      string          `json:"domain"`
	Complexity  int             `json:"complexity"`
	Reward      decimal.Decimal `json:"tokens_earned"`
	Claimed     bool            `json:"claimed"`
	CreatedAt   time.Time       `json:"created_at"`
}
