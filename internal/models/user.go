package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Preferences is the per-user settings blob, stored as a JSONB column.
type Preferences struct {
	Language      string `json:"language"`
	Theme         string `json:"theme"`
	Notifications bool   `json:"notifications"`
}

// DefaultPreferences returns the preferences new accounts start with.
func DefaultPreferences() Preferences {
	return Preferences{Language: "en", Theme: "dark", Notifications: true}
}

type User struct {
	ID                 uuid.UUID        `json:"id"`
	Username           string           `json:"username"`
	Email              string           `json:"email"`
	PasswordHash       string           `json:"-"`
	WalletAddress      *string          `json:"wallet_address,omitempty"`
	Balance            decimal.Decimal  `json:"zth_balance"`
	TotalEarned        decimal.Decimal  `json:"total_earned"`
	TotalContributions int              `json:"total_contributions"`
	MaxCostPerJob      *decimal.Decimal `json:"max_cost_per_job,omitempty"`
	MaxSpendPerDay     *decimal.Decimal `json:"max_spend_per_day,omitempty"`
	Preferences        Preferences      `json:"preferences"`
	IsActive           bool             `json:"is_active"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}
