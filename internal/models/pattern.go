package models

import (
	"time"

	"github.com/google/uuid"
)

// Pattern is a deduplicated code pattern keyed by content hash. UsageCount
// counts every contribution that matched the hash; AverageRating is a
// running mean over all submitted ratings.
type Pattern struct {
	ID            uuid.UUID `json:"id"`
	Hash          string    `json:"hash"`
	Language      string    `json:"language"`
	Domain        string    `json:"domain"`
	Complexity    int       `json:"complexity"`
	UsageCount    int64     `json:"usage_count"`
	AverageRating float64   `json:"average_rating"`
	RatingCount   int64     `json:"rating_count"`
	Tags          []string  `json:"tags"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
