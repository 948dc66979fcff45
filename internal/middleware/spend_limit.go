package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zenithcode/backend/internal/models"
)

// ReservationSummer totals job reservation debits since a point in time.
type ReservationSummer interface {
	SumReservationsSince(ctx context.Context, userID uuid.UUID, since time.Time) (decimal.Decimal, error)
}

// parsedJobRequest is the slice of the body the middleware needs to peek at.
type parsedJobRequest struct {
	Type string          `json:"type"`
	Cost decimal.Decimal `json:"cost"`
}

// SpendLimit enforces the account's optional per-job and per-day spend
// limits on compute job creation. Reads the body to extract "cost", then
// replaces r.Body so downstream handlers can re-read it.
func SpendLimit(reservations ReservationSummer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := UserFromCtx(r.Context())
			if u == nil {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			bodyBytes, err := io.ReadAll(r.Body)
			r.Body.Close()
			if err != nil {
				http.Error(w, `{"error":"failed to read body"}`, http.StatusBadRequest)
				return
			}
			// Restore body for the handler.
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			var peek parsedJobRequest
			if err := json.Unmarshal(bodyBytes, &peek); err != nil {
				http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
				return
			}
			if !peek.Cost.IsPositive() {
				http.Error(w, `{"error":"cost must be > 0"}`, http.StatusBadRequest)
				return
			}
			if peek.Type != "" && !models.ValidJobType(peek.Type) {
				http.Error(w, fmt.Sprintf(`{"error":"job type %q is not allowed"}`, peek.Type), http.StatusBadRequest)
				return
			}

			if u.MaxCostPerJob != nil && peek.Cost.GreaterThan(*u.MaxCostPerJob) {
				http.Error(w, fmt.Sprintf(`{"error":"cost %s exceeds per-job limit %s"}`, peek.Cost, u.MaxCostPerJob), http.StatusForbidden)
				return
			}

			if u.MaxSpendPerDay != nil {
				startOfDay := time.Now().UTC().Truncate(24 * time.Hour)
				spent, err := reservations.SumReservationsSince(r.Context(), u.ID, startOfDay)
				if err != nil {
					http.Error(w, `{"error":"failed to check daily spend"}`, http.StatusInternalServerError)
					return
				}
				if spent.Add(peek.Cost).GreaterThan(*u.MaxSpendPerDay) {
					http.Error(w, fmt.Sprintf(`{"error":"daily spend %s + cost %s exceeds daily limit %s"}`, spent, peek.Cost, u.MaxSpendPerDay), http.StatusForbidden)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
