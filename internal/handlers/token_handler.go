package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zenithcode/backend/internal/ledger"
	"github.com/zenithcode/backend/internal/middleware"
	"github.com/zenithcode/backend/internal/models"
	"github.com/zenithcode/backend/internal/rewards"
)

// LedgerService is the subset of the ledger used by the token handler.
type LedgerService interface {
	Transfer(ctx context.Context, fromID, toID uuid.UUID, amount decimal.Decimal) (*models.Transaction, *models.Transaction, error)
	BalanceOf(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
}

// Claimer converts a pending reward into a balance credit.
type Claimer interface {
	Claim(ctx context.Context, contributionID, userID uuid.UUID) error
}

// TransactionReader lists a user's ledger history.
type TransactionReader interface {
	ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Transaction, error)
}

// TokenHandler serves /api/v1/tokens endpoints.
type TokenHandler struct {
	Ledger       LedgerService
	Rewards      Claimer
	Transactions TransactionReader
	Logger       *slog.Logger
}

// Balance handles GET /api/v1/tokens/balance.
func (h *TokenHandler) Balance(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	balance, err := h.Ledger.BalanceOf(r.Context(), u.ID)
	if err != nil {
		h.Logger.Error("balance lookup", "user_id", u.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balance": balance.String()})
}

// ListTransactions handles GET /api/v1/tokens/transactions.
func (h *TokenHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	q := r.URL.Query()
	limit := parseIntDefault(q.Get("limit"), 100)
	offset := parseIntDefault(q.Get("offset"), 0)
	list, err := h.Transactions.ListByUserID(r.Context(), u.ID, limit, offset)
	if err != nil {
		h.Logger.Error("list transactions", "user_id", u.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.Transaction{}
	}
	writeJSON(w, http.StatusOK, list)
}

type transferRequest struct {
	ToUserID string          `json:"to_user_id"`
	Amount   decimal.Decimal `json:"amount"`
}

type transferResponse struct {
	TransferID string              `json:"transfer_id"`
	Debit      *models.Transaction `json:"debit"`
	Credit     *models.Transaction `json:"credit"`
}

// Transfer handles POST /api/v1/tokens/transfer.
func (h *TokenHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	toID, err := uuid.Parse(req.ToUserID)
	if err != nil {
		http.Error(w, `{"error":"invalid to_user_id"}`, http.StatusBadRequest)
		return
	}

	debit, credit, err := h.Ledger.Transfer(r.Context(), u.ID, toID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientBalance):
			http.Error(w, `{"error":"insufficient balance"}`, http.StatusPaymentRequired)
		case errors.Is(err, ledger.ErrSelfTransfer), errors.Is(err, ledger.ErrInvalidAmount):
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		case errors.Is(err, ledger.ErrAccountNotFound):
			http.Error(w, `{"error":"account not found"}`, http.StatusNotFound)
		default:
			h.Logger.Error("transfer", "from", u.ID, "to", toID, "error", err)
			http.Error(w, `{"error":"transfer failed"}`, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, transferResponse{
		TransferID: debit.TransferID.String(),
		Debit:      debit,
		Credit:     credit,
	})
}

type claimRequest struct {
	ContributionID string `json:"contribution_id"`
}

// Claim handles POST /api/v1/tokens/claim.
func (h *TokenHandler) Claim(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	contributionID, err := uuid.Parse(req.ContributionID)
	if err != nil {
		http.Error(w, `{"error":"invalid contribution_id"}`, http.StatusBadRequest)
		return
	}

	if err := h.Rewards.Claim(r.Context(), contributionID, u.ID); err != nil {
		switch {
		case errors.Is(err, rewards.ErrNotFound):
			http.Error(w, `{"error":"contribution not found"}`, http.StatusNotFound)
		case errors.Is(err, rewards.ErrNotOwner):
			http.Error(w, `{"error":"contribution belongs to another user"}`, http.StatusForbidden)
		case errors.Is(err, rewards.ErrAlreadyClaimed):
			http.Error(w, `{"error":"contribution already claimed"}`, http.StatusConflict)
		default:
			h.Logger.Error("claim", "contribution_id", contributionID, "error", err)
			http.Error(w, `{"error":"claim failed"}`, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
