package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zenithcode/backend/internal/middleware"
	"github.com/zenithcode/backend/internal/models"
)

// AccountStore covers the account mutations the dashboard exposes.
type AccountStore interface {
	UpdateSpendLimits(ctx context.Context, id uuid.UUID, maxPerJob, maxPerDay *decimal.Decimal) error
	UpdatePreferences(ctx context.Context, id uuid.UUID, p models.Preferences) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// Handler serves the account endpoints backing the web dashboard.
type Handler struct {
	accounts AccountStore
	log      *slog.Logger
}

func NewHandler(accounts AccountStore, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{accounts: accounts, log: log}
}

// GetMe handles GET /api/v1/account/me.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":                  u.ID,
		"username":            u.Username,
		"email":               u.Email,
		"wallet_address":      u.WalletAddress,
		"zth_balance":         u.Balance,
		"total_earned":        u.TotalEarned,
		"total_contributions": u.TotalContributions,
		"max_cost_per_job":    u.MaxCostPerJob,
		"max_spend_per_day":   u.MaxSpendPerDay,
		"preferences":         u.Preferences,
		"created_at":          u.CreatedAt,
	})
}

type updateSettingsRequest struct {
	MaxCostPerJob  *decimal.Decimal    `json:"max_cost_per_job"`
	MaxSpendPerDay *decimal.Decimal    `json:"max_spend_per_day"`
	Preferences    *models.Preferences `json:"preferences"`
}

// UpdateSettings handles PATCH /api/v1/account/settings.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if (req.MaxCostPerJob != nil && !req.MaxCostPerJob.IsPositive()) ||
		(req.MaxSpendPerDay != nil && !req.MaxSpendPerDay.IsPositive()) {
		http.Error(w, `{"error":"limits must be positive"}`, http.StatusBadRequest)
		return
	}
	if req.Preferences != nil && (req.Preferences.Language == "" || req.Preferences.Theme == "") {
		http.Error(w, `{"error":"preferences need a language and a theme"}`, http.StatusBadRequest)
		return
	}
	if req.MaxCostPerJob != nil || req.MaxSpendPerDay != nil {
		if err := h.accounts.UpdateSpendLimits(r.Context(), u.ID, req.MaxCostPerJob, req.MaxSpendPerDay); err != nil {
			h.log.Error("update settings", "user_id", u.ID, "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			return
		}
	}
	if req.Preferences != nil {
		if err := h.accounts.UpdatePreferences(r.Context(), u.ID, *req.Preferences); err != nil {
			h.log.Error("update preferences", "user_id", u.ID, "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Deactivate handles DELETE /api/v1/account. Soft delete: the account stops
// authenticating but its transaction history stays intact.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	if err := h.accounts.Deactivate(r.Context(), u.ID); err != nil {
		h.log.Error("deactivate account", "user_id", u.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
