package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/zenithcode/backend/internal/middleware"
	"github.com/zenithcode/backend/internal/models"
	"github.com/zenithcode/backend/internal/rewards"
)

// RewardsService is the subset of the reward pipeline used by handlers.
type RewardsService interface {
	SubmitContribution(ctx context.Context, userID uuid.UUID, code, language, domain string, tags []string) (*models.Contribution, error)
	RatePattern(ctx context.Context, patternID uuid.UUID, rating int) error
}

// PatternReader serves pattern lookups and listings.
type PatternReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Pattern, error)
	List(ctx context.Context, language, domain string, limit, offset int) ([]*models.Pattern, error)
}

// ContributionReader lists a user's contributions.
type ContributionReader interface {
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Contribution, error)
}

// PatternHandler serves /api/v1/patterns and /api/v1/contributions.
type PatternHandler struct {
	Rewards       RewardsService
	Patterns      PatternReader
	Contributions ContributionReader
	Logger        *slog.Logger
}

type contributeRequest struct {
	Code     string   `json:"code"`
	Language string   `json:"language"`
	Domain   string   `json:"domain"`
	Tags     []string `json:"tags"`
}

// Contribute handles POST /api/v1/patterns.
func (h *PatternHandler) Contribute(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req contributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Code == "" || req.Language == "" || req.Domain == "" {
		http.Error(w, `{"error":"code, language and domain are required"}`, http.StatusBadRequest)
		return
	}

	c, err := h.Rewards.SubmitContribution(r.Context(), u.ID, req.Code, req.Language, req.Domain, req.Tags)
	if err != nil {
		if errors.Is(err, rewards.ErrEmptyCode) {
			http.Error(w, `{"error":"code is required"}`, http.StatusBadRequest)
			return
		}
		h.Logger.Error("submit contribution", "user_id", u.ID, "error", err)
		http.Error(w, `{"error":"failed to submit contribution"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// List handles GET /api/v1/patterns.
func (h *PatternHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := parseIntDefault(q.Get("limit"), 50)
	offset := parseIntDefault(q.Get("offset"), 0)
	patterns, err := h.Patterns.List(r.Context(), q.Get("language"), q.Get("domain"), limit, offset)
	if err != nil {
		h.Logger.Error("list patterns", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if patterns == nil {
		patterns = []*models.Pattern{}
	}
	writeJSON(w, http.StatusOK, patterns)
}

// Get handles GET /api/v1/patterns/{id}.
func (h *PatternHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := extractID(r, "/api/v1/patterns/")
	if !ok {
		http.Error(w, `{"error":"invalid pattern id"}`, http.StatusBadRequest)
		return
	}
	p, err := h.Patterns.GetByID(r.Context(), id)
	if err != nil {
		http.Error(w, `{"error":"pattern not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type rateRequest struct {
	Rating int `json:"rating"`
}

// Rate handles POST /api/v1/patterns/{id}/rate.
func (h *PatternHandler) Rate(w http.ResponseWriter, r *http.Request) {
	id, ok := extractID(r, "/api/v1/patterns/")
	if !ok {
		http.Error(w, `{"error":"invalid pattern id"}`, http.StatusBadRequest)
		return
	}
	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if err := h.Rewards.RatePattern(r.Context(), id, req.Rating); err != nil {
		switch {
		case errors.Is(err, rewards.ErrInvalidRating):
			http.Error(w, `{"error":"rating must be between 1 and 5"}`, http.StatusBadRequest)
		case errors.Is(err, rewards.ErrNotFound):
			http.Error(w, `{"error":"pattern not found"}`, http.StatusNotFound)
		default:
			h.Logger.Error("rate pattern", "pattern_id", id, "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ListContributions handles GET /api/v1/contributions.
func (h *PatternHandler) ListContributions(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	list, err := h.Contributions.ListByUserID(r.Context(), u.ID)
	if err != nil {
		h.Logger.Error("list contributions", "user_id", u.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.Contribution{}
	}
	writeJSON(w, http.StatusOK, list)
}

// --- helpers shared by the handlers package ---

// extractID parses a UUID path segment directly after the given prefix.
// Trailing segments ("/rate", "/cancel") are ignored.
func extractID(r *http.Request, prefix string) (uuid.UUID, bool) {
	path := strings.TrimPrefix(r.URL.Path, prefix)
	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 0 || parts[0] == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
