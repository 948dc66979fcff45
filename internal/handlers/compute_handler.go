package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zenithcode/backend/internal/compute"
	"github.com/zenithcode/backend/internal/ledger"
	"github.com/zenithcode/backend/internal/middleware"
	"github.com/zenithcode/backend/internal/models"
)

// ComputeService is the subset of the compute job manager used by handlers.
type ComputeService interface {
	CreateJob(ctx context.Context, userID uuid.UUID, jobType string, parameters json.RawMessage, cost decimal.Decimal) (*models.ComputeJob, error)
	CancelJob(ctx context.Context, jobID, userID uuid.UUID) error
	GetJob(ctx context.Context, jobID uuid.UUID) (*models.ComputeJob, error)
}

// JobLister lists a user's compute jobs.
type JobLister interface {
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.ComputeJob, error)
}

// ComputeHandler serves /api/v1/compute/jobs endpoints.
type ComputeHandler struct {
	Compute ComputeService
	Jobs    JobLister
	Logger  *slog.Logger
}

type createJobRequest struct {
	Type       string          `json:"type"`
	Parameters json.RawMessage `json:"parameters"`
	Cost       decimal.Decimal `json:"cost"`
}

// CreateJob handles POST /api/v1/compute/jobs.
// Auth -> SpendLimit (via middleware) -> reserve cost -> PENDING job -> 201.
func (h *ComputeHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	job, err := h.Compute.CreateJob(r.Context(), u.ID, req.Type, req.Parameters, req.Cost)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientBalance):
			http.Error(w, `{"error":"insufficient balance"}`, http.StatusPaymentRequired)
		case errors.Is(err, compute.ErrInvalidJobType), errors.Is(err, ledger.ErrInvalidAmount):
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		default:
			h.Logger.Error("create job", "user_id", u.ID, "error", err)
			http.Error(w, `{"error":"failed to create job"}`, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

// ListJobs handles GET /api/v1/compute/jobs.
func (h *ComputeHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	jobs, err := h.Jobs.ListByUserID(r.Context(), u.ID)
	if err != nil {
		h.Logger.Error("list jobs", "user_id", u.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if jobs == nil {
		jobs = []*models.ComputeJob{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

// GetJob handles GET /api/v1/compute/jobs/{id}.
func (h *ComputeHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, ok := extractID(r, "/api/v1/compute/jobs/")
	if !ok {
		http.Error(w, `{"error":"invalid job id"}`, http.StatusBadRequest)
		return
	}
	job, err := h.Compute.GetJob(r.Context(), id)
	if err != nil {
		http.Error(w, `{"error":"job not found"}`, http.StatusNotFound)
		return
	}
	if job.UserID != u.ID {
		http.Error(w, `{"error":"job belongs to another user"}`, http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// CancelJob handles POST /api/v1/compute/jobs/{id}/cancel.
func (h *ComputeHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, ok := extractID(r, "/api/v1/compute/jobs/")
	if !ok {
		http.Error(w, `{"error":"invalid job id"}`, http.StatusBadRequest)
		return
	}

	if err := h.Compute.CancelJob(r.Context(), id, u.ID); err != nil {
		switch {
		case errors.Is(err, compute.ErrNotFound):
			http.Error(w, `{"error":"job not found"}`, http.StatusNotFound)
		case errors.Is(err, compute.ErrNotOwner):
			http.Error(w, `{"error":"job belongs to another user"}`, http.StatusForbidden)
		case errors.Is(err, compute.ErrInvalidTransition):
			http.Error(w, `{"error":"job is already in a terminal state"}`, http.StatusConflict)
		default:
			h.Logger.Error("cancel job", "job_id", id, "error", err)
			http.Error(w, `{"error":"cancel failed"}`, http.StatusInternalServerError)
		}
		return
	}

	job, err := h.Compute.GetJob(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}
	writeJSON(w, http.StatusOK, job)
}
