package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenithcode/backend/internal/compute"
	"github.com/zenithcode/backend/internal/ledger"
	"github.com/zenithcode/backend/internal/models"
)

type stubCompute struct {
	createErr error
	cancelErr error
	job       *models.ComputeJob
}

func (s stubCompute) CreateJob(_ context.Context, userID uuid.UUID, jobType string, parameters json.RawMessage, cost decimal.Decimal) (*models.ComputeJob, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &models.ComputeJob{
		ID:     uuid.New(),
		UserID: userID,
		Type:   jobType,
		Status: models.JobStatusPending,
		Cost:   cost,
	}, nil
}

func (s stubCompute) CancelJob(context.Context, uuid.UUID, uuid.UUID) error {
	return s.cancelErr
}

func (s stubCompute) GetJob(_ context.Context, id uuid.UUID) (*models.ComputeJob, error) {
	if s.job == nil {
		return nil, compute.ErrNotFound
	}
	return s.job, nil
}

type stubJobLister struct {
	jobs []*models.ComputeJob
}

func (s stubJobLister) ListByUserID(context.Context, uuid.UUID) ([]*models.ComputeJob, error) {
	return s.jobs, nil
}

func TestComputeHandler_CreateJob(t *testing.T) {
	u := testUser()

	t.Run("created", func(t *testing.T) {
		h := &ComputeHandler{Compute: stubCompute{}, Logger: discardLogger()}
		body := `{"type":"TRAINING","parameters":{"epochs":3},"cost":"10"}`
		rec := httptest.NewRecorder()
		h.CreateJob(rec, authedRequest(http.MethodPost, "/api/v1/compute/jobs", body, u))

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var job models.ComputeJob
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
		assert.Equal(t, models.JobStatusPending, job.Status)
		assert.Equal(t, u.ID, job.UserID)
	})

	t.Run("insufficient balance", func(t *testing.T) {
		h := &ComputeHandler{Compute: stubCompute{createErr: ledger.ErrInsufficientBalance}, Logger: discardLogger()}
		body := `{"type":"TRAINING","cost":"10"}`
		rec := httptest.NewRecorder()
		h.CreateJob(rec, authedRequest(http.MethodPost, "/api/v1/compute/jobs", body, u))
		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	})

	t.Run("bad type", func(t *testing.T) {
		h := &ComputeHandler{Compute: stubCompute{createErr: compute.ErrInvalidJobType}, Logger: discardLogger()}
		body := `{"type":"MINING","cost":"10"}`
		rec := httptest.NewRecorder()
		h.CreateJob(rec, authedRequest(http.MethodPost, "/api/v1/compute/jobs", body, u))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestComputeHandler_GetJob(t *testing.T) {
	u := testUser()
	jobID := uuid.New()

	t.Run("owner", func(t *testing.T) {
		job := &models.ComputeJob{ID: jobID, UserID: u.ID, Status: models.JobStatusRunning}
		h := &ComputeHandler{Compute: stubCompute{job: job}, Logger: discardLogger()}
		rec := httptest.NewRecorder()
		h.GetJob(rec, authedRequest(http.MethodGet, "/api/v1/compute/jobs/"+jobID.String(), "", u))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("foreign job", func(t *testing.T) {
		job := &models.ComputeJob{ID: jobID, UserID: uuid.New(), Status: models.JobStatusRunning}
		h := &ComputeHandler{Compute: stubCompute{job: job}, Logger: discardLogger()}
		rec := httptest.NewRecorder()
		h.GetJob(rec, authedRequest(http.MethodGet, "/api/v1/compute/jobs/"+jobID.String(), "", u))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		h := &ComputeHandler{Compute: stubCompute{}, Logger: discardLogger()}
		rec := httptest.NewRecorder()
		h.GetJob(rec, authedRequest(http.MethodGet, "/api/v1/compute/jobs/"+uuid.New().String(), "", u))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		h := &ComputeHandler{Compute: stubCompute{}, Logger: discardLogger()}
		rec := httptest.NewRecorder()
		h.GetJob(rec, authedRequest(http.MethodGet, "/api/v1/compute/jobs/not-a-uuid", "", u))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestComputeHandler_CancelJob(t *testing.T) {
	u := testUser()
	jobID := uuid.New()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", compute.ErrNotFound, http.StatusNotFound},
		{"not owner", compute.ErrNotOwner, http.StatusForbidden},
		{"terminal", compute.ErrInvalidTransition, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := &ComputeHandler{Compute: stubCompute{cancelErr: tc.err}, Logger: discardLogger()}
			rec := httptest.NewRecorder()
			h.CancelJob(rec, authedRequest(http.MethodPost, "/api/v1/compute/jobs/"+jobID.String()+"/cancel", "", u))
			assert.Equal(t, tc.want, rec.Code)
		})
	}

	t.Run("cancelled", func(t *testing.T) {
		job := &models.ComputeJob{ID: jobID, UserID: u.ID, Status: models.JobStatusCancelled}
		h := &ComputeHandler{Compute: stubCompute{job: job}, Logger: discardLogger()}
		rec := httptest.NewRecorder()
		h.CancelJob(rec, authedRequest(http.MethodPost, "/api/v1/compute/jobs/"+jobID.String()+"/cancel", "", u))

		require.Equal(t, http.StatusOK, rec.Code)
		var got models.ComputeJob
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, models.JobStatusCancelled, got.Status)
	})
}

func TestComputeHandler_ListJobs(t *testing.T) {
	h := &ComputeHandler{Jobs: stubJobLister{}, Logger: discardLogger()}
	rec := httptest.NewRecorder()
	h.ListJobs(rec, authedRequest(http.MethodGet, "/api/v1/compute/jobs", "", testUser()))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}
