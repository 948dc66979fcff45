package compute

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/zenithcode/backend/internal/models"
)

type ExecuteJobArgs struct {
	JobID uuid.UUID `json:"job_id"`
}

func (ExecuteJobArgs) Kind() string { return "execute_compute_job" }

// JobRunner is the contract the worker needs to drive a job through its
// lifecycle.
type JobRunner interface {
	StartJob(ctx context.Context, jobID uuid.UUID) (*models.ComputeJob, error)
	GetJob(ctx context.Context, jobID uuid.UUID) (*models.ComputeJob, error)
	CompleteJob(ctx context.Context, jobID uuid.UUID, result json.RawMessage) error
	FailJob(ctx context.Context, jobID uuid.UUID, reason string) error
}

// ExecuteJobWorker picks up queued compute jobs, starts them, posts the
// parameters to the analysis service, and records the terminal state.
type ExecuteJobWorker struct {
	river.WorkerDefaults[ExecuteJobArgs]
	jobs        JobRunner
	analysisURL string
	httpClient  *http.Client
}

func NewExecuteJobWorker(jobs JobRunner, analysisURL string) *ExecuteJobWorker {
	return &ExecuteJobWorker{
		jobs:        jobs,
		analysisURL: analysisURL,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
	}
}

// executePayload is the JSON body sent to the analysis service.
type executePayload struct {
	JobID      uuid.UUID       `json:"job_id"`
	Type       string          `json:"type"`
	Parameters json.RawMessage `json:"parameters"`
}

func (w *ExecuteJobWorker) Work(ctx context.Context, riverJob *river.Job[ExecuteJobArgs]) error {
	jobID := riverJob.Args.JobID

	job, err := w.jobs.StartJob(ctx, jobID)
	if err != nil {
		if !errors.Is(err, ErrInvalidTransition) {
			return fmt.Errorf("start job %s: %w", jobID, err)
		}
		// The job is not PENDING. Either it was cancelled before pickup
		// (refund already ran, nothing to do) or a previous attempt moved
		// it to RUNNING and then hit a transient failure, in which case
		// this retry resumes where that attempt left off.
		job, err = w.jobs.GetJob(ctx, jobID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return fmt.Errorf("load job %s: %w", jobID, err)
		}
		if job.Status != models.JobStatusRunning {
			return nil
		}
	}

	body, err := json.Marshal(executePayload{JobID: job.ID, Type: job.Type, Parameters: job.Parameters})
	if err != nil {
		return w.failJob(ctx, jobID, fmt.Sprintf("marshal payload: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.analysisURL, bytes.NewReader(body))
	if err != nil {
		return w.failJob(ctx, jobID, fmt.Sprintf("create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return w.failJob(ctx, jobID, fmt.Sprintf("analysis service unreachable: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return w.failJob(ctx, jobID, fmt.Sprintf("analysis service returned status %d", resp.StatusCode))
	}

	var result json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return w.failJob(ctx, jobID, "analysis service returned invalid JSON")
	}

	if err := w.jobs.CompleteJob(ctx, jobID, result); err != nil {
		// Cancelled while running: the cancel path already refunded.
		if errors.Is(err, ErrInvalidTransition) {
			return nil
		}
		return fmt.Errorf("complete job %s: %w", jobID, err)
	}
	return nil
}

func (w *ExecuteJobWorker) failJob(ctx context.Context, jobID uuid.UUID, reason string) error {
	if err := w.jobs.FailJob(ctx, jobID, reason); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return nil
		}
		return fmt.Errorf("job failed (%s) and could not be marked failed: %w", reason, err)
	}
	return nil
}
