// Package handlers implements the HTTP handlers mounted by the API router.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/flowline-ai/flowline/internal/flow"
	"github.com/flowline-ai/flowline/internal/worker"
	"github.com/flowline-ai/flowline/pkg/logging"
)

type jobGetter interface {
	GetJob(ctx context.Context, jobID string) (*worker.JobRecord, error)
}

// JobsHandler exposes conversation job status for polling clients.
type JobsHandler struct {
	jobs   jobGetter
	logger *logging.Logger
}

func NewJobsHandler(jobs jobGetter, logger *logging.Logger) *JobsHandler {
	if jobs == nil {
		panic("handlers: job store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &JobsHandler{jobs: jobs, logger: logger}
}

type jobStatusResponse struct {
	JobID     string      `json:"job_id"`
	Status    string      `json:"status"`
	Reply     *flow.Reply `json:"reply,omitempty"`
	Error     string      `json:"error,omitempty"`
	UpdatedAt string      `json:"updated_at"`
}

// GetStatus handles GET /conversations/jobs/{jobID}.
func (h *JobsHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSpace(chi.URLParam(r, "jobID"))
	if jobID == "" {
		http.Error(w, "missing job id", http.StatusBadRequest)
		return
	}

	record, err := h.jobs.GetJob(r.Context(), jobID)
	if errors.Is(err, worker.ErrJobNotFound) {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("job lookup failed", "error", err, "job_id", jobID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, jobStatusResponse{
		JobID:     record.JobID,
		Status:    string(record.Status),
		Reply:     record.Reply,
		Error:     record.ErrorMessage,
		UpdatedAt: record.UpdatedAt,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
