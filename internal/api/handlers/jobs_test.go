package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flowline-ai/flowline/internal/flow"
	"github.com/flowline-ai/flowline/internal/worker"
	"github.com/flowline-ai/flowline/pkg/logging"
)

type stubJobGetter struct {
	record *worker.JobRecord
	err    error
}

func (s *stubJobGetter) GetJob(ctx context.Context, jobID string) (*worker.JobRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.record, nil
}

func jobsRouter(h *JobsHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/conversations/jobs/{jobID}", h.GetStatus)
	return r
}

func TestJobsHandlerGetStatus(t *testing.T) {
	updated := time.Now().UTC().Format(time.RFC3339)
	record := &worker.JobRecord{
		JobID:  "job-1",
		Status: worker.JobStatusCompleted,
		Reply: &flow.Reply{
			Text:    "You're booked!",
			Buttons: []flow.Button{{Label: "View details", Payload: "view_booking"}},
		},
		UpdatedAt: updated,
	}
	h := NewJobsHandler(&stubJobGetter{record: record}, logging.New("error"))

	req := httptest.NewRequest(http.MethodGet, "/conversations/jobs/job-1", nil)
	rec := httptest.NewRecorder()
	jobsRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp jobStatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.JobID != "job-1" || resp.Status != string(worker.JobStatusCompleted) {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Reply == nil || resp.Reply.Text != "You're booked!" {
		t.Fatalf("expected reply in response, got %+v", resp.Reply)
	}
	if resp.UpdatedAt != updated {
		t.Fatalf("expected updated_at %q, got %q", updated, resp.UpdatedAt)
	}
}

func TestJobsHandlerNotFound(t *testing.T) {
	h := NewJobsHandler(&stubJobGetter{err: worker.ErrJobNotFound}, logging.New("error"))

	req := httptest.NewRequest(http.MethodGet, "/conversations/jobs/missing", nil)
	rec := httptest.NewRecorder()
	jobsRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestJobsHandlerFailedJobCarriesError(t *testing.T) {
	record := &worker.JobRecord{
		JobID:        "job-2",
		Status:       worker.JobStatusFailed,
		ErrorMessage: "skipped: duplicate inbound message",
	}
	h := NewJobsHandler(&stubJobGetter{record: record}, logging.New("error"))

	req := httptest.NewRequest(http.MethodGet, "/conversations/jobs/job-2", nil)
	rec := httptest.NewRecorder()
	jobsRouter(h).ServeHTTP(rec, req)

	var resp jobStatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error != "skipped: duplicate inbound message" {
		t.Fatalf("expected error message, got %q", resp.Error)
	}
	if resp.Reply != nil {
		t.Fatalf("expected no reply on failed job, got %+v", resp.Reply)
	}
}
