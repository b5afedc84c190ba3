package worker

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/flowline-ai/flowline/pkg/logging"
)

// Ingress is the front door for inbound messages: it records a pending job so
// the reply can be polled, then enqueues the message for the worker.
type Ingress struct {
	jobs      JobRecorder
	publisher *Publisher
	logger    *logging.Logger
}

// NewIngress builds an ingress over the job store and queue publisher.
func NewIngress(jobs JobRecorder, publisher *Publisher, logger *logging.Logger) *Ingress {
	if jobs == nil {
		panic("worker: job recorder cannot be nil")
	}
	if publisher == nil {
		panic("worker: publisher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Ingress{jobs: jobs, publisher: publisher, logger: logger}
}

// Accept persists a pending job record and enqueues the inbound message.
// The returned job ID can be polled for the eventual reply.
func (i *Ingress) Accept(ctx context.Context, job InboundJob) (string, error) {
	jobID := uuid.NewString()

	rec := &JobRecord{
		JobID:         jobID,
		RequestType:   jobTypeInbound,
		ParticipantID: job.ParticipantID,
		Inbound:       &job,
	}
	if err := i.jobs.PutPending(ctx, rec); err != nil {
		return "", fmt.Errorf("worker: record pending job: %w", err)
	}

	if err := i.publisher.EnqueueInbound(ctx, jobID, job); err != nil {
		i.logger.Error("failed to enqueue inbound job", "job_id", jobID, "participant_id", job.ParticipantID, "error", err)
		return "", err
	}

	i.logger.Debug("inbound job accepted", "job_id", jobID, "participant_id", job.ParticipantID)
	return jobID, nil
}
