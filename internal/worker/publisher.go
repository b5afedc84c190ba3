package worker

import (
	"context"
	"fmt"

	"github.com/flowline-ai/flowline/pkg/logging"
)

// Publisher enqueues conversation jobs for asynchronous processing.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("worker: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		queue:  queue,
		logger: logger,
	}
}

// EnqueueInbound publishes an inbound message job.
func (p *Publisher) EnqueueInbound(ctx context.Context, jobID string, job InboundJob, opts ...PublishOption) error {
	return p.enqueue(ctx, queuePayload{
		ID:          jobID,
		Kind:        jobTypeInbound,
		Inbound:     &job,
		TrackStatus: true,
	}, opts)
}

// EnqueuePayment publishes a payment confirmation job.
func (p *Publisher) EnqueuePayment(ctx context.Context, jobID string, job PaymentJob, opts ...PublishOption) error {
	return p.enqueue(ctx, queuePayload{
		ID:          jobID,
		Kind:        jobTypePayment,
		Payment:     &job,
		TrackStatus: true,
	}, opts)
}

func (p *Publisher) enqueue(ctx context.Context, payload queuePayload, opts []PublishOption) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for _, opt := range opts {
		opt(&payload)
	}

	payload, body, err := encodePayload(payload)
	if err != nil {
		return err
	}

	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("worker: failed to enqueue job: %w", err)
	}

	p.logger.Debug("conversation job enqueued", "job_id", payload.ID, "kind", payload.Kind)
	return nil
}
