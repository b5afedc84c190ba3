package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowline-ai/flowline/internal/events"
	"github.com/flowline-ai/flowline/internal/flow"
	"github.com/flowline-ai/flowline/pkg/logging"
)

// Conversation runs one turn of the dialogue for a participant.
type Conversation interface {
	HandleMessage(ctx context.Context, participant flow.Participant, raw string) (flow.Reply, error)
}

// ReplySender delivers a reply to the participant over the originating channel.
type ReplySender interface {
	SendReply(ctx context.Context, to string, reply flow.Reply) error
}

type processedEventStore interface {
	AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

type outboxWriter interface {
	Insert(ctx context.Context, businessID string, eventType string, payload any) (uuid.UUID, error)
}

// Worker consumes conversation jobs from the queue and invokes the processor.
type Worker struct {
	conversation Conversation
	queue        queueClient
	jobs         JobUpdater
	sender       ReplySender
	processed    processedEventStore
	outbox       outboxWriter
	logger       *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	processed        processedEventStore
	outbox           outboxWriter
}

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5

	fallbackReplyText = "Sorry - I'm having trouble responding right now. Please send that again in a moment."
)

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the SQS long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithProcessedEventsStore provides an idempotency store so duplicate queue
// deliveries and webhook retries process at most once.
func WithProcessedEventsStore(store processedEventStore) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.processed = store
	}
}

// WithOutbox wires an event outbox; the worker records reply_sent events
// for downstream consumers.
func WithOutbox(outbox outboxWriter) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.outbox = outbox
	}
}

// NewWorker constructs a queue consumer around the provided conversation.
func NewWorker(conversation Conversation, queue queueClient, jobs JobUpdater, sender ReplySender, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if conversation == nil {
		panic("worker: conversation cannot be nil")
	}
	if queue == nil {
		panic("worker: queue cannot be nil")
	}
	if jobs == nil {
		panic("worker: job store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		conversation: conversation,
		queue:        queue,
		jobs:         jobs,
		sender:       sender,
		processed:    cfg.processed,
		outbox:       cfg.outbox,
		logger:       logger,
		cfg:          cfg,
	}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("flow worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("flow worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive conversation jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		w.logger.Error("failed to decode conversation job", "error", err)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	w.logger.Info("worker processing job", "job_id", payload.ID, "kind", payload.Kind, "msg_id", msg.ID)

	switch payload.Kind {
	case jobTypeInbound:
		w.handleInbound(ctx, payload)
	case jobTypePayment:
		w.handlePayment(ctx, payload)
	default:
		w.logger.Error("unknown job kind", "job_id", payload.ID, "kind", payload.Kind)
		w.markFailed(ctx, payload, fmt.Sprintf("worker: unknown job type %q", payload.Kind))
	}

	w.deleteMessage(context.Background(), msg.ReceiptHandle)
}

func (w *Worker) handleInbound(ctx context.Context, payload queuePayload) {
	job := payload.Inbound
	if job == nil {
		w.markFailed(ctx, payload, "worker: inbound job missing payload")
		return
	}

	if job.ProviderMessageID != "" && !w.claimEvent(ctx, "whatsapp", job.ProviderMessageID) {
		w.logger.Info("skipping duplicate inbound message",
			"job_id", payload.ID,
			"provider_message_id", job.ProviderMessageID,
		)
		w.markFailed(ctx, payload, "skipped: duplicate inbound message")
		return
	}

	participant := flow.Participant{
		ID:         job.ParticipantID,
		Name:       job.ParticipantName,
		BusinessID: job.BusinessID,
		Language:   job.Language,
	}

	reply, err := w.conversation.HandleMessage(ctx, participant, job.Input())
	if err != nil {
		w.logger.Error("conversation turn failed", "error", err, "job_id", payload.ID, "participant_id", job.ParticipantID)
		w.markFailed(ctx, payload, err.Error())
		w.sendReply(ctx, job.BusinessID, job.ParticipantID, flow.Reply{Text: fallbackReplyText})
		return
	}

	w.markCompleted(ctx, payload, &reply, job.ParticipantID)
	w.sendReply(ctx, job.BusinessID, job.ParticipantID, reply)
}

func (w *Worker) handlePayment(ctx context.Context, payload queuePayload) {
	job := payload.Payment
	if job == nil {
		w.markFailed(ctx, payload, "worker: payment job missing payload")
		return
	}

	if job.EventID != "" && !w.claimEvent(ctx, job.Provider, job.EventID) {
		w.logger.Info("skipping duplicate payment event", "job_id", payload.ID, "event_id", job.EventID)
		w.markFailed(ctx, payload, "skipped: duplicate payment event")
		return
	}

	participant := flow.Participant{
		ID:         job.ParticipantID,
		BusinessID: job.BusinessID,
	}

	reply, err := w.conversation.HandleMessage(ctx, participant, flow.PaymentCompletedPrefix+job.QuoteID)
	if err != nil {
		w.logger.Error("payment confirmation turn failed", "error", err, "job_id", payload.ID, "quote_id", job.QuoteID)
		w.markFailed(ctx, payload, err.Error())
		return
	}

	w.markCompleted(ctx, payload, &reply, job.ParticipantID)
	w.sendReply(ctx, job.BusinessID, job.ParticipantID, reply)
}

// claimEvent returns true when this worker is the first to see the event.
// Idempotency failures degrade to processing the job rather than dropping it.
func (w *Worker) claimEvent(ctx context.Context, provider, eventID string) bool {
	if w.processed == nil {
		return true
	}
	ok, err := w.processed.MarkProcessed(ctx, provider, eventID)
	if err != nil {
		w.logger.Warn("idempotency check failed", "error", err, "provider", provider, "event_id", eventID)
		return true
	}
	return ok
}

func (w *Worker) sendReply(ctx context.Context, businessID, participantID string, reply flow.Reply) {
	if w.sender == nil || reply.Text == "" {
		return
	}
	if err := w.sender.SendReply(ctx, participantID, reply); err != nil {
		w.logger.Error("failed to send reply", "error", err, "participant_id", participantID)
		return
	}
	if w.outbox != nil {
		evt := events.ReplySentV1{
			EventID:       uuid.NewString(),
			BusinessID:    businessID,
			ParticipantID: participantID,
			Channel:       "whatsapp",
			Body:          reply.Text,
			ButtonCount:   len(reply.Buttons),
			SentAt:        time.Now().UTC(),
		}
		if _, err := w.outbox.Insert(ctx, businessID, events.TypeReplySent, evt); err != nil {
			w.logger.Warn("failed to record reply event", "error", err, "participant_id", participantID)
		}
	}
}

func (w *Worker) markCompleted(ctx context.Context, payload queuePayload, reply *flow.Reply, participantID string) {
	if !payload.TrackStatus {
		return
	}
	if err := w.jobs.MarkCompleted(ctx, payload.ID, reply, participantID); err != nil {
		w.logger.Error("failed to update job status", "error", err, "job_id", payload.ID)
	}
}

func (w *Worker) markFailed(ctx context.Context, payload queuePayload, msg string) {
	if !payload.TrackStatus {
		return
	}
	if err := w.jobs.MarkFailed(ctx, payload.ID, msg); err != nil {
		w.logger.Error("failed to update job status", "error", err, "job_id", payload.ID)
	}
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}

	deleteCtx, cancel := context.WithTimeout(ctx, deleteTimeoutSeconds*time.Second)
	defer cancel()

	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete conversation job", "error", err)
	}
}
