// Package worker consumes inbound conversation jobs from a queue, runs them
// through the flow processor, and delivers replies back over the channel the
// message arrived on.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

type jobType string

const (
	jobTypeInbound jobType = "inbound_message"
	jobTypePayment jobType = "payment_completed"
)

// InboundJob is one user message waiting for a conversation turn.
type InboundJob struct {
	BusinessID        string `json:"business_id"`
	ParticipantID     string `json:"participant_id"`
	ParticipantName   string `json:"participant_name,omitempty"`
	Language          string `json:"language,omitempty"`
	PhoneNumberID     string `json:"phone_number_id,omitempty"`
	Text              string `json:"text,omitempty"`
	Payload           string `json:"payload,omitempty"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
}

// Input returns what the flow should process: the tapped button payload when
// present, the typed text otherwise.
func (j InboundJob) Input() string {
	if j.Payload != "" {
		return j.Payload
	}
	return j.Text
}

// PaymentJob is a payment confirmation waiting to be routed into the flow.
type PaymentJob struct {
	BusinessID    string `json:"business_id"`
	ParticipantID string `json:"participant_id"`
	QuoteID       string `json:"quote_id"`
	Provider      string `json:"provider"`
	EventID       string `json:"event_id"`
	AmountCents   int64  `json:"amount_cents,omitempty"`
}

type queuePayload struct {
	ID          string      `json:"id"`
	Kind        jobType     `json:"kind"`
	Inbound     *InboundJob `json:"inbound,omitempty"`
	Payment     *PaymentJob `json:"payment,omitempty"`
	TrackStatus bool        `json:"track_status"`
}

// PublishOption customizes an enqueued payload.
type PublishOption func(*queuePayload)

// WithoutJobTracking disables job status persistence for fire-and-forget work.
func WithoutJobTracking() PublishOption {
	return func(p *queuePayload) {
		p.TrackStatus = false
	}
}

func encodePayload(payload queuePayload) (queuePayload, string, error) {
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return queuePayload{}, "", fmt.Errorf("worker: failed to encode payload: %w", err)
	}

	return payload, string(body), nil
}
