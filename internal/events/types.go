package events

import "time"

// Event type names as stored in the outbox.
const (
	TypeMessageReceived  = "message_received.v1"
	TypeReplySent        = "reply_sent.v1"
	TypePaymentCompleted = "payment_completed.v1"
	TypeBookingConfirmed = "booking_confirmed.v1"
)

type MessageReceivedV1 struct {
	EventID       string    `json:"event_id"`
	BusinessID    string    `json:"business_id"`
	ParticipantID string    `json:"participant_id"`
	Channel       string    `json:"channel"`
	Body          string    `json:"body"`
	Payload       string    `json:"payload,omitempty"`
	ReceivedAt    time.Time `json:"received_at"`
}

type ReplySentV1 struct {
	EventID       string    `json:"event_id"`
	BusinessID    string    `json:"business_id"`
	ParticipantID string    `json:"participant_id"`
	Channel       string    `json:"channel"`
	Body          string    `json:"body"`
	ButtonCount   int       `json:"button_count,omitempty"`
	SentAt        time.Time `json:"sent_at"`
}

type PaymentCompletedV1 struct {
	EventID     string    `json:"event_id"`
	BusinessID  string    `json:"business_id"`
	QuoteID     string    `json:"quote_id"`
	Provider    string    `json:"provider"`
	ProviderRef string    `json:"provider_ref,omitempty"`
	AmountCents int64     `json:"amount_cents"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type BookingConfirmedV1 struct {
	EventID     string    `json:"event_id"`
	BusinessID  string    `json:"business_id"`
	BookingID   string    `json:"booking_id"`
	QuoteID     string    `json:"quote_id,omitempty"`
	ProviderID  string    `json:"provider_id,omitempty"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}
