package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/flowline-ai/flowline/internal/catalog"
	"github.com/flowline-ai/flowline/internal/events"
	"github.com/flowline-ai/flowline/internal/worker"
	"github.com/flowline-ai/flowline/pkg/logging"
)

type processedTracker interface {
	AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

type outboxWriter interface {
	Insert(ctx context.Context, businessID string, eventType string, payload any) (uuid.UUID, error)
}

type userReader interface {
	GetUser(ctx context.Context, id string) (*catalog.User, error)
}

type paymentEnqueuer interface {
	EnqueuePayment(ctx context.Context, jobID string, job worker.PaymentJob, opts ...worker.PublishOption) error
}

// SquareWebhookHandler receives payment.updated notifications from Square,
// verifies them, and hands completed deposits to the conversation worker.
type SquareWebhookHandler struct {
	signatureKey string
	quotes       quoteReader
	users        userReader
	processed    processedTracker
	outbox       outboxWriter
	jobs         paymentEnqueuer
	logger       *logging.Logger
}

func NewSquareWebhookHandler(sigKey string, quotes quoteReader, users userReader, processed processedTracker, outbox outboxWriter, jobs paymentEnqueuer, logger *logging.Logger) *SquareWebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SquareWebhookHandler{
		signatureKey: sigKey,
		quotes:       quotes,
		users:        users,
		processed:    processed,
		outbox:       outbox,
		jobs:         jobs,
		logger:       logger,
	}
}

func (h *SquareWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if !verifySquareSignature(h.signatureKey, buildAbsoluteURL(r), payload, r.Header.Get("X-Square-Signature")) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var evt squarePaymentEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		h.logger.Error("failed to decode square event", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	eventID := evt.EventID
	if eventID == "" {
		eventID = evt.ID
	}
	if eventID == "" {
		http.Error(w, "missing event id", http.StatusBadRequest)
		return
	}

	if processed, err := h.processed.AlreadyProcessed(r.Context(), "square", eventID); err != nil {
		h.logger.Error("processed lookup failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	} else if processed {
		w.WriteHeader(http.StatusOK)
		return
	}

	if evt.Data.Object.Payment.Status != "COMPLETED" {
		w.WriteHeader(http.StatusOK)
		return
	}

	quoteID := evt.Data.Object.Payment.Metadata["quote_id"]
	if quoteID == "" {
		// Acknowledge so Square stops retrying; without the quote reference
		// there is nothing to advance.
		h.logger.Warn("square webhook missing quote metadata", "payment_id", evt.Data.Object.Payment.ID)
		w.WriteHeader(http.StatusOK)
		return
	}

	quote, err := h.quotes.GetQuote(r.Context(), quoteID)
	if err != nil {
		h.logger.Error("quote fetch failed", "error", err, "quote_id", quoteID)
		http.Error(w, "quote not found", http.StatusNotFound)
		return
	}

	user, err := h.users.GetUser(r.Context(), quote.UserID)
	if err != nil {
		h.logger.Error("user fetch failed", "error", err, "user_id", quote.UserID, "quote_id", quoteID)
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}

	event := events.PaymentCompletedV1{
		EventID:     eventID,
		BusinessID:  quote.BusinessID,
		QuoteID:     quote.ID,
		Provider:    "square",
		ProviderRef: evt.Data.Object.Payment.ID,
		AmountCents: evt.Data.Object.Payment.AmountMoney.Amount,
		OccurredAt:  evt.CreatedAt,
	}
	if _, err := h.outbox.Insert(r.Context(), quote.BusinessID, events.TypePaymentCompleted, event); err != nil {
		h.logger.Error("failed to enqueue outbox", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	job := worker.PaymentJob{
		BusinessID:    quote.BusinessID,
		ParticipantID: user.Phone,
		QuoteID:       quote.ID,
		Provider:      "square",
		EventID:       eventID,
		AmountCents:   evt.Data.Object.Payment.AmountMoney.Amount,
	}
	if err := h.jobs.EnqueuePayment(r.Context(), "", job, worker.WithoutJobTracking()); err != nil {
		h.logger.Error("failed to enqueue payment job", "error", err, "quote_id", quoteID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	if _, err := h.processed.MarkProcessed(r.Context(), "square", eventID); err != nil {
		h.logger.Error("failed to record processed event", "error", err)
	}
	w.WriteHeader(http.StatusOK)
}

func verifySquareSignature(key, url string, body []byte, header string) bool {
	if key == "" || header == "" {
		return false
	}
	message := url + string(body)
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(message))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(header), []byte(expected))
}

type squarePaymentEvent struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	CreatedAt time.Time `json:"created_at"`
	Type      string    `json:"type"`
	Data      struct {
		Object struct {
			Payment struct {
				ID          string            `json:"id"`
				Status      string            `json:"status"`
				OrderID     string            `json:"order_id"`
				AmountMoney squareMoney       `json:"amount_money"`
				Metadata    map[string]string `json:"metadata"`
			} `json:"payment"`
		} `json:"object"`
	} `json:"data"`
}

type squareMoney struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func buildAbsoluteURL(r *http.Request) string {
	if r.URL == nil {
		return ""
	}
	scheme := "https"
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	} else if r.TLS == nil {
		scheme = "http"
	}
	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = fwd
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, r.URL.RequestURI())
}
