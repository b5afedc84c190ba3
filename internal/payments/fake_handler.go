package payments

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/flowline-ai/flowline/internal/events"
	"github.com/flowline-ai/flowline/internal/worker"
	"github.com/flowline-ai/flowline/pkg/logging"
)

// FakePaymentsHandler exposes a tiny demo UI to "complete" deposits without
// Square. Only mount this handler when ALLOW_FAKE_PAYMENTS=true.
type FakePaymentsHandler struct {
	quotes    quoteReader
	users     userReader
	processed processedTracker
	outbox    outboxWriter
	jobs      paymentEnqueuer
	logger    *logging.Logger
}

func NewFakePaymentsHandler(quotes quoteReader, users userReader, processed processedTracker, outbox outboxWriter, jobs paymentEnqueuer, logger *logging.Logger) *FakePaymentsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &FakePaymentsHandler{
		quotes:    quotes,
		users:     users,
		processed: processed,
		outbox:    outbox,
		jobs:      jobs,
		logger:    logger,
	}
}

func (h *FakePaymentsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/payments/fake/{quoteID}", h.HandleCheckout)
	r.Post("/payments/fake/{quoteID}/complete", h.HandleComplete)
	r.Get("/payments/fake/{quoteID}/success", h.HandleSuccess)
	return r
}

func (h *FakePaymentsHandler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	quoteID, ok := parseQuoteParam(w, r)
	if !ok {
		return
	}
	quote, err := h.quotes.GetQuote(r.Context(), quoteID)
	if err != nil {
		http.Error(w, "quote not found", http.StatusNotFound)
		return
	}

	amount := float64(quote.DepositCents) / 100.0
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Demo Deposit Checkout</title>
    <style>
      body{font-family:system-ui,-apple-system,Segoe UI,Roboto,Ubuntu,Cantarell,Noto Sans,sans-serif;max-width:680px;margin:40px auto;padding:0 16px;}
      .card{border:1px solid #e5e7eb;border-radius:12px;padding:18px;}
      .btn{display:inline-block;background:#111827;color:#fff;padding:12px 16px;border-radius:10px;text-decoration:none;border:0;cursor:pointer;}
      .muted{color:#6b7280;font-size:14px;}
      code{background:#f3f4f6;padding:2px 6px;border-radius:6px;}
    </style>
  </head>
  <body>
    <h1>Demo Deposit Checkout</h1>
    <div class="card">
      <p><strong>%s</strong></p>
      <p><strong>Deposit:</strong> $%.2f</p>
      <p class="muted">This is a demo-only payment page (no real payment is processed).</p>
      <form method="POST" action="/payments/fake/%s/complete">
        <button class="btn" type="submit">Complete Deposit</button>
      </form>
      <p class="muted">Quote ID: <code>%s</code></p>
    </div>
  </body>
</html>`, quote.ServiceName, amount, quote.ID, quote.ID)
}

func (h *FakePaymentsHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	quoteID, ok := parseQuoteParam(w, r)
	if !ok {
		return
	}
	if err := h.completePayment(r.Context(), quoteID); err != nil {
		h.logger.Error("fake payment completion failed", "error", err, "quote_id", quoteID)
		http.Error(w, "failed to complete payment", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/payments/fake/%s/success", quoteID), http.StatusSeeOther)
}

func (h *FakePaymentsHandler) HandleSuccess(w http.ResponseWriter, r *http.Request) {
	quoteID, ok := parseQuoteParam(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Deposit Completed</title>
    <style>
      body{font-family:system-ui,-apple-system,Segoe UI,Roboto,Ubuntu,Cantarell,Noto Sans,sans-serif;max-width:680px;margin:40px auto;padding:0 16px;}
      .card{border:1px solid #e5e7eb;border-radius:12px;padding:18px;}
      .muted{color:#6b7280;font-size:14px;}
      code{background:#f3f4f6;padding:2px 6px;border-radius:6px;}
    </style>
  </head>
  <body>
    <h1>Deposit Completed</h1>
    <div class="card">
      <p>Thanks — your demo deposit is marked as paid.</p>
      <p class="muted">You can close this tab and continue the WhatsApp conversation.</p>
      <p class="muted">Quote ID: <code>%s</code></p>
    </div>
  </body>
</html>`, quoteID)
}

func (h *FakePaymentsHandler) completePayment(ctx context.Context, quoteID string) error {
	if h.quotes == nil || h.users == nil || h.outbox == nil || h.jobs == nil {
		return fmt.Errorf("payments: fake handler missing dependencies")
	}
	eventID := "fake:" + quoteID
	if h.processed != nil {
		already, err := h.processed.AlreadyProcessed(ctx, "fake", eventID)
		if err == nil && already {
			return nil
		}
	}

	quote, err := h.quotes.GetQuote(ctx, quoteID)
	if err != nil {
		return fmt.Errorf("payments: fake load quote: %w", err)
	}
	user, err := h.users.GetUser(ctx, quote.UserID)
	if err != nil {
		return fmt.Errorf("payments: fake user lookup: %w", err)
	}

	event := events.PaymentCompletedV1{
		EventID:     eventID,
		BusinessID:  quote.BusinessID,
		QuoteID:     quote.ID,
		Provider:    "fake",
		ProviderRef: eventID,
		AmountCents: int64(quote.DepositCents),
		OccurredAt:  time.Now().UTC(),
	}
	if _, err := h.outbox.Insert(ctx, quote.BusinessID, events.TypePaymentCompleted, event); err != nil {
		return fmt.Errorf("payments: fake enqueue outbox: %w", err)
	}

	job := worker.PaymentJob{
		BusinessID:    quote.BusinessID,
		ParticipantID: user.Phone,
		QuoteID:       quote.ID,
		Provider:      "fake",
		EventID:       eventID,
		AmountCents:   int64(quote.DepositCents),
	}
	if err := h.jobs.EnqueuePayment(ctx, "", job, worker.WithoutJobTracking()); err != nil {
		return fmt.Errorf("payments: fake enqueue job: %w", err)
	}

	if h.processed != nil {
		if _, err := h.processed.MarkProcessed(ctx, "fake", eventID); err != nil {
			h.logger.Warn("payments: failed to record processed fake payment", "error", err, "quote_id", quoteID)
		}
	}
	return nil
}

func parseQuoteParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "quoteID"))
	if raw == "" {
		http.Error(w, "missing quote id", http.StatusBadRequest)
		return "", false
	}
	if _, err := uuid.Parse(raw); err != nil {
		http.Error(w, "invalid quote id", http.StatusBadRequest)
		return "", false
	}
	return raw, true
}
