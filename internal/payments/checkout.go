// Package payments creates hosted checkout links for booking deposits and
// turns provider webhooks into payment-completed jobs for the flow worker.
package payments

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/flowline-ai/flowline/pkg/logging"
)

var squareTracer = otel.Tracer("flowline.internal.payments.square")

// CheckoutParams describes one deposit checkout link.
type CheckoutParams struct {
	BusinessID  string
	QuoteID     string
	AmountCents int64
	Description string
	SuccessURL  string
}

// CheckoutResponse is the created hosted payment link.
type CheckoutResponse struct {
	URL        string
	ProviderID string
}

// CheckoutService creates hosted payment links.
type CheckoutService interface {
	CreatePaymentLink(ctx context.Context, params CheckoutParams) (*CheckoutResponse, error)
}

// SquareCheckoutService creates hosted payment links through Square's
// online checkout API.
type SquareCheckoutService struct {
	accessToken string
	locationID  string
	successURL  string
	baseURL     string
	httpClient  *http.Client
	logger      *logging.Logger
}

func NewSquareCheckoutService(accessToken, locationID, successURL string, logger *logging.Logger) *SquareCheckoutService {
	if logger == nil {
		logger = logging.Default()
	}
	return &SquareCheckoutService{
		accessToken: accessToken,
		locationID:  locationID,
		successURL:  successURL,
		baseURL:     "https://connect.squareup.com",
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		logger:      logger,
	}
}

// WithBaseURL overrides the Square API host (e.g., sandbox).
func (s *SquareCheckoutService) WithBaseURL(baseURL string) *SquareCheckoutService {
	if baseURL == "" {
		return s
	}
	s.baseURL = strings.TrimRight(baseURL, "/")
	return s
}

func (s *SquareCheckoutService) CreatePaymentLink(ctx context.Context, params CheckoutParams) (*CheckoutResponse, error) {
	if s.accessToken == "" {
		return nil, fmt.Errorf("payments: no square credentials configured")
	}
	if s.locationID == "" {
		return nil, fmt.Errorf("payments: no square location configured")
	}
	if params.QuoteID == "" {
		return nil, fmt.Errorf("payments: quote id required")
	}

	ctx, span := squareTracer.Start(ctx, "square.create_link")
	defer span.End()
	span.SetAttributes(
		attribute.String("flowline.business_id", params.BusinessID),
		attribute.String("flowline.quote_id", params.QuoteID),
		attribute.Int64("flowline.amount_cents", params.AmountCents),
	)

	successURL := params.SuccessURL
	if successURL == "" {
		successURL = s.successURL
	}

	name := strings.TrimSpace(params.Description)
	if name == "" {
		name = "Booking deposit"
	}

	meta := map[string]string{
		"business_id": params.BusinessID,
		"quote_id":    params.QuoteID,
	}

	body := map[string]any{
		"idempotency_key": buildIdempotencyKey(params.BusinessID, params.QuoteID, params.AmountCents),
		"order": map[string]any{
			"location_id": s.locationID,
			"metadata":    meta,
			"line_items": []map[string]any{
				{
					"name":     name,
					"quantity": "1",
					"base_price_money": map[string]any{
						"amount":   params.AmountCents,
						"currency": "USD",
					},
				},
			},
		},
		"checkout_options": map[string]any{
			"redirect_url":             successURL,
			"ask_for_shipping_address": false,
		},
		"metadata": meta,
	}

	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("payments: square payload: %w", err)
	}

	apiURL := s.baseURL + "/v2/online-checkout/payment-links"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("payments: square request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payments: square http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("payments: square api status %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		PaymentLink struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		} `json:"payment_link"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("payments: square decode: %w", err)
	}
	if parsed.PaymentLink.URL == "" {
		return nil, fmt.Errorf("payments: square response missing url")
	}

	return &CheckoutResponse{
		URL:        parsed.PaymentLink.URL,
		ProviderID: parsed.PaymentLink.ID,
	}, nil
}

// Quotes repeat while the user reviews; keying on quote+amount+hour keeps
// retried link requests from creating duplicate checkout pages.
func buildIdempotencyKey(businessID, quoteID string, amount int64) string {
	input := fmt.Sprintf("%s:%s:%d:%s", businessID, quoteID, amount, time.Now().UTC().Format("2006-01-02T15"))
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
