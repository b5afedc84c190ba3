package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/flowline-ai/flowline/pkg/logging"
)

type stubCheckout struct {
	resp   *CheckoutResponse
	err    error
	params CheckoutParams
}

func (s *stubCheckout) CreatePaymentLink(ctx context.Context, params CheckoutParams) (*CheckoutResponse, error) {
	s.params = params
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func TestLinkerPaymentLink(t *testing.T) {
	quote := sampleQuote()
	checkout := &stubCheckout{resp: &CheckoutResponse{URL: "https://square.link/u/abc", ProviderID: "plink_1"}}
	linker := NewLinker(checkout, &stubQuoteReader{quote: quote}, logging.Default())

	url, err := linker.PaymentLink(context.Background(), quote.ID, 5000)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if url != "https://square.link/u/abc" {
		t.Fatalf("unexpected url: %s", url)
	}
	if checkout.params.QuoteID != quote.ID {
		t.Fatalf("expected quote id %s, got %s", quote.ID, checkout.params.QuoteID)
	}
	if checkout.params.BusinessID != quote.BusinessID {
		t.Fatalf("expected business id from quote, got %s", checkout.params.BusinessID)
	}
	if checkout.params.AmountCents != 5000 {
		t.Fatalf("expected amount 5000, got %d", checkout.params.AmountCents)
	}
	if checkout.params.Description != "Deep Tissue Massage deposit" {
		t.Fatalf("unexpected description: %s", checkout.params.Description)
	}
}

func TestLinkerPaymentLinkQuoteError(t *testing.T) {
	linker := NewLinker(&stubCheckout{}, &stubQuoteReader{err: errors.New("no rows")}, logging.Default())
	if _, err := linker.PaymentLink(context.Background(), "quote-missing", 5000); err == nil {
		t.Fatal("expected error when quote lookup fails")
	}
}

func TestLinkerPaymentLinkCheckoutError(t *testing.T) {
	linker := NewLinker(&stubCheckout{err: errors.New("square down")}, &stubQuoteReader{quote: sampleQuote()}, logging.Default())
	if _, err := linker.PaymentLink(context.Background(), "quote-1", 5000); err == nil {
		t.Fatal("expected checkout error to propagate")
	}
}
