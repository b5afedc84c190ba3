package payments

import (
	"context"
	"fmt"

	"github.com/flowline-ai/flowline/internal/booking"
	"github.com/flowline-ai/flowline/pkg/logging"
)

type quoteReader interface {
	GetQuote(ctx context.Context, id string) (*booking.Quote, error)
}

// Linker turns a quote into a hosted deposit checkout link. It satisfies the
// conversation steps' payment dependency.
type Linker struct {
	checkout CheckoutService
	quotes   quoteReader
	logger   *logging.Logger
}

// NewLinker builds a Linker. Panics if checkout or quotes is nil.
func NewLinker(checkout CheckoutService, quotes quoteReader, logger *logging.Logger) *Linker {
	if checkout == nil {
		panic("payments: checkout service required")
	}
	if quotes == nil {
		panic("payments: quote reader required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Linker{checkout: checkout, quotes: quotes, logger: logger}
}

// PaymentLink creates a checkout link for the quote's deposit.
func (l *Linker) PaymentLink(ctx context.Context, quoteID string, amountCents int) (string, error) {
	quote, err := l.quotes.GetQuote(ctx, quoteID)
	if err != nil {
		return "", fmt.Errorf("payments: load quote for link: %w", err)
	}

	resp, err := l.checkout.CreatePaymentLink(ctx, CheckoutParams{
		BusinessID:  quote.BusinessID,
		QuoteID:     quote.ID,
		AmountCents: int64(amountCents),
		Description: fmt.Sprintf("%s deposit", quote.ServiceName),
	})
	if err != nil {
		return "", err
	}

	l.logger.Info("payment link created",
		"quote_id", quote.ID,
		"business_id", quote.BusinessID,
		"provider_id", resp.ProviderID,
	)
	return resp.URL, nil
}
