package steps

import (
	"context"
	"fmt"

	"github.com/flowline-ai/flowline/internal/flow"
)

// createBooking runs once the deposit is captured: the quote becomes a
// confirmed booking with a provider assigned.
type createBooking struct {
	deps Deps
}

func (h *createBooking) Prompt(ctx context.Context, sc *flow.StepContext) (string, []flow.Button, error) {
	return "Payment received — confirming your booking...", nil, nil
}

func (h *createBooking) Validate(ctx context.Context, sc *flow.StepContext, input string) flow.ValidationResult {
	return flow.Defer()
}

func (h *createBooking) Process(ctx context.Context, sc *flow.StepContext, input string) error {
	data := sc.Data()
	if data.ConfirmedBookingID != "" {
		return nil
	}
	if data.QuoteID == "" {
		return fmt.Errorf("steps: booking confirmation without a quote")
	}
	b, err := h.deps.Bookings.ConfirmFromQuote(ctx, data.QuoteID)
	if err != nil {
		return err
	}
	data.ConfirmedBookingID = b.ID
	data.ProviderID = b.ProviderID
	return nil
}

func (h *createBooking) AutoAdvance(sc *flow.StepContext) bool {
	d := sc.Data()
	return d.PaymentCompleted && d.ConfirmedBookingID == ""
}

// displayConfirmedBooking renders the final confirmation. The processor
// completes the goal after this prompt.
type displayConfirmedBooking struct{}

func (h *displayConfirmedBooking) Prompt(ctx context.Context, sc *flow.StepContext) (string, []flow.Button, error) {
	data := sc.Data()
	text := "You're booked! 🎉\n\n"
	if data.SelectedService != nil {
		text += "• " + data.SelectedService.Name + "\n"
	}
	text += "• " + slotLabel(data.Date, data.Time) + "\n"
	if data.Address != "" {
		text += "• " + data.Address + "\n"
	}
	if data.ConfirmedBookingID != "" {
		text += "\nBooking reference: " + data.ConfirmedBookingID
	}
	text += "\n\nSee you then! Message me any time to make changes."
	return text, nil, nil
}

func (h *displayConfirmedBooking) Validate(ctx context.Context, sc *flow.StepContext, input string) flow.ValidationResult {
	return flow.Accept()
}

func (h *displayConfirmedBooking) Process(ctx context.Context, sc *flow.StepContext, input string) error {
	return nil
}

func (h *displayConfirmedBooking) AutoAdvance(sc *flow.StepContext) bool { return false }
