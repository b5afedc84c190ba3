package steps

import (
	"context"
	"fmt"

	"github.com/flowline-ai/flowline/internal/booking"
	"github.com/flowline-ai/flowline/internal/flow"
)

// quoteSummary assembles the quote from everything collected and shows it for
// confirmation. handleQuoteChoice applies the answer.
type quoteSummary struct {
	deps Deps
}

func (h *quoteSummary) Prompt(ctx context.Context, sc *flow.StepContext) (string, []flow.Button, error) {
	data := sc.Data()
	if data.SelectedService == nil {
		return "", nil, fmt.Errorf("steps: quote without a selected service")
	}

	if data.QuoteID == "" {
		id, err := h.deps.Quotes.CreateQuote(ctx, booking.Quote{
			BusinessID:   sc.Participant.BusinessID,
			UserID:       data.UserID,
			UserName:     data.UserName,
			ServiceID:    data.SelectedService.ID,
			ServiceName:  data.SelectedService.Name,
			DurationMin:  data.SelectedService.DurationMin,
			PriceCents:   data.SelectedService.PriceCents,
			DepositCents: h.deps.DepositCents,
			Date:         data.Date,
			Time:         data.Time,
			Address:      data.Address,
		})
		if err != nil {
			return "", nil, err
		}
		data.QuoteID = id
		data.QuoteTotalCents = data.SelectedService.PriceCents
	}

	text := "Here's your booking summary:\n\n" +
		"• " + data.SelectedService.Name + "\n" +
		"• " + slotLabel(data.Date, data.Time) + "\n"
	if data.Address != "" {
		text += "• " + data.Address + "\n"
	}
	text += "\nTotal: " + formatMoney(data.QuoteTotalCents)
	if h.deps.DepositCents > 0 {
		text += " (deposit " + formatMoney(h.deps.DepositCents) + " to confirm)"
	}
	text += "\n\nShall I lock it in?"

	buttons := []flow.Button{
		{Label: "Confirm", Payload: payloadConfirmQuote},
		{Label: "Change something", Payload: payloadEditQuote},
	}
	return text, buttons, nil
}

func (h *quoteSummary) Validate(ctx context.Context, sc *flow.StepContext, input string) flow.ValidationResult {
	return flow.Defer()
}

func (h *quoteSummary) Process(ctx context.Context, sc *flow.StepContext, input string) error {
	return nil
}

func (h *quoteSummary) AutoAdvance(sc *flow.StepContext) bool { return false }

// handleQuoteChoice turns a confirmation into a payment link, or rewinds the
// flow so the participant can change the slot.
type handleQuoteChoice struct {
	deps Deps
}

func (h *handleQuoteChoice) Prompt(ctx context.Context, sc *flow.StepContext) (string, []flow.Button, error) {
	data := sc.Data()
	if data.PaymentLinkGenerated && data.PaymentLink != "" {
		text := "Almost there! Pay the " + formatMoney(h.deps.DepositCents) + " deposit to confirm your booking:\n\n" + data.PaymentLink +
			"\n\nI'll confirm everything here the moment it goes through."
		return text, nil, nil
	}
	buttons := []flow.Button{
		{Label: "Confirm", Payload: payloadConfirmQuote},
		{Label: "Change something", Payload: payloadEditQuote},
	}
	return "Shall I lock in your booking?", buttons, nil
}

func (h *handleQuoteChoice) Validate(ctx context.Context, sc *flow.StepContext, input string) flow.ValidationResult {
	if input == payloadConfirmQuote || input == payloadEditQuote {
		return flow.Accept()
	}
	if sc.Data().PaymentLinkGenerated && !sc.Data().PaymentCompleted {
		return flow.Reject("Your payment link is still open — finish checkout there and I'll take it from here.")
	}
	return flow.Reject("Tap Confirm to lock it in, or Change something to adjust the booking.")
}

func (h *handleQuoteChoice) Process(ctx context.Context, sc *flow.StepContext, input string) error {
	data := sc.Data()
	switch input {
	case payloadConfirmQuote:
		if data.PaymentLinkGenerated {
			return nil
		}
		link, err := h.deps.Payments.PaymentLink(ctx, data.QuoteID, h.deps.DepositCents)
		if err != nil {
			return fmt.Errorf("steps: payment link: %w", err)
		}
		data.PaymentLink = link
		data.PaymentLinkGenerated = true
	case payloadEditQuote:
		// Drop the slot and quote, then rewind so navigation lands back on
		// the time chooser (it only scans forward).
		data.Clear(flow.CategoryTime)
		if sc.Goal != nil {
			if idx := flow.StepIndex(sc.Goal.Flow, flow.StepShowAvailableTimes); idx > 0 {
				sc.Goal.CurrentStepIndex = idx - 1
			}
		}
	}
	return nil
}

func (h *handleQuoteChoice) AutoAdvance(sc *flow.StepContext) bool { return false }
