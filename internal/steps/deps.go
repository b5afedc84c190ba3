// Package steps implements the conversation step handlers the flow engine
// drives. Each handler owns one question of the booking dialogue; external
// systems are reached through the narrow interfaces in Deps so handlers stay
// testable without a database or LLM.
package steps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flowline-ai/flowline/internal/availability"
	"github.com/flowline-ai/flowline/internal/booking"
	"github.com/flowline-ai/flowline/internal/catalog"
	"github.com/flowline-ai/flowline/internal/flow"
	"github.com/flowline-ai/flowline/pkg/logging"
)

// Button payloads the handlers emit and recognize.
const (
	payloadSlotPrefix = "slot_"
	payloadDayPrefix  = "day_"

	payloadBrowseDays      = "browse_days"
	payloadExistingUser    = "existing_user"
	payloadNewUser         = "new_user"
	payloadConfirmLocation = "confirm_location"
	payloadConfirmQuote    = "confirm_quote"
	payloadEditQuote       = "edit_quote"
	payloadAddEmailLater   = "add_email_later"
)

// SlotReader answers availability questions from the precomputed window.
type SlotReader interface {
	NextSlots(ctx context.Context, businessID string, durationMin, n int) ([]availability.TimeCount, error)
	DaysWithAvailability(ctx context.Context, businessID string, durationMin, maxDays int) ([]string, error)
	HoursForDate(ctx context.Context, businessID, date string, durationMin int) ([]string, error)
}

// UserDirectory looks up and registers customers.
type UserDirectory interface {
	FindUserByPhone(ctx context.Context, businessID, phone string) (*catalog.User, error)
	CreateUser(ctx context.Context, u catalog.User) (string, error)
	UpdateUserEmail(ctx context.Context, userID, email string) error
}

// QuoteWriter persists quotes assembled from collected booking data.
type QuoteWriter interface {
	CreateQuote(ctx context.Context, q booking.Quote) (string, error)
}

// BookingConfirmer turns a paid quote into a confirmed booking.
type BookingConfirmer interface {
	ConfirmFromQuote(ctx context.Context, quoteID string) (*booking.Booking, error)
}

// PaymentLinker creates a checkout link for a quote's deposit.
type PaymentLinker interface {
	PaymentLink(ctx context.Context, quoteID string, amountCents int) (string, error)
}

// FAQAnswerer generates answers to free-form questions.
type FAQAnswerer interface {
	Answer(ctx context.Context, question string, history []flow.HistoryEntry) (string, error)
}

// Escalator alerts a human that a conversation needs attention.
type Escalator interface {
	NotifyEscalation(ctx context.Context, p flow.Participant, transcript []flow.HistoryEntry) error
}

// Deps wires the handlers to the rest of the system. Availability, Users,
// Quotes, Bookings and Payments are required; the rest degrade gracefully
// when nil.
type Deps struct {
	Availability SlotReader
	Users        UserDirectory
	Quotes       QuoteWriter
	Bookings     BookingConfirmer
	Payments     PaymentLinker
	FAQ          FAQAnswerer
	Escalations  Escalator

	DepositCents int
	Logger       *logging.Logger
}

func (d *Deps) validate() {
	if d.Availability == nil {
		panic("steps: availability reader required")
	}
	if d.Users == nil {
		panic("steps: user directory required")
	}
	if d.Quotes == nil {
		panic("steps: quote writer required")
	}
	if d.Bookings == nil {
		panic("steps: booking confirmer required")
	}
	if d.Payments == nil {
		panic("steps: payment linker required")
	}
	if d.Logger == nil {
		d.Logger = logging.Default()
	}
}

// slotPayload encodes a concrete offer as a button payload.
func slotPayload(date, startTime string) string {
	return payloadSlotPrefix + date + "T" + startTime
}

// parseSlotPayload decodes "slot_2026-09-07T10:00".
func parseSlotPayload(input string) (date, startTime string, ok bool) {
	rest, found := strings.CutPrefix(input, payloadSlotPrefix)
	if !found {
		return "", "", false
	}
	date, startTime, found = strings.Cut(rest, "T")
	if !found || date == "" || startTime == "" {
		return "", "", false
	}
	if _, err := time.Parse(availability.DateLayout, date); err != nil {
		return "", "", false
	}
	if _, err := time.Parse(availability.TimeLayout, startTime); err != nil {
		return "", "", false
	}
	return date, startTime, true
}

// parseDayPayload decodes "day_2026-09-07" or a bare date.
func parseDayPayload(input string) (string, bool) {
	date := strings.TrimPrefix(input, payloadDayPrefix)
	if _, err := time.Parse(availability.DateLayout, date); err != nil {
		return "", false
	}
	return date, true
}

// slotLabel renders "Mon, Sep 7 at 10:00" for a slot button.
func slotLabel(date, startTime string) string {
	d, err := time.Parse(availability.DateLayout, date)
	if err != nil {
		return date + " " + startTime
	}
	return d.Format("Mon, Jan 2") + " at " + startTime
}

// dayLabel renders "Mon, Sep 7" for a day button.
func dayLabel(date string) string {
	d, err := time.Parse(availability.DateLayout, date)
	if err != nil {
		return date
	}
	return d.Format("Mon, Jan 2")
}

func formatMoney(cents int) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
