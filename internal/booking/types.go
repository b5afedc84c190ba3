// Package booking persists quotes and confirmed appointments, and assigns a
// provider when a booking lands.
package booking

import "time"

// QuoteStatus tracks a quote's lifecycle.
type QuoteStatus string

const (
	QuotePending QuoteStatus = "pending"
	QuotePaid    QuoteStatus = "paid"
	QuoteExpired QuoteStatus = "expired"
)

// Quote is a priced offer awaiting confirmation (and usually a deposit).
type Quote struct {
	ID           string
	BusinessID   string
	UserID       string
	UserName     string
	ServiceID    string
	ServiceName  string
	DurationMin  int
	PriceCents   int
	DepositCents int
	Date         string // 2006-01-02
	Time         string // 15:04
	Address      string
	Status       QuoteStatus
	CreatedAt    time.Time
}

// BookingStatus tracks a booking's lifecycle.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking is a confirmed appointment on a provider's calendar.
type Booking struct {
	ID          string
	BusinessID  string
	ProviderID  string
	UserID      string
	ServiceID   string
	QuoteID     string
	Date        string // 2006-01-02
	Time        string // 15:04
	DurationMin int
	Status      BookingStatus
	CreatedAt   time.Time
}
