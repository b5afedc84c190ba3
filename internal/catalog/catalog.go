// Package catalog holds the business-side configuration the assistant books
// against: services, providers, their working calendars, and known customers.
package catalog

import (
	"time"
)

// Service is a bookable offering.
type Service struct {
	ID          string
	BusinessID  string
	Name        string
	Description string
	DurationMin int
	PriceCents  int
	// Mobile services are performed at the customer's address, which makes
	// the booking flow collect the address first.
	Mobile    bool
	CreatedAt time.Time
}

// Provider is a person whose calendar appointments are booked on.
type Provider struct {
	ID         string
	BusinessID string
	Name       string
}

// HoursRange is one day's open interval, "15:04" formatted.
type HoursRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// CalendarSettings configures one provider's bookable time. WorkingHours is
// keyed by lowercase weekday name ("mon" .. "sun"); absent days are days off.
type CalendarSettings struct {
	ProviderID   string
	BusinessID   string
	Timezone     string
	BufferMin    int
	WorkingHours map[string]HoursRange
}

// User is a customer known to the business.
type User struct {
	ID         string
	BusinessID string
	Name       string
	Phone      string
	Email      string
	CreatedAt  time.Time
}

var weekdayKeys = map[time.Weekday]string{
	time.Sunday:    "sun",
	time.Monday:    "mon",
	time.Tuesday:   "tue",
	time.Wednesday: "wed",
	time.Thursday:  "thu",
	time.Friday:    "fri",
	time.Saturday:  "sat",
}

// HoursFor returns the provider's hours on a weekday, if any.
func (c *CalendarSettings) HoursFor(day time.Weekday) (HoursRange, bool) {
	if c == nil {
		return HoursRange{}, false
	}
	hours, ok := c.WorkingHours[weekdayKeys[day]]
	return hours, ok
}
