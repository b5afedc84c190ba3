package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowline-ai/flowline/pkg/logging"
)

// CalendarSource supplies provider calendars for a business.
type CalendarSource interface {
	ProviderCalendars(ctx context.Context, businessID string) ([]ProviderCalendar, error)
}

// BookingSource supplies existing bookings blocking provider time.
type BookingSource interface {
	BookingsInRange(ctx context.Context, businessID, from, to string) ([]Booking, error)
}

// Recorder is the subset of Store the service writes through. Split out so
// tests can fake persistence.
type Recorder interface {
	UpsertProviderDay(ctx context.Context, day DaySlots) error
	UpsertBusinessDay(ctx context.Context, day AggregatedDaySlots) error
	GetBusinessDay(ctx context.Context, businessID, date string) (*AggregatedDaySlots, error)
	ListBusinessDays(ctx context.Context, businessID, from, to string) ([]AggregatedDaySlots, error)
	DeleteBefore(ctx context.Context, businessID, date string) (int64, error)
}

// Service keeps the rolling availability window current and answers the
// slot queries the conversation steps ask.
type Service struct {
	store      Recorder
	calendars  CalendarSource
	bookings   BookingSource
	logger     *logging.Logger
	windowDays int
	now        func() time.Time
}

// ServiceOption customizes the availability service.
type ServiceOption func(*Service)

// WithWindowDays overrides the rolling window length.
func WithWindowDays(days int) ServiceOption {
	return func(s *Service) {
		if days > 0 {
			s.windowDays = days
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs the availability service.
func NewService(store Recorder, calendars CalendarSource, bookings BookingSource, logger *logging.Logger, opts ...ServiceOption) *Service {
	if store == nil {
		panic("availability: store required")
	}
	if calendars == nil {
		panic("availability: calendar source required")
	}
	if bookings == nil {
		panic("availability: booking source required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		store:      store,
		calendars:  calendars,
		bookings:   bookings,
		logger:     logger,
		windowDays: 30,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) windowRange() (string, string) {
	today := s.now().Format(DateLayout)
	end := s.now().AddDate(0, 0, s.windowDays).Format(DateLayout)
	return today, end
}

// RefreshDay recomputes one business-day after a booking lands: every
// provider's record for that date plus the aggregated record.
func (s *Service) RefreshDay(ctx context.Context, businessID, date string) error {
	day, err := time.Parse(DateLayout, date)
	if err != nil {
		return fmt.Errorf("availability: bad date %q: %w", date, err)
	}
	cals, err := s.calendars.ProviderCalendars(ctx, businessID)
	if err != nil {
		return fmt.Errorf("availability: load calendars: %w", err)
	}
	bookings, err := s.bookings.BookingsInRange(ctx, businessID, date, date)
	if err != nil {
		return fmt.Errorf("availability: load bookings: %w", err)
	}

	for _, cal := range cals {
		record := ComputeDaySlots(cal, day, bookings)
		if record == nil {
			continue
		}
		if err := s.store.UpsertProviderDay(ctx, *record); err != nil {
			return err
		}
	}

	agg := ComputeDayAggregate(businessID, cals, day, bookings)
	if agg == nil {
		// Nobody works this day anymore. Blank out any record left over
		// from an earlier calendar so reads stop advertising it.
		if _, err := s.store.GetBusinessDay(ctx, businessID, date); errors.Is(err, ErrNotFound) {
			s.logger.Debug("availability refreshed", "business_id", businessID, "date", date)
			return nil
		} else if err != nil {
			return err
		}
		agg = &AggregatedDaySlots{BusinessID: businessID, Date: date, Slots: map[string][]TimeCount{}}
	}
	if err := s.store.UpsertBusinessDay(ctx, *agg); err != nil {
		return err
	}
	s.logger.Debug("availability refreshed", "business_id", businessID, "date", date)
	return nil
}

// RollWindow maintains the availability window for a business: drop days in
// the past, fill in any day through the horizon that has no record yet.
// Days nobody works stay absent on purpose.
func (s *Service) RollWindow(ctx context.Context, businessID string) error {
	cals, err := s.calendars.ProviderCalendars(ctx, businessID)
	if err != nil {
		return fmt.Errorf("availability: load calendars: %w", err)
	}
	if len(cals) == 0 {
		s.logger.Warn("no provider calendars for business", "business_id", businessID)
		return nil
	}

	today, end := s.windowRange()
	deleted, err := s.store.DeleteBefore(ctx, businessID, today)
	if err != nil {
		return err
	}

	bookings, err := s.bookings.BookingsInRange(ctx, businessID, today, end)
	if err != nil {
		return fmt.Errorf("availability: load bookings: %w", err)
	}

	added := 0
	start := s.now()
	for offset := 0; offset <= s.windowDays; offset++ {
		day := start.AddDate(0, 0, offset)
		dateStr := day.Format(DateLayout)

		_, err := s.store.GetBusinessDay(ctx, businessID, dateStr)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		agg := ComputeDayAggregate(businessID, cals, day, bookings)
		if agg == nil {
			continue
		}
		if err := s.store.UpsertBusinessDay(ctx, *agg); err != nil {
			return err
		}
		for _, cal := range cals {
			record := ComputeDaySlots(cal, day, bookings)
			if record == nil {
				continue
			}
			if err := s.store.UpsertProviderDay(ctx, *record); err != nil {
				return err
			}
		}
		added++
	}

	s.logger.Info("availability window rolled",
		"business_id", businessID,
		"deleted", deleted,
		"added", added,
	)
	return nil
}

// NextSlots returns the next n on-the-hour openings for the business,
// scanning day by day across the window.
func (s *Service) NextSlots(ctx context.Context, businessID string, durationMin, n int) ([]TimeCount, error) {
	bucket, ok := BucketFor(durationMin)
	if !ok {
		return nil, fmt.Errorf("availability: duration %d exceeds longest bucket", durationMin)
	}
	from, to := s.windowRange()
	days, err := s.store.ListBusinessDays(ctx, businessID, from, to)
	if err != nil {
		return nil, err
	}

	now := s.now()
	today := now.Format(DateLayout)
	nowMin := now.Hour()*60 + now.Minute()

	var out []TimeCount
	for _, day := range days {
		for _, tc := range day.Slots[bucket] {
			if tc.Count <= 0 {
				continue
			}
			if len(tc.Time) < 5 || tc.Time[3:5] != "00" {
				continue
			}
			if day.Date == today {
				m, err := parseMinutes(tc.Time)
				if err != nil || m <= nowMin {
					continue
				}
			}
			out = append(out, TimeCount{Time: day.Date + "T" + tc.Time, Count: tc.Count})
			if len(out) >= n {
				return out, nil
			}
		}
	}
	return out, nil
}

// DaysWithAvailability lists the dates in the window with at least one
// opening for the duration.
func (s *Service) DaysWithAvailability(ctx context.Context, businessID string, durationMin, maxDays int) ([]string, error) {
	bucket, ok := BucketFor(durationMin)
	if !ok {
		return nil, fmt.Errorf("availability: duration %d exceeds longest bucket", durationMin)
	}
	from, to := s.windowRange()
	days, err := s.store.ListBusinessDays(ctx, businessID, from, to)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, day := range days {
		for _, tc := range day.Slots[bucket] {
			if tc.Count > 0 {
				out = append(out, day.Date)
				break
			}
		}
		if maxDays > 0 && len(out) >= maxDays {
			break
		}
	}
	return out, nil
}

// HoursForDate lists the open start times on one date for the duration.
func (s *Service) HoursForDate(ctx context.Context, businessID, date string, durationMin int) ([]string, error) {
	day, err := s.store.GetBusinessDay(ctx, businessID, date)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []string
	for _, tc := range AggregateHoursForDate(day, durationMin) {
		if tc.Count > 0 {
			out = append(out, tc.Time)
		}
	}
	return out, nil
}
