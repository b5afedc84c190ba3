package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/flowline-ai/flowline/internal/availability"
	"github.com/flowline-ai/flowline/internal/events"
	"github.com/flowline-ai/flowline/internal/flow"
	"github.com/flowline-ai/flowline/pkg/logging"
)

var bookingTracer = otel.Tracer("flowline.internal.booking")

// ErrNoProvider means no provider can take the requested slot.
var ErrNoProvider = errors.New("booking: no provider available for slot")

// CalendarSource yields provider calendars for a business.
type CalendarSource interface {
	ProviderCalendars(ctx context.Context, businessID string) ([]availability.ProviderCalendar, error)
}

// Refresher recomputes availability for a single day after a booking lands.
type Refresher interface {
	RefreshDay(ctx context.Context, businessID, date string) error
}

// OutboxWriter records domain events alongside the booking write.
type OutboxWriter interface {
	Insert(ctx context.Context, businessID string, eventType string, payload any) (uuid.UUID, error)
}

// Service creates quotes, confirms bookings against provider calendars and
// keeps the availability cache in sync.
type Service struct {
	store     *Store
	calendars CalendarSource
	refresher Refresher
	outbox    OutboxWriter
	logger    *logging.Logger
}

// ServiceOption customizes the booking service.
type ServiceOption func(*Service)

// WithRefresher wires the availability refresh hook.
func WithRefresher(r Refresher) ServiceOption {
	return func(s *Service) { s.refresher = r }
}

// WithOutbox wires the event outbox; confirmed bookings are recorded as
// booking_confirmed events for downstream delivery.
func WithOutbox(o OutboxWriter) ServiceOption {
	return func(s *Service) { s.outbox = o }
}

// NewService constructs a booking service.
func NewService(store *Store, calendars CalendarSource, logger *logging.Logger, opts ...ServiceOption) *Service {
	if store == nil {
		panic("booking: store required")
	}
	if calendars == nil {
		panic("booking: calendar source required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{store: store, calendars: calendars, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateQuote persists a pending quote built from collected booking data.
func (s *Service) CreateQuote(ctx context.Context, q Quote) (string, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.create_quote")
	defer span.End()
	span.SetAttributes(
		attribute.String("flowline.business_id", q.BusinessID),
		attribute.String("flowline.service_id", q.ServiceID),
	)

	id, err := s.store.CreateQuote(ctx, q)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	s.logger.Info("quote created", "quote_id", id, "business_id", q.BusinessID, "service", q.ServiceName)
	return id, nil
}

// MarkQuotePaid transitions a quote to paid after a deposit capture.
func (s *Service) MarkQuotePaid(ctx context.Context, quoteID string) error {
	return s.store.MarkQuotePaid(ctx, quoteID)
}

// RestoreQuote rehydrates collected booking data from a persisted quote so a
// conversation can resume after the payment round-trip.
func (s *Service) RestoreQuote(ctx context.Context, quoteID string, data *flow.BookingData) error {
	q, err := s.store.GetQuote(ctx, quoteID)
	if err != nil {
		return err
	}
	data.SelectedService = &flow.ServiceRef{
		ID:          q.ServiceID,
		Name:        q.ServiceName,
		DurationMin: q.DurationMin,
		PriceCents:  q.PriceCents,
	}
	data.ServiceDuration = q.DurationMin
	data.Date = q.Date
	data.Time = q.Time
	data.Address = q.Address
	data.UserID = q.UserID
	data.UserName = q.UserName
	data.QuoteID = q.ID
	data.QuoteTotalCents = q.PriceCents
	return nil
}

// ConfirmFromQuote marks the quote paid, assigns a free provider for the
// quoted slot and persists the confirmed booking.
func (s *Service) ConfirmFromQuote(ctx context.Context, quoteID string) (*Booking, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.confirm")
	defer span.End()
	span.SetAttributes(attribute.String("flowline.quote_id", quoteID))

	q, err := s.store.GetQuote(ctx, quoteID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if q.Status != QuotePaid {
		if err := s.store.MarkQuotePaid(ctx, quoteID); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	providerID, err := s.assignProvider(ctx, q)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	b := Booking{
		BusinessID:  q.BusinessID,
		ProviderID:  providerID,
		UserID:      q.UserID,
		ServiceID:   q.ServiceID,
		QuoteID:     q.ID,
		Date:        q.Date,
		Time:        q.Time,
		DurationMin: q.DurationMin,
		Status:      BookingConfirmed,
	}
	id, err := s.store.CreateBooking(ctx, b)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	b.ID = id

	if s.refresher != nil {
		if err := s.refresher.RefreshDay(ctx, q.BusinessID, q.Date); err != nil {
			s.logger.Warn("availability refresh failed after booking", "booking_id", id, "date", q.Date, "error", err)
		}
	}

	if s.outbox != nil {
		evt := events.BookingConfirmedV1{
			EventID:     uuid.NewString(),
			BusinessID:  q.BusinessID,
			BookingID:   id,
			QuoteID:     q.ID,
			ProviderID:  providerID,
			Date:        q.Date,
			Time:        q.Time,
			ConfirmedAt: time.Now().UTC(),
		}
		if _, err := s.outbox.Insert(ctx, q.BusinessID, events.TypeBookingConfirmed, evt); err != nil {
			s.logger.Warn("failed to record booking event", "booking_id", id, "error", err)
		}
	}

	s.logger.Info("booking confirmed",
		"booking_id", id, "business_id", q.BusinessID, "provider_id", providerID,
		"date", q.Date, "time", q.Time)
	return &b, nil
}

// assignProvider picks the first provider whose recomputed day still offers
// the quoted slot in the duration bucket the service needs.
func (s *Service) assignProvider(ctx context.Context, q *Quote) (string, error) {
	cals, err := s.calendars.ProviderCalendars(ctx, q.BusinessID)
	if err != nil {
		return "", fmt.Errorf("booking: load calendars: %w", err)
	}
	booked, err := s.store.BookingsInRange(ctx, q.BusinessID, q.Date, q.Date)
	if err != nil {
		return "", err
	}

	date, err := time.Parse(availability.DateLayout, q.Date)
	if err != nil {
		return "", fmt.Errorf("booking: bad quote date %q: %w", q.Date, err)
	}
	bucket, ok := availability.BucketFor(q.DurationMin)
	if !ok {
		return "", fmt.Errorf("booking: duration %dmin exceeds longest bookable slot", q.DurationMin)
	}
	for _, cal := range cals {
		day := availability.ComputeDaySlots(cal, date, booked)
		if day == nil {
			continue
		}
		for _, slot := range day.Slots[bucket] {
			if slot == q.Time {
				return cal.ProviderID, nil
			}
		}
	}
	return "", ErrNoProvider
}
