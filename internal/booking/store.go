package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/flowline-ai/flowline/internal/availability"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("booking: not found")

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists quotes and bookings.
type Store struct {
	db DB
}

// NewStore creates a booking store over a pgx pool.
func NewStore(db DB) *Store {
	if db == nil {
		panic("booking: db required")
	}
	return &Store{db: db}
}

// CreateQuote inserts a pending quote and returns its ID.
func (s *Store) CreateQuote(ctx context.Context, q Quote) (string, error) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO quotes (id, business_id, user_id, user_name, service_id, service_name,
		                     duration_min, price_cents, deposit_cents, date, time, address, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())`,
		q.ID, q.BusinessID, q.UserID, q.UserName, q.ServiceID, q.ServiceName,
		q.DurationMin, q.PriceCents, q.DepositCents, q.Date, q.Time, q.Address, string(QuotePending))
	if err != nil {
		return "", fmt.Errorf("booking: create quote: %w", err)
	}
	return q.ID, nil
}

// GetQuote loads one quote by ID.
func (s *Store) GetQuote(ctx context.Context, id string) (*Quote, error) {
	var q Quote
	var status string
	err := s.db.QueryRow(ctx,
		`SELECT id, business_id, user_id, user_name, service_id, service_name,
		        duration_min, price_cents, deposit_cents, date, time, address, status, created_at
		 FROM quotes WHERE id = $1`, id).
		Scan(&q.ID, &q.BusinessID, &q.UserID, &q.UserName, &q.ServiceID, &q.ServiceName,
			&q.DurationMin, &q.PriceCents, &q.DepositCents, &q.Date, &q.Time, &q.Address, &status, &q.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("booking: load quote: %w", err)
	}
	q.Status = QuoteStatus(status)
	return &q, nil
}

// MarkQuotePaid transitions a quote to paid.
func (s *Store) MarkQuotePaid(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE quotes SET status = $2 WHERE id = $1`, id, string(QuotePaid))
	if err != nil {
		return fmt.Errorf("booking: mark quote paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateBooking inserts a confirmed booking and returns its ID.
func (s *Store) CreateBooking(ctx context.Context, b Booking) (string, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO bookings (id, business_id, provider_id, user_id, service_id, quote_id,
		                       date, time, duration_min, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())`,
		b.ID, b.BusinessID, b.ProviderID, b.UserID, b.ServiceID, b.QuoteID,
		b.Date, b.Time, b.DurationMin, string(BookingConfirmed))
	if err != nil {
		return "", fmt.Errorf("booking: create booking: %w", err)
	}
	return b.ID, nil
}

// BookingsInRange returns confirmed bookings for a business between two
// dates (inclusive), shaped for the availability engine.
func (s *Store) BookingsInRange(ctx context.Context, businessID, from, to string) ([]availability.Booking, error) {
	rows, err := s.db.Query(ctx,
		`SELECT provider_id, date, time, duration_min FROM bookings
		 WHERE business_id = $1 AND status = 'confirmed' AND date >= $2 AND date <= $3`,
		businessID, from, to)
	if err != nil {
		return nil, fmt.Errorf("booking: list range: %w", err)
	}
	defer rows.Close()

	var out []availability.Booking
	for rows.Next() {
		var b availability.Booking
		if err := rows.Scan(&b.ProviderID, &b.Date, &b.Time, &b.DurationMin); err != nil {
			return nil, fmt.Errorf("booking: scan range: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("booking: iterate range: %w", err)
	}
	return out, nil
}
