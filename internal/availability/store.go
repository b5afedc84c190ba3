package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound indicates no availability record exists for the requested key.
var ErrNotFound = errors.New("availability: record not found")

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists precomputed availability records. Provider-scoped rows and
// business-aggregated rows share one table; aggregated rows carry an empty
// provider_id.
type Store struct {
	db DB
}

// NewStore creates an availability store over a pgx pool.
func NewStore(db DB) *Store {
	if db == nil {
		panic("availability: db required")
	}
	return &Store{db: db}
}

const upsertDayQuery = `
INSERT INTO availability_slots (business_id, provider_id, date, slots, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (business_id, provider_id, date)
DO UPDATE SET slots = EXCLUDED.slots, updated_at = NOW()`

// UpsertProviderDay writes one provider-day record.
func (s *Store) UpsertProviderDay(ctx context.Context, day DaySlots) error {
	if day.ProviderID == "" {
		return errors.New("availability: provider id required")
	}
	payload, err := json.Marshal(day.Slots)
	if err != nil {
		return fmt.Errorf("availability: encode slots: %w", err)
	}
	if _, err := s.db.Exec(ctx, upsertDayQuery, day.BusinessID, day.ProviderID, day.Date, payload); err != nil {
		return fmt.Errorf("availability: upsert provider day: %w", err)
	}
	return nil
}

// UpsertBusinessDay writes one aggregated business-day record.
func (s *Store) UpsertBusinessDay(ctx context.Context, day AggregatedDaySlots) error {
	payload, err := json.Marshal(day.Slots)
	if err != nil {
		return fmt.Errorf("availability: encode slots: %w", err)
	}
	if _, err := s.db.Exec(ctx, upsertDayQuery, day.BusinessID, "", day.Date, payload); err != nil {
		return fmt.Errorf("availability: upsert business day: %w", err)
	}
	return nil
}

// GetProviderDay loads one provider-day record.
func (s *Store) GetProviderDay(ctx context.Context, providerID, date string) (*DaySlots, error) {
	row := s.db.QueryRow(ctx,
		`SELECT business_id, provider_id, date, slots FROM availability_slots WHERE provider_id = $1 AND date = $2`,
		providerID, date)

	var day DaySlots
	var payload []byte
	if err := row.Scan(&day.BusinessID, &day.ProviderID, &day.Date, &payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("availability: load provider day: %w", err)
	}
	if err := json.Unmarshal(payload, &day.Slots); err != nil {
		return nil, fmt.Errorf("availability: decode slots: %w", err)
	}
	return &day, nil
}

// GetBusinessDay loads one aggregated business-day record.
func (s *Store) GetBusinessDay(ctx context.Context, businessID, date string) (*AggregatedDaySlots, error) {
	row := s.db.QueryRow(ctx,
		`SELECT business_id, date, slots FROM availability_slots WHERE business_id = $1 AND provider_id = '' AND date = $2`,
		businessID, date)

	var day AggregatedDaySlots
	var payload []byte
	if err := row.Scan(&day.BusinessID, &day.Date, &payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("availability: load business day: %w", err)
	}
	if err := json.Unmarshal(payload, &day.Slots); err != nil {
		return nil, fmt.Errorf("availability: decode slots: %w", err)
	}
	return &day, nil
}

// ListProviderDays loads a provider's records in [from, to], ordered by date.
func (s *Store) ListProviderDays(ctx context.Context, providerID, from, to string) ([]DaySlots, error) {
	rows, err := s.db.Query(ctx,
		`SELECT business_id, provider_id, date, slots FROM availability_slots
		 WHERE provider_id = $1 AND date >= $2 AND date <= $3 ORDER BY date`,
		providerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("availability: list provider days: %w", err)
	}
	defer rows.Close()

	var out []DaySlots
	for rows.Next() {
		var day DaySlots
		var payload []byte
		if err := rows.Scan(&day.BusinessID, &day.ProviderID, &day.Date, &payload); err != nil {
			return nil, fmt.Errorf("availability: scan provider day: %w", err)
		}
		if err := json.Unmarshal(payload, &day.Slots); err != nil {
			return nil, fmt.Errorf("availability: decode slots: %w", err)
		}
		out = append(out, day)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("availability: iterate provider days: %w", err)
	}
	return out, nil
}

// ListBusinessDays loads a business's aggregated records in [from, to],
// ordered by date.
func (s *Store) ListBusinessDays(ctx context.Context, businessID, from, to string) ([]AggregatedDaySlots, error) {
	rows, err := s.db.Query(ctx,
		`SELECT business_id, date, slots FROM availability_slots
		 WHERE business_id = $1 AND provider_id = '' AND date >= $2 AND date <= $3 ORDER BY date`,
		businessID, from, to)
	if err != nil {
		return nil, fmt.Errorf("availability: list business days: %w", err)
	}
	defer rows.Close()

	var out []AggregatedDaySlots
	for rows.Next() {
		var day AggregatedDaySlots
		var payload []byte
		if err := rows.Scan(&day.BusinessID, &day.Date, &payload); err != nil {
			return nil, fmt.Errorf("availability: scan business day: %w", err)
		}
		if err := json.Unmarshal(payload, &day.Slots); err != nil {
			return nil, fmt.Errorf("availability: decode slots: %w", err)
		}
		out = append(out, day)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("availability: iterate business days: %w", err)
	}
	return out, nil
}

// DeleteBefore removes records older than the given date for a business.
func (s *Store) DeleteBefore(ctx context.Context, businessID, date string) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM availability_slots WHERE business_id = $1 AND date < $2`,
		businessID, date)
	if err != nil {
		return 0, fmt.Errorf("availability: delete before %s: %w", date, err)
	}
	return tag.RowsAffected(), nil
}
