package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flowline-ai/flowline/internal/availability"
	"github.com/flowline-ai/flowline/pkg/logging"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("catalog: not found")

// Store provides catalog persistence over PostgreSQL.
type Store struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewStore creates a catalog store.
func NewStore(db *sql.DB, logger *logging.Logger) *Store {
	if db == nil {
		panic("catalog: db required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{db: db, logger: logger}
}

// ListServices returns the active services for a business, ordered by name.
func (s *Store) ListServices(ctx context.Context, businessID string) ([]Service, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, business_id, name, COALESCE(description, ''), duration_min, price_cents, mobile, created_at
		 FROM services WHERE business_id = $1 AND active ORDER BY name`,
		businessID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list services: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Service
	for rows.Next() {
		var svc Service
		if err := rows.Scan(&svc.ID, &svc.BusinessID, &svc.Name, &svc.Description, &svc.DurationMin, &svc.PriceCents, &svc.Mobile, &svc.CreatedAt); err != nil {
			return nil, fmt.Errorf("catalog: scan service: %w", err)
		}
		out = append(out, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate services: %w", err)
	}
	return out, nil
}

// GetService loads one service by ID.
func (s *Store) GetService(ctx context.Context, id string) (*Service, error) {
	var svc Service
	err := s.db.QueryRowContext(ctx,
		`SELECT id, business_id, name, COALESCE(description, ''), duration_min, price_cents, mobile, created_at
		 FROM services WHERE id = $1`,
		id).Scan(&svc.ID, &svc.BusinessID, &svc.Name, &svc.Description, &svc.DurationMin, &svc.PriceCents, &svc.Mobile, &svc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: load service: %w", err)
	}
	return &svc, nil
}

// ListCalendarSettings returns every provider calendar for a business.
func (s *Store) ListCalendarSettings(ctx context.Context, businessID string) ([]CalendarSettings, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider_id, business_id, timezone, buffer_min, working_hours
		 FROM calendar_settings WHERE business_id = $1`,
		businessID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list calendar settings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []CalendarSettings
	for rows.Next() {
		var cs CalendarSettings
		var hours []byte
		if err := rows.Scan(&cs.ProviderID, &cs.BusinessID, &cs.Timezone, &cs.BufferMin, &hours); err != nil {
			return nil, fmt.Errorf("catalog: scan calendar settings: %w", err)
		}
		if err := json.Unmarshal(hours, &cs.WorkingHours); err != nil {
			return nil, fmt.Errorf("catalog: decode working hours: %w", err)
		}
		out = append(out, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate calendar settings: %w", err)
	}
	return out, nil
}

// ProviderCalendars adapts the stored calendar settings to the availability
// engine's shape.
func (s *Store) ProviderCalendars(ctx context.Context, businessID string) ([]availability.ProviderCalendar, error) {
	settings, err := s.ListCalendarSettings(ctx, businessID)
	if err != nil {
		return nil, err
	}

	out := make([]availability.ProviderCalendar, 0, len(settings))
	for _, cs := range settings {
		cal := availability.ProviderCalendar{
			ProviderID:   cs.ProviderID,
			BusinessID:   cs.BusinessID,
			BufferMin:    cs.BufferMin,
			Timezone:     cs.Timezone,
			WorkingHours: make(map[time.Weekday]availability.WorkingHours),
		}
		for day := time.Sunday; day <= time.Saturday; day++ {
			if hours, ok := cs.HoursFor(day); ok {
				cal.WorkingHours[day] = availability.WorkingHours{Start: hours.Start, End: hours.End}
			}
		}
		out = append(out, cal)
	}
	return out, nil
}

// FindUserByPhone looks up a customer by channel phone number.
func (s *Store) FindUserByPhone(ctx context.Context, businessID, phone string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, business_id, name, phone, COALESCE(email, ''), created_at
		 FROM users WHERE business_id = $1 AND phone = $2`,
		businessID, phone).Scan(&u.ID, &u.BusinessID, &u.Name, &u.Phone, &u.Email, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: find user by phone: %w", err)
	}
	return &u, nil
}

// GetUser loads one customer by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, business_id, name, phone, COALESCE(email, ''), created_at
		 FROM users WHERE id = $1`,
		id).Scan(&u.ID, &u.BusinessID, &u.Name, &u.Phone, &u.Email, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: load user: %w", err)
	}
	return &u, nil
}

// CreateUser inserts a new customer record and returns its ID.
func (s *Store) CreateUser(ctx context.Context, u User) (string, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, business_id, name, phone, email, created_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), NOW())`,
		u.ID, u.BusinessID, u.Name, u.Phone, u.Email)
	if err != nil {
		return "", fmt.Errorf("catalog: create user: %w", err)
	}
	s.logger.Info("user created", "user_id", u.ID, "business_id", u.BusinessID)
	return u.ID, nil
}

// UpdateUserEmail sets a customer's email address.
func (s *Store) UpdateUserEmail(ctx context.Context, userID, email string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET email = $2 WHERE id = $1`,
		userID, email)
	if err != nil {
		return fmt.Errorf("catalog: update user email: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
