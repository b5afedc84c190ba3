// Command seed loads a demo business into Postgres so the booking flow can be
// exercised locally: a service menu and one provider calendar per provider.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

type seedService struct {
	name        string
	description string
	durationMin int
	priceCents  int
	mobile      bool
}

type seedCalendar struct {
	providerID   string
	timezone     string
	bufferMin    int
	workingHours string
}

var services = []seedService{
	{"Swedish Massage", "Relaxing full-body massage", 60, 9500, false},
	{"Deep Tissue Massage", "Targeted pressure for chronic tension", 90, 13500, false},
	{"Sports Massage", "Pre/post event muscle work", 60, 11000, false},
	{"Mobile Massage", "We come to you", 60, 14500, true},
}

var calendars = []seedCalendar{
	{"prov-ana", "America/New_York", 15, `{
		"mon": {"start": "09:00", "end": "17:00"},
		"tue": {"start": "09:00", "end": "17:00"},
		"wed": {"start": "09:00", "end": "17:00"},
		"thu": {"start": "09:00", "end": "17:00"},
		"fri": {"start": "09:00", "end": "15:00"}
	}`},
	{"prov-ben", "America/New_York", 15, `{
		"tue": {"start": "11:00", "end": "19:00"},
		"wed": {"start": "11:00", "end": "19:00"},
		"thu": {"start": "11:00", "end": "19:00"},
		"fri": {"start": "11:00", "end": "19:00"},
		"sat": {"start": "10:00", "end": "16:00"}
	}`},
}

func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}
	businessID := os.Getenv("DEFAULT_BUSINESS_ID")
	if businessID == "" {
		businessID = "default"
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, svc := range services {
		_, err := db.ExecContext(ctx, `
			INSERT INTO services (id, business_id, name, description, duration_min, price_cents, mobile, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, true)
			ON CONFLICT (id) DO NOTHING
		`, uuid.NewString(), businessID, svc.name, svc.description, svc.durationMin, svc.priceCents, svc.mobile)
		if err != nil {
			log.Fatalf("seed service %q: %v", svc.name, err)
		}
		fmt.Printf("service: %s (%dmin, $%.2f)\n", svc.name, svc.durationMin, float64(svc.priceCents)/100)
	}

	for _, cal := range calendars {
		_, err := db.ExecContext(ctx, `
			INSERT INTO calendar_settings (provider_id, business_id, timezone, buffer_min, working_hours)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (provider_id) DO UPDATE
			SET timezone = EXCLUDED.timezone, buffer_min = EXCLUDED.buffer_min, working_hours = EXCLUDED.working_hours
		`, cal.providerID, businessID, cal.timezone, cal.bufferMin, cal.workingHours)
		if err != nil {
			log.Fatalf("seed calendar %q: %v", cal.providerID, err)
		}
		fmt.Printf("calendar: %s (%s)\n", cal.providerID, cal.timezone)
	}

	fmt.Printf("\nseeded business %q: %d services, %d provider calendars\n", businessID, len(services), len(calendars))
}
