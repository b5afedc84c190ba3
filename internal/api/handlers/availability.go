package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flowline-ai/flowline/internal/availability"
	"github.com/flowline-ai/flowline/pkg/logging"
)

const (
	defaultSlotCount = 3
	defaultMaxDays   = 10
)

type availabilityService interface {
	RollWindow(ctx context.Context, businessID string) error
	NextSlots(ctx context.Context, businessID string, durationMin, n int) ([]availability.TimeCount, error)
	DaysWithAvailability(ctx context.Context, businessID string, durationMin, maxDays int) ([]string, error)
	HoursForDate(ctx context.Context, businessID, date string, durationMin int) ([]string, error)
}

// AvailabilityHandler exposes the precomputed slot window to staff tooling.
type AvailabilityHandler struct {
	svc    availabilityService
	logger *logging.Logger
}

func NewAvailabilityHandler(svc availabilityService, logger *logging.Logger) *AvailabilityHandler {
	if svc == nil {
		panic("handlers: availability service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AvailabilityHandler{svc: svc, logger: logger}
}

// Refresh handles POST /admin/businesses/{businessID}/availability/refresh.
func (h *AvailabilityHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.RollWindow(r.Context(), businessID); err != nil {
		h.logger.Error("availability refresh failed", "error", err, "business_id", businessID)
		http.Error(w, "refresh failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed", "business_id": businessID})
}

// Slots handles GET /admin/businesses/{businessID}/availability/slots.
func (h *AvailabilityHandler) Slots(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessParam(w, r)
	if !ok {
		return
	}
	durationMin := queryInt(r, "duration_min", 60)
	count := queryInt(r, "count", defaultSlotCount)

	slots, err := h.svc.NextSlots(r.Context(), businessID, durationMin, count)
	if err != nil {
		h.logger.Error("slot lookup failed", "error", err, "business_id", businessID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"business_id": businessID, "slots": slots})
}

// Days handles GET /admin/businesses/{businessID}/availability/days.
func (h *AvailabilityHandler) Days(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessParam(w, r)
	if !ok {
		return
	}
	durationMin := queryInt(r, "duration_min", 60)
	maxDays := queryInt(r, "max_days", defaultMaxDays)

	days, err := h.svc.DaysWithAvailability(r.Context(), businessID, durationMin, maxDays)
	if err != nil {
		h.logger.Error("day lookup failed", "error", err, "business_id", businessID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"business_id": businessID, "days": days})
}

// Hours handles GET /admin/businesses/{businessID}/availability/days/{date}.
func (h *AvailabilityHandler) Hours(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessParam(w, r)
	if !ok {
		return
	}
	date := strings.TrimSpace(chi.URLParam(r, "date"))
	if _, err := time.Parse(availability.DateLayout, date); err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	durationMin := queryInt(r, "duration_min", 60)

	hours, err := h.svc.HoursForDate(r.Context(), businessID, date, durationMin)
	if err != nil {
		h.logger.Error("hour lookup failed", "error", err, "business_id", businessID, "date", date)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"business_id": businessID, "date": date, "hours": hours})
}

func businessParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	businessID := strings.TrimSpace(chi.URLParam(r, "businessID"))
	if businessID == "" {
		http.Error(w, "missing business id", http.StatusBadRequest)
		return "", false
	}
	return businessID, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
