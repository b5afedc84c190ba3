package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowline-ai/flowline/pkg/logging"
)

// GoalType identifies what the participant is trying to accomplish.
type GoalType string

const (
	GoalServiceBooking  GoalType = "serviceBooking"
	GoalFAQ             GoalType = "frequentlyAskedQuestion"
	GoalAccount         GoalType = "accountManagement"
	GoalHumanEscalation GoalType = "humanAgentEscalation"
)

// GoalAction qualifies the goal (create a booking vs. update one).
type GoalAction string

const (
	ActionCreate GoalAction = "create"
	ActionUpdate GoalAction = "update"
	ActionDelete GoalAction = "delete"
	ActionNone   GoalAction = "none"
)

// GoalStatus tracks goal lifecycle.
type GoalStatus string

const (
	StatusInProgress GoalStatus = "inProgress"
	StatusCompleted  GoalStatus = "completed"
	StatusFailed     GoalStatus = "failed"
)

// HistoryRole identifies who authored a history entry.
type HistoryRole string

const (
	RoleUser      HistoryRole = "user"
	RoleAssistant HistoryRole = "assistant"
)

// HistoryEntry is one message in the conversation transcript.
type HistoryEntry struct {
	Role      HistoryRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// ServiceRef is the subset of a catalog service the flow needs to carry around.
type ServiceRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DurationMin int    `json:"durationMin"`
	PriceCents  int    `json:"priceCents"`
	Mobile      bool   `json:"mobile"`
}

// SlotOption is a concrete offer the participant can pick with one tap.
type SlotOption struct {
	Date  string `json:"date"` // 2006-01-02
	Time  string `json:"time"` // 15:04
	Label string `json:"label"`
}

// BookingData is the typed state collected across booking steps. Zero values
// mean "not collected yet"; navigation decisions key off these fields.
type BookingData struct {
	AvailableServices []ServiceRef `json:"availableServices,omitempty"`
	SelectedService   *ServiceRef  `json:"selectedService,omitempty"`
	ServiceDuration   int          `json:"serviceDuration,omitempty"`

	Date       string `json:"date,omitempty"`
	Time       string `json:"time,omitempty"`
	ProviderID string `json:"providerId,omitempty"`

	Address           string `json:"address,omitempty"`
	AddressValidated  bool   `json:"addressValidated,omitempty"`
	LocationConfirmed bool   `json:"locationConfirmed,omitempty"`

	QuickBookingSelected bool         `json:"quickBookingSelected,omitempty"`
	BrowseModeSelected   bool         `json:"browseModeSelected,omitempty"`
	NextSlots            []SlotOption `json:"nextSlots,omitempty"`
	AvailableDays        []string     `json:"availableDays,omitempty"`
	AvailableHours       []string     `json:"availableHours,omitempty"`

	UserName     string `json:"userName,omitempty"`
	UserID       string `json:"userId,omitempty"`
	Email        string `json:"email,omitempty"`
	ExistingUser bool   `json:"existingUser,omitempty"`

	QuoteID         string `json:"quoteId,omitempty"`
	QuoteTotalCents int    `json:"quoteTotalCents,omitempty"`

	PaymentLinkGenerated bool   `json:"paymentLinkGenerated,omitempty"`
	PaymentLink          string `json:"paymentLink,omitempty"`
	PaymentCompleted     bool   `json:"paymentCompleted,omitempty"`

	ConfirmedBookingID string `json:"confirmedBookingId,omitempty"`
	LastError          string `json:"lastError,omitempty"`
}

// HasCompleteBookingData reports whether everything needed for a quote is set.
func (d *BookingData) HasCompleteBookingData() bool {
	if d == nil {
		return false
	}
	return d.SelectedService != nil && d.Date != "" && d.Time != "" && d.UserID != ""
}

// DataCategory groups collected fields so going back to a step can clear
// everything that step (and its dependents) produced.
type DataCategory string

const (
	CategoryService DataCategory = "service"
	CategoryTime    DataCategory = "time"
	CategoryAddress DataCategory = "address"
	CategoryUser    DataCategory = "user"
	CategoryQuote   DataCategory = "quote"
	CategoryNone    DataCategory = ""
)

// Clear wipes the fields owned by the category plus everything downstream of
// it: a new service invalidates the address, the chosen time, and the quote;
// a new time invalidates the quote; a new quote invalidates payment state.
func (d *BookingData) Clear(cat DataCategory) {
	if d == nil {
		return
	}
	switch cat {
	case CategoryService:
		d.SelectedService = nil
		d.ServiceDuration = 0
		d.Clear(CategoryAddress)
		d.Clear(CategoryTime)
	case CategoryTime:
		d.Date = ""
		d.Time = ""
		d.ProviderID = ""
		d.QuickBookingSelected = false
		d.BrowseModeSelected = false
		d.NextSlots = nil
		d.AvailableDays = nil
		d.AvailableHours = nil
		d.Clear(CategoryQuote)
	case CategoryAddress:
		d.Address = ""
		d.AddressValidated = false
		d.LocationConfirmed = false
	case CategoryUser:
		d.UserName = ""
		d.UserID = ""
		d.Email = ""
		d.ExistingUser = false
	case CategoryQuote:
		d.QuoteID = ""
		d.QuoteTotalCents = 0
		d.PaymentLinkGenerated = false
		d.PaymentLink = ""
		d.PaymentCompleted = false
	}
}

// ResetPreservingServices empties collected data but keeps the service
// catalog so a restarted flow does not need to re-fetch it.
func (d *BookingData) ResetPreservingServices() {
	if d == nil {
		return
	}
	services := d.AvailableServices
	*d = BookingData{AvailableServices: services}
}

// UserGoal is the active unit of work for a participant.
type UserGoal struct {
	Type             GoalType       `json:"type"`
	Action           GoalAction     `json:"action"`
	Status           GoalStatus     `json:"status"`
	Flow             FlowKey        `json:"flow"`
	CurrentStepIndex int            `json:"currentStepIndex"`
	Collected        BookingData    `json:"collected"`
	History          []HistoryEntry `json:"history"`
	CreatedAt        time.Time      `json:"createdAt"`
}

// CurrentStep returns the step the goal is positioned on.
func (g *UserGoal) CurrentStep() (StepID, bool) {
	if g == nil {
		return "", false
	}
	return StepAt(g.Flow, g.CurrentStepIndex)
}

// AppendHistory records a transcript entry on the goal.
func (g *UserGoal) AppendHistory(role HistoryRole, content string) {
	if g == nil || content == "" {
		return
	}
	g.History = append(g.History, HistoryEntry{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
}

// ErrNoServices indicates the business has no bookable services configured.
var ErrNoServices = errors.New("flow: no services available")

// ServiceCatalog supplies the bookable services for a business.
type ServiceCatalog interface {
	ListServices(ctx context.Context, businessID string) ([]ServiceRef, error)
}

// GoalManager creates goals and picks the right blueprint for them.
type GoalManager struct {
	catalog ServiceCatalog
	logger  *logging.Logger
}

// NewGoalManager constructs a goal manager.
func NewGoalManager(catalog ServiceCatalog, logger *logging.Logger) *GoalManager {
	if catalog == nil {
		panic("flow: service catalog required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &GoalManager{catalog: catalog, logger: logger}
}

// CreateGoal starts a new goal for the participant. Booking goals pick the
// mobile blueprint when any available service is performed at the customer's
// address, since those flows must collect the address first.
func (m *GoalManager) CreateGoal(ctx context.Context, participant Participant, goalType GoalType, action GoalAction) (*UserGoal, error) {
	goal := &UserGoal{
		Type:      goalType,
		Action:    action,
		Status:    StatusInProgress,
		CreatedAt: time.Now().UTC(),
	}

	switch goalType {
	case GoalServiceBooking:
		services, err := m.catalog.ListServices(ctx, participant.BusinessID)
		if err != nil {
			return nil, fmt.Errorf("flow: list services: %w", err)
		}
		if len(services) == 0 {
			return nil, ErrNoServices
		}
		goal.Collected.AvailableServices = services
		goal.Flow = FlowBookingNoneMobile
		for _, svc := range services {
			if svc.Mobile {
				goal.Flow = FlowBookingMobile
				break
			}
		}
	case GoalFAQ:
		goal.Flow = FlowFAQ
	case GoalHumanEscalation:
		goal.Flow = FlowEscalation
	case GoalAccount:
		goal.Flow = FlowAccount
	default:
		return nil, fmt.Errorf("flow: unknown goal type %q", goalType)
	}

	m.logger.Info("goal created",
		"participant_id", participant.ID,
		"goal_type", goalType,
		"flow", goal.Flow,
	)
	return goal, nil
}
