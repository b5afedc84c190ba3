package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowline-ai/flowline/pkg/logging"
)

type stubCatalog struct {
	services []ServiceRef
	err      error
}

func (c stubCatalog) ListServices(ctx context.Context, businessID string) ([]ServiceRef, error) {
	return c.services, c.err
}

func TestClearServiceCascadesThroughAddressTimeAndQuote(t *testing.T) {
	d := &BookingData{
		SelectedService:      &ServiceRef{ID: "svc-1", Name: "Deep Clean"},
		ServiceDuration:      90,
		Address:              "Rua A 10",
		AddressValidated:     true,
		LocationConfirmed:    true,
		Date:                 "2026-09-07",
		Time:                 "10:00",
		QuickBookingSelected: true,
		QuoteID:              "quote-1",
		PaymentLinkGenerated: true,
		UserID:               "user-1",
	}

	d.Clear(CategoryService)

	assert.Nil(t, d.SelectedService)
	// The address depends on the service: an in-shop service has none, a
	// mobile one needs it re-collected.
	assert.Empty(t, d.Address)
	assert.False(t, d.AddressValidated)
	assert.False(t, d.LocationConfirmed)
	assert.Empty(t, d.Date)
	assert.Empty(t, d.Time)
	assert.False(t, d.QuickBookingSelected)
	assert.Empty(t, d.QuoteID)
	assert.False(t, d.PaymentLinkGenerated)
	// The user identity is independent of the service choice.
	assert.Equal(t, "user-1", d.UserID)
}

func TestClearTimeKeepsService(t *testing.T) {
	d := &BookingData{
		SelectedService: &ServiceRef{ID: "svc-1"},
		Date:            "2026-09-07",
		Time:            "10:00",
		QuoteID:         "quote-1",
	}

	d.Clear(CategoryTime)

	assert.NotNil(t, d.SelectedService)
	assert.Empty(t, d.Date)
	assert.Empty(t, d.QuoteID)
}

func TestResetPreservingServices(t *testing.T) {
	d := &BookingData{
		AvailableServices: []ServiceRef{{ID: "svc-1"}, {ID: "svc-2"}},
		SelectedService:   &ServiceRef{ID: "svc-1"},
		Date:              "2026-09-07",
		UserID:            "user-1",
	}

	d.ResetPreservingServices()

	assert.Len(t, d.AvailableServices, 2)
	assert.Nil(t, d.SelectedService)
	assert.Empty(t, d.Date)
	assert.Empty(t, d.UserID)
}

func TestCreateGoalPicksMobileFlow(t *testing.T) {
	m := NewGoalManager(stubCatalog{services: []ServiceRef{
		{ID: "svc-1", Mobile: false},
		{ID: "svc-2", Mobile: true},
	}}, logging.Default())

	goal, err := m.CreateGoal(context.Background(), Participant{ID: "p1", BusinessID: "biz-1"}, GoalServiceBooking, ActionCreate)
	require.NoError(t, err)
	assert.Equal(t, FlowBookingMobile, goal.Flow)
	assert.Len(t, goal.Collected.AvailableServices, 2)

	step, ok := goal.CurrentStep()
	require.True(t, ok)
	assert.Equal(t, StepAskAddress, step)
}

func TestCreateGoalInShopFlow(t *testing.T) {
	m := NewGoalManager(stubCatalog{services: []ServiceRef{{ID: "svc-1"}}}, logging.Default())

	goal, err := m.CreateGoal(context.Background(), Participant{ID: "p1", BusinessID: "biz-1"}, GoalServiceBooking, ActionCreate)
	require.NoError(t, err)
	assert.Equal(t, FlowBookingNoneMobile, goal.Flow)

	step, ok := goal.CurrentStep()
	require.True(t, ok)
	assert.Equal(t, StepSelectService, step)
}

func TestCreateGoalNoServices(t *testing.T) {
	m := NewGoalManager(stubCatalog{}, logging.Default())

	_, err := m.CreateGoal(context.Background(), Participant{ID: "p1", BusinessID: "biz-1"}, GoalServiceBooking, ActionCreate)
	assert.ErrorIs(t, err, ErrNoServices)
}

func TestCreateGoalNonBookingFlowsSkipCatalog(t *testing.T) {
	m := NewGoalManager(stubCatalog{err: errors.New("catalog down")}, logging.Default())

	goal, err := m.CreateGoal(context.Background(), Participant{ID: "p1", BusinessID: "biz-1"}, GoalFAQ, ActionNone)
	require.NoError(t, err)
	assert.Equal(t, FlowFAQ, goal.Flow)

	goal, err = m.CreateGoal(context.Background(), Participant{ID: "p1", BusinessID: "biz-1"}, GoalHumanEscalation, ActionNone)
	require.NoError(t, err)
	assert.Equal(t, FlowEscalation, goal.Flow)
}
