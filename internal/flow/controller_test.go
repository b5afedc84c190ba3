package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowline-ai/flowline/pkg/logging"
)

func bookingGoalAt(t *testing.T, flow FlowKey, step StepID) *UserGoal {
	t.Helper()
	idx := StepIndex(flow, step)
	require.GreaterOrEqual(t, idx, 0, "step %s not in flow %s", step, flow)
	return &UserGoal{
		Type:             GoalServiceBooking,
		Status:           StatusInProgress,
		Flow:             flow,
		CurrentStepIndex: idx,
	}
}

func TestQuickBookingSkipsBrowserStepsOnly(t *testing.T) {
	ctrl := NewController(logging.Default())
	goal := bookingGoalAt(t, FlowBookingNoneMobile, StepHandleTimeChoice)
	goal.Collected.QuickBookingSelected = true

	step, ok := ctrl.AdvanceAndSkip(goal)
	require.True(t, ok)
	assert.Equal(t, StepSelectSpecificTime, step)
}

func TestExistingUserSkipsSignupSteps(t *testing.T) {
	ctrl := NewController(logging.Default())
	goal := bookingGoalAt(t, FlowBookingNoneMobile, StepCheckExistingUser)
	goal.Collected.ExistingUser = true
	goal.Collected.UserID = "user-1"
	goal.Collected.UserName = "Ana"

	step, ok := ctrl.AdvanceAndSkip(goal)
	require.True(t, ok)
	assert.Equal(t, StepAskEmail, step)
}

func TestAdvanceAndSkipExhaustsBlueprint(t *testing.T) {
	ctrl := NewController(logging.Default())
	goal := bookingGoalAt(t, FlowBookingNoneMobile, StepDisplayConfirmedBooking)

	_, ok := ctrl.AdvanceAndSkip(goal)
	assert.False(t, ok)
}

func TestNavigateJumpsToQuoteWhenDataComplete(t *testing.T) {
	ctrl := NewController(logging.Default())
	goal := bookingGoalAt(t, FlowBookingNoneMobile, StepSelectSpecificTime)
	goal.Collected = BookingData{
		SelectedService: &ServiceRef{ID: "svc-1", DurationMin: 90},
		Date:            "2026-09-07",
		Time:            "10:00",
		UserID:          "user-1",
	}

	step, ok := ctrl.Navigate(goal)
	require.True(t, ok)
	assert.Equal(t, StepQuoteSummary, step)
	assert.Equal(t, StepIndex(goal.Flow, StepQuoteSummary), goal.CurrentStepIndex)
}

func TestNavigatePinsOnPendingPayment(t *testing.T) {
	ctrl := NewController(logging.Default())
	goal := bookingGoalAt(t, FlowBookingNoneMobile, StepHandleQuoteChoice)
	goal.Collected = BookingData{
		SelectedService:      &ServiceRef{ID: "svc-1"},
		Date:                 "2026-09-07",
		Time:                 "10:00",
		UserID:               "user-1",
		QuoteID:              "quote-1",
		PaymentLinkGenerated: true,
	}

	step, ok := ctrl.Navigate(goal)
	require.True(t, ok)
	assert.Equal(t, StepHandleQuoteChoice, step)
}

func TestNavigateBrowseModeIsSequential(t *testing.T) {
	ctrl := NewController(logging.Default())
	goal := bookingGoalAt(t, FlowBookingNoneMobile, StepShowDayBrowser)
	goal.Collected.BrowseModeSelected = true
	goal.Collected.SelectedService = &ServiceRef{ID: "svc-1"}

	step, ok := ctrl.Navigate(goal)
	require.True(t, ok)
	assert.Equal(t, StepSelectSpecificDay, step)
}

func TestNavigateStopsAtFirstOpenQuestion(t *testing.T) {
	ctrl := NewController(logging.Default())
	goal := bookingGoalAt(t, FlowBookingNoneMobile, StepSelectService)
	goal.Collected.SelectedService = &ServiceRef{ID: "svc-1"}

	step, ok := ctrl.Navigate(goal)
	require.True(t, ok)
	assert.Equal(t, StepShowAvailableTimes, step)
}

func TestMapToStepExactAndKeyword(t *testing.T) {
	ctrl := NewController(logging.Default())
	goal := bookingGoalAt(t, FlowBookingNoneMobile, StepQuoteSummary)

	step, ok := ctrl.MapToStep(goal, "selectService")
	require.True(t, ok)
	assert.Equal(t, StepSelectService, step)

	step, ok = ctrl.MapToStep(goal, "pick a different time")
	require.True(t, ok)
	assert.Equal(t, StepShowAvailableTimes, step)

	// Address steps only exist in the mobile blueprint.
	_, ok = ctrl.MapToStep(goal, "change the address")
	assert.False(t, ok)
}

func TestGoBackClearsCategoryDownstream(t *testing.T) {
	ctrl := NewController(logging.Default())
	goal := bookingGoalAt(t, FlowBookingNoneMobile, StepQuoteSummary)
	goal.Collected = BookingData{
		SelectedService: &ServiceRef{ID: "svc-1"},
		Date:            "2026-09-07",
		Time:            "10:00",
		UserID:          "user-1",
		QuoteID:         "quote-1",
	}

	step, ok := ctrl.GoBack(goal, "showAvailableTimes")
	require.True(t, ok)
	assert.Equal(t, StepShowAvailableTimes, step)
	assert.Empty(t, goal.Collected.Date)
	assert.Empty(t, goal.Collected.Time)
	assert.Empty(t, goal.Collected.QuoteID)
	// Going back to the time choice keeps the chosen service and user.
	assert.NotNil(t, goal.Collected.SelectedService)
	assert.Equal(t, "user-1", goal.Collected.UserID)
}

func TestGoBackToServiceClearsAddress(t *testing.T) {
	ctrl := NewController(logging.Default())
	goal := bookingGoalAt(t, FlowBookingNoneMobile, StepQuoteSummary)
	goal.Collected = BookingData{
		SelectedService:   &ServiceRef{ID: "svc-1"},
		Address:           "123 Main St",
		AddressValidated:  true,
		LocationConfirmed: true,
		Date:              "2026-09-07",
		Time:              "10:00",
		UserID:            "user-1",
		QuoteID:           "quote-1",
	}

	step, ok := ctrl.GoBack(goal, "change my service")
	require.True(t, ok)
	assert.Equal(t, StepSelectService, step)
	assert.Nil(t, goal.Collected.SelectedService)
	assert.Empty(t, goal.Collected.Address)
	assert.False(t, goal.Collected.AddressValidated)
	assert.False(t, goal.Collected.LocationConfirmed)
	assert.Equal(t, "user-1", goal.Collected.UserID)
}

func TestGoBackRefusesForwardTarget(t *testing.T) {
	ctrl := NewController(logging.Default())
	goal := bookingGoalAt(t, FlowBookingNoneMobile, StepSelectService)
	goal.Collected.SelectedService = &ServiceRef{ID: "svc-1"}

	step, ok := ctrl.GoBack(goal, "quoteSummary")
	require.True(t, ok)
	assert.Equal(t, StepSelectService, step)
	assert.NotNil(t, goal.Collected.SelectedService, "refused go-back must not clear data")
}

func TestGoBackDefaultSkipsBypassedSteps(t *testing.T) {
	ctrl := NewController(logging.Default())
	goal := bookingGoalAt(t, FlowBookingNoneMobile, StepSelectSpecificTime)
	goal.Collected.QuickBookingSelected = true
	goal.Collected.SelectedService = &ServiceRef{ID: "svc-1"}

	step, ok := ctrl.GoBack(goal, "")
	require.True(t, ok)
	assert.Equal(t, StepHandleTimeChoice, step)
}

func TestRestartPreservesServiceCatalog(t *testing.T) {
	ctrl := NewController(logging.Default())
	goal := bookingGoalAt(t, FlowBookingNoneMobile, StepAskEmail)
	goal.Collected = BookingData{
		AvailableServices: []ServiceRef{{ID: "svc-1"}, {ID: "svc-2"}},
		SelectedService:   &ServiceRef{ID: "svc-1"},
		Date:              "2026-09-07",
		Time:              "10:00",
		UserID:            "user-1",
	}

	step, ok := ctrl.Restart(goal)
	require.True(t, ok)
	assert.Equal(t, StepSelectService, step)
	assert.Zero(t, goal.CurrentStepIndex)
	assert.Len(t, goal.Collected.AvailableServices, 2)
	assert.Nil(t, goal.Collected.SelectedService)
	assert.Empty(t, goal.Collected.UserID)
}
