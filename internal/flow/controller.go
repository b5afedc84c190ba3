package flow

import (
	"strings"

	"github.com/flowline-ai/flowline/pkg/logging"
)

// quickBookingSkips are the day-browsing steps a participant bypasses by
// tapping one of the offered quick slots. The flow still lands on
// selectSpecificTime so the chosen slot is confirmed through the normal path.
var quickBookingSkips = map[StepID]bool{
	StepShowDayBrowser:    true,
	StepSelectSpecificDay: true,
	StepShowHoursForDay:   true,
}

// existingUserSkips are the sign-up steps a recognized returning user bypasses.
var existingUserSkips = map[StepID]bool{
	StepHandleUserStatus: true,
	StepAskUserName:      true,
	StepCreateNewUser:    true,
}

// stepNeedsData reports whether a step still has work to do given what has
// been collected. Used by smart navigation to find the first open question.
var stepNeedsData = map[StepID]func(d *BookingData) bool{
	StepAskAddress:      func(d *BookingData) bool { return d.Address == "" },
	StepValidateAddress: func(d *BookingData) bool { return !d.AddressValidated },
	StepConfirmLocation: func(d *BookingData) bool { return !d.LocationConfirmed },
	StepSelectService:   func(d *BookingData) bool { return d.SelectedService == nil },

	StepShowAvailableTimes: func(d *BookingData) bool { return d.Date == "" || d.Time == "" },
	StepHandleTimeChoice:   func(d *BookingData) bool { return d.Date == "" || d.Time == "" },
	StepShowDayBrowser:     func(d *BookingData) bool { return d.Date == "" },
	StepSelectSpecificDay:  func(d *BookingData) bool { return d.Date == "" },
	StepShowHoursForDay:    func(d *BookingData) bool { return d.Time == "" },
	StepSelectSpecificTime: func(d *BookingData) bool { return d.Time == "" },

	StepCheckExistingUser: func(d *BookingData) bool { return d.UserID == "" },
	StepHandleUserStatus:  func(d *BookingData) bool { return d.UserID == "" },
	StepAskUserName:       func(d *BookingData) bool { return d.UserName == "" },
	StepCreateNewUser:     func(d *BookingData) bool { return d.UserID == "" },
	StepAskEmail:          func(d *BookingData) bool { return d.Email == "" },

	StepQuoteSummary:      func(d *BookingData) bool { return d.QuoteID == "" },
	StepHandleQuoteChoice: func(d *BookingData) bool { return !d.PaymentCompleted },

	StepCreateBooking:           func(d *BookingData) bool { return d.ConfirmedBookingID == "" },
	StepDisplayConfirmedBooking: func(d *BookingData) bool { return true },
}

// stepCategory maps a step to the data category it owns, for cascade
// clearing when the participant goes back to it.
var stepCategory = map[StepID]DataCategory{
	StepAskAddress:      CategoryAddress,
	StepValidateAddress: CategoryAddress,
	StepConfirmLocation: CategoryAddress,
	StepSelectService:   CategoryService,

	StepShowAvailableTimes: CategoryTime,
	StepHandleTimeChoice:   CategoryTime,
	StepShowDayBrowser:     CategoryTime,
	StepSelectSpecificDay:  CategoryTime,
	StepShowHoursForDay:    CategoryTime,
	StepSelectSpecificTime: CategoryTime,

	StepCheckExistingUser: CategoryUser,
	StepHandleUserStatus:  CategoryUser,
	StepAskUserName:       CategoryUser,
	StepCreateNewUser:     CategoryUser,
	StepAskEmail:          CategoryUser,

	StepQuoteSummary:      CategoryQuote,
	StepHandleQuoteChoice: CategoryQuote,
}

// Controller resolves where the flow goes next: skipping, smart jumps,
// go-back, and restarts. It never talks to the participant; it only moves
// the goal's position and trims collected data.
type Controller struct {
	logger *logging.Logger
}

// NewController constructs a flow controller.
func NewController(logger *logging.Logger) *Controller {
	if logger == nil {
		logger = logging.Default()
	}
	return &Controller{logger: logger}
}

// ShouldSkip reports whether a step is bypassed given the collected data.
func (c *Controller) ShouldSkip(step StepID, data *BookingData) bool {
	if data == nil {
		return false
	}
	if data.QuickBookingSelected && quickBookingSkips[step] {
		return true
	}
	if data.ExistingUser && existingUserSkips[step] {
		return true
	}
	return false
}

// AdvanceAndSkip moves the goal one step forward, then keeps moving while
// the landed step is skippable. Returns the landed step, or false when the
// blueprint is exhausted.
func (c *Controller) AdvanceAndSkip(goal *UserGoal) (StepID, bool) {
	if goal == nil {
		return "", false
	}
	for {
		goal.CurrentStepIndex++
		step, ok := StepAt(goal.Flow, goal.CurrentStepIndex)
		if !ok {
			return "", false
		}
		if !c.ShouldSkip(step, &goal.Collected) {
			return step, true
		}
		c.logger.Debug("skipping step", "step", step, "flow", goal.Flow)
	}
}

// Navigate picks the next step after the current one completed.
//
// Browse mode is strictly sequential. Complete booking data jumps straight
// to the quote. A generated-but-unpaid payment link pins the flow in place.
// Otherwise the first future step whose data is still missing wins.
func (c *Controller) Navigate(goal *UserGoal) (StepID, bool) {
	if goal == nil {
		return "", false
	}
	data := &goal.Collected

	if data.BrowseModeSelected {
		return c.AdvanceAndSkip(goal)
	}

	if data.PaymentLinkGenerated && !data.PaymentCompleted {
		step, ok := goal.CurrentStep()
		return step, ok
	}

	if data.HasCompleteBookingData() && data.QuoteID == "" {
		if idx := StepIndex(goal.Flow, StepQuoteSummary); idx > goal.CurrentStepIndex {
			goal.CurrentStepIndex = idx
			c.logger.Debug("jumping to quote summary", "flow", goal.Flow)
			return StepQuoteSummary, true
		}
	}

	steps := Steps(goal.Flow)
	for i := goal.CurrentStepIndex + 1; i < len(steps); i++ {
		step := steps[i]
		if c.ShouldSkip(step, data) {
			continue
		}
		needs, known := stepNeedsData[step]
		if !known || needs(data) {
			goal.CurrentStepIndex = i
			return step, true
		}
	}
	return c.AdvanceAndSkip(goal)
}

// MapToStep resolves an oracle-provided step name to a step in the goal's
// flow: exact match first, then keyword category.
func (c *Controller) MapToStep(goal *UserGoal, name string) (StepID, bool) {
	if goal == nil || name == "" {
		return "", false
	}
	if idx := StepIndex(goal.Flow, StepID(name)); idx >= 0 {
		return StepID(name), true
	}

	lower := strings.ToLower(name)
	var candidate StepID
	switch {
	case strings.Contains(lower, "service"):
		candidate = StepSelectService
	case strings.Contains(lower, "address") || strings.Contains(lower, "location"):
		candidate = StepAskAddress
	case strings.Contains(lower, "day") || strings.Contains(lower, "date"):
		candidate = StepShowDayBrowser
	case strings.Contains(lower, "time") || strings.Contains(lower, "hour") || strings.Contains(lower, "slot"):
		candidate = StepShowAvailableTimes
	case strings.Contains(lower, "user") || strings.Contains(lower, "name"):
		candidate = StepAskUserName
	case strings.Contains(lower, "quote") || strings.Contains(lower, "summary") || strings.Contains(lower, "price"):
		candidate = StepQuoteSummary
	default:
		return "", false
	}
	if StepIndex(goal.Flow, candidate) < 0 {
		return "", false
	}
	return candidate, true
}

// GoBack moves the goal to an earlier step and clears the data that step
// (and everything depending on it) produced. An empty target means the
// previous non-skipped step. Forward targets are refused.
func (c *Controller) GoBack(goal *UserGoal, target string) (StepID, bool) {
	if goal == nil {
		return "", false
	}

	idx := -1
	if target != "" {
		step, ok := c.MapToStep(goal, target)
		if ok {
			idx = StepIndex(goal.Flow, step)
		}
	}
	if idx < 0 {
		for i := goal.CurrentStepIndex - 1; i >= 0; i-- {
			step, _ := StepAt(goal.Flow, i)
			if !c.ShouldSkip(step, &goal.Collected) {
				idx = i
				break
			}
		}
	}
	if idx < 0 || idx > goal.CurrentStepIndex {
		step, ok := goal.CurrentStep()
		return step, ok
	}

	goal.CurrentStepIndex = idx
	step, _ := StepAt(goal.Flow, idx)
	if cat, ok := stepCategory[step]; ok {
		goal.Collected.Clear(cat)
	}
	c.logger.Info("went back", "step", step, "flow", goal.Flow)
	return step, true
}

// Restart rewinds the goal to its first step. Only the service catalog
// survives; the transcript is kept.
func (c *Controller) Restart(goal *UserGoal) (StepID, bool) {
	if goal == nil {
		return "", false
	}
	goal.CurrentStepIndex = 0
	goal.Collected.ResetPreservingServices()
	goal.Status = StatusInProgress
	c.logger.Info("flow restarted", "flow", goal.Flow)
	return goal.CurrentStep()
}
