package flow

import "fmt"

// StepID names a single step handler. Blueprints are validated against the
// registry at startup, so an unregistered StepID is a wiring bug, not a
// runtime surprise.
type StepID string

const (
	StepAskAddress      StepID = "askAddress"
	StepValidateAddress StepID = "validateAddress"
	StepConfirmLocation StepID = "confirmLocation"

	StepSelectService StepID = "selectService"

	StepShowAvailableTimes StepID = "showAvailableTimes"
	StepHandleTimeChoice   StepID = "handleTimeChoice"
	StepShowDayBrowser     StepID = "showDayBrowser"
	StepSelectSpecificDay  StepID = "selectSpecificDay"
	StepShowHoursForDay    StepID = "showHoursForDay"
	StepSelectSpecificTime StepID = "selectSpecificTime"

	StepCheckExistingUser StepID = "checkExistingUser"
	StepHandleUserStatus  StepID = "handleUserStatus"
	StepAskUserName       StepID = "askUserName"
	StepCreateNewUser     StepID = "createNewUser"
	StepAskEmail          StepID = "askEmail"

	StepQuoteSummary      StepID = "quoteSummary"
	StepHandleQuoteChoice StepID = "handleQuoteChoice"

	StepCreateBooking           StepID = "createBooking"
	StepDisplayConfirmedBooking StepID = "displayConfirmedBooking"

	StepAnswerFAQ       StepID = "answerFaqQuestion"
	StepEscalateToHuman StepID = "escalateToHuman"
	StepManageAccount   StepID = "manageAccount"
)

// FlowKey selects a blueprint.
type FlowKey string

const (
	FlowBookingMobile     FlowKey = "bookingCreatingForMobileService"
	FlowBookingNoneMobile FlowKey = "bookingCreatingForNoneMobileService"
	FlowFAQ               FlowKey = "faqHandling"
	FlowEscalation        FlowKey = "humanEscalation"
	FlowAccount           FlowKey = "accountManagement"
)

// bookingTail is shared by both booking blueprints once the service is chosen.
var bookingTail = []StepID{
	StepShowAvailableTimes,
	StepHandleTimeChoice,
	StepShowDayBrowser,
	StepSelectSpecificDay,
	StepShowHoursForDay,
	StepSelectSpecificTime,
	StepCheckExistingUser,
	StepHandleUserStatus,
	StepAskUserName,
	StepCreateNewUser,
	StepAskEmail,
	StepQuoteSummary,
	StepHandleQuoteChoice,
	StepCreateBooking,
	StepDisplayConfirmedBooking,
}

var blueprints = map[FlowKey][]StepID{
	FlowBookingMobile: append([]StepID{
		StepAskAddress,
		StepValidateAddress,
		StepSelectService,
		StepConfirmLocation,
	}, bookingTail...),
	FlowBookingNoneMobile: append([]StepID{
		StepSelectService,
	}, bookingTail...),
	FlowFAQ:        {StepAnswerFAQ},
	FlowEscalation: {StepEscalateToHuman},
	FlowAccount:    {StepManageAccount},
}

// Steps returns the ordered step list for a flow.
func Steps(flow FlowKey) []StepID {
	return blueprints[flow]
}

// StepAt returns the step at the given index, or false when the index is past
// the end of the blueprint.
func StepAt(flow FlowKey, index int) (StepID, bool) {
	steps := blueprints[flow]
	if index < 0 || index >= len(steps) {
		return "", false
	}
	return steps[index], true
}

// StepIndex returns the position of a step within a flow, or -1.
func StepIndex(flow FlowKey, step StepID) int {
	for i, s := range blueprints[flow] {
		if s == step {
			return i
		}
	}
	return -1
}

// MustValidateBlueprints panics unless every blueprint step has a registered
// handler. Call it once during startup.
func MustValidateBlueprints(reg *Registry) {
	for flow, steps := range blueprints {
		for _, step := range steps {
			if _, ok := reg.Handler(step); !ok {
				panic(fmt.Sprintf("flow: blueprint %s references unregistered step %s", flow, step))
			}
		}
	}
}
