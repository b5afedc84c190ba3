package steps

import (
	"github.com/flowline-ai/flowline/internal/flow"
)

// NewRegistry builds the handler registry for every blueprint step and
// validates all blueprints against it, so a missing handler fails at startup.
func NewRegistry(deps Deps) *flow.Registry {
	deps.validate()

	reg := flow.NewRegistry()

	reg.Register(flow.StepAskAddress, &askAddress{})
	reg.Register(flow.StepValidateAddress, &validateAddress{})
	reg.Register(flow.StepConfirmLocation, &confirmLocation{})

	reg.Register(flow.StepSelectService, &selectService{})

	reg.Register(flow.StepShowAvailableTimes, &showAvailableTimes{deps: deps})
	reg.Register(flow.StepHandleTimeChoice, &handleTimeChoice{})
	reg.Register(flow.StepShowDayBrowser, &showDayBrowser{deps: deps})
	reg.Register(flow.StepSelectSpecificDay, &selectSpecificDay{})
	reg.Register(flow.StepShowHoursForDay, &showHoursForDay{deps: deps})
	reg.Register(flow.StepSelectSpecificTime, &selectSpecificTime{})

	reg.Register(flow.StepCheckExistingUser, &checkExistingUser{deps: deps})
	reg.Register(flow.StepHandleUserStatus, &handleUserStatus{deps: deps})
	reg.Register(flow.StepAskUserName, &askUserName{})
	reg.Register(flow.StepCreateNewUser, &createNewUser{deps: deps})
	reg.Register(flow.StepAskEmail, &askEmail{deps: deps})

	reg.Register(flow.StepQuoteSummary, &quoteSummary{deps: deps})
	reg.Register(flow.StepHandleQuoteChoice, &handleQuoteChoice{deps: deps})

	reg.Register(flow.StepCreateBooking, &createBooking{deps: deps})
	reg.Register(flow.StepDisplayConfirmedBooking, &displayConfirmedBooking{})

	reg.Register(flow.StepAnswerFAQ, &answerFAQ{deps: deps})
	reg.Register(flow.StepEscalateToHuman, &escalateToHuman{deps: deps})
	reg.Register(flow.StepManageAccount, &manageAccount{deps: deps})

	flow.MustValidateBlueprints(reg)
	return reg
}
