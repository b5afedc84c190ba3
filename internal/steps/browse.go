package steps

import (
	"context"
	"time"

	"github.com/flowline-ai/flowline/internal/availability"
	"github.com/flowline-ai/flowline/internal/flow"
)

const browseDayCount = 8

// showDayBrowser lists the days that still have an opening for the chosen
// service. selectSpecificDay applies the pick.
type showDayBrowser struct {
	deps Deps
}

func (h *showDayBrowser) Prompt(ctx context.Context, sc *flow.StepContext) (string, []flow.Button, error) {
	data := sc.Data()
	days, err := h.deps.Availability.DaysWithAvailability(ctx, sc.Participant.BusinessID, data.ServiceDuration, browseDayCount)
	if err != nil {
		return "", nil, err
	}
	if len(days) == 0 {
		return "I'm sorry — the calendar is fully booked for the next few weeks. Please check back soon!", nil, nil
	}

	data.AvailableDays = days
	buttons := make([]flow.Button, 0, len(days))
	for _, d := range days {
		buttons = append(buttons, flow.Button{Label: dayLabel(d), Payload: payloadDayPrefix + d})
	}
	return "Which day works for you?", buttons, nil
}

func (h *showDayBrowser) Validate(ctx context.Context, sc *flow.StepContext, input string) flow.ValidationResult {
	return flow.Defer()
}

func (h *showDayBrowser) Process(ctx context.Context, sc *flow.StepContext, input string) error {
	return nil
}

func (h *showDayBrowser) AutoAdvance(sc *flow.StepContext) bool { return false }

// selectSpecificDay records the chosen day.
type selectSpecificDay struct{}

func (h *selectSpecificDay) Prompt(ctx context.Context, sc *flow.StepContext) (string, []flow.Button, error) {
	return "Tap one of the days above.", nil, nil
}

func (h *selectSpecificDay) Validate(ctx context.Context, sc *flow.StepContext, input string) flow.ValidationResult {
	date, ok := parseDayPayload(input)
	if !ok {
		return flow.Defer()
	}
	if date < time.Now().Format(availability.DateLayout) {
		return flow.Reject("That day has already passed. Pick one of the days below.")
	}
	return flow.Accept()
}

func (h *selectSpecificDay) Process(ctx context.Context, sc *flow.StepContext, input string) error {
	date, ok := parseDayPayload(input)
	if !ok {
		return nil
	}
	data := sc.Data()
	data.Date = date
	data.Time = ""
	data.BrowseModeSelected = true
	return nil
}

func (h *selectSpecificDay) AutoAdvance(sc *flow.StepContext) bool { return false }

// showHoursForDay lists the open start times on the chosen day.
type showHoursForDay struct {
	deps Deps
}

func (h *showHoursForDay) Prompt(ctx context.Context, sc *flow.StepContext) (string, []flow.Button, error) {
	data := sc.Data()
	hours, err := h.deps.Availability.HoursForDate(ctx, sc.Participant.BusinessID, data.Date, data.ServiceDuration)
	if err != nil {
		return "", nil, err
	}
	if len(hours) == 0 {
		data.Date = ""
		return "That day just filled up — could you pick another one?", nil, nil
	}

	data.AvailableHours = hours
	buttons := make([]flow.Button, 0, len(hours))
	for _, hh := range hours {
		buttons = append(buttons, flow.Button{Label: hh, Payload: slotPayload(data.Date, hh)})
	}
	return "Great — here's what's open on " + dayLabel(data.Date) + ":", buttons, nil
}

func (h *showHoursForDay) Validate(ctx context.Context, sc *flow.StepContext, input string) flow.ValidationResult {
	return flow.Defer()
}

func (h *showHoursForDay) Process(ctx context.Context, sc *flow.StepContext, input string) error {
	return nil
}

func (h *showHoursForDay) AutoAdvance(sc *flow.StepContext) bool { return false }

// selectSpecificTime records the chosen start time.
type selectSpecificTime struct{}

func (h *selectSpecificTime) Prompt(ctx context.Context, sc *flow.StepContext) (string, []flow.Button, error) {
	return "Tap one of the times above.", nil, nil
}

func (h *selectSpecificTime) Validate(ctx context.Context, sc *flow.StepContext, input string) flow.ValidationResult {
	if _, _, ok := parseSlotPayload(input); ok {
		return flow.Accept()
	}
	if _, err := time.Parse(availability.TimeLayout, input); err == nil {
		return flow.Accept()
	}
	return flow.Defer()
}

func (h *selectSpecificTime) Process(ctx context.Context, sc *flow.StepContext, input string) error {
	data := sc.Data()
	if date, startTime, ok := parseSlotPayload(input); ok {
		data.Date = date
		data.Time = startTime
		return nil
	}
	if _, err := time.Parse(availability.TimeLayout, input); err == nil {
		data.Time = input
	}
	return nil
}

func (h *selectSpecificTime) AutoAdvance(sc *flow.StepContext) bool { return false }
