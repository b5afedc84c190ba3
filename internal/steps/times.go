package steps

import (
	"context"
	"strings"

	"github.com/flowline-ai/flowline/internal/flow"
)

// showAvailableTimes offers the next few concrete openings plus a browse
// option. The participant's answer is handled by handleTimeChoice.
type showAvailableTimes struct {
	deps Deps
}

const quickSlotCount = 3

func (h *showAvailableTimes) Prompt(ctx context.Context, sc *flow.StepContext) (string, []flow.Button, error) {
	data := sc.Data()
	slots, err := h.deps.Availability.NextSlots(ctx, sc.Participant.BusinessID, data.ServiceDuration, quickSlotCount)
	if err != nil {
		return "", nil, err
	}

	data.NextSlots = data.NextSlots[:0]
	buttons := make([]flow.Button, 0, len(slots)+1)
	for _, tc := range slots {
		date, startTime, found := strings.Cut(tc.Time, "T")
		if !found {
			continue
		}
		data.NextSlots = append(data.NextSlots, flow.SlotOption{
			Date:  date,
			Time:  startTime,
			Label: slotLabel(date, startTime),
		})
		buttons = append(buttons, flow.Button{Label: slotLabel(date, startTime), Payload: slotPayload(date, startTime)})
	}
	buttons = append(buttons, flow.Button{Label: "See more days", Payload: payloadBrowseDays})

	if len(data.NextSlots) == 0 {
		return "I couldn't find an opening in the next few days. Want to browse the calendar?", buttons[len(buttons)-1:], nil
	}
	return "Here are the next available times — tap one to grab it, or browse other days:", buttons, nil
}

func (h *showAvailableTimes) Validate(ctx context.Context, sc *flow.StepContext, input string) flow.ValidationResult {
	return flow.Defer()
}

func (h *showAvailableTimes) Process(ctx context.Context, sc *flow.StepContext, input string) error {
	return nil
}

func (h *showAvailableTimes) AutoAdvance(sc *flow.StepContext) bool { return false }

// handleTimeChoice applies the participant's pick: a quick slot or browsing.
type handleTimeChoice struct{}

func (h *handleTimeChoice) Prompt(ctx context.Context, sc *flow.StepContext) (string, []flow.Button, error) {
	return "Tap one of the times above, or browse other days.", nil, nil
}

func (h *handleTimeChoice) Validate(ctx context.Context, sc *flow.StepContext, input string) flow.ValidationResult {
	if input == payloadBrowseDays || input == "open_calendar" {
		return flow.Accept()
	}
	if _, _, ok := parseSlotPayload(input); ok {
		return flow.Accept()
	}
	return flow.Defer()
}

func (h *handleTimeChoice) Process(ctx context.Context, sc *flow.StepContext, input string) error {
	data := sc.Data()
	if input == payloadBrowseDays || input == "open_calendar" {
		data.BrowseModeSelected = true
		return nil
	}
	date, startTime, ok := parseSlotPayload(input)
	if !ok {
		return nil
	}
	data.Date = date
	data.Time = startTime
	data.QuickBookingSelected = true
	data.BrowseModeSelected = false
	return nil
}

func (h *handleTimeChoice) AutoAdvance(sc *flow.StepContext) bool { return false }
