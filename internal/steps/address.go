package steps

import (
	"context"
	"strings"
	"unicode"

	"github.com/flowline-ai/flowline/internal/flow"
)

// askAddress collects the service address for mobile bookings.
type askAddress struct{}

func (h *askAddress) Prompt(ctx context.Context, sc *flow.StepContext) (string, []flow.Button, error) {
	return "This service comes to you! What's the full address we should go to? Please include the street number.", nil, nil
}

func (h *askAddress) Validate(ctx context.Context, sc *flow.StepContext, input string) flow.ValidationResult {
	if !plausibleAddress(input) {
		return flow.Reject("That doesn't look like a complete address. Could you send the street, number and neighborhood?")
	}
	return flow.Accept()
}

func (h *askAddress) Process(ctx context.Context, sc *flow.StepContext, input string) error {
	sc.Data().Address = strings.TrimSpace(input)
	return nil
}

func (h *askAddress) AutoAdvance(sc *flow.StepContext) bool { return false }

// validateAddress normalizes the collected address. It never waits for input.
type validateAddress struct{}

func (h *validateAddress) Prompt(ctx context.Context, sc *flow.StepContext) (string, []flow.Button, error) {
	return "One moment, checking that address...", nil, nil
}

func (h *validateAddress) Validate(ctx context.Context, sc *flow.StepContext, input string) flow.ValidationResult {
	return flow.Defer()
}

func (h *validateAddress) Process(ctx context.Context, sc *flow.StepContext, input string) error {
	data := sc.Data()
	data.Address = strings.Join(strings.Fields(data.Address), " ")
	data.AddressValidated = data.Address != ""
	return nil
}

func (h *validateAddress) AutoAdvance(sc *flow.StepContext) bool {
	return sc.Data().Address != "" && !sc.Data().AddressValidated
}

// confirmLocation shows the address back and asks for a yes or a correction.
type confirmLocation struct{}

func (h *confirmLocation) Prompt(ctx context.Context, sc *flow.StepContext) (string, []flow.Button, error) {
	text := "Just to confirm, we'll come to:\n\n" + sc.Data().Address + "\n\nIs that right? If not, send the corrected address."
	buttons := []flow.Button{{Label: "Yes, that's right", Payload: payloadConfirmLocation}}
	return text, buttons, nil
}

func (h *confirmLocation) Validate(ctx context.Context, sc *flow.StepContext, input string) flow.ValidationResult {
	if input == payloadConfirmLocation || input == "confirm_address" {
		return flow.Accept()
	}
	if plausibleAddress(input) {
		return flow.Accept()
	}
	return flow.Reject("Please tap the button to confirm, or send the corrected address.")
}

func (h *confirmLocation) Process(ctx context.Context, sc *flow.StepContext, input string) error {
	data := sc.Data()
	if input == payloadConfirmLocation || input == "confirm_address" {
		data.LocationConfirmed = true
		return nil
	}
	// A corrected address needs confirming again. Navigation only scans
	// forward, so rewind one step to land back on this one.
	data.Address = strings.Join(strings.Fields(input), " ")
	data.AddressValidated = true
	data.LocationConfirmed = false
	if sc.Goal != nil && sc.Goal.CurrentStepIndex > 0 {
		sc.Goal.CurrentStepIndex--
	}
	return nil
}

func (h *confirmLocation) AutoAdvance(sc *flow.StepContext) bool { return false }

// plausibleAddress is a cheap sanity check: long enough and carries a street
// number. Real validation happens against the geocoder during dispatch.
func plausibleAddress(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 8 {
		return false
	}
	hasDigit := false
	for _, r := range s {
		if unicode.IsDigit(r) {
			hasDigit = true
			break
		}
	}
	return hasDigit
}
