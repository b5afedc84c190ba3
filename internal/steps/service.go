package steps

import (
	"context"
	"strings"

	"github.com/flowline-ai/flowline/internal/flow"
)

// selectService asks which catalog service the participant wants.
type selectService struct{}

func (h *selectService) Prompt(ctx context.Context, sc *flow.StepContext) (string, []flow.Button, error) {
	data := sc.Data()
	var b strings.Builder
	b.WriteString("Which service would you like to book?\n")
	buttons := make([]flow.Button, 0, len(data.AvailableServices))
	for _, svc := range data.AvailableServices {
		b.WriteString("\n• " + svc.Name + " — " + formatMoney(svc.PriceCents))
		buttons = append(buttons, flow.Button{Label: svc.Name, Payload: svc.ID})
	}
	return b.String(), buttons, nil
}

func (h *selectService) Validate(ctx context.Context, sc *flow.StepContext, input string) flow.ValidationResult {
	if _, ok := matchService(sc.Data().AvailableServices, input); ok {
		return flow.Accept()
	}
	return flow.Reject("I didn't catch which service you meant. Tap one of the options below.")
}

func (h *selectService) Process(ctx context.Context, sc *flow.StepContext, input string) error {
	data := sc.Data()
	svc, ok := matchService(data.AvailableServices, input)
	if !ok {
		return nil
	}
	data.SelectedService = &svc
	data.ServiceDuration = svc.DurationMin
	return nil
}

func (h *selectService) AutoAdvance(sc *flow.StepContext) bool { return false }

// matchService resolves an input to a service by ID or by name substring.
func matchService(services []flow.ServiceRef, input string) (flow.ServiceRef, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return flow.ServiceRef{}, false
	}
	for _, svc := range services {
		if svc.ID == input {
			return svc, true
		}
	}
	lower := strings.ToLower(input)
	for _, svc := range services {
		name := strings.ToLower(svc.Name)
		if name == lower || strings.Contains(lower, name) || strings.Contains(name, lower) {
			return svc, true
		}
	}
	return flow.ServiceRef{}, false
}
