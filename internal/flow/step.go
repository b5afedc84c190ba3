package flow

import "context"

// Participant identifies the person on the other end of the channel.
type Participant struct {
	ID         string `json:"id"` // channel-scoped identifier, e.g. WhatsApp phone
	Name       string `json:"name,omitempty"`
	BusinessID string `json:"businessId"`
	Language   string `json:"language,omitempty"`
}

// Button is a quick-reply option rendered under the assistant's message.
type Button struct {
	Label   string `json:"label"`
	Payload string `json:"payload"`
}

// ValidationResult reports whether an input belongs to the current step.
// Invalid with an empty ErrorMessage means "not mine, try the next step":
// the processor advances and re-validates there instead of re-prompting.
type ValidationResult struct {
	Valid        bool
	ErrorMessage string
}

// Accept marks the input as belonging to this step.
func Accept() ValidationResult { return ValidationResult{Valid: true} }

// Reject re-prompts the participant with the given message.
func Reject(msg string) ValidationResult {
	return ValidationResult{Valid: false, ErrorMessage: msg}
}

// Defer signals the input belongs to a later step.
func Defer() ValidationResult { return ValidationResult{} }

// StepContext carries per-turn state into a step handler.
type StepContext struct {
	Participant Participant
	Goal        *UserGoal
}

// Data is a shorthand for the goal's collected booking data.
func (sc *StepContext) Data() *BookingData {
	if sc == nil || sc.Goal == nil {
		return nil
	}
	return &sc.Goal.Collected
}

// StepHandler implements one step of a blueprint.
//
// Prompt renders the step's question (and optional buttons) when the flow
// lands on it. Validate decides whether an input belongs to the step.
// Process applies a valid input to the collected data. AutoAdvance reports
// whether the step completes without waiting for participant input.
type StepHandler interface {
	Prompt(ctx context.Context, sc *StepContext) (string, []Button, error)
	Validate(ctx context.Context, sc *StepContext, input string) ValidationResult
	Process(ctx context.Context, sc *StepContext, input string) error
	AutoAdvance(sc *StepContext) bool
}

// Registry maps step IDs to their handlers.
type Registry struct {
	handlers map[StepID]StepHandler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[StepID]StepHandler)}
}

// Register adds a handler. Registering the same step twice panics: duplicate
// registrations are always a wiring mistake.
func (r *Registry) Register(id StepID, h StepHandler) {
	if h == nil {
		panic("flow: nil handler for step " + string(id))
	}
	if _, exists := r.handlers[id]; exists {
		panic("flow: duplicate handler for step " + string(id))
	}
	r.handlers[id] = h
}

// Handler looks up the handler for a step.
func (r *Registry) Handler(id StepID) (StepHandler, bool) {
	h, ok := r.handlers[id]
	return h, ok
}
