package steps

import (
	"context"
	"errors"
	"strings"

	"github.com/flowline-ai/flowline/internal/catalog"
	"github.com/flowline-ai/flowline/internal/flow"
)

// checkExistingUser looks the participant up by phone without asking. A hit
// skips the whole sign-up leg of the flow.
type checkExistingUser struct {
	deps Deps
}

func (h *checkExistingUser) Prompt(ctx context.Context, sc *flow.StepContext) (string, []flow.Button, error) {
	return "One moment while I pull up your details...", nil, nil
}

func (h *checkExistingUser) Validate(ctx context.Context, sc *flow.StepContext, input string) flow.ValidationResult {
	return flow.Defer()
}

func (h *checkExistingUser) Process(ctx context.Context, sc *flow.StepContext, input string) error {
	data := sc.Data()
	user, err := h.deps.Users.FindUserByPhone(ctx, sc.Participant.BusinessID, sc.Participant.ID)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil
	}
	if err != nil {
		// Lookup failures degrade to the new-user path instead of stalling.
		h.deps.Logger.Warn("user lookup failed", "error", err, "participant_id", sc.Participant.ID)
		return nil
	}
	data.UserID = user.ID
	data.UserName = user.Name
	data.Email = user.Email
	data.ExistingUser = true
	return nil
}

func (h *checkExistingUser) AutoAdvance(sc *flow.StepContext) bool {
	// The lookup never waits for input; navigation moves on either way.
	return true
}

// handleUserStatus asks whether the participant has booked before, for the
// rare case the phone lookup found nothing but they have an account under
// another number.
type handleUserStatus struct {
	deps Deps
}

func (h *handleUserStatus) Prompt(ctx context.Context, sc *flow.StepContext) (string, []flow.Button, error) {
	buttons := []flow.Button{
		{Label: "I've booked before", Payload: payloadExistingUser},
		{Label: "I'm new here", Payload: payloadNewUser},
	}
	return "Have you booked with us before?", buttons, nil
}

func (h *handleUserStatus) Validate(ctx context.Context, sc *flow.StepContext, input string) flow.ValidationResult {
	if input == payloadExistingUser || input == payloadNewUser {
		return flow.Accept()
	}
	return flow.Defer()
}

func (h *handleUserStatus) Process(ctx context.Context, sc *flow.StepContext, input string) error {
	if input != payloadExistingUser {
		return nil
	}
	data := sc.Data()
	user, err := h.deps.Users.FindUserByPhone(ctx, sc.Participant.BusinessID, sc.Participant.ID)
	if err != nil {
		// No match on this number; continue as a new sign-up.
		return nil
	}
	data.UserID = user.ID
	data.UserName = user.Name
	data.Email = user.Email
	data.ExistingUser = true
	return nil
}

func (h *handleUserStatus) AutoAdvance(sc *flow.StepContext) bool { return false }

// askUserName collects the name the booking goes under.
type askUserName struct{}

func (h *askUserName) Prompt(ctx context.Context, sc *flow.StepContext) (string, []flow.Button, error) {
	return "What name should the booking be under?", nil, nil
}

func (h *askUserName) Validate(ctx context.Context, sc *flow.StepContext, input string) flow.ValidationResult {
	name := strings.TrimSpace(input)
	if len(name) < 2 {
		return flow.Reject("Could you send me your name?")
	}
	return flow.Accept()
}

func (h *askUserName) Process(ctx context.Context, sc *flow.StepContext, input string) error {
	sc.Data().UserName = strings.TrimSpace(input)
	return nil
}

func (h *askUserName) AutoAdvance(sc *flow.StepContext) bool { return false }

// createNewUser registers the participant. It runs without input once a name
// has been collected.
type createNewUser struct {
	deps Deps
}

func (h *createNewUser) Prompt(ctx context.Context, sc *flow.StepContext) (string, []flow.Button, error) {
	return "Setting up your account...", nil, nil
}

func (h *createNewUser) Validate(ctx context.Context, sc *flow.StepContext, input string) flow.ValidationResult {
	return flow.Defer()
}

func (h *createNewUser) Process(ctx context.Context, sc *flow.StepContext, input string) error {
	data := sc.Data()
	if data.UserID != "" {
		return nil
	}
	id, err := h.deps.Users.CreateUser(ctx, catalog.User{
		BusinessID: sc.Participant.BusinessID,
		Name:       data.UserName,
		Phone:      sc.Participant.ID,
	})
	if err != nil {
		return err
	}
	data.UserID = id
	return nil
}

func (h *createNewUser) AutoAdvance(sc *flow.StepContext) bool {
	return sc.Data().UserID == "" && sc.Data().UserName != ""
}

// askEmail collects an optional email for the confirmation.
type askEmail struct {
	deps Deps
}

func (h *askEmail) Prompt(ctx context.Context, sc *flow.StepContext) (string, []flow.Button, error) {
	buttons := []flow.Button{{Label: "Skip for now", Payload: payloadAddEmailLater}}
	return "Where should we email your confirmation? You can also skip this.", buttons, nil
}

func (h *askEmail) Validate(ctx context.Context, sc *flow.StepContext, input string) flow.ValidationResult {
	if input == payloadAddEmailLater {
		return flow.Accept()
	}
	if plausibleEmail(input) {
		return flow.Accept()
	}
	return flow.Reject("That doesn't look like an email address. Send one like name@example.com, or skip for now.")
}

func (h *askEmail) Process(ctx context.Context, sc *flow.StepContext, input string) error {
	if input == payloadAddEmailLater {
		return nil
	}
	data := sc.Data()
	email := strings.TrimSpace(input)
	data.Email = email
	if data.UserID != "" {
		if err := h.deps.Users.UpdateUserEmail(ctx, data.UserID, email); err != nil {
			h.deps.Logger.Warn("email update failed", "error", err, "user_id", data.UserID)
		}
	}
	return nil
}

func (h *askEmail) AutoAdvance(sc *flow.StepContext) bool { return false }

func plausibleEmail(s string) bool {
	s = strings.TrimSpace(s)
	at := strings.Index(s, "@")
	if at <= 0 || at == len(s)-1 {
		return false
	}
	return strings.Contains(s[at+1:], ".") && !strings.ContainsAny(s, " \t")
}
