package steps

import (
	"context"
	"errors"

	"github.com/flowline-ai/flowline/internal/catalog"
	"github.com/flowline-ai/flowline/internal/flow"
)

// answerFAQ generates an answer to the participant's last question.
type answerFAQ struct {
	deps Deps
}

func (h *answerFAQ) Prompt(ctx context.Context, sc *flow.StepContext) (string, []flow.Button, error) {
	question := lastUserMessage(sc.Goal)
	if question == "" || h.deps.FAQ == nil {
		return "Happy to help! What would you like to know?", nil, nil
	}
	answer, err := h.deps.FAQ.Answer(ctx, question, sc.Goal.History)
	if err != nil || answer == "" {
		h.deps.Logger.Warn("faq answer failed", "error", err)
		return "Good question — let me get someone from the team to answer that for you.", nil, nil
	}
	return answer, nil, nil
}

func (h *answerFAQ) Validate(ctx context.Context, sc *flow.StepContext, input string) flow.ValidationResult {
	return flow.Accept()
}

func (h *answerFAQ) Process(ctx context.Context, sc *flow.StepContext, input string) error {
	return nil
}

func (h *answerFAQ) AutoAdvance(sc *flow.StepContext) bool { return false }

// escalateToHuman alerts the team and closes the goal.
type escalateToHuman struct {
	deps Deps
}

func (h *escalateToHuman) Prompt(ctx context.Context, sc *flow.StepContext) (string, []flow.Button, error) {
	if h.deps.Escalations != nil {
		if err := h.deps.Escalations.NotifyEscalation(ctx, sc.Participant, sc.Goal.History); err != nil {
			h.deps.Logger.Error("escalation alert failed", "error", err, "participant_id", sc.Participant.ID)
		}
	}
	return "I've flagged this conversation for our team — a real person will get back to you shortly.", nil, nil
}

func (h *escalateToHuman) Validate(ctx context.Context, sc *flow.StepContext, input string) flow.ValidationResult {
	return flow.Accept()
}

func (h *escalateToHuman) Process(ctx context.Context, sc *flow.StepContext, input string) error {
	return nil
}

func (h *escalateToHuman) AutoAdvance(sc *flow.StepContext) bool { return false }

// manageAccount shows what we know about the participant.
type manageAccount struct {
	deps Deps
}

func (h *manageAccount) Prompt(ctx context.Context, sc *flow.StepContext) (string, []flow.Button, error) {
	user, err := h.deps.Users.FindUserByPhone(ctx, sc.Participant.BusinessID, sc.Participant.ID)
	if errors.Is(err, catalog.ErrNotFound) {
		return "I don't have an account under this number yet. Book a service and I'll set one up for you!", nil, nil
	}
	if err != nil {
		return "", nil, err
	}

	text := "Here's your account:\n\n• Name: " + user.Name
	if user.Email != "" {
		text += "\n• Email: " + user.Email
	}
	text += "\n\nReply with a new email to update it, or ask me anything else."
	return text, nil, nil
}

func (h *manageAccount) Validate(ctx context.Context, sc *flow.StepContext, input string) flow.ValidationResult {
	return flow.Accept()
}

func (h *manageAccount) Process(ctx context.Context, sc *flow.StepContext, input string) error {
	if !plausibleEmail(input) {
		return nil
	}
	user, err := h.deps.Users.FindUserByPhone(ctx, sc.Participant.BusinessID, sc.Participant.ID)
	if err != nil {
		return nil
	}
	return h.deps.Users.UpdateUserEmail(ctx, user.ID, input)
}

func (h *manageAccount) AutoAdvance(sc *flow.StepContext) bool { return false }

// lastUserMessage returns the most recent participant entry in the transcript.
func lastUserMessage(goal *flow.UserGoal) string {
	if goal == nil {
		return ""
	}
	for i := len(goal.History) - 1; i >= 0; i-- {
		if goal.History[i].Role == flow.RoleUser {
			return goal.History[i].Content
		}
	}
	return ""
}
