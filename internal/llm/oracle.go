package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"

	"github.com/flowline-ai/flowline/internal/flow"
	"github.com/flowline-ai/flowline/pkg/logging"
)

var oracleTracer = otel.Tracer("flowline.internal.llm")

const historyWindow = 12

const decisionSystemPrompt = `You route messages in a WhatsApp booking assistant.
Given the conversation and the participant's latest message, decide what the flow should do.

Respond with ONLY a JSON object, no prose:
{
  "action": "continue" | "advance" | "go_back" | "switch_topic" | "restart",
  "target_step": "<step name when going back, else empty>",
  "new_goal_type": "serviceBooking" | "frequentlyAskedQuestion" | "accountManagement" | "humanAgentEscalation" | "",
  "new_goal_action": "create" | "update" | "delete" | "none" | "",
  "confidence": 0.0-1.0,
  "reasoning": "<one short sentence>"
}

Rules:
- "continue" when the message answers the current step's question.
- "go_back" when they want to change something already collected; name the step in target_step.
- "restart" only when they clearly want to start the whole booking over.
- "switch_topic" when the message belongs to a different goal (a question, asking for a human, account changes).
- Be conservative: when unsure, use "continue" with low confidence.`

const translateSystemPrompt = `You translate short customer-service messages.
Translate the user's message into the requested language. Keep the tone, keep
emoji, keep placeholders and URLs untouched. Respond with the translation only.`

// Oracle implements the flow's decision and translation interfaces, plus FAQ
// answering, on top of a text generator.
type Oracle struct {
	llm    TextGenerator
	logger *logging.Logger
}

// NewOracle constructs the oracle.
func NewOracle(llm TextGenerator, logger *logging.Logger) *Oracle {
	if llm == nil {
		panic("llm: text generator required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Oracle{llm: llm, logger: logger}
}

// Decide interprets a free-text input in the context of the current step.
func (o *Oracle) Decide(ctx context.Context, in flow.DecisionInput) (flow.Decision, error) {
	ctx, span := oracleTracer.Start(ctx, "llm.decide")
	defer span.End()

	var b strings.Builder
	fmt.Fprintf(&b, "Current step: %s\nGoal type: %s\n", in.CurrentStep, in.GoalType)
	if in.Data != nil {
		if in.Data.SelectedService != nil {
			fmt.Fprintf(&b, "Service chosen: %s\n", in.Data.SelectedService.Name)
		}
		if in.Data.Date != "" {
			fmt.Fprintf(&b, "Slot chosen: %s %s\n", in.Data.Date, in.Data.Time)
		}
	}
	fmt.Fprintf(&b, "\nLatest message: %q", in.Message)

	raw, err := o.llm.Generate(ctx, decisionSystemPrompt, recentTurns(in.History), b.String())
	if err != nil {
		span.RecordError(err)
		return flow.Decision{}, err
	}

	decision, err := decodeDecision(raw)
	if err != nil {
		span.RecordError(err)
		o.logger.Warn("undecodable oracle response", "error", err, "raw", raw)
		return flow.Decision{}, err
	}
	return decision, nil
}

// Translate renders a reply in the participant's language.
func (o *Oracle) Translate(ctx context.Context, text, language string) (string, error) {
	ctx, span := oracleTracer.Start(ctx, "llm.translate")
	defer span.End()

	prompt := fmt.Sprintf("Target language: %s\n\nMessage:\n%s", language, text)
	out, err := o.llm.Generate(ctx, translateSystemPrompt, nil, prompt)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return out, nil
}

// Answer responds to a free-form question using the recent transcript as
// context.
func (o *Oracle) Answer(ctx context.Context, question string, history []flow.HistoryEntry) (string, error) {
	ctx, span := oracleTracer.Start(ctx, "llm.answer")
	defer span.End()

	system := "You are a friendly WhatsApp assistant for a local service business. " +
		"Answer the customer's question briefly and helpfully. If you don't know, " +
		"say the team will follow up. Never invent prices or policies."
	out, err := o.llm.Generate(ctx, system, recentTurns(history), question)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return out, nil
}

// recentTurns trims the transcript to the last few turns to keep prompts small.
func recentTurns(history []flow.HistoryEntry) []ChatTurn {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	turns := make([]ChatTurn, 0, len(history))
	for _, h := range history {
		turns = append(turns, ChatTurn{Role: string(h.Role), Content: h.Content})
	}
	return turns
}

// wireDecision is the JSON shape the model is asked for.
type wireDecision struct {
	Action        string  `json:"action"`
	TargetStep    string  `json:"target_step"`
	NewGoalType   string  `json:"new_goal_type"`
	NewGoalAction string  `json:"new_goal_action"`
	Confidence    float64 `json:"confidence"`
	Reasoning     string  `json:"reasoning"`
}

var validActions = map[flow.DecisionAction]bool{
	flow.ActionContinue:    true,
	flow.ActionAdvance:     true,
	flow.ActionGoBack:      true,
	flow.ActionSwitchTopic: true,
	flow.ActionRestart:     true,
}

var validGoalTypes = map[flow.GoalType]bool{
	flow.GoalServiceBooking:  true,
	flow.GoalFAQ:             true,
	flow.GoalAccount:         true,
	flow.GoalHumanEscalation: true,
}

// decodeDecision parses the model output, tolerating markdown fences and
// surrounding prose but rejecting anything that isn't a usable decision.
func decodeDecision(raw string) (flow.Decision, error) {
	payload := extractJSONObject(raw)
	if payload == "" {
		return flow.Decision{}, errors.New("llm: no JSON object in oracle response")
	}

	var w wireDecision
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return flow.Decision{}, fmt.Errorf("llm: decode decision: %w", err)
	}

	action := flow.DecisionAction(strings.ToLower(strings.TrimSpace(w.Action)))
	if !validActions[action] {
		return flow.Decision{}, fmt.Errorf("llm: unknown action %q", w.Action)
	}
	goalType := flow.GoalType(strings.TrimSpace(w.NewGoalType))
	if goalType != "" && !validGoalTypes[goalType] {
		return flow.Decision{}, fmt.Errorf("llm: unknown goal type %q", w.NewGoalType)
	}
	confidence := w.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return flow.Decision{
		Action:        action,
		TargetStep:    strings.TrimSpace(w.TargetStep),
		NewGoalType:   goalType,
		NewGoalAction: flow.GoalAction(strings.TrimSpace(w.NewGoalAction)),
		Confidence:    confidence,
		Reasoning:     strings.TrimSpace(w.Reasoning),
	}, nil
}

// extractJSONObject returns the outermost {...} in the text, or "".
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
