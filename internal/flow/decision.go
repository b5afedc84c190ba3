package flow

import "context"

// DecisionAction is what the oracle wants the flow to do with an input.
type DecisionAction string

const (
	ActionContinue    DecisionAction = "continue"
	ActionAdvance     DecisionAction = "advance"
	ActionGoBack      DecisionAction = "go_back"
	ActionSwitchTopic DecisionAction = "switch_topic"
	ActionRestart     DecisionAction = "restart"
)

// Confidence thresholds below which disruptive actions are ignored and the
// turn falls through to normal step processing.
const (
	goBackThreshold      = 0.7 // exclusive
	restartThreshold     = 0.8 // exclusive
	switchTopicThreshold = 0.8 // inclusive
)

// Decision is the oracle's read of a free-text input.
type Decision struct {
	Action        DecisionAction `json:"action"`
	TargetStep    string         `json:"targetStep,omitempty"`
	NewGoalType   GoalType       `json:"newGoalType,omitempty"`
	NewGoalAction GoalAction     `json:"newGoalAction,omitempty"`
	Confidence    float64        `json:"confidence"`
	Reasoning     string         `json:"reasoning,omitempty"`
}

// DecisionInput is everything the oracle may consider for one turn.
type DecisionInput struct {
	Message     string
	CurrentStep StepID
	GoalType    GoalType
	History     []HistoryEntry
	Data        *BookingData
}

// DecisionOracle interprets free-text inputs. Implementations are fallible;
// callers must treat any error as "no signal" and continue the flow.
type DecisionOracle interface {
	Decide(ctx context.Context, in DecisionInput) (Decision, error)
	Translate(ctx context.Context, text, language string) (string, error)
}

// fallbackDecision is used whenever the oracle errors or returns garbage.
// The flow keeps moving on the deterministic path.
func fallbackDecision() Decision {
	return Decision{
		Action:     ActionContinue,
		Confidence: 0,
		Reasoning:  "oracle unavailable",
	}
}

// actionable filters a decision through the confidence thresholds.
// Low-confidence disruptive actions collapse to continue.
func actionable(d Decision) Decision {
	switch d.Action {
	case ActionGoBack:
		if d.Confidence > goBackThreshold {
			return d
		}
	case ActionRestart:
		if d.Confidence > restartThreshold {
			return d
		}
	case ActionSwitchTopic:
		if d.Confidence >= switchTopicThreshold {
			return d
		}
	case ActionAdvance, ActionContinue:
		return d
	}
	return fallbackDecision()
}
