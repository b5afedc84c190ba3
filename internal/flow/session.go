package flow

import (
	"context"
	"errors"
	"time"
)

// ErrSessionNotFound indicates no active session exists for the participant.
var ErrSessionNotFound = errors.New("flow: session not found")

// Session is the durable per-participant conversation state.
type Session struct {
	Participant Participant `json:"participant"`
	ActiveGoal  *UserGoal   `json:"activeGoal,omitempty"`
	// PreviousGoals keeps completed goals around for transcript context.
	PreviousGoals []*UserGoal `json:"previousGoals,omitempty"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// SessionStore persists sessions between turns. Load returns
// ErrSessionNotFound when the participant has no session yet.
type SessionStore interface {
	Load(ctx context.Context, participantID string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, participantID string) error
}

// CompleteActiveGoal marks the active goal done and shelves it.
func (s *Session) CompleteActiveGoal(status GoalStatus) {
	if s == nil || s.ActiveGoal == nil {
		return
	}
	s.ActiveGoal.Status = status
	s.PreviousGoals = append(s.PreviousGoals, s.ActiveGoal)
	s.ActiveGoal = nil
}
