package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flowline-ai/flowline/internal/flow"
	"github.com/flowline-ai/flowline/pkg/logging"
)

// Archiver copies completed goals into Postgres so transcripts outlive the
// Redis session TTL.
type Archiver struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewArchiver constructs the transcript archiver.
func NewArchiver(db *sql.DB, logger *logging.Logger) *Archiver {
	if db == nil {
		panic("session: db cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Archiver{db: db, logger: logger}
}

// ArchiveGoal stores one finished goal's transcript.
func (a *Archiver) ArchiveGoal(ctx context.Context, participant flow.Participant, goal *flow.UserGoal) error {
	if goal == nil {
		return nil
	}
	transcript, err := json.Marshal(goal.History)
	if err != nil {
		return fmt.Errorf("session: encode transcript: %w", err)
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT INTO conversation_archive (id, business_id, participant_id, goal_type, goal_status, flow, transcript, started_at, archived_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.NewString(), participant.BusinessID, participant.ID,
		string(goal.Type), string(goal.Status), string(goal.Flow),
		transcript, goal.CreatedAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("session: archive goal: %w", err)
	}
	a.logger.Debug("goal archived", "participant_id", participant.ID, "goal_type", goal.Type)
	return nil
}

// ArchivedGoal is one stored transcript row.
type ArchivedGoal struct {
	ID            string
	ParticipantID string
	GoalType      string
	GoalStatus    string
	Transcript    []flow.HistoryEntry
	ArchivedAt    time.Time
}

// RecentGoals lists the latest archived transcripts for a business.
func (a *Archiver) RecentGoals(ctx context.Context, businessID string, limit int) ([]ArchivedGoal, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, participant_id, goal_type, goal_status, transcript, archived_at
		 FROM conversation_archive WHERE business_id = $1
		 ORDER BY archived_at DESC LIMIT $2`,
		businessID, limit)
	if err != nil {
		return nil, fmt.Errorf("session: list archive: %w", err)
	}
	defer rows.Close()

	var out []ArchivedGoal
	for rows.Next() {
		var g ArchivedGoal
		var transcript []byte
		if err := rows.Scan(&g.ID, &g.ParticipantID, &g.GoalType, &g.GoalStatus, &transcript, &g.ArchivedAt); err != nil {
			return nil, fmt.Errorf("session: scan archive: %w", err)
		}
		if err := json.Unmarshal(transcript, &g.Transcript); err != nil {
			return nil, fmt.Errorf("session: decode transcript: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
