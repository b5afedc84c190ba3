package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowline-ai/flowline/internal/flow"
	"github.com/flowline-ai/flowline/pkg/logging"
)

func TestArchiveGoal(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	goal := &flow.UserGoal{
		Type:      flow.GoalServiceBooking,
		Status:    flow.StatusCompleted,
		Flow:      flow.FlowBookingNoneMobile,
		CreatedAt: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
	}
	goal.AppendHistory(flow.RoleUser, "hi")
	goal.AppendHistory(flow.RoleAssistant, "Which service would you like to book?")

	mock.ExpectExec("INSERT INTO conversation_archive").
		WithArgs(sqlmock.AnyArg(), "biz-1", "+5511999990000",
			"serviceBooking", "completed", "bookingCreatingForNoneMobileService",
			sqlmock.AnyArg(), goal.CreatedAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	a := NewArchiver(db, logging.Default())
	require.NoError(t, a.ArchiveGoal(context.Background(), flow.Participant{ID: "+5511999990000", BusinessID: "biz-1"}, goal))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentGoals(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	transcript, err := json.Marshal([]flow.HistoryEntry{{Role: flow.RoleUser, Content: "hi"}})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT id, participant_id, goal_type, goal_status, transcript, archived_at").
		WithArgs("biz-1", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "participant_id", "goal_type", "goal_status", "transcript", "archived_at"}).
			AddRow("arch-1", "+5511999990000", "serviceBooking", "completed", transcript, time.Now()))

	a := NewArchiver(db, logging.Default())
	goals, err := a.RecentGoals(context.Background(), "biz-1", 10)
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, "serviceBooking", goals[0].GoalType)
	require.Len(t, goals[0].Transcript, 1)
	assert.Equal(t, "hi", goals[0].Transcript[0].Content)
	require.NoError(t, mock.ExpectationsWereMet())
}
