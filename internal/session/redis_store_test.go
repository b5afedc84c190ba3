package session

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowline-ai/flowline/internal/flow"
)

func newRedisStore(t *testing.T, opts ...RedisOption) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStore(client, opts...), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	sess := &flow.Session{
		Participant: flow.Participant{ID: "+5511999990000", BusinessID: "biz-1", Language: "pt"},
		ActiveGoal: &flow.UserGoal{
			Type:             flow.GoalServiceBooking,
			Status:           flow.StatusInProgress,
			Flow:             flow.FlowBookingNoneMobile,
			CurrentStepIndex: 3,
		},
	}
	sess.ActiveGoal.Collected.Date = "2026-09-07"
	sess.ActiveGoal.AppendHistory(flow.RoleUser, "hi")

	require.NoError(t, store.Save(ctx, sess))

	loaded, err := store.Load(ctx, "+5511999990000")
	require.NoError(t, err)
	require.NotNil(t, loaded.ActiveGoal)
	assert.Equal(t, 3, loaded.ActiveGoal.CurrentStepIndex)
	assert.Equal(t, "2026-09-07", loaded.ActiveGoal.Collected.Date)
	assert.Len(t, loaded.ActiveGoal.History, 1)
	assert.Equal(t, "pt", loaded.Participant.Language)
}

func TestRedisStoreMissingSession(t *testing.T) {
	store, _ := newRedisStore(t)

	_, err := store.Load(context.Background(), "+5500000000000")
	assert.ErrorIs(t, err, flow.ErrSessionNotFound)
}

func TestRedisStoreDelete(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	sess := &flow.Session{Participant: flow.Participant{ID: "+5511999990000"}}
	require.NoError(t, store.Save(ctx, sess))
	require.NoError(t, store.Delete(ctx, "+5511999990000"))

	_, err := store.Load(ctx, "+5511999990000")
	assert.ErrorIs(t, err, flow.ErrSessionNotFound)
}

func TestRedisStoreSessionsExpire(t *testing.T) {
	store, mr := newRedisStore(t, WithTTL(time.Minute))
	ctx := context.Background()

	sess := &flow.Session{Participant: flow.Participant{ID: "+5511999990000"}}
	require.NoError(t, store.Save(ctx, sess))

	mr.FastForward(2 * time.Minute)

	_, err := store.Load(ctx, "+5511999990000")
	assert.ErrorIs(t, err, flow.ErrSessionNotFound)
}
