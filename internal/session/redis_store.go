// Package session persists conversation state between webhook deliveries.
// Redis holds the live session under a TTL; completed transcripts are
// archived to Postgres for support and analytics.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowline-ai/flowline/internal/flow"
)

const defaultTTL = 24 * time.Hour

// RedisStore implements flow.SessionStore on a Redis client. Sessions expire
// after the TTL so abandoned conversations clean themselves up.
type RedisStore struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
}

// RedisOption customizes the store.
type RedisOption func(*RedisStore)

// WithTTL overrides the session expiry.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewRedisStore constructs the session store.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	s := &RedisStore{
		redis:  client,
		tracer: otel.Tracer("flowline.internal.session"),
		ttl:    defaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sessionKey(participantID string) string {
	return fmt.Sprintf("session:%s", participantID)
}

// Load fetches the participant's session, or flow.ErrSessionNotFound.
func (s *RedisStore) Load(ctx context.Context, participantID string) (*flow.Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.load")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(participantID)).Bytes()
	if err == redis.Nil {
		return nil, flow.ErrSessionNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: load: %w", err)
	}

	var sess flow.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: decode: %w", err)
	}
	return &sess, nil
}

// Save persists the session and refreshes its TTL.
func (s *RedisStore) Save(ctx context.Context, sess *flow.Session) error {
	ctx, span := s.tracer.Start(ctx, "session.save")
	defer span.End()

	data, err := json.Marshal(sess)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(sess.Participant.ID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: save: %w", err)
	}
	return nil
}

// Delete removes the participant's session.
func (s *RedisStore) Delete(ctx context.Context, participantID string) error {
	ctx, span := s.tracer.Start(ctx, "session.delete")
	defer span.End()

	if err := s.redis.Del(ctx, sessionKey(participantID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}
