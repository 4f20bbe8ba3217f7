package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/intervoq/intervoq/pkg/memory"
)

// Hot-tier TTL rules: an active session lives at least minHotTTL, and always
// long enough to survive the remaining interview time plus a grace period
// for reconnection.
const (
	hotTTLGrace = 30 * time.Minute
	minHotTTL   = time.Hour
)

// HotClient is the subset of redis commands the store needs. *redis.Client
// satisfies it; tests supply a fake.
type HotClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Store is the two-tier session store. Reads prefer the Redis hot tier and
// fall back to the durable record; writes go to both, with the durable tier
// authoritative. Candidate API keys are stored in the hot tier only and are
// never written to the durable record.
type Store struct {
	hot     HotClient
	durable memory.InterviewStore
	logger  *slog.Logger
}

// StoreOption configures optional Store behaviour.
type StoreOption func(*Store)

// WithStoreLogger overrides the default logger.
func WithStoreLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// NewStore builds a store over a hot client and a durable interview store.
func NewStore(hot HotClient, durable memory.InterviewStore, opts ...StoreOption) *Store {
	s := &Store{hot: hot, durable: durable, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func stateKey(interviewID string) string { return "interview:" + interviewID + ":state" }
func byokKey(interviewID string) string  { return "interview:" + interviewID + ":byok" }

// Save persists the session to both tiers. A durable write failure is
// returned to the caller; a hot write failure is only logged, since the hot
// tier can always be rebuilt from the durable record.
func (s *Store) Save(ctx context.Context, st *State) error {
	snapshot, err := st.Snapshot()
	if err != nil {
		return err
	}

	rec := memory.InterviewRecord{
		ID:        st.ID,
		UserID:    st.UserID,
		Role:      string(st.Role),
		Status:    string(st.Status),
		State:     json.RawMessage(snapshot),
		StartedAt: recordStart(st),
		EndedAt:   st.EndedAt,
	}
	if err := s.durable.SaveInterview(ctx, rec); err != nil {
		return fmt.Errorf("session store: durable save: %w", err)
	}

	if err := s.hot.Set(ctx, stateKey(st.ID), snapshot, s.ttl(st)).Err(); err != nil {
		s.logger.Warn("hot tier save failed",
			"interview_id", st.ID, "error", err)
	}
	return nil
}

// Load retrieves a session, preferring the hot tier. On a hot miss the
// durable snapshot is restored and rehydrated into the hot tier.
// Returns (nil, nil) when the interview does not exist at all.
func (s *Store) Load(ctx context.Context, interviewID string) (*State, error) {
	data, err := s.hot.Get(ctx, stateKey(interviewID)).Bytes()
	if err == nil {
		return Restore(data)
	}
	if !errors.Is(err, redis.Nil) {
		s.logger.Warn("hot tier load failed, falling back to durable",
			"interview_id", interviewID, "error", err)
	}

	rec, err := s.durable.GetInterview(ctx, interviewID)
	if err != nil {
		return nil, fmt.Errorf("session store: durable load: %w", err)
	}
	if rec == nil || len(rec.State) == 0 {
		return nil, nil
	}
	st, err := Restore(rec.State)
	if err != nil {
		return nil, err
	}

	if err := s.hot.Set(ctx, stateKey(interviewID), []byte(rec.State), s.ttl(st)).Err(); err != nil {
		s.logger.Warn("hot tier rehydrate failed",
			"interview_id", interviewID, "error", err)
	}
	return st, nil
}

// Delete removes the session from both tiers, including any candidate key.
func (s *Store) Delete(ctx context.Context, interviewID string) error {
	if err := s.hot.Del(ctx, stateKey(interviewID), byokKey(interviewID)).Err(); err != nil {
		s.logger.Warn("hot tier delete failed",
			"interview_id", interviewID, "error", err)
	}
	if err := s.durable.DeleteInterview(ctx, interviewID); err != nil {
		return fmt.Errorf("session store: durable delete: %w", err)
	}
	return nil
}

// SetCandidateKey stores a candidate-supplied API key in the hot tier only.
// The key expires with the session and is never written durably or logged.
func (s *Store) SetCandidateKey(ctx context.Context, st *State, apiKey string) error {
	if err := s.hot.Set(ctx, byokKey(st.ID), apiKey, s.ttl(st)).Err(); err != nil {
		return fmt.Errorf("session store: set candidate key: %w", err)
	}
	return nil
}

// ClearCandidateKey removes a previously registered candidate key.
func (s *Store) ClearCandidateKey(ctx context.Context, interviewID string) error {
	if err := s.hot.Del(ctx, byokKey(interviewID)).Err(); err != nil {
		return fmt.Errorf("session store: clear candidate key: %w", err)
	}
	return nil
}

// Key implements the gateway's BYOK lookup. A session without a registered
// key returns ("", nil).
func (s *Store) Key(ctx context.Context, interviewID string) (string, error) {
	key, err := s.hot.Get(ctx, byokKey(interviewID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("session store: candidate key lookup: %w", err)
	}
	return key, nil
}

// ttl computes the hot-tier TTL for a session: the remaining interview time
// plus a reconnection grace period, never below the minimum.
func (s *Store) ttl(st *State) time.Duration {
	ttl := st.Remaining(time.Now()) + hotTTLGrace
	if ttl < minHotTTL {
		ttl = minHotTTL
	}
	return ttl
}

// recordStart keeps the durable started_at meaningful for sessions that were
// created but never started.
func recordStart(st *State) time.Time {
	if st.StartedAt.IsZero() {
		return st.CreatedAt
	}
	return st.StartedAt
}
