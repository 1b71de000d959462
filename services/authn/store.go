package authn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RevocationChannel carries the id of every session that signs out.
const RevocationChannel = "sessions:revoked"

// ErrSessionNotFound is returned when no live record exists for a session id.
var ErrSessionNotFound = errors.New("session not found")

// Record is the server-side half of a session. A token is only honoured
// while its record exists.
type Record struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// maxLocalRecords bounds the in-process record cache.
const maxLocalRecords = 4096

type localRecord struct {
	rec   Record
	until time.Time
}

// SessionStore keeps session records in Redis with a TTL matching ExpiresAt.
// With WithLocalCache it also keeps recently read records in process, but
// only while WatchRevocations is subscribed.
type SessionStore struct {
	client redis.UniversalClient
	prefix string

	localTTL time.Duration
	mu       sync.Mutex
	local    map[uuid.UUID]localRecord
	watching atomic.Bool
}

// StoreOption configures a SessionStore.
type StoreOption func(*SessionStore)

// WithLocalCache serves repeated lookups from memory for up to ttl.
func WithLocalCache(ttl time.Duration) StoreOption {
	return func(s *SessionStore) {
		s.localTTL = ttl
	}
}

// NewSessionStore creates a Redis-backed session store.
func NewSessionStore(client redis.UniversalClient, opts ...StoreOption) *SessionStore {
	s := &SessionStore{client: client, prefix: "session:", local: make(map[uuid.UUID]localRecord)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SessionStore) key(id uuid.UUID) string {
	return s.prefix + id.String()
}

// Save writes rec. Records already past expiry are rejected.
func (s *SessionStore) Save(ctx context.Context, rec Record) error {
	if rec.ID == uuid.Nil {
		return errors.New("session ID cannot be empty")
	}
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session is expired")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(rec.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Get loads the record for id, or ErrSessionNotFound.
func (s *SessionStore) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	if rec, ok := s.cached(id); ok {
		return rec, nil
	}

	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if !time.Now().Before(rec.ExpiresAt) {
		if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
			return nil, fmt.Errorf("cleanup expired session: %w", err)
		}
		return nil, ErrSessionNotFound
	}
	s.remember(rec)
	return &rec, nil
}

// Revoke deletes the record for id and announces it on RevocationChannel.
// It reports whether a record existed.
func (s *SessionStore) Revoke(ctx context.Context, id uuid.UUID) (bool, error) {
	s.forget(id)
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redis del: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	if err := s.client.Publish(ctx, RevocationChannel, id.String()).Err(); err != nil {
		return true, fmt.Errorf("publish revocation: %w", err)
	}
	return true, nil
}

// WatchRevocations subscribes to RevocationChannel and evicts revoked
// sessions from the local cache. The cache is only consulted while the
// subscription is live. It blocks until ctx is done.
func (s *SessionStore) WatchRevocations(ctx context.Context, logger *zap.Logger) error {
	pubsub := s.client.Subscribe(ctx, RevocationChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", RevocationChannel, err)
	}

	s.watching.Store(true)
	defer func() {
		s.watching.Store(false)
		s.mu.Lock()
		clear(s.local)
		s.mu.Unlock()
	}()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			id, err := uuid.Parse(msg.Payload)
			if err != nil {
				logger.Warn("ignoring malformed revocation", zap.String("payload", msg.Payload))
				continue
			}
			s.forget(id)
		}
	}
}

func (s *SessionStore) cached(id uuid.UUID) (*Record, bool) {
	if s.localTTL <= 0 || !s.watching.Load() {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.local[id]
	now := time.Now()
	if !ok || now.After(entry.until) || !now.Before(entry.rec.ExpiresAt) {
		delete(s.local, id)
		return nil, false
	}
	rec := entry.rec
	return &rec, true
}

func (s *SessionStore) remember(rec Record) {
	if s.localTTL <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.watching.Load() {
		return
	}

	now := time.Now()
	if len(s.local) >= maxLocalRecords {
		for id, entry := range s.local {
			if now.After(entry.until) {
				delete(s.local, id)
			}
		}
		if len(s.local) >= maxLocalRecords {
			return
		}
	}
	s.local[rec.ID] = localRecord{rec: rec, until: now.Add(s.localTTL)}
}

func (s *SessionStore) forget(id uuid.UUID) {
	s.mu.Lock()
	delete(s.local, id)
	s.mu.Unlock()
}

// Ping checks the Redis connection.
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
