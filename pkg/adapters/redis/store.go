package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/dugoutlabs/dugout/pkg/domain"
)

// Store implements ports.CheckpointStore using Redis. Per session it keeps
// the latest checkpoint (the resume point) and a sequence counter; older
// checkpoints are superseded on append, which is all the retention the engine
// requires. Sessions are tracked in a ZSET index so List can prune expired
// entries lazily.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the Store.
type Option func(*Store)

// WithTTL sets the expiration for sessions (0 = no expiration).
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for sessions.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Redis store with its own client.
func New(address, password string, db int, opts ...Option) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "dugout:session:",
		ttl:    0,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *Store) seqKey(sessionID string) string {
	return s.prefix + sessionID + ":seq"
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Append persists a checkpoint, enforcing the sequence contract with an
// optimistic transaction on the session's sequence counter. Concurrent
// appends for one session race on WATCH; the loser gets
// domain.ErrCheckpointConflict.
func (s *Store) Append(ctx context.Context, cp *domain.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	seqKey := s.seqKey(cp.SessionID)
	err = s.client.Watch(ctx, func(tx *backend.Tx) error {
		current, err := tx.Get(ctx, seqKey).Int64()
		if err != nil && !errors.Is(err, backend.Nil) {
			return fmt.Errorf("failed to read sequence: %w", err)
		}
		if cp.Seq != current+1 {
			return fmt.Errorf("session %s: seq %d after %d: %w",
				cp.SessionID, cp.Seq, current, domain.ErrCheckpointConflict)
		}

		// Index score is the expiry instant; no TTL means "far future".
		score := float64(time.Now().Add(s.ttl).Unix())
		if s.ttl == 0 {
			score = 4102444800 // 2100-01-01
		}

		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			pipe.Set(ctx, s.key(cp.SessionID), data, s.ttl)
			pipe.Set(ctx, seqKey, cp.Seq, s.ttl)
			pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: cp.SessionID})
			return nil
		})
		return err
	}, seqKey)

	if errors.Is(err, backend.TxFailedErr) {
		return fmt.Errorf("session %s: concurrent append: %w", cp.SessionID, domain.ErrCheckpointConflict)
	}
	return err
}

// Latest retrieves the session's resume point.
func (s *Store) Latest(ctx context.Context, sessionID string) (*domain.Checkpoint, error) {
	val, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var cp domain.Checkpoint
	if err := json.Unmarshal([]byte(val), &cp); err != nil {
		return nil, fmt.Errorf("session %s: %w: %v", sessionID, domain.ErrCheckpointCorrupt, err)
	}
	return &cp, nil
}

// List returns active sessions, lazily pruning expired index entries.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired sessions: %w", err)
	}

	sessions, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// Delete removes the session.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(sessionID))
	pipe.Del(ctx, s.seqKey(sessionID))
	pipe.ZRem(ctx, s.indexKey(), sessionID)
	_, err := pipe.Exec(ctx)
	return err
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
