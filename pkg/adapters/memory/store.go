package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/dugoutlabs/dugout/pkg/domain"
)

// Store implements ports.CheckpointStore in memory. Safe for concurrent use;
// suitable for tests and single-process deployments.
type Store struct {
	mu   sync.RWMutex
	data map[string][]json.RawMessage
}

// NewStore creates an empty in-memory checkpoint store.
func NewStore() *Store {
	return &Store{
		data: make(map[string][]json.RawMessage),
	}
}

// Append persists a checkpoint. Checkpoints are stored serialized so callers
// get the same isolation a durable store would give them.
func (s *Store) Append(ctx context.Context, cp *domain.Checkpoint) error {
	raw, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.data[cp.SessionID]
	if cp.Seq != int64(len(log))+1 {
		return fmt.Errorf("session %s: seq %d after %d: %w",
			cp.SessionID, cp.Seq, len(log), domain.ErrCheckpointConflict)
	}
	s.data[cp.SessionID] = append(log, raw)
	return nil
}

// Latest returns the most recent checkpoint for the session.
func (s *Store) Latest(ctx context.Context, sessionID string) (*domain.Checkpoint, error) {
	s.mu.RLock()
	log, ok := s.data[sessionID]
	s.mu.RUnlock()

	if !ok || len(log) == 0 {
		return nil, domain.ErrSessionNotFound
	}

	var cp domain.Checkpoint
	if err := json.Unmarshal(log[len(log)-1], &cp); err != nil {
		return nil, fmt.Errorf("session %s: %w: %v", sessionID, domain.ErrCheckpointCorrupt, err)
	}
	return &cp, nil
}

// List returns the known session IDs in deterministic order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	sort.Strings(sessions)
	return sessions, nil
}

// Delete removes all checkpoints for a session.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}
