package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dugoutlabs/dugout/pkg/domain"
)

// RunCheckpointStoreContract verifies that a CheckpointStore implementation
// adheres to the interface contract. Adapter test suites call this against
// their concrete store.
func RunCheckpointStoreContract(t *testing.T, store CheckpointStore) {
	ctx := context.Background()
	sessionID := "contract-" + time.Now().Format("20060102150405.000")

	newCheckpoint := func(id string, seq int64, pos string) *domain.Checkpoint {
		st := domain.NewState()
		st.BeginQuery("what is the infield fly rule")
		return &domain.Checkpoint{
			SessionID: id,
			Seq:       seq,
			State:     st,
			Position:  pos,
			CreatedAt: time.Now().UTC(),
		}
	}

	t.Run("Append and Latest", func(t *testing.T) {
		cp := newCheckpoint(sessionID, 1, "router")
		require.NoError(t, store.Append(ctx, cp))

		loaded, err := store.Latest(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), loaded.Seq)
		assert.Equal(t, "router", loaded.Position)
		require.NotNil(t, loaded.State)
		assert.Equal(t, "what is the infield fly rule", loaded.State.LastUserQuery())
	})

	t.Run("Latest is idempotent", func(t *testing.T) {
		first, err := store.Latest(ctx, sessionID)
		require.NoError(t, err)
		second, err := store.Latest(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, first.Seq, second.Seq)
		assert.Equal(t, first.State.Messages, second.State.Messages)
	})

	t.Run("Sequence ordering", func(t *testing.T) {
		require.NoError(t, store.Append(ctx, newCheckpoint(sessionID, 2, "documents")))
		loaded, err := store.Latest(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), loaded.Seq)
	})

	t.Run("Append conflict", func(t *testing.T) {
		// Re-appending seq 2 must lose: the checkpoint advances exactly once.
		err := store.Append(ctx, newCheckpoint(sessionID, 2, "verify"))
		assert.ErrorIs(t, err, domain.ErrCheckpointConflict)

		// A gap is a conflict too.
		err = store.Append(ctx, newCheckpoint(sessionID, 5, "verify"))
		assert.ErrorIs(t, err, domain.ErrCheckpointConflict)

		loaded, err := store.Latest(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "documents", loaded.Position, "failed append must not change the resume point")
	})

	t.Run("Latest non-existent", func(t *testing.T) {
		_, err := store.Latest(ctx, "absent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Pending interrupt round-trip", func(t *testing.T) {
		id := sessionID + "-paused"
		cp := newCheckpoint(id, 1, "stats")
		cp.Pending = &domain.Interrupt{
			ID:     "intr-1",
			Path:   []string{"stats", "player_search"},
			Kind:   domain.InterruptDisambiguation,
			Status: domain.InterruptRaised,
			Prompt: "Which player did you mean?",
			Candidates: []domain.PlayerRef{
				{ID: 1, Name: "Will Smith", Team: "Dodgers"},
				{ID: 2, Name: "Will Smith", Team: "Royals"},
			},
		}
		require.NoError(t, store.Append(ctx, cp))

		loaded, err := store.Latest(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, loaded.Pending)
		assert.Equal(t, domain.InterruptDisambiguation, loaded.Pending.Kind)
		assert.Len(t, loaded.Pending.Candidates, 2)
		assert.Equal(t, []string{"stats", "player_search"}, loaded.Pending.Path)

		require.NoError(t, store.Delete(ctx, id))
	})

	t.Run("Session isolation", func(t *testing.T) {
		other := sessionID + "-other"
		require.NoError(t, store.Append(ctx, newCheckpoint(other, 1, "router")))
		defer func() { _ = store.Delete(ctx, other) }()

		loaded, err := store.Latest(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), loaded.Seq, "writes to one session must not affect another")
	})

	t.Run("List", func(t *testing.T) {
		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, sessionID)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, sessionID))
		_, err := store.Latest(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})
}
