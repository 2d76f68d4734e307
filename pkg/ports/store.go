package ports

import (
	"context"

	"github.com/dugoutlabs/dugout/pkg/domain"
)

// CheckpointStore persists checkpoints keyed by session identifier. It is the
// only shared mutable resource in the system; implementations must support
// concurrent access for distinct sessions without cross-session interference.
type CheckpointStore interface {
	// Append durably writes a checkpoint. The checkpoint's Seq must be
	// exactly one past the session's latest; otherwise the write fails with
	// domain.ErrCheckpointConflict. This is what makes resume commit
	// at-most-once per pause point.
	Append(ctx context.Context, cp *domain.Checkpoint) error

	// Latest returns the most recent checkpoint for a session, or
	// domain.ErrSessionNotFound. Loading twice without an intervening
	// Append yields identical state.
	Latest(ctx context.Context, sessionID string) (*domain.Checkpoint, error)

	// List returns the known session identifiers.
	List(ctx context.Context) ([]string, error)

	// Delete removes all checkpoints for a session.
	Delete(ctx context.Context, sessionID string) error
}
