package domain

import "time"

// Checkpoint is an immutable snapshot of a session: its state, the next
// position in the graph, and the pending interrupt if execution is paused.
// Checkpoints for a session are strictly ordered by Seq; the latest one is
// the resume point. A checkpoint is never mutated after creation.
type Checkpoint struct {
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
	State     *State `json:"state"`

	// Position is the next step to execute, or the paused step when Pending
	// is set. The terminal position is engine.End.
	Position string `json:"position"`

	Pending   *Interrupt `json:"pending_interrupt,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
