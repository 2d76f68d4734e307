package domain

import (
	"context"
	"time"
)

// StepEvent describes the execution of one step within a session.
type StepEvent struct {
	SessionID string        `json:"session_id"`
	Step      string        `json:"step"`
	Took      time.Duration `json:"took,omitempty"`
}

// InterruptEvent describes a raised interrupt.
type InterruptEvent struct {
	SessionID string        `json:"session_id"`
	Step      string        `json:"step"`
	Kind      InterruptKind `json:"kind"`
}

// CheckpointEvent describes a persisted checkpoint.
type CheckpointEvent struct {
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
}

// LifecycleHooks defines callbacks for engine observability. All hooks are
// optional and must not block.
type LifecycleHooks struct {
	OnStepStart  func(context.Context, *StepEvent)
	OnStepEnd    func(context.Context, *StepEvent)
	OnInterrupt  func(context.Context, *InterruptEvent)
	OnCheckpoint func(context.Context, *CheckpointEvent)
}
