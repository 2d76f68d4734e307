package ports

import (
	"context"

	"github.com/dugoutlabs/dugout/pkg/domain"
)

// Step is a unit of execution: it reads the state and produces a delta. A
// step that cannot proceed without external input returns a *domain.Paused
// error carrying the interrupt and any progress made so far.
//
// The engine's dispatch is identical whether a Step is a primitive function
// or a compiled subgraph.
type Step interface {
	Name() string
	Run(ctx context.Context, st *domain.State) (*domain.Delta, error)
}

// Resumable is implemented by steps that can raise interrupts. Resume is
// invoked with the interrupt the step previously raised and the externally
// supplied value; it continues the step past the pause point.
//
// A malformed value must be rejected with domain.ErrInvalidResume without
// changing any state.
type Resumable interface {
	Step
	Resume(ctx context.Context, st *domain.State, intr *domain.Interrupt, value any) (*domain.Delta, error)
}

// StepFunc adapts a function to the Step interface.
type StepFunc struct {
	ID string
	Fn func(ctx context.Context, st *domain.State) (*domain.Delta, error)
}

func (s StepFunc) Name() string { return s.ID }

func (s StepFunc) Run(ctx context.Context, st *domain.State) (*domain.Delta, error) {
	return s.Fn(ctx, st)
}
