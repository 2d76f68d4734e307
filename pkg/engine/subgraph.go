package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/dugoutlabs/dugout/pkg/domain"
	"github.com/dugoutlabs/dugout/pkg/ports"
)

// Subgraph is an independently compiled graph invoked by a parent graph as a
// single opaque step. The parent passes the full state in and receives one
// combined delta out; internal steps and edges are not addressable from
// outside. The only externally observable transitions are entered, paused on
// an internal interrupt, and exited.
type Subgraph struct {
	name string
	c    *Compiled
}

// NewSubgraph compiles g into an opaque step named name.
func NewSubgraph(name string, g *Graph) (*Subgraph, error) {
	c, err := g.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile subgraph %s: %w", name, err)
	}
	return &Subgraph{name: name, c: c}, nil
}

// Name implements ports.Step.
func (s *Subgraph) Name() string { return s.name }

// Run walks the internal graph from its entry on a private copy of the state
// and returns the accumulated delta. An internal interrupt propagates with
// this subgraph's name prefixed onto its path, together with the progress
// made before the pause.
func (s *Subgraph) Run(ctx context.Context, st *domain.State) (*domain.Delta, error) {
	return s.walk(ctx, st.Clone(), s.c.Entry(), &domain.Delta{})
}

func (s *Subgraph) walk(ctx context.Context, scratch *domain.State, pos string, acc *domain.Delta) (*domain.Delta, error) {
	for pos != End {
		step, ok := s.c.Step(pos)
		if !ok {
			return nil, fmt.Errorf("subgraph %s: no step %q", s.name, pos)
		}
		delta, err := step.Run(ctx, scratch)
		if err != nil {
			return nil, s.wrap(pos, acc, err)
		}
		scratch.Apply(delta)
		acc.Merge(delta)
		next, err := s.c.Next(pos, scratch)
		if err != nil {
			return nil, err
		}
		pos = next
	}
	return acc, nil
}

// Resume delivers a resume value to the internal step recorded on the
// interrupt path, then continues the internal walk to the subgraph's exit.
func (s *Subgraph) Resume(ctx context.Context, st *domain.State, intr *domain.Interrupt, value any) (*domain.Delta, error) {
	if len(intr.Path) < 2 || intr.Path[0] != s.name {
		return nil, fmt.Errorf("subgraph %s: interrupt path %v does not address an internal step: %w",
			s.name, intr.Path, domain.ErrCheckpointCorrupt)
	}
	inner := *intr
	inner.Path = intr.Path[1:]
	target := inner.Path[0]

	step, ok := s.c.Step(target)
	if !ok {
		return nil, fmt.Errorf("subgraph %s: no step %q: %w", s.name, target, domain.ErrCheckpointCorrupt)
	}
	resumable, ok := step.(ports.Resumable)
	if !ok {
		return nil, fmt.Errorf("subgraph %s: step %q cannot accept a resume value: %w",
			s.name, target, domain.ErrCheckpointCorrupt)
	}

	scratch := st.Clone()
	acc := &domain.Delta{}
	delta, err := resumable.Resume(ctx, scratch, &inner, value)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidResume) {
			return nil, err
		}
		return nil, s.wrap(target, acc, err)
	}
	scratch.Apply(delta)
	acc.Merge(delta)

	next, err := s.c.Next(target, scratch)
	if err != nil {
		return nil, err
	}
	return s.walk(ctx, scratch, next, acc)
}

// wrap handles a step error: pauses are re-raised with this subgraph's name
// prefixed and the accumulated progress attached, everything else is wrapped
// with the failing position.
func (s *Subgraph) wrap(pos string, acc *domain.Delta, err error) error {
	var p *domain.Paused
	if errors.As(err, &p) {
		acc.Merge(p.Delta)
		intr := *p.Interrupt
		intr.Path = append([]string{s.name}, p.Interrupt.Path...)
		return &domain.Paused{Interrupt: &intr, Delta: acc}
	}
	return fmt.Errorf("subgraph %s: step %s: %w", s.name, pos, err)
}
