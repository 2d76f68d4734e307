package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dugoutlabs/dugout/internal/logging"
	"github.com/dugoutlabs/dugout/pkg/domain"
	"github.com/dugoutlabs/dugout/pkg/ports"
	"github.com/dugoutlabs/dugout/pkg/session"
)

// Result is the outcome of a run or resume call: either a terminal answer or
// a pending interrupt awaiting external input.
type Result struct {
	SessionID string            `json:"session_id"`
	Answer    string            `json:"answer,omitempty"`
	Interrupt *domain.Interrupt `json:"interrupt,omitempty"`
	State     *domain.State     `json:"state,omitempty"`
}

// Terminal reports whether the invocation reached a terminal step.
func (r *Result) Terminal() bool { return r.Interrupt == nil }

// Engine walks a compiled graph from its entry step to the terminal
// position, resolving conditional edges, invoking subgraphs, and appending a
// checkpoint after every step. Steps of one session execute strictly
// sequentially; independent sessions run concurrently and share only the
// checkpoint store.
type Engine struct {
	graph    *Compiled
	store    ports.CheckpointStore
	sessions *session.Manager
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures the Engine.
type Option func(*Engine, *[]session.Option)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine, _ *[]session.Option) {
		e.logger = logger
	}
}

// WithHooks registers lifecycle hooks for observability.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine, _ *[]session.Option) {
		e.hooks = hooks
	}
}

// WithLocker enables distributed session locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(_ *Engine, sessOpts *[]session.Option) {
		*sessOpts = append(*sessOpts, session.WithLocker(locker))
	}
}

// New creates an engine over a compiled graph and a checkpoint store.
func New(graph *Compiled, store ports.CheckpointStore, opts ...Option) *Engine {
	e := &Engine{
		graph:  graph,
		store:  store,
		logger: logging.NewNop(),
		now:    time.Now,
	}
	var sessOpts []session.Option
	for _, opt := range opts {
		opt(e, &sessOpts)
	}
	sessOpts = append(sessOpts, session.WithLogger(e.logger))
	e.sessions = session.NewManager(sessOpts...)
	return e
}

// Run submits a query to a session and executes the graph until it reaches a
// terminal step or pauses on an interrupt. A session waiting on an interrupt
// rejects new queries with domain.ErrSessionPaused.
func (e *Engine) Run(ctx context.Context, sessionID, query string) (*Result, error) {
	var res *Result
	err := e.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		st := domain.NewState()
		var seq int64

		cp, err := e.store.Latest(ctx, sessionID)
		switch {
		case errors.Is(err, domain.ErrSessionNotFound):
			// Fresh session.
		case err != nil:
			return fmt.Errorf("load session %s: %w", sessionID, err)
		default:
			if cp.Pending != nil {
				return fmt.Errorf("session %s: %w", sessionID, domain.ErrSessionPaused)
			}
			st = cp.State
			seq = cp.Seq
		}

		st.BeginQuery(query)
		res, err = e.loop(ctx, sessionID, st, e.graph.Entry(), seq)
		return err
	})
	return res, err
}

// Resume delivers an externally supplied value to the session's pending
// interrupt and continues execution past the step that raised it.
func (e *Engine) Resume(ctx context.Context, sessionID string, value any) (*Result, error) {
	var res *Result
	err := e.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		cp, err := e.store.Latest(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("load session %s: %w", sessionID, err)
		}
		if cp.Pending == nil {
			return fmt.Errorf("session %s: %w", sessionID, domain.ErrNoPendingInterrupt)
		}

		step, ok := e.graph.Step(cp.Position)
		if !ok {
			return fmt.Errorf("session %s: paused step %q not in graph: %w",
				sessionID, cp.Position, domain.ErrCheckpointCorrupt)
		}
		resumable, ok := step.(ports.Resumable)
		if !ok {
			return fmt.Errorf("session %s: step %q cannot accept a resume value: %w",
				sessionID, cp.Position, domain.ErrCheckpointCorrupt)
		}

		// Work on copies: a stored checkpoint is never mutated.
		st := cp.State.Clone()
		intr := *cp.Pending
		intr.Status = domain.InterruptResumed

		delta, err := resumable.Resume(ctx, st, &intr, value)
		var p *domain.Paused
		if errors.As(err, &p) {
			// The step suspended again on a new interrupt (e.g. the planner
			// asking approval for a second sensitive call).
			res, err = e.pause(ctx, sessionID, st, cp.Position, cp.Seq, p)
			return err
		}
		if err != nil {
			if errors.Is(err, domain.ErrInvalidResume) {
				// Rejected synchronously; the checkpoint is unchanged.
				return fmt.Errorf("session %s: %w", sessionID, err)
			}
			return fmt.Errorf("session %s: resume step %s: %w", sessionID, cp.Position, err)
		}
		intr.Status = domain.InterruptConsumed

		st.Apply(delta)
		next, err := e.graph.Next(cp.Position, st)
		if err != nil {
			return err
		}

		// Committing this checkpoint consumes the interrupt; a concurrent
		// resume of the same pause point loses on the sequence conflict.
		seq := cp.Seq + 1
		if err := e.append(ctx, sessionID, st, next, seq, nil); err != nil {
			return err
		}

		res, err = e.loop(ctx, sessionID, st, next, seq)
		return err
	})
	return res, err
}

// Sessions lists the known session identifiers.
func (e *Engine) Sessions(ctx context.Context) ([]string, error) {
	return e.store.List(ctx)
}

// Abandon marks a session terminal without further transitions. Any pending
// interrupt is dropped.
func (e *Engine) Abandon(ctx context.Context, sessionID string) error {
	return e.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		cp, err := e.store.Latest(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("load session %s: %w", sessionID, err)
		}
		return e.append(ctx, sessionID, cp.State, End, cp.Seq+1, nil)
	})
}

// loop executes steps from pos until the terminal position, appending a
// checkpoint after each one. seq is the session's last committed sequence
// number.
func (e *Engine) loop(ctx context.Context, sessionID string, st *domain.State, pos string, seq int64) (*Result, error) {
	for pos != End {
		step, ok := e.graph.Step(pos)
		if !ok {
			return nil, fmt.Errorf("graph %s: no step %q", e.graph.Name(), pos)
		}

		ev := &domain.StepEvent{SessionID: sessionID, Step: pos}
		if e.hooks.OnStepStart != nil {
			e.hooks.OnStepStart(ctx, ev)
		}
		started := e.now()
		delta, err := step.Run(ctx, st)
		ev.Took = e.now().Sub(started)
		if e.hooks.OnStepEnd != nil {
			e.hooks.OnStepEnd(ctx, ev)
		}

		var p *domain.Paused
		if errors.As(err, &p) {
			return e.pause(ctx, sessionID, st, pos, seq, p)
		}
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", pos, err)
		}

		st.Apply(delta)
		next, err := e.graph.Next(pos, st)
		if err != nil {
			return nil, err
		}

		seq++
		if err := e.append(ctx, sessionID, st, next, seq, nil); err != nil {
			return nil, err
		}
		e.logger.Debug("step complete", "session_id", sessionID, "step", pos, "next", next, "took", ev.Took)
		pos = next
	}

	return &Result{SessionID: sessionID, Answer: st.LastAnswer(), State: st}, nil
}

// pause applies the partial progress of a suspending step, checkpoints the
// session with the raised interrupt, and surfaces it to the caller. The
// session stays durably paused until resumed or abandoned; that idle state is
// intentional, not a failure.
func (e *Engine) pause(ctx context.Context, sessionID string, st *domain.State, pos string, seq int64, p *domain.Paused) (*Result, error) {
	st.Apply(p.Delta)

	intr := *p.Interrupt
	intr.Status = domain.InterruptRaised
	if intr.ID == "" {
		intr.ID = uuid.NewString()
	}

	if err := e.append(ctx, sessionID, st, pos, seq+1, &intr); err != nil {
		return nil, err
	}
	if e.hooks.OnInterrupt != nil {
		e.hooks.OnInterrupt(ctx, &domain.InterruptEvent{SessionID: sessionID, Step: intr.Step(), Kind: intr.Kind})
	}
	e.logger.Info("session paused",
		"session_id", sessionID,
		"step", intr.Step(),
		"kind", intr.Kind,
	)
	return &Result{SessionID: sessionID, Interrupt: &intr, State: st}, nil
}

func (e *Engine) append(ctx context.Context, sessionID string, st *domain.State, pos string, seq int64, pending *domain.Interrupt) error {
	cp := &domain.Checkpoint{
		SessionID: sessionID,
		Seq:       seq,
		State:     st,
		Position:  pos,
		Pending:   pending,
		CreatedAt: e.now().UTC(),
	}
	if err := e.store.Append(ctx, cp); err != nil {
		return fmt.Errorf("checkpoint session %s seq %d: %w", sessionID, seq, err)
	}
	if e.hooks.OnCheckpoint != nil {
		e.hooks.OnCheckpoint(ctx, &domain.CheckpointEvent{SessionID: sessionID, Seq: seq})
	}
	return nil
}
