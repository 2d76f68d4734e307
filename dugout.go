package dugout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dugoutlabs/dugout/internal/logging"
	"github.com/dugoutlabs/dugout/pkg/adapters/memory"
	"github.com/dugoutlabs/dugout/pkg/domain"
	"github.com/dugoutlabs/dugout/pkg/engine"
	"github.com/dugoutlabs/dugout/pkg/flow"
	"github.com/dugoutlabs/dugout/pkg/ports"
)

// Result is the outcome of a query or resume: a terminal answer, or a pending
// interrupt awaiting input.
type Result = engine.Result

// Agent is the high-level entry point for the library. It compiles the
// assistant graph over the configured collaborators and executes it with
// durable checkpointing.
type Agent struct {
	engine *engine.Engine

	flowCfg flow.Config
	store   ports.CheckpointStore
	locker  ports.DistributedLocker
	hooks   domain.LifecycleHooks
	logger  *slog.Logger
}

// Option defines a functional option for configuring the Agent.
type Option func(*Agent)

// WithStore sets the checkpoint backend (default: in-memory).
func WithStore(store ports.CheckpointStore) Option {
	return func(a *Agent) { a.store = store }
}

// WithLocker enables distributed session locking for multi-replica
// deployments.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(a *Agent) { a.locker = locker }
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(a *Agent) { a.hooks = hooks }
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}

// WithMaxReplans caps verify/replan attempts per query.
func WithMaxReplans(n int) Option {
	return func(a *Agent) { a.flowCfg.MaxReplans = n }
}

// WithGroundedBackoff overrides the base retry delay for grounded retrieval.
func WithGroundedBackoff(d time.Duration) Option {
	return func(a *Agent) { a.flowCfg.GroundedBackoff = d }
}

// Collaborators bundles the external services behind the assistant's
// resolution paths.
type Collaborators struct {
	Directory  ports.PlayerDirectory
	Stats      ports.StatsProvider
	Documents  ports.GroundedRetriever
	Ledger     ports.TransactionLedger
	Judge      ports.Judge
	Classifier ports.RouteClassifier
	Responder  ports.Responder
	Planner    ports.PlannerModel
}

// New initializes an Agent over the given collaborators.
func New(collab Collaborators, opts ...Option) (*Agent, error) {
	a := &Agent{
		store:  memory.NewStore(),
		logger: logging.NewNop(),
		flowCfg: flow.Config{
			Directory:  collab.Directory,
			Stats:      collab.Stats,
			Documents:  collab.Documents,
			Ledger:     collab.Ledger,
			Judge:      collab.Judge,
			Classifier: collab.Classifier,
			Responder:  collab.Responder,
			Planner:    collab.Planner,
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.flowCfg.Logger = a.logger

	compiled, err := flow.Build(a.flowCfg)
	if err != nil {
		return nil, fmt.Errorf("build assistant graph: %w", err)
	}

	engOpts := []engine.Option{
		engine.WithLogger(a.logger),
		engine.WithHooks(a.hooks),
	}
	if a.locker != nil {
		engOpts = append(engOpts, engine.WithLocker(a.locker))
	}
	a.engine = engine.New(compiled, a.store, engOpts...)
	return a, nil
}

// Ask submits a query to a session. The session's conversation history is
// durable; a fresh session ID starts a new conversation.
func (a *Agent) Ask(ctx context.Context, sessionID, query string) (*Result, error) {
	return a.engine.Run(ctx, sessionID, query)
}

// Resume answers the session's pending interrupt: a candidate choice for
// disambiguation, an approve/deny decision for approvals.
func (a *Agent) Resume(ctx context.Context, sessionID string, value any) (*Result, error) {
	return a.engine.Resume(ctx, sessionID, value)
}

// Sessions lists known session identifiers.
func (a *Agent) Sessions(ctx context.Context) ([]string, error) {
	return a.engine.Sessions(ctx)
}

// Abandon marks a session terminal, dropping any pending interrupt.
func (a *Agent) Abandon(ctx context.Context, sessionID string) error {
	return a.engine.Abandon(ctx, sessionID)
}
