package flow_test

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dugoutlabs/dugout/pkg/domain"
	"github.com/dugoutlabs/dugout/pkg/flow"
	"github.com/dugoutlabs/dugout/pkg/ports"
)

// Collaborator fakes with overridable behavior. Each counts its calls so
// tests can assert how often a path consulted it.

type fakeDirectory struct {
	calls   atomic.Int64
	players []domain.PlayerRef
	err     error
}

func (f *fakeDirectory) SearchPlayer(ctx context.Context, name string) ([]domain.PlayerRef, error) {
	f.calls.Add(1)
	return f.players, f.err
}

type fakeStats struct {
	calls  atomic.Int64
	lastID atomic.Int64
	stats  *domain.PlayerStats
	err    error
}

func (f *fakeStats) PlayerStats(ctx context.Context, playerID int) (*domain.PlayerStats, error) {
	f.calls.Add(1)
	f.lastID.Store(int64(playerID))
	if f.err != nil {
		return nil, f.err
	}
	if f.stats != nil {
		return f.stats, nil
	}
	return &domain.PlayerStats{
		PlayerID: playerID,
		FullName: "Test Player",
		Hitting:  &domain.HittingLine{AVG: ".310", HomeRuns: 24, OPS: ".945", RBI: 71},
	}, nil
}

type fakeRetriever struct {
	calls  atomic.Int64
	answer *ports.GroundedAnswer
	errs   []error
}

func (f *fakeRetriever) GroundedAnswer(ctx context.Context, query string) (*ports.GroundedAnswer, error) {
	n := f.calls.Add(1)
	if int(n) <= len(f.errs) {
		return nil, f.errs[n-1]
	}
	if f.answer != nil {
		return f.answer, nil
	}
	return &ports.GroundedAnswer{Text: "grounded answer"}, nil
}

type fakeLedger struct {
	txCalls       atomic.Int64
	contractCalls atomic.Int64
	txs           []domain.Transaction
	contract      *domain.Contract
	err           error
}

func (f *fakeLedger) FindTransactions(ctx context.Context, playerID int) ([]domain.Transaction, error) {
	f.txCalls.Add(1)
	return f.txs, f.err
}

func (f *fakeLedger) Contract(ctx context.Context, playerID int) (*domain.Contract, error) {
	f.contractCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if f.contract != nil {
		return f.contract, nil
	}
	return &domain.Contract{PlayerID: playerID, Seasons: "2024-2032", Value: "$182M"}, nil
}

type fakeJudge struct {
	calls    atomic.Int64
	verdicts []domain.Verdict
	err      error
}

func (f *fakeJudge) JudgeAnswer(ctx context.Context, query, answer string) (domain.Verdict, error) {
	n := f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	if len(f.verdicts) == 0 {
		return domain.VerdictOK, nil
	}
	if int(n) <= len(f.verdicts) {
		return f.verdicts[n-1], nil
	}
	return f.verdicts[len(f.verdicts)-1], nil
}

type fakeClassifier struct {
	calls    atomic.Int64
	decision *ports.RoutingDecision
	err      error
}

func (f *fakeClassifier) ClassifyAndExtract(ctx context.Context, messages []domain.Message) (*ports.RoutingDecision, error) {
	f.calls.Add(1)
	return f.decision, f.err
}

type fakeResponder struct {
	calls   atomic.Int64
	respond func(prompt string) (string, error)
}

func (f *fakeResponder) Respond(ctx context.Context, prompt string) (string, error) {
	f.calls.Add(1)
	if f.respond != nil {
		return f.respond(prompt)
	}
	return "composed: " + prompt, nil
}

type fakePlanner struct {
	calls atomic.Int64
	next  func(trace []domain.ToolExchange) (*ports.PlannerTurn, error)
}

func (f *fakePlanner) Next(ctx context.Context, messages []domain.Message, tools []ports.ToolSpec, trace []domain.ToolExchange) (*ports.PlannerTurn, error) {
	f.calls.Add(1)
	if f.next != nil {
		return f.next(trace)
	}
	return &ports.PlannerTurn{Reply: "planner reply"}, nil
}

// collaborators bundles one fake per port with workable defaults.
type collaborators struct {
	directory  *fakeDirectory
	stats      *fakeStats
	retriever  *fakeRetriever
	ledger     *fakeLedger
	judge      *fakeJudge
	classifier *fakeClassifier
	responder  *fakeResponder
	planner    *fakePlanner
}

func newCollaborators() *collaborators {
	return &collaborators{
		directory:  &fakeDirectory{},
		stats:      &fakeStats{},
		retriever:  &fakeRetriever{},
		ledger:     &fakeLedger{},
		judge:      &fakeJudge{},
		classifier: &fakeClassifier{decision: &ports.RoutingDecision{Route: string(domain.RouteFallback)}},
		responder:  &fakeResponder{},
		planner:    &fakePlanner{},
	}
}

func (c *collaborators) config() flow.Config {
	return flow.Config{
		GroundedBackoff: time.Millisecond,
		Directory:       c.directory,
		Stats:           c.stats,
		Documents:       c.retriever,
		Ledger:          c.ledger,
		Judge:           c.judge,
		Classifier:      c.classifier,
		Responder:       c.responder,
		Planner:         c.planner,
	}
}
