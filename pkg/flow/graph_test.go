package flow_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dugoutlabs/dugout/pkg/adapters/memory"
	"github.com/dugoutlabs/dugout/pkg/domain"
	"github.com/dugoutlabs/dugout/pkg/engine"
	"github.com/dugoutlabs/dugout/pkg/flow"
	"github.com/dugoutlabs/dugout/pkg/ports"
)

func newEngine(t *testing.T, c *collaborators) (*engine.Engine, ports.CheckpointStore) {
	t.Helper()
	compiled, err := flow.Build(c.config())
	require.NoError(t, err)
	store := memory.NewStore()
	return engine.New(compiled, store), store
}

func TestBuild_RequiresCollaborators(t *testing.T) {
	cfg := newCollaborators().config()
	cfg.Judge = nil
	_, err := flow.Build(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Judge")
}

func TestStatsPath_SingleMatch(t *testing.T) {
	c := newCollaborators()
	c.classifier.decision = &ports.RoutingDecision{Route: string(domain.RoutePlayerStats), Name: "Aaron Judge"}
	c.directory.players = []domain.PlayerRef{{ID: 592450, Name: "Aaron Judge", Team: "New York Yankees"}}
	c.responder.respond = func(prompt string) (string, error) {
		require.Contains(t, prompt, ".310")
		return "Aaron Judge is hitting .310 this season.", nil
	}

	eng, store := newEngine(t, c)
	res, err := eng.Run(context.Background(), "s1", "What is Aaron Judge's batting average?")
	require.NoError(t, err)

	require.True(t, res.Terminal())
	assert.Contains(t, res.Answer, ".310")
	assert.EqualValues(t, 592450, c.stats.lastID.Load())
	assert.EqualValues(t, 1, c.judge.calls.Load())

	cp, err := store.Latest(context.Background(), "s1")
	require.NoError(t, err)
	assert.Nil(t, cp.Pending)
	assert.Equal(t, engine.End, cp.Position)
}

func TestStatsPath_AmbiguousNameInterruptsAndResumes(t *testing.T) {
	c := newCollaborators()
	c.classifier.decision = &ports.RoutingDecision{Route: string(domain.RoutePlayerStats), Name: "Will Smith"}
	c.directory.players = []domain.PlayerRef{
		{ID: 1, Name: "Will Smith", Team: "Los Angeles Dodgers"},
		{ID: 2, Name: "Will Smith", Team: "Kansas City Royals"},
	}

	eng, store := newEngine(t, c)
	ctx := context.Background()

	res, err := eng.Run(ctx, "s1", "How is Will Smith hitting this year?")
	require.NoError(t, err)
	require.False(t, res.Terminal())
	require.Equal(t, domain.InterruptDisambiguation, res.Interrupt.Kind)
	assert.Equal(t, []string{flow.SubgraphStats, "player_search"}, res.Interrupt.Path)
	assert.Len(t, res.Interrupt.Candidates, 2)
	assert.Zero(t, c.stats.calls.Load())

	// A new query on the paused session is rejected.
	_, err = eng.Run(ctx, "s1", "another question")
	require.ErrorIs(t, err, domain.ErrSessionPaused)

	// A value outside the offered candidates is rejected and the pause stays.
	_, err = eng.Resume(ctx, "s1", 42)
	require.ErrorIs(t, err, domain.ErrInvalidResume)
	cp, err := store.Latest(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, cp.Pending)

	res, err = eng.Resume(ctx, "s1", 2)
	require.NoError(t, err)
	require.True(t, res.Terminal())
	assert.EqualValues(t, 2, c.stats.lastID.Load())
	assert.NotEmpty(t, res.Answer)
}

func TestStatsPath_UniqueExactMatchResolvesOverPartials(t *testing.T) {
	c := newCollaborators()
	c.classifier.decision = &ports.RoutingDecision{Route: string(domain.RoutePlayerStats), Name: "Will Smith"}
	c.directory.players = []domain.PlayerRef{
		{ID: 1, Name: "Will Smith", Team: "Los Angeles Dodgers"},
		{ID: 2, Name: "Willie Smith", Team: "Los Angeles Angels"},
	}

	eng, _ := newEngine(t, c)
	res, err := eng.Run(context.Background(), "s1", "How is Will Smith hitting this year?")
	require.NoError(t, err)
	require.True(t, res.Terminal())
	assert.EqualValues(t, 1, c.stats.lastID.Load())
}

func TestStatsPath_FailedFetchDoesNotReuseEarlierStats(t *testing.T) {
	c := newCollaborators()
	c.classifier.decision = &ports.RoutingDecision{Route: string(domain.RoutePlayerStats), Name: "Aaron Judge"}
	c.directory.players = []domain.PlayerRef{{ID: 592450, Name: "Aaron Judge", Team: "New York Yankees"}}
	c.stats.stats = &domain.PlayerStats{
		PlayerID: 592450,
		FullName: "Aaron Judge",
		Hitting:  &domain.HittingLine{AVG: ".310", HomeRuns: 58, OPS: "1.111", RBI: 144},
	}

	eng, _ := newEngine(t, c)
	ctx := context.Background()

	res, err := eng.Run(ctx, "s1", "How is Aaron Judge hitting?")
	require.NoError(t, err)
	require.Contains(t, res.Answer, ".310")

	// Second query in the same session for a different player, with the
	// stats backend down. The answer must degrade, not recycle the first
	// player's stat line.
	c.classifier.decision = &ports.RoutingDecision{Route: string(domain.RoutePlayerStats), Name: "Luis Arraez"}
	c.directory.players = []domain.PlayerRef{{ID: 650333, Name: "Luis Arraez", Team: "San Diego Padres"}}
	c.stats.err = errors.New("stats backend down")

	res, err = eng.Run(ctx, "s1", "How is Luis Arraez hitting?")
	require.NoError(t, err)
	require.True(t, res.Terminal())
	assert.NotContains(t, res.Answer, "Aaron Judge")
	assert.NotContains(t, res.Answer, ".310")
	assert.Contains(t, res.Answer, "couldn't retrieve")
	assert.Nil(t, res.State.Stats)
}

func TestStatsPath_NoMatch(t *testing.T) {
	c := newCollaborators()
	c.classifier.decision = &ports.RoutingDecision{Route: string(domain.RoutePlayerStats), Name: "Nobody Atall"}
	c.directory.players = nil

	eng, _ := newEngine(t, c)
	res, err := eng.Run(context.Background(), "s1", "How is Nobody Atall doing?")
	require.NoError(t, err)
	require.True(t, res.Terminal())
	assert.Contains(t, res.Answer, "Nobody Atall")
	assert.Zero(t, c.stats.calls.Load())
}

func TestDocumentsPath_RetriesThenAnswersWithSources(t *testing.T) {
	c := newCollaborators()
	c.classifier.decision = &ports.RoutingDecision{Route: string(domain.RouteDocumentQA)}
	c.retriever.errs = []error{domain.ErrResourceExhausted, domain.ErrResourceExhausted}
	c.retriever.answer = &ports.GroundedAnswer{
		Text: "The designated hitter rule was adopted by the National League in 2022.",
		Citations: []ports.Citation{
			{Title: "2022 Rule Changes", URI: "gs://docs/rules-2022.pdf"},
		},
	}

	eng, _ := newEngine(t, c)
	res, err := eng.Run(context.Background(), "s1", "When did the NL adopt the DH?")
	require.NoError(t, err)
	require.True(t, res.Terminal())
	assert.EqualValues(t, 3, c.retriever.calls.Load())
	assert.Contains(t, res.Answer, "2022")
	assert.Contains(t, res.Answer, "**Sources:**")
	assert.Contains(t, res.Answer, "1. 2022 Rule Changes (gs://docs/rules-2022.pdf)")
}

func TestDocumentsPath_ExhaustedRateLimitDegrades(t *testing.T) {
	c := newCollaborators()
	c.classifier.decision = &ports.RoutingDecision{Route: string(domain.RouteDocumentQA)}
	c.retriever.errs = []error{domain.ErrResourceExhausted, domain.ErrResourceExhausted, domain.ErrResourceExhausted}

	eng, _ := newEngine(t, c)
	res, err := eng.Run(context.Background(), "s1", "When did the NL adopt the DH?")
	require.NoError(t, err)
	require.True(t, res.Terminal())
	assert.EqualValues(t, 3, c.retriever.calls.Load())
	assert.Contains(t, res.Answer, "currently busy")
}

func TestTransactionsPath_ContractApproval(t *testing.T) {
	c := newCollaborators()
	c.classifier.decision = &ports.RoutingDecision{Route: string(domain.RouteTransactions), Name: "Juan Soto"}
	c.directory.players = []domain.PlayerRef{{ID: 665742, Name: "Juan Soto", Team: "New York Mets"}}
	c.ledger.txs = []domain.Transaction{{Date: "2024-12-11", Type: "Free Agency", Description: "Signed with the Mets."}}

	eng, _ := newEngine(t, c)
	ctx := context.Background()

	res, err := eng.Run(ctx, "s1", "What does Juan Soto's contract look like?")
	require.NoError(t, err)
	require.False(t, res.Terminal())
	require.Equal(t, domain.InterruptApproval, res.Interrupt.Kind)
	assert.Equal(t, []string{flow.SubgraphTransactions, "contract_lookup"}, res.Interrupt.Path)
	assert.Contains(t, res.Interrupt.Action, "Juan Soto")
	assert.Zero(t, c.ledger.contractCalls.Load())

	res, err = eng.Resume(ctx, "s1", true)
	require.NoError(t, err)
	require.True(t, res.Terminal())
	assert.EqualValues(t, 1, c.ledger.contractCalls.Load())
	require.NotNil(t, res.State.Contract)
	assert.Equal(t, "$182M", res.State.Contract.Value)
}

func TestTransactionsPath_ContractDenied(t *testing.T) {
	c := newCollaborators()
	c.classifier.decision = &ports.RoutingDecision{Route: string(domain.RouteTransactions), Name: "Juan Soto"}
	c.directory.players = []domain.PlayerRef{{ID: 665742, Name: "Juan Soto"}}

	eng, _ := newEngine(t, c)
	ctx := context.Background()

	res, err := eng.Run(ctx, "s1", "Show me Juan Soto's contract")
	require.NoError(t, err)
	require.False(t, res.Terminal())

	res, err = eng.Resume(ctx, "s1", "no")
	require.NoError(t, err)
	require.True(t, res.Terminal())
	assert.Zero(t, c.ledger.contractCalls.Load())
	assert.Nil(t, res.State.Contract)
	assert.NotEmpty(t, res.Answer)
}

func TestTransactionsPath_NoContractMentionSkipsApproval(t *testing.T) {
	c := newCollaborators()
	c.classifier.decision = &ports.RoutingDecision{Route: string(domain.RouteTransactions), Name: "Juan Soto"}
	c.directory.players = []domain.PlayerRef{{ID: 665742, Name: "Juan Soto"}}
	c.ledger.txs = []domain.Transaction{{Date: "2024-12-11", Type: "Free Agency", Description: "Signed."}}

	eng, _ := newEngine(t, c)
	res, err := eng.Run(context.Background(), "s1", "Any recent roster moves for Juan Soto?")
	require.NoError(t, err)
	require.True(t, res.Terminal())
	assert.Zero(t, c.ledger.contractCalls.Load())
}

func TestPlannerPath_ComposesAcrossDomains(t *testing.T) {
	c := newCollaborators()
	c.classifier.decision = &ports.RoutingDecision{Route: string(domain.RouteMultiDomain)}
	c.directory.players = []domain.PlayerRef{{ID: 660271, Name: "Shohei Ohtani", Team: "Los Angeles Dodgers"}}
	c.planner.next = func(trace []domain.ToolExchange) (*ports.PlannerTurn, error) {
		if len(trace) == 0 {
			return &ports.PlannerTurn{Calls: []domain.ToolCall{
				{ID: "1", Name: "get_player_stats", Args: map[string]any{"player_id": 660271}},
				{ID: "2", Name: "query_documents", Args: map[string]any{"query": "Ohtani rule history"}},
			}}, nil
		}
		for _, ex := range trace {
			if ex.Failed {
				return nil, fmt.Errorf("unexpected tool failure: %s", ex.Result)
			}
		}
		return &ports.PlannerTurn{Reply: "Ohtani is hitting .310 and the rule dates to 2022."}, nil
	}

	eng, _ := newEngine(t, c)
	res, err := eng.Run(context.Background(), "s1", "Compare Ohtani's numbers with the rule history")
	require.NoError(t, err)
	require.True(t, res.Terminal())
	assert.EqualValues(t, 2, c.planner.calls.Load())
	assert.EqualValues(t, 1, c.stats.calls.Load())
	assert.EqualValues(t, 1, c.retriever.calls.Load())
	// One composed answer, judged exactly once.
	assert.EqualValues(t, 1, c.judge.calls.Load())
	assert.Contains(t, res.Answer, "Ohtani")
	assert.Len(t, res.State.PlannerTrace, 2)
}

func TestPlannerPath_SensitiveToolNeedsApproval(t *testing.T) {
	c := newCollaborators()
	c.classifier.decision = &ports.RoutingDecision{Route: string(domain.RouteMultiDomain)}
	c.planner.next = func(trace []domain.ToolExchange) (*ports.PlannerTurn, error) {
		if len(trace) == 0 {
			return &ports.PlannerTurn{Calls: []domain.ToolCall{
				{ID: "1", Name: "get_contract", Args: map[string]any{"player_id": 660271}},
			}}, nil
		}
		require.False(t, trace[0].Pending)
		if trace[0].Failed {
			return &ports.PlannerTurn{Reply: "I can't share contract details without approval."}, nil
		}
		return &ports.PlannerTurn{Reply: "The contract runs " + trace[0].Result}, nil
	}

	eng, store := newEngine(t, c)
	ctx := context.Background()

	res, err := eng.Run(ctx, "s1", "What is Ohtani's contract worth?")
	require.NoError(t, err)
	require.False(t, res.Terminal())
	require.Equal(t, domain.InterruptApproval, res.Interrupt.Kind)
	assert.Equal(t, []string{flow.StepPlanner}, res.Interrupt.Path)
	assert.Contains(t, res.Interrupt.Action, "get_contract")
	assert.Zero(t, c.ledger.contractCalls.Load())

	// The pending call is durable: it survives in the checkpointed trace.
	cp, err := store.Latest(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, cp.State.PlannerTrace, 1)
	assert.True(t, cp.State.PlannerTrace[0].Pending)

	res, err = eng.Resume(ctx, "s1", map[string]any{"approve": true})
	require.NoError(t, err)
	require.True(t, res.Terminal())
	assert.EqualValues(t, 1, c.ledger.contractCalls.Load())
	assert.Contains(t, res.Answer, "contract runs")
}

func TestPlannerPath_SensitiveToolDenied(t *testing.T) {
	c := newCollaborators()
	c.classifier.decision = &ports.RoutingDecision{Route: string(domain.RouteMultiDomain)}
	c.planner.next = func(trace []domain.ToolExchange) (*ports.PlannerTurn, error) {
		if len(trace) == 0 {
			return &ports.PlannerTurn{Calls: []domain.ToolCall{
				{ID: "1", Name: "get_contract", Args: map[string]any{"player_id": 1}},
			}}, nil
		}
		require.True(t, trace[0].Failed)
		return &ports.PlannerTurn{Reply: "I skipped the contract details."}, nil
	}

	eng, _ := newEngine(t, c)
	ctx := context.Background()

	res, err := eng.Run(ctx, "s1", "Contract details please")
	require.NoError(t, err)
	require.False(t, res.Terminal())

	res, err = eng.Resume(ctx, "s1", false)
	require.NoError(t, err)
	require.True(t, res.Terminal())
	assert.Zero(t, c.ledger.contractCalls.Load())
	assert.Contains(t, res.Answer, "skipped")
}

func TestVerifyLoop_ReplansUntilCapThenCaveats(t *testing.T) {
	c := newCollaborators()
	c.classifier.decision = &ports.RoutingDecision{Route: string(domain.RouteMultiDomain)}
	c.judge.verdicts = []domain.Verdict{domain.VerdictReplan}

	eng, _ := newEngine(t, c)
	res, err := eng.Run(context.Background(), "s1", "Something hard to verify")
	require.NoError(t, err)
	require.True(t, res.Terminal())

	// Three rejections reach the cap: the initial attempt plus two replans,
	// each judged once.
	assert.EqualValues(t, 3, c.planner.calls.Load())
	assert.EqualValues(t, 3, c.judge.calls.Load())
	assert.Equal(t, flow.DefaultMaxReplans, res.State.ReplanAttempts)
	assert.True(t, strings.Contains(res.Answer, "could not fully verify"), "caveat marker missing: %q", res.Answer)
}

func TestVerifyLoop_ReplanThenAccept(t *testing.T) {
	c := newCollaborators()
	c.classifier.decision = &ports.RoutingDecision{Route: string(domain.RouteMultiDomain)}
	c.judge.verdicts = []domain.Verdict{domain.VerdictReplan, domain.VerdictOK}

	eng, _ := newEngine(t, c)
	res, err := eng.Run(context.Background(), "s1", "Needs one more pass")
	require.NoError(t, err)
	require.True(t, res.Terminal())
	assert.EqualValues(t, 2, c.planner.calls.Load())
	assert.Equal(t, 1, res.State.ReplanAttempts)
	assert.NotContains(t, res.Answer, "could not fully verify")
}

func TestVerifyLoop_DocumentsReplanHandsOffToPlanner(t *testing.T) {
	c := newCollaborators()
	c.classifier.decision = &ports.RoutingDecision{Route: string(domain.RouteDocumentQA)}
	c.judge.verdicts = []domain.Verdict{domain.VerdictReplan, domain.VerdictOK}

	eng, _ := newEngine(t, c)
	res, err := eng.Run(context.Background(), "s1", "Explain the ghost runner rule")
	require.NoError(t, err)
	require.True(t, res.Terminal())

	// The rejected grounded answer re-enters through the planner: the router
	// and the documents path run once, the planner picks up the replan.
	assert.EqualValues(t, 1, c.classifier.calls.Load())
	assert.EqualValues(t, 1, c.retriever.calls.Load())
	assert.EqualValues(t, 1, c.planner.calls.Load())
	assert.EqualValues(t, 2, c.judge.calls.Load())
	assert.Equal(t, 1, res.State.ReplanAttempts)
	assert.Equal(t, "planner reply", res.Answer)
}

func TestVerify_JudgeFailureAcceptsAnswer(t *testing.T) {
	c := newCollaborators()
	c.classifier.decision = &ports.RoutingDecision{Route: string(domain.RouteDocumentQA)}
	c.judge.err = errors.New("judge backend down")

	eng, _ := newEngine(t, c)
	res, err := eng.Run(context.Background(), "s1", "Tell me about the rule book")
	require.NoError(t, err)
	require.True(t, res.Terminal())
	assert.Contains(t, res.Answer, "grounded answer")
}

func TestRouter_ClampsToFallback(t *testing.T) {
	for name, c := range map[string]*collaborators{
		"classifier error": func() *collaborators {
			c := newCollaborators()
			c.classifier.decision = nil
			c.classifier.err = errors.New("model unavailable")
			return c
		}(),
		"unknown tag": func() *collaborators {
			c := newCollaborators()
			c.classifier.decision = &ports.RoutingDecision{Route: "WEATHER"}
			return c
		}(),
	} {
		t.Run(name, func(t *testing.T) {
			eng, _ := newEngine(t, c)
			res, err := eng.Run(context.Background(), "s1", "What's the weather in Phoenix?")
			require.NoError(t, err)
			require.True(t, res.Terminal())
			assert.Contains(t, res.Answer, "baseball assistant")
			assert.Equal(t, domain.RouteFallback, res.State.Route)
		})
	}
}

func TestConversation_CarriesAcrossQueries(t *testing.T) {
	c := newCollaborators()
	c.classifier.decision = &ports.RoutingDecision{Route: string(domain.RouteDocumentQA)}

	eng, _ := newEngine(t, c)
	ctx := context.Background()

	_, err := eng.Run(ctx, "s1", "first question")
	require.NoError(t, err)
	res, err := eng.Run(ctx, "s1", "second question")
	require.NoError(t, err)

	require.Len(t, res.State.Messages, 4)
	assert.Equal(t, "first question", res.State.Messages[0].Content)
	assert.Equal(t, "second question", res.State.Messages[2].Content)
	assert.Equal(t, 0, res.State.ReplanAttempts)
}
