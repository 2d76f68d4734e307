package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/dugoutlabs/dugout/pkg/domain"
	"github.com/dugoutlabs/dugout/pkg/ports"
)

// maxToolRounds bounds the planner's model round-trips per invocation. When
// the bound is hit the planner composes an answer from whatever the trace
// holds instead of looping further.
const maxToolRounds = 8

// plannerTool pairs a tool's advertised spec with its executor.
type plannerTool struct {
	spec ports.ToolSpec
	run  func(ctx context.Context, args map[string]any) (string, error)
}

// plannerStep handles multi-domain questions with a model-driven tool loop.
// The full exchange transcript lives in state, so a pause for tool approval
// survives a restart: the pending call is the last trace entry and Resume
// settles it before rejoining the loop.
type plannerStep struct {
	model  ports.PlannerModel
	tools  []plannerTool
	logger *slog.Logger
}

func newPlannerStep(cfg Config, logger *slog.Logger) *plannerStep {
	p := &plannerStep{model: cfg.Planner, logger: logger}
	p.tools = []plannerTool{
		{
			spec: ports.ToolSpec{
				Name:        "search_player",
				Description: "Search active players by name. Args: name (string). Returns candidate players with ids.",
			},
			run: func(ctx context.Context, args map[string]any) (string, error) {
				var a struct {
					Name string `mapstructure:"name"`
				}
				if err := mapstructure.WeakDecode(args, &a); err != nil || a.Name == "" {
					return "", fmt.Errorf("search_player requires a name argument")
				}
				refs, err := cfg.Directory.SearchPlayer(ctx, a.Name)
				if err != nil {
					return "", err
				}
				return toolJSON(refs)
			},
		},
		{
			spec: ports.ToolSpec{
				Name:        "get_player_stats",
				Description: "Fetch season statistics for a player. Args: player_id (int).",
			},
			run: func(ctx context.Context, args map[string]any) (string, error) {
				id, err := toolPlayerID(args)
				if err != nil {
					return "", err
				}
				stats, err := cfg.Stats.PlayerStats(ctx, id)
				if err != nil {
					return "", err
				}
				return toolJSON(stats)
			},
		},
		{
			spec: ports.ToolSpec{
				Name:        "query_documents",
				Description: "Answer a question from the document corpus. Args: query (string). Returns grounded text with citations.",
			},
			run: func(ctx context.Context, args map[string]any) (string, error) {
				var a struct {
					Query string `mapstructure:"query"`
				}
				if err := mapstructure.WeakDecode(args, &a); err != nil || a.Query == "" {
					return "", fmt.Errorf("query_documents requires a query argument")
				}
				backoff := cfg.GroundedBackoff
				if backoff <= 0 {
					backoff = groundedBackoffBase
				}
				answer, err := groundedWithRetry(ctx, cfg.Documents, a.Query, backoff, logger)
				if err != nil {
					return "", err
				}
				return formatGrounded(answer), nil
			},
		},
		{
			spec: ports.ToolSpec{
				Name:        "find_transactions",
				Description: "Fetch recent roster transactions for a player. Args: player_id (int).",
			},
			run: func(ctx context.Context, args map[string]any) (string, error) {
				id, err := toolPlayerID(args)
				if err != nil {
					return "", err
				}
				txs, err := cfg.Ledger.FindTransactions(ctx, id)
				if err != nil {
					return "", err
				}
				return toolJSON(txs)
			},
		},
		{
			spec: ports.ToolSpec{
				Name:        "get_contract",
				Description: "Fetch contract and salary terms for a player. Args: player_id (int). Requires user approval.",
				Sensitive:   true,
			},
			run: func(ctx context.Context, args map[string]any) (string, error) {
				id, err := toolPlayerID(args)
				if err != nil {
					return "", err
				}
				contract, err := cfg.Ledger.Contract(ctx, id)
				if err != nil {
					return "", err
				}
				return toolJSON(contract)
			},
		},
	}
	return p
}

func (p *plannerStep) Name() string { return StepPlanner }

func (p *plannerStep) Run(ctx context.Context, st *domain.State) (*domain.Delta, error) {
	trace := make([]domain.ToolExchange, len(st.PlannerTrace))
	copy(trace, st.PlannerTrace)
	return p.loop(ctx, st, trace)
}

// Resume settles the pending sensitive call recorded as the last trace entry
// and rejoins the tool loop.
func (p *plannerStep) Resume(ctx context.Context, st *domain.State, intr *domain.Interrupt, value any) (*domain.Delta, error) {
	approved, err := decodeApproval(value)
	if err != nil {
		return nil, err
	}

	trace := make([]domain.ToolExchange, len(st.PlannerTrace))
	copy(trace, st.PlannerTrace)
	last := len(trace) - 1
	if last < 0 || !trace[last].Pending {
		return nil, fmt.Errorf("planner resume without a pending tool call: %w", domain.ErrCheckpointCorrupt)
	}

	pending := &trace[last]
	pending.Pending = false
	switch {
	case !approved:
		pending.Failed = true
		pending.Result = "the user declined this action"
	default:
		tool, ok := p.tool(pending.Call.Name)
		if !ok {
			pending.Failed = true
			pending.Result = fmt.Sprintf("unknown tool %q", pending.Call.Name)
		} else {
			*pending = p.execute(ctx, tool, pending.Call)
		}
	}
	return p.loop(ctx, st, trace)
}

func (p *plannerStep) loop(ctx context.Context, st *domain.State, trace []domain.ToolExchange) (*domain.Delta, error) {
	for round := 0; round < maxToolRounds; round++ {
		turn, err := p.model.Next(ctx, st.Messages, p.specs(), trace)
		if err != nil {
			p.logger.Warn("planner model call failed", "err", err)
			return &domain.Delta{
				Messages:     assistant("I wasn't able to work through that question right now. Please try again."),
				PlannerTrace: trace,
			}, nil
		}
		if len(turn.Calls) == 0 {
			reply := strings.TrimSpace(turn.Reply)
			if reply == "" {
				reply = partialAnswer(trace)
			}
			return &domain.Delta{Messages: assistant(reply), PlannerTrace: trace}, nil
		}

		for _, call := range turn.Calls {
			tool, ok := p.tool(call.Name)
			if !ok {
				trace = append(trace, domain.ToolExchange{
					Call:   call,
					Failed: true,
					Result: fmt.Sprintf("unknown tool %q", call.Name),
				})
				continue
			}
			if tool.spec.Sensitive {
				return nil, &domain.Paused{
					Interrupt: &domain.Interrupt{
						Path:   []string{StepPlanner},
						Kind:   domain.InterruptApproval,
						Prompt: "This action needs your approval before I run it.",
						Action: describeCall(call),
					},
					Delta: &domain.Delta{
						PlannerTrace: append(trace, domain.ToolExchange{Call: call, Pending: true}),
					},
				}
			}
			trace = append(trace, p.execute(ctx, tool, call))
		}
	}

	p.logger.Warn("planner hit the tool round bound", "rounds", maxToolRounds)
	return &domain.Delta{Messages: assistant(partialAnswer(trace)), PlannerTrace: trace}, nil
}

func (p *plannerStep) execute(ctx context.Context, tool plannerTool, call domain.ToolCall) domain.ToolExchange {
	start := time.Now()
	out, err := tool.run(ctx, call.Args)
	if err != nil {
		p.logger.Warn("planner tool failed", "tool", call.Name, "err", err)
		return domain.ToolExchange{Call: call, Failed: true, Result: err.Error()}
	}
	p.logger.Debug("planner tool finished", "tool", call.Name, "elapsed", time.Since(start))
	return domain.ToolExchange{Call: call, Result: out}
}

func (p *plannerStep) tool(name string) (plannerTool, bool) {
	for _, t := range p.tools {
		if t.spec.Name == name {
			return t, true
		}
	}
	return plannerTool{}, false
}

func (p *plannerStep) specs() []ports.ToolSpec {
	specs := make([]ports.ToolSpec, len(p.tools))
	for i, t := range p.tools {
		specs[i] = t.spec
	}
	return specs
}

// partialAnswer composes a best-effort answer from successful tool results
// when the model never produced a final reply.
func partialAnswer(trace []domain.ToolExchange) string {
	var results []string
	for _, ex := range trace {
		if !ex.Failed && !ex.Pending && ex.Result != "" {
			results = append(results, ex.Result)
		}
	}
	if len(results) == 0 {
		return "I wasn't able to gather enough information to answer that. Try asking about one thing at a time."
	}
	return "Here's what I was able to find:\n\n" + strings.Join(results, "\n\n")
}

func describeCall(call domain.ToolCall) string {
	if len(call.Args) == 0 {
		return fmt.Sprintf("Run tool %s", call.Name)
	}
	args, err := json.Marshal(call.Args)
	if err != nil {
		return fmt.Sprintf("Run tool %s", call.Name)
	}
	return fmt.Sprintf("Run tool %s with %s", call.Name, args)
}

func toolPlayerID(args map[string]any) (int, error) {
	var a struct {
		PlayerID int `mapstructure:"player_id"`
	}
	if err := mapstructure.WeakDecode(args, &a); err != nil || a.PlayerID == 0 {
		return 0, fmt.Errorf("a player_id argument is required")
	}
	return a.PlayerID, nil
}

func toolJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return string(b), nil
}
