package ports

import (
	"context"

	"github.com/dugoutlabs/dugout/pkg/domain"
)

// PlayerDirectory resolves player names to identities.
type PlayerDirectory interface {
	// SearchPlayer returns zero, one, or many active players matching the
	// name. The caller decides how to disambiguate.
	SearchPlayer(ctx context.Context, name string) ([]domain.PlayerRef, error)
}

// StatsProvider fetches structured season statistics.
type StatsProvider interface {
	// PlayerStats returns season statistics for a player, or
	// domain.ErrNotFound.
	PlayerStats(ctx context.Context, playerID int) (*domain.PlayerStats, error)
}

// Citation references a source document backing part of a grounded answer.
type Citation struct {
	Title string `json:"title"`
	URI   string `json:"uri,omitempty"`
}

// GroundedAnswer is the output of a document-grounded generation call.
type GroundedAnswer struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations,omitempty"`
}

// GroundedRetriever answers a query against a document corpus. It may fail
// with domain.ErrResourceExhausted (transient, retried by the caller) or any
// other error (terminal for the call).
type GroundedRetriever interface {
	GroundedAnswer(ctx context.Context, query string) (*GroundedAnswer, error)
}

// TransactionLedger provides roster transaction and contract records.
// Contract access is sensitive and callers must obtain approval before
// invoking it.
type TransactionLedger interface {
	FindTransactions(ctx context.Context, playerID int) ([]domain.Transaction, error)
	Contract(ctx context.Context, playerID int) (*domain.Contract, error)
}

// Judge evaluates whether a candidate answer satisfies the query. It is used
// identically at the exit of every domain path and by the planner.
type Judge interface {
	JudgeAnswer(ctx context.Context, query, answer string) (domain.Verdict, error)
}

// RoutingDecision is the raw output of the classification collaborator. The
// Route tag is unvalidated; the router clamps anything outside the closed
// enumeration to FALLBACK.
type RoutingDecision struct {
	Route string `json:"route"`
	Name  string `json:"name,omitempty"`
	Team  string `json:"team,omitempty"`
}

// RouteClassifier classifies a query and extracts entities in a single call.
// Used exactly once per top-level invocation.
type RouteClassifier interface {
	ClassifyAndExtract(ctx context.Context, messages []domain.Message) (*RoutingDecision, error)
}

// Responder produces free-form text from a prompt. Domain paths use it to
// compose answers from structured context.
type Responder interface {
	Respond(ctx context.Context, prompt string) (string, error)
}

// ToolSpec describes a tool available to the planner model. Sensitive tools
// require an approval interrupt before each execution.
type ToolSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Sensitive   bool   `json:"sensitive,omitempty"`
}

// PlannerTurn is one decision from the planner model: either tool calls to
// execute next, or a final reply when Calls is empty.
type PlannerTurn struct {
	Reply string            `json:"reply,omitempty"`
	Calls []domain.ToolCall `json:"calls,omitempty"`
}

// PlannerModel decides the next planner action from the conversation and the
// transcript of tool exchanges so far.
type PlannerModel interface {
	Next(ctx context.Context, messages []domain.Message, tools []ToolSpec, trace []domain.ToolExchange) (*PlannerTurn, error)
}
