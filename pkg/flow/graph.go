package flow

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dugoutlabs/dugout/internal/logging"
	"github.com/dugoutlabs/dugout/pkg/domain"
	"github.com/dugoutlabs/dugout/pkg/engine"
	"github.com/dugoutlabs/dugout/pkg/ports"
)

// DefaultMaxReplans bounds the verify/replan loop when Config leaves
// MaxReplans unset.
const DefaultMaxReplans = 3

// Config carries the collaborators behind each resolution path. All
// collaborators are required; the graph wires every path unconditionally.
type Config struct {
	// MaxReplans caps replan attempts per query. Zero means
	// DefaultMaxReplans; negative disables replanning entirely.
	MaxReplans int

	// GroundedBackoff is the base delay for grounded-retrieval retries.
	// Zero means a production default; tests shrink it.
	GroundedBackoff time.Duration

	Directory  ports.PlayerDirectory
	Stats      ports.StatsProvider
	Documents  ports.GroundedRetriever
	Ledger     ports.TransactionLedger
	Judge      ports.Judge
	Classifier ports.RouteClassifier
	Responder  ports.Responder
	Planner    ports.PlannerModel

	Logger *slog.Logger
}

func (c *Config) validate() error {
	missing := ""
	switch {
	case c.Directory == nil:
		missing = "Directory"
	case c.Stats == nil:
		missing = "Stats"
	case c.Documents == nil:
		missing = "Documents"
	case c.Ledger == nil:
		missing = "Ledger"
	case c.Judge == nil:
		missing = "Judge"
	case c.Classifier == nil:
		missing = "Classifier"
	case c.Responder == nil:
		missing = "Responder"
	case c.Planner == nil:
		missing = "Planner"
	}
	if missing != "" {
		return fmt.Errorf("flow: Config.%s is required", missing)
	}
	return nil
}

// Build compiles the assistant graph: router, the three domain subgraphs,
// the planner, and the bounded verify/replan loop.
func Build(cfg Config) (*engine.Compiled, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	maxReplans := cfg.MaxReplans
	if maxReplans == 0 {
		maxReplans = DefaultMaxReplans
	} else if maxReplans < 0 {
		maxReplans = 0
	}

	stats, err := newStatsSubgraph(cfg, logger)
	if err != nil {
		return nil, err
	}
	documents, err := newDocumentsSubgraph(cfg, logger)
	if err != nil {
		return nil, err
	}
	transactions, err := newTransactionsSubgraph(cfg, logger)
	if err != nil {
		return nil, err
	}

	routeKeys := make([]string, 0, len(domain.Routes()))
	for _, r := range domain.Routes() {
		routeKeys = append(routeKeys, string(r))
	}

	g := engine.NewGraph("assistant").
		AddStep(&routerStep{classifier: cfg.Classifier, logger: logger}).
		AddStep(stats).
		AddStep(documents).
		AddStep(transactions).
		AddStep(newPlannerStep(cfg, logger)).
		AddStep(&verifyStep{judge: cfg.Judge, logger: logger}).
		AddStep(caveatStep{}).
		AddStep(capabilitiesStep{}).
		SetEntry(StepRouter).
		AddConditionalEdges(StepRouter, routeKey, routeKeys, map[string]string{
			string(domain.RouteDocumentQA):   SubgraphDocuments,
			string(domain.RoutePlayerStats):  SubgraphStats,
			string(domain.RouteTransactions): SubgraphTransactions,
			string(domain.RouteMultiDomain):  StepPlanner,
			string(domain.RouteFallback):     StepCapabilities,
		}).
		AddEdge(SubgraphDocuments, StepVerify).
		AddEdge(SubgraphStats, StepVerify).
		AddEdge(SubgraphTransactions, StepVerify).
		AddEdge(StepPlanner, StepVerify).
		AddConditionalEdges(StepVerify, verdictKey(maxReplans),
			[]string{verdictOK, verdictReplan, verdictCapped},
			map[string]string{
				verdictOK:     engine.End,
				verdictReplan: StepPlanner,
				verdictCapped: StepCaveat,
			}).
		AddEdge(StepCaveat, engine.End).
		AddEdge(StepCapabilities, engine.End)

	return g.Compile()
}
