package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dugoutlabs/dugout/pkg/domain"
	"github.com/dugoutlabs/dugout/pkg/engine"
	"github.com/dugoutlabs/dugout/pkg/ports"
)

// findTransactionsStep resolves the player for a transactions question and
// fetches their recent roster transactions. Unlike the stats path it never
// interrupts: with several candidates it takes the closest match, since a
// wrong pick here costs one clarifying follow-up rather than a wrong number.
type findTransactionsStep struct {
	directory ports.PlayerDirectory
	ledger    ports.TransactionLedger
	logger    *slog.Logger
}

func (s *findTransactionsStep) Name() string { return stepFindTransactions }

func (s *findTransactionsStep) Run(ctx context.Context, st *domain.State) (*domain.Delta, error) {
	name := subjectName(st)
	if name == "" {
		return &domain.Delta{}, nil
	}

	candidates, err := s.directory.SearchPlayer(ctx, name)
	if err != nil {
		s.logger.Warn("player search failed", "name", name, "err", err)
		return &domain.Delta{}, nil
	}
	if len(candidates) == 0 {
		return &domain.Delta{}, nil
	}
	player := choosePlayer(name, candidates)
	if player == nil {
		player = &candidates[0]
	}

	txs, err := s.ledger.FindTransactions(ctx, player.ID)
	if err != nil {
		s.logger.Warn("transaction lookup failed", "player_id", player.ID, "err", err)
		txs = nil
	}
	return &domain.Delta{TxPlayer: player, Transactions: txs}, nil
}

// wantsContract reports whether the query asks about contract or salary
// terms, which gates the sensitive contract lookup.
func wantsContract(st *domain.State) bool {
	q := strings.ToLower(st.LastUserQuery())
	return strings.Contains(q, "contract") || strings.Contains(q, "salary") || strings.Contains(q, "extension")
}

// contractLookupStep fetches contract terms. The fetch is sensitive: the step
// always raises an approval interrupt first and only executes on an approving
// resume. A denial skips the fetch and the walk continues without contract
// data.
type contractLookupStep struct {
	ledger ports.TransactionLedger
	logger *slog.Logger
}

func (s *contractLookupStep) Name() string { return stepContractLookup }

func (s *contractLookupStep) Run(ctx context.Context, st *domain.State) (*domain.Delta, error) {
	return nil, &domain.Paused{
		Interrupt: &domain.Interrupt{
			Path:   []string{stepContractLookup},
			Kind:   domain.InterruptApproval,
			Prompt: "Contract details are sensitive. Fetch them?",
			Action: fmt.Sprintf("Fetch contract and salary details for %s", st.TxPlayer.Name),
		},
	}
}

func (s *contractLookupStep) Resume(ctx context.Context, st *domain.State, intr *domain.Interrupt, value any) (*domain.Delta, error) {
	approved, err := decodeApproval(value)
	if err != nil {
		return nil, err
	}
	if !approved {
		return &domain.Delta{}, nil
	}

	contract, err := s.ledger.Contract(ctx, st.TxPlayer.ID)
	if err != nil {
		s.logger.Warn("contract lookup failed", "player_id", st.TxPlayer.ID, "err", err)
		return &domain.Delta{}, nil
	}
	return &domain.Delta{Contract: contract}, nil
}

// answerTransactionsStep composes the transactions answer from whatever the
// path gathered.
type answerTransactionsStep struct {
	responder ports.Responder
	logger    *slog.Logger
}

func (s *answerTransactionsStep) Name() string { return stepAnswerTransactions }

func (s *answerTransactionsStep) Run(ctx context.Context, st *domain.State) (*domain.Delta, error) {
	if st.TxPlayer == nil {
		msg := "I couldn't tell which player's transactions you're asking about. Try including the player's full name."
		return &domain.Delta{Messages: assistant(msg)}, nil
	}

	answer, err := s.responder.Respond(ctx, transactionsPrompt(st))
	if err != nil {
		s.logger.Warn("transactions answer generation failed", "err", err)
		answer = transactionsFallbackAnswer(st)
	}
	return &domain.Delta{Messages: assistant(answer)}, nil
}

func transactionsPrompt(st *domain.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Answer the question using only the records below. Be concise and conversational.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\nPlayer: %s\n", st.LastUserQuery(), st.TxPlayer.Name)
	if len(st.Transactions) == 0 {
		b.WriteString("No recent roster transactions on record.\n")
	} else {
		b.WriteString("Recent transactions:\n")
		for _, tx := range st.Transactions {
			fmt.Fprintf(&b, "- %s [%s]: %s\n", tx.Date, tx.Type, tx.Description)
		}
	}
	if c := st.Contract; c != nil {
		fmt.Fprintf(&b, "Contract: %s, %s\n", c.Seasons, c.Value)
	} else if wantsContract(st) {
		b.WriteString("Contract details were not fetched; do not invent any.\n")
	}
	return b.String()
}

func transactionsFallbackAnswer(st *domain.State) string {
	if len(st.Transactions) == 0 {
		return fmt.Sprintf("I found no recent roster transactions for %s.", st.TxPlayer.Name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Recent transactions for %s:\n", st.TxPlayer.Name)
	for _, tx := range st.Transactions {
		fmt.Fprintf(&b, "- %s [%s]: %s\n", tx.Date, tx.Type, tx.Description)
	}
	if c := st.Contract; c != nil {
		fmt.Fprintf(&b, "Contract: %s, %s\n", c.Seasons, c.Value)
	}
	return strings.TrimRight(b.String(), "\n")
}

// newTransactionsSubgraph assembles the transactions path. The contract
// lookup only runs when the query asks for contract terms and a player
// resolved; everything else goes straight to the answer step.
func newTransactionsSubgraph(cfg Config, logger *slog.Logger) (*engine.Subgraph, error) {
	g := engine.NewGraph(SubgraphTransactions).
		AddStep(&findTransactionsStep{directory: cfg.Directory, ledger: cfg.Ledger, logger: logger}).
		AddStep(&contractLookupStep{ledger: cfg.Ledger, logger: logger}).
		AddStep(&answerTransactionsStep{responder: cfg.Responder, logger: logger}).
		SetEntry(stepFindTransactions).
		AddConditionalEdges(stepFindTransactions,
			func(st *domain.State) string {
				if st.TxPlayer != nil && wantsContract(st) {
					return "contract"
				}
				return "answer"
			},
			[]string{"contract", "answer"},
			map[string]string{
				"contract": stepContractLookup,
				"answer":   stepAnswerTransactions,
			}).
		AddEdge(stepContractLookup, stepAnswerTransactions).
		AddEdge(stepAnswerTransactions, engine.End)
	return engine.NewSubgraph(SubgraphTransactions, g)
}
