package flow

import (
	"context"
	"log/slog"

	"github.com/dugoutlabs/dugout/pkg/domain"
	"github.com/dugoutlabs/dugout/pkg/ports"
)

// verifyStep judges the latest answer against the query. Every domain
// resolution path exits through it; only the static capabilities answer
// skips verification. A judge failure accepts the answer with a warning
// rather than blocking delivery. A rejection bumps the replan counter and
// clears the planner trace so the replanned attempt starts a fresh tool loop
// over the full conversation, rejected answer included.
type verifyStep struct {
	judge  ports.Judge
	logger *slog.Logger
}

func (s *verifyStep) Name() string { return StepVerify }

func (s *verifyStep) Run(ctx context.Context, st *domain.State) (*domain.Delta, error) {
	verdict, err := s.judge.JudgeAnswer(ctx, st.LastUserQuery(), st.LastAnswer())
	if err != nil {
		s.logger.Warn("judge unavailable, accepting answer unverified", "err", err)
		verdict = domain.VerdictOK
	}

	d := &domain.Delta{Verdict: &verdict}
	if verdict == domain.VerdictReplan {
		d.ReplanAttempts = ptr(st.ReplanAttempts + 1)
		d.PlannerTrace = []domain.ToolExchange{}
		s.logger.Info("answer rejected, replanning", "attempt", st.ReplanAttempts+1)
	}
	return d, nil
}

// Conditional edge keys after verification.
const (
	verdictOK     = "ok"
	verdictReplan = "replan"
	verdictCapped = "capped"
)

// verdictKey routes the post-verification edge. Replanning is bounded: once
// the attempt counter reaches maxReplans a rejected answer goes to the caveat
// step instead of looping again.
func verdictKey(maxReplans int) func(*domain.State) string {
	return func(st *domain.State) string {
		if st.Verdict != domain.VerdictReplan {
			return verdictOK
		}
		if st.ReplanAttempts >= maxReplans {
			return verdictCapped
		}
		return verdictReplan
	}
}

const caveatMarker = "_Note: I could not fully verify this answer._"

// caveatStep delivers the best available answer with an explicit verification
// caveat once replanning is exhausted.
type caveatStep struct{}

func (caveatStep) Name() string { return StepCaveat }

func (caveatStep) Run(ctx context.Context, st *domain.State) (*domain.Delta, error) {
	best := st.LastAnswer()
	if best == "" {
		best = "I wasn't able to put together an answer to that."
	}
	return &domain.Delta{Messages: assistant(best + "\n\n" + caveatMarker)}, nil
}

// capabilitiesStep answers queries outside the assistant's domains with a
// summary of what it can do.
type capabilitiesStep struct{}

func (capabilitiesStep) Name() string { return StepCapabilities }

func (capabilitiesStep) Run(ctx context.Context, st *domain.State) (*domain.Delta, error) {
	const msg = "I'm a baseball assistant with three main capabilities:\n\n" +
		"1. **Player statistics**: current season numbers for any active player.\n" +
		"2. **Document Q&A**: questions answered from my baseball document library, with sources.\n" +
		"3. **Transactions and contracts**: recent roster moves and contract terms.\n\n" +
		"I wasn't able to match your question to any of these. Try rephrasing, or ask about a specific player or topic."
	return &domain.Delta{Messages: assistant(msg)}, nil
}
