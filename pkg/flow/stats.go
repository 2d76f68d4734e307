package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dugoutlabs/dugout/pkg/domain"
	"github.com/dugoutlabs/dugout/pkg/engine"
	"github.com/dugoutlabs/dugout/pkg/ports"
)

// playerSearchStep resolves the player named in the query to a single
// identity. With several plausible candidates it raises a disambiguation
// interrupt instead of guessing; the resume value picks one of the candidates
// it offered and anything else is ErrInvalidResume.
type playerSearchStep struct {
	directory ports.PlayerDirectory
	logger    *slog.Logger
}

func (s *playerSearchStep) Name() string { return stepPlayerSearch }

func (s *playerSearchStep) Run(ctx context.Context, st *domain.State) (*domain.Delta, error) {
	name := subjectName(st)
	if name == "" {
		return &domain.Delta{PlayerID: ptr(0)}, nil
	}

	candidates, err := s.directory.SearchPlayer(ctx, name)
	if err != nil {
		s.logger.Warn("player search failed", "name", name, "err", err)
		return &domain.Delta{PlayerID: ptr(0)}, nil
	}
	if len(candidates) == 0 {
		return &domain.Delta{PlayerID: ptr(0), Candidates: []domain.PlayerRef{}}, nil
	}

	if pick := choosePlayer(name, candidates); pick != nil {
		return &domain.Delta{PlayerID: ptr(pick.ID), Candidates: candidates}, nil
	}

	return nil, &domain.Paused{
		Interrupt: &domain.Interrupt{
			Path:       []string{stepPlayerSearch},
			Kind:       domain.InterruptDisambiguation,
			Prompt:     fmt.Sprintf("I found several players matching %q. Which one did you mean?", name),
			Candidates: candidates,
		},
		Delta: &domain.Delta{Candidates: candidates},
	}
}

func (s *playerSearchStep) Resume(ctx context.Context, st *domain.State, intr *domain.Interrupt, value any) (*domain.Delta, error) {
	id, err := decodeChosenID(value)
	if err != nil {
		return nil, err
	}
	for _, c := range intr.Candidates {
		if c.ID == id {
			return &domain.Delta{PlayerID: ptr(id)}, nil
		}
	}
	return nil, fmt.Errorf("player %d is not one of the offered candidates: %w", id, domain.ErrInvalidResume)
}

// playerStatsStep fetches season statistics for the resolved player. Provider
// failures degrade to an absent Stats field rather than failing the walk.
type playerStatsStep struct {
	provider ports.StatsProvider
	logger   *slog.Logger
}

func (s *playerStatsStep) Name() string { return stepPlayerStats }

func (s *playerStatsStep) Run(ctx context.Context, st *domain.State) (*domain.Delta, error) {
	stats, err := s.provider.PlayerStats(ctx, st.PlayerID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("stats fetch failed", "player_id", st.PlayerID, "err", err)
		}
		return &domain.Delta{}, nil
	}
	return &domain.Delta{Stats: stats}, nil
}

// answerStatsStep composes a natural-language answer from the structured
// statistics via the responder.
type answerStatsStep struct {
	responder ports.Responder
	logger    *slog.Logger
}

func (s *answerStatsStep) Name() string { return stepAnswerStats }

func (s *answerStatsStep) Run(ctx context.Context, st *domain.State) (*domain.Delta, error) {
	if st.Stats == nil {
		msg := "I found the player but couldn't retrieve their season statistics right now. Please try again in a moment."
		return &domain.Delta{Messages: assistant(msg)}, nil
	}

	answer, err := s.responder.Respond(ctx, statsPrompt(st.LastUserQuery(), st.Stats))
	if err != nil {
		s.logger.Warn("stats answer generation failed", "err", err)
		answer = statsFallbackAnswer(st.Stats)
	}
	return &domain.Delta{Messages: assistant(answer)}, nil
}

func statsPrompt(query string, stats *domain.PlayerStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Answer the question using only the statistics below. Be concise and conversational.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\nPlayer: %s\n", query, stats.FullName)
	if h := stats.Hitting; h != nil {
		fmt.Fprintf(&b, "Season hitting: AVG %s, HR %d, OPS %s, RBI %d\n", h.AVG, h.HomeRuns, h.OPS, h.RBI)
	} else {
		b.WriteString("No hitting statistics available for the current season.\n")
	}
	return b.String()
}

// statsFallbackAnswer renders the stat line directly when the responder is
// unavailable, so a successful lookup still produces an answer.
func statsFallbackAnswer(stats *domain.PlayerStats) string {
	if h := stats.Hitting; h != nil {
		return fmt.Sprintf("%s is hitting %s this season with %d home runs, %d RBI, and a %s OPS.",
			stats.FullName, h.AVG, h.HomeRuns, h.RBI, h.OPS)
	}
	return fmt.Sprintf("I found %s but no hitting statistics for the current season.", stats.FullName)
}

// playerNotFoundStep answers when no player matched the query.
type playerNotFoundStep struct{}

func (playerNotFoundStep) Name() string { return stepPlayerNotFound }

func (playerNotFoundStep) Run(ctx context.Context, st *domain.State) (*domain.Delta, error) {
	name := subjectName(st)
	var msg string
	if name == "" {
		msg = "I couldn't tell which player you're asking about. Try including the player's full name."
	} else {
		msg = fmt.Sprintf("I couldn't find an active player matching %q. Check the spelling or try the player's full name.", name)
	}
	return &domain.Delta{Messages: assistant(msg)}, nil
}

// newStatsSubgraph assembles the player-stats path: search, conditional on
// whether a player resolved, then stats fetch and answer composition.
func newStatsSubgraph(cfg Config, logger *slog.Logger) (*engine.Subgraph, error) {
	g := engine.NewGraph(SubgraphStats).
		AddStep(&playerSearchStep{directory: cfg.Directory, logger: logger}).
		AddStep(&playerStatsStep{provider: cfg.Stats, logger: logger}).
		AddStep(&answerStatsStep{responder: cfg.Responder, logger: logger}).
		AddStep(playerNotFoundStep{}).
		SetEntry(stepPlayerSearch).
		AddConditionalEdges(stepPlayerSearch,
			func(st *domain.State) string {
				if st.PlayerID > 0 {
					return "found"
				}
				return "missing"
			},
			[]string{"found", "missing"},
			map[string]string{
				"found":   stepPlayerStats,
				"missing": stepPlayerNotFound,
			}).
		AddEdge(stepPlayerStats, stepAnswerStats).
		AddEdge(stepAnswerStats, engine.End).
		AddEdge(stepPlayerNotFound, engine.End)
	return engine.NewSubgraph(SubgraphStats, g)
}
