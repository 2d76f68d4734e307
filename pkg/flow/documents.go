package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dugoutlabs/dugout/pkg/domain"
	"github.com/dugoutlabs/dugout/pkg/engine"
	"github.com/dugoutlabs/dugout/pkg/ports"
)

const (
	groundedAttempts    = 3
	groundedBackoffBase = 2 * time.Second
)

// groundedWithRetry calls the retriever, retrying resource exhaustion with
// exponential backoff up to groundedAttempts total attempts. Any other error
// is terminal for the call.
func groundedWithRetry(ctx context.Context, r ports.GroundedRetriever, query string, base time.Duration, logger *slog.Logger) (*ports.GroundedAnswer, error) {
	var lastErr error
	for attempt := 1; attempt <= groundedAttempts; attempt++ {
		answer, err := r.GroundedAnswer(ctx, query)
		if err == nil {
			return answer, nil
		}
		lastErr = err
		if !errors.Is(err, domain.ErrResourceExhausted) || attempt == groundedAttempts {
			break
		}
		delay := base << (attempt - 1)
		logger.Warn("grounded retrieval rate limited, backing off", "attempt", attempt, "delay", delay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

// groundedAnswerStep answers document questions through the grounded
// retriever and appends a source bibliography when citations are returned.
// Persistent rate limiting and retrieval failures degrade to an apologetic
// answer instead of failing the walk.
type groundedAnswerStep struct {
	retriever ports.GroundedRetriever
	logger    *slog.Logger
	backoff   time.Duration
}

func (s *groundedAnswerStep) Name() string { return stepGroundedAnswer }

func (s *groundedAnswerStep) Run(ctx context.Context, st *domain.State) (*domain.Delta, error) {
	answer, err := groundedWithRetry(ctx, s.retriever, st.LastUserQuery(), s.backoff, s.logger)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	case errors.Is(err, domain.ErrResourceExhausted):
		return &domain.Delta{Messages: assistant("The service is currently busy. Please try again in a few moments.")}, nil
	case err != nil:
		s.logger.Warn("grounded retrieval failed", "err", err)
		return &domain.Delta{Messages: assistant("I could not find any information on that topic in the documents I have access to.")}, nil
	case strings.TrimSpace(answer.Text) == "":
		return &domain.Delta{Messages: assistant("I could not find any information on that topic in the documents I have access to.")}, nil
	}
	return &domain.Delta{Messages: assistant(formatGrounded(answer))}, nil
}

// formatGrounded renders the answer text followed by a numbered Sources
// section listing each citation.
func formatGrounded(answer *ports.GroundedAnswer) string {
	if len(answer.Citations) == 0 {
		return answer.Text
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(answer.Text, "\n"))
	b.WriteString("\n\n**Sources:**\n")
	for i, c := range answer.Citations {
		if c.URI != "" {
			fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, c.Title, c.URI)
		} else {
			fmt.Fprintf(&b, "%d. %s\n", i+1, c.Title)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// newDocumentsSubgraph wraps the grounded answer step as the document-QA
// path.
func newDocumentsSubgraph(cfg Config, logger *slog.Logger) (*engine.Subgraph, error) {
	backoff := cfg.GroundedBackoff
	if backoff <= 0 {
		backoff = groundedBackoffBase
	}
	g := engine.NewGraph(SubgraphDocuments).
		AddStep(&groundedAnswerStep{retriever: cfg.Documents, logger: logger, backoff: backoff}).
		SetEntry(stepGroundedAnswer).
		AddEdge(stepGroundedAnswer, engine.End)
	return engine.NewSubgraph(SubgraphDocuments, g)
}
