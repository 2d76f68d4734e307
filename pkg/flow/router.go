package flow

import (
	"context"
	"log/slog"

	"github.com/dugoutlabs/dugout/pkg/domain"
	"github.com/dugoutlabs/dugout/pkg/ports"
)

// routerStep classifies the query and extracts entities in one collaborator
// call. It always writes a member of the closed Route enumeration: a failed
// or out-of-enumeration classification becomes RouteFallback, never an
// error. It has no side effects beyond the routing fields.
type routerStep struct {
	classifier ports.RouteClassifier
	logger     *slog.Logger
}

func (r *routerStep) Name() string { return StepRouter }

func (r *routerStep) Run(ctx context.Context, st *domain.State) (*domain.Delta, error) {
	route := domain.RouteFallback
	var name, team string

	decision, err := r.classifier.ClassifyAndExtract(ctx, st.Messages)
	switch {
	case err != nil:
		r.logger.Warn("classification failed, routing to fallback", "err", err)
	default:
		parsed, ok := domain.ParseRoute(decision.Route)
		if !ok {
			r.logger.Warn("classifier returned unknown route, routing to fallback", "route", decision.Route)
			break
		}
		route = parsed
		name = decision.Name
		team = decision.Team
	}

	return &domain.Delta{
		Route:         &route,
		ExtractedName: &name,
		ExtractedTeam: &team,
	}, nil
}

// routeKey resolves the conditional edge after the router. Anything outside
// the enumeration is clamped to FALLBACK so the dispatch table stays total.
func routeKey(st *domain.State) string {
	if _, ok := domain.ParseRoute(string(st.Route)); !ok {
		return string(domain.RouteFallback)
	}
	return string(st.Route)
}
