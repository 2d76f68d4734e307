package domain

// Route classifies a query to one of the fixed resolution paths.
// The enumeration is closed: dispatch tables are validated for totality over
// Routes() at graph compile time, and anything unrecognized at runtime is
// clamped to RouteFallback before dispatch.
type Route string

const (
	RouteDocumentQA   Route = "DOCUMENT_QA"
	RoutePlayerStats  Route = "PLAYER_STATS"
	RouteTransactions Route = "TRANSACTIONS"
	RouteMultiDomain  Route = "MULTI_DOMAIN"
	RouteFallback     Route = "FALLBACK"
)

// Routes returns every member of the enumeration.
func Routes() []Route {
	return []Route{
		RouteDocumentQA,
		RoutePlayerStats,
		RouteTransactions,
		RouteMultiDomain,
		RouteFallback,
	}
}

// ParseRoute maps a raw tag to a Route, reporting whether it is a member of
// the enumeration.
func ParseRoute(s string) (Route, bool) {
	for _, r := range Routes() {
		if s == string(r) {
			return r, true
		}
	}
	return RouteFallback, false
}
