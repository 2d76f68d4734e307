// Package mlb adapts the public MLB Stats API to the directory, stats, and
// ledger ports.
package mlb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/dugoutlabs/dugout/internal/logging"
	"github.com/dugoutlabs/dugout/pkg/domain"
	"github.com/dugoutlabs/dugout/pkg/ports"
)

// DefaultBaseURL is the public Stats API endpoint.
const DefaultBaseURL = "https://statsapi.mlb.com"

// Client implements ports.PlayerDirectory, ports.StatsProvider, and
// ports.TransactionLedger over the Stats API.
type Client struct {
	base   string
	hc     *http.Client
	logger *slog.Logger
	now    func() time.Time
}

// Option configures the Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.base = base }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a Stats API client.
func New(opts ...Option) *Client {
	c := &Client{
		base:   DefaultBaseURL,
		hc:     &http.Client{Timeout: 10 * time.Second},
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("call %s: %w", path, domain.ErrResourceExhausted)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("call %s: unexpected status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

type personPayload struct {
	ID       int    `json:"id"`
	FullName string `json:"fullName"`
	Active   bool   `json:"active"`
	Team     struct {
		Name string `json:"name"`
	} `json:"currentTeam"`
	Stats []struct {
		Splits []struct {
			Stat struct {
				AVG      string `json:"avg"`
				OPS      string `json:"ops"`
				HomeRuns int    `json:"homeRuns"`
				RBI      int    `json:"rbi"`
			} `json:"stat"`
		} `json:"splits"`
	} `json:"stats"`
}

// SearchPlayer implements ports.PlayerDirectory. Inactive players are
// filtered out; a missing team reads as a free agent.
func (c *Client) SearchPlayer(ctx context.Context, name string) ([]domain.PlayerRef, error) {
	var payload struct {
		People []personPayload `json:"people"`
	}
	q := url.Values{"names": {name}}
	if err := c.get(ctx, "/api/v1/people/search", q, &payload); err != nil {
		return nil, err
	}

	var refs []domain.PlayerRef
	for _, p := range payload.People {
		if !p.Active {
			continue
		}
		team := p.Team.Name
		if team == "" {
			team = "Free Agent"
		}
		refs = append(refs, domain.PlayerRef{ID: p.ID, Name: p.FullName, Team: team})
	}
	c.logger.Debug("player search", "name", name, "matches", len(refs))
	return refs, nil
}

// PlayerStats implements ports.StatsProvider with a season hitting hydrate.
func (c *Client) PlayerStats(ctx context.Context, playerID int) (*domain.PlayerStats, error) {
	season := c.now().Year()
	q := url.Values{"hydrate": {fmt.Sprintf("stats(group=[hitting],type=[season],season=%d)", season)}}

	var payload struct {
		People []personPayload `json:"people"`
	}
	if err := c.get(ctx, "/api/v1/people/"+strconv.Itoa(playerID), q, &payload); err != nil {
		return nil, err
	}
	if len(payload.People) == 0 {
		return nil, domain.ErrNotFound
	}

	p := payload.People[0]
	stats := &domain.PlayerStats{PlayerID: playerID, FullName: p.FullName}
	for _, group := range p.Stats {
		if len(group.Splits) == 0 {
			continue
		}
		s := group.Splits[0].Stat
		stats.Hitting = &domain.HittingLine{AVG: s.AVG, OPS: s.OPS, HomeRuns: s.HomeRuns, RBI: s.RBI}
	}
	return stats, nil
}

type transactionPayload struct {
	Date        string `json:"date"`
	TypeDesc    string `json:"typeDesc"`
	Description string `json:"description"`
}

// FindTransactions implements ports.TransactionLedger for the past year of
// roster moves, newest first as the API returns them.
func (c *Client) FindTransactions(ctx context.Context, playerID int) ([]domain.Transaction, error) {
	end := c.now()
	start := end.AddDate(-1, 0, 0)
	q := url.Values{
		"playerId":  {strconv.Itoa(playerID)},
		"startDate": {start.Format("2006-01-02")},
		"endDate":   {end.Format("2006-01-02")},
	}

	var payload struct {
		Transactions []transactionPayload `json:"transactions"`
	}
	if err := c.get(ctx, "/api/v1/transactions", q, &payload); err != nil {
		return nil, err
	}

	txs := make([]domain.Transaction, 0, len(payload.Transactions))
	for _, tx := range payload.Transactions {
		txs = append(txs, domain.Transaction{Date: tx.Date, Type: tx.TypeDesc, Description: tx.Description})
	}
	return txs, nil
}

var (
	contractValue = regexp.MustCompile(`\$[\d,.]+(?:\s*(?:million|billion))?`)
	contractYears = regexp.MustCompile(`(\d+)[- ]year`)
)

// Contract implements ports.TransactionLedger. The Stats API has no contract
// endpoint, so terms are lifted from the most recent signing transaction's
// description; players without a parseable signing report ErrNotFound.
func (c *Client) Contract(ctx context.Context, playerID int) (*domain.Contract, error) {
	end := c.now()
	start := end.AddDate(-3, 0, 0)
	q := url.Values{
		"playerId":  {strconv.Itoa(playerID)},
		"startDate": {start.Format("2006-01-02")},
		"endDate":   {end.Format("2006-01-02")},
	}

	var payload struct {
		Transactions []transactionPayload `json:"transactions"`
	}
	if err := c.get(ctx, "/api/v1/transactions", q, &payload); err != nil {
		return nil, err
	}

	for i := len(payload.Transactions) - 1; i >= 0; i-- {
		tx := payload.Transactions[i]
		value := contractValue.FindString(tx.Description)
		if value == "" {
			continue
		}
		seasons := "undisclosed term"
		if m := contractYears.FindStringSubmatch(tx.Description); m != nil {
			seasons = m[1] + " years"
		}
		return &domain.Contract{PlayerID: playerID, Seasons: seasons, Value: value}, nil
	}
	return nil, fmt.Errorf("no signing with contract terms for player %d: %w", playerID, domain.ErrNotFound)
}

var (
	_ ports.PlayerDirectory   = (*Client)(nil)
	_ ports.StatsProvider     = (*Client)(nil)
	_ ports.TransactionLedger = (*Client)(nil)
)
