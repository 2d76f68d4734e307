package domain

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn. The message sequence is append-only.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// PlayerRef identifies a player candidate returned by a directory search.
type PlayerRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Team string `json:"team,omitempty"`
}

// HittingLine holds a season's hitting summary.
type HittingLine struct {
	AVG      string `json:"avg"`
	HomeRuns int    `json:"home_runs"`
	OPS      string `json:"ops"`
	RBI      int    `json:"rbi"`
}

// PlayerStats holds structured season statistics for one player.
type PlayerStats struct {
	PlayerID int          `json:"player_id"`
	FullName string       `json:"full_name"`
	Hitting  *HittingLine `json:"hitting_season,omitempty"`
}

// Transaction is a single roster transaction record.
type Transaction struct {
	Date        string `json:"date"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Contract holds contract terms for one player. Fetching it is a sensitive
// operation and requires an approval interrupt.
type Contract struct {
	PlayerID int    `json:"player_id"`
	Seasons  string `json:"seasons"`
	Value    string `json:"value"`
}

// ToolCall is one tool invocation requested by the planner model.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolExchange records one planner tool round. A Pending exchange is a
// sensitive call that is waiting for an approval interrupt to be resumed.
type ToolExchange struct {
	Call    ToolCall `json:"call"`
	Result  string   `json:"result,omitempty"`
	Failed  bool     `json:"failed,omitempty"`
	Pending bool     `json:"pending,omitempty"`
}

// State is the record of conversation and task progress passed between steps.
//
// Merge policy: Messages is append-only; every other field is replace-on-write
// via Delta. Fields below the routing block are owned by the resolution path
// that writes them; no path reads another path's fields. Serialization is
// forward-compatible: unknown fields are ignored on load, missing fields take
// their zero defaults.
type State struct {
	Messages       []Message `json:"messages"`
	Route          Route     `json:"route,omitempty"`
	ReplanAttempts int       `json:"replan_attempts"`

	// Verdict is produced by the verification step and consumed by the edge
	// that follows it within the same engine tick. It is never persisted.
	Verdict Verdict `json:"-"`

	// Owned by the player-stats path.
	PlayerID      int          `json:"player_id,omitempty"`
	Stats         *PlayerStats `json:"stats,omitempty"`
	ExtractedName string       `json:"extracted_name,omitempty"`
	ExtractedTeam string       `json:"extracted_team,omitempty"`
	Candidates    []PlayerRef  `json:"candidate_players,omitempty"`

	// Owned by the transactions path.
	TxPlayer     *PlayerRef    `json:"tx_player,omitempty"`
	Transactions []Transaction `json:"transactions,omitempty"`
	Contract     *Contract     `json:"contract,omitempty"`

	// Owned by the planner.
	PlannerTrace []ToolExchange `json:"planner_trace,omitempty"`
}

// NewState creates an empty conversation state.
func NewState() *State {
	return &State{}
}

// Delta is the state change produced by a single step. Messages are appended;
// nil pointer fields mean "unchanged"; nil slices mean "unchanged" while empty
// non-nil slices clear the field.
type Delta struct {
	Messages       []Message
	Route          *Route
	ReplanAttempts *int
	Verdict        *Verdict
	PlayerID       *int
	Stats          *PlayerStats
	ExtractedName  *string
	ExtractedTeam  *string
	Candidates     []PlayerRef
	TxPlayer       *PlayerRef
	Transactions   []Transaction
	Contract       *Contract
	PlannerTrace   []ToolExchange
}

// Apply merges a delta into the state following each field's merge policy.
func (s *State) Apply(d *Delta) {
	if d == nil {
		return
	}
	s.Messages = append(s.Messages, d.Messages...)
	if d.Route != nil {
		s.Route = *d.Route
	}
	if d.ReplanAttempts != nil {
		s.ReplanAttempts = *d.ReplanAttempts
	}
	if d.Verdict != nil {
		s.Verdict = *d.Verdict
	}
	if d.PlayerID != nil {
		s.PlayerID = *d.PlayerID
	}
	if d.Stats != nil {
		s.Stats = d.Stats
	}
	if d.ExtractedName != nil {
		s.ExtractedName = *d.ExtractedName
	}
	if d.ExtractedTeam != nil {
		s.ExtractedTeam = *d.ExtractedTeam
	}
	if d.Candidates != nil {
		s.Candidates = d.Candidates
	}
	if d.TxPlayer != nil {
		s.TxPlayer = d.TxPlayer
	}
	if d.Transactions != nil {
		s.Transactions = d.Transactions
	}
	if d.Contract != nil {
		s.Contract = d.Contract
	}
	if d.PlannerTrace != nil {
		s.PlannerTrace = d.PlannerTrace
	}
}

// Merge folds another delta into this one, preserving append semantics for
// messages. Used by subgraphs to report their internal progress as one delta.
func (d *Delta) Merge(other *Delta) {
	if other == nil {
		return
	}
	d.Messages = append(d.Messages, other.Messages...)
	if other.Route != nil {
		d.Route = other.Route
	}
	if other.ReplanAttempts != nil {
		d.ReplanAttempts = other.ReplanAttempts
	}
	if other.Verdict != nil {
		d.Verdict = other.Verdict
	}
	if other.PlayerID != nil {
		d.PlayerID = other.PlayerID
	}
	if other.Stats != nil {
		d.Stats = other.Stats
	}
	if other.ExtractedName != nil {
		d.ExtractedName = other.ExtractedName
	}
	if other.ExtractedTeam != nil {
		d.ExtractedTeam = other.ExtractedTeam
	}
	if other.Candidates != nil {
		d.Candidates = other.Candidates
	}
	if other.TxPlayer != nil {
		d.TxPlayer = other.TxPlayer
	}
	if other.Transactions != nil {
		d.Transactions = other.Transactions
	}
	if other.Contract != nil {
		d.Contract = other.Contract
	}
	if other.PlannerTrace != nil {
		d.PlannerTrace = other.PlannerTrace
	}
}

// Clone returns a deep copy safe for independent mutation.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	next := *s
	next.Messages = append([]Message(nil), s.Messages...)
	next.Candidates = append([]PlayerRef(nil), s.Candidates...)
	next.Transactions = append([]Transaction(nil), s.Transactions...)
	if s.PlannerTrace != nil {
		next.PlannerTrace = make([]ToolExchange, len(s.PlannerTrace))
		copy(next.PlannerTrace, s.PlannerTrace)
	}
	if s.Stats != nil {
		st := *s.Stats
		if s.Stats.Hitting != nil {
			h := *s.Stats.Hitting
			st.Hitting = &h
		}
		next.Stats = &st
	}
	if s.TxPlayer != nil {
		p := *s.TxPlayer
		next.TxPlayer = &p
	}
	if s.Contract != nil {
		c := *s.Contract
		next.Contract = &c
	}
	return &next
}

// BeginQuery appends the user query and clears all per-invocation state:
// routing fields, so the router runs exactly once for the new query, and
// path-owned results, so a path that fails to produce data this query cannot
// answer from a previous query's data. Deltas cannot express these clears
// (a nil pointer field means unchanged), so they happen here.
func (s *State) BeginQuery(query string) {
	s.Messages = append(s.Messages, Message{Role: RoleUser, Content: query})
	s.Route = ""
	s.ReplanAttempts = 0
	s.Verdict = ""
	s.Candidates = nil
	s.PlannerTrace = nil
	s.Stats = nil
	s.TxPlayer = nil
	s.Transactions = nil
	s.Contract = nil
}

// LastUserQuery returns the content of the most recent user message.
func (s *State) LastUserQuery() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// LastAnswer returns the content of the most recent assistant message.
func (s *State) LastAnswer() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i].Content
		}
	}
	return ""
}
