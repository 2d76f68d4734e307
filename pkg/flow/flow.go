// Package flow assembles the baseball assistant graph: a router step, one
// subgraph per resolution path, a multi-domain planner, and a verification
// loop, compiled into a single engine graph by Build.
package flow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/dugoutlabs/dugout/pkg/domain"
)

// Step and subgraph names of the top-level graph. Interrupt paths and
// checkpoint positions are expressed in these names, so they are part of the
// persisted format and must stay stable.
const (
	StepRouter       = "router"
	StepPlanner      = "planner"
	StepVerify       = "verify"
	StepCaveat       = "caveat"
	StepCapabilities = "capabilities"

	SubgraphStats        = "stats"
	SubgraphDocuments    = "documents"
	SubgraphTransactions = "transactions"
)

// Internal step names. Those that can raise interrupts (player_search,
// contract_lookup) appear in persisted interrupt paths.
const (
	stepPlayerSearch   = "player_search"
	stepPlayerStats    = "player_stats"
	stepAnswerStats    = "answer_stats"
	stepPlayerNotFound = "player_not_found"

	stepGroundedAnswer = "grounded_answer"

	stepFindTransactions   = "find_transactions"
	stepContractLookup     = "contract_lookup"
	stepAnswerTransactions = "answer_transactions"
)

func ptr[T any](v T) *T { return &v }

func assistant(text string) []domain.Message {
	return []domain.Message{{Role: domain.RoleAssistant, Content: text}}
}

var properName = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+)+)\b`)

// subjectName returns the player name a path should resolve: the extracted
// entity when the classifier produced one, otherwise a capitalized name pair
// lifted from the query text.
func subjectName(st *domain.State) string {
	if name := strings.TrimSpace(st.ExtractedName); name != "" {
		return name
	}
	return properName.FindString(st.LastUserQuery())
}

// choosePlayer applies the match heuristic: a single candidate wins, and a
// unique exact case-insensitive full-name match wins over partial matches.
// Anything else is ambiguous (nil), including several candidates sharing the
// exact name, which only the user can tell apart.
func choosePlayer(name string, candidates []domain.PlayerRef) *domain.PlayerRef {
	if len(candidates) == 1 {
		return &candidates[0]
	}
	var exact *domain.PlayerRef
	for i := range candidates {
		if strings.EqualFold(candidates[i].Name, name) {
			if exact != nil {
				return nil
			}
			exact = &candidates[i]
		}
	}
	return exact
}

// decodeChosenID interprets a disambiguation resume value as a player ID.
// Accepted shapes: a bare integer (any numeric type JSON decoding produces),
// a digit string, or an object carrying player_id.
func decodeChosenID(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v == float64(int(v)) {
			return int(v), nil
		}
	case string:
		if id, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return id, nil
		}
	case map[string]any:
		var payload struct {
			PlayerID int `mapstructure:"player_id"`
		}
		if err := mapstructure.WeakDecode(v, &payload); err == nil && payload.PlayerID != 0 {
			return payload.PlayerID, nil
		}
	}
	return 0, fmt.Errorf("resume value %v is not a player id: %w", value, domain.ErrInvalidResume)
}

// decodeApproval interprets an approval resume value as an approve/deny
// decision. Accepted shapes: a bool, a yes/no style string, or an object
// carrying approve.
func decodeApproval(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "y", "yes", "true", "approve", "approved", "ok":
			return true, nil
		case "n", "no", "false", "deny", "denied":
			return false, nil
		}
	case map[string]any:
		var payload struct {
			Approve *bool `mapstructure:"approve"`
		}
		if err := mapstructure.WeakDecode(v, &payload); err == nil && payload.Approve != nil {
			return *payload.Approve, nil
		}
	}
	return false, fmt.Errorf("resume value %v is not an approval decision: %w", value, domain.ErrInvalidResume)
}
