package domain

// Verdict is the outcome of judging a candidate answer against the query.
type Verdict string

const (
	// VerdictOK means the answer satisfies the query; execution proceeds to
	// the terminal step.
	VerdictOK Verdict = "OK"

	// VerdictReplan means the answer is unsatisfactory; control transitions
	// back to the planner until the replan cap is reached.
	VerdictReplan Verdict = "REPLAN"
)
