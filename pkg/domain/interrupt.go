package domain

import "fmt"

// InterruptKind identifies what external input an interrupt is waiting for.
type InterruptKind string

const (
	// InterruptDisambiguation asks the caller to pick one of several
	// candidate entities.
	InterruptDisambiguation InterruptKind = "disambiguation"

	// InterruptApproval asks the caller to approve a pending sensitive
	// action before it executes.
	InterruptApproval InterruptKind = "approval"
)

// InterruptStatus tracks an interrupt through its lifecycle:
// Raised -> Resumed -> Consumed.
type InterruptStatus string

const (
	InterruptRaised   InterruptStatus = "raised"
	InterruptResumed  InterruptStatus = "resumed"
	InterruptConsumed InterruptStatus = "consumed"
)

// Interrupt is a paused execution point awaiting externally supplied input.
// Path identifies the exact step instance that raised it, outermost unit
// first, so the resume value is delivered to that step and no other.
type Interrupt struct {
	ID     string          `json:"id"`
	Path   []string        `json:"path"`
	Kind   InterruptKind   `json:"kind"`
	Status InterruptStatus `json:"status"`
	Prompt string          `json:"prompt"`

	// Candidates is the payload for disambiguation interrupts.
	Candidates []PlayerRef `json:"candidates,omitempty"`

	// Action describes the pending sensitive action for approval interrupts.
	Action string `json:"action,omitempty"`
}

// Step returns the name of the innermost step that raised the interrupt.
func (i *Interrupt) Step() string {
	if len(i.Path) == 0 {
		return ""
	}
	return i.Path[len(i.Path)-1]
}

// Paused is returned as an error by a step that must suspend for external
// input. Delta carries the progress the step made before suspending so it is
// checkpointed with the pause.
type Paused struct {
	Interrupt *Interrupt
	Delta     *Delta
}

func (p *Paused) Error() string {
	return fmt.Sprintf("execution paused: %s interrupt at %q", p.Interrupt.Kind, p.Interrupt.Step())
}
