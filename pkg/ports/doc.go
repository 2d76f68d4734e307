// Package ports defines the interfaces between the orchestration core and
// the outside world: checkpoint persistence, step execution, distributed
// locking, and the domain collaborators (player directory, statistics,
// document grounding, transaction ledger, judge, classifier, planner model).
//
// Adapters implement these interfaces; the engine and the flow depend only on
// the interfaces. The package also ships contract-test helpers so every
// adapter is verified against the same semantics.
package ports
