// Package engine implements the workflow orchestration core: a graph builder
// with totality-checked conditional edges, independently compiled subgraphs
// invoked as opaque steps, and a scheduler that executes a session strictly
// sequentially, appends a checkpoint after every step, and suspends and
// resumes execution around interrupts.
//
// The engine knows nothing about any particular assistant; the query flow is
// assembled on top of it by package flow.
package engine
