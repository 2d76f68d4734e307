/*
Package dugout is a baseball Q&A assistant built on a resumable, checkpointed
graph engine.

Queries are classified onto one of a closed set of resolution paths (document
grounding, player statistics, roster transactions, a multi-domain planner, or
a capabilities fallback), executed as a directed graph of steps, and verified
by a judge before delivery. Every step commits a durable checkpoint, so a
session can pause on a human-in-the-loop interrupt (player disambiguation,
sensitive-action approval) and resume later, surviving process restarts when
backed by a persistent store.

# Architecture

The engine is hexagonal: pkg/domain holds the state model, pkg/ports the
collaborator and storage interfaces, pkg/engine the graph walker, pkg/flow
the assistant graph, and pkg/adapters the concrete backends (in-memory and
Redis checkpoint stores, the MLB Stats API, Gemini models, HTTP and MCP
surfaces).

# Usage

	agent, err := dugout.New(dugout.Collaborators{
		Directory:  mlbClient,
		Stats:      mlbClient,
		Ledger:     mlbClient,
		Documents:  genaiClient,
		Judge:      genaiClient,
		Classifier: genaiClient,
		Responder:  genaiClient,
		Planner:    genaiClient,
	})
	if err != nil {
		log.Fatal(err)
	}

	res, err := agent.Ask(ctx, "session-1", "What's Aaron Judge's batting average?")
	if err != nil {
		log.Fatal(err)
	}
	if !res.Terminal() {
		// res.Interrupt holds the question for the user; answer it with
		// agent.Resume(ctx, "session-1", value).
	}
	fmt.Println(res.Answer)
*/
package dugout
