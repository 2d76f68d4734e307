package engine

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dugoutlabs/dugout/pkg/domain"
	"github.com/dugoutlabs/dugout/pkg/ports"
)

// End is the terminal position. A step whose outgoing edge resolves to End
// finishes the walk.
const End = "end"

// ErrUnresolvedEdge is returned when a conditional edge resolves to a key
// with no defined successor. This is a configuration fault, never a runtime
// fallback: Compile validates totality so a correctly built graph can not
// hit it.
var ErrUnresolvedEdge = errors.New("unresolved conditional edge")

// conditional is a pure mapping from state to a successor. keys declares the
// full set of values resolve may produce; Compile checks every key has a
// target.
type conditional struct {
	resolve func(*domain.State) string
	keys    []string
	targets map[string]string
}

// Graph is a builder for a directed graph of steps. Build errors are
// collected and reported by Compile, so construction chains fluently.
type Graph struct {
	name  string
	entry string
	steps map[string]ports.Step
	edges map[string]string
	conds map[string]*conditional
	errs  []error
}

// NewGraph creates an empty graph builder.
func NewGraph(name string) *Graph {
	return &Graph{
		name:  name,
		steps: make(map[string]ports.Step),
		edges: make(map[string]string),
		conds: make(map[string]*conditional),
	}
}

// AddStep registers a step under its name.
func (g *Graph) AddStep(s ports.Step) *Graph {
	name := s.Name()
	if name == "" || name == End {
		g.errs = append(g.errs, fmt.Errorf("graph %s: invalid step name %q", g.name, name))
		return g
	}
	if _, exists := g.steps[name]; exists {
		g.errs = append(g.errs, fmt.Errorf("graph %s: duplicate step %q", g.name, name))
		return g
	}
	g.steps[name] = s
	return g
}

// SetEntry declares the entry step.
func (g *Graph) SetEntry(name string) *Graph {
	g.entry = name
	return g
}

// AddEdge declares a static edge: after from completes, to executes next.
func (g *Graph) AddEdge(from, to string) *Graph {
	if _, dup := g.edges[from]; dup {
		g.errs = append(g.errs, fmt.Errorf("graph %s: step %q already has an outgoing edge", g.name, from))
		return g
	}
	if _, dup := g.conds[from]; dup {
		g.errs = append(g.errs, fmt.Errorf("graph %s: step %q already has conditional edges", g.name, from))
		return g
	}
	g.edges[from] = to
	return g
}

// AddConditionalEdges declares a conditional dispatch after from. keys is the
// closed set of values resolve may return; targets must cover every key, and
// may not name keys outside the set. Compile rejects partial mappings so an
// execution can never stop at an undefined edge.
func (g *Graph) AddConditionalEdges(from string, resolve func(*domain.State) string, keys []string, targets map[string]string) *Graph {
	if _, dup := g.edges[from]; dup {
		g.errs = append(g.errs, fmt.Errorf("graph %s: step %q already has an outgoing edge", g.name, from))
		return g
	}
	if _, dup := g.conds[from]; dup {
		g.errs = append(g.errs, fmt.Errorf("graph %s: step %q already has conditional edges", g.name, from))
		return g
	}
	g.conds[from] = &conditional{resolve: resolve, keys: keys, targets: targets}
	return g
}

// Compile validates the graph and freezes it for execution.
func (g *Graph) Compile() (*Compiled, error) {
	errs := append([]error(nil), g.errs...)

	exists := func(name string) bool {
		_, ok := g.steps[name]
		return ok || name == End
	}

	if g.entry == "" {
		errs = append(errs, fmt.Errorf("graph %s: no entry step", g.name))
	} else if !exists(g.entry) || g.entry == End {
		errs = append(errs, fmt.Errorf("graph %s: entry step %q not registered", g.name, g.entry))
	}

	names := make([]string, 0, len(g.steps))
	for name := range g.steps {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		_, hasEdge := g.edges[name]
		_, hasCond := g.conds[name]
		if !hasEdge && !hasCond {
			errs = append(errs, fmt.Errorf("graph %s: step %q has no outgoing edge", g.name, name))
		}
	}

	for from, to := range g.edges {
		if !exists(from) || from == End {
			errs = append(errs, fmt.Errorf("graph %s: edge from unknown step %q", g.name, from))
		}
		if !exists(to) {
			errs = append(errs, fmt.Errorf("graph %s: edge %q -> unknown step %q", g.name, from, to))
		}
	}

	for from, c := range g.conds {
		if !exists(from) || from == End {
			errs = append(errs, fmt.Errorf("graph %s: conditional edges from unknown step %q", g.name, from))
		}
		if c.resolve == nil {
			errs = append(errs, fmt.Errorf("graph %s: conditional edges from %q have no resolver", g.name, from))
		}
		if len(c.keys) == 0 {
			errs = append(errs, fmt.Errorf("graph %s: conditional edges from %q declare no keys", g.name, from))
		}
		declared := make(map[string]bool, len(c.keys))
		for _, k := range c.keys {
			declared[k] = true
			target, ok := c.targets[k]
			if !ok {
				errs = append(errs, fmt.Errorf("graph %s: conditional edge from %q: key %q has no successor", g.name, from, k))
				continue
			}
			if !exists(target) {
				errs = append(errs, fmt.Errorf("graph %s: conditional edge from %q: key %q -> unknown step %q", g.name, from, k, target))
			}
		}
		for k := range c.targets {
			if !declared[k] {
				errs = append(errs, fmt.Errorf("graph %s: conditional edge from %q: target for undeclared key %q", g.name, from, k))
			}
		}
	}

	if g.entry != "" && g.entry != End && exists(g.entry) {
		reached := g.reachable()
		for _, name := range names {
			if !reached[name] {
				errs = append(errs, fmt.Errorf("graph %s: step %q is unreachable from entry %q", g.name, name, g.entry))
			}
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return &Compiled{
		name:  g.name,
		entry: g.entry,
		steps: g.steps,
		edges: g.edges,
		conds: g.conds,
	}, nil
}

// reachable walks the edge relation from the entry and reports every step
// name it can visit.
func (g *Graph) reachable() map[string]bool {
	seen := map[string]bool{g.entry: true}
	queue := []string{g.entry}
	visit := func(to string) {
		if to == End || seen[to] {
			return
		}
		if _, ok := g.steps[to]; ok {
			seen[to] = true
			queue = append(queue, to)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if to, ok := g.edges[cur]; ok {
			visit(to)
		}
		if c, ok := g.conds[cur]; ok {
			for _, to := range c.targets {
				visit(to)
			}
		}
	}
	return seen
}

// Compiled is a validated, immutable graph.
type Compiled struct {
	name  string
	entry string
	steps map[string]ports.Step
	edges map[string]string
	conds map[string]*conditional
}

// Name returns the graph name.
func (c *Compiled) Name() string { return c.name }

// Entry returns the entry step name.
func (c *Compiled) Entry() string { return c.entry }

// Step looks up a registered step.
func (c *Compiled) Step(name string) (ports.Step, bool) {
	s, ok := c.steps[name]
	return s, ok
}

// Next resolves the successor of pos given the current state. Static edges
// return their fixed successor; conditional edges resolve a key from state
// and map it through the validated target table.
func (c *Compiled) Next(pos string, st *domain.State) (string, error) {
	if to, ok := c.edges[pos]; ok {
		return to, nil
	}
	cond, ok := c.conds[pos]
	if !ok {
		return "", fmt.Errorf("graph %s: step %q has no outgoing edge", c.name, pos)
	}
	key := cond.resolve(st)
	target, ok := cond.targets[key]
	if !ok {
		return "", fmt.Errorf("graph %s: step %q key %q: %w", c.name, pos, key, ErrUnresolvedEdge)
	}
	return target, nil
}
