package research

import (
	"context"
	"fmt"
	"iter"
)

// maxGraphSteps bounds a run; a correct route visits each node at most once.
const maxGraphSteps = 16

// Graph wires the four nodes together. Every node may lead to every other node
// or to the terminal signal; the actual edge is resolved after each node by
// the routing policy.
type Graph struct {
	nodes map[Agent]Step
	entry Agent
	route func(last Agent, focus FocusSet) Agent
}

// NewGraph validates that all four nodes and the entry point are present.
func NewGraph(entry Agent, nodes map[Agent]Step) (*Graph, error) {
	for _, a := range []Agent{AgentMarketTrends, AgentCompetitor, AgentConsumer, AgentReport} {
		if nodes[a] == nil {
			return nil, fmt.Errorf("graph: missing node %q", a)
		}
	}
	if entry == AgentTerminal || nodes[entry] == nil {
		return nil, fmt.Errorf("graph: invalid entry point %q", entry)
	}
	return &Graph{nodes: nodes, entry: entry, route: ShouldContinue}, nil
}

// Entry returns the node the graph starts from.
func (g *Graph) Entry() Agent { return g.entry }

// Stream runs the nodes one at a time and yields the state after each of
// them. On failure it yields the last committed state with the error and
// stops. A caller that stops iterating ends the run between nodes.
func (g *Graph) Stream(ctx context.Context, initial ResearchState) iter.Seq2[ResearchState, error] {
	return func(yield func(ResearchState, error) bool) {
		current := initial.Clone()
		current.NextAgent = g.entry
		agent := g.entry

		for steps := 0; agent != AgentTerminal; steps++ {
			if steps >= maxGraphSteps {
				yield(current, fmt.Errorf("%w: routing did not terminate after %d steps", ErrPipelineIncomplete, steps))
				return
			}
			if err := ctx.Err(); err != nil {
				yield(current, err)
				return
			}
			node, ok := g.nodes[agent]
			if !ok {
				yield(current, fmt.Errorf("%w: no node registered for %q", ErrPipelineIncomplete, agent))
				return
			}

			next, err := node.Run(ctx, current)
			if err != nil {
				yield(current, err)
				return
			}
			if next.NextAgent != AgentTerminal {
				next.NextAgent = g.route(agent, next.FocusAreas)
			}
			current = next
			if !yield(current, nil) {
				return
			}
			agent = current.NextAgent
		}
	}
}

// Run drives Stream to completion and returns the final state.
func (g *Graph) Run(ctx context.Context, initial ResearchState) (ResearchState, error) {
	final := initial
	for state, err := range g.Stream(ctx, initial) {
		final = state
		if err != nil {
			return final, err
		}
	}
	return final, nil
}
