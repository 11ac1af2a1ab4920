package research

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

// recordingNodes returns nodes that log their visit order and behave like
// the real steps without calling any capability.
func recordingNodes(visited *[]Agent, failAt Agent, failErr error) map[Agent]Step {
	nodes := map[Agent]Step{}
	for _, topic := range Topics {
		nodes[topic.Agent()] = StepFunc(func(_ context.Context, s ResearchState) (ResearchState, error) {
			*visited = append(*visited, topic.Agent())
			if topic.Agent() == failAt {
				return s, failErr
			}
			next := s.Clone()
			if s.FocusAreas.Active(topic) {
				next.ResearchData[topic] = TopicRecord{Findings: string(topic)}
			}
			next.NextAgent = topic.Next()
			return next, nil
		})
	}
	nodes[AgentReport] = StepFunc(func(_ context.Context, s ResearchState) (ResearchState, error) {
		*visited = append(*visited, AgentReport)
		if failAt == AgentReport {
			return s, failErr
		}
		next := s.Clone()
		next.FinalReport = "report"
		next.NextAgent = AgentTerminal
		return next, nil
	})
	return nodes
}

func TestNewGraphValidation(t *testing.T) {
	var visited []Agent
	full := recordingNodes(&visited, "", nil)

	missing := recordingNodes(&visited, "", nil)
	delete(missing, AgentConsumer)

	tests := []struct {
		name    string
		entry   Agent
		nodes   map[Agent]Step
		wantErr bool
	}{
		{"Complete graph", AgentMarketTrends, full, false},
		{"Entry at a later topic", AgentConsumer, full, false},
		{"Missing node", AgentMarketTrends, missing, true},
		{"Terminal entry", AgentTerminal, full, true},
		{"Unknown entry", Agent("pricing"), full, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGraph(tt.entry, tt.nodes)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewGraph() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && g.Entry() != tt.entry {
				t.Errorf("Entry() = %q, want %q", g.Entry(), tt.entry)
			}
		})
	}
}

func TestGraphVisitOrder(t *testing.T) {
	tests := []struct {
		name  string
		entry Agent
		focus FocusSet
		want  []Agent
	}{
		{
			name:  "Empty focus visits every node",
			entry: AgentMarketTrends,
			want:  []Agent{AgentMarketTrends, AgentCompetitor, AgentConsumer, AgentReport},
		},
		{
			name:  "Focused entry skips excluded nodes entirely",
			entry: AgentConsumer,
			focus: NewFocusSet(TopicConsumer),
			want:  []Agent{AgentConsumer, AgentReport},
		},
		{
			name:  "Routing jumps over an excluded middle topic",
			entry: AgentMarketTrends,
			focus: NewFocusSet(TopicMarketTrends, TopicConsumer),
			want:  []Agent{AgentMarketTrends, AgentConsumer, AgentReport},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var visited []Agent
			g, err := NewGraph(tt.entry, recordingNodes(&visited, "", nil))
			if err != nil {
				t.Fatalf("NewGraph() error = %v", err)
			}
			final, err := g.Run(context.Background(), NewState("q", "q", tt.focus))
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if !reflect.DeepEqual(visited, tt.want) {
				t.Errorf("visited = %v, want %v", visited, tt.want)
			}
			if !final.Completed() {
				t.Errorf("final state not completed")
			}
		})
	}
}

func TestGraphStreamYieldsEveryStep(t *testing.T) {
	var visited []Agent
	g, err := NewGraph(AgentMarketTrends, recordingNodes(&visited, "", nil))
	if err != nil {
		t.Fatalf("NewGraph() error = %v", err)
	}

	var nexts []Agent
	for state, err := range g.Stream(context.Background(), NewState("q", "q", nil)) {
		if err != nil {
			t.Fatalf("Stream() error = %v", err)
		}
		nexts = append(nexts, state.NextAgent)
	}
	want := []Agent{AgentCompetitor, AgentConsumer, AgentReport, AgentTerminal}
	if !reflect.DeepEqual(nexts, want) {
		t.Errorf("NextAgent sequence = %v, want %v", nexts, want)
	}
}

func TestGraphStreamStopsWhenCallerBreaks(t *testing.T) {
	var visited []Agent
	g, err := NewGraph(AgentMarketTrends, recordingNodes(&visited, "", nil))
	if err != nil {
		t.Fatalf("NewGraph() error = %v", err)
	}
	for range g.Stream(context.Background(), NewState("q", "q", nil)) {
		break
	}
	if len(visited) != 1 {
		t.Errorf("visited = %v, want only the entry node", visited)
	}
}

func TestGraphStreamFailureYieldsCommittedState(t *testing.T) {
	boom := errors.New("boom")
	var visited []Agent
	g, err := NewGraph(AgentMarketTrends, recordingNodes(&visited, AgentConsumer, boom))
	if err != nil {
		t.Fatalf("NewGraph() error = %v", err)
	}

	final, err := g.Run(context.Background(), NewState("q", "q", nil))
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want %v", err, boom)
	}
	if final.NextAgent != AgentConsumer {
		t.Errorf("NextAgent = %q, want the failing node %q", final.NextAgent, AgentConsumer)
	}
	if len(final.ResearchData) != 2 {
		t.Errorf("ResearchData = %v, want the two committed topics", final.ResearchData)
	}
	if _, ok := final.ResearchData[TopicConsumer]; ok {
		t.Errorf("failing topic committed")
	}
	if visited[len(visited)-1] == AgentReport {
		t.Errorf("report ran after a failure")
	}
}

func TestGraphStreamHonoursCancellation(t *testing.T) {
	var visited []Agent
	g, err := NewGraph(AgentMarketTrends, recordingNodes(&visited, "", nil))
	if err != nil {
		t.Fatalf("NewGraph() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = g.Run(ctx, NewState("q", "q", nil))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if len(visited) != 0 {
		t.Errorf("visited = %v, want no nodes", visited)
	}
}

func TestGraphRoutesReportToTerminal(t *testing.T) {
	var visited []Agent
	nodes := recordingNodes(&visited, "", nil)
	// A report node that asks to loop back.
	nodes[AgentReport] = StepFunc(func(_ context.Context, s ResearchState) (ResearchState, error) {
		next := s.Clone()
		next.NextAgent = AgentMarketTrends
		return next, nil
	})
	g, err := NewGraph(AgentMarketTrends, nodes)
	if err != nil {
		t.Fatalf("NewGraph() error = %v", err)
	}

	final, err := g.Run(context.Background(), NewState("q", "q", nil))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// Routing after the report always resolves to terminal.
	if final.NextAgent != AgentTerminal || final.Completed() {
		t.Errorf("final = next %q completed %v, want terminal without report", final.NextAgent, final.Completed())
	}
}
