package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Step is one node of the pipeline.
type Step interface {
	Run(ctx context.Context, state ResearchState) (ResearchState, error)
}

// StepFunc adapts a function to Step.
type StepFunc func(ctx context.Context, state ResearchState) (ResearchState, error)

func (f StepFunc) Run(ctx context.Context, state ResearchState) (ResearchState, error) {
	return f(ctx, state)
}

// TopicStep researches one topic: formulate queries, gather evidence,
// synthesize findings.
type TopicStep struct {
	Topic      Topic
	Role       string
	Reasoner   Reasoner
	Searcher   Searcher
	Status     StatusFunc
	Logger     *slog.Logger
	MaxQueries int
	Now        func() time.Time
}

// NewTopicStep builds a step for t with its default role description.
func NewTopicStep(t Topic, reasoner Reasoner, searcher Searcher, status StatusFunc) *TopicStep {
	return &TopicStep{
		Topic:    t,
		Role:     RoleFor(t),
		Reasoner: reasoner,
		Searcher: searcher,
		Status:   status,
		Logger:   slog.Default(),
		Now:      time.Now,
	}
}

func (s *TopicStep) Run(ctx context.Context, state ResearchState) (ResearchState, error) {
	if !state.FocusAreas.Active(s.Topic) {
		next := state.Clone()
		next.NextAgent = s.Topic.Next()
		s.logger().Debug("Skipping topic outside focus areas", "topic", s.Topic)
		return next, nil
	}

	title := s.Topic.Title()
	s.Status.emit(fmt.Sprintf("Starting %s", title))
	started := time.Now()

	queries, err := s.Reasoner.GenerateQueries(ctx, s.Role, queryContext(state))
	if err != nil {
		return state, s.fail("query formulation", err)
	}
	if s.MaxQueries > 0 && len(queries) > s.MaxQueries {
		queries = queries[:s.MaxQueries]
	}
	s.logger().Info("Generated queries", "topic", s.Topic, "queries", queries)

	var evidence []SearchResult
	for _, q := range queries {
		results, err := s.Searcher.Search(ctx, q)
		if err != nil {
			return state, s.fail(fmt.Sprintf("search %q", q), err)
		}
		evidence = append(evidence, results...)
	}
	s.logger().Info("Gathered evidence", "topic", s.Topic, "queries", len(queries), "results", len(evidence))

	findings, err := s.Reasoner.Synthesize(ctx, s.Role, evidencePrompt(state.Query, evidence))
	if err != nil {
		return state, s.fail("synthesis", err)
	}

	next := state.Clone()
	next.ResearchData[s.Topic] = TopicRecord{
		LastUpdate: s.now(),
		Findings:   findings,
		Evidence:   evidence,
	}
	next.Messages = append(next.Messages, Message{Role: RoleAI, Content: findings})
	next.NextAgent = s.Topic.Next()

	s.Status.emit(fmt.Sprintf("%s complete (%.1fs)", title, time.Since(started).Seconds()))
	return next, nil
}

func (s *TopicStep) fail(phase string, err error) error {
	s.logger().Error("Step failed", "topic", s.Topic, "phase", phase, "error", err)
	return &StepError{Step: s.Topic.Agent(), Phase: phase, Err: err}
}

func (s *TopicStep) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *TopicStep) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func queryContext(state ResearchState) string {
	return fmt.Sprintf("Research request: %s\n\nLatest context:\n%s", state.Query, state.lastMessage())
}

func evidencePrompt(query string, evidence []SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research request: %s\n\nSearch results:\n", query)
	if len(evidence) == 0 {
		b.WriteString("(no search results were found)\n")
	}
	for i, r := range evidence {
		fmt.Fprintf(&b, "\n[%d] %s\n", i+1, r.Title)
		if r.URL != "" {
			fmt.Fprintf(&b, "Source: %s\n", r.URL)
		}
		b.WriteString(r.Content)
		b.WriteString("\n")
	}
	b.WriteString("\nAnalyze these results within your area of focus and summarize the key findings.")
	return b.String()
}

// ReportStep synthesizes the final document from the committed findings.
type ReportStep struct {
	Role     string
	Reasoner Reasoner
	Status   StatusFunc
	Logger   *slog.Logger
}

// NewReportStep builds the report node with its default role description.
func NewReportStep(reasoner Reasoner, status StatusFunc) *ReportStep {
	return &ReportStep{Role: ReportRole, Reasoner: reasoner, Status: status, Logger: slog.Default()}
}

func (s *ReportStep) Run(ctx context.Context, state ResearchState) (ResearchState, error) {
	var topics []Topic
	for _, t := range Topics {
		if _, ok := state.ResearchData[t]; ok && state.FocusAreas.Active(t) {
			topics = append(topics, t)
		}
	}
	if len(topics) == 0 {
		return state, fmt.Errorf("%w: no focus area produced findings for the report", ErrPipelineIncomplete)
	}

	s.Status.emit("Starting Final Report Generation")
	started := time.Now()

	prompt := reportPrompt(state, topics)
	report, err := s.Reasoner.Synthesize(ctx, s.Role, prompt)
	if err == nil && strings.TrimSpace(report) == "" {
		err = errors.New("reasoner returned an empty report")
	}
	if err != nil {
		if s.Logger != nil {
			s.Logger.Error("Report synthesis failed", "error", err)
		}
		return state, &StepError{Step: AgentReport, Phase: "synthesis", Err: err}
	}

	next := state.Clone()
	next.Messages = append(next.Messages,
		Message{Role: RoleHuman, Content: prompt},
		Message{Role: RoleAI, Content: report},
	)
	next.FinalReport = report
	next.NextAgent = AgentTerminal

	s.Status.emit(fmt.Sprintf("Final Report Generation complete (%.1fs)", time.Since(started).Seconds()))
	return next, nil
}

func reportPrompt(state ResearchState, topics []Topic) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Based on the following research findings, generate a comprehensive market research report for this request:\n%s\n", state.Query)
	for _, t := range topics {
		fmt.Fprintf(&b, "\n## %s\nRequest: %s\n\n%s\n", t.Title(), state.Query, state.ResearchData[t].Findings)
	}
	b.WriteString("\nFormat the report using markdown with clear sections and bullet points where appropriate.")
	return b.String()
}
