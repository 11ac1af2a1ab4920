package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	reportTitle   = "Market Research Report"
	findingsTitle = "Intermediate Research Findings"

	// maxStampProbes bounds the search for a free artifact timestamp.
	maxStampProbes = 60
)

// Orchestrator is the public entry point. It runs one research at a time.
type Orchestrator struct {
	Reasoner Reasoner
	Searcher Searcher
	Storage  Storage
	// Indexer, when set, archives findings after a completed run. Its
	// failures are logged and never fail the run.
	Indexer FindingsIndexer
	Logger  *slog.Logger
	// OnStatus receives every status message unchanged.
	OnStatus StatusFunc
	// OnStateUpdate receives the state after each executed node.
	OnStateUpdate func(state ResearchState)
	MaxQueries    int
	// AlwaysStartAtMarketTrends disables the focused entry point; excluded
	// topics are then skipped by the steps themselves.
	AlwaysStartAtMarketTrends bool
	Now                       func() time.Time

	mu        sync.Mutex
	lastStamp time.Time
}

// NewOrchestrator wires the three required capabilities.
func NewOrchestrator(reasoner Reasoner, searcher Searcher, storage Storage) *Orchestrator {
	return &Orchestrator{
		Reasoner: reasoner,
		Searcher: searcher,
		Storage:  storage,
		Logger:   slog.Default(),
		Now:      time.Now,
	}
}

type runOptions struct {
	depth Depth
}

// RunOption adjusts a single run.
type RunOption func(*runOptions)

// WithDepth sets the analysis depth requested in the enhanced query.
func WithDepth(d Depth) RunOption {
	return func(o *runOptions) { o.depth = d }
}

// RunResearch executes the pipeline for query and persists the report and the
// intermediate findings.
//
// When the pipeline stops early the error is a *RunError carrying the findings
// committed so far. When storage fails after a successful run the result is
// still returned, with empty locations, together with an error wrapping
// ErrPersistenceFailure.
func (o *Orchestrator) RunResearch(ctx context.Context, query string, focusAreas []string, opts ...RunOption) (*ResearchResult, error) {
	ro := runOptions{depth: DepthDetailed}
	for _, opt := range opts {
		opt(&ro)
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, o.fail(fmt.Errorf("%w: query cannot be empty", ErrInvalidInput))
	}
	depth, err := ParseDepth(string(ro.depth))
	if err != nil {
		return nil, o.fail(err)
	}
	if o.Reasoner == nil || o.Searcher == nil || o.Storage == nil {
		return nil, o.fail(fmt.Errorf("orchestrator misconfigured: reasoner, searcher and storage are required"))
	}

	focus := NormalizeFocusAreas(focusAreas)
	runID := uuid.NewString()
	logger := o.logger().With("run_id", runID)

	o.status("Starting market research workflow")
	logger.Info("Starting research", "query", query, "focus", focus.Topics(), "depth", depth)

	graph, err := o.buildGraph(focus, logger)
	if err != nil {
		return nil, o.fail(err)
	}

	final := NewState(query, EnhanceQuery(query, depth, focus), focus)
	for state, err := range graph.Stream(ctx, final) {
		final = state
		if err != nil {
			logger.Error("Research pipeline failed", "stage", state.NextAgent, "error", err)
			return nil, o.fail(&RunError{Stage: state.NextAgent, Partial: state.ResearchData, Err: err})
		}
		if o.OnStateUpdate != nil {
			o.OnStateUpdate(state)
		}
	}
	if !final.Completed() {
		return nil, o.fail(&RunError{
			Stage:   final.NextAgent,
			Partial: final.ResearchData,
			Err:     fmt.Errorf("%w: the report step did not produce a final report", ErrPipelineIncomplete),
		})
	}

	result := &ResearchResult{
		RunID:            runID,
		Query:            query,
		FinalReport:      final.FinalReport,
		PerTopicFindings: final.Findings(),
	}

	if o.Indexer != nil {
		if err := o.Indexer.IndexFindings(ctx, runID, query, final.ResearchData); err != nil {
			logger.Warn("Failed to archive findings", "error", err)
		}
	}

	o.status("Saving research outputs")
	if err := o.persist(ctx, result, final); err != nil {
		result.ReportLocation = nil
		result.FindingsLocation = nil
		result.PersistenceError = err.Error()
		logger.Error("Failed to persist research outputs", "error", err)
		return result, o.fail(fmt.Errorf("%w: %w", ErrPersistenceFailure, err))
	}
	o.status("Research outputs saved")

	logger.Info("Research complete", "report", result.ReportLocation.Filename, "topics", len(result.PerTopicFindings))
	o.status("Research workflow complete")
	return result, nil
}

func (o *Orchestrator) buildGraph(focus FocusSet, logger *slog.Logger) (*Graph, error) {
	status := StatusFunc(o.status)
	nodes := make(map[Agent]Step, len(Topics)+1)
	for _, t := range Topics {
		step := NewTopicStep(t, o.Reasoner, o.Searcher, status)
		step.Logger = logger
		step.MaxQueries = o.MaxQueries
		step.Now = o.now
		nodes[t.Agent()] = step
	}
	report := NewReportStep(o.Reasoner, status)
	report.Logger = logger
	nodes[AgentReport] = report

	entry := EntryFor(focus)
	if o.AlwaysStartAtMarketTrends {
		entry = AgentMarketTrends
	}
	return NewGraph(entry, nodes)
}

func (o *Orchestrator) persist(ctx context.Context, result *ResearchResult, final ResearchState) error {
	stamp, err := o.nextStamp(ctx)
	if err != nil {
		return err
	}

	report := FormatArtifact(reportTitle, final.Query, final.FinalReport, stamp)
	if result.ReportLocation, err = o.save(ctx, report, ReportFilename(stamp)); err != nil {
		return err
	}

	findings := FormatArtifact(findingsTitle, final.Query, FindingsDocument(final.ResearchData), stamp)
	if result.FindingsLocation, err = o.save(ctx, findings, FindingsFilename(stamp)); err != nil {
		return err
	}
	return nil
}

func (o *Orchestrator) save(ctx context.Context, content, filename string) (*ArtifactLocation, error) {
	path, err := o.Storage.Save(ctx, content, filename)
	if err != nil {
		return nil, fmt.Errorf("save %s: %w", filename, err)
	}
	access, err := o.Storage.URLFor(ctx, filename)
	if err != nil {
		return nil, fmt.Errorf("resolve url for %s: %w", filename, err)
	}
	return &ArtifactLocation{Filename: filename, Path: path, AccessPath: access}, nil
}

// nextStamp returns a second-resolution timestamp that is later than any
// previously used by this orchestrator and, when the storage can tell, not
// taken by an earlier run.
func (o *Orchestrator) nextStamp(ctx context.Context) (time.Time, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	stamp := o.now().Truncate(time.Second)
	if !stamp.After(o.lastStamp) {
		stamp = o.lastStamp.Add(time.Second)
	}

	if checker, ok := o.Storage.(existenceChecker); ok {
		for i := 0; i < maxStampProbes; i++ {
			taken, err := stampTaken(ctx, checker, stamp)
			if err != nil {
				return time.Time{}, fmt.Errorf("check existing artifacts: %w", err)
			}
			if !taken {
				break
			}
			stamp = stamp.Add(time.Second)
		}
	}

	o.lastStamp = stamp
	return stamp, nil
}

func stampTaken(ctx context.Context, checker existenceChecker, stamp time.Time) (bool, error) {
	for _, name := range []string{ReportFilename(stamp), FindingsFilename(stamp)} {
		exists, err := checker.Exists(ctx, name)
		if err != nil || exists {
			return exists, err
		}
	}
	return false, nil
}

func (o *Orchestrator) status(msg string) {
	o.logger().Info("Status", "message", msg)
	o.OnStatus.emit(msg)
}

// fail reports err on the status channel once and returns it.
func (o *Orchestrator) fail(err error) error {
	o.status("Research workflow failed: " + err.Error())
	return err
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o *Orchestrator) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}
