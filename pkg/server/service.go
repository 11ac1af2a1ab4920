package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mikeboe/market-research/pkg/archive"
	"github.com/mikeboe/market-research/pkg/logging"
	"github.com/mikeboe/market-research/pkg/research"
	"github.com/mikeboe/market-research/pkg/storage"
)

// Job statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var ErrJobNotFound = errors.New("job not found")

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// DB is the subset of pgxpool.Pool the service uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// OrchestratorFactory builds a fresh orchestrator for one job. Orchestrators
// run one research at a time, so jobs never share one.
type OrchestratorFactory func(logger *slog.Logger) *research.Orchestrator

type Service struct {
	DB              DB
	NewOrchestrator OrchestratorFactory
	Store           storage.Store
	Archive         *archive.Archive
	Logger          *slog.Logger

	workers sync.WaitGroup
}

func NewService(db DB, newOrchestrator OrchestratorFactory, store storage.Store, arch *archive.Archive, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		DB:              db,
		NewOrchestrator: newOrchestrator,
		Store:           store,
		Archive:         arch,
		Logger:          logger,
	}
}

type Job struct {
	ID               uuid.UUID       `json:"id"`
	Query            string          `json:"query"`
	Depth            string          `json:"depth"`
	FocusAreas       []string        `json:"focus_areas"`
	Status           string          `json:"status"`
	Progress         *string         `json:"progress,omitempty"`
	RunID            *string         `json:"run_id,omitempty"`
	Report           *string         `json:"report,omitempty"`
	ReportLocation   json.RawMessage `json:"report_location,omitempty"`
	FindingsLocation json.RawMessage `json:"findings_location,omitempty"`
	Error            *string         `json:"error,omitempty"`
	State            json.RawMessage `json:"state,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type CreateJobRequest struct {
	Query      string   `json:"query"`
	FocusAreas []string `json:"focus_areas"`
	Depth      string   `json:"depth"`
}

// Validate normalizes the request in place.
func (r *CreateJobRequest) Validate() (research.Depth, error) {
	r.Query = strings.TrimSpace(r.Query)
	if r.Query == "" {
		return "", fmt.Errorf("%w: query cannot be empty", research.ErrInvalidInput)
	}
	if r.FocusAreas == nil {
		r.FocusAreas = []string{}
	}
	depth, err := research.ParseDepth(r.Depth)
	if err != nil {
		return "", err
	}
	r.Depth = string(depth)
	return depth, nil
}

var jobColumns = []string{
	"id", "query", "depth", "focus_areas", "status", "progress", "run_id", "report",
	"report_location", "findings_location", "error", "created_at", "updated_at",
}

func scanJob(row pgx.Row, extra ...any) (*Job, error) {
	job := &Job{}
	var focus []byte
	dest := []any{
		&job.ID, &job.Query, &job.Depth, &focus, &job.Status, &job.Progress, &job.RunID, &job.Report,
		&job.ReportLocation, &job.FindingsLocation, &job.Error, &job.CreatedAt, &job.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if len(focus) > 0 {
		if err := json.Unmarshal(focus, &job.FocusAreas); err != nil {
			return nil, fmt.Errorf("decode focus areas: %w", err)
		}
	}
	return job, nil
}

func (s *Service) CreateJob(ctx context.Context, req CreateJobRequest) (*Job, error) {
	depth, err := req.Validate()
	if err != nil {
		return nil, err
	}
	focusJSON, err := json.Marshal(req.FocusAreas)
	if err != nil {
		return nil, fmt.Errorf("encode focus areas: %w", err)
	}

	query, args, err := psql.Insert("research_jobs").
		Columns("id", "query", "depth", "focus_areas", "status").
		Values(uuid.New(), req.Query, req.Depth, focusJSON, StatusPending).
		Suffix("RETURNING " + strings.Join(jobColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, err
	}

	job, err := scanJob(s.DB.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		s.runWorker(job.ID, req, depth)
	}()

	return job, nil
}

func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	query, args, err := psql.Select(jobColumns...).Column("state").
		From("research_jobs").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var state []byte
	job, err := scanJob(s.DB.QueryRow(ctx, query, args...), &state)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	job.State = state
	return job, nil
}

// ListJobs returns the newest jobs first. An empty status lists every job.
func (s *Service) ListJobs(ctx context.Context, status string, limit uint64) ([]Job, error) {
	if limit == 0 || limit > 200 {
		limit = 50
	}
	b := psql.Select(jobColumns...).
		From("research_jobs").
		OrderBy("created_at DESC").
		Limit(limit)
	if status != "" {
		b = b.Where(sq.Eq{"status": status})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			s.Logger.Warn("Skipping unreadable job row", "error", err)
			continue
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

type LogEntry struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

func (s *Service) GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]LogEntry, error) {
	query, args, err := psql.Select("id", "timestamp", "level", "message", "metadata").
		From("research_logs").
		Where(sq.Eq{"job_id": jobID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var l LogEntry
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.Metadata); err != nil {
			continue
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// JobFindings returns the archived findings of a completed job.
func (s *Service) JobFindings(ctx context.Context, id uuid.UUID) ([]archive.Hit, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.RunID == nil {
		return []archive.Hit{}, nil
	}
	return s.Archive.RunFindings(ctx, *job.RunID)
}

func (s *Service) SearchFindings(ctx context.Context, query string, topK int, filter map[string]any) ([]archive.Hit, error) {
	return s.Archive.Search(ctx, query, topK, filter)
}

// ReadArtifact returns a stored report or findings document.
func (s *Service) ReadArtifact(ctx context.Context, filename string) (string, error) {
	if s.Store == nil {
		return "", storage.ErrNotFound
	}
	return s.Store.Read(ctx, filename)
}

// Wait blocks until every running job has finished.
func (s *Service) Wait() {
	s.workers.Wait()
}

func (s *Service) runWorker(jobID uuid.UUID, req CreateJobRequest, depth research.Depth) {
	ctx := context.Background()
	logger := slog.New(logging.Tee{
		s.Logger.Handler(),
		logging.NewDBHandler(s.DB, jobID),
	}).With("job_id", jobID.String())

	s.exec(ctx, psql.Update("research_jobs").
		Set("status", StatusRunning).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": jobID}))

	orch := s.NewOrchestrator(logger)
	orch.Logger = logger
	orch.OnStatus = func(msg string) {
		s.exec(ctx, psql.Update("research_jobs").
			Set("progress", msg).
			Set("updated_at", sq.Expr("NOW()")).
			Where(sq.Eq{"id": jobID}))
	}
	orch.OnStateUpdate = func(state research.ResearchState) {
		stateJSON, err := json.Marshal(state)
		if err != nil {
			logger.Error("Failed to marshal state", "error", err)
			return
		}
		s.exec(ctx, psql.Update("research_jobs").
			Set("state", stateJSON).
			Set("updated_at", sq.Expr("NOW()")).
			Where(sq.Eq{"id": jobID}))
	}

	result, err := orch.RunResearch(ctx, req.Query, req.FocusAreas, research.WithDepth(depth))
	if result == nil {
		s.failJob(ctx, logger, jobID, err)
		return
	}

	update := psql.Update("research_jobs").
		Set("status", StatusCompleted).
		Set("run_id", result.RunID).
		Set("report", result.FinalReport).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": jobID})
	if result.ReportLocation != nil {
		update = update.Set("report_location", mustJSON(result.ReportLocation))
	}
	if result.FindingsLocation != nil {
		update = update.Set("findings_location", mustJSON(result.FindingsLocation))
	}
	if err != nil {
		// The report survived but could not be stored.
		update = update.Set("error", err.Error())
	}
	s.exec(ctx, update)
}

func (s *Service) failJob(ctx context.Context, logger *slog.Logger, jobID uuid.UUID, cause error) {
	reason := "research failed"
	if cause != nil {
		reason = cause.Error()
	}
	logger.Error("Research job failed", "error", reason)

	s.exec(ctx, psql.Update("research_jobs").
		Set("status", StatusFailed).
		Set("error", reason).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": jobID}))
}

func (s *Service) exec(ctx context.Context, b sq.UpdateBuilder) {
	query, args, err := b.ToSql()
	if err == nil {
		_, err = s.DB.Exec(ctx, query, args...)
	}
	if err != nil {
		// Only the console sees this; the DB handler would fail the same way.
		s.Logger.Error("Failed to update job", "error", err)
	}
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return b
}
