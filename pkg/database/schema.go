package database

import (
	"context"
	"fmt"
)

// schema is applied in order on every start; each statement is idempotent.
var schema = []struct {
	name string
	sql  string
}{
	{"research_jobs", `
		CREATE TABLE IF NOT EXISTS research_jobs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			query TEXT NOT NULL,
			depth TEXT NOT NULL DEFAULT 'Detailed',
			focus_areas JSONB NOT NULL DEFAULT '[]',
			status TEXT NOT NULL DEFAULT 'pending',
			progress TEXT,
			run_id TEXT,
			report TEXT,
			report_location JSONB,
			findings_location JSONB,
			error TEXT,
			state JSONB,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`},
	{"research_logs", `
		CREATE TABLE IF NOT EXISTS research_logs (
			id SERIAL PRIMARY KEY,
			job_id UUID NOT NULL REFERENCES research_jobs(id) ON DELETE CASCADE,
			timestamp TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			metadata JSONB
		)`},
	// Used when STORAGE_TYPE=postgres.
	{"research_artifacts", `
		CREATE TABLE IF NOT EXISTS research_artifacts (
			id SERIAL PRIMARY KEY,
			filename TEXT NOT NULL UNIQUE,
			content TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`},
	{"idx_research_logs_job_id", "CREATE INDEX IF NOT EXISTS idx_research_logs_job_id ON research_logs(job_id)"},
	{"idx_research_jobs_created_at", "CREATE INDEX IF NOT EXISTS idx_research_jobs_created_at ON research_jobs(created_at DESC)"},
	{"idx_research_jobs_status", "CREATE INDEX IF NOT EXISTS idx_research_jobs_status ON research_jobs(status)"},
}

// InitSchema creates the job, log and artifact tables.
func (db *PostgresDB) InitSchema(ctx context.Context) error {
	for _, s := range schema {
		if _, err := db.Pool.Exec(ctx, s.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", s.name, err)
		}
	}
	return nil
}
