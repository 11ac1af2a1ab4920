package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/mikeboe/market-research/pkg/archive"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type StartResearchArgs struct {
	Query      string   `json:"query" jsonschema:"the market to research, e.g. 'European e-bike market'"`
	FocusAreas []string `json:"focus_areas,omitempty" jsonschema:"subset of Market Trends, Competitor Analysis, Consumer Behavior; empty runs all"`
	Depth      string   `json:"depth,omitempty" jsonschema:"Basic, Detailed or Comprehensive"`
}

type GetResearchArgs struct {
	JobID string `json:"job_id" jsonschema:"id returned by start_research"`
}

// JobSummary is the MCP view of a job.
type JobSummary struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	Progress string `json:"progress,omitempty"`
	Report   string `json:"report,omitempty"`
	Error    string `json:"error,omitempty"`
}

type SearchFindingsArgs struct {
	Query string `json:"query" jsonschema:"what to look for in earlier research"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of results, default 5"`
	Topic string `json:"topic,omitempty" jsonschema:"market_trends, competitor or consumer"`
	RunID string `json:"run_id,omitempty" jsonschema:"restrict to one research run"`
}

type SearchFindingsResult struct {
	Results []archive.Hit `json:"results"`
}

func summarize(job *Job) JobSummary {
	out := JobSummary{JobID: job.ID.String(), Status: job.Status}
	if job.Progress != nil {
		out.Progress = *job.Progress
	}
	if job.Report != nil {
		out.Report = *job.Report
	}
	if job.Error != nil {
		out.Error = *job.Error
	}
	return out
}

// NewMCPServer exposes the job service as MCP tools.
func NewMCPServer(svc *Service) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "market-research-mcp",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "start_research",
		Description: "Start a market research run in the background and return its job id.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args StartResearchArgs) (*mcp.CallToolResult, JobSummary, error) {
		job, err := svc.CreateJob(ctx, CreateJobRequest{
			Query:      args.Query,
			FocusAreas: args.FocusAreas,
			Depth:      args.Depth,
		})
		if err != nil {
			return nil, JobSummary{}, err
		}
		return nil, summarize(job), nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_research",
		Description: "Get the status, latest progress message and final report of a research job.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args GetResearchArgs) (*mcp.CallToolResult, JobSummary, error) {
		id, err := uuid.Parse(args.JobID)
		if err != nil {
			return nil, JobSummary{}, fmt.Errorf("invalid job id %q", args.JobID)
		}
		job, err := svc.GetJob(ctx, id)
		if err != nil {
			return nil, JobSummary{}, err
		}
		return nil, summarize(job), nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_findings",
		Description: "Semantic search over the findings and evidence of earlier research runs.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args SearchFindingsArgs) (*mcp.CallToolResult, SearchFindingsResult, error) {
		hits, err := svc.SearchFindings(ctx, args.Query, args.TopK, findingsFilter(args))
		if err != nil {
			return nil, SearchFindingsResult{}, err
		}
		if hits == nil {
			hits = []archive.Hit{}
		}
		return nil, SearchFindingsResult{Results: hits}, nil
	})

	return server
}

func findingsFilter(args SearchFindingsArgs) map[string]any {
	filter := map[string]any{}
	if args.Topic != "" {
		filter["topic"] = args.Topic
	}
	if args.RunID != "" {
		filter["run_id"] = args.RunID
	}
	return filter
}

// NewMCPHandler serves NewMCPServer over streamable HTTP.
func NewMCPHandler(svc *Service) http.Handler {
	server := NewMCPServer(svc)
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
}
