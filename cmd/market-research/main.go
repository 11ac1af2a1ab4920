package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/mikeboe/market-research/pkg/archive"
	"github.com/mikeboe/market-research/pkg/clients"
	"github.com/mikeboe/market-research/pkg/config"
	"github.com/mikeboe/market-research/pkg/database"
	"github.com/mikeboe/market-research/pkg/embeddings"
	"github.com/mikeboe/market-research/pkg/logging"
	"github.com/mikeboe/market-research/pkg/research"
	"github.com/mikeboe/market-research/pkg/search"
	"github.com/mikeboe/market-research/pkg/storage"
	"github.com/spf13/cobra"
)

var (
	query       string
	focusAreas  []string
	depth       string
	storageType string
	noArchive   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "market-research",
		Short: "A terminal-based market research pipeline",
		Long: `market-research analyses a market through market trends, competitor and
consumer behavior steps, then synthesizes a report and saves it with the
intermediate findings.`,
		SilenceUsage: true,
		RunE:         run,
	}

	rootCmd.Flags().StringVarP(&query, "query", "q", "", "The market research question")
	rootCmd.Flags().StringArrayVarP(&focusAreas, "focus", "f", nil, "Focus area (repeatable): Market Trends, Competitor Analysis, Consumer Behavior")
	rootCmd.Flags().StringVarP(&depth, "depth", "d", string(research.DepthDetailed), "Analysis depth: Basic, Detailed or Comprehensive")
	rootCmd.Flags().StringVar(&storageType, "storage", "", "Override STORAGE_TYPE (local, s3, postgres)")
	rootCmd.Flags().BoolVar(&noArchive, "no-archive", false, "Do not archive findings in the vector store")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	if storageType != "" {
		cfg.StorageType = storageType
	}
	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	if !cmd.Flags().Changed("query") {
		if err := prompt(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	reasoner, err := clients.NewReasonerFromConfig(ctx, cfg, logger)
	if err != nil {
		logger.Error("Error initializing reasoner", "error", err)
		return err
	}
	searcher, err := search.NewSearcher(cfg, logger)
	if err != nil {
		logger.Error("Error initializing search", "error", err)
		return err
	}

	var db *database.PostgresDB
	if cfg.DatabaseURL != "" {
		db, err = database.NewPostgresDB(ctx, cfg.DatabaseURL, database.WithMaxConns(cfg.DBMaxConns))
		if err != nil {
			logger.Error("Failed to connect to database", "error", err)
			return err
		}
		defer db.Close()
		if err := db.InitSchema(ctx); err != nil {
			logger.Error("Failed to initialize schema", "error", err)
			return err
		}
	}

	var storeDB storage.DBTX
	if db != nil {
		storeDB = db.Pool
	}
	store, err := storage.New(ctx, cfg, storeDB)
	if err != nil {
		logger.Error("Error initializing storage", "error", err)
		return err
	}

	orch := research.NewOrchestrator(reasoner, searcher, store)
	orch.Logger = logger
	orch.MaxQueries = cfg.MaxQueries
	orch.OnStatus = func(msg string) {
		fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05"), msg)
	}

	if db != nil && !noArchive {
		if arch, err := openArchive(ctx, cfg, db, logger); err != nil {
			logger.Warn("Findings archive disabled", "error", err)
		} else {
			orch.Indexer = arch
		}
	}

	result, err := orch.RunResearch(ctx, query, focusAreas, research.WithDepth(research.Depth(depth)))
	if result != nil {
		printResult(result)
	}
	if err != nil {
		var runErr *research.RunError
		if errors.As(err, &runErr) && len(runErr.Partial) > 0 {
			fmt.Printf("\nFindings completed before the failure: %s\n", strings.Join(topicNames(runErr.Partial), ", "))
		}
		logger.Error("Research failed", "error", err)
		return err
	}
	return nil
}

// prompt asks for the query, focus areas and depth on an interactive line editor.
func prompt() error {
	rl, err := readline.New("Research query> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	line, err := readLine(rl)
	if err != nil {
		return err
	}
	query = strings.TrimSpace(line)
	if query == "" {
		return errors.New("query cannot be empty")
	}

	rl.SetPrompt("Focus areas (comma separated, empty for all)> ")
	line, err = readLine(rl)
	if err != nil {
		return err
	}
	for _, part := range strings.Split(line, ",") {
		if part = strings.TrimSpace(part); part != "" {
			focusAreas = append(focusAreas, part)
		}
	}

	rl.SetPrompt(fmt.Sprintf("Depth (default %s)> ", depth))
	line, err = readLine(rl)
	if err != nil {
		return err
	}
	if line = strings.TrimSpace(line); line != "" {
		depth = line
	}
	return nil
}

func readLine(rl *readline.Instance) (string, error) {
	line, err := rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
		return "", errors.New("aborted")
	}
	return line, err
}

func openArchive(ctx context.Context, cfg *config.Config, db *database.PostgresDB, logger *slog.Logger) (*archive.Archive, error) {
	if err := db.EnsureVectorExtension(ctx); err != nil {
		return nil, err
	}
	if err := db.CreateEmbeddingsTable(ctx, cfg.FindingsCollection, embeddings.Dimension); err != nil {
		return nil, err
	}
	return archive.NewFromConfig(ctx, cfg, db.Pool, logger)
}

func printResult(result *research.ResearchResult) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println(result.FinalReport)
	fmt.Println(strings.Repeat("=", 50))
	if result.ReportLocation != nil {
		fmt.Printf("Report:   %s\n", result.ReportLocation.AccessPath)
	}
	if result.FindingsLocation != nil {
		fmt.Printf("Findings: %s\n", result.FindingsLocation.AccessPath)
	}
	if result.PersistenceError != "" {
		fmt.Printf("Outputs were not saved: %s\n", result.PersistenceError)
	}
}

func topicNames(data map[research.Topic]research.TopicRecord) []string {
	var out []string
	for t := range data {
		out = append(out, t.Title())
	}
	sort.Strings(out)
	return out
}
