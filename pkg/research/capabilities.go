package research

import "context"

// Reasoner is the language-model capability used by the steps.
type Reasoner interface {
	// GenerateQueries returns a short ordered list of search queries for the
	// role, given the latest conversation context.
	GenerateQueries(ctx context.Context, role, contextText string) ([]string, error)
	// Synthesize turns the supplied content into prose for the role.
	Synthesize(ctx context.Context, role, content string) (string, error)
}

// Searcher gathers evidence for a single query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// Storage persists finished documents.
type Storage interface {
	Save(ctx context.Context, content, filename string) (string, error)
	URLFor(ctx context.Context, filename string) (string, error)
}

// existenceChecker is implemented by storages that can tell whether a filename
// is taken.
type existenceChecker interface {
	Exists(ctx context.Context, filename string) (bool, error)
}

// FindingsIndexer archives the per-topic findings of a finished run.
type FindingsIndexer interface {
	IndexFindings(ctx context.Context, runID, query string, data map[Topic]TopicRecord) error
}

// StatusFunc receives human-readable progress messages.
type StatusFunc func(message string)

func (f StatusFunc) emit(msg string) {
	if f != nil {
		f(msg)
	}
}
