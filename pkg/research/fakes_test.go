package research

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

var fixedNow = time.Date(2026, 10, 19, 14, 30, 5, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func roleName(role string) string {
	line, _, _ := strings.Cut(role, "\n")
	line = strings.TrimPrefix(line, "You are the ")
	return strings.TrimSuffix(line, ".")
}

// fakeReasoner answers with strings derived from the role so that tests can
// tell the steps apart.
type fakeReasoner struct {
	mu         sync.Mutex
	queryCalls int
	synthCalls int
	queryErr   error
	synthErr   map[string]error
	report     string
	prompts    []string
}

func (f *fakeReasoner) GenerateQueries(_ context.Context, role, _ string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryCalls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	name := roleName(role)
	return []string{name + " query 1", name + " query 2"}, nil
}

func (f *fakeReasoner) Synthesize(_ context.Context, role, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synthCalls++
	f.prompts = append(f.prompts, content)
	name := roleName(role)
	if err := f.synthErr[name]; err != nil {
		return "", err
	}
	if role == ReportRole {
		if f.report != "" {
			return f.report, nil
		}
		return "Final synthesized market research report.", nil
	}
	return "findings from " + name, nil
}

func (f *fakeReasoner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queryCalls + f.synthCalls
}

// fakeSearcher returns one result per query and fails for queries that
// contain failOn.
type fakeSearcher struct {
	mu      sync.Mutex
	calls   int
	queries []string
	failOn  string
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, q string) ([]SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.queries = append(f.queries, q)
	if f.failOn != "" && strings.Contains(q, f.failOn) {
		return nil, f.err
	}
	return []SearchResult{{Title: "Result for " + q, Content: "content for " + q}}, nil
}

// memStorage keeps files in memory and refuses to overwrite them.
type memStorage struct {
	mu      sync.Mutex
	files   map[string]string
	saveErr error
	saves   int
}

func newMemStorage() *memStorage { return &memStorage{files: map[string]string{}} }

func (m *memStorage) Save(_ context.Context, content, filename string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return "", m.saveErr
	}
	if _, ok := m.files[filename]; ok {
		return "", fmt.Errorf("%s already exists", filename)
	}
	m.files[filename] = content
	return "mem/" + filename, nil
}

func (m *memStorage) URLFor(_ context.Context, filename string) (string, error) {
	return "mem://" + filename, nil
}

func (m *memStorage) Exists(_ context.Context, filename string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[filename]
	return ok, nil
}

// statusLog records status messages.
type statusLog struct {
	mu       sync.Mutex
	messages []string
}

func (s *statusLog) record(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

func (s *statusLog) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}
