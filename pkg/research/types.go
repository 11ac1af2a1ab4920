package research

import (
	"encoding/json"
	"sort"
	"time"
)

// Agent names a pipeline node, or the terminal signal.
type Agent string

const (
	AgentMarketTrends Agent = "market_trends"
	AgentCompetitor   Agent = "competitor"
	AgentConsumer     Agent = "consumer"
	AgentReport       Agent = "report"
	AgentTerminal     Agent = "end"
)

// Valid reports whether a is one of the known nodes or the terminal signal.
func (a Agent) Valid() bool {
	switch a {
	case AgentMarketTrends, AgentCompetitor, AgentConsumer, AgentReport, AgentTerminal:
		return true
	}
	return false
}

// Topic is one of the three analysis subjects.
type Topic string

const (
	TopicMarketTrends Topic = "market_trends"
	TopicCompetitor   Topic = "competitor"
	TopicConsumer     Topic = "consumer"
)

// Topics is the canonical execution order.
var Topics = []Topic{TopicMarketTrends, TopicCompetitor, TopicConsumer}

// Agent returns the pipeline node that owns the topic.
func (t Topic) Agent() Agent { return Agent(t) }

// Next returns the canonical successor node: market_trends -> competitor ->
// consumer -> report.
func (t Topic) Next() Agent {
	i := topicIndex(t)
	if i < 0 {
		return AgentTerminal
	}
	if i+1 < len(Topics) {
		return Topics[i+1].Agent()
	}
	return AgentReport
}

// Title is the human-readable heading used in status events and documents.
func (t Topic) Title() string {
	switch t {
	case TopicMarketTrends:
		return "Market Trends Analysis"
	case TopicCompetitor:
		return "Competitor Analysis"
	case TopicConsumer:
		return "Consumer Behavior Analysis"
	}
	return string(t)
}

func topicIndex(t Topic) int {
	for i, candidate := range Topics {
		if candidate == t {
			return i
		}
	}
	return -1
}

// topicOf maps a node back to its topic.
func topicOf(a Agent) (Topic, bool) {
	t := Topic(a)
	return t, topicIndex(t) >= 0
}

// SearchResult is one raw record returned by a search capability.
type SearchResult struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url,omitempty"`
}

// TopicRecord holds what one step produced for its topic.
type TopicRecord struct {
	LastUpdate time.Time      `json:"last_update"`
	Findings   string         `json:"findings"`
	Evidence   []SearchResult `json:"evidence"`
}

// Message roles.
const (
	RoleHuman = "human"
	RoleAI    = "ai"
)

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// FocusSet is the caller-selected subset of topics. An empty set means every
// topic runs.
type FocusSet map[Topic]struct{}

// NewFocusSet builds a set from topics.
func NewFocusSet(topics ...Topic) FocusSet {
	fs := make(FocusSet, len(topics))
	for _, t := range topics {
		fs[t] = struct{}{}
	}
	return fs
}

func (fs FocusSet) Empty() bool { return len(fs) == 0 }

// Contains reports literal membership.
func (fs FocusSet) Contains(t Topic) bool {
	_, ok := fs[t]
	return ok
}

// Active reports whether topic t should run under this focus set.
func (fs FocusSet) Active(t Topic) bool {
	return fs.Empty() || fs.Contains(t)
}

// Topics lists the members in canonical order.
func (fs FocusSet) Topics() []Topic {
	var out []Topic
	for _, t := range Topics {
		if fs.Contains(t) {
			out = append(out, t)
		}
	}
	return out
}

func (fs FocusSet) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(fs))
	for t := range fs {
		keys = append(keys, string(t))
	}
	sort.Strings(keys)
	return json.Marshal(keys)
}

func (fs *FocusSet) UnmarshalJSON(data []byte) error {
	var keys []Topic
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	*fs = NewFocusSet(keys...)
	return nil
}

// ResearchState is the record threaded through the pipeline. Steps never
// mutate the state they receive; they return a modified Clone.
type ResearchState struct {
	Query        string                `json:"query"`
	Messages     []Message             `json:"messages"`
	ResearchData map[Topic]TopicRecord `json:"research_data"`
	NextAgent    Agent                 `json:"next_agent"`
	FinalReport  string                `json:"final_report,omitempty"`
	FocusAreas   FocusSet              `json:"focus_areas"`
}

// NewState creates the initial state for a run. The first message carries
// prompt, which may be an enhanced version of query.
func NewState(query, prompt string, focus FocusSet) ResearchState {
	if focus == nil {
		focus = FocusSet{}
	}
	return ResearchState{
		Query:        query,
		Messages:     []Message{{Role: RoleHuman, Content: prompt}},
		ResearchData: map[Topic]TopicRecord{},
		NextAgent:    AgentMarketTrends,
		FocusAreas:   focus,
	}
}

// Clone copies the message log and the research map. FocusAreas is shared
// because it never changes during a run.
func (s ResearchState) Clone() ResearchState {
	out := s
	out.Messages = append([]Message(nil), s.Messages...)
	out.ResearchData = make(map[Topic]TopicRecord, len(s.ResearchData))
	for k, v := range s.ResearchData {
		out.ResearchData[k] = v
	}
	return out
}

// Completed reports whether the report step has run.
func (s ResearchState) Completed() bool {
	return s.NextAgent == AgentTerminal && s.FinalReport != ""
}

// lastMessage returns the most recent message content, falling back to the
// original query.
func (s ResearchState) lastMessage() string {
	if n := len(s.Messages); n > 0 {
		return s.Messages[n-1].Content
	}
	return s.Query
}

// Findings returns the findings text per topic.
func (s ResearchState) Findings() map[Topic]string {
	out := make(map[Topic]string, len(s.ResearchData))
	for t, rec := range s.ResearchData {
		out[t] = rec.Findings
	}
	return out
}

// ArtifactLocation describes where a persisted document lives.
type ArtifactLocation struct {
	Filename   string `json:"filename"`
	Path       string `json:"path"`
	AccessPath string `json:"access_path"`
}

// ResearchResult is what RunResearch hands back to the caller.
type ResearchResult struct {
	RunID            string            `json:"run_id"`
	Query            string            `json:"query"`
	FinalReport      string            `json:"final_report"`
	ReportLocation   *ArtifactLocation `json:"report_location,omitempty"`
	FindingsLocation *ArtifactLocation `json:"findings_location,omitempty"`
	PerTopicFindings map[Topic]string  `json:"per_topic_findings"`
	PersistenceError string            `json:"persistence_error,omitempty"`
}
