package research

import (
	"fmt"
	"strings"
)

// focusLabels maps caller-facing labels (lower-cased) to topic keys.
var focusLabels = map[string]Topic{
	"market trends":       TopicMarketTrends,
	"market_trends":       TopicMarketTrends,
	"competitor analysis": TopicCompetitor,
	"competitor":          TopicCompetitor,
	"consumer behavior":   TopicConsumer,
	"consumer behaviour":  TopicConsumer,
	"consumer":            TopicConsumer,
}

// NormalizeFocusAreas converts UI labels such as "Competitor Analysis" to topic
// keys. Unrecognised labels are dropped so that callers can send extra labels
// without breaking a run.
func NormalizeFocusAreas(labels []string) FocusSet {
	fs := FocusSet{}
	for _, label := range labels {
		if t, ok := focusLabels[strings.ToLower(strings.TrimSpace(label))]; ok {
			fs[t] = struct{}{}
		}
	}
	return fs
}

// Depth is the requested level of detail.
type Depth string

const (
	DepthBasic         Depth = "Basic"
	DepthDetailed      Depth = "Detailed"
	DepthComprehensive Depth = "Comprehensive"
)

// ParseDepth accepts the three depth names case-insensitively. An empty string
// yields DepthDetailed.
func ParseDepth(s string) (Depth, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DepthDetailed, nil
	case "basic":
		return DepthBasic, nil
	case "detailed":
		return DepthDetailed, nil
	case "comprehensive":
		return DepthComprehensive, nil
	}
	return "", fmt.Errorf("%w: unknown analysis depth %q", ErrInvalidInput, s)
}

// EnhanceQuery builds the first message of a run from the raw query.
func EnhanceQuery(query string, depth Depth, focus FocusSet) string {
	var areas []string
	if focus.Empty() {
		for _, t := range Topics {
			areas = append(areas, t.Title())
		}
	} else {
		for _, t := range focus.Topics() {
			areas = append(areas, t.Title())
		}
	}
	return fmt.Sprintf("%s\nPlease provide a %s analysis focusing on: %s.",
		query, depth, strings.Join(areas, ", "))
}
