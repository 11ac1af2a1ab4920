package research

// ShouldContinue decides which node runs after last, given the static focus
// set. It depends on nothing else.
//
// The report node and the terminal signal both route to AgentTerminal, as does
// any node outside the canonical order. With an empty focus set the canonical
// successor is returned. Otherwise the topics after last are walked in order
// and the first focused one wins; if none is focused the report runs.
func ShouldContinue(last Agent, focus FocusSet) Agent {
	if last == AgentTerminal || last == AgentReport {
		return AgentTerminal
	}
	t, ok := topicOf(last)
	if !ok {
		return AgentTerminal
	}
	if focus.Empty() {
		return t.Next()
	}
	for _, candidate := range Topics[topicIndex(t)+1:] {
		if focus.Contains(candidate) {
			return candidate.Agent()
		}
	}
	return AgentReport
}

// EntryFor picks the first node to run. With a restricted focus set the first
// focused topic is chosen so the pipeline does not spend a no-op pass on an
// excluded topic.
func EntryFor(focus FocusSet) Agent {
	if topics := focus.Topics(); len(topics) > 0 {
		return topics[0].Agent()
	}
	return AgentMarketTrends
}
