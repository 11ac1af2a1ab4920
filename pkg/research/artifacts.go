package research

import (
	"fmt"
	"strings"
	"time"
)

const (
	reportPrefix   = "market_research_report_"
	findingsPrefix = "intermediate_findings_"
	stampLayout    = "20060102_150405"
	headerLayout   = "2006-01-02 15:04:05"
)

// ReportFilename returns market_research_report_<YYYYMMDD_HHMMSS>.txt.
func ReportFilename(t time.Time) string {
	return reportPrefix + t.Format(stampLayout) + ".txt"
}

// FindingsFilename returns intermediate_findings_<YYYYMMDD_HHMMSS>.txt.
func FindingsFilename(t time.Time) string {
	return findingsPrefix + t.Format(stampLayout) + ".txt"
}

// FormatArtifact renders the fixed header block followed by body.
func FormatArtifact(title, query, body string, t time.Time) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Generated on: %s\n", t.Format(headerLayout))
	fmt.Fprintf(&b, "Query: %s\n", query)
	b.WriteString(strings.Repeat("=", 50))
	b.WriteString("\n\n")
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}

// FindingsDocument concatenates the committed findings in canonical order.
func FindingsDocument(data map[Topic]TopicRecord) string {
	var b strings.Builder
	for _, t := range Topics {
		rec, ok := data[t]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "### %s\n\n%s\n\n---\n\n", t.Title(), strings.TrimSpace(rec.Findings))
	}
	return b.String()
}
