package splitter

import (
	"strings"
	"testing"
)

func TestRecursiveCharacterTextSplitter(t *testing.T) {
	text := strings.Repeat("Demand for heat pumps grew again. ", 40)
	chunks, err := NewRecursiveCharacterTextSplitter(200, 20).SplitText(text)
	if err != nil {
		t.Fatalf("SplitText() error = %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want several", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 200 {
			t.Errorf("chunk %d has %d characters", i, len(c))
		}
	}
}

func TestMarkdownTextSplitterKeepsContent(t *testing.T) {
	text := "## Pricing\n\nPrices fell in the second quarter.\n\n## Channels\n\nOnline share keeps rising."
	chunks, err := NewMarkdownTextSplitter(1000, 0).SplitText(text)
	if err != nil {
		t.Fatalf("SplitText() error = %v", err)
	}
	joined := strings.Join(chunks, "\n")
	for _, want := range []string{"Prices fell in the second quarter.", "Online share keeps rising."} {
		if !strings.Contains(joined, want) {
			t.Errorf("chunks %q missing %q", chunks, want)
		}
	}
}
