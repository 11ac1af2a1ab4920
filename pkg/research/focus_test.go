package research

import (
	"errors"
	"reflect"
	"testing"
)

func TestNormalizeFocusAreas(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		want   []Topic
	}{
		{"Nil", nil, nil},
		{"UI labels", []string{"Market Trends", "Competitor Analysis", "Consumer Behavior"}, []Topic{TopicMarketTrends, TopicCompetitor, TopicConsumer}},
		{"Raw keys", []string{"consumer", "market_trends"}, []Topic{TopicMarketTrends, TopicConsumer}},
		{"Mixed case and spacing", []string{"  consumer BEHAVIOUR "}, []Topic{TopicConsumer}},
		{"Unknown labels are ignored", []string{"Pricing", "competitor"}, []Topic{TopicCompetitor}},
		{"Duplicates collapse", []string{"competitor", "Competitor Analysis"}, []Topic{TopicCompetitor}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeFocusAreas(tt.labels).Topics()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeFocusAreas(%v) = %v, want %v", tt.labels, got, tt.want)
			}
		})
	}
}

func TestParseDepth(t *testing.T) {
	tests := []struct {
		in      string
		want    Depth
		wantErr bool
	}{
		{"", DepthDetailed, false},
		{"basic", DepthBasic, false},
		{"Detailed", DepthDetailed, false},
		{" COMPREHENSIVE ", DepthComprehensive, false},
		{"shallow", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDepth(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Errorf("ParseDepth(%q) error = %v, want ErrInvalidInput", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseDepth(%q) = %q, %v, want %q", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestEnhanceQuery(t *testing.T) {
	got := EnhanceQuery("EV market", DepthBasic, NewFocusSet(TopicConsumer, TopicMarketTrends))
	want := "EV market\nPlease provide a Basic analysis focusing on: Market Trends Analysis, Consumer Behavior Analysis."
	if got != want {
		t.Errorf("EnhanceQuery() = %q, want %q", got, want)
	}

	all := EnhanceQuery("EV market", DepthDetailed, nil)
	want = "EV market\nPlease provide a Detailed analysis focusing on: Market Trends Analysis, Competitor Analysis, Consumer Behavior Analysis."
	if all != want {
		t.Errorf("EnhanceQuery() = %q, want %q", all, want)
	}
}
