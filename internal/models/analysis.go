package models

import (
	"encoding/json"
	"fmt"
)

// AnalysisIDPrefix namespaces keyword analysis documents
const AnalysisIDPrefix = "keyword_analysis:"

// KeywordAnalysis is the pre-aggregated keyword summary produced by the analysis job
type KeywordAnalysis struct {
	ID            string          `json:"_id"`
	Rev           string          `json:"_rev,omitempty"`
	TotalTweets   int             `json:"total_tweets"`
	RecentTweets  int             `json:"recent_tweets"`
	AnalysisDate  Timestamp       `json:"analysis_date"`
	DaysAnalyzed  int             `json:"days_analyzed"`
	TopKeywords   []TermCount     `json:"top_keywords"`
	TopHashtags   []TermCount     `json:"top_hashtags"`
	TopMentions   []TermCount     `json:"top_mentions"`
	KeywordTrends KeywordTrends   `json:"keyword_trends"`
	Raw           json.RawMessage `json:"-"` // full document as stored
}

// KeywordTrends breaks keyword counts down by category, hour of day and engagement
type KeywordTrends struct {
	Categories map[string]map[string]int        `json:"categories"`
	Hourly     map[int]map[string]int           `json:"hourly"`
	Engagement map[string]EngagementAccumulator `json:"engagement"`
}

// EngagementAccumulator sums engagement over the posts mentioning a keyword
type EngagementAccumulator struct {
	Total float64  `json:"total"`
	Count int      `json:"count"`
	Avg   *float64 `json:"avg,omitempty"`
}

// Average returns the precomputed average, or total/count when absent
func (e EngagementAccumulator) Average() float64 {
	if e.Avg != nil {
		return *e.Avg
	}
	if e.Count == 0 {
		return 0
	}
	return e.Total / float64(e.Count)
}

// EngagementRank is one row of the engagement ranking
type EngagementRank struct {
	Keyword       string  `json:"keyword"`
	AvgEngagement float64 `json:"avg_engagement"`
	Count         int     `json:"count"`
}

// TermCount is a ranked (term, count) pair, stored as a two element array
type TermCount struct {
	Term  string
	Count int
}

func (tc *TermCount) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("term count must be an array: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("term count must have 2 elements, got %d", len(pair))
	}

	if err := json.Unmarshal(pair[0], &tc.Term); err != nil {
		return fmt.Errorf("invalid term: %w", err)
	}

	var count float64
	if err := json.Unmarshal(pair[1], &count); err != nil {
		return fmt.Errorf("invalid count for %q: %w", tc.Term, err)
	}
	tc.Count = int(count)

	return nil
}

func (tc TermCount) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{tc.Term, tc.Count})
}
