package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePost = `{
	"_id": "twitter:1790000000000000001",
	"_rev": "3-abc",
	"platform": "twitter",
	"url": null,
	"text_content": "오늘의 밈 #meme #MemeWeek",
	"author_id": "42",
	"author_name": "Trend Watcher",
	"author_username": "trendwatch",
	"author_profile_image_url": "https://pbs.twimg.com/a.jpg",
	"created_at": "2024-02-01T09:15:00Z",
	"collected_at": "2024-02-01T10:00:00.123456+00:00",
	"media": [{"type": "photo", "url": "https://pbs.twimg.com/m.jpg", "thumbnail_url": null}],
	"hashtags": ["meme", "MemeWeek"],
	"mentions": ["someone"],
	"engagement_metrics": {"likes_count": 10, "comments_count": 2, "shares_count": 1, "views_count": 500, "quote_count": 0},
	"location": null,
	"language": "ko",
	"is_sensitive_content": false,
	"content_categories": ["meme", "sports"],
	"raw_data": {"data": {"id": "1790000000000000001"}, "includes": {"users": [1, 2]}}
}`

func TestPost_Decode(t *testing.T) {
	var post Post
	require.NoError(t, json.Unmarshal([]byte(samplePost), &post))

	assert.Equal(t, "twitter:1790000000000000001", post.ID)
	assert.Equal(t, "3-abc", post.Rev)
	assert.Nil(t, post.URL)
	assert.Equal(t, "trendwatch", post.Author().Username)
	require.NotNil(t, post.Author().ProfileImageURL)
	assert.Equal(t, []string{"meme", "MemeWeek"}, post.Hashtags)
	assert.Equal(t, 500, post.EngagementMetrics.ViewsCount)
	require.NotNil(t, post.EngagementMetrics.QuoteCount)
	assert.Equal(t, 0, *post.EngagementMetrics.QuoteCount)
	assert.Equal(t, time.Date(2024, 2, 1, 10, 0, 0, 123456000, time.UTC), post.CollectedAt.UTC())
	assert.JSONEq(t, `{"data": {"id": "1790000000000000001"}, "includes": {"users": [1, 2]}}`, string(post.RawData))
}

func TestPost_TimestampRoundTripKeepsRawString(t *testing.T) {
	var post Post
	require.NoError(t, json.Unmarshal([]byte(samplePost), &post))

	out, err := json.Marshal(post)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &fields))
	assert.Equal(t, "2024-02-01T10:00:00.123456+00:00", fields["collected_at"])
}

func TestPost_HasHashtagContaining(t *testing.T) {
	post := Post{Hashtags: []string{"DailyMEME", "game"}}

	tests := []struct {
		name     string
		term     string
		expected bool
	}{
		{name: "Case-insensitive substring", term: "meme", expected: true},
		{name: "Upper-case term", term: "GAME", expected: true},
		{name: "No match", term: "psych", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, post.HasHashtagContaining(tt.term))
		})
	}
}

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		label    string
		expected Category
	}{
		{label: "psychology", expected: CategoryPsychology},
		{label: "game", expected: CategoryGame},
		{label: "meme", expected: CategoryMeme},
		{label: "trend", expected: CategoryTrend},
		{label: "general", expected: CategoryGeneral},
		{label: "sports", expected: CategoryGeneral},
		{label: "", expected: CategoryGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeCategory(tt.label))
		})
	}
}

func TestPost_DisplayCategories(t *testing.T) {
	assert.Equal(t, []Category{CategoryGeneral}, Post{}.DisplayCategories())
	assert.Equal(t,
		[]Category{CategoryMeme, CategoryGeneral},
		Post{ContentCategories: []string{"meme", "sports", "general"}}.DisplayCategories())
	assert.True(t, Post{ContentCategories: []string{"unknown"}}.HasCategory(CategoryGeneral))
	assert.False(t, Post{ContentCategories: []string{"game"}}.HasCategory(CategoryMeme))
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Time
	}{
		{name: "RFC3339 with Z", input: "2024-01-01T00:00:00Z", expected: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "Zone-less isoformat", input: "2024-02-01T08:30:00.500000", expected: time.Date(2024, 2, 1, 8, 30, 0, 500000000, time.UTC)},
		{name: "Empty", input: "", expected: time.Time{}},
		{name: "Garbage", input: "not a date", expected: time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.expected.Equal(ParseTimestamp(tt.input)), "got %v", ParseTimestamp(tt.input))
		})
	}
}

func TestKeywordAnalysis_Decode(t *testing.T) {
	doc := `{
		"_id": "keyword_analysis:2024-02-01T08:30:00.500000",
		"type": "keyword_analysis",
		"total_tweets": 120,
		"recent_tweets": 80,
		"analysis_date": "2024-02-01T08:30:00.500000",
		"days_analyzed": 7,
		"top_keywords": [["밈", 12], ["게임", 7]],
		"top_hashtags": [["meme", 5]],
		"top_mentions": [],
		"keyword_trends": {
			"categories": {"meme": {"밈": 4}},
			"hourly": {"9": {"밈": 2}},
			"engagement": {"밈": {"total": 30, "count": 3, "avg": 10.0}, "게임": {"total": 8, "count": 4}}
		}
	}`

	var analysis KeywordAnalysis
	require.NoError(t, json.Unmarshal([]byte(doc), &analysis))

	assert.Equal(t, 120, analysis.TotalTweets)
	assert.Equal(t, []TermCount{{Term: "밈", Count: 12}, {Term: "게임", Count: 7}}, analysis.TopKeywords)
	assert.Equal(t, 2, analysis.KeywordTrends.Hourly[9]["밈"])
	assert.Equal(t, 10.0, analysis.KeywordTrends.Engagement["밈"].Average())
	assert.Equal(t, 2.0, analysis.KeywordTrends.Engagement["게임"].Average())
	assert.Equal(t, 2024, analysis.AnalysisDate.Year())

	out, err := json.Marshal(analysis.TopHashtags)
	require.NoError(t, err)
	assert.JSONEq(t, `[["meme", 5]]`, string(out))
}

func TestTermCount_RejectsMalformedPairs(t *testing.T) {
	var tc TermCount
	assert.Error(t, json.Unmarshal([]byte(`["only-term"]`), &tc))
	assert.Error(t, json.Unmarshal([]byte(`{"term": "x"}`), &tc))
}
