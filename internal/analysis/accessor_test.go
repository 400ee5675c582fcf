package analysis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/todaytrend/trend-dashboard/internal/models"
)

// MockSource is a mock implementation of AnalysisSource
type MockSource struct {
	mock.Mock
}

func (m *MockSource) FetchLatestAnalysis(ctx context.Context) (*models.KeywordAnalysis, error) {
	args := m.Called(ctx)
	doc, _ := args.Get(0).(*models.KeywordAnalysis)
	return doc, args.Error(1)
}

var _ AnalysisSource = (*MockSource)(nil)

func floatPtr(v float64) *float64 {
	return &v
}

func withEngagement(engagement map[string]models.EngagementAccumulator) *models.KeywordAnalysis {
	return &models.KeywordAnalysis{
		ID:            "keyword_analysis:20240301",
		TotalTweets:   100,
		DaysAnalyzed:  7,
		KeywordTrends: models.KeywordTrends{Engagement: engagement},
	}
}

func TestEngagementRanking(t *testing.T) {
	tests := []struct {
		name       string
		engagement map[string]models.EngagementAccumulator
		expected   []models.EngagementRank
	}{
		{
			name: "single occurrence excluded and ordered by average",
			engagement: map[string]models.EngagementAccumulator{
				"A": {Total: 10, Count: 1},
				"B": {Total: 30, Count: 3},
				"C": {Total: 4, Count: 2},
			},
			expected: []models.EngagementRank{
				{Keyword: "B", AvgEngagement: 10, Count: 3},
				{Keyword: "C", AvgEngagement: 2, Count: 2},
			},
		},
		{
			name: "precomputed average wins over total divided by count",
			engagement: map[string]models.EngagementAccumulator{
				"x": {Total: 10, Count: 2, Avg: floatPtr(50)},
				"y": {Total: 60, Count: 2},
			},
			expected: []models.EngagementRank{
				{Keyword: "x", AvgEngagement: 50, Count: 2},
				{Keyword: "y", AvgEngagement: 30, Count: 2},
			},
		},
		{
			name: "ties broken by count then keyword",
			engagement: map[string]models.EngagementAccumulator{
				"beta":  {Total: 20, Count: 2},
				"alpha": {Total: 20, Count: 2},
				"gamma": {Total: 40, Count: 4},
			},
			expected: []models.EngagementRank{
				{Keyword: "gamma", AvgEngagement: 10, Count: 4},
				{Keyword: "alpha", AvgEngagement: 10, Count: 2},
				{Keyword: "beta", AvgEngagement: 10, Count: 2},
			},
		},
		{
			name:       "no engagement data",
			engagement: nil,
			expected:   []models.EngagementRank{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EngagementRanking(withEngagement(tt.engagement)))
		})
	}
}

func TestEngagementRanking_KeepsTopTwenty(t *testing.T) {
	engagement := make(map[string]models.EngagementAccumulator)
	for i := 0; i < 30; i++ {
		engagement[fmt.Sprintf("kw%02d", i)] = models.EngagementAccumulator{Total: float64(i * 2), Count: 2}
	}

	ranking := EngagementRanking(withEngagement(engagement))

	require.Len(t, ranking, MaxRankedWords)
	assert.Equal(t, "kw29", ranking[0].Keyword)
	assert.Equal(t, "kw10", ranking[MaxRankedWords-1].Keyword)
}

func TestEngagementRanking_NilDocument(t *testing.T) {
	assert.Empty(t, EngagementRanking(nil))
}

func TestAccessor_Load(t *testing.T) {
	ctx := context.Background()
	doc := withEngagement(map[string]models.EngagementAccumulator{"go": {Total: 8, Count: 2}})

	source := &MockSource{}
	source.On("FetchLatestAnalysis", ctx).Return(doc, nil)

	accessor := NewAccessor(source)
	loadedAt := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	accessor.now = func() time.Time { return loadedAt }

	assert.Equal(t, StatusEmpty, accessor.Status())
	require.NoError(t, accessor.Load(ctx))

	view := accessor.View()
	assert.Equal(t, StatusReady, view.Status)
	assert.Same(t, doc, view.Analysis)
	assert.Empty(t, view.Error)
	require.NotNil(t, view.LoadedAt)
	assert.Equal(t, loadedAt, *view.LoadedAt)
	assert.Equal(t, []models.EngagementRank{{Keyword: "go", AvgEngagement: 4, Count: 2}}, view.Engagement)
}

func TestAccessor_NoDocumentIsEmptyNotError(t *testing.T) {
	ctx := context.Background()
	source := &MockSource{}
	source.On("FetchLatestAnalysis", ctx).Return(nil, nil)

	accessor := NewAccessor(source)
	require.NoError(t, accessor.Load(ctx))

	view := accessor.View()
	assert.Equal(t, StatusEmpty, view.Status)
	assert.Empty(t, view.Error)
	assert.Nil(t, view.Analysis)
	assert.Empty(t, view.Engagement)
}

func TestAccessor_FailureThenRetry(t *testing.T) {
	ctx := context.Background()
	doc := withEngagement(nil)

	source := &MockSource{}
	source.On("FetchLatestAnalysis", ctx).Return(nil, errors.New("fetch keyword analysis failed: HTTP 500")).Once()
	source.On("FetchLatestAnalysis", ctx).Return(doc, nil).Once()

	accessor := NewAccessor(source)

	require.Error(t, accessor.Load(ctx))
	assert.Equal(t, StatusError, accessor.Status())
	assert.Equal(t, "fetch keyword analysis failed: HTTP 500", accessor.View().Error)

	require.NoError(t, accessor.Load(ctx))
	assert.Equal(t, StatusReady, accessor.Status())
	assert.Empty(t, accessor.View().Error)
	source.AssertExpectations(t)
}

func TestAccessor_StatusLoading(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})

	source := &MockSource{}
	source.On("FetchLatestAnalysis", ctx).Return(nil, nil).Run(func(mock.Arguments) {
		close(started)
		<-release
	})

	accessor := NewAccessor(source)
	done := make(chan error, 1)
	go func() { done <- accessor.Load(ctx) }()

	<-started
	assert.Equal(t, StatusLoading, accessor.Status())

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StatusEmpty, accessor.Status())
}

func TestAccessor_ViewRecomputesFromCurrentDocument(t *testing.T) {
	ctx := context.Background()
	first := withEngagement(map[string]models.EngagementAccumulator{"old": {Total: 4, Count: 2}})
	second := withEngagement(map[string]models.EngagementAccumulator{"new": {Total: 9, Count: 3}})

	source := &MockSource{}
	source.On("FetchLatestAnalysis", ctx).Return(first, nil).Once()
	source.On("FetchLatestAnalysis", ctx).Return(second, nil).Once()

	accessor := NewAccessor(source)
	require.NoError(t, accessor.Load(ctx))
	assert.Equal(t, "old", accessor.View().Engagement[0].Keyword)

	require.NoError(t, accessor.Load(ctx))
	assert.Equal(t, "new", accessor.View().Engagement[0].Keyword)
}
