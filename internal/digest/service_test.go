package digest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/todaytrend/trend-dashboard/internal/models"
)

// MockLoader is a mock implementation of AnalysisLoader
type MockLoader struct {
	mock.Mock
}

func (m *MockLoader) Load(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockLoader) Analysis() *models.KeywordAnalysis {
	args := m.Called()
	doc, _ := args.Get(0).(*models.KeywordAnalysis)
	return doc
}

// MockStorage is a mock implementation of the storage interface
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Store(ctx context.Context, filename string, data []byte) error {
	args := m.Called(ctx, filename, data)
	return args.Error(0)
}

func (m *MockStorage) Retrieve(ctx context.Context, filename string) ([]byte, error) {
	args := m.Called(ctx, filename)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockStorage) List(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

func (m *MockStorage) Delete(ctx context.Context, filename string) error {
	args := m.Called(ctx, filename)
	return args.Error(0)
}

// MockNotificationService is a mock implementation of the notification service
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) SendDigest(ctx context.Context, digest *models.Digest) error {
	args := m.Called(ctx, digest)
	return args.Error(0)
}

var fixedNow = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func sampleAnalysis() *models.KeywordAnalysis {
	keywords := make([]models.TermCount, 0, 15)
	for i := 15; i > 0; i-- {
		keywords = append(keywords, models.TermCount{Term: string(rune('a' + 15 - i)), Count: i})
	}
	return &models.KeywordAnalysis{
		ID:           "keyword_analysis:20240304",
		TotalTweets:  1520,
		RecentTweets: 310,
		AnalysisDate: models.NewTimestamp(time.Date(2024, 3, 4, 6, 30, 0, 0, time.UTC)),
		DaysAnalyzed: 7,
		TopKeywords:  keywords,
		TopHashtags:  []models.TermCount{{Term: "trend", Count: 12}},
		KeywordTrends: models.KeywordTrends{
			Engagement: map[string]models.EngagementAccumulator{
				"game": {Total: 30, Count: 3},
				"solo": {Total: 99, Count: 1},
			},
		},
	}
}

func newTestService(loader AnalysisLoader, store *MockStorage, notifier *MockNotificationService) *Service {
	var service *Service
	if store == nil {
		service = NewService(loader, nil, notifier)
	} else {
		service = NewService(loader, store, notifier)
	}
	service.now = func() time.Time { return fixedNow }
	return service
}

func TestBuild(t *testing.T) {
	digest := Build(sampleAnalysis(), PeriodWeekly, fixedNow)

	assert.Equal(t, fixedNow, digest.GeneratedAt)
	assert.Equal(t, PeriodWeekly, digest.Period)
	assert.Equal(t, time.Date(2024, 3, 4, 6, 30, 0, 0, time.UTC), digest.AnalysisDate)
	assert.Equal(t, 1520, digest.TotalPosts)
	assert.Equal(t, 310, digest.AnalyzedPosts)
	assert.Equal(t, 7, digest.DaysAnalyzed)
	assert.Len(t, digest.TopKeywords, 10)
	assert.Equal(t, models.TermCount{Term: "a", Count: 15}, digest.TopKeywords[0])
	assert.Equal(t, []models.EngagementRank{{Keyword: "game", AvgEngagement: 10, Count: 3}}, digest.Engagement)
}

func TestService_Run(t *testing.T) {
	ctx := context.Background()
	loader := &MockLoader{}
	loader.On("Load", ctx).Return(nil)
	loader.On("Analysis").Return(sampleAnalysis())

	store := &MockStorage{}
	store.On("Store", ctx, "digests/digest-2024-03-04-09-00-00.json", mock.Anything).Return(nil)

	notifier := &MockNotificationService{}
	notifier.On("SendDigest", ctx, mock.AnythingOfType("*models.Digest")).Return(nil)

	service := newTestService(loader, store, notifier)

	digest, err := service.Run(ctx, PeriodDaily)
	require.NoError(t, err)
	assert.Equal(t, PeriodDaily, digest.Period)

	stored := store.Calls[0].Arguments.Get(2).([]byte)
	var decoded models.Digest
	require.NoError(t, json.Unmarshal(stored, &decoded))
	assert.Equal(t, 310, decoded.AnalyzedPosts)

	metrics := service.GetMetrics()
	assert.Equal(t, 1, metrics.Runs)
	assert.Zero(t, metrics.ErrorCount)
	assert.Equal(t, PeriodDaily, metrics.LastPeriod)
	assert.Equal(t, digest.AnalysisDate, metrics.LastAnalysisDate)

	loader.AssertExpectations(t)
	store.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestService_RunWithoutAnalysis(t *testing.T) {
	ctx := context.Background()
	loader := &MockLoader{}
	loader.On("Load", ctx).Return(nil)
	loader.On("Analysis").Return(nil)

	notifier := &MockNotificationService{}
	service := newTestService(loader, nil, notifier)

	_, err := service.Run(ctx, PeriodManual)
	assert.ErrorIs(t, err, ErrNoAnalysis)
	notifier.AssertNotCalled(t, "SendDigest", mock.Anything, mock.Anything)
	assert.Equal(t, 1, service.GetMetrics().ErrorCount)
}

func TestService_RunLoadFailure(t *testing.T) {
	ctx := context.Background()
	loader := &MockLoader{}
	loader.On("Load", ctx).Return(errors.New("fetch keyword analysis failed: HTTP 500"))

	service := newTestService(loader, nil, &MockNotificationService{})

	_, err := service.Run(ctx, PeriodWeekly)
	require.Error(t, err)
	assert.Equal(t, "failed to load keyword analysis: fetch keyword analysis failed: HTTP 500", err.Error())
	assert.Equal(t, err.Error(), service.GetMetrics().LastError)
}

func TestService_StorageFailureStillSends(t *testing.T) {
	ctx := context.Background()
	loader := &MockLoader{}
	loader.On("Load", ctx).Return(nil)
	loader.On("Analysis").Return(sampleAnalysis())

	store := &MockStorage{}
	store.On("Store", ctx, mock.Anything, mock.Anything).Return(errors.New("container unavailable"))

	notifier := &MockNotificationService{}
	notifier.On("SendDigest", ctx, mock.Anything).Return(nil)

	service := newTestService(loader, store, notifier)

	_, err := service.Run(ctx, PeriodDaily)
	require.NoError(t, err)
	notifier.AssertExpectations(t)
}

func TestService_SendFailure(t *testing.T) {
	ctx := context.Background()
	loader := &MockLoader{}
	loader.On("Load", ctx).Return(nil)
	loader.On("Analysis").Return(sampleAnalysis())

	notifier := &MockNotificationService{}
	notifier.On("SendDigest", ctx, mock.Anything).Return(errors.New("notification errors: Teams: timeout"))

	service := newTestService(loader, nil, notifier)

	_, err := service.Run(ctx, PeriodDaily)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send digest")
	assert.Equal(t, 1, service.GetMetrics().ErrorCount)
}
