package digest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/todaytrend/trend-dashboard/internal/analysis"
	"github.com/todaytrend/trend-dashboard/internal/models"
	"github.com/todaytrend/trend-dashboard/internal/notifications"
	"github.com/todaytrend/trend-dashboard/internal/storage"
)

// Digest periods
const (
	PeriodDaily  = "daily"
	PeriodWeekly = "weekly"
	PeriodManual = "manual"
)

// Prefix is where generated digests are archived
const Prefix = "digests/"

const topTerms = 10

// ErrNoAnalysis is returned when there is no keyword analysis to summarize
var ErrNoAnalysis = errors.New("no keyword analysis available")

// AnalysisLoader reloads and exposes the latest keyword analysis
type AnalysisLoader interface {
	Load(ctx context.Context) error
	Analysis() *models.KeywordAnalysis
}

// Service builds keyword digests and delivers them
type Service struct {
	loader              AnalysisLoader
	storage             storage.StorageInterface
	notificationService notifications.NotificationInterface
	metrics             *Metrics
	now                 func() time.Time
	mu                  sync.RWMutex
}

// Metrics holds digest run metrics
type Metrics struct {
	Runs             int       `json:"runs"`
	LastRun          time.Time `json:"last_run"`
	LastRunDuration  string    `json:"last_run_duration"`
	LastPeriod       string    `json:"last_period,omitempty"`
	LastAnalysisDate time.Time `json:"last_analysis_date"`
	ErrorCount       int       `json:"error_count"`
	LastError        string    `json:"last_error,omitempty"`
}

// NewService creates a digest service; storage may be nil to skip archiving
func NewService(loader AnalysisLoader, storage storage.StorageInterface, notificationService notifications.NotificationInterface) *Service {
	return &Service{
		loader:              loader,
		storage:             storage,
		notificationService: notificationService,
		metrics:             &Metrics{},
		now:                 time.Now,
	}
}

// Build summarizes an analysis document
func Build(doc *models.KeywordAnalysis, period string, now time.Time) *models.Digest {
	return &models.Digest{
		GeneratedAt:   now,
		Period:        period,
		AnalysisDate:  doc.AnalysisDate.Time,
		TotalPosts:    doc.TotalTweets,
		AnalyzedPosts: doc.RecentTweets,
		DaysAnalyzed:  doc.DaysAnalyzed,
		TopKeywords:   head(doc.TopKeywords, topTerms),
		TopHashtags:   head(doc.TopHashtags, topTerms),
		Engagement:    analysis.EngagementRanking(doc),
	}
}

// Generate reloads the latest analysis and builds a digest from it
func (s *Service) Generate(ctx context.Context, period string) (*models.Digest, error) {
	if err := s.loader.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load keyword analysis: %w", err)
	}

	doc := s.loader.Analysis()
	if doc == nil {
		return nil, ErrNoAnalysis
	}

	return Build(doc, period, s.now()), nil
}

// Run generates a digest, archives it and sends it to the configured channels
func (s *Service) Run(ctx context.Context, period string) (*models.Digest, error) {
	start := s.now()
	logrus.Infof("Starting %s digest run", period)

	digest, err := s.run(ctx, period)
	s.updateMetrics(period, digest, s.now().Sub(start), err)

	if err != nil {
		logrus.Errorf("Digest run failed: %v", err)
		return nil, err
	}

	logrus.Infof("Digest run completed in %v", s.now().Sub(start))
	return digest, nil
}

func (s *Service) run(ctx context.Context, period string) (*models.Digest, error) {
	digest, err := s.Generate(ctx, period)
	if err != nil {
		return nil, err
	}

	if s.storage != nil {
		if err := s.storeDigest(ctx, digest); err != nil {
			// delivery still happens without the archived copy
			logrus.Errorf("Failed to store digest: %v", err)
		}
	}

	if err := s.notificationService.SendDigest(ctx, digest); err != nil {
		return nil, fmt.Errorf("failed to send digest: %w", err)
	}

	return digest, nil
}

func (s *Service) storeDigest(ctx context.Context, digest *models.Digest) error {
	data, err := json.Marshal(digest)
	if err != nil {
		return fmt.Errorf("failed to marshal digest: %w", err)
	}

	filename := fmt.Sprintf("%sdigest-%s.json", Prefix, digest.GeneratedAt.UTC().Format("2006-01-02-15-04-05"))
	return s.storage.Store(ctx, filename, data)
}

func (s *Service) updateMetrics(period string, digest *models.Digest, duration time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.Runs++
	s.metrics.LastRun = s.now()
	s.metrics.LastRunDuration = duration.String()
	s.metrics.LastPeriod = period

	if err != nil {
		s.metrics.ErrorCount++
		s.metrics.LastError = err.Error()
		return
	}

	s.metrics.LastError = ""
	s.metrics.LastAnalysisDate = digest.AnalysisDate
}

// GetMetrics returns a copy of the current metrics
func (s *Service) GetMetrics() Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.metrics
}

func head(terms []models.TermCount, n int) []models.TermCount {
	if len(terms) > n {
		terms = terms[:n]
	}
	return append([]models.TermCount(nil), terms...)
}
