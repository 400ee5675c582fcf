package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/todaytrend/trend-dashboard/internal/config"
	"github.com/todaytrend/trend-dashboard/internal/models"
)

const jobTimeout = 2 * time.Minute

// Refresher reloads the dashboard posts behind the current view
type Refresher interface {
	Reload(ctx context.Context) error
}

// Loader reloads the keyword analysis
type Loader interface {
	Load(ctx context.Context) error
}

// DigestRunner builds and sends a digest for a period
type DigestRunner interface {
	Run(ctx context.Context, period string) (*models.Digest, error)
}

// Service handles scheduling of dashboard refreshes and digests
type Service struct {
	config    *config.Config
	refresher Refresher
	loader    Loader
	digests   DigestRunner
	cron      *cron.Cron
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, refresher Refresher, loader Loader, digests DigestRunner) *Service {
	return &Service{
		config:    cfg,
		refresher: refresher,
		loader:    loader,
		digests:   digests,
		cron:      cron.New(cron.WithSeconds(), cron.WithLocation(cfg.Location())),
	}
}

// DigestExpression returns the cron expression of a digest schedule, or "" when it is off
func DigestExpression(schedule string) string {
	switch schedule {
	case "daily":
		// Run daily at 9 AM
		return "0 0 9 * * *"
	case "weekly":
		// Run weekly on Monday at 9 AM
		return "0 0 9 * * MON"
	default:
		return ""
	}
}

// Start registers the jobs and begins scheduling
func (s *Service) Start() error {
	if s.config.RefreshSchedule != config.ScheduleOff {
		if _, err := s.cron.AddFunc(s.config.RefreshSchedule, s.RunRefresh); err != nil {
			return fmt.Errorf("failed to schedule refresh: %w", err)
		}
	}

	if expression := DigestExpression(s.config.DigestSchedule); expression != "" {
		period := s.config.DigestSchedule
		if _, err := s.cron.AddFunc(expression, func() { s.RunDigest(period) }); err != nil {
			return fmt.Errorf("failed to schedule digest: %w", err)
		}
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with %d jobs (refresh: %s, digest: %s)",
		len(s.cron.Entries()), s.config.RefreshSchedule, s.config.DigestSchedule)
	return nil
}

// RunRefresh reloads the current post view and the keyword analysis
func (s *Service) RunRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	logrus.Debug("Starting scheduled refresh")
	if err := s.refresher.Reload(ctx); err != nil {
		logrus.Errorf("Scheduled post refresh failed: %v", err)
	}
	if err := s.loader.Load(ctx); err != nil {
		logrus.Errorf("Scheduled analysis reload failed: %v", err)
	}
}

// RunDigest builds and sends a digest for period
func (s *Service) RunDigest(period string) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	logrus.Infof("Starting scheduled %s digest", period)
	if _, err := s.digests.Run(ctx, period); err != nil {
		logrus.Errorf("Scheduled digest failed: %v", err)
	}
}

// Stop stops the scheduler and waits for running jobs
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		logrus.Info("Scheduler stopped")
	}
}
