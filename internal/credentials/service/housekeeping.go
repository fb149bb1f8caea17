package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/metrics"
	"github.com/mwafayee/TCSS460-CredentialsAPI/internal/credentials/store"
)

const (
	DefaultHousekeepingInterval = time.Hour
	DefaultRetentionPeriod      = 24 * time.Hour
)

// HousekeepingService periodically deletes verification records that
// expired or were consumed more than Retention ago. Live records are never
// touched; expiry itself is still decided at consume time.
type HousekeepingService struct {
	Store     store.Store
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Interval  time.Duration
	Retention time.Duration
	Clock     func() time.Time
}

func NewHousekeepingService(s store.Store, logger *slog.Logger, interval, retention time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = DefaultHousekeepingInterval
	}
	if retention <= 0 {
		retention = DefaultRetentionPeriod
	}
	return &HousekeepingService{
		Store:     s,
		Logger:    logger,
		Interval:  interval,
		Retention: retention,
	}
}

// Run cleans up once immediately and then on every tick until ctx is done.
func (s *HousekeepingService) Run(ctx context.Context) error {
	s.Logger.Info("housekeeping started", "interval", s.Interval, "retention", s.Retention)
	defer s.Logger.Info("housekeeping stopped")

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.cleanup(ctx)
	for {
		select {
		case <-ticker.C:
			s.cleanup(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

// Cleanup runs a single pass and reports how many records were removed.
func (s *HousekeepingService) Cleanup(ctx context.Context) (int64, error) {
	now := time.Now()
	if s.Clock != nil {
		now = s.Clock()
	}
	n, err := s.Store.Verifications().DeleteStale(ctx, now.UTC().Add(-s.Retention))
	if err != nil {
		return 0, err
	}
	s.Metrics.RecordsPurged(n)
	return n, nil
}

func (s *HousekeepingService) cleanup(ctx context.Context) {
	n, err := s.Cleanup(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.Logger.Error("failed to delete stale verification records", "error", err)
		}
		return
	}
	s.Logger.Debug("housekeeping pass completed", "deleted", n)
}
