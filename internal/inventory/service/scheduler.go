package service

import (
	"context"
	"sync"
	"time"

	"github.com/jumak/jumak-backend/internal/inventory/repository"
	"github.com/jumak/jumak-backend/pkg/logger"
)

// AlertScheduler runs the alert scanner on a fixed interval and prunes
// old acknowledged alerts once a day.
type AlertScheduler struct {
	scanner       *AlertScanner
	alertRepo     *repository.AlertRepository
	scanInterval  time.Duration
	retentionDays int
	logger        *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAlertScheduler creates a new alert scheduler
func NewAlertScheduler(
	scanner *AlertScanner,
	alertRepo *repository.AlertRepository,
	scanInterval time.Duration,
	retentionDays int,
	log *logger.Logger,
) *AlertScheduler {
	return &AlertScheduler{
		scanner:       scanner,
		alertRepo:     alertRepo,
		scanInterval:  scanInterval,
		retentionDays: retentionDays,
		logger:        log.WithComponent("alert_scheduler"),
	}
}

// Start launches the background scan loop. The first scan runs
// immediately; Stop or context cancellation ends the loop.
func (s *AlertScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info().
		Dur("scan_interval", s.scanInterval).
		Int("retention_days", s.retentionDays).
		Msg("alert scheduler started")
}

// Stop ends the scan loop and waits for an in-flight scan to finish
func (s *AlertScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info().Msg("alert scheduler stopped")
}

func (s *AlertScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	scanTicker := time.NewTicker(s.scanInterval)
	defer scanTicker.Stop()

	pruneTicker := time.NewTicker(24 * time.Hour)
	defer pruneTicker.Stop()

	s.scanner.ScanAll(ctx)
	s.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-scanTicker.C:
			s.scanner.ScanAll(ctx)
		case <-pruneTicker.C:
			s.prune(ctx)
		}
	}
}

func (s *AlertScheduler) prune(ctx context.Context) {
	if s.retentionDays <= 0 {
		return
	}

	deleted, err := s.alertRepo.DeleteOld(ctx, time.Duration(s.retentionDays)*24*time.Hour)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to prune old alerts")
		return
	}
	if deleted > 0 {
		s.logger.Info().Int64("deleted", deleted).Msg("pruned old acknowledged alerts")
	}
}
