package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jumak/jumak-backend/internal/inventory/events"
	"github.com/jumak/jumak-backend/internal/inventory/repository"
	"github.com/jumak/jumak-backend/pkg/logger"
)

// AlertScanner walks the catalog and the batch ledger looking for stock
// conditions worth flagging: items at or below their minimum, batches
// close to expiration, batches already expired. It is read-only apart
// from the alert records it creates.
type AlertScanner struct {
	itemRepo    *repository.ItemRepository
	batchRepo   *repository.BatchRepository
	alertRepo   *repository.AlertRepository
	publisher   *events.InventoryEventPublisher
	horizonDays int
	logger      *logger.Logger

	// now is injectable for tests
	now func() time.Time
}

// NewAlertScanner creates a new alert scanner
func NewAlertScanner(
	itemRepo *repository.ItemRepository,
	batchRepo *repository.BatchRepository,
	alertRepo *repository.AlertRepository,
	publisher *events.InventoryEventPublisher,
	horizonDays int,
	log *logger.Logger,
) *AlertScanner {
	return &AlertScanner{
		itemRepo:    itemRepo,
		batchRepo:   batchRepo,
		alertRepo:   alertRepo,
		publisher:   publisher,
		horizonDays: horizonDays,
		logger:      log.WithComponent("alert_scanner"),
		now:         time.Now,
	}
}

// ScanResult summarizes one scanner pass
type ScanResult struct {
	LowStock int `json:"low_stock"`
	Expiring int `json:"expiring"`
	Expired  int `json:"expired"`
	Skipped  int `json:"skipped"`
}

// ScanAll runs every check once. A failing check is logged and the
// remaining checks still run.
func (s *AlertScanner) ScanAll(ctx context.Context) *ScanResult {
	result := &ScanResult{}

	checks := []struct {
		name string
		fn   func(context.Context, *ScanResult) error
	}{
		{"low_stock", s.scanLowStock},
		{"expiring", s.scanExpiring},
		{"expired", s.scanExpired},
	}

	for _, check := range checks {
		if err := check.fn(ctx, result); err != nil {
			s.logger.Error().Err(err).Str("check", check.name).Msg("scan check failed")
		}
	}

	s.logger.Info().
		Int("low_stock", result.LowStock).
		Int("expiring", result.Expiring).
		Int("expired", result.Expired).
		Int("skipped", result.Skipped).
		Msg("alert scan completed")

	return result
}

func (s *AlertScanner) scanLowStock(ctx context.Context, result *ScanResult) error {
	items, err := s.itemRepo.GetAllActive(ctx)
	if err != nil {
		return err
	}

	today := dateOnly(s.now())

	for _, item := range items {
		total, err := s.batchRepo.TotalAvailable(ctx, item.ID, today)
		if err != nil {
			s.logger.Error().Err(err).Str("item", item.Name).Msg("failed to compute availability")
			continue
		}
		if total > item.MinQuantity {
			continue
		}

		severity := repository.SeverityWarning
		if total == 0 || total < item.MinQuantity/2 {
			severity = repository.SeverityCritical
		}

		alert := &repository.InventoryAlert{
			AlertType:    repository.AlertTypeLowStock,
			ItemID:       item.ID,
			ItemName:     item.Name,
			Severity:     severity,
			Message:      fmt.Sprintf("%s is low on stock: %d %s left (minimum %d)", item.Name, total, item.Unit, item.MinQuantity),
			CurrentStock: &total,
			MinQuantity:  &item.MinQuantity,
		}
		s.emit(ctx, alert, &result.LowStock, &result.Skipped)
	}

	return nil
}

func (s *AlertScanner) scanExpiring(ctx context.Context, result *ScanResult) error {
	today := dateOnly(s.now())

	batches, err := s.batchRepo.ListExpiring(ctx, s.horizonDays, today)
	if err != nil {
		return err
	}

	for _, batch := range batches {
		item, err := s.itemRepo.GetByID(ctx, batch.ItemID)
		if err != nil {
			s.logger.Error().Err(err).Int64("batch_id", batch.ID).Msg("failed to load item for expiring batch")
			continue
		}

		days := batch.DaysUntilExpiration(today)
		available := batch.AvailableQuantity()

		alert := &repository.InventoryAlert{
			AlertType:           repository.AlertTypeExpiring,
			ItemID:              item.ID,
			ItemName:            item.Name,
			BatchID:             &batch.ID,
			BatchNumber:         &batch.BatchNumber,
			Severity:            repository.SeverityWarning,
			Message:             fmt.Sprintf("batch %s of %s expires in %d day(s): %d %s at risk", batch.BatchNumber, item.Name, days, available, item.Unit),
			CurrentStock:        &available,
			ExpirationDate:      &batch.ExpirationDate,
			DaysUntilExpiration: &days,
		}
		s.emit(ctx, alert, &result.Expiring, &result.Skipped)
	}

	return nil
}

func (s *AlertScanner) scanExpired(ctx context.Context, result *ScanResult) error {
	today := dateOnly(s.now())

	batches, err := s.batchRepo.ListExpired(ctx, today)
	if err != nil {
		return err
	}

	for _, batch := range batches {
		item, err := s.itemRepo.GetByID(ctx, batch.ItemID)
		if err != nil {
			s.logger.Error().Err(err).Int64("batch_id", batch.ID).Msg("failed to load item for expired batch")
			continue
		}

		days := batch.DaysUntilExpiration(today)
		available := batch.AvailableQuantity()

		alert := &repository.InventoryAlert{
			AlertType:           repository.AlertTypeExpired,
			ItemID:              item.ID,
			ItemName:            item.Name,
			BatchID:             &batch.ID,
			BatchNumber:         &batch.BatchNumber,
			Severity:            repository.SeverityCritical,
			Message:             fmt.Sprintf("batch %s of %s expired %d day(s) ago: %d %s must be discarded", batch.BatchNumber, item.Name, -days, available, item.Unit),
			CurrentStock:        &available,
			ExpirationDate:      &batch.ExpirationDate,
			DaysUntilExpiration: &days,
		}
		s.emit(ctx, alert, &result.Expired, &result.Skipped)
	}

	return nil
}

// emit creates the alert unless one of the same type already exists for
// the item/batch today, then hands it to the notification sink.
func (s *AlertScanner) emit(ctx context.Context, alert *repository.InventoryAlert, counter, skipped *int) {
	exists, err := s.alertRepo.ExistsSince(ctx, alert.AlertType, alert.ItemID, alert.BatchID, s.startOfDay())
	if err != nil {
		s.logger.Error().Err(err).Str("item", alert.ItemName).Msg("failed to check for existing alert")
		return
	}
	if exists {
		*skipped++
		return
	}

	if err := s.alertRepo.Create(ctx, alert); err != nil {
		s.logger.Error().Err(err).Str("item", alert.ItemName).Msg("failed to create alert")
		return
	}
	*counter++

	s.logger.Warn().
		Str("alert_type", alert.AlertType).
		Str("severity", alert.Severity).
		Str("item", alert.ItemName).
		Msg(alert.Message)

	s.publisher.PublishAlertGenerated(ctx, alert)
}

func (s *AlertScanner) startOfDay() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// Read-only condition checks for the HTTP surface. They report what the
// scanner would flag without creating alert records.

// LowStockReport is one item at or below its minimum
type LowStockReport struct {
	Item           *repository.Item `json:"item"`
	TotalAvailable int              `json:"total_available"`
}

// CheckLowStock lists active items at or below their minimum quantity
func (s *AlertScanner) CheckLowStock(ctx context.Context) ([]*LowStockReport, error) {
	items, err := s.itemRepo.GetAllActive(ctx)
	if err != nil {
		return nil, err
	}

	today := dateOnly(s.now())

	var reports []*LowStockReport
	for _, item := range items {
		total, err := s.batchRepo.TotalAvailable(ctx, item.ID, today)
		if err != nil {
			return nil, err
		}
		if total <= item.MinQuantity {
			reports = append(reports, &LowStockReport{Item: item, TotalAvailable: total})
		}
	}
	return reports, nil
}

// ExpiryReport is one batch near or past expiration
type ExpiryReport struct {
	Batch               *repository.Batch `json:"batch"`
	Available           int               `json:"available"`
	DaysUntilExpiration int               `json:"days_until_expiration"`
}

// CheckExpiring lists unexhausted batches expiring within the horizon
func (s *AlertScanner) CheckExpiring(ctx context.Context) ([]*ExpiryReport, error) {
	today := dateOnly(s.now())

	batches, err := s.batchRepo.ListExpiring(ctx, s.horizonDays, today)
	if err != nil {
		return nil, err
	}
	return expiryReports(batches, today), nil
}

// CheckExpired lists unexhausted batches already past expiration
func (s *AlertScanner) CheckExpired(ctx context.Context) ([]*ExpiryReport, error) {
	today := dateOnly(s.now())

	batches, err := s.batchRepo.ListExpired(ctx, today)
	if err != nil {
		return nil, err
	}
	return expiryReports(batches, today), nil
}

func expiryReports(batches []*repository.Batch, today time.Time) []*ExpiryReport {
	reports := make([]*ExpiryReport, len(batches))
	for i, b := range batches {
		reports[i] = &ExpiryReport{
			Batch:               b,
			Available:           b.AvailableQuantity(),
			DaysUntilExpiration: b.DaysUntilExpiration(today),
		}
	}
	return reports
}
