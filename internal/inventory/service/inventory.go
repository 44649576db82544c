package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jumak/jumak-backend/internal/inventory/events"
	"github.com/jumak/jumak-backend/internal/inventory/repository"
	"github.com/jumak/jumak-backend/pkg/database"
	"github.com/jumak/jumak-backend/pkg/errors"
	"github.com/jumak/jumak-backend/pkg/logger"
)

// DefaultExpiryHorizonDays is the expiring-soon window used by status reads
const DefaultExpiryHorizonDays = 7

// InventoryService handles inventory business logic
type InventoryService struct {
	db              *database.DB
	itemRepo        *repository.ItemRepository
	batchRepo       *repository.BatchRepository
	consumptionRepo *repository.ConsumptionRepository
	publisher       *events.InventoryEventPublisher
	logger          *logger.Logger

	// now is injectable for tests
	now func() time.Time
}

// NewInventoryService creates a new inventory service
func NewInventoryService(
	db *database.DB,
	itemRepo *repository.ItemRepository,
	batchRepo *repository.BatchRepository,
	consumptionRepo *repository.ConsumptionRepository,
	publisher *events.InventoryEventPublisher,
	log *logger.Logger,
) *InventoryService {
	return &InventoryService{
		db:              db,
		itemRepo:        itemRepo,
		batchRepo:       batchRepo,
		consumptionRepo: consumptionRepo,
		publisher:       publisher,
		logger:          log,
		now:             time.Now,
	}
}

// Item operations

// CreateItemInput holds the fields for a new catalog item
type CreateItemInput struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Unit        string  `json:"unit" validate:"required,max=50"`
	Category    *string `json:"category,omitempty" validate:"omitempty,max=100"`
	MinQuantity int     `json:"min_quantity"`
}

// CreateItem creates a new catalog item
func (s *InventoryService) CreateItem(ctx context.Context, in CreateItemInput) (*repository.Item, error) {
	if in.MinQuantity < 0 {
		return nil, errors.InvalidInput("minimum quantity must not be negative")
	}

	item := &repository.Item{
		Name:        in.Name,
		Unit:        in.Unit,
		Category:    in.Category,
		MinQuantity: in.MinQuantity,
		IsActive:    true,
	}

	if err := s.itemRepo.Create(ctx, item); err != nil {
		return nil, err
	}

	s.logger.Info().Str("item", item.Name).Int64("item_id", item.ID).Msg("item created")
	return item, nil
}

// GetItemByName finds an active catalog item by name
func (s *InventoryService) GetItemByName(ctx context.Context, name string) (*repository.Item, error) {
	return s.itemRepo.GetByName(ctx, name)
}

// ListItems lists catalog items with pagination
func (s *InventoryService) ListItems(ctx context.Context, page, perPage int, category string) ([]*repository.Item, int64, error) {
	return s.itemRepo.List(ctx, page, perPage, category)
}

// UpdateItem updates the mutable catalog fields of an item
func (s *InventoryService) UpdateItem(ctx context.Context, item *repository.Item) error {
	if item.MinQuantity < 0 {
		return errors.InvalidInput("minimum quantity must not be negative")
	}
	return s.itemRepo.Update(ctx, item)
}

// DeactivateItem soft-deactivates an item; its batches and history remain
func (s *InventoryService) DeactivateItem(ctx context.Context, id int64) error {
	return s.itemRepo.Deactivate(ctx, id)
}

// Receipt registration

// RegisterInput holds the fields for booking a received delivery
type RegisterInput struct {
	ItemName       string
	Quantity       int
	ExpirationDate time.Time
	Supplier       *string
	PurchasePrice  *float64
}

// RegisterResult is the outcome of a registration
type RegisterResult struct {
	Item           *repository.Item  `json:"item"`
	Batch          *repository.Batch `json:"batch"`
	TotalAvailable int               `json:"total_available"`
}

// Register books a received delivery into the batch ledger and refreshes
// the item's cached availability in the same transaction. The item row is
// locked so concurrent registrations and consumptions of the same item
// serialize.
func (s *InventoryService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	today := dateOnly(s.now())

	var result RegisterResult
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		item, err := s.itemRepo.GetByNameForUpdateTx(ctx, tx, in.ItemName)
		if err != nil {
			return err
		}

		if in.Quantity <= 0 {
			return errors.InvalidInput("quantity must be greater than zero")
		}
		if !dateOnly(in.ExpirationDate).After(today) {
			return errors.InvalidInput("expiration date must be in the future")
		}

		seq, err := s.batchRepo.CountForItemOnDateTx(ctx, tx, item.ID, today)
		if err != nil {
			return err
		}

		batch := &repository.Batch{
			ItemID:         item.ID,
			BatchNumber:    batchNumber(today, item.ID, seq+1),
			Quantity:       in.Quantity,
			ExpirationDate: dateOnly(in.ExpirationDate),
			ReceivedDate:   today,
			Supplier:       in.Supplier,
			PurchasePrice:  in.PurchasePrice,
		}
		if err := s.batchRepo.CreateTx(ctx, tx, batch); err != nil {
			return err
		}

		total, err := s.batchRepo.TotalAvailableTx(ctx, tx, item.ID, today)
		if err != nil {
			return err
		}
		if err := s.itemRepo.UpdateQuantityCacheTx(ctx, tx, item.ID, total); err != nil {
			return err
		}

		item.CurrentQuantity = total
		result = RegisterResult{Item: item, Batch: batch, TotalAvailable: total}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("item", result.Item.Name).
		Str("batch_number", result.Batch.BatchNumber).
		Int("quantity", result.Batch.Quantity).
		Msg("batch registered")

	s.publisher.PublishBatchRegistered(ctx, result.Item, result.Batch, result.TotalAvailable)

	return &result, nil
}

// batchNumber builds the ledger identifier for a received delivery:
// received date, item ID, then a three-digit daily sequence.
func batchNumber(received time.Time, itemID int64, seq int) string {
	return fmt.Sprintf("%s%d%03d", received.Format("20060102"), itemID, seq)
}

// Consumption

// ConsumeInput holds the fields for a consumption request
type ConsumeInput struct {
	ItemName string
	Quantity int
	Reason   *string
}

// ConsumeResult is the outcome of a consumption
type ConsumeResult struct {
	Item           *repository.Item        `json:"item"`
	Consumption    *repository.Consumption `json:"consumption"`
	TotalAvailable int                     `json:"total_available"`
	LowStock       bool                    `json:"low_stock"`
}

// Consume draws stock from the batch ledger in FIFO order by expiration
// date. The walk, the batch updates, the journal record and the cache
// refresh all happen in one transaction holding the item row lock, so a
// failed consumption leaves the ledger untouched.
func (s *InventoryService) Consume(ctx context.Context, in ConsumeInput) (*ConsumeResult, error) {
	today := dateOnly(s.now())

	var result ConsumeResult
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		item, err := s.itemRepo.GetByNameForUpdateTx(ctx, tx, in.ItemName)
		if err != nil {
			return err
		}

		if in.Quantity <= 0 {
			return errors.InvalidInput("quantity must be greater than zero")
		}

		batches, err := s.batchRepo.ListByItemForUpdateTx(ctx, tx, item.ID, today)
		if err != nil {
			return err
		}

		draws := allocate(batches, in.Quantity)
		if draws == nil {
			available := totalAvailable(batches, today)
			return errors.InsufficientStock(item.Name, in.Quantity, available)
		}

		for _, d := range draws {
			if err := s.batchRepo.AddUsedTx(ctx, tx, d.BatchID, d.Quantity); err != nil {
				return err
			}
		}

		consumption := &repository.Consumption{
			ItemID:   item.ID,
			Quantity: in.Quantity,
			Reason:   in.Reason,
			Draws:    draws,
		}
		if err := s.consumptionRepo.CreateTx(ctx, tx, consumption); err != nil {
			return err
		}

		total, err := s.batchRepo.TotalAvailableTx(ctx, tx, item.ID, today)
		if err != nil {
			return err
		}
		if err := s.itemRepo.UpdateQuantityCacheTx(ctx, tx, item.ID, total); err != nil {
			return err
		}

		item.CurrentQuantity = total
		result = ConsumeResult{
			Item:           item,
			Consumption:    consumption,
			TotalAvailable: total,
			LowStock:       total <= item.MinQuantity,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("item", result.Item.Name).
		Int("quantity", in.Quantity).
		Int("remaining", result.TotalAvailable).
		Msg("stock consumed")

	s.publisher.PublishStockConsumed(ctx, result.Item, result.Consumption, result.TotalAvailable, result.LowStock)

	return &result, nil
}

// Status

// BatchStatus is one ledger entry in an item status report
type BatchStatus struct {
	*repository.Batch
	Available           int  `json:"available"`
	Expired             bool `json:"expired"`
	DaysUntilExpiration int  `json:"days_until_expiration"`
}

// ItemStatus is the availability report for one item
type ItemStatus struct {
	Item           *repository.Item `json:"item"`
	TotalAvailable int              `json:"total_available"`
	IsLowStock     bool             `json:"is_low_stock"`
	Batches        []*BatchStatus   `json:"batches"`
	ExpiringSoon   []*BatchStatus   `json:"expiring_soon"`
}

// Status reports an item's availability: per-batch state, the unexpired
// total, the low-stock flag and the batches expiring within the default
// horizon. Reads run outside any item lock.
func (s *InventoryService) Status(ctx context.Context, itemName string) (*ItemStatus, error) {
	item, err := s.itemRepo.GetByName(ctx, itemName)
	if err != nil {
		return nil, err
	}

	today := dateOnly(s.now())

	batches, err := s.batchRepo.ListByItem(ctx, item.ID, false, false, today)
	if err != nil {
		return nil, err
	}

	status := &ItemStatus{
		Item:           item,
		TotalAvailable: totalAvailable(batches, today),
		Batches:        make([]*BatchStatus, len(batches)),
	}
	status.IsLowStock = status.TotalAvailable <= item.MinQuantity

	for i, b := range batches {
		status.Batches[i] = &BatchStatus{
			Batch:               b,
			Available:           b.AvailableQuantity(),
			Expired:             b.IsExpired(today),
			DaysUntilExpiration: b.DaysUntilExpiration(today),
		}
	}

	for _, b := range expiringSoon(batches, DefaultExpiryHorizonDays, today) {
		status.ExpiringSoon = append(status.ExpiringSoon, &BatchStatus{
			Batch:               b,
			Available:           b.AvailableQuantity(),
			DaysUntilExpiration: b.DaysUntilExpiration(today),
		})
	}

	return status, nil
}

// Usage returns the consumption journal for an item, newest first
func (s *InventoryService) Usage(ctx context.Context, itemName string, limit int) ([]*repository.Consumption, error) {
	item, err := s.itemRepo.GetByName(ctx, itemName)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return s.consumptionRepo.ListByItem(ctx, item.ID, limit)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
