package events

import (
	"context"

	"github.com/jumak/jumak-backend/internal/inventory/repository"
	"github.com/jumak/jumak-backend/pkg/logger"
	"github.com/jumak/jumak-backend/pkg/messaging"
)

// EventSink is where domain events are written. *messaging.Publisher is
// the production implementation.
type EventSink interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// InventoryEventPublisher publishes inventory domain events.
// A nil publisher is safe to call; events are simply dropped, which keeps
// the service usable without a broker in development and tests.
type InventoryEventPublisher struct {
	publisher EventSink
	logger    *logger.Logger
}

// NewInventoryEventPublisher creates a new inventory event publisher
func NewInventoryEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*InventoryEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "inventory-service", log)
	if err != nil {
		return nil, err
	}

	return &InventoryEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// NewInventoryEventPublisherWithSink creates a publisher writing to the
// given sink, used by tests
func NewInventoryEventPublisherWithSink(sink EventSink, log *logger.Logger) *InventoryEventPublisher {
	return &InventoryEventPublisher{
		publisher: sink,
		logger:    log,
	}
}

// PublishBatchRegistered publishes a batch registered event
func (p *InventoryEventPublisher) PublishBatchRegistered(ctx context.Context, item *repository.Item, batch *repository.Batch, totalAvailable int) {
	if p == nil {
		return
	}

	supplier := ""
	if batch.Supplier != nil {
		supplier = *batch.Supplier
	}

	data := messaging.BatchRegisteredEvent{
		ItemID:         item.ID,
		ItemName:       item.Name,
		BatchID:        batch.ID,
		BatchNumber:    batch.BatchNumber,
		Quantity:       batch.Quantity,
		ExpirationDate: batch.ExpirationDate.Format("2006-01-02"),
		Supplier:       supplier,
		TotalAvailable: totalAvailable,
	}

	if err := p.publisher.Publish(ctx, messaging.EventBatchRegistered, data); err != nil {
		p.logger.Error().Err(err).Str("batch_number", batch.BatchNumber).Msg("failed to publish batch registered event")
	}
}

// PublishStockConsumed publishes a stock consumed event
func (p *InventoryEventPublisher) PublishStockConsumed(ctx context.Context, item *repository.Item, c *repository.Consumption, totalAvailable int, lowStock bool) {
	if p == nil {
		return
	}

	reason := ""
	if c.Reason != nil {
		reason = *c.Reason
	}

	draws := make([]messaging.EventDraw, len(c.Draws))
	for i, d := range c.Draws {
		draws[i] = messaging.EventDraw{
			BatchID:     d.BatchID,
			BatchNumber: d.BatchNumber,
			Quantity:    d.Quantity,
		}
	}

	data := messaging.StockConsumedEvent{
		ItemID:         item.ID,
		ItemName:       item.Name,
		Quantity:       c.Quantity,
		Reason:         reason,
		Draws:          draws,
		TotalAvailable: totalAvailable,
		LowStock:       lowStock,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockConsumed, data); err != nil {
		p.logger.Error().Err(err).Str("item", item.Name).Msg("failed to publish stock consumed event")
	}
}

// PublishAlertGenerated publishes an alert generated event
func (p *InventoryEventPublisher) PublishAlertGenerated(ctx context.Context, alert *repository.InventoryAlert) {
	if p == nil {
		return
	}

	var batchID int64
	batchNumber := ""
	if alert.BatchID != nil {
		batchID = *alert.BatchID
	}
	if alert.BatchNumber != nil {
		batchNumber = *alert.BatchNumber
	}

	data := messaging.AlertGeneratedEvent{
		AlertID:     alert.ID,
		AlertType:   alert.AlertType,
		Severity:    alert.Severity,
		Message:     alert.Message,
		ItemID:      alert.ItemID,
		ItemName:    alert.ItemName,
		BatchID:     batchID,
		BatchNumber: batchNumber,
	}

	if err := p.publisher.Publish(ctx, messaging.EventAlertGenerated, data); err != nil {
		p.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to publish alert generated event")
	}
}
