package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jumak/jumak-backend/internal/inventory/events"
	"github.com/jumak/jumak-backend/internal/inventory/repository"
	"github.com/jumak/jumak-backend/pkg/errors"
	"github.com/jumak/jumak-backend/pkg/logger"
	"github.com/jumak/jumak-backend/pkg/messaging"
	"github.com/jumak/jumak-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	itemQuery  = `FROM items WHERE name = $1 AND is_active = true FOR UPDATE`
	batchQuery = `WHERE item_id = $1 AND used_quantity < quantity AND expiration_date >= $2`
	totalQuery = `SELECT SUM(quantity - used_quantity) FROM batches`
	cacheQuery = `UPDATE items SET current_quantity = $2`
)

func newTestService(t *testing.T) (*InventoryService, *testutil.MockDB, *testutil.MockPublisher) {
	mockDB := testutil.NewMockDB(t)
	db := mockDB.Wrap()

	sink := testutil.NewMockPublisher()
	log := logger.New("test", "test")
	publisher := events.NewInventoryEventPublisherWithSink(sink, log)

	svc := NewInventoryService(
		db,
		repository.NewItemRepository(db),
		repository.NewBatchRepository(db),
		repository.NewConsumptionRepository(db),
		publisher,
		log,
	)
	svc.now = func() time.Time { return day(0) }

	return svc, mockDB, sink
}

func itemRows(id int64, name string, minQuantity, currentQuantity int) *sqlmock.Rows {
	return testutil.MockRows("id", "name", "unit", "category", "min_quantity", "current_quantity", "is_active", "created_at", "updated_at").
		AddRow(id, name, "kg", nil, minQuantity, currentQuantity, true, day(0), day(0))
}

func batchRows(batches ...*repository.Batch) *sqlmock.Rows {
	rows := testutil.MockRows("id", "item_id", "batch_number", "quantity", "used_quantity",
		"expiration_date", "received_date", "supplier", "purchase_price", "created_at")
	for _, b := range batches {
		rows.AddRow(b.ID, b.ItemID, b.BatchNumber, b.Quantity, b.UsedQuantity,
			b.ExpirationDate, b.ReceivedDate, b.Supplier, b.PurchasePrice, b.CreatedAt)
	}
	return rows
}

func TestConsume_InsufficientStock_NoMutation(t *testing.T) {
	svc, mockDB, sink := newTestService(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(itemQuery).WithArgs("onion").
		WillReturnRows(itemRows(7, "onion", 5, 10))
	mockDB.ExpectQuery(batchQuery).
		WillReturnRows(batchRows(
			&repository.Batch{ID: 1, ItemID: 7, BatchNumber: "B1", Quantity: 5, ExpirationDate: day(2), ReceivedDate: day(-1)},
			&repository.Batch{ID: 2, ItemID: 7, BatchNumber: "B2", Quantity: 10, ExpirationDate: day(5), ReceivedDate: day(-1)},
		))
	// No batch updates, no journal insert: the transaction rolls back
	mockDB.ExpectRollback()

	_, err := svc.Consume(context.Background(), ConsumeInput{ItemName: "onion", Quantity: 16})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))
	assert.Contains(t, err.Error(), "requested 16, available 15")

	sink.AssertNoEventsPublished(t)
	mockDB.ExpectationsWereMet(t)
}

func TestConsume_ItemNotFound(t *testing.T) {
	svc, mockDB, sink := newTestService(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(itemQuery).WithArgs("truffle").
		WillReturnRows(testutil.MockRows("id"))
	mockDB.ExpectRollback()

	_, err := svc.Consume(context.Background(), ConsumeInput{ItemName: "truffle", Quantity: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	sink.AssertNoEventsPublished(t)
	mockDB.ExpectationsWereMet(t)
}

func TestConsume_NonPositiveQuantity(t *testing.T) {
	svc, mockDB, sink := newTestService(t)
	defer mockDB.Close()

	// NotFound outranks InvalidInput: the item is looked up first
	mockDB.ExpectBegin()
	mockDB.ExpectQuery(itemQuery).WithArgs("onion").
		WillReturnRows(itemRows(7, "onion", 5, 10))
	mockDB.ExpectRollback()

	_, err := svc.Consume(context.Background(), ConsumeInput{ItemName: "onion", Quantity: 0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	sink.AssertNoEventsPublished(t)
	mockDB.ExpectationsWereMet(t)
}

func TestConsume_SpansBatchesAndPublishes(t *testing.T) {
	svc, mockDB, sink := newTestService(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(itemQuery).WithArgs("onion").
		WillReturnRows(itemRows(7, "onion", 5, 15))
	mockDB.ExpectQuery(batchQuery).
		WillReturnRows(batchRows(
			&repository.Batch{ID: 1, ItemID: 7, BatchNumber: "B1", Quantity: 5, ExpirationDate: day(2), ReceivedDate: day(-1)},
			&repository.Batch{ID: 2, ItemID: 7, BatchNumber: "B2", Quantity: 10, ExpirationDate: day(5), ReceivedDate: day(-1)},
		))
	mockDB.ExpectExec(`UPDATE batches SET used_quantity = used_quantity + $2`).
		WithArgs(int64(1), 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectExec(`UPDATE batches SET used_quantity = used_quantity + $2`).
		WithArgs(int64(2), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectQuery(`INSERT INTO consumptions`).
		WillReturnRows(testutil.MockRows("created_at").AddRow(day(0)))
	mockDB.ExpectQuery(totalQuery).
		WillReturnRows(testutil.MockRows("sum").AddRow(8))
	mockDB.ExpectExec(cacheQuery).
		WithArgs(int64(7), 8).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	result, err := svc.Consume(context.Background(), ConsumeInput{ItemName: "onion", Quantity: 7})
	require.NoError(t, err)

	require.Len(t, result.Consumption.Draws, 2)
	assert.Equal(t, 5, result.Consumption.Draws[0].Quantity)
	assert.Equal(t, 2, result.Consumption.Draws[1].Quantity)
	assert.Equal(t, 8, result.TotalAvailable)
	assert.False(t, result.LowStock)

	sink.AssertEventPublished(t, messaging.EventStockConsumed)
	mockDB.ExpectationsWereMet(t)
}

func TestRegister_ExpirationMustBeFuture(t *testing.T) {
	svc, mockDB, sink := newTestService(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(itemQuery).WithArgs("onion").
		WillReturnRows(itemRows(7, "onion", 5, 0))
	mockDB.ExpectRollback()

	// Expiring today is rejected for registration even though such stock
	// still counts as available
	_, err := svc.Register(context.Background(), RegisterInput{
		ItemName:       "onion",
		Quantity:       10,
		ExpirationDate: day(0),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	sink.AssertNoEventsPublished(t)
	mockDB.ExpectationsWereMet(t)
}

func TestRegister_BuildsBatchNumberAndPublishes(t *testing.T) {
	svc, mockDB, sink := newTestService(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(itemQuery).WithArgs("onion").
		WillReturnRows(itemRows(7, "onion", 5, 0))
	mockDB.ExpectQuery(`SELECT COUNT(*) FROM batches WHERE item_id = $1 AND received_date = $2`).
		WithArgs(int64(7), day(0)).
		WillReturnRows(testutil.MockRows("count").AddRow(1))
	mockDB.ExpectQuery(`INSERT INTO batches`).
		WillReturnRows(testutil.MockRows("id", "created_at").AddRow(int64(3), day(0)))
	mockDB.ExpectQuery(totalQuery).
		WillReturnRows(testutil.MockRows("sum").AddRow(10))
	mockDB.ExpectExec(cacheQuery).
		WithArgs(int64(7), 10).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	result, err := svc.Register(context.Background(), RegisterInput{
		ItemName:       "onion",
		Quantity:       10,
		ExpirationDate: day(5),
	})
	require.NoError(t, err)

	// One batch already received today, so the daily sequence is 002
	assert.Equal(t, "202603107002", result.Batch.BatchNumber)
	assert.Equal(t, 10, result.TotalAvailable)

	sink.AssertEventPublished(t, messaging.EventBatchRegistered)
	mockDB.ExpectationsWereMet(t)
}

func TestBatchNumberFormat(t *testing.T) {
	assert.Equal(t, "202603107001", batchNumber(day(0), 7, 1))
	assert.Equal(t, "2026031042013", batchNumber(day(0), 42, 13))
}
