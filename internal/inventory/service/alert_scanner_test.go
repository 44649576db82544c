package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jumak/jumak-backend/internal/inventory/events"
	"github.com/jumak/jumak-backend/internal/inventory/repository"
	"github.com/jumak/jumak-backend/pkg/logger"
	"github.com/jumak/jumak-backend/pkg/messaging"
	"github.com/jumak/jumak-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScanner(t *testing.T) (*AlertScanner, *testutil.MockDB, *testutil.MockPublisher) {
	mockDB := testutil.NewMockDB(t)
	db := mockDB.Wrap()

	sink := testutil.NewMockPublisher()
	log := logger.New("test", "test")
	publisher := events.NewInventoryEventPublisherWithSink(sink, log)

	scanner := NewAlertScanner(
		repository.NewItemRepository(db),
		repository.NewBatchRepository(db),
		repository.NewAlertRepository(db),
		publisher,
		3,
		log,
	)
	scanner.now = func() time.Time { return day(0) }

	return scanner, mockDB, sink
}

func TestScanLowStock_CreatesAlertAndPublishes(t *testing.T) {
	scanner, mockDB, sink := newTestScanner(t)
	defer mockDB.Close()

	mockDB.ExpectQuery(`FROM items WHERE is_active = true ORDER BY name`).
		WillReturnRows(itemRows(7, "onion", 5, 2))
	mockDB.ExpectQuery(totalQuery).
		WillReturnRows(testutil.MockRows("sum").AddRow(2))
	mockDB.ExpectQuery(`SELECT EXISTS(`).
		WillReturnRows(testutil.MockRows("exists").AddRow(false))
	mockDB.ExpectQuery(`INSERT INTO inventory_alerts`).
		WithArgs(testutil.AnyUUID{}, repository.AlertTypeLowStock, int64(7), "onion",
			nil, nil, repository.SeverityWarning, sqlmock.AnyArg(), 2, 5, nil, nil).
		WillReturnRows(testutil.MockRows("created_at").AddRow(day(0)))

	var result ScanResult
	err := scanner.scanLowStock(context.Background(), &result)
	require.NoError(t, err)
	assert.Equal(t, 1, result.LowStock)
	assert.Equal(t, 0, result.Skipped)

	sink.AssertEventPublished(t, messaging.EventAlertGenerated)
	mockDB.ExpectationsWereMet(t)
}

func TestScanLowStock_SeverityCriticalWhenEmpty(t *testing.T) {
	scanner, mockDB, sink := newTestScanner(t)
	defer mockDB.Close()

	mockDB.ExpectQuery(`FROM items WHERE is_active = true ORDER BY name`).
		WillReturnRows(itemRows(7, "onion", 5, 0))
	mockDB.ExpectQuery(totalQuery).
		WillReturnRows(testutil.MockRows("sum").AddRow(nil))
	mockDB.ExpectQuery(`SELECT EXISTS(`).
		WillReturnRows(testutil.MockRows("exists").AddRow(false))
	mockDB.ExpectQuery(`INSERT INTO inventory_alerts`).
		WithArgs(testutil.AnyUUID{}, repository.AlertTypeLowStock, int64(7), "onion",
			nil, nil, repository.SeverityCritical, sqlmock.AnyArg(), 0, 5, nil, nil).
		WillReturnRows(testutil.MockRows("created_at").AddRow(day(0)))

	var result ScanResult
	err := scanner.scanLowStock(context.Background(), &result)
	require.NoError(t, err)
	assert.Equal(t, 1, result.LowStock)

	sink.AssertEventPublished(t, messaging.EventAlertGenerated)
	mockDB.ExpectationsWereMet(t)
}

func TestScanLowStock_DedupSkipsSameDay(t *testing.T) {
	scanner, mockDB, sink := newTestScanner(t)
	defer mockDB.Close()

	mockDB.ExpectQuery(`FROM items WHERE is_active = true ORDER BY name`).
		WillReturnRows(itemRows(7, "onion", 5, 2))
	mockDB.ExpectQuery(totalQuery).
		WillReturnRows(testutil.MockRows("sum").AddRow(2))
	// An alert was already raised today: no insert, no event
	mockDB.ExpectQuery(`SELECT EXISTS(`).
		WillReturnRows(testutil.MockRows("exists").AddRow(true))

	var result ScanResult
	err := scanner.scanLowStock(context.Background(), &result)
	require.NoError(t, err)
	assert.Equal(t, 0, result.LowStock)
	assert.Equal(t, 1, result.Skipped)

	sink.AssertNoEventsPublished(t)
	mockDB.ExpectationsWereMet(t)
}

func TestScanLowStock_AboveMinimumIgnored(t *testing.T) {
	scanner, mockDB, sink := newTestScanner(t)
	defer mockDB.Close()

	mockDB.ExpectQuery(`FROM items WHERE is_active = true ORDER BY name`).
		WillReturnRows(itemRows(7, "onion", 5, 20))
	mockDB.ExpectQuery(totalQuery).
		WillReturnRows(testutil.MockRows("sum").AddRow(20))

	var result ScanResult
	err := scanner.scanLowStock(context.Background(), &result)
	require.NoError(t, err)
	assert.Equal(t, 0, result.LowStock)

	sink.AssertNoEventsPublished(t)
	mockDB.ExpectationsWereMet(t)
}

func TestScanExpired_CriticalAlert(t *testing.T) {
	scanner, mockDB, sink := newTestScanner(t)
	defer mockDB.Close()

	expired := &repository.Batch{
		ID: 3, ItemID: 7, BatchNumber: "B003",
		Quantity: 10, UsedQuantity: 2,
		ExpirationDate: day(-2), ReceivedDate: day(-10),
	}

	mockDB.ExpectQuery(`AND b.expiration_date < $1`).
		WillReturnRows(batchRows(expired))
	mockDB.ExpectQuery(`FROM items WHERE id = $1`).
		WithArgs(int64(7)).
		WillReturnRows(itemRows(7, "onion", 5, 8))
	mockDB.ExpectQuery(`SELECT EXISTS(`).
		WillReturnRows(testutil.MockRows("exists").AddRow(false))
	mockDB.ExpectQuery(`INSERT INTO inventory_alerts`).
		WithArgs(testutil.AnyUUID{}, repository.AlertTypeExpired, int64(7), "onion",
			int64(3), "B003", repository.SeverityCritical, sqlmock.AnyArg(),
			8, nil, testutil.AnyTime{}, -2).
		WillReturnRows(testutil.MockRows("created_at").AddRow(day(0)))

	var result ScanResult
	err := scanner.scanExpired(context.Background(), &result)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Expired)

	sink.AssertEventPublished(t, messaging.EventAlertGenerated)
	mockDB.ExpectationsWereMet(t)
}
