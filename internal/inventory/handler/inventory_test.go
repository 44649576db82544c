package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jumak/jumak-backend/internal/inventory/handler"
	"github.com/jumak/jumak-backend/internal/inventory/repository"
	"github.com/jumak/jumak-backend/internal/inventory/service"
	"github.com/jumak/jumak-backend/pkg/httputil"
	"github.com/jumak/jumak-backend/pkg/logger"
	"github.com/jumak/jumak-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (chi.Router, *testutil.MockDB) {
	mockDB := testutil.NewMockDB(t)
	db := mockDB.Wrap()
	log := logger.New("test", "test")

	itemRepo := repository.NewItemRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	alertRepo := repository.NewAlertRepository(db)

	svc := service.NewInventoryService(db, itemRepo, batchRepo,
		repository.NewConsumptionRepository(db), nil, log)
	scanner := service.NewAlertScanner(itemRepo, batchRepo, alertRepo, nil, 3, log)

	inventoryHandler := handler.NewInventoryHandler(svc, scanner, log)
	itemHandler := handler.NewItemHandler(svc, log)

	r := chi.NewRouter()
	r.Post("/receipts", inventoryHandler.Register)
	r.Post("/consumptions", inventoryHandler.Consume)
	r.Get("/items/{name}/status", inventoryHandler.Status)
	r.Post("/items", itemHandler.Create)

	return r, mockDB
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestConsumeEndpoint_InsufficientStock(t *testing.T) {
	router, mockDB := newTestRouter(t)
	defer mockDB.Close()

	now := time.Now()
	mockDB.ExpectBegin()
	mockDB.ExpectQuery(`FROM items WHERE name = $1 AND is_active = true FOR UPDATE`).
		WithArgs("onion").
		WillReturnRows(testutil.MockRows("id", "name", "unit", "category", "min_quantity", "current_quantity", "is_active", "created_at", "updated_at").
			AddRow(int64(7), "onion", "kg", nil, 5, 3, true, now, now))
	mockDB.ExpectQuery(`WHERE item_id = $1 AND used_quantity < quantity`).
		WillReturnRows(testutil.MockRows("id", "item_id", "batch_number", "quantity", "used_quantity",
			"expiration_date", "received_date", "supplier", "purchase_price", "created_at").
			AddRow(int64(1), int64(7), "B1", 3, 0, now.AddDate(0, 0, 5), now, nil, nil, now))
	mockDB.ExpectRollback()

	req := httptest.NewRequest(http.MethodPost, "/consumptions",
		strings.NewReader(`{"item_name":"onion","quantity":10}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INSUFFICIENT_STOCK", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "requested 10, available 3")

	mockDB.ExpectationsWereMet(t)
}

func TestConsumeEndpoint_ItemNotFound(t *testing.T) {
	router, mockDB := newTestRouter(t)
	defer mockDB.Close()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(`FROM items WHERE name = $1 AND is_active = true FOR UPDATE`).
		WithArgs("truffle").
		WillReturnRows(testutil.MockRows("id"))
	mockDB.ExpectRollback()

	req := httptest.NewRequest(http.MethodPost, "/consumptions",
		strings.NewReader(`{"item_name":"truffle","quantity":1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)

	mockDB.ExpectationsWereMet(t)
}

func TestConsumeEndpoint_ValidationFailure(t *testing.T) {
	router, mockDB := newTestRouter(t)
	defer mockDB.Close()

	// Zero quantity never reaches the database
	req := httptest.NewRequest(http.MethodPost, "/consumptions",
		strings.NewReader(`{"item_name":"onion","quantity":0}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)

	mockDB.ExpectationsWereMet(t)
}

func TestRegisterEndpoint_BadDateFormat(t *testing.T) {
	router, mockDB := newTestRouter(t)
	defer mockDB.Close()

	req := httptest.NewRequest(http.MethodPost, "/receipts",
		strings.NewReader(`{"item_name":"onion","quantity":5,"expiration_date":"tomorrow"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)

	mockDB.ExpectationsWereMet(t)
}

func TestStatusEndpoint_ReportsAvailability(t *testing.T) {
	router, mockDB := newTestRouter(t)
	defer mockDB.Close()

	now := time.Now()
	mockDB.ExpectQuery(`FROM items WHERE name = $1 AND is_active = true`).
		WithArgs("onion").
		WillReturnRows(testutil.MockRows("id", "name", "unit", "category", "min_quantity", "current_quantity", "is_active", "created_at", "updated_at").
			AddRow(int64(7), "onion", "kg", nil, 5, 8, true, now, now))
	mockDB.ExpectQuery(`FROM batches WHERE item_id = $1`).
		WillReturnRows(testutil.MockRows("id", "item_id", "batch_number", "quantity", "used_quantity",
			"expiration_date", "received_date", "supplier", "purchase_price", "created_at").
			AddRow(int64(1), int64(7), "B1", 10, 2, now.AddDate(0, 0, 3), now, nil, nil, now))

	req := httptest.NewRequest(http.MethodGet, "/items/onion/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)

	var status struct {
		TotalAvailable int  `json:"total_available"`
		IsLowStock     bool `json:"is_low_stock"`
	}
	require.NoError(t, json.Unmarshal(data, &status))
	assert.Equal(t, 8, status.TotalAvailable)
	assert.False(t, status.IsLowStock)

	mockDB.ExpectationsWereMet(t)
}

func TestCreateItemEndpoint_NegativeThreshold(t *testing.T) {
	router, mockDB := newTestRouter(t)
	defer mockDB.Close()

	req := httptest.NewRequest(http.MethodPost, "/items",
		strings.NewReader(`{"name":"onion","unit":"kg","min_quantity":-1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)

	mockDB.ExpectationsWereMet(t)
}
