package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jumak/jumak-backend/internal/inventory/service"
	"github.com/jumak/jumak-backend/pkg/errors"
	"github.com/jumak/jumak-backend/pkg/httputil"
	"github.com/jumak/jumak-backend/pkg/logger"
)

// InventoryHandler handles receipt, consumption and status endpoints
type InventoryHandler struct {
	service *service.InventoryService
	scanner *service.AlertScanner
	logger  *logger.Logger
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(svc *service.InventoryService, scanner *service.AlertScanner, log *logger.Logger) *InventoryHandler {
	return &InventoryHandler{
		service: svc,
		scanner: scanner,
		logger:  log,
	}
}

// Register books a received delivery into the ledger
func (h *InventoryHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemName       string   `json:"item_name" validate:"required,max=255"`
		Quantity       int      `json:"quantity" validate:"required,gt=0"`
		ExpirationDate string   `json:"expiration_date" validate:"required,datetime=2006-01-02"`
		Supplier       *string  `json:"supplier,omitempty" validate:"omitempty,max=255"`
		PurchasePrice  *float64 `json:"purchase_price,omitempty" validate:"omitempty,gte=0"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	expiration, err := time.Parse("2006-01-02", req.ExpirationDate)
	if err != nil {
		httputil.Error(w, errors.InvalidInput("expiration_date must be YYYY-MM-DD"))
		return
	}

	result, err := h.service.Register(r.Context(), service.RegisterInput{
		ItemName:       req.ItemName,
		Quantity:       req.Quantity,
		ExpirationDate: expiration,
		Supplier:       req.Supplier,
		PurchasePrice:  req.PurchasePrice,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, result)
}

// Consume draws stock from the ledger
func (h *InventoryHandler) Consume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemName string  `json:"item_name" validate:"required,max=255"`
		Quantity int     `json:"quantity" validate:"required,gt=0"`
		Reason   *string `json:"reason,omitempty" validate:"omitempty,max=500"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.Consume(r.Context(), service.ConsumeInput{
		ItemName: req.ItemName,
		Quantity: req.Quantity,
		Reason:   req.Reason,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// Status reports an item's availability
func (h *InventoryHandler) Status(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	status, err := h.service.Status(r.Context(), name)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, status)
}

// Usage returns the consumption journal for an item, newest first
func (h *InventoryHandler) Usage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	consumptions, err := h.service.Usage(r.Context(), name, limit)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, consumptions)
}

// CheckLowStock lists items at or below their minimum quantity
func (h *InventoryHandler) CheckLowStock(w http.ResponseWriter, r *http.Request) {
	reports, err := h.scanner.CheckLowStock(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, reports)
}

// CheckExpiring lists batches expiring within the scan horizon
func (h *InventoryHandler) CheckExpiring(w http.ResponseWriter, r *http.Request) {
	reports, err := h.scanner.CheckExpiring(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, reports)
}

// CheckExpired lists batches already past expiration
func (h *InventoryHandler) CheckExpired(w http.ResponseWriter, r *http.Request) {
	reports, err := h.scanner.CheckExpired(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, reports)
}

// Scan triggers one alert scan pass on demand
func (h *InventoryHandler) Scan(w http.ResponseWriter, r *http.Request) {
	result := h.scanner.ScanAll(r.Context())
	httputil.JSON(w, http.StatusOK, result)
}
