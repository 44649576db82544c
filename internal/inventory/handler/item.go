package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jumak/jumak-backend/internal/inventory/service"
	"github.com/jumak/jumak-backend/pkg/httputil"
	"github.com/jumak/jumak-backend/pkg/logger"
)

// ItemHandler handles catalog item endpoints
type ItemHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewItemHandler creates a new item handler
func NewItemHandler(svc *service.InventoryService, log *logger.Logger) *ItemHandler {
	return &ItemHandler{
		service: svc,
		logger:  log,
	}
}

// List lists catalog items
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	category := r.URL.Query().Get("category")

	items, total, err := h.service.ListItems(r.Context(), page, perPage, category)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}

	httputil.JSONWithMeta(w, http.StatusOK, items, &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

// Get gets an item by name
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	item, err := h.service.GetItemByName(r.Context(), name)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// Create creates a new catalog item
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.CreateItemInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&in); err != nil {
		httputil.Error(w, err)
		return
	}

	item, err := h.service.CreateItem(r.Context(), in)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, item)
}

// Update updates the mutable fields of an item
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req struct {
		Unit        string  `json:"unit" validate:"required,max=50"`
		Category    *string `json:"category,omitempty" validate:"omitempty,max=100"`
		MinQuantity int     `json:"min_quantity"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	item, err := h.service.GetItemByName(r.Context(), name)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	item.Unit = req.Unit
	item.Category = req.Category
	item.MinQuantity = req.MinQuantity
	if err := h.service.UpdateItem(r.Context(), item); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// Deactivate soft-deactivates an item
func (h *ItemHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	item, err := h.service.GetItemByName(r.Context(), name)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.DeactivateItem(r.Context(), item.ID); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
