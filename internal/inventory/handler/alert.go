package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jumak/jumak-backend/internal/inventory/repository"
	"github.com/jumak/jumak-backend/pkg/httputil"
	"github.com/jumak/jumak-backend/pkg/logger"
)

// AlertHandler handles alert endpoints
type AlertHandler struct {
	alertRepo *repository.AlertRepository
	logger    *logger.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(alertRepo *repository.AlertRepository, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		alertRepo: alertRepo,
		logger:    log,
	}
}

// List lists alerts, most severe and newest first
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	var acknowledged *bool
	if v := r.URL.Query().Get("acknowledged"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			acknowledged = &b
		}
	}

	alertType := r.URL.Query().Get("type")

	alerts, total, err := h.alertRepo.List(r.Context(), acknowledged, alertType, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}

	httputil.JSONWithMeta(w, http.StatusOK, alerts, &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

// Acknowledge marks an alert as handled
func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		AcknowledgedBy string `json:"acknowledged_by" validate:"required,max=255"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.alertRepo.Acknowledge(r.Context(), id, req.AcknowledgedBy); err != nil {
		httputil.Error(w, err)
		return
	}

	alert, err := h.alertRepo.GetByID(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alert)
}
