package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-storefront/internal/auth"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/order"
	"ms-storefront/internal/utils"
)

type OrderService interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
	UpdateOrder(ctx context.Context, id string, update models.OrderUpdate) (*models.Order, error)
}

type Handler struct {
	OrderService OrderService
	Logger       *logger.Logger
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.OrderFilter{Status: models.OrderStatus(q.Get("status"))}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	orders, err := h.OrderService.ListOrders(r.Context(), filter)
	if err != nil {
		h.writeError(w, err, "Failed to fetch orders")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "orders": orders})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	o, err := h.OrderService.GetOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err, "Failed to fetch order")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "order": o})
}

// UpdateOrder handles PATCH with any subset of {status, notes}.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	var update models.OrderUpdate
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&update); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", "body must be a JSON object with status and/or notes")
		return
	}

	o, err := h.OrderService.UpdateOrder(r.Context(), orderID, update)
	if err != nil {
		h.writeError(w, err, "Failed to update order")
		return
	}

	by := "unknown"
	if account := auth.AdminFromContext(r.Context()); account != nil {
		by = account.Username
	}
	h.Logger.Info("API", "Order "+orderID+" updated by "+by)
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "order": o})
}

// writeError maps service errors to responses; title names the failed operation on a 500.
func (h *Handler) writeError(w http.ResponseWriter, err error, title string) {
	switch {
	case errors.Is(err, order.ErrValidation):
		utils.WriteError(w, http.StatusBadRequest, "Invalid request", err.Error())
	case errors.Is(err, order.ErrNotFound):
		utils.WriteError(w, http.StatusNotFound, "Order not found", "Order not found")
	default:
		h.Logger.Error("API", "Order request failed: "+err.Error())
		utils.WriteError(w, http.StatusInternalServerError, title, "Internal server error")
	}
}
