package transport

import (
	"net/http"

	"toko-online/internal/domain"
	"toko-online/internal/middleware"
	"toko-online/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutRequest represents the checkout request payload
type CheckoutRequest struct {
	Items []CheckoutItem `json:"items" validate:"dive"`
}

// CheckoutItem is one requested cart line
type CheckoutItem struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

// OrderHandler handles HTTP requests for checkout and order history
type OrderHandler struct {
	checkout service.CheckoutService
	logger   *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(checkout service.CheckoutService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		checkout: checkout,
		logger:   logger,
	}
}

// RegisterRoutes registers all order routes; every one requires a token
func (h *OrderHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/checkout", h.Checkout)
		r.Get("/my-orders", h.MyOrders)
		r.Delete("/{id}/cancel", h.Cancel)
	})
}

// Checkout converts the posted cart into a paid order
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r)
	if !ok {
		return
	}

	var req CheckoutRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Checkout validation failed", zap.Error(err))
		respondWithDecodeError(w, err)
		return
	}

	items := make([]domain.CartItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = domain.CartItem{
			ProductID: uuid.MustParse(item.ProductID),
			Quantity:  item.Quantity,
		}
	}

	order, err := h.checkout.Checkout(r.Context(), principal.UserID, items)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	respond(w, http.StatusCreated, "checkout successful", order)
}

// MyOrders lists the caller's orders, newest first
func (h *OrderHandler) MyOrders(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r)
	if !ok {
		return
	}

	orders, err := h.checkout.ListOrders(r.Context(), principal.UserID)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	respond(w, http.StatusOK, "orders retrieved", orders)
}

// Cancel cancels one of the caller's orders and restores its stock
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r)
	if !ok {
		return
	}

	id, ok := pathID(w, r, "order")
	if !ok {
		return
	}

	order, err := h.checkout.CancelOrder(r.Context(), principal.UserID, id)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	respond(w, http.StatusOK, "order cancelled", order)
}
