package orders

import (
	"net/http"
	"strings"

	"github.com/bissquit/grocer/internal/domain"
	"github.com/bissquit/grocer/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrOrderNotFound, Status: http.StatusNotFound},
	{Error: ErrProductsUnavailable, Status: http.StatusBadRequest},
	{Error: ErrDuplicateProduct, Status: http.StatusBadRequest},
	{Error: ErrNotAuthorized, Status: http.StatusForbidden},
	{Error: ErrInvalidStatus, Status: http.StatusBadRequest},
}

// Handler handles HTTP requests for the orders module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new orders handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: httputil.NewValidator(),
	}
}

// RegisterBuyerRoutes registers order placement and history routes.
func (h *Handler) RegisterBuyerRoutes(r chi.Router) {
	r.Post("/orders", h.PlaceOrder)
	r.Get("/orders", h.ListOrders)
}

// RegisterRoutes registers routes available to any authenticated user.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/orders/{id}", h.GetOrder)
}

// RegisterSellerRoutes registers fulfilment routes (seller only).
func (h *Handler) RegisterSellerRoutes(r chi.Router) {
	r.Get("/seller/orders", h.ListSellerOrders)
	r.Patch("/seller/orders/{id}", h.UpdateStatus)
}

// OrderItemRequest is a single requested order line.
type OrderItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// PlaceOrderRequest represents the request body for placing an order.
type PlaceOrderRequest struct {
	Items []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

// UpdateStatusRequest represents the request body for changing order status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// PlaceOrder handles POST /orders.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	input := PlaceOrderInput{Items: make([]ItemInput, 0, len(req.Items))}
	for _, item := range req.Items {
		input.Items = append(input.Items, ItemInput(item))
	}

	order, err := h.service.PlaceOrder(r.Context(), httputil.GetUserID(r.Context()), input)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, order)
}

// ListOrders handles GET /orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.List(r.Context(), httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, orders)
}

// GetOrder handles GET /orders/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, err := h.service.Get(ctx, httputil.GetUserID(ctx), httputil.GetUserType(ctx), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(ctx, w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, order)
}

// ListSellerOrders handles GET /seller/orders.
func (h *Handler) ListSellerOrders(w http.ResponseWriter, r *http.Request) {
	var status *domain.OrderStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := domain.OrderStatus(strings.ToLower(raw))
		status = &s
	}

	orders, err := h.service.ListForSeller(r.Context(), httputil.GetUserID(r.Context()), status)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, orders)
}

// UpdateStatus handles PATCH /seller/orders/{id}.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	order, err := h.service.UpdateStatus(r.Context(),
		httputil.GetUserID(r.Context()),
		chi.URLParam(r, "id"),
		domain.OrderStatus(strings.ToLower(req.Status)),
	)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, order)
}
