package catalog

import (
	"net/http"

	"github.com/bissquit/grocer/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrProductNotFound, Status: http.StatusNotFound},
	{Error: ErrNotProductOwner, Status: http.StatusForbidden, Message: "not authorized"},
	{Error: ErrProductInUse, Status: http.StatusConflict},
}

// Handler handles HTTP requests for the catalog module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new catalog handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: httputil.NewValidator(),
	}
}

// RegisterPublicRoutes registers read-only product routes.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/products", h.ListProducts)
	r.Get("/products/{id}", h.GetProduct)
}

// RegisterSellerRoutes registers product management routes (seller only).
func (h *Handler) RegisterSellerRoutes(r chi.Router) {
	r.Route("/seller/products", func(r chi.Router) {
		r.Get("/", h.ListSellerProducts)
		r.Post("/", h.CreateProduct)
		r.Patch("/{id}", h.UpdateProduct)
		r.Delete("/{id}", h.DeleteProduct)
	})
}

// CreateProductRequest represents the request body for creating a product.
type CreateProductRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Description string `json:"description"`
	Price       int64  `json:"price" validate:"gte=0"`
	Cost        int64  `json:"cost" validate:"gte=0"`
	Unit        string `json:"unit" validate:"required,max=32"`
	Available   *bool  `json:"available"`
}

// UpdateProductRequest represents the request body for updating a product.
type UpdateProductRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description"`
	Price       *int64  `json:"price" validate:"omitempty,gte=0"`
	Cost        *int64  `json:"cost" validate:"omitempty,gte=0"`
	Unit        *string `json:"unit" validate:"omitempty,min=1,max=32"`
	Available   *bool   `json:"available"`
}

// ListProducts handles GET /products.
// Only available products are listed unless include_unavailable=true.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter := ProductFilter{AvailableOnly: r.URL.Query().Get("include_unavailable") != "true"}
	if sellerID := r.URL.Query().Get("seller_id"); sellerID != "" {
		filter.SellerID = &sellerID
	}

	products, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, products)
}

// GetProduct handles GET /products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, product)
}

// ListSellerProducts handles GET /seller/products.
func (h *Handler) ListSellerProducts(w http.ResponseWriter, r *http.Request) {
	sellerID := httputil.GetUserID(r.Context())

	products, err := h.service.ListProducts(r.Context(), ProductFilter{SellerID: &sellerID})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, products)
}

// CreateProduct handles POST /seller/products.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	product, err := h.service.CreateProduct(r.Context(), httputil.GetUserID(r.Context()), CreateProductInput(req))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, product)
}

// UpdateProduct handles PATCH /seller/products/{id}.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req UpdateProductRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	product, err := h.service.UpdateProduct(r.Context(),
		httputil.GetUserID(r.Context()),
		chi.URLParam(r, "id"),
		UpdateProductInput(req),
	)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, product)
}

// DeleteProduct handles DELETE /seller/products/{id}.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	err := h.service.DeleteProduct(r.Context(), httputil.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
