package subscriptions

import (
	"net/http"
	"strings"

	"github.com/bissquit/grocer/internal/domain"
	"github.com/bissquit/grocer/internal/pkg/httputil"
	"github.com/bissquit/grocer/internal/schedule"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrSubscriptionNotFound, Status: http.StatusNotFound},
	{Error: ErrNotOwner, Status: http.StatusForbidden},
	{Error: ErrEmptyItems, Status: http.StatusBadRequest},
	{Error: ErrInvalidQuantity, Status: http.StatusBadRequest},
	{Error: ErrDuplicateProduct, Status: http.StatusBadRequest},
	{Error: ErrUnknownProducts, Status: http.StatusBadRequest},
	{Error: schedule.ErrInvalidFrequency, Status: http.StatusBadRequest},
	{Error: schedule.ErrInvalidHour, Status: http.StatusBadRequest},
	{Error: schedule.ErrInvalidMinute, Status: http.StatusBadRequest},
	{Error: schedule.ErrDayOfWeekRequired, Status: http.StatusBadRequest},
	{Error: schedule.ErrInvalidDayOfWeek, Status: http.StatusBadRequest},
}

// Handler handles HTTP requests for the subscriptions module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new subscriptions handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: httputil.NewValidator(),
	}
}

// RegisterRoutes registers subscription routes (buyers only).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/subscriptions", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

// CreateSubscriptionRequest represents the request body for creating a subscription.
type CreateSubscriptionRequest struct {
	Name      string                    `json:"name" validate:"required,max=255"`
	Frequency string                    `json:"frequency" validate:"required"`
	DayOfWeek *int                      `json:"day_of_week"`
	Hour      int                       `json:"hour"`
	Minute    int                       `json:"minute"`
	Items     []domain.SubscriptionItem `json:"items" validate:"required,min=1,dive"`
}

// UpdateSubscriptionRequest represents the request body for updating a subscription.
// Items, when present, replace the whole item set.
type UpdateSubscriptionRequest struct {
	Name      *string                   `json:"name" validate:"omitempty,min=1,max=255"`
	Frequency *string                   `json:"frequency"`
	DayOfWeek *int                      `json:"day_of_week"`
	Hour      *int                      `json:"hour"`
	Minute    *int                      `json:"minute"`
	Active    *bool                     `json:"active"`
	Items     []domain.SubscriptionItem `json:"items" validate:"omitempty,dive"`
}

func parseFrequency(s string) domain.Frequency {
	return domain.Frequency(strings.ToLower(s))
}

// List handles GET /subscriptions.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	subs, err := h.service.List(r.Context(), httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, subs)
}

// Create handles POST /subscriptions.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSubscriptionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	sub, err := h.service.Create(r.Context(), httputil.GetUserID(r.Context()), CreateInput{
		Name:      req.Name,
		Frequency: parseFrequency(req.Frequency),
		DayOfWeek: req.DayOfWeek,
		Hour:      req.Hour,
		Minute:    req.Minute,
		Items:     req.Items,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, sub)
}

// Get handles GET /subscriptions/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sub, err := h.service.Get(r.Context(), httputil.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, sub)
}

// Update handles PATCH /subscriptions/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateSubscriptionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	input := UpdateInput{
		Name:      req.Name,
		DayOfWeek: req.DayOfWeek,
		Hour:      req.Hour,
		Minute:    req.Minute,
		Active:    req.Active,
		Items:     req.Items,
	}
	if req.Frequency != nil {
		f := parseFrequency(*req.Frequency)
		input.Frequency = &f
	}

	sub, err := h.service.Update(r.Context(), httputil.GetUserID(r.Context()), chi.URLParam(r, "id"), input)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, sub)
}

// Delete handles DELETE /subscriptions/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.service.Delete(r.Context(), httputil.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
