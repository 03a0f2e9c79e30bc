package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tablekiosk/api/internal/database"
	"github.com/tablekiosk/api/internal/topping"
	"github.com/tablekiosk/api/internal/ws"
	"go.uber.org/zap"
)

// ToppingStore defines the database methods needed by topping handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ToppingStore interface {
	// Topping categories
	ListToppingCategoriesByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]database.ToppingCategory, error)
	GetToppingCategory(ctx context.Context, arg database.GetToppingCategoryParams) (database.ToppingCategory, error)
	CreateToppingCategory(ctx context.Context, arg database.CreateToppingCategoryParams) (database.ToppingCategory, error)
	UpdateToppingCategory(ctx context.Context, arg database.UpdateToppingCategoryParams) (database.ToppingCategory, error)
	SoftDeleteToppingCategory(ctx context.Context, arg database.SoftDeleteToppingCategoryParams) (uuid.UUID, error)

	// Toppings
	ListToppingsByCategory(ctx context.Context, toppingCategoryID uuid.UUID) ([]database.Topping, error)
	CreateTopping(ctx context.Context, arg database.CreateToppingParams) (database.Topping, error)
	UpdateTopping(ctx context.Context, arg database.UpdateToppingParams) (database.Topping, error)
	SoftDeleteTopping(ctx context.Context, arg database.SoftDeleteToppingParams) (uuid.UUID, error)
}

// ToppingHandler handles topping category and topping CRUD endpoints.
type ToppingHandler struct {
	store  ToppingStore
	pub    ws.Publisher
	logger *zap.Logger
}

// NewToppingHandler creates a new ToppingHandler. pub may be nil.
func NewToppingHandler(store ToppingStore, pub ws.Publisher, logger *zap.Logger) *ToppingHandler {
	if logger == nil {
		logger = zap.L()
	}
	return &ToppingHandler{store: store, pub: pub, logger: logger.Named("toppings")}
}

// RegisterRoutes registers topping category and topping endpoints.
// Expected to be mounted at /restaurants/{rid}/admin/topping-categories
func (h *ToppingHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.ListCategories)
	r.Post("/", h.CreateCategory)
	r.Put("/{tcid}", h.UpdateCategory)
	r.Delete("/{tcid}", h.DeleteCategory)

	r.Get("/{tcid}/toppings", h.ListToppings)
	r.Post("/{tcid}/toppings", h.CreateTopping)
	r.Put("/{tcid}/toppings/{tid}", h.UpdateTopping)
	r.Delete("/{tcid}/toppings/{tid}", h.DeleteTopping)
}

// --- Request / Response types ---

type toppingCategoryRequest struct {
	Name         string `json:"name" validate:"required,max=80"`
	MinSelection int32  `json:"min_selection"`
	MaxSelection int32  `json:"max_selection"`
	IsRequired   bool   `json:"is_required"`
	SortOrder    int32  `json:"sort_order" validate:"gte=0"`
}

type toppingCategoryResponse struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	Name         string    `json:"name"`
	MinSelection int32     `json:"min_selection"`
	MaxSelection int32     `json:"max_selection"`
	IsRequired   bool      `json:"is_required"`
	SortOrder    int32     `json:"sort_order"`
	CreatedAt    time.Time `json:"created_at"`
}

func toToppingCategoryResponse(c database.ToppingCategory) toppingCategoryResponse {
	return toppingCategoryResponse{
		ID:           c.ID,
		RestaurantID: c.RestaurantID,
		Name:         c.Name,
		MinSelection: c.MinSelection,
		MaxSelection: c.MaxSelection,
		IsRequired:   c.IsRequired,
		SortOrder:    c.SortOrder,
		CreatedAt:    c.CreatedAt,
	}
}

type toppingRequest struct {
	Name        string `json:"name" validate:"required,max=80"`
	Price       string `json:"price" validate:"required"`
	MaxQuantity int32  `json:"max_quantity" validate:"gte=1,lte=20"`
	SortOrder   int32  `json:"sort_order" validate:"gte=0"`
}

type toppingResponse struct {
	ID                uuid.UUID `json:"id"`
	ToppingCategoryID uuid.UUID `json:"topping_category_id"`
	Name              string    `json:"name"`
	Price             string    `json:"price"`
	MaxQuantity       int32     `json:"max_quantity"`
	SortOrder         int32     `json:"sort_order"`
	CreatedAt         time.Time `json:"created_at"`
}

func toToppingResponse(t database.Topping) toppingResponse {
	return toppingResponse{
		ID:                t.ID,
		ToppingCategoryID: t.ToppingCategoryID,
		Name:              t.Name,
		Price:             numericToString(t.Price),
		MaxQuantity:       t.MaxQuantity,
		SortOrder:         t.SortOrder,
		CreatedAt:         t.CreatedAt,
	}
}

// verifyToppingCategory checks that the topping category in the URL belongs
// to the restaurant. Returns the restaurant ID and topping category ID, or
// writes an error response.
func (h *ToppingHandler) verifyToppingCategory(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	tcID, ok := urlUUID(w, r, "tcid", "topping category")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	_, err := h.store.GetToppingCategory(r.Context(), database.GetToppingCategoryParams{
		ID:           tcID,
		RestaurantID: restaurantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "topping category not found"})
			return uuid.Nil, uuid.Nil, false
		}
		h.logger.Error("verify topping category", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return uuid.Nil, uuid.Nil, false
	}
	return restaurantID, tcID, true
}

// --- Topping category handlers ---

// ListCategories returns all active topping categories of the restaurant.
func (h *ToppingHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}

	cats, err := h.store.ListToppingCategoriesByRestaurant(r.Context(), restaurantID)
	if err != nil {
		h.logger.Error("list topping categories", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]toppingCategoryResponse, len(cats))
	for i, c := range cats {
		resp[i] = toToppingCategoryResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeToppingCategory(w http.ResponseWriter, r *http.Request) (toppingCategoryRequest, bool) {
	var req toppingCategoryRequest
	if !decodeValid(w, r, &req) {
		return req, false
	}
	cat := topping.Category{
		Name:         req.Name,
		MinSelection: int(req.MinSelection),
		MaxSelection: int(req.MaxSelection),
		Required:     req.IsRequired,
	}
	if err := cat.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return req, false
	}
	return req, true
}

// CreateCategory adds a topping category.
func (h *ToppingHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}
	req, ok := decodeToppingCategory(w, r)
	if !ok {
		return
	}

	cat, err := h.store.CreateToppingCategory(r.Context(), database.CreateToppingCategoryParams{
		RestaurantID: restaurantID,
		Name:         req.Name,
		MinSelection: req.MinSelection,
		MaxSelection: req.MaxSelection,
		IsRequired:   req.IsRequired,
		SortOrder:    req.SortOrder,
	})
	if err != nil {
		h.logger.Error("create topping category", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	publishMenuUpdated(r.Context(), h.pub, h.logger, restaurantID, "topping_category", cat.ID, "created")
	writeJSON(w, http.StatusCreated, toToppingCategoryResponse(cat))
}

// UpdateCategory modifies a topping category.
func (h *ToppingHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}
	tcID, ok := urlUUID(w, r, "tcid", "topping category")
	if !ok {
		return
	}
	req, ok := decodeToppingCategory(w, r)
	if !ok {
		return
	}

	cat, err := h.store.UpdateToppingCategory(r.Context(), database.UpdateToppingCategoryParams{
		Name:         req.Name,
		MinSelection: req.MinSelection,
		MaxSelection: req.MaxSelection,
		IsRequired:   req.IsRequired,
		SortOrder:    req.SortOrder,
		ID:           tcID,
		RestaurantID: restaurantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "topping category not found"})
			return
		}
		h.logger.Error("update topping category", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	publishMenuUpdated(r.Context(), h.pub, h.logger, restaurantID, "topping_category", cat.ID, "updated")
	writeJSON(w, http.StatusOK, toToppingCategoryResponse(cat))
}

// DeleteCategory soft-deletes a topping category. Menu items linked to it
// stop offering it.
func (h *ToppingHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}
	tcID, ok := urlUUID(w, r, "tcid", "topping category")
	if !ok {
		return
	}

	_, err := h.store.SoftDeleteToppingCategory(r.Context(), database.SoftDeleteToppingCategoryParams{
		ID:           tcID,
		RestaurantID: restaurantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "topping category not found"})
			return
		}
		h.logger.Error("delete topping category", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	publishMenuUpdated(r.Context(), h.pub, h.logger, restaurantID, "topping_category", tcID, "deleted")
	w.WriteHeader(http.StatusNoContent)
}

// --- Topping handlers ---

// ListToppings returns the active toppings of a topping category.
func (h *ToppingHandler) ListToppings(w http.ResponseWriter, r *http.Request) {
	_, tcID, ok := h.verifyToppingCategory(w, r)
	if !ok {
		return
	}

	toppings, err := h.store.ListToppingsByCategory(r.Context(), tcID)
	if err != nil {
		h.logger.Error("list toppings", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]toppingResponse, len(toppings))
	for i, t := range toppings {
		resp[i] = toToppingResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeTopping(w http.ResponseWriter, r *http.Request) (toppingRequest, bool) {
	var req toppingRequest
	if !decodeValid(w, r, &req) {
		return req, false
	}
	if _, err := parsePrice(req.Price); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "price must be a non-negative decimal"})
		return req, false
	}
	return req, true
}

// CreateTopping adds a topping to a topping category.
func (h *ToppingHandler) CreateTopping(w http.ResponseWriter, r *http.Request) {
	restaurantID, tcID, ok := h.verifyToppingCategory(w, r)
	if !ok {
		return
	}
	req, ok := decodeTopping(w, r)
	if !ok {
		return
	}
	price, _ := parsePrice(req.Price)

	t, err := h.store.CreateTopping(r.Context(), database.CreateToppingParams{
		ToppingCategoryID: tcID,
		Name:              req.Name,
		Price:             price,
		MaxQuantity:       req.MaxQuantity,
		SortOrder:         req.SortOrder,
	})
	if err != nil {
		h.logger.Error("create topping", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	publishMenuUpdated(r.Context(), h.pub, h.logger, restaurantID, "topping", t.ID, "created")
	writeJSON(w, http.StatusCreated, toToppingResponse(t))
}

// UpdateTopping modifies a topping.
func (h *ToppingHandler) UpdateTopping(w http.ResponseWriter, r *http.Request) {
	restaurantID, tcID, ok := h.verifyToppingCategory(w, r)
	if !ok {
		return
	}
	toppingID, ok := urlUUID(w, r, "tid", "topping")
	if !ok {
		return
	}
	req, ok := decodeTopping(w, r)
	if !ok {
		return
	}
	price, _ := parsePrice(req.Price)

	t, err := h.store.UpdateTopping(r.Context(), database.UpdateToppingParams{
		Name:              req.Name,
		Price:             price,
		MaxQuantity:       req.MaxQuantity,
		SortOrder:         req.SortOrder,
		ID:                toppingID,
		ToppingCategoryID: tcID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "topping not found"})
			return
		}
		h.logger.Error("update topping", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	publishMenuUpdated(r.Context(), h.pub, h.logger, restaurantID, "topping", t.ID, "updated")
	writeJSON(w, http.StatusOK, toToppingResponse(t))
}

// DeleteTopping soft-deletes a topping.
func (h *ToppingHandler) DeleteTopping(w http.ResponseWriter, r *http.Request) {
	restaurantID, tcID, ok := h.verifyToppingCategory(w, r)
	if !ok {
		return
	}
	toppingID, ok := urlUUID(w, r, "tid", "topping")
	if !ok {
		return
	}

	_, err := h.store.SoftDeleteTopping(r.Context(), database.SoftDeleteToppingParams{
		ID:                toppingID,
		ToppingCategoryID: tcID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "topping not found"})
			return
		}
		h.logger.Error("delete topping", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	publishMenuUpdated(r.Context(), h.pub, h.logger, restaurantID, "topping", toppingID, "deleted")
	w.WriteHeader(http.StatusNoContent)
}
