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
	"github.com/tablekiosk/api/internal/ws"
	"go.uber.org/zap"
)

// CategoryStore defines the database methods needed by category handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type CategoryStore interface {
	ListCategoriesByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]database.Category, error)
	CreateCategory(ctx context.Context, arg database.CreateCategoryParams) (database.Category, error)
	UpdateCategory(ctx context.Context, arg database.UpdateCategoryParams) (database.Category, error)
	SoftDeleteCategory(ctx context.Context, arg database.SoftDeleteCategoryParams) (uuid.UUID, error)
}

// CategoryHandler handles menu category CRUD endpoints.
type CategoryHandler struct {
	store  CategoryStore
	pub    ws.Publisher
	logger *zap.Logger
}

// NewCategoryHandler creates a new CategoryHandler. pub may be nil.
func NewCategoryHandler(store CategoryStore, pub ws.Publisher, logger *zap.Logger) *CategoryHandler {
	if logger == nil {
		logger = zap.L()
	}
	return &CategoryHandler{store: store, pub: pub, logger: logger.Named("categories")}
}

// RegisterRoutes registers category CRUD endpoints on the given Chi router.
// Expected to be mounted at /restaurants/{rid}/admin/categories
func (h *CategoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type categoryRequest struct {
	Name        string `json:"name" validate:"required,max=80"`
	Description string `json:"description"`
	SortOrder   int32  `json:"sort_order" validate:"gte=0"`
}

type categoryResponse struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	Name         string    `json:"name"`
	Description  *string   `json:"description"`
	SortOrder    int32     `json:"sort_order"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

func toCategoryResponse(c database.Category) categoryResponse {
	return categoryResponse{
		ID:           c.ID,
		RestaurantID: c.RestaurantID,
		Name:         c.Name,
		Description:  textPtr(c.Description),
		SortOrder:    c.SortOrder,
		IsActive:     c.IsActive,
		CreatedAt:    c.CreatedAt,
	}
}

// --- Handlers ---

// List returns all active categories of the restaurant.
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}

	categories, err := h.store.ListCategoriesByRestaurant(r.Context(), restaurantID)
	if err != nil {
		h.logger.Error("list categories", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]categoryResponse, len(categories))
	for i, c := range categories {
		resp[i] = toCategoryResponse(c)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Create adds a new category.
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}

	var req categoryRequest
	if !decodeValid(w, r, &req) {
		return
	}

	category, err := h.store.CreateCategory(r.Context(), database.CreateCategoryParams{
		RestaurantID: restaurantID,
		Name:         req.Name,
		Description:  optionalText(req.Description),
		SortOrder:    req.SortOrder,
	})
	if err != nil {
		h.logger.Error("create category", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	publishMenuUpdated(r.Context(), h.pub, h.logger, restaurantID, "category", category.ID, "created")
	writeJSON(w, http.StatusCreated, toCategoryResponse(category))
}

// Update modifies an existing category.
func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}
	catID, ok := urlUUID(w, r, "id", "category")
	if !ok {
		return
	}

	var req categoryRequest
	if !decodeValid(w, r, &req) {
		return
	}

	category, err := h.store.UpdateCategory(r.Context(), database.UpdateCategoryParams{
		Name:         req.Name,
		Description:  optionalText(req.Description),
		SortOrder:    req.SortOrder,
		ID:           catID,
		RestaurantID: restaurantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "category not found"})
			return
		}
		h.logger.Error("update category", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	publishMenuUpdated(r.Context(), h.pub, h.logger, restaurantID, "category", category.ID, "updated")
	writeJSON(w, http.StatusOK, toCategoryResponse(category))
}

// Delete soft-deletes a category by setting is_active=false.
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}
	catID, ok := urlUUID(w, r, "id", "category")
	if !ok {
		return
	}

	_, err := h.store.SoftDeleteCategory(r.Context(), database.SoftDeleteCategoryParams{
		ID:           catID,
		RestaurantID: restaurantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "category not found"})
			return
		}
		h.logger.Error("delete category", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	publishMenuUpdated(r.Context(), h.pub, h.logger, restaurantID, "category", catID, "deleted")
	w.WriteHeader(http.StatusNoContent)
}
