package handler

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tablekiosk/api/internal/database"
	"github.com/tablekiosk/api/internal/service"
	"github.com/tablekiosk/api/internal/storage"
	"github.com/tablekiosk/api/internal/ws"
	"go.uber.org/zap"
)

const maxImageBytes = 5 << 20

// MenuItemStore defines the database methods needed by menu item handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type MenuItemStore interface {
	ListMenuItemsByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]database.MenuItem, error)
	GetMenuItem(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error)
	GetCategory(ctx context.Context, arg database.GetCategoryParams) (database.Category, error)
	CreateMenuItem(ctx context.Context, arg database.CreateMenuItemParams) (database.MenuItem, error)
	UpdateMenuItem(ctx context.Context, arg database.UpdateMenuItemParams) (database.MenuItem, error)
	SetMenuItemImage(ctx context.Context, arg database.SetMenuItemImageParams) (database.MenuItem, error)
	SoftDeleteMenuItem(ctx context.Context, arg database.SoftDeleteMenuItemParams) (uuid.UUID, error)
	GetToppingCategory(ctx context.Context, arg database.GetToppingCategoryParams) (database.ToppingCategory, error)
	ListToppingCategoriesByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]database.ToppingCategory, error)
	DeleteMenuItemToppingCategories(ctx context.Context, menuItemID uuid.UUID) error
	AddMenuItemToppingCategory(ctx context.Context, arg database.AddMenuItemToppingCategoryParams) error
}

// NewMenuItemStore creates a MenuItemStore from a DBTX (pool or tx).
type NewMenuItemStore func(db database.DBTX) MenuItemStore

// MenuItemHandler handles menu item CRUD and image upload endpoints.
type MenuItemHandler struct {
	store    MenuItemStore
	pool     service.TxBeginner
	newStore NewMenuItemStore
	images   storage.ImageStore
	pub      ws.Publisher
	logger   *zap.Logger
}

// NewMenuItemHandler creates a new MenuItemHandler. Writes that touch the
// topping category links run in a transaction on pool.
func NewMenuItemHandler(store MenuItemStore, pool service.TxBeginner, newStore NewMenuItemStore, images storage.ImageStore, pub ws.Publisher, logger *zap.Logger) *MenuItemHandler {
	if logger == nil {
		logger = zap.L()
	}
	if images == nil {
		images = storage.Disabled{}
	}
	return &MenuItemHandler{
		store:    store,
		pool:     pool,
		newStore: newStore,
		images:   images,
		pub:      pub,
		logger:   logger.Named("menu_items"),
	}
}

// RegisterRoutes registers menu item endpoints on the given Chi router.
// Expected to be mounted at /restaurants/{rid}/admin/menu-items
func (h *MenuItemHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/image", h.UploadImage)
}

// --- Request / Response types ---

type menuItemRequest struct {
	CategoryID         string   `json:"category_id" validate:"required,uuid"`
	Name               string   `json:"name" validate:"required,max=120"`
	Description        string   `json:"description"`
	Price              string   `json:"price" validate:"required"`
	IsAvailable        *bool    `json:"is_available"`
	SortOrder          int32    `json:"sort_order" validate:"gte=0"`
	ToppingCategoryIDs []string `json:"topping_category_ids" validate:"omitempty,dive,uuid"`
}

type menuItemResponse struct {
	ID                 uuid.UUID   `json:"id"`
	RestaurantID       uuid.UUID   `json:"restaurant_id"`
	CategoryID         uuid.UUID   `json:"category_id"`
	Name               string      `json:"name"`
	Description        *string     `json:"description"`
	Price              string      `json:"price"`
	ImageURL           *string     `json:"image_url"`
	IsAvailable        bool        `json:"is_available"`
	SortOrder          int32       `json:"sort_order"`
	ToppingCategoryIDs []uuid.UUID `json:"topping_category_ids,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

func toMenuItemResponse(m database.MenuItem) menuItemResponse {
	return menuItemResponse{
		ID:           m.ID,
		RestaurantID: m.RestaurantID,
		CategoryID:   m.CategoryID,
		Name:         m.Name,
		Description:  textPtr(m.Description),
		Price:        numericToString(m.Price),
		ImageURL:     textPtr(m.ImageUrl),
		IsAvailable:  m.IsAvailable,
		SortOrder:    m.SortOrder,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

var errUnknownToppingCategory = errors.New("unknown topping category")

// --- Handlers ---

// List returns all active menu items of the restaurant.
func (h *MenuItemHandler) List(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}

	items, err := h.store.ListMenuItemsByRestaurant(r.Context(), restaurantID)
	if err != nil {
		h.logger.Error("list menu items", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]menuItemResponse, len(items))
	for i, m := range items {
		resp[i] = toMenuItemResponse(m)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a menu item with its linked topping category IDs.
func (h *MenuItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}
	itemID, ok := urlUUID(w, r, "id", "menu item")
	if !ok {
		return
	}

	item, err := h.store.GetMenuItem(r.Context(), database.GetMenuItemParams{ID: itemID, RestaurantID: restaurantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		h.logger.Error("get menu item", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	cats, err := h.store.ListToppingCategoriesByMenuItem(r.Context(), item.ID)
	if err != nil {
		h.logger.Error("list menu item topping categories", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := toMenuItemResponse(item)
	resp.ToppingCategoryIDs = make([]uuid.UUID, len(cats))
	for i, c := range cats {
		resp.ToppingCategoryIDs[i] = c.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create adds a menu item and links its topping categories.
func (h *MenuItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, uuid.Nil)
}

// Update replaces a menu item and its topping category links.
func (h *MenuItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	itemID, ok := urlUUID(w, r, "id", "menu item")
	if !ok {
		return
	}
	h.save(w, r, itemID)
}

// save creates (itemID == uuid.Nil) or updates a menu item in one transaction.
func (h *MenuItemHandler) save(w http.ResponseWriter, r *http.Request, itemID uuid.UUID) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}

	var req menuItemRequest
	if !decodeValid(w, r, &req) {
		return
	}
	price, err := parsePrice(req.Price)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "price must be a non-negative decimal"})
		return
	}
	categoryID := uuid.MustParse(req.CategoryID)
	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}

	ctx := r.Context()
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		h.logger.Error("begin tx", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	store := h.newStore(tx)

	// The foreign key alone would accept another restaurant's category.
	if _, err := store.GetCategory(ctx, database.GetCategoryParams{ID: categoryID, RestaurantID: restaurantID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "category not found"})
			return
		}
		h.logger.Error("get category", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	var item database.MenuItem
	if itemID == uuid.Nil {
		item, err = store.CreateMenuItem(ctx, database.CreateMenuItemParams{
			RestaurantID: restaurantID,
			CategoryID:   categoryID,
			Name:         req.Name,
			Description:  optionalText(req.Description),
			Price:        price,
			IsAvailable:  available,
			SortOrder:    req.SortOrder,
		})
	} else {
		item, err = store.UpdateMenuItem(ctx, database.UpdateMenuItemParams{
			CategoryID:   categoryID,
			Name:         req.Name,
			Description:  optionalText(req.Description),
			Price:        price,
			IsAvailable:  available,
			SortOrder:    req.SortOrder,
			ID:           itemID,
			RestaurantID: restaurantID,
		})
	}
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
		case isForeignKeyViolation(err):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "category not found"})
		default:
			h.logger.Error("save menu item", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	linked, err := h.linkToppingCategories(ctx, store, restaurantID, item.ID, req.ToppingCategoryIDs)
	if err != nil {
		if errors.Is(err, errUnknownToppingCategory) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "topping category not found"})
			return
		}
		h.logger.Error("link topping categories", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := tx.Commit(ctx); err != nil {
		h.logger.Error("commit menu item", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	status, action := http.StatusOK, "updated"
	if itemID == uuid.Nil {
		status, action = http.StatusCreated, "created"
	}
	publishMenuUpdated(ctx, h.pub, h.logger, restaurantID, "menu_item", item.ID, action)

	resp := toMenuItemResponse(item)
	resp.ToppingCategoryIDs = linked
	writeJSON(w, status, resp)
}

// linkToppingCategories replaces the item's topping categories, keeping the
// request order as sort order. Duplicates are ignored.
func (h *MenuItemHandler) linkToppingCategories(ctx context.Context, store MenuItemStore, restaurantID, itemID uuid.UUID, ids []string) ([]uuid.UUID, error) {
	if err := store.DeleteMenuItemToppingCategories(ctx, itemID); err != nil {
		return nil, err
	}
	linked := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, raw := range ids {
		id := uuid.MustParse(raw)
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, err := store.GetToppingCategory(ctx, database.GetToppingCategoryParams{ID: id, RestaurantID: restaurantID}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, errUnknownToppingCategory
			}
			return nil, err
		}
		if err := store.AddMenuItemToppingCategory(ctx, database.AddMenuItemToppingCategoryParams{
			MenuItemID:        itemID,
			ToppingCategoryID: id,
			SortOrder:         int32(len(linked)),
		}); err != nil {
			return nil, err
		}
		linked = append(linked, id)
	}
	return linked, nil
}

// Delete soft-deletes a menu item.
func (h *MenuItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}
	itemID, ok := urlUUID(w, r, "id", "menu item")
	if !ok {
		return
	}

	_, err := h.store.SoftDeleteMenuItem(r.Context(), database.SoftDeleteMenuItemParams{
		ID:           itemID,
		RestaurantID: restaurantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		h.logger.Error("delete menu item", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	publishMenuUpdated(r.Context(), h.pub, h.logger, restaurantID, "menu_item", itemID, "deleted")
	w.WriteHeader(http.StatusNoContent)
}

// UploadImage stores the multipart "image" field and replaces the item's
// previous image.
func (h *MenuItemHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}
	itemID, ok := urlUUID(w, r, "id", "menu item")
	if !ok {
		return
	}

	ctx := r.Context()
	item, err := h.store.GetMenuItem(ctx, database.GetMenuItemParams{ID: itemID, RestaurantID: restaurantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		h.logger.Error("get menu item", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "image file is required (max 5MB)"})
		return
	}
	defer file.Close()

	switch filepath.Ext(header.Filename) {
	case ".jpg", ".jpeg", ".png", ".webp":
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "image must be jpg, png or webp"})
		return
	}

	img, err := h.images.Upload(ctx, file, item.ID.String())
	if err != nil {
		if errors.Is(err, storage.ErrNotConfigured) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "image storage is not configured"})
			return
		}
		h.logger.Error("upload image", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "image upload failed"})
		return
	}

	updated, err := h.store.SetMenuItemImage(ctx, database.SetMenuItemImageParams{
		ImageUrl:      optionalText(img.URL),
		ImagePublicID: optionalText(img.PublicID),
		ID:            item.ID,
		RestaurantID:  restaurantID,
	})
	if err != nil {
		h.logger.Error("set menu item image", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if item.ImagePublicID.Valid && item.ImagePublicID.String != img.PublicID {
		if err := h.images.Delete(ctx, item.ImagePublicID.String); err != nil {
			h.logger.Warn("delete previous image", zap.String("public_id", item.ImagePublicID.String), zap.Error(err))
		}
	}

	publishMenuUpdated(ctx, h.pub, h.logger, restaurantID, "menu_item", item.ID, "updated")
	writeJSON(w, http.StatusOK, toMenuItemResponse(updated))
}
