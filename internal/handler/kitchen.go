package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tablekiosk/api/internal/database"
	"github.com/tablekiosk/api/internal/enum"
	"github.com/tablekiosk/api/internal/service"
	"go.uber.org/zap"
)

// CompletedWindow is how long completed orders stay on the board.
const CompletedWindow = 2 * time.Hour

// KitchenStore defines the database methods needed by the kitchen board.
// Satisfied by *database.Queries; narrow interface for testability.
type KitchenStore interface {
	OrderReader
	ListBoardOrders(ctx context.Context, arg database.ListBoardOrdersParams) ([]database.Order, error)
}

// KitchenHandler serves the kitchen display board.
type KitchenHandler struct {
	svc    OrderServicer
	store  KitchenStore
	logger *zap.Logger
	now    func() time.Time
}

// NewKitchenHandler creates a new KitchenHandler.
func NewKitchenHandler(svc OrderServicer, store KitchenStore, logger *zap.Logger) *KitchenHandler {
	if logger == nil {
		logger = zap.L()
	}
	return &KitchenHandler{svc: svc, store: store, logger: logger.Named("kitchen"), now: time.Now}
}

// RegisterRoutes registers kitchen endpoints.
// Expected to be mounted at /restaurants/{rid}/kitchen
func (h *KitchenHandler) RegisterRoutes(r chi.Router) {
	r.Get("/board", h.Board)
	r.Patch("/orders/{id}/move", h.Move)
}

type boardColumn struct {
	Status string          `json:"status"`
	Orders []orderResponse `json:"orders"`
}

type moveRequest struct {
	Status   string `json:"status" validate:"required,oneof=NEW IN_PROGRESS COMPLETED"`
	Position *int32 `json:"position" validate:"omitempty,gte=0"`
}

// Board returns the board columns in display order, each ordered by board
// position. Completed orders drop off after CompletedWindow.
func (h *KitchenHandler) Board(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}

	ctx := r.Context()
	orders, err := h.store.ListBoardOrders(ctx, database.ListBoardOrdersParams{
		RestaurantID:   restaurantID,
		CompletedSince: pgtype.Timestamptz{Time: h.now().Add(-CompletedWindow), Valid: true},
	})
	if err != nil {
		h.logger.Error("list board orders", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	columns := make([]boardColumn, len(enum.BoardStatuses))
	index := make(map[string]int, len(enum.BoardStatuses))
	for i, s := range enum.BoardStatuses {
		columns[i] = boardColumn{Status: s, Orders: []orderResponse{}}
		index[s] = i
	}

	for _, o := range orders {
		ci, ok := index[o.Status]
		if !ok {
			continue
		}
		detail, err := loadOrderDetail(ctx, h.store, restaurantID, o.ID)
		if err != nil {
			h.logger.Error("load board order", zap.String("order_id", o.ID.String()), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		columns[ci].Orders = append(columns[ci].Orders, detail)
	}

	writeJSON(w, http.StatusOK, columns)
}

// Move drags an order to a column and optional position.
func (h *KitchenHandler) Move(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := urlUUID(w, r, "rid", "restaurant")
	if !ok {
		return
	}
	orderID, ok := urlUUID(w, r, "id", "order")
	if !ok {
		return
	}

	var req moveRequest
	if !decodeValid(w, r, &req) {
		return
	}

	order, err := h.svc.MoveOrder(r.Context(), service.MoveOrderRequest{
		RestaurantID: restaurantID,
		OrderID:      orderID,
		Status:       req.Status,
		Position:     req.Position,
	})
	if err != nil {
		if errors.Is(err, service.ErrStatusConflict) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error(), "code": "STATUS_CONFLICT"})
			return
		}
		writeOrderError(w, h.logger, "move order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}
