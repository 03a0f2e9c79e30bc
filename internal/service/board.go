package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tablekiosk/api/internal/database"
	"github.com/tablekiosk/api/internal/enum"
)

// Errors returned by board moves and cancellation.
var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrOrderCancelled  = errors.New("cancelled orders cannot be moved")
	ErrStatusConflict  = errors.New("order status changed, please retry")
	ErrInvalidPosition = errors.New("position must be >= 0")
	ErrOrderCompleted  = errors.New("cannot cancel a completed order")
	ErrAlreadyCanceled = errors.New("order is already cancelled")
)

// MoveOrderRequest moves an order to a board column. A nil Position keeps
// the order in place when the column is unchanged and appends it otherwise.
type MoveOrderRequest struct {
	RestaurantID uuid.UUID
	OrderID      uuid.UUID
	Status       string
	Position     *int32
}

// MoveOrder implements kitchen board drag and drop. Any board column can be
// reached from any other; the write only succeeds if nobody else changed
// the order's status since it was read.
func (s *OrderService) MoveOrder(ctx context.Context, req MoveOrderRequest) (database.Order, error) {
	if !slices.Contains(enum.BoardStatuses, req.Status) {
		return database.Order{}, ErrInvalidStatus
	}
	if req.Position != nil && *req.Position < 0 {
		return database.Order{}, ErrInvalidPosition
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := store.GetOrder(ctx, database.GetOrderParams{ID: req.OrderID, RestaurantID: req.RestaurantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if current.Status == enum.OrderStatusCancelled {
		return database.Order{}, ErrOrderCancelled
	}

	var position int32
	switch {
	case req.Position != nil:
		position = *req.Position
		if err := store.ShiftBoardPositions(ctx, database.ShiftBoardPositionsParams{
			RestaurantID: req.RestaurantID,
			Status:       req.Status,
			FromPosition: position,
			ExcludeID:    req.OrderID,
		}); err != nil {
			return database.Order{}, fmt.Errorf("shift board positions: %w", err)
		}
	case req.Status == current.Status:
		position = current.BoardPosition
	default:
		position, err = store.GetNextBoardPosition(ctx, database.GetNextBoardPositionParams{
			RestaurantID: req.RestaurantID,
			Status:       req.Status,
		})
		if err != nil {
			return database.Order{}, fmt.Errorf("get next board position: %w", err)
		}
	}

	moved, err := store.MoveOrder(ctx, database.MoveOrderParams{
		Status:        req.Status,
		BoardPosition: position,
		ID:            req.OrderID,
		RestaurantID:  req.RestaurantID,
		Status_2:      current.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrStatusConflict
		}
		return database.Order{}, fmt.Errorf("move order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}

	s.publishOrder(ctx, enum.EventOrderUpdated, moved)
	return moved, nil
}

// CancelOrder cancels an order that is neither completed nor cancelled.
func (s *OrderService) CancelOrder(ctx context.Context, restaurantID, orderID uuid.UUID) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// The query only updates orders that can still be cancelled.
	cancelled, err := store.CancelOrder(ctx, database.CancelOrderParams{ID: orderID, RestaurantID: restaurantID})
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, fmt.Errorf("cancel order: %w", err)
		}
		return database.Order{}, cancelError(ctx, store, restaurantID, orderID)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}

	s.publishOrder(ctx, enum.EventOrderUpdated, cancelled)
	return cancelled, nil
}

// cancelError explains why nothing was cancelled.
func cancelError(ctx context.Context, store OrderStore, restaurantID, orderID uuid.UUID) error {
	current, err := store.GetOrder(ctx, database.GetOrderParams{ID: orderID, RestaurantID: restaurantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("get order for cancel: %w", err)
	}
	switch current.Status {
	case enum.OrderStatusCompleted:
		return ErrOrderCompleted
	case enum.OrderStatusCancelled:
		return ErrAlreadyCanceled
	}
	return ErrStatusConflict
}
