package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, restaurant_id, order_number, order_type, table_number, status, board_position,
    notes, subtotal, tax_rate, tax_amount, total_amount, created_at, updated_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.OrderNumber,
		&i.OrderType,
		&i.TableNumber,
		&i.Status,
		&i.BoardPosition,
		&i.Notes,
		&i.Subtotal,
		&i.TaxRate,
		&i.TaxAmount,
		&i.TotalAmount,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func collectOrders(rows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
	Close()
}) ([]Order, error) {
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getNextOrderNumber = `-- name: GetNextOrderNumber :one
SELECT COALESCE(MAX(CAST(SUBSTRING(order_number FROM '[0-9]+$') AS INTEGER)), 0) + 1
FROM orders WHERE restaurant_id = $1`

func (q *Queries) GetNextOrderNumber(ctx context.Context, restaurantID uuid.UUID) (int32, error) {
	var next int32
	err := q.db.QueryRow(ctx, getNextOrderNumber, restaurantID).Scan(&next)
	return next, err
}

const getNextBoardPosition = `-- name: GetNextBoardPosition :one
SELECT COALESCE(MAX(board_position), -1) + 1
FROM orders WHERE restaurant_id = $1 AND status = $2`

type GetNextBoardPositionParams struct {
	RestaurantID uuid.UUID `json:"restaurant_id"`
	Status       string    `json:"status"`
}

func (q *Queries) GetNextBoardPosition(ctx context.Context, arg GetNextBoardPositionParams) (int32, error) {
	var next int32
	err := q.db.QueryRow(ctx, getNextBoardPosition, arg.RestaurantID, arg.Status).Scan(&next)
	return next, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (restaurant_id, order_number, order_type, table_number, board_position,
    notes, subtotal, tax_rate, tax_amount, total_amount)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	RestaurantID  uuid.UUID      `json:"restaurant_id"`
	OrderNumber   string         `json:"order_number"`
	OrderType     string         `json:"order_type"`
	TableNumber   pgtype.Int4    `json:"table_number"`
	BoardPosition int32          `json:"board_position"`
	Notes         pgtype.Text    `json:"notes"`
	Subtotal      pgtype.Numeric `json:"subtotal"`
	TaxRate       pgtype.Numeric `json:"tax_rate"`
	TaxAmount     pgtype.Numeric `json:"tax_amount"`
	TotalAmount   pgtype.Numeric `json:"total_amount"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.RestaurantID,
		arg.OrderNumber,
		arg.OrderType,
		arg.TableNumber,
		arg.BoardPosition,
		arg.Notes,
		arg.Subtotal,
		arg.TaxRate,
		arg.TaxAmount,
		arg.TotalAmount,
	)
	return scanOrder(row)
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND restaurant_id = $2`

type GetOrderParams struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, arg.ID, arg.RestaurantID))
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + ` FROM orders
WHERE restaurant_id = $1
  AND ($2::text IS NULL OR status = $2)
  AND ($3::text IS NULL OR order_type = $3)
  AND ($4::timestamptz IS NULL OR created_at >= $4)
  AND ($5::timestamptz IS NULL OR created_at < $5)
ORDER BY created_at DESC
LIMIT $6 OFFSET $7`

type ListOrdersParams struct {
	RestaurantID uuid.UUID          `json:"restaurant_id"`
	Status       pgtype.Text        `json:"status"`
	OrderType    pgtype.Text        `json:"order_type"`
	StartDate    pgtype.Timestamptz `json:"start_date"`
	EndDate      pgtype.Timestamptz `json:"end_date"`
	Limit        int32              `json:"limit"`
	Offset       int32              `json:"offset"`
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders,
		arg.RestaurantID,
		arg.Status,
		arg.OrderType,
		arg.StartDate,
		arg.EndDate,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

const listBoardOrders = `-- name: ListBoardOrders :many
SELECT ` + orderColumns + ` FROM orders
WHERE restaurant_id = $1
  AND status IN ('NEW', 'IN_PROGRESS', 'COMPLETED')
  AND (status <> 'COMPLETED' OR updated_at >= $2)
ORDER BY status, board_position, created_at`

type ListBoardOrdersParams struct {
	RestaurantID   uuid.UUID          `json:"restaurant_id"`
	CompletedSince pgtype.Timestamptz `json:"completed_since"`
}

func (q *Queries) ListBoardOrders(ctx context.Context, arg ListBoardOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listBoardOrders, arg.RestaurantID, arg.CompletedSince)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

const moveOrder = `-- name: MoveOrder :one
UPDATE orders SET status = $1, board_position = $2, updated_at = now()
WHERE id = $3 AND restaurant_id = $4 AND status = $5
RETURNING ` + orderColumns

// MoveOrderParams moves an order on the board. Status_2 is the status the
// caller last observed; the update only applies if it is still current.
type MoveOrderParams struct {
	Status        string    `json:"status"`
	BoardPosition int32     `json:"board_position"`
	ID            uuid.UUID `json:"id"`
	RestaurantID  uuid.UUID `json:"restaurant_id"`
	Status_2      string    `json:"status_2"`
}

func (q *Queries) MoveOrder(ctx context.Context, arg MoveOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, moveOrder,
		arg.Status,
		arg.BoardPosition,
		arg.ID,
		arg.RestaurantID,
		arg.Status_2,
	)
	return scanOrder(row)
}

const shiftBoardPositions = `-- name: ShiftBoardPositions :exec
UPDATE orders SET board_position = board_position + 1
WHERE restaurant_id = $1 AND status = $2 AND board_position >= $3 AND id <> $4`

type ShiftBoardPositionsParams struct {
	RestaurantID uuid.UUID `json:"restaurant_id"`
	Status       string    `json:"status"`
	FromPosition int32     `json:"from_position"`
	ExcludeID    uuid.UUID `json:"exclude_id"`
}

func (q *Queries) ShiftBoardPositions(ctx context.Context, arg ShiftBoardPositionsParams) error {
	_, err := q.db.Exec(ctx, shiftBoardPositions, arg.RestaurantID, arg.Status, arg.FromPosition, arg.ExcludeID)
	return err
}

const cancelOrder = `-- name: CancelOrder :one
UPDATE orders SET status = 'CANCELLED', updated_at = now()
WHERE id = $1 AND restaurant_id = $2 AND status NOT IN ('COMPLETED', 'CANCELLED')
RETURNING ` + orderColumns

type CancelOrderParams struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
}

func (q *Queries) CancelOrder(ctx context.Context, arg CancelOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, cancelOrder, arg.ID, arg.RestaurantID))
}

// --- Order items ---

const orderItemColumns = `id, order_id, menu_item_id, name, quantity, unit_price, toppings_total, subtotal, notes`

func scanOrderItem(row interface{ Scan(...interface{}) error }) (OrderItem, error) {
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.MenuItemID,
		&i.Name,
		&i.Quantity,
		&i.UnitPrice,
		&i.ToppingsTotal,
		&i.Subtotal,
		&i.Notes,
	)
	return i, err
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (order_id, menu_item_id, name, quantity, unit_price, toppings_total, subtotal, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + orderItemColumns

type CreateOrderItemParams struct {
	OrderID       uuid.UUID      `json:"order_id"`
	MenuItemID    uuid.UUID      `json:"menu_item_id"`
	Name          string         `json:"name"`
	Quantity      int32          `json:"quantity"`
	UnitPrice     pgtype.Numeric `json:"unit_price"`
	ToppingsTotal pgtype.Numeric `json:"toppings_total"`
	Subtotal      pgtype.Numeric `json:"subtotal"`
	Notes         pgtype.Text    `json:"notes"`
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.MenuItemID,
		arg.Name,
		arg.Quantity,
		arg.UnitPrice,
		arg.ToppingsTotal,
		arg.Subtotal,
		arg.Notes,
	)
	return scanOrderItem(row)
}

const listOrderItemsByOrder = `-- name: ListOrderItemsByOrder :many
SELECT ` + orderItemColumns + ` FROM order_items WHERE order_id = $1 ORDER BY id`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItem{}
	for rows.Next() {
		i, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// --- Order item toppings ---

const orderItemToppingColumns = `id, order_item_id, topping_id, name, quantity, unit_price, price`

func scanOrderItemTopping(row interface{ Scan(...interface{}) error }) (OrderItemTopping, error) {
	var i OrderItemTopping
	err := row.Scan(
		&i.ID,
		&i.OrderItemID,
		&i.ToppingID,
		&i.Name,
		&i.Quantity,
		&i.UnitPrice,
		&i.Price,
	)
	return i, err
}

const createOrderItemTopping = `-- name: CreateOrderItemTopping :one
INSERT INTO order_item_toppings (order_item_id, topping_id, name, quantity, unit_price, price)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + orderItemToppingColumns

type CreateOrderItemToppingParams struct {
	OrderItemID uuid.UUID      `json:"order_item_id"`
	ToppingID   uuid.UUID      `json:"topping_id"`
	Name        string         `json:"name"`
	Quantity    int32          `json:"quantity"`
	UnitPrice   pgtype.Numeric `json:"unit_price"`
	Price       pgtype.Numeric `json:"price"`
}

func (q *Queries) CreateOrderItemTopping(ctx context.Context, arg CreateOrderItemToppingParams) (OrderItemTopping, error) {
	row := q.db.QueryRow(ctx, createOrderItemTopping,
		arg.OrderItemID,
		arg.ToppingID,
		arg.Name,
		arg.Quantity,
		arg.UnitPrice,
		arg.Price,
	)
	return scanOrderItemTopping(row)
}

const listOrderItemToppingsByOrderItem = `-- name: ListOrderItemToppingsByOrderItem :many
SELECT ` + orderItemToppingColumns + ` FROM order_item_toppings WHERE order_item_id = $1 ORDER BY id`

func (q *Queries) ListOrderItemToppingsByOrderItem(ctx context.Context, orderItemID uuid.UUID) ([]OrderItemTopping, error) {
	rows, err := q.db.Query(ctx, listOrderItemToppingsByOrderItem, orderItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItemTopping{}
	for rows.Next() {
		i, err := scanOrderItemTopping(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
