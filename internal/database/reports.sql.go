package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getDailySales = `-- name: GetDailySales :many
SELECT
    (created_at AT TIME ZONE $4)::date AS sale_date,
    COUNT(*) AS order_count,
    COALESCE(SUM(subtotal), 0)::numeric(12,2) AS subtotal,
    COALESCE(SUM(tax_amount), 0)::numeric(12,2) AS tax_amount,
    COALESCE(SUM(total_amount), 0)::numeric(12,2) AS total_amount
FROM orders
WHERE restaurant_id = $1
  AND status <> 'CANCELLED'
  AND created_at >= $2 AND created_at < $3
GROUP BY sale_date
ORDER BY sale_date`

type GetDailySalesParams struct {
	RestaurantID uuid.UUID `json:"restaurant_id"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	TimeZone     string    `json:"time_zone"`
}

type GetDailySalesRow struct {
	SaleDate    pgtype.Date    `json:"sale_date"`
	OrderCount  int64          `json:"order_count"`
	Subtotal    pgtype.Numeric `json:"subtotal"`
	TaxAmount   pgtype.Numeric `json:"tax_amount"`
	TotalAmount pgtype.Numeric `json:"total_amount"`
}

func (q *Queries) GetDailySales(ctx context.Context, arg GetDailySalesParams) ([]GetDailySalesRow, error) {
	rows, err := q.db.Query(ctx, getDailySales, arg.RestaurantID, arg.StartDate, arg.EndDate, arg.TimeZone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GetDailySalesRow{}
	for rows.Next() {
		var i GetDailySalesRow
		if err := rows.Scan(&i.SaleDate, &i.OrderCount, &i.Subtotal, &i.TaxAmount, &i.TotalAmount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getMenuItemSales = `-- name: GetMenuItemSales :many
SELECT
    oi.menu_item_id,
    mi.name AS menu_item_name,
    SUM(oi.quantity)::bigint AS quantity_sold,
    COALESCE(SUM(oi.subtotal), 0)::numeric(12,2) AS total_revenue
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
JOIN menu_items mi ON mi.id = oi.menu_item_id
WHERE o.restaurant_id = $1
  AND o.status <> 'CANCELLED'
  AND o.created_at >= $2 AND o.created_at < $3
GROUP BY oi.menu_item_id, mi.name
ORDER BY quantity_sold DESC, total_revenue DESC
LIMIT $4`

type GetMenuItemSalesParams struct {
	RestaurantID uuid.UUID `json:"restaurant_id"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	Limit        int32     `json:"limit"`
}

type GetMenuItemSalesRow struct {
	MenuItemID   uuid.UUID      `json:"menu_item_id"`
	MenuItemName string         `json:"menu_item_name"`
	QuantitySold int64          `json:"quantity_sold"`
	TotalRevenue pgtype.Numeric `json:"total_revenue"`
}

func (q *Queries) GetMenuItemSales(ctx context.Context, arg GetMenuItemSalesParams) ([]GetMenuItemSalesRow, error) {
	rows, err := q.db.Query(ctx, getMenuItemSales, arg.RestaurantID, arg.StartDate, arg.EndDate, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GetMenuItemSalesRow{}
	for rows.Next() {
		var i GetMenuItemSalesRow
		if err := rows.Scan(&i.MenuItemID, &i.MenuItemName, &i.QuantitySold, &i.TotalRevenue); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Topping quantities are per unit of the order line, so both sums scale by
// the line quantity.
const getToppingSales = `-- name: GetToppingSales :many
SELECT
    oit.topping_id,
    t.name AS topping_name,
    tc.name AS topping_category_name,
    SUM(oit.quantity * oi.quantity)::bigint AS quantity_sold,
    COALESCE(SUM(oit.price * oi.quantity), 0)::numeric(12,2) AS total_revenue
FROM order_item_toppings oit
JOIN order_items oi ON oi.id = oit.order_item_id
JOIN orders o ON o.id = oi.order_id
JOIN toppings t ON t.id = oit.topping_id
JOIN topping_categories tc ON tc.id = t.topping_category_id
WHERE o.restaurant_id = $1
  AND o.status <> 'CANCELLED'
  AND o.created_at >= $2 AND o.created_at < $3
GROUP BY oit.topping_id, t.name, tc.name
ORDER BY quantity_sold DESC, total_revenue DESC
LIMIT $4`

type GetToppingSalesParams struct {
	RestaurantID uuid.UUID `json:"restaurant_id"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	Limit        int32     `json:"limit"`
}

type GetToppingSalesRow struct {
	ToppingID           uuid.UUID      `json:"topping_id"`
	ToppingName         string         `json:"topping_name"`
	ToppingCategoryName string         `json:"topping_category_name"`
	QuantitySold        int64          `json:"quantity_sold"`
	TotalRevenue        pgtype.Numeric `json:"total_revenue"`
}

func (q *Queries) GetToppingSales(ctx context.Context, arg GetToppingSalesParams) ([]GetToppingSalesRow, error) {
	rows, err := q.db.Query(ctx, getToppingSales, arg.RestaurantID, arg.StartDate, arg.EndDate, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GetToppingSalesRow{}
	for rows.Next() {
		var i GetToppingSalesRow
		if err := rows.Scan(&i.ToppingID, &i.ToppingName, &i.ToppingCategoryName, &i.QuantitySold, &i.TotalRevenue); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getHourlySales = `-- name: GetHourlySales :many
SELECT
    EXTRACT(HOUR FROM created_at AT TIME ZONE $4)::int AS hour,
    COUNT(*) AS order_count,
    COALESCE(SUM(total_amount), 0)::numeric(12,2) AS total_revenue
FROM orders
WHERE restaurant_id = $1
  AND status <> 'CANCELLED'
  AND created_at >= $2 AND created_at < $3
GROUP BY hour
ORDER BY hour`

type GetHourlySalesParams struct {
	RestaurantID uuid.UUID `json:"restaurant_id"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	TimeZone     string    `json:"time_zone"`
}

type GetHourlySalesRow struct {
	Hour         int32          `json:"hour"`
	OrderCount   int64          `json:"order_count"`
	TotalRevenue pgtype.Numeric `json:"total_revenue"`
}

func (q *Queries) GetHourlySales(ctx context.Context, arg GetHourlySalesParams) ([]GetHourlySalesRow, error) {
	rows, err := q.db.Query(ctx, getHourlySales, arg.RestaurantID, arg.StartDate, arg.EndDate, arg.TimeZone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GetHourlySalesRow{}
	for rows.Next() {
		var i GetHourlySalesRow
		if err := rows.Scan(&i.Hour, &i.OrderCount, &i.TotalRevenue); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
