package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// --- Topping categories ---

const toppingCategoryColumns = `tc.id, tc.restaurant_id, tc.name, tc.min_selection, tc.max_selection,
    tc.is_required, tc.sort_order, tc.is_active, tc.created_at`

func scanToppingCategory(row interface{ Scan(...interface{}) error }) (ToppingCategory, error) {
	var i ToppingCategory
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.Name,
		&i.MinSelection,
		&i.MaxSelection,
		&i.IsRequired,
		&i.SortOrder,
		&i.IsActive,
		&i.CreatedAt,
	)
	return i, err
}

func collectToppingCategories(rows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
	Close()
}) ([]ToppingCategory, error) {
	defer rows.Close()
	items := []ToppingCategory{}
	for rows.Next() {
		i, err := scanToppingCategory(rows)
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

const listToppingCategoriesByRestaurant = `-- name: ListToppingCategoriesByRestaurant :many
SELECT ` + toppingCategoryColumns + ` FROM topping_categories tc
WHERE tc.restaurant_id = $1 AND tc.is_active = true
ORDER BY tc.sort_order, tc.name`

func (q *Queries) ListToppingCategoriesByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]ToppingCategory, error) {
	rows, err := q.db.Query(ctx, listToppingCategoriesByRestaurant, restaurantID)
	if err != nil {
		return nil, err
	}
	return collectToppingCategories(rows)
}

const getToppingCategory = `-- name: GetToppingCategory :one
SELECT ` + toppingCategoryColumns + ` FROM topping_categories tc
WHERE tc.id = $1 AND tc.restaurant_id = $2 AND tc.is_active = true`

type GetToppingCategoryParams struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
}

func (q *Queries) GetToppingCategory(ctx context.Context, arg GetToppingCategoryParams) (ToppingCategory, error) {
	return scanToppingCategory(q.db.QueryRow(ctx, getToppingCategory, arg.ID, arg.RestaurantID))
}

const createToppingCategory = `-- name: CreateToppingCategory :one
INSERT INTO topping_categories AS tc (restaurant_id, name, min_selection, max_selection, is_required, sort_order)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + toppingCategoryColumns

type CreateToppingCategoryParams struct {
	RestaurantID uuid.UUID `json:"restaurant_id"`
	Name         string    `json:"name"`
	MinSelection int32     `json:"min_selection"`
	MaxSelection int32     `json:"max_selection"`
	IsRequired   bool      `json:"is_required"`
	SortOrder    int32     `json:"sort_order"`
}

func (q *Queries) CreateToppingCategory(ctx context.Context, arg CreateToppingCategoryParams) (ToppingCategory, error) {
	row := q.db.QueryRow(ctx, createToppingCategory,
		arg.RestaurantID,
		arg.Name,
		arg.MinSelection,
		arg.MaxSelection,
		arg.IsRequired,
		arg.SortOrder,
	)
	return scanToppingCategory(row)
}

const updateToppingCategory = `-- name: UpdateToppingCategory :one
UPDATE topping_categories AS tc
SET name = $1, min_selection = $2, max_selection = $3, is_required = $4, sort_order = $5
WHERE tc.id = $6 AND tc.restaurant_id = $7 AND tc.is_active = true
RETURNING ` + toppingCategoryColumns

type UpdateToppingCategoryParams struct {
	Name         string    `json:"name"`
	MinSelection int32     `json:"min_selection"`
	MaxSelection int32     `json:"max_selection"`
	IsRequired   bool      `json:"is_required"`
	SortOrder    int32     `json:"sort_order"`
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
}

func (q *Queries) UpdateToppingCategory(ctx context.Context, arg UpdateToppingCategoryParams) (ToppingCategory, error) {
	row := q.db.QueryRow(ctx, updateToppingCategory,
		arg.Name,
		arg.MinSelection,
		arg.MaxSelection,
		arg.IsRequired,
		arg.SortOrder,
		arg.ID,
		arg.RestaurantID,
	)
	return scanToppingCategory(row)
}

const softDeleteToppingCategory = `-- name: SoftDeleteToppingCategory :one
UPDATE topping_categories SET is_active = false
WHERE id = $1 AND restaurant_id = $2 AND is_active = true
RETURNING id`

type SoftDeleteToppingCategoryParams struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
}

func (q *Queries) SoftDeleteToppingCategory(ctx context.Context, arg SoftDeleteToppingCategoryParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx, softDeleteToppingCategory, arg.ID, arg.RestaurantID).Scan(&id)
	return id, err
}

const listToppingCategoriesByMenuItem = `-- name: ListToppingCategoriesByMenuItem :many
SELECT ` + toppingCategoryColumns + `
FROM menu_item_topping_categories mitc
JOIN topping_categories tc ON tc.id = mitc.topping_category_id
WHERE mitc.menu_item_id = $1 AND tc.is_active = true
ORDER BY mitc.sort_order, tc.sort_order, tc.name`

func (q *Queries) ListToppingCategoriesByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]ToppingCategory, error) {
	rows, err := q.db.Query(ctx, listToppingCategoriesByMenuItem, menuItemID)
	if err != nil {
		return nil, err
	}
	return collectToppingCategories(rows)
}

// --- Menu item links ---

const deleteMenuItemToppingCategories = `-- name: DeleteMenuItemToppingCategories :exec
DELETE FROM menu_item_topping_categories WHERE menu_item_id = $1`

func (q *Queries) DeleteMenuItemToppingCategories(ctx context.Context, menuItemID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteMenuItemToppingCategories, menuItemID)
	return err
}

const addMenuItemToppingCategory = `-- name: AddMenuItemToppingCategory :exec
INSERT INTO menu_item_topping_categories (menu_item_id, topping_category_id, sort_order)
VALUES ($1, $2, $3)`

type AddMenuItemToppingCategoryParams struct {
	MenuItemID        uuid.UUID `json:"menu_item_id"`
	ToppingCategoryID uuid.UUID `json:"topping_category_id"`
	SortOrder         int32     `json:"sort_order"`
}

func (q *Queries) AddMenuItemToppingCategory(ctx context.Context, arg AddMenuItemToppingCategoryParams) error {
	_, err := q.db.Exec(ctx, addMenuItemToppingCategory, arg.MenuItemID, arg.ToppingCategoryID, arg.SortOrder)
	return err
}

// --- Toppings ---

const toppingColumns = `t.id, t.topping_category_id, t.name, t.price, t.max_quantity, t.sort_order, t.is_active, t.created_at`

func scanTopping(row interface{ Scan(...interface{}) error }) (Topping, error) {
	var i Topping
	err := row.Scan(
		&i.ID,
		&i.ToppingCategoryID,
		&i.Name,
		&i.Price,
		&i.MaxQuantity,
		&i.SortOrder,
		&i.IsActive,
		&i.CreatedAt,
	)
	return i, err
}

func collectToppings(rows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
	Close()
}) ([]Topping, error) {
	defer rows.Close()
	items := []Topping{}
	for rows.Next() {
		i, err := scanTopping(rows)
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

const listToppingsByCategory = `-- name: ListToppingsByCategory :many
SELECT ` + toppingColumns + ` FROM toppings t
WHERE t.topping_category_id = $1 AND t.is_active = true
ORDER BY t.sort_order, t.name`

func (q *Queries) ListToppingsByCategory(ctx context.Context, toppingCategoryID uuid.UUID) ([]Topping, error) {
	rows, err := q.db.Query(ctx, listToppingsByCategory, toppingCategoryID)
	if err != nil {
		return nil, err
	}
	return collectToppings(rows)
}

const listToppingsByMenuItem = `-- name: ListToppingsByMenuItem :many
SELECT ` + toppingColumns + `
FROM menu_item_topping_categories mitc
JOIN topping_categories tc ON tc.id = mitc.topping_category_id AND tc.is_active = true
JOIN toppings t ON t.topping_category_id = tc.id
WHERE mitc.menu_item_id = $1 AND t.is_active = true
ORDER BY mitc.sort_order, t.sort_order, t.name`

func (q *Queries) ListToppingsByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]Topping, error) {
	rows, err := q.db.Query(ctx, listToppingsByMenuItem, menuItemID)
	if err != nil {
		return nil, err
	}
	return collectToppings(rows)
}

const createTopping = `-- name: CreateTopping :one
INSERT INTO toppings AS t (topping_category_id, name, price, max_quantity, sort_order)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + toppingColumns

type CreateToppingParams struct {
	ToppingCategoryID uuid.UUID      `json:"topping_category_id"`
	Name              string         `json:"name"`
	Price             pgtype.Numeric `json:"price"`
	MaxQuantity       int32          `json:"max_quantity"`
	SortOrder         int32          `json:"sort_order"`
}

func (q *Queries) CreateTopping(ctx context.Context, arg CreateToppingParams) (Topping, error) {
	row := q.db.QueryRow(ctx, createTopping,
		arg.ToppingCategoryID,
		arg.Name,
		arg.Price,
		arg.MaxQuantity,
		arg.SortOrder,
	)
	return scanTopping(row)
}

const updateTopping = `-- name: UpdateTopping :one
UPDATE toppings AS t SET name = $1, price = $2, max_quantity = $3, sort_order = $4
WHERE t.id = $5 AND t.topping_category_id = $6 AND t.is_active = true
RETURNING ` + toppingColumns

type UpdateToppingParams struct {
	Name              string         `json:"name"`
	Price             pgtype.Numeric `json:"price"`
	MaxQuantity       int32          `json:"max_quantity"`
	SortOrder         int32          `json:"sort_order"`
	ID                uuid.UUID      `json:"id"`
	ToppingCategoryID uuid.UUID      `json:"topping_category_id"`
}

func (q *Queries) UpdateTopping(ctx context.Context, arg UpdateToppingParams) (Topping, error) {
	row := q.db.QueryRow(ctx, updateTopping,
		arg.Name,
		arg.Price,
		arg.MaxQuantity,
		arg.SortOrder,
		arg.ID,
		arg.ToppingCategoryID,
	)
	return scanTopping(row)
}

const softDeleteTopping = `-- name: SoftDeleteTopping :one
UPDATE toppings SET is_active = false
WHERE id = $1 AND topping_category_id = $2 AND is_active = true
RETURNING id`

type SoftDeleteToppingParams struct {
	ID                uuid.UUID `json:"id"`
	ToppingCategoryID uuid.UUID `json:"topping_category_id"`
}

func (q *Queries) SoftDeleteTopping(ctx context.Context, arg SoftDeleteToppingParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx, softDeleteTopping, arg.ID, arg.ToppingCategoryID).Scan(&id)
	return id, err
}
