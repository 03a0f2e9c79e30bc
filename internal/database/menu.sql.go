package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// --- Categories ---

const categoryColumns = `id, restaurant_id, name, description, sort_order, is_active, created_at`

func scanCategory(row interface{ Scan(...interface{}) error }) (Category, error) {
	var i Category
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.Name,
		&i.Description,
		&i.SortOrder,
		&i.IsActive,
		&i.CreatedAt,
	)
	return i, err
}

const listCategoriesByRestaurant = `-- name: ListCategoriesByRestaurant :many
SELECT ` + categoryColumns + ` FROM categories
WHERE restaurant_id = $1 AND is_active = true
ORDER BY sort_order, name`

func (q *Queries) ListCategoriesByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]Category, error) {
	rows, err := q.db.Query(ctx, listCategoriesByRestaurant, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Category{}
	for rows.Next() {
		i, err := scanCategory(rows)
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

const getCategory = `-- name: GetCategory :one
SELECT ` + categoryColumns + ` FROM categories
WHERE id = $1 AND restaurant_id = $2 AND is_active = true`

type GetCategoryParams struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
}

func (q *Queries) GetCategory(ctx context.Context, arg GetCategoryParams) (Category, error) {
	row := q.db.QueryRow(ctx, getCategory, arg.ID, arg.RestaurantID)
	return scanCategory(row)
}

const createCategory = `-- name: CreateCategory :one
INSERT INTO categories (restaurant_id, name, description, sort_order)
VALUES ($1, $2, $3, $4)
RETURNING ` + categoryColumns

type CreateCategoryParams struct {
	RestaurantID uuid.UUID   `json:"restaurant_id"`
	Name         string      `json:"name"`
	Description  pgtype.Text `json:"description"`
	SortOrder    int32       `json:"sort_order"`
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (Category, error) {
	row := q.db.QueryRow(ctx, createCategory, arg.RestaurantID, arg.Name, arg.Description, arg.SortOrder)
	return scanCategory(row)
}

const updateCategory = `-- name: UpdateCategory :one
UPDATE categories SET name = $1, description = $2, sort_order = $3
WHERE id = $4 AND restaurant_id = $5 AND is_active = true
RETURNING ` + categoryColumns

type UpdateCategoryParams struct {
	Name         string      `json:"name"`
	Description  pgtype.Text `json:"description"`
	SortOrder    int32       `json:"sort_order"`
	ID           uuid.UUID   `json:"id"`
	RestaurantID uuid.UUID   `json:"restaurant_id"`
}

func (q *Queries) UpdateCategory(ctx context.Context, arg UpdateCategoryParams) (Category, error) {
	row := q.db.QueryRow(ctx, updateCategory,
		arg.Name,
		arg.Description,
		arg.SortOrder,
		arg.ID,
		arg.RestaurantID,
	)
	return scanCategory(row)
}

const softDeleteCategory = `-- name: SoftDeleteCategory :one
UPDATE categories SET is_active = false
WHERE id = $1 AND restaurant_id = $2 AND is_active = true
RETURNING id`

type SoftDeleteCategoryParams struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
}

func (q *Queries) SoftDeleteCategory(ctx context.Context, arg SoftDeleteCategoryParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx, softDeleteCategory, arg.ID, arg.RestaurantID).Scan(&id)
	return id, err
}

// --- Menu items ---

const menuItemColumns = `id, restaurant_id, category_id, name, description, price, image_url,
    image_public_id, is_available, is_active, sort_order, created_at, updated_at`

func scanMenuItem(row interface{ Scan(...interface{}) error }) (MenuItem, error) {
	var i MenuItem
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.CategoryID,
		&i.Name,
		&i.Description,
		&i.Price,
		&i.ImageUrl,
		&i.ImagePublicID,
		&i.IsAvailable,
		&i.IsActive,
		&i.SortOrder,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listMenuItemsByRestaurant = `-- name: ListMenuItemsByRestaurant :many
SELECT ` + menuItemColumns + ` FROM menu_items
WHERE restaurant_id = $1 AND is_active = true
ORDER BY sort_order, name`

func (q *Queries) ListMenuItemsByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listMenuItemsByRestaurant, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []MenuItem{}
	for rows.Next() {
		i, err := scanMenuItem(rows)
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

const getMenuItem = `-- name: GetMenuItem :one
SELECT ` + menuItemColumns + ` FROM menu_items
WHERE id = $1 AND restaurant_id = $2 AND is_active = true`

type GetMenuItemParams struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
}

func (q *Queries) GetMenuItem(ctx context.Context, arg GetMenuItemParams) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, getMenuItem, arg.ID, arg.RestaurantID))
}

const getMenuItemForOrder = `-- name: GetMenuItemForOrder :one
SELECT ` + menuItemColumns + ` FROM menu_items
WHERE id = $1 AND restaurant_id = $2 AND is_active = true AND is_available = true`

func (q *Queries) GetMenuItemForOrder(ctx context.Context, arg GetMenuItemParams) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, getMenuItemForOrder, arg.ID, arg.RestaurantID))
}

const createMenuItem = `-- name: CreateMenuItem :one
INSERT INTO menu_items (restaurant_id, category_id, name, description, price, is_available, sort_order)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + menuItemColumns

type CreateMenuItemParams struct {
	RestaurantID uuid.UUID      `json:"restaurant_id"`
	CategoryID   uuid.UUID      `json:"category_id"`
	Name         string         `json:"name"`
	Description  pgtype.Text    `json:"description"`
	Price        pgtype.Numeric `json:"price"`
	IsAvailable  bool           `json:"is_available"`
	SortOrder    int32          `json:"sort_order"`
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, createMenuItem,
		arg.RestaurantID,
		arg.CategoryID,
		arg.Name,
		arg.Description,
		arg.Price,
		arg.IsAvailable,
		arg.SortOrder,
	)
	return scanMenuItem(row)
}

const updateMenuItem = `-- name: UpdateMenuItem :one
UPDATE menu_items
SET category_id = $1, name = $2, description = $3, price = $4, is_available = $5,
    sort_order = $6, updated_at = now()
WHERE id = $7 AND restaurant_id = $8 AND is_active = true
RETURNING ` + menuItemColumns

type UpdateMenuItemParams struct {
	CategoryID   uuid.UUID      `json:"category_id"`
	Name         string         `json:"name"`
	Description  pgtype.Text    `json:"description"`
	Price        pgtype.Numeric `json:"price"`
	IsAvailable  bool           `json:"is_available"`
	SortOrder    int32          `json:"sort_order"`
	ID           uuid.UUID      `json:"id"`
	RestaurantID uuid.UUID      `json:"restaurant_id"`
}

func (q *Queries) UpdateMenuItem(ctx context.Context, arg UpdateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, updateMenuItem,
		arg.CategoryID,
		arg.Name,
		arg.Description,
		arg.Price,
		arg.IsAvailable,
		arg.SortOrder,
		arg.ID,
		arg.RestaurantID,
	)
	return scanMenuItem(row)
}

const setMenuItemImage = `-- name: SetMenuItemImage :one
UPDATE menu_items SET image_url = $1, image_public_id = $2, updated_at = now()
WHERE id = $3 AND restaurant_id = $4 AND is_active = true
RETURNING ` + menuItemColumns

type SetMenuItemImageParams struct {
	ImageUrl      pgtype.Text `json:"image_url"`
	ImagePublicID pgtype.Text `json:"image_public_id"`
	ID            uuid.UUID   `json:"id"`
	RestaurantID  uuid.UUID   `json:"restaurant_id"`
}

func (q *Queries) SetMenuItemImage(ctx context.Context, arg SetMenuItemImageParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, setMenuItemImage, arg.ImageUrl, arg.ImagePublicID, arg.ID, arg.RestaurantID)
	return scanMenuItem(row)
}

const softDeleteMenuItem = `-- name: SoftDeleteMenuItem :one
UPDATE menu_items SET is_active = false, updated_at = now()
WHERE id = $1 AND restaurant_id = $2 AND is_active = true
RETURNING id`

type SoftDeleteMenuItemParams struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
}

func (q *Queries) SoftDeleteMenuItem(ctx context.Context, arg SoftDeleteMenuItemParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx, softDeleteMenuItem, arg.ID, arg.RestaurantID).Scan(&id)
	return id, err
}
