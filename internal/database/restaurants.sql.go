package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const restaurantColumns = `id, name, currency, tax_rate, table_count, created_at, updated_at`

func scanRestaurant(row interface{ Scan(...interface{}) error }) (Restaurant, error) {
	var i Restaurant
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Currency,
		&i.TaxRate,
		&i.TableCount,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createRestaurant = `-- name: CreateRestaurant :one
INSERT INTO restaurants (name, currency, tax_rate, table_count)
VALUES ($1, $2, $3, $4)
RETURNING ` + restaurantColumns

type CreateRestaurantParams struct {
	Name       string         `json:"name"`
	Currency   string         `json:"currency"`
	TaxRate    pgtype.Numeric `json:"tax_rate"`
	TableCount int32          `json:"table_count"`
}

func (q *Queries) CreateRestaurant(ctx context.Context, arg CreateRestaurantParams) (Restaurant, error) {
	row := q.db.QueryRow(ctx, createRestaurant, arg.Name, arg.Currency, arg.TaxRate, arg.TableCount)
	return scanRestaurant(row)
}

const getRestaurant = `-- name: GetRestaurant :one
SELECT ` + restaurantColumns + ` FROM restaurants WHERE id = $1`

func (q *Queries) GetRestaurant(ctx context.Context, id uuid.UUID) (Restaurant, error) {
	row := q.db.QueryRow(ctx, getRestaurant, id)
	return scanRestaurant(row)
}

const updateRestaurantSettings = `-- name: UpdateRestaurantSettings :one
UPDATE restaurants
SET name = $1, currency = $2, tax_rate = $3, table_count = $4, updated_at = now()
WHERE id = $5
RETURNING ` + restaurantColumns

type UpdateRestaurantSettingsParams struct {
	Name       string         `json:"name"`
	Currency   string         `json:"currency"`
	TaxRate    pgtype.Numeric `json:"tax_rate"`
	TableCount int32          `json:"table_count"`
	ID         uuid.UUID      `json:"id"`
}

func (q *Queries) UpdateRestaurantSettings(ctx context.Context, arg UpdateRestaurantSettingsParams) (Restaurant, error) {
	row := q.db.QueryRow(ctx, updateRestaurantSettings,
		arg.Name,
		arg.Currency,
		arg.TaxRate,
		arg.TableCount,
		arg.ID,
	)
	return scanRestaurant(row)
}
