package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const printSettingColumns = `restaurant_id, enabled, auto_print, printnode_api_key, printer_id, copies, updated_at`

func scanPrintSetting(row interface{ Scan(...interface{}) error }) (PrintSetting, error) {
	var i PrintSetting
	err := row.Scan(
		&i.RestaurantID,
		&i.Enabled,
		&i.AutoPrint,
		&i.PrintnodeApiKey,
		&i.PrinterID,
		&i.Copies,
		&i.UpdatedAt,
	)
	return i, err
}

const getPrintSettings = `-- name: GetPrintSettings :one
SELECT ` + printSettingColumns + ` FROM print_settings WHERE restaurant_id = $1`

func (q *Queries) GetPrintSettings(ctx context.Context, restaurantID uuid.UUID) (PrintSetting, error) {
	return scanPrintSetting(q.db.QueryRow(ctx, getPrintSettings, restaurantID))
}

// A NULL api key keeps the stored one so the masked value never overwrites it.
const upsertPrintSettings = `-- name: UpsertPrintSettings :one
INSERT INTO print_settings (restaurant_id, enabled, auto_print, printnode_api_key, printer_id, copies)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (restaurant_id) DO UPDATE
SET enabled = EXCLUDED.enabled,
    auto_print = EXCLUDED.auto_print,
    printnode_api_key = COALESCE(EXCLUDED.printnode_api_key, print_settings.printnode_api_key),
    printer_id = EXCLUDED.printer_id,
    copies = EXCLUDED.copies,
    updated_at = now()
RETURNING ` + printSettingColumns

type UpsertPrintSettingsParams struct {
	RestaurantID    uuid.UUID   `json:"restaurant_id"`
	Enabled         bool        `json:"enabled"`
	AutoPrint       bool        `json:"auto_print"`
	PrintnodeApiKey pgtype.Text `json:"printnode_api_key"`
	PrinterID       pgtype.Int8 `json:"printer_id"`
	Copies          int32       `json:"copies"`
}

func (q *Queries) UpsertPrintSettings(ctx context.Context, arg UpsertPrintSettingsParams) (PrintSetting, error) {
	row := q.db.QueryRow(ctx, upsertPrintSettings,
		arg.RestaurantID,
		arg.Enabled,
		arg.AutoPrint,
		arg.PrintnodeApiKey,
		arg.PrinterID,
		arg.Copies,
	)
	return scanPrintSetting(row)
}

const printJobColumns = `id, restaurant_id, order_id, status, provider_job_id, error, created_at`

func scanPrintJob(row interface{ Scan(...interface{}) error }) (PrintJob, error) {
	var i PrintJob
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.OrderID,
		&i.Status,
		&i.ProviderJobID,
		&i.Error,
		&i.CreatedAt,
	)
	return i, err
}

const createPrintJob = `-- name: CreatePrintJob :one
INSERT INTO print_jobs (restaurant_id, order_id, status, provider_job_id, error)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + printJobColumns

type CreatePrintJobParams struct {
	RestaurantID  uuid.UUID   `json:"restaurant_id"`
	OrderID       pgtype.UUID `json:"order_id"`
	Status        string      `json:"status"`
	ProviderJobID pgtype.Int8 `json:"provider_job_id"`
	Error         pgtype.Text `json:"error"`
}

func (q *Queries) CreatePrintJob(ctx context.Context, arg CreatePrintJobParams) (PrintJob, error) {
	row := q.db.QueryRow(ctx, createPrintJob,
		arg.RestaurantID,
		arg.OrderID,
		arg.Status,
		arg.ProviderJobID,
		arg.Error,
	)
	return scanPrintJob(row)
}

const listPrintJobsByOrder = `-- name: ListPrintJobsByOrder :many
SELECT ` + printJobColumns + ` FROM print_jobs WHERE order_id = $1 ORDER BY created_at DESC`

func (q *Queries) ListPrintJobsByOrder(ctx context.Context, orderID uuid.UUID) ([]PrintJob, error) {
	rows, err := q.db.Query(ctx, listPrintJobsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []PrintJob{}
	for rows.Next() {
		i, err := scanPrintJob(rows)
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
