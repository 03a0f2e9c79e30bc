package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Restaurant struct {
	ID         uuid.UUID      `json:"id"`
	Name       string         `json:"name"`
	Currency   string         `json:"currency"`
	TaxRate    pgtype.Numeric `json:"tax_rate"`
	TableCount int32          `json:"table_count"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type User struct {
	ID             uuid.UUID `json:"id"`
	RestaurantID   uuid.UUID `json:"restaurant_id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"hashed_password"`
	FullName       string    `json:"full_name"`
	Role           string    `json:"role"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Category struct {
	ID           uuid.UUID   `json:"id"`
	RestaurantID uuid.UUID   `json:"restaurant_id"`
	Name         string      `json:"name"`
	Description  pgtype.Text `json:"description"`
	SortOrder    int32       `json:"sort_order"`
	IsActive     bool        `json:"is_active"`
	CreatedAt    time.Time   `json:"created_at"`
}

type MenuItem struct {
	ID            uuid.UUID      `json:"id"`
	RestaurantID  uuid.UUID      `json:"restaurant_id"`
	CategoryID    uuid.UUID      `json:"category_id"`
	Name          string         `json:"name"`
	Description   pgtype.Text    `json:"description"`
	Price         pgtype.Numeric `json:"price"`
	ImageUrl      pgtype.Text    `json:"image_url"`
	ImagePublicID pgtype.Text    `json:"image_public_id"`
	IsAvailable   bool           `json:"is_available"`
	IsActive      bool           `json:"is_active"`
	SortOrder     int32          `json:"sort_order"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type ToppingCategory struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	Name         string    `json:"name"`
	MinSelection int32     `json:"min_selection"`
	MaxSelection int32     `json:"max_selection"`
	IsRequired   bool      `json:"is_required"`
	SortOrder    int32     `json:"sort_order"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

type Topping struct {
	ID                uuid.UUID      `json:"id"`
	ToppingCategoryID uuid.UUID      `json:"topping_category_id"`
	Name              string         `json:"name"`
	Price             pgtype.Numeric `json:"price"`
	MaxQuantity       int32          `json:"max_quantity"`
	SortOrder         int32          `json:"sort_order"`
	IsActive          bool           `json:"is_active"`
	CreatedAt         time.Time      `json:"created_at"`
}

type Order struct {
	ID            uuid.UUID      `json:"id"`
	RestaurantID  uuid.UUID      `json:"restaurant_id"`
	OrderNumber   string         `json:"order_number"`
	OrderType     string         `json:"order_type"`
	TableNumber   pgtype.Int4    `json:"table_number"`
	Status        string         `json:"status"`
	BoardPosition int32          `json:"board_position"`
	Notes         pgtype.Text    `json:"notes"`
	Subtotal      pgtype.Numeric `json:"subtotal"`
	TaxRate       pgtype.Numeric `json:"tax_rate"`
	TaxAmount     pgtype.Numeric `json:"tax_amount"`
	TotalAmount   pgtype.Numeric `json:"total_amount"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type OrderItem struct {
	ID            uuid.UUID      `json:"id"`
	OrderID       uuid.UUID      `json:"order_id"`
	MenuItemID    uuid.UUID      `json:"menu_item_id"`
	Name          string         `json:"name"`
	Quantity      int32          `json:"quantity"`
	UnitPrice     pgtype.Numeric `json:"unit_price"`
	ToppingsTotal pgtype.Numeric `json:"toppings_total"`
	Subtotal      pgtype.Numeric `json:"subtotal"`
	Notes         pgtype.Text    `json:"notes"`
}

type OrderItemTopping struct {
	ID          uuid.UUID      `json:"id"`
	OrderItemID uuid.UUID      `json:"order_item_id"`
	ToppingID   uuid.UUID      `json:"topping_id"`
	Name        string         `json:"name"`
	Quantity    int32          `json:"quantity"`
	UnitPrice   pgtype.Numeric `json:"unit_price"`
	Price       pgtype.Numeric `json:"price"`
}

type PrintSetting struct {
	RestaurantID    uuid.UUID   `json:"restaurant_id"`
	Enabled         bool        `json:"enabled"`
	AutoPrint       bool        `json:"auto_print"`
	PrintnodeApiKey pgtype.Text `json:"printnode_api_key"`
	PrinterID       pgtype.Int8 `json:"printer_id"`
	Copies          int32       `json:"copies"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type PrintJob struct {
	ID            uuid.UUID   `json:"id"`
	RestaurantID  uuid.UUID   `json:"restaurant_id"`
	OrderID       pgtype.UUID `json:"order_id"`
	Status        string      `json:"status"`
	ProviderJobID pgtype.Int8 `json:"provider_job_id"`
	Error         pgtype.Text `json:"error"`
	CreatedAt     time.Time   `json:"created_at"`
}

type OutboxEvent struct {
	ID            uuid.UUID          `json:"id"`
	AggregateType string             `json:"aggregate_type"`
	AggregateID   uuid.UUID          `json:"aggregate_id"`
	EventType     string             `json:"event_type"`
	Payload       []byte             `json:"payload"`
	Status        string             `json:"status"`
	Attempts      int32              `json:"attempts"`
	CreatedAt     time.Time          `json:"created_at"`
	SentAt        pgtype.Timestamptz `json:"sent_at"`
}
