// Package events carries order events out of the database: a transactional
// outbox relayed to Kafka, and a consumer for workers that react to them.
package events

import (
	"time"

	"github.com/google/uuid"
)

// AggregateOrder is the aggregate type of order events.
const AggregateOrder = "order"

// OrderEvent is the payload of order.created and order.updated, both on the
// realtime socket and on Kafka.
type OrderEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	RestaurantID  uuid.UUID `json:"restaurant_id"`
	OrderNumber   string    `json:"order_number"`
	OrderType     string    `json:"order_type"`
	TableNumber   *int32    `json:"table_number,omitempty"`
	Status        string    `json:"status"`
	BoardPosition int32     `json:"board_position"`
	TotalAmount   string    `json:"total_amount"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// MenuEvent is the payload of menu.updated.
type MenuEvent struct {
	RestaurantID uuid.UUID `json:"restaurant_id"`
	Entity       string    `json:"entity"`
	EntityID     uuid.UUID `json:"entity_id"`
	Action       string    `json:"action"`
}

// PrintFallbackEvent asks a connected browser to print the receipt itself.
type PrintFallbackEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Receipt     string    `json:"receipt"`
	Reason      string    `json:"reason"`
}
