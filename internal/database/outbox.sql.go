package database

import (
	"context"

	"github.com/google/uuid"
)

const outboxColumns = `id, aggregate_type, aggregate_id, event_type, payload, status, attempts, created_at, sent_at`

func scanOutboxEvent(row interface{ Scan(...interface{}) error }) (OutboxEvent, error) {
	var i OutboxEvent
	err := row.Scan(
		&i.ID,
		&i.AggregateType,
		&i.AggregateID,
		&i.EventType,
		&i.Payload,
		&i.Status,
		&i.Attempts,
		&i.CreatedAt,
		&i.SentAt,
	)
	return i, err
}

const createOutboxEvent = `-- name: CreateOutboxEvent :one
INSERT INTO outbox_events (aggregate_type, aggregate_id, event_type, payload)
VALUES ($1, $2, $3, $4)
RETURNING ` + outboxColumns

type CreateOutboxEventParams struct {
	AggregateType string    `json:"aggregate_type"`
	AggregateID   uuid.UUID `json:"aggregate_id"`
	EventType     string    `json:"event_type"`
	Payload       []byte    `json:"payload"`
}

func (q *Queries) CreateOutboxEvent(ctx context.Context, arg CreateOutboxEventParams) (OutboxEvent, error) {
	row := q.db.QueryRow(ctx, createOutboxEvent, arg.AggregateType, arg.AggregateID, arg.EventType, arg.Payload)
	return scanOutboxEvent(row)
}

const listPendingOutboxEvents = `-- name: ListPendingOutboxEvents :many
SELECT ` + outboxColumns + ` FROM outbox_events
WHERE status = 'PENDING'
ORDER BY created_at
LIMIT $1
FOR UPDATE SKIP LOCKED`

func (q *Queries) ListPendingOutboxEvents(ctx context.Context, limit int32) ([]OutboxEvent, error) {
	rows, err := q.db.Query(ctx, listPendingOutboxEvents, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OutboxEvent{}
	for rows.Next() {
		i, err := scanOutboxEvent(rows)
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

const markOutboxEventSent = `-- name: MarkOutboxEventSent :exec
UPDATE outbox_events SET status = 'SENT', sent_at = now(), attempts = attempts + 1 WHERE id = $1`

func (q *Queries) MarkOutboxEventSent(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, markOutboxEventSent, id)
	return err
}

const markOutboxEventFailed = `-- name: MarkOutboxEventFailed :exec
UPDATE outbox_events
SET attempts = attempts + 1,
    status = CASE WHEN attempts + 1 >= $2 THEN 'FAILED' ELSE 'PENDING' END
WHERE id = $1`

type MarkOutboxEventFailedParams struct {
	ID          uuid.UUID `json:"id"`
	MaxAttempts int32     `json:"max_attempts"`
}

func (q *Queries) MarkOutboxEventFailed(ctx context.Context, arg MarkOutboxEventFailedParams) error {
	_, err := q.db.Exec(ctx, markOutboxEventFailed, arg.ID, arg.MaxAttempts)
	return err
}
