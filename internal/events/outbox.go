package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"
	"github.com/tablekiosk/api/internal/database"
	"go.uber.org/zap"
)

const (
	// HeaderEventType and HeaderAggregateType are set on every relayed message.
	HeaderEventType     = "event_type"
	HeaderAggregateType = "aggregate_type"

	relayInterval  = 5 * time.Second
	relayBatchSize = 10
	maxAttempts    = 5
)

// MessageWriter is the subset of *kafka.Writer used by the relay.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// OutboxStore defines the DB methods the relay needs.
// Satisfied by *database.Queries.
type OutboxStore interface {
	ListPendingOutboxEvents(ctx context.Context, limit int32) ([]database.OutboxEvent, error)
	MarkOutboxEventSent(ctx context.Context, id uuid.UUID) error
	MarkOutboxEventFailed(ctx context.Context, arg database.MarkOutboxEventFailedParams) error
}

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Relay publishes pending outbox events to Kafka.
type Relay struct {
	pool     TxBeginner
	newStore func(db database.DBTX) OutboxStore
	writer   MessageWriter
	logger   *zap.Logger
	interval time.Duration
}

// NewRelay creates a Relay polling every 5 seconds.
func NewRelay(pool TxBeginner, newStore func(db database.DBTX) OutboxStore, writer MessageWriter, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.L()
	}
	return &Relay{
		pool:     pool,
		newStore: newStore,
		writer:   writer,
		logger:   logger.Named("outbox.relay"),
		interval: relayInterval,
	}
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("outbox relay started", zap.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.ProcessPending(ctx); err != nil {
				r.logger.Error("process outbox events", zap.Error(err))
			}
		}
	}
}

// ProcessPending relays one batch and returns how many events were sent.
// The batch is locked for the duration of the transaction so concurrent
// relays never publish the same event twice.
func (r *Relay) ProcessPending(ctx context.Context) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := r.newStore(tx)

	pending, err := store.ListPendingOutboxEvents(ctx, relayBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending outbox events: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	sent := 0
	for _, ev := range pending {
		if err := r.writer.WriteMessages(ctx, Message(ev)); err != nil {
			r.logger.Warn("publish outbox event",
				zap.String("event_id", ev.ID.String()),
				zap.String("event_type", ev.EventType),
				zap.Int32("attempts", ev.Attempts+1),
				zap.Error(err),
			)
			if err := store.MarkOutboxEventFailed(ctx, database.MarkOutboxEventFailedParams{
				ID:          ev.ID,
				MaxAttempts: maxAttempts,
			}); err != nil {
				return sent, fmt.Errorf("mark outbox event failed: %w", err)
			}
			continue
		}
		if err := store.MarkOutboxEventSent(ctx, ev.ID); err != nil {
			return sent, fmt.Errorf("mark outbox event sent: %w", err)
		}
		sent++
	}

	if err := tx.Commit(ctx); err != nil {
		return sent, fmt.Errorf("commit tx: %w", err)
	}
	if sent > 0 {
		r.logger.Debug("outbox events relayed", zap.Int("count", sent))
	}
	return sent, nil
}

// Message converts an outbox row to a Kafka message keyed by aggregate, so
// all events of one order land on the same partition in order.
func Message(ev database.OutboxEvent) kafka.Message {
	return kafka.Message{
		Key:   []byte(ev.AggregateID.String()),
		Value: ev.Payload,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(ev.EventType)},
			{Key: HeaderAggregateType, Value: []byte(ev.AggregateType)},
		},
	}
}

// NewWriter returns a Kafka writer for the event topic.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
}
