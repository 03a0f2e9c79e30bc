package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageReader is the subset of *kafka.Reader used by Consumer.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// HandlerFunc handles one event payload. Returning an error makes the
// consumer retry the same message; a handler that can never succeed for a
// payload (for example one it cannot decode) should log and return nil.
type HandlerFunc func(ctx context.Context, payload []byte) error

const (
	maxHandleAttempts = 5
	retryBaseDelay    = time.Second
	retryMaxDelay     = 30 * time.Second
)

// ErrHandlerFailed is returned by Run when a message still fails after
// maxHandleAttempts. The message is left uncommitted so the group resumes
// from it on restart.
var ErrHandlerFailed = errors.New("event handler failed")

// Consumer dispatches Kafka messages to handlers by event type.
type Consumer struct {
	reader   MessageReader
	handlers map[string]HandlerFunc
	logger   *zap.Logger
	// backoff returns the delay before retry n (1-based).
	backoff func(n int) time.Duration
}

func NewConsumer(reader MessageReader, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.L()
	}
	return &Consumer{
		reader:   reader,
		handlers: make(map[string]HandlerFunc),
		logger:   logger.Named("events.consumer"),
		backoff:  retryDelay,
	}
}

// retryDelay doubles from retryBaseDelay up to retryMaxDelay.
func retryDelay(n int) time.Duration {
	d := retryBaseDelay << (n - 1)
	if d <= 0 || d > retryMaxDelay {
		return retryMaxDelay
	}
	return d
}

// Handle registers h for eventType. Must be called before Run.
func (c *Consumer) Handle(eventType string, h HandlerFunc) {
	c.handlers[eventType] = h
}

// Run consumes until ctx is cancelled or the reader is closed. A message is
// committed only after its handler succeeded; messages of unknown types are
// committed and skipped. A failing handler is retried on the same message
// with backoff, so no later offset is committed past it. Once the attempts
// are exhausted Run returns ErrHandlerFailed.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			c.logger.Error("fetch message", zap.Error(err))
			continue
		}

		eventType := Header(msg.Headers, HeaderEventType)
		h, ok := c.handlers[eventType]
		if !ok {
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		if err := c.handle(ctx, h, eventType, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("commit message", zap.Error(err))
		}
	}
}

// handle runs h on msg until it succeeds, ctx ends or the attempts run out.
func (c *Consumer) handle(ctx context.Context, h HandlerFunc, eventType string, msg kafka.Message) error {
	var err error
	for attempt := 1; attempt <= maxHandleAttempts; attempt++ {
		if err = h(ctx, msg.Value); err == nil {
			return nil
		}
		c.logger.Error("handle event",
			zap.String("event_type", eventType),
			zap.ByteString("key", msg.Key),
			zap.Int64("offset", msg.Offset),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt == maxHandleAttempts {
			break
		}

		timer := time.NewTimer(c.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("%w: %s at offset %d: %v", ErrHandlerFailed, eventType, msg.Offset, err)
}

// Header returns the value of a message header, or "".
func Header(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// NewReader returns a consumer-group reader for the event topic.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
}
