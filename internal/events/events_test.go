package events

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tablekiosk/api/internal/database"
	"go.uber.org/zap"
)

// fakeTx implements pgx.Tx; only Commit and Rollback are reached.
type fakeTx struct {
	pgx.Tx
	committed bool
}

func (f *fakeTx) Commit(context.Context) error   { f.committed = true; return nil }
func (f *fakeTx) Rollback(context.Context) error { return nil }

type fakePool struct{ tx *fakeTx }

func (p *fakePool) Begin(context.Context) (pgx.Tx, error) { return p.tx, nil }

type fakeOutbox struct {
	pending []database.OutboxEvent
	sent    []uuid.UUID
	failed  []database.MarkOutboxEventFailedParams
}

func (f *fakeOutbox) ListPendingOutboxEvents(_ context.Context, limit int32) ([]database.OutboxEvent, error) {
	if int(limit) < len(f.pending) {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeOutbox) MarkOutboxEventSent(_ context.Context, id uuid.UUID) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeOutbox) MarkOutboxEventFailed(_ context.Context, arg database.MarkOutboxEventFailedParams) error {
	f.failed = append(f.failed, arg)
	return nil
}

type fakeWriter struct {
	msgs   []kafka.Message
	failOn map[string]bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		if w.failOn[string(m.Key)] {
			return errors.New("broker unavailable")
		}
		w.msgs = append(w.msgs, m)
	}
	return nil
}

func outboxEvent(eventType string) database.OutboxEvent {
	return database.OutboxEvent{
		ID:            uuid.New(),
		AggregateType: AggregateOrder,
		AggregateID:   uuid.New(),
		EventType:     eventType,
		Payload:       []byte(`{"order_number":"K-001"}`),
	}
}

func newTestRelay(store *fakeOutbox, writer *fakeWriter) (*Relay, *fakeTx) {
	tx := &fakeTx{}
	r := NewRelay(&fakePool{tx: tx}, func(database.DBTX) OutboxStore { return store }, writer, zap.NewNop())
	return r, tx
}

func TestRelay_PublishesAndMarksSent(t *testing.T) {
	ev := outboxEvent("order.created")
	store := &fakeOutbox{pending: []database.OutboxEvent{ev}}
	writer := &fakeWriter{}
	relay, tx := newTestRelay(store, writer)

	n, err := relay.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, tx.committed)
	assert.Equal(t, []uuid.UUID{ev.ID}, store.sent)

	require.Len(t, writer.msgs, 1)
	msg := writer.msgs[0]
	assert.Equal(t, ev.AggregateID.String(), string(msg.Key))
	assert.Equal(t, ev.Payload, msg.Value)
	assert.Equal(t, "order.created", Header(msg.Headers, HeaderEventType))
	assert.Equal(t, AggregateOrder, Header(msg.Headers, HeaderAggregateType))
}

func TestRelay_FailedPublishCountsAttempt(t *testing.T) {
	ok := outboxEvent("order.created")
	bad := outboxEvent("order.updated")
	store := &fakeOutbox{pending: []database.OutboxEvent{bad, ok}}
	writer := &fakeWriter{failOn: map[string]bool{bad.AggregateID.String(): true}}
	relay, tx := newTestRelay(store, writer)

	n, err := relay.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, tx.committed, "failure counters must be committed")
	require.Len(t, store.failed, 1)
	assert.Equal(t, bad.ID, store.failed[0].ID)
	assert.EqualValues(t, maxAttempts, store.failed[0].MaxAttempts)
	assert.Equal(t, []uuid.UUID{ok.ID}, store.sent)
}

func TestRelay_NothingPending(t *testing.T) {
	relay, tx := newTestRelay(&fakeOutbox{}, &fakeWriter{})

	n, err := relay.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.False(t, tx.committed)
}

// fakeReader serves queued messages, then io.EOF as a closed reader does.
type fakeReader struct {
	queue     []kafka.Message
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(context.Context) (kafka.Message, error) {
	if len(r.queue) == 0 {
		return kafka.Message{}, io.EOF
	}
	m := r.queue[0]
	r.queue = r.queue[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func newTestConsumer(reader MessageReader) *Consumer {
	c := NewConsumer(reader, zap.NewNop())
	c.backoff = func(int) time.Duration { return 0 }
	return c
}

func committedOffsets(msgs []kafka.Message) []int64 {
	out := make([]int64, len(msgs))
	for i, m := range msgs {
		out[i] = m.Offset
	}
	return out
}

func TestConsumer_Dispatch(t *testing.T) {
	created := Message(outboxEvent("order.created"))
	created.Offset = 1
	unknown := Message(outboxEvent("order.archived"))
	unknown.Offset = 2

	reader := &fakeReader{queue: []kafka.Message{created, unknown}}
	c := newTestConsumer(reader)

	var handled [][]byte
	c.Handle("order.created", func(_ context.Context, payload []byte) error {
		handled = append(handled, payload)
		return nil
	})

	require.NoError(t, c.Run(context.Background()))

	assert.Len(t, handled, 1)
	assert.Equal(t, []int64{1, 2}, committedOffsets(reader.committed), "unknown event types are committed and skipped")
}

func TestConsumer_RetriesBeforeCommittingLaterOffsets(t *testing.T) {
	first := Message(outboxEvent("order.created"))
	first.Offset = 10
	second := Message(outboxEvent("order.created"))
	second.Offset = 11
	second.Value = []byte(`{"order_number":"K-002"}`)

	reader := &fakeReader{queue: []kafka.Message{first, second}}
	c := newTestConsumer(reader)

	attempts := map[int64]int{}
	var seen []int64
	c.Handle("order.created", func(_ context.Context, payload []byte) error {
		off := first.Offset
		if string(payload) == string(second.Value) {
			off = second.Offset
		}
		attempts[off]++
		seen = append(seen, off)
		if off == first.Offset && attempts[off] == 1 {
			return errors.New("database unavailable")
		}
		return nil
	})

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, 2, attempts[10], "the failed message is handled again")
	assert.Equal(t, []int64{10, 10, 11}, seen, "offset 11 waits for offset 10")
	assert.Equal(t, []int64{10, 11}, committedOffsets(reader.committed))
}

func TestConsumer_StopsAfterMaxAttempts(t *testing.T) {
	failing := Message(outboxEvent("order.created"))
	failing.Offset = 5
	next := Message(outboxEvent("order.created"))
	next.Offset = 6

	reader := &fakeReader{queue: []kafka.Message{failing, next}}
	c := newTestConsumer(reader)

	calls := 0
	c.Handle("order.created", func(context.Context, []byte) error {
		calls++
		return errors.New("database unavailable")
	})

	err := c.Run(context.Background())

	require.ErrorIs(t, err, ErrHandlerFailed)
	assert.Equal(t, maxHandleAttempts, calls)
	assert.Empty(t, reader.committed, "nothing is committed past the failed message")
	assert.Len(t, reader.queue, 1, "the next message is not fetched")
}

func TestConsumer_CancelDuringBackoff(t *testing.T) {
	msg := Message(outboxEvent("order.created"))
	reader := &fakeReader{queue: []kafka.Message{msg}}
	c := NewConsumer(reader, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	c.Handle("order.created", func(context.Context, []byte) error {
		cancel()
		return errors.New("database unavailable")
	})

	require.NoError(t, c.Run(ctx))
	assert.Empty(t, reader.committed)
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, time.Second, retryDelay(1))
	assert.Equal(t, 4*time.Second, retryDelay(3))
	assert.Equal(t, retryMaxDelay, retryDelay(10))
	assert.Equal(t, retryMaxDelay, retryDelay(100))
}

func TestHeader_Missing(t *testing.T) {
	assert.Empty(t, Header(nil, HeaderEventType))
}
