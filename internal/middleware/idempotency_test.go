package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tablekiosk/api/internal/middleware"
	"go.uber.org/zap"
)

type fakeKV struct {
	data map[string]string
}

func newFakeKV() *fakeKV { return &fakeKV{data: map[string]string{}} }

func (f *fakeKV) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeKV) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeKV) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeKV) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestIdempotency_ReplaysResponse(t *testing.T) {
	calls := 0
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"order_number":"K-001"}`))
	})
	handler := middleware.Idempotency(newFakeKV(), zap.NewNop())(inner)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/orders", nil)
		req.Header.Set(middleware.IdempotencyHeader, "abc")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusCreated {
			t.Fatalf("request %d: status %d, want 201", i, rr.Code)
		}
		if rr.Body.String() != `{"order_number":"K-001"}` {
			t.Errorf("request %d: body %q", i, rr.Body.String())
		}
	}
	if calls != 1 {
		t.Errorf("handler calls: got %d, want 1", calls)
	}
}

func TestIdempotency_InProgressConflict(t *testing.T) {
	kv := newFakeKV()
	kv.data["idem:lock:POST:/orders:abc"] = "1"
	handler := middleware.Idempotency(kv, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest("POST", "/orders", nil)
	req.Header.Set(middleware.IdempotencyHeader, "abc")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want 409", rr.Code)
	}
}

func TestIdempotency_FailuresAreNotCached(t *testing.T) {
	kv := newFakeKV()
	calls := 0
	handler := middleware.Idempotency(kv, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad"}`))
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/orders", nil)
		req.Header.Set(middleware.IdempotencyHeader, "abc")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Errorf("handler calls: got %d, want 2", calls)
	}
	if len(kv.data) != 0 {
		t.Errorf("expected no keys left, got %v", kv.data)
	}
}

func TestIdempotency_NoHeaderPassesThrough(t *testing.T) {
	calls := 0
	handler := middleware.Idempotency(newFakeKV(), zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))
	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/orders", nil))
	}
	if calls != 2 {
		t.Errorf("handler calls: got %d, want 2", calls)
	}
}
