package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	raw     []byte
	expires time.Time
}

// MemoryStore keeps carts in process. It is used when Redis is not
// configured, so carts do not survive a restart or span instances.
type MemoryStore struct {
	mu    sync.Mutex
	carts map[string]memoryEntry
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, restaurantID, cartID uuid.UUID) (*Cart, error) {
	s.mu.Lock()
	e, ok := s.carts[key(restaurantID, cartID)]
	if ok && !s.now().Before(e.expires) {
		delete(s.carts, key(restaurantID, cartID))
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, ErrCartNotFound
	}

	var c Cart
	if err := json.Unmarshal(e.raw, &c); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return &c, nil
}

// Save stores a copy of the cart and refreshes its TTL.
func (s *MemoryStore) Save(_ context.Context, c *Cart) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	s.mu.Lock()
	s.carts[key(c.RestaurantID, c.ID)] = memoryEntry{raw: raw, expires: s.now().Add(TTL)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, restaurantID, cartID uuid.UUID) error {
	s.mu.Lock()
	delete(s.carts, key(restaurantID, cartID))
	s.mu.Unlock()
	return nil
}

// Sweep drops expired carts that were never read again.
func (s *MemoryStore) Sweep() {
	now := s.now()
	s.mu.Lock()
	for k, e := range s.carts {
		if !now.Before(e.expires) {
			delete(s.carts, k)
		}
	}
	s.mu.Unlock()
}

// RunCleanup calls Sweep every interval until done is closed.
func (s *MemoryStore) RunCleanup(interval time.Duration, done <-chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.Sweep()
		case <-done:
			return
		}
	}
}
