package cart

import (
	"context"
	"encoding/json"
	"sync"
)

// Repository persists carts across restarts. Implementations must
// round-trip exactly: a saved cart loads back with an identical item list
// and identical computed totals.
type Repository interface {
	Load(ctx context.Context, id string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Delete(ctx context.Context, id string) error
}

// MemoryRepository keeps serialized carts in memory. It goes through the
// same JSON encoding as the database-backed repository so tests exercise
// the real round-trip.
type MemoryRepository struct {
	mu    sync.RWMutex
	carts map[string][]byte
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{carts: make(map[string][]byte)}
}

func (r *MemoryRepository) Load(ctx context.Context, id string) (*Cart, error) {
	r.mu.RLock()
	data, ok := r.carts[id]
	r.mu.RUnlock()

	if !ok {
		return New(id), nil
	}

	c := &Cart{}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *MemoryRepository) Save(ctx context.Context, c *Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.carts[c.ID] = data
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	delete(r.carts, id)
	r.mu.Unlock()
	return nil
}
