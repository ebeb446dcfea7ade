package storage

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tiiuae/flightplanengine/internal/flightplan"
)

// Cached is a write-through LRU in front of another Store. Callers get
// their own copies; cached values are never handed out.
type Cached struct {
	mu    sync.Mutex
	store Store
	cache *lru.Cache[string, *flightplan.FlightPlan]
}

func NewCached(store Store, size int) (*Cached, error) {
	cache, err := lru.New[string, *flightplan.FlightPlan](size)
	if err != nil {
		return nil, err
	}
	return &Cached{store: store, cache: cache}, nil
}

func (c *Cached) Get(ctx context.Context, uuid string) (*flightplan.FlightPlan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if fp, ok := c.cache.Get(uuid); ok {
		return fp.Clone(), nil
	}
	fp, err := c.store.Get(ctx, uuid)
	if err != nil {
		return nil, err
	}
	c.cache.Add(uuid, fp.Clone())
	return fp, nil
}

func (c *Cached) Put(ctx context.Context, fp *flightplan.FlightPlan) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Put(ctx, fp); err != nil {
		c.cache.Remove(fp.UUID)
		return err
	}
	c.cache.Add(fp.UUID, fp.Clone())
	return nil
}

func (c *Cached) Delete(ctx context.Context, uuid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Remove(uuid)
	return c.store.Delete(ctx, uuid)
}

// ListByProject always reads through; listing is rare.
func (c *Cached) ListByProject(ctx context.Context, projectUUID string) ([]*flightplan.FlightPlan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.ListByProject(ctx, projectUUID)
}

func (c *Cached) Close() error {
	c.cache.Purge()
	return c.store.Close()
}
