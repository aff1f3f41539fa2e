package memory

import (
	"context"
	"sync"

	domain "github.com/Zhima-Mochi/inventory-ledger/internal/domain/catalog"
)

// CatalogRepository is the in-memory catalog mirror. Upserts are
// last-write-wins; concurrent writes of the same item are idempotent.
type CatalogRepository struct {
	mu    sync.RWMutex
	items map[string]*domain.Item
}

func NewCatalogRepository() *CatalogRepository {
	return &CatalogRepository{
		items: make(map[string]*domain.Item),
	}
}

func (r *CatalogRepository) Upsert(ctx context.Context, item *domain.Item) error {
	_ = ctx
	if item == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[item.ID] = cloneItem(item)
	return nil
}

func (r *CatalogRepository) Get(ctx context.Context, itemID string) (*domain.Item, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[itemID]
	if !ok {
		return nil, nil
	}
	return cloneItem(item), nil
}

func (r *CatalogRepository) Exists(ctx context.Context, itemID string) (bool, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.items[itemID]
	return ok, nil
}

func cloneItem(item *domain.Item) *domain.Item {
	if item == nil {
		return nil
	}
	clone := *item
	return &clone
}
