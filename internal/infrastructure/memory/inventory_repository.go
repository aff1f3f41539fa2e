package memory

import (
	"context"
	"sort"
	"sync"

	domain "github.com/Zhima-Mochi/inventory-ledger/internal/domain/inventory"
)

// InventoryRepository is the in-memory ledger store. Records are cloned on the
// way in and out so callers never alias stored state.
type InventoryRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.Record
}

func NewInventoryRepository() *InventoryRepository {
	return &InventoryRepository{
		records: make(map[string]*domain.Record),
	}
}

func (r *InventoryRepository) FindByUserAndItem(ctx context.Context, userID, catalogItemID string) (*domain.Record, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[recordKey(userID, catalogItemID)]
	if !ok {
		return nil, nil
	}
	return record.Clone(), nil
}

func (r *InventoryRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Record, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	var records []*domain.Record
	for _, record := range r.records {
		if record.UserID == userID {
			records = append(records, record.Clone())
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CatalogItemID < records[j].CatalogItemID
	})
	return records, nil
}

func (r *InventoryRepository) Create(ctx context.Context, record *domain.Record) error {
	_ = ctx
	if record == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[recordKey(record.UserID, record.CatalogItemID)] = record.Clone()
	return nil
}

func (r *InventoryRepository) Update(ctx context.Context, record *domain.Record) error {
	_ = ctx
	if record == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Full overwrite of the stored record, matching the store contract.
	r.records[recordKey(record.UserID, record.CatalogItemID)] = record.Clone()
	return nil
}

func recordKey(userID, catalogItemID string) string {
	return userID + "/" + catalogItemID
}
