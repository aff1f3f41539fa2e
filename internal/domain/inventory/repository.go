package inventory

import "context"

// Repository is the keyed ledger store. Update overwrites the whole stored
// record; the caller computes the new quantity and applied-command set in
// memory before persisting.
type Repository interface {
	// FindByUserAndItem returns nil, nil when no record exists for the key.
	FindByUserAndItem(ctx context.Context, userID, catalogItemID string) (*Record, error)
	ListByUser(ctx context.Context, userID string) ([]*Record, error)
	Create(ctx context.Context, record *Record) error
	Update(ctx context.Context, record *Record) error
}
