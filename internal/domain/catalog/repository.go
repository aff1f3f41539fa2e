package catalog

import "context"

type Repository interface {
	// Upsert inserts or fully overwrites the mirrored item by ID.
	Upsert(ctx context.Context, item *Item) error
	Get(ctx context.Context, itemID string) (*Item, error)
	Exists(ctx context.Context, itemID string) (bool, error)
}
