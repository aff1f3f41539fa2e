package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/inventory-ledger/internal/domain/catalog"
)

// CatalogRepository persists the catalog mirror in MySQL. Upserts are
// last-write-wins by item id.
type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) Upsert(ctx context.Context, item *domain.Item) error {
	if item == nil {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO catalog_items (id, name, description)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), description = VALUES(description)`,
		item.ID, item.Name, item.Description,
	)
	if err != nil {
		return fmt.Errorf("upsert catalog item: %w", err)
	}
	return nil
}

func (r *CatalogRepository) Get(ctx context.Context, itemID string) (*domain.Item, error) {
	var item domain.Item
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description
		FROM catalog_items WHERE id = ?`, itemID,
	).Scan(&item.ID, &item.Name, &item.Description)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query catalog item: %w", err)
	}
	return &item, nil
}

func (r *CatalogRepository) Exists(ctx context.Context, itemID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM catalog_items WHERE id = ?`, itemID,
	).Scan(&one)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query catalog item: %w", err)
	}
	return true, nil
}
