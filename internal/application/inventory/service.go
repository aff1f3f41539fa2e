package inventory

import (
	"context"
	"fmt"
	"time"

	domcatalog "github.com/Zhima-Mochi/inventory-ledger/internal/domain/catalog"
	dominv "github.com/Zhima-Mochi/inventory-ledger/internal/domain/inventory"
)

// IDGenerator mints command and correlation identifiers for operations that
// originate inside this service rather than on the transport.
type IDGenerator interface {
	NewID() string
}

// OwnedItem is a ledger record joined with its mirrored catalog entry, shaped
// for the read API.
type OwnedItem struct {
	CatalogItemID string
	Name          string
	Description   string
	Quantity      int64
	AcquiredAt    time.Time
}

// Service fronts the ledger for the HTTP surface. Writes are routed through
// the grant use case so an admin grant gets the same idempotency and event
// emission as a transport-delivered one.
type Service struct {
	ledger  dominv.Repository
	catalog domcatalog.Repository
	grant   *GrantItemsUseCase
	ids     IDGenerator
}

func NewService(ledger dominv.Repository, catalog domcatalog.Repository, grant *GrantItemsUseCase, ids IDGenerator) *Service {
	return &Service{ledger: ledger, catalog: catalog, grant: grant, ids: ids}
}

func (s *Service) Grant(ctx context.Context, userID, catalogItemID string, quantity int64) (*GrantResult, error) {
	cmd := dominv.GrantItemsCommand{
		UserID:        userID,
		CatalogItemID: catalogItemID,
		Quantity:      quantity,
		CorrelationID: s.ids.NewID(),
		CommandID:     s.ids.NewID(),
	}
	return s.grant.Execute(ctx, cmd)
}

// ListItems returns the user's ledger entries enriched with catalog names.
// Entries whose catalog mirror row went missing are skipped rather than
// failing the whole listing.
func (s *Service) ListItems(ctx context.Context, userID string) ([]OwnedItem, error) {
	records, err := s.ledger.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	items := make([]OwnedItem, 0, len(records))
	for _, record := range records {
		catalogItem, err := s.catalog.Get(ctx, record.CatalogItemID)
		if err != nil {
			return nil, fmt.Errorf("list items: catalog lookup %q: %w", record.CatalogItemID, err)
		}
		if catalogItem == nil {
			continue
		}
		items = append(items, OwnedItem{
			CatalogItemID: record.CatalogItemID,
			Name:          catalogItem.Name,
			Description:   catalogItem.Description,
			Quantity:      record.Quantity,
			AcquiredAt:    record.AcquiredAt,
		})
	}
	return items, nil
}
