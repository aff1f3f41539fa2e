package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seqIDGenerator struct{ n int }

func (g *seqIDGenerator) NewID() string {
	g.n++
	return "id-" + string(rune('0'+g.n))
}

func TestService_GrantAndList(t *testing.T) {
	ledger := newMockLedgerRepo()
	catalog := newMockCatalogRepo("item-1")
	pub := &mockPublisher{}
	grant := NewGrantItemsUseCase(ledger, catalog, nil, pub, nil, nil)
	svc := NewService(ledger, catalog, grant, &seqIDGenerator{})

	result, err := svc.Grant(context.Background(), "user-1", "item-1", 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), result.Quantity)

	items, err := svc.ListItems(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "item-1", items[0].CatalogItemID)
	assert.Equal(t, "name-item-1", items[0].Name)
	assert.Equal(t, int64(4), items[0].Quantity)
}

func TestService_ListSkipsUnmirroredItems(t *testing.T) {
	ledger := newMockLedgerRepo()
	catalog := newMockCatalogRepo("item-1", "item-2")
	pub := &mockPublisher{}
	grant := NewGrantItemsUseCase(ledger, catalog, nil, pub, nil, nil)
	svc := NewService(ledger, catalog, grant, &seqIDGenerator{})

	_, err := svc.Grant(context.Background(), "user-1", "item-1", 1)
	require.NoError(t, err)
	_, err = svc.Grant(context.Background(), "user-1", "item-2", 1)
	require.NoError(t, err)

	// Mirror loses item-2; the listing degrades instead of failing.
	catalog.mu.Lock()
	delete(catalog.items, "item-2")
	catalog.mu.Unlock()

	items, err := svc.ListItems(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "item-1", items[0].CatalogItemID)
}
