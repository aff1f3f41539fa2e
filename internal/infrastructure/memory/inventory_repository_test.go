package memory

import (
	"context"
	"testing"

	domcatalog "github.com/Zhima-Mochi/inventory-ledger/internal/domain/catalog"
	dominv "github.com/Zhima-Mochi/inventory-ledger/internal/domain/inventory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventoryRepository_RoundTrip(t *testing.T) {
	repo := NewInventoryRepository()
	ctx := context.Background()

	record, err := dominv.NewRecord("user-1", "item-1", 5, "cmd-1")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, record))

	found, err := repo.FindByUserAndItem(ctx, "user-1", "item-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(5), found.Quantity)
	assert.True(t, found.Applied("cmd-1"))
}

func TestInventoryRepository_MissingIsNil(t *testing.T) {
	repo := NewInventoryRepository()

	found, err := repo.FindByUserAndItem(context.Background(), "user-x", "item-x")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestInventoryRepository_UpdateOverwrites(t *testing.T) {
	repo := NewInventoryRepository()
	ctx := context.Background()

	record, err := dominv.NewRecord("user-1", "item-1", 5, "cmd-1")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, record))

	require.NoError(t, record.Apply("cmd-2", 3))
	require.NoError(t, repo.Update(ctx, record))

	found, err := repo.FindByUserAndItem(ctx, "user-1", "item-1")
	require.NoError(t, err)
	assert.Equal(t, int64(8), found.Quantity)
	assert.True(t, found.Applied("cmd-2"))
}

func TestInventoryRepository_CallersDoNotAliasStore(t *testing.T) {
	repo := NewInventoryRepository()
	ctx := context.Background()

	record, err := dominv.NewRecord("user-1", "item-1", 5, "cmd-1")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, record))

	found, err := repo.FindByUserAndItem(ctx, "user-1", "item-1")
	require.NoError(t, err)
	require.NoError(t, found.Apply("cmd-2", 100))

	again, err := repo.FindByUserAndItem(ctx, "user-1", "item-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), again.Quantity)
	assert.False(t, again.Applied("cmd-2"))
}

func TestInventoryRepository_ListByUser(t *testing.T) {
	repo := NewInventoryRepository()
	ctx := context.Background()

	for _, itemID := range []string{"item-b", "item-a"} {
		record, err := dominv.NewRecord("user-1", itemID, 1, "cmd-"+itemID)
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, record))
	}
	other, err := dominv.NewRecord("user-2", "item-a", 1, "cmd-x")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, other))

	records, err := repo.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "item-a", records[0].CatalogItemID)
	assert.Equal(t, "item-b", records[1].CatalogItemID)
}

func TestCatalogRepository_UpsertGetExists(t *testing.T) {
	repo := NewCatalogRepository()
	ctx := context.Background()

	exists, err := repo.Exists(ctx, "item-1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.Upsert(ctx, &domcatalog.Item{ID: "item-1", Name: "Sword"}))
	require.NoError(t, repo.Upsert(ctx, &domcatalog.Item{ID: "item-1", Name: "Sword +1"}))

	exists, err = repo.Exists(ctx, "item-1")
	require.NoError(t, err)
	assert.True(t, exists)

	item, err := repo.Get(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, "Sword +1", item.Name)
}
