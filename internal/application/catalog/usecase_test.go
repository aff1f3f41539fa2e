package catalog

import (
	"context"
	"sync"
	"testing"

	domcatalog "github.com/Zhima-Mochi/inventory-ledger/internal/domain/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockMirror struct {
	mu    sync.Mutex
	items map[string]*domcatalog.Item
}

func newMockMirror() *mockMirror {
	return &mockMirror{items: make(map[string]*domcatalog.Item)}
}

func (m *mockMirror) Upsert(_ context.Context, item *domcatalog.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = item
	return nil
}

func (m *mockMirror) Get(_ context.Context, itemID string) (*domcatalog.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[itemID], nil
}

func (m *mockMirror) Exists(_ context.Context, itemID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[itemID]
	return ok, nil
}

func TestSync_InsertsNewItem(t *testing.T) {
	mirror := newMockMirror()
	uc := NewSyncItemUseCase(mirror, nil)

	err := uc.Execute(context.Background(), domcatalog.NewItemChangedEvent("item-1", "Sword", "A sharp one"))
	require.NoError(t, err)

	item, err := mirror.Get(context.Background(), "item-1")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "Sword", item.Name)
}

func TestSync_OverwritesExistingItem(t *testing.T) {
	mirror := newMockMirror()
	uc := NewSyncItemUseCase(mirror, nil)

	require.NoError(t, uc.Execute(context.Background(), domcatalog.NewItemChangedEvent("item-1", "Sword", "A sharp one")))
	require.NoError(t, uc.Execute(context.Background(), domcatalog.NewItemChangedEvent("item-1", "Sword +1", "Sharper")))

	item, err := mirror.Get(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Equal(t, "Sword +1", item.Name)
	assert.Equal(t, "Sharper", item.Description)
}
