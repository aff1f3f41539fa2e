package httppresentation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appinventory "github.com/Zhima-Mochi/inventory-ledger/internal/application/inventory"
	domcatalog "github.com/Zhima-Mochi/inventory-ledger/internal/domain/catalog"
	domoutbox "github.com/Zhima-Mochi/inventory-ledger/internal/domain/outbox"
	"github.com/Zhima-Mochi/inventory-ledger/internal/infrastructure/memory"
)

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domoutbox.Event) error { return nil }

type seqIDs struct{ n int }

func (s *seqIDs) NewID() string {
	s.n++
	return fmt.Sprintf("id-%d", s.n)
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	ledgerRepo := memory.NewInventoryRepository()
	catalogRepo := memory.NewCatalogRepository()
	require.NoError(t, catalogRepo.Upsert(context.Background(), &domcatalog.Item{
		ID:          "potion",
		Name:        "Potion",
		Description: "Restores a small amount of HP",
	}))

	grantUC := appinventory.NewGrantItemsUseCase(ledgerRepo, catalogRepo, nil, nopPublisher{}, nil, nil)
	svc := appinventory.NewService(ledgerRepo, catalogRepo, grantUC, &seqIDs{})
	handler := NewHandler(svc, nil, nil)

	srv := httptest.NewServer(handler.Router())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHandler_GrantThenList(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/items", `{"userId":"user-1","catalogItemId":"potion","quantity":3}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var granted struct {
		Quantity  int64 `json:"quantity"`
		Duplicate bool  `json:"duplicate"`
	}
	decodeBody(t, resp, &granted)
	assert.Equal(t, int64(3), granted.Quantity)
	assert.False(t, granted.Duplicate)

	listResp, err := http.Get(srv.URL + "/items?userId=user-1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, listResp.StatusCode)

	var items []struct {
		CatalogItemID string `json:"catalogItemId"`
		Name          string `json:"name"`
		Quantity      int64  `json:"quantity"`
	}
	decodeBody(t, listResp, &items)
	require.Len(t, items, 1)
	assert.Equal(t, "potion", items[0].CatalogItemID)
	assert.Equal(t, "Potion", items[0].Name)
	assert.Equal(t, int64(3), items[0].Quantity)
}

func TestHandler_ListWithoutUserID(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/items")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_ListUnknownUserIsEmpty(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/items?userId=nobody")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var items []any
	decodeBody(t, resp, &items)
	assert.Empty(t, items)
}

func TestHandler_GrantUnknownItem(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/items", `{"userId":"user-1","catalogItemId":"no-such-item","quantity":1}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandler_GrantInvalidQuantity(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/items", `{"userId":"user-1","catalogItemId":"potion","quantity":0}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_GrantMalformedBody(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/items", `{not json`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_GrantMissingFields(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/items", `{"quantity":1}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_Health(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}
