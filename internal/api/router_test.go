package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/meur/dexforge/internal/api"
	"github.com/meur/dexforge/internal/catalog"
	"github.com/meur/dexforge/internal/collection"
	"github.com/meur/dexforge/internal/models"
	"github.com/meur/dexforge/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const storageKey = "pokemon-collection"

// pageStub is an in-memory catalog of size entries
type pageStub struct {
	size int

	mu  sync.Mutex
	err error
}

func (p *pageStub) FetchPage(_ context.Context, offset, limit int) (*models.Page, error) {
	p.mu.Lock()
	err := p.err
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}

	page := &models.Page{Items: []models.CatalogItem{}, Total: p.size}
	end := min(offset+limit, p.size)
	for id := offset + 1; id <= end; id++ {
		page.Items = append(page.Items, testPokemon(id))
	}
	page.HasMore = end < p.size
	return page, nil
}

func (p *pageStub) fail(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func testPokemon(id int) models.CatalogItem {
	return models.CatalogItem{
		ID:         id,
		Name:       fmt.Sprintf("mon-%d", id),
		Image:      fmt.Sprintf("https://img.example/%d.png", id),
		Categories: []string{"normal"},
		Metrics:    models.Metrics{Primary: 10, Offense: 20, Defense: 30},
	}
}

type testServer struct {
	*httptest.Server
	store      *storage.Store
	collection *collection.Store
	catalog    *pageStub
}

func newTestServer(t *testing.T, catalogSize, ceiling int) *testServer {
	t.Helper()

	store, err := storage.New(filepath.Join(t.TempDir(), "dexforge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	coll := collection.New(store, storageKey, zap.NewNop())
	coll.Load(context.Background())

	stub := &pageStub{size: catalogSize}
	registry := catalog.NewRegistry(stub, 6, ceiling, 16)

	srv := httptest.NewServer(api.New(coll, registry, store, zap.NewNop()))
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, store: store, collection: coll, catalog: stub}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func itemIDs(items []models.CatalogItem) []int {
	out := make([]int, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, 10, 1000)
	resp := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDiscovery_Flow(t *testing.T) {
	ts := newTestServer(t, 15, 1000)

	resp := ts.do(t, http.MethodPost, "/api/discovery", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	first := decode[api.DiscoveryResponse](t, resp)
	require.NotEmpty(t, first.SessionID)
	assert.Len(t, first.Items, 6)
	assert.True(t, first.HasMore)
	assert.Equal(t, 15, first.Total)
	assert.Equal(t, 6, first.Fetched)

	resp = ts.do(t, http.MethodPost, "/api/discovery/"+first.SessionID+"/next", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := decode[api.DiscoveryResponse](t, resp)
	assert.Equal(t, 7, second.Items[0].ID)
	assert.Equal(t, 12, second.Fetched)

	resp = ts.do(t, http.MethodPost, "/api/discovery/"+first.SessionID+"/next", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	third := decode[api.DiscoveryResponse](t, resp)
	assert.Len(t, third.Items, 3)
	assert.False(t, third.HasMore)

	resp = ts.do(t, http.MethodPost, "/api/discovery/"+first.SessionID+"/next", nil)
	assert.Equal(t, http.StatusGone, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/discovery/"+first.SessionID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	all := decode[api.DiscoveryResponse](t, resp)
	assert.Len(t, all.Items, 15)

	resp = ts.do(t, http.MethodDelete, "/api/discovery/"+first.SessionID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = ts.do(t, http.MethodGet, "/api/discovery/"+first.SessionID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDiscovery_Ceiling(t *testing.T) {
	ts := newTestServer(t, 100, 12)

	resp := ts.do(t, http.MethodPost, "/api/discovery", nil)
	first := decode[api.DiscoveryResponse](t, resp)

	resp = ts.do(t, http.MethodPost, "/api/discovery/"+first.SessionID+"/next", nil)
	second := decode[api.DiscoveryResponse](t, resp)
	assert.False(t, second.HasMore, "ceiling reached while upstream has more")
	assert.Equal(t, 100, second.Total)
}

func TestDiscovery_UpstreamFailure(t *testing.T) {
	ts := newTestServer(t, 100, 1000)

	resp := ts.do(t, http.MethodPost, "/api/discovery", nil)
	first := decode[api.DiscoveryResponse](t, resp)

	ts.catalog.fail(&catalog.StatusError{URL: "http://x/pokemon/9/", StatusCode: 500})
	resp = ts.do(t, http.MethodPost, "/api/discovery/"+first.SessionID+"/next", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "Failed to load Pokemon", body["error"])

	ts.catalog.fail(nil)
	resp = ts.do(t, http.MethodPost, "/api/discovery/"+first.SessionID+"/next", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	retried := decode[api.DiscoveryResponse](t, resp)
	assert.Equal(t, 7, retried.Items[0].ID, "the failed page is fetched again on request")
}

func TestDiscovery_StartFailure(t *testing.T) {
	ts := newTestServer(t, 100, 1000)
	ts.catalog.fail(errors.New("network down"))

	resp := ts.do(t, http.MethodPost, "/api/discovery", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestDiscovery_UnknownSession(t *testing.T) {
	ts := newTestServer(t, 10, 1000)
	resp := ts.do(t, http.MethodPost, "/api/discovery/does-not-exist/next", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDiscovery_MarksCollectedItems(t *testing.T) {
	ts := newTestServer(t, 10, 1000)
	_, err := ts.collection.Add(testPokemon(2))
	require.NoError(t, err)

	resp := ts.do(t, http.MethodPost, "/api/discovery", nil)
	page := decode[api.DiscoveryResponse](t, resp)
	assert.False(t, page.Items[0].InCollection)
	assert.True(t, page.Items[1].InCollection)
}

func TestCollection_Scenario(t *testing.T) {
	ts := newTestServer(t, 10, 1000)

	resp := ts.do(t, http.MethodGet, "/api/collection", nil)
	list := decode[models.ItemList](t, resp)
	assert.Empty(t, list.Items)

	resp = ts.do(t, http.MethodPost, "/api/collection", testPokemon(25))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/collection", testPokemon(25))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	dup := decode[api.MutationResponse](t, resp)
	assert.False(t, dup.Changed)
	assert.Equal(t, []int{25}, itemIDs(dup.Items))

	resp = ts.do(t, http.MethodPost, "/api/collection", testPokemon(1))
	added := decode[api.MutationResponse](t, resp)
	assert.Equal(t, []int{25, 1}, itemIDs(added.Items))

	src, dst := 0, 1
	resp = ts.do(t, http.MethodPut, "/api/collection/order", api.ReorderRequest{SourceIndex: &src, DestinationIndex: &dst})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reordered := decode[api.MutationResponse](t, resp)
	assert.Equal(t, []int{1, 25}, itemIDs(reordered.Items))

	resp = ts.do(t, http.MethodGet, "/api/collection/25", nil)
	membership := decode[map[string]interface{}](t, resp)
	assert.Equal(t, true, membership["in_collection"])

	resp = ts.do(t, http.MethodDelete, "/api/collection/25", nil)
	removed := decode[api.MutationResponse](t, resp)
	assert.True(t, removed.Changed)
	assert.Equal(t, []int{1}, itemIDs(removed.Items))

	resp = ts.do(t, http.MethodDelete, "/api/collection", nil)
	cleared := decode[api.MutationResponse](t, resp)
	assert.Empty(t, cleared.Items)

	raw, ok, err := ts.store.GetItem(storageKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[]", raw)
}

func TestCollection_PersistsAcrossRestart(t *testing.T) {
	ts := newTestServer(t, 10, 1000)
	for _, id := range []int{4, 7, 1} {
		ts.do(t, http.MethodPost, "/api/collection", testPokemon(id))
	}

	reloaded := collection.New(ts.store, storageKey, zap.NewNop())
	reloaded.Load(context.Background())
	assert.Equal(t, []int{4, 7, 1}, itemIDs(reloaded.Items()))
}

func TestCollection_BadRequests(t *testing.T) {
	ts := newTestServer(t, 10, 1000)
	ts.do(t, http.MethodPost, "/api/collection", testPokemon(1))

	bad := 5
	zero := 0
	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
	}{
		{name: "add without name", method: http.MethodPost, path: "/api/collection", body: models.CatalogItem{ID: 3}, status: http.StatusBadRequest},
		{name: "add without id", method: http.MethodPost, path: "/api/collection", body: models.CatalogItem{Name: "x"}, status: http.StatusBadRequest},
		{name: "reorder out of range", method: http.MethodPut, path: "/api/collection/order", body: api.ReorderRequest{SourceIndex: &zero, DestinationIndex: &bad}, status: http.StatusBadRequest},
		{name: "reorder missing index", method: http.MethodPut, path: "/api/collection/order", body: api.ReorderRequest{SourceIndex: &zero}, status: http.StatusBadRequest},
		{name: "remove bad id", method: http.MethodDelete, path: "/api/collection/abc", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	resp := ts.do(t, http.MethodGet, "/api/collection", nil)
	list := decode[models.ItemList](t, resp)
	assert.Equal(t, []int{1}, itemIDs(list.Items), "bad requests leave the collection alone")
}

func TestCollection_InvalidJSON(t *testing.T) {
	ts := newTestServer(t, 10, 1000)

	resp, err := ts.Client().Post(ts.URL+"/api/collection", "application/json", bytes.NewBufferString("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCollection_NotLoaded(t *testing.T) {
	store, err := storage.New(filepath.Join(t.TempDir(), "dexforge.db"))
	require.NoError(t, err)
	defer store.Close()

	coll := collection.New(store, storageKey, zap.NewNop())
	srv := httptest.NewServer(api.New(coll, catalog.NewRegistry(&pageStub{}, 6, 1000, 4), store, zap.NewNop()))
	defer srv.Close()

	body, _ := json.Marshal(testPokemon(1))
	resp, err := srv.Client().Post(srv.URL+"/api/collection", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	_, ok, err := store.GetItem(storageKey)
	require.NoError(t, err)
	assert.False(t, ok, "nothing written before load")
}

func TestCatalogSnapshot(t *testing.T) {
	ts := newTestServer(t, 10, 1000)
	items := []models.CatalogItem{testPokemon(1), testPokemon(2), testPokemon(3)}
	require.NoError(t, ts.store.BulkUpsertCatalogItems(items))
	_, err := ts.collection.Add(testPokemon(2))
	require.NoError(t, err)

	resp := ts.do(t, http.MethodGet, "/api/catalog?offset=1&limit=5", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[models.ItemList](t, resp)
	assert.Equal(t, []int{2, 3}, itemIDs(list.Items))
	assert.Equal(t, 3, list.TotalCount)

	resp = ts.do(t, http.MethodGet, "/api/catalog/2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	item := decode[api.DiscoveredItem](t, resp)
	assert.Equal(t, "mon-2", item.Name)
	assert.True(t, item.InCollection)

	resp = ts.do(t, http.MethodGet, "/api/catalog/99", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/catalog?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
