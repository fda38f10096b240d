// Package integration runs dataset loading, stores, search and the HTTP API together.
package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/recipeshelf/shelf/internal/buckets"
	"github.com/recipeshelf/shelf/internal/config"
	"github.com/recipeshelf/shelf/internal/keyword"
	"github.com/recipeshelf/shelf/internal/models"
	"github.com/recipeshelf/shelf/internal/search"
	"github.com/recipeshelf/shelf/internal/seed"
	"github.com/recipeshelf/shelf/internal/server"
	"github.com/recipeshelf/shelf/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var datasetPath = filepath.Join("..", "..", "internal", "seed", "testdata", "testdata.json")

func openStores(t *testing.T) map[string]*config.Config {
	t.Helper()
	mr := miniredis.RunT(t)
	dir := t.TempDir()

	cfgs := map[string]*config.Config{
		"sqlite": {Store: config.StoreConfig{Driver: config.DriverSQLite, DatabasePath: filepath.Join(dir, "buckets.db")}},
		"redis":  {Store: config.StoreConfig{Driver: config.DriverRedis, CacheEndpoint: mr.Addr()}},
		"memory": {Store: config.StoreConfig{Driver: config.DriverMemory}},
	}
	for _, cfg := range cfgs {
		config.ApplyDefaults(cfg)
	}
	return cfgs
}

func TestIntegration_LoadAndLookup(t *testing.T) {
	ctx := context.Background()
	for name, cfg := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			store, err := storage.Open(ctx, &cfg.Store)
			require.NoError(t, err)
			defer store.Close()

			loader := seed.NewLoader(store, []string{datasetPath})
			ds, err := loader.Reload(ctx)
			require.NoError(t, err)
			assert.Len(t, ds.Buckets, 5)

			svc := buckets.NewService(store)

			res, err := svc.Handle(ctx, &models.Request{Bucket: "collections"})
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{
				"Curries", "Dinner", "Lunch", "Main course", "One-pot meals", "Rice dishes", "Side dishes",
			}, res.Names)

			res, err = svc.Handle(ctx, &models.Request{Bucket: "popular"})
			require.NoError(t, err)
			assert.Equal(t, []string{"Biryani", "Sambar", "Dal"}, res.Names)

			res, err = svc.Handle(ctx, &models.Request{Bucket: "recipe:masala-dosa"})
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"title", "cuisine", "serves"}, res.Names)

			res, err = svc.Handle(ctx, &models.Request{Bucket: "region", ForChat: true})
			require.NoError(t, err)
			out, err := json.Marshal(res)
			require.NoError(t, err)
			assert.JSONEq(t, `{"messages":[{"attachment":{"payload":{"elements":[{
				"title":"Indian Subcontinent",
				"image_url":"https://res.cloudinary.com/recipe-shelf/image/upload/v1484217570/stock-images/Indian Subcontinent.jpg",
				"item_url":"https://www.recipeshelf.com.au/region/indian subcontinent/"}]}}}]}`, string(out))
		})
	}
}

func TestIntegration_HTTP(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := &config.Config{
		Store:  config.StoreConfig{Driver: config.DriverSQLite, DatabasePath: filepath.Join(dir, "buckets.db")},
		Search: config.SearchConfig{IndexPath: filepath.Join(dir, "items")},
	}
	config.ApplyDefaults(cfg)

	store, err := storage.Open(ctx, &cfg.Store)
	require.NoError(t, err)
	defer store.Close()
	index, err := keyword.NewBleveIndex(cfg.Search.IndexPath)
	require.NoError(t, err)
	defer index.Close()
	engine := search.NewEngine(index, &cfg.Search, nil)

	loader := seed.NewLoader(store, []string{datasetPath},
		seed.WithAfterLoad(func(ctx context.Context, _ *models.Dataset) error {
			return engine.Reindex(ctx, store)
		}),
	)
	srv := server.NewServer(buckets.NewService(store), store, engine, loader, nil, cfg, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/reload", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/v1/events", "application/json", strings.NewReader(`{"bucket":"cuisine","forChat":true}`))
	require.NoError(t, err)
	var g models.Gallery
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&g))
	resp.Body.Close()
	require.Len(t, g.Elements(), 1)
	assert.Equal(t, "https://www.recipeshelf.com.au/cuisine/south indian/", g.Elements()[0].ItemURL)

	resp, err = http.Post(ts.URL+"/api/v1/events", "application/json", nil)
	require.NoError(t, err)
	var errBody map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errBody))
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid event - undefined", errBody["error"])

	resp, err = http.Get(ts.URL + "/api/v1/search?q=indian")
	require.NoError(t, err)
	var sr models.SearchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sr))
	resp.Body.Close()
	assert.Equal(t, 2, sr.Total)
}
