package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"habinest-backend/internal/config"
	"habinest-backend/internal/infrastructure/database"
	"habinest-backend/internal/infrastructure/events"
	"habinest-backend/internal/infrastructure/geoindex"
	"habinest-backend/internal/middleware"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Status   string          `json:"status"`
	Message  string          `json:"message"`
	Data     json.RawMessage `json:"data"`
	Metadata json.RawMessage `json:"metadata"`
	Error    struct {
		Message    string `json:"message"`
		StatusCode int    `json:"statusCode"`
	} `json:"error"`
}

func testConfig() *config.Config {
	return &config.Config{
		Env:          "test",
		GeoBackend:   config.GeoBackendMemory,
		StoreTimeout: 5 * time.Second,
		WriteRetries: 5,
	}
}

func setupApp(t *testing.T, rdb *redis.Client, backend string) *App {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "app.db"), nil)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	cfg := testConfig()
	cfg.GeoBackend = backend
	idx, err := NewIndex(cfg, rdb)
	require.NoError(t, err)
	return Wire(cfg, db, rdb, idx, events.Nop{})
}

// do sends a JSON request as user (empty for anonymous) and decodes the envelope.
func do(t *testing.T, app *fiber.App, method, path, user string, body interface{}) (int, envelope) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(middleware.CallerHeader, user)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func sunriseBody() map[string]interface{} {
	return map[string]interface{}{
		"name":        "Sunrise PG",
		"address":     "12 MG Road",
		"priceRange":  8000,
		"sharingType": "double",
		"gender":      "Women",
		"coordinates": []float64{77.59, 12.97},
	}
}

type listingsPage struct {
	Listings []struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Aggregate struct {
			Count int      `json:"count"`
			Mean  *float64 `json:"mean"`
		} `json:"aggregate"`
		DistanceMeters *float64 `json:"distanceMeters"`
	} `json:"listings"`
}

func TestDiscoveryScenario(t *testing.T) {
	a := setupApp(t, nil, config.GeoBackendMemory)
	app := a.Fiber

	code, env := do(t, app, http.MethodPost, "/api/v1/listings", "owner", sunriseBody())
	require.Equal(t, fiber.StatusCreated, code, env.Error.Message)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	id := created.ID

	for _, score := range []float64{4, 5} {
		code, env = do(t, app, http.MethodPost, "/api/v1/listings/"+id+"/ratings", "reviewer", map[string]interface{}{"score": score})
		require.Equal(t, fiber.StatusCreated, code, env.Error.Message)
	}
	code, env = do(t, app, http.MethodGet, "/api/v1/listings/"+id+"/aggregate", "", nil)
	require.Equal(t, fiber.StatusOK, code)
	var agg struct {
		Count int      `json:"count"`
		Mean  *float64 `json:"mean"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &agg))
	assert.Equal(t, 2, agg.Count)
	require.NotNil(t, agg.Mean)
	assert.InDelta(t, 4.5, *agg.Mean, 1e-9)

	var page listingsPage
	code, env = do(t, app, http.MethodGet, "/api/v1/listings/search?gender=Women&minRating=4", "", nil)
	require.Equal(t, fiber.StatusOK, code, env.Error.Message)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Listings, 1)
	assert.Equal(t, id, page.Listings[0].ID)

	page = listingsPage{}
	code, env = do(t, app, http.MethodGet, "/api/v1/listings/search?gender=Gents", "", nil)
	require.Equal(t, fiber.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Empty(t, page.Listings)

	for i := 0; i < 2; i++ {
		code, env = do(t, app, http.MethodPut, "/api/v1/bookmarks/"+id, "u1", nil)
		require.Equal(t, fiber.StatusOK, code, env.Error.Message)
	}
	page = listingsPage{}
	code, env = do(t, app, http.MethodGet, "/api/v1/bookmarks", "u1", nil)
	require.Equal(t, fiber.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page.Listings, 1)

	code, _ = do(t, app, http.MethodDelete, "/api/v1/listings/"+id, "owner", nil)
	require.Equal(t, fiber.StatusOK, code)

	page = listingsPage{}
	code, env = do(t, app, http.MethodGet, "/api/v1/bookmarks", "u1", nil)
	require.Equal(t, fiber.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Empty(t, page.Listings)

	code, env = do(t, app, http.MethodGet, "/api/v1/listings/"+id+"/events", "", nil)
	require.Equal(t, fiber.StatusOK, code)
	var evs struct {
		Events []struct {
			EventType string `json:"eventType"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &evs))
	assert.Len(t, evs.Events, 4)
}

func TestNearSearchOverRedisIndex(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	a := setupApp(t, rdb, config.GeoBackendRedis)

	near := sunriseBody()
	far := sunriseBody()
	far["name"] = "Marina Stay"
	far["coordinates"] = []float64{80.27, 13.08}
	for _, b := range []map[string]interface{}{near, far} {
		code, env := do(t, a.Fiber, http.MethodPost, "/api/v1/listings", "owner", b)
		require.Equal(t, fiber.StatusCreated, code, env.Error.Message)
	}

	var page listingsPage
	code, env := do(t, a.Fiber, http.MethodGet, "/api/v1/listings/search?lon=77.6&lat=12.97&radius=5000", "", nil)
	require.Equal(t, fiber.StatusOK, code, env.Error.Message)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Listings, 1)
	assert.Equal(t, "Sunrise PG", page.Listings[0].Name)
	require.NotNil(t, page.Listings[0].DistanceMeters)
	assert.Less(t, *page.Listings[0].DistanceMeters, 5000.0)

	n, err := a.Reindex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.EqualValues(t, 2, rdb.ZCard(context.Background(), geoindex.DefaultRedisKey).Val())
}

func TestVisitLifecycleOverHTTP(t *testing.T) {
	a := setupApp(t, nil, config.GeoBackendMemory)
	app := a.Fiber

	code, env := do(t, app, http.MethodPost, "/api/v1/listings", "owner", sunriseBody())
	require.Equal(t, fiber.StatusCreated, code)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	body := map[string]interface{}{"listingId": created.ID, "requestedAt": time.Now().Add(24 * time.Hour).Format(time.RFC3339)}
	code, env = do(t, app, http.MethodPost, "/api/v1/visits", "u1", body)
	require.Equal(t, fiber.StatusCreated, code, env.Error.Message)
	var visit struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &visit))
	assert.Equal(t, "Requested", visit.Status)

	code, _ = do(t, app, http.MethodPost, "/api/v1/visits/"+visit.ID+"/complete", "u1", nil)
	assert.Equal(t, fiber.StatusConflict, code)

	code, _ = do(t, app, http.MethodGet, "/api/v1/visits/"+visit.ID, "intruder", nil)
	assert.Equal(t, fiber.StatusNotFound, code)
	code, _ = do(t, app, http.MethodPost, "/api/v1/visits/"+visit.ID+"/cancel", "intruder", nil)
	assert.Equal(t, fiber.StatusNotFound, code)

	code, env = do(t, app, http.MethodPost, "/api/v1/visits/"+visit.ID+"/confirm", "u1", nil)
	require.Equal(t, fiber.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &visit))
	assert.Equal(t, "Confirmed", visit.Status)

	code, env = do(t, app, http.MethodPost, "/api/v1/visits/"+visit.ID+"/complete", "u1", nil)
	require.Equal(t, fiber.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &visit))
	assert.Equal(t, "Completed", visit.Status)

	code, _ = do(t, app, http.MethodPost, "/api/v1/visits/"+visit.ID+"/cancel", "u1", nil)
	assert.Equal(t, fiber.StatusConflict, code)

	code, _ = do(t, app, http.MethodPost, "/api/v1/visits/"+visit.ID+"/teleport", "u1", nil)
	assert.Equal(t, fiber.StatusBadRequest, code)
}

func TestVisitIdempotencyHeader(t *testing.T) {
	a := setupApp(t, nil, config.GeoBackendMemory)
	code, env := do(t, a.Fiber, http.MethodPost, "/api/v1/listings", "owner", sunriseBody())
	require.Equal(t, fiber.StatusCreated, code)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	send := func() string {
		b, _ := json.Marshal(map[string]interface{}{"listingId": created.ID, "requestedAt": time.Now().Format(time.RFC3339)})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/visits", bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(middleware.CallerHeader, "u1")
		req.Header.Set("Idempotency-Key", "visit-abc")
		resp, err := a.Fiber.Test(req, -1)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
		var env envelope
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
		var v struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &v))
		return v.ID
	}
	assert.Equal(t, send(), send())
}

func TestErrorMapping(t *testing.T) {
	a := setupApp(t, nil, config.GeoBackendMemory)
	app := a.Fiber

	code, _ := do(t, app, http.MethodGet, "/api/v1/listings/not-a-uuid", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, _ = do(t, app, http.MethodGet, "/api/v1/listings/5b0c8a7e-8d0e-4f7e-9d7a-2b9b1d8f0c11", "", nil)
	assert.Equal(t, fiber.StatusNotFound, code)

	code, _ = do(t, app, http.MethodPost, "/api/v1/listings", "", sunriseBody())
	assert.Equal(t, fiber.StatusUnauthorized, code)

	code, _ = do(t, app, http.MethodGet, "/api/v1/bookmarks", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, code)

	code, _ = do(t, app, http.MethodPost, "/api/v1/listings", "owner", sunriseBody())
	require.Equal(t, fiber.StatusCreated, code)
	code, env := do(t, app, http.MethodPost, "/api/v1/listings", "owner", sunriseBody())
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.NotEmpty(t, env.Error.Message)

	bad := sunriseBody()
	bad["name"] = "Elsewhere"
	bad["gender"] = "Mixed"
	code, _ = do(t, app, http.MethodPost, "/api/v1/listings", "owner", bad)
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, _ = do(t, app, http.MethodGet, "/api/v1/listings/search?lon=77.6&lat=12.9", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, _ = do(t, app, http.MethodGet, "/api/v1/listings/search?sortBy=popularity", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, _ = do(t, app, http.MethodGet, "/api/v1/listings/search?limit=abc", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, code)
}

func TestHealthJSON(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	a := setupApp(t, rdb, config.GeoBackendMemory)

	req := httptest.NewRequest(http.MethodGet, "/health/json", nil)
	resp, err := a.Fiber.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])

	req = httptest.NewRequest(http.MethodGet, "/reset?key=wrong", nil)
	resp, err = a.Fiber.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestNewIndexRequiresRedis(t *testing.T) {
	cfg := testConfig()
	cfg.GeoBackend = config.GeoBackendRedis
	_, err := NewIndex(cfg, nil)
	assert.Error(t, err)

	cfg.GeoBackend = config.GeoBackendMemory
	idx, err := NewIndex(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &geoindex.Memory{}, idx)
}
