package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"habinest-backend/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestCallerIdentity(t *testing.T) {
	app := fiber.New()
	app.Use(CallerIdentity())
	app.Get("/open", func(c *fiber.Ctx) error { return c.SendString(GetCaller(c)) })
	app.Get("/closed", RequireCaller(), func(c *fiber.Ctx) error { return c.SendString(GetCaller(c)) })

	req := httptest.NewRequest("GET", "/closed", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)

	req = httptest.NewRequest("GET", "/closed", nil)
	req.Header.Set(CallerHeader, " u1 ")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	req = httptest.NewRequest("GET", "/open", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestTracing_ReusesInboundID(t *testing.T) {
	app := fiber.New()
	app.Use(Tracing())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(GetTraceID(c)) })

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Trace-Id", "abc-123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", resp.Header.Get("X-Trace-Id"))

	resp, err = app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Len(t, resp.Header.Get("X-Trace-Id"), 36)
}

func TestErrorHandler_MapsDomainKinds(t *testing.T) {
	rdb := newRedis(t)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(rdb)})
	app.Use(Tracing())

	cases := map[string]struct {
		err  error
		code int
	}{
		"validation": {domain.Validationf("bad score"), 400},
		"notfound":   {domain.NotFoundf("listing x"), 404},
		"transition": {domain.InvalidTransitionf("nope"), 409},
		"conflict":   {domain.Conflictf("busy"), 409},
		"timeout":    {fmt.Errorf("%w: slow", domain.ErrTimeout), 504},
		"fiber":      {fiber.NewError(418, "teapot"), 418},
		"other":      {fmt.Errorf("driver exploded"), 500},
	}
	for name, tc := range cases {
		err := tc.err
		app.Get("/"+name, func(c *fiber.Ctx) error { return err })
	}
	for name, tc := range cases {
		resp, err := app.Test(httptest.NewRequest("GET", "/"+name, nil))
		require.NoError(t, err)
		assert.Equal(t, tc.code, resp.StatusCode, name)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "error", body["status"])
	}

	entries, err := rdb.LRange(context.Background(), KeyErrorLog, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, entries, 2, "only 5xx errors are recorded")
	joined := entries[0] + entries[1]
	assert.Contains(t, joined, "driver exploded")
	assert.Contains(t, joined, "slow")
}

func TestHealthMarker_CountsRequests(t *testing.T) {
	rdb := newRedis(t)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(nil)})
	app.Use(HealthMarker(rdb))
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/boom", func(c *fiber.Ctx) error { return fmt.Errorf("boom") })
	app.Get("/health/json", func(c *fiber.Ctx) error { return c.SendString("{}") })

	for _, p := range []string{"/ok", "/ok", "/boom", "/health/json"} {
		_, err := app.Test(httptest.NewRequest("GET", p, nil))
		require.NoError(t, err)
	}

	ctx := context.Background()
	total, err := rdb.Get(ctx, KeyReqTotal).Int()
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	errs, err := rdb.Get(ctx, KeyReqErrors).Int()
	require.NoError(t, err)
	assert.Equal(t, 1, errs)
}

func TestHealthMarker_NilRedis(t *testing.T) {
	app := fiber.New()
	app.Use(HealthMarker(nil))
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })
	resp, err := app.Test(httptest.NewRequest("GET", "/ok", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	app := fiber.New()
	app.Use(CORS(CORSConfig{AllowedOrigins: []string{"https://app.habinest.example/"}}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://app.habinest.example")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "https://app.habinest.example", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), CallerHeader)

	req = httptest.NewRequest("OPTIONS", "/", nil)
	req.Header.Set("Origin", "https://app.habinest.example")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 403, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}
