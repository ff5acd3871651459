package system

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"go-cats/internal/config"
	"go-cats/internal/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(ping func(ctx context.Context) error) (*fiber.App, *metrics.Metrics) {
	m := metrics.NewMetrics(metrics.NewRegistry())
	controller := &SystemController{ping: ping, registry: m.Registry}

	app := fiber.New()
	NewSystemApi(controller, &config.Config{SkipAuth: true}).Setup(app)
	return app, m
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(func(ctx context.Context) error { return nil })

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestHealthDatabaseDown(t *testing.T) {
	app, _ := newTestApp(func(ctx context.Context) error { return errors.New("server selection timeout") })

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	app, m := newTestApp(func(ctx context.Context) error { return nil })
	m.StatisticsRecomputed.Inc()

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "sla_statistics_recomputed_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestCurrentUser(t *testing.T) {
	app, _ := newTestApp(func(ctx context.Context) error { return nil })

	resp, err := app.Test(httptest.NewRequest("GET", "/api/debug/me", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		UserID string   `json:"user_id"`
		Roles  []string `json:"roles"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "dev-admin-id", body.UserID)
	assert.Equal(t, []string{"admin"}, body.Roles)
}
