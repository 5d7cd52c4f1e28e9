package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/chatbridge/internal/application/bridge"
	"github.com/erp/chatbridge/internal/application/correlation"
	"github.com/erp/chatbridge/internal/infrastructure/cache"
	"github.com/erp/chatbridge/internal/infrastructure/config"
	"github.com/erp/chatbridge/internal/infrastructure/metrics"
	"github.com/erp/chatbridge/internal/interfaces/http/handler"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type staticStatus bridge.Stats

func (s staticStatus) Stats() bridge.Stats { return bridge.Stats(s) }

type testEnv struct {
	engine *gin.Engine
	store  *cache.InMemoryStore
	corr   *correlation.Correlator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := cache.NewInMemoryStore()
	ext, err := correlation.NewExtractor(config.DefaultOrderPatterns)
	require.NoError(t, err)
	corr := correlation.NewCorrelator(ext, store, nil)

	m := metrics.New()
	m.RecordOutcome("side_a", "delivered")

	status := staticStatus{
		Workers:   map[string]bool{bridge.WorkerSideA: true, bridge.WorkerSideB: true, bridge.WorkerDrainer: true},
		Delivered: 3,
	}

	engine := NewEngine(EngineConfig{
		Health:  handler.NewHealthHandler(store),
		Metrics: m.Handler(),
	}, handler.NewBridgeHandler(corr, status))

	return &testEnv{engine: engine, store: store, corr: corr}
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRouterSetup_APIVersion(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v2"))
	r.Register(handler.NewBridgeHandler(nil, nil))
	r.Setup()

	assert.Equal(t, "v2", r.apiVersion)
	assert.Len(t, r.registrars, 1)

	var paths []string
	for _, route := range engine.Routes() {
		paths = append(paths, route.Path)
	}
	assert.Contains(t, paths, "/api/v2/orders/:number")
	assert.NotContains(t, paths, "/api/v2/status")
}

func TestEngine_Health(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	require.NoError(t, env.store.Close())
	w = env.get("/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"unhealthy"`)
}

func TestEngine_RequestIDPropagated(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestEngine_Metrics(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `chatbridge_messages_total{outcome="delivered",source="side_a"} 1`)
}

func TestEngine_Orders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.corr.RegisterOrders(ctx, []string{"YT1234567890123", "YT1234567890124"}, "s1"))

	w := env.get("/api/v1/orders/YT1234567890123")
	require.Equal(t, http.StatusOK, w.Code)
	var order handler.OrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	assert.Equal(t, handler.OrderResponse{OrderNumber: "YT1234567890123", SessionID: "s1"}, order)

	w = env.get("/api/v1/orders/YT0000000000000")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), handler.CodeNotFound)

	w = env.get("/api/v1/sessions/s1/orders")
	require.Equal(t, http.StatusOK, w.Code)
	var orders handler.SessionOrdersResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &orders))
	assert.Equal(t, "s1", orders.SessionID)
	assert.ElementsMatch(t, []string{"YT1234567890123", "YT1234567890124"}, orders.OrderNumbers)

	w = env.get("/api/v1/sessions/nobody/orders")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `"order_numbers":[]`))
}

func TestEngine_Status(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/api/v1/status")
	require.Equal(t, http.StatusOK, w.Code)

	var stats bridge.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(3), stats.Delivered)
	assert.True(t, stats.Workers[bridge.WorkerDrainer])
}

type failingLookup struct{}

func (failingLookup) ResolveSession(context.Context, string) (string, bool, error) {
	return "", false, errors.New("redis down")
}

func (failingLookup) OrdersForSession(context.Context, string) ([]string, error) {
	return nil, errors.New("redis down")
}

func TestEngine_StoreFailure(t *testing.T) {
	engine := NewEngine(EngineConfig{}, handler.NewBridgeHandler(failingLookup{}, nil))

	for _, path := range []string{"/api/v1/orders/YT1234567890123", "/api/v1/sessions/s1/orders"} {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
		assert.Contains(t, w.Body.String(), handler.CodeUnavailable)
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
