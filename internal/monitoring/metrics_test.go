package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(m *Monitor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/fail", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	router.GET("/healthz", m.HealthHandler())
	router.GET("/readyz", m.ReadinessHandler())
	router.GET("/livez", m.LivenessHandler())
	router.GET("/metrics", m.MetricsHandler())
	return router
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestMonitor_CountsRequests(t *testing.T) {
	m := NewMonitor()
	router := newTestRouter(m)

	get(router, "/ok")
	get(router, "/ok")
	get(router, "/fail")
	get(router, "/missing")

	metrics := m.GetMetrics()
	assert.Equal(t, int64(4), metrics.RequestCount)
	assert.Equal(t, int64(2), metrics.ErrorCount)
	assert.Equal(t, int64(0), metrics.ActiveRequests)
	assert.Equal(t, int64(2), metrics.Endpoints["GET /ok"])
	assert.Equal(t, int64(1), metrics.Endpoints["GET unmatched"])
	assert.Equal(t, int64(2), metrics.StatusCodes["OK"])
}

func TestMonitor_HealthChecksRunOnEveryRequest(t *testing.T) {
	m := NewMonitor()
	router := newTestRouter(m)

	var dbErr error
	calls := 0
	m.RegisterHealthCheck("database", func(context.Context) error {
		calls++
		return dbErr
	})
	m.RegisterHealthCheck("redis", func(context.Context) error { return nil })

	assert.Equal(t, http.StatusOK, get(router, "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(router, "/readyz").Code)

	dbErr = errors.New("connection refused")
	w := get(router, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(router, "/readyz").Code)
	assert.Equal(t, http.StatusOK, get(router, "/livez").Code)
	assert.Equal(t, 4, calls)

	var body struct {
		Status string                 `json:"status"`
		Checks map[string]HealthCheck `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "connection refused", body.Checks["database"].Message)
	assert.Equal(t, "healthy", body.Checks["redis"].Status)
}

func TestMonitor_MetricsIncludesRegisteredStats(t *testing.T) {
	m := NewMonitor()
	router := newTestRouter(m)
	m.RegisterStats("cache", func() map[string]interface{} {
		return map[string]interface{}{"hits": 3}
	})

	w := get(router, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "application")
	assert.Contains(t, body, "system")
	assert.JSONEq(t, `{"hits":3}`, string(body["cache"]))
}
