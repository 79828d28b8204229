package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"task-navigator/internal/config"
	"task-navigator/internal/handlers"
	"task-navigator/internal/models"
	"task-navigator/internal/server"
	"task-navigator/internal/testutil"
	"task-navigator/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:               "127.0.0.1",
			Port:               "0",
			Environment:        "development",
			CORSAllowedOrigins: []string{"http://localhost:5173"},
		},
		Cache:  config.CacheConfig{Enabled: true, TaskTTL: time.Minute},
		Worker: config.WorkerConfig{Queues: []string{worker.QueueDefault, worker.QueueMaintenance}},
		Auth:   testutil.AuthConfig(),
	}
}

type client struct {
	t       *testing.T
	handler http.Handler
	token   string
}

func (c *client) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	return w
}

func (c *client) signup(email string) handlers.TokenResponse {
	c.t.Helper()
	w := c.do(http.MethodPost, "/auth/v1/signup", gin.H{"email": email, "password": "password123"})
	require.Equal(c.t, http.StatusCreated, w.Code, w.Body.String())
	var session handlers.TokenResponse
	require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &session))
	c.token = session.AccessToken
	return session
}

func (c *client) tasks() []models.Task {
	c.t.Helper()
	w := c.do(http.MethodGet, "/rest/v1/user_tasks", nil)
	require.Equal(c.t, http.StatusOK, w.Code, w.Body.String())
	var tasks []models.Task
	require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &tasks))
	return tasks
}

func newServer(t *testing.T, deps server.Deps) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if deps.Config == nil {
		deps.Config = testConfig()
	}
	if deps.Pool == nil {
		deps.Pool = testutil.NewTestPool(t)
	}
	deps.Logger = testutil.DiscardLogger()

	srv, err := server.NewServer(deps)
	require.NoError(t, err)
	return srv.Handler()
}

func TestServer_TaskLifecycle(t *testing.T) {
	handler := newServer(t, server.Deps{})
	alice := &client{t: t, handler: handler}
	session := alice.signup("alice@example.com")

	assert.Empty(t, alice.tasks())

	due := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)
	w := alice.do(http.MethodPost, "/rest/v1/user_tasks", gin.H{
		"title":    "Buy milk",
		"due_date": due,
		"user_id":  session.User.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	tasks := alice.tasks()
	require.Len(t, tasks, 1, "list must reflect the write")
	created := tasks[0]
	assert.Equal(t, "Buy milk", created.Title)
	assert.Equal(t, models.StatusPending, created.Status)
	assert.Equal(t, models.PriorityMedium, created.Priority)

	path := "/rest/v1/user_tasks/" + created.ID.String()
	require.Equal(t, http.StatusOK, alice.do(http.MethodPatch, path, gin.H{"status": "completed"}).Code)
	require.Equal(t, http.StatusOK, alice.do(http.MethodPatch, path, gin.H{"status": "completed"}).Code)

	tasks = alice.tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, models.StatusCompleted, tasks[0].Status)
	assert.NotNil(t, tasks[0].CompletedAt)

	mallory := &client{t: t, handler: handler}
	mallory.signup("mallory@example.com")
	assert.Empty(t, mallory.tasks())
	assert.Equal(t, http.StatusNotFound, mallory.do(http.MethodPatch, path, gin.H{"title": "mine now"}).Code)
	assert.Equal(t, http.StatusForbidden, mallory.do(http.MethodPost, "/rest/v1/user_tasks", gin.H{
		"title":    "Planted",
		"due_date": due,
		"user_id":  session.User.ID,
	}).Code)
	assert.Len(t, alice.tasks(), 1)
}

func TestServer_RequiresBearerToken(t *testing.T) {
	handler := newServer(t, server.Deps{})
	anonymous := &client{t: t, handler: handler}

	assert.Equal(t, http.StatusUnauthorized, anonymous.do(http.MethodGet, "/rest/v1/user_tasks", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, anonymous.do(http.MethodGet, "/auth/v1/user", nil).Code)

	anonymous.token = "not-a-jwt"
	assert.Equal(t, http.StatusUnauthorized, anonymous.do(http.MethodGet, "/rest/v1/user_tasks", nil).Code)
}

func TestServer_PasswordGrantAndLogout(t *testing.T) {
	handler := newServer(t, server.Deps{})
	c := &client{t: t, handler: handler}
	c.signup("bob@example.com")

	form := url.Values{"grant_type": {"password"}, "username": {"bob@example.com"}, "password": {"password123"}}
	req, _ := http.NewRequest(http.MethodPost, "/auth/v1/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, http.StatusNoContent, c.do(http.MethodPost, "/auth/v1/logout", nil).Code)
}

func TestServer_SchedulesSecondInvalidation(t *testing.T) {
	redisCache, _ := testutil.NewTestRedis(t)
	queue := worker.NewJobQueue(redisCache.Client(), testutil.DiscardLogger())
	handler := newServer(t, server.Deps{Cache: redisCache, Queue: queue})

	c := &client{t: t, handler: handler}
	c.signup("carol@example.com")
	c.tasks()

	w := c.do(http.MethodPost, "/rest/v1/user_tasks", gin.H{"title": "Call mom", "due_date": time.Now().UTC()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	scheduled, err := queue.ScheduledSize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), scheduled)
	assert.Len(t, c.tasks(), 1)
}

func TestServer_RateLimitsAuthEndpoints(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMin: 1, BurstSize: 2, CleanupInterval: time.Minute}
	handler := newServer(t, server.Deps{Config: cfg})
	c := &client{t: t, handler: handler}

	for i := 0; i < 2; i++ {
		w := c.do(http.MethodPost, "/auth/v1/signup", gin.H{"email": "x", "password": "y"})
		assert.NotEqual(t, http.StatusTooManyRequests, w.Code)
	}
	w := c.do(http.MethodPost, "/auth/v1/signup", gin.H{"email": "x", "password": "y"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/livez", nil).Code)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	redisCache, mr := testutil.NewTestRedis(t)
	handler := newServer(t, server.Deps{Cache: redisCache})
	c := &client{t: t, handler: handler}

	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/readyz", nil).Code)

	w := c.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var metrics map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &metrics))
	assert.Contains(t, metrics, "cache")
	assert.Contains(t, metrics, "database")

	mr.Close()
	assert.Equal(t, http.StatusServiceUnavailable, c.do(http.MethodGet, "/readyz", nil).Code)
}

func TestServer_CORSPreflight(t *testing.T) {
	handler := newServer(t, server.Deps{})

	req, _ := http.NewRequest(http.MethodOptions, "/rest/v1/user_tasks", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Less(t, w.Code, 300)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_UnknownRoute(t *testing.T) {
	handler := newServer(t, server.Deps{})
	c := &client{t: t, handler: handler}

	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/nowhere", nil).Code)
}

func TestNewServer_RequiresDatabase(t *testing.T) {
	_, err := server.NewServer(server.Deps{Config: testConfig()})
	assert.Error(t, err)
}
