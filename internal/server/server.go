package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"task-navigator/internal/cache"
	"task-navigator/internal/config"
	"task-navigator/internal/database"
	"task-navigator/internal/handlers"
	"task-navigator/internal/middleware"
	"task-navigator/internal/monitoring"
	"task-navigator/internal/services"
	"task-navigator/internal/worker"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

const (
	// invalidateDelay is how long after a write the owner's task list is
	// dropped a second time.
	invalidateDelay = time.Second
	shutdownTimeout = 10 * time.Second
)

type Deps struct {
	Config *config.Config
	Pool   *database.DatabasePool
	// Cache is the shared second level of the task list cache. Nil keeps
	// the cache process local.
	Cache  cache.Cache
	Queue  *worker.JobQueue
	Logger *slog.Logger
}

type Server struct {
	config    *config.Config
	engine    *gin.Engine
	monitor   *monitoring.Monitor
	limiter   *middleware.RateLimiter
	auth      *services.AuthServiceImpl
	taskCache *cache.MultiLevelCache
	queue     *worker.JobQueue
	logger    *slog.Logger
}

func NewServer(deps Deps) (*Server, error) {
	if deps.Config == nil {
		return nil, errors.New("server: config is required")
	}
	if deps.Pool == nil || deps.Pool.DB == nil {
		return nil, database.ErrNoConnection
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	cfg := deps.Config
	db := deps.Pool.DB
	corsConfig := newCORSConfig(cfg.Server.CORSAllowedOrigins)
	if err := corsConfig.Validate(); err != nil {
		return nil, fmt.Errorf("server: invalid CORS settings: %w", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:  cfg,
		engine:  gin.New(),
		monitor: monitoring.NewMonitor(),
		auth:    services.NewAuthService(db, cfg.Auth, deps.Logger),
		queue:   deps.Queue,
		logger:  deps.Logger.With("component", "server"),
	}

	s.engine.Use(
		middleware.RecoveryWithLog(deps.Logger),
		middleware.RequestLogger(deps.Logger),
		s.monitor.Middleware(),
		cors.New(corsConfig),
	)

	var taskService services.TaskService = services.NewTaskService(db)
	if cfg.Cache.Enabled {
		s.taskCache = cache.NewMultiLevelCache(deps.Cache, deps.Logger)
		cached := services.NewCachedTaskService(taskService, s.taskCache, cfg.Cache.TaskTTL, deps.Logger)
		if s.queue != nil {
			cached.OnInvalidate(s.scheduleInvalidation)
		}
		s.monitor.RegisterStats("cache", cached.GetCacheStats)
		taskService = cached
	}

	s.monitor.RegisterHealthCheck("database", deps.Pool.Health)
	s.monitor.RegisterStats("database", deps.Pool.Stats)
	if deps.Cache != nil {
		s.monitor.RegisterHealthCheck("redis", deps.Cache.Health)
	}
	if s.queue != nil {
		s.monitor.RegisterStats("queues", func() map[string]interface{} {
			return s.queue.Stats(cfg.Worker.Queues)
		})
	}

	if cfg.RateLimit.Enabled {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.BurstSize, cfg.RateLimit.CleanupInterval)
	}

	authz := services.NewAuthorizationService(db)
	s.routes(
		handlers.NewAuthHandler(s.auth, deps.Logger),
		handlers.NewTaskHandler(taskService, authz, deps.Logger),
		authz,
	)

	return s, nil
}

func newCORSConfig(origins []string) cors.Config {
	corsConfig := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Prefer"},
		ExposeHeaders: []string{"Content-Length", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	return corsConfig
}

func (s *Server) routes(authHandler *handlers.AuthHandler, taskHandler *handlers.TaskHandler, authz services.AuthorizationService) {
	s.engine.GET("/healthz", s.monitor.HealthHandler())
	s.engine.GET("/readyz", s.monitor.ReadinessHandler())
	s.engine.GET("/livez", s.monitor.LivenessHandler())
	s.engine.GET("/metrics", s.monitor.MetricsHandler())

	authenticate := middleware.Authenticate(s.auth)

	authGroup := s.engine.Group("/auth/v1")
	if s.limiter != nil {
		authGroup.Use(s.limiter.Middleware())
	}
	authGroup.POST("/signup", authHandler.Signup)
	authGroup.POST("/token", authHandler.Token)
	authGroup.POST("/logout", authenticate, authHandler.Logout)
	authGroup.GET("/user", authenticate, authHandler.User)

	rest := s.engine.Group("/rest/v1", authenticate)
	rest.GET("/user_tasks", taskHandler.ListTasks)
	rest.POST("/user_tasks", taskHandler.CreateTask)
	rest.PATCH("/user_tasks/:id",
		middleware.RowOwnership(authz, services.ActionUpdate, s.logger),
		taskHandler.UpdateTask,
	)

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Route not found"})
	})
}

func (s *Server) scheduleInvalidation(ctx context.Context, ownerID uuid.UUID) {
	_, err := s.queue.EnqueueAt(ctx, worker.QueueDefault, worker.JobTypeCacheInvalidate,
		worker.CacheInvalidatePayload(ownerID), time.Now().Add(invalidateDelay))
	if err != nil {
		s.logger.Warn("failed to schedule task list invalidation", "owner_id", ownerID, "error", err)
	}
}

// RegisterJobs installs the handlers for the jobs this server produces.
func (s *Server) RegisterJobs(w *worker.Worker) {
	w.RegisterHandler(worker.JobTypeTokenCleanup, worker.TokenCleanupHandler(s.auth, s.logger))
	if s.taskCache != nil {
		w.RegisterHandler(worker.JobTypeCacheInvalidate, worker.CacheInvalidateHandler(s.taskCache))
	}
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is done, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.GetServerAddr(),
		Handler:      s.engine,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	if s.limiter != nil {
		go s.limiter.Run(ctx, s.config.RateLimit.CleanupInterval)
	}
	if s.taskCache != nil {
		stop, err := s.taskCache.Watch(ctx)
		if err != nil {
			s.logger.Warn("not watching cache evictions from other nodes", "error", err)
		} else {
			defer stop()
		}
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", srv.Addr, "environment", s.config.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
