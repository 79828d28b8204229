// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"task-navigator/internal/cache"
	"task-navigator/internal/config"
	"task-navigator/internal/database"
	"task-navigator/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofrs/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens a migrated in-memory SQLite database that is closed when
// the test ends.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return NewTestPool(t).DB
}

// NewTestPool is NewTestDB for callers that need the pool itself.
func NewTestPool(t *testing.T) *database.DatabasePool {
	t.Helper()

	pool, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:   database.DriverSQLite,
		DSN:      ":memory:",
		LogLevel: logger.Silent,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	if err := database.Migrate(pool.DB); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return pool
}

// NewTestRedis starts a miniredis server and returns a cache connected to it.
func NewTestRedis(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	cfg := cache.DefaultCacheConfig()
	cfg.Addr = mr.Addr()
	cfg.MaxRetries = -1
	cfg.Logger = DiscardLogger()

	rc := cache.NewRedisCache(cfg)
	t.Cleanup(func() { rc.Close() })
	return rc, mr
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// AuthConfig is a fast, deterministic token configuration for tests.
func AuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       "test-secret",
		JWTIssuer:       "task-navigator-test",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
		BCryptCost:      bcrypt.MinCost,
	}
}

// CreateUser inserts an active user with the given email and password.
func CreateUser(t *testing.T, db *gorm.DB, email, password string) models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	user := models.User{Email: email, Password: string(hash), IsActive: true}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return user
}

// CreateTask inserts a task owned by ownerID with created_at set explicitly
// so ordering assertions are deterministic.
func CreateTask(t *testing.T, db *gorm.DB, ownerID uuid.UUID, title string, createdAt time.Time) models.Task {
	t.Helper()

	task := models.Task{
		UserID:    ownerID,
		Title:     title,
		DueDate:   createdAt.Add(72 * time.Hour),
		CreatedAt: createdAt,
	}
	if err := db.Create(&task).Error; err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}
	return task
}
