package database

import (
	"context"
	"testing"
	"time"

	"task-navigator/internal/config"
	"task-navigator/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm/logger"
)

func TestDefaultPoolConfig(t *testing.T) {
	config := DefaultPoolConfig()

	if config.Driver != DriverPostgres {
		t.Errorf("Expected Driver to be postgres, got %s", config.Driver)
	}
	if config.MaxOpenConns != 25 {
		t.Errorf("Expected MaxOpenConns to be 25, got %d", config.MaxOpenConns)
	}
	if config.MaxIdleConns != 10 {
		t.Errorf("Expected MaxIdleConns to be 10, got %d", config.MaxIdleConns)
	}
	if config.ConnMaxLifetime != time.Hour {
		t.Errorf("Expected ConnMaxLifetime to be 1 hour, got %v", config.ConnMaxLifetime)
	}
	if config.ConnMaxIdleTime != time.Minute*30 {
		t.Errorf("Expected ConnMaxIdleTime to be 30 minutes, got %v", config.ConnMaxIdleTime)
	}
	if config.LogLevel != logger.Info {
		t.Errorf("Expected LogLevel to be Info, got %v", config.LogLevel)
	}
}

func TestPoolConfigFromConfig(t *testing.T) {
	cfg := &config.Config{
		Server:   config.ServerConfig{Environment: "production"},
		Database: config.DatabaseConfig{Driver: "sqlite", SQLitePath: "tasks.db", MaxOpenConns: 4, MaxIdleConns: 2},
	}

	pc := PoolConfigFromConfig(cfg, nil)

	if pc.Driver != DriverSQLite || pc.DSN != "tasks.db" {
		t.Errorf("Unexpected driver/DSN %s %s", pc.Driver, pc.DSN)
	}
	if pc.MaxOpenConns != 4 || pc.MaxIdleConns != 2 {
		t.Errorf("Unexpected limits %d/%d", pc.MaxOpenConns, pc.MaxIdleConns)
	}
	if pc.LogLevel != logger.Warn {
		t.Errorf("Expected production log level Warn, got %v", pc.LogLevel)
	}
}

func TestNewDatabasePool_WithNilConfig(t *testing.T) {
	_, err := NewDatabasePool(nil)

	if err == nil {
		t.Error("Expected error due to empty DSN, got nil")
	}
}

func TestNewDatabasePool_InvalidConfigurations(t *testing.T) {
	tests := []struct {
		name   string
		config *PoolConfig
	}{
		{
			name:   "empty DSN",
			config: &PoolConfig{Driver: DriverSQLite, LogLevel: logger.Silent},
		},
		{
			name: "negative limits",
			config: &PoolConfig{
				Driver:       DriverSQLite,
				DSN:          ":memory:",
				MaxOpenConns: -1,
				MaxIdleConns: -1,
				LogLevel:     logger.Silent,
			},
		},
		{
			name: "negative lifetime",
			config: &PoolConfig{
				Driver:          DriverSQLite,
				DSN:             ":memory:",
				ConnMaxLifetime: -time.Hour,
				LogLevel:        logger.Silent,
			},
		},
		{
			name:   "unknown driver",
			config: &PoolConfig{Driver: "mysql", DSN: "root@/tasks", LogLevel: logger.Silent},
		},
		{
			name:   "malformed postgres DSN",
			config: &PoolConfig{Driver: DriverPostgres, DSN: "invalid://connection:string", LogLevel: logger.Silent},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewDatabasePool(tt.config); err == nil {
				t.Error("Expected error but pool creation succeeded")
			}
		})
	}
}

func TestNewDatabasePool_SQLiteMemory(t *testing.T) {
	pool, err := NewDatabasePool(&PoolConfig{
		Driver:       DriverSQLite,
		DSN:          ":memory:",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		LogLevel:     logger.Silent,
	})
	if err != nil {
		t.Fatalf("Failed to open sqlite pool: %v", err)
	}
	defer pool.Close()

	if err := pool.Health(context.Background()); err != nil {
		t.Fatalf("Expected healthy pool, got %v", err)
	}

	stats := pool.Stats()
	if stats["max_open_connections"] != 1 {
		t.Errorf("Expected in-memory sqlite to be pinned to one connection, got %v", stats["max_open_connections"])
	}

	if err := Migrate(pool.DB); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	user := models.User{Email: "migrate@example.com", Password: "hash", IsActive: true}
	if err := pool.DB.Create(&user).Error; err != nil {
		t.Fatalf("Failed to insert user: %v", err)
	}

	task := models.Task{UserID: user.ID, Title: "Write report", DueDate: time.Now()}
	if err := pool.DB.Create(&task).Error; err != nil {
		t.Fatalf("Failed to insert task: %v", err)
	}

	var loaded models.Task
	if err := pool.DB.First(&loaded, "id = ?", task.ID).Error; err != nil {
		t.Fatalf("Failed to load task: %v", err)
	}
	if loaded.Status != models.StatusPending || loaded.Priority != models.PriorityMedium {
		t.Errorf("Expected defaults pending/medium, got %s/%s", loaded.Status, loaded.Priority)
	}
	if loaded.AISuggestions == nil || len(loaded.AISuggestions) != 0 {
		t.Errorf("Expected empty suggestions, got %#v", loaded.AISuggestions)
	}
	if loaded.UserID == uuid.Nil {
		t.Error("Expected owner to round-trip")
	}
}

func TestNewDatabasePool_SQLiteMemoryKeepsConnectionWithoutIdleLimit(t *testing.T) {
	pool, err := NewDatabasePool(&PoolConfig{
		Driver:   DriverSQLite,
		DSN:      ":memory:",
		LogLevel: logger.Silent,
	})
	if err != nil {
		t.Fatalf("Failed to open sqlite pool: %v", err)
	}
	defer pool.Close()

	if err := Migrate(pool.DB); err != nil {
		t.Fatalf("Migrate failed with no idle limit: %v", err)
	}

	var count int64
	if err := pool.DB.Model(&models.User{}).Count(&count).Error; err != nil {
		t.Fatalf("Expected migrated tables to survive between statements, got %v", err)
	}
	if count != 0 {
		t.Errorf("Expected empty users table, got %d rows", count)
	}
}

func TestMigrate_NilDB(t *testing.T) {
	if err := Migrate(nil); err != ErrNoConnection {
		t.Errorf("Expected ErrNoConnection, got %v", err)
	}
}

func TestDatabasePool_Stats_WithoutConnection(t *testing.T) {
	pool := &DatabasePool{DB: nil, config: &PoolConfig{MaxOpenConns: 10}}

	stats := pool.Stats()

	if _, hasError := stats["error"]; !hasError {
		t.Error("Expected error in stats when DB is nil")
	}
}

func TestDatabasePool_Health_WithoutConnection(t *testing.T) {
	pool := &DatabasePool{DB: nil}

	if err := pool.Health(context.Background()); err == nil {
		t.Error("Expected error when checking health with nil DB")
	}
}

func TestDatabasePool_Close_WithoutConnection(t *testing.T) {
	pool := &DatabasePool{DB: nil}

	if err := pool.Close(); err != nil {
		t.Errorf("Expected no error when closing nil DB, got: %v", err)
	}
}

func BenchmarkDefaultPoolConfig(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = DefaultPoolConfig()
	}
}
