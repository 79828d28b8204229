package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var allKeys = []string{
	"CONFIG_FILE",
	"HOST", "PORT", "READ_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT", "ENVIRONMENT", "CORS_ALLOWED_ORIGINS",
	"DB_DRIVER", "DB_SQLITE_PATH", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSL_MODE",
	"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME", "DB_CONN_MAX_IDLE_TIME",
	"REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_DB", "REDIS_POOL_SIZE",
	"REDIS_MIN_IDLE_CONNS", "REDIS_MAX_RETRIES", "REDIS_DIAL_TIMEOUT", "REDIS_READ_TIMEOUT", "REDIS_WRITE_TIMEOUT",
	"CACHE_ENABLED", "CACHE_TASK_TTL",
	"WORKER_ENABLED", "WORKER_CONCURRENCY", "WORKER_POLL_INTERVAL", "WORKER_CLEANUP_INTERVAL", "WORKER_QUEUES",
	"JWT_SECRET", "JWT_ISSUER", "ACCESS_TOKEN_TTL", "REFRESH_TOKEN_TTL", "BCRYPT_COST",
	"RATE_LIMIT_ENABLED", "RATE_LIMIT_RPM", "RATE_LIMIT_BURST", "RATE_LIMIT_CLEANUP",
	"API_URL", "CLIENT_TIMEOUT", "SESSION_PATH",
}

// clearEnv blanks every key for the duration of the test. Empty values
// are treated as unset by the loader.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("Expected no error with default config, got: %v", err)
	}

	if config.Server.Host != "localhost" {
		t.Errorf("Expected default host 'localhost', got %s", config.Server.Host)
	}
	if config.Server.Port != "8080" {
		t.Errorf("Expected default port '8080', got %s", config.Server.Port)
	}
	if config.Server.Environment != "development" {
		t.Errorf("Expected default environment 'development', got %s", config.Server.Environment)
	}
	if len(config.Server.CORSAllowedOrigins) != 1 {
		t.Errorf("Expected one default CORS origin, got %v", config.Server.CORSAllowedOrigins)
	}
	if config.Database.Driver != "postgres" {
		t.Errorf("Expected default DB driver 'postgres', got %s", config.Database.Driver)
	}
	if config.Database.Name != "task_navigator" {
		t.Errorf("Expected default DB name 'task_navigator', got %s", config.Database.Name)
	}
	if config.Database.MaxOpenConns != 25 {
		t.Errorf("Expected default max open conns 25, got %d", config.Database.MaxOpenConns)
	}
	if config.Redis.Port != "6379" {
		t.Errorf("Expected default Redis port '6379', got %s", config.Redis.Port)
	}
	if !config.Cache.Enabled {
		t.Error("Expected cache to be enabled by default")
	}
	if config.Cache.TaskTTL != 15*time.Minute {
		t.Errorf("Expected task cache TTL 15m, got %v", config.Cache.TaskTTL)
	}
	if config.Worker.Concurrency != 2 {
		t.Errorf("Expected default worker concurrency 2, got %d", config.Worker.Concurrency)
	}
	if len(config.Worker.Queues) != 2 {
		t.Errorf("Expected 2 default queues, got %d", len(config.Worker.Queues))
	}
	if config.Auth.BCryptCost != 10 {
		t.Errorf("Expected default bcrypt cost 10, got %d", config.Auth.BCryptCost)
	}
	if config.Auth.AccessTokenTTL != time.Hour {
		t.Errorf("Expected default access token TTL 1h, got %v", config.Auth.AccessTokenTTL)
	}
	if !config.RateLimit.Enabled {
		t.Error("Expected rate limiting to be enabled by default")
	}
	if config.Client.APIURL != "http://localhost:8080" {
		t.Errorf("Expected default API URL, got %s", config.Client.APIURL)
	}
}

func TestLoadConfig_CustomEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOST", "0.0.0.0")
	t.Setenv("PORT", "9000")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DB_PASSWORD", "secure_password")
	t.Setenv("DB_MAX_OPEN_CONNS", "50")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("JWT_SECRET", "production-secret")
	t.Setenv("ACCESS_TOKEN_TTL", "30m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")
	t.Setenv("WORKER_QUEUES", "default")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if config.GetServerAddr() != "0.0.0.0:9000" {
		t.Errorf("Expected server addr 0.0.0.0:9000, got %s", config.GetServerAddr())
	}
	if config.Database.MaxOpenConns != 50 {
		t.Errorf("Expected max open conns 50, got %d", config.Database.MaxOpenConns)
	}
	if config.Redis.DB != 2 {
		t.Errorf("Expected Redis DB 2, got %d", config.Redis.DB)
	}
	if config.Cache.Enabled {
		t.Error("Expected cache to be disabled")
	}
	if config.Auth.AccessTokenTTL != 30*time.Minute {
		t.Errorf("Expected access token TTL 30m, got %v", config.Auth.AccessTokenTTL)
	}
	if len(config.Server.CORSAllowedOrigins) != 2 || config.Server.CORSAllowedOrigins[1] != "https://admin.example.com" {
		t.Errorf("Unexpected CORS origins %v", config.Server.CORSAllowedOrigins)
	}
	if len(config.Worker.Queues) != 1 {
		t.Errorf("Expected a single queue, got %v", config.Worker.Queues)
	}
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_MAX_OPEN_CONNS", "lots")
	t.Setenv("RATE_LIMIT_ENABLED", "maybe")
	t.Setenv("READ_TIMEOUT", "invalid")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if config.Database.MaxOpenConns != 25 {
		t.Errorf("Expected default value 25 for invalid int, got %d", config.Database.MaxOpenConns)
	}
	if !config.RateLimit.Enabled {
		t.Error("Expected default true for invalid bool")
	}
	if config.Server.ReadTimeout != 30*time.Second {
		t.Errorf("Expected default value 30s for invalid duration, got %v", config.Server.ReadTimeout)
	}
}

func TestLoadConfig_ProductionValidation(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "secure-jwt-secret")

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("Expected error for missing database password in production")
	}
	if err.Error() != "database password is required in production" {
		t.Errorf("Expected specific error message, got: %v", err)
	}
}

func TestLoadConfig_ProductionJWTValidation(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DB_PASSWORD", "secure-db-password")

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("Expected error for default JWT secret in production")
	}
	if err.Error() != "JWT secret must be set in production" {
		t.Errorf("Expected specific error message, got: %v", err)
	}
}

func TestLoadConfig_ProductionSQLiteNeedsNoPassword(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("JWT_SECRET", "secure-jwt-secret")

	if _, err := LoadConfig(); err != nil {
		t.Fatalf("Expected sqlite in production to load, got: %v", err)
	}
}

func TestLoadConfig_UnsupportedDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DRIVER", "mysql")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("Expected error for unsupported driver")
	}
}

func TestLoadConfig_ConfigFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "port: \"9100\"\ndb_driver: sqlite\ndb_sqlite_path: /tmp/tasks.db\nworker_queues:\n  - default\n  - maintenance\n  - extra\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9200")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("Expected config file to load, got: %v", err)
	}

	if config.Server.Port != "9200" {
		t.Errorf("Expected environment to override file, got port %s", config.Server.Port)
	}
	if config.Database.Driver != "sqlite" {
		t.Errorf("Expected sqlite driver from file, got %s", config.Database.Driver)
	}
	if config.GetDatabaseDSN() != "/tmp/tasks.db" {
		t.Errorf("Expected sqlite DSN from file, got %s", config.GetDatabaseDSN())
	}
	if len(config.Worker.Queues) != 3 {
		t.Errorf("Expected 3 queues from file, got %v", config.Worker.Queues)
	}
}

func TestLoadConfig_MissingConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := LoadConfig(); err == nil {
		t.Fatal("Expected error for missing config file")
	}
}

func TestConfig_GetDatabaseDSN(t *testing.T) {
	config := &Config{
		Database: DatabaseConfig{
			Driver:   "postgres",
			Host:     "localhost",
			Port:     "5432",
			User:     "testuser",
			Password: "testpass",
			Name:     "testdb",
			SSLMode:  "require",
		},
	}

	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=require"
	if actual := config.GetDatabaseDSN(); actual != expected {
		t.Errorf("Expected DSN '%s', got '%s'", expected, actual)
	}
}

func TestConfig_GetRedisAddr(t *testing.T) {
	config := &Config{Redis: RedisConfig{Host: "redis.example.com", Port: "6380"}}

	if actual := config.GetRedisAddr(); actual != "redis.example.com:6380" {
		t.Errorf("Expected Redis addr 'redis.example.com:6380', got '%s'", actual)
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		environment string
		expected    bool
	}{
		{"production", true},
		{"development", false},
		{"staging", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.environment, func(t *testing.T) {
			config := &Config{Server: ServerConfig{Environment: tt.environment}}
			if result := config.IsProduction(); result != tt.expected {
				t.Errorf("Expected IsProduction() %v for %q, got %v", tt.expected, tt.environment, result)
			}
		})
	}
}
