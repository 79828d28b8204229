package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key"

type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Cache     CacheConfig     `json:"cache"`
	Worker    WorkerConfig    `json:"worker"`
	Auth      AuthConfig      `json:"auth"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Client    ClientConfig    `json:"client"`
}

type ServerConfig struct {
	Host               string        `json:"host"`
	Port               string        `json:"port"`
	ReadTimeout        time.Duration `json:"read_timeout"`
	WriteTimeout       time.Duration `json:"write_timeout"`
	IdleTimeout        time.Duration `json:"idle_timeout"`
	Environment        string        `json:"environment"`
	CORSAllowedOrigins []string      `json:"cors_allowed_origins"`
}

type DatabaseConfig struct {
	Driver          string        `json:"driver"`
	SQLitePath      string        `json:"sqlite_path"`
	Host            string        `json:"host"`
	Port            string        `json:"port"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	Name            string        `json:"name"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
}

type RedisConfig struct {
	Host         string        `json:"host"`
	Port         string        `json:"port"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	PoolSize     int           `json:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns"`
	MaxRetries   int           `json:"max_retries"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// CacheConfig controls the server-side task list cache. Redis is only
// used as a second level when Enabled is set.
type CacheConfig struct {
	Enabled bool          `json:"enabled"`
	TaskTTL time.Duration `json:"task_ttl"`
}

type WorkerConfig struct {
	Enabled         bool          `json:"enabled"`
	Concurrency     int           `json:"concurrency"`
	PollInterval    time.Duration `json:"poll_interval"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
	Queues          []string      `json:"queues"`
}

type AuthConfig struct {
	JWTSecret       string        `json:"jwt_secret"`
	JWTIssuer       string        `json:"jwt_issuer"`
	AccessTokenTTL  time.Duration `json:"access_token_ttl"`
	RefreshTokenTTL time.Duration `json:"refresh_token_ttl"`
	BCryptCost      int           `json:"bcrypt_cost"`
}

type RateLimitConfig struct {
	Enabled         bool          `json:"enabled"`
	RequestsPerMin  int           `json:"requests_per_minute"`
	BurstSize       int           `json:"burst_size"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

// ClientConfig is read by the command line client, not the server.
type ClientConfig struct {
	APIURL      string        `json:"api_url"`
	Timeout     time.Duration `json:"timeout"`
	SessionPath string        `json:"session_path"`
}

// LoadConfig reads configuration from the environment, optionally layered
// over the file named by CONFIG_FILE. Keys are the environment variable
// names; a config file uses the same names in lower case.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:               getString(v, "HOST", "localhost"),
			Port:               getString(v, "PORT", "8080"),
			ReadTimeout:        getDuration(v, "READ_TIMEOUT", 30*time.Second),
			WriteTimeout:       getDuration(v, "WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:        getDuration(v, "IDLE_TIMEOUT", 60*time.Second),
			Environment:        getString(v, "ENVIRONMENT", "development"),
			CORSAllowedOrigins: getList(v, "CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		},
		Database: DatabaseConfig{
			Driver:          getString(v, "DB_DRIVER", "postgres"),
			SQLitePath:      getString(v, "DB_SQLITE_PATH", "task_navigator.db"),
			Host:            getString(v, "DB_HOST", "localhost"),
			Port:            getString(v, "DB_PORT", "5432"),
			User:            getString(v, "DB_USER", "postgres"),
			Password:        getString(v, "DB_PASSWORD", ""),
			Name:            getString(v, "DB_NAME", "task_navigator"),
			SSLMode:         getString(v, "DB_SSL_MODE", "disable"),
			MaxOpenConns:    getInt(v, "DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt(v, "DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getDuration(v, "DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: getDuration(v, "DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Host:         getString(v, "REDIS_HOST", "localhost"),
			Port:         getString(v, "REDIS_PORT", "6379"),
			Password:     getString(v, "REDIS_PASSWORD", ""),
			DB:           getInt(v, "REDIS_DB", 0),
			PoolSize:     getInt(v, "REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt(v, "REDIS_MIN_IDLE_CONNS", 5),
			MaxRetries:   getInt(v, "REDIS_MAX_RETRIES", 3),
			DialTimeout:  getDuration(v, "REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration(v, "REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration(v, "REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Cache: CacheConfig{
			Enabled: getBool(v, "CACHE_ENABLED", true),
			TaskTTL: getDuration(v, "CACHE_TASK_TTL", 15*time.Minute),
		},
		Worker: WorkerConfig{
			Enabled:         getBool(v, "WORKER_ENABLED", true),
			Concurrency:     getInt(v, "WORKER_CONCURRENCY", 2),
			PollInterval:    getDuration(v, "WORKER_POLL_INTERVAL", 5*time.Second),
			CleanupInterval: getDuration(v, "WORKER_CLEANUP_INTERVAL", time.Hour),
			Queues:          getList(v, "WORKER_QUEUES", []string{"default", "maintenance"}),
		},
		Auth: AuthConfig{
			JWTSecret:       getString(v, "JWT_SECRET", defaultJWTSecret),
			JWTIssuer:       getString(v, "JWT_ISSUER", "task-navigator"),
			AccessTokenTTL:  getDuration(v, "ACCESS_TOKEN_TTL", time.Hour),
			RefreshTokenTTL: getDuration(v, "REFRESH_TOKEN_TTL", 7*24*time.Hour),
			BCryptCost:      getInt(v, "BCRYPT_COST", 10),
		},
		RateLimit: RateLimitConfig{
			Enabled:         getBool(v, "RATE_LIMIT_ENABLED", true),
			RequestsPerMin:  getInt(v, "RATE_LIMIT_RPM", 30),
			BurstSize:       getInt(v, "RATE_LIMIT_BURST", 10),
			CleanupInterval: getDuration(v, "RATE_LIMIT_CLEANUP", 10*time.Minute),
		},
		Client: ClientConfig{
			APIURL:      getString(v, "API_URL", "http://localhost:8080"),
			Timeout:     getDuration(v, "CLIENT_TIMEOUT", 15*time.Second),
			SessionPath: getString(v, "SESSION_PATH", ""),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.IsProduction() {
		if c.Database.Driver == "postgres" && c.Database.Password == "" {
			return errors.New("database password is required in production")
		}
		if c.Auth.JWTSecret == defaultJWTSecret {
			return errors.New("JWT secret must be set in production")
		}
	}

	return nil
}

func (c *Config) GetDatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLitePath
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func getString(v *viper.Viper, key, defaultValue string) string {
	if value := v.GetString(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(v *viper.Viper, key string, defaultValue int) int {
	if !v.IsSet(key) {
		return defaultValue
	}
	if intValue, err := cast.ToIntE(v.Get(key)); err == nil {
		return intValue
	}
	return defaultValue
}

func getBool(v *viper.Viper, key string, defaultValue bool) bool {
	if !v.IsSet(key) {
		return defaultValue
	}
	if boolValue, err := cast.ToBoolE(v.Get(key)); err == nil {
		return boolValue
	}
	return defaultValue
}

func getDuration(v *viper.Viper, key string, defaultValue time.Duration) time.Duration {
	if !v.IsSet(key) {
		return defaultValue
	}
	if duration, err := cast.ToDurationE(v.Get(key)); err == nil {
		return duration
	}
	return defaultValue
}

// getList accepts a comma separated string from the environment or a
// native list from a config file.
func getList(v *viper.Viper, key string, defaultValue []string) []string {
	if !v.IsSet(key) {
		return defaultValue
	}
	raw := v.Get(key)
	if s, ok := raw.(string); ok {
		var items []string
		for _, item := range strings.Split(s, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		if len(items) == 0 {
			return defaultValue
		}
		return items
	}
	if items, err := cast.ToStringSliceE(raw); err == nil && len(items) > 0 {
		return items
	}
	return defaultValue
}
