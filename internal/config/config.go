// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Store backends selectable with STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config is the process configuration read from the environment.
// Binaries import github.com/joho/godotenv/autoload so a local .env file is honoured.
type Config struct {
	Port string

	StoreBackend string
	RedisAddr    string
	RedisDB      int
	RoomTTL      time.Duration
	DatabaseURL  string

	// TokenExpiry of 0 issues session tokens without an exp claim.
	TokenExpiry           time.Duration
	SessionPrivateKeyPath string
	SessionPublicKeyPath  string

	DisconnectGrace time.Duration
	DefaultRoom     string
	LogLevel        logrus.Level
	AllowedOrigins  []string

	ActionQueue string
	NATSURL     string

	HistorianBatchSize int
	HistorianFlush     time.Duration
	RoomInactivity     time.Duration
}

// Load reads the environment and validates it.
func Load() (*Config, error) {
	var err error
	cfg := &Config{
		Port:                  getEnv("PORT", "8080"),
		StoreBackend:          strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		RedisAddr:             getEnv("REDIS_ADDR", "localhost:6379"),
		DatabaseURL:           databaseURL(),
		SessionPrivateKeyPath: os.Getenv("SESSION_PRIVATE_KEY_PATH"),
		SessionPublicKeyPath:  os.Getenv("SESSION_PUBLIC_KEY_PATH"),
		DefaultRoom:           getEnv("DEFAULT_ROOM", "currentGame"),
		AllowedOrigins:        splitList(getEnv("ALLOWED_ORIGINS", "*")),
		ActionQueue:           getEnv("ROOM_ACTION_QUEUE", "room_actions"),
		NATSURL:               os.Getenv("NATS_URL"),
	}

	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.HistorianBatchSize, err = getEnvInt("HISTORIAN_BATCH_SIZE", 20); err != nil {
		return nil, err
	}
	flushMs, err := getEnvInt("HISTORIAN_FLUSH_MS", 500)
	if err != nil {
		return nil, err
	}
	cfg.HistorianFlush = time.Duration(flushMs) * time.Millisecond

	if cfg.RoomTTL, err = getEnvDuration("ROOM_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.TokenExpiry, err = getEnvDuration("TOKEN_EXPIRE_TIME", 0); err != nil {
		return nil, err
	}
	if cfg.DisconnectGrace, err = getEnvDuration("DISCONNECT_GRACE", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.RoomInactivity, err = getEnvDuration("ROOM_INACTIVITY_TIMEOUT", 10*time.Minute); err != nil {
		return nil, err
	}

	cfg.LogLevel, err = logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	switch cfg.StoreBackend {
	case BackendMemory, BackendRedis:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("STORE_BACKEND=postgres needs DATABASE_URL or PG_HOST")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	if cfg.HistorianBatchSize <= 0 {
		return nil, fmt.Errorf("HISTORIAN_BATCH_SIZE must be positive, got %d", cfg.HistorianBatchSize)
	}
	if (cfg.SessionPrivateKeyPath == "") != (cfg.SessionPublicKeyPath == "") {
		return nil, fmt.Errorf("SESSION_PRIVATE_KEY_PATH and SESSION_PUBLIC_KEY_PATH must be set together")
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// databaseURL prefers DATABASE_URL and falls back to the discrete PG_* variables.
func databaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	host := os.Getenv("PG_HOST")
	if host == "" {
		return ""
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		host,
		getEnv("PG_PORT", "5432"),
		os.Getenv("PG_DATABASE"),
	)
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

// getEnvDuration accepts Go durations. "never" and "0" both mean zero.
func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	switch s {
	case "":
		return def, nil
	case "never", "0":
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %s", key, s)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
