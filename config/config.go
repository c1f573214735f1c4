package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL        string
	DBMaxOpenConns     int
	DBConnMaxLifetime  time.Duration
	DBConnectTimeout   time.Duration
	JWTSecretKey       string
	ServerPort         int
	RedisURL           string
	CORSAllowedOrigins []string

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string

	BalanceMinPlayers int
	BalanceMaxPlayers int

	JobWorkers        int
	JobPollInterval   time.Duration
	JobStepTimeout    time.Duration
	JobMaxRetries     int
	StatsCronInterval time.Duration
	ProgressTTL       time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	// Загружаем .env файл, если он есть. Ошибку не считаем фатальной.
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		JWTSecretKey:      os.Getenv("JWT_SECRET_KEY"),
		RedisURL:          os.Getenv("REDIS_URL"),
		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	if cfg.JWTSecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL environment variable is not set")
	}

	for _, origin := range strings.Split(os.Getenv("CORS_ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}

	var err error
	if cfg.ServerPort, err = intVar("SERVER_PORT", 8080, 1); err != nil {
		return nil, err
	}
	if cfg.ServerPort > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", cfg.ServerPort)
	}
	if cfg.DBMaxOpenConns, err = intVar("DB_MAX_OPEN_CONNS", 25, 1); err != nil {
		return nil, err
	}
	if cfg.DBConnMaxLifetime, err = durationVar("DB_CONN_MAX_LIFETIME", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.DBConnectTimeout, err = durationVar("DB_CONNECT_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.BalanceMinPlayers, err = intVar("BALANCE_MIN_PLAYERS", 8, 2); err != nil {
		return nil, err
	}
	if cfg.BalanceMaxPlayers, err = intVar("BALANCE_MAX_PLAYERS", 22, 2); err != nil {
		return nil, err
	}
	if cfg.BalanceMinPlayers > cfg.BalanceMaxPlayers {
		return nil, fmt.Errorf("BALANCE_MIN_PLAYERS (%d) exceeds BALANCE_MAX_PLAYERS (%d)",
			cfg.BalanceMinPlayers, cfg.BalanceMaxPlayers)
	}
	if cfg.JobWorkers, err = intVar("JOB_WORKERS", 4, 1); err != nil {
		return nil, err
	}
	if cfg.JobMaxRetries, err = intVar("JOB_MAX_RETRIES", 3, 0); err != nil {
		return nil, err
	}
	if cfg.JobPollInterval, err = durationVar("JOB_POLL_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.JobStepTimeout, err = durationVar("JOB_STEP_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.StatsCronInterval, err = durationVar("STATS_CRON_INTERVAL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ProgressTTL, err = durationVar("PROGRESS_TTL", 30*time.Minute); err != nil {
		return nil, err
	}

	return cfg, nil
}

func intVar(name string, def, min int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}
	if v < min {
		return 0, fmt.Errorf("%s must be at least %d, got %d", name, min, v)
	}
	return v, nil
}

func durationVar(name string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", name, raw)
	}
	return d, nil
}
