package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL   string
	Port          string
	IsProduction  bool
	EnableDBCheck bool
	AutoMigrate   bool

	// StorageDriver selects the repository backend: postgres, sqlite or memory.
	StorageDriver string
	SQLitePath    string

	LedgerTxnPrefix   string
	LedgerLockTimeout time.Duration
	LedgerCurrency    string

	JWTSecret          string
	RateLimit          string
	CORSAllowedOrigins []string

	RedisAddr           string
	LedgerEventsChannel string

	PosthogAPIKey   string
	PosthogEndpoint string
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("PGSQL_URL", "")
	v.SetDefault("PORT", "8080")
	v.SetDefault("IS_PRODUCTION", false)
	v.SetDefault("ENABLE_DB_CHECK", true)
	v.SetDefault("AUTO_MIGRATE", true)
	v.SetDefault("STORAGE_DRIVER", "postgres")
	v.SetDefault("SQLITE_PATH", "student_ledger.db")
	v.SetDefault("LEDGER_TXN_PREFIX", "TXN")
	v.SetDefault("LEDGER_LOCK_TIMEOUT", "2s")
	v.SetDefault("LEDGER_CURRENCY", "UGX")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("RATE_LIMIT", "300-M")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("LEDGER_EVENTS_CHANNEL", "ledger.events")
	v.SetDefault("POSTHOG_API_KEY", "")
	v.SetDefault("POSTHOG_ENDPOINT", "https://eu.i.posthog.com")
	v.AutomaticEnv()

	cfg := &Config{
		DatabaseURL:         v.GetString("PGSQL_URL"),
		Port:                v.GetString("PORT"),
		IsProduction:        v.GetBool("IS_PRODUCTION"),
		EnableDBCheck:       v.GetBool("ENABLE_DB_CHECK"),
		AutoMigrate:         v.GetBool("AUTO_MIGRATE"),
		StorageDriver:       strings.ToLower(v.GetString("STORAGE_DRIVER")),
		SQLitePath:          v.GetString("SQLITE_PATH"),
		LedgerTxnPrefix:     v.GetString("LEDGER_TXN_PREFIX"),
		LedgerCurrency:      v.GetString("LEDGER_CURRENCY"),
		JWTSecret:           v.GetString("JWT_SECRET"),
		RateLimit:           v.GetString("RATE_LIMIT"),
		RedisAddr:           v.GetString("REDIS_ADDR"),
		LedgerEventsChannel: v.GetString("LEDGER_EVENTS_CHANNEL"),
		PosthogAPIKey:       v.GetString("POSTHOG_API_KEY"),
		PosthogEndpoint:     v.GetString("POSTHOG_ENDPOINT"),
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
		log.Printf("Warning: PORT environment variable not set. Defaulting to %s\n", cfg.Port)
	}

	switch cfg.StorageDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("PGSQL_URL is required when STORAGE_DRIVER=postgres")
		}
	case "sqlite":
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("SQLITE_PATH is required when STORAGE_DRIVER=sqlite")
		}
	case "memory":
		log.Println("Warning: STORAGE_DRIVER=memory keeps the ledger in process memory; nothing survives a restart.")
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q (want postgres, sqlite or memory)", cfg.StorageDriver)
	}

	if strings.Contains(cfg.LedgerTxnPrefix, "-") || cfg.LedgerTxnPrefix == "" {
		return nil, fmt.Errorf("LEDGER_TXN_PREFIX must be non-empty and must not contain '-': %q", cfg.LedgerTxnPrefix)
	}

	lockTimeoutStr := v.GetString("LEDGER_LOCK_TIMEOUT")
	lockTimeout, err := time.ParseDuration(lockTimeoutStr)
	if err != nil || lockTimeout <= 0 {
		lockTimeout = 2 * time.Second
		log.Printf("Warning: Invalid value for LEDGER_LOCK_TIMEOUT ('%s'). Defaulting to %s.\n", lockTimeoutStr, lockTimeout)
	}
	cfg.LedgerLockTimeout = lockTimeout

	for _, origin := range strings.Split(v.GetString("CORS_ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	if cfg.JWTSecret == "" {
		if cfg.IsProduction {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = "a-very-secret-key-should-be-longer-and-random" // !! CHANGE IN PRODUCTION !!
		log.Println("Warning: JWT_SECRET environment variable not set. Using default insecure key.")
	}

	if cfg.RedisAddr == "" {
		log.Println("Warning: REDIS_ADDR not set. Ledger events will not be published to redis.")
	}

	return cfg, nil
}
