package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	dErrors "caseguard/pkg/domain-errors"
)

// Config captures process-level configuration. Load keeps main lean and
// refuses to produce a config the engine cannot safely run with.
type Config struct {
	Addr string

	// Secret feeds the HKDF that derives the audit signing and CSRF keys.
	// There is no safe default: an empty value fails Load.
	Secret string

	RingCapacity int
	QueueSize    int
	WriteTimeout time.Duration

	// PostgresURL enables the durable audit sink when set.
	PostgresURL string

	// Redis enables the shared rate limit counter store when set.
	Redis RedisConfig

	// KafkaBrokers/KafkaTopic enable the streaming audit sink when set.
	KafkaBrokers []string
	KafkaTopic   string

	// AdminJWTKey signs bearer tokens for the operator API.
	AdminJWTKey string

	RateLimitDisabled bool
	RateLimitWindow   time.Duration
	RateLimitMax      int
}

// RedisConfig holds connection settings for the shared counter store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Load builds a Config from environment variables. It errors instead of
// falling back when the signing secret is missing: a hardcoded default
// would let anyone forge audit signatures.
func Load() (Config, error) {
	secret := os.Getenv("CASEGUARD_SECRET")
	if secret == "" {
		return Config{}, dErrors.New(dErrors.CodeInvariantViolation,
			"CASEGUARD_SECRET must be set: the engine refuses to sign with a default key")
	}

	adminKey := os.Getenv("CASEGUARD_ADMIN_JWT_KEY")
	if adminKey == "" {
		return Config{}, dErrors.New(dErrors.CodeInvariantViolation,
			"CASEGUARD_ADMIN_JWT_KEY must be set to protect the operator API")
	}

	cfg := Config{
		Addr:         envOr("CASEGUARD_ADDR", ":8080"),
		Secret:       secret,
		RingCapacity: envInt("CASEGUARD_RING_CAPACITY", 0),
		QueueSize:    envInt("CASEGUARD_QUEUE_SIZE", 0),
		WriteTimeout: envDuration("CASEGUARD_WRITE_TIMEOUT", 2*time.Second),
		PostgresURL:  os.Getenv("CASEGUARD_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("CASEGUARD_REDIS_URL"),
			PoolSize:     envInt("CASEGUARD_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("CASEGUARD_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("CASEGUARD_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("CASEGUARD_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("CASEGUARD_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		KafkaTopic:        envOr("CASEGUARD_KAFKA_TOPIC", "caseguard.audit"),
		AdminJWTKey:       adminKey,
		RateLimitDisabled: os.Getenv("CASEGUARD_RATELIMIT_DISABLED") == "true",
		RateLimitWindow:   envDuration("CASEGUARD_RATELIMIT_WINDOW", time.Minute),
		RateLimitMax:      envInt("CASEGUARD_RATELIMIT_MAX", 100),
	}

	if brokers := os.Getenv("CASEGUARD_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
