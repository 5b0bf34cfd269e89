package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration for the telemetry server.
// Operator-tunable pipeline settings (batch size, retention, per-kind flags)
// live in settings.Snapshot and are editable at runtime; everything here is
// fixed for the lifetime of the process.
type Server struct {
	Addr   string
	NodeID string

	DatabaseURL  string
	RedisURL     string
	KafkaBrokers []string
	KafkaTopic   string

	JWTSigningKey string

	// Pipeline tuning. The queue bound and flush cadence are process
	// concerns, not operator settings: the hot path must not consult the
	// snapshot to size its buffer.
	QueueCapacity        int
	FlushInterval        time.Duration
	SyncWriteTimeout     time.Duration
	ShutdownDrainTimeout time.Duration

	// Settings refresh and retention reaping cadence.
	SettingsRefreshInterval time.Duration
	CleanInterval           time.Duration
	CleanChunkSize          int
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("FIDOTEL_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	nodeID := os.Getenv("FIDOTEL_NODE_ID")
	if nodeID == "" {
		if host, err := os.Hostname(); err == nil {
			nodeID = host
		} else {
			nodeID = "unknown"
		}
	}

	jwtSigningKey := os.Getenv("FIDOTEL_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:          addr,
		NodeID:        nodeID,
		DatabaseURL:   os.Getenv("FIDOTEL_DATABASE_URL"),
		RedisURL:      os.Getenv("FIDOTEL_REDIS_URL"),
		KafkaBrokers:  envList("FIDOTEL_KAFKA_BROKERS"),
		KafkaTopic:    envString("FIDOTEL_KAFKA_TOPIC", "fidotel.passkey-events"),
		JWTSigningKey: jwtSigningKey,

		QueueCapacity:        envInt("FIDOTEL_QUEUE_CAPACITY", 8192),
		FlushInterval:        envDuration("FIDOTEL_FLUSH_INTERVAL", time.Second),
		SyncWriteTimeout:     envDuration("FIDOTEL_SYNC_WRITE_TIMEOUT", 250*time.Millisecond),
		ShutdownDrainTimeout: envDuration("FIDOTEL_SHUTDOWN_DRAIN_TIMEOUT", 5*time.Second),

		SettingsRefreshInterval: envDuration("FIDOTEL_SETTINGS_REFRESH_INTERVAL", 10*time.Second),
		CleanInterval:           envDuration("FIDOTEL_CLEAN_INTERVAL", time.Hour),
		CleanChunkSize:          envInt("FIDOTEL_CLEAN_CHUNK_SIZE", 100),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
