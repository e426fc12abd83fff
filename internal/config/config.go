package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"

	BusLocal = "local"
	BusRedis = "redis"
	BusNATS  = "nats"

	AuthJWT     = "jwt"
	AuthSession = "session"

	NotifyDirect = "direct"
	NotifyQueue  = "queue"
)

type Config struct {
	Environment string
	Port        string
	LogLevel    string

	StoreDriver       string
	MongoURI          string
	MongoDatabase     string
	MongoTransactions bool

	RedisURI string

	NATSURL           string
	NATSMaxReconnects int
	NATSReconnectWait time.Duration
	RealtimeBus       string

	AuthMode  string
	JWTSecret string
	JWTIssuer string

	AllowedOrigins []string

	NotificationsMode string
	WorkerConcurrency int
	QueueWeights      string

	PlatformAdmins        []string
	GroupsRequireApproval bool

	RateLimitRPS          float64
	RateLimitBurst        int
	MessagesPerMinute     int
	ProfileCacheTTL       time.Duration
	RequestTimeoutSeconds int
}

func defaults(v *viper.Viper) {
	v.SetDefault("ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_DRIVER", StoreMongo)
	v.SetDefault("MONGODB_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGODB_DATABASE", "trailhub")
	v.SetDefault("MONGO_TRANSACTIONS", false)
	v.SetDefault("REDIS_URI", "")
	v.SetDefault("NATS_URL", "")
	v.SetDefault("NATS_MAX_RECONNECTS", 60)
	v.SetDefault("NATS_RECONNECT_WAIT", "2s")
	v.SetDefault("REALTIME_BUS", BusLocal)
	v.SetDefault("AUTH_MODE", AuthJWT)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("NOTIFICATIONS_MODE", NotifyDirect)
	v.SetDefault("WORKER_CONCURRENCY", 10)
	v.SetDefault("QUEUE_WEIGHTS", "notifications=2,default=1")
	v.SetDefault("PLATFORM_ADMINS", "")
	v.SetDefault("GROUPS_REQUIRE_APPROVAL", false)
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("MESSAGES_PER_MINUTE", 30)
	v.SetDefault("PROFILE_CACHE_TTL", "8h")
	v.SetDefault("REQUEST_TIMEOUT_SECONDS", 5)
}

// Load reads configuration from the environment. Call godotenv first if a
// .env file should be honoured.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	defaults(v)

	cfg := &Config{
		Environment:           strings.ToLower(strings.TrimSpace(v.GetString("ENV"))),
		Port:                  v.GetString("PORT"),
		LogLevel:              strings.ToLower(v.GetString("LOG_LEVEL")),
		StoreDriver:           strings.ToLower(v.GetString("STORE_DRIVER")),
		MongoURI:              v.GetString("MONGODB_URI"),
		MongoDatabase:         v.GetString("MONGODB_DATABASE"),
		MongoTransactions:     v.GetBool("MONGO_TRANSACTIONS"),
		RedisURI:              strings.TrimSpace(v.GetString("REDIS_URI")),
		NATSURL:               strings.TrimSpace(v.GetString("NATS_URL")),
		NATSMaxReconnects:     v.GetInt("NATS_MAX_RECONNECTS"),
		NATSReconnectWait:     v.GetDuration("NATS_RECONNECT_WAIT"),
		RealtimeBus:           strings.ToLower(v.GetString("REALTIME_BUS")),
		AuthMode:              strings.ToLower(v.GetString("AUTH_MODE")),
		JWTSecret:             v.GetString("JWT_SECRET"),
		JWTIssuer:             v.GetString("JWT_ISSUER"),
		AllowedOrigins:        splitList(v.GetString("ALLOWED_ORIGINS")),
		NotificationsMode:     strings.ToLower(v.GetString("NOTIFICATIONS_MODE")),
		WorkerConcurrency:     v.GetInt("WORKER_CONCURRENCY"),
		QueueWeights:          v.GetString("QUEUE_WEIGHTS"),
		PlatformAdmins:        splitList(v.GetString("PLATFORM_ADMINS")),
		GroupsRequireApproval: v.GetBool("GROUPS_REQUIRE_APPROVAL"),
		RateLimitRPS:          v.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst:        v.GetInt("RATE_LIMIT_BURST"),
		MessagesPerMinute:     v.GetInt("MESSAGES_PER_MINUTE"),
		ProfileCacheTTL:       v.GetDuration("PROFILE_CACHE_TTL"),
		RequestTimeoutSeconds: v.GetInt("REQUEST_TIMEOUT_SECONDS"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown modes and modes whose backing service is not configured.
func (c *Config) Validate() error {
	if err := oneOf("STORE_DRIVER", c.StoreDriver, StoreMongo, StoreMemory); err != nil {
		return err
	}
	if err := oneOf("REALTIME_BUS", c.RealtimeBus, BusLocal, BusRedis, BusNATS); err != nil {
		return err
	}
	if err := oneOf("AUTH_MODE", c.AuthMode, AuthJWT, AuthSession); err != nil {
		return err
	}
	if err := oneOf("NOTIFICATIONS_MODE", c.NotificationsMode, NotifyDirect, NotifyQueue); err != nil {
		return err
	}

	if c.StoreDriver == StoreMongo && c.MongoURI == "" {
		return fmt.Errorf("config: MONGODB_URI is required when STORE_DRIVER=mongo")
	}
	if c.RedisURI == "" {
		switch {
		case c.RealtimeBus == BusRedis:
			return fmt.Errorf("config: REDIS_URI is required when REALTIME_BUS=redis")
		case c.AuthMode == AuthSession:
			return fmt.Errorf("config: REDIS_URI is required when AUTH_MODE=session")
		case c.NotificationsMode == NotifyQueue:
			return fmt.Errorf("config: REDIS_URI is required when NOTIFICATIONS_MODE=queue")
		}
	}
	if c.RealtimeBus == BusNATS && c.NATSURL == "" {
		return fmt.Errorf("config: NATS_URL is required when REALTIME_BUS=nats")
	}
	// The worker runs in its own process and must share the server's store and bus.
	if c.NotificationsMode == NotifyQueue {
		if c.StoreDriver == StoreMemory {
			return fmt.Errorf("config: NOTIFICATIONS_MODE=queue needs a shared store, not STORE_DRIVER=memory")
		}
		if c.RealtimeBus == BusLocal {
			return fmt.Errorf("config: NOTIFICATIONS_MODE=queue needs REALTIME_BUS=redis or nats")
		}
	}
	if c.AuthMode == AuthJWT && c.JWTSecret == "" {
		if c.IsProduction() {
			return fmt.Errorf("config: JWT_SECRET is required in production")
		}
		c.JWTSecret = "dev-secret-change-me"
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("config: RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// RequestTimeout bounds the storage work of a single request.
func (c *Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("config: %s must be one of %s, got %q", key, strings.Join(allowed, "|"), value)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
