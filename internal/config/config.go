package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"

	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per request handler bound (ex: 5s)
	BaseURL         string        // prefix of short_url in responses (ex: https://hop.domain.ext)

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Database
	DBDriver         string        // "postgres" | "sqlite" | "memory"
	DatabaseURL      string        // DSN or sqlite file path
	DBMaxOpenConns   int           // shared pool size
	DBMaxIdleConns   int           // idle connections kept
	DBConnectTimeout time.Duration // total time to retry connecting at startup
	DBRetryInterval  time.Duration // initial wait between retries
	StorageTimeout   time.Duration // bound on every storage call (ex: 2s)

	// Code generation
	CodeLength    int      // generated code length before escalation
	CodeAttempts  int      // draws per length
	ReservedCodes []string // extra reserved codes on top of the built-in system routes

	DedupeDestinations bool // reuse an existing generated link for an identical destination

	// Rate limiting (creation only)
	RateLimitPerMinute int           // requests per window per client
	RateLimitWindow    time.Duration // fixed window length
	RateLimitBackend   string        // "memory" | "redis"

	// Redis, optional. Empty RedisAddr disables the redirect cache.
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold  int           // warn after this many attempts

	CacheTTL         time.Duration // cached link lifetime
	CacheNegativeTTL time.Duration // cached "not found" lifetime

	// Click recording
	ClickWorkers   int // background writers
	ClickQueueSize int // buffered events before dropping

	ExpirySweepInterval time.Duration // 0 disables the sweeper

	AnalyticsRecentLimit int // default recent clicks in analytics
	AnalyticsDays        int // default daily series length

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict ops endpoints to specific IP ranges (e.g. "10.0.0.0/8, 1.2.3.4")
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("HOP_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("HOP_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("HOP_REQUEST_TIMEOUT", 5*time.Second),
		BaseURL:         strings.TrimRight(getenv("HOP_BASE_URL", "http://localhost:8080"), "/"),

		// Logging
		LogLevel:  getenv("HOP_LOG_LEVEL", "info"),
		PrettyLog: mustBool("HOP_PRETTY_LOG", true),

		// Database
		DBDriver:         strings.ToLower(getenv("HOP_DB_DRIVER", DriverPostgres)),
		DBMaxOpenConns:   getenvInt("HOP_DB_MAX_OPEN_CONNS", 20),
		DBMaxIdleConns:   getenvInt("HOP_DB_MAX_IDLE_CONNS", 5),
		DBConnectTimeout: mustDuration("HOP_DB_CONNECT_TIMEOUT", 30*time.Second),
		DBRetryInterval:  mustDuration("HOP_DB_RETRY_INTERVAL", 2*time.Second),
		StorageTimeout:   mustDuration("HOP_STORAGE_TIMEOUT", 2*time.Second),

		// Codes
		CodeLength:         getenvInt("HOP_CODE_LENGTH", 6),
		CodeAttempts:       getenvInt("HOP_CODE_ATTEMPTS", 5),
		ReservedCodes:      splitAndTrim(getenv("HOP_RESERVED_CODES", "")),
		DedupeDestinations: mustBool("HOP_DEDUPE_DESTINATIONS", false),

		// Rate limiting
		RateLimitPerMinute: getenvInt("HOP_RATE_LIMIT_PER_MINUTE", 60),
		RateLimitWindow:    mustDuration("HOP_RATE_LIMIT_WINDOW", time.Minute),
		RateLimitBackend:   strings.ToLower(getenv("HOP_RATE_LIMIT_BACKEND", BackendMemory)),

		// Redis settings
		RedisAddr:           getenv("HOP_REDIS_ADDR", ""),
		RedisUser:           getenv("HOP_REDIS_USERNAME", ""),
		RedisPassword:       getenv("HOP_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("HOP_REDIS_DB", 0),
		RedisDT:             mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:  getenvInt("REDIS_WARN_THRESHOLD", 3),

		CacheTTL:         mustDuration("HOP_CACHE_TTL", 5*time.Minute),
		CacheNegativeTTL: mustDuration("HOP_CACHE_NEGATIVE_TTL", 30*time.Second),

		// Clicks, expiry, analytics
		ClickWorkers:         getenvInt("HOP_CLICK_WORKERS", 4),
		ClickQueueSize:       getenvInt("HOP_CLICK_QUEUE_SIZE", 1024),
		ExpirySweepInterval:  mustDuration("HOP_EXPIRY_SWEEP_INTERVAL", 0),
		AnalyticsRecentLimit: getenvInt("HOP_ANALYTICS_RECENT_LIMIT", 20),
		AnalyticsDays:        getenvInt("HOP_ANALYTICS_DAYS", 30),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("HOP_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("HOP_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("HOP_TRUST_PROXY", true),
	}

	switch cfg.DBDriver {
	case DriverPostgres, DriverSQLite:
		cfg.DatabaseURL = requireEnv("HOP_DATABASE_URL")
	case DriverMemory:
		cfg.DatabaseURL = getenv("HOP_DATABASE_URL", "")
	default:
		panic(fmt.Sprintf("❌ FATAL: HOP_DB_DRIVER must be postgres, sqlite or memory, got %q", cfg.DBDriver))
	}

	switch cfg.RateLimitBackend {
	case BackendMemory:
	case BackendRedis:
		if cfg.RedisAddr == "" {
			panic("❌ FATAL: HOP_REDIS_ADDR is required when HOP_RATE_LIMIT_BACKEND=redis")
		}
	default:
		panic(fmt.Sprintf("❌ FATAL: HOP_RATE_LIMIT_BACKEND must be memory or redis, got %q", cfg.RateLimitBackend))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.DatabaseURL = redactDSN(cfg.DatabaseURL)
		if cfg.RedisPassword != "" {
			cfgCopy.RedisPassword = "***REDACTED***"
		}
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// RedisEnabled reports whether a Redis address is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// redactDSN hides the password of a URL style DSN.
// Examples: "postgres://hop:secret@db/hop" -> "postgres://hop:***@db/hop"
//
//	"./hop.db" -> "./hop.db"
func redactDSN(dsn string) string {
	scheme := strings.Index(dsn, "://")
	at := strings.LastIndex(dsn, "@")
	if scheme == -1 || at == -1 || at < scheme {
		return dsn
	}
	creds := dsn[scheme+3 : at]
	colon := strings.Index(creds, ":")
	if colon == -1 {
		return dsn
	}
	return dsn[:scheme+3] + creds[:colon] + ":***" + dsn[at:]
}
