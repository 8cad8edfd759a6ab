package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenPort      string        // ex: ":8000"
	ShutdownTimeout time.Duration // ex: 10s, also bounds the wait for running automations

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Supplier directory
	SuppliersFile  string        // YAML or JSON directory file, empty = embedded dataset
	HomeURL        string        // fallback for /go when no supplier matches
	ReloadInterval time.Duration // interval to reload the directory file (default: 1h)

	// Sessions and relay
	SessionCapacity  int           // max sessions kept in memory, LRU beyond that
	SessionRetention time.Duration // how long a finished session stays queryable
	ReaperInterval   time.Duration // interval of the session reaper
	RelayIdleWindow  time.Duration // idle time before a snapshot is pushed to a subscriber

	// Automation
	BrowserBin        string        // chromium binary, empty = auto-detect
	BrowserHeadless   bool          // false lets an operator watch the bot
	DGVCLLoginURL     string        // GUVNL login page
	DGVCLLoginTimeout time.Duration // time allowed for the citizen to finish OTP login
	DGVCLStepTimeout  time.Duration // per page action timeout
	StartRatePerMin   int           // POST /rpa/start per client IP per minute
	StartBurst        int           // burst allowed above the rate

	// Redis (optional, empty address = memory only)
	RedisAddr             string        // ex: "localhost:6379" or "redis://..."
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict /reload and /infra to specific IPs or CIDRs
	TrustProxy   bool     // true => trust X-Forwarded-For headers
	CORSOrigins  []string // origins allowed to call the API from a browser
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("SEVA_LISTEN_PORT", ":8000"),
		ShutdownTimeout: mustDuration("SEVA_SHUTDOWN_TIMEOUT", 10*time.Second),

		// Logging
		LogLevel:  getenv("SEVA_LOG_LEVEL", "info"),
		PrettyLog: mustBool("SEVA_PRETTY_LOG", false),

		// Supplier directory
		SuppliersFile:  getenv("SEVA_SUPPLIERS_FILE", ""),
		HomeURL:        getenv("SEVA_HOME_URL", "/suppliers"),
		ReloadInterval: mustDuration("SEVA_RELOAD_INTERVAL", time.Hour),

		// Sessions and relay
		SessionCapacity:  getenvInt("SEVA_SESSION_CAPACITY", 1000),
		SessionRetention: mustDuration("SEVA_SESSION_RETENTION", 24*time.Hour),
		ReaperInterval:   mustDuration("SEVA_REAPER_INTERVAL", 10*time.Minute),
		RelayIdleWindow:  mustDuration("SEVA_RELAY_IDLE_WINDOW", time.Second),

		// Automation
		BrowserBin:        getenv("SEVA_BROWSER_BIN", ""),
		BrowserHeadless:   mustBool("SEVA_BROWSER_HEADLESS", true),
		DGVCLLoginURL:     getenv("SEVA_DGVCL_LOGIN_URL", "https://portal.guvnl.in/login.php"),
		DGVCLLoginTimeout: mustDuration("SEVA_DGVCL_LOGIN_TIMEOUT", 5*time.Minute),
		DGVCLStepTimeout:  mustDuration("SEVA_DGVCL_STEP_TIMEOUT", 30*time.Second),
		StartRatePerMin:   getenvInt("SEVA_START_RATE_PER_MIN", 10),
		StartBurst:        getenvInt("SEVA_START_BURST", 3),

		// Redis settings
		RedisAddr:             getenv("SEVA_REDIS_ADDR", ""),
		RedisUser:             getenv("SEVA_REDIS_USERNAME", ""),
		RedisPasswordRequired: mustBool("SEVA_REDIS_PASSWORD_REQUIRED", false),
		RedisDB:               getenvInt("SEVA_REDIS_DB", 0),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("SEVA_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("SEVA_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("SEVA_TRUST_PROXY", false),
		CORSOrigins:  splitAndTrim(getenv("SEVA_CORS_ORIGINS", "*")),
	}

	if cfg.RedisAddr != "" && cfg.RedisPasswordRequired {
		cfg.RedisPassword = requireEnv("SEVA_REDIS_PASSWORD")
	} else {
		cfg.RedisPassword = getenv("SEVA_REDIS_PASSWORD", "")
	}

	if cfg.SessionCapacity <= 0 {
		panic(fmt.Sprintf("❌ FATAL: SEVA_SESSION_CAPACITY must be > 0, got %d", cfg.SessionCapacity))
	}
	if cfg.RelayIdleWindow <= 0 {
		panic(fmt.Sprintf("❌ FATAL: SEVA_RELAY_IDLE_WINDOW must be > 0, got %v", cfg.RelayIdleWindow))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
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
