package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Log      LogConfig      `mapstructure:"log"`
	Security SecurityConfig `mapstructure:"security"`
	Cookie   CookieConfig   `mapstructure:"cookie"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	TLS  struct {
		Enabled  bool   `mapstructure:"enabled"`
		CertFile string `mapstructure:"cert_file"`
		KeyFile  string `mapstructure:"key_file"`
	} `mapstructure:"tls"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Name           string `mapstructure:"name"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StorageConfig selects the backing store for runtime security state.
// "memory" keeps everything in-process; "redis" lets multi-process
// deployments share sessions and rate-limit counters.
type StorageConfig struct {
	Sessions  string `mapstructure:"sessions"`
	RateLimit string `mapstructure:"rate_limit"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	Password     PasswordConfig     `mapstructure:"password"`
	Session      SessionConfig      `mapstructure:"session"`
	CSRF         CSRFConfig         `mapstructure:"csrf"`
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting"`
}

// PasswordConfig holds password hashing configuration
type PasswordConfig struct {
	MinLength         int    `mapstructure:"min_length"`
	Argon2Memory      uint32 `mapstructure:"argon2_memory"`
	Argon2Iterations  uint32 `mapstructure:"argon2_iterations"`
	Argon2Parallelism uint8  `mapstructure:"argon2_parallelism"`
}

// SessionConfig holds session token and origin-binding configuration.
//
// IPTolerance and UATolerance control how strictly a request's origin is
// compared against the values captured at login. Tightening or loosening
// the defaults ("subnet24", "major_version") changes who gets logged out
// on network or browser changes.
type SessionConfig struct {
	// Secret signs session tokens. Must be set in production.
	Secret string `mapstructure:"secret"`
	// TTL is the session lifetime (default 168h = 7 days).
	TTL time.Duration `mapstructure:"ttl"`
	// Issuer is the token issuer claim.
	Issuer string `mapstructure:"issuer"`
	// IPTolerance: "exact" or "subnet24".
	IPTolerance string `mapstructure:"ip_tolerance"`
	// UATolerance: "exact" or "major_version".
	UATolerance string `mapstructure:"ua_tolerance"`
	// CleanupInterval is how often the background sweep runs.
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	// MaxSessions, MaxEvents and MaxSuspiciousIPs are the emergency-sweep
	// thresholds; exceeding any of them triggers an aggressive pass.
	MaxSessions      int `mapstructure:"max_sessions"`
	MaxEvents        int `mapstructure:"max_events"`
	MaxSuspiciousIPs int `mapstructure:"max_suspicious_ips"`
	// IdleEviction is the inactivity bound used by the emergency sweep.
	IdleEviction time.Duration `mapstructure:"idle_eviction"`
	// EventRetention is the maximum age of retained security events.
	EventRetention time.Duration `mapstructure:"event_retention"`
}

// CSRFConfig holds CSRF token transport configuration
type CSRFConfig struct {
	// Header is the request/response header carrying the CSRF token.
	Header string `mapstructure:"header"`
	// AuthScheme is the Authorization scheme for the alternate transport
	// (e.g. "CSRF" accepts "Authorization: CSRF <token>").
	AuthScheme string `mapstructure:"auth_scheme"`
}

// RateLimitingConfig holds rate limiting configuration
type RateLimitingConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	DefaultLimit  int           `mapstructure:"default_limit"`
	DefaultWindow time.Duration `mapstructure:"default_window"`
}

// CookieConfig holds session cookie configuration
type CookieConfig struct {
	// Name is the session cookie name.
	Name string `mapstructure:"name"`
	// Domain is the cookie domain ("" locks the cookie to the issuing host).
	Domain string `mapstructure:"domain"`
	// Secure sets the Secure flag (should be true in production with HTTPS)
	Secure bool `mapstructure:"secure"`
	// SameSite controls the SameSite attribute: "lax", "strict", or "none"
	SameSite string `mapstructure:"same_site"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Set config file name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/peerpoints")

	// Set defaults
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Bind environment variables
	v.SetEnvPrefix("PEERPOINTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.tls.enabled", false)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "peerpoints")
	v.SetDefault("database.user", "peerpoints")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 25)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Storage defaults
	v.SetDefault("storage.sessions", "memory")
	v.SetDefault("storage.rate_limit", "memory")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Security defaults
	v.SetDefault("security.password.min_length", 12)
	v.SetDefault("security.password.argon2_memory", 65536)
	v.SetDefault("security.password.argon2_iterations", 3)
	v.SetDefault("security.password.argon2_parallelism", 4)

	v.SetDefault("security.session.secret", "")
	v.SetDefault("security.session.ttl", "168h")
	v.SetDefault("security.session.issuer", "peerpoints")
	v.SetDefault("security.session.ip_tolerance", "subnet24")
	v.SetDefault("security.session.ua_tolerance", "major_version")
	v.SetDefault("security.session.cleanup_interval", "10m")
	v.SetDefault("security.session.max_sessions", 10000)
	v.SetDefault("security.session.max_events", 5000)
	v.SetDefault("security.session.max_suspicious_ips", 1000)
	v.SetDefault("security.session.idle_eviction", "1h")
	v.SetDefault("security.session.event_retention", "24h")

	v.SetDefault("security.csrf.header", "X-CSRF-Token")
	v.SetDefault("security.csrf.auth_scheme", "CSRF")

	v.SetDefault("security.rate_limiting.enabled", true)
	v.SetDefault("security.rate_limiting.default_limit", 100)
	v.SetDefault("security.rate_limiting.default_window", "1m")

	// Cookie defaults
	v.SetDefault("cookie.name", "session")
	v.SetDefault("cookie.domain", "")
	v.SetDefault("cookie.secure", false)
	v.SetDefault("cookie.same_site", "strict")
}
