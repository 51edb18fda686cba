package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// Duration wraps time.Duration so TTLs can be written as "4h" or "120s" in YAML.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"'`)
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds the application configuration
type Config struct {
	App      AppConfig      `yaml:"app"`
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Session  SessionConfig  `yaml:"session"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// AppConfig holds app-specific configuration
type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host           string          `yaml:"host"`
	Port           int             `yaml:"port"`
	Domain         string          `yaml:"domain"`
	AllowedOrigins []string        `yaml:"allowed_origins"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Max        int `yaml:"max"`
	Expiration int `yaml:"expiration"` // seconds
}

// AuthConfig holds token-specific configuration
type AuthConfig struct {
	AccessTokenTTL Duration `yaml:"access_token_ttl"`
	ResetTokenTTL  Duration `yaml:"reset_token_ttl"`
}

// CookieConfig controls how the session cookie is issued.
type CookieConfig struct {
	Name     string `yaml:"name"`
	Path     string `yaml:"path"`
	Domain   string `yaml:"domain"`
	Secure   bool   `yaml:"secure"`
	SameSite string `yaml:"same_site"` // Strict, Lax or None
}

// SessionConfig holds the session lifecycle configuration.
type SessionConfig struct {
	MaxSessionsPerUser   int          `yaml:"max_sessions_per_user"`
	TTL                  Duration     `yaml:"session_ttl"`
	RefreshThreshold     Duration     `yaml:"refresh_threshold"`
	CleanupInterval      Duration     `yaml:"cleanup_interval"`
	CleanupRetentionDays int          `yaml:"cleanup_retention_days"`
	RetryBackoff         []Duration   `yaml:"retry_backoff"`
	MaxRetries           int          `yaml:"max_retries"`
	Cookie               CookieConfig `yaml:"cookie"`
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	User            string   `yaml:"user"`
	Password        string   `yaml:"password"`
	DBName          string   `yaml:"dbname"`
	SSLMode         string   `yaml:"sslmode"`
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
	QueryTimeout    Duration `yaml:"query_timeout"`
}

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SMTPConfig holds mail delivery configuration
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// LoggingConfig holds logging-specific configuration
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills in the documented defaults for unset options.
func (c *Config) ApplyDefaults() {
	if c.Server.RateLimit.Max == 0 {
		c.Server.RateLimit.Max = 100
	}
	if c.Server.RateLimit.Expiration == 0 {
		c.Server.RateLimit.Expiration = 60
	}
	if c.Auth.AccessTokenTTL == 0 {
		c.Auth.AccessTokenTTL = Duration(12 * time.Hour)
	}
	if c.Auth.ResetTokenTTL == 0 {
		c.Auth.ResetTokenTTL = Duration(30 * time.Minute)
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 20
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = Duration(time.Hour)
	}
	if c.Database.QueryTimeout == 0 {
		c.Database.QueryTimeout = Duration(5 * time.Second)
	}
	c.Session.ApplyDefaults()
}

// ApplyDefaults fills in the documented session defaults.
func (s *SessionConfig) ApplyDefaults() {
	if s.MaxSessionsPerUser == 0 {
		s.MaxSessionsPerUser = 5
	}
	if s.TTL == 0 {
		s.TTL = Duration(4 * time.Hour)
	}
	if s.RefreshThreshold == 0 {
		s.RefreshThreshold = Duration(120 * time.Second)
	}
	if s.CleanupInterval == 0 {
		s.CleanupInterval = Duration(time.Hour)
	}
	if s.CleanupRetentionDays == 0 {
		s.CleanupRetentionDays = 1
	}
	if len(s.RetryBackoff) == 0 {
		s.RetryBackoff = []Duration{
			Duration(250 * time.Millisecond),
			Duration(time.Second),
			Duration(2 * time.Second),
		}
	}
	if s.MaxRetries == 0 {
		s.MaxRetries = 3
	}
	if s.Cookie.Name == "" {
		s.Cookie.Name = "session_token"
	}
	if s.Cookie.Path == "" {
		s.Cookie.Path = "/"
	}
	if s.Cookie.SameSite == "" {
		s.Cookie.SameSite = "Strict"
	}
}

// Address returns the server address in the format "host:port"
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Address returns the Redis address in the format "host:port"
func (r *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// quoteDSNValue quotes a DSN value if it contains spaces or special characters.
// Single quotes inside the value are escaped by doubling them.
func quoteDSNValue(value string) string {
	needsQuoting := false
	for _, r := range value {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
			r == '.' || r == '-' || r == '_' || r == '/' || r == '@' || r == ':') {
			needsQuoting = true
			break
		}
	}

	if !needsQuoting {
		return value
	}

	escaped := strings.ReplaceAll(value, "'", "''")
	return "'" + escaped + "'"
}

// DSN returns the database connection string. The connection timezone is
// pinned to UTC since every stored timestamp is compared on that standard.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		quoteDSNValue(d.Host),
		d.Port,
		quoteDSNValue(d.User),
		quoteDSNValue(d.Password),
		quoteDSNValue(d.DBName),
		quoteDSNValue(d.SSLMode),
	)
}

// URL returns the database connection URL in postgres:// format for golang-migrate
func (d *DatabaseConfig) URL() string {
	userInfo := url.UserPassword(d.User, d.Password)

	// net.JoinHostPort wraps IPv6 addresses in brackets
	host := net.JoinHostPort(d.Host, fmt.Sprintf("%d", d.Port))

	u := &url.URL{
		Scheme:   "postgres",
		User:     userInfo,
		Host:     host,
		Path:     "/" + d.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s&search_path=public", url.QueryEscape(d.SSLMode)),
	}

	return u.String()
}
