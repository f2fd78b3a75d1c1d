// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// DefaultBaseURL is used when neither the primary nor the fallback backend URL is set.
const DefaultBaseURL = "http://127.0.0.1:5000/api"

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/provider-gateway/config.toml",
	"configs/config.toml",
}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config          string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host            string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port            int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	BackendURL      string `kong:"name='backend-url',help='Backend API base URL (overrides config).',env='BACKEND_API_URL'"`
	BackendFallback string `kong:"name='backend-fallback-url',help='Backend API base URL used when no primary URL is set.',env='API_BASE_URL'"`
	Env             string `kong:"help='Runtime environment: development|production (overrides config).',env='APP_ENV'"`
	CORSOrigin      string `kong:"name='cors-origin',help='Origin allowed on public routes (overrides config).',env='CORS_ORIGIN'"`
	LogLevel        string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	App      AppConfig      `toml:"app"`
	Server   ServerConfig   `toml:"server"`
	Upstream UpstreamConfig `toml:"upstream"`
	Auth     AuthConfig     `toml:"auth"`
	CORS     CORSConfig     `toml:"cors"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// AppConfig holds runtime environment settings.
type AppConfig struct {
	Env string `toml:"env"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (3000)
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// UpstreamConfig holds backend API connection settings.
type UpstreamConfig struct {
	BaseURL         string `toml:"base_url"`
	FallbackURL     string `toml:"fallback_url"`
	TimeoutSeconds  int    `toml:"timeout_seconds"` // 0 leaves the client without an overall timeout
	IdleConnections int    `toml:"idle_connections"`
}

// AuthConfig names the cookies and paths used by the identity gate and logout.
type AuthConfig struct {
	IdentityCookie string `toml:"identity_cookie"`
	AdminCookie    string `toml:"admin_cookie"`
	AdminUICookie  string `toml:"admin_ui_cookie"`
	LoginPath      string `toml:"login_path"`
}

// CORSConfig holds the single origin allowed to call public routes.
type CORSConfig struct {
	Origin string `toml:"origin"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads the TOML config file, if any, and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/provider-gateway/config.toml then configs/config.toml. A missing file
// is not an error: every setting has a default.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)
	cfg.Upstream.BaseURL = ResolveBaseURL(cfg.Upstream.BaseURL, cfg.Upstream.FallbackURL)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// ResolveBaseURL returns the first non-blank of primary, fallback and
// DefaultBaseURL with all trailing slashes removed.
func ResolveBaseURL(primary, fallback string) string {
	base := DefaultBaseURL
	for _, candidate := range []string{primary, fallback} {
		if v := strings.TrimSpace(candidate); v != "" {
			base = v
			break
		}
	}
	return strings.TrimRight(base, "/")
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.BackendURL != "" {
		c.Upstream.BaseURL = cli.BackendURL
	}
	if cli.BackendFallback != "" {
		c.Upstream.FallbackURL = cli.BackendFallback
	}
	if cli.Env != "" {
		c.App.Env = cli.Env
	}
	if cli.CORSOrigin != "" {
		c.CORS.Origin = cli.CORSOrigin
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil {
		return fmt.Errorf("upstream.base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("upstream.base_url must use http or https; got %q", c.Upstream.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("upstream.base_url must include a host; got %q", c.Upstream.BaseURL)
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Upstream.TimeoutSeconds < 0 {
		return fmt.Errorf("upstream.timeout_seconds must be non-negative; got %d", c.Upstream.TimeoutSeconds)
	}
	if c.Upstream.IdleConnections < 0 {
		return fmt.Errorf("upstream.idle_connections must be non-negative; got %d", c.Upstream.IdleConnections)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}

	switch strings.ToLower(c.App.Env) {
	case "development", "production", "":
		// valid
	default:
		return fmt.Errorf("app.env must be one of: development, production; got %q", c.App.Env)
	}

	if c.CORS.Origin != "" {
		o, err := url.Parse(c.CORS.Origin)
		if err != nil || o.Scheme == "" || o.Host == "" || (o.Path != "" && o.Path != "/") {
			return fmt.Errorf("cors.origin must be a bare scheme://host[:port] origin; got %q", c.CORS.Origin)
		}
	}

	if p := c.Auth.LoginPath; p != "" && p[0] != '/' {
		return fmt.Errorf("auth.login_path must start with '/'; got %q", p)
	}

	// Log fields.
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range []string{"/api", "/healthz", "/gateway/status"} {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

// setDefaults fills zero-valued fields with defaults.
// For integer fields, zero means "unset" because TOML cannot distinguish
// between an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if c.App.Env == "" {
		c.App.Env = "development"
	}
	c.App.Env = strings.ToLower(c.App.Env)
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 1024 * 1024 // 1 MB
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if c.Auth.IdentityCookie == "" {
		c.Auth.IdentityCookie = "provider_id"
	}
	if c.Auth.AdminCookie == "" {
		c.Auth.AdminCookie = "admin_token"
	}
	if c.Auth.AdminUICookie == "" {
		c.Auth.AdminUICookie = "admin_ui"
	}
	if c.Auth.LoginPath == "" {
		c.Auth.LoginPath = "/admin/login"
	}
	if c.CORS.Origin == "" {
		c.CORS.Origin = "http://localhost:5173"
	}
	c.CORS.Origin = strings.TrimRight(c.CORS.Origin, "/")
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Production reports whether the gateway runs with production cookie attributes.
func (c *AppConfig) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WarnPermissions logs a warning if the config file is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
