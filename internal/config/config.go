package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration for the WhatsApp bot bridge.
type Config struct {
	Provider ProviderConfig `toml:"provider"`
	Composer ComposerConfig `toml:"composer"`
	Server   ServerConfig   `toml:"server"`
	Backend  BackendConfig  `toml:"backend"`
	Security SecurityConfig `toml:"security"`
	Session  SessionConfig  `toml:"session"`
	Log      LogConfig      `toml:"log"`
}

type ProviderConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	Sender  string `toml:"sender"`
	Timeout int    `toml:"timeout"` // seconds
}

type ComposerConfig struct {
	ListTitle string `toml:"list_title"`
	// MessageID pins every outbound messageId to one value. Leave empty to
	// generate a fresh ID per send.
	MessageID string `toml:"message_id"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type BackendConfig struct {
	Transport string `toml:"transport"`
	URL       string `toml:"url"`
	Token     string `toml:"token"`
	Timeout   int    `toml:"timeout"` // seconds
}

type SecurityConfig struct {
	Mode        string   `toml:"mode"` // "open" or "allowlist"
	Allowlist   []string `toml:"allowlist"`
	DenyMessage string   `toml:"deny_message"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  int      `toml:"rate_window"` // seconds
}

type SessionConfig struct {
	TTL      int `toml:"ttl"`       // seconds
	DedupTTL int `toml:"dedup_ttl"` // seconds
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

func defaults() Config {
	return Config{
		Provider: ProviderConfig{
			Timeout: 10,
		},
		Composer: ComposerConfig{
			ListTitle: "Choose an option",
		},
		Server: ServerConfig{
			Addr: ":8888",
		},
		Backend: BackendConfig{
			Transport: "http",
			URL:       "http://localhost:5002/webhooks/whatsapp/webhook",
			Timeout:   10,
		},
		Security: SecurityConfig{
			Mode:       "open",
			RateLimit:  20,
			RateWindow: 60,
		},
		Session: SessionConfig{
			TTL:      1800,
			DedupTTL: 600,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the TOML config file (if it exists) and
// applies environment variable overrides. Env vars always win.
//
// Config file resolution: explicit path → WABRIDGE_CONFIG env var →
// ~/.config/wabridge/config.toml → skip.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		path = configPath()
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return nil, fmt.Errorf("decode %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	return &cfg, nil
}

func configPath() string {
	if p := os.Getenv("WABRIDGE_CONFIG"); p != "" {
		return expandHome(p)
	}
	home := os.Getenv("HOME")
	if home == "" {
		return ""
	}
	return filepath.Join(home, ".config", "wabridge", "config.toml")
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("WABRIDGE_PROVIDER_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("WABRIDGE_PROVIDER_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("WABRIDGE_PROVIDER_SENDER"); v != "" {
		cfg.Provider.Sender = v
	}
	envInt("WABRIDGE_PROVIDER_TIMEOUT", &cfg.Provider.Timeout)

	if v := os.Getenv("WABRIDGE_LIST_TITLE"); v != "" {
		cfg.Composer.ListTitle = v
	}
	if v := os.Getenv("WABRIDGE_MESSAGE_ID"); v != "" {
		cfg.Composer.MessageID = v
	}

	if v := os.Getenv("WABRIDGE_ADDR"); v != "" {
		cfg.Server.Addr = v
	}

	if v := os.Getenv("WABRIDGE_BACKEND_TRANSPORT"); v != "" {
		cfg.Backend.Transport = v
	}
	if v := os.Getenv("WABRIDGE_BACKEND_URL"); v != "" {
		cfg.Backend.URL = v
	}
	if v := os.Getenv("WABRIDGE_BACKEND_TOKEN"); v != "" {
		cfg.Backend.Token = v
	}
	envInt("WABRIDGE_BACKEND_TIMEOUT", &cfg.Backend.Timeout)

	if v := os.Getenv("WABRIDGE_SECURITY_MODE"); v != "" {
		cfg.Security.Mode = v
	}
	if v := os.Getenv("WABRIDGE_ALLOWLIST"); v != "" {
		cfg.Security.Allowlist = splitList(v)
	}
	if v := os.Getenv("WABRIDGE_DENY_MESSAGE"); v != "" {
		cfg.Security.DenyMessage = v
	}
	envInt("WABRIDGE_RATE_LIMIT", &cfg.Security.RateLimit)
	envInt("WABRIDGE_RATE_WINDOW", &cfg.Security.RateWindow)

	envInt("WABRIDGE_SESSION_TTL", &cfg.Session.TTL)
	envInt("WABRIDGE_DEDUP_TTL", &cfg.Session.DedupTTL)

	if v := os.Getenv("WABRIDGE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("WABRIDGE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// Validate checks that required fields are set and normalises enumerations.
// Out-of-range numbers fall back to their defaults.
func (c *Config) Validate() error {
	d := defaults()

	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider.base_url is required")
	}
	if c.Provider.APIKey == "" {
		return fmt.Errorf("provider.api_key is required")
	}
	if c.Provider.Sender == "" {
		return fmt.Errorf("provider.sender is required")
	}
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url is required")
	}

	c.Backend.Transport = strings.ToLower(c.Backend.Transport)
	switch c.Backend.Transport {
	case "http", "websocket":
	default:
		return fmt.Errorf("invalid backend.transport %q: must be http or websocket", c.Backend.Transport)
	}

	c.Security.Mode = strings.ToLower(c.Security.Mode)
	switch c.Security.Mode {
	case "open", "allowlist":
	default:
		return fmt.Errorf("invalid security.mode %q: must be open or allowlist", c.Security.Mode)
	}
	if c.Security.Mode == "allowlist" && len(c.Security.Allowlist) == 0 {
		return fmt.Errorf("security.allowlist must not be empty in allowlist mode")
	}

	if c.Composer.ListTitle == "" {
		c.Composer.ListTitle = d.Composer.ListTitle
	}
	if c.Provider.Timeout <= 0 {
		c.Provider.Timeout = d.Provider.Timeout
	}
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = d.Backend.Timeout
	}
	if c.Security.RateLimit <= 0 {
		c.Security.RateLimit = d.Security.RateLimit
	}
	if c.Security.RateWindow <= 0 {
		c.Security.RateWindow = d.Security.RateWindow
	}
	if c.Session.TTL <= 0 {
		c.Session.TTL = d.Session.TTL
	}
	if c.Session.DedupTTL <= 0 {
		c.Session.DedupTTL = d.Session.DedupTTL
	}

	return nil
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
