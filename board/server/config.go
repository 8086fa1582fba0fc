// ABOUTME: Server configuration read through viper from an optional config file and FUNNEL_* environment variables.
// ABOUTME: Enforces the security rule that non-loopback binds need allow_remote and an auth token.
package server

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/2389-research/funnel/board/automation"
	"github.com/2389-research/funnel/board/store"
	"github.com/spf13/viper"
)

var (
	ErrRemoteWithoutToken = errors.New(
		"allow_remote is true but auth_token is not set; refusing to start without authentication",
	)
	ErrNonLoopbackBind = errors.New(
		"bind is a non-loopback address but allow_remote is not true; set FUNNEL_ALLOW_REMOTE=true and FUNNEL_AUTH_TOKEN to allow remote access",
	)
)

// Config holds the resolved server settings.
type Config struct {
	Home        string
	Bind        string
	AllowRemote bool
	AuthToken   string
	CORSOrigins []string
	LogLevel    string
	LogFormat   string
	Store       store.BackendConfig
	Webhooks    automation.Config
}

// NewViper returns a viper instance with defaults, FUNNEL_* environment
// binding, and config search paths set. Flags may be bound onto it before
// LoadConfig is called.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("home", "")
	v.SetDefault("bind", "127.0.0.1:7780")
	v.SetDefault("allow_remote", false)
	v.SetDefault("auth_token", "")
	v.SetDefault("cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("store.backend", store.BackendFile)
	v.SetDefault("store.redis.addr", "127.0.0.1:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "funnel:workspace:")
	def := automation.DefaultConfig()
	v.SetDefault("webhooks.workers", def.Workers)
	v.SetDefault("webhooks.queue", def.QueueSize)
	v.SetDefault("webhooks.timeout", def.Timeout)

	v.SetEnvPrefix("FUNNEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("funnel")
	v.AddConfigPath(".")
	return v
}

// LoadConfig reads the optional config file and resolves the settings.
// defaultHome is used when neither the file nor FUNNEL_HOME names one.
func LoadConfig(v *viper.Viper, defaultHome string) (*Config, error) {
	home := v.GetString("home")
	if home == "" {
		home = defaultHome
	}
	if home == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			dir = os.TempDir()
		}
		home = filepath.Join(dir, ".funnel")
	}
	v.AddConfigPath(home)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	if h := v.GetString("home"); h != "" {
		home = h
	}

	cfg := &Config{
		Home:        home,
		Bind:        v.GetString("bind"),
		AllowRemote: v.GetBool("allow_remote"),
		AuthToken:   strings.TrimSpace(v.GetString("auth_token")),
		CORSOrigins: v.GetStringSlice("cors_origins"),
		LogLevel:    v.GetString("log.level"),
		LogFormat:   v.GetString("log.format"),
		Store: store.BackendConfig{
			Backend:       v.GetString("store.backend"),
			RedisAddr:     v.GetString("store.redis.addr"),
			RedisPassword: v.GetString("store.redis.password"),
			RedisDB:       v.GetInt("store.redis.db"),
			RedisPrefix:   v.GetString("store.redis.prefix"),
		},
		Webhooks: automation.Config{
			Workers:   v.GetInt("webhooks.workers"),
			QueueSize: v.GetInt("webhooks.queue"),
			Timeout:   v.GetDuration("webhooks.timeout"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate applies the remote-access rules.
func (c *Config) Validate() error {
	if c.AllowRemote && c.AuthToken == "" {
		return ErrRemoteWithoutToken
	}
	if c.AllowRemote {
		return nil
	}
	// Only 127.0.0.0/8, ::1 and "localhost" count as loopback.
	host, _, err := net.SplitHostPort(c.Bind)
	if err != nil {
		return fmt.Errorf("invalid bind address %q: %w", c.Bind, err)
	}
	// An empty host listens on every interface.
	if host == "localhost" {
		return nil
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return nil
	}
	return fmt.Errorf("%w: bind=%s", ErrNonLoopbackBind, c.Bind)
}
