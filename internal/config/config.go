// Package config locates the pagedesigner home directory and loads the
// relay, host and store settings from defaults, an optional TOML file
// and PAGEDESIGNER_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvConfigFile names an explicit configuration file.
const EnvConfigFile = "PAGEDESIGNER_CONFIG"

// Config holds application configuration.
type Config struct {
	Relay     RelayConfig     `mapstructure:"relay"`
	Host      HostConfig      `mapstructure:"host"`
	Store     StoreConfig     `mapstructure:"store"`
	Handshake HandshakeConfig `mapstructure:"handshake"`
}

// RelayConfig configures the WebSocket relay server.
type RelayConfig struct {
	Addr           string   `mapstructure:"addr"`
	Path           string   `mapstructure:"path"`
	OriginPatterns []string `mapstructure:"origin_patterns"`
}

// HostConfig configures the host session started by the CLI.
type HostConfig struct {
	ID       string `mapstructure:"id"`
	RelayURL string `mapstructure:"relay_url"`
	RedisURL string `mapstructure:"redis_url"`
	Session  string `mapstructure:"session"`
	PageID   string `mapstructure:"page_id"`
	// InsecureTLS skips certificate verification for wss:// relays.
	InsecureTLS bool `mapstructure:"insecure_tls"`
}

// StoreConfig configures the page store.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// HandshakeConfig tunes the client side of the handshake.
type HandshakeConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Load reads configuration from file and env. Env var overrides use
// prefix PAGEDESIGNER_, e.g. PAGEDESIGNER_RELAY_ADDR.
func Load() (Config, error) {
	v := viper.New()
	paths := GetPaths()

	v.SetDefault("relay.addr", "127.0.0.1:8765")
	v.SetDefault("relay.path", "/relay")
	v.SetDefault("relay.origin_patterns", []string{})
	v.SetDefault("host.id", "")
	v.SetDefault("host.relay_url", "ws://127.0.0.1:8765/relay")
	v.SetDefault("host.redis_url", "")
	v.SetDefault("host.session", "default")
	v.SetDefault("host.page_id", "home")
	v.SetDefault("host.insecure_tls", false)
	v.SetDefault("store.path", paths.PagesDB)
	v.SetDefault("handshake.interval", time.Second)
	v.SetDefault("handshake.timeout", 60*time.Second)

	v.SetConfigType("toml")

	cfgPath := os.Getenv(EnvConfigFile)
	if cfgPath != "" {
		v.SetConfigFile(ExpandPath(cfgPath))
	} else {
		v.AddConfigPath(paths.Home)
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("PAGEDESIGNER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// An explicit file must exist; the default one is optional.
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	c.Store.Path = ExpandPath(c.Store.Path)
	return c, nil
}
