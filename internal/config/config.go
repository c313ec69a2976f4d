package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration knobs for the push engine.
type Config struct {
	HTTP struct {
		Addr         string        `mapstructure:"addr"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
		CORSOrigins  string        `mapstructure:"cors_origins"`
	} `mapstructure:"http"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
	Storage struct {
		SnapshotPath     string        `mapstructure:"snapshot_path"`
		SnapshotInterval time.Duration `mapstructure:"snapshot_interval"`
	} `mapstructure:"storage"`
	Push struct {
		VAPIDPublicKey  string        `mapstructure:"vapid_public_key"`
		VAPIDPrivateKey string        `mapstructure:"vapid_private_key"`
		Subject         string        `mapstructure:"subject"`
		TTL             int           `mapstructure:"ttl"`
		Workers         int           `mapstructure:"workers"`
		AttemptTimeout  time.Duration `mapstructure:"attempt_timeout"`
		DefaultIcon     string        `mapstructure:"default_icon"`
		DefaultURL      string        `mapstructure:"default_url"`
	} `mapstructure:"push"`
	Geo struct {
		Enabled   bool          `mapstructure:"enabled"`
		BaseURL   string        `mapstructure:"base_url"`
		Timeout   time.Duration `mapstructure:"timeout"`
		RedisAddr string        `mapstructure:"redis_addr"`
		CacheTTL  time.Duration `mapstructure:"cache_ttl"`
	} `mapstructure:"geo"`
	Auth struct {
		SessionTTL    time.Duration `mapstructure:"session_ttl"`
		JWTSecret     string        `mapstructure:"jwt_secret"`
		AdminEnabled  bool          `mapstructure:"admin_enabled"`
		AdminUsername string        `mapstructure:"admin_username"`
		AdminPassword string        `mapstructure:"admin_password"`
	} `mapstructure:"auth"`
	Metrics struct {
		Enabled bool   `mapstructure:"enabled"`
		Path    string `mapstructure:"path"`
	} `mapstructure:"metrics"`
}

// Load reads the configuration from disk/environment using Viper.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("chirpy")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			// a missing file is fine, env + defaults still apply
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !isNotExist(err) {
				return nil, fmt.Errorf("load config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration produced by defaults alone.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Push.Workers <= 0 {
		return fmt.Errorf("push.workers must be positive")
	}
	if c.Push.AttemptTimeout <= 0 {
		return fmt.Errorf("push.attempt_timeout must be positive")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log.level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}
	return nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":3000")
	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.cors_origins", "*")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("storage.snapshot_path", "./data/chirpy.db")
	v.SetDefault("storage.snapshot_interval", "1m")

	v.SetDefault("push.vapid_public_key", "")
	v.SetDefault("push.vapid_private_key", "")
	v.SetDefault("push.subject", "mailto:admin@example.com")
	v.SetDefault("push.ttl", 86400)
	v.SetDefault("push.workers", 32)
	v.SetDefault("push.attempt_timeout", "10s")
	v.SetDefault("push.default_icon", "/icon.png")
	v.SetDefault("push.default_url", "/")

	v.SetDefault("geo.enabled", false)
	v.SetDefault("geo.base_url", "http://ip-api.com")
	v.SetDefault("geo.timeout", "2s")
	v.SetDefault("geo.redis_addr", "")
	v.SetDefault("geo.cache_ttl", "24h")

	v.SetDefault("auth.session_ttl", "12h")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.admin_enabled", true)
	v.SetDefault("auth.admin_username", "admin")
	v.SetDefault("auth.admin_password", "admin123")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}
