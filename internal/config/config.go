// Package config loads settings for the server and the CLI client.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"todoapp/internal/auth"
	"todoapp/internal/session"
)

// EnvPrefix prefixes every environment override, e.g. TODOAPP_DB_PATH.
const EnvPrefix = "TODOAPP"

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	DB      DBConfig      `mapstructure:"db"`
	Redis   RedisConfig   `mapstructure:"redis"`
	JWT     JWTConfig     `mapstructure:"jwt"`
	API     APIConfig     `mapstructure:"api"`
	Session SessionConfig `mapstructure:"session"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// DBConfig selects the server's persistence. Driver is "sqlite" (Path) or
// "postgres" (URL).
type DBConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	URL    string `mapstructure:"url"`
}

// RedisConfig enables the shared statistics cache when Addr is set.
type RedisConfig struct {
	Addr string `mapstructure:"addr"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
	Issuer string        `mapstructure:"issuer"`
}

// APIConfig is where the CLI client sends requests.
type APIConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SessionConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.path", "./data/todoapp.db")
	v.SetDefault("db.url", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl", auth.DefaultTokenDuration)
	v.SetDefault("jwt.issuer", "todoapp")
	v.SetDefault("api.url", "http://localhost:8080")
	v.SetDefault("api.timeout", 15*time.Second)
	v.SetDefault("session.path", session.DefaultPath())
	v.SetDefault("log.level", "info")
}

// Load reads defaults, then the YAML file at path if path is not empty, then
// TODOAPP_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.DB.Driver = strings.ToLower(strings.TrimSpace(cfg.DB.Driver))
	return &cfg, nil
}

// ValidateServer checks the settings the API server needs.
func (c *Config) ValidateServer() error {
	switch c.DB.Driver {
	case "sqlite":
		if c.DB.Path == "" {
			return fmt.Errorf("db.path is required for the sqlite driver")
		}
	case "postgres":
		if c.DB.URL == "" {
			return fmt.Errorf("db.url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown db.driver %q (want sqlite or postgres)", c.DB.Driver)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required (set %s_JWT_SECRET)", EnvPrefix)
	}
	if c.JWT.TTL <= 0 {
		return fmt.Errorf("jwt.ttl must be positive")
	}
	return nil
}

// SlogLevel parses Level, falling back to info.
func (l LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}
