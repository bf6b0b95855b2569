package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	BindAddress        string   `mapstructure:"bind_address"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
	MaxBodySize        int64    `mapstructure:"max_body_size"`
}

type StorageConfig struct {
	Mode string `mapstructure:"mode"` // "postgres" or "memory"
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type BroadcastConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// URL builds the postgres connection string.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// URLSafe is the same connection string with the password masked, safe for
// logs.
func (d DatabaseConfig) URLSafe() string {
	return fmt.Sprintf("postgres://%s:****@%s:%s/%s?sslmode=%s",
		d.User, d.Host, d.Port, d.Name, d.SSLMode)
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.bind_address", "127.0.0.1:8080")
	v.SetDefault("server.cors_allowed_origins", []string{})
	v.SetDefault("server.max_body_size", 1024*1024)
	v.SetDefault("storage.mode", "postgres")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "any_player_sync")
	v.SetDefault("database.sslmode", "prefer")
	v.SetDefault("broadcast.buffer_size", 512)
	v.SetDefault("logging.level", "info")

	// Environment variable support
	v.SetEnvPrefix("SYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("database.password", "SYNC_DATABASE_PASSWORD")

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("default")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Server.BindAddress); err != nil {
		return fmt.Errorf("invalid server.bind_address %q: %w", c.Server.BindAddress, err)
	}
	if c.Server.MaxBodySize < 1 {
		return fmt.Errorf("server.max_body_size must be >= 1")
	}
	if c.Storage.Mode != "postgres" && c.Storage.Mode != "memory" {
		return fmt.Errorf("invalid storage.mode: %s (must be 'postgres' or 'memory')", c.Storage.Mode)
	}
	if c.Broadcast.BufferSize < 1 {
		return fmt.Errorf("broadcast.buffer_size must be >= 1")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging.level %q: %w", c.Logging.Level, err)
	}
	return nil
}
