package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the process-wide configuration. It is loaded once in main and
// handed to each component through its constructor.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Model    ModelConfig    `mapstructure:"model"`
	Memory   MemoryConfig   `mapstructure:"memory"`
	Prompts  PromptsConfig  `mapstructure:"prompts"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	CORSOrigins string `mapstructure:"cors_origins"`
	// ChatRateLimit is the number of chat requests per minute and client IP;
	// zero disables the limiter.
	ChatRateLimit int `mapstructure:"chat_rate_limit"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	// Driver is either "sqlite3" or "postgres".
	Driver string `mapstructure:"driver"`

	// SQLite
	Path          string `mapstructure:"path"`
	BusyTimeoutMs int    `mapstructure:"busy_timeout_ms"`

	// PostgreSQL
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`

	// Lock-contention retry policy
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
}

type ModelConfig struct {
	// Provider is "openai" (any OpenAI-compatible endpoint) or "stub".
	Provider    string        `mapstructure:"provider"`
	Name        string        `mapstructure:"name"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type MemoryConfig struct {
	// Window is the number of most recent turns replayed verbatim.
	Window int `mapstructure:"window"`
}

type PromptsConfig struct {
	// File overrides the embedded prompt catalogue when set.
	File string `mapstructure:"file"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config.json (if present), applies defaults and environment
// overrides, and validates the result.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")

	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if homeDir, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(homeDir, ".nova"))
	}

	setDefaults(v)

	v.SetEnvPrefix("NOVA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	loadEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", "*")
	v.SetDefault("server.chat_rate_limit", 30)

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.path", "chat_history.db")
	v.SetDefault("database.busy_timeout_ms", 10000)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "nova")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "nova")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_retries", 3)
	v.SetDefault("database.retry_base_delay", 100*time.Millisecond)

	v.SetDefault("model.provider", "openai")
	v.SetDefault("model.name", "gemini-2.0-flash")
	v.SetDefault("model.base_url", "https://generativelanguage.googleapis.com/v1beta/openai/")
	v.SetDefault("model.api_key", "")
	v.SetDefault("model.temperature", 1.0)
	v.SetDefault("model.max_tokens", 512)
	v.SetDefault("model.timeout", 60*time.Second)

	v.SetDefault("memory.window", 10)

	v.SetDefault("prompts.file", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func loadEnvOverrides(cfg *Config) {
	if path := os.Getenv("CHAT_DB_PATH"); path != "" {
		cfg.Database.Path = path
	}
	if cfg.Model.APIKey == "" {
		for _, key := range []string{"OPENAI_API_KEY", "GOOGLE_API_KEY"} {
			if val := os.Getenv(key); val != "" {
				cfg.Model.APIKey = val
				break
			}
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
}

// Validate rejects configurations the services cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3":
		if c.Database.Path == "" {
			return errors.New("database.path is required for the sqlite3 driver")
		}
	case "postgres":
		if c.Database.Host == "" || c.Database.Database == "" {
			return errors.New("database.host and database.database are required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	if c.Database.MaxRetries < 0 {
		return errors.New("database.max_retries must not be negative")
	}

	switch c.Model.Provider {
	case "openai":
		if c.Model.APIKey == "" {
			return errors.New("model.api_key is required for the openai provider (set NOVA_MODEL_API_KEY or OPENAI_API_KEY)")
		}
	case "stub":
	default:
		return fmt.Errorf("unsupported model provider: %q", c.Model.Provider)
	}
	if c.Model.Name == "" {
		return errors.New("model.name is required")
	}

	if c.Server.ChatRateLimit < 0 {
		return errors.New("server.chat_rate_limit must not be negative")
	}

	if c.Memory.Window <= 0 {
		return errors.New("memory.window must be positive")
	}
	return nil
}
