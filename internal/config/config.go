// Package config loads application configuration from file and
// environment and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/studykit/study-cli/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Gemini   GeminiConfig   `yaml:"gemini" mapstructure:"gemini"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Prompts  PromptsConfig  `yaml:"prompts" mapstructure:"prompts"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string            `yaml:"driver" mapstructure:"driver"`
	Path        string            `yaml:"path" mapstructure:"path"`
	DatabaseURL string            `yaml:"database_url" mapstructure:"database_url"`
	Pool        *store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// GeminiConfig holds the Generative Language API settings. APIKeys and
// Models are ordered; the rotation layer walks their cross product.
type GeminiConfig struct {
	APIKeys         []string `yaml:"api_keys" mapstructure:"api_keys"`
	Models          []string `yaml:"models" mapstructure:"models"`
	BaseURL         string   `yaml:"base_url" mapstructure:"base_url"`
	Temperature     float64  `yaml:"temperature" mapstructure:"temperature"`
	MaxOutputTokens int      `yaml:"max_output_tokens" mapstructure:"max_output_tokens"`
	TopP            float64  `yaml:"top_p" mapstructure:"top_p"`
	TopK            int      `yaml:"top_k" mapstructure:"top_k"`
	RetryDelayMs    int      `yaml:"retry_delay_ms" mapstructure:"retry_delay_ms"`
}

// PipelineConfig configures chunking and batching.
type PipelineConfig struct {
	ChunkSize        int     `yaml:"chunk_size" mapstructure:"chunk_size"`
	OverlapPercent   float64 `yaml:"overlap_percent" mapstructure:"overlap_percent"`
	BatchSize        int     `yaml:"batch_size" mapstructure:"batch_size"`
	BatchIntervalSec int     `yaml:"batch_interval_secs" mapstructure:"batch_interval_secs"`
}

// PromptsConfig points at an optional prompt override file.
type PromptsConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// ServerConfig configures the local HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("STUDYKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "studykit.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("gemini.models", []string{
		"gemini-2.0-flash",
		"gemini-1.5-flash",
		"gemini-1.5-flash-8b",
	})
	v.SetDefault("gemini.temperature", 0.7)
	v.SetDefault("gemini.max_output_tokens", 8192)
	v.SetDefault("gemini.top_p", 0.95)
	v.SetDefault("gemini.top_k", 40)
	v.SetDefault("gemini.retry_delay_ms", 500)
	v.SetDefault("pipeline.chunk_size", 1500)
	v.SetDefault("pipeline.overlap_percent", 0.25)
	v.SetDefault("pipeline.batch_size", 3)
	v.SetDefault("pipeline.batch_interval_secs", 1)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	// Env vars deliver list values as one comma-separated string.
	if len(cfg.Gemini.APIKeys) == 0 {
		cfg.Gemini.APIKeys = splitList(v.GetString("gemini.api_keys"))
	}
	if raw := v.GetString("gemini.models"); raw != "" && strings.Contains(raw, ",") {
		cfg.Gemini.Models = splitList(raw)
	}

	return &cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks settings needed for note generation.
func (c *Config) Validate() error {
	if len(c.Gemini.APIKeys) == 0 {
		return eris.New("config: gemini.api_keys is empty; set STUDYKIT_GEMINI_API_KEYS or add keys to config.yaml")
	}
	if len(c.Gemini.Models) == 0 {
		return eris.New("config: gemini.models is empty")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
