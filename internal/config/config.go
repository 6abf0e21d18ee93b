package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Provider  ProviderConfig  `yaml:"provider" mapstructure:"provider"`
	Retrieval RetrievalConfig `yaml:"retrieval" mapstructure:"retrieval"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Intake    IntakeConfig    `yaml:"intake" mapstructure:"intake"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the decision repository backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ProviderConfig configures the reasoning provider. An empty key leaves the
// provider unavailable and every stage runs its deterministic fallback.
type ProviderConfig struct {
	Name              string  `yaml:"name" mapstructure:"name"`
	Key               string  `yaml:"key" mapstructure:"key"`
	Model             string  `yaml:"model" mapstructure:"model"`
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxTokens         int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature       float64 `yaml:"temperature" mapstructure:"temperature"`
	RatePerSec        float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	RetryAttempts     int     `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMs    int     `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	RetryMaxBackoffMs int     `yaml:"retry_max_backoff_ms" mapstructure:"retry_max_backoff_ms"`
	BreakerThreshold  int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs  int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// RetrievalConfig configures policy document retrieval.
type RetrievalConfig struct {
	CorpusPath   string `yaml:"corpus_path" mapstructure:"corpus_path"`
	TopK         int    `yaml:"top_k" mapstructure:"top_k"`
	CacheTTLMins int    `yaml:"cache_ttl_mins" mapstructure:"cache_ttl_mins"`
}

// PipelineConfig configures a single claim run.
type PipelineConfig struct {
	RunTimeoutSecs int `yaml:"run_timeout_secs" mapstructure:"run_timeout_secs"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentClaims int `yaml:"max_concurrent_claims" mapstructure:"max_concurrent_claims"`
}

// IntakeConfig configures claim input sources.
type IntakeConfig struct {
	SampleDir string `yaml:"sample_dir" mapstructure:"sample_dir"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
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
	v.SetEnvPrefix("CLAIMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "claims.db")
	v.SetDefault("provider.name", "anthropic")
	v.SetDefault("provider.key", "")
	v.SetDefault("provider.model", "claude-haiku-4-5-20251001")
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.timeout_secs", 30)
	v.SetDefault("provider.max_tokens", 1024)
	v.SetDefault("provider.temperature", 0.0)
	v.SetDefault("provider.rate_per_sec", 5.0)
	v.SetDefault("provider.retry_attempts", 2)
	v.SetDefault("provider.retry_backoff_ms", 250)
	v.SetDefault("provider.retry_max_backoff_ms", 2000)
	v.SetDefault("provider.breaker_threshold", 3)
	v.SetDefault("provider.breaker_reset_secs", 60)
	v.SetDefault("retrieval.corpus_path", "")
	v.SetDefault("retrieval.top_k", 3)
	v.SetDefault("retrieval.cache_ttl_mins", 30)
	v.SetDefault("pipeline.run_timeout_secs", 120)
	v.SetDefault("batch.max_concurrent_claims", 5)
	v.SetDefault("intake.sample_dir", "data/claims")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes are "run",
// "batch", "serve", "store" and "corpus". All problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "run", "batch", "serve", "store", "corpus":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if mode != "corpus" {
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
		}
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	}

	if mode == "corpus" && c.Retrieval.CorpusPath == "" {
		errs = append(errs, "retrieval.corpus_path is required")
	}

	if mode == "run" || mode == "batch" || mode == "serve" {
		switch c.Provider.Name {
		case "anthropic", "openai", "none":
		default:
			errs = append(errs, fmt.Sprintf("provider.name must be anthropic, openai or none, got %q", c.Provider.Name))
		}
		if c.Provider.TimeoutSecs <= 0 {
			errs = append(errs, "provider.timeout_secs must be > 0")
		}
		if c.Provider.RatePerSec < 0 {
			errs = append(errs, "provider.rate_per_sec must be >= 0")
		}
		if c.Retrieval.TopK < 1 {
			errs = append(errs, "retrieval.top_k must be >= 1")
		}
		if c.Pipeline.RunTimeoutSecs <= 0 {
			errs = append(errs, "pipeline.run_timeout_secs must be > 0")
		}
		if c.Batch.MaxConcurrentClaims < 1 || c.Batch.MaxConcurrentClaims > 50 {
			errs = append(errs, fmt.Sprintf("batch.max_concurrent_claims must be between 1 and 50, got %d", c.Batch.MaxConcurrentClaims))
		}
	}

	if mode == "serve" && c.Server.Port <= 0 {
		errs = append(errs, "server.port must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
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
