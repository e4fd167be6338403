package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/impactwatch/intel-cli/internal/collector"
	"github.com/impactwatch/intel-cli/internal/cost"
	"github.com/impactwatch/intel-cli/internal/resilience"
	"github.com/impactwatch/intel-cli/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Collector  CollectorConfig  `yaml:"collector" mapstructure:"collector"`
	RateLimits map[string]int   `yaml:"rate_limits" mapstructure:"rate_limits"`
	Pricing    cost.Rates       `yaml:"pricing" mapstructure:"pricing"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string           `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key             string `yaml:"key" mapstructure:"key"`
	ScorerModel     string `yaml:"scorer_model" mapstructure:"scorer_model"`
	ClassifierModel string `yaml:"classifier_model" mapstructure:"classifier_model"`
}

// CollectorConfig configures the search-backed collector.
type CollectorConfig struct {
	Profession        string  `yaml:"profession" mapstructure:"profession"`
	Timeframe         string  `yaml:"timeframe" mapstructure:"timeframe"`
	MaxTokens         int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature       float64 `yaml:"temperature" mapstructure:"temperature"`
	TemplatePauseSecs int     `yaml:"template_pause_secs" mapstructure:"template_pause_secs"`
	MaxResults        int     `yaml:"max_results" mapstructure:"max_results"`
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
	v.SetEnvPrefix("INTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "intel.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("anthropic.scorer_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.classifier_model", "claude-haiku-4-5-20251001")
	v.SetDefault("collector.profession", "software engineering")
	v.SetDefault("collector.timeframe", "past year")
	v.SetDefault("collector.max_tokens", 2048)
	v.SetDefault("collector.temperature", 0.2)
	v.SetDefault("collector.template_pause_secs", 1)
	v.SetDefault("collector.max_results", 20)
	v.SetDefault("rate_limits."+collector.SourceName, 20)
	v.SetDefault("rate_limits.anthropic", 50)
	v.SetDefault("pricing.perplexity.per_query", 0.005)
	v.SetDefault("pricing.perplexity.per_mtok", 1.00)

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

	if len(cfg.Pricing.Anthropic) == 0 {
		cfg.Pricing.Anthropic = cost.DefaultRates().Anthropic
	}

	return &cfg, nil
}

// Validate checks that the configuration required for the given operation is
// present. Missing values are fatal, never retried.
func (c *Config) Validate(op string) error {
	var missing []string

	switch op {
	case "collect", "validate":
		if c.Perplexity.Key == "" {
			missing = append(missing, "perplexity.key")
		}
		if c.Anthropic.Key == "" {
			missing = append(missing, "anthropic.key")
		}
		if c.Collector.Profession == "" {
			missing = append(missing, "collector.profession")
		}
	case "classify", "score":
		if c.Anthropic.Key == "" {
			missing = append(missing, "anthropic.key")
		}
	}

	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		missing = append(missing, "store.database_url")
	}

	if len(missing) > 0 {
		return resilience.NewConfigError(op, eris.Errorf("missing required config: %s", strings.Join(missing, ", ")))
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
