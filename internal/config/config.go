package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Ingest IngestConfig `yaml:"ingest" mapstructure:"ingest"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`

	// ConnectAttempts bounds connection retries at startup.
	ConnectAttempts int `yaml:"connect_attempts" mapstructure:"connect_attempts"`
}

// IngestConfig configures document ingestion.
type IngestConfig struct {
	// DeepContactScan enables the recursive key-substring contacts strategy
	// when the well-known contact fields are all absent.
	DeepContactScan bool `yaml:"deep_contact_scan" mapstructure:"deep_contact_scan"`
	// FallbackFiscalYear applies when neither a line item nor its document
	// carries a year. Zero means the calendar year before ingestion.
	FallbackFiscalYear int    `yaml:"fallback_fiscal_year" mapstructure:"fallback_fiscal_year"`
	DefaultCurrency    string `yaml:"default_currency" mapstructure:"default_currency"`
	MaxUnknownFields   int    `yaml:"max_unknown_fields" mapstructure:"max_unknown_fields"`
	Concurrency        int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the reporting server.
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
	v.SetEnvPrefix("REGISTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("store.connect_attempts", 5)
	v.SetDefault("ingest.deep_contact_scan", true)
	v.SetDefault("ingest.fallback_fiscal_year", 0)
	v.SetDefault("ingest.default_currency", "EUR")
	v.SetDefault("ingest.max_unknown_fields", 500)
	v.SetDefault("ingest.concurrency", 4)
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

// Validate checks that the settings a command mode depends on are usable.
// Modes: "ingest", "serve", "admin".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	case "sqlite":
	default:
		errs = append(errs, "store.driver must be postgres or sqlite")
	}

	switch mode {
	case "ingest":
		if c.Ingest.Concurrency < 1 || c.Ingest.Concurrency > 64 {
			errs = append(errs, "ingest.concurrency must be between 1 and 64")
		}
		if c.Ingest.MaxUnknownFields < 0 {
			errs = append(errs, "ingest.max_unknown_fields must be >= 0")
		}
		if len(c.Ingest.DefaultCurrency) != 3 {
			errs = append(errs, "ingest.default_currency must be a 3-letter code")
		}
		if y := c.Ingest.FallbackFiscalYear; y != 0 && (y < 1900 || y > 2999) {
			errs = append(errs, "ingest.fallback_fiscal_year must be 0 or a 4-digit year")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "admin":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
