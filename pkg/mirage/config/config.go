package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config represents the top-level configuration
type Config struct {
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Cycle     CycleConfig     `mapstructure:"cycle"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// OracleConfig holds decision-service configuration. The credential is
// supplied as a sealed blob; the passphrase arrives via the named
// environment variable so it never lands in a config file.
type OracleConfig struct {
	Endpoint            string        `mapstructure:"endpoint"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	MaxRetries          uint64        `mapstructure:"max_retries"`
	SealedCredential    string        `mapstructure:"sealed_credential"`
	PassphraseEnv       string        `mapstructure:"passphrase_env"`
	HeuristicSeed       int64         `mapstructure:"heuristic_seed"`
	TelemetrySourceAddr string        `mapstructure:"telemetry_source_addr"`
}

// IngestConfig holds ingestion-endpoint configuration
type IngestConfig struct {
	Host      string  `mapstructure:"host"`
	Port      int     `mapstructure:"port"`
	CSVPath   string  `mapstructure:"csv_path"`
	RateLimit float64 `mapstructure:"rate_limit"` // requests per second
	RateBurst int     `mapstructure:"rate_burst"`
}

// Addr returns the listen address for the ingestion endpoint.
func (c IngestConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CycleConfig holds cycle-loop configuration
type CycleConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	HistoryLimit int           `mapstructure:"history_limit"`
}

// TelemetryConfig holds metrics-endpoint configuration
type TelemetryConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	Namespace string `mapstructure:"namespace"`
}

// LoggingConfig holds logging-specific configuration
type LoggingConfig struct {
	Level       string   `mapstructure:"level"`
	Format      string   `mapstructure:"format"`
	OutputPaths []string `mapstructure:"output_paths"`
	File        string   `mapstructure:"file"`
	EnableTrace bool     `mapstructure:"enable_trace"`
}

// LoadConfig loads the configuration from the specified file and environment
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	setDefaultConfig(v)

	v.SetEnvPrefix("MIRAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Info().Str("config_file", configPath).Msg("Loaded configuration file")
	} else {
		log.Info().Msg("No configuration file provided, using environment variables and defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaultConfig sets the default configuration values
func setDefaultConfig(v *viper.Viper) {
	// Oracle defaults
	v.SetDefault("oracle.endpoint", "http://localhost:8089/decide")
	v.SetDefault("oracle.request_timeout", "30s")
	v.SetDefault("oracle.max_retries", 2)
	// Empty default so the key is known to viper and can be supplied
	// through MIRAGE_ORACLE_SEALED_CREDENTIAL alone.
	v.SetDefault("oracle.sealed_credential", "")
	v.SetDefault("oracle.passphrase_env", "MIRAGE_PASSPHRASE")
	v.SetDefault("oracle.heuristic_seed", 0)
	v.SetDefault("oracle.telemetry_source_addr", "https://example.com/api")

	// Ingest defaults
	v.SetDefault("ingest.host", "0.0.0.0")
	v.SetDefault("ingest.port", 8000)
	v.SetDefault("ingest.csv_path", "event_data.csv")
	v.SetDefault("ingest.rate_limit", 10.0)
	v.SetDefault("ingest.rate_burst", 20)

	// Cycle defaults
	v.SetDefault("cycle.interval", "60s")
	v.SetDefault("cycle.history_limit", 100)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.addr", ":9090")
	v.SetDefault("telemetry.namespace", "mirage")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.enable_trace", false)
}
