// Package config defines the data structures related to configuration and
// includes functions for loading and parsing the config.
package config

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/iwvelando/credit-simulator/pkg/configprocessor"
	"github.com/iwvelando/credit-simulator/pkg/constants"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Configuration holds all configuration for credit-simulator.
type Configuration struct {
	Logging    LoggingConfig    `yaml:"logging,omitempty"`
	Output     OutputConfig     `yaml:"output,omitempty"`
	Timezone   string           `yaml:"timezone,omitempty"`
	Categories []CategoryConfig `yaml:"categories,omitempty"`
	Template   TemplateConfig   `yaml:"template,omitempty"`
	Features   FeaturesConfig   `yaml:"features,omitempty"`
	Storage    StorageConfig    `yaml:"storage,omitempty"`
	Cache      CacheConfig      `yaml:"cache,omitempty"`
	Messaging  MessagingConfig  `yaml:"messaging,omitempty"`
	Telegram   TelegramConfig   `yaml:"telegram,omitempty"`
	Tracing    TracingConfig    `yaml:"tracing,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty"` // message, pretty, csv
}

// CategoryConfig describes one product category of the rate table. Bundles
// hold installment counts, or years when AnnualUnit is set.
type CategoryConfig struct {
	Key             string   `yaml:"key"`
	Name            string   `yaml:"name"`
	AdminFeeRate    *float64 `yaml:"adminFeeRate,omitempty"` // unset for custom-rate categories
	ReserveFundRate float64  `yaml:"reserveFundRate,omitempty"`
	InsuranceRate   float64  `yaml:"insuranceRate,omitempty"`
	Code            string   `yaml:"code,omitempty"`
	AnnualUnit      bool     `yaml:"annualUnit,omitempty"`
	Bundles         [][]int  `yaml:"bundles,omitempty"`
}

// TemplateConfig holds the default message template.
type TemplateConfig struct {
	Default             string `yaml:"default,omitempty"`
	PlainTextLineEnding string `yaml:"plainTextLineEnding,omitempty"`
}

// FeaturesConfig toggles optional behavior.
type FeaturesConfig struct {
	ReverseCalculation bool `yaml:"reverseCalculation,omitempty"`
	AsyncSend          bool `yaml:"asyncSend,omitempty"`
}

// StorageConfig selects and tunes the persistence backend. The Postgres DSN
// comes from the environment.
type StorageConfig struct {
	Driver          string        `yaml:"driver,omitempty"`
	SQLitePath      string        `yaml:"sqlitePath,omitempty"`
	MaxOpenConns    int           `yaml:"maxOpenConns,omitempty"`
	MaxIdleConns    int           `yaml:"maxIdleConns,omitempty"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime,omitempty"`
	ConnectTimeout  time.Duration `yaml:"connectTimeout,omitempty"`
}

// CacheConfig configures the Redis settings cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled,omitempty"`
	Addr    string        `yaml:"addr,omitempty"`
	DB      int           `yaml:"db,omitempty"`
	TTL     time.Duration `yaml:"ttl,omitempty"`
}

// MessagingConfig configures the send-job queue. The AMQP URL comes from the
// environment.
type MessagingConfig struct {
	Exchange string `yaml:"exchange,omitempty"`
	Queue    string `yaml:"queue,omitempty"`
}

// TelegramConfig configures delivery. Token and chat come from the environment.
type TelegramConfig struct {
	Enabled         bool          `yaml:"enabled,omitempty"`
	RetryMaxElapsed time.Duration `yaml:"retryMaxElapsed,omitempty"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Endpoint    string `yaml:"endpoint,omitempty"`
	Insecure    bool   `yaml:"insecure,omitempty"`
	ServiceName string `yaml:"serviceName,omitempty"`
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %w", err)
	}
	return decode(v)
}

// LoadConfigurationFromReader loads a YAML-formatted configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading config, %w", err)
	}
	v := newViper()
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("error parsing config, %w", err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yml")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("output.format", constants.OutputFormatMessage)
	v.SetDefault("template.plainTextLineEnding", "\n")
	v.SetDefault("storage.driver", StorageMemory)
	v.SetDefault("storage.sqlitePath", "data/simulations.db")
	v.SetDefault("storage.connectTimeout", "2m")
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.ttl", "10m")
	v.SetDefault("messaging.exchange", "credit-simulator")
	v.SetDefault("messaging.queue", "simulation-send")
	v.SetDefault("telegram.retryMaxElapsed", "30s")
	v.SetDefault("tracing.serviceName", "credit-simulator")
	return v
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}
	return &configuration, nil
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	categories := make([]configprocessor.CategoryInfo, 0, len(c.Categories))
	for _, category := range c.Categories {
		categories = append(categories, configprocessor.CategoryInfo{
			Key:        category.Key,
			Name:       category.Name,
			CustomRate: category.AdminFeeRate == nil,
			Code:       category.Code,
			AnnualUnit: category.AnnualUnit,
			Bundles:    category.Bundles,
		})
	}

	processor := configprocessor.NewProcessor()
	return processor.ValidateConfiguration(categories, configprocessor.Features{
		AsyncSend:       c.Features.AsyncSend,
		TelegramEnabled: c.Telegram.Enabled,
		StorageDriver:   c.Storage.Driver,
	})
}
