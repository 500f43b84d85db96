// Package config defines the ene server configuration and its viper
// loading chain: env > config.toml > defaults.
package config

import "time"

// Config is the full server configuration. The TOML layout uses sections
// for logical grouping; every key is also reachable as an ENE_ environment
// variable (ENE_STORAGE_SQLITE_PATH, ENE_LLM_PROVIDER, ...).
type Config struct {
	Storage     StorageConfig     `mapstructure:"storage"`
	API         APIConfig         `mapstructure:"api"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Consolidate ConsolidateConfig `mapstructure:"consolidate"`
	Events      EventsConfig      `mapstructure:"events"`
	Log         LogConfig         `mapstructure:"log"`
}

// StorageConfig holds the ledger storage settings.
type StorageConfig struct {
	SQLitePath string `mapstructure:"sqlite_path"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `mapstructure:"listen"`
}

// LLMConfig holds language model provider settings. An empty provider with
// no API key disables generation; sessions and consolidation degrade
// rather than fail.
type LLMConfig struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`
}

// ConsolidateConfig tunes the background consolidation worker.
type ConsolidateConfig struct {
	Threshold   int64         `mapstructure:"threshold"`
	Workers     uint          `mapstructure:"workers"`
	QueueSize   uint          `mapstructure:"queue_size"`
	UnitTimeout time.Duration `mapstructure:"unit_timeout"`
}

// EventsConfig holds event stream settings. No brokers means events are
// discarded.
type EventsConfig struct {
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Debug bool `mapstructure:"debug"`
	JSON  bool `mapstructure:"json"`
}
