package config

import "time"

const (
	defaultSQLitePath = "ene.db"
	defaultAPIListen  = ":8080"

	defaultThreshold   = int64(10)
	defaultWorkers     = uint(2)
	defaultQueueSize   = uint(64)
	defaultUnitTimeout = 2 * time.Minute

	defaultKafkaTopic = "ene.events"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			SQLitePath: defaultSQLitePath,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Consolidate: ConsolidateConfig{
			Threshold:   defaultThreshold,
			Workers:     defaultWorkers,
			QueueSize:   defaultQueueSize,
			UnitTimeout: defaultUnitTimeout,
		},
		Events: EventsConfig{
			KafkaTopic: defaultKafkaTopic,
		},
	}
}
