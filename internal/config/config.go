package config

import "time"

// Config holds runtime configuration for one probe invocation.
type Config struct {
	Postgres PostgresConfig

	// Target type: db, table or index
	Target string
	// Relation to measure; defaults to the database name
	Relation string

	// Raw threshold ranges; empty means not configured
	Critical string
	Warning  string

	// Exit status used when required options are missing
	MissingArgsStatus string

	Log     LogConfig
	Metrics MetricsConfig
	Kafka   KafkaConfig
}

// PostgresConfig holds connection settings for the metric source.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	// Connection and query timeout
	Timeout time.Duration
}

// LogConfig is read from the environment.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"warn"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// MetricsConfig controls where probe metrics are exported after a run.
type MetricsConfig struct {
	// node_exporter textfile collector path
	Textfile string
	// Pushgateway base URL
	PushgatewayURL string
	Job            string
}

// KafkaConfig controls publishing of probe result events.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	Producer ProducerConfig
}

// Enabled reports whether result events should be published.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Topic != ""
}

// ProducerConfig tunes the Kafka writer.
type ProducerConfig struct {
	WriteTimeout time.Duration
	RequiredAcks int
	Compression  string
	MaxRetries   int
	RetryBackoff time.Duration
}

// Default returns the configuration used when no option overrides it.
func Default() *Config {
	return &Config{
		Postgres: PostgresConfig{
			Port:    5432,
			SSLMode: "prefer",
			Timeout: 10 * time.Second,
		},
		Target:            "db",
		MissingArgsStatus: "unknown",
		Log: LogConfig{
			Level:  "warn",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Job: "check_pgsql_cachehit",
		},
		Kafka: KafkaConfig{
			Topic: "pgcachehit.results",
			Producer: ProducerConfig{
				WriteTimeout: 5 * time.Second,
				RequiredAcks: 1,
				Compression:  "snappy",
				MaxRetries:   1,
				RetryBackoff: 200 * time.Millisecond,
			},
		},
	}
}
