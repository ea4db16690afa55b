package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Name is the program name shown in usage text.
const Name = "check_pgsql_cachehit"

// Version is overridden at build time with -ldflags "-X".
var Version = "0.1.0"

// Informational requests that end the invocation without probing
var (
	ErrHelp    = errors.New("help requested")
	ErrVersion = errors.New("version requested")
)

// MissingError lists required options that were not supplied.
type MissingError struct {
	Options []string
}

func (e *MissingError) Error() string {
	return "missing required options: " + strings.Join(e.Options, ", ")
}

// UsageError wraps a command line that could not be parsed.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

// Load builds the configuration from, in order of precedence, command line
// flags, PGCACHEHIT_* environment variables, an optional config file and
// the defaults. The returned Config is never nil, so callers can still read
// MissingArgsStatus when Load fails.
func Load(args []string) (*Config, error) {
	cfg := Default()

	if err := ReadEnv(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("read env file: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg.Log); err != nil {
		return cfg, fmt.Errorf("log settings: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("missing-args-status", cfg.MissingArgsStatus)
	if err := v.BindEnv("password", EnvPrefix+"_PASSWORD", "PGPASSWORD"); err != nil {
		return cfg, err
	}

	fs := newFlagSet(cfg)
	if err := fs.Parse(args); err != nil {
		cfg.MissingArgsStatus = v.GetString("missing-args-status")
		return cfg, &UsageError{Err: err}
	}

	if help, _ := fs.GetBool("help"); help {
		return cfg, ErrHelp
	}
	if version, _ := fs.GetBool("version"); version {
		return cfg, ErrVersion
	}

	if err := v.BindPFlags(fs); err != nil {
		return cfg, fmt.Errorf("bind flags: %w", err)
	}
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	fill(cfg, v)

	if missing := missingOptions(cfg); len(missing) > 0 {
		return cfg, &MissingError{Options: missing}
	}
	return cfg, nil
}

func newFlagSet(cfg *Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet(Name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	fs.SortFlags = false

	// required
	fs.StringP("host", "h", "", "DB address")
	fs.String("username", "", "DB user")
	fs.String("password", "", "DB password (or PGPASSWORD)")
	fs.StringP("dbname", "d", "", "DB name")

	// optional
	fs.StringP("critical", "c", "", "Critical threshold range")
	fs.StringP("warning", "w", "", "Warning threshold range")
	fs.String("type", cfg.Target, "Monitoring target <db|table|index>")
	fs.String("rel", "", "Relation target <DB name|[schema.]table name> (default: DB name)")
	fs.IntP("port", "p", cfg.Postgres.Port, "DB port")
	fs.IntP("timeout", "t", int(cfg.Postgres.Timeout/time.Second), "Timeout in seconds")
	fs.String("sslmode", cfg.Postgres.SSLMode, "libpq sslmode")
	fs.String("config", "", "Config file (yaml, json or toml)")
	fs.String("log-level", cfg.Log.Level, "Log level for stderr diagnostics")
	fs.String("metrics-textfile", "", "Write probe metrics to this node_exporter textfile")
	fs.String("pushgateway", "", "Push probe metrics to this Pushgateway URL")
	fs.StringSlice("kafka-brokers", nil, "Publish the result event to these Kafka brokers")
	fs.String("kafka-topic", cfg.Kafka.Topic, "Kafka topic for result events")

	fs.BoolP("version", "V", false, "Print version and exit")
	fs.BoolP("help", "?", false, "Print this help and exit")
	return fs
}

func fill(cfg *Config, v *viper.Viper) {
	cfg.Postgres.Host = strings.TrimSpace(v.GetString("host"))
	cfg.Postgres.Port = v.GetInt("port")
	cfg.Postgres.User = v.GetString("username")
	cfg.Postgres.Password = v.GetString("password")
	cfg.Postgres.Database = strings.TrimSpace(v.GetString("dbname"))
	cfg.Postgres.SSLMode = v.GetString("sslmode")
	if secs := v.GetInt("timeout"); secs > 0 {
		cfg.Postgres.Timeout = time.Duration(secs) * time.Second
	}

	cfg.Target = strings.ToLower(strings.TrimSpace(v.GetString("type")))
	cfg.Relation = strings.TrimSpace(v.GetString("rel"))
	if cfg.Relation == "" {
		cfg.Relation = cfg.Postgres.Database
	}
	cfg.Critical = strings.TrimSpace(v.GetString("critical"))
	cfg.Warning = strings.TrimSpace(v.GetString("warning"))
	cfg.MissingArgsStatus = v.GetString("missing-args-status")

	cfg.Log.Level = v.GetString("log-level")

	cfg.Metrics.Textfile = v.GetString("metrics-textfile")
	cfg.Metrics.PushgatewayURL = v.GetString("pushgateway")

	cfg.Kafka.Brokers = splitList(v.GetStringSlice("kafka-brokers"))
	cfg.Kafka.Topic = v.GetString("kafka-topic")
}

func missingOptions(cfg *Config) []string {
	var missing []string
	if cfg.Postgres.Host == "" {
		missing = append(missing, "-h")
	}
	if cfg.Postgres.User == "" {
		missing = append(missing, "--username")
	}
	if cfg.Postgres.Password == "" {
		missing = append(missing, "--password")
	}
	if cfg.Postgres.Database == "" {
		missing = append(missing, "-d")
	}
	return missing
}

// splitList accepts both repeated values and comma separated lists.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Usage returns the help text.
func Usage() string {
	var b strings.Builder
	b.WriteString(VersionText())
	b.WriteString("\n")
	b.WriteString(newFlagSet(Default()).FlagUsages())
	b.WriteString("\nThreshold ranges: N (0:N), start:end, start:, :end or ~:end; prefix with @ to alert inside the range.\n")
	fmt.Fprintf(&b, "Environment: %s_<OPTION> (e.g. %s_HOST), PGPASSWORD, %s_MISSING_ARGS_STATUS=<ok|unknown>.\n",
		EnvPrefix, EnvPrefix, EnvPrefix)
	return b.String()
}

// VersionText returns the version banner.
func VersionText() string {
	return fmt.Sprintf("%s Version %s\nusage: %s -h <DB Address> --username <DB User> --password <DB Password> -d <DB Name>\n",
		Name, Version, Name)
}
