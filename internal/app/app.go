package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"pgcachehit/internal/config"
	"pgcachehit/internal/kafka"
	"pgcachehit/internal/logger"
	"pgcachehit/internal/metrics"
	"pgcachehit/internal/models"
	"pgcachehit/internal/probe"
	"pgcachehit/internal/storage"
	"pgcachehit/internal/threshold"
)

// reportTimeout bounds metric export and event publishing after the verdict.
const reportTimeout = 5 * time.Second

// Publisher defines the interface for publishing probe events
type Publisher interface {
	Publish(ctx context.Context, event *models.ProbeEvent) error
	Close() error
}

// App wires configuration, the metric source, the evaluator and the result
// sinks for a single probe invocation.
type App struct {
	Stdout io.Writer
	Stderr io.Writer

	// OpenSource opens the metric source
	OpenSource func(cfg config.PostgresConfig) (storage.Source, error)
	// OpenPublisher opens the result event sink
	OpenPublisher func(cfg config.KafkaConfig) (Publisher, error)
}

// New returns an App writing to the process streams and probing PostgreSQL.
func New() *App {
	return &App{
		Stdout:        os.Stdout,
		Stderr:        os.Stderr,
		OpenSource:    openPostgres,
		OpenPublisher: openKafka,
	}
}

func openPostgres(cfg config.PostgresConfig) (storage.Source, error) {
	return storage.NewPostgres(cfg)
}

func openKafka(cfg config.KafkaConfig) (Publisher, error) {
	return kafka.NewProducer(cfg.Brokers, cfg.Topic, cfg.Producer)
}

// plan is the outcome of configuration: parsed ranges and the bound fetch.
type plan struct {
	critical *threshold.Range
	warning  *threshold.Range
	target   storage.Target
	fetch    probe.Fetcher
	source   storage.Source
}

// Run performs one probe and returns the process exit code. It writes the
// status line (or help/version text) to Stdout and never panics.
func (a *App) Run(ctx context.Context, args []string) int {
	cfg, err := config.Load(args)
	if code, done := a.handleLoadError(cfg, err); done {
		return code
	}

	logger.Init(cfg.Log.Level, cfg.Log.Format, a.Stderr)

	event := models.NewProbeEvent()
	log := logger.WithRunID(event.ID)
	log.Info().
		Str("host", cfg.Postgres.Host).
		Str("database", cfg.Postgres.Database).
		Str("target", cfg.Target).
		Str("relation", cfg.Relation).
		Msg("probe starting")

	p, err := a.prepare(cfg)
	var res probe.Result
	if err != nil {
		elog := logger.WithError(err).With().Str("run_id", event.ID).Logger()
		elog.Error().Msg("probe configuration failed")
		res = probe.Unknown(err)
	} else {
		defer p.source.Close()
		res = probe.Run(ctx, p.fetch, p.critical, p.warning)
	}

	fmt.Fprintln(a.Stdout, res.Message)

	log.Info().
		Str("status", res.Status.String()).
		Dur("duration", res.Duration).
		Msg("probe finished")

	a.report(ctx, cfg, p, res, event)
	return res.Status.ExitCode()
}

func (a *App) handleLoadError(cfg *config.Config, err error) (int, bool) {
	if err == nil {
		return 0, false
	}

	var missing *config.MissingError
	var usage *config.UsageError
	switch {
	case errors.Is(err, config.ErrVersion):
		fmt.Fprint(a.Stdout, config.VersionText())
		return probe.StatusOK.ExitCode(), true
	case errors.Is(err, config.ErrHelp):
		fmt.Fprint(a.Stdout, config.Usage())
		return probe.StatusOK.ExitCode(), true
	case errors.As(err, &missing), errors.As(err, &usage):
		fmt.Fprintln(a.Stderr, err)
		fmt.Fprint(a.Stdout, config.Usage())
		return missingArgsStatus(cfg).ExitCode(), true
	default:
		res := probe.Unknown(err)
		fmt.Fprintln(a.Stdout, res.Message)
		return res.Status.ExitCode(), true
	}
}

// missingArgsStatus resolves the configurable exit status for incomplete
// command lines. Anything unparseable falls back to UNKNOWN.
func missingArgsStatus(cfg *config.Config) probe.Status {
	if cfg == nil {
		return probe.StatusUnknown
	}
	status, err := probe.ParseStatus(cfg.MissingArgsStatus)
	if err != nil {
		return probe.StatusUnknown
	}
	return status
}

// prepare parses every option before the metric source is touched.
func (a *App) prepare(cfg *config.Config) (*plan, error) {
	p := &plan{}
	var err error

	if p.critical, err = parseRange("critical", cfg.Critical); err != nil {
		return nil, err
	}
	if p.warning, err = parseRange("warning", cfg.Warning); err != nil {
		return nil, err
	}
	if p.target, err = storage.ParseTarget(cfg.Target); err != nil {
		return nil, err
	}

	if a.OpenSource == nil {
		return nil, errors.New("no metric source configured")
	}
	p.source, err = a.OpenSource(cfg.Postgres)
	if err != nil {
		return nil, err
	}
	if p.fetch, err = p.source.Bind(p.target, cfg.Relation); err != nil {
		p.source.Close()
		return nil, err
	}
	return p, nil
}

func parseRange(name, raw string) (*threshold.Range, error) {
	if raw == "" {
		return nil, nil
	}
	r, err := threshold.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s threshold: %w", name, err)
	}
	return r, nil
}

// report exports metrics and publishes the result event. Failures are logged
// and never change the verdict.
func (a *App) report(ctx context.Context, cfg *config.Config, p *plan, res probe.Result, event *models.ProbeEvent) {
	log := logger.WithRunID(event.ID)

	metrics.ProbesTotal.WithLabelValues(res.Status.String()).Inc()
	metrics.ProbeDuration.Observe(res.Duration.Seconds())
	metrics.ProbeStatus.WithLabelValues(cfg.Target, cfg.Relation).Set(float64(res.Status.ExitCode()))
	if res.Value != nil {
		metrics.CacheHitRatio.WithLabelValues(cfg.Target, cfg.Relation).Set(res.Value.Value)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()

	if path := cfg.Metrics.Textfile; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			log.Error().Err(err).Msg("failed to write metrics textfile")
		}
	}

	if url := cfg.Metrics.PushgatewayURL; url != "" {
		grouping := map[string]string{"instance": cfg.Postgres.Host, "database": cfg.Postgres.Database}
		if err := metrics.Push(ctx, url, cfg.Metrics.Job, grouping); err != nil {
			log.Error().Err(err).Msg("failed to push metrics")
		}
	}

	if cfg.Kafka.Enabled() && a.OpenPublisher != nil {
		fillEvent(event, cfg, p, res)
		if err := a.publish(ctx, cfg.Kafka, event); err != nil {
			log.Error().Err(err).Strs("brokers", cfg.Kafka.Brokers).Msg("failed to publish probe event")
		}
	}
}

func (a *App) publish(ctx context.Context, cfg config.KafkaConfig, event *models.ProbeEvent) error {
	pub, err := a.OpenPublisher(cfg)
	if err != nil {
		return err
	}
	defer pub.Close()
	return pub.Publish(ctx, event)
}

func fillEvent(event *models.ProbeEvent, cfg *config.Config, p *plan, res probe.Result) {
	event.Timestamp = time.Now().UTC()
	event.Host = cfg.Postgres.Host
	event.Database = cfg.Postgres.Database
	event.Target = cfg.Target
	event.Relation = cfg.Relation
	event.Status = res.Status.String()
	event.ExitCode = res.Status.ExitCode()
	event.Message = res.Message
	event.DurationMs = res.Duration.Milliseconds()
	if res.Value != nil {
		v := res.Value.Value
		event.Value = &v
	}
	if p != nil {
		if p.critical != nil {
			event.Critical = p.critical.String()
		}
		if p.warning != nil {
			event.Warning = p.warning.String()
		}
	}
}
