package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"pgcachehit/internal/config"
	"pgcachehit/internal/logger"
	"pgcachehit/internal/metrics"
	"pgcachehit/internal/probe"
)

// Placeholder renders the n-th (1-based) bind parameter of a query.
type Placeholder func(n int) string

// Dollar is the PostgreSQL placeholder style ($1, $2, ...).
func Dollar(n int) string { return "$" + strconv.Itoa(n) }

// Question is the placeholder style of drivers that use "?".
func Question(int) string { return "?" }

type query struct {
	hits     string
	misses   string
	from     string
	matchCol string
	// schemaCol is set on views that can be narrowed by "schema.relation"
	schemaCol string
}

// One statistics view per target; resolved once in Bind.
var queries = map[Target]query{
	TargetDatabase: {hits: "blks_hit", misses: "blks_read", from: "pg_stat_database", matchCol: "datname"},
	TargetTable:    {hits: "heap_blks_hit", misses: "heap_blks_read", from: "pg_statio_user_tables", matchCol: "relname", schemaCol: "schemaname"},
	TargetIndex:    {hits: "idx_blks_hit", misses: "idx_blks_read", from: "pg_statio_user_tables", matchCol: "relname", schemaCol: "schemaname"},
}

func (q query) render(ph Placeholder, qualified bool) string {
	text := fmt.Sprintf(
		"SELECT CASE WHEN %[2]s = 0 THEN 100.00 "+
			"ELSE round(100.0 * %[1]s / (%[1]s + %[2]s), 2) END AS cache_hit_ratio "+
			"FROM %[3]s WHERE %[4]s = %[5]s",
		q.hits, q.misses, q.from, q.matchCol, ph(1),
	)
	if qualified {
		text += fmt.Sprintf(" AND %s = %s", q.schemaCol, ph(2))
	}
	return text
}

// args splits a "schema.relation" name for views that carry a schema
// column. Unqualified names match on the relation alone.
func (q query) args(relation string) ([]any, bool, error) {
	if q.schemaCol == "" {
		return []any{relation}, false, nil
	}
	schema, name, ok := strings.Cut(relation, ".")
	if !ok {
		return []any{relation}, false, nil
	}
	if schema == "" || name == "" {
		return nil, false, fmt.Errorf("invalid qualified relation %q", relation)
	}
	return []any{name, schema}, true, nil
}

// Postgres reads cache hit ratios from the PostgreSQL statistics views.
type Postgres struct {
	db          *sql.DB
	addr        string
	timeout     time.Duration
	placeholder Placeholder
}

// Option is a functional option for configuring the source
type Option func(*Postgres)

// WithPlaceholder sets the bind parameter style.
func WithPlaceholder(ph Placeholder) Option {
	return func(p *Postgres) { p.placeholder = ph }
}

// WithTimeout bounds every fetch, including the connection ping.
func WithTimeout(d time.Duration) Option {
	return func(p *Postgres) { p.timeout = d }
}

// WithAddr sets the address reported in connection errors.
func WithAddr(addr string) Option {
	return func(p *Postgres) { p.addr = addr }
}

// NewPostgres opens a PostgreSQL handle for cfg. No connection is made until
// the first fetch.
func NewPostgres(cfg config.PostgresConfig) (*Postgres, error) {
	if cfg.Host == "" {
		return nil, errors.New("postgres host is required")
	}
	if cfg.Database == "" {
		return nil, errors.New("postgres database is required")
	}

	db, err := sql.Open("pgx", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	// one probe, one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return NewSource(db,
		WithAddr(addr(cfg)),
		WithTimeout(cfg.Timeout),
	), nil
}

// NewSource wraps an open database handle. Placeholders default to Dollar.
func NewSource(db *sql.DB, opts ...Option) *Postgres {
	p := &Postgres{
		db:          db,
		addr:        "database",
		placeholder: Dollar,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DSN builds a pgx connection URL from cfg.
func DSN(cfg config.PostgresConfig) string {
	q := url.Values{}
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	if cfg.Timeout > 0 {
		secs := int(cfg.Timeout / time.Second)
		if secs < 1 {
			secs = 1
		}
		q.Set("connect_timeout", strconv.Itoa(secs))
	}
	q.Set("application_name", "check_pgsql_cachehit")

	u := url.URL{
		Scheme:   "postgres",
		Host:     addr(cfg),
		Path:     "/" + cfg.Database,
		RawQuery: q.Encode(),
	}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	return u.String()
}

func addr(cfg config.PostgresConfig) string {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	return net.JoinHostPort(cfg.Host, strconv.Itoa(port))
}

// Bind implements Source.
func (p *Postgres) Bind(target Target, relation string) (probe.Fetcher, error) {
	q, ok := queries[target]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrInvalidTarget, target)
	}
	if relation == "" {
		return nil, errors.New("relation name is required")
	}
	args, qualified, err := q.args(relation)
	if err != nil {
		return nil, err
	}
	text := q.render(p.placeholder, qualified)

	return func(ctx context.Context) (probe.MetricValue, error) {
		ratio, err := p.fetch(ctx, text, args, target, relation)
		if err != nil {
			return probe.MetricValue{}, err
		}
		return probe.MetricValue{Label: relation, Value: ratio}, nil
	}, nil
}

func (p *Postgres) fetch(ctx context.Context, text string, args []any, target Target, relation string) (float64, error) {
	log := logger.WithComponent("postgres").With().
		Str("target", string(target)).
		Str("relation", relation).
		Logger()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if err := p.db.PingContext(ctx); err != nil {
		metrics.FetchErrorsTotal.WithLabelValues("connection").Inc()
		return 0, &ConnectionError{Addr: p.addr, Err: err}
	}

	var ratio sql.NullFloat64
	err := p.db.QueryRowContext(ctx, text, args...).Scan(&ratio)
	switch {
	case errors.Is(err, sql.ErrNoRows), err == nil && !ratio.Valid:
		// a table without indexes yields NULL index counters
		metrics.FetchErrorsTotal.WithLabelValues("not_found").Inc()
		return 0, &NotFoundError{Target: target, Relation: relation}
	case err != nil:
		metrics.FetchErrorsTotal.WithLabelValues("query").Inc()
		return 0, fmt.Errorf("query %s cache hit ratio: %w", target, err)
	}

	log.Debug().Float64("ratio", ratio.Float64).Msg("cache hit ratio fetched")
	return ratio.Float64, nil
}

// Close releases the database handle.
func (p *Postgres) Close() error {
	return p.db.Close()
}
