package app

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"pgcachehit/internal/config"
	"pgcachehit/internal/models"
	"pgcachehit/internal/storage"
)

const statsSchema = `
CREATE TABLE pg_stat_database (datname TEXT, blks_hit INTEGER, blks_read INTEGER);
CREATE TABLE pg_statio_user_tables (
	schemaname TEXT, relname TEXT, heap_blks_hit INTEGER, heap_blks_read INTEGER,
	idx_blks_hit INTEGER, idx_blks_read INTEGER
);
INSERT INTO pg_stat_database VALUES ('app', 12345, 0), ('busy', 50, 50);
INSERT INTO pg_statio_user_tables VALUES
	('public', 'orders', 80, 20, 9, 1),
	('archive', 'orders', 1, 0, 1, 0);
`

type fakePublisher struct {
	events []*models.ProbeEvent
	err    error
	closed bool
}

func (f *fakePublisher) Publish(ctx context.Context, event *models.ProbeEvent) error {
	f.events = append(f.events, event)
	return f.err
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

type harness struct {
	app       *App
	stdout    *bytes.Buffer
	stderr    *bytes.Buffer
	opened    int
	publisher *fakePublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "stats.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if _, err := db.Exec(statsSchema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := &harness{
		stdout:    &bytes.Buffer{},
		stderr:    &bytes.Buffer{},
		publisher: &fakePublisher{},
	}
	h.app = &App{
		Stdout: h.stdout,
		Stderr: h.stderr,
		OpenSource: func(cfg config.PostgresConfig) (storage.Source, error) {
			h.opened++
			return nopCloser{storage.NewSource(db, storage.WithPlaceholder(storage.Question))}, nil
		},
		OpenPublisher: func(cfg config.KafkaConfig) (Publisher, error) {
			return h.publisher, nil
		},
	}
	return h
}

// nopCloser keeps the shared test database open across runs.
type nopCloser struct {
	*storage.Postgres
}

func (nopCloser) Close() error { return nil }

func probeArgs(extra ...string) []string {
	return append([]string{"-h", "localhost", "--username", "monitor", "--password", "secret", "-d", "app"}, extra...)
}

func TestRunScenarios(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
	}{
		{"ok at full ratio", probeArgs("-c", "90:", "-w", "95:"), 0, "OK - 100\n"},
		{"bare bound means zero to n", probeArgs("-c", "90", "-w", "95"), 2, "CRITICAL - 100\n"},
		{"no thresholds", probeArgs(), 0, "OK - 100\n"},
		{"warning", probeArgs("--type", "table", "--rel", "public.orders", "-w", "85:100"), 1, "WARNING - 80\n"},
		{"inside plain warning", probeArgs("--type", "table", "--rel", "public.orders", "-c", "90", "-w", "85"), 0, "OK - 80\n"},
		{"critical wins", probeArgs("--rel", "busy", "-c", "90:", "-w", "95:"), 2, "CRITICAL - 50\n"},
		{"inverted critical", probeArgs("--rel", "busy", "-c", "@40:60"), 2, "CRITICAL - 50\n"},
		{"index ratio", probeArgs("--type", "index", "--rel", "public.orders", "-w", "95:"), 1, "WARNING - 90\n"},
		{"schema qualified table", probeArgs("--type", "table", "--rel", "archive.orders", "-w", "85:100"), 0, "OK - 100\n"},
		{"table not found", probeArgs("--type", "table", "--rel", "ghost_table"), 3, "UNKNOWN - Table ghost_table was not found.\n"},
		{"database not found", probeArgs("--rel", "ghost"), 3, "UNKNOWN - Database ghost was not found.\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			code := h.app.Run(context.Background(), tt.args)
			if code != tt.wantCode {
				t.Errorf("exit code = %d, want %d (stderr: %s)", code, tt.wantCode, h.stderr)
			}
			if h.stdout.String() != tt.wantOut {
				t.Errorf("stdout = %q, want %q", h.stdout.String(), tt.wantOut)
			}
		})
	}
}

func TestRunInvalidThresholdSkipsFetch(t *testing.T) {
	h := newHarness(t)

	code := h.app.Run(context.Background(), probeArgs("-c", "95", "-w", "abc"))
	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
	out := h.stdout.String()
	if !strings.HasPrefix(out, "UNKNOWN - warning threshold: ") || strings.Count(out, "\n") != 1 {
		t.Errorf("stdout = %q", out)
	}
	if h.opened != 0 {
		t.Error("metric source must not be opened when a threshold is invalid")
	}
	if !strings.Contains(h.stderr.String(), `"error":"warning threshold: `) {
		t.Errorf("expected error log on stderr, got %q", h.stderr.String())
	}
}

func TestRunInvalidTarget(t *testing.T) {
	h := newHarness(t)

	code := h.app.Run(context.Background(), probeArgs("--type", "schema"))
	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
	if !strings.HasPrefix(h.stdout.String(), "UNKNOWN - invalid target type") {
		t.Errorf("stdout = %q", h.stdout.String())
	}
}

func TestRunSourceOpenFailure(t *testing.T) {
	h := newHarness(t)
	h.app.OpenSource = func(cfg config.PostgresConfig) (storage.Source, error) {
		return nil, &storage.ConnectionError{Addr: "localhost:5432", Err: errors.New("connection refused")}
	}

	code := h.app.Run(context.Background(), probeArgs())
	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
	if h.stdout.String() != "UNKNOWN - could not connect to localhost:5432: connection refused\n" {
		t.Errorf("stdout = %q", h.stdout.String())
	}
}

func TestRunMissingArguments(t *testing.T) {
	t.Setenv("PGPASSWORD", "")

	h := newHarness(t)
	code := h.app.Run(context.Background(), []string{"-h", "localhost"})
	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
	if !strings.Contains(h.stdout.String(), "check_pgsql_cachehit Version") {
		t.Errorf("expected help text, got %q", h.stdout.String())
	}
	if !strings.Contains(h.stderr.String(), "--username") {
		t.Errorf("expected missing options on stderr, got %q", h.stderr.String())
	}
	if h.opened != 0 {
		t.Error("metric source must not be opened")
	}
}

func TestRunMissingArgumentsPolicy(t *testing.T) {
	t.Setenv("PGPASSWORD", "")
	t.Setenv("PGCACHEHIT_MISSING_ARGS_STATUS", "ok")

	h := newHarness(t)
	if code := h.app.Run(context.Background(), nil); code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
}

func TestRunHelpAndVersion(t *testing.T) {
	for _, args := range [][]string{{"--help"}, {"-?"}, {"-V"}, {"--version"}} {
		h := newHarness(t)
		if code := h.app.Run(context.Background(), args); code != 0 {
			t.Errorf("%v: exit code = %d, want 0", args, code)
		}
		if !strings.HasPrefix(h.stdout.String(), "check_pgsql_cachehit Version") {
			t.Errorf("%v: stdout = %q", args, h.stdout.String())
		}
		if h.opened != 0 {
			t.Errorf("%v: metric source must not be opened", args)
		}
	}
}

func TestRunPublishesEvent(t *testing.T) {
	h := newHarness(t)

	args := probeArgs("--type", "table", "--rel", "public.orders", "-c", "50:", "-w", "85:100", "--kafka-brokers", "k1:9092")
	if code := h.app.Run(context.Background(), args); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}

	if len(h.publisher.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(h.publisher.events))
	}
	e := h.publisher.events[0]
	if err := e.Validate(); err != nil {
		t.Errorf("published event invalid: %v", err)
	}
	if e.Status != "WARNING" || e.ExitCode != 1 || e.Message != "WARNING - 80" {
		t.Errorf("unexpected verdict in event: %+v", e)
	}
	if e.Value == nil || *e.Value != 80 {
		t.Errorf("unexpected value: %v", e.Value)
	}
	if e.Critical != "50:" || e.Warning != "85:100" || e.Target != "table" || e.Relation != "public.orders" {
		t.Errorf("unexpected event fields: %+v", e)
	}
	if !h.publisher.closed {
		t.Error("publisher not closed")
	}
}

func TestRunPublishFailureKeepsVerdict(t *testing.T) {
	h := newHarness(t)
	h.publisher.err = errors.New("broker down")

	code := h.app.Run(context.Background(), probeArgs("--kafka-brokers", "k1:9092"))
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if h.stdout.String() != "OK - 100\n" {
		t.Errorf("stdout = %q", h.stdout.String())
	}
}

func TestRunWritesMetricsTextfile(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "pgcachehit.prom")

	if code := h.app.Run(context.Background(), probeArgs("--metrics-textfile", path)); code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), `pgcachehit_ratio_percent{relation="app",target="db"} 100`) {
		t.Errorf("textfile missing ratio:\n%s", data)
	}
}
