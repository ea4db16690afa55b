package storage

import (
	"errors"
	"fmt"
	"strings"

	"pgcachehit/internal/probe"
)

// Target selects which statistics view the cache hit ratio is read from.
type Target string

const (
	TargetDatabase Target = "db"
	TargetTable    Target = "table"
	TargetIndex    Target = "index"
)

// ErrInvalidTarget is returned for target types other than db, table or index.
var ErrInvalidTarget = errors.New("invalid target type")

// ParseTarget validates a target type name.
func ParseTarget(raw string) (Target, error) {
	t := Target(strings.ToLower(strings.TrimSpace(raw)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w %q (want db, table or index)", ErrInvalidTarget, raw)
	}
	return t, nil
}

// IsValid checks if the target is one of the supported kinds
func (t Target) IsValid() bool {
	switch t {
	case TargetDatabase, TargetTable, TargetIndex:
		return true
	default:
		return false
	}
}

// Source produces cache hit ratios.
type Source interface {
	// Bind resolves the query for target once and returns the fetch
	// operation for relation.
	Bind(target Target, relation string) (probe.Fetcher, error)
	Close() error
}

// NotFoundError reports that the requested relation has no statistics row.
type NotFoundError struct {
	Target   Target
	Relation string
}

func (e *NotFoundError) Error() string {
	switch e.Target {
	case TargetTable:
		return fmt.Sprintf("Table %s was not found.", e.Relation)
	case TargetIndex:
		return fmt.Sprintf("Index of table %s was not found.", e.Relation)
	default:
		return fmt.Sprintf("Database %s was not found.", e.Relation)
	}
}

// ConnectionError reports that the data source could not be reached or
// refused the credentials.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("could not connect to %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
