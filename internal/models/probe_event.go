package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProbeEvent is the record of one probe run, published to result sinks.
type ProbeEvent struct {
	// Unique identifier of the run
	ID string `json:"id"`

	// When the probe finished
	Timestamp time.Time `json:"timestamp"`

	// Where the metric was read from
	Host     string `json:"host"`
	Database string `json:"database"`
	Target   string `json:"target"`
	Relation string `json:"relation"`

	// Verdict, as label and exit code
	Status   string `json:"status"`
	ExitCode int    `json:"exit_code"`

	// Status line as printed to stdout
	Message string `json:"message"`

	// Measured ratio; absent when the fetch failed
	Value *float64 `json:"value,omitempty"`

	// Configured ranges in canonical form
	Critical string `json:"critical,omitempty"`
	Warning  string `json:"warning,omitempty"`

	DurationMs int64 `json:"duration_ms"`
}

// Validation errors
var (
	ErrEmptyID         = errors.New("probe event ID cannot be empty")
	ErrZeroTimestamp   = errors.New("timestamp cannot be zero")
	ErrEmptyHost       = errors.New("host cannot be empty")
	ErrEmptyRelation   = errors.New("relation cannot be empty")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidExitCode = errors.New("exit code must be between 0 and 3")
	ErrEmptyMessage    = errors.New("message cannot be empty")
)

// NewProbeEvent creates an event with a fresh run ID.
func NewProbeEvent() *ProbeEvent {
	return &ProbeEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
	}
}

// Validate checks if the ProbeEvent has all required fields and valid values
func (e *ProbeEvent) Validate() error {
	if e.ID == "" {
		return ErrEmptyID
	}

	if e.Timestamp.IsZero() {
		return ErrZeroTimestamp
	}

	if e.Host == "" {
		return ErrEmptyHost
	}

	if e.Relation == "" {
		return ErrEmptyRelation
	}

	switch e.Status {
	case "OK", "WARNING", "CRITICAL", "UNKNOWN":
	default:
		return ErrInvalidStatus
	}

	if e.ExitCode < 0 || e.ExitCode > 3 {
		return ErrInvalidExitCode
	}

	if strings.TrimSpace(e.Message) == "" {
		return ErrEmptyMessage
	}

	return nil
}

// PartitionKey groups events of the same database on one partition.
func (e *ProbeEvent) PartitionKey() string {
	return e.Host + "/" + e.Database
}
