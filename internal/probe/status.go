package probe

import (
	"fmt"
	"strconv"
	"strings"
)

// Status is the verdict of a single probe. The numeric values are the
// process exit codes expected by Nagios-compatible supervisors.
type Status int

const (
	StatusOK       Status = 0
	StatusWarning  Status = 1
	StatusCritical Status = 2
	StatusUnknown  Status = 3
)

// String returns the label used on the status line.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarning:
		return "WARNING"
	case StatusCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ExitCode returns the process exit code for the status.
func (s Status) ExitCode() int {
	if !s.IsValid() {
		return int(StatusUnknown)
	}
	return int(s)
}

// IsValid checks if the status is one of the four known values
func (s Status) IsValid() bool {
	switch s {
	case StatusOK, StatusWarning, StatusCritical, StatusUnknown:
		return true
	default:
		return false
	}
}

// ParseStatus accepts a status name (case-insensitive) or its exit code.
func ParseStatus(raw string) (Status, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	switch s {
	case "OK":
		return StatusOK, nil
	case "WARNING", "WARN":
		return StatusWarning, nil
	case "CRITICAL", "CRIT":
		return StatusCritical, nil
	case "UNKNOWN":
		return StatusUnknown, nil
	}
	if code, err := strconv.Atoi(s); err == nil {
		if st := Status(code); st.IsValid() {
			return st, nil
		}
	}
	return StatusUnknown, fmt.Errorf("invalid status %q", raw)
}
