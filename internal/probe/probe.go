package probe

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"time"

	"pgcachehit/internal/logger"
	"pgcachehit/internal/metrics"
	"pgcachehit/internal/threshold"
)

// MetricValue is a single measurement and the relation it was taken from.
type MetricValue struct {
	Label string
	Value float64
}

// String formats the value with the shortest exact decimal form,
// so 100.00 prints as "100" and 99.5 as "99.5".
func (m MetricValue) String() string {
	return strconv.FormatFloat(m.Value, 'f', -1, 64)
}

// Fetcher retrieves one measurement. It is bound to its target once, at
// configuration time.
type Fetcher func(ctx context.Context) (MetricValue, error)

// Result is the outcome of one probe run.
type Result struct {
	Status   Status
	Message  string
	Value    *MetricValue
	Err      error
	Duration time.Duration
}

// Evaluate applies the critical range, then the warning range, to value.
// A nil range is not configured. Critical always wins over warning.
func Evaluate(value MetricValue, critical, warning *threshold.Range) (Status, string) {
	status := StatusOK
	switch {
	case critical != nil && !critical.Check(value.Value):
		status = StatusCritical
	case warning != nil && !warning.Check(value.Value):
		status = StatusWarning
	}
	return status, format(status, value.String())
}

// Unknown builds an UNKNOWN result from err.
func Unknown(err error) Result {
	return Result{
		Status:  StatusUnknown,
		Message: format(StatusUnknown, err.Error()),
		Err:     err,
	}
}

// Run performs a single pass: fetch once, then evaluate. Fetch errors and
// panics are reported as UNKNOWN and never reach the thresholds.
func Run(ctx context.Context, fetch Fetcher, critical, warning *threshold.Range) (res Result) {
	log := logger.WithComponent("probe")
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("probe panic recovered")
			metrics.PanicsRecovered.WithLabelValues("probe").Inc()
			res = Unknown(fmt.Errorf("internal error: %v", r))
		}
		res.Duration = time.Since(start)
	}()

	if fetch == nil {
		return Unknown(fmt.Errorf("no metric source configured"))
	}

	log.Debug().Msg("fetching metric")
	value, err := fetch(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("metric fetch failed")
		return Unknown(err)
	}

	status, msg := Evaluate(value, critical, warning)
	log.Debug().
		Str("relation", value.Label).
		Float64("value", value.Value).
		Str("status", status.String()).
		Msg("metric evaluated")

	return Result{
		Status:  status,
		Message: msg,
		Value:   &value,
	}
}

func format(status Status, detail string) string {
	return status.String() + " - " + detail
}
