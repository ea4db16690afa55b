package threshold

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Parse errors
var (
	ErrEmpty     = errors.New("range is empty")
	ErrNotNumber = errors.New("not a number")
	ErrInverted  = errors.New("start is greater than end")
)

// ParseError describes a range expression that could not be parsed.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid range %q: %v", e.Raw, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Range is a Nagios-style alerting range.
//
// A plain range alerts when the value falls outside [lower, upper]; an
// inverted range (leading "@") alerts when it falls inside.
type Range struct {
	invert bool
	lower  float64
	upper  float64
}

// Parse builds a Range from its textual form: "N" (0:N), "start:end",
// "start:", ":end" or "~:end", each optionally prefixed with "@".
func Parse(raw string) (*Range, error) {
	s := strings.TrimSpace(raw)

	r := &Range{}
	if strings.HasPrefix(s, "@") {
		r.invert = true
		s = s[1:]
	}
	if s == "" {
		return nil, &ParseError{Raw: raw, Err: ErrEmpty}
	}

	start, end, hasColon := strings.Cut(s, ":")
	if !hasColon {
		// bare "N" is shorthand for 0:N
		upper, err := parseNumber(s)
		if err != nil {
			return nil, &ParseError{Raw: raw, Err: err}
		}
		r.lower, r.upper = 0, upper
	} else {
		lower, err := parseBound(start, math.Inf(-1))
		if err != nil {
			return nil, &ParseError{Raw: raw, Err: err}
		}
		upper, err := parseBound(end, math.Inf(1))
		if err != nil {
			return nil, &ParseError{Raw: raw, Err: err}
		}
		r.lower, r.upper = lower, upper
	}

	if r.lower > r.upper {
		return nil, &ParseError{Raw: raw, Err: ErrInverted}
	}
	return r, nil
}

// MustParse is like Parse but panics on error.
func MustParse(raw string) *Range {
	r, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return r
}

func parseBound(tok string, open float64) (float64, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" || (tok == "~" && math.IsInf(open, -1)) {
		return open, nil
	}
	return parseNumber(tok)
}

func parseNumber(tok string) (float64, error) {
	tok = strings.TrimSpace(tok)
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNotNumber, tok)
	}
	return v, nil
}

// Check reports whether v is acceptable, i.e. raises no alert.
// Bounds belong to the range in both modes.
func (r *Range) Check(v float64) bool {
	inside := r.lower <= v && v <= r.upper
	if r.invert {
		return !inside
	}
	return inside
}

// Inverted reports whether the range alerts on values inside it.
func (r *Range) Inverted() bool { return r.invert }

// Lower returns the lower bound, possibly -Inf.
func (r *Range) Lower() float64 { return r.lower }

// Upper returns the upper bound, possibly +Inf.
func (r *Range) Upper() float64 { return r.upper }

// String returns the canonical textual form of the range.
func (r *Range) String() string {
	var b strings.Builder
	if r.invert {
		b.WriteByte('@')
	}
	if math.IsInf(r.lower, -1) {
		b.WriteByte('~')
	} else {
		b.WriteString(formatBound(r.lower))
	}
	b.WriteByte(':')
	if !math.IsInf(r.upper, 1) {
		b.WriteString(formatBound(r.upper))
	}
	return b.String()
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
