package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date wire format.
const DateLayout = "2006-01-02"

// DateError reports a date that could not be normalized.
type DateError struct {
	Input string
}

func (e *DateError) Error() string {
	return fmt.Sprintf("invalid date %q: expected YYYY-MM-DD", e.Input)
}

func (e *DateError) Unwrap() error {
	return ErrInvalidDate
}

// ParseDate normalizes s into a calendar date. It accepts YYYY-MM-DD and full
// RFC3339 timestamps; for timestamps only the date part written by the client counts.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, &DateError{Input: s}
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOf(t), nil
	}
	// "2024-01-05T00:00:00" without zone, as some clients send it
	if i := strings.IndexByte(s, 'T'); i == len(DateLayout) {
		if t, err := time.Parse(DateLayout, s[:i]); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, &DateError{Input: s}
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON renders the date as a "YYYY-MM-DD" string instead of the embedded timestamp.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts the same inputs as ParseDate.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return &DateError{Input: string(b)}
	}
	return d.UnmarshalText([]byte(s))
}
