package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/model"
)

const dateLayout = "2006-01-02"

// ParseLocation resolves an IANA zone name; empty means UTC.
func ParseLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: tz %q", model.ErrInvalidParameter, name)
	}
	return loc, nil
}

// ParseBound reads a window bound. A bare date is the start of that day in loc,
// or its last instant when endOfDay is set; RFC 3339 timestamps are taken as given.
func ParseBound(raw string, loc *time.Location, endOfDay bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, model.ErrMissingParameter
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	d, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", model.ErrInvalidParameter, raw)
	}
	if endOfDay {
		return EndOfDay(d), nil
	}
	return d, nil
}

func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay is the last representable instant of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func parseClock(raw, fallback string) (int, int, error) {
	if strings.TrimSpace(raw) == "" {
		raw = fallback
	}
	c, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: clock %q", model.ErrInvalidParameter, raw)
	}
	return c.Hour(), c.Minute(), nil
}
