package schedule

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay is the exclusive upper bound of a Clock value. 24:00 is accepted
// as an end-of-day marker so a window can close at midnight.
const MinutesPerDay = 24 * 60

// Clock is a wall-clock time of day in minutes since midnight, clinic local time.
type Clock int

// ParseClock parses "HH:MM" (or "HH:MM:SS" as returned by Postgres TIME columns).
// Seconds are validated and then dropped.
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	fields := [3]int{}
	for i, p := range parts {
		n, ok := twoDigits(p)
		if !ok {
			return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
		}
		fields[i] = n
	}
	h, m, sec := fields[0], fields[1], fields[2]
	if h > 24 || m > 59 || sec > 59 || (h == 24 && (m != 0 || sec != 0)) {
		return 0, fmt.Errorf("time %q out of range", s)
	}
	return Clock(h*60 + m), nil
}

// twoDigits parses exactly two ASCII digits.
func twoDigits(s string) (int, bool) {
	if len(s) != 2 || s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), true
}

// MustClock is ParseClock for constants and tests.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ClockOf returns the time of day of t in t's location.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Add returns c shifted by d minutes.
func (c Clock) Add(minutes int) Clock {
	return c + Clock(minutes)
}

// Valid reports whether c lies within a day (00:00..24:00).
func (c Clock) Valid() bool {
	return c >= 0 && c <= MinutesPerDay
}

// On returns the instant of c on the given calendar day.
func (c Clock) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, day.Location()).Add(time.Duration(c) * time.Minute)
}

func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Clock) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("time must be a string in HH:MM format")
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Value stores the clock as integer minutes.
func (c Clock) Value() (driver.Value, error) {
	return int64(c), nil
}

// Scan accepts integer minute columns as well as TIME/text columns.
func (c *Clock) Scan(src interface{}) error {
	switch v := src.(type) {
	case int64:
		*c = Clock(v)
	case int32:
		*c = Clock(v)
	case []byte:
		return c.scanString(string(v))
	case string:
		return c.scanString(v)
	case time.Time:
		*c = ClockOf(v)
	case nil:
		*c = 0
	default:
		return fmt.Errorf("cannot scan %T into schedule.Clock", src)
	}
	return nil
}

func (c *Clock) scanString(s string) error {
	if n, err := strconv.Atoi(s); err == nil {
		*c = Clock(n)
		return nil
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
