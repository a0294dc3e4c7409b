package schedule

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Interval is a half-open time range [Start, End) within one day.
type Interval struct {
	Start Clock `json:"start_time"`
	End   Clock `json:"end_time"`
}

// NewInterval validates start < end and both within the day.
func NewInterval(start, end Clock) (Interval, error) {
	if !start.Valid() || !end.Valid() {
		return Interval{}, fmt.Errorf("interval %s-%s out of day range", start, end)
	}
	if start >= end {
		return Interval{}, fmt.Errorf("start time %s must be before end time %s", start, end)
	}
	return Interval{Start: start, End: end}, nil
}

// Minutes is the length of the interval.
func (i Interval) Minutes() int {
	return int(i.End - i.Start)
}

func (i Interval) String() string {
	return i.Start.String() + "-" + i.End.String()
}

// Overlaps reports whether [a.Start,a.End) and [b.Start,b.End) intersect.
// Touching intervals (a.End == b.Start) do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End && a.End > b.Start
}

// ConflictsWith reports whether candidate overlaps any of booked.
func ConflictsWith(candidate Interval, booked []Interval) bool {
	for _, b := range booked {
		if Overlaps(candidate, b) {
			return true
		}
	}
	return false
}

// Weekday is a day of the week, serialized as its lowercase English name.
type Weekday time.Weekday

var weekdayNames = map[string]Weekday{
	"sunday": Weekday(time.Sunday), "sun": Weekday(time.Sunday),
	"monday": Weekday(time.Monday), "mon": Weekday(time.Monday),
	"tuesday": Weekday(time.Tuesday), "tue": Weekday(time.Tuesday),
	"wednesday": Weekday(time.Wednesday), "wed": Weekday(time.Wednesday),
	"thursday": Weekday(time.Thursday), "thu": Weekday(time.Thursday),
	"friday": Weekday(time.Friday), "fri": Weekday(time.Friday),
	"saturday": Weekday(time.Saturday), "sat": Weekday(time.Saturday),
}

// ParseWeekday accepts full or three-letter names in any case, or 0-6 with Sunday = 0.
func ParseWeekday(s string) (Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if d, ok := weekdayNames[s]; ok {
		return d, nil
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n <= 6 {
		return Weekday(n), nil
	}
	return 0, fmt.Errorf("invalid day of week %q", s)
}

// WeekdayOf returns the weekday of a calendar date.
func WeekdayOf(t time.Time) Weekday {
	return Weekday(t.Weekday())
}

func (d Weekday) String() string {
	return strings.ToLower(time.Weekday(d).String())
}

func (d Weekday) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Weekday) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseWeekday(fmt.Sprint(raw))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
