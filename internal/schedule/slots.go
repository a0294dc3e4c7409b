package schedule

import "sort"

const (
	// SlotStride is the distance between consecutive candidate starts,
	// independent of the service duration.
	SlotStride = 30

	// DurationTolerance is how far, in minutes, a requested appointment length
	// may drift from the service's nominal duration.
	DurationTolerance = 15
)

// Window is a staff member's recurring working hours on one weekday.
type Window struct {
	Day Weekday `json:"day_of_week"`
	Interval
}

// GenerateSlots walks window from its start in SlotStride steps and returns
// every [c, c+duration) that ends inside the window and overlaps no booking.
// Slots are returned in chronological order.
func GenerateSlots(window Interval, duration int, booked []Interval) []Interval {
	if duration <= 0 || window.Start >= window.End {
		return nil
	}

	var slots []Interval
	for c := window.Start; c.Add(duration) <= window.End; c = c.Add(SlotStride) {
		slot := Interval{Start: c, End: c.Add(duration)}
		if ConflictsWith(slot, booked) {
			continue
		}
		slots = append(slots, slot)
	}
	return slots
}

// FreeSlots generates slots for every window that applies to day and merges
// them into one chronological list without duplicates.
func FreeSlots(windows []Window, day Weekday, duration int, booked []Interval) []Interval {
	seen := make(map[Interval]struct{})
	slots := make([]Interval, 0)
	for _, w := range windows {
		if w.Day != day {
			continue
		}
		for _, s := range GenerateSlots(w.Interval, duration, booked) {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			slots = append(slots, s)
		}
	}
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].Start < slots[j].Start
	})
	return slots
}

// WithinTolerance reports whether a requested length in minutes is close
// enough to a service's nominal duration.
func WithinTolerance(requested, nominal int) bool {
	diff := requested - nominal
	if diff < 0 {
		diff = -diff
	}
	return diff <= DurationTolerance
}

// Covered reports whether slot lies entirely inside one of the windows for day.
func Covered(windows []Window, day Weekday, slot Interval) bool {
	for _, w := range windows {
		if w.Day == day && w.Start <= slot.Start && slot.End <= w.End {
			return true
		}
	}
	return false
}
