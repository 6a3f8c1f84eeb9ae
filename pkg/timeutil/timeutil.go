package timeutil

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// DateLayout is the canonical calendar-date encoding used across the engine.
// Session times are stored as (calendar date, time-of-day); the zone is an
// engine-wide setting and never travels with individual values.
const DateLayout = "2006-01-02"

var timeOfDayPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// ParseDate parses a YYYY-MM-DD date in the given location.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", raw, err)
	}
	return t, nil
}

// FormatDate renders a date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseTimeOfDay converts "HH:MM" (24-hour) into a minute-of-day ordinal.
func ParseTimeOfDay(raw string) (int, error) {
	m := timeOfDayPattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, fmt.Errorf("invalid time of day %q, want HH:MM", raw)
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	return hours*60 + minutes, nil
}

// ValidateTimeOfDay checks HH:MM shape and alignment to the configured
// minute granularity.
func ValidateTimeOfDay(raw string, granularity int) error {
	minute, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	if granularity > 0 && minute%granularity != 0 {
		return fmt.Errorf("time %q not aligned to %d-minute granularity", raw, granularity)
	}
	return nil
}

// FormatMinutes renders a minute-of-day ordinal back to HH:MM.
func FormatMinutes(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// Overlaps reports whether two half-open [start, end) minute intervals
// intersect. Touching intervals (aEnd == bStart) do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// MondayOf normalizes any date to the Monday of its ISO week.
func MondayOf(t time.Time) time.Time {
	offset := DayOrdinal(t.Weekday()) - 1
	return time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, t.Location())
}

// DayOrdinal maps a weekday to the engine ordinal: Mon=1 .. Sun=7.
func DayOrdinal(w time.Weekday) int {
	if w == time.Sunday {
		return 7
	}
	return int(w)
}

// WeekdayFromOrdinal is the inverse of DayOrdinal.
func WeekdayFromOrdinal(n int) (time.Weekday, error) {
	if n < 1 || n > 7 {
		return time.Monday, fmt.Errorf("day ordinal out of range: %d", n)
	}
	if n == 7 {
		return time.Sunday, nil
	}
	return time.Weekday(n), nil
}

// DaysBetween returns the calendar-day difference to - from. Both dates are
// re-anchored at UTC midnight first, so a DST transition inside the span
// cannot shave an hour off the difference and truncate a day away.
func DaysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f) / (24 * time.Hour))
}

// WeekIndex returns the semester-relative week index of date, counted from 0
// at the semester start: floor((date - start) / 7 days).
func WeekIndex(start, date time.Time) int {
	days := DaysBetween(start, date)
	if days < 0 {
		return -((-days + 6) / 7)
	}
	return days / 7
}

var isoWeekPattern = regexp.MustCompile(`^(\d{4})-W(\d{2})$`)

// ParseISOWeek parses "YYYY-Www" and returns the Monday of that ISO week.
func ParseISOWeek(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	m := isoWeekPattern.FindStringSubmatch(raw)
	if m == nil {
		return time.Time{}, fmt.Errorf("invalid ISO week %q, want YYYY-Www", raw)
	}
	year, _ := strconv.Atoi(m[1])
	week, _ := strconv.Atoi(m[2])
	if week < 1 || week > 53 {
		return time.Time{}, fmt.Errorf("ISO week number out of range: %d", week)
	}

	// January 4th is always inside ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, loc)
	week1Monday := MondayOf(jan4)
	return week1Monday.AddDate(0, 0, (week-1)*7), nil
}

// FormatISOWeek renders the ISO week of a date as "YYYY-Www".
func FormatISOWeek(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
