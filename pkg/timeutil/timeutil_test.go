package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	minute, err := ParseTimeOfDay("08:30")
	require.NoError(t, err)
	assert.Equal(t, 510, minute)

	_, err = ParseTimeOfDay("24:00")
	assert.Error(t, err)
	_, err = ParseTimeOfDay("8:30")
	assert.Error(t, err)
	_, err = ParseTimeOfDay("09:59:59")
	assert.Error(t, err)
}

func TestValidateTimeOfDayGranularity(t *testing.T) {
	require.NoError(t, ValidateTimeOfDay("08:15", 15))
	require.NoError(t, ValidateTimeOfDay("08:10", 5))
	assert.Error(t, ValidateTimeOfDay("08:10", 15))
	assert.Error(t, ValidateTimeOfDay("08:07", 5))
}

func TestOverlapsHalfOpen(t *testing.T) {
	// A session ending at 10:00 and another starting at 10:00 never clash.
	assert.False(t, Overlaps(480, 600, 600, 690))
	assert.False(t, Overlaps(600, 690, 480, 600))
	assert.True(t, Overlaps(480, 601, 600, 690))
	assert.True(t, Overlaps(540, 630, 510, 600))
	assert.True(t, Overlaps(480, 600, 500, 520))
}

func TestMondayOf(t *testing.T) {
	loc := time.UTC
	// 2025-10-08 is a Wednesday; its Monday is 2025-10-06.
	wed := time.Date(2025, time.October, 8, 0, 0, 0, 0, loc)
	assert.Equal(t, "2025-10-06", FormatDate(MondayOf(wed)))

	sun := time.Date(2025, time.October, 12, 0, 0, 0, 0, loc)
	assert.Equal(t, "2025-10-06", FormatDate(MondayOf(sun)))

	mon := time.Date(2025, time.October, 6, 0, 0, 0, 0, loc)
	assert.Equal(t, "2025-10-06", FormatDate(MondayOf(mon)))
}

func TestDayOrdinal(t *testing.T) {
	assert.Equal(t, 1, DayOrdinal(time.Monday))
	assert.Equal(t, 6, DayOrdinal(time.Saturday))
	assert.Equal(t, 7, DayOrdinal(time.Sunday))

	w, err := WeekdayFromOrdinal(7)
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, w)
	_, err = WeekdayFromOrdinal(0)
	assert.Error(t, err)
}

func TestWeekIndex(t *testing.T) {
	loc := time.UTC
	start := time.Date(2025, time.October, 6, 0, 0, 0, 0, loc)

	assert.Equal(t, 0, WeekIndex(start, start))
	assert.Equal(t, 0, WeekIndex(start, start.AddDate(0, 0, 6)))
	assert.Equal(t, 1, WeekIndex(start, start.AddDate(0, 0, 7)))
	assert.Equal(t, 9, WeekIndex(start, start.AddDate(0, 0, 69)))
}

func TestDaysBetweenAcrossDSTTransition(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	// Paris springs forward on 2025-03-30, so the naive hour-based diff of
	// these midnights is 6.96 days, not 7.
	before := time.Date(2025, time.March, 24, 0, 0, 0, 0, loc)
	after := time.Date(2025, time.March, 31, 0, 0, 0, 0, loc)
	assert.Equal(t, 7, DaysBetween(before, after))
	assert.Equal(t, -7, DaysBetween(after, before))
	assert.Equal(t, 0, DaysBetween(before, before))

	// autumn fall-back must not round up either
	oct := time.Date(2025, time.October, 20, 0, 0, 0, 0, loc)
	nov := time.Date(2025, time.October, 27, 0, 0, 0, 0, loc)
	assert.Equal(t, 7, DaysBetween(oct, nov))
}

func TestWeekIndexAcrossDSTTransition(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	start := time.Date(2025, time.March, 24, 0, 0, 0, 0, loc)
	assert.Equal(t, 1, WeekIndex(start, time.Date(2025, time.March, 31, 0, 0, 0, 0, loc)))
	assert.Equal(t, 2, WeekIndex(start, time.Date(2025, time.April, 7, 0, 0, 0, 0, loc)))
}

func TestWeekIndexAcrossYearBoundary(t *testing.T) {
	loc := time.UTC
	start := time.Date(2025, time.December, 15, 0, 0, 0, 0, loc)
	jan := time.Date(2026, time.January, 5, 0, 0, 0, 0, loc)
	assert.Equal(t, 3, WeekIndex(start, jan))
}

func TestParseISOWeek(t *testing.T) {
	monday, err := ParseISOWeek("2025-W41", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2025-10-06", FormatDate(monday))
	assert.Equal(t, time.Monday, monday.Weekday())

	// Week 1 of 2026 starts in December 2025.
	monday, err = ParseISOWeek("2026-W01", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2025-12-29", FormatDate(monday))

	_, err = ParseISOWeek("2025-41", time.UTC)
	assert.Error(t, err)
	_, err = ParseISOWeek("2025-W54", time.UTC)
	assert.Error(t, err)
}

func TestFormatISOWeek(t *testing.T) {
	d := time.Date(2025, time.October, 13, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-W42", FormatISOWeek(d))
}
