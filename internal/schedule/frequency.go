package schedule

import (
	"strconv"
	"strings"
	"time"
)

// Frequency values. Anything outside this set resolves as daily.
const (
	FreqHourly   = "hourly"
	FreqDaily    = "daily"
	FreqBiWeekly = "bi_weekly"
	FreqWeekly   = "weekly"
	FreqMonthly  = "monthly"
)

// NextRun resolves the next execution time for a frequency.
//
// daily accepts an optional timeOfDay ("HH:MM") which overwrites the
// hour and minute of the result; the date stays at now+24h, so the
// resolved time can land earlier in that day than the wall clock.
// Unknown frequencies fall back to daily. Cron expressions are not
// evaluated anywhere in this engine; schedules carrying one resolve
// through their interval, defaulting to daily.
func NextRun(frequency string, now time.Time, timeOfDay string) time.Time {
	switch frequency {
	case FreqHourly:
		return now.Add(time.Hour)
	case FreqDaily:
		return dailyNext(now, timeOfDay)
	case FreqBiWeekly:
		return now.AddDate(0, 0, 14)
	case FreqWeekly:
		return now.AddDate(0, 0, 7)
	case FreqMonthly:
		return now.AddDate(0, 1, 0)
	default:
		return dailyNext(now, timeOfDay)
	}
}

func dailyNext(now time.Time, timeOfDay string) time.Time {
	next := now.Add(24 * time.Hour)

	hour, minute, ok := parseTimeOfDay(timeOfDay)
	if !ok {
		return next
	}
	return time.Date(next.Year(), next.Month(), next.Day(), hour, minute, 0, 0, next.Location())
}

func parseTimeOfDay(s string) (hour, minute int, ok bool) {
	if s == "" {
		return 0, 0, false
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, false
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}
