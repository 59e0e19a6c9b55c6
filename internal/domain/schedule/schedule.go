// Package schedule computes recurring review due dates.
package schedule

import (
	"time"

	"docflow/internal/domain/documents"
)

// NextDueDate returns the next review date for freq counted from base, or
// from now() when base is nil. AS_NEEDED (and any unknown frequency) yields
// nil: no automatic scheduling.
func NextDueDate(base *time.Time, freq documents.Frequency, now func() time.Time) *time.Time {
	months := monthsFor(freq)
	if months == 0 {
		return nil
	}
	var anchor time.Time
	if base != nil {
		anchor = *base
	} else {
		if now == nil {
			now = time.Now
		}
		anchor = now()
	}
	next := AddMonthsClamped(anchor, months)
	return &next
}

// AddMonthsClamped adds months keeping the day of month when it exists and
// clamping to the last day of the target month otherwise (Jan 31 + 1 month
// is Feb 28/29, never Mar 2/3 as time.AddDate would give).
func AddMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	total := int(month) - 1 + months
	targetYear := year + floorDiv(total, 12)
	targetMonth := time.Month(floorMod(total, 12) + 1)
	if last := daysIn(targetYear, targetMonth, t.Location()); day > last {
		day = last
	}
	hour, minute, sec := t.Clock()
	return time.Date(targetYear, targetMonth, day, hour, minute, sec, t.Nanosecond(), t.Location())
}

func monthsFor(freq documents.Frequency) int {
	switch freq {
	case documents.FrequencyQuarterly:
		return 3
	case documents.FrequencySemiAnnual:
		return 6
	case documents.FrequencyYearly:
		return 12
	case documents.FrequencyBiennial:
		return 24
	default:
		return 0
	}
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
