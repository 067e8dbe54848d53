package core

import "time"

// NextRecurringDate computes the occurrence that follows anchor for the
// given interval. MONTHLY and YEARLY keep the anchor's day of month,
// clipped to the last day of shorter target months (Jan 31 -> Feb 28).
// The same function schedules a template's first due date on creation and
// advances it after each materialization.
func NextRecurringDate(anchor time.Time, interval RecurringInterval) time.Time {
	switch interval {
	case Daily:
		return anchor.AddDate(0, 0, 1)
	case Weekly:
		return anchor.AddDate(0, 0, 7)
	case Monthly:
		return addMonthsClipped(anchor, 1)
	case Yearly:
		return addMonthsClipped(anchor, 12)
	}
	return anchor
}

// addMonthsClipped adds months without the day-overflow normalization of
// time.AddDate: Jan 31 + 1 month is Feb 28 (29 in leap years), not Mar 3.
func addMonthsClipped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	m := int(month) + months
	year += (m - 1) / 12
	m = (m-1)%12 + 1

	if last := lastDayOfMonth(year, time.Month(m)); day > last {
		day = last
	}
	h, min, sec := t.Clock()
	return time.Date(year, time.Month(m), day, h, min, sec, t.Nanosecond(), t.Location())
}

// lastDayOfMonth returns the number of days in the given month.
func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// IsDue reports whether a recurring template should be materialized now.
// A template is due if it has never been processed or its next occurrence
// date has been reached. The schedule is forward-only: at most one
// occurrence is generated per check, even if several periods elapsed.
func (t Transaction) IsDue(now time.Time) bool {
	if !t.IsRecurring {
		return false
	}
	if t.LastProcessed.IsZero() {
		return true
	}
	return !t.NextRecurringDate.After(now)
}

// PeriodKey identifies the logical occurrence period of a materialization,
// used to deduplicate at-least-once trigger deliveries. One occurrence per
// template per calendar day.
func PeriodKey(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

// SameMonth reports whether two instants fall in the same calendar month
// of the same year.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// MonthRange returns the closed [start, end] interval covering the calendar
// month containing t, in UTC.
func MonthRange(t time.Time) (time.Time, time.Time) {
	y, m, _ := t.UTC().Date()
	start := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(y, m+1, 0, 23, 59, 59, 0, time.UTC)
	return start, end
}
