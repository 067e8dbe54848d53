package core

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextRecurringDate(t *testing.T) {
	tests := []struct {
		name     string
		anchor   time.Time
		interval RecurringInterval
		want     time.Time
	}{
		{
			name:     "daily",
			anchor:   date(2025, time.January, 15),
			interval: Daily,
			want:     date(2025, time.January, 16),
		},
		{
			name:     "daily across month end",
			anchor:   date(2025, time.January, 31),
			interval: Daily,
			want:     date(2025, time.February, 1),
		},
		{
			name:     "weekly",
			anchor:   date(2025, time.January, 15),
			interval: Weekly,
			want:     date(2025, time.January, 22),
		},
		{
			name:     "monthly keeps day of month",
			anchor:   date(2025, time.January, 15),
			interval: Monthly,
			want:     date(2025, time.February, 15),
		},
		{
			name:     "monthly clips to shorter month",
			anchor:   date(2025, time.January, 31),
			interval: Monthly,
			want:     date(2025, time.February, 28),
		},
		{
			name:     "monthly clips to leap february",
			anchor:   date(2024, time.January, 31),
			interval: Monthly,
			want:     date(2024, time.February, 29),
		},
		{
			name:     "monthly across year end",
			anchor:   date(2024, time.December, 15),
			interval: Monthly,
			want:     date(2025, time.January, 15),
		},
		{
			name:     "yearly",
			anchor:   date(2025, time.March, 10),
			interval: Yearly,
			want:     date(2026, time.March, 10),
		},
		{
			name:     "yearly clips leap day",
			anchor:   date(2024, time.February, 29),
			interval: Yearly,
			want:     date(2025, time.February, 28),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextRecurringDate(tt.anchor, tt.interval)
			if !got.Equal(tt.want) {
				t.Errorf("NextRecurringDate(%v, %s) = %v, want %v", tt.anchor, tt.interval, got, tt.want)
			}
		})
	}
}

// Advancing twice from a clipped date stays clipped: Jan 31 -> Feb 28 -> Mar 28,
// not Mar 31. The day of month does not recover after a shorter month.
func TestNextRecurringDate_ClippedChain(t *testing.T) {
	first := NextRecurringDate(date(2025, time.January, 31), Monthly)
	if !first.Equal(date(2025, time.February, 28)) {
		t.Fatalf("first advance = %v, want 2025-02-28", first)
	}
	second := NextRecurringDate(first, Monthly)
	if !second.Equal(date(2025, time.March, 28)) {
		t.Fatalf("second advance = %v, want 2025-03-28", second)
	}
}

func TestTransaction_IsDue(t *testing.T) {
	now := date(2025, time.February, 20)

	tests := []struct {
		name string
		tx   Transaction
		want bool
	}{
		{
			name: "non-recurring never due",
			tx:   Transaction{IsRecurring: false},
			want: false,
		},
		{
			name: "never processed - is due",
			tx: Transaction{
				IsRecurring:       true,
				NextRecurringDate: date(2025, time.March, 15),
			},
			want: true,
		},
		{
			name: "next date in the past - is due",
			tx: Transaction{
				IsRecurring:       true,
				LastProcessed:     date(2025, time.January, 15),
				NextRecurringDate: date(2025, time.February, 15),
			},
			want: true,
		},
		{
			name: "next date exactly now - is due",
			tx: Transaction{
				IsRecurring:       true,
				LastProcessed:     date(2025, time.January, 20),
				NextRecurringDate: now,
			},
			want: true,
		},
		{
			name: "next date in the future - not due",
			tx: Transaction{
				IsRecurring:       true,
				LastProcessed:     date(2025, time.February, 15),
				NextRecurringDate: date(2025, time.March, 15),
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tx.IsDue(now); got != tt.want {
				t.Errorf("IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSameMonth(t *testing.T) {
	if !SameMonth(date(2025, time.May, 1), date(2025, time.May, 31)) {
		t.Error("same month should match")
	}
	if SameMonth(date(2025, time.May, 31), date(2025, time.June, 1)) {
		t.Error("adjacent months should not match")
	}
	if SameMonth(date(2024, time.May, 15), date(2025, time.May, 15)) {
		t.Error("same month different year should not match")
	}
}

func TestMonthRange(t *testing.T) {
	start, end := MonthRange(date(2025, time.February, 20))
	if !start.Equal(date(2025, time.February, 1)) {
		t.Errorf("start = %v, want 2025-02-01", start)
	}
	if end.Day() != 28 || end.Month() != time.February {
		t.Errorf("end = %v, want last day of February", end)
	}
}
