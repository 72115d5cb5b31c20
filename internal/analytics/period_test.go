package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"careanalytics/internal/core"
)

func commitment(start core.Date, end core.EndDate, weekly int64) core.Commitment {
	return core.Commitment{
		ID:          "c",
		Kind:        core.Request,
		StartDate:   start,
		EndDate:     end,
		WeeklyHours: core.HoursFromInt(weekly),
		OneOffHours: core.ZeroHours(),
		Services:    []string{"Shopping"},
		Locality:    "Town A",
	}
}

func TestActiveInMonth(t *testing.T) {
	c := commitment(core.NewDate(2024, 2, 10), core.EndsOn(core.NewDate(2024, 4, 1)), 7)

	cases := []struct {
		year, month int
		want        bool
	}{
		{2024, 1, false},
		{2024, 2, true},
		{2024, 3, true},
		{2024, 4, true},
		{2024, 5, false},
		{2023, 12, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ActiveInMonth(c, tc.year, tc.month), "%d-%02d", tc.year, tc.month)
	}

	open := commitment(core.NewDate(2020, 6, 1), core.OpenEnd(), 7)
	assert.True(t, ActiveInMonth(open, 2030, 1))
	assert.False(t, ActiveInMonth(open, 2020, 5))
}

func TestOverlapDays(t *testing.T) {
	today := core.NewDate(2024, 3, 15)

	cases := []struct {
		name        string
		c           core.Commitment
		year, month int
		want        int
	}{
		{"full month", commitment(core.NewDate(2023, 1, 1), core.EndsOn(core.NewDate(2025, 1, 1)), 7), 2024, 1, 31},
		{"leap february", commitment(core.NewDate(2023, 1, 1), core.OpenEnd(), 7), 2024, 2, 29},
		{"starts mid month", commitment(core.NewDate(2024, 1, 20), core.OpenEnd(), 7), 2024, 1, 12},
		{"ends mid month", commitment(core.NewDate(2023, 1, 1), core.EndsOn(core.NewDate(2024, 1, 10)), 7), 2024, 1, 10},
		{"start equals end", commitment(core.NewDate(2024, 1, 5), core.EndsOn(core.NewDate(2024, 1, 5)), 7), 2024, 1, 1},
		{"open clipped to today", commitment(core.NewDate(2024, 1, 1), core.OpenEnd(), 7), 2024, 3, 15},
		{"open after today", commitment(core.NewDate(2024, 1, 1), core.OpenEnd(), 7), 2024, 4, 0},
		{"concrete end not clipped", commitment(core.NewDate(2024, 1, 1), core.EndsOn(core.NewDate(2024, 12, 31)), 7), 2024, 4, 30},
		{"outside", commitment(core.NewDate(2024, 5, 1), core.OpenEnd(), 7), 2024, 1, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, OverlapDays(tc.c, tc.year, tc.month, today))
		})
	}
}

func TestMonthlyContribution(t *testing.T) {
	today := core.NewDate(2024, 12, 31)

	t.Run("full month coverage", func(t *testing.T) {
		c := commitment(core.NewDate(2023, 1, 1), core.OpenEnd(), 10)
		for m := 1; m <= 12; m++ {
			want := core.HoursFromInt(10).ForDays(core.DaysInMonth(2024, m))
			got := MonthlyContribution(c, 2024, m, today)
			assert.True(t, want.Equal(got), "month %d: got %s want %s", m, got, want)
		}
	})

	t.Run("one-off only in start month", func(t *testing.T) {
		c := commitment(core.NewDate(2024, 6, 30), core.OpenEnd(), 0)
		c.OneOffHours = core.HoursFromInt(3)
		assert.True(t, MonthlyContribution(c, 2024, 6, today).Equal(core.HoursFromInt(3)))
		assert.True(t, MonthlyContribution(c, 2024, 7, today).IsZero())
		assert.True(t, MonthlyContribution(c, 2024, 5, today).IsZero())
	})

	t.Run("single day", func(t *testing.T) {
		c := commitment(core.NewDate(2024, 3, 4), core.EndsOn(core.NewDate(2024, 3, 4)), 14)
		assert.True(t, MonthlyContribution(c, 2024, 3, today).Equal(core.HoursFromInt(2)))
		assert.True(t, MonthlyContribution(c, 2024, 2, today).IsZero())
		assert.True(t, MonthlyContribution(c, 2024, 4, today).IsZero())
	})
}

func TestWindow(t *testing.T) {
	w := NewWindow(2022, core.NewDate(2024, 5, 1))
	assert.Equal(t, 3, w.Years())
	assert.True(t, w.Contains(2022))
	assert.True(t, w.Contains(2024))
	assert.False(t, w.Contains(2025))

	empty := NewWindow(2025, core.NewDate(2024, 5, 1))
	assert.True(t, empty.Empty())
	assert.Equal(t, 0, empty.Years())
	assert.False(t, empty.Contains(2024))
}
