package core

import "testing"

func TestParseHours(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"7", "7.00", true},
		{"7.5", "7.50", true},
		{"7,25", "7.25", true},
		{"", "0.00", true},
		{"-1", "", false},
		{"abc", "", false},
	}
	for _, tc := range cases {
		h, err := ParseHours(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("ParseHours(%q) unexpected error: %v", tc.in, err)
		}
		if !tc.ok {
			if err == nil {
				t.Fatalf("ParseHours(%q) expected error", tc.in)
			}
			continue
		}
		if h.String() != tc.want {
			t.Fatalf("ParseHours(%q) = %s, want %s", tc.in, h, tc.want)
		}
	}
}

func TestHoursForDays(t *testing.T) {
	if got := HoursFromInt(7).ForDays(31); !got.Equal(HoursFromInt(31)) {
		t.Fatalf("7h/week over 31 days = %s, want 31", got)
	}
	if got := HoursFromInt(14).ForDays(0); !got.IsZero() {
		t.Fatalf("zero days should give zero, got %s", got)
	}
	if got := HoursFromInt(14).ForDays(-3); !got.IsZero() {
		t.Fatalf("negative days should give zero, got %s", got)
	}
}

func TestHoursAccumulationIsExact(t *testing.T) {
	// 0.1 summed ten times stays exactly 1.
	total := ZeroHours()
	for i := 0; i < 10; i++ {
		total = total.Add(HoursFromFloat(0.1))
	}
	if !total.Equal(HoursFromInt(1)) {
		t.Fatalf("expected exactly 1, got %s", total)
	}

	var zero Hours
	if !zero.Add(HoursFromInt(2)).Equal(HoursFromInt(2)) {
		t.Fatalf("zero value must act as zero")
	}
}
